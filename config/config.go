// Package config reads corert.toml: the handful of tunables the
// runtime core exposes (UThread stack/guard-page sizes, DWARF chunk
// capacity). spec.md describes each of these as "configurable but
// has a sane default"; nothing else in the runtime core is
// configurable.
//
// Grounded on dsmmcken-dh-cli's internal/config package (TOML load/
// save via go-toml/v2, defaulted zero-value on a missing file).
package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/pelletier/go-toml/v2"
)

// Config is the corert.toml schema.
type Config struct {
	UThread UThread `toml:"uthread"`
	DWARF   DWARF   `toml:"dwarf"`
}

// UThread holds the scheduler's stack-allocation tunables.
type UThread struct {
	// StackBytes is the usable stack size requested per UThread,
	// before rounding up to a page and adding the guard page
	// (spec.md §4.H: "size >= configurable default").
	StackBytes int `toml:"stack_bytes,omitempty"`
	// GuardPages is the number of guard pages placed below the
	// usable stack region. spec.md §4.H only requires one; corert
	// allows more for callers that want extra overflow margin.
	GuardPages int `toml:"guard_pages,omitempty"`
}

// DWARF holds the unwind table's chunking tunable.
type DWARF struct {
	// ChunkCapacity is the number of FDE slots per chunk (spec.md
	// §4.D). Zero means "use unwind.ChunkCapacity".
	ChunkCapacity int `toml:"chunk_capacity,omitempty"`
}

// defaultStackBytes mirrors code::stackSize (1024 * 40): "we need
// about 20K to be able to do cout", doubled for headroom.
const defaultStackBytes = 1024 * 40

// Default returns the configuration corert uses when no corert.toml
// is present.
func Default() *Config {
	return &Config{
		UThread: UThread{StackBytes: defaultStackBytes, GuardPages: 1},
	}
}

// Load reads path and merges it over Default(). A missing file is
// not an error: it yields the defaults untouched.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that would make the UThread stack
// or DWARF chunk allocators fail outright. It aggregates every
// problem found instead of stopping at the first one.
func (c *Config) Validate() error {
	var errs *multierror.Error
	if c.UThread.StackBytes <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("uthread.stack_bytes must be positive, got %d", c.UThread.StackBytes))
	}
	if c.UThread.GuardPages <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("uthread.guard_pages must be at least 1, got %d", c.UThread.GuardPages))
	}
	if c.DWARF.ChunkCapacity < 0 {
		errs = multierror.Append(errs, fmt.Errorf("dwarf.chunk_capacity must not be negative, got %d", c.DWARF.ChunkCapacity))
	}
	return errs.ErrorOrNil()
}
