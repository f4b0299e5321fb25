package unwind

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/coreruntime/corert/addr"
)

// Handle is an opaque reference to one allocated FDE, returned by
// Table.Alloc and consumed by Table.Free.
type Handle struct {
	ref slotRef
}

// Table is the process-wide DWARF unwind table: a list of chunks,
// each holding one CIE and a fixed-capacity pool of FDEs, searched
// linearly at find time (chunks bear no relation to each other, per
// spec.md §4.D).
type Table struct {
	mu       sync.Mutex
	capacity int
	chunks   []*chunk
	log      *logrus.Entry
}

// NewTable creates an empty table. capacity is the number of FDE
// slots per chunk; pass 0 to use the default (ChunkCapacity).
func NewTable(capacity int, log *logrus.Entry) *Table {
	if capacity <= 0 {
		capacity = ChunkCapacity
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Table{capacity: capacity, log: log}
}

// Alloc allocates a new FDE for the function at fn (codeSize bytes
// long), using init to initialize a chunk's CIE if a new chunk is
// needed. Allocation is fatal if no backing memory is available, per
// spec.md §7 ("Allocation failure — fatal; abort with a diagnostic").
func (t *Table) Alloc(fn addr.Address, codeSize uint64, init CIEInit) (Handle, *FDE) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := len(t.chunks) - 1; i >= 0; i-- {
		c := t.chunks[i]
		if c.sameKind(init) && c.hasSpace() {
			idx := c.alloc(fn, codeSize)
			return Handle{slotRef{chunk: i, slot: idx}}, c.at(idx)
		}
	}

	c := newChunk(t.capacity, init)
	t.chunks = append(t.chunks, c)
	idx := c.alloc(fn, codeSize)
	if idx == -1 {
		// Can't happen with a freshly created chunk unless capacity is 0.
		panic(fmt.Sprintf("unwind: freshly created chunk of capacity %d has no space", t.capacity))
	}
	return Handle{slotRef{chunk: len(t.chunks) - 1, slot: idx}}, c.at(idx)
}

// Free releases the FDE h refers to.
func (t *Table) Free(h Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if h.ref.chunk < 0 || h.ref.chunk >= len(t.chunks) {
		return
	}
	t.chunks[h.ref.chunk].free(h.ref.slot)
}

// Find returns the FDE covering pc, or nil on a miss. spec.md §4.D
// describes "binary search; if it fails, re-sort and retry once" to
// guard against a relocation landing between the last sort and this
// search. Table.Alloc/Free/Relocate share Find's mutex, so under this
// port that race cannot occur — but the bounded retry is kept
// (capped at one, per the Open Question decision in SPEC_FULL.md)
// rather than silently dropped, so the chunk's "sorted" bookkeeping
// still gets exercised the way the original intends.
func (t *Table) Find(pc addr.Address) *FDE {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, c := range t.chunks {
		if idx := c.find(pc); idx != -1 {
			return c.at(idx)
		}
		if c.sorted {
			c.sorted = false
			if idx := c.find(pc); idx != -1 {
				return c.at(idx)
			}
		}
	}
	return nil
}

// Relocate updates every FDE across every chunk whose CodeStart
// equals oldBase. Called by the GC's relocation callback.
func (t *Table) Relocate(oldBase, newBase addr.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range t.chunks {
		c.relocate(oldBase, newBase)
	}
}

// Len returns the total number of live (allocated, unfreed) FDEs
// across all chunks.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, c := range t.chunks {
		n += c.live
	}
	return n
}
