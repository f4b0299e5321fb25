// Package fwdtable implements the shared-runtime forward table: the
// function-pointer bridge a dynamically loaded module uses to call
// back into the host process that loaded it (allocation, type
// queries, thread attachment), without linking the host's
// implementation directly into every loaded library.
//
// Grounded on core/EngineFwd.h (EngineFwdShared/EngineFwdUnique) and
// shared/Engine.cpp's Engine::attach/detach (the "first attach wins,
// subsequent attaches must match exactly" contract, and the lazily
// grown per-engine unique array).
package fwdtable

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/coreruntime/corert/addr"
	"github.com/coreruntime/corert/gcabi"
)

// Shared carries the type-independent entry points every loaded
// library calls through, standing in for EngineFwdShared's function
// pointers.
type Shared struct {
	AllocObject  func(size uint64, typeID uint64) addr.Address
	AllocArray   func(typeID uint64, count uint64) addr.Address
	AllocCode    func(codeBytes, refCount uint64) addr.Address
	CodeSize     func(code addr.Address) uint64
	TypeOf       func(obj addr.Address) uint64
	IsA          func(obj addr.Address, typeID uint64) bool
	CreateWatch  func() gcabi.Watch
	AttachThread func()
	DetachThread func()
}

// Equal compares two Shared values by function identity (pointer
// equality of each entry point), since Go function values are not
// otherwise comparable. Two unset (nil) entries compare equal.
func (s Shared) Equal(o Shared) bool {
	return funcPtr(s.AllocObject) == funcPtr(o.AllocObject) &&
		funcPtr(s.AllocArray) == funcPtr(o.AllocArray) &&
		funcPtr(s.AllocCode) == funcPtr(o.AllocCode) &&
		funcPtr(s.CodeSize) == funcPtr(o.CodeSize) &&
		funcPtr(s.TypeOf) == funcPtr(o.TypeOf) &&
		funcPtr(s.IsA) == funcPtr(o.IsA) &&
		funcPtr(s.CreateWatch) == funcPtr(o.CreateWatch) &&
		funcPtr(s.AttachThread) == funcPtr(o.AttachThread) &&
		funcPtr(s.DetachThread) == funcPtr(o.DetachThread)
}

func funcPtr(fn any) uintptr {
	if fn == nil {
		return 0
	}
	v := reflect.ValueOf(fn)
	if v.IsNil() {
		return 0
	}
	return v.Pointer()
}

// Unique carries the entry points that differ between loaded
// libraries because type identifiers are namespaced per engine
// instance, standing in for EngineFwdUnique.
type Unique struct {
	CPPType   func(typeID uint32) addr.Address
	GetThread func(declID uint32) addr.Address
}

// Table is the process-wide forward table: one Shared struct, plus
// one Unique struct per attached engine, reference-counted.
type Table struct {
	mu       sync.Mutex
	shared   Shared
	haveSet  bool
	unique   []Unique
	attached int
}

// New creates an empty forward table.
func New() *Table { return &Table{} }

// Attach registers shared and unique for engineID. The first call
// adopts shared; every subsequent call must supply byte-for-byte
// (here: pointer-for-pointer) identical entry points, catching a
// library built against a different host version — spec.md §4.J
// calls this mismatch out explicitly, so it is reported as an error
// rather than silently accepted.
func (t *Table) Attach(shared Shared, engineID uint32, unique Unique) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.haveSet {
		t.shared = shared
		t.haveSet = true
	} else if !t.shared.Equal(shared) {
		return fmt.Errorf("fwdtable: shared forward table mismatch on attach: library was built against a different host engine")
	}

	if int(engineID) >= len(t.unique) {
		grown := make([]Unique, engineID+1)
		copy(grown, t.unique)
		t.unique = grown
	}
	t.unique[engineID] = unique
	t.attached++
	return nil
}

// Detach releases one reference. When the last attached library
// detaches, the unique array is freed.
func (t *Table) Detach() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.attached == 0 {
		return
	}
	t.attached--
	if t.attached == 0 {
		t.unique = nil
	}
}

// Shared returns the currently adopted shared entry points. The
// zero value if nothing has attached yet.
func (t *Table) Shared() Shared {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shared
}

// Unique returns the entry points registered for engineID.
func (t *Table) Unique(engineID uint32) (Unique, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(engineID) >= len(t.unique) {
		return Unique{}, false
	}
	return t.unique[engineID], true
}

// Attached reports how many libraries currently hold a reference.
func (t *Table) Attached() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attached
}
