// Package codeindex implements the code-address index: a concurrent
// map from an arbitrary instruction pointer to the base address of
// the GC-owned code block that contains it, tolerant of the GC
// relocating code blocks underneath it.
//
// Grounded on compiler/CodeTable.cpp: a weak array of bases plus a
// GcWatch, heapsort-during-lookup to both find the answer and dedupe
// in one pass, and geometric growth of the backing array.
package codeindex

import (
	"container/heap"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/coreruntime/corert/addr"
	"github.com/coreruntime/corert/gcabi"
)

// Table is the code-address index. The zero value is not usable; use
// New.
//
// Concurrency note: the original CodeTable releases its lock during
// the heapsort step, relying on the GcWatch to detect relocations
// that happened while unlocked and force a retry. This port holds a
// single mutex for the whole of Find/Add instead — the slice never
// moves out from under a Go GC the way a relocating collector's
// weak array would, so there is no correctness reason to special-case
// the sort step, and a single critical section is far easier to
// reason about. The cost is that the lock is held for the whole sort,
// slightly longer under heavy concurrent lookup contention than the
// original's design would allow.
type Table struct {
	mu     sync.Mutex
	gc     gcabi.Collaborator
	log    *logrus.Entry
	slots  []slot
	count  int
	watch  gcabi.Watch
	root   gcabi.Root
	sorted bool
}

type slot struct {
	base  addr.Address
	valid bool
}

// New creates an empty index backed by the given GC collaborator.
func New(gc gcabi.Collaborator, log *logrus.Entry) *Table {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Table{gc: gc, log: log}
}

// Add registers code as a new code block base. The table requires
// only one GC root regardless of how many blocks are registered.
func (t *Table) Add(code addr.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ensure(t.count + 1)
	t.slots[t.count] = slot{base: code, valid: true}
	t.watch.Add(code)
	t.count++
	t.sorted = false
}

// ensure grows the backing array geometrically so it can hold at
// least n live entries, creating the watch and root on first use.
func (t *Table) ensure(n int) {
	if t.watch == nil {
		t.watch = t.gc.CreateWatch()
	}
	if t.root == nil {
		t.root = t.gc.CreateRoot(nil)
	}
	if n <= len(t.slots) {
		return
	}
	newLen := len(t.slots) * 2
	if newLen < 16 {
		newLen = 16
	}
	if newLen < n {
		newLen = n
	}
	grown := make([]slot, newLen)
	copy(grown, t.slots[:t.count])
	t.slots = grown
}

// Find returns the base of the code block that contains q, if any.
// It never panics; a miss is reported via the second return value.
func (t *Table) Find(q addr.Address) (addr.Address, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sorted {
		if base, ok := t.binarySearch(q); ok {
			return base, true
		}
		if !t.watch.Moved() {
			return addr.Address(0), false
		}
		// Fall through: something moved since our last sort, re-sort.
	}
	return t.heapSortAndFind(q)
}

// less orders slots for the binary search / heap: nil (invalid) slots
// sort to the high end, as if they were "greater than every real
// address" (spec.md §4.C edge case).
func less(a, b slot) bool {
	if a.valid != b.valid {
		return a.valid // valid sorts before invalid
	}
	if !a.valid {
		return false
	}
	return a.base < b.base
}

func (t *Table) binarySearch(q addr.Address) (addr.Address, bool) {
	n := sort.Search(t.count, func(i int) bool {
		return t.slots[i].valid && t.slots[i].base > q
	})
	// n is the index of the first entry strictly greater than q (or
	// count if none); the candidate owner is the entry just before it.
	if n == 0 {
		return addr.Address(0), false
	}
	cand := t.slots[n-1]
	if cand.valid && q.In(cand.base, t.gc.CodeSize(cand.base)) {
		return cand.base, true
	}
	return addr.Address(0), false
}

// heapHelper adapts slots[0:count] to container/heap using `less`.
type heapHelper struct {
	t *Table
}

func (h heapHelper) Len() int           { return h.t.count }
func (h heapHelper) Less(i, j int) bool { return less(h.t.slots[i], h.t.slots[j]) }
func (h heapHelper) Swap(i, j int)      { h.t.slots[i], h.t.slots[j] = h.t.slots[j], h.t.slots[i] }
func (heapHelper) Push(x any)           { panic("unused") }
func (h heapHelper) Pop() any {
	n := h.t.count - 1
	v := h.t.slots[n]
	h.t.count = n
	return v
}

// heapSortAndFind re-sorts the table with heapsort, discovering the
// answer (if any) and collapsing duplicates along the way, per
// spec.md §4.C step 3.
func (t *Table) heapSortAndFind(q addr.Address) (addr.Address, bool) {
	h := heapHelper{t}
	live := t.count // number of currently-live entries before popping begins
	heap.Init(h)

	var prev slot
	havePrev := false
	var found addr.Address
	foundOK := false

	popped := make([]slot, 0, live)
	for h.t.count > 0 {
		top := h.t.slots[0]
		heap.Pop(h)
		popped = append(popped, top)
		if !top.valid {
			continue
		}
		if size := t.gc.CodeSize(top.base); q.In(top.base, size) {
			found, foundOK = top.base, true
		}
		if havePrev && prev.base == top.base {
			// Duplicate registration: unify, drop the later slot, and
			// surface it at debug level (spec.md §9 open question).
			popped[len(popped)-1] = slot{}
			t.log.WithField("base", top.base).Debug("codeindex: collapsed duplicate registration")
		} else {
			prev, havePrev = top, true
		}
	}

	// heap.Pop yields the minimum element each time under Less, so
	// popped is already in ascending order (valid entries first);
	// write it straight back and compact away the dropped duplicates.
	t.count = 0
	for _, s := range popped {
		if s.valid {
			t.slots[t.count] = s
			t.count++
		}
	}
	for i := t.count; i < len(t.slots); i++ {
		t.slots[i] = slot{}
	}

	t.watch.Clear()
	for i := 0; i < t.count; i++ {
		t.watch.Add(t.slots[i].base)
	}
	t.sorted = true

	return found, foundOK
}

// Len reports the number of live entries currently tracked (for tests
// and diagnostics; not part of the hot path).
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}
