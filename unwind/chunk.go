package unwind

import (
	"reflect"
	"sort"

	"github.com/coreruntime/corert/addr"
)

// slotRef addresses one FDE slot within a chunk. Using an index pair
// instead of a raw *FDE keeps allocation, freeing, and relocation
// free of unsafe pointer arithmetic while still giving O(1) access,
// matching the "pointer-tagged free list" pattern spec.md §9 calls
// out as worth re-architecting away from raw pointers.
type slotRef struct {
	chunk int
	slot  int
}

// chunk is one arena holding a CIE and a fixed-capacity pool of FDE
// slots. Allocation is O(1) via an intrusive free list threaded
// through unused slots; a parallel "sorted" array of slot indices
// supports binary search once find has reordered it.
//
// Grounded on gc/DwarfTable.h's DwarfChunk: a static Entry array whose
// unused members double as free-list links, plus a `sorted` pointer
// array and an "updated" flag that's cleared whenever a GC relocation
// touches any FDE's codeStart.
type chunk struct {
	initFn   CIEInit
	cie      CIE
	capacity int

	slots     []FDE
	inUse     []bool
	nextFree  []int // valid when !inUse[i]; -1 terminates the free list
	firstFree int

	sortedIdx []int // indices into slots, live entries only
	live      int
	sorted    bool
}

func newChunk(capacity int, init CIEInit) *chunk {
	c := &chunk{
		initFn:    init,
		capacity:  capacity,
		slots:     make([]FDE, capacity),
		inUse:     make([]bool, capacity),
		nextFree:  make([]int, capacity),
		sortedIdx: make([]int, 0, capacity),
	}
	init(&c.cie)
	for i := 0; i < capacity; i++ {
		c.nextFree[i] = i + 1
	}
	c.nextFree[capacity-1] = -1
	c.firstFree = 0
	return c
}

// alloc returns the slot index for a fresh FDE describing fn, or -1
// if the chunk is full.
func (c *chunk) alloc(fn addr.Address, codeSize uint64) int {
	if c.firstFree == -1 {
		return -1
	}
	i := c.firstFree
	c.firstFree = c.nextFree[i]
	c.inUse[i] = true
	c.slots[i] = FDE{CodeStart: fn, CodeSize: codeSize}
	c.slots[i].CIEOffset = int32(i + 1) // distance back to the chunk's one CIE
	c.live++
	c.sorted = false
	return i
}

func (c *chunk) at(i int) *FDE {
	if i < 0 || i >= c.capacity || !c.inUse[i] {
		return nil
	}
	return &c.slots[i]
}

func (c *chunk) free(i int) bool {
	if i < 0 || i >= c.capacity || !c.inUse[i] {
		return false
	}
	c.inUse[i] = false
	c.nextFree[i] = c.firstFree
	c.firstFree = i
	c.live--
	c.sorted = false
	return true
}

// find performs a binary search over the chunk's sorted index array;
// if the chunk isn't known-sorted it re-sorts first. This mirrors
// gc/DwarfTable.h's DwarfChunk::search / update split.
func (c *chunk) find(pc addr.Address) int {
	if !c.sorted {
		c.resort()
	}
	idx := sort.Search(len(c.sortedIdx), func(i int) bool {
		return c.slots[c.sortedIdx[i]].CodeStart > pc
	})
	if idx == 0 {
		return -1
	}
	candIdx := c.sortedIdx[idx-1]
	if c.slots[candIdx].Contains(pc) {
		return candIdx
	}
	return -1
}

// resort rebuilds the sorted index array over live slots only.
func (c *chunk) resort() {
	c.sortedIdx = c.sortedIdx[:0]
	for i := 0; i < c.capacity; i++ {
		if c.inUse[i] {
			c.sortedIdx = append(c.sortedIdx, i)
		}
	}
	sort.Slice(c.sortedIdx, func(i, j int) bool {
		return c.slots[c.sortedIdx[i]].CodeStart < c.slots[c.sortedIdx[j]].CodeStart
	})
	c.sorted = true
}

// hasSpace reports whether another FDE can be allocated here.
func (c *chunk) hasSpace() bool { return c.firstFree != -1 }

// sameKind reports whether init is the CIE initializer this chunk was
// built with (compared by identity, as spec.md §4.D requires: "pick
// the last chunk whose CIE initializer matches cie_init").
func (c *chunk) sameKind(init CIEInit) bool {
	return reflect.ValueOf(c.initFn).Pointer() == reflect.ValueOf(init).Pointer()
}

// relocate updates every FDE whose CodeStart equals oldBase, and
// invalidates the sort order if anything changed (spec.md §4.D: "On
// GC relocation, an external callback updates the codeStart field...
// and flips the chunk's sorted flag to 0").
func (c *chunk) relocate(oldBase, newBase addr.Address) bool {
	changed := false
	for i := 0; i < c.capacity; i++ {
		if c.inUse[i] && c.slots[i].CodeStart == oldBase {
			c.slots[i].CodeStart = newBase
			changed = true
		}
	}
	if changed {
		c.sorted = false
	}
	return changed
}
