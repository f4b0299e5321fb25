package gcabi

import "github.com/coreruntime/corert/addr"

// Simulator is an in-process stand-in for a real relocating GC, used
// by tests and by the corectl demo commands to exercise the code
// index and DWARF table's relocation-tolerance without needing an
// actual collector. It tracks a set of code-block ranges and can
// "relocate" one, which notifies every watch that has observed the
// old base address.
type Simulator struct {
	blocks map[addr.Address]uint64 // base -> size
	watches []*simWatch
}

// NewSimulator creates an empty simulator.
func NewSimulator() *Simulator {
	return &Simulator{blocks: make(map[addr.Address]uint64)}
}

// Register tells the simulator about a code block, so IsCodeAlloc and
// CodeSize answer for it.
func (s *Simulator) Register(base addr.Address, size uint64) {
	s.blocks[base] = size
}

// Relocate moves a previously registered block from oldBase to
// newBase (keeping its size), and marks it moved in every watch that
// was observing oldBase.
func (s *Simulator) Relocate(oldBase, newBase addr.Address) {
	size, ok := s.blocks[oldBase]
	if !ok {
		return
	}
	delete(s.blocks, oldBase)
	s.blocks[newBase] = size
	for _, w := range s.watches {
		w.noteMoved(oldBase)
	}
}

func (s *Simulator) IsCodeAlloc(a addr.Address) bool {
	_, ok := s.blocks[a]
	return ok
}

func (s *Simulator) CodeSize(base addr.Address) uint64 {
	return s.blocks[base]
}

func (s *Simulator) CreateWatch() Watch {
	w := &simWatch{watched: make(map[addr.Address]bool)}
	s.watches = append(s.watches, w)
	return w
}

func (s *Simulator) CreateRoot(ptrs []*addr.Address) Root {
	return noopRoot{}
}

type noopRoot struct{}

func (noopRoot) Destroy() {}

type simWatch struct {
	watched map[addr.Address]bool
	moved   bool
	tag     bool
}

func (w *simWatch) Add(a addr.Address)    { w.watched[a] = true }
func (w *simWatch) Remove(a addr.Address) { delete(w.watched, a) }
func (w *simWatch) Clear() {
	w.watched = make(map[addr.Address]bool)
	w.moved = false
}
func (w *simWatch) Moved() bool  { return w.moved || w.tag }
func (w *simWatch) Tagged() bool { return w.tag }

func (w *simWatch) noteMoved(a addr.Address) {
	if w.watched[a] {
		w.moved = true
	}
}
