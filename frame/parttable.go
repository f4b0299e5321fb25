// Package frame implements the stack-frame model: the per-function
// activation-record descriptor (PartTable) and the StackFrame value
// Owner objects use during cleanup.
//
// Grounded on code/X64/PosixEh.cpp's FnData/FnPart/PartCompare/
// stormFindPart (the concrete part-table layout and lookup) and
// spec.md §4.E/§6.
package frame

import (
	"sort"
)

// Part identifies a lexical scope nested in a managed function.
type Part uint32

// Invalid is the sentinel part returned when no part is active, e.g.
// inside a function prologue before the frame base is established.
const Invalid Part = ^Part(0)

// Entry is one row of a function's PartTable: the code offset at
// which Part becomes active, mirroring code::FnPart{offset, part}.
type Entry struct {
	Offset uint32
	Part   Part
}

// Table is a function's PartTable: entries sorted strictly ascending
// by Offset.
type Table []Entry

// ActivePart returns the part active at the given offset into the
// function. An exact match on an entry's Offset is treated as "not
// yet entered" (pc points at the next instruction to execute, per
// spec.md §4.E), so the active part is the entry with the greatest
// Offset strictly less than offsetIntoFn.
func (t Table) ActivePart(offsetIntoFn uint32) Part {
	idx := sort.Search(len(t), func(i int) bool {
		return t[i].Offset >= offsetIntoFn
	})
	if idx == 0 {
		return Invalid
	}
	return t[idx-1].Part
}
