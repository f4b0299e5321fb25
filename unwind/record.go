// Package unwind implements the DWARF unwind table: a parallel index
// of exception-unwind records (FDEs) for JIT-generated code, built so
// it can be hooked into the platform unwinder's FDE-lookup callback.
//
// Grounded on gc/DwarfRecords.h (the CIE/FDE record layout and the
// CHUNK_COUNT/CIE_DATA/FDE_DATA constants) and gc/DwarfTable.h (the
// chunk pool, free list, and binary-search-with-retry lookup).
package unwind

import "github.com/coreruntime/corert/addr"

// Layout constants mirroring gc/DwarfRecords.h. FDE_DATA/CIE_DATA
// size the opaque DWARF bytecode area the code generator fills in;
// the core itself only ever touches the fixed header fields below.
const (
	ChunkCapacity = 10000
	CIEDataBytes  = 23
	FDEDataBytes  = 48
)

// CIE is a Common Information Entry: parameters shared by every FDE
// in a chunk, written once by the caller-supplied init function and
// immutable thereafter.
type CIE struct {
	Length  uint32
	ID      uint32 // always 0 for a CIE
	Version byte
	Data    [CIEDataBytes]byte
}

// CIEInit initializes a freshly allocated CIE's opaque Data (and
// Version, if it cares to). Two allocations sharing the same CIEInit
// function (by identity) may share a chunk; otherwise a new chunk is
// required, because only one CIE can be resident per chunk.
type CIEInit func(cie *CIE)

// FDE is a Frame Description Entry: everything needed to unwind one
// function's stack frame. The core owns CodeStart/CodeSize/AugSize,
// held as separate fields ahead of Data; Data is opaque DWARF
// bytecode the code generator fills in separately.
type FDE struct {
	Length    uint32
	CIEOffset int32 // distance back to the owning CIE, counted in FDE slots (slot index + 1)
	CodeStart addr.Address
	CodeSize  uint64
	AugSize   byte
	Data      [FDEDataBytes]byte
}

// Contains reports whether pc falls within the code region this FDE
// describes.
func (f *FDE) Contains(pc addr.Address) bool {
	return pc.In(f.CodeStart, f.CodeSize)
}
