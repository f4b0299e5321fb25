package frame

import (
	"github.com/coreruntime/corert/addr"
	"github.com/coreruntime/corert/sizeof"
)

// StackFrame is the transient record an Owner's cleanup code sees: an
// active part and a frame-base pointer. It lives only on the stack
// during personality execution (spec.md §3).
type StackFrame struct {
	Part Part
	Base addr.Address
}

// At converts a frame-relative offset into an absolute address. This
// is the sole surface Owner objects use during cleanup; the concrete
// offsets are emitted by the code generator and recorded alongside
// the PartTable (spec.md §4.E).
func (f StackFrame) At(off sizeof.Offset) addr.Address {
	return f.Base.Add(off.Current())
}

// Trailer is the logical equivalent of code/X64/PosixEh.cpp's FnData:
// the fixed record a code block's metadata carries. spec.md §6 pins
// this down as a bit-exact memory layout for interop with a native
// unwinder; since this module never emits real machine code (that's
// explicitly out of scope, spec.md §1), Trailer only needs to carry
// the same logical fields for the personality and DWARF table to
// consume, not reproduce the raw byte layout.
type Trailer struct {
	PartCount uint32
	Owner     OwnerID
	Parts     Table
}

// OwnerID names the Owner object responsible for a code block's catch
// and cleanup descriptors. Kept abstract (rather than, say, a raw
// pointer) because the personality package is the only place that
// needs to resolve it back to a concrete Owner.
type OwnerID uint64
