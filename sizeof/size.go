// Package sizeof implements the ABI-portable size/offset algebra used
// throughout code generation: every declared size carries both its
// 32-bit and 64-bit layout so a single source of truth describes both
// ABIs at once.
//
// Grounded on code/ISize.h (the single-width accumulator: "size +=
// roundUp(size, align) + o.size") generalized to the two-width Size
// the rest of the original Code library builds on top of it.
package sizeof

import "math/bits"

// Layout is one ABI's (byte size, alignment) pair.
type Layout struct {
	Size  uint32
	Align uint32
}

// roundUp rounds n up to the next multiple of align. align must be a
// power of two; the caller is responsible for that (see spec.md §4.A).
func roundUp(n, align uint32) uint32 {
	if align <= 1 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}

func (l Layout) add(o Layout) Layout {
	if o.Size == 0 && o.Align == 0 {
		return l
	}
	return Layout{
		Size:  roundUp(l.Size, o.Align) + o.Size,
		Align: max32(l.Align, o.Align),
	}
}

func max32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

// Size is a pair of layouts, one per supported pointer width, kept in
// lock-step so that a single declaration describes the 32-bit and
// 64-bit ABIs simultaneously.
type Size struct {
	W32 Layout
	W64 Layout
}

// Of constructs a Size from a primitive width that is the same on
// both ABIs (e.g. a byte or a 4-byte int).
func Of(size, align uint32) Size {
	l := Layout{Size: size, Align: align}
	return Size{W32: l, W64: l}
}

// Common primitive sizes, mirroring code::Size::sByte / sInt / sPtr
// and friends.
var (
	Byte  = Of(1, 1)
	Int   = Of(4, 4)
	Long  = Of(8, 8)
	Float = Of(4, 4)
	// Ptr differs per ABI: 4 bytes on 32-bit, 8 bytes on 64-bit.
	Ptr = Size{W32: Layout{4, 4}, W64: Layout{8, 8}}
)

// Add implements the "a += b" size-accumulation operation: for each
// width, size <- roundUp(size, b.align) + b.size, and the
// alignment fields are updated by max. It is intentionally not called
// "+=": Size values are immutable, Add returns the sum.
func (s Size) Add(o Size) Size {
	return Size{
		W32: s.W32.add(o.W32),
		W64: s.W64.add(o.W64),
	}
}

// Mul returns s scaled by n in each width; alignment is unchanged.
func (s Size) Mul(n uint32) Size {
	return Size{
		W32: Layout{Size: s.W32.Size * n, Align: s.W32.Align},
		W64: Layout{Size: s.W64.Size * n, Align: s.W64.Align},
	}
}

// PtrBits is the width of the pointer on the platform this binary was
// built for; Current selects the corresponding layout.
const PtrBits = bits.UintSize

// Current returns the Layout for the ABI this binary was built for,
// with its byte size rounded up to its own alignment.
func (s Size) Current() Layout {
	l := s.W64
	if PtrBits == 32 {
		l = s.W32
	}
	return Layout{Size: roundUp(l.Size, l.Align), Align: l.Align}
}

// Align returns a Size with only the alignment fields populated (size
// fields zeroed); useful when a caller wants to align an offset to
// the same boundary as a Size without adding its byte count.
func (s Size) Align() Size {
	return Size{
		W32: Layout{Align: s.W32.Align},
		W64: Layout{Align: s.W64.Align},
	}
}

// Equal requires both widths to match exactly.
func (s Size) Equal(o Size) bool {
	return s.W32 == o.W32 && s.W64 == o.W64
}

// Less orders by the active (Current) width only, per spec.md §4.A.
func (s Size) Less(o Size) bool {
	return s.Current().Size < o.Current().Size
}
