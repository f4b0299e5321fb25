package sizeof

// Offset is the signed analog of Size: a frame-relative displacement
// that may be negative (locals below the frame base) or positive
// (parameters above it). Like Size, both ABI widths are tracked
// together.
type Offset struct {
	W32 int32
	W64 int64
}

// OffsetOf builds an Offset that is identical on both ABIs.
func OffsetOf(n int64) Offset {
	return Offset{W32: int32(n), W64: n}
}

// Add returns o+p.
func (o Offset) Add(p Offset) Offset {
	return Offset{W32: o.W32 + p.W32, W64: o.W64 + p.W64}
}

// Neg returns -o.
func (o Offset) Neg() Offset {
	return Offset{W32: -o.W32, W64: -o.W64}
}

// Current returns the offset for the ABI this binary was built for.
func (o Offset) Current() int64 {
	if PtrBits == 32 {
		return int64(o.W32)
	}
	return o.W64
}

// FromSize promotes a Size's current-width byte count into a
// same-width positive Offset, e.g. to advance a running layout
// cursor by the size just appended.
func FromSize(s Size) Offset {
	return Offset{W32: int32(s.W32.Size), W64: int64(s.W64.Size)}
}
