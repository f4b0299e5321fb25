package sizeof

import "testing"

// Literal from spec.md §8 scenario 3: Size(1,1) + Size(4,4) = size 8, align 4.
func TestAddLiteral(t *testing.T) {
	a := Of(1, 1)
	b := Of(4, 4)
	sum := a.Add(b)
	if sum.W32.Size != 8 || sum.W64.Size != 8 {
		t.Fatalf("got size32=%d size64=%d, want 8/8", sum.W32.Size, sum.W64.Size)
	}
	if sum.W32.Align != 4 || sum.W64.Align != 4 {
		t.Fatalf("got align32=%d align64=%d, want 4/4", sum.W32.Align, sum.W64.Align)
	}
}

// Literal translation of CodeTest/SizeTest.cpp: sInt, then += sByte twice,
// then += sInt, checking current() at each step (all widths equal here so
// Current() behaves identically on 32/64-bit builds).
func TestAddSequence(t *testing.T) {
	s := Int
	if got := s.Current().Size; got != 4 {
		t.Fatalf("Int.Current().Size = %d, want 4", got)
	}
	s = s.Add(Byte)
	if got := s.Current().Size; got != 8 {
		t.Fatalf("after += Byte, got %d, want 8", got)
	}
	s = s.Add(Byte)
	if got := s.Current().Size; got != 8 {
		t.Fatalf("after second += Byte, got %d, want 8 (absorbed by alignment)", got)
	}
	s = s.Add(Int)
	if got := s.Current().Size; got != 12 {
		t.Fatalf("after += Int, got %d, want 12", got)
	}
}

// Addition associativity does not hold in general (spec.md §8), but does
// whenever the trailing two operands share alignment.
func TestAddAssociativityCounterexample(t *testing.T) {
	a := Of(1, 1)
	b := Of(1, 4)
	c := Of(1, 8)

	left := a.Add(b).Add(c)
	right := a.Add(b.Add(c))
	if left.Equal(right) {
		t.Fatalf("expected (a+b)+c != a+(b+c) for this choice of alignments, got equal %+v", left)
	}
}

func TestAddAssociativityHoldsWithSharedAlignment(t *testing.T) {
	a := Of(3, 1)
	b := Of(2, 4)
	c := Of(5, 4)

	left := a.Add(b).Add(c)
	right := a.Add(b.Add(c))
	if !left.Equal(right) {
		t.Fatalf("expected associativity to hold when b and c share alignment: left=%+v right=%+v", left, right)
	}
}

func TestMul(t *testing.T) {
	s := Of(4, 4).Mul(3)
	if s.W32.Size != 12 || s.W32.Align != 4 {
		t.Fatalf("got %+v, want size 12 align 4", s.W32)
	}
}

func TestEqualRequiresBothWidths(t *testing.T) {
	a := Size{W32: Layout{4, 4}, W64: Layout{8, 8}}
	b := Size{W32: Layout{4, 4}, W64: Layout{4, 4}}
	if a.Equal(b) {
		t.Fatal("Size values with differing 64-bit layout must not compare equal")
	}
}

func TestOffsetRoundTrip(t *testing.T) {
	o := OffsetOf(-16).Add(OffsetOf(4))
	if o.Current() != -12 {
		t.Fatalf("got %d, want -12", o.Current())
	}
}
