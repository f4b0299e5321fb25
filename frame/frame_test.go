package frame

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreruntime/corert/addr"
	"github.com/coreruntime/corert/sizeof"
)

// Literal scenario from spec.md §8 #2.
func TestActivePartLiteralScenario(t *testing.T) {
	table := Table{
		{Offset: 0x0A, Part: Invalid},
		{Offset: 0x20, Part: 1},
		{Offset: 0x40, Part: 2},
	}

	cases := []struct {
		offset uint32
		want   Part
	}{
		{0x05, Invalid},
		{0x20, Invalid}, // exact match: not yet entered
		{0x21, 1},
		{0x40, 1}, // exact match on the next entry: still part 1
		{0x41, 2},
	}
	for _, c := range cases {
		got := table.ActivePart(c.offset)
		require.Equalf(t, c.want, got, "offset=0x%x", c.offset)
	}
}

func TestActivePartEmptyTable(t *testing.T) {
	require.Equal(t, Invalid, Table(nil).ActivePart(100))
}

func TestStackFrameAt(t *testing.T) {
	f := StackFrame{Part: 1, Base: addr.Address(0x2000)}
	require.Equal(t, addr.Address(0x2000-16), f.At(sizeof.OffsetOf(-16)))
	require.Equal(t, addr.Address(0x2000+8), f.At(sizeof.OffsetOf(8)))
}

func TestTrailerCarriesOwnerAndParts(t *testing.T) {
	tr := Trailer{
		PartCount: 2,
		Owner:     OwnerID(7),
		Parts: Table{
			{Offset: 0x10, Part: 1},
			{Offset: 0x20, Part: 2},
		},
	}
	require.Equal(t, Part(1), tr.Parts.ActivePart(0x15))
	require.Equal(t, OwnerID(7), tr.Owner)
}
