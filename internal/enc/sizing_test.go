package enc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/encgen/encgen/internal/ir"
)

func TestBranchRangeInRange(t *testing.T) {
	br := BranchRange{Origin: 2, Bits: 8}
	require.True(t, br.IsBranch())

	// The displacement is relative to the end of the instruction.
	require.True(t, br.InRange(0, 0))
	require.True(t, br.InRange(0, 129))   // d = 127
	require.False(t, br.InRange(0, 130))  // d = 128
	require.True(t, br.InRange(0, -126))  // d = -128
	require.False(t, br.InRange(0, -127)) // d = -129
	require.True(t, br.InRange(1000, 1000))

	var none BranchRange
	require.False(t, none.IsBranch())
	require.False(t, none.InRange(0, 0))
}

func TestCodeSize(t *testing.T) {
	tables := &Tables{
		Recipes: []RecipeMeta{
			{Name: "fixed", Sizing: RecipeSizing{BaseSize: 3}},
			{Name: "computed", Sizing: RecipeSizing{
				BaseSize: 1,
				Compute: func(bits uint16, inst *ir.Instruction) uint8 {
					if inst.Imm() > 0xff {
						return 5
					}
					return 2
				},
			}},
		},
	}

	inst := ir.NewUnaryImm(ir.OpcodeIconst, ir.TypeI32, 7)
	require.Equal(t, uint8(3), tables.CodeSize(NewEncoding(0, 0), &inst))
	require.Equal(t, uint8(2), tables.CodeSize(NewEncoding(1, 0), &inst))

	big := ir.NewUnaryImm(ir.OpcodeIconst, ir.TypeI32, 0x1000)
	require.Equal(t, uint8(5), tables.CodeSize(NewEncoding(1, 0), &big))
}

func TestBranchRangeOf(t *testing.T) {
	tables := &Tables{
		Recipes: []RecipeMeta{
			{Name: "jmpb", Sizing: RecipeSizing{BaseSize: 2, Range: BranchRange{Origin: 2, Bits: 8}}},
			{Name: "rr", Sizing: RecipeSizing{BaseSize: 3}},
		},
	}
	require.Equal(t, BranchRange{Origin: 2, Bits: 8}, tables.BranchRangeOf(NewEncoding(0, 0)))
	require.False(t, tables.BranchRangeOf(NewEncoding(1, 0)).IsBranch())
}

func TestEncodingPacking(t *testing.T) {
	e := NewEncoding(0x1234, 0xabcd)
	require.Equal(t, uint16(0x1234), e.Recipe())
	require.Equal(t, uint16(0xabcd), e.Bits())
	require.True(t, e.IsLegal())
	require.False(t, EncodingInvalid.IsLegal())
}
