package enc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/encgen/encgen/internal/ir"
)

// testTables builds a one-mode table bundle by hand: a single controlling
// type (i32) with a single opcode (iadd_imm) whose list is
//
//	[inst-pred imm_fits_i8, skip 2] [entry recipe 5, bits 0xaaaa]
//	[isa-pred bit 1, skip 2]        [entry recipe 7, bits 0xbbbb]
//	[stop]
//
// Both the level-1 and level-2 tables have a single slot, so every probe
// sequence degenerates to slot 0.
func testTables() *Tables {
	return &Tables{
		Name: "test",
		Enclists: []uint16{
			ListTagInstPred<<ListTagShift | 2<<ListSkipShift | 0,
			ListTagEntry<<ListTagShift | 5, 0xaaaa,
			ListTagIsaPred<<ListTagShift | 2<<ListSkipShift | 1,
			ListTagEntry<<ListTagShift | 7, 0xbbbb,
			ListStopWord,
		},
		Level1: [][]Level1Entry{{
			{Key: uint8(ir.TypeI32), Legalize: LegalizeWiden, L2Mask: 0, L2Offset: 0},
		}},
		ModeDefault: []LegalizeAction{LegalizeExpand},
		Level2: []Level2Entry{
			{Key: uint16(ir.OpcodeIaddImm), Offset: 0},
		},
		InstPreds: []InstPred{
			func(i *ir.Instruction) bool { v := int64(i.Imm()); return v == int64(int8(v)) },
		},
		PredNames: []string{"imm_fits_i8"},
		Settings:  []string{"bit0", "feature"},
	}
}

func collect(it EncodingIterator) []Encoding {
	var ret []Encoding
	for {
		e, ok := it.Next()
		if !ok {
			return ret
		}
		ret = append(ret, e)
	}
}

func TestLookupYieldsGuardedEntries(t *testing.T) {
	tables := testTables()
	featureOn := Flags(1 << 1)

	for _, tc := range []struct {
		name  string
		imm   uint64
		flags Flags
		want  []Encoding
	}{
		{
			name: "all guards pass", imm: 5, flags: featureOn,
			want: []Encoding{NewEncoding(5, 0xaaaa), NewEncoding(7, 0xbbbb)},
		},
		{
			name: "inst pred fails", imm: 500, flags: featureOn,
			want: []Encoding{NewEncoding(7, 0xbbbb)},
		},
		{
			name: "isa pred fails", imm: 5, flags: 0,
			want: []Encoding{NewEncoding(5, 0xaaaa)},
		},
		{
			name: "all guards fail", imm: 500, flags: 0,
			want: nil,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			inst := ir.NewBinaryImm(ir.OpcodeIaddImm, ir.TypeI32, tc.imm)
			it := tables.Lookup(0, &inst, tc.flags)
			require.Equal(t, tc.want, collect(it))
			require.Equal(t, LegalizeWiden, it.Legalize())
		})
	}
}

func TestLookupUnknownType(t *testing.T) {
	tables := testTables()
	inst := ir.NewBinaryImm(ir.OpcodeIaddImm, ir.TypeI64, 1)
	it := tables.Lookup(0, &inst, 0)
	require.Equal(t, 0, len(collect(it)))
	// Unknown types fall back to the mode default action.
	require.Equal(t, LegalizeExpand, it.Legalize())
}

func TestLookupUnknownOpcode(t *testing.T) {
	tables := testTables()
	inst := ir.NewBinaryImm(ir.OpcodeBandImm, ir.TypeI32, 1)
	it := tables.Lookup(0, &inst, 0)
	require.Equal(t, 0, len(collect(it)))
	// Known type without the opcode keeps the type's action.
	require.Equal(t, LegalizeWiden, it.Legalize())
}

func TestLookupTypeWithoutOpcodes(t *testing.T) {
	tables := testTables()
	tables.Level1[0][0].L2Offset = Level2OffsetNone
	inst := ir.NewBinaryImm(ir.OpcodeIaddImm, ir.TypeI32, 1)
	it := tables.Lookup(0, &inst, 0)
	require.Equal(t, 0, len(collect(it)))
	require.Equal(t, LegalizeWiden, it.Legalize())
}

func TestLookupUndefinedModePanics(t *testing.T) {
	tables := testTables()
	inst := ir.NewBinaryImm(ir.OpcodeIaddImm, ir.TypeI32, 1)
	require.Panics(t, func() { tables.Lookup(3, &inst, 0) })
}

func TestIteratorZeroValue(t *testing.T) {
	var it EncodingIterator
	_, ok := it.Next()
	require.False(t, ok)
}

func TestFirst(t *testing.T) {
	tables := testTables()
	inst := ir.NewBinaryImm(ir.OpcodeIaddImm, ir.TypeI32, 1)
	e, ok := tables.Lookup(0, &inst, 0).First()
	require.True(t, ok)
	require.Equal(t, NewEncoding(5, 0xaaaa), e)
}
