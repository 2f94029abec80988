package x86

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/encgen/encgen/internal/asm"
	"github.com/encgen/encgen/internal/enc"
	"github.com/encgen/encgen/internal/ir"
)

func newTarget(t *testing.T, mode enc.Mode, s Settings) *Target {
	target, err := NewTarget(mode, s)
	require.NoError(t, err)
	return target
}

// recipeNames drains the iterator and returns the recipe name sequence.
func recipeNames(target *Target, inst *ir.Instruction) []string {
	var names []string
	it := target.Encodings(inst)
	for {
		e, ok := it.Next()
		if !ok {
			return names
		}
		names = append(names, target.Tables().Recipes[e.Recipe()].Name)
	}
}

func TestNewTargetUnknownMode(t *testing.T) {
	_, err := NewTarget(enc.Mode(9), Baseline())
	require.Error(t, err)
}

func TestEncodingSelection(t *testing.T) {
	target := newTarget(t, ModeX86_64, Baseline())

	for _, tc := range []struct {
		inst ir.Instruction
		want []string
	}{
		{ir.NewBinary(ir.OpcodeIadd, ir.TypeI64), []string{"rr"}},
		{ir.NewBinary(ir.OpcodeImul, ir.TypeI32), []string{"rrx"}},
		{ir.NewBinaryImm(ir.OpcodeIaddImm, ir.TypeI64, 5), []string{"rib", "rid"}},
		{ir.NewBinaryImm(ir.OpcodeIaddImm, ir.TypeI64, 500), []string{"rid"}},
		// A 64-bit immediate beyond the int32 range has no group-1 form.
		{ir.NewBinaryImm(ir.OpcodeBandImm, ir.TypeI64, 1 << 40), nil},
		{ir.NewUnary(ir.OpcodeBnot, ir.TypeI64), []string{"ur"}},
		{ir.NewBinary(ir.OpcodeIshl, ir.TypeI32), []string{"rc"}},
		{ir.NewUnary(ir.OpcodeCopy, ir.TypeI64), []string{"umr"}},
		{ir.NewUnary(ir.OpcodeCopy, ir.TypeF64), []string{"furm"}},
		{ir.NewIntCompare(ir.TypeI32, ir.CondEq), []string{"icscc"}},
		{ir.NewBinary(ir.OpcodeFadd, ir.TypeF32), []string{"fa"}},
		{ir.NewUnary(ir.OpcodeSqrt, ir.TypeF64), []string{"fsqrt"}},
		{ir.NewJump(), []string{"jmpb", "jmpd"}},
		{ir.NewBranch(ir.OpcodeBrz, ir.TypeI64), []string{"tjccb", "tjccd"}},
		{ir.NewCall(ir.OpcodeCall), []string{"call_id"}},
		{ir.NewCall(ir.OpcodeCallIndirect), []string{"call_r"}},
		{ir.NewNullary(ir.OpcodeReturn), []string{"ret"}},
	} {
		require.Equal(t, tc.want, recipeNames(target, &tc.inst), tc.inst.String())
	}
}

// The iconst alternatives are ordered cheapest first; guards narrow the
// list as the immediate grows.
func TestIconstSelection(t *testing.T) {
	target := newTarget(t, ModeX86_64, Baseline())

	for _, tc := range []struct {
		imm  uint64
		want []string
	}{
		{0, []string{"u_id_z", "pu_id", "u_id_s", "pu_iq"}},
		{1, []string{"pu_id", "u_id_s", "pu_iq"}},
		{0xffffffff, []string{"pu_id", "pu_iq"}}, // not i32, still u32
		{0xffffffff88888888, []string{"u_id_s", "pu_iq"}},
		{0x123456789abcdef0, []string{"pu_iq"}},
	} {
		inst := ir.NewUnaryImm(ir.OpcodeIconst, ir.TypeI64, tc.imm)
		require.Equal(t, tc.want, recipeNames(target, &inst), "imm %#x", tc.imm)
	}
}

func TestLoadDisplacementSelection(t *testing.T) {
	target := newTarget(t, ModeX86_64, Baseline())

	for _, tc := range []struct {
		offset int32
		want   []string
	}{
		{0, []string{"ld", "ld_disp8", "ld_disp32"}},
		{16, []string{"ld_disp8", "ld_disp32"}},
		{-128, []string{"ld_disp8", "ld_disp32"}},
		{0x12345678, []string{"ld_disp32"}},
	} {
		inst := ir.NewLoad(ir.OpcodeLoad, ir.TypeI64, tc.offset)
		require.Equal(t, tc.want, recipeNames(target, &inst), "offset %d", tc.offset)
	}
}

func TestFeatureGating(t *testing.T) {
	clz := ir.NewUnary(ir.OpcodeClz, ir.TypeI64)
	ctz := ir.NewUnary(ir.OpcodeCtz, ir.TypeI64)
	pop := ir.NewUnary(ir.OpcodePopcnt, ir.TypeI64)

	base := newTarget(t, ModeX86_64, Baseline())
	for _, inst := range []*ir.Instruction{&clz, &ctz, &pop} {
		_, err := base.Encoding(inst)
		require.ErrorIs(t, err, ErrNoEncoding, inst.String())
	}

	full := newTarget(t, ModeX86_64, Haswell())
	for _, inst := range []*ir.Instruction{&clz, &ctz, &pop} {
		e, err := full.Encoding(inst)
		require.NoError(t, err, inst.String())
		require.Equal(t, "bitcnt", full.Tables().Recipes[e.Recipe()].Name)
	}

	// Each instruction is gated on its own feature bit.
	popOnly := newTarget(t, ModeX86_64, Settings{Popcnt: true})
	_, err := popOnly.Encoding(&pop)
	require.NoError(t, err)
	_, err = popOnly.Encoding(&clz)
	require.ErrorIs(t, err, ErrNoEncoding)
}

func TestMode32Subset(t *testing.T) {
	target := newTarget(t, ModeX86_32, Baseline())

	// 32-bit integer and float ops are present.
	iadd := ir.NewBinary(ir.OpcodeIadd, ir.TypeI32)
	_, err := target.Encoding(&iadd)
	require.NoError(t, err)
	fadd := ir.NewBinary(ir.OpcodeFadd, ir.TypeF64)
	_, err = target.Encoding(&fadd)
	require.NoError(t, err)

	// 64-bit integers must be narrowed.
	iadd64 := ir.NewBinary(ir.OpcodeIadd, ir.TypeI64)
	_, err = target.Encoding(&iadd64)
	require.ErrorIs(t, err, ErrNoEncoding)
	require.Contains(t, err.Error(), "narrow")

	// Narrow types widen in both modes.
	iadd8 := ir.NewBinary(ir.OpcodeIadd, ir.TypeI8)
	_, err = target.Encoding(&iadd8)
	require.ErrorIs(t, err, ErrNoEncoding)
	require.Contains(t, err.Error(), "widen")
}

func TestBranchForm(t *testing.T) {
	target := newTarget(t, ModeX86_64, Baseline())
	jump := ir.NewJump()

	near, err := target.BranchForm(&jump, 100, 50)
	require.NoError(t, err)
	require.Equal(t, "jmpb", target.Tables().Recipes[near.Recipe()].Name)

	far, err := target.BranchForm(&jump, 0, 10000)
	require.NoError(t, err)
	require.Equal(t, "jmpd", target.Tables().Recipes[far.Recipe()].Name)

	// Exactly at the rel8 boundary.
	edge, err := target.BranchForm(&jump, 0, 129)
	require.NoError(t, err)
	require.Equal(t, "jmpb", target.Tables().Recipes[edge.Recipe()].Name)
	past, err := target.BranchForm(&jump, 0, 130)
	require.NoError(t, err)
	require.Equal(t, "jmpd", target.Tables().Recipes[past.Recipe()].Name)

	// Non-branch instructions have no branch form at all.
	add := ir.NewBinary(ir.OpcodeIadd, ir.TypeI64)
	_, err = target.BranchForm(&add, 0, 0)
	require.ErrorIs(t, err, ErrNoEncoding)
}

func TestEmitChecksConstraints(t *testing.T) {
	target := newTarget(t, ModeX86_64, Baseline())
	var buf asm.Buffer

	add := ir.NewBinary(ir.OpcodeIadd, ir.TypeI64)
	e, err := target.Encoding(&add)
	require.NoError(t, err)

	// Output not tied to input 0.
	err = target.Emit(&buf, &add, e, RegArgs{
		Ins:  []enc.RealReg{RegRAX, RegRCX},
		Outs: []enc.RealReg{RegRDX},
	})
	require.ErrorIs(t, err, enc.ErrConstraint)

	// Wrong register class.
	err = target.Emit(&buf, &add, e, RegArgs{
		Ins:  []enc.RealReg{RegXMM0, RegRCX},
		Outs: []enc.RealReg{RegXMM0},
	})
	require.ErrorIs(t, err, enc.ErrConstraint)

	// Shift count must be in cl.
	shl := ir.NewBinary(ir.OpcodeIshl, ir.TypeI64)
	e, err = target.Encoding(&shl)
	require.NoError(t, err)
	err = target.Emit(&buf, &shl, e, RegArgs{
		Ins:  []enc.RealReg{RegRAX, RegRDX},
		Outs: []enc.RealReg{RegRAX},
	})
	require.ErrorIs(t, err, enc.ErrConstraint)

	err = target.Emit(&buf, &shl, e, RegArgs{
		Ins:  []enc.RealReg{RegRAX, RegRCX},
		Outs: []enc.RealReg{RegRAX},
	})
	require.NoError(t, err)
}

func TestClassOf(t *testing.T) {
	require.Equal(t, classGPR, ClassOf(RegRAX))
	require.Equal(t, classGPR, ClassOf(RegR15))
	require.Equal(t, classFPR, ClassOf(RegXMM0))
	require.Equal(t, classFPR, ClassOf(RegXMM15))
	require.Equal(t, "rax", RegName(RegRAX))
	require.Equal(t, "xmm15", RegName(RegXMM15))
}

func TestTablesShareTypelessLists(t *testing.T) {
	tables, err := Tables()
	require.NoError(t, err)
	require.Equal(t, 2, len(tables.Level1))

	// Both modes declare identical typeless encodings, so the shared
	// level-2 table is stored once.
	find := func(mode enc.Mode) enc.Level1Entry {
		for _, e := range tables.Level1[mode] {
			if e.Key == 0 {
				return e
			}
		}
		t.Fatalf("mode %d has no typeless entry", mode)
		return enc.Level1Entry{}
	}
	require.Equal(t, find(0).L2Offset, find(1).L2Offset)
}
