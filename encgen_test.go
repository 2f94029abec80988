package encgen

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/encgen/encgen/internal/enc"
	"github.com/encgen/encgen/internal/ir"
	"github.com/encgen/encgen/internal/isa/x86"
)

func TestConfigIsImmutable(t *testing.T) {
	base := NewTargetConfig()
	with := base.WithMode32().WithPopcnt(true)

	bc, wc := base.(*targetConfig), with.(*targetConfig)
	require.Equal(t, x86.ModeX86_64, bc.mode)
	require.False(t, bc.settings.Popcnt)
	require.Equal(t, x86.ModeX86_32, wc.mode)
	require.True(t, wc.settings.Popcnt)
}

func TestWithHaswell(t *testing.T) {
	c := NewTargetConfig().WithHaswell().(*targetConfig)
	require.True(t, c.settings.Popcnt)
	require.True(t, c.settings.Lzcnt)
	require.True(t, c.settings.Bmi1)
}

func TestNewTargetEncodesAndEmits(t *testing.T) {
	target, err := NewTarget()
	require.NoError(t, err)

	add := NewBinary(ir.OpcodeIadd, ir.TypeI64)
	e, err := target.Encoding(&add)
	require.NoError(t, err)
	require.Equal(t, uint8(3), target.CodeSize(e, &add))

	var buf Buffer
	require.NoError(t, target.Emit(&buf, &add, e, RegArgs{
		Ins:  []enc.RealReg{x86.RegRAX, x86.RegRCX},
		Outs: []enc.RealReg{x86.RegRAX},
	}))
	require.Equal(t, "4801c8", hex.EncodeToString(buf.Bytes()))
}

func TestMode32Target(t *testing.T) {
	target, err := NewTargetWithConfig(NewTargetConfig().WithMode32())
	require.NoError(t, err)

	add64 := NewBinary(ir.OpcodeIadd, ir.TypeI64)
	_, err = target.Encoding(&add64)
	require.Error(t, err)
}

func TestFeatureConfigGatesEncodings(t *testing.T) {
	pop := NewUnary(ir.OpcodePopcnt, ir.TypeI64)

	base, err := NewTarget()
	require.NoError(t, err)
	_, err = base.Encoding(&pop)
	require.Error(t, err)

	full, err := NewTargetWithConfig(NewTargetConfig().WithHaswell())
	require.NoError(t, err)
	_, err = full.Encoding(&pop)
	require.NoError(t, err)
}

func TestTargetAssemblesSequence(t *testing.T) {
	// A small loop: counter in rcx, accumulator in rax.
	//
	//	xor rax, rax
	// top:
	//	add rax, rcx
	//	sub rcx, 1  (via iadd_imm -1)
	//	test rcx, rcx; jnz top
	//	ret
	target, err := NewTarget()
	require.NoError(t, err)
	var buf Buffer

	emit := func(inst Instruction, a RegArgs) {
		t.Helper()
		e, err := target.Encoding(&inst)
		require.NoError(t, err)
		require.NoError(t, target.Emit(&buf, &inst, e, a))
	}

	emit(NewUnaryImm(ir.OpcodeIconst, ir.TypeI64, 0), RegArgs{
		Outs: []enc.RealReg{x86.RegRAX},
	})
	top := buf.AllocateLabel()
	buf.Bind(top)
	emit(NewBinary(ir.OpcodeIadd, ir.TypeI64), RegArgs{
		Ins:  []enc.RealReg{x86.RegRAX, x86.RegRCX},
		Outs: []enc.RealReg{x86.RegRAX},
	})
	emit(NewBinaryImm(ir.OpcodeIaddImm, ir.TypeI64, ^uint64(0)), RegArgs{
		Ins:  []enc.RealReg{x86.RegRCX},
		Outs: []enc.RealReg{x86.RegRCX},
	})

	brnz := NewBranch(ir.OpcodeBrnz, ir.TypeI64)
	e, err := target.BranchForm(&brnz, int64(buf.Len()), 0)
	require.NoError(t, err)
	require.NoError(t, target.Emit(&buf, &brnz, e, RegArgs{
		Ins:    []enc.RealReg{x86.RegRCX},
		Target: top,
	}))
	emit(NewNullary(ir.OpcodeReturn), RegArgs{})

	require.NoError(t, buf.Finish())
	require.Equal(t,
		"31c0"+ // xor eax, eax
			"4801c8"+ // add rax, rcx
			"4883c1ff"+ // add rcx, -1
			"4885c975f4"+ // test rcx, rcx; jnz top
			"c3",
		hex.EncodeToString(buf.Bytes()))
}

func TestGenerateSource(t *testing.T) {
	src, err := GenerateSource("x86")
	require.NoError(t, err)
	out := string(src)
	require.True(t, strings.HasPrefix(out, "// Code generated by encgen"))
	require.Contains(t, out, "package x86")
	require.Contains(t, out, "var enclists")
}
