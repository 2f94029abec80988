package ir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpcodeFormat(t *testing.T) {
	for _, op := range Opcodes() {
		require.True(t, op.Valid(), op.String())
		// Every real opcode must have a format assignment; a missing
		// table entry would read as FormatNullary for a non-nullary op.
		switch op {
		case OpcodeReturn:
			require.Equal(t, FormatNullary, op.Format())
		default:
			if op.Format() == FormatNullary {
				t.Fatalf("%s has no format assigned", op)
			}
		}
	}
}

func TestOpcodeByName(t *testing.T) {
	for _, op := range Opcodes() {
		require.Equal(t, op, OpcodeByName(op.String()))
	}
	require.Equal(t, OpcodeInvalid, OpcodeByName("no_such_opcode"))
}

func TestTypeProperties(t *testing.T) {
	require.Equal(t, uint8(8), TypeI8.Bits())
	require.Equal(t, uint8(64), TypeI64.Bits())
	require.Equal(t, uint8(32), TypeF32.Bits())
	require.True(t, TypeI32.IsInt())
	require.False(t, TypeI32.IsFloat())
	require.True(t, TypeF64.IsFloat())
	require.False(t, Type(0).Valid())
}

func TestConstructorsCheckFormat(t *testing.T) {
	require.Panics(t, func() { NewBinary(OpcodeIconst, TypeI32) })
	require.Panics(t, func() { NewUnary(OpcodeIadd, TypeI64) })
	require.Panics(t, func() { NewLoad(OpcodeStore, TypeI32, 0) })
}

func TestInstructionPayload(t *testing.T) {
	ic := NewUnaryImm(OpcodeIconst, TypeI64, 0xdeadbeef)
	require.Equal(t, OpcodeIconst, ic.Opcode())
	require.Equal(t, TypeI64, ic.Ctrl())
	require.Equal(t, uint64(0xdeadbeef), ic.Imm())

	ld := NewLoad(OpcodeLoad, TypeI32, -8)
	require.Equal(t, int32(-8), ld.Offset())

	cmp := NewIntCompare(TypeI64, CondUlt)
	require.Equal(t, CondUlt, cmp.Cond())

	jmp := NewJump()
	require.Equal(t, Type(0), jmp.Ctrl())
}

func TestInstructionString(t *testing.T) {
	for _, tc := range []struct {
		inst Instruction
		want string
	}{
		{NewBinary(OpcodeIadd, TypeI64), "iadd.i64"},
		{NewUnaryImm(OpcodeIconst, TypeI32, 7), "iconst.i32 0x7"},
		{NewIntCompare(TypeI64, CondSlt), "icmp.i64 slt"},
		{NewLoad(OpcodeLoad, TypeI32, 16), "load.i32 +16"},
		{NewJump(), "jump"},
		{NewNullary(OpcodeReturn), "return"},
	} {
		require.Equal(t, tc.want, tc.inst.String())
	}
}
