package x86

import (
	"errors"

	"github.com/encgen/encgen/internal/asm"
	"github.com/encgen/encgen/internal/enc"
	"github.com/encgen/encgen/internal/ir"
)

// ErrRequiresRex is returned when an x86-32 mode emission would need a REX
// prefix, i.e. uses an extended register or a 64-bit operand size.
var ErrRequiresRex = errors.New("encoding requires a REX prefix, unavailable in 32-bit mode")

// Encoding bits layout, shared by the definition in defs.go and the
// emitters here:
//
//	[7:0]   last opcode byte
//	[10:8]  ModRM reg digit for /n opcodes
//	[11]    REX.W
//	[13:12] opcode map: 0 one-byte, 1 0F, 2 0F38
//	[15:14] mandatory prefix: 0 none, 1 66, 2 F3, 3 F2
type ebits uint16

func op1(op byte) ebits { return ebits(op) }

func op0f(op byte) ebits { return ebits(op) | 1<<12 }

func (e ebits) w() ebits { return e | 1<<11 }

func (e ebits) digit(d byte) ebits { return e | ebits(d&7)<<8 }

func (e ebits) pf3() ebits { return e | 2<<14 }

func (e ebits) pf2() ebits { return e | 3<<14 }

func bitsOpcode(bits uint16) byte { return byte(bits) }
func bitsDigit(bits uint16) byte  { return byte(bits>>8) & 7 }
func bitsW(bits uint16) bool      { return bits&(1<<11) != 0 }
func bitsMap(bits uint16) byte    { return byte(bits>>12) & 3 }
func bitsPP(bits uint16) byte     { return byte(bits >> 14) }

// RegArgs carries the register assignment and, for branch and call
// recipes, the target label of one instruction being emitted.
type RegArgs struct {
	Ins    []enc.RealReg
	Outs   []enc.RealReg
	Target asm.Label
}

func (a RegArgs) assignment() enc.Assignment {
	return enc.Assignment{Ins: a.Ins, Outs: a.Outs}
}

// emitFn emits one recipe. The recipe index spaces of the tables and of
// the emitter slice are kept aligned by the definition builder.
type emitFn func(e *emitter, bits uint16, inst *ir.Instruction, a RegArgs) error

// emitter bundles the destination buffer with the cpu mode, which decides
// whether REX prefixes may be emitted at all.
type emitter struct {
	buf    *asm.Buffer
	mode64 bool
}

func encodeModRM(mod, reg, rm byte) byte { return mod<<6 | reg<<3 | rm }

// emitPrefixes writes the mandatory prefix and, if needed, the REX prefix.
// reg and rm feed the REX.R and REX.B bits. forceRex requests an empty REX
// prefix, which byte-register operands in sil/dil/spl/bpl need.
func (e *emitter) emitPrefixes(bits uint16, reg, rm regEnc, forceRex bool) error {
	switch bitsPP(bits) {
	case 1:
		e.buf.EmitByte(0x66)
	case 2:
		e.buf.EmitByte(0xf3)
	case 3:
		e.buf.EmitByte(0xf2)
	}

	rex := byte(0x40) | reg.rexBit()<<2 | rm.rexBit()
	if bitsW(bits) {
		rex |= 0x08
	}
	if rex != 0x40 || forceRex {
		if !e.mode64 {
			return ErrRequiresRex
		}
		e.buf.EmitByte(rex)
	}
	return nil
}

// emitOp writes prefixes, the opcode map escape bytes, and the last opcode
// byte; callers emit ModRM themselves.
func (e *emitter) emitOp(bits uint16, reg, rm regEnc, forceRex bool) error {
	if err := e.emitPrefixes(bits, reg, rm, forceRex); err != nil {
		return err
	}
	e.emitMapAndOpcode(bits)
	return nil
}

func (e *emitter) emitMapAndOpcode(bits uint16) {
	switch bitsMap(bits) {
	case 1:
		e.buf.EmitByte(0x0f)
	case 2:
		e.buf.EmitByte(0x0f)
		e.buf.EmitByte(0x38)
	}
	e.buf.EmitByte(bitsOpcode(bits))
}

// emitMem writes the ModRM, optional SIB, and displacement for a
// [base+disp] operand. rsp and r12 need a SIB byte; rbp and r13 cannot use
// the no-displacement form because that slot means RIP-relative.
func (e *emitter) emitMem(reg regEnc, base regEnc, disp int32) {
	const sibNone = 0x24 // scale 0, index 0b100 (none), base 0b100 (rsp/r12)

	needSIB := base.lo3() == 0b100
	noDisp := disp == 0 && base.lo3() != 0b101

	switch {
	case noDisp:
		e.buf.EmitByte(encodeModRM(0b00, reg.lo3(), base.lo3()))
		if needSIB {
			e.buf.EmitByte(sibNone)
		}
	case disp >= -128 && disp <= 127:
		e.buf.EmitByte(encodeModRM(0b01, reg.lo3(), base.lo3()))
		if needSIB {
			e.buf.EmitByte(sibNone)
		}
		e.buf.EmitByte(byte(disp))
	default:
		e.buf.EmitByte(encodeModRM(0b10, reg.lo3(), base.lo3()))
		if needSIB {
			e.buf.EmitByte(sibNone)
		}
		e.buf.Emit4Bytes(uint32(disp))
	}
}

// byteRegNeedsRex reports whether using r as an 8-bit operand requires an
// empty REX prefix: without it, encodings 4..7 mean ah/ch/dh/bh.
func byteRegNeedsRex(r regEnc) bool {
	return r >= 4 && r <= 7
}

// ccOf maps an IR condition to the x86 condition code nibble.
func ccOf(c ir.Cond) byte {
	switch c {
	case ir.CondEq:
		return 0x4
	case ir.CondNe:
		return 0x5
	case ir.CondSlt:
		return 0xc
	case ir.CondSge:
		return 0xd
	case ir.CondSgt:
		return 0xf
	case ir.CondSle:
		return 0xe
	case ir.CondUlt:
		return 0x2
	case ir.CondUge:
		return 0x3
	case ir.CondUgt:
		return 0x7
	case ir.CondUle:
		return 0x6
	default:
		panic("BUG: invalid condition")
	}
}

// The emitters. Naming follows the recipes in defs.go.

// emitRR: store-form ALU op, ModRM.rm is the tied destination and
// ModRM.reg the second source.
func emitRR(e *emitter, bits uint16, _ *ir.Instruction, a RegArgs) error {
	dst, src := gpEnc(a.Ins[0]), gpEnc(a.Ins[1])
	if err := e.emitOp(bits, src, dst, false); err != nil {
		return err
	}
	e.buf.EmitByte(encodeModRM(0b11, src.lo3(), dst.lo3()))
	return nil
}

// emitRRX: load-form ALU op (imul), ModRM.reg is the tied destination.
func emitRRX(e *emitter, bits uint16, _ *ir.Instruction, a RegArgs) error {
	dst, src := gpEnc(a.Ins[0]), gpEnc(a.Ins[1])
	if err := e.emitOp(bits, dst, src, false); err != nil {
		return err
	}
	e.buf.EmitByte(encodeModRM(0b11, dst.lo3(), src.lo3()))
	return nil
}

// emitRIB: ALU group-1 with a sign-extended 8-bit immediate.
func emitRIB(e *emitter, bits uint16, inst *ir.Instruction, a RegArgs) error {
	dst := gpEnc(a.Ins[0])
	if err := e.emitOp(bits, 0, dst, false); err != nil {
		return err
	}
	e.buf.EmitByte(encodeModRM(0b11, bitsDigit(bits), dst.lo3()))
	e.buf.EmitByte(byte(inst.Imm()))
	return nil
}

// emitRID: ALU group-1 with a 32-bit immediate.
func emitRID(e *emitter, bits uint16, inst *ir.Instruction, a RegArgs) error {
	dst := gpEnc(a.Ins[0])
	if err := e.emitOp(bits, 0, dst, false); err != nil {
		return err
	}
	e.buf.EmitByte(encodeModRM(0b11, bitsDigit(bits), dst.lo3()))
	e.buf.Emit4Bytes(uint32(inst.Imm()))
	return nil
}

// emitUR: F7-group unary op on a tied register.
func emitUR(e *emitter, bits uint16, _ *ir.Instruction, a RegArgs) error {
	dst := gpEnc(a.Ins[0])
	if err := e.emitOp(bits, 0, dst, false); err != nil {
		return err
	}
	e.buf.EmitByte(encodeModRM(0b11, bitsDigit(bits), dst.lo3()))
	return nil
}

// emitRC: D3-group shift by cl.
func emitRC(e *emitter, bits uint16, _ *ir.Instruction, a RegArgs) error {
	dst := gpEnc(a.Ins[0])
	if err := e.emitOp(bits, 0, dst, false); err != nil {
		return err
	}
	e.buf.EmitByte(encodeModRM(0b11, bitsDigit(bits), dst.lo3()))
	return nil
}

// emitUMR: register copy, store form.
func emitUMR(e *emitter, bits uint16, _ *ir.Instruction, a RegArgs) error {
	src, dst := gpEnc(a.Ins[0]), gpEnc(a.Outs[0])
	if err := e.emitOp(bits, src, dst, false); err != nil {
		return err
	}
	e.buf.EmitByte(encodeModRM(0b11, src.lo3(), dst.lo3()))
	return nil
}

// emitFURM: xmm-to-xmm copy, load form.
func emitFURM(e *emitter, bits uint16, _ *ir.Instruction, a RegArgs) error {
	src, dst := xmmEnc(a.Ins[0]), xmmEnc(a.Outs[0])
	if err := e.emitOp(bits, dst, src, false); err != nil {
		return err
	}
	e.buf.EmitByte(encodeModRM(0b11, dst.lo3(), src.lo3()))
	return nil
}

// emitPuId: mov with a zero-extended 32-bit immediate, B8+rd form.
func emitPuId(e *emitter, bits uint16, inst *ir.Instruction, a RegArgs) error {
	dst := gpEnc(a.Outs[0])
	if err := e.emitPrefixes(bits, 0, dst, false); err != nil {
		return err
	}
	e.buf.EmitByte(bitsOpcode(bits) | dst.lo3())
	e.buf.Emit4Bytes(uint32(inst.Imm()))
	return nil
}

// emitUIdS: mov with a sign-extended 32-bit immediate, C7 /0 REX.W form.
func emitUIdS(e *emitter, bits uint16, inst *ir.Instruction, a RegArgs) error {
	dst := gpEnc(a.Outs[0])
	if err := e.emitOp(bits, 0, dst, false); err != nil {
		return err
	}
	e.buf.EmitByte(encodeModRM(0b11, bitsDigit(bits), dst.lo3()))
	e.buf.Emit4Bytes(uint32(inst.Imm()))
	return nil
}

// emitPuIq: movabs with a full 64-bit immediate.
func emitPuIq(e *emitter, bits uint16, inst *ir.Instruction, a RegArgs) error {
	dst := gpEnc(a.Outs[0])
	if err := e.emitPrefixes(bits, 0, dst, false); err != nil {
		return err
	}
	e.buf.EmitByte(bitsOpcode(bits) | dst.lo3())
	e.buf.Emit8Bytes(inst.Imm())
	return nil
}

// emitUIdZ: materialize zero by xoring the destination with itself. The
// 32-bit form zeroes the whole register.
func emitUIdZ(e *emitter, bits uint16, _ *ir.Instruction, a RegArgs) error {
	dst := gpEnc(a.Outs[0])
	if err := e.emitOp(bits, dst, dst, false); err != nil {
		return err
	}
	e.buf.EmitByte(encodeModRM(0b11, dst.lo3(), dst.lo3()))
	return nil
}

// emitLd: full-width load from [base+offset].
func emitLd(e *emitter, bits uint16, inst *ir.Instruction, a RegArgs) error {
	base, dst := gpEnc(a.Ins[0]), gpEnc(a.Outs[0])
	if err := e.emitOp(bits, dst, base, false); err != nil {
		return err
	}
	e.emitMem(dst, base, inst.Offset())
	return nil
}

// emitXLd: widening 8-bit load (movzx/movsx).
func emitXLd(e *emitter, bits uint16, inst *ir.Instruction, a RegArgs) error {
	return emitLd(e, bits, inst, a)
}

// emitSt: full-width store to [base+offset].
func emitSt(e *emitter, bits uint16, inst *ir.Instruction, a RegArgs) error {
	val, base := gpEnc(a.Ins[0]), gpEnc(a.Ins[1])
	if err := e.emitOp(bits, val, base, false); err != nil {
		return err
	}
	e.emitMem(val, base, inst.Offset())
	return nil
}

// emitSt8: 8-bit store; sil/dil/spl/bpl as the value need an empty REX.
func emitSt8(e *emitter, bits uint16, inst *ir.Instruction, a RegArgs) error {
	val, base := gpEnc(a.Ins[0]), gpEnc(a.Ins[1])
	if err := e.emitOp(bits, val, base, byteRegNeedsRex(val)); err != nil {
		return err
	}
	e.emitMem(val, base, inst.Offset())
	return nil
}

// emitIcscc: cmp followed by setcc into the output's low byte.
func emitIcscc(e *emitter, bits uint16, inst *ir.Instruction, a RegArgs) error {
	x, y := gpEnc(a.Ins[0]), gpEnc(a.Ins[1])
	if err := e.emitOp(bits, y, x, false); err != nil {
		return err
	}
	e.buf.EmitByte(encodeModRM(0b11, y.lo3(), x.lo3()))

	dst := gpEnc(a.Outs[0])
	if err := e.emitOp(uint16(op0f(0x90|ccOf(inst.Cond()))), 0, dst, byteRegNeedsRex(dst)); err != nil {
		return err
	}
	e.buf.EmitByte(encodeModRM(0b11, 0, dst.lo3()))
	return nil
}

// emitBitcnt: lzcnt/tzcnt/popcnt, load form.
func emitBitcnt(e *emitter, bits uint16, _ *ir.Instruction, a RegArgs) error {
	src, dst := gpEnc(a.Ins[0]), gpEnc(a.Outs[0])
	if err := e.emitOp(bits, dst, src, false); err != nil {
		return err
	}
	e.buf.EmitByte(encodeModRM(0b11, dst.lo3(), src.lo3()))
	return nil
}

// emitFa: scalar SSE arithmetic, load form, destination tied.
func emitFa(e *emitter, bits uint16, _ *ir.Instruction, a RegArgs) error {
	dst, src := xmmEnc(a.Ins[0]), xmmEnc(a.Ins[1])
	if err := e.emitOp(bits, dst, src, false); err != nil {
		return err
	}
	e.buf.EmitByte(encodeModRM(0b11, dst.lo3(), src.lo3()))
	return nil
}

// emitFsqrt: sqrtss/sqrtsd into a fresh register.
func emitFsqrt(e *emitter, bits uint16, _ *ir.Instruction, a RegArgs) error {
	src, dst := xmmEnc(a.Ins[0]), xmmEnc(a.Outs[0])
	if err := e.emitOp(bits, dst, src, false); err != nil {
		return err
	}
	e.buf.EmitByte(encodeModRM(0b11, dst.lo3(), src.lo3()))
	return nil
}

// emitJmpb: short jump, rel8.
func emitJmpb(e *emitter, bits uint16, _ *ir.Instruction, a RegArgs) error {
	e.buf.EmitByte(bitsOpcode(bits))
	e.buf.EmitRel(a.Target, 1)
	return nil
}

// emitJmpd: near jump, rel32.
func emitJmpd(e *emitter, bits uint16, _ *ir.Instruction, a RegArgs) error {
	e.buf.EmitByte(bitsOpcode(bits))
	e.buf.EmitRel(a.Target, 4)
	return nil
}

func brCC(inst *ir.Instruction) byte {
	// brz branches when the tested value is zero, i.e. on ZF.
	if inst.Opcode() == ir.OpcodeBrz {
		return 0x4
	}
	return 0x5
}

// emitTjccb: test r,r then short jcc.
func emitTjccb(e *emitter, bits uint16, inst *ir.Instruction, a RegArgs) error {
	x := gpEnc(a.Ins[0])
	if err := e.emitOp(bits, x, x, false); err != nil {
		return err
	}
	e.buf.EmitByte(encodeModRM(0b11, x.lo3(), x.lo3()))
	e.buf.EmitByte(0x70 | brCC(inst))
	e.buf.EmitRel(a.Target, 1)
	return nil
}

// emitTjccd: test r,r then near jcc.
func emitTjccd(e *emitter, bits uint16, inst *ir.Instruction, a RegArgs) error {
	x := gpEnc(a.Ins[0])
	if err := e.emitOp(bits, x, x, false); err != nil {
		return err
	}
	e.buf.EmitByte(encodeModRM(0b11, x.lo3(), x.lo3()))
	e.buf.EmitByte(0x0f)
	e.buf.EmitByte(0x80 | brCC(inst))
	e.buf.EmitRel(a.Target, 4)
	return nil
}

// emitCallId: near call, rel32.
func emitCallId(e *emitter, bits uint16, _ *ir.Instruction, a RegArgs) error {
	e.buf.EmitByte(bitsOpcode(bits))
	e.buf.EmitRel(a.Target, 4)
	return nil
}

// emitCallR: indirect call through a register.
func emitCallR(e *emitter, bits uint16, _ *ir.Instruction, a RegArgs) error {
	callee := gpEnc(a.Ins[0])
	if err := e.emitOp(bits, 0, callee, false); err != nil {
		return err
	}
	e.buf.EmitByte(encodeModRM(0b11, bitsDigit(bits), callee.lo3()))
	return nil
}

// emitRet.
func emitRet(e *emitter, bits uint16, _ *ir.Instruction, _ RegArgs) error {
	e.buf.EmitByte(bitsOpcode(bits))
	return nil
}
