package x86

import (
	"fmt"

	"github.com/encgen/encgen/internal/enc"
	"github.com/encgen/encgen/internal/ir"
	"github.com/encgen/encgen/internal/meta"
)

// CPU modes of the x86 target.
const (
	ModeX86_64 enc.Mode = iota
	ModeX86_32
)

// Register classes, in registration order.
const (
	classGPR enc.RegClass = iota
	classFPR
)

// def is the built x86 definition: the dispatch tables plus the emitter
// per recipe and the setting bit positions.
type def struct {
	tables   *enc.Tables
	emitters []emitFn

	popcnt, lzcnt, bmi1 uint8
}

// buildDef compiles the whole x86 definition. It runs once per process;
// see target.go.
func buildDef() (*def, error) {
	b := meta.NewTargetBuilder("x86")
	d := &def{}

	gpr := b.RegClass("gpr")
	fpr := b.RegClass("fpr")
	if gpr != classGPR || fpr != classFPR {
		panic("BUG: register class registration order changed")
	}

	popcnt := b.AddSetting("has_popcnt")
	lzcnt := b.AddSetting("has_lzcnt")
	bmi1 := b.AddSetting("has_bmi1")
	d.popcnt, d.lzcnt, d.bmi1 = popcnt.Bit(), lzcnt.Bit(), bmi1.Bit()

	// Instruction predicates. Immediates are stored sign-extended to 64
	// bits, so the fit checks are width-independent.
	immZero := b.InstPred("imm_zero", func(i *ir.Instruction) bool {
		return i.Imm() == 0
	})
	immFitsI8 := b.InstPred("imm_fits_i8", func(i *ir.Instruction) bool {
		v := int64(i.Imm())
		return v == int64(int8(v))
	})
	immFitsI32 := b.InstPred("imm_fits_i32", func(i *ir.Instruction) bool {
		v := int64(i.Imm())
		return v == int64(int32(v))
	})
	immFitsU32 := b.InstPred("imm_fits_u32", func(i *ir.Instruction) bool {
		return i.Imm()>>32 == 0
	})
	offZero := b.InstPred("offset_zero", func(i *ir.Instruction) bool {
		return i.Offset() == 0
	})
	offFitsI8 := b.InstPred("offset_fits_i8", func(i *ir.Instruction) bool {
		return i.Offset() >= -128 && i.Offset() <= 127
	})

	// Recipes. Sizes are worst case: a REX byte is counted whenever one
	// could be needed, so layout never underestimates.
	recipe := func(r *meta.Recipe, fn emitFn) meta.RecipeRef {
		ref := b.AddRecipe(r)
		d.emitters = append(d.emitters, fn)
		return ref
	}
	gprIn := meta.Reg(gpr)
	fprIn := meta.Reg(fpr)

	rr := recipe(&meta.Recipe{
		Name: "rr", Format: ir.FormatBinary,
		Ins: []enc.OperandConstraint{gprIn, gprIn}, Outs: []enc.OperandConstraint{meta.Tied(0)},
		ClobbersFlags: true, BaseSize: 3,
	}, emitRR)
	rrx := recipe(&meta.Recipe{
		Name: "rrx", Format: ir.FormatBinary,
		Ins: []enc.OperandConstraint{gprIn, gprIn}, Outs: []enc.OperandConstraint{meta.Tied(0)},
		ClobbersFlags: true, BaseSize: 4,
	}, emitRRX)
	rib := recipe(&meta.Recipe{
		Name: "rib", Format: ir.FormatBinaryImm,
		Ins: []enc.OperandConstraint{gprIn}, Outs: []enc.OperandConstraint{meta.Tied(0)},
		ClobbersFlags: true, BaseSize: 4,
	}, emitRIB)
	rid := recipe(&meta.Recipe{
		Name: "rid", Format: ir.FormatBinaryImm,
		Ins: []enc.OperandConstraint{gprIn}, Outs: []enc.OperandConstraint{meta.Tied(0)},
		ClobbersFlags: true, BaseSize: 7,
	}, emitRID)
	ur := recipe(&meta.Recipe{
		Name: "ur", Format: ir.FormatUnary,
		Ins: []enc.OperandConstraint{gprIn}, Outs: []enc.OperandConstraint{meta.Tied(0)},
		BaseSize: 3,
	}, emitUR)
	rc := recipe(&meta.Recipe{
		Name: "rc", Format: ir.FormatBinary,
		Ins:  []enc.OperandConstraint{gprIn, meta.Fixed(gpr, RegRCX)},
		Outs: []enc.OperandConstraint{meta.Tied(0)},
		ClobbersFlags: true, BaseSize: 3,
	}, emitRC)
	umr := recipe(&meta.Recipe{
		Name: "umr", Format: ir.FormatUnary,
		Ins: []enc.OperandConstraint{gprIn}, Outs: []enc.OperandConstraint{gprIn},
		BaseSize: 3,
	}, emitUMR)
	furm := recipe(&meta.Recipe{
		Name: "furm", Format: ir.FormatUnary,
		Ins: []enc.OperandConstraint{fprIn}, Outs: []enc.OperandConstraint{fprIn},
		BaseSize: 4,
	}, emitFURM)
	puId := recipe(&meta.Recipe{
		Name: "pu_id", Format: ir.FormatUnaryImm,
		Outs:     []enc.OperandConstraint{gprIn},
		BaseSize: 6,
	}, emitPuId)
	uIdS := recipe(&meta.Recipe{
		Name: "u_id_s", Format: ir.FormatUnaryImm,
		Outs:     []enc.OperandConstraint{gprIn},
		BaseSize: 7,
	}, emitUIdS)
	puIq := recipe(&meta.Recipe{
		Name: "pu_iq", Format: ir.FormatUnaryImm,
		Outs:     []enc.OperandConstraint{gprIn},
		BaseSize: 10,
	}, emitPuIq)
	uIdZ := recipe(&meta.Recipe{
		Name: "u_id_z", Format: ir.FormatUnaryImm,
		Outs:          []enc.OperandConstraint{gprIn},
		ClobbersFlags: true, BaseSize: 3,
	}, emitUIdZ)
	ld := recipe(&meta.Recipe{
		Name: "ld", Format: ir.FormatLoad,
		Ins: []enc.OperandConstraint{gprIn}, Outs: []enc.OperandConstraint{gprIn},
		BaseSize: 4,
	}, emitLd)
	ldDisp8 := recipe(&meta.Recipe{
		Name: "ld_disp8", Format: ir.FormatLoad,
		Ins: []enc.OperandConstraint{gprIn}, Outs: []enc.OperandConstraint{gprIn},
		BaseSize: 5,
	}, emitLd)
	ldDisp32 := recipe(&meta.Recipe{
		Name: "ld_disp32", Format: ir.FormatLoad,
		Ins: []enc.OperandConstraint{gprIn}, Outs: []enc.OperandConstraint{gprIn},
		BaseSize: 8,
	}, emitLd)
	xld := recipe(&meta.Recipe{
		Name: "xld", Format: ir.FormatLoad,
		Ins: []enc.OperandConstraint{gprIn}, Outs: []enc.OperandConstraint{gprIn},
		BaseSize: 9,
	}, emitXLd)
	st := recipe(&meta.Recipe{
		Name: "st", Format: ir.FormatStore,
		Ins:      []enc.OperandConstraint{gprIn, gprIn},
		BaseSize: 4,
	}, emitSt)
	stDisp8 := recipe(&meta.Recipe{
		Name: "st_disp8", Format: ir.FormatStore,
		Ins:      []enc.OperandConstraint{gprIn, gprIn},
		BaseSize: 5,
	}, emitSt)
	stDisp32 := recipe(&meta.Recipe{
		Name: "st_disp32", Format: ir.FormatStore,
		Ins:      []enc.OperandConstraint{gprIn, gprIn},
		BaseSize: 8,
	}, emitSt)
	st8 := recipe(&meta.Recipe{
		Name: "st8", Format: ir.FormatStore,
		Ins:      []enc.OperandConstraint{gprIn, gprIn},
		BaseSize: 8,
	}, emitSt8)
	icscc := recipe(&meta.Recipe{
		Name: "icscc", Format: ir.FormatIntCompare,
		Ins: []enc.OperandConstraint{gprIn, gprIn}, Outs: []enc.OperandConstraint{gprIn},
		ClobbersFlags: true, BaseSize: 7,
	}, emitIcscc)
	bitcnt := recipe(&meta.Recipe{
		Name: "bitcnt", Format: ir.FormatUnary,
		Ins: []enc.OperandConstraint{gprIn}, Outs: []enc.OperandConstraint{gprIn},
		ClobbersFlags: true, BaseSize: 5,
	}, emitBitcnt)
	fa := recipe(&meta.Recipe{
		Name: "fa", Format: ir.FormatBinary,
		Ins: []enc.OperandConstraint{fprIn, fprIn}, Outs: []enc.OperandConstraint{meta.Tied(0)},
		BaseSize: 5,
	}, emitFa)
	fsqrt := recipe(&meta.Recipe{
		Name: "fsqrt", Format: ir.FormatUnary,
		Ins: []enc.OperandConstraint{fprIn}, Outs: []enc.OperandConstraint{fprIn},
		BaseSize: 5,
	}, emitFsqrt)
	jmpb := recipe(&meta.Recipe{
		Name: "jmpb", Format: ir.FormatJump,
		BaseSize: 2, Range: enc.BranchRange{Origin: 2, Bits: 8},
	}, emitJmpb)
	jmpd := recipe(&meta.Recipe{
		Name: "jmpd", Format: ir.FormatJump,
		BaseSize: 5, Range: enc.BranchRange{Origin: 5, Bits: 32},
	}, emitJmpd)
	tjccb := recipe(&meta.Recipe{
		Name: "tjccb", Format: ir.FormatBranch,
		Ins:           []enc.OperandConstraint{gprIn},
		ClobbersFlags: true, BaseSize: 5,
		Range: enc.BranchRange{Origin: 5, Bits: 8},
	}, emitTjccb)
	tjccd := recipe(&meta.Recipe{
		Name: "tjccd", Format: ir.FormatBranch,
		Ins:           []enc.OperandConstraint{gprIn},
		ClobbersFlags: true, BaseSize: 9,
		Range: enc.BranchRange{Origin: 9, Bits: 32},
	}, emitTjccd)
	callId := recipe(&meta.Recipe{
		Name: "call_id", Format: ir.FormatCall,
		ClobbersFlags: true, BaseSize: 5,
	}, emitCallId)
	callR := recipe(&meta.Recipe{
		Name: "call_r", Format: ir.FormatCall,
		Ins:           []enc.OperandConstraint{gprIn},
		ClobbersFlags: true, BaseSize: 3,
	}, emitCallR)
	ret := recipe(&meta.Recipe{
		Name: "ret", Format: ir.FormatNullary,
		BaseSize: 1,
	}, emitRet)

	m64 := b.AddMode("x86_64", enc.LegalizeExpand)
	m32 := b.AddMode("x86_32", enc.LegalizeExpand)
	if m64.Index() != ModeX86_64 || m32.Index() != ModeX86_32 {
		panic("BUG: cpu mode registration order changed")
	}
	m64.SetTypeLegalize(ir.TypeI8, enc.LegalizeWiden)
	m64.SetTypeLegalize(ir.TypeI16, enc.LegalizeWiden)
	m32.SetTypeLegalize(ir.TypeI8, enc.LegalizeWiden)
	m32.SetTypeLegalize(ir.TypeI16, enc.LegalizeWiden)
	m32.SetTypeLegalize(ir.TypeI64, enc.LegalizeNarrow)

	// Integer encodings shared by both modes (the 64-bit W forms exist in
	// x86_64 only).
	intModes := func(op ir.Opcode, typ ir.Type, r meta.RecipeRef, bits ebits, guards ...meta.Guard) {
		m64.Enc(op, typ, r, uint16(bits), guards...)
		if typ == ir.TypeI32 {
			m32.Enc(op, typ, r, uint16(bits), guards...)
		}
	}

	for _, it := range []struct {
		typ ir.Type
		w   bool
	}{{ir.TypeI32, false}, {ir.TypeI64, true}} {
		typ := it.typ
		wf := func(e ebits) ebits {
			if it.w {
				return e.w()
			}
			return e
		}

		// ALU, store form.
		intModes(ir.OpcodeIadd, typ, rr, wf(op1(0x01)))
		intModes(ir.OpcodeIsub, typ, rr, wf(op1(0x29)))
		intModes(ir.OpcodeBand, typ, rr, wf(op1(0x21)))
		intModes(ir.OpcodeBor, typ, rr, wf(op1(0x09)))
		intModes(ir.OpcodeBxor, typ, rr, wf(op1(0x31)))
		intModes(ir.OpcodeImul, typ, rrx, wf(op0f(0xaf)))

		// ALU with immediate: prefer the sign-extended 8-bit form. The
		// 32-bit form needs a fit check only for 64-bit operands.
		for _, ai := range []struct {
			op    ir.Opcode
			digit byte
		}{
			{ir.OpcodeIaddImm, 0},
			{ir.OpcodeBorImm, 1},
			{ir.OpcodeBandImm, 4},
			{ir.OpcodeBxorImm, 6},
		} {
			intModes(ai.op, typ, rib, wf(op1(0x83).digit(ai.digit)), meta.If(immFitsI8))
			if it.w {
				intModes(ai.op, typ, rid, wf(op1(0x81).digit(ai.digit)), meta.If(immFitsI32))
			} else {
				intModes(ai.op, typ, rid, wf(op1(0x81).digit(ai.digit)))
			}
		}

		intModes(ir.OpcodeBnot, typ, ur, wf(op1(0xf7).digit(2)))

		// Shifts and rotates take the count in cl.
		intModes(ir.OpcodeIshl, typ, rc, wf(op1(0xd3).digit(4)))
		intModes(ir.OpcodeUshr, typ, rc, wf(op1(0xd3).digit(5)))
		intModes(ir.OpcodeSshr, typ, rc, wf(op1(0xd3).digit(7)))
		intModes(ir.OpcodeRotl, typ, rc, wf(op1(0xd3).digit(0)))
		intModes(ir.OpcodeRotr, typ, rc, wf(op1(0xd3).digit(1)))

		intModes(ir.OpcodeIcmp, typ, icscc, wf(op1(0x39)))
		intModes(ir.OpcodeCopy, typ, umr, wf(op1(0x89)))

		// Bit counts exist only behind feature flags; without them the
		// opcode falls back to legalization.
		intModes(ir.OpcodeClz, typ, bitcnt, wf(op0f(0xbd).pf3()), meta.Isa(lzcnt))
		intModes(ir.OpcodeCtz, typ, bitcnt, wf(op0f(0xbc).pf3()), meta.Isa(bmi1))
		intModes(ir.OpcodePopcnt, typ, bitcnt, wf(op0f(0xb8).pf3()), meta.Isa(popcnt))

		// Memory, split by displacement width.
		intModes(ir.OpcodeLoad, typ, ld, wf(op1(0x8b)), meta.If(offZero))
		intModes(ir.OpcodeLoad, typ, ldDisp8, wf(op1(0x8b)), meta.If(offFitsI8))
		intModes(ir.OpcodeLoad, typ, ldDisp32, wf(op1(0x8b)))
		intModes(ir.OpcodeStore, typ, st, wf(op1(0x89)), meta.If(offZero))
		intModes(ir.OpcodeStore, typ, stDisp8, wf(op1(0x89)), meta.If(offFitsI8))
		intModes(ir.OpcodeStore, typ, stDisp32, wf(op1(0x89)))
		intModes(ir.OpcodeUload8, typ, xld, wf(op0f(0xb6)))
		intModes(ir.OpcodeSload8, typ, xld, wf(op0f(0xbe)))
		m64.Enc(ir.OpcodeIstore8, typ, st8, uint16(op1(0x88)))

		intModes(ir.OpcodeBrz, typ, tjccb, wf(op1(0x85)))
		intModes(ir.OpcodeBrnz, typ, tjccb, wf(op1(0x85)))
		intModes(ir.OpcodeBrz, typ, tjccd, wf(op1(0x85)))
		intModes(ir.OpcodeBrnz, typ, tjccd, wf(op1(0x85)))
	}

	// Constants. xor only zeroes 32 bits, which is exactly right for the
	// zero constant of any integer width.
	intModes(ir.OpcodeIconst, ir.TypeI32, uIdZ, op1(0x31), meta.If(immZero))
	intModes(ir.OpcodeIconst, ir.TypeI32, puId, op1(0xb8))
	m64.Enc(ir.OpcodeIconst, ir.TypeI64, uIdZ, uint16(op1(0x31)), meta.If(immZero))
	m64.Enc(ir.OpcodeIconst, ir.TypeI64, puId, uint16(op1(0xb8)), meta.If(immFitsU32))
	m64.Enc(ir.OpcodeIconst, ir.TypeI64, uIdS, uint16(op1(0xc7).digit(0).w()), meta.If(immFitsI32))
	m64.Enc(ir.OpcodeIconst, ir.TypeI64, puIq, uint16(op1(0xb8).w()))

	// Scalar floating point, both modes.
	for _, mode := range []*meta.CpuMode{m64, m32} {
		for _, ft := range []struct {
			typ ir.Type
			pf  func(ebits) ebits
		}{
			{ir.TypeF32, ebits.pf3},
			{ir.TypeF64, ebits.pf2},
		} {
			mode.Enc(ir.OpcodeFadd, ft.typ, fa, uint16(ft.pf(op0f(0x58))))
			mode.Enc(ir.OpcodeFsub, ft.typ, fa, uint16(ft.pf(op0f(0x5c))))
			mode.Enc(ir.OpcodeFmul, ft.typ, fa, uint16(ft.pf(op0f(0x59))))
			mode.Enc(ir.OpcodeFdiv, ft.typ, fa, uint16(ft.pf(op0f(0x5e))))
			mode.Enc(ir.OpcodeSqrt, ft.typ, fsqrt, uint16(ft.pf(op0f(0x51))))
			mode.Enc(ir.OpcodeCopy, ft.typ, furm, uint16(op0f(0x28)))
		}
	}

	// Instructions without a controlling type. Identical lists in both
	// modes, so the whole level-2 table is shared.
	for _, mode := range []*meta.CpuMode{m64, m32} {
		mode.Enc(ir.OpcodeJump, meta.TypeNone, jmpb, uint16(op1(0xeb)))
		mode.Enc(ir.OpcodeJump, meta.TypeNone, jmpd, uint16(op1(0xe9)))
		mode.Enc(ir.OpcodeCall, meta.TypeNone, callId, uint16(op1(0xe8)))
		mode.Enc(ir.OpcodeCallIndirect, meta.TypeNone, callR, uint16(op1(0xff).digit(2)))
		mode.Enc(ir.OpcodeReturn, meta.TypeNone, ret, uint16(op1(0xc3)))
	}

	tables, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("building x86 definition: %w", err)
	}
	d.tables = tables
	return d, nil
}
