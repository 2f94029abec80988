// Package ir defines the minimal target-independent instruction surface the
// encoding tables are keyed on: opcodes, value types, operand formats, and a
// flattened Instruction carrying the payload fields encoders look at.
package ir

import "fmt"

// Cond is an integer comparison condition.
type Cond uint8

const (
	CondInvalid Cond = iota
	CondEq
	CondNe
	CondSlt
	CondSge
	CondSgt
	CondSle
	CondUlt
	CondUge
	CondUgt
	CondUle
)

// String implements fmt.Stringer.
func (c Cond) String() string {
	switch c {
	case CondEq:
		return "eq"
	case CondNe:
		return "ne"
	case CondSlt:
		return "slt"
	case CondSge:
		return "sge"
	case CondSgt:
		return "sgt"
	case CondSle:
		return "sle"
	case CondUlt:
		return "ult"
	case CondUge:
		return "uge"
	case CondUgt:
		return "ugt"
	case CondUle:
		return "ule"
	default:
		return "invalid"
	}
}

// Instruction is a flattened IR instruction. Since Go doesn't have union
// types, one struct carries the payload for every format and each field is
// meaningful only for the formats that use it: imm for UnaryImm/BinaryImm,
// cond for IntCompare/Branch, offset for Load/Store.
//
// Register operands are deliberately absent: encoding lookup depends only on
// opcode, controlling type, and the payload fields instruction predicates
// inspect. Register assignment arrives separately at emission time.
type Instruction struct {
	opcode Opcode
	typ    Type
	imm    uint64
	cond   Cond
	offset int32
}

// NewNullary returns an instruction with no operands, e.g. return.
func NewNullary(op Opcode) Instruction {
	return mk(op, typeInvalid, FormatNullary)
}

// NewUnary returns a single-operand instruction controlled by typ.
func NewUnary(op Opcode, typ Type) Instruction {
	return mk(op, typ, FormatUnary)
}

// NewBinary returns a two-operand instruction controlled by typ.
func NewBinary(op Opcode, typ Type) Instruction {
	return mk(op, typ, FormatBinary)
}

// NewUnaryImm returns an immediate-producing instruction, e.g. iconst.
func NewUnaryImm(op Opcode, typ Type, imm uint64) Instruction {
	i := mk(op, typ, FormatUnaryImm)
	i.imm = imm
	return i
}

// NewBinaryImm returns an operand-plus-immediate instruction, e.g. iadd_imm.
func NewBinaryImm(op Opcode, typ Type, imm uint64) Instruction {
	i := mk(op, typ, FormatBinaryImm)
	i.imm = imm
	return i
}

// NewIntCompare returns an icmp instruction.
func NewIntCompare(typ Type, cond Cond) Instruction {
	i := mk(OpcodeIcmp, typ, FormatIntCompare)
	i.cond = cond
	return i
}

// NewLoad returns a load-format instruction with the given address offset.
func NewLoad(op Opcode, typ Type, offset int32) Instruction {
	i := mk(op, typ, FormatLoad)
	i.offset = offset
	return i
}

// NewStore returns a store-format instruction with the given address offset.
func NewStore(op Opcode, typ Type, offset int32) Instruction {
	i := mk(op, typ, FormatStore)
	i.offset = offset
	return i
}

// NewJump returns an unconditional jump.
func NewJump() Instruction {
	return mk(OpcodeJump, typeInvalid, FormatJump)
}

// NewBranch returns a conditional branch controlled by the type of the
// tested value.
func NewBranch(op Opcode, typ Type) Instruction {
	return mk(op, typ, FormatBranch)
}

// NewCall returns a call-format instruction.
func NewCall(op Opcode) Instruction {
	return mk(op, typeInvalid, FormatCall)
}

func mk(op Opcode, typ Type, want Format) Instruction {
	if got := op.Format(); got != want {
		panic(fmt.Sprintf("BUG: %s has format %d, not %d", op, got, want))
	}
	return Instruction{opcode: op, typ: typ}
}

// Opcode returns the opcode of this instruction.
func (i *Instruction) Opcode() Opcode {
	return i.opcode
}

// Ctrl returns the controlling type of this instruction. It is the zero
// Type for formats without one (jump, call, return).
func (i *Instruction) Ctrl() Type {
	return i.typ
}

// Imm returns the immediate payload.
func (i *Instruction) Imm() uint64 {
	return i.imm
}

// Cond returns the comparison condition payload.
func (i *Instruction) Cond() Cond {
	return i.cond
}

// Offset returns the memory address offset payload.
func (i *Instruction) Offset() int32 {
	return i.offset
}

// String implements fmt.Stringer.
func (i *Instruction) String() string {
	switch i.opcode.Format() {
	case FormatUnaryImm, FormatBinaryImm:
		return fmt.Sprintf("%s.%s %#x", i.opcode, i.typ, i.imm)
	case FormatIntCompare:
		return fmt.Sprintf("%s.%s %s", i.opcode, i.typ, i.cond)
	case FormatLoad, FormatStore:
		return fmt.Sprintf("%s.%s %+d", i.opcode, i.typ, i.offset)
	case FormatNullary, FormatJump, FormatCall:
		return i.opcode.String()
	default:
		return fmt.Sprintf("%s.%s", i.opcode, i.typ)
	}
}
