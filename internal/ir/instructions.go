package ir

import "fmt"

// Opcode represents an IR instruction kind. Together with the controlling
// Type it forms the key into the encoding tables.
type Opcode uint16

const (
	OpcodeInvalid Opcode = iota

	// OpcodeIconst materializes an integer constant: `v = iconst Imm`.
	OpcodeIconst

	// OpcodeIadd performs integer addition: `v = iadd x, y`.
	OpcodeIadd

	// OpcodeIsub performs integer subtraction: `v = isub x, y`.
	OpcodeIsub

	// OpcodeImul performs integer multiplication: `v = imul x, y`.
	OpcodeImul

	// OpcodeBand performs bitwise and: `v = band x, y`.
	OpcodeBand

	// OpcodeBor performs bitwise or: `v = bor x, y`.
	OpcodeBor

	// OpcodeBxor performs bitwise xor: `v = bxor x, y`.
	OpcodeBxor

	// OpcodeBnot performs bitwise not: `v = bnot x`.
	OpcodeBnot

	// OpcodeIshl shifts left: `v = ishl x, amount`. The shift amount is
	// masked to the bit width of the controlling type.
	OpcodeIshl

	// OpcodeUshr shifts right logically.
	OpcodeUshr

	// OpcodeSshr shifts right arithmetically.
	OpcodeSshr

	// OpcodeRotl rotates left.
	OpcodeRotl

	// OpcodeRotr rotates right.
	OpcodeRotr

	// OpcodeIaddImm adds an immediate: `v = iadd_imm x, Imm`.
	OpcodeIaddImm

	// OpcodeBandImm ands with an immediate.
	OpcodeBandImm

	// OpcodeBorImm ors with an immediate.
	OpcodeBorImm

	// OpcodeBxorImm xors with an immediate.
	OpcodeBxorImm

	// OpcodeIcmp compares two integers and produces a boolean-as-i8:
	// `v = icmp Cond, x, y`.
	OpcodeIcmp

	// OpcodeClz counts leading zero bits.
	OpcodeClz

	// OpcodeCtz counts trailing zero bits.
	OpcodeCtz

	// OpcodePopcnt counts one bits.
	OpcodePopcnt

	// OpcodeFadd performs floating point addition.
	OpcodeFadd

	// OpcodeFsub performs floating point subtraction.
	OpcodeFsub

	// OpcodeFmul performs floating point multiplication.
	OpcodeFmul

	// OpcodeFdiv performs floating point division.
	OpcodeFdiv

	// OpcodeSqrt takes the floating point square root.
	OpcodeSqrt

	// OpcodeLoad loads a full-width value: `v = load [base+Offset]`.
	OpcodeLoad

	// OpcodeUload8 loads an 8-bit value and zero-extends it.
	OpcodeUload8

	// OpcodeSload8 loads an 8-bit value and sign-extends it.
	OpcodeSload8

	// OpcodeStore stores a full-width value: `store x, [base+Offset]`.
	OpcodeStore

	// OpcodeIstore8 stores the low 8 bits of x.
	OpcodeIstore8

	// OpcodeCopy copies a value between registers.
	OpcodeCopy

	// OpcodeJump jumps unconditionally to its target block.
	OpcodeJump

	// OpcodeBrz branches to the target block if x is zero.
	OpcodeBrz

	// OpcodeBrnz branches to the target block if x is not zero.
	OpcodeBrnz

	// OpcodeCall calls a function whose address is known at compile time
	// and reachable with a near call.
	OpcodeCall

	// OpcodeCallIndirect calls a function address held in a register.
	OpcodeCallIndirect

	// OpcodeReturn returns from the function.
	OpcodeReturn

	opcodeEnd
)

// Format classifies the operand shape of an opcode. Recipes declare which
// format they encode, and the meta builder rejects mismatches.
type Format uint8

const (
	FormatNullary Format = iota
	FormatUnary
	FormatUnaryImm
	FormatBinary
	FormatBinaryImm
	FormatIntCompare
	FormatLoad
	FormatStore
	FormatJump
	FormatBranch
	FormatCall
)

var opcodeFormats = [opcodeEnd]Format{
	OpcodeIconst:       FormatUnaryImm,
	OpcodeIadd:         FormatBinary,
	OpcodeIsub:         FormatBinary,
	OpcodeImul:         FormatBinary,
	OpcodeBand:         FormatBinary,
	OpcodeBor:          FormatBinary,
	OpcodeBxor:         FormatBinary,
	OpcodeBnot:         FormatUnary,
	OpcodeIshl:         FormatBinary,
	OpcodeUshr:         FormatBinary,
	OpcodeSshr:         FormatBinary,
	OpcodeRotl:         FormatBinary,
	OpcodeRotr:         FormatBinary,
	OpcodeIaddImm:      FormatBinaryImm,
	OpcodeBandImm:      FormatBinaryImm,
	OpcodeBorImm:       FormatBinaryImm,
	OpcodeBxorImm:      FormatBinaryImm,
	OpcodeIcmp:         FormatIntCompare,
	OpcodeClz:          FormatUnary,
	OpcodeCtz:          FormatUnary,
	OpcodePopcnt:       FormatUnary,
	OpcodeFadd:         FormatBinary,
	OpcodeFsub:         FormatBinary,
	OpcodeFmul:         FormatBinary,
	OpcodeFdiv:         FormatBinary,
	OpcodeSqrt:         FormatUnary,
	OpcodeLoad:         FormatLoad,
	OpcodeUload8:       FormatLoad,
	OpcodeSload8:       FormatLoad,
	OpcodeStore:        FormatStore,
	OpcodeIstore8:      FormatStore,
	OpcodeCopy:         FormatUnary,
	OpcodeJump:         FormatJump,
	OpcodeBrz:          FormatBranch,
	OpcodeBrnz:         FormatBranch,
	OpcodeCall:         FormatCall,
	OpcodeCallIndirect: FormatCall,
	OpcodeReturn:       FormatNullary,
}

// Format returns the operand format of this opcode.
func (o Opcode) Format() Format {
	if o == OpcodeInvalid || o >= opcodeEnd {
		panic("BUG: invalid opcode")
	}
	return opcodeFormats[o]
}

// Valid returns true if o is a defined opcode.
func (o Opcode) Valid() bool {
	return o > OpcodeInvalid && o < opcodeEnd
}

// NumOpcodes is the number of defined opcodes, for sizing dense tables.
const NumOpcodes = int(opcodeEnd)

var opcodeNames = [opcodeEnd]string{
	OpcodeInvalid:      "invalid",
	OpcodeIconst:       "iconst",
	OpcodeIadd:         "iadd",
	OpcodeIsub:         "isub",
	OpcodeImul:         "imul",
	OpcodeBand:         "band",
	OpcodeBor:          "bor",
	OpcodeBxor:         "bxor",
	OpcodeBnot:         "bnot",
	OpcodeIshl:         "ishl",
	OpcodeUshr:         "ushr",
	OpcodeSshr:         "sshr",
	OpcodeRotl:         "rotl",
	OpcodeRotr:         "rotr",
	OpcodeIaddImm:      "iadd_imm",
	OpcodeBandImm:      "band_imm",
	OpcodeBorImm:       "bor_imm",
	OpcodeBxorImm:      "bxor_imm",
	OpcodeIcmp:         "icmp",
	OpcodeClz:          "clz",
	OpcodeCtz:          "ctz",
	OpcodePopcnt:       "popcnt",
	OpcodeFadd:         "fadd",
	OpcodeFsub:         "fsub",
	OpcodeFmul:         "fmul",
	OpcodeFdiv:         "fdiv",
	OpcodeSqrt:         "sqrt",
	OpcodeLoad:         "load",
	OpcodeUload8:       "uload8",
	OpcodeSload8:       "sload8",
	OpcodeStore:        "store",
	OpcodeIstore8:      "istore8",
	OpcodeCopy:         "copy",
	OpcodeJump:         "jump",
	OpcodeBrz:          "brz",
	OpcodeBrnz:         "brnz",
	OpcodeCall:         "call",
	OpcodeCallIndirect: "call_indirect",
	OpcodeReturn:       "return",
}

// String implements fmt.Stringer.
func (o Opcode) String() string {
	if o >= opcodeEnd {
		return fmt.Sprintf("opcode(%d)", uint16(o))
	}
	return opcodeNames[o]
}

// OpcodeByName returns the opcode with the given name, or OpcodeInvalid.
func OpcodeByName(name string) Opcode {
	for o, n := range opcodeNames {
		if n == name && Opcode(o) != OpcodeInvalid {
			return Opcode(o)
		}
	}
	return OpcodeInvalid
}

// Opcodes returns every defined Opcode in numeric order. The result must
// not be mutated.
func Opcodes() []Opcode {
	return allOpcodes
}

var allOpcodes = func() []Opcode {
	ret := make([]Opcode, 0, opcodeEnd-1)
	for o := OpcodeInvalid + 1; o < opcodeEnd; o++ {
		ret = append(ret, o)
	}
	return ret
}()
