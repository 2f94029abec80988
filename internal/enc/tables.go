// Package enc holds the runtime representation of encoding tables: the
// two-level hashed dispatch from (cpu mode, controlling type, opcode) to an
// encoding list, and the bytecode interpreter that walks a list yielding
// every encoding legal for a concrete instruction.
//
// Tables values are produced by internal/meta from a declarative ISA
// definition; nothing in this package knows about any particular ISA.
package enc

import (
	"github.com/encgen/encgen/internal/ir"
)

// Mode identifies a CPU mode of the target, e.g. 64-bit vs 32-bit
// operation of the same ISA. Each mode has its own level-1 dispatch table.
type Mode uint8

// Flags is a bit vector of ISA predicate values, bit i holding the value of
// setting i. It is computed once from the target's feature settings and
// passed to every encoding lookup.
type Flags uint32

// Test returns the value of the ISA predicate with the given bit index.
func (f Flags) Test(bit uint8) bool {
	return f&(1<<bit) != 0
}

// RealReg is an ISA physical register number. The enc package treats it as
// opaque; the ISA definition gives it meaning.
type RealReg uint8

// RealRegInvalid is a RealReg that never names a physical register.
const RealRegInvalid RealReg = 0xff

// RegClass is an index into Tables.RegClasses.
type RegClass uint8

// Encoding is a legal encoding of an instruction: a recipe index packed
// with the recipe's 16 encoding bits. The zero bits are meaningful, so an
// explicit invalid value exists instead.
type Encoding uint32

// EncodingInvalid is returned when no encoding is legal.
const EncodingInvalid Encoding = 0xffffffff

// NewEncoding packs a recipe index and encoding bits.
func NewEncoding(recipe uint16, bits uint16) Encoding {
	return Encoding(recipe)<<16 | Encoding(bits)
}

// Recipe returns the recipe index of this encoding.
func (e Encoding) Recipe() uint16 { return uint16(e >> 16) }

// Bits returns the recipe-specific encoding bits.
func (e Encoding) Bits() uint16 { return uint16(e) }

// IsLegal returns true unless e is EncodingInvalid.
func (e Encoding) IsLegal() bool { return e != EncodingInvalid }

// LegalizeAction names the rewrite a backend should apply to an instruction
// that has no encoding, before retrying the lookup. Executing the actions
// is the backend's business; the tables only select one.
type LegalizeAction uint8

const (
	// LegalizeExpand rewrites the instruction into simpler instructions of
	// the same type.
	LegalizeExpand LegalizeAction = iota
	// LegalizeNarrow splits an operation on a too-wide integer type into
	// operations on narrower types.
	LegalizeNarrow
	// LegalizeWiden implements an operation on a too-narrow integer type
	// with a wider operation.
	LegalizeWiden
)

// String implements fmt.Stringer.
func (a LegalizeAction) String() string {
	switch a {
	case LegalizeExpand:
		return "expand"
	case LegalizeNarrow:
		return "narrow"
	case LegalizeWiden:
		return "widen"
	default:
		return "invalid"
	}
}

// Level1Entry maps a controlling type to the level-2 table for one cpu
// mode. Empty slots hold level1KeyEmpty: the zero Type is a real key used
// by instructions without a controlling type (jump, call, return).
type Level1Entry struct {
	Key      uint8
	Legalize LegalizeAction
	L2Mask   uint32 // capacity-1 of the level-2 table
	L2Offset uint32 // index of the level-2 table in Tables.Level2, or Level2OffsetNone
}

// Level1KeyEmpty marks an unused level-1 slot. The zero key is taken by
// typeless instructions, and no real Type reaches 0xff.
const Level1KeyEmpty uint8 = 0xff

// Level2OffsetNone marks a level-1 entry whose type has a legalize action
// but no encoded opcodes.
const Level2OffsetNone uint32 = 0xffffffff

// Level2Entry maps an opcode to the offset of its encoding list. Empty
// slots hold OpcodeInvalid, which is never inserted.
type Level2Entry struct {
	Key    uint16
	Offset uint32 // index into Tables.Enclists
}

// InstPred is an instruction predicate: a property of the instruction's
// payload fields, such as an immediate fitting in 8 bits.
type InstPred func(*ir.Instruction) bool

// RecipeMeta is everything the runtime knows about one recipe.
type RecipeMeta struct {
	Name        string
	Format      ir.Format
	Constraints RecipeConstraints
	Sizing      RecipeSizing
}

// Tables is the built encoding artifact for one target.
type Tables struct {
	// Name is the target name, e.g. "x86".
	Name string

	// Enclists is the encoding-list bytecode pool. See iterator.go for the
	// word format.
	Enclists []uint16

	// Level1 holds one open-addressed table per Mode, indexed by Mode.
	Level1 [][]Level1Entry

	// ModeDefault is the legalize action per mode for controlling types
	// absent from the mode's level-1 table.
	ModeDefault []LegalizeAction

	// Level2 is the concatenation of all level-2 tables. Level1Entry
	// values select a slice of it.
	Level2 []Level2Entry

	// Recipes is indexed by Encoding.Recipe().
	Recipes []RecipeMeta

	// InstPreds is indexed by the predicate number in enclist guard words.
	InstPreds []InstPred

	// PredNames is indexed like InstPreds, for diagnostics.
	PredNames []string

	// Settings is indexed by the ISA predicate bit in enclist guard words.
	Settings []string

	// RegClasses is indexed by RegClass.
	RegClasses []string
}

// RecipeByName returns the index of the named recipe, or -1.
func (t *Tables) RecipeByName(name string) int {
	for i := range t.Recipes {
		if t.Recipes[i].Name == name {
			return i
		}
	}
	return -1
}
