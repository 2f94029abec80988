package ir

// Type represents the type of a value produced or consumed by an instruction.
// The controlling type of an instruction selects which encodings of its opcode
// are applicable, so Type is one half of the encoding-table key space.
type Type uint8

const (
	typeInvalid Type = iota

	// TypeI8 represents an integer type with 8 bits.
	TypeI8

	// TypeI16 represents an integer type with 16 bits.
	TypeI16

	// TypeI32 represents an integer type with 32 bits.
	TypeI32

	// TypeI64 represents an integer type with 64 bits.
	TypeI64

	// TypeF32 represents a scalar 32-bit floating point type.
	TypeF32

	// TypeF64 represents a scalar 64-bit floating point type.
	TypeF64

	typeEnd
)

// String implements fmt.Stringer.
func (t Type) String() (ret string) {
	switch t {
	case typeInvalid:
		return "invalid"
	case TypeI8:
		return "i8"
	case TypeI16:
		return "i16"
	case TypeI32:
		return "i32"
	case TypeI64:
		return "i64"
	case TypeF32:
		return "f32"
	case TypeF64:
		return "f64"
	default:
		panic("BUG: unknown type")
	}
}

// Valid returns true if t is valid (not the zero Type).
func (t Type) Valid() bool {
	return t > typeInvalid && t < typeEnd
}

// Bits returns the number of bits of a value of this type.
func (t Type) Bits() byte {
	switch t {
	case TypeI8:
		return 8
	case TypeI16:
		return 16
	case TypeI32, TypeF32:
		return 32
	case TypeI64, TypeF64:
		return 64
	default:
		panic("BUG: unknown type")
	}
}

// IsInt returns true if t is an integer type.
func (t Type) IsInt() bool {
	return t >= TypeI8 && t <= TypeI64
}

// IsFloat returns true if t is a floating point type.
func (t Type) IsFloat() bool {
	return t == TypeF32 || t == TypeF64
}

// Types returns every valid Type. The result must not be mutated.
func Types() []Type {
	return allTypes
}

var allTypes = []Type{TypeI8, TypeI16, TypeI32, TypeI64, TypeF32, TypeF64}
