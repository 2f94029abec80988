package enc

import (
	"github.com/encgen/encgen/internal/ir"
)

// SizeCalc computes the byte size of one emitted instruction for recipes
// whose size depends on the encoding bits or the instruction payload, e.g.
// a REX prefix that is only sometimes present.
type SizeCalc func(bits uint16, inst *ir.Instruction) uint8

// BranchRange describes the reach of a branch recipe: the displacement is
// Bits wide and is relative to the end of an Origin-byte instruction.
type BranchRange struct {
	Origin uint8
	Bits   uint8
}

// InRange reports whether a branch emitted at origin can reach dest.
func (br BranchRange) InRange(origin, dest int64) bool {
	if br.Bits == 0 {
		return false
	}
	d := dest - (origin + int64(br.Origin))
	lim := int64(1) << (br.Bits - 1)
	return -lim <= d && d < lim
}

// IsBranch returns true if the recipe owning this range is a branch.
func (br BranchRange) IsBranch() bool {
	return br.Bits != 0
}

// RecipeSizing is the size model of one recipe.
type RecipeSizing struct {
	// BaseSize is the instruction size when Compute is nil.
	BaseSize uint8
	// Compute overrides BaseSize when set.
	Compute SizeCalc
	// Range is the zero value for non-branch recipes.
	Range BranchRange
}

// CodeSize returns the byte size of inst when emitted with encoding e.
func (t *Tables) CodeSize(e Encoding, inst *ir.Instruction) uint8 {
	s := &t.Recipes[e.Recipe()].Sizing
	if s.Compute != nil {
		return s.Compute(e.Bits(), inst)
	}
	return s.BaseSize
}

// BranchRangeOf returns the branch range of the encoding's recipe; the
// zero value means the recipe is not a branch.
func (t *Tables) BranchRangeOf(e Encoding) BranchRange {
	return t.Recipes[e.Recipe()].Sizing.Range
}
