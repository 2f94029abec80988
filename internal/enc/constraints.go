package enc

import (
	"errors"
	"fmt"
)

// ErrConstraint is wrapped by every constraint violation reported by
// RecipeConstraints.Satisfied.
var ErrConstraint = errors.New("register constraint violated")

// ConstraintKind classifies an operand constraint.
type ConstraintKind uint8

const (
	// ConstraintReg requires any register of the constraint's class.
	ConstraintReg ConstraintKind = iota
	// ConstraintFixedReg requires one specific register.
	ConstraintFixedReg
	// ConstraintTied is used on outputs that must share the register of
	// the input slot named by Tied. Two-address instructions use this.
	ConstraintTied
	// ConstraintStack requires a stack slot rather than a register.
	ConstraintStack
)

// OperandConstraint constrains one register operand of a recipe.
type OperandConstraint struct {
	Kind  ConstraintKind
	Class RegClass
	// Reg is the required register for ConstraintFixedReg.
	Reg RealReg
	// Tied is the input slot index for ConstraintTied.
	Tied uint8
}

// RecipeConstraints is the register-allocation contract of one recipe.
type RecipeConstraints struct {
	Ins  []OperandConstraint
	Outs []OperandConstraint
	// ClobbersFlags is true if the recipe overwrites the CPU flags, so a
	// live flags value cannot be kept across it.
	ClobbersFlags bool
}

// Assignment is a concrete register choice for an instruction about to be
// emitted.
type Assignment struct {
	Ins  []RealReg
	Outs []RealReg
}

// Satisfied checks a against the constraints. classOf maps a register to
// its class; the ISA supplies it since only the ISA knows the register
// banks. Stack-constrained operands must carry RealRegInvalid.
func (rc *RecipeConstraints) Satisfied(a Assignment, classOf func(RealReg) RegClass) error {
	if len(a.Ins) != len(rc.Ins) {
		return fmt.Errorf("%w: want %d inputs, have %d", ErrConstraint, len(rc.Ins), len(a.Ins))
	}
	if len(a.Outs) != len(rc.Outs) {
		return fmt.Errorf("%w: want %d outputs, have %d", ErrConstraint, len(rc.Outs), len(a.Outs))
	}
	for slot, c := range rc.Ins {
		if err := checkOperand("input", slot, c, a.Ins[slot], a, classOf); err != nil {
			return err
		}
	}
	for slot, c := range rc.Outs {
		if err := checkOperand("output", slot, c, a.Outs[slot], a, classOf); err != nil {
			return err
		}
	}
	return nil
}

func checkOperand(what string, slot int, c OperandConstraint, r RealReg, a Assignment, classOf func(RealReg) RegClass) error {
	switch c.Kind {
	case ConstraintReg:
		if r == RealRegInvalid {
			return fmt.Errorf("%w: %s %d needs a register", ErrConstraint, what, slot)
		}
		if classOf(r) != c.Class {
			return fmt.Errorf("%w: %s %d has the wrong register class", ErrConstraint, what, slot)
		}
	case ConstraintFixedReg:
		if r != c.Reg {
			return fmt.Errorf("%w: %s %d must be register %d, have %d", ErrConstraint, what, slot, c.Reg, r)
		}
	case ConstraintTied:
		if r != a.Ins[c.Tied] {
			return fmt.Errorf("%w: %s %d must reuse input %d", ErrConstraint, what, slot, c.Tied)
		}
	case ConstraintStack:
		if r != RealRegInvalid {
			return fmt.Errorf("%w: %s %d must be a stack slot", ErrConstraint, what, slot)
		}
	}
	return nil
}
