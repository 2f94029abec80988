package meta

import (
	"errors"
	"fmt"

	"github.com/encgen/encgen/internal/enc"
	"github.com/encgen/encgen/internal/ir"
)

// Recipe is an encoding template: the ISA emitter knows how to turn
// (recipe, bits, instruction, registers) into machine code, and the tables
// carry everything else a backend needs to plan around it.
type Recipe struct {
	Name   string
	Format ir.Format

	// Ins and Outs constrain the register operands in slot order.
	Ins  []enc.OperandConstraint
	Outs []enc.OperandConstraint

	// ClobbersFlags is true if emitted code overwrites the CPU flags.
	ClobbersFlags bool

	// BaseSize is the emitted size in bytes; Compute overrides it for
	// recipes whose size depends on the encoding bits or the payload.
	BaseSize uint8
	Compute  enc.SizeCalc

	// Range is set on branch recipes only.
	Range enc.BranchRange
}

func (r *Recipe) validate() error {
	if r.Name == "" {
		return errors.New("recipe has no name")
	}
	for slot, c := range r.Ins {
		if c.Kind == enc.ConstraintTied {
			return fmt.Errorf("input %d is tied; only outputs can be tied", slot)
		}
	}
	for slot, c := range r.Outs {
		if c.Kind == enc.ConstraintTied && int(c.Tied) >= len(r.Ins) {
			return fmt.Errorf("output %d tied to missing input %d", slot, c.Tied)
		}
	}
	return nil
}

// RecipeRef names a recipe registered with a builder.
type RecipeRef struct {
	b     *TargetBuilder
	index uint16
}

// Index returns the recipe's index in the built tables.
func (r RecipeRef) Index() uint16 { return r.index }

// Reg constrains an operand to any register of a class.
func Reg(class enc.RegClass) enc.OperandConstraint {
	return enc.OperandConstraint{Kind: enc.ConstraintReg, Class: class}
}

// Fixed constrains an operand to one specific register.
func Fixed(class enc.RegClass, reg enc.RealReg) enc.OperandConstraint {
	return enc.OperandConstraint{Kind: enc.ConstraintFixedReg, Class: class, Reg: reg}
}

// Tied constrains an output to reuse the register of the given input slot.
func Tied(input uint8) enc.OperandConstraint {
	return enc.OperandConstraint{Kind: enc.ConstraintTied, Tied: input}
}

// Stack constrains an operand to a stack slot.
func Stack(class enc.RegClass) enc.OperandConstraint {
	return enc.OperandConstraint{Kind: enc.ConstraintStack, Class: class}
}
