// Package encgen compiles a declarative x86 instruction-encoding definition
// into compact dispatch tables and answers encoding queries against them:
// which recipes can encode an instruction under a CPU mode and feature set,
// how many bytes each form takes, and how to emit the machine code.
//
// The package is a thin facade. The table compiler lives in internal/meta,
// the table runtime in internal/enc, and the x86 definition with its
// emitters in internal/isa/x86.
package encgen

import (
	"fmt"

	"github.com/encgen/encgen/internal/asm"
	"github.com/encgen/encgen/internal/enc"
	"github.com/encgen/encgen/internal/ir"
	"github.com/encgen/encgen/internal/isa/x86"
	"github.com/encgen/encgen/internal/meta"
)

// Re-exported types for callers outside this module.
type (
	// Instruction is the target-independent instruction encoding lookup
	// is keyed on. Build one with the New* constructors below.
	Instruction = ir.Instruction
	// Encoding is a packed (recipe, encoding bits) pair.
	Encoding = enc.Encoding
	// EncodingIterator yields the legal encodings of one instruction.
	EncodingIterator = enc.EncodingIterator
	// Tables is the compiled dispatch-table bundle.
	Tables = enc.Tables
	// Buffer accumulates emitted machine code and resolves labels.
	Buffer = asm.Buffer
	// Label marks a branch target in a Buffer.
	Label = asm.Label
	// RegArgs is the register assignment of an instruction being emitted.
	RegArgs = x86.RegArgs
)

// Instruction constructors.
var (
	NewNullary    = ir.NewNullary
	NewUnary      = ir.NewUnary
	NewBinary     = ir.NewBinary
	NewUnaryImm   = ir.NewUnaryImm
	NewBinaryImm  = ir.NewBinaryImm
	NewIntCompare = ir.NewIntCompare
	NewLoad       = ir.NewLoad
	NewStore      = ir.NewStore
	NewJump       = ir.NewJump
	NewBranch     = ir.NewBranch
	NewCall       = ir.NewCall
)

// TargetConfig selects the CPU mode and feature set of a Target. Each With
// method returns a new config, leaving the receiver unchanged.
type TargetConfig interface {
	// WithMode32 targets 32-bit x86 instead of the default x86-64.
	WithMode32() TargetConfig
	// WithPopcnt enables the popcnt instruction.
	WithPopcnt(bool) TargetConfig
	// WithLzcnt enables the lzcnt instruction.
	WithLzcnt(bool) TargetConfig
	// WithBmi1 enables the BMI1 extension (tzcnt).
	WithBmi1(bool) TargetConfig
	// WithHaswell enables every feature of Intel Haswell and later.
	WithHaswell() TargetConfig
}

type targetConfig struct {
	mode     enc.Mode
	settings x86.Settings
}

// NewTargetConfig returns a config for baseline x86-64.
func NewTargetConfig() TargetConfig {
	return &targetConfig{mode: x86.ModeX86_64, settings: x86.Baseline()}
}

func (c *targetConfig) clone() *targetConfig {
	d := *c
	return &d
}

// WithMode32 implements TargetConfig.WithMode32.
func (c *targetConfig) WithMode32() TargetConfig {
	d := c.clone()
	d.mode = x86.ModeX86_32
	return d
}

// WithPopcnt implements TargetConfig.WithPopcnt.
func (c *targetConfig) WithPopcnt(on bool) TargetConfig {
	d := c.clone()
	d.settings.Popcnt = on
	return d
}

// WithLzcnt implements TargetConfig.WithLzcnt.
func (c *targetConfig) WithLzcnt(on bool) TargetConfig {
	d := c.clone()
	d.settings.Lzcnt = on
	return d
}

// WithBmi1 implements TargetConfig.WithBmi1.
func (c *targetConfig) WithBmi1(on bool) TargetConfig {
	d := c.clone()
	d.settings.Bmi1 = on
	return d
}

// WithHaswell implements TargetConfig.WithHaswell.
func (c *targetConfig) WithHaswell() TargetConfig {
	d := c.clone()
	d.settings = x86.Haswell()
	return d
}

// Target answers encoding queries for one CPU mode and feature set and
// emits machine code. Implementations are safe for concurrent use.
type Target interface {
	// Encodings iterates the legal encodings of inst in definition order.
	Encodings(inst *Instruction) EncodingIterator
	// Encoding returns the first legal encoding of inst, or an error
	// naming the legalize action to apply.
	Encoding(inst *Instruction) (Encoding, error)
	// CodeSize returns the emitted byte size of inst under e.
	CodeSize(e Encoding, inst *Instruction) uint8
	// BranchForm picks the smallest branch encoding of inst that reaches
	// dest from origin.
	BranchForm(inst *Instruction, origin, dest int64) (Encoding, error)
	// Emit writes the machine code of inst to buf.
	Emit(buf *Buffer, inst *Instruction, e Encoding, a RegArgs) error
	// Tables exposes the underlying dispatch tables.
	Tables() *Tables
}

// NewTarget returns a Target for the default config.
func NewTarget() (Target, error) {
	return NewTargetWithConfig(NewTargetConfig())
}

// NewTargetWithConfig returns a Target for the given config.
func NewTargetWithConfig(config TargetConfig) (Target, error) {
	c, ok := config.(*targetConfig)
	if !ok {
		return nil, fmt.Errorf("unsupported TargetConfig implementation %T", config)
	}
	return x86.NewTarget(c.mode, c.settings)
}

// GenerateSource renders the compiled x86 tables as a generated Go source
// file declaring package pkg.
func GenerateSource(pkg string) ([]byte, error) {
	t, err := x86.Tables()
	if err != nil {
		return nil, err
	}
	return meta.Source(t, pkg)
}
