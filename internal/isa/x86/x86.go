// Package x86 is the x86 instruction encoder: a declarative definition of
// recipes, predicates, and per-opcode encodings compiled by internal/meta
// into the dispatch tables of internal/enc, plus the emitters that turn a
// chosen encoding into machine code.
package x86

import (
	"errors"
	"fmt"
	"sync"

	"github.com/encgen/encgen/internal/asm"
	"github.com/encgen/encgen/internal/enc"
	"github.com/encgen/encgen/internal/ir"
)

// ErrNoEncoding is wrapped by Encoding when an instruction has no legal
// encoding under the target's mode and feature flags. The caller is
// expected to legalize the instruction and retry.
var ErrNoEncoding = errors.New("no legal encoding")

var (
	buildOnce sync.Once
	builtDef  *def
	buildErr  error
)

// sharedDef compiles the x86 definition on first use. The tables are
// immutable afterwards, so every Target shares them.
func sharedDef() (*def, error) {
	buildOnce.Do(func() {
		builtDef, buildErr = buildDef()
	})
	return builtDef, buildErr
}

// Tables returns the compiled x86 encoding tables.
func Tables() (*enc.Tables, error) {
	d, err := sharedDef()
	if err != nil {
		return nil, err
	}
	return d.tables, nil
}

// Target is an x86 encoding target: one CPU mode plus one CPU feature
// configuration. Targets are cheap and safe for concurrent use.
type Target struct {
	d     *def
	mode  enc.Mode
	flags enc.Flags
}

// NewTarget returns a target for the given mode and feature settings.
func NewTarget(mode enc.Mode, s Settings) (*Target, error) {
	if mode != ModeX86_64 && mode != ModeX86_32 {
		return nil, fmt.Errorf("unknown x86 cpu mode %d", mode)
	}
	d, err := sharedDef()
	if err != nil {
		return nil, err
	}
	return &Target{d: d, mode: mode, flags: s.flags(d)}, nil
}

// Mode returns the target's CPU mode.
func (t *Target) Mode() enc.Mode { return t.mode }

// Tables returns the encoding tables the target dispatches through.
func (t *Target) Tables() *enc.Tables { return t.d.tables }

// Encodings returns an iterator over the legal encodings of inst, in
// definition order.
func (t *Target) Encodings(inst *ir.Instruction) enc.EncodingIterator {
	return t.d.tables.Lookup(t.mode, inst, t.flags)
}

// Encoding returns the first legal encoding of inst. On failure the error
// wraps ErrNoEncoding and names the legalize action to apply.
func (t *Target) Encoding(inst *ir.Instruction) (enc.Encoding, error) {
	it := t.Encodings(inst)
	if e, ok := it.Next(); ok {
		return e, nil
	}
	return enc.EncodingInvalid, fmt.Errorf("%w for %s: %s", ErrNoEncoding, inst, it.Legalize())
}

// Constraints returns the register constraints of the encoding's recipe.
func (t *Target) Constraints(e enc.Encoding) *enc.RecipeConstraints {
	return &t.d.tables.Recipes[e.Recipe()].Constraints
}

// CodeSize returns the byte size of inst when emitted with encoding e.
func (t *Target) CodeSize(e enc.Encoding, inst *ir.Instruction) uint8 {
	return t.d.tables.CodeSize(e, inst)
}

// BranchForm returns the first legal encoding of a branch or jump whose
// displacement reaches dest from an instruction placed at origin. Branch
// relaxation calls this with growing origins until the choice is stable.
func (t *Target) BranchForm(inst *ir.Instruction, origin, dest int64) (enc.Encoding, error) {
	it := t.Encodings(inst)
	for {
		e, ok := it.Next()
		if !ok {
			break
		}
		if t.d.tables.BranchRangeOf(e).InRange(origin, dest) {
			return e, nil
		}
	}
	return enc.EncodingInvalid, fmt.Errorf("%w: no branch form of %s reaches %#x from %#x",
		ErrNoEncoding, inst.Opcode(), dest, origin)
}

// Emit validates the register assignment against the recipe's constraints
// and writes inst's machine code to buf.
func (t *Target) Emit(buf *asm.Buffer, inst *ir.Instruction, e enc.Encoding, a RegArgs) error {
	if !e.IsLegal() {
		return fmt.Errorf("emitting %s: illegal encoding", inst)
	}
	recipe := int(e.Recipe())
	if recipe >= len(t.d.emitters) {
		panic("BUG: encoding recipe out of range")
	}
	rm := &t.d.tables.Recipes[recipe]
	if err := rm.Constraints.Satisfied(a.assignment(), ClassOf); err != nil {
		return fmt.Errorf("emitting %s with recipe %s: %w", inst, rm.Name, err)
	}
	em := &emitter{buf: buf, mode64: t.mode == ModeX86_64}
	start := buf.Len()
	if err := t.d.emitters[recipe](em, e.Bits(), inst, a); err != nil {
		buf.Truncate(start) // never leave part of an instruction behind
		return fmt.Errorf("emitting %s with recipe %s: %w", inst, rm.Name, err)
	}
	return nil
}
