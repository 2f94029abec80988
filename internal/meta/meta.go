// Package meta compiles a declarative ISA description into the runtime
// encoding tables of internal/enc. An ISA definition registers recipes
// (encoding templates with register constraints and size models),
// predicates (instruction properties and CPU feature bits), and encodings
// (bindings from an opcode and controlling type to a recipe, optionally
// guarded by predicates); Build then produces the deduplicated
// encoding-list bytecode and the two-level hashed dispatch tables.
package meta

import (
	"errors"
	"fmt"
	"sort"

	"github.com/encgen/encgen/internal/enc"
	"github.com/encgen/encgen/internal/ir"
)

// TypeNone is the controlling type of instructions that have none, such
// as jumps, calls, and returns.
const TypeNone ir.Type = 0

const (
	maxRecipes   = 1 << 14 // recipe index field width in entry words
	maxInstPreds = 1 << 8  // predicate field width in guard words
	maxSettings  = 32      // enc.Flags is 32 bits
	maxSkip      = 63      // skip field width in guard words
)

// TargetBuilder accumulates an ISA definition. The zero value is not
// usable; call NewTargetBuilder.
type TargetBuilder struct {
	name       string
	modes      []*CpuMode
	settings   []string
	recipes    []*Recipe
	instPreds  []enc.InstPred
	predNames  []string
	regClasses []string
	errs       []error
}

// NewTargetBuilder returns an empty builder for the named target.
func NewTargetBuilder(name string) *TargetBuilder {
	return &TargetBuilder{name: name}
}

// RegClass registers a register class name and returns its index.
func (b *TargetBuilder) RegClass(name string) enc.RegClass {
	b.regClasses = append(b.regClasses, name)
	return enc.RegClass(len(b.regClasses) - 1)
}

// AddSetting registers a CPU feature setting and returns its flag bit.
func (b *TargetBuilder) AddSetting(name string) Setting {
	if len(b.settings) >= maxSettings {
		b.errf("too many settings: %q does not fit in the flag vector", name)
	}
	b.settings = append(b.settings, name)
	return Setting{b: b, bit: uint8(len(b.settings) - 1)}
}

// InstPred registers a named instruction predicate.
func (b *TargetBuilder) InstPred(name string, fn enc.InstPred) PredRef {
	if fn == nil {
		b.errf("instruction predicate %q has no function", name)
	}
	if len(b.instPreds) >= maxInstPreds {
		b.errf("too many instruction predicates: %q does not fit", name)
	}
	b.instPreds = append(b.instPreds, fn)
	b.predNames = append(b.predNames, name)
	return PredRef{b: b, index: uint8(len(b.instPreds) - 1)}
}

// AddRecipe registers a recipe. The recipe value must not be mutated
// afterwards.
func (b *TargetBuilder) AddRecipe(r *Recipe) RecipeRef {
	if len(b.recipes) >= maxRecipes {
		b.errf("too many recipes: %q does not fit in the entry word", r.Name)
	}
	if err := r.validate(); err != nil {
		b.errs = append(b.errs, fmt.Errorf("recipe %q: %w", r.Name, err))
	}
	b.recipes = append(b.recipes, r)
	return RecipeRef{b: b, index: uint16(len(b.recipes) - 1)}
}

// AddMode registers a CPU mode with its default legalize action for
// controlling types the mode knows nothing about.
func (b *TargetBuilder) AddMode(name string, def enc.LegalizeAction) *CpuMode {
	m := &CpuMode{
		b:           b,
		index:       enc.Mode(len(b.modes)),
		name:        name,
		def:         def,
		typeActions: map[ir.Type]enc.LegalizeAction{},
	}
	b.modes = append(b.modes, m)
	return m
}

func (b *TargetBuilder) errf(format string, args ...interface{}) {
	b.errs = append(b.errs, fmt.Errorf(format, args...))
}

// CpuMode collects the encodings of one CPU mode.
type CpuMode struct {
	b           *TargetBuilder
	index       enc.Mode
	name        string
	def         enc.LegalizeAction
	typeActions map[ir.Type]enc.LegalizeAction

	keys     []encKey
	bindings map[encKey][]binding
}

type encKey struct {
	op  ir.Opcode
	typ ir.Type
}

type binding struct {
	recipe uint16
	bits   uint16
	guards []Guard
}

// Index returns the enc.Mode this mode dispatches under.
func (m *CpuMode) Index() enc.Mode {
	return m.index
}

// SetTypeLegalize overrides the legalize action for one controlling type.
// The type gets a level-1 entry even if no opcode is encoded for it.
func (m *CpuMode) SetTypeLegalize(typ ir.Type, action enc.LegalizeAction) {
	m.typeActions[typ] = action
}

// Enc binds (opcode, controlling type) to a recipe with the given encoding
// bits, guarded by zero or more predicates. Within one binding the guards
// are conjunctive; successive Enc calls for the same key are alternatives
// tried in declaration order.
func (m *CpuMode) Enc(op ir.Opcode, typ ir.Type, r RecipeRef, bits uint16, guards ...Guard) {
	b := m.b
	if r.b != b {
		b.errf("mode %s: %s.%s uses a recipe from a different builder", m.name, op, typ)
		return
	}
	rec := b.recipes[r.index]
	if rec.Format != op.Format() {
		b.errf("mode %s: %s has format %d but recipe %q encodes format %d",
			m.name, op, op.Format(), rec.Name, rec.Format)
	}
	for _, g := range guards {
		if g.owner() != nil && g.owner() != b {
			b.errf("mode %s: %s.%s guard from a different builder", m.name, op, typ)
			return
		}
	}

	if m.bindings == nil {
		m.bindings = map[encKey][]binding{}
	}
	k := encKey{op: op, typ: typ}
	nb := binding{recipe: r.index, bits: bits, guards: guards}
	for _, old := range m.bindings[k] {
		if old.recipe == nb.recipe && old.bits == nb.bits && sameGuards(old.guards, nb.guards) {
			b.errf("mode %s: duplicate encoding for %s.%s recipe %q", m.name, op, typ, rec.Name)
			return
		}
	}
	if _, seen := m.bindings[k]; !seen {
		m.keys = append(m.keys, k)
	}
	m.bindings[k] = append(m.bindings[k], nb)
}

func sameGuards(a, b []Guard) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Build compiles the accumulated definition into runtime tables.
func (b *TargetBuilder) Build() (*enc.Tables, error) {
	if len(b.modes) == 0 {
		b.errf("target %s has no cpu modes", b.name)
	}
	if len(b.errs) != 0 {
		return nil, fmt.Errorf("building %s: %w", b.name, errors.Join(b.errs...))
	}

	t := &enc.Tables{
		Name:       b.name,
		InstPreds:  b.instPreds,
		PredNames:  b.predNames,
		Settings:   b.settings,
		RegClasses: b.regClasses,
	}
	t.Recipes = make([]enc.RecipeMeta, len(b.recipes))
	for i, r := range b.recipes {
		t.Recipes[i] = enc.RecipeMeta{
			Name:   r.Name,
			Format: r.Format,
			Constraints: enc.RecipeConstraints{
				Ins:           r.Ins,
				Outs:          r.Outs,
				ClobbersFlags: r.ClobbersFlags,
			},
			Sizing: enc.RecipeSizing{
				BaseSize: r.BaseSize,
				Compute:  r.Compute,
				Range:    r.Range,
			},
		}
	}

	lists := newListPool()
	l2pool := newLevel2Pool()

	for _, m := range b.modes {
		l1, err := b.buildMode(m, lists, l2pool)
		if err != nil {
			return nil, fmt.Errorf("building %s mode %s: %w", b.name, m.name, err)
		}
		t.Level1 = append(t.Level1, l1)
		t.ModeDefault = append(t.ModeDefault, m.def)
	}

	t.Enclists = lists.words
	t.Level2 = l2pool.entries
	return t, nil
}

// buildMode compiles one mode's encodings: an encoding list per (opcode,
// type) key, a level-2 table per controlling type, and the mode's level-1
// table over the types.
func (b *TargetBuilder) buildMode(m *CpuMode, lists *listPool, l2pool *level2Pool) ([]enc.Level1Entry, error) {
	// Group keys by controlling type, keeping declaration order.
	var types []ir.Type
	perType := map[ir.Type][]encKey{}
	for _, k := range m.keys {
		if _, seen := perType[k.typ]; !seen {
			types = append(types, k.typ)
		}
		perType[k.typ] = append(perType[k.typ], k)
	}
	// Types registered only via SetTypeLegalize come from a map; sort
	// them so the level-1 insertion order, and with it the dump, is
	// deterministic.
	var actionOnly []ir.Type
	for typ := range m.typeActions {
		if _, seen := perType[typ]; !seen {
			actionOnly = append(actionOnly, typ)
			perType[typ] = nil
		}
	}
	sort.Slice(actionOnly, func(i, j int) bool { return actionOnly[i] < actionOnly[j] })
	types = append(types, actionOnly...)

	type l1item struct {
		key      uint8
		legalize enc.LegalizeAction
		l2off    uint32
		l2mask   uint32
	}
	items := make([]l1item, 0, len(types))
	for _, typ := range types {
		it := l1item{key: uint8(typ), legalize: m.def, l2off: enc.Level2OffsetNone}
		if a, ok := m.typeActions[typ]; ok {
			it.legalize = a
		}
		keys := perType[typ]
		if len(keys) > 0 {
			l2 := make([]level2Item, len(keys))
			for i, k := range keys {
				off, err := lists.add(m.bindings[k])
				if err != nil {
					return nil, fmt.Errorf("%s.%s: %w", k.op, k.typ, err)
				}
				l2[i] = level2Item{key: uint16(k.op), offset: off}
			}
			off, mask, err := l2pool.add(l2)
			if err != nil {
				return nil, fmt.Errorf("level2 for %s: %w", typ, err)
			}
			it.l2off, it.l2mask = off, mask
		}
		items = append(items, it)
	}

	// The level-1 table itself.
	capacity := hashCapacity(len(items))
	l1 := make([]enc.Level1Entry, capacity)
	for i := range l1 {
		l1[i] = enc.Level1Entry{Key: enc.Level1KeyEmpty, L2Offset: enc.Level2OffsetNone}
	}
	for _, it := range items {
		slot, err := insertSlot(capacity, enc.HashKey(uint32(it.key)), func(s uint32) bool {
			return l1[s].Key == enc.Level1KeyEmpty
		})
		if err != nil {
			return nil, fmt.Errorf("level1: %w", err)
		}
		l1[slot] = enc.Level1Entry{
			Key:      it.key,
			Legalize: it.legalize,
			L2Offset: it.l2off,
			L2Mask:   it.l2mask,
		}
	}
	return l1, nil
}
