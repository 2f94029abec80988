package enc

import (
	"github.com/encgen/encgen/internal/ir"
)

// Encoding-list bytecode. A list is a sequence of uint16 words; the top two
// bits of a word select its form:
//
//	00 rrrrrrrrrrrrrr   candidate entry: recipe index in the low 14 bits,
//	                    the next word holds the encoding bits. Yield the
//	                    pair and continue.
//	01 ssssss pppppppp  instruction-predicate guard: evaluate instruction
//	                    predicate p against the instruction; if it fails,
//	                    skip the next s words.
//	10 ssssss pppppppp  ISA-predicate guard: test flag bit p; if clear,
//	                    skip the next s words.
//	11 ..............   stop.
//
// Guards therefore scope over a run of following words, so one predicate
// can cover several candidate entries. Lists always terminate with a stop
// word; the builder enforces that skips stay inside the list.
const (
	ListTagShift = 14

	ListTagEntry    = 0x0
	ListTagInstPred = 0x1
	ListTagIsaPred  = 0x2
	ListTagStop     = 0x3

	ListRecipeMask = 0x3fff
	ListPredMask   = 0x00ff
	ListSkipShift  = 8
	ListSkipMask   = 0x3f

	// ListStopWord is the canonical stop word.
	ListStopWord uint16 = 0xffff
)

// EncodingIterator yields the encodings of one instruction in declaration
// order, skipping candidates whose predicate guards fail. The zero value
// yields nothing.
type EncodingIterator struct {
	tables   *Tables
	inst     *ir.Instruction
	flags    Flags
	pos      int
	done     bool
	legalize LegalizeAction
}

// Lookup finds the encoding list for inst under the given mode and returns
// an iterator over it. When the controlling type or the opcode has no list,
// the iterator is empty and Legalize reports the action to apply.
func (t *Tables) Lookup(mode Mode, inst *ir.Instruction, flags Flags) EncodingIterator {
	it := EncodingIterator{tables: t, inst: inst, flags: flags, done: true}

	if int(mode) >= len(t.Level1) {
		panic("BUG: undefined cpu mode")
	}
	l1 := t.Level1[mode]
	it.legalize = t.ModeDefault[mode]

	key1 := uint8(inst.Ctrl())
	mask1 := uint32(len(l1) - 1)
	h1 := HashKey(uint32(key1))
	var e1 *Level1Entry
	for i := uint32(0); i <= mask1; i++ {
		slot := &l1[Probe(h1, i, mask1)]
		if slot.Key == key1 {
			e1 = slot
			break
		}
		if slot.Key == Level1KeyEmpty {
			break
		}
	}
	if e1 == nil {
		return it // controlling type unknown to this mode
	}

	it.legalize = e1.Legalize
	if e1.L2Offset == Level2OffsetNone {
		return it // type present but no opcodes encoded for it
	}

	l2 := t.Level2[e1.L2Offset : e1.L2Offset+e1.L2Mask+1]
	key2 := uint16(inst.Opcode())
	h2 := HashKey(uint32(key2))
	for i := uint32(0); i <= e1.L2Mask; i++ {
		slot := &l2[Probe(h2, i, e1.L2Mask)]
		if slot.Key == key2 {
			it.pos = int(slot.Offset)
			it.done = false
			break
		}
		if slot.Key == uint16(ir.OpcodeInvalid) {
			break
		}
	}
	return it
}

// Next returns the next legal encoding, or ok=false when the list is
// exhausted.
func (it *EncodingIterator) Next() (e Encoding, ok bool) {
	if it.done || it.tables == nil {
		return EncodingInvalid, false
	}
	lists := it.tables.Enclists
	for {
		w := lists[it.pos]
		it.pos++
		switch w >> ListTagShift {
		case ListTagEntry:
			bits := lists[it.pos]
			it.pos++
			return NewEncoding(w&ListRecipeMask, bits), true
		case ListTagInstPred:
			pred := it.tables.InstPreds[w&ListPredMask]
			if !pred(it.inst) {
				it.pos += int(w>>ListSkipShift) & ListSkipMask
			}
		case ListTagIsaPred:
			if !it.flags.Test(uint8(w & ListPredMask)) {
				it.pos += int(w>>ListSkipShift) & ListSkipMask
			}
		case ListTagStop:
			it.done = true
			return EncodingInvalid, false
		}
	}
}

// Legalize returns the action to apply when the iterator yields nothing.
func (it *EncodingIterator) Legalize() LegalizeAction {
	return it.legalize
}

// First runs the iterator and returns the first legal encoding.
func (it EncodingIterator) First() (Encoding, bool) {
	return it.Next()
}
