package meta

import (
	"fmt"

	"github.com/encgen/encgen/internal/enc"
)

// listPool collects encoding-list bytecode. Identical lists are emitted
// once and shared, which collapses the many opcode/type pairs that bind
// the same recipes (e.g. every 32-bit ALU op in every mode).
type listPool struct {
	words  []uint16
	shared map[string]uint32
}

func newListPool() *listPool {
	return &listPool{shared: map[string]uint32{}}
}

// add serializes one key's bindings and returns the list's offset in the
// pool.
func (p *listPool) add(bindings []binding) (uint32, error) {
	var words []uint16
	for _, nb := range bindings {
		n := len(nb.guards)
		for i, g := range nb.guards {
			// A failing guard skips the remaining guards of this binding
			// and its two entry words, landing on the next alternative.
			skip := (n - 1 - i) + 2
			if skip > maxSkip {
				return 0, fmt.Errorf("guard skip %d exceeds %d words", skip, maxSkip)
			}
			tag := uint16(enc.ListTagInstPred)
			pred := uint16(nb.guards[i].pred.index)
			if g.isa {
				tag = enc.ListTagIsaPred
				pred = uint16(g.bit)
			}
			words = append(words, tag<<enc.ListTagShift|uint16(skip)<<enc.ListSkipShift|pred)
		}
		words = append(words, nb.recipe, nb.bits)
	}
	words = append(words, enc.ListStopWord)

	key := fingerprint(words)
	if off, ok := p.shared[key]; ok {
		return off, nil
	}
	off := uint32(len(p.words))
	p.words = append(p.words, words...)
	p.shared[key] = off
	return off, nil
}

func fingerprint(words []uint16) string {
	b := make([]byte, 2*len(words))
	for i, w := range words {
		b[2*i] = byte(w)
		b[2*i+1] = byte(w >> 8)
	}
	return string(b)
}
