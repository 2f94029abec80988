package meta

import (
	"errors"
	"fmt"

	"github.com/encgen/encgen/internal/enc"
)

// hashCapacity returns the power-of-two capacity for n keys at a load
// factor of at most 3/4.
func hashCapacity(n int) uint32 {
	c := uint32(2)
	for int(c)*3 < n*4 {
		c <<= 1
	}
	return c
}

// insertSlot walks the probe sequence for h and returns the first empty
// slot. Insertion along the probe order guarantees later lookups, which
// walk the same order and stop at the first empty slot, find the key.
func insertSlot(capacity uint32, h uint32, empty func(uint32) bool) (uint32, error) {
	mask := capacity - 1
	for i := uint32(0); i < capacity; i++ {
		if s := enc.Probe(h, i, mask); empty(s) {
			return s, nil
		}
	}
	return 0, errors.New("hash table full")
}

// level2Pool concatenates level-2 tables, sharing content-identical tables
// across controlling types and cpu modes.
type level2Pool struct {
	entries []enc.Level2Entry
	shared  map[string]uint32
}

type level2Item struct {
	key    uint16
	offset uint32
}

func newLevel2Pool() *level2Pool {
	return &level2Pool{shared: map[string]uint32{}}
}

// add builds the open-addressed table over items and returns its offset
// and mask.
func (p *level2Pool) add(items []level2Item) (offset, mask uint32, err error) {
	capacity := hashCapacity(len(items))
	table := make([]enc.Level2Entry, capacity)
	for _, it := range items {
		slot, err := insertSlot(capacity, enc.HashKey(uint32(it.key)), func(s uint32) bool {
			return table[s].Key == 0
		})
		if err != nil {
			return 0, 0, err
		}
		table[slot] = enc.Level2Entry{Key: it.key, Offset: it.offset}
	}
	for _, it := range items {
		if !findable(table, it.key) {
			return 0, 0, fmt.Errorf("key %d not findable after construction", it.key)
		}
	}

	words := make([]uint16, 0, 3*capacity)
	for _, e := range table {
		words = append(words, e.Key, uint16(e.Offset), uint16(e.Offset>>16))
	}
	fp := fingerprint(words)
	if off, ok := p.shared[fp]; ok {
		return off, capacity - 1, nil
	}
	off := uint32(len(p.entries))
	p.entries = append(p.entries, table...)
	p.shared[fp] = off
	return off, capacity - 1, nil
}

// findable mirrors the runtime probe loop.
func findable(table []enc.Level2Entry, key uint16) bool {
	mask := uint32(len(table) - 1)
	h := enc.HashKey(uint32(key))
	for i := uint32(0); i <= mask; i++ {
		e := &table[enc.Probe(h, i, mask)]
		if e.Key == key {
			return true
		}
		if e.Key == 0 {
			return false
		}
	}
	return false
}
