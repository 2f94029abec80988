package enc

// The level-1 and level-2 tables are open-addressed hash tables with
// power-of-two capacity and triangular-number probing: slot(i) follows
// slot(i-1) by i steps, which visits every slot of a power-of-two table
// exactly once. The builder in internal/meta uses the same functions, so
// construction and lookup cannot drift apart.

// HashKey mixes a table key. Fibonacci hashing is plenty for the small,
// fixed key sets these tables hold.
func HashKey(k uint32) uint32 {
	return k * 0x9e3779b1
}

// Probe returns the slot to inspect on the i'th attempt for hash h in a
// table of capacity mask+1.
func Probe(h uint32, i uint32, mask uint32) uint32 {
	return (h + i*(i+1)/2) & mask
}
