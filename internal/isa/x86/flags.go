package x86

import (
	"github.com/encgen/encgen/internal/enc"
)

// Settings is the CPU feature configuration encodings can be guarded on.
// Features that every x86-64 CPU has (SSE2 in particular) need no switch.
type Settings struct {
	Popcnt bool
	Lzcnt  bool
	Bmi1   bool
}

// Baseline returns the plain x86-64 feature set.
func Baseline() Settings {
	return Settings{}
}

// Haswell returns the feature set of Intel Haswell and later, which is
// also a reasonable minimum for modern AMD parts.
func Haswell() Settings {
	return Settings{Popcnt: true, Lzcnt: true, Bmi1: true}
}

// flags folds the settings into the predicate bit vector the encoding
// tables test. Bit positions come from the definition in defs.go.
func (s Settings) flags(d *def) enc.Flags {
	var f enc.Flags
	set := func(on bool, bit uint8) {
		if on {
			f |= 1 << bit
		}
	}
	set(s.Popcnt, d.popcnt)
	set(s.Lzcnt, d.lzcnt)
	set(s.Bmi1, d.bmi1)
	return f
}
