package meta

// Setting is one CPU feature setting, identified by its bit in the flag
// vector a target computes from its feature configuration.
type Setting struct {
	b   *TargetBuilder
	bit uint8
}

// Bit returns the setting's bit index in enc.Flags.
func (s Setting) Bit() uint8 { return s.bit }

// PredRef names an instruction predicate registered with a builder.
type PredRef struct {
	b     *TargetBuilder
	index uint8
}

// Guard is one predicate check protecting an encoding. A guarded encoding
// is only yielded when every guard holds.
type Guard struct {
	isa  bool
	bit  uint8
	pred PredRef
}

// Isa guards an encoding on a CPU feature setting.
func Isa(s Setting) Guard {
	return Guard{isa: true, bit: s.bit, pred: PredRef{b: s.b}}
}

// If guards an encoding on an instruction predicate.
func If(p PredRef) Guard {
	return Guard{pred: p}
}

func (g Guard) owner() *TargetBuilder {
	return g.pred.b
}
