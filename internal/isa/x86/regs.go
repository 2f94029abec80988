package x86

import (
	"github.com/encgen/encgen/internal/enc"
)

// Physical registers. General purpose registers take 0..15 so that the low
// four bits are the hardware encoding; XMM registers follow.
const (
	RegRAX enc.RealReg = iota
	RegRCX
	RegRDX
	RegRBX
	RegRSP
	RegRBP
	RegRSI
	RegRDI
	RegR8
	RegR9
	RegR10
	RegR11
	RegR12
	RegR13
	RegR14
	RegR15

	RegXMM0
	RegXMM1
	RegXMM2
	RegXMM3
	RegXMM4
	RegXMM5
	RegXMM6
	RegXMM7
	RegXMM8
	RegXMM9
	RegXMM10
	RegXMM11
	RegXMM12
	RegXMM13
	RegXMM14
	RegXMM15

	numRegs
)

var regNames = [numRegs]string{
	RegRAX: "rax", RegRCX: "rcx", RegRDX: "rdx", RegRBX: "rbx",
	RegRSP: "rsp", RegRBP: "rbp", RegRSI: "rsi", RegRDI: "rdi",
	RegR8: "r8", RegR9: "r9", RegR10: "r10", RegR11: "r11",
	RegR12: "r12", RegR13: "r13", RegR14: "r14", RegR15: "r15",
	RegXMM0: "xmm0", RegXMM1: "xmm1", RegXMM2: "xmm2", RegXMM3: "xmm3",
	RegXMM4: "xmm4", RegXMM5: "xmm5", RegXMM6: "xmm6", RegXMM7: "xmm7",
	RegXMM8: "xmm8", RegXMM9: "xmm9", RegXMM10: "xmm10", RegXMM11: "xmm11",
	RegXMM12: "xmm12", RegXMM13: "xmm13", RegXMM14: "xmm14", RegXMM15: "xmm15",
}

// RegName returns the name of r, e.g. "rax".
func RegName(r enc.RealReg) string {
	if r >= numRegs {
		return "reg?"
	}
	return regNames[r]
}

// ClassOf returns the register class of r. It is the classOf function
// constraint checks run with.
func ClassOf(r enc.RealReg) enc.RegClass {
	if r < RegXMM0 {
		return classGPR
	}
	return classFPR
}

// regEnc is the 4-bit hardware register number: bit 3 goes to the REX
// prefix, bits 0..2 to ModRM or SIB fields.
type regEnc byte

func (r regEnc) rexBit() byte { return byte(r) >> 3 }

func (r regEnc) lo3() byte { return byte(r) & 0x07 }

func gpEnc(r enc.RealReg) regEnc {
	if r >= RegXMM0 {
		panic("BUG: not a general purpose register")
	}
	return regEnc(r)
}

func xmmEnc(r enc.RealReg) regEnc {
	if r < RegXMM0 || r >= numRegs {
		panic("BUG: not an xmm register")
	}
	return regEnc(r - RegXMM0)
}
