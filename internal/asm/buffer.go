// Package asm provides the code buffer machine-code recipes emit into:
// little-endian byte emission, labels, and pc-relative displacement fixups
// resolved when the buffer is finished.
package asm

import (
	"encoding/binary"
	"fmt"
)

// Label identifies a position in the buffer that branches can target
// before it is bound.
type Label uint32

// LabelInvalid is the zero Label and is never returned by AllocateLabel.
const LabelInvalid Label = 0

const labelUnbound = -1

// Buffer accumulates emitted machine code. The zero value is ready to use.
type Buffer struct {
	code   []byte
	labels []int // offset per label, labelUnbound until Bind
	fixups []fixup
}

// fixup records a displacement field at off, width bytes wide, relative to
// the end of the field (off+width).
type fixup struct {
	label Label
	off   int
	width uint8
}

// Len returns the number of bytes emitted so far.
func (b *Buffer) Len() int {
	return len(b.code)
}

// Bytes returns the emitted code. The slice is invalidated by further
// emission.
func (b *Buffer) Bytes() []byte {
	return b.code
}

// Truncate discards everything emitted after offset n, so a caller can
// roll back a partially emitted instruction. Labels bound and fixups
// recorded past n are discarded with it.
func (b *Buffer) Truncate(n int) {
	if n > len(b.code) {
		panic("BUG: truncating past the end of the buffer")
	}
	b.code = b.code[:n]
	for i, off := range b.labels {
		if off != labelUnbound && off > n {
			b.labels[i] = labelUnbound
		}
	}
	kept := b.fixups[:0]
	for _, f := range b.fixups {
		if f.off < n {
			kept = append(kept, f)
		}
	}
	b.fixups = kept
}

// Reset empties the buffer, keeping allocations.
func (b *Buffer) Reset() {
	b.code = b.code[:0]
	b.labels = b.labels[:0]
	b.fixups = b.fixups[:0]
}

// EmitByte writes one byte.
func (b *Buffer) EmitByte(v byte) {
	b.code = append(b.code, v)
}

// Emit2Bytes writes v little-endian.
func (b *Buffer) Emit2Bytes(v uint16) {
	b.code = binary.LittleEndian.AppendUint16(b.code, v)
}

// Emit4Bytes writes v little-endian.
func (b *Buffer) Emit4Bytes(v uint32) {
	b.code = binary.LittleEndian.AppendUint32(b.code, v)
}

// Emit8Bytes writes v little-endian.
func (b *Buffer) Emit8Bytes(v uint64) {
	b.code = binary.LittleEndian.AppendUint64(b.code, v)
}

// AllocateLabel returns a fresh unbound label.
func (b *Buffer) AllocateLabel() Label {
	b.labels = append(b.labels, labelUnbound)
	return Label(len(b.labels)) // labels are 1-based so that 0 stays invalid
}

// Bind binds l to the current position. Binding twice is a bug.
func (b *Buffer) Bind(l Label) {
	if b.labels[l-1] != labelUnbound {
		panic("BUG: label bound twice")
	}
	b.labels[l-1] = len(b.code)
}

// EmitRel emits a width-byte displacement field targeting l, resolved at
// Finish. width must be 1 or 4.
func (b *Buffer) EmitRel(l Label, width uint8) {
	b.fixups = append(b.fixups, fixup{label: l, off: len(b.code), width: width})
	switch width {
	case 1:
		b.EmitByte(0)
	case 4:
		b.Emit4Bytes(0)
	default:
		panic("BUG: invalid displacement width")
	}
}

// Finish resolves every pending fixup. It fails if a label is unbound or a
// 1-byte displacement cannot reach its target.
func (b *Buffer) Finish() error {
	for _, f := range b.fixups {
		target := b.labels[f.label-1]
		if target == labelUnbound {
			return fmt.Errorf("label %d is never bound", f.label)
		}
		d := target - (f.off + int(f.width))
		switch f.width {
		case 1:
			if d < -128 || d > 127 {
				return fmt.Errorf("label %d: displacement %d does not fit in 8 bits", f.label, d)
			}
			b.code[f.off] = byte(d)
		case 4:
			binary.LittleEndian.PutUint32(b.code[f.off:], uint32(int32(d)))
		}
	}
	b.fixups = b.fixups[:0]
	return nil
}
