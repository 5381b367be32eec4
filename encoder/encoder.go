// Package encoder turns an opcode descriptor and its operands into
// instruction bits, and lays the bits out as bytes.
package encoder

import (
	"encoding/binary"
	"fmt"

	"github.com/sarchlab/lirasm/isa"
)

// Error is raised (as a panic value) when the encoder is asked to do
// something no valid instruction list can ask for.
type Error struct {
	Opcode  string
	Operand int
	Msg     string
}

func (e *Error) Error() string {
	return fmt.Sprintf("encoder: %s operand %d: %s", e.Opcode, e.Operand, e.Msg)
}

func fail(desc *isa.Descriptor, i int, format string, args ...any) {
	panic(&Error{
		Opcode:  desc.Name,
		Operand: i,
		Msg:     fmt.Sprintf(format, args...),
	})
}

func mask(end int8) uint64 {
	return (uint64(1) << (uint(end) + 1)) - 1
}

// Encode merges the operands into the skeleton selected by op.
func Encode(desc *isa.Descriptor, op isa.Op, operands [4]int32) uint32 {
	if op.Wide && !desc.HasWide() {
		fail(desc, -1, "no wide variant")
	}

	bits := desc.SkeletonFor(op.Wide)

	for i, f := range desc.Fields {
		if f.Kind == isa.Unused {
			break
		}

		operand := operands[i]
		if f.Kind.IsContiguous() {
			checkRegister(desc, i, f.Kind, operand)
			value := (uint64(uint32(operand)) << uint(f.Start)) & mask(f.End)
			bits |= uint32(value)
			continue
		}

		bits |= encodeField(desc, op, i, f, uint32(operand))
	}

	return bits
}

func checkRegister(desc *isa.Descriptor, i int, kind isa.FieldKind, r int32) {
	switch kind {
	case isa.RegLow:
		if r < 0 || r > 7 {
			fail(desc, i, "r%d is not a low register", r)
		}
	case isa.RegNoPC:
		if r == 15 {
			fail(desc, i, "pc not allowed")
		}
	case isa.RegNoSP:
		if r == 13 || r == 15 {
			fail(desc, i, "r%d not allowed", r)
		}
	}
}

func encodeField(
	desc *isa.Descriptor,
	op isa.Op,
	i int,
	f isa.Field,
	x uint32,
) uint32 {
	kind := f.Kind
	if kind == isa.Fp {
		kind = isa.Sfp
		if op.Wide {
			kind = isa.Dfp
		}
	}

	switch kind {
	case isa.Skip:
		return 0
	case isa.RegDN:
		return ((x&8)>>3)<<7 | x&7
	case isa.Sfp:
		return (x&1)<<uint(f.End) | ((x&0x1e)>>1)<<uint(f.Start)
	case isa.Dfp:
		return ((x&0x10)>>4)<<uint(f.End) | (x&0xf)<<uint(f.Start)
	case isa.ModImm, isa.Imm12:
		return ((x&0x800)>>11)<<26 | ((x&0x700)>>8)<<12 | x&0xff
	case isa.Imm16:
		return ((x&0x800)>>11)<<26 | ((x&0xf000)>>12)<<16 |
			((x&0x700)>>8)<<12 | x&0xff
	case isa.Imm6:
		return ((x&0x20)>>5)<<9 | (x&0x1f)<<3
	case isa.BrOffset:
		return ((x&0x80000)>>19)<<26 |
			((x&0x40000)>>18)<<11 |
			((x&0x20000)>>17)<<13 |
			((x&0x1f800)>>11)<<16 |
			x&0x7ff
	case isa.Off24:
		s := (x >> 31) & 1
		i1 := (x >> 22) & 1
		i2 := (x >> 21) & 1
		j1 := ^(i1 ^ s) & 1
		j2 := ^(i2 ^ s) & 1
		imm10 := (x >> 11) & 0x3ff
		imm11 := x & 0x7ff
		return s<<26 | j1<<13 | j2<<11 | imm10<<16 | imm11
	case isa.Shift:
		return ((x&0x70)>>4)<<12 | (x&0xf)<<4
	case isa.Shift5, isa.Lsb:
		return ((x&0x1c)>>2)<<12 | (x&3)<<6
	case isa.BWidth:
		return x - 1
	case isa.FPImm:
		return ((x&0xf0)>>4)<<uint(f.End) | (x&0xf)<<uint(f.Start)
	}

	fail(desc, i, "unknown field kind %s", f.Kind)
	return 0
}

// Put writes the low size bytes of bits to dst in the given byte order and
// returns dst extended by size bytes.
func Put(dst []byte, bits uint32, size int, order isa.ByteOrder) []byte {
	switch size {
	case 0:
		return dst
	case 2:
		return binary.LittleEndian.AppendUint16(dst, uint16(bits))
	case 4:
		if order == isa.HalfwordSwapped {
			dst = binary.LittleEndian.AppendUint16(dst, uint16(bits>>16))
			return binary.LittleEndian.AppendUint16(dst, uint16(bits))
		}
		return binary.LittleEndian.AppendUint32(dst, bits)
	}

	panic(&Error{Opcode: "put", Operand: -1, Msg: fmt.Sprintf("bad size %d", size)})
}

// PutAt overwrites size bytes of dst starting at offset.
func PutAt(dst []byte, offset int, bits uint32, size int, order isa.ByteOrder) {
	Put(dst[offset:offset:offset+size], bits, size, order)
}
