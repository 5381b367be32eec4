package asm

import (
	"github.com/sarchlab/lirasm/encoder"
	"github.com/sarchlab/lirasm/isa"
	"github.com/sarchlab/lirasm/lir"
)

// bufferSlop is reserved on top of the size estimate so that a few
// expansions do not reallocate the buffer.
const bufferSlop = 256

// layout assigns initial offsets and sizes, encodes everything that does
// not depend on layout and builds the fixup list.
func (u *unit) layout() {
	u.markTargets()

	order := u.a.isa.ByteOrder()
	u.buf = make([]byte, 0, u.a.sizeEstimate+bufferSlop)
	offset := u.a.startOffset

	for id := u.list.First(); id != lir.Nil; id = u.list.Next(id) {
		in := u.list.At(id)
		in.Offset = offset
		in.Generation = 0

		if in.Dead {
			in.Size = 0
			in.Fixup = isa.FixupNone
			in.Bits = 0
			// A dead target still has to move with the code around it.
			if u.tracked[id] {
				u.fixups = append(u.fixups, id)
			}
			continue
		}

		desc := u.a.isa.Descriptor(in.Op.Base)
		in.Size = desc.Size
		in.Fixup = desc.Fixup
		in.Bits = 0

		if in.Fixup != isa.FixupNone || u.tracked[id] {
			u.fixups = append(u.fixups, id)
		}

		if in.Fixup == isa.FixupNone && in.Size > 0 {
			in.Bits = encoder.Encode(desc, in.Op, in.Operands)
		}

		u.buf = encoder.Put(u.buf, in.Bits, in.Size, order)
		offset += in.Size
	}

	u.codeEnd = offset

	clear(u.tracked)
	for _, id := range u.fixups {
		u.tracked[id] = true
	}
}

// markTargets records the instructions other instructions are measured
// against, so that their offsets are kept current during relaxation.
func (u *unit) markTargets() {
	for id := u.list.First(); id != lir.Nil; id = u.list.Next(id) {
		in := u.list.At(id)
		if in.Dead {
			continue
		}
		if in.Target.IsInst() {
			u.tracked[in.Target.Inst] = true
		}
		if in.Anchor != lir.Nil {
			u.tracked[in.Anchor] = true
		}
	}
}
