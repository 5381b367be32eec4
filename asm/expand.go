package asm

import (
	"fmt"
	"slices"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/lirasm/encoder"
	"github.com/sarchlab/lirasm/isa"
	"github.com/sarchlab/lirasm/lir"
)

// expand grows the instruction at position i of the fixup list by the
// relaxation rule of its descriptor. The pieces are inserted right before
// it, in both the program order and the fixup list. It returns the number of
// inserted pieces and the net growth in bytes.
func (u *unit) expand(
	i int,
	id lir.ID,
	desc *isa.Descriptor,
	generation uint8,
) (int, int) {
	in := u.list.At(id)
	rule := desc.Relax
	from := in.Op
	oldSize := in.Size
	offset := in.Offset

	var pieces []lir.Inst

	switch rule.Kind {
	case isa.RelaxWiden:
		in.Op.Base = rule.To

	case isa.RelaxCompare:
		pieces = append(pieces, lir.Inst{
			Op:       isa.Narrow(rule.Insert[0]),
			Operands: [4]int32{in.Operands[0], 0},
		})
		in.Op = isa.Narrow(rule.To)
		in.Operands = [4]int32{0, rule.Cond}

	case isa.RelaxIndirect:
		scratch := rule.Scratch
		if scratch == isa.UseDest {
			scratch = in.Operands[0]
		}
		pieces = append(pieces, lir.Inst{
			Op:       isa.Narrow(rule.Insert[0]),
			Operands: [4]int32{scratch, 0},
			Target:   in.Target,
		})
		in.Op.Base = rule.To
		in.Operands = [4]int32{in.Operands[0], scratch, 0}
		in.Target = lir.Ref{}

	case isa.RelaxSplit:
		rd := in.Operands[0]
		for _, op := range rule.Insert {
			pieces = append(pieces, lir.Inst{
				Op:       isa.Narrow(op),
				Operands: [4]int32{rd, 0},
				Target:   in.Target,
				Anchor:   id,
			})
		}
		in.Op = isa.Narrow(rule.To)
		in.Operands = [4]int32{rd}
		in.Target = lir.Ref{}

	default:
		panic(&encoder.Error{
			Opcode:  desc.Name,
			Operand: desc.Reach.Operand,
			Msg: fmt.Sprintf("displacement out of range at offset %d, no relaxation rule",
				in.Offset),
		})
	}

	to := in.Op
	newDesc := u.a.isa.Descriptor(to.Base)
	in.Size = newDesc.Size
	in.Fixup = newDesc.Fixup
	newSize := in.Size

	ids := make([]lir.ID, 0, len(pieces))
	for _, p := range pieces {
		pd := u.a.isa.Descriptor(p.Op.Base)
		p.Size = pd.Size
		p.Fixup = pd.Fixup
		p.Offset = offset
		p.Generation = generation
		offset += p.Size

		pid := u.list.InsertBefore(id, p)
		u.tracked[pid] = true
		ids = append(ids, pid)
	}

	// InsertBefore may have moved the arena.
	u.list.At(id).Offset = offset
	u.fixups = slices.Insert(u.fixups, i, ids...)

	growth := newSize - oldSize
	for _, pid := range ids {
		growth += u.list.At(pid).Size
	}
	u.expansions++

	Trace("expand",
		"assembler", u.a.name,
		"id", id,
		"rule", rule.Kind,
		"from", desc.Name,
		"to", newDesc.Name,
		"offset", offset,
		"growth", growth)
	u.a.InvokeHook(sim.HookCtx{
		Domain: u.a,
		Pos:    HookPosExpand,
		Item:   id,
		Detail: Expansion{
			Rule:     rule.Kind,
			From:     from,
			To:       to,
			Inserted: ids,
			Growth:   growth,
		},
	})

	return len(ids), growth
}
