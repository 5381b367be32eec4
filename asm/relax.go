package asm

import (
	"fmt"
	"log/slog"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/lirasm/encoder"
	"github.com/sarchlab/lirasm/isa"
	"github.com/sarchlab/lirasm/lir"
)

type attemptStatus int

const (
	statusScanning attemptStatus = iota
	statusSuccess
	statusRetry
)

func (s attemptStatus) String() string {
	switch s {
	case statusScanning:
		return "scanning"
	case statusSuccess:
		return "success"
	case statusRetry:
		return "retry"
	}
	return fmt.Sprintf("attemptStatus(%d)", int(s))
}

// relax runs attempts until one of them grows nothing.
func (u *unit) relax() {
	if len(u.fixups) == 0 {
		return
	}

	var generation uint8
	retries := 0

	for {
		generation ^= 1
		u.attempts++
		before := u.expansions

		status, growth := u.attempt(generation, u.attempts == 1)

		info := AttemptInfo{
			Attempt:    u.attempts,
			Retry:      status == statusRetry,
			Expansions: u.expansions - before,
			Growth:     growth,
		}
		slog.Debug("relaxation attempt",
			"assembler", u.a.name,
			"attempt", info.Attempt,
			"status", status,
			"expansions", info.Expansions,
			"growth", info.Growth)
		u.a.InvokeHook(sim.HookCtx{
			Domain: u.a,
			Pos:    HookPosAttempt,
			Item:   info,
		})

		if status == statusSuccess {
			break
		}

		retries++
		if retries > u.a.maxRetries {
			u.giveUp()
		}

		u.codeEnd += growth
		u.assignData()
	}

	if u.attempts > 1 {
		u.rebuild()
	}
}

// attempt walks the fixup list once. It returns the attempt status and the
// number of bytes the code grew by.
func (u *unit) attempt(generation uint8, patch bool) (attemptStatus, int) {
	status := statusScanning
	adj := 0

	for i := 0; i < len(u.fixups); i++ {
		id := u.fixups[i]
		in := u.list.At(id)
		in.Offset += adj
		in.Generation = generation

		desc := u.a.isa.Descriptor(in.Op.Base)

		switch {
		case in.Fixup.IsBranchClass():
			target := u.targetOffset(id, in.Target, generation, adj)
			delta := target - desc.Reach.PC(in.Offset)
			if !desc.Reach.Fits(delta) {
				inserted, growth := u.expand(i, id, desc, generation)
				i += inserted
				adj += growth
				status = statusRetry
				continue
			}
			in.Operands[desc.Reach.Operand] = int32(delta >> desc.Reach.Shift)

		case in.Fixup.IsSplitHalf():
			anchor := u.list.At(in.Anchor)
			pc := anchor.Offset
			if anchor.Generation != generation {
				pc += adj
			}
			pc = desc.Reach.PC(pc)

			v := uint32(u.targetOffset(id, in.Target, generation, adj) - pc)
			if in.Fixup == isa.FixupMovImmHigh {
				v >>= 16
			}
			in.Operands[desc.Reach.Operand] = int32(v & 0xffff)
		}

		if status == statusRetry {
			continue
		}
		status = statusSuccess

		if in.Size == 0 {
			continue
		}
		in.Bits = encoder.Encode(desc, in.Op, in.Operands)
		if patch {
			encoder.PutAt(u.buf, in.Offset-u.a.startOffset,
				in.Bits, in.Size, u.a.isa.ByteOrder())
		}
	}

	if status == statusScanning {
		status = statusSuccess
	}

	return status, adj
}

// targetOffset returns where the target of an instruction is in the layout
// being computed. Targets not yet visited in this attempt still carry their
// offset from the previous attempt, so they are moved by the growth so far.
func (u *unit) targetOffset(id lir.ID, ref lir.Ref, generation uint8, adj int) int {
	switch {
	case ref.IsInst():
		t := u.list.At(ref.Inst)
		if t.Generation == generation {
			return t.Offset
		}
		return t.Offset + adj
	case ref.IsData():
		return ref.Data.Offset() + adj
	}

	panic(fmt.Sprintf("asm: instruction %d (%s) has no target",
		id, u.a.isa.Descriptor(u.list.At(id).Op.Base).Name))
}

// rebuild writes the final buffer from the instruction list and settles the
// offset of every live instruction.
func (u *unit) rebuild() {
	order := u.a.isa.ByteOrder()
	u.buf = u.buf[:0]
	offset := u.a.startOffset

	for id := u.list.First(); id != lir.Nil; id = u.list.Next(id) {
		in := u.list.At(id)
		if u.tracked[id] && in.Offset != offset {
			panic(fmt.Sprintf("asm: instruction %d at offset %d, relaxation placed it at %d",
				id, offset, in.Offset))
		}

		in.Offset = offset
		if in.Dead {
			continue
		}

		u.buf = encoder.Put(u.buf, in.Bits, in.Size, order)
		offset += in.Size
	}

	if offset != u.codeEnd {
		panic(fmt.Sprintf("asm: code ends at %d, relaxation expected %d",
			offset, u.codeEnd))
	}
}

func (u *unit) giveUp() {
	dump := Dump(u.a.isa, u.list)

	slog.Error("relaxation did not converge",
		"assembler", u.a.name,
		"attempts", u.attempts,
		"max_retries", u.a.maxRetries,
		"dump", dump)

	panic(&ConvergenceError{
		Assembler: u.a.name,
		Attempts:  u.attempts,
		Dump:      dump,
	})
}
