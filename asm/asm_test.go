package asm_test

import (
	"github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/lirasm/asm"
	"github.com/sarchlab/lirasm/encoder"
	"github.com/sarchlab/lirasm/isa"
	"github.com/sarchlab/lirasm/isa/thumb2"
	"github.com/sarchlab/lirasm/lir"
	"github.com/sarchlab/lirasm/pool"
)

func nops(l *lir.List, n int) {
	for i := 0; i < n; i++ {
		l.Emit(isa.Narrow(thumb2.Nop))
	}
}

// expectSettled checks that instructions do not overlap and every
// pc-relative displacement matches its encoded field.
func expectSettled(t *isa.ISA, l *lir.List) {
	end := -1
	for _, id := range l.IDs() {
		in := l.At(id)
		Expect(in.Offset).To(BeNumerically(">=", end))
		end = in.Offset + in.Size

		if !in.Fixup.IsBranchClass() {
			continue
		}

		desc := t.Descriptor(in.Op.Base)
		var target int
		if in.Target.IsInst() {
			target = l.At(in.Target.Inst).Offset
		} else {
			target = in.Target.Data.Offset()
		}

		delta := target - desc.Reach.PC(in.Offset)
		Expect(desc.Reach.Fits(delta)).To(BeTrue())
		Expect(in.Operands[desc.Reach.Operand]).
			To(Equal(int32(delta >> desc.Reach.Shift)))
	}
}

var _ = Describe("Assembler", func() {
	var (
		mockCtrl *gomock.Controller
		target   *isa.ISA
		a        *asm.Assembler
		l        *lir.List
		p        *pool.Pools
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		target = thumb2.New()
		a = asm.NewBuilder().WithISA(target).Build("Asm")
		l = lir.NewList()
		p = pool.New()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should assemble a short forward branch in one attempt", func() {
		lab := l.NewLabel()
		br := l.EmitRef(isa.Narrow(thumb2.BCond), lir.To(lab), 0, thumb2.CondNE)
		nops(l, 2)
		l.Bind(lab)

		res := a.Assemble(l, p)

		Expect(res.Attempts).To(Equal(1))
		Expect(res.Expansions).To(Equal(0))
		Expect(res.CodeSize).To(Equal(6))
		Expect(res.TotalSize).To(Equal(6))
		Expect(res.Code).To(Equal([]byte{0x01, 0xd1, 0x00, 0xbf, 0x00, 0xbf}))
		Expect(l.At(br).Operands[0]).To(Equal(int32(1)))
		Expect(l.At(lab).Offset).To(Equal(6))
	})

	It("should keep a branch at the edge of its reach narrow", func() {
		lab := l.NewLabel()
		br := l.EmitRef(isa.Narrow(thumb2.BCond), lir.To(lab), 0, thumb2.CondEQ)
		nops(l, 128)
		l.Bind(lab)

		res := a.Assemble(l, p)

		Expect(res.Expansions).To(Equal(0))
		Expect(res.Attempts).To(Equal(1))
		Expect(res.CodeSize).To(Equal(258))
		Expect(l.At(lab).Offset).To(Equal(258))
		Expect(l.At(br).Op.Base).To(Equal(thumb2.BCond))
		Expect(l.At(br).Operands[0]).To(Equal(int32(127)))
	})

	It("should widen a branch one step past its reach", func() {
		lab := l.NewLabel()
		br := l.EmitRef(isa.Narrow(thumb2.BCond), lir.To(lab), 0, thumb2.CondNE)
		nops(l, 129)
		l.Bind(lab)

		res := a.Assemble(l, p)

		Expect(res.Expansions).To(Equal(1))
		Expect(res.Attempts).To(Equal(2))
		Expect(res.CodeSize).To(Equal(2 + 129*2 + 2))
		Expect(l.At(br).Op.Base).To(Equal(thumb2.BCondWide))
		Expect(l.At(br).Size).To(Equal(4))
		Expect(l.At(lab).Offset).To(Equal(262))
		Expect(res.Code[:4]).To(Equal([]byte{0x40, 0xf0, 0x81, 0x80}))
		expectSettled(target, l)
	})

	It("should expand exactly once over a long straight line", func() {
		lab := l.NewLabel()
		br := l.EmitRef(isa.Narrow(thumb2.BUncond), lir.To(lab), 0)
		nops(l, 10000)
		l.Bind(lab)

		res := a.Assemble(l, p)

		Expect(res.Expansions).To(Equal(1))
		Expect(res.Attempts).To(Equal(2))
		Expect(res.CodeSize).To(Equal(20004))
		Expect(l.At(br).Op.Base).To(Equal(thumb2.BUncondWide))
		Expect(l.At(br).Operands[0]).To(Equal(int32(10000)))
		expectSettled(target, l)
	})

	It("should share one pool entry between equal literals", func() {
		lit := p.Literals.Word(0x1234)
		Expect(p.Literals.Word(0x1234)).To(BeIdenticalTo(lit))

		l.EmitRef(isa.Narrow(thumb2.LdrPcRel), lir.ToData(lit), thumb2.R0, 0)
		l.EmitRef(isa.Narrow(thumb2.LdrPcRel), lir.ToData(p.Literals.Word(0x1234)), thumb2.R1, 0)

		res := a.Assemble(l, p)

		Expect(p.Literals.Len()).To(Equal(1))
		Expect(res.DataOffset).To(Equal(8))
		Expect(lit.Offset()).To(Equal(8))
		Expect(res.Code).To(Equal([]byte{
			0x01, 0x48, 0x01, 0x49, 0, 0, 0, 0,
			0x34, 0x12, 0x00, 0x00,
		}))
	})

	It("should make no attempt without fixups", func() {
		nops(l, 3)

		res := a.Assemble(l, nil)

		Expect(res.Attempts).To(Equal(0))
		Expect(res.Expansions).To(Equal(0))
		Expect(res.Code).To(Equal([]byte{0x00, 0xbf, 0x00, 0xbf, 0x00, 0xbf}))
	})

	It("should rewrite a backward compare-and-branch", func() {
		lab := l.Label()
		l.Emit(isa.Narrow(thumb2.Nop))
		cb := l.EmitRef(isa.Narrow(thumb2.Cbz), lir.To(lab), thumb2.R0, 0)

		res := a.Assemble(l, p)

		Expect(res.Attempts).To(Equal(2))
		Expect(res.Expansions).To(Equal(1))
		Expect(res.Code).To(Equal([]byte{0x00, 0xbf, 0x00, 0x28, 0xfc, 0xd0}))

		ids := l.IDs()
		Expect(ids).To(HaveLen(4))
		Expect(l.At(ids[2]).Op.Base).To(Equal(thumb2.CmpRI8))
		Expect(ids[3]).To(Equal(cb))
		Expect(l.At(cb).Op.Base).To(Equal(thumb2.BCond))
		Expect(l.At(cb).Operands[1]).To(Equal(thumb2.CondEQ))
		expectSettled(target, l)
	})

	It("should widen a literal load", func() {
		lit := p.Literals.Word(0xdeadbeef)
		ld := l.EmitRef(isa.Narrow(thumb2.LdrPcRel), lir.ToData(lit), thumb2.R0, 0)
		nops(l, 600)

		res := a.Assemble(l, p)

		Expect(res.Attempts).To(Equal(2))
		Expect(res.Expansions).To(Equal(1))
		Expect(res.CodeSize).To(Equal(1204))
		Expect(res.DataOffset).To(Equal(1208))
		Expect(res.TotalSize).To(Equal(1212))
		Expect(l.At(ld).Op.Base).To(Equal(thumb2.LdrPcRel12))
		Expect(l.At(ld).Bits).To(Equal(uint32(0xf8df04b4)))
		Expect(res.Code[1208:]).To(Equal([]byte{0xef, 0xbe, 0xad, 0xde}))
		expectSettled(target, l)
	})

	It("should cascade a literal load through adr into a split", func() {
		lit := p.Literals.Word(7)
		ld := l.EmitRef(isa.Narrow(thumb2.LdrPcRel), lir.ToData(lit), thumb2.R0, 0)
		nops(l, 2100)

		res := a.Assemble(l, p)

		Expect(res.Attempts).To(Equal(4))
		Expect(res.Expansions).To(Equal(3))
		Expect(res.CodeSize).To(Equal(4214))
		Expect(res.DataOffset).To(Equal(4216))

		ids := l.IDs()
		Expect(l.At(ids[0]).Op.Base).To(Equal(thumb2.MovwLST))
		Expect(l.At(ids[1]).Op.Base).To(Equal(thumb2.MovtHST))
		Expect(l.At(ids[2]).Op.Base).To(Equal(thumb2.AddRPC))
		Expect(ids[3]).To(Equal(ld))
		Expect(l.At(ld).Op.Base).To(Equal(thumb2.LdrRRI12))
		Expect(l.At(ld).Operands).To(Equal([4]int32{thumb2.R0, thumb2.R0, 0}))
		Expect(l.At(ids[0]).Operands[1]).To(Equal(int32(4204)))
		Expect(l.At(ids[1]).Operands[1]).To(Equal(int32(0)))
		Expect(l.At(ld).Offset).To(Equal(10))
	})

	It("should split a far address into halves that reassemble", func() {
		lit := p.Literals.Word(1)
		adr := l.EmitRef(isa.Narrow(thumb2.Adr), lir.ToData(lit), thumb2.R1, 0)
		nops(l, 40000)

		res := a.Assemble(l, p)

		Expect(res.Expansions).To(Equal(1))
		Expect(res.Attempts).To(Equal(2))
		Expect(lit.Offset()).To(Equal(80016))

		ids := l.IDs()
		lo := l.At(ids[0])
		hi := l.At(ids[1])
		Expect(lo.Anchor).To(Equal(adr))
		Expect(hi.Anchor).To(Equal(adr))
		Expect(lo.Operands[1]).To(Equal(int32(0x3884)))
		Expect(hi.Operands[1]).To(Equal(int32(1)))

		anchor := l.At(adr)
		Expect(anchor.Op.Base).To(Equal(thumb2.AddRPC))
		v := int(hi.Operands[1])<<16 | int(lo.Operands[1])
		Expect(anchor.Offset + 4 + v).To(Equal(lit.Offset()))
	})

	It("should load a far wide literal through the link register", func() {
		lit := p.Literals.Wide(0x400921fb54442d18)
		ld := l.EmitRef(isa.Wide(thumb2.VldrPcRel), lir.ToData(lit), 0, 0)
		nops(l, 600)

		res := a.Assemble(l, p)

		Expect(res.Attempts).To(Equal(2))
		Expect(res.Expansions).To(Equal(1))

		ids := l.IDs()
		Expect(l.At(ids[0]).Op.Base).To(Equal(thumb2.Adr))
		Expect(l.At(ids[0]).Bits).To(Equal(uint32(0xf20f4eb4)))
		Expect(l.At(ld).Op).To(Equal(isa.Wide(thumb2.Vldr)))
		Expect(l.At(ld).Bits).To(Equal(uint32(0xed9e0b00)))
		Expect(lit.Offset()).To(Equal(1208))
		expectSettled(target, l)
	})

	It("should install switch tables relative to their anchor", func() {
		caseA := l.NewLabel()
		caseB := l.NewLabel()
		adr := l.New(lir.Inst{
			Op:       isa.Narrow(thumb2.Adr),
			Operands: [4]int32{thumb2.R2},
		})
		tbl := p.Switches.Packed(adr, 4, caseA, caseB)
		l.At(adr).Target = lir.ToData(tbl)
		l.Bind(adr)
		l.Emit(isa.Narrow(thumb2.Nop))
		l.Bind(caseA)
		l.Emit(isa.Narrow(thumb2.Nop))
		l.Bind(caseB)
		l.Emit(isa.Narrow(thumb2.Nop))

		res := a.Assemble(l, p)

		Expect(tbl.Offset()).To(Equal(16))
		Expect(res.TotalSize).To(Equal(24))
		Expect(res.Code).To(Equal([]byte{
			0x0f, 0xf2, 0x0c, 0x02, 0x00, 0xbf, 0x00, 0xbf,
			0x00, 0xbf, 0, 0, 0, 0, 0, 0,
			2, 0, 0, 0, 4, 0, 0, 0,
		}))
	})

	It("should skip dead instructions", func() {
		lab := l.NewLabel()
		l.EmitRef(isa.Narrow(thumb2.BUncond), lir.To(lab), 0)
		l.Emit(isa.Narrow(thumb2.Nop))
		dead := l.Append(lir.Inst{Op: isa.Narrow(thumb2.Nop), Dead: true})
		l.Bind(lab)

		res := a.Assemble(l, p)

		Expect(res.Code).To(Equal([]byte{0x00, 0xe0, 0x00, 0xbf}))
		Expect(l.At(dead).Offset).To(Equal(4))
		Expect(l.At(dead).Size).To(Equal(0))
		Expect(l.At(lab).Offset).To(Equal(4))
	})

	It("should move a dead branch target with the code around it", func() {
		far := l.NewLabel()
		dead := l.New(lir.Inst{Op: isa.Narrow(thumb2.Nop), Dead: true})
		l.EmitRef(isa.Narrow(thumb2.BCond), lir.To(far), 0, thumb2.CondEQ)
		br := l.EmitRef(isa.Narrow(thumb2.BUncond), lir.To(dead), 0)
		nops(l, 3)
		l.Bind(dead)
		nops(l, 200)
		l.Bind(far)

		res := a.Assemble(l, p)

		Expect(res.Attempts).To(Equal(2))
		Expect(res.Expansions).To(Equal(1))
		Expect(l.At(dead).Offset).To(Equal(12))
		Expect(l.At(dead).Size).To(Equal(0))
		Expect(l.At(br).Operands[0]).To(Equal(int32(2)))
		Expect(res.Code[4:6]).To(Equal([]byte{0x02, 0xe0}))
		Expect(res.CodeSize).To(Equal(412))
		expectSettled(target, l)
	})

	It("should not count growth twice for targets already moved", func() {
		far := l.NewLabel()
		near := l.NewLabel()
		first := l.EmitRef(isa.Narrow(thumb2.BCond), lir.To(far), 0, thumb2.CondEQ)
		second := l.EmitRef(isa.Narrow(thumb2.BCond), lir.To(near), 0, thumb2.CondNE)
		nops(l, 129)
		l.Bind(near)
		nops(l, 200)
		l.Bind(far)

		res := a.Assemble(l, p)

		Expect(res.Attempts).To(Equal(2))
		Expect(res.Expansions).To(Equal(2))
		Expect(l.At(first).Op.Base).To(Equal(thumb2.BCondWide))
		Expect(l.At(second).Op.Base).To(Equal(thumb2.BCondWide))
		Expect(l.At(near).Offset).To(Equal(266))
		Expect(l.At(far).Offset).To(Equal(666))
		expectSettled(target, l)
	})

	It("should keep split halves consistent while code ahead of them grows", func() {
		hook := NewMockHook(mockCtrl)
		a.AcceptHook(hook)

		far := l.NewLabel()
		lab := l.NewLabel()
		l.EmitRef(isa.Narrow(thumb2.BCond), lir.To(lab), 0, thumb2.CondNE)
		nops(l, 126)
		adr := l.EmitRef(isa.Narrow(thumb2.Adr), lir.To(far), thumb2.R0, 0)
		l.Bind(lab)
		nops(l, 3000)
		l.Bind(far)

		var halves []lir.ID
		var lo, want int32
		hook.EXPECT().Func(gomock.Any()).
			Do(func(ctx sim.HookCtx) {
				switch ctx.Pos {
				case asm.HookPosExpand:
					e := ctx.Detail.(asm.Expansion)
					if e.Rule == isa.RelaxSplit {
						halves = e.Inserted
					}
				case asm.HookPosAttempt:
					if ctx.Item.(asm.AttemptInfo).Attempt != 2 {
						return
					}
					lo = l.At(halves[0]).Operands[1]
					want = int32(l.At(far).Offset - (l.At(adr).Offset + 4))
				}
			}).
			AnyTimes()

		res := a.Assemble(l, p)

		Expect(res.Attempts).To(Equal(3))
		Expect(res.Expansions).To(Equal(2))
		Expect(halves).To(HaveLen(2))
		Expect(want).To(Equal(int32(5998)))
		Expect(lo).To(Equal(want))
		Expect(l.At(far).Offset).To(Equal(6266))
		expectSettled(target, l)
	})

	It("should lay out from a start offset", func() {
		a = asm.NewBuilder().WithISA(target).WithStartOffset(0x100).Build("Asm")
		lit := p.Literals.Word(0x11)
		ld := l.EmitRef(isa.Narrow(thumb2.LdrPcRel), lir.ToData(lit), thumb2.R0, 0)

		res := a.Assemble(l, p)

		Expect(l.At(ld).Offset).To(Equal(0x100))
		Expect(res.DataOffset).To(Equal(0x108))
		Expect(res.CodeSize).To(Equal(2))
		Expect(res.Code).To(Equal([]byte{
			0x01, 0x48, 0, 0, 0, 0, 0, 0,
			0x11, 0, 0, 0,
		}))
	})

	It("should be deterministic", func() {
		build := func() (*lir.List, *pool.Pools) {
			l := lir.NewList()
			p := pool.New()
			top := l.Label()
			l.EmitRef(isa.Narrow(thumb2.LdrPcRel), lir.ToData(p.Literals.Word(3)), thumb2.R2, 0)
			nops(l, 700)
			l.EmitRef(isa.Narrow(thumb2.Cbnz), lir.To(top), thumb2.R2, 0)
			l.EmitRef(isa.Narrow(thumb2.BUncond), lir.To(top), 0)
			return l, p
		}

		l1, p1 := build()
		l2, p2 := build()
		r1 := a.Assemble(l1, p1)
		r2 := a.Assemble(l2, p2)

		Expect(r1).To(Equal(r2))
		expectSettled(target, l1)
	})

	It("should panic when a displacement has no relaxation rule", func() {
		tiny := isa.NewISA("tiny", isa.LittleEndian)
		tiny.Register("nop", 0, isa.Descriptor{Name: "nop", Size: 2})
		tiny.Register("br", 1, isa.Descriptor{
			Name:     "br",
			Skeleton: [2]uint32{0x8000},
			Fields:   [4]isa.Field{isa.F(isa.BitBlt, 3, 0)},
			Size:     2,
			Fixup:    isa.FixupBranch,
			Reach:    isa.Reach{Shift: 1, Bits: 4, Signed: true},
		})
		a = asm.NewBuilder().WithISA(tiny).Build("Tiny")

		lab := l.NewLabel()
		l.EmitRef(isa.Narrow(1), lir.To(lab), 0)
		for i := 0; i < 10; i++ {
			l.Emit(isa.Narrow(0))
		}
		l.Bind(lab)

		Expect(func() { a.Assemble(l, nil) }).
			To(PanicWith(BeAssignableToTypeOf(&encoder.Error{})))
	})

	It("should give up past the retry limit", func() {
		a = asm.NewBuilder().WithISA(target).WithMaxRetries(0).Build("Asm")
		lab := l.NewLabel()
		l.EmitRef(isa.Narrow(thumb2.BCond), lir.To(lab), 0, thumb2.CondNE)
		nops(l, 129)
		l.Bind(lab)

		var err *asm.ConvergenceError
		func() {
			defer func() {
				err, _ = recover().(*asm.ConvergenceError)
			}()
			a.Assemble(l, p)
		}()

		Expect(err).NotTo(BeNil())
		Expect(err.Attempts).To(Equal(1))
		Expect(err.Assembler).To(Equal("Asm"))
		Expect(err.Dump).To(ContainSubstring("b_cond_w"))
	})

	It("should invoke hooks around relaxation", func() {
		hook := NewMockHook(mockCtrl)
		a.AcceptHook(hook)

		var positions []*sim.HookPos
		var expansion asm.Expansion
		hook.EXPECT().Func(gomock.Any()).
			Do(func(ctx sim.HookCtx) {
				positions = append(positions, ctx.Pos)
				if ctx.Pos == asm.HookPosExpand {
					expansion = ctx.Detail.(asm.Expansion)
				}
			}).
			Times(4)

		lab := l.NewLabel()
		l.EmitRef(isa.Narrow(thumb2.BCond), lir.To(lab), 0, thumb2.CondNE)
		nops(l, 129)
		l.Bind(lab)
		a.Assemble(l, p)

		Expect(positions).To(Equal([]*sim.HookPos{
			asm.HookPosExpand,
			asm.HookPosAttempt,
			asm.HookPosAttempt,
			asm.HookPosConverged,
		}))
		Expect(expansion.Rule).To(Equal(isa.RelaxWiden))
		Expect(expansion.Growth).To(Equal(2))
		Expect(expansion.To).To(Equal(isa.Narrow(thumb2.BCondWide)))
	})

	It("should lay out pool sections in order", func() {
		s1 := NewMockSection(mockCtrl)
		s2 := NewMockSection(mockCtrl)
		nops(l, 3)

		gomock.InOrder(
			s1.EXPECT().AssignOffsets(8).Return(12),
			s2.EXPECT().AssignOffsets(12).Return(20),
			s1.EXPECT().Install(gomock.Any()),
			s2.EXPECT().Install(gomock.Any()),
		)

		res := a.Assemble(l, pool.NewWith(s1, s2))

		Expect(res.DataOffset).To(Equal(8))
		Expect(res.TotalSize).To(Equal(8))
	})

	It("should reassign pool offsets after a retried attempt", func() {
		s := NewMockSection(mockCtrl)
		s.EXPECT().AssignOffsets(264).Return(264).Times(2)

		lab := l.NewLabel()
		l.EmitRef(isa.Narrow(thumb2.BCond), lir.To(lab), 0, thumb2.CondNE)
		nops(l, 129)
		l.Bind(lab)

		res := a.Assemble(l, pool.NewWith(s))

		Expect(res.DataOffset).To(Equal(264))
		Expect(res.TotalSize).To(Equal(262))
	})
})

var _ = Describe("Builder", func() {
	It("should require an ISA", func() {
		Expect(func() { asm.NewBuilder().Build("Asm") }).To(Panic())
	})

	It("should reject a negative retry limit", func() {
		Expect(func() { asm.NewBuilder().WithMaxRetries(-1) }).To(Panic())
	})
})

var _ = Describe("Dump", func() {
	It("should list every instruction", func() {
		t := thumb2.New()
		l := lir.NewList()
		lab := l.NewLabel()
		l.EmitRef(isa.Narrow(thumb2.BUncond), lir.To(lab), 0)
		l.Emit(isa.Narrow(thumb2.MovsRI8), thumb2.R3, 9)
		l.Bind(lab)

		out := asm.Dump(t, l)

		Expect(out).To(ContainSubstring("movs_ri8"))
		Expect(out).To(ContainSubstring("r3, #9"))
		Expect(out).To(ContainSubstring("label"))
		Expect(out).To(ContainSubstring("-> 1"))
		Expect(out).To(ContainSubstring("movs r3, #9"))
	})

	It("should render operands through the format strings", func() {
		t := thumb2.New()
		l := lir.NewList()
		lab := l.NewLabel()
		l.EmitRef(isa.Narrow(thumb2.BCond), lir.To(lab), 3, thumb2.CondNE)
		l.Emit(isa.Narrow(thumb2.Push), 0x111)
		l.Emit(isa.Narrow(thumb2.Pop), 0x101)
		l.Emit(isa.Narrow(thumb2.AddRRRW), thumb2.R0, thumb2.R1, thumb2.R2, 2<<2)
		l.Emit(isa.Wide(thumb2.Vadd), 0, 1, 2)
		l.Emit(isa.Narrow(thumb2.LdrPcRel), thumb2.R0, 3)
		l.Bind(lab)

		out := asm.Dump(t, l)

		Expect(out).To(ContainSubstring("bne 0xa"))
		Expect(out).To(ContainSubstring("push <r0, r4, lr>"))
		Expect(out).To(ContainSubstring("pop <r0, pc>"))
		Expect(out).To(ContainSubstring("add.w r0, r1, r2, lsl #2"))
		Expect(out).To(ContainSubstring("vadd d0, d1, d2"))
		Expect(out).To(ContainSubstring("ldr r0, [pc, #12]"))
	})
})
