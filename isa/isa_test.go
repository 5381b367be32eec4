package isa_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/lirasm/isa"
	"github.com/sarchlab/lirasm/isa/thumb2"
)

var _ = Describe("Reach", func() {
	It("should bound signed displacements", func() {
		r := isa.Reach{Shift: 1, Bits: 8, Signed: true, Bias: 4}

		Expect(r.Min()).To(Equal(-256))
		Expect(r.Max()).To(Equal(254))
		Expect(r.Fits(254)).To(BeTrue())
		Expect(r.Fits(256)).To(BeFalse())
		Expect(r.Fits(-256)).To(BeTrue())
		Expect(r.Fits(-258)).To(BeFalse())
		Expect(r.Fits(3)).To(BeFalse())
	})

	It("should bound unsigned displacements", func() {
		r := isa.Reach{Shift: 2, Bits: 8}

		Expect(r.Min()).To(Equal(0))
		Expect(r.Max()).To(Equal(1020))
		Expect(r.Fits(1020)).To(BeTrue())
		Expect(r.Fits(1024)).To(BeFalse())
		Expect(r.Fits(-4)).To(BeFalse())
		Expect(r.Fits(2)).To(BeFalse())
	})

	It("should align the pc when asked", func() {
		Expect(isa.Reach{Bias: 4}.PC(6)).To(Equal(10))
		Expect(isa.Reach{Bias: 4, AlignPC: true}.PC(6)).To(Equal(8))
	})
})

var _ = Describe("ISA", func() {
	var t *isa.ISA

	BeforeEach(func() {
		t = isa.NewISA("test", isa.LittleEndian)
	})

	It("should register opcodes in order", func() {
		t.Register("nop", 0, isa.Descriptor{Name: "nop", Size: 2})
		t.Register("b", 1, isa.Descriptor{Name: "b", Size: 2})

		op, ok := t.Lookup("b")
		Expect(ok).To(BeTrue())
		Expect(op).To(Equal(isa.Opcode(1)))
		Expect(t.Key(1)).To(Equal("b"))
		Expect(t.NumOpcodes()).To(Equal(2))
		Expect(t.Descriptor(1).Name).To(Equal("b"))
		Expect(t.Key(0)).To(Equal("nop"))
		Expect(t.Key(isa.PseudoLabel)).To(Equal("label"))
		Expect(t.Key(7)).To(Equal("op7"))
	})

	It("should reject gaps and duplicates", func() {
		Expect(func() { t.Register("x", 3, isa.Descriptor{}) }).To(Panic())
		t.Register("x", 0, isa.Descriptor{})
		Expect(func() { t.Register("x", 1, isa.Descriptor{}) }).To(Panic())
	})

	It("should describe labels", func() {
		op, ok := t.Lookup("label")
		Expect(ok).To(BeTrue())
		Expect(op).To(Equal(isa.PseudoLabel))

		d := t.Descriptor(isa.PseudoLabel)
		Expect(d.Size).To(Equal(0))
		Expect(d.Fixup).To(Equal(isa.FixupLabel))
	})

	It("should panic on unknown opcodes", func() {
		Expect(func() { t.Descriptor(5) }).To(Panic())
	})
})

var _ = Describe("Targets", func() {
	It("should build registered targets", func() {
		Expect(isa.Targets()).To(ContainElement(thumb2.Name))

		t, err := isa.Target(thumb2.Name)
		Expect(err).NotTo(HaveOccurred())
		Expect(t.ByteOrder()).To(Equal(isa.HalfwordSwapped))
	})

	It("should fail on unknown targets", func() {
		_, err := isa.Target("nope")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("thumb2", func() {
	var t *isa.ISA

	BeforeEach(func() {
		t = thumb2.New()
	})

	It("should only relax into longer sequences", func() {
		for op := isa.Opcode(0); int(op) < t.NumOpcodes(); op++ {
			d := t.Descriptor(op)
			if d.Relax.Kind == isa.RelaxNone {
				continue
			}

			size := t.Descriptor(d.Relax.To).Size
			if d.Relax.Kind != isa.RelaxWiden {
				size += t.Descriptor(d.Relax.Insert[0]).Size
			}
			if d.Relax.Kind == isa.RelaxSplit {
				size += t.Descriptor(d.Relax.Insert[1]).Size
			}
			Expect(size).To(BeNumerically(">", d.Size), d.Name)
		}
	})

	It("should give every fixup opcode a reach", func() {
		for op := isa.Opcode(0); int(op) < t.NumOpcodes(); op++ {
			d := t.Descriptor(op)
			if !d.Fixup.IsBranchClass() {
				continue
			}
			Expect(d.Reach.Bits).To(BeNumerically(">", 0), d.Name)
			Expect(d.Flags & isa.NeedsFixup).NotTo(BeZero(), d.Name)
		}
	})

	It("should widen narrow branches", func() {
		d := t.Descriptor(thumb2.BCond)
		Expect(d.Relax.Kind).To(Equal(isa.RelaxWiden))
		Expect(d.Relax.To).To(Equal(thumb2.BCondWide))
		Expect(t.Descriptor(thumb2.BCondWide).Size).To(Equal(4))
	})

	It("should carry wide skeletons for floating point", func() {
		Expect(t.Descriptor(thumb2.Vadd).HasWide()).To(BeTrue())
		Expect(t.Descriptor(thumb2.Nop).HasWide()).To(BeFalse())
	})
})
