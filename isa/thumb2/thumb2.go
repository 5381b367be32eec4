// Package thumb2 provides a Thumb-2 style descriptor table: a mixed 16/32-bit
// encoding with short-reach narrow branches and literal loads that the
// assembler grows on demand.
package thumb2

import "github.com/sarchlab/lirasm/isa"

// Name is the target name used with isa.Target.
const Name = "thumb2"

func init() {
	isa.RegisterTarget(Name, New)
}

// Core registers.
const (
	R0 int32 = iota
	R1
	R2
	R3
	R4
	R5
	R6
	R7
	R8
	R9
	R10
	R11
	R12
	SP
	LR
	PC
)

// Condition codes.
const (
	CondEQ int32 = iota
	CondNE
	CondCS
	CondCC
	CondMI
	CondPL
	CondVS
	CondVC
	CondHI
	CondLS
	CondGE
	CondLT
	CondGT
	CondLE
	CondAL
)

// Opcodes of the table, in registration order.
const (
	AddsRRI3 isa.Opcode = iota
	AddsRI8
	AddsRRR
	AddRPC
	SubsRRI3
	SubsRI8
	SubsRRR
	CmpRI8
	CmpRR
	MovsRI8
	MovRR
	LdrRRI5
	StrRRI5
	LdrPcRel
	BCond
	BUncond
	Cbz
	Cbnz
	Bx
	Blx
	Nop
	Push
	Pop
	Bkpt
	BCondWide
	BUncondWide
	Bl
	Adr
	Movw
	Movt
	MovwLST
	MovtHST
	LdrPcRel12
	LdrRRI12
	StrRRI12
	AddwRRI12
	AddRRRW
	SubRRRW
	AndRRI
	OrrRRI
	LslRRI5
	Ubfx
	Sbfx
	Vldr
	Vstr
	VldrPcRel
	Vadd
	Vsub
	Vmul
	VmovImm
	NopWide
)

type entry struct {
	key  string
	op   isa.Opcode
	desc isa.Descriptor
}

func narrow(name string, skeleton uint32, flags isa.Flags, fmt string,
	fields ...isa.Field,
) isa.Descriptor {
	return build(name, [2]uint32{skeleton, 0}, 2, flags, fmt, fields)
}

func word(name string, skeleton uint32, flags isa.Flags, fmt string,
	fields ...isa.Field,
) isa.Descriptor {
	return build(name, [2]uint32{skeleton, 0}, 4, flags, fmt, fields)
}

// float builds a 32-bit VFP descriptor whose wide variant sets the sz bit.
func float(name string, skeleton uint32, flags isa.Flags, fmt string,
	fields ...isa.Field,
) isa.Descriptor {
	return build(name, [2]uint32{skeleton, skeleton | 0x100}, 4, flags, fmt, fields)
}

func build(name string, skeletons [2]uint32, size int, flags isa.Flags,
	fmt string, fields []isa.Field,
) isa.Descriptor {
	d := isa.Descriptor{
		Name:     name,
		Skeleton: skeletons,
		Size:     size,
		Flags:    flags,
		Fmt:      fmt,
	}
	copy(d.Fields[:], fields)
	return d
}

func fixup(d isa.Descriptor, kind isa.FixupKind, reach isa.Reach, relax isa.Relax) isa.Descriptor {
	d.Fixup = kind
	d.Flags |= isa.NeedsFixup
	d.Reach = reach
	d.Relax = relax
	return d
}

var (
	branchNarrow = isa.Reach{Operand: 0, Shift: 1, Bits: 11, Signed: true, Bias: 4}
	condNarrow   = isa.Reach{Operand: 0, Shift: 1, Bits: 8, Signed: true, Bias: 4}
	condWide     = isa.Reach{Operand: 0, Shift: 1, Bits: 20, Signed: true, Bias: 4}
	branchWide   = isa.Reach{Operand: 0, Shift: 1, Bits: 24, Signed: true, Bias: 4}
	cbxz         = isa.Reach{Operand: 1, Shift: 1, Bits: 6, Bias: 4}
	loadNarrow   = isa.Reach{Operand: 1, Shift: 2, Bits: 8, Bias: 4, AlignPC: true}
	loadWide     = isa.Reach{Operand: 1, Bits: 12, Bias: 4, AlignPC: true}
	adr          = isa.Reach{Operand: 1, Bits: 12, Bias: 4, AlignPC: true}
	addPC        = isa.Reach{Operand: 1, Bias: 4}
)

func entries() []entry {
	return []entry{
		{"adds_rri3", AddsRRI3, narrow("adds", 0x1c00,
			isa.RegDef0|isa.RegUse1|isa.SetsCCodes, "!0C, !1C, #!2d",
			isa.F(isa.RegLow, 2, 0), isa.F(isa.RegLow, 5, 3), isa.F(isa.BitBlt, 8, 6))},
		{"adds_ri8", AddsRI8, narrow("adds", 0x3000,
			isa.RegDef0|isa.RegUse0|isa.SetsCCodes, "!0C, #!1d",
			isa.F(isa.RegLow, 10, 8), isa.F(isa.BitBlt, 7, 0))},
		{"adds_rrr", AddsRRR, narrow("adds", 0x1800,
			isa.RegDef0|isa.RegUse1|isa.RegUse2|isa.SetsCCodes, "!0C, !1C, !2C",
			isa.F(isa.RegLow, 2, 0), isa.F(isa.RegLow, 5, 3), isa.F(isa.RegLow, 8, 6))},
		{"add_rpc", AddRPC, narrow("add", 0x4478,
			isa.RegDef0|isa.RegUse0, "!0C, pc",
			isa.K(isa.RegDN))},
		{"subs_rri3", SubsRRI3, narrow("subs", 0x1e00,
			isa.RegDef0|isa.RegUse1|isa.SetsCCodes, "!0C, !1C, #!2d",
			isa.F(isa.RegLow, 2, 0), isa.F(isa.RegLow, 5, 3), isa.F(isa.BitBlt, 8, 6))},
		{"subs_ri8", SubsRI8, narrow("subs", 0x3800,
			isa.RegDef0|isa.RegUse0|isa.SetsCCodes, "!0C, #!1d",
			isa.F(isa.RegLow, 10, 8), isa.F(isa.BitBlt, 7, 0))},
		{"subs_rrr", SubsRRR, narrow("subs", 0x1a00,
			isa.RegDef0|isa.RegUse1|isa.RegUse2|isa.SetsCCodes, "!0C, !1C, !2C",
			isa.F(isa.RegLow, 2, 0), isa.F(isa.RegLow, 5, 3), isa.F(isa.RegLow, 8, 6))},
		{"cmp_ri8", CmpRI8, narrow("cmp", 0x2800,
			isa.RegUse0|isa.SetsCCodes, "!0C, #!1d",
			isa.F(isa.RegLow, 10, 8), isa.F(isa.BitBlt, 7, 0))},
		{"cmp_rr", CmpRR, narrow("cmp", 0x4280,
			isa.RegUse0|isa.RegUse1|isa.SetsCCodes, "!0C, !1C",
			isa.F(isa.RegLow, 2, 0), isa.F(isa.RegLow, 5, 3))},
		{"movs_ri8", MovsRI8, narrow("movs", 0x2000,
			isa.RegDef0|isa.SetsCCodes, "!0C, #!1d",
			isa.F(isa.RegLow, 10, 8), isa.F(isa.BitBlt, 7, 0))},
		{"mov_rr", MovRR, narrow("mov", 0x4600,
			isa.RegDef0|isa.RegUse1, "!0C, !1C",
			isa.K(isa.RegDN), isa.F(isa.Reg, 6, 3))},
		{"ldr_rri5", LdrRRI5, narrow("ldr", 0x6800,
			isa.RegDef0|isa.RegUse1|isa.IsLoad, "!0C, [!1C, #!2E]",
			isa.F(isa.RegLow, 2, 0), isa.F(isa.RegLow, 5, 3), isa.F(isa.BitBlt, 10, 6))},
		{"str_rri5", StrRRI5, narrow("str", 0x6000,
			isa.RegUse0|isa.RegUse1|isa.IsStore, "!0C, [!1C, #!2E]",
			isa.F(isa.RegLow, 2, 0), isa.F(isa.RegLow, 5, 3), isa.F(isa.BitBlt, 10, 6))},
		{"ldr_pcrel", LdrPcRel, fixup(narrow("ldr", 0x4800,
			isa.RegDef0|isa.IsLoad, "!0C, [pc, #!1E]",
			isa.F(isa.RegLow, 10, 8), isa.F(isa.BitBlt, 7, 0)),
			isa.FixupLoad, loadNarrow,
			isa.Relax{Kind: isa.RelaxWiden, To: LdrPcRel12})},
		{"b_cond", BCond, fixup(narrow("b!1c", 0xd000,
			isa.IsBranch|isa.UsesCCodes, "!0t",
			isa.F(isa.BitBlt, 7, 0), isa.F(isa.BitBlt, 11, 8)),
			isa.FixupCondBranch, condNarrow,
			isa.Relax{Kind: isa.RelaxWiden, To: BCondWide})},
		{"b", BUncond, fixup(narrow("b", 0xe000,
			isa.IsBranch, "!0t",
			isa.F(isa.BitBlt, 10, 0)),
			isa.FixupBranch, branchNarrow,
			isa.Relax{Kind: isa.RelaxWiden, To: BUncondWide})},
		{"cbz", Cbz, fixup(narrow("cbz", 0xb100,
			isa.IsBranch|isa.RegUse0, "!0C, !1t",
			isa.F(isa.RegLow, 2, 0), isa.K(isa.Imm6)),
			isa.FixupCBxZ, cbxz,
			isa.Relax{Kind: isa.RelaxCompare, To: BCond, Insert: [2]isa.Opcode{CmpRI8}, Cond: CondEQ})},
		{"cbnz", Cbnz, fixup(narrow("cbnz", 0xb900,
			isa.IsBranch|isa.RegUse0, "!0C, !1t",
			isa.F(isa.RegLow, 2, 0), isa.K(isa.Imm6)),
			isa.FixupCBxZ, cbxz,
			isa.Relax{Kind: isa.RelaxCompare, To: BCond, Insert: [2]isa.Opcode{CmpRI8}, Cond: CondNE})},
		{"bx", Bx, narrow("bx", 0x4700,
			isa.IsBranch|isa.RegUse0, "!0C",
			isa.F(isa.Reg, 6, 3))},
		{"blx", Blx, narrow("blx", 0x4780,
			isa.IsBranch|isa.RegUse0, "!0C",
			isa.F(isa.RegNoPC, 6, 3))},
		{"nop", Nop, narrow("nop", 0xbf00, 0, "")},
		{"push", Push, narrow("push", 0xb400,
			isa.IsStore, "<!0R>",
			isa.F(isa.BitBlt, 8, 0))},
		{"pop", Pop, narrow("pop", 0xbc00,
			isa.IsLoad, "<!0R>",
			isa.F(isa.BitBlt, 8, 0))},
		{"bkpt", Bkpt, narrow("bkpt", 0xbe00,
			isa.IsBranch, "!0d",
			isa.F(isa.BitBlt, 7, 0))},
		{"b_cond_w", BCondWide, fixup(word("b!1c.w", 0xf0008000,
			isa.IsBranch|isa.UsesCCodes, "!0t",
			isa.K(isa.BrOffset), isa.F(isa.BitBlt, 25, 22)),
			isa.FixupCondBranch, condWide, isa.Relax{})},
		{"b_w", BUncondWide, fixup(word("b.w", 0xf0009000,
			isa.IsBranch, "!0t",
			isa.K(isa.Off24)),
			isa.FixupBranch, branchWide, isa.Relax{})},
		{"bl", Bl, fixup(word("bl", 0xf000d000,
			isa.IsBranch, "!0t",
			isa.K(isa.Off24)),
			isa.FixupBranch, branchWide, isa.Relax{})},
		{"adr", Adr, fixup(word("adr", 0xf20f0000,
			isa.RegDef0, "!0C, #!1d",
			isa.F(isa.RegNoSP, 11, 8), isa.K(isa.Imm12)),
			isa.FixupAdr, adr,
			isa.Relax{Kind: isa.RelaxSplit, To: AddRPC, Insert: [2]isa.Opcode{MovwLST, MovtHST}})},
		{"movw", Movw, word("movw", 0xf2400000,
			isa.RegDef0, "!0C, #!1M",
			isa.F(isa.RegNoSP, 11, 8), isa.K(isa.Imm16))},
		{"movt", Movt, word("movt", 0xf2c00000,
			isa.RegDef0|isa.RegUse0, "!0C, #!1M",
			isa.F(isa.RegNoSP, 11, 8), isa.K(isa.Imm16))},
		{"movw_lst", MovwLST, fixup(word("movw", 0xf2400000,
			isa.RegDef0, "!0C, #!1M",
			isa.F(isa.RegNoSP, 11, 8), isa.K(isa.Imm16)),
			isa.FixupMovImmLow, addPC, isa.Relax{})},
		{"movt_hst", MovtHST, fixup(word("movt", 0xf2c00000,
			isa.RegDef0|isa.RegUse0, "!0C, #!1M",
			isa.F(isa.RegNoSP, 11, 8), isa.K(isa.Imm16)),
			isa.FixupMovImmHigh, addPC, isa.Relax{})},
		{"ldr_pcrel12", LdrPcRel12, fixup(word("ldr.w", 0xf8df0000,
			isa.RegDef0|isa.IsLoad, "!0C, [pc, #!1d]",
			isa.F(isa.Reg, 15, 12), isa.F(isa.BitBlt, 11, 0)),
			isa.FixupLoad, loadWide,
			isa.Relax{Kind: isa.RelaxIndirect, To: LdrRRI12, Insert: [2]isa.Opcode{Adr}, Scratch: isa.UseDest})},
		{"ldr_rri12", LdrRRI12, word("ldr.w", 0xf8d00000,
			isa.RegDef0|isa.RegUse1|isa.IsLoad, "!0C, [!1C, #!2d]",
			isa.F(isa.Reg, 15, 12), isa.F(isa.Reg, 19, 16), isa.F(isa.BitBlt, 11, 0))},
		{"str_rri12", StrRRI12, word("str.w", 0xf8c00000,
			isa.RegUse0|isa.RegUse1|isa.IsStore, "!0C, [!1C, #!2d]",
			isa.F(isa.Reg, 15, 12), isa.F(isa.Reg, 19, 16), isa.F(isa.BitBlt, 11, 0))},
		{"addw_rri12", AddwRRI12, word("addw", 0xf2000000,
			isa.RegDef0|isa.RegUse1, "!0C, !1C, #!2d",
			isa.F(isa.RegNoSP, 11, 8), isa.F(isa.Reg, 19, 16), isa.K(isa.Imm12))},
		{"add_rrr_w", AddRRRW, word("add.w", 0xeb000000,
			isa.RegDef0|isa.RegUse1|isa.RegUse2, "!0C, !1C, !2C!3H",
			isa.F(isa.RegNoSP, 11, 8), isa.F(isa.Reg, 19, 16), isa.F(isa.RegNoSP, 3, 0), isa.K(isa.Shift))},
		{"sub_rrr_w", SubRRRW, word("sub.w", 0xeba00000,
			isa.RegDef0|isa.RegUse1|isa.RegUse2, "!0C, !1C, !2C!3H",
			isa.F(isa.RegNoSP, 11, 8), isa.F(isa.Reg, 19, 16), isa.F(isa.RegNoSP, 3, 0), isa.K(isa.Shift))},
		{"and_rri", AndRRI, word("and", 0xf0000000,
			isa.RegDef0|isa.RegUse1, "!0C, !1C, #!2m",
			isa.F(isa.RegNoSP, 11, 8), isa.F(isa.RegNoSP, 19, 16), isa.K(isa.ModImm))},
		{"orr_rri", OrrRRI, word("orr", 0xf0400000,
			isa.RegDef0|isa.RegUse1, "!0C, !1C, #!2m",
			isa.F(isa.RegNoSP, 11, 8), isa.F(isa.RegNoSP, 19, 16), isa.K(isa.ModImm))},
		{"lsl_rri5", LslRRI5, word("lsl.w", 0xea4f0000,
			isa.RegDef0|isa.RegUse1, "!0C, !1C, #!2d",
			isa.F(isa.RegNoSP, 11, 8), isa.F(isa.RegNoSP, 3, 0), isa.K(isa.Shift5))},
		{"ubfx", Ubfx, word("ubfx", 0xf3c00000,
			isa.RegDef0|isa.RegUse1, "!0C, !1C, #!2d, #!3d",
			isa.F(isa.RegNoSP, 11, 8), isa.F(isa.RegNoSP, 19, 16), isa.K(isa.Lsb), isa.K(isa.BWidth))},
		{"sbfx", Sbfx, word("sbfx", 0xf3400000,
			isa.RegDef0|isa.RegUse1, "!0C, !1C, #!2d, #!3d",
			isa.F(isa.RegNoSP, 11, 8), isa.F(isa.RegNoSP, 19, 16), isa.K(isa.Lsb), isa.K(isa.BWidth))},
		{"vldr", Vldr, float("vldr", 0xed900a00,
			isa.RegDef0|isa.RegUse1|isa.IsLoad, "!0f, [!1C, #!2E]",
			isa.F(isa.Fp, 22, 12), isa.F(isa.Reg, 19, 16), isa.F(isa.BitBlt, 7, 0))},
		{"vstr", Vstr, float("vstr", 0xed800a00,
			isa.RegUse0|isa.RegUse1|isa.IsStore, "!0f, [!1C, #!2E]",
			isa.F(isa.Fp, 22, 12), isa.F(isa.Reg, 19, 16), isa.F(isa.BitBlt, 7, 0))},
		{"vldr_pcrel", VldrPcRel, fixup(float("vldr", 0xed9f0a00,
			isa.RegDef0|isa.IsLoad, "!0f, [pc, #!1E]",
			isa.F(isa.Fp, 22, 12), isa.F(isa.BitBlt, 7, 0)),
			isa.FixupLoad, loadNarrow,
			isa.Relax{Kind: isa.RelaxIndirect, To: Vldr, Insert: [2]isa.Opcode{Adr}, Scratch: LR})},
		{"vadd", Vadd, float("vadd", 0xee300a00,
			isa.RegDef0|isa.RegUse1|isa.RegUse2, "!0f, !1f, !2f",
			isa.F(isa.Fp, 22, 12), isa.F(isa.Fp, 7, 16), isa.F(isa.Fp, 5, 0))},
		{"vsub", Vsub, float("vsub", 0xee300a40,
			isa.RegDef0|isa.RegUse1|isa.RegUse2, "!0f, !1f, !2f",
			isa.F(isa.Fp, 22, 12), isa.F(isa.Fp, 7, 16), isa.F(isa.Fp, 5, 0))},
		{"vmul", Vmul, float("vmul", 0xee200a00,
			isa.RegDef0|isa.RegUse1|isa.RegUse2, "!0f, !1f, !2f",
			isa.F(isa.Fp, 22, 12), isa.F(isa.Fp, 7, 16), isa.F(isa.Fp, 5, 0))},
		{"vmov_imm", VmovImm, float("vmov", 0xeeb00a00,
			isa.RegDef0, "!0f, #!1I",
			isa.F(isa.Fp, 22, 12), isa.F(isa.FPImm, 16, 0))},
		{"nop_w", NopWide, word("nop.w", 0xf3af8000, 0, "")},
	}
}

// New builds the thumb2 descriptor table.
func New() *isa.ISA {
	t := isa.NewISA(Name, isa.HalfwordSwapped)
	for _, e := range entries() {
		t.Register(e.key, e.op, e.desc)
	}
	return t
}
