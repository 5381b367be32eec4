package isa

import "fmt"

// Opcode identifies an instruction of a target independent of its width
// variant. Negative opcodes are pseudo instructions.
type Opcode int16

// PseudoLabel marks a branch target. It occupies no bytes.
const PseudoLabel Opcode = -1

// IsPseudo reports whether the opcode is a pseudo instruction.
func (o Opcode) IsPseudo() bool {
	return o < 0
}

// Op pairs a base opcode with its width variant. The variant selects the
// second skeleton of the descriptor.
type Op struct {
	Base Opcode
	Wide bool
}

// Narrow returns the narrow variant of an opcode.
func Narrow(base Opcode) Op {
	return Op{Base: base}
}

// Wide returns the wide variant of an opcode.
func Wide(base Opcode) Op {
	return Op{Base: base, Wide: true}
}

// FixupKind tells the relaxation pass how an instruction depends on layout.
type FixupKind uint8

// Fixup kinds.
const (
	FixupNone       FixupKind = iota
	FixupLabel                // Pseudo label, tracked for its offset.
	FixupBranch               // Unconditional pc-relative branch.
	FixupCondBranch           // Conditional pc-relative branch.
	FixupCBxZ                 // Compare-with-zero and branch.
	FixupLoad                 // Pc-relative load.
	FixupAdr                  // Pc-relative address computation.
	FixupMovImmLow            // Low half of a split pc-relative displacement.
	FixupMovImmHigh           // High half of a split pc-relative displacement.
)

var fixupNames = [...]string{
	FixupNone:       "none",
	FixupLabel:      "label",
	FixupBranch:     "branch",
	FixupCondBranch: "cond-branch",
	FixupCBxZ:       "cbxz",
	FixupLoad:       "load",
	FixupAdr:        "adr",
	FixupMovImmLow:  "movimm-lo",
	FixupMovImmHigh: "movimm-hi",
}

func (k FixupKind) String() string {
	if int(k) < len(fixupNames) {
		return fixupNames[k]
	}
	return fmt.Sprintf("FixupKind(%d)", uint8(k))
}

// IsBranchClass reports whether the fixup resolves a displacement from the
// instruction itself to its target.
func (k FixupKind) IsBranchClass() bool {
	switch k {
	case FixupBranch, FixupCondBranch, FixupCBxZ, FixupLoad, FixupAdr:
		return true
	}
	return false
}

// IsSplitHalf reports whether the fixup is one half of a split immediate.
func (k FixupKind) IsSplitHalf() bool {
	return k == FixupMovImmLow || k == FixupMovImmHigh
}

// Flags describe an opcode to upstream collaborators (scheduling, resource
// masks). The assembler itself does not read them.
type Flags uint32

// Opcode flags.
const (
	IsBranch Flags = 1 << iota
	IsLoad
	IsStore
	IsPseudo
	NeedsFixup
	RegDef0
	RegUse0
	RegUse1
	RegUse2
	RegUse3
	SetsCCodes
	UsesCCodes
)

// Reach is the displacement constraint of a fixup-bearing opcode.
type Reach struct {
	Operand int  // operand slot receiving the encoded displacement
	Shift   uint // low bits that must be zero; the field stores delta>>Shift
	Bits    uint // width of the field after the shift
	Signed  bool
	Bias    int  // pc = offset + Bias
	AlignPC bool // pc is rounded down to a multiple of 4
}

// PC returns the pc value a displacement is measured from.
func (r Reach) PC(offset int) int {
	pc := offset + r.Bias
	if r.AlignPC {
		pc &^= 3
	}
	return pc
}

// Fits reports whether delta is exactly representable.
func (r Reach) Fits(delta int) bool {
	if delta&(1<<r.Shift-1) != 0 {
		return false
	}
	v := delta >> r.Shift
	if r.Signed {
		return v >= -(1<<(r.Bits-1)) && v <= 1<<(r.Bits-1)-1
	}
	return v >= 0 && v < 1<<r.Bits
}

// Min returns the most negative representable displacement.
func (r Reach) Min() int {
	if !r.Signed {
		return 0
	}
	return -(1 << (r.Bits - 1)) << r.Shift
}

// Max returns the largest representable displacement.
func (r Reach) Max() int {
	if r.Signed {
		return (1<<(r.Bits-1) - 1) << r.Shift
	}
	return (1<<r.Bits - 1) << r.Shift
}

// RelaxKind selects how an out-of-range instruction grows.
type RelaxKind uint8

// Relaxation rules.
const (
	// RelaxNone means the displacement must fit; overflow is a defect.
	RelaxNone RelaxKind = iota
	// RelaxWiden swaps the opcode for a longer-reach form in place.
	RelaxWiden
	// RelaxCompare inserts a compare with zero and turns the instruction
	// into a conditional branch.
	RelaxCompare
	// RelaxIndirect inserts an address computation into a scratch register
	// and turns the instruction into a register-based form.
	RelaxIndirect
	// RelaxSplit inserts the two halves of a wide immediate and turns the
	// instruction into an add of the pc.
	RelaxSplit
)

var relaxNames = [...]string{
	RelaxNone:     "none",
	RelaxWiden:    "widen",
	RelaxCompare:  "compare",
	RelaxIndirect: "indirect",
	RelaxSplit:    "split",
}

func (k RelaxKind) String() string {
	if int(k) < len(relaxNames) {
		return relaxNames[k]
	}
	return fmt.Sprintf("RelaxKind(%d)", uint8(k))
}

// UseDest asks RelaxIndirect to use operand 0 as the scratch register.
const UseDest int32 = -1

// Relax describes the replacement sequence for an out-of-range instruction.
type Relax struct {
	Kind    RelaxKind
	To      Opcode    // what the out-of-range instruction becomes
	Insert  [2]Opcode // instructions inserted before it, in order
	Cond    int32     // branch condition for RelaxCompare
	Scratch int32     // scratch register for RelaxIndirect, or UseDest
}

// Descriptor is the immutable encoding description of one opcode.
type Descriptor struct {
	Name     string
	Skeleton [2]uint32 // narrow, wide
	Fields   [4]Field
	Size     int
	Fixup    FixupKind
	Flags    Flags
	Fmt      string
	Reach    Reach
	Relax    Relax
}

// HasWide reports whether the opcode has a wide skeleton.
func (d *Descriptor) HasWide() bool {
	return d.Skeleton[1] != 0
}

// SkeletonFor returns the skeleton matching the width variant.
func (d *Descriptor) SkeletonFor(wide bool) uint32 {
	if wide {
		return d.Skeleton[1]
	}
	return d.Skeleton[0]
}
