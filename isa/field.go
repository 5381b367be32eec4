package isa

import "fmt"

// FieldKind tells the encoder how an operand is merged into the skeleton.
type FieldKind uint8

// Field kinds. The contiguous kinds (Reg through BitBlt) are grouped so the
// encoder can handle them with one shift-and-mask.
const (
	Unused FieldKind = iota // Unused field, ends processing for the instruction.

	Reg     // Core register r0-r15.
	RegLow  // Core register r0-r7.
	RegNoPC // Core register, pc forbidden.
	RegNoSP // Core register, sp and pc forbidden.
	BitBlt  // Bit string using end/start.

	Skip     // Unused field, but continue to next.
	RegDN    // Core register split as [7, 2..0].
	Sfp      // Single FP register, Vd:D with D at end and Vd at start.
	Dfp      // Double FP register, D:Vd with D at end and Vd at start.
	Fp       // Sfp or Dfp, chosen by the width variant of the opcode.
	ModImm   // Shifted 8-bit immediate using [26,14..12,7..0].
	Imm12    // Zero-extended immediate using [26,14..12,7..0].
	Imm16    // Zero-extended immediate using [26,19..16,14..12,7..0].
	Imm6     // Encoded branch target using [9,7..3].
	BrOffset // Signed extended [26,11,13,21..16,10..0].
	Off24    // 24-bit signed branch offset with J1/J2 derived from the sign.
	Shift    // Shift descriptor, [14..12,7..4].
	Shift5   // Shift count, [14..12,7..6].
	Lsb      // Least significant bit using [14..12,7..6].
	BWidth   // Bit-field width, encoded as width-1.
	FPImm    // Encoded floating point immediate, high nibble at end.
)

var fieldKindNames = map[FieldKind]string{
	Unused:   "Unused",
	Reg:      "Reg",
	RegLow:   "RegLow",
	RegNoPC:  "RegNoPC",
	RegNoSP:  "RegNoSP",
	BitBlt:   "BitBlt",
	Skip:     "Skip",
	RegDN:    "RegDN",
	Sfp:      "Sfp",
	Dfp:      "Dfp",
	Fp:       "Fp",
	ModImm:   "ModImm",
	Imm12:    "Imm12",
	Imm16:    "Imm16",
	Imm6:     "Imm6",
	BrOffset: "BrOffset",
	Off24:    "Off24",
	Shift:    "Shift",
	Shift5:   "Shift5",
	Lsb:      "Lsb",
	BWidth:   "BWidth",
	FPImm:    "FPImm",
}

func (k FieldKind) String() string {
	if name, ok := fieldKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("FieldKind(%d)", uint8(k))
}

// IsContiguous reports whether the kind is a plain bit slice.
func (k FieldKind) IsContiguous() bool {
	return k >= Reg && k <= BitBlt
}

// IsRegister reports whether the kind carries a register number.
func (k FieldKind) IsRegister() bool {
	switch k {
	case Reg, RegLow, RegNoPC, RegNoSP, RegDN, Sfp, Dfp, Fp:
		return true
	}
	return false
}

// Field locates one operand inside the instruction word.
type Field struct {
	Kind  FieldKind
	End   int8
	Start int8
}

// F builds a field descriptor.
func F(kind FieldKind, end, start int8) Field {
	return Field{Kind: kind, End: end, Start: start}
}

// K builds a field descriptor for kinds with fixed bit positions.
func K(kind FieldKind) Field {
	return Field{Kind: kind, End: -1, Start: -1}
}
