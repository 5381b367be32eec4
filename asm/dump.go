package asm

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sarchlab/lirasm/isa"
	"github.com/sarchlab/lirasm/lir"
)

// Dump renders the instruction list as a table.
func Dump(t *isa.ISA, l *lir.List) string {
	tw := table.NewWriter()
	tw.SetTitle(fmt.Sprintf("LIR %s (%d instructions)", t.Name(), l.Len()))
	tw.AppendHeader(table.Row{
		"ID", "Offset", "Size", "Op", "Asm", "Fixup", "Target", "Bits",
	})

	for _, id := range l.IDs() {
		in := l.At(id)
		tw.AppendRow(table.Row{
			id,
			in.Offset,
			in.Size,
			opName(t, in),
			asmString(t, in),
			in.Fixup,
			targetString(in),
			bitsString(in),
		})
	}

	return tw.Render()
}

func opName(t *isa.ISA, in *lir.Inst) string {
	name := t.Key(in.Op.Base)
	if in.Op.Wide {
		name += ".d"
	}
	if in.Dead {
		name += " (dead)"
	}
	return name
}

// asmString renders the instruction through the name and format strings of
// its descriptor. A format escape is '!', an operand index and a code.
func asmString(t *isa.ISA, in *lir.Inst) string {
	if in.Op.Base.IsPseudo() {
		return ""
	}

	desc := t.Descriptor(in.Op.Base)
	name := expandFmt(desc, in, desc.Name)
	if desc.Fmt == "" {
		return name
	}
	return name + " " + expandFmt(desc, in, desc.Fmt)
}

var condNames = [...]string{
	"eq", "ne", "cs", "cc", "mi", "pl", "vs", "vc",
	"hi", "ls", "ge", "lt", "gt", "le", "",
}

var shiftNames = [...]string{"lsl", "lsr", "asr", "ror"}

func coreReg(r int32) string {
	switch r {
	case 13:
		return "sp"
	case 14:
		return "lr"
	case 15:
		return "pc"
	}
	return fmt.Sprintf("r%d", r)
}

func expandFmt(desc *isa.Descriptor, in *lir.Inst, f string) string {
	var sb strings.Builder

	for i := 0; i < len(f); i++ {
		if f[i] != '!' || i+2 >= len(f) {
			sb.WriteByte(f[i])
			continue
		}

		n := int(f[i+1]) - '0'
		code := f[i+2]
		i += 2
		if n < 0 || n >= len(in.Operands) {
			sb.WriteString("?")
			continue
		}
		v := in.Operands[n]

		switch code {
		case 'C':
			sb.WriteString(coreReg(v))
		case 'f':
			if in.Op.Wide {
				fmt.Fprintf(&sb, "d%d", v)
			} else {
				fmt.Fprintf(&sb, "s%d", v)
			}
		case 'd':
			fmt.Fprintf(&sb, "%d", v)
		case 'E':
			fmt.Fprintf(&sb, "%d", v*4)
		case 'M', 'm', 'I':
			fmt.Fprintf(&sb, "0x%x", uint32(v))
		case 'H':
			if v != 0 {
				fmt.Fprintf(&sb, ", %s #%d", shiftNames[v&3], v>>2)
			}
		case 'c':
			if int(v) >= 0 && int(v) < len(condNames) {
				sb.WriteString(condNames[v])
			}
		case 't':
			pc := desc.Reach.PC(in.Offset)
			fmt.Fprintf(&sb, "0x%x", pc+int(v)<<desc.Reach.Shift)
		case 'R':
			sb.WriteString(regList(desc, v))
		default:
			fmt.Fprintf(&sb, "!%d%c", n, code)
		}
	}

	return sb.String()
}

// regList renders a push/pop mask. Bit 8 is lr for stores, pc for loads.
func regList(desc *isa.Descriptor, mask int32) string {
	var regs []string
	for r := int32(0); r < 8; r++ {
		if mask&(1<<r) != 0 {
			regs = append(regs, coreReg(r))
		}
	}
	if mask&(1<<8) != 0 {
		if desc.Flags&isa.IsLoad != 0 {
			regs = append(regs, "pc")
		} else {
			regs = append(regs, "lr")
		}
	}
	return strings.Join(regs, ", ")
}

func targetString(in *lir.Inst) string {
	switch {
	case in.Target.IsInst():
		return fmt.Sprintf("-> %d", in.Target.Inst)
	case in.Target.IsData():
		return fmt.Sprintf("data@%d", in.Target.Data.Offset())
	case in.Anchor != lir.Nil:
		return fmt.Sprintf("anchor %d", in.Anchor)
	}
	return ""
}

func bitsString(in *lir.Inst) string {
	switch in.Size {
	case 2:
		return fmt.Sprintf("%04x", in.Bits)
	case 4:
		return fmt.Sprintf("%08x", in.Bits)
	}
	return ""
}
