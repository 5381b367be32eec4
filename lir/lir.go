// Package lir holds the low-level instruction list the assembler consumes.
//
// Instructions live in an arena owned by a List and are addressed by stable
// IDs. Program order is a doubly linked chain through the arena, so growing
// an instruction into a sequence never invalidates an ID held elsewhere.
package lir

import "github.com/sarchlab/lirasm/isa"

// ID addresses an instruction inside its List.
type ID int32

// Nil is the zero ID. It never names an instruction.
const Nil ID = 0

// DataEntry is anything in the literal/data area an instruction can refer
// to. Its offset is meaningful once the pools have been laid out.
type DataEntry interface {
	Offset() int
}

// Ref is a non-owning reference from an instruction to what its
// displacement is measured against. The zero value refers to nothing.
type Ref struct {
	Inst ID
	Data DataEntry
}

// To refers to an instruction.
func To(id ID) Ref {
	return Ref{Inst: id}
}

// ToData refers to a pool entry.
func ToData(d DataEntry) Ref {
	return Ref{Data: d}
}

// IsNil reports whether the reference is empty.
func (r Ref) IsNil() bool {
	return r.Inst == Nil && r.Data == nil
}

// IsInst reports whether the reference names an instruction.
func (r Ref) IsInst() bool {
	return r.Inst != Nil
}

// IsData reports whether the reference names a pool entry.
func (r Ref) IsData() bool {
	return r.Inst == Nil && r.Data != nil
}

// Inst is one instruction record.
type Inst struct {
	Op       isa.Op
	Operands [4]int32
	Target   Ref
	// Anchor is the instruction the split halves of an immediate are
	// relative to.
	Anchor ID

	Offset     int
	Size       int
	Fixup      isa.FixupKind
	Generation uint8
	Bits       uint32

	// Dead instructions stay linked but are skipped by layout.
	Dead bool

	prev, next ID
	linked     bool
}

// List is the program-order instruction list of one compilation unit.
type List struct {
	insts      []Inst
	head, tail ID
	n          int
}

// NewList creates an empty list.
func NewList() *List {
	return &List{
		// Slot 0 backs Nil.
		insts: make([]Inst, 1, 64),
	}
}

// At returns the instruction with the given ID.
func (l *List) At(id ID) *Inst {
	if id <= Nil || int(id) >= len(l.insts) {
		panic("lir: bad instruction id")
	}
	return &l.insts[id]
}

// Len returns the number of linked instructions.
func (l *List) Len() int {
	return l.n
}

// First returns the first instruction in program order, or Nil.
func (l *List) First() ID {
	return l.head
}

// Last returns the last instruction in program order, or Nil.
func (l *List) Last() ID {
	return l.tail
}

// Next returns the instruction after id, or Nil.
func (l *List) Next(id ID) ID {
	return l.At(id).next
}

// Prev returns the instruction before id, or Nil.
func (l *List) Prev(id ID) ID {
	return l.At(id).prev
}

// IDs returns the linked instructions in program order.
func (l *List) IDs() []ID {
	ids := make([]ID, 0, l.n)
	for id := l.head; id != Nil; id = l.insts[id].next {
		ids = append(ids, id)
	}
	return ids
}

// New allocates an instruction without linking it. Use Bind or
// InsertBefore to place it.
func (l *List) New(inst Inst) ID {
	inst.prev, inst.next, inst.linked = Nil, Nil, false
	l.insts = append(l.insts, inst)
	return ID(len(l.insts) - 1)
}

// Bind links an allocated instruction at the end of the list.
func (l *List) Bind(id ID) ID {
	in := l.At(id)
	if in.linked {
		panic("lir: instruction already linked")
	}

	in.linked = true
	in.prev = l.tail
	in.next = Nil
	if l.tail != Nil {
		l.insts[l.tail].next = id
	} else {
		l.head = id
	}
	l.tail = id
	l.n++

	return id
}

// Append allocates an instruction and links it at the end of the list.
func (l *List) Append(inst Inst) ID {
	return l.Bind(l.New(inst))
}

// InsertBefore allocates an instruction and links it right before at.
func (l *List) InsertBefore(at ID, inst Inst) ID {
	id := l.New(inst)
	pos := l.At(at)
	if !pos.linked {
		panic("lir: insert before an unlinked instruction")
	}

	in := &l.insts[id]
	in.linked = true
	in.next = at
	in.prev = pos.prev
	if pos.prev != Nil {
		l.insts[pos.prev].next = id
	} else {
		l.head = id
	}
	pos.prev = id
	l.n++

	return id
}

// Remove unlinks an instruction. Its ID stays valid.
func (l *List) Remove(id ID) {
	in := l.At(id)
	if !in.linked {
		return
	}

	if in.prev != Nil {
		l.insts[in.prev].next = in.next
	} else {
		l.head = in.next
	}
	if in.next != Nil {
		l.insts[in.next].prev = in.prev
	} else {
		l.tail = in.prev
	}

	in.prev, in.next, in.linked = Nil, Nil, false
	l.n--
}

// IsLinked reports whether the instruction is part of program order.
func (l *List) IsLinked(id ID) bool {
	return l.At(id).linked
}

func ops(operands []int32) [4]int32 {
	var o [4]int32
	if len(operands) > len(o) {
		panic("lir: too many operands")
	}
	copy(o[:], operands)
	return o
}

// Emit appends an instruction with the given operands.
func (l *List) Emit(op isa.Op, operands ...int32) ID {
	return l.Append(Inst{Op: op, Operands: ops(operands)})
}

// EmitRef appends an instruction whose displacement is measured against
// target.
func (l *List) EmitRef(op isa.Op, target Ref, operands ...int32) ID {
	return l.Append(Inst{Op: op, Operands: ops(operands), Target: target})
}

// NewLabel allocates a label to be placed later with Bind.
func (l *List) NewLabel() ID {
	return l.New(Inst{Op: isa.Narrow(isa.PseudoLabel)})
}

// Label appends a label at the current end of the list.
func (l *List) Label() ID {
	return l.Bind(l.NewLabel())
}
