// Package program loads instruction lists described in YAML.
//
// A program file names its target and lists instructions in program order:
//
//	target: thumb2
//	program:
//	  - label: top
//	  - op: ldr_pcrel
//	    operands: [0, 0]
//	    literal: 0xcafe
//	  - op: nop
//	    repeat: 100
//	  - op: cbnz
//	    operands: [2, 0]
//	    target: top
//
// An instruction refers to at most one of: a label or named instruction
// (target), a word literal (literal), a wide literal (wide_literal), a
// switch table (switch) or a fill array (fill).
package program

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/lirasm/isa"
	"github.com/sarchlab/lirasm/lir"
	"github.com/sarchlab/lirasm/pool"

	// Targets register themselves on import.
	_ "github.com/sarchlab/lirasm/isa/thumb2"
)

// File is the YAML layout of a program file.
type File struct {
	Target      string      `yaml:"target"`
	StartOffset int         `yaml:"start_offset"`
	MaxRetries  *int        `yaml:"max_retries"`
	Program     []Entry     `yaml:"program"`
	Switches    []Switch    `yaml:"switches"`
	FillArrays  []FillArray `yaml:"fill_arrays"`
}

// Entry is one instruction or label.
type Entry struct {
	Label string `yaml:"label"`
	Name  string `yaml:"name"`

	Op       string  `yaml:"op"`
	Wide     bool    `yaml:"wide"`
	Operands []int32 `yaml:"operands"`
	Repeat   int     `yaml:"repeat"`
	Dead     bool    `yaml:"dead"`

	Target      string  `yaml:"target"`
	Literal     *uint32 `yaml:"literal"`
	WideLiteral *uint64 `yaml:"wide_literal"`
	Switch      string  `yaml:"switch"`
	Fill        string  `yaml:"fill"`
}

// Switch describes a switch table.
type Switch struct {
	Name    string   `yaml:"name"`
	Anchor  string   `yaml:"anchor"`
	Bias    int      `yaml:"bias"`
	Targets []string `yaml:"targets"`
	Keys    []int32  `yaml:"keys"`
}

// FillArray describes a fill-array payload.
type FillArray struct {
	Name  string `yaml:"name"`
	Width int    `yaml:"width"`
	Data  []byte `yaml:"data"`
}

// Unit is a loaded program, ready to assemble.
type Unit struct {
	ISA         *isa.ISA
	StartOffset int
	MaxRetries  *int
	List        *lir.List
	Pools       *pool.Pools

	// Names maps labels and named instructions to their IDs.
	Names map[string]lir.ID
}

// LoadProgramFile reads and parses a program file.
func LoadProgramFile(path string) (*Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read program file: %w", err)
	}

	u, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return u, nil
}

// Parse builds a unit from YAML.
func Parse(data []byte) (*Unit, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse program: %w", err)
	}

	return Build(&f)
}

type builder struct {
	f        *File
	u        *Unit
	switches map[string]*pool.SwitchTable
	fills    map[string]*pool.FillArray
}

// Build turns a decoded file into a unit.
func Build(f *File) (*Unit, error) {
	if f.Target == "" {
		return nil, fmt.Errorf("program has no target")
	}

	t, err := isa.Target(f.Target)
	if err != nil {
		return nil, err
	}

	b := &builder{
		f: f,
		u: &Unit{
			ISA:         t,
			StartOffset: f.StartOffset,
			MaxRetries:  f.MaxRetries,
			List:        lir.NewList(),
			Pools:       pool.New(),
			Names:       make(map[string]lir.ID),
		},
		switches: make(map[string]*pool.SwitchTable),
		fills:    make(map[string]*pool.FillArray),
	}

	if err := b.declare(); err != nil {
		return nil, err
	}
	if err := b.buildData(); err != nil {
		return nil, err
	}
	if err := b.emit(); err != nil {
		return nil, err
	}

	return b.u, nil
}

// declare allocates every label and named instruction up front so that
// forward references resolve.
func (b *builder) declare() error {
	for i, e := range b.f.Program {
		name := e.Label
		switch {
		case e.Label != "" && e.Op != "":
			return fmt.Errorf("entry %d: label %q also has an op", i, e.Label)
		case e.Label != "":
		case e.Name != "":
			name = e.Name
			if e.Repeat > 1 {
				return fmt.Errorf("entry %d: named instruction %q cannot repeat", i, e.Name)
			}
		default:
			continue
		}

		if _, dup := b.u.Names[name]; dup {
			return fmt.Errorf("entry %d: duplicate name %q", i, name)
		}

		if e.Label != "" {
			b.u.Names[name] = b.u.List.NewLabel()
		} else {
			b.u.Names[name] = b.u.List.New(lir.Inst{})
		}
	}

	return nil
}

func (b *builder) lookup(name string) (lir.ID, error) {
	id, ok := b.u.Names[name]
	if !ok {
		return lir.Nil, fmt.Errorf("unknown label %q", name)
	}
	return id, nil
}

func (b *builder) buildData() error {
	for _, s := range b.f.Switches {
		if _, dup := b.switches[s.Name]; dup {
			return fmt.Errorf("switch %q: duplicate name", s.Name)
		}

		anchor, err := b.lookup(s.Anchor)
		if err != nil {
			return fmt.Errorf("switch %q: %w", s.Name, err)
		}

		targets := make([]lir.ID, 0, len(s.Targets))
		for _, name := range s.Targets {
			id, err := b.lookup(name)
			if err != nil {
				return fmt.Errorf("switch %q: %w", s.Name, err)
			}
			targets = append(targets, id)
		}

		if s.Keys == nil {
			b.switches[s.Name] = b.u.Pools.Switches.Packed(anchor, s.Bias, targets...)
			continue
		}
		if len(s.Keys) != len(targets) {
			return fmt.Errorf("switch %q: %d keys for %d targets", s.Name, len(s.Keys), len(targets))
		}
		b.switches[s.Name] = b.u.Pools.Switches.Sparse(anchor, s.Bias, s.Keys, targets)
	}

	for _, fa := range b.f.FillArrays {
		if _, dup := b.fills[fa.Name]; dup {
			return fmt.Errorf("fill array %q: duplicate name", fa.Name)
		}
		b.fills[fa.Name] = b.u.Pools.Fills.Add(fa.Width, fa.Data)
	}

	return nil
}

func (b *builder) emit() error {
	for i, e := range b.f.Program {
		if e.Label != "" {
			b.u.List.Bind(b.u.Names[e.Label])
			continue
		}

		inst, err := b.inst(e)
		if err != nil {
			return fmt.Errorf("entry %d (%s): %w", i, e.Op, err)
		}

		if e.Name != "" {
			id := b.u.Names[e.Name]
			*b.u.List.At(id) = inst
			b.u.List.Bind(id)
			continue
		}

		n := e.Repeat
		if n < 1 {
			n = 1
		}
		for j := 0; j < n; j++ {
			b.u.List.Append(inst)
		}
	}

	return nil
}

func (b *builder) inst(e Entry) (lir.Inst, error) {
	var inst lir.Inst

	op, ok := b.u.ISA.Lookup(e.Op)
	if !ok || op.IsPseudo() {
		return inst, fmt.Errorf("unknown op %q", e.Op)
	}
	if len(e.Operands) > len(inst.Operands) {
		return inst, fmt.Errorf("%d operands, at most %d allowed", len(e.Operands), len(inst.Operands))
	}
	if e.Wide && !b.u.ISA.Descriptor(op).HasWide() {
		return inst, fmt.Errorf("op %q has no wide variant", e.Op)
	}

	inst.Op = isa.Op{Base: op, Wide: e.Wide}
	copy(inst.Operands[:], e.Operands)
	inst.Dead = e.Dead

	ref, err := b.ref(e)
	if err != nil {
		return inst, err
	}
	inst.Target = ref

	needsTarget := b.u.ISA.Descriptor(op).Fixup.IsBranchClass()
	if needsTarget && ref.IsNil() {
		return inst, fmt.Errorf("op %q needs a target", e.Op)
	}

	return inst, nil
}

func (b *builder) ref(e Entry) (lir.Ref, error) {
	var refs []lir.Ref

	if e.Target != "" {
		id, err := b.lookup(e.Target)
		if err != nil {
			return lir.Ref{}, err
		}
		refs = append(refs, lir.To(id))
	}
	if e.Literal != nil {
		refs = append(refs, lir.ToData(b.u.Pools.Literals.Word(*e.Literal)))
	}
	if e.WideLiteral != nil {
		refs = append(refs, lir.ToData(b.u.Pools.Literals.Wide(*e.WideLiteral)))
	}
	if e.Switch != "" {
		s, ok := b.switches[e.Switch]
		if !ok {
			return lir.Ref{}, fmt.Errorf("unknown switch %q", e.Switch)
		}
		refs = append(refs, lir.ToData(s))
	}
	if e.Fill != "" {
		fa, ok := b.fills[e.Fill]
		if !ok {
			return lir.Ref{}, fmt.Errorf("unknown fill array %q", e.Fill)
		}
		refs = append(refs, lir.ToData(fa))
	}

	switch len(refs) {
	case 0:
		return lir.Ref{}, nil
	case 1:
		return refs[0], nil
	}
	return lir.Ref{}, fmt.Errorf("more than one target")
}
