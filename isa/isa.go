// Package isa holds opcode descriptor tables. A table is static per-target
// configuration: skeletons, operand field locations, sizes and fixup rules.
package isa

import (
	"fmt"
	"sort"
	"sync"
)

// ByteOrder tells how an encoded word is laid out in memory.
type ByteOrder uint8

// Byte orders.
const (
	// LittleEndian stores the word least significant byte first.
	LittleEndian ByteOrder = iota
	// HalfwordSwapped stores 32-bit words as two little-endian halfwords,
	// most significant halfword first.
	HalfwordSwapped
)

// ISA is a struct that represents an Instruction Set Architecture.
type ISA struct {
	// name of the ISA.
	isaName string
	// encoding descriptors and lookup keys, indexed by opcode.
	descs []Descriptor
	keys  []string
	// map from instruction name to opcode.
	nameToOpcode map[string]Opcode

	order ByteOrder
	label Descriptor
}

// NewISA creates an empty descriptor table.
func NewISA(name string, order ByteOrder) *ISA {
	return &ISA{
		isaName:      name,
		nameToOpcode: make(map[string]Opcode),
		order:        order,
		label: Descriptor{
			Name:  "label",
			Fixup: FixupLabel,
			Flags: IsPseudo,
			Fmt:   "!0L",
		},
	}
}

// Name returns the name of the ISA.
func (isa *ISA) Name() string {
	return isa.isaName
}

// ByteOrder returns how encoded words are stored.
func (isa *ISA) ByteOrder() ByteOrder {
	return isa.order
}

// Register adds the descriptor of an opcode. Opcodes must be registered in
// increasing order without gaps.
func (isa *ISA) Register(key string, op Opcode, desc Descriptor) {
	if int(op) != len(isa.descs) {
		panic(fmt.Sprintf("isa %s: opcode %s registered as %d, expected %d",
			isa.isaName, key, op, len(isa.descs)))
	}
	if _, dup := isa.nameToOpcode[key]; dup {
		panic(fmt.Sprintf("isa %s: duplicate opcode key %s", isa.isaName, key))
	}

	isa.descs = append(isa.descs, desc)
	isa.keys = append(isa.keys, key)
	isa.nameToOpcode[key] = op
}

// Descriptor returns the descriptor of an opcode.
func (isa *ISA) Descriptor(op Opcode) *Descriptor {
	if op == PseudoLabel {
		return &isa.label
	}
	if op < 0 || int(op) >= len(isa.descs) {
		panic(fmt.Sprintf("isa %s: unknown opcode %d", isa.isaName, op))
	}
	return &isa.descs[op]
}

// Lookup finds an opcode by its key.
func (isa *ISA) Lookup(key string) (Opcode, bool) {
	if key == isa.label.Name {
		return PseudoLabel, true
	}
	op, ok := isa.nameToOpcode[key]
	return op, ok
}

// Key returns the lookup key of an opcode.
func (isa *ISA) Key(op Opcode) string {
	if op == PseudoLabel {
		return isa.label.Name
	}
	if op < 0 || int(op) >= len(isa.keys) {
		return fmt.Sprintf("op%d", op)
	}
	return isa.keys[op]
}

// NumOpcodes returns how many real opcodes the table holds.
func (isa *ISA) NumOpcodes() int {
	return len(isa.descs)
}

var (
	targetsMu sync.Mutex
	targets   = map[string]func() *ISA{}
)

// RegisterTarget makes a target table available through Target.
func RegisterTarget(name string, build func() *ISA) {
	targetsMu.Lock()
	defer targetsMu.Unlock()

	if _, dup := targets[name]; dup {
		panic("isa: target registered twice: " + name)
	}
	targets[name] = build
}

// Target builds the descriptor table of a registered target.
func Target(name string) (*ISA, error) {
	targetsMu.Lock()
	build, ok := targets[name]
	targetsMu.Unlock()

	if !ok {
		return nil, fmt.Errorf("isa: unknown target %q (known: %v)", name, Targets())
	}
	return build(), nil
}

// Targets lists the registered target names.
func Targets() []string {
	targetsMu.Lock()
	defer targetsMu.Unlock()

	names := make([]string, 0, len(targets))
	for name := range targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
