package asm

import (
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/lirasm/isa"
)

// DefaultMaxRetries bounds the number of relaxation retries.
const DefaultMaxRetries = 50

// Builder can create new assemblers.
type Builder struct {
	isa          *isa.ISA
	maxRetries   int
	sizeEstimate int
	startOffset  int
}

// NewBuilder creates a builder with default parameters.
func NewBuilder() Builder {
	return Builder{
		maxRetries: DefaultMaxRetries,
	}
}

// WithISA sets the descriptor table of the target.
func (b Builder) WithISA(t *isa.ISA) Builder {
	b.isa = t
	return b
}

// WithMaxRetries sets how many retried relaxation attempts are tolerated
// before giving up.
func (b Builder) WithMaxRetries(n int) Builder {
	if n < 0 {
		panic("max retries must not be negative")
	}
	b.maxRetries = n
	return b
}

// WithSizeEstimate sets the expected code size, used to reserve the buffer.
func (b Builder) WithSizeEstimate(n int) Builder {
	b.sizeEstimate = n
	return b
}

// WithStartOffset sets the offset of the first instruction.
func (b Builder) WithStartOffset(offset int) Builder {
	b.startOffset = offset
	return b
}

// Build creates an assembler.
func (b Builder) Build(name string) *Assembler {
	if b.isa == nil {
		panic("assembler " + name + " needs an ISA")
	}

	return &Assembler{
		HookableBase: sim.NewHookableBase(),
		name:         name,
		isa:          b.isa,
		maxRetries:   b.maxRetries,
		sizeEstimate: b.sizeEstimate,
		startOffset:  b.startOffset,
	}
}
