// Package asm assembles a low-level instruction list into machine code.
//
// Assembly is a single layout walk followed by a relaxation loop. Every
// attempt walks the fixup list, recomputes pc-relative displacements and
// grows the instructions whose displacement no longer fits. The loop stops
// at the first attempt that grows nothing.
package asm

import (
	"fmt"
	"log/slog"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/lirasm/isa"
	"github.com/sarchlab/lirasm/lir"
	"github.com/sarchlab/lirasm/pool"
)

// HookPosAttempt marks the end of a relaxation attempt. The item is an
// AttemptInfo.
var HookPosAttempt = &sim.HookPos{Name: "Relax Attempt"}

// HookPosExpand marks an instruction growing into its longer form. The item
// is the lir.ID of the instruction, the detail an Expansion.
var HookPosExpand = &sim.HookPos{Name: "Relax Expand"}

// HookPosConverged marks the end of assembly. The item is the Result.
var HookPosConverged = &sim.HookPos{Name: "Relax Converged"}

// AttemptInfo describes a finished relaxation attempt.
type AttemptInfo struct {
	Attempt    int
	Retry      bool
	Expansions int
	Growth     int
}

// Expansion describes how one instruction grew.
type Expansion struct {
	Rule     isa.RelaxKind
	From, To isa.Op
	Inserted []lir.ID
	Growth   int
}

// Result is the outcome of assembling one unit.
type Result struct {
	// Code holds the instructions followed by the pool data.
	Code       []byte
	CodeSize   int
	DataOffset int
	TotalSize  int
	Attempts   int
	Expansions int
}

// ConvergenceError is raised (as a panic value) when relaxation keeps
// growing instructions past the retry limit.
type ConvergenceError struct {
	Assembler string
	Attempts  int
	Dump      string
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("assembler %s: relaxation did not converge after %d attempts",
		e.Assembler, e.Attempts)
}

// Assembler turns instruction lists into machine code for one target.
type Assembler struct {
	*sim.HookableBase

	name         string
	isa          *isa.ISA
	maxRetries   int
	sizeEstimate int
	startOffset  int
}

// Name returns the name of the assembler.
func (a *Assembler) Name() string {
	return a.name
}

// ISA returns the target descriptor table.
func (a *Assembler) ISA() *isa.ISA {
	return a.isa
}

// Assemble lays out the list, relaxes it to a fixed point and installs the
// pools after the code. The list is updated in place: expanded instructions
// are rewritten and every live instruction ends up with its final offset.
// Passing nil pools assembles without data.
func (a *Assembler) Assemble(list *lir.List, pools *pool.Pools) *Result {
	if pools == nil {
		pools = pool.NewWith()
	}

	u := &unit{
		a:       a,
		list:    list,
		pools:   pools,
		tracked: make(map[lir.ID]bool),
	}

	u.layout()
	u.assignData()
	u.relax()

	return u.finish()
}

// unit is the state of one Assemble call.
type unit struct {
	a     *Assembler
	list  *lir.List
	pools *pool.Pools

	fixups  []lir.ID
	tracked map[lir.ID]bool
	buf     []byte

	codeEnd    int
	dataOffset int
	dataEnd    int

	attempts   int
	expansions int
}

func (u *unit) assignData() {
	u.dataOffset = pool.Align8(u.codeEnd)
	u.dataEnd = u.pools.AssignOffsets(u.dataOffset)
}

func (u *unit) finish() *Result {
	im := &pool.Image{
		Buf:  u.buf,
		Base: u.a.startOffset,
		InstOffset: func(id lir.ID) int {
			return u.list.At(id).Offset
		},
	}

	if u.dataEnd > u.dataOffset {
		im.PadTo(u.dataOffset)
		u.pools.Install(im)
	}

	res := &Result{
		Code:       im.Buf,
		CodeSize:   u.codeEnd - u.a.startOffset,
		DataOffset: u.dataOffset,
		TotalSize:  len(im.Buf),
		Attempts:   u.attempts,
		Expansions: u.expansions,
	}

	slog.Debug("assembled",
		"assembler", u.a.name,
		"code_size", res.CodeSize,
		"total_size", res.TotalSize,
		"attempts", res.Attempts,
		"expansions", res.Expansions)

	u.a.InvokeHook(sim.HookCtx{
		Domain: u.a,
		Pos:    HookPosConverged,
		Item:   res,
	})

	return res
}
