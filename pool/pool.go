// Package pool lays out and installs the data that follows the code: the
// literal pool, switch tables and fill-array payloads.
package pool

import (
	"encoding/binary"

	"github.com/sarchlab/lirasm/lir"
)

// Align8 rounds offset up to a multiple of 8.
func Align8(offset int) int {
	return (offset + 7) &^ 7
}

// Image is the output buffer being assembled. Buf[0] sits at offset Base.
type Image struct {
	Buf  []byte
	Base int

	// InstOffset resolves the final offset of an instruction.
	InstOffset func(id lir.ID) int
}

// PadTo zero-fills the buffer up to offset.
func (im *Image) PadTo(offset int) {
	for im.Base+len(im.Buf) < offset {
		im.Buf = append(im.Buf, 0)
	}
}

// PutUint32 appends a little-endian word.
func (im *Image) PutUint32(v uint32) {
	im.Buf = binary.LittleEndian.AppendUint32(im.Buf, v)
}

// PutUint64 appends a little-endian double word.
func (im *Image) PutUint64(v uint64) {
	im.Buf = binary.LittleEndian.AppendUint64(im.Buf, v)
}

// End returns the offset right after the last byte.
func (im *Image) End() int {
	return im.Base + len(im.Buf)
}

// A Section is one kind of pool data.
type Section interface {
	// AssignOffsets gives every entry an offset starting at offset and
	// returns the offset after the last entry.
	AssignOffsets(offset int) int

	// Install writes the entries at their assigned offsets.
	Install(im *Image)
}

// Pools groups the sections of one compilation unit, in installation order.
type Pools struct {
	Literals *LiteralPool
	Switches *SwitchTables
	Fills    *FillArrays

	sections []Section
}

// New creates the standard pools: literals, switch tables, fill arrays.
func New() *Pools {
	p := &Pools{
		Literals: NewLiteralPool(),
		Switches: NewSwitchTables(),
		Fills:    NewFillArrays(),
	}
	p.sections = []Section{p.Literals, p.Switches, p.Fills}

	return p
}

// NewWith creates pools made of the given sections only.
func NewWith(sections ...Section) *Pools {
	return &Pools{sections: sections}
}

// Sections returns the sections in installation order.
func (p *Pools) Sections() []Section {
	return p.sections
}

// AssignOffsets lays out every section from dataOffset and returns the end.
func (p *Pools) AssignOffsets(dataOffset int) int {
	offset := dataOffset
	for _, s := range p.sections {
		offset = s.AssignOffsets(offset)
	}

	return offset
}

// Install writes every section into the image.
func (p *Pools) Install(im *Image) {
	for _, s := range p.sections {
		s.Install(im)
	}
}
