package pool

// Literal is a constant loaded pc-relative from the literal pool.
type Literal struct {
	Value uint64
	Wide  bool

	offset int
}

// Offset returns the assigned offset of the literal.
func (l *Literal) Offset() int {
	return l.offset
}

// Size returns the number of bytes the literal occupies.
func (l *Literal) Size() int {
	if l.Wide {
		return 8
	}
	return 4
}

// LiteralPool deduplicates 32-bit and 64-bit literals.
type LiteralPool struct {
	words  []*Literal
	wides  []*Literal
	byWord map[uint32]*Literal
	byWide map[uint64]*Literal
}

// NewLiteralPool creates an empty literal pool.
func NewLiteralPool() *LiteralPool {
	return &LiteralPool{
		byWord: make(map[uint32]*Literal),
		byWide: make(map[uint64]*Literal),
	}
}

// Word returns the pool entry for a 32-bit value, creating it on first use.
func (p *LiteralPool) Word(v uint32) *Literal {
	if l, ok := p.byWord[v]; ok {
		return l
	}

	l := &Literal{Value: uint64(v)}
	p.byWord[v] = l
	p.words = append(p.words, l)

	return l
}

// Wide returns the pool entry for a 64-bit value, creating it on first use.
func (p *LiteralPool) Wide(v uint64) *Literal {
	if l, ok := p.byWide[v]; ok {
		return l
	}

	l := &Literal{Value: v, Wide: true}
	p.byWide[v] = l
	p.wides = append(p.wides, l)

	return l
}

// Len returns the number of distinct literals.
func (p *LiteralPool) Len() int {
	return len(p.words) + len(p.wides)
}

// Entries returns the literals in layout order.
func (p *LiteralPool) Entries() []*Literal {
	out := make([]*Literal, 0, p.Len())
	out = append(out, p.wides...)
	return append(out, p.words...)
}

// AssignOffsets places wide literals first so they stay 8-byte aligned.
func (p *LiteralPool) AssignOffsets(offset int) int {
	if len(p.wides) > 0 {
		offset = Align8(offset)
	}
	for _, l := range p.Entries() {
		l.offset = offset
		offset += l.Size()
	}

	return offset
}

// Install writes the literals.
func (p *LiteralPool) Install(im *Image) {
	for _, l := range p.Entries() {
		im.PadTo(l.offset)
		if l.Wide {
			im.PutUint64(l.Value)
		} else {
			im.PutUint32(uint32(l.Value))
		}
	}
}
