package pool

import "github.com/sarchlab/lirasm/lir"

// SwitchTable is a jump table of displacements. Each displacement is
// measured from the pc of the anchor instruction, that is the anchor's
// offset plus Bias.
type SwitchTable struct {
	Anchor  lir.ID
	Bias    int
	Targets []lir.ID
	// Keys is set for sparse tables, one key per target.
	Keys []int32

	offset int
}

// Offset returns the assigned offset of the table.
func (t *SwitchTable) Offset() int {
	return t.offset
}

// IsSparse reports whether the table carries keys.
func (t *SwitchTable) IsSparse() bool {
	return t.Keys != nil
}

// Size returns the number of bytes the table occupies.
func (t *SwitchTable) Size() int {
	if t.IsSparse() {
		return 8 * len(t.Targets)
	}
	return 4 * len(t.Targets)
}

// SwitchTables holds the switch tables of a unit in creation order.
type SwitchTables struct {
	tables []*SwitchTable
}

// NewSwitchTables creates an empty set of switch tables.
func NewSwitchTables() *SwitchTables {
	return &SwitchTables{}
}

// Packed adds a table indexed by case number.
func (s *SwitchTables) Packed(anchor lir.ID, bias int, targets ...lir.ID) *SwitchTable {
	t := &SwitchTable{Anchor: anchor, Bias: bias, Targets: targets}
	s.tables = append(s.tables, t)

	return t
}

// Sparse adds a table of key/displacement pairs.
func (s *SwitchTables) Sparse(
	anchor lir.ID,
	bias int,
	keys []int32,
	targets []lir.ID,
) *SwitchTable {
	if len(keys) != len(targets) {
		panic("pool: sparse switch table keys and targets differ in length")
	}
	if keys == nil {
		keys = []int32{}
	}

	t := &SwitchTable{Anchor: anchor, Bias: bias, Keys: keys, Targets: targets}
	s.tables = append(s.tables, t)

	return t
}

// Tables returns the tables in layout order.
func (s *SwitchTables) Tables() []*SwitchTable {
	return s.tables
}

// AssignOffsets places the tables back to back.
func (s *SwitchTables) AssignOffsets(offset int) int {
	for _, t := range s.tables {
		t.offset = offset
		offset += t.Size()
	}

	return offset
}

// Install writes the displacements of every table.
func (s *SwitchTables) Install(im *Image) {
	for _, t := range s.tables {
		im.PadTo(t.offset)

		pc := im.InstOffset(t.Anchor) + t.Bias
		for i, target := range t.Targets {
			if t.IsSparse() {
				im.PutUint32(uint32(t.Keys[i]))
			}
			im.PutUint32(uint32(int32(im.InstOffset(target) - pc)))
		}
	}
}
