package verify

import (
	"bytes"
	"fmt"

	"github.com/sarchlab/lirasm/asm"
	"github.com/sarchlab/lirasm/encoder"
	"github.com/sarchlab/lirasm/isa"
	"github.com/sarchlab/lirasm/lir"
)

// RunLint checks an assembled list against its result.
// Returns a list of issues found, or empty list if no issues.
func RunLint(t *isa.ISA, l *lir.List, res *asm.Result) []Issue {
	var issues []Issue

	issues = append(issues, checkLayout(l, res)...)
	issues = append(issues, checkReach(t, l)...)
	issues = append(issues, checkSplits(t, l)...)
	issues = append(issues, checkImage(t, l, res)...)

	return issues
}

func startOffset(l *lir.List) int {
	if l.First() == lir.Nil {
		return 0
	}
	return l.At(l.First()).Offset
}

// LAYOUT: offset(i) + size(i) <= offset(next) and the sizes add up.
func checkLayout(l *lir.List, res *asm.Result) []Issue {
	var issues []Issue

	start := startOffset(l)
	end := start
	for _, id := range l.IDs() {
		in := l.At(id)

		if in.Offset < end {
			issues = append(issues, Issue{
				Type:   IssueLayout,
				ID:     id,
				Offset: in.Offset,
				Message: fmt.Sprintf("instruction %d at %d overlaps the previous one ending at %d",
					id, in.Offset, end),
				Details: map[string]interface{}{"end": end},
			})
		}

		if in.Dead && in.Size != 0 {
			issues = append(issues, Issue{
				Type:    IssueLayout,
				ID:      id,
				Offset:  in.Offset,
				Message: fmt.Sprintf("dead instruction %d occupies %d bytes", id, in.Size),
			})
		}

		end = in.Offset + in.Size
	}

	if end-start != res.CodeSize {
		issues = append(issues, Issue{
			Type:   IssueLayout,
			ID:     lir.Nil,
			Offset: -1,
			Message: fmt.Sprintf("instructions span %d bytes, result reports %d",
				end-start, res.CodeSize),
			Details: map[string]interface{}{
				"start": start,
				"end":   end,
			},
		})
	}

	if res.DataOffset < end {
		issues = append(issues, Issue{
			Type:    IssueLayout,
			ID:      lir.Nil,
			Offset:  -1,
			Message: fmt.Sprintf("data starts at %d inside the code ending at %d", res.DataOffset, end),
		})
	}

	return issues
}

func targetOffset(l *lir.List, in *lir.Inst) (int, bool) {
	switch {
	case in.Target.IsInst():
		return l.At(in.Target.Inst).Offset, true
	case in.Target.IsData():
		return in.Target.Data.Offset(), true
	}
	return 0, false
}

// REACH: every branch-class displacement fits and is what got encoded.
func checkReach(t *isa.ISA, l *lir.List) []Issue {
	var issues []Issue

	for _, id := range l.IDs() {
		in := l.At(id)
		if in.Dead || !in.Fixup.IsBranchClass() {
			continue
		}

		desc := t.Descriptor(in.Op.Base)
		target, ok := targetOffset(l, in)
		if !ok {
			issues = append(issues, Issue{
				Type:    IssueReach,
				ID:      id,
				Offset:  in.Offset,
				Message: fmt.Sprintf("%s at %d has no target", desc.Name, in.Offset),
			})
			continue
		}

		delta := target - desc.Reach.PC(in.Offset)
		details := map[string]interface{}{
			"target": target,
			"delta":  delta,
			"min":    desc.Reach.Min(),
			"max":    desc.Reach.Max(),
		}

		if !desc.Reach.Fits(delta) {
			issues = append(issues, Issue{
				Type:    IssueReach,
				ID:      id,
				Offset:  in.Offset,
				Message: fmt.Sprintf("%s at %d cannot reach %d (delta %d)", desc.Name, in.Offset, target, delta),
				Details: details,
			})
			continue
		}

		want := int32(delta >> desc.Reach.Shift)
		if got := in.Operands[desc.Reach.Operand]; got != want {
			details["encoded"] = got
			issues = append(issues, Issue{
				Type:   IssueReach,
				ID:     id,
				Offset: in.Offset,
				Message: fmt.Sprintf("%s at %d encodes %d, displacement needs %d",
					desc.Name, in.Offset, got, want),
				Details: details,
			})
		}
	}

	return issues
}

// SPLIT: lo | hi<<16 == target - pc(anchor) for every pair of halves.
func checkSplits(t *isa.ISA, l *lir.List) []Issue {
	type halves struct {
		lo, hi   lir.ID
		haveLo   bool
		haveHi   bool
		target   int
		hasTgt   bool
		loValue  uint32
		hiValue  uint32
		pcOffset int
	}

	var issues []Issue
	byAnchor := make(map[lir.ID]*halves)
	var anchors []lir.ID

	for _, id := range l.IDs() {
		in := l.At(id)
		if in.Dead || !in.Fixup.IsSplitHalf() {
			continue
		}

		h, ok := byAnchor[in.Anchor]
		if !ok {
			h = &halves{}
			byAnchor[in.Anchor] = h
			anchors = append(anchors, in.Anchor)
		}

		desc := t.Descriptor(in.Op.Base)
		h.pcOffset = desc.Reach.PC(l.At(in.Anchor).Offset)
		h.target, h.hasTgt = targetOffset(l, in)

		v := uint32(in.Operands[desc.Reach.Operand])
		if in.Fixup == isa.FixupMovImmLow {
			h.lo, h.haveLo, h.loValue = id, true, v
		} else {
			h.hi, h.haveHi, h.hiValue = id, true, v
		}
	}

	for _, anchor := range anchors {
		h := byAnchor[anchor]
		if !h.haveLo || !h.haveHi || !h.hasTgt {
			issues = append(issues, Issue{
				Type:    IssueSplit,
				ID:      anchor,
				Offset:  l.At(anchor).Offset,
				Message: fmt.Sprintf("split immediate anchored on %d is incomplete", anchor),
			})
			continue
		}

		want := uint32(h.target - h.pcOffset)
		got := h.hiValue<<16 | h.loValue
		if got != want {
			issues = append(issues, Issue{
				Type:   IssueSplit,
				ID:     anchor,
				Offset: l.At(anchor).Offset,
				Message: fmt.Sprintf("split immediate anchored on %d holds %#x, displacement is %#x",
					anchor, got, want),
				Details: map[string]interface{}{
					"lo": h.lo,
					"hi": h.hi,
				},
			})
		}
	}

	return issues
}

// IMAGE: the buffer holds the encoding of every instruction, and pool
// references point past the code.
func checkImage(t *isa.ISA, l *lir.List, res *asm.Result) []Issue {
	var issues []Issue

	order := t.ByteOrder()
	start := startOffset(l)

	for _, id := range l.IDs() {
		in := l.At(id)
		if in.Dead || in.Size == 0 {
			continue
		}

		desc := t.Descriptor(in.Op.Base)
		pos := in.Offset - start
		if pos < 0 || pos+in.Size > len(res.Code) {
			issues = append(issues, Issue{
				Type:    IssueImage,
				ID:      id,
				Offset:  in.Offset,
				Message: fmt.Sprintf("%s at %d lies outside the output buffer", desc.Name, in.Offset),
			})
			continue
		}

		want := encoder.Put(nil, encoder.Encode(desc, in.Op, in.Operands), in.Size, order)
		got := res.Code[pos : pos+in.Size]
		if !bytes.Equal(got, want) {
			issues = append(issues, Issue{
				Type:    IssueImage,
				ID:      id,
				Offset:  in.Offset,
				Message: fmt.Sprintf("%s at %d: buffer holds % x, expected % x", desc.Name, in.Offset, got, want),
			})
		}

		if in.Target.IsData() && in.Target.Data.Offset() < res.DataOffset {
			issues = append(issues, Issue{
				Type:   IssueImage,
				ID:     id,
				Offset: in.Offset,
				Message: fmt.Sprintf("%s at %d refers to data at %d before the data area at %d",
					desc.Name, in.Offset, in.Target.Data.Offset(), res.DataOffset),
			})
		}
	}

	return issues
}
