// Package verify provides post-assembly checks for assembled units.
//
// The lint re-derives every layout-dependent value from the final
// instruction list and compares it with what the assembler produced:
//
//   - LAYOUT checks: offsets are non-decreasing, instructions do not
//     overlap, dead instructions occupy no bytes, the code size adds up.
//   - REACH checks: every pc-relative displacement fits its field and the
//     encoded field holds exactly that displacement.
//   - SPLIT checks: the two halves of a split immediate reassemble into the
//     displacement from their anchor to their target.
//   - IMAGE checks: the bytes in the output buffer are the encoding of the
//     instruction at that offset, and pool references point into the data
//     area.
//
// # Usage Example
//
//	res := assembler.Assemble(list, pools)
//	report := verify.GenerateReport(target, list, res)
//	report.WriteReport(os.Stdout)
package verify

import (
	"github.com/sarchlab/lirasm/lir"
)

// IssueType categorizes lint issues
type IssueType string

const (
	IssueLayout IssueType = "LAYOUT" // Overlapping or misordered instructions
	IssueReach  IssueType = "REACH"  // Displacement out of range or mis-encoded
	IssueSplit  IssueType = "SPLIT"  // Split immediate halves do not reassemble
	IssueImage  IssueType = "IMAGE"  // Output bytes disagree with the list
)

// Issue represents a single lint issue
type Issue struct {
	Type    IssueType              // LAYOUT, REACH, SPLIT or IMAGE
	ID      lir.ID                 // Instruction, or lir.Nil
	Offset  int                    // Offset of the instruction (-1 if not applicable)
	Message string                 // Human-readable description
	Details map[string]interface{} // Additional structured data
}
