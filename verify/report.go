package verify

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sarchlab/lirasm/asm"
	"github.com/sarchlab/lirasm/isa"
	"github.com/sarchlab/lirasm/lir"
)

// VerificationReport represents a complete verification report
type VerificationReport struct {
	Target       string
	InstCount    int
	Result       *asm.Result
	LintIssues   []Issue
	IssuesByType map[IssueType][]Issue
}

var issueOrder = []IssueType{IssueLayout, IssueReach, IssueSplit, IssueImage}

// GenerateReport runs the lint and groups the issues by type.
func GenerateReport(t *isa.ISA, l *lir.List, res *asm.Result) *VerificationReport {
	report := &VerificationReport{
		Target:       t.Name(),
		InstCount:    l.Len(),
		Result:       res,
		IssuesByType: make(map[IssueType][]Issue),
	}

	report.LintIssues = RunLint(t, l, res)

	for _, issue := range report.LintIssues {
		report.IssuesByType[issue.Type] = append(report.IssuesByType[issue.Type], issue)
	}

	return report
}

// OK reports whether the lint found nothing.
func (r *VerificationReport) OK() bool {
	return len(r.LintIssues) == 0
}

// WriteReport writes a formatted report to a writer
func (r *VerificationReport) WriteReport(w io.Writer) {
	separator := strings.Repeat("=", 60)
	dash := strings.Repeat("-", 60)

	fmt.Fprintln(w, separator)
	fmt.Fprintf(w, "ASSEMBLY VERIFICATION REPORT (%s)\n", r.Target)
	fmt.Fprintln(w, separator)

	fmt.Fprintf(w, "\n✓ Assembled %d instructions\n", r.InstCount)
	fmt.Fprintf(w, "  - code size:   %d bytes\n", r.Result.CodeSize)
	fmt.Fprintf(w, "  - data offset: %d\n", r.Result.DataOffset)
	fmt.Fprintf(w, "  - total size:  %d bytes\n", r.Result.TotalSize)
	fmt.Fprintf(w, "  - attempts:    %d\n", r.Result.Attempts)
	fmt.Fprintf(w, "  - expansions:  %d\n", r.Result.Expansions)

	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "LINT CHECKS")
	fmt.Fprintln(w, separator)

	if r.OK() {
		fmt.Fprintln(w, "✓ No lint issues found!")
	} else {
		fmt.Fprintf(w, "⚠ Found %d lint issues:\n", len(r.LintIssues))

		for _, typ := range issueOrder {
			issues := r.IssuesByType[typ]
			if len(issues) == 0 {
				continue
			}

			fmt.Fprintf(w, "\n%s ISSUES (%d):\n", typ, len(issues))
			fmt.Fprintln(w, dash)
			for _, issue := range issues {
				fmt.Fprintf(w, "  [id=%d off=%d] %s\n", issue.ID, issue.Offset, issue.Message)
				if issue.Details != nil {
					fmt.Fprintf(w, "    Details: %v\n", issue.Details)
				}
			}
		}
	}

	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "VERIFICATION SUMMARY")
	fmt.Fprintln(w, separator)

	counts := make([]string, 0, len(issueOrder))
	for _, typ := range issueOrder {
		counts = append(counts, fmt.Sprintf("%d %s", len(r.IssuesByType[typ]), typ))
	}
	fmt.Fprintf(w, "Lint Result: %d issues detected (%s)\n",
		len(r.LintIssues), strings.Join(counts, ", "))

	if r.OK() {
		fmt.Fprintln(w, "✓ UNIT PASSED ALL CHECKS")
	} else {
		fmt.Fprintln(w, "⚠ ASSEMBLY DEFECTS DETECTED")
	}

	fmt.Fprintln(w)
}

// SaveReportToFile saves the report to a file
func (r *VerificationReport) SaveReportToFile(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	r.WriteReport(file)
	return nil
}
