package reporting

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/flowlens/flowlens-cli/internal/diagnose"
)

// TextReporter renders aligned human-readable summaries.
type TextReporter struct {
	writer io.WriteCloser
}

// NewTextReporter takes ownership of the writer.
func NewTextReporter(writer io.WriteCloser) *TextReporter {
	return &TextReporter{writer: writer}
}

func (r *TextReporter) WriteAnalysis(report *AnalysisReport) error {
	var b strings.Builder

	b.WriteString("== Flow Summary ==\n")
	fmt.Fprintf(&b, "Total flows:         %d\n", report.Stats.TotalFlows)
	for _, status := range []string{"success", "failed", "unknown"} {
		if count, ok := report.Stats.StatusCounts[status]; ok {
			fmt.Fprintf(&b, "  %-19s%d\n", status+":", count)
		}
	}
	fmt.Fprintf(&b, "Success rate:        %.1f%%\n", report.Stats.SuccessRate*100)
	fmt.Fprintf(&b, "Avg API calls:       %.1f\n", report.Stats.AvgAPICalls)
	fmt.Fprintf(&b, "Total response size: %d bytes\n", report.Stats.TotalResponseSize)

	if len(report.Flows) > 0 {
		b.WriteString("\n== Flows ==\n")
		tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "FILE\tSTATUS\tCALLS\tSTEPS\tSIZE\tSEQUENCE")
		for _, flow := range report.Flows {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
				flow.FileID, flow.Status, flow.APICalls, flow.StepsCompleted,
				flow.TotalResponseSize, flow.FlowSequence)
		}
		tw.Flush()
	}

	b.WriteString("\n== Failure Patterns ==\n")
	fmt.Fprintf(&b, "Total failures: %d\n", report.Patterns.TotalFailures)
	if len(report.Patterns.Patterns) == 0 {
		b.WriteString("No patterns detected.\n")
	}
	for _, p := range report.Patterns.Patterns {
		fmt.Fprintf(&b, "\n[%s] %s (%s, frequency %d)\n", p.Category, p.Type, p.Severity, p.Frequency)
		fmt.Fprintf(&b, "  %s\n", p.Description)
		if len(p.AffectedFiles) > 0 {
			fmt.Fprintf(&b, "  Affected files: %s\n", strings.Join(p.AffectedFiles, ", "))
		}
		for _, msg := range p.ErrorMessages {
			fmt.Fprintf(&b, "  Error: %s\n", msg)
		}
		fmt.Fprintf(&b, "  Recommendation: %s\n", p.Recommendation)
	}

	_, err := io.WriteString(r.writer, b.String())
	return err
}

func (r *TextReporter) WriteDiagnoses(diagnoses []diagnose.Diagnosis) error {
	var b strings.Builder
	for i, d := range diagnoses {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "== Transaction %s (%d API calls) ==\n", d.FileID, d.CallCount)
		b.WriteString(d.Analysis)
		if !strings.HasSuffix(d.Analysis, "\n") {
			b.WriteString("\n")
		}
	}
	if len(diagnoses) == 0 {
		b.WriteString("No transactions to diagnose.\n")
	}

	_, err := io.WriteString(r.writer, b.String())
	return err
}

func (r *TextReporter) Close() error {
	return r.writer.Close()
}
