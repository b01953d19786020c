// Package reporting renders analysis and diagnosis results as text or JSON,
// to stdout or a file.
package reporting

import (
	"fmt"
	"io"
	"os"

	"github.com/flowlens/flowlens-cli/api/schemas"
	"github.com/flowlens/flowlens-cli/internal/diagnose"
)

// AnalysisReport bundles everything the analyze pass produces.
type AnalysisReport struct {
	Stats    schemas.FlowStats     `json:"stats"`
	Flows    []schemas.FlowSummary `json:"flows"`
	Patterns schemas.PatternReport `json:"patterns"`
}

// Reporter defines the interface for writing pipeline results to an output.
type Reporter interface {
	// WriteAnalysis renders the correlated flows, their aggregate stats and
	// the detected failure patterns.
	WriteAnalysis(report *AnalysisReport) error
	// WriteDiagnoses renders per-transaction LLM diagnoses.
	WriteDiagnoses(diagnoses []diagnose.Diagnosis) error
	// Close finalizes the report and closes any underlying resources.
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a reporter for the given format. An empty or "stdout" output
// path writes to standard output.
func New(format, outputPath string) (Reporter, error) {
	var writer io.WriteCloser
	isStdOut := outputPath == "" || outputPath == "stdout"

	if isStdOut {
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	switch format {
	case "json":
		return NewJSONReporter(writer), nil
	case "text":
		return NewTextReporter(writer), nil
	default:
		if !isStdOut {
			writer.Close()
		}
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
