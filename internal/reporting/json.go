package reporting

import (
	"encoding/json"
	"io"

	"github.com/flowlens/flowlens-cli/internal/diagnose"
)

// JSONReporter writes each report as one pretty-printed JSON document.
type JSONReporter struct {
	writer io.WriteCloser
}

// NewJSONReporter takes ownership of the writer.
func NewJSONReporter(writer io.WriteCloser) *JSONReporter {
	return &JSONReporter{writer: writer}
}

func (r *JSONReporter) WriteAnalysis(report *AnalysisReport) error {
	return r.encode(report)
}

func (r *JSONReporter) WriteDiagnoses(diagnoses []diagnose.Diagnosis) error {
	return r.encode(struct {
		Diagnoses []diagnose.Diagnosis `json:"diagnoses"`
	}{Diagnoses: diagnoses})
}

func (r *JSONReporter) Close() error {
	return r.writer.Close()
}

func (r *JSONReporter) encode(v any) error {
	enc := json.NewEncoder(r.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
