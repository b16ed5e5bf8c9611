package report

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlIndent is the number of spaces per nesting level.
const yamlIndent = 2

// YAMLWriter outputs reports in YAML format. It is the format of summary.yaml.
type YAMLWriter struct {
	baseWriter
}

// NewYAMLWriter creates a YAMLWriter that outputs to the given writer.
func NewYAMLWriter(output io.Writer) *YAMLWriter {
	return &YAMLWriter{
		baseWriter: newBaseWriter(output),
	}
}

// WriteSummary outputs the skim summary as a YAML document.
func (w *YAMLWriter) WriteSummary(summary *Summary) (int, error) {
	return w.writeYAML(summary)
}

// WriteScans outputs the scan summaries as a YAML sequence.
func (w *YAMLWriter) WriteScans(scans []ScanSummary) (int, error) {
	if scans == nil {
		scans = []ScanSummary{}
	}
	return w.writeYAML(scans)
}

func (w *YAMLWriter) writeYAML(v any) (int, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(yamlIndent)
	if err := enc.Encode(v); err != nil {
		return 0, fmt.Errorf("failed to encode YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return 0, fmt.Errorf("failed to encode YAML: %w", err)
	}
	return w.output.Write(buf.Bytes())
}

// ReadSummaryFile reads a summary.yaml written by WriteSummary.
func ReadSummaryFile(path string) (*Summary, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is the user's output directory
	if err != nil {
		return nil, fmt.Errorf("failed to read summary: %w", err)
	}
	var summary Summary
	if err := yaml.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to parse summary %s: %w", path, err)
	}
	return &summary, nil
}
