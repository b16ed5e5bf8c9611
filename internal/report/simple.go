package report

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ruleWidth is the width of the section rules.
const ruleWidth = 70

// SimpleWriter outputs human-readable text reports for terminal display.
// Counts are printed with thousands separators.
type SimpleWriter struct {
	baseWriter

	// verbose adds the written file paths to the output.
	verbose bool

	printer *message.Printer
	title   cases.Caser
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// WithLanguage sets the language used for number formatting.
func WithLanguage(tag language.Tag) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.printer = message.NewPrinter(tag)
		w.title = cases.Title(tag)
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		printer:    message.NewPrinter(language.English),
		title:      cases.Title(language.English),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WriteSummary outputs the skim summary in human-readable format.
func (w *SimpleWriter) WriteSummary(summary *Summary) (int, error) {
	var sb strings.Builder

	w.writeBanner(&sb, "SKIM SUMMARY")
	w.writeRunInfo(&sb, summary)
	w.writeIdentityClasses(&sb, summary)
	w.writeSubjects(&sb, summary)
	if w.verbose {
		sb.WriteString("Output files:\n")
		sb.WriteString(fmt.Sprintf("  %s\n  %s\n\n", summary.Files.Annotations, summary.Files.Subjects))
	}

	return w.output.Write([]byte(sb.String()))
}

// WriteScans outputs the per-subject process results in human-readable format.
func (w *SimpleWriter) WriteScans(scans []ScanSummary) (int, error) {
	var sb strings.Builder

	w.writeBanner(&sb, "PROCESSED SUBJECTS")
	if len(scans) == 0 {
		sb.WriteString("No subjects processed.\n\n")
		return w.output.Write([]byte(sb.String()))
	}

	for _, s := range scans {
		sb.WriteString(fmt.Sprintf("Subject %s\n", s.SubjectID))
		sb.WriteString(strings.Repeat("-", ruleWidth))
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("  Classifications: %s\n", w.count(s.Annotations)))
		sb.WriteString(fmt.Sprintf("  Features:        %s\n", w.count(s.Features)))
		for _, answer := range unusualOrder {
			if n, ok := s.Unusual[answer.String()]; ok {
				sb.WriteString(fmt.Sprintf("  %-17s%s\n", w.title.String(answer.String())+":", w.count(n)))
			}
		}
		if len(s.Histogram) > 0 {
			sb.WriteString("  Histogram (features: classifications)\n")
			for n, c := range s.Histogram {
				sb.WriteString(fmt.Sprintf("    %3d: %s\n", n, w.count(c)))
			}
		}
		if w.verbose {
			sb.WriteString(fmt.Sprintf("  Output: %s, %s\n", s.Files.Features, s.Files.Histogram))
		}
		sb.WriteString("\n")
	}

	return w.output.Write([]byte(sb.String()))
}

// writeBanner writes a ruled, centred title.
func (w *SimpleWriter) writeBanner(sb *strings.Builder, title string) {
	text := "PANOSKIM " + title
	pad := max(0, (ruleWidth-len(text))/2)

	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat(" ", pad) + text + "\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")
}

// writeRunInfo writes the input, version and row counts.
func (w *SimpleWriter) writeRunInfo(sb *strings.Builder, summary *Summary) {
	sb.WriteString(fmt.Sprintf("Input:            %s\n", summary.Input))
	sb.WriteString(fmt.Sprintf("Workflow version: %s (layout %s)\n", summary.WorkflowVersion, summary.Layout))
	if summary.RunID != "" {
		sb.WriteString(fmt.Sprintf("Run ID:           %s\n", summary.RunID))
	}
	sb.WriteString(fmt.Sprintf("Generated:        %s\n", summary.GeneratedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Rows read:        %s\n", w.count(summary.Rows)))
	sb.WriteString(fmt.Sprintf("Kept:             %s\n", w.count(summary.Kept)))
	sb.WriteString(fmt.Sprintf("Filtered:         %s\n", w.count(summary.Filtered)))
	sb.WriteString("\n")
}

// writeIdentityClasses writes the logged-on / anonymous breakdown.
func (w *SimpleWriter) writeIdentityClasses(sb *strings.Builder, summary *Summary) {
	sb.WriteString(fmt.Sprintf("%-18s%12s%18s\n", "Identity class", "Unique", "Classifications"))
	sb.WriteString(fmt.Sprintf("%-18s%12s%18s\n", "Logged on",
		w.count(summary.UniqueLoggedOn), w.count(summary.TotalLoggedOn)))
	sb.WriteString(fmt.Sprintf("%-18s%12s%18s\n", "Not logged on",
		w.count(summary.UniqueNonLoggedOn), w.count(summary.TotalNonLoggedOn)))
	sb.WriteString("\n")
}

// writeSubjects writes the per-subject table.
func (w *SimpleWriter) writeSubjects(sb *strings.Builder, summary *Summary) {
	sb.WriteString(fmt.Sprintf("Subjects (%s)\n", w.count(summary.NumberOfSubjects())))
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")

	if !summary.HasClassifications() {
		sb.WriteString("No classifications kept.\n\n")
		return
	}

	sb.WriteString(fmt.Sprintf("%-24s%10s%14s%18s\n", "Subject", "Total", "Logged on", "Not logged on"))
	for _, s := range summary.Subjects {
		sb.WriteString(fmt.Sprintf("%-24s%10s%14s%18s\n",
			s.SubjectID, w.count(s.Total), w.count(s.LoggedOn), w.count(s.NonLoggedOn)))
	}
	sb.WriteString("\n")
}

// count formats n with the language's digit grouping.
func (w *SimpleWriter) count(n int) string {
	return w.printer.Sprintf("%d", n)
}
