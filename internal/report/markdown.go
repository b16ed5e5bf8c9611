package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// WriteSummary outputs the skim summary in Markdown format.
func (w *MarkdownWriter) WriteSummary(summary *Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeIdentityClasses(md, summary)
	w.writeSubjects(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteScans outputs the per-subject process results in Markdown format.
func (w *MarkdownWriter) WriteScans(scans []ScanSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Processed Subjects")
	md.PlainText("")

	if len(scans) == 0 {
		md.Note("No subjects processed.")
		md.PlainText("")
		w.writeFooter(md)
		return len(md.String()), md.Build()
	}

	rows := make([][]string, len(scans))
	for i, s := range scans {
		rows[i] = []string{
			"`" + s.SubjectID + "`",
			strconv.Itoa(s.Annotations),
			strconv.Itoa(s.Features),
			strconv.Itoa(s.Unusual["unusual"]),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Subject", "Classifications", "Features", "Unusual"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, s := range scans {
		if len(s.Histogram) == 0 {
			continue
		}
		hist := make([][]string, len(s.Histogram))
		for n, c := range s.Histogram {
			hist[n] = []string{strconv.Itoa(n), strconv.Itoa(c)}
		}
		md.H3("Histogram of " + s.SubjectID)
		md.PlainText("")
		md.Table(markdown.TableSet{
			Header: []string{"Features", "Classifications"},
			Rows:   hist,
		})
		md.PlainText("")
	}

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// writeHeader writes the title and the run information table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *Summary) {
	md.H1("Skim Summary")
	md.PlainText("")

	rows := [][]string{
		{"Input", "`" + summary.Input + "`"},
		{"Workflow Version", summary.WorkflowVersion},
		{"Layout", summary.Layout},
		{"Generated", summary.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
		{"Rows Read", strconv.Itoa(summary.Rows)},
		{"Kept", strconv.Itoa(summary.Kept)},
		{"Filtered", strconv.Itoa(summary.Filtered)},
	}
	if summary.RunID != "" {
		rows = append(rows, []string{"Run ID", "`" + summary.RunID + "`"})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	if summary.Filtered > 0 {
		md.Importantf("%d row(s) of other workflow versions were filtered out.", summary.Filtered)
		md.PlainText("")
	}
}

// writeIdentityClasses writes the identity-class table and pie chart.
func (w *MarkdownWriter) writeIdentityClasses(md *markdown.Markdown, summary *Summary) {
	md.H2("Identity Classes")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Class", "Unique", "Classifications"},
		Rows: [][]string{
			{"Logged on", strconv.Itoa(summary.UniqueLoggedOn), strconv.Itoa(summary.TotalLoggedOn)},
			{"Not logged on", strconv.Itoa(summary.UniqueNonLoggedOn), strconv.Itoa(summary.TotalNonLoggedOn)},
			{"**Total**", "**" + strconv.Itoa(summary.UniqueUsers()) + "**", "**" + strconv.Itoa(summary.Kept) + "**"},
		},
	})
	md.PlainText("")

	if summary.HasClassifications() {
		w.writePieChart(md, summary)
	}
}

// writePieChart writes a mermaid pie chart of classifications per identity class.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary *Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Classifications by Identity Class"),
		piechart.WithShowData(true),
	)

	if summary.TotalLoggedOn > 0 {
		chart.LabelAndIntValue("Logged on", uint64(summary.TotalLoggedOn))
	}
	if summary.TotalNonLoggedOn > 0 {
		chart.LabelAndIntValue("Not logged on", uint64(summary.TotalNonLoggedOn))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeSubjects writes the per-subject table.
func (w *MarkdownWriter) writeSubjects(md *markdown.Markdown, summary *Summary) {
	md.H2("Subjects")
	md.PlainText("")

	if !summary.HasClassifications() {
		md.Warningf("No classifications of workflow version %s were found.", summary.WorkflowVersion)
		md.PlainText("")
		return
	}

	rows := make([][]string, len(summary.Subjects))
	for i, s := range summary.Subjects {
		rows[i] = []string{
			"`" + s.SubjectID + "`",
			strconv.Itoa(s.Total),
			strconv.Itoa(s.LoggedOn),
			strconv.Itoa(s.NonLoggedOn),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Subject", "Total", "Logged On", "Not Logged On"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [panoskim](https://github.com/nao1215/panoskim)*")
}
