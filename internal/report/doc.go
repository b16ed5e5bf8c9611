// Package report provides report generation and output functionality.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - MarkdownWriter: Markdown with a mermaid chart of identity classes
//   - JSONWriter: Structured JSON output for tool integration
//   - YAMLWriter: The summary.yaml written next to every skim output
//
// Every writer renders the same two views: a Summary of one skim run and
// the ScanSummary list of a process run. Writers implement the Writer
// interface, allowing them to be used interchangeably and composed with
// MultiWriter.
package report
