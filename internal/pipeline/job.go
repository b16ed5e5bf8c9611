package pipeline

import (
	"time"

	"github.com/nao1215/panoskim/internal/report"
	"github.com/nao1215/panoskim/internal/scan"
	"github.com/nao1215/panoskim/internal/skim"
)

// Job carries the inputs of one pipeline execution and accumulates what its
// steps produce. A skim job reads an export; a process job decodes the
// classifications of one subject.
type Job struct {
	// Name identifies the job in logs: the input path or the subject id.
	Name string

	// Input is the export read by a skim job.
	Input string

	// OutDir is the directory outputs are written into.
	OutDir string

	// WorkflowVersion is the "major.minor" version a skim job keeps.
	WorkflowVersion string

	// SubjectID is the subject a process job decodes.
	SubjectID string

	// Result is set by SkimStep.
	Result *skim.Result

	// Elapsed is the wall time of SkimStep.
	Elapsed time.Duration

	// SkimFiles and Summary are set by WriteSkimStep.
	SkimFiles skim.Files
	Summary   *report.Summary

	// RunID is set by HistoryStep.
	RunID string

	// Scan is set by DecodeStep.
	Scan *scan.Scan

	// ScanFiles is set by WriteScanStep.
	ScanFiles scan.Files

	// PerformedSteps lists the steps that ran, in order.
	PerformedSteps []string

	// Error is the error that stopped the job, if any.
	Error error
}

// NewSkimJob creates a job that skims input into outDir keeping workflowVersion.
func NewSkimJob(input, outDir, workflowVersion string) *Job {
	return &Job{
		Name:            input,
		Input:           input,
		OutDir:          outDir,
		WorkflowVersion: workflowVersion,
	}
}

// NewProcessJob creates a job that processes the classifications of subjectID.
func NewProcessJob(subjectID, outDir string) *Job {
	return &Job{
		Name:      subjectID,
		OutDir:    outDir,
		SubjectID: subjectID,
	}
}
