package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/nao1215/panoskim/internal/classification"
	"github.com/nao1215/panoskim/internal/database"
	"github.com/nao1215/panoskim/internal/metrics"
	"github.com/nao1215/panoskim/internal/report"
	"github.com/nao1215/panoskim/internal/scan"
	"github.com/nao1215/panoskim/internal/skim"
)

// ErrMissingInput is returned by a step whose prerequisite step did not run.
var ErrMissingInput = errors.New("step input missing")

// SkimStep reads the job's export and keeps the rows of its workflow version.
type SkimStep struct {
	opts   []skim.Option
	logger *slog.Logger
}

// NewSkimStep creates a skim step. opts are passed to skim.Run.
func NewSkimStep(logger *slog.Logger, opts ...skim.Option) *SkimStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &SkimStep{opts: opts, logger: logger}
}

// Name returns the step name.
func (s *SkimStep) Name() string {
	return "skim"
}

// Do executes the skim step. The tables are cross-checked before the result
// is stored.
func (s *SkimStep) Do(ctx context.Context, job *Job) error {
	start := time.Now()
	opts := append([]skim.Option{skim.WithLogger(s.logger)}, s.opts...)

	result, err := skim.Run(ctx, job.Input, job.WorkflowVersion, opts...)
	if err != nil {
		return err
	}
	if err := result.Verify(); err != nil {
		return err
	}

	job.Result = result
	job.Elapsed = time.Since(start)
	return nil
}

// WriteSkimStep writes annotations.csv and subjects.csv and builds the summary.
type WriteSkimStep struct{}

// NewWriteSkimStep creates a step writing the skim tables.
func NewWriteSkimStep() *WriteSkimStep {
	return &WriteSkimStep{}
}

// Name returns the step name.
func (s *WriteSkimStep) Name() string {
	return "write_tables"
}

// Do executes the write step.
func (s *WriteSkimStep) Do(_ context.Context, job *Job) error {
	if job.Result == nil {
		return fmt.Errorf("%w: %s needs a skim result", ErrMissingInput, s.Name())
	}

	files, err := job.Result.WriteFiles(job.OutDir)
	if err != nil {
		return err
	}
	job.SkimFiles = files
	job.Summary = report.NewSummary(job.Input, job.Result, files)
	return nil
}

// HistoryStep saves the run in the history database.
type HistoryStep struct {
	db *database.HistoryDB
}

// NewHistoryStep creates a step saving runs to db.
func NewHistoryStep(db *database.HistoryDB) *HistoryStep {
	return &HistoryStep{db: db}
}

// Name returns the step name.
func (s *HistoryStep) Name() string {
	return "history"
}

// Do executes the history step.
func (s *HistoryStep) Do(ctx context.Context, job *Job) error {
	if job.Result == nil {
		return fmt.Errorf("%w: %s needs a skim result", ErrMissingInput, s.Name())
	}

	input := job.Input
	if abs, err := filepath.Abs(input); err == nil {
		input = abs
	}

	run := database.RunFromResult(input, job.Result)
	if err := s.db.SaveRun(ctx, run); err != nil {
		return err
	}

	job.RunID = run.ID
	if job.Summary != nil {
		job.Summary.RunID = run.ID
	}
	return nil
}

// SummaryStep writes summary.yaml into the output directory.
type SummaryStep struct{}

// NewSummaryStep creates a step writing summary.yaml.
func NewSummaryStep() *SummaryStep {
	return &SummaryStep{}
}

// Name returns the step name.
func (s *SummaryStep) Name() string {
	return "summary"
}

// Do executes the summary step.
func (s *SummaryStep) Do(_ context.Context, job *Job) error {
	if job.Summary == nil {
		return fmt.Errorf("%w: %s needs the written tables", ErrMissingInput, s.Name())
	}

	path := filepath.Join(job.OutDir, report.SummaryFile)
	return skim.WriteFileAtomic(path, func(w io.Writer) error {
		_, err := report.NewYAMLWriter(w).WriteSummary(job.Summary)
		return err
	})
}

// MetricsStep records whatever the job produced on a metrics Recorder.
type MetricsStep struct {
	recorder *metrics.Recorder
}

// NewMetricsStep creates a step recording on recorder.
func NewMetricsStep(recorder *metrics.Recorder) *MetricsStep {
	return &MetricsStep{recorder: recorder}
}

// Name returns the step name.
func (s *MetricsStep) Name() string {
	return "metrics"
}

// Do executes the metrics step.
func (s *MetricsStep) Do(_ context.Context, job *Job) error {
	if job.Result != nil {
		s.recorder.ObserveSkim(job.Result, job.Elapsed)
	}
	if job.Scan != nil {
		s.recorder.ObserveScan(job.Scan)
	}
	return nil
}

// DecodeStep decodes the classifications of the job's subject from entries
// loaded once for the whole batch.
type DecodeStep struct {
	entries []scan.Entry
	decoder *classification.Decoder
	opts    []scan.Option
}

// NewDecodeStep creates a decode step. entries are only read.
func NewDecodeStep(entries []scan.Entry, decoder *classification.Decoder, opts ...scan.Option) *DecodeStep {
	return &DecodeStep{entries: entries, decoder: decoder, opts: opts}
}

// Name returns the step name.
func (s *DecodeStep) Name() string {
	return "decode"
}

// Do executes the decode step.
func (s *DecodeStep) Do(_ context.Context, job *Job) error {
	sc, err := scan.New(job.SubjectID, s.entries, s.decoder, s.opts...)
	if err != nil {
		return fmt.Errorf("subject %s: %w", job.SubjectID, err)
	}
	job.Scan = sc
	return nil
}

// WriteScanStep writes the feature and histogram tables of the job's subject.
type WriteScanStep struct{}

// NewWriteScanStep creates a step writing the per-subject tables.
func NewWriteScanStep() *WriteScanStep {
	return &WriteScanStep{}
}

// Name returns the step name.
func (s *WriteScanStep) Name() string {
	return "write_subject_tables"
}

// Do executes the write step.
func (s *WriteScanStep) Do(_ context.Context, job *Job) error {
	if job.Scan == nil {
		return fmt.Errorf("%w: %s needs decoded classifications", ErrMissingInput, s.Name())
	}

	files, err := job.Scan.WriteFiles(job.OutDir)
	if err != nil {
		return err
	}
	job.ScanFiles = files
	return nil
}
