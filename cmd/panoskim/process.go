package main

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/nao1215/panoskim/internal/classification"
	"github.com/nao1215/panoskim/internal/config"
	"github.com/nao1215/panoskim/internal/metrics"
	"github.com/nao1215/panoskim/internal/pipeline"
	"github.com/nao1215/panoskim/internal/report"
	"github.com/nao1215/panoskim/internal/scan"
	"github.com/spf13/cobra"
)

// errNoSubjects is returned when process is given neither subjects nor --all.
var errNoSubjects = errors.New("no subjects given (list subject ids or use --all)")

// NewProcessCmd creates the process command.
func NewProcessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process <annotations.csv> <outdir> [subject...]",
		Short: "Turn skimmed classifications into per-subject feature tables",
		Long: `Process decodes the skimmed classifications of each requested subject and
writes two tables into <outdir>/<subject>/data:

  features.csv   one row per marked feature (annotation id, x, y, r)
  histogram.csv  number of classifications per feature count

Subjects are processed concurrently (see --batch). The first failing subject
stops the run.

Examples:
  # Process two subjects
  panoskim process out/annotations.csv out 00000_00_00 00001_00_00

  # Process every subject with pseudonymised annotation ids
  panoskim process --all --anonymize out/annotations.csv out`,
		Args: cobra.MinimumNArgs(2),
		RunE: runProcessCmd,
	}

	cmd.Flags().BoolP("all", "a", false, "Process every subject found in the annotations")
	cmd.Flags().String("feature-task", config.DefaultFeatureTask,
		"Task whose answers are read as features")
	cmd.Flags().String("unusual-task", config.DefaultUnusualTask,
		`Task of the "anything unusual?" question (empty to ignore it)`)
	cmd.Flags().Bool("anonymize", false, "Replace classifier identities with digests in the output")
	cmd.Flags().Bool("strict", false, "Validate annotation payloads against the payload schema")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize, "Number of subjects processed concurrently")
	addReportFlags(cmd)

	return cmd
}

// buildProcessConfig creates the process configuration from flags.
func buildProcessConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("feature-task") {
		cfg.FeatureTask, err = cmd.Flags().GetString("feature-task")
		if err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("unusual-task") {
		cfg.UnusualTask, err = cmd.Flags().GetString("unusual-task")
		if err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("strict") {
		cfg.StrictPayloads, err = cmd.Flags().GetBool("strict")
		if err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("batch") {
		cfg.BatchSize, err = cmd.Flags().GetInt("batch")
		if err != nil {
			return nil, err
		}
	}
	cfg.Anonymize, err = cmd.Flags().GetBool("anonymize")
	if err != nil {
		return nil, err
	}
	// process keeps no history
	cfg.SaveToDB = false

	if err := applyReportFlags(cmd, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runProcessCmd executes the process command.
func runProcessCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildProcessConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	all, err := cmd.Flags().GetBool("all")
	if err != nil {
		return err
	}
	input, outDir, requested := args[0], args[1], args[2:]
	if len(requested) == 0 && !all {
		return errNoSubjects
	}

	logger, closeLog, err := setupLogger(cmd, cfg, outDir)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signalContext(cmd)
	defer stop()

	// The annotations are read once and shared read-only by all jobs.
	entries, err := scan.ReadEntries(ctx, input)
	if err != nil {
		return err
	}

	subjects := requested
	if all {
		subjects = scan.Subjects(entries)
	}
	known := scan.Subjects(entries)
	for _, s := range subjects {
		if !slices.Contains(known, s) {
			logger.Warn("subject has no classifications", "subject", s)
		}
	}

	logger.Info("starting process",
		"input", input,
		"out_dir", outDir,
		"subjects", len(subjects),
		"batch_size", cfg.BatchSize,
		"anonymize", cfg.Anonymize,
	)

	decoder := classification.NewDecoder(cfg.ScanSchema(), classification.WithStrict(cfg.StrictPayloads))
	scanOpts := []scan.Option{scan.WithAnonymize(cfg.Anonymize), scan.WithLogger(logger)}
	recorder := metrics.NewRecorder()

	jobs := make([]*pipeline.Job, len(subjects))
	for i, s := range subjects {
		jobs[i] = pipeline.NewProcessJob(s, outDir)
	}

	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			p := pipeline.New(pipeline.WithLogger(logger))
			p.AddSteps(
				pipeline.NewDecodeStep(entries, decoder, scanOpts...),
				pipeline.NewWriteScanStep(),
				pipeline.NewMetricsStep(recorder),
			)
			return p
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	startTime := time.Now()

	// Process with callback for streaming progress
	var mu sync.Mutex
	done := 0
	err = bp.ProcessBatchWithCallback(ctx, jobs, func(job *pipeline.Job, _ int) {
		mu.Lock()
		defer mu.Unlock()
		done++
		fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] Processed subject %s (%d classifications)\n",
			done, len(jobs), job.SubjectID, job.Scan.NumberOfAnnotations())
	})
	if err != nil {
		return err
	}

	logger.Info("process completed", "subjects", len(jobs), "elapsed", time.Since(startTime))

	scans := make([]report.ScanSummary, len(jobs))
	for i, job := range jobs {
		scans[i] = report.NewScanSummary(job.Scan, job.ScanFiles)
	}

	if err := outputReport(cmd, cfg, func(w report.Writer) error {
		_, err := w.WriteScans(scans)
		return err
	}); err != nil {
		return err
	}

	return writeMetrics(cmd, cfg, recorder)
}
