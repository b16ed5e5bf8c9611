package main

import (
	"fmt"
	"os"

	"github.com/nao1215/panoskim/internal/config"
	"github.com/nao1215/panoskim/internal/database"
	"github.com/nao1215/panoskim/internal/metrics"
	"github.com/nao1215/panoskim/internal/pipeline"
	"github.com/nao1215/panoskim/internal/report"
	"github.com/spf13/cobra"
)

// NewSkimCmd creates the skim command.
func NewSkimCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skim <export.csv> <outdir>",
		Short: "Keep the classifications of one workflow version",
		Long: `Skim reads a raw Panoptes classification export and keeps the rows of
one workflow version. Two tables are written into the output directory:

  annotations.csv  one row per kept classification (annotation id, payload)
  subjects.csv     per-subject totals split by logged-on and anonymous users

A summary.yaml and a run log are written next to them, and the run is
recorded in the history database unless --no-history is given.

Examples:
  # Skim the default workflow version
  panoskim skim moedal-classifications.csv out

  # Skim another version and write a Markdown report
  panoskim skim -w 9.15 -r markdown -o out/report.md moedal-classifications.csv out

  # Export run metrics for the node exporter textfile collector
  panoskim skim -m /var/lib/node_exporter/panoskim.prom moedal-classifications.csv out`,
		Args: cobra.ExactArgs(2),
		RunE: runSkimCmd,
	}

	cmd.Flags().StringP("workflow-version", "w", config.DefaultWorkflowVersion,
		"Workflow version (major.minor) whose classifications are kept")
	cmd.Flags().Bool("no-history", false, "Do not record the run in the history database")
	cmd.Flags().String("db-dir", "", "History database directory (default: XDG data directory)")
	addReportFlags(cmd)

	return cmd
}

// buildSkimConfig creates the skim configuration from flags.
func buildSkimConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("workflow-version") {
		cfg.WorkflowVersion, err = cmd.Flags().GetString("workflow-version")
		if err != nil {
			return nil, err
		}
	}

	noHistory, err := cmd.Flags().GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noHistory

	if err := applyDBDirFlag(cmd, cfg); err != nil {
		return nil, err
	}
	if err := applyReportFlags(cmd, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDBDirFlag overrides the history directory when --db-dir is set.
func applyDBDirFlag(cmd *cobra.Command, cfg *config.Config) error {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}
	return nil
}

// runSkimCmd executes the skim command.
func runSkimCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildSkimConfig(cmd)
	if err != nil {
		return err
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	input, outDir := args[0], args[1]
	if _, err := os.Stat(input); err != nil {
		return fmt.Errorf("cannot read export: %w", err)
	}

	logger, closeLog, err := setupLogger(cmd, cfg, outDir)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signalContext(cmd)
	defer stop()

	logger.Info("starting skim",
		"input", input,
		"out_dir", outDir,
		"workflow_version", cfg.WorkflowVersion,
		"save_to_db", cfg.SaveToDB,
	)

	// Open database connection if saving is enabled
	var db *database.HistoryDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "dir", cfg.DBDir)
	}

	recorder := metrics.NewRecorder()

	p := pipeline.New(pipeline.WithLogger(logger))
	p.AddSteps(
		pipeline.NewSkimStep(logger),
		pipeline.NewWriteSkimStep(),
	)
	if db != nil {
		p.AddStep(pipeline.NewHistoryStep(db))
	}
	p.AddSteps(
		pipeline.NewSummaryStep(),
		pipeline.NewMetricsStep(recorder),
	)

	job := pipeline.NewSkimJob(input, outDir, cfg.WorkflowVersion)
	if err := p.Execute(ctx, job); err != nil {
		logger.Error("skim failed", "input", input, "error", err)
		return err
	}

	logger.Info("skim completed",
		"kept", job.Result.Total(),
		"filtered", job.Result.Filtered,
		"subjects", job.Result.NumberOfSubjects(),
		"elapsed", job.Elapsed,
	)

	if err := outputReport(cmd, cfg, func(w report.Writer) error {
		_, err := w.WriteSummary(job.Summary)
		return err
	}); err != nil {
		return err
	}

	return writeMetrics(cmd, cfg, recorder)
}

// writeMetrics writes the recorder's textfile when a metrics file is configured.
func writeMetrics(cmd *cobra.Command, cfg *config.Config, recorder *metrics.Recorder) error {
	if cfg.MetricsFile == "" {
		return nil
	}
	if err := recorder.WriteTextfile(cfg.MetricsFile); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Metrics written to %s\n", cfg.MetricsFile)
	return nil
}
