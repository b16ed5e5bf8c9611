package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/nao1215/panoskim/internal/config"
	"github.com/nao1215/panoskim/internal/log"
	"github.com/nao1215/panoskim/internal/report"
	"github.com/spf13/cobra"
)

// getBoolFlag retrieves a bool flag from the command or the root's persistent flags.
func getBoolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

// getStringFlag retrieves a string flag from the command or the root's persistent flags.
func getStringFlag(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetString(name)
		if err != nil {
			return ""
		}
	}
	return v
}

// buildConfig creates a Config from defaults, the configuration file,
// PANOSKIM_* environment variables and the persistent flags. Command flags
// are applied by the caller.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	cfg.Verbose = getBoolFlag(cmd, "verbose")
	cfg.LogJSON = getBoolFlag(cmd, "log-json")
	cfg.ShowIdentities = getBoolFlag(cmd, "show-identities")
	cfg.ConfigFilePath = getStringFlag(cmd, "config")

	// If user explicitly specified a config file path, error if not found.
	// If no path specified, the environment alone is read.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath == "" && cfg.ConfigFilePath != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	file, err := config.LoadConfigFile(configPath)
	if err != nil {
		if configPath != "" {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		return nil, err
	}
	cfg.Apply(file)

	return cfg, nil
}

// applyReportFlags copies the report flags of cmd into cfg.
func applyReportFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error

	if cmd.Flags().Changed("report") {
		cfg.ReportFormat, err = cmd.Flags().GetString("report")
		if err != nil {
			return err
		}
	}

	cfg.ReportFile, err = cmd.Flags().GetString("report-file")
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("metrics-file") {
		cfg.MetricsFile, err = cmd.Flags().GetString("metrics-file")
		if err != nil {
			return err
		}
	}
	return nil
}

// addReportFlags registers the report flags shared by skim and process.
func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("report", "r", config.ReportText,
		"Report format: text, markdown, json or yaml")
	cmd.Flags().StringP("report-file", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().StringP("metrics-file", "m", "",
		"Write Prometheus metrics of the run to specified textfile")
}

// setupLogger creates the command's logger. Warnings and errors go to the
// command's stderr; when logDir is set, the run is also logged at info level
// to logDir/log_<command>.log. The returned function closes the log file.
func setupLogger(cmd *cobra.Command, cfg *config.Config, logDir string) (*slog.Logger, func(), error) {
	stderr := log.NewHandler(cmd.ErrOrStderr(), log.Options{
		Level:          log.Level(cfg.Verbose, slog.LevelWarn),
		JSON:           cfg.LogJSON,
		ShowIdentities: cfg.ShowIdentities,
	})
	if logDir == "" {
		return slog.New(stderr), func() {}, nil
	}

	if err := os.MkdirAll(logDir, 0750); err != nil {
		return nil, nil, fmt.Errorf("failed to create directory: %w", err)
	}
	path := filepath.Join(logDir, "log_"+cmd.Name()+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600) //nolint:gosec // path is provided by the user
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create log file: %w", err)
	}

	file := log.NewHandler(f, log.Options{
		Level:          log.Level(cfg.Verbose, slog.LevelInfo),
		JSON:           cfg.LogJSON,
		ShowIdentities: cfg.ShowIdentities,
	})
	closeFn := func() {
		_ = f.Close() //nolint:errcheck // log file, nothing left to report to
	}
	return slog.New(log.Tee(stderr, file)), closeFn, nil
}

// signalContext returns a context cancelled on interrupt or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// outputReport writes a report in cfg.ReportFormat to cfg.ReportFile, or to
// the command's stdout when no file is set.
func outputReport(cmd *cobra.Command, cfg *config.Config, write func(report.Writer) error) error {
	var out io.Writer = cmd.OutOrStdout()

	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create report directory: %w", err)
			}
		}
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600) //nolint:gosec // path is provided by the user
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer f.Close() //nolint:errcheck // write errors are returned below
		out = f
	}

	w, err := report.NewWriter(cfg.ReportFormat, out)
	if err != nil {
		return err
	}
	if err := write(w); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if cfg.ReportFile != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", cfg.ReportFile)
	}
	return nil
}
