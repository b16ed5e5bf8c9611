package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/panoskim/internal/config"
	"github.com/nao1215/panoskim/internal/report"
	"github.com/spf13/cobra"
)

// testConfig writes a configuration file into a temporary directory and
// returns its path. Tests pass it with --config so that no user file is read.
func testConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".panoskim")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// executeCommand runs the root command with args and returns stdout and stderr.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// newFlagCmd returns a command carrying the root's persistent flags, parsed from args.
func newFlagCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()

	root := NewRootCmd()
	cmd := &cobra.Command{Use: "probe"}
	addReportFlags(cmd)
	root.AddCommand(cmd)
	if err := root.PersistentFlags().Parse(args); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	return cmd
}

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("reads the explicit config file", func(t *testing.T) {
		t.Parallel()

		path := testConfig(t, "workflow_version: \"9.15\"\nbatch: 2\n")
		cmd := newFlagCmd(t, "--config", path, "--verbose", "--log-json")

		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}
		if cfg.WorkflowVersion != "9.15" {
			t.Errorf("WorkflowVersion = %q, want 9.15", cfg.WorkflowVersion)
		}
		if cfg.BatchSize != 2 {
			t.Errorf("BatchSize = %d, want 2", cfg.BatchSize)
		}
		if !cfg.Verbose || !cfg.LogJSON || cfg.ShowIdentities {
			t.Errorf("persistent flags not applied: %+v", cfg)
		}
	})

	t.Run("missing explicit config file", func(t *testing.T) {
		t.Parallel()

		cmd := newFlagCmd(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
		_, err := buildConfig(cmd)
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("invalid workflow entry", func(t *testing.T) {
		t.Parallel()

		path := testConfig(t, "workflows:\n  - id: 27\n    version: \"9\"\n    feature_task: T1\n")
		cmd := newFlagCmd(t, "--config", path)
		_, err := buildConfig(cmd)
		if !errors.Is(err, config.ErrInvalidWorkflowEntry) {
			t.Errorf("expected ErrInvalidWorkflowEntry, got %v", err)
		}
	})
}

func TestApplyReportFlags(t *testing.T) {
	t.Parallel()

	cmd := newFlagCmd(t)
	if err := cmd.Flags().Parse([]string{"-r", "markdown", "-o", "out/report.md"}); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}

	cfg := config.NewConfig()
	cfg.MetricsFile = "from-config.prom"
	if err := applyReportFlags(cmd, cfg); err != nil {
		t.Fatalf("applyReportFlags() error = %v", err)
	}

	if cfg.ReportFormat != config.ReportMarkdown {
		t.Errorf("ReportFormat = %q, want markdown", cfg.ReportFormat)
	}
	if cfg.ReportFile != "out/report.md" {
		t.Errorf("ReportFile = %q", cfg.ReportFile)
	}
	if cfg.MetricsFile != "from-config.prom" {
		t.Errorf("unset --metrics-file overwrote the configured value: %q", cfg.MetricsFile)
	}
}

func TestSetupLogger(t *testing.T) {
	t.Parallel()

	t.Run("writes the run log into the directory", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "out")
		cmd := newFlagCmd(t)
		var stderr bytes.Buffer
		cmd.SetErr(&stderr)

		logger, closeLog, err := setupLogger(cmd, config.NewConfig(), dir)
		if err != nil {
			t.Fatalf("setupLogger() error = %v", err)
		}
		logger.Info("hello", "user_name", "alice")
		logger.Warn("careful")
		closeLog()

		data, err := os.ReadFile(filepath.Join(dir, "log_probe.log")) //nolint:gosec // test temp file
		if err != nil {
			t.Fatalf("failed to read log file: %v", err)
		}
		if !strings.Contains(string(data), "hello") || !strings.Contains(string(data), "careful") {
			t.Errorf("log file missing records:\n%s", data)
		}
		if strings.Contains(string(data), "alice") {
			t.Errorf("log file reveals identity:\n%s", data)
		}
		if strings.Contains(stderr.String(), "hello") {
			t.Error("info record written to stderr without --verbose")
		}
		if !strings.Contains(stderr.String(), "careful") {
			t.Error("warning not written to stderr")
		}
	})

	t.Run("stderr only", func(t *testing.T) {
		t.Parallel()

		cmd := newFlagCmd(t)
		var stderr bytes.Buffer
		cmd.SetErr(&stderr)

		cfg := config.NewConfig()
		cfg.Verbose = true
		logger, closeLog, err := setupLogger(cmd, cfg, "")
		if err != nil {
			t.Fatalf("setupLogger() error = %v", err)
		}
		defer closeLog()

		logger.Debug("details")
		if !strings.Contains(stderr.String(), "details") {
			t.Error("debug record not written with --verbose")
		}
	})
}

func TestOutputReportToFile(t *testing.T) {
	t.Parallel()

	cmd := newFlagCmd(t)
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)

	cfg := config.NewConfig()
	cfg.ReportFormat = config.ReportJSON
	cfg.ReportFile = filepath.Join(t.TempDir(), "reports", "scans.json")

	err := outputReport(cmd, cfg, func(w report.Writer) error {
		_, err := w.WriteScans(nil)
		return err
	})
	if err != nil {
		t.Fatalf("outputReport() error = %v", err)
	}

	info, err := os.Stat(cfg.ReportFile)
	if err != nil {
		t.Fatalf("report file not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("report file mode = %o, want 600", perm)
	}
	if !strings.Contains(stdout.String(), "Report written to") {
		t.Errorf("expected notice on stdout, got %q", stdout.String())
	}
}
