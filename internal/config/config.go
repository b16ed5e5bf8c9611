package config

import (
	"path/filepath"
	"slices"

	"github.com/adrg/xdg"
	"github.com/nao1215/panoskim/internal/model"
)

// Default configuration values.
const (
	// DefaultWorkflowID is the id of the MoEDAL NTD workflow.
	DefaultWorkflowID = 27

	// DefaultWorkflowVersion is the workflow version whose rows a skim keeps.
	DefaultWorkflowVersion = "9.14"

	// DefaultFeatureTask is the blob marking task read by process.
	DefaultFeatureTask = model.TaskBlobs

	// DefaultUnusualTask is the "anything unusual?" task read by process.
	DefaultUnusualTask = model.TaskInit

	// DefaultBatchSize is the number of subjects processed concurrently.
	DefaultBatchSize = 4

	// AppName is the application name used for XDG directory paths.
	AppName = "panoskim"
)

// Report formats.
const (
	ReportText     = "text"
	ReportMarkdown = "markdown"
	ReportJSON     = "json"
	ReportYAML     = "yaml"
)

// reportFormats lists the accepted ReportFormat values.
var reportFormats = []string{ReportText, ReportMarkdown, ReportJSON, ReportYAML}

// Config holds all configuration options for panoskim.
// It is populated from defaults, the config file, the environment and CLI
// flags, and passed down explicitly.
type Config struct {
	// Verbose enables debug logging.
	Verbose bool

	// LogJSON switches log output to JSON.
	LogJSON bool

	// ShowIdentities disables masking of user names and IP hashes in logs.
	ShowIdentities bool

	// ConfigFilePath is the explicit path given with --config.
	ConfigFilePath string

	// WorkflowID is the workflow id used by load.
	WorkflowID int

	// WorkflowVersion is the "major.minor" version kept by skim and load.
	WorkflowVersion string

	// Workflows maps supported workflow specs to their task schemas.
	Workflows model.Schemas

	// FeatureTask is the task whose answers process reads as features.
	FeatureTask string

	// UnusualTask is the "anything unusual?" task read by process.
	// Empty means process ignores the question.
	UnusualTask string

	// StrictPayloads validates annotation payloads against the JSON schema.
	StrictPayloads bool

	// ReportFormat is one of the Report* format names.
	ReportFormat string

	// ReportFile is where the report is written. Empty means stdout.
	ReportFile string

	// MetricsFile is a Prometheus textfile written after a run. Empty disables it.
	MetricsFile string

	// BatchSize is the number of subjects process handles concurrently.
	BatchSize int

	// Anonymize replaces identities in process output with digests.
	Anonymize bool

	// DBDir is the directory of the run-history database.
	DBDir string

	// SaveToDB records skim runs in the run-history database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		WorkflowID:      DefaultWorkflowID,
		WorkflowVersion: DefaultWorkflowVersion,
		Workflows:       model.DefaultSchemas(),
		FeatureTask:     DefaultFeatureTask,
		UnusualTask:     DefaultUnusualTask,
		ReportFormat:    ReportText,
		BatchSize:       DefaultBatchSize,
		DBDir:           XDGDataDir(),
		SaveToDB:        true,
	}
}

// WorkflowSpec returns the spec built from WorkflowID and WorkflowVersion.
func (c *Config) WorkflowSpec() (model.WorkflowSpec, error) {
	return model.NewWorkflowSpec(c.WorkflowID, c.WorkflowVersion)
}

// ScanSchema returns the task schema process decodes skimmed payloads with.
func (c *Config) ScanSchema() model.TaskSchema {
	return model.TaskSchema{UnusualTask: c.UnusualTask, FeatureTask: c.FeatureTask}
}

// XDGDataDir returns the XDG data directory for panoskim.
// On Linux: ~/.local/share/panoskim
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for panoskim.
// On Linux: ~/.config/panoskim
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if _, _, err := model.ParseVersion(c.WorkflowVersion); err != nil {
		return ErrInvalidWorkflowVersion
	}
	if c.WorkflowID <= 0 {
		return ErrInvalidWorkflowID
	}
	if c.FeatureTask == "" {
		return ErrEmptyFeatureTask
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if !slices.Contains(reportFormats, c.ReportFormat) {
		return ErrInvalidReportFormat
	}
	if c.SaveToDB && c.DBDir == "" {
		return ErrNoDBDir
	}
	return nil
}
