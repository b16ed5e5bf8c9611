package config

import "errors"

// Configuration validation errors returned by Config.Validate and
// LoadConfigFile. Callers match them with errors.Is.
var (
	// ErrInvalidWorkflowVersion is returned when the workflow version is not "major.minor".
	ErrInvalidWorkflowVersion = errors.New("invalid workflow version: must be major.minor, e.g. 9.14")

	// ErrInvalidWorkflowID is returned when the workflow id is not positive.
	ErrInvalidWorkflowID = errors.New("invalid workflow id: must be positive")

	// ErrEmptyFeatureTask is returned when no feature task is configured.
	ErrEmptyFeatureTask = errors.New("feature task must not be empty")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidReportFormat is returned for an unknown --report value.
	ErrInvalidReportFormat = errors.New("invalid report format: must be text, markdown, json or yaml")

	// ErrNoDBDir is returned when history is enabled without a database directory.
	ErrNoDBDir = errors.New("run history is enabled but no database directory is set")

	// ErrInvalidWorkflowEntry is returned when a workflows entry of the config file is incomplete.
	ErrInvalidWorkflowEntry = errors.New("invalid workflow entry in configuration file")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
