package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/nao1215/panoskim/internal/model"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".panoskim"

// EnvPrefix is the prefix of environment variables overriding file values.
const EnvPrefix = "PANOSKIM_"

// File is the structure of the .panoskim configuration file.
// Every field is optional; zero values leave the defaults untouched.
type File struct {
	WorkflowID      int    `koanf:"workflow_id" yaml:"workflow_id,omitempty"`
	WorkflowVersion string `koanf:"workflow_version" yaml:"workflow_version,omitempty"`
	FeatureTask     string `koanf:"feature_task" yaml:"feature_task,omitempty"`
	UnusualTask     string `koanf:"unusual_task" yaml:"unusual_task,omitempty"`
	Strict          *bool  `koanf:"strict" yaml:"strict,omitempty"`
	BatchSize       int    `koanf:"batch" yaml:"batch,omitempty"`
	DBDir           string `koanf:"db_dir" yaml:"db_dir,omitempty"`
	MetricsFile     string `koanf:"metrics_file" yaml:"metrics_file,omitempty"`

	// Workflows declares additional supported workflows.
	Workflows []WorkflowEntry `koanf:"workflows" yaml:"workflows,omitempty" validate:"dive"`
}

// WorkflowEntry declares the task schema of one workflow version.
type WorkflowEntry struct {
	ID          int    `koanf:"id" yaml:"id" validate:"required,gt=0"`
	Version     string `koanf:"version" yaml:"version" validate:"required"`
	UnusualTask string `koanf:"unusual_task" yaml:"unusual_task,omitempty"`
	FeatureTask string `koanf:"feature_task" yaml:"feature_task" validate:"required"`
}

// Spec returns the workflow spec of the entry.
func (w WorkflowEntry) Spec() (model.WorkflowSpec, error) {
	return model.NewWorkflowSpec(w.ID, w.Version)
}

// LoadConfigFile loads path, layered with PANOSKIM_* environment variables.
// An empty path loads the environment only. If path does not exist,
// ErrConfigNotFound is returned.
func LoadConfigFile(path string) (*File, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, ErrConfigNotFound
			}
			return nil, err
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	var cf File
	if err := k.UnmarshalWithConf("", &cf, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if err := validator.New().Struct(cf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkflowEntry, err)
	}
	for _, w := range cf.Workflows {
		if _, err := w.Spec(); err != nil {
			return nil, fmt.Errorf("%w: workflow %d: %v", ErrInvalidWorkflowEntry, w.ID, err)
		}
	}

	return &cf, nil
}

// Apply copies the non-zero values of f into c and registers f's workflows.
func (c *Config) Apply(f *File) {
	if f == nil {
		return
	}
	if f.WorkflowID != 0 {
		c.WorkflowID = f.WorkflowID
	}
	if f.WorkflowVersion != "" {
		c.WorkflowVersion = f.WorkflowVersion
	}
	if f.FeatureTask != "" {
		c.FeatureTask = f.FeatureTask
	}
	if f.UnusualTask != "" {
		c.UnusualTask = f.UnusualTask
	}
	if f.Strict != nil {
		c.StrictPayloads = *f.Strict
	}
	if f.BatchSize != 0 {
		c.BatchSize = f.BatchSize
	}
	if f.DBDir != "" {
		c.DBDir = f.DBDir
	}
	if f.MetricsFile != "" {
		c.MetricsFile = f.MetricsFile
	}

	if c.Workflows == nil {
		c.Workflows = model.Schemas{}
	}
	for _, w := range f.Workflows {
		spec, err := w.Spec()
		if err != nil {
			continue
		}
		c.Workflows[spec] = model.TaskSchema{UnusualTask: w.UnusualTask, FeatureTask: w.FeatureTask}
	}
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .panoskim in the current directory
// 3. Look for .panoskim in the user's home directory
// 4. Look for config.yaml in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	candidates := []string{}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}
