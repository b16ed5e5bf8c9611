package model

import (
	"fmt"
	"strconv"
	"strings"
)

// WorkflowSpec identifies one version of a crowd-sourcing workflow.
// Records must match all three parts to be decoded with a given task schema.
type WorkflowSpec struct {
	// ID is the platform's workflow id.
	ID int `json:"id" yaml:"id"`

	// Major is the major part of the "major.minor" workflow version.
	Major int `json:"major" yaml:"major"`

	// Minor is the minor part of the "major.minor" workflow version.
	Minor int `json:"minor" yaml:"minor"`
}

// NewWorkflowSpec builds a WorkflowSpec from an id and a "major.minor" version string.
func NewWorkflowSpec(id int, version string) (WorkflowSpec, error) {
	major, minor, err := ParseVersion(version)
	if err != nil {
		return WorkflowSpec{}, err
	}
	return WorkflowSpec{ID: id, Major: major, Minor: minor}, nil
}

// ParseVersion splits a "major.minor" workflow version into its two integers.
// Anything other than exactly two numeric parts is ErrMalformedRecord.
func ParseVersion(version string) (int, int, error) {
	parts := strings.Split(version, ".")
	if len(parts) != 2 {
		return 0, 0, Malformed("workflow_version", "%q is not major.minor", version)
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, Malformed("workflow_version", "major part of %q is not numeric", version)
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, Malformed("workflow_version", "minor part of %q is not numeric", version)
	}
	return major, minor, nil
}

// Version returns the "major.minor" version string.
func (w WorkflowSpec) Version() string {
	return fmt.Sprintf("%d.%d", w.Major, w.Minor)
}

// String returns the spec as "id (vmajor.minor)".
func (w WorkflowSpec) String() string {
	return fmt.Sprintf("%d (v%d.%d)", w.ID, w.Major, w.Minor)
}

// TaskSchema lists the task ids a workflow answers with.
// A decoder built from a schema is total over that workflow's payloads.
type TaskSchema struct {
	// UnusualTask is the task id of the "is there anything unusual?" question.
	// Empty means the workflow does not ask it.
	UnusualTask string `json:"unusual_task" yaml:"unusual_task" koanf:"unusual_task"`

	// FeatureTask is the task id whose answers are located features.
	FeatureTask string `json:"feature_task" yaml:"feature_task" koanf:"feature_task" validate:"required"`
}

// Task ids used by the MoEDAL NTD workflows.
const (
	// TaskInit is the "anything unusual?" question.
	TaskInit = "init"
	// TaskPits is the pit circling task of the pit workflow.
	TaskPits = "T1"
	// TaskBlobs is the blob marking task of the scan workflow.
	TaskBlobs = "T3"
)

// PitWorkflow is the workflow the classification parser is built for.
var PitWorkflow = WorkflowSpec{ID: 27, Major: 9, Minor: 14}

// Schemas maps supported workflow specs to their task schemas.
type Schemas map[WorkflowSpec]TaskSchema

// DefaultSchemas returns the built-in schema registry.
func DefaultSchemas() Schemas {
	return Schemas{
		PitWorkflow: {UnusualTask: TaskInit, FeatureTask: TaskPits},
	}
}

// Lookup returns the task schema for spec.
func (s Schemas) Lookup(spec WorkflowSpec) (TaskSchema, bool) {
	schema, ok := s[spec]
	return schema, ok
}
