package skim

import (
	"errors"
	"fmt"
)

// ErrCountMismatch is returned by Result.Verify when the count tables disagree.
var ErrCountMismatch = errors.New("classification counts do not add up")

// AnnotationEntry is one kept classification.
type AnnotationEntry struct {
	// ID is "<identity>:<unix seconds>-<subject id>".
	ID string `json:"id" yaml:"id"`

	// Payload is the raw annotation column, unmodified.
	Payload string `json:"-" yaml:"-"`
}

// SubjectCount is one row of the subject summary table.
type SubjectCount struct {
	SubjectID   string `json:"subject_id" yaml:"subject_id"`
	Total       int    `json:"total" yaml:"total"`
	LoggedOn    int    `json:"by_logged_on_users" yaml:"by_logged_on_users"`
	NonLoggedOn int    `json:"by_non_logged_on_users" yaml:"by_non_logged_on_users"`
}

// Result is the output of one skim run. It is not modified after creation.
type Result struct {
	// WorkflowVersion is the "major.minor" version the run kept.
	WorkflowVersion string `json:"workflow_version" yaml:"workflow_version"`

	// Layout is the version of the column layout the export was read with.
	Layout string `json:"layout" yaml:"layout"`

	// Header is the export's header row.
	Header []string `json:"-" yaml:"-"`

	// Annotations are the kept classifications in first-occurrence order.
	Annotations []AnnotationEntry `json:"-" yaml:"-"`

	// Subjects are the per-subject counts sorted by subject id.
	Subjects []SubjectCount `json:"subjects" yaml:"subjects"`

	// Rows is the number of data rows read, kept or filtered.
	Rows int `json:"rows" yaml:"rows"`

	// Filtered is the number of rows dropped for another workflow version.
	Filtered int `json:"filtered" yaml:"filtered"`

	// UniqueLoggedOn is the number of distinct logged-on user names.
	UniqueLoggedOn int `json:"unique_logged_on_users" yaml:"unique_logged_on_users"`

	// UniqueNonLoggedOn is the number of distinct anonymous IP hashes.
	UniqueNonLoggedOn int `json:"unique_non_logged_on_users" yaml:"unique_non_logged_on_users"`

	// TotalLoggedOn is the number of kept classifications by logged-on users.
	TotalLoggedOn int `json:"total_logged_on" yaml:"total_logged_on"`

	// TotalNonLoggedOn is the number of kept classifications by anonymous users.
	TotalNonLoggedOn int `json:"total_non_logged_on" yaml:"total_non_logged_on"`
}

// Total returns the number of classifications summed over subjects.
func (r *Result) Total() int {
	total := 0
	for _, s := range r.Subjects {
		total += s.Total
	}
	return total
}

// NumberOfSubjects returns the number of distinct subjects classified.
func (r *Result) NumberOfSubjects() int {
	return len(r.Subjects)
}

// Verify cross-checks the tables: the subject totals must sum to the number
// of annotations, and every subject total must equal the sum of its
// identity-class counts.
func (r *Result) Verify() error {
	if total := r.Total(); total != len(r.Annotations) {
		return fmt.Errorf("%w: %d by subject, %d annotations", ErrCountMismatch, total, len(r.Annotations))
	}
	for _, s := range r.Subjects {
		if s.LoggedOn+s.NonLoggedOn != s.Total {
			return fmt.Errorf("%w: subject %s has %d + %d != %d",
				ErrCountMismatch, s.SubjectID, s.LoggedOn, s.NonLoggedOn, s.Total)
		}
	}
	if r.TotalLoggedOn+r.TotalNonLoggedOn != len(r.Annotations) {
		return fmt.Errorf("%w: %d + %d identity-class totals, %d annotations",
			ErrCountMismatch, r.TotalLoggedOn, r.TotalNonLoggedOn, len(r.Annotations))
	}
	return nil
}
