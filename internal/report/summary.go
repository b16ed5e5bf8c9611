package report

import (
	"time"

	"github.com/nao1215/panoskim/internal/model"
	"github.com/nao1215/panoskim/internal/scan"
	"github.com/nao1215/panoskim/internal/skim"
)

// SummaryFile is the name of the run summary written next to the skim output.
const SummaryFile = "summary.yaml"

// Summary describes one skim run for display and for summary.yaml.
type Summary struct {
	GeneratedAt       time.Time           `json:"generated_at" yaml:"generated_at"`
	Input             string              `json:"input" yaml:"input"`
	RunID             string              `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	WorkflowVersion   string              `json:"workflow_version" yaml:"workflow_version"`
	Layout            string              `json:"layout" yaml:"layout"`
	Rows              int                 `json:"rows" yaml:"rows"`
	Kept              int                 `json:"kept" yaml:"kept"`
	Filtered          int                 `json:"filtered" yaml:"filtered"`
	UniqueLoggedOn    int                 `json:"unique_logged_on_users" yaml:"unique_logged_on_users"`
	UniqueNonLoggedOn int                 `json:"unique_non_logged_on_users" yaml:"unique_non_logged_on_users"`
	TotalLoggedOn     int                 `json:"total_logged_on" yaml:"total_logged_on"`
	TotalNonLoggedOn  int                 `json:"total_non_logged_on" yaml:"total_non_logged_on"`
	Subjects          []skim.SubjectCount `json:"subjects" yaml:"subjects"`
	Files             skim.Files          `json:"files" yaml:"files"`
}

// NewSummary builds a Summary of result read from input.
func NewSummary(input string, result *skim.Result, files skim.Files) *Summary {
	return &Summary{
		GeneratedAt:       time.Now().UTC(),
		Input:             input,
		WorkflowVersion:   result.WorkflowVersion,
		Layout:            result.Layout,
		Rows:              result.Rows,
		Kept:              len(result.Annotations),
		Filtered:          result.Filtered,
		UniqueLoggedOn:    result.UniqueLoggedOn,
		UniqueNonLoggedOn: result.UniqueNonLoggedOn,
		TotalLoggedOn:     result.TotalLoggedOn,
		TotalNonLoggedOn:  result.TotalNonLoggedOn,
		Subjects:          result.Subjects,
		Files:             files,
	}
}

// UniqueUsers returns the number of distinct identities of both classes.
func (s *Summary) UniqueUsers() int {
	return s.UniqueLoggedOn + s.UniqueNonLoggedOn
}

// NumberOfSubjects returns the number of subjects counted.
func (s *Summary) NumberOfSubjects() int {
	return len(s.Subjects)
}

// HasClassifications reports whether the run kept any classification.
func (s *Summary) HasClassifications() bool {
	return s.Kept > 0
}

// ScanSummary describes the processed classifications of one subject.
type ScanSummary struct {
	SubjectID   string         `json:"subject_id" yaml:"subject_id"`
	Annotations int            `json:"annotations" yaml:"annotations"`
	Features    int            `json:"features" yaml:"features"`
	Histogram   []int          `json:"histogram" yaml:"histogram"`
	Unusual     map[string]int `json:"anything_unusual" yaml:"anything_unusual"`
	Files       scan.Files     `json:"files" yaml:"files"`
}

// NewScanSummary builds a ScanSummary of s.
func NewScanSummary(s *scan.Scan, files scan.Files) ScanSummary {
	unusual := make(map[string]int)
	for answer, n := range s.UnusualCounts() {
		unusual[answer.String()] = n
	}
	features := 0
	for _, n := range s.FeatureCounts() {
		features += n
	}
	return ScanSummary{
		SubjectID:   s.SubjectID(),
		Annotations: s.NumberOfAnnotations(),
		Features:    features,
		Histogram:   s.Histogram(),
		Unusual:     unusual,
		Files:       files,
	}
}

// unusualOrder is the order answers are listed in.
var unusualOrder = []model.Unusual{model.UnusualYes, model.UnusualNo, model.UnusualUnknown}
