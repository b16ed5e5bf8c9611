// Package model defines the data structures shared by the skimming and
// decoding stages of panoskim.
//
// This package contains the following main types:
//   - WorkflowSpec: The (id, major, minor) triple identifying a workflow version
//   - TaskSchema: The task ids a supported workflow answers with
//   - Annotation: A decoded classification answer (unusual flag + features)
//   - Feature: A located, sized point of interest in a subject image
//
// It also holds the error taxonomy used by every parsing stage, so that the
// classification, skim, subject and scan packages report failures with the
// same sentinels.
package model
