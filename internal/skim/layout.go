package skim

import "slices"

// Layout maps the fields the skim needs to column indices of the raw export.
// A change of the upstream export format needs a new Layout version.
type Layout struct {
	// Version names the export format.
	Version string

	UserName        int
	UserIP          int
	WorkflowVersion int
	CreatedAt       int
	Annotations     int
	SubjectData     int
}

// LayoutV1 is the Panoptes classification export of 2016.
var LayoutV1 = Layout{
	Version:         "v1",
	UserName:        1,
	UserIP:          2,
	WorkflowVersion: 5,
	CreatedAt:       6,
	Annotations:     10,
	SubjectData:     11,
}

// MinColumns returns the number of columns a row needs to be read with this layout.
func (l Layout) MinColumns() int {
	return slices.Max([]int{
		l.UserName,
		l.UserIP,
		l.WorkflowVersion,
		l.CreatedAt,
		l.Annotations,
		l.SubjectData,
	}) + 1
}
