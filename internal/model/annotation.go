package model

// Unusual is the three-state answer to "is there anything unusual?".
// UnusualUnknown means the question was not (yet) answered, which is
// distinct from both answers.
type Unusual int

const (
	// UnusualUnknown indicates the workflow has no unusual task or it was not answered.
	UnusualUnknown Unusual = iota

	// UnusualYes indicates the classifier flagged the subject (task value 0).
	UnusualYes

	// UnusualNo indicates nothing unusual was seen (task value 1).
	UnusualNo
)

// String returns a human-readable representation of the answer.
func (u Unusual) String() string {
	switch u {
	case UnusualYes:
		return "unusual"
	case UnusualNo:
		return "not-unusual"
	default:
		return "undetermined"
	}
}

// Known reports whether the question was answered.
func (u Unusual) Known() bool {
	return u == UnusualYes || u == UnusualNo
}

// MarshalText encodes the answer for JSON and YAML output.
func (u Unusual) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// Feature is a located, sized point of interest in a subject image.
// Coordinates and radius are in image pixels.
type Feature struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	R float64 `json:"r"`
}

// Annotation is the decoded answer set of one classification.
type Annotation struct {
	// Unusual is the "anything unusual?" answer.
	Unusual Unusual `json:"anything_unusual"`

	// Features are the located features in task-answer order.
	Features []Feature `json:"features"`
}

// NumberOfFeatures returns the number of features identified.
func (a Annotation) NumberOfFeatures() int {
	return len(a.Features)
}
