package classification

import (
	"encoding/json"
	"log/slog"

	"github.com/nao1215/panoskim/internal/model"
)

// Record is one parsed classification. It is immutable once built.
type Record struct {
	userName     string
	userIP       string
	spec         model.WorkflowSpec
	workflowName string
	timestamp    string
	metadata     string
	annotation   model.Annotation
	decoded      bool
	subjectID    string
	filename     string
}

// NewRecord builds a Record from tokenized fields. The annotation blob is
// decoded with decoder; a nil decoder means the record's workflow is not
// supported and the annotation is left undecoded.
func NewRecord(f Fields, decoder *Decoder) (*Record, error) {
	r := &Record{
		userName:     f.UserName,
		userIP:       f.UserIP,
		spec:         f.WorkflowSpec(),
		workflowName: f.WorkflowName,
		timestamp:    f.Timestamp,
		metadata:     f.Metadata,
		annotation:   model.Annotation{Unusual: model.UnusualUnknown},
	}

	if decoder != nil {
		annotation, err := decoder.DecodeBlob(f.Annotations)
		if err != nil {
			return nil, err
		}
		r.annotation = annotation
		r.decoded = true
	}

	id, filename, err := decodeSubject(f.Subject)
	if err != nil {
		return nil, err
	}
	r.subjectID = id
	r.filename = filename

	return r, nil
}

// subjectEntry is the value of the single subject_data entry.
type subjectEntry struct {
	Filename *string `json:"filename"`
}

// decodeSubject reads the subject id and image filename from a subject blob
// of the form {"<id>": {"filename": "<name>", ...}}.
func decodeSubject(blob string) (string, string, error) {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal([]byte(NormalizeBlob(blob)), &entries); err != nil {
		return "", "", model.Malformed("subject_data", "invalid JSON: %v", err)
	}
	if len(entries) != 1 {
		return "", "", model.Malformed("subject_data", "expected 1 subject, found %d", len(entries))
	}

	for id, raw := range entries {
		var entry subjectEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return "", "", model.Malformed("subject_data", "subject %q: %v", id, err)
		}
		if entry.Filename == nil {
			return "", "", model.Malformed("subject_data", "subject %q has no filename", id)
		}
		return id, *entry.Filename, nil
	}
	return "", "", nil
}

// UserName returns the classifier's user name; empty for anonymous users.
func (r *Record) UserName() string { return r.userName }

// UserIP returns the classifier's hashed IP address.
func (r *Record) UserIP() string { return r.userIP }

// LoggedOn reports whether the classifier was logged in.
func (r *Record) LoggedOn() bool { return r.userName != "" }

// Identity returns the user name if present, otherwise the IP hash.
func (r *Record) Identity() string {
	if r.LoggedOn() {
		return r.userName
	}
	return r.userIP
}

// WorkflowSpec returns the record's workflow spec.
func (r *Record) WorkflowSpec() model.WorkflowSpec { return r.spec }

// WorkflowName returns the workflow's display name.
func (r *Record) WorkflowName() string { return r.workflowName }

// Timestamp returns the raw creation timestamp.
func (r *Record) Timestamp() string { return r.timestamp }

// Metadata returns the verbatim metadata blob.
func (r *Record) Metadata() string { return r.metadata }

// Annotation returns the decoded annotation.
func (r *Record) Annotation() model.Annotation {
	a := r.annotation
	a.Features = append([]model.Feature(nil), r.annotation.Features...)
	return a
}

// Unusual returns the "anything unusual?" answer.
func (r *Record) Unusual() model.Unusual { return r.annotation.Unusual }

// NumberOfFeatures returns the number of features identified.
func (r *Record) NumberOfFeatures() int { return r.annotation.NumberOfFeatures() }

// Decoded reports whether the annotation was decoded with a task schema.
func (r *Record) Decoded() bool { return r.decoded }

// SubjectID returns the classified subject's id.
func (r *Record) SubjectID() string { return r.subjectID }

// SubjectFilename returns the classified subject's image filename.
func (r *Record) SubjectFilename() string { return r.filename }

// LogValue implements slog.LogValuer.
func (r *Record) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("user_name", r.userName),
		slog.String("user_ip", r.userIP),
		slog.String("workflow", r.spec.String()),
		slog.String("created_at", r.timestamp),
		slog.String("subject", r.subjectID),
		slog.String("anything_unusual", r.annotation.Unusual.String()),
		slog.Int("features", r.annotation.NumberOfFeatures()),
	)
}
