package skim

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/panoskim/internal/model"
)

// TimestampLayout is the format of the export's created_at column.
const TimestampLayout = "2006-01-02 15:04:05 MST"

// Outcome tells what Add did with a row.
type Outcome int

const (
	// OutcomeKept means the row was added to the annotation table.
	OutcomeKept Outcome = iota
	// OutcomeFiltered means the row belongs to another workflow version.
	OutcomeFiltered
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeKept:
		return "kept"
	case OutcomeFiltered:
		return "filtered"
	default:
		return "unknown"
	}
}

// Option configures an Accumulator or a Run.
type Option func(*settings)

type settings struct {
	layout Layout
	logger *slog.Logger
}

// WithLayout sets the column layout of the export.
func WithLayout(layout Layout) Option {
	return func(s *settings) {
		s.layout = layout
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

func newSettings(opts []Option) settings {
	s := settings{
		layout: LayoutV1,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Accumulator holds the state of one skim. Rows of any workflow version
// other than the one it was created for are filtered before keying, so
// duplicates are detected within that version only.
type Accumulator struct {
	version string
	layout  Layout
	logger  *slog.Logger

	entries []AnnotationEntry
	ids     map[string]struct{}

	subjects    map[string]int
	loggedOn    map[string]int
	nonLoggedOn map[string]int

	loggedOnUsers    map[string]struct{}
	nonLoggedOnUsers map[string]struct{}

	rows     int
	filtered int
}

// NewAccumulator creates an Accumulator keeping rows of workflowVersion.
func NewAccumulator(workflowVersion string, opts ...Option) *Accumulator {
	s := newSettings(opts)
	return &Accumulator{
		version:          workflowVersion,
		layout:           s.layout,
		logger:           s.logger,
		ids:              make(map[string]struct{}),
		subjects:         make(map[string]int),
		loggedOn:         make(map[string]int),
		nonLoggedOn:      make(map[string]int),
		loggedOnUsers:    make(map[string]struct{}),
		nonLoggedOnUsers: make(map[string]struct{}),
	}
}

// Add folds one data row into the accumulator. line is the row's 1-based
// position in the file and is only used in errors. A failed row leaves the
// accumulator unchanged.
func (a *Accumulator) Add(row []string, line int) (Outcome, error) {
	if len(row) <= a.layout.WorkflowVersion {
		return OutcomeFiltered, a.shortRow(row, line)
	}
	if row[a.layout.WorkflowVersion] != a.version {
		a.rows++
		a.filtered++
		return OutcomeFiltered, nil
	}
	if len(row) < a.layout.MinColumns() {
		return OutcomeFiltered, a.shortRow(row, line)
	}

	created := row[a.layout.CreatedAt]
	seconds, err := ParseTimestamp(created)
	if err != nil {
		return OutcomeFiltered, &model.RecordError{Line: line, Field: "created_at", Err: err}
	}

	subjectID, err := SubjectID(row[a.layout.SubjectData])
	if err != nil {
		return OutcomeFiltered, model.AtLine(err, line)
	}

	userName := row[a.layout.UserName]
	loggedOn := userName != ""
	identity := userName
	if !loggedOn {
		identity = row[a.layout.UserIP]
	}

	id := AnnotationID(identity, seconds, subjectID)
	if _, ok := a.ids[id]; ok {
		a.logger.Error("duplicate classification",
			"identity", identity,
			"subject", subjectID,
			"line", line,
		)
		return OutcomeFiltered, &model.RecordError{
			Line:  line,
			Field: "annotation_id",
			Err:   fmt.Errorf("%w: subject %s at %s", model.ErrDuplicateClassification, subjectID, created),
		}
	}

	a.rows++
	a.ids[id] = struct{}{}
	a.entries = append(a.entries, AnnotationEntry{ID: id, Payload: row[a.layout.Annotations]})
	a.subjects[subjectID]++
	if loggedOn {
		a.loggedOn[subjectID]++
		a.loggedOnUsers[identity] = struct{}{}
	} else {
		a.nonLoggedOn[subjectID]++
		a.nonLoggedOnUsers[identity] = struct{}{}
	}

	a.logger.Debug("kept classification", "annotation_id", id, "subject", subjectID)
	return OutcomeKept, nil
}

func (a *Accumulator) shortRow(row []string, line int) error {
	return model.AtLine(
		model.Malformed("row", "%d columns, layout %s needs %d", len(row), a.layout.Version, a.layout.MinColumns()),
		line)
}

// Len returns the number of kept rows.
func (a *Accumulator) Len() int {
	return len(a.entries)
}

// Result builds the summary tables from the current state.
func (a *Accumulator) Result() *Result {
	r := &Result{
		WorkflowVersion:   a.version,
		Layout:            a.layout.Version,
		Annotations:       slices.Clone(a.entries),
		Rows:              a.rows,
		Filtered:          a.filtered,
		UniqueLoggedOn:    len(a.loggedOnUsers),
		UniqueNonLoggedOn: len(a.nonLoggedOnUsers),
	}

	for _, id := range slices.Sorted(maps.Keys(a.subjects)) {
		sc := SubjectCount{
			SubjectID:   id,
			Total:       a.subjects[id],
			LoggedOn:    a.loggedOn[id],
			NonLoggedOn: a.nonLoggedOn[id],
		}
		r.TotalLoggedOn += sc.LoggedOn
		r.TotalNonLoggedOn += sc.NonLoggedOn
		r.Subjects = append(r.Subjects, sc)
	}
	return r
}

// AnnotationID builds "<identity>:<unix seconds>-<subject id>".
func AnnotationID(identity string, seconds int64, subjectID string) string {
	return identity + ":" + strconv.FormatInt(seconds, 10) + "-" + subjectID
}

// utcZones are the zone abbreviations accepted in created_at values.
var utcZones = []string{"UTC", "GMT"}

// ParseTimestamp converts a created_at value to UNIX seconds.
// Only UTC clock times are accepted.
func ParseTimestamp(s string) (int64, error) {
	t, err := time.ParseInLocation(TimestampLayout, s, time.UTC)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", model.ErrMalformedTimestamp, s)
	}
	if zone := s[strings.LastIndexByte(s, ' ')+1:]; !slices.Contains(utcZones, zone) {
		return 0, fmt.Errorf("%w: %q: zone %s is not UTC", model.ErrMalformedTimestamp, s, zone)
	}
	wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
	return wall.Unix(), nil
}

// SubjectID returns the subject id from a subject_data column: the "id" of
// the single entry, or its key when the entry has no id.
func SubjectID(subjectData string) (string, error) {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal([]byte(subjectData), &entries); err != nil {
		return "", model.Malformed("subject_data", "invalid JSON: %v", err)
	}
	if len(entries) != 1 {
		return "", model.Malformed("subject_data", "expected 1 subject, found %d", len(entries))
	}

	for key, raw := range entries {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var entry map[string]any
		if err := dec.Decode(&entry); err != nil {
			return "", model.Malformed("subject_data", "subject %q: %v", key, err)
		}
		switch id := entry["id"].(type) {
		case nil:
			return key, nil
		case string:
			return id, nil
		case json.Number:
			return id.String(), nil
		default:
			return "", model.Malformed("subject_data", "subject %q has id of type %T", key, id)
		}
	}
	return "", nil
}
