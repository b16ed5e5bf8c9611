package skim

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nao1215/panoskim/internal/model"
)

// row builds a LayoutV1 row.
func row(user, ip, version, created, subjectData string) []string {
	return []string{
		"1", user, ip, "27", "NTD scan", version, created, "", "", "{}",
		`[{"task":"init","value":1}]`, subjectData, "",
	}
}

const subjectA = `{"5001":{"id":"00000_00_00","filename":"00000_00_00.png"}}`

func TestAccumulator_Add(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator("9.14")

	outcome, err := acc.Add(row("alice", "aa", "9.14", "2016-04-01 12:00:00 UTC", subjectA), 2)
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if outcome != OutcomeKept {
		t.Errorf("Add() outcome = %v, want %v", outcome, OutcomeKept)
	}

	outcome, err = acc.Add(row("", "bb", "9.14", "2016-04-01 12:00:00 UTC", subjectA), 3)
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if outcome != OutcomeKept {
		t.Errorf("Add() outcome = %v, want %v", outcome, OutcomeKept)
	}

	outcome, err = acc.Add(row("alice", "aa", "9.13", "not a time", "{}"), 4)
	if err != nil {
		t.Fatalf("Add() of filtered row error = %v", err)
	}
	if outcome != OutcomeFiltered {
		t.Errorf("Add() outcome = %v, want %v", outcome, OutcomeFiltered)
	}

	got := acc.Result()
	want := &Result{
		WorkflowVersion: "9.14",
		Layout:          "v1",
		Annotations: []AnnotationEntry{
			{ID: "alice:1459512000-00000_00_00", Payload: `[{"task":"init","value":1}]`},
			{ID: "bb:1459512000-00000_00_00", Payload: `[{"task":"init","value":1}]`},
		},
		Subjects:          []SubjectCount{{SubjectID: "00000_00_00", Total: 2, LoggedOn: 1, NonLoggedOn: 1}},
		Rows:              3,
		Filtered:          1,
		UniqueLoggedOn:    1,
		UniqueNonLoggedOn: 1,
		TotalLoggedOn:     1,
		TotalNonLoggedOn:  1,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Result() mismatch (-want +got):\n%s", diff)
	}
	if err := got.Verify(); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestAccumulator_Duplicate(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator("9.14")
	first := row("alice", "aa", "9.14", "2016-04-01 12:00:00 UTC", subjectA)
	if _, err := acc.Add(first, 2); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	// Same identity, time and subject; everything else differs.
	second := row("alice", "other-ip", "9.14", "2016-04-01 12:00:00 UTC",
		`{"9999":{"id":"00000_00_00","filename":"elsewhere.png"}}`)
	second[10] = `[{"task":"init","value":0}]`

	_, err := acc.Add(second, 7)
	if !errors.Is(err, model.ErrDuplicateClassification) {
		t.Fatalf("Add() error = %v, want %v", err, model.ErrDuplicateClassification)
	}
	var re *model.RecordError
	if !errors.As(err, &re) || re.Line != 7 {
		t.Errorf("Add() error = %v, want a RecordError on line 7", err)
	}
	if acc.Len() != 1 {
		t.Errorf("Len() = %d after a failed Add, want 1", acc.Len())
	}
	if err := acc.Result().Verify(); err != nil {
		t.Errorf("Verify() after failed Add error = %v", err)
	}
}

func TestAccumulator_DedupScopedToVersion(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator("9.14")
	for i, version := range []string{"9.13", "9.14"} {
		r := row("alice", "aa", version, "2016-04-01 12:00:00 UTC", subjectA)
		if _, err := acc.Add(r, i+2); err != nil {
			t.Fatalf("Add(%s) error = %v", version, err)
		}
	}
	if acc.Len() != 1 {
		t.Errorf("Len() = %d, want 1", acc.Len())
	}
}

func TestAccumulator_ShortRowOfOtherVersion(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator("9.14")
	outcome, err := acc.Add([]string{"1", "alice", "aa", "27", "NTD", "9.13", "2016-04-01 12:00:00 UTC"}, 2)
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if outcome != OutcomeFiltered {
		t.Errorf("Add() outcome = %v, want %v", outcome, OutcomeFiltered)
	}
	if got := acc.Result(); got.Filtered != 1 || got.Rows != 1 {
		t.Errorf("Rows = %d, Filtered = %d, want 1 and 1", got.Rows, got.Filtered)
	}

	// Too short to carry a workflow version at all.
	if _, err := acc.Add([]string{"1", "alice"}, 3); !errors.Is(err, model.ErrMalformedRecord) {
		t.Errorf("Add() error = %v, want %v", err, model.ErrMalformedRecord)
	}
}

func TestAccumulator_DuplicateErrorHidesIdentity(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator("9.14")
	r := row("alice", "aa", "9.14", "2016-04-01 12:00:00 UTC", subjectA)
	if _, err := acc.Add(r, 2); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	_, err := acc.Add(r, 3)
	if !errors.Is(err, model.ErrDuplicateClassification) {
		t.Fatalf("Add() error = %v, want %v", err, model.ErrDuplicateClassification)
	}
	if msg := err.Error(); strings.Contains(msg, "alice") || !strings.Contains(msg, "00000_00_00") {
		t.Errorf("Add() error = %q, want the subject without the identity", msg)
	}
}

func TestAccumulator_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		row     []string
		wantErr error
	}{
		{
			name:    "short row",
			row:     []string{"1", "alice", "aa", "27", "NTD", "9.14"},
			wantErr: model.ErrMalformedRecord,
		},
		{
			name:    "bad timestamp",
			row:     row("alice", "aa", "9.14", "2016/04/01 12:00", subjectA),
			wantErr: model.ErrMalformedTimestamp,
		},
		{
			name:    "two subjects",
			row:     row("alice", "aa", "9.14", "2016-04-01 12:00:00 UTC", `{"1":{"id":"a"},"2":{"id":"b"}}`),
			wantErr: model.ErrMalformedRecord,
		},
		{
			name:    "no subject",
			row:     row("alice", "aa", "9.14", "2016-04-01 12:00:00 UTC", `{}`),
			wantErr: model.ErrMalformedRecord,
		},
		{
			name:    "subject not JSON",
			row:     row("alice", "aa", "9.14", "2016-04-01 12:00:00 UTC", `{"1":`),
			wantErr: model.ErrMalformedRecord,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			acc := NewAccumulator("9.14")
			_, err := acc.Add(tt.row, 5)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Add() error = %v, want %v", err, tt.wantErr)
			}
			var re *model.RecordError
			if !errors.As(err, &re) || re.Line != 5 {
				t.Errorf("Add() error = %v, want a RecordError on line 5", err)
			}
			if acc.Len() != 0 {
				t.Errorf("Len() = %d, want 0", acc.Len())
			}
		})
	}
}

func TestSubjectID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
		want string
	}{
		{name: "string id", data: `{"5001":{"id":"00000_00_00"}}`, want: "00000_00_00"},
		{name: "numeric id", data: `{"5001":{"id":12345678901}}`, want: "12345678901"},
		{name: "key fallback", data: `{"5001":{"filename":"a.png"}}`, want: "5001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := SubjectID(tt.data)
			if err != nil {
				t.Fatalf("SubjectID() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("SubjectID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	got, err := ParseTimestamp("2016-04-01 12:00:00 UTC")
	if err != nil {
		t.Fatalf("ParseTimestamp() error = %v", err)
	}
	if got != 1459512000 {
		t.Errorf("ParseTimestamp() = %d, want 1459512000", got)
	}

	got, err = ParseTimestamp("2016-04-01 12:00:00 GMT")
	if err != nil {
		t.Fatalf("ParseTimestamp(GMT) error = %v", err)
	}
	if got != 1459512000 {
		t.Errorf("ParseTimestamp(GMT) = %d, want 1459512000", got)
	}

	for _, s := range []string{
		"1459512000",
		"2016-04-01 12:00:00 BST",
		"2016-04-01 12:00:00 XYZ",
	} {
		if _, err := ParseTimestamp(s); !errors.Is(err, model.ErrMalformedTimestamp) {
			t.Errorf("ParseTimestamp(%q) error = %v, want %v", s, err, model.ErrMalformedTimestamp)
		}
	}
}

func TestResult_Verify(t *testing.T) {
	t.Parallel()

	r := &Result{
		Annotations: []AnnotationEntry{{ID: "a"}, {ID: "b"}},
		Subjects:    []SubjectCount{{SubjectID: "s", Total: 2, LoggedOn: 2, NonLoggedOn: 1}},
	}
	if err := r.Verify(); !errors.Is(err, ErrCountMismatch) {
		t.Errorf("Verify() error = %v, want %v", err, ErrCountMismatch)
	}

	r.Subjects[0].Total = 3
	if err := r.Verify(); !errors.Is(err, ErrCountMismatch) {
		t.Errorf("Verify() error = %v, want %v", err, ErrCountMismatch)
	}
}

func TestOutcomeString(t *testing.T) {
	t.Parallel()

	if OutcomeKept.String() != "kept" || OutcomeFiltered.String() != "filtered" || Outcome(9).String() != "unknown" {
		t.Error("unexpected Outcome strings")
	}
}

func TestLayoutMinColumns(t *testing.T) {
	t.Parallel()

	if got := LayoutV1.MinColumns(); got != 12 {
		t.Errorf("MinColumns() = %d, want 12", got)
	}
}
