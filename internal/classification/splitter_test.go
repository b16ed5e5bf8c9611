package classification

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nao1215/panoskim/internal/model"
)

const aliceLine = `alice,9f86d081884c7d659a2feaa0c55ad015,27,NTD pits,9.14,2016-04-01 12:00:00 UTC,,,` +
	`"{""session"":""s1"",""agent"":""Mozilla/5.0 (X11, Linux)""}",` +
	`"[{""task"":""init"",""value"":1},{""task"":""T1"",""value"":[{""x"":10.0,""y"":20.0,""r"":3.5}]}]",` +
	`"{""00001_00_00"":{""filename"":""00001_00_00.png""}}"`

func TestSplit(t *testing.T) {
	t.Parallel()

	got, err := Split(aliceLine + "\r\n")
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}

	want := Fields{
		UserName:     "alice",
		UserIP:       "9f86d081884c7d659a2feaa0c55ad015",
		WorkflowID:   27,
		WorkflowName: "NTD pits",
		VersionMajor: 9,
		VersionMinor: 14,
		Timestamp:    "2016-04-01 12:00:00 UTC",
		Metadata:     `"{""session"":""s1"",""agent"":""Mozilla/5.0 (X11, Linux)""}"`,
		Annotations:  `"[{""task"":""init"",""value"":1},{""task"":""T1"",""value"":[{""x"":10.0,""y"":20.0,""r"":3.5}]}]"`,
		Subject:      `"{""00001_00_00"":{""filename"":""00001_00_00.png""}}"`,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Split() mismatch (-want +got):\n%s", diff)
	}
	if got.WorkflowSpec() != model.PitWorkflow {
		t.Errorf("WorkflowSpec() = %v, want %v", got.WorkflowSpec(), model.PitWorkflow)
	}
}

func TestSplit_RoundTrip(t *testing.T) {
	t.Parallel()

	first, err := Split(aliceLine)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	joined := first.Join()
	if joined != aliceLine {
		t.Errorf("Join() = %q, want %q", joined, aliceLine)
	}
	second, err := Split(joined)
	if err != nil {
		t.Fatalf("Split(Join()) error = %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("round trip mismatch (-first +second):\n%s", diff)
	}
}

func TestSplit_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		line  string
		field string
	}{
		{
			name:  "too few fields",
			line:  "alice,abc,27",
			field: "workflow_id",
		},
		{
			name:  "non numeric workflow id",
			line:  `alice,abc,pits,NTD,9.14,2016-04-01 12:00:00 UTC,,,"{}","[]","{}"`,
			field: "workflow_id",
		},
		{
			name:  "version with three parts",
			line:  `alice,abc,27,NTD,9.14.1,2016-04-01 12:00:00 UTC,,,"{}","[]","{}"`,
			field: "workflow_version",
		},
		{
			name:  "metadata without opening quote",
			line:  `alice,abc,27,NTD,9.14,2016-04-01 12:00:00 UTC,,,{},"[]","{}"`,
			field: "metadata",
		},
		{
			name:  "unterminated metadata",
			line:  `alice,abc,27,NTD,9.14,2016-04-01 12:00:00 UTC,,,"{""a"":1}`,
			field: "metadata",
		},
		{
			name:  "annotation with wrong closing marker",
			line:  `alice,abc,27,NTD,9.14,2016-04-01 12:00:00 UTC,,,"{}","{}","{}"`,
			field: "annotations",
		},
		{
			name:  "no delimiter after annotations",
			line:  `alice,abc,27,NTD,9.14,2016-04-01 12:00:00 UTC,,,"{}","[]"`,
			field: "annotations",
		},
		{
			name:  "missing subject",
			line:  `alice,abc,27,NTD,9.14,2016-04-01 12:00:00 UTC,,,"{}","[]",  `,
			field: "subject_data",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Split(tt.line)
			if !errors.Is(err, model.ErrMalformedRecord) {
				t.Fatalf("Split() error = %v, want %v", err, model.ErrMalformedRecord)
			}
			var re *model.RecordError
			if !errors.As(err, &re) {
				t.Fatalf("Split() error type = %T, want *model.RecordError", err)
			}
			if re.Field != tt.field {
				t.Errorf("RecordError.Field = %q, want %q", re.Field, tt.field)
			}
		})
	}
}

func TestScanQuoted(t *testing.T) {
	t.Parallel()

	span, rest, err := scanQuoted(`"a,""b"",c",tail`)
	if err != nil {
		t.Fatalf("scanQuoted() error = %v", err)
	}
	if span != `"a,""b"",c"` {
		t.Errorf("span = %q", span)
	}
	if rest != ",tail" {
		t.Errorf("rest = %q", rest)
	}
}
