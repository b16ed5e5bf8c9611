package skim

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/panoskim/internal/model"
)

const exportFixture = "testdata/export.csv"

func TestRun(t *testing.T) {
	t.Parallel()

	result, err := Run(context.Background(), exportFixture, "9.14")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := len(result.Annotations); got != 20 {
		t.Errorf("len(Annotations) = %d, want 20", got)
	}
	if result.Rows != 22 || result.Filtered != 2 {
		t.Errorf("Rows = %d, Filtered = %d, want 22 and 2", result.Rows, result.Filtered)
	}
	if result.NumberOfSubjects() != 4 {
		t.Errorf("NumberOfSubjects() = %d, want 4", result.NumberOfSubjects())
	}
	if result.UniqueLoggedOn != 3 || result.UniqueNonLoggedOn != 3 {
		t.Errorf("unique users = %d + %d, want 3 + 3", result.UniqueLoggedOn, result.UniqueNonLoggedOn)
	}
	if result.TotalLoggedOn != 12 || result.TotalNonLoggedOn != 8 {
		t.Errorf("identity-class totals = %d + %d, want 12 + 8", result.TotalLoggedOn, result.TotalNonLoggedOn)
	}
	if result.Total() != len(result.Annotations) {
		t.Errorf("Total() = %d, want %d", result.Total(), len(result.Annotations))
	}
	if err := result.Verify(); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
	if result.Annotations[0].ID != "alice:1459504800-00000_00_00" {
		t.Errorf("first annotation id = %q", result.Annotations[0].ID)
	}
	if len(result.Header) != 13 || result.Header[1] != "user_name" {
		t.Errorf("Header = %v", result.Header)
	}
}

func TestRun_Golden(t *testing.T) {
	t.Parallel()

	result, err := Run(context.Background(), exportFixture, "9.14")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	dir := t.TempDir()
	files, err := result.WriteFiles(dir)
	if err != nil {
		t.Fatalf("WriteFiles() error = %v", err)
	}

	for _, tc := range []struct {
		got    string
		golden string
	}{
		{got: files.Annotations, golden: "testdata/golden/annotations.csv"},
		{got: files.Subjects, golden: "testdata/golden/subjects.csv"},
	} {
		got, err := os.ReadFile(tc.got)
		if err != nil {
			t.Fatal(err)
		}
		want, err := os.ReadFile(tc.golden)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("%s differs from %s:\ngot:\n%s\nwant:\n%s", filepath.Base(tc.got), tc.golden, got, want)
		}
	}
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := Run(context.Background(), filepath.Join(t.TempDir(), "none.csv"), "9.14")
		if !errors.Is(err, model.ErrFileNotFound) {
			t.Errorf("Run() error = %v, want %v", err, model.ErrFileNotFound)
		}
	})

	t.Run("duplicate", func(t *testing.T) {
		t.Parallel()

		data, err := os.ReadFile(exportFixture)
		if err != nil {
			t.Fatal(err)
		}
		lines := strings.SplitAfter(string(data), "\n")
		// Repeat the first data row at the end of the file.
		input := string(data) + lines[1]

		_, err = Read(context.Background(), strings.NewReader(input), "9.14")
		if !errors.Is(err, model.ErrDuplicateClassification) {
			t.Fatalf("Read() error = %v, want %v", err, model.ErrDuplicateClassification)
		}
		var re *model.RecordError
		if !errors.As(err, &re) || re.Line != len(lines) {
			t.Errorf("Read() error = %v, want a RecordError on line %d", err, len(lines))
		}
	})

	t.Run("broken quoting", func(t *testing.T) {
		t.Parallel()

		input := "h1,h2\n" + `1,alice,"unterminated` + "\n"
		_, err := Read(context.Background(), strings.NewReader(input), "9.14")
		if !errors.Is(err, model.ErrMalformedRecord) {
			t.Errorf("Read() error = %v, want %v", err, model.ErrMalformedRecord)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Run(ctx, exportFixture, "9.14")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want %v", err, context.Canceled)
		}
	})
}

func TestRun_UnescapedQuotes(t *testing.T) {
	t.Parallel()

	const payload = `[{"task":"init","value":1}]`
	input := "classification_id,user_name,user_ip,workflow_id,workflow_name,workflow_version," +
		"created_at,gold_standard,expert,metadata,annotations,subject_data,subject_ids\n" +
		`1,alice,aa,27,NTD "pits",9.14,2016-04-01 12:00:00 UTC,,,{},"[{""task"":""init"",""value"":1}]",` +
		`"{""5001"":{""id"":""00000_00_00""}}",5001` + "\n"

	result, err := Read(context.Background(), strings.NewReader(input), "9.14")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(result.Annotations) != 1 {
		t.Fatalf("len(Annotations) = %d, want 1", len(result.Annotations))
	}
	if got := result.Annotations[0]; got.ID != "alice:1459512000-00000_00_00" || got.Payload != payload {
		t.Errorf("annotation = %+v, want id alice:1459512000-00000_00_00 and payload %s", got, payload)
	}
}

func TestRun_EmptyExport(t *testing.T) {
	t.Parallel()

	result, err := Read(context.Background(), strings.NewReader("a,b,c\n"), "9.14")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(result.Annotations) != 0 || len(result.Subjects) != 0 {
		t.Errorf("result = %+v, want empty", result)
	}
	if err := result.Verify(); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestRun_Logging(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if _, err := Run(context.Background(), exportFixture, "9.14", WithLogger(logger)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"skim finished", "kept=20", "filtered=2", "field=workflow_version"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q", want)
		}
	}
}
