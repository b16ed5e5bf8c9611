package scan

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nao1215/panoskim/internal/classification"
	"github.com/nao1215/panoskim/internal/model"
)

const annotationsFixture = "testdata/annotations.csv"

func blobDecoder() *classification.Decoder {
	return classification.NewDecoder(model.TaskSchema{UnusualTask: model.TaskInit, FeatureTask: model.TaskBlobs})
}

func TestLoad(t *testing.T) {
	t.Parallel()

	s, err := Load(context.Background(), annotationsFixture, "00000_00_00", blobDecoder())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if s.SubjectID() != "00000_00_00" {
		t.Errorf("SubjectID() = %q", s.SubjectID())
	}
	if got := s.NumberOfAnnotations(); got != 5 {
		t.Errorf("NumberOfAnnotations() = %d, want 5", got)
	}
	if diff := cmp.Diff([]int{0, 1, 3, 2, 1}, s.FeatureCounts()); diff != "" {
		t.Errorf("FeatureCounts() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 2, 1, 1}, s.Histogram()); diff != "" {
		t.Errorf("Histogram() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[model.Unusual]int{model.UnusualYes: 5}, s.UnusualCounts()); diff != "" {
		t.Errorf("UnusualCounts() mismatch (-want +got):\n%s", diff)
	}
	if got := len(s.Features()); got != 7 {
		t.Errorf("len(Features()) = %d, want 7", got)
	}
}

func TestScan_WriteFeatureDetails(t *testing.T) {
	t.Parallel()

	s, err := Load(context.Background(), annotationsFixture, "00000_00_00", blobDecoder())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	var buf bytes.Buffer
	if err := s.WriteFeatureDetails(&buf); err != nil {
		t.Fatalf("WriteFeatureDetails() error = %v", err)
	}
	want, err := os.ReadFile("testdata/features_00000_00_00.csv")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(string(want), buf.String()); diff != "" {
		t.Errorf("WriteFeatureDetails() mismatch (-want +got):\n%s", diff)
	}
}

func TestScan_WriteFiles(t *testing.T) {
	t.Parallel()

	s, err := Load(context.Background(), annotationsFixture, "00001_00_00", blobDecoder())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	out := t.TempDir()
	files, err := s.WriteFiles(out)
	if err != nil {
		t.Fatalf("WriteFiles() error = %v", err)
	}
	if files.Histogram != filepath.Join(out, "00001_00_00", "data", HistogramFile) {
		t.Errorf("Histogram path = %q", files.Histogram)
	}

	got, err := os.ReadFile(files.Histogram)
	if err != nil {
		t.Fatal(err)
	}
	want := "features,classifications\n0,1\n1,2\n2,1\n3,1\n"
	if string(got) != want {
		t.Errorf("histogram.csv = %q, want %q", got, want)
	}

	features, err := os.ReadFile(files.Features)
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(string(features), "\n"); lines != 9 {
		t.Errorf("features.csv has %d lines, want 9", lines)
	}
}

func TestLoad_UnknownSubject(t *testing.T) {
	t.Parallel()

	s, err := Load(context.Background(), annotationsFixture, "99999_99_99", blobDecoder())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.NumberOfAnnotations() != 0 || s.Histogram() != nil {
		t.Errorf("scan = %d annotations, histogram %v; want empty", s.NumberOfAnnotations(), s.Histogram())
	}

	var buf bytes.Buffer
	if err := s.WriteHistogram(&buf); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "features,classifications\n" {
		t.Errorf("WriteHistogram() = %q", buf.String())
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := Load(context.Background(), filepath.Join(t.TempDir(), "x.csv"), "a", blobDecoder())
		if !errors.Is(err, model.ErrFileNotFound) {
			t.Errorf("Load() error = %v, want %v", err, model.ErrFileNotFound)
		}
	})

	t.Run("not an annotation id", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "a.csv")
		if err := os.WriteFile(path, []byte("just text\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		_, err := Load(context.Background(), path, "a", blobDecoder())
		if !errors.Is(err, model.ErrMalformedRecord) {
			t.Errorf("Load() error = %v, want %v", err, model.ErrMalformedRecord)
		}
	})

	t.Run("subject outside the output directory", func(t *testing.T) {
		t.Parallel()

		for _, content := range []string{
			`amy:1-../../etc,[]` + "\n",
			`amy:1-a/b,[]` + "\n",
			`amy:1-,[]` + "\n",
		} {
			path := filepath.Join(t.TempDir(), "a.csv")
			if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
				t.Fatal(err)
			}
			_, err := ReadEntries(context.Background(), path)
			if !errors.Is(err, model.ErrMalformedRecord) {
				t.Errorf("ReadEntries(%q) error = %v, want %v", content, err, model.ErrMalformedRecord)
			}
		}
	})

	t.Run("requested subject with a path", func(t *testing.T) {
		t.Parallel()

		for _, subject := range []string{"..", "../x", `a\b`, ""} {
			_, err := Load(context.Background(), annotationsFixture, subject, blobDecoder())
			if !errors.Is(err, model.ErrMalformedRecord) {
				t.Errorf("Load(%q) error = %v, want %v", subject, err, model.ErrMalformedRecord)
			}
		}
	})

	t.Run("bad payload", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "a.csv")
		content := `amy:1-s1,[{"task":"init","value":4}]` + "\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
		_, err := Load(context.Background(), path, "s1", blobDecoder())
		if !errors.Is(err, model.ErrInvalidTaskValue) {
			t.Errorf("Load() error = %v, want %v", err, model.ErrInvalidTaskValue)
		}
	})
}

func TestSubjects(t *testing.T) {
	t.Parallel()

	entries, err := ReadEntries(context.Background(), annotationsFixture)
	if err != nil {
		t.Fatalf("ReadEntries() error = %v", err)
	}
	if len(entries) != 20 {
		t.Errorf("len(entries) = %d, want 20", len(entries))
	}
	want := []string{"00000_00_00", "00001_00_00", "00002_00_00", "00003_00_00"}
	if diff := cmp.Diff(want, Subjects(entries)); diff != "" {
		t.Errorf("Subjects() mismatch (-want +got):\n%s", diff)
	}
}

func TestPseudonymize(t *testing.T) {
	t.Parallel()

	got := Pseudonymize("alice:1459504800-00000_00_00")
	if strings.Contains(got, "alice") {
		t.Errorf("Pseudonymize() = %q still contains the identity", got)
	}
	if !strings.HasSuffix(got, ":1459504800-00000_00_00") {
		t.Errorf("Pseudonymize() = %q lost the timestamp or subject", got)
	}
	if len(got) != pseudonymLength+len(":1459504800-00000_00_00") {
		t.Errorf("Pseudonymize() = %q has unexpected length", got)
	}
	if Pseudonymize("alice:1459504800-00000_00_00") != got {
		t.Error("Pseudonymize() is not deterministic")
	}
	if Pseudonymize("no-identity") != "no-identity" {
		t.Error("Pseudonymize() changed an id without identity")
	}

	s, err := Load(context.Background(), annotationsFixture, "00000_00_00", blobDecoder(), WithAnonymize(true))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	for _, f := range s.Features() {
		if strings.HasPrefix(f.AnnotationID, "bob:") || strings.HasPrefix(f.AnnotationID, "carol:") {
			t.Errorf("feature id %q not pseudonymized", f.AnnotationID)
		}
	}
}
