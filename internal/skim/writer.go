package skim

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// Output file names written into the output directory.
const (
	AnnotationsFile = "annotations.csv"
	SubjectsFile    = "subjects.csv"
)

// SubjectsHeader is the header row of subjects.csv.
const SubjectsHeader = "subject_id,total,by_logged_on_users,by_non_logged_on_users"

// Files holds the paths of the written output files.
type Files struct {
	Annotations string `json:"annotations" yaml:"annotations"`
	Subjects    string `json:"subjects" yaml:"subjects"`
}

// WriteAnnotations writes one "<id>,<payload>" line per entry.
func WriteAnnotations(w io.Writer, entries []AnnotationEntry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		if _, err := fmt.Fprintf(bw, "%s,%s\n", e.ID, e.Payload); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteSubjects writes the subject summary table.
func WriteSubjects(w io.Writer, subjects []SubjectCount) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(SubjectsHeader + "\n"); err != nil {
		return err
	}
	for _, s := range subjects {
		line := s.SubjectID + "," +
			strconv.Itoa(s.Total) + "," +
			strconv.Itoa(s.LoggedOn) + "," +
			strconv.Itoa(s.NonLoggedOn) + "\n"
		if _, err := bw.WriteString(line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFiles writes annotations.csv and subjects.csv into dir.
func (r *Result) WriteFiles(dir string) (Files, error) {
	files := Files{
		Annotations: filepath.Join(dir, AnnotationsFile),
		Subjects:    filepath.Join(dir, SubjectsFile),
	}
	if err := WriteFileAtomic(files.Annotations, func(w io.Writer) error {
		return WriteAnnotations(w, r.Annotations)
	}); err != nil {
		return Files{}, err
	}
	if err := WriteFileAtomic(files.Subjects, func(w io.Writer) error {
		return WriteSubjects(w, r.Subjects)
	}); err != nil {
		return Files{}, err
	}
	return files, nil
}

// WriteFileAtomic writes path through a temporary file in the same
// directory that is renamed into place once write succeeds.
// The file is created with owner-only permissions since it holds
// classifier identities.
func WriteFileAtomic(path string, write func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()           //nolint:errcheck // already failing
			_ = os.Remove(tmp.Name()) //nolint:errcheck // best effort cleanup
		}
	}()

	if err = write(tmp); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}
