package scan

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/nao1215/panoskim/internal/model"
)

// maxLineSize bounds a single skimmed annotation line.
const maxLineSize = 16 * 1024 * 1024

// Entry is one line of a skimmed annotations file.
type Entry struct {
	// ID is the annotation id "<identity>:<unix seconds>-<subject id>".
	ID string
	// Payload is the plain JSON annotation.
	Payload string
}

// Subject returns the subject part of the annotation id.
func (e Entry) Subject() string {
	return SubjectOf(e.ID)
}

// SubjectOf returns the text after the last "-" of an annotation id.
func SubjectOf(annotationID string) string {
	return annotationID[strings.LastIndex(annotationID, "-")+1:]
}

// ValidSubjectID reports whether id can name a subject directory: it must
// be non-empty and free of path separators and "..".
func ValidSubjectID(id string) bool {
	return id != "" && id != "." && !strings.Contains(id, "..") && !strings.ContainsAny(id, `/\`)
}

// ReadEntries reads every line of a skimmed annotations file.
func ReadEntries(ctx context.Context, path string) ([]Entry, error) {
	f, err := os.Open(path) //nolint:gosec // path is provided by the user
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", model.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to open annotations: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var entries []Entry
	for lineNo := 1; scanner.Scan(); lineNo++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		id, payload, ok := strings.Cut(line, ",")
		if !ok || !strings.Contains(id, "-") || !strings.Contains(id, ":") {
			return nil, model.AtLine(model.Malformed("annotation_id", "%q is not an annotation id", id), lineNo)
		}
		if subject := SubjectOf(id); !ValidSubjectID(subject) {
			return nil, model.AtLine(model.Malformed("annotation_id", "subject %q is not a valid subject id", subject), lineNo)
		}
		entries = append(entries, Entry{ID: id, Payload: payload})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read annotations: %w", err)
	}
	return entries, nil
}

// Subjects returns the distinct subject ids of entries in ascending order.
func Subjects(entries []Entry) []string {
	set := make(map[string]struct{})
	for _, e := range entries {
		set[e.Subject()] = struct{}{}
	}
	return slices.Sorted(maps.Keys(set))
}
