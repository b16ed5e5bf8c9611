package classification

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

// maxLineSize bounds a single classification line.
const maxLineSize = 16 * 1024 * 1024

// Set is the read-only collection of classifications of one workflow spec
// loaded from a line-per-classification export.
type Set struct {
	header  string
	target  model.WorkflowSpec
	records []*Record
	counts  map[string]int
	skipped int
}

// LoadSet reads path and keeps the records whose workflow spec equals target.
// The first line is the header. Any malformed row aborts the load.
func LoadSet(ctx context.Context, path string, target model.WorkflowSpec, opts ...Option) (*Set, error) {
	f, err := os.Open(path) //nolint:gosec // path is provided by the user
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", model.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to open classifications: %w", err)
	}
	defer f.Close()

	parser := NewParser(opts...)
	if !parser.Supports(target) {
		return nil, fmt.Errorf("%w: %s", model.ErrUnsupportedWorkflow, target)
	}

	s := &Set{
		target: target,
		counts: make(map[string]int),
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line := scanner.Text()
		if lineNo == 1 {
			s.header = strings.TrimRight(line, "\r")
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		record, err := parser.ParseLine(line)
		if err != nil {
			return nil, model.AtLine(err, lineNo)
		}
		if record.WorkflowSpec() != target {
			s.skipped++
			continue
		}
		s.records = append(s.records, record)
		s.counts[record.SubjectID()]++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read classifications: %w", err)
	}

	return s, nil
}

// Header returns the verbatim header line.
func (s *Set) Header() string { return s.header }

// Target returns the workflow spec the set was filtered to.
func (s *Set) Target() model.WorkflowSpec { return s.target }

// Len returns the number of classifications in the set.
func (s *Set) Len() int { return len(s.records) }

// Skipped returns the number of well-formed rows dropped for another workflow spec.
func (s *Set) Skipped() int { return s.skipped }

// Records returns the records in file order.
func (s *Set) Records() []*Record { return slices.Clone(s.records) }

// SubjectCounts returns the number of classifications per subject id.
func (s *Set) SubjectCounts() map[string]int { return maps.Clone(s.counts) }

// NumberOfSubjects returns the number of distinct subjects classified.
func (s *Set) NumberOfSubjects() int { return len(s.counts) }

// SubjectIDs returns the classified subject ids in ascending order.
func (s *Set) SubjectIDs() []string {
	return slices.Sorted(maps.Keys(s.counts))
}

// UnusualCounts returns the number of classifications per unusual answer.
func (s *Set) UnusualCounts() map[model.Unusual]int {
	counts := make(map[model.Unusual]int)
	for _, r := range s.records {
		counts[r.Unusual()]++
	}
	return counts
}

// NumberOfFeatures returns the total number of features across the set.
func (s *Set) NumberOfFeatures() int {
	n := 0
	for _, r := range s.records {
		n += r.NumberOfFeatures()
	}
	return n
}
