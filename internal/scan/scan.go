package scan

import (
	"context"
	"encoding/hex"
	"io"
	"log/slog"
	"strings"

	"github.com/nao1215/panoskim/internal/classification"
	"github.com/nao1215/panoskim/internal/model"
	"golang.org/x/crypto/sha3"
)

// pseudonymLength is the number of hex digits kept from an identity digest.
const pseudonymLength = 16

// FeatureRecord is a feature together with the classification that marked it.
type FeatureRecord struct {
	AnnotationID string `json:"annotation_id"`
	model.Feature
}

// annotation is one decoded classification of the subject.
type annotation struct {
	id         string
	annotation model.Annotation
}

// Scan holds the decoded classifications of one subject.
type Scan struct {
	subjectID   string
	annotations []annotation
}

// Option configures how a Scan is built.
type Option func(*options)

type options struct {
	anonymize bool
	logger    *slog.Logger
}

// WithAnonymize replaces the identity part of every annotation id with a
// SHA3-256 digest prefix.
func WithAnonymize(anonymize bool) Option {
	return func(o *options) {
		o.anonymize = anonymize
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New decodes the entries of subjectID with decoder. Entries of other
// subjects are skipped.
func New(subjectID string, entries []Entry, decoder *classification.Decoder, opts ...Option) (*Scan, error) {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	if !ValidSubjectID(subjectID) {
		return nil, model.Malformed("subject", "%q is not a valid subject id", subjectID)
	}

	s := &Scan{subjectID: subjectID}
	for _, e := range entries {
		if e.Subject() != subjectID {
			continue
		}
		a, err := decoder.Decode(e.Payload)
		if err != nil {
			return nil, &model.RecordError{Field: e.ID, Err: err}
		}
		id := e.ID
		if o.anonymize {
			id = Pseudonymize(id)
		}
		o.logger.Debug("annotation added", "annotation_id", id, "features", a.NumberOfFeatures())
		s.annotations = append(s.annotations, annotation{id: id, annotation: a})
	}
	return s, nil
}

// Load reads path and builds the Scan of subjectID.
func Load(ctx context.Context, path, subjectID string, decoder *classification.Decoder, opts ...Option) (*Scan, error) {
	entries, err := ReadEntries(ctx, path)
	if err != nil {
		return nil, err
	}
	return New(subjectID, entries, decoder, opts...)
}

// Pseudonymize replaces the identity before the last ":" of an annotation
// id with a digest prefix. Ids without an identity part are returned as is.
func Pseudonymize(annotationID string) string {
	i := strings.LastIndex(annotationID, ":")
	if i <= 0 {
		return annotationID
	}
	sum := sha3.Sum256([]byte(annotationID[:i]))
	return hex.EncodeToString(sum[:])[:pseudonymLength] + annotationID[i:]
}

// SubjectID returns the subject the scan was built for.
func (s *Scan) SubjectID() string { return s.subjectID }

// NumberOfAnnotations returns the number of classifications of the subject.
func (s *Scan) NumberOfAnnotations() int { return len(s.annotations) }

// FeatureCounts returns the number of features per classification in file order.
func (s *Scan) FeatureCounts() []int {
	counts := make([]int, len(s.annotations))
	for i, a := range s.annotations {
		counts[i] = a.annotation.NumberOfFeatures()
	}
	return counts
}

// Histogram returns, for n from 0 to the largest feature count, the number
// of classifications that marked n features. It is empty without annotations.
func (s *Scan) Histogram() []int {
	counts := s.FeatureCounts()
	if len(counts) == 0 {
		return nil
	}
	maxCount := 0
	for _, c := range counts {
		maxCount = max(maxCount, c)
	}
	bins := make([]int, maxCount+1)
	for _, c := range counts {
		bins[c]++
	}
	return bins
}

// UnusualCounts returns the number of classifications per unusual answer.
func (s *Scan) UnusualCounts() map[model.Unusual]int {
	counts := make(map[model.Unusual]int)
	for _, a := range s.annotations {
		counts[a.annotation.Unusual]++
	}
	return counts
}

// Features returns every feature in file order.
func (s *Scan) Features() []FeatureRecord {
	var features []FeatureRecord
	for _, a := range s.annotations {
		for _, f := range a.annotation.Features {
			features = append(features, FeatureRecord{AnnotationID: a.id, Feature: f})
		}
	}
	return features
}
