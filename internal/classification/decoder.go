package classification

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/nao1215/panoskim/internal/model"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema/annotations.schema.json
var annotationsSchema []byte

// compiledSchema compiles the embedded annotation schema once.
var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(annotationsSchema))
})

// Values of the "anything unusual?" task.
const (
	unusualAnswerYes = 0
	unusualAnswerNo  = 1
)

// NormalizeBlob turns a CSV-quoted JSON blob into plain JSON: the outer
// quotes are removed, doubled quotes collapse to one and surrounding
// whitespace is trimmed.
func NormalizeBlob(blob string) string {
	s := strings.TrimSpace(blob)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return strings.TrimSpace(strings.ReplaceAll(s, `""`, `"`))
}

// Decoder decodes annotation payloads for one task schema.
type Decoder struct {
	schema model.TaskSchema
	strict bool
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithStrict validates every payload against the annotation JSON schema
// before decoding it.
func WithStrict(strict bool) DecoderOption {
	return func(d *Decoder) {
		d.strict = strict
	}
}

// NewDecoder creates a Decoder for the given task schema.
func NewDecoder(schema model.TaskSchema, opts ...DecoderOption) *Decoder {
	d := &Decoder{schema: schema}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Schema returns the task schema the decoder was built for.
func (d *Decoder) Schema() model.TaskSchema {
	return d.schema
}

// taskAnswer is one entry of the annotation list.
type taskAnswer struct {
	Task  string          `json:"task"`
	Value json.RawMessage `json:"value"`
}

// featureValue is one marked feature. Pointers detect missing coordinates.
type featureValue struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
	R *float64 `json:"r"`
}

// DecodeBlob normalizes a CSV-quoted blob and decodes it.
func (d *Decoder) DecodeBlob(blob string) (model.Annotation, error) {
	return d.Decode(NormalizeBlob(blob))
}

// Decode decodes a plain JSON annotation payload.
// Tasks other than the schema's unusual and feature tasks are ignored.
func (d *Decoder) Decode(payload string) (model.Annotation, error) {
	if d.strict {
		if err := validatePayload(payload); err != nil {
			return model.Annotation{}, err
		}
	}

	var answers []taskAnswer
	if err := json.Unmarshal([]byte(payload), &answers); err != nil {
		return model.Annotation{}, model.Malformed("annotations", "invalid JSON: %v", err)
	}

	annotation := model.Annotation{Unusual: model.UnusualUnknown}
	for _, answer := range answers {
		switch {
		case d.schema.UnusualTask != "" && answer.Task == d.schema.UnusualTask:
			unusual, err := decodeUnusual(answer.Value)
			if err != nil {
				return model.Annotation{}, err
			}
			annotation.Unusual = unusual
		case answer.Task == d.schema.FeatureTask:
			features, err := decodeFeatures(answer.Value)
			if err != nil {
				return model.Annotation{}, err
			}
			annotation.Features = append(annotation.Features, features...)
		}
	}
	return annotation, nil
}

func decodeUnusual(raw json.RawMessage) (model.Unusual, error) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return model.UnusualUnknown, model.Malformed("annotations", "unusual answer: %v", err)
	}
	n, ok := value.(float64)
	if !ok {
		return model.UnusualUnknown, &model.RecordError{
			Field: "annotations",
			Err:   fmt.Errorf("%w: unusual answer %s is not a number", model.ErrInvalidTaskValue, string(raw)),
		}
	}
	switch n {
	case unusualAnswerNo:
		return model.UnusualNo, nil
	case unusualAnswerYes:
		return model.UnusualYes, nil
	default:
		return model.UnusualUnknown, &model.RecordError{
			Field: "annotations",
			Err:   fmt.Errorf("%w: unusual answer %v", model.ErrInvalidTaskValue, n),
		}
	}
}

func decodeFeatures(raw json.RawMessage) ([]model.Feature, error) {
	var values []featureValue
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, model.Malformed("annotations", "feature answer is not a list of points: %v", err)
	}
	if values == nil && strings.TrimSpace(string(raw)) != "[]" {
		return nil, model.Malformed("annotations", "feature answer is %s", string(raw))
	}

	features := make([]model.Feature, 0, len(values))
	for i, v := range values {
		if v.X == nil || v.Y == nil || v.R == nil {
			return nil, model.Malformed("annotations", "feature %d lacks x, y or r", i)
		}
		if *v.R < 0 {
			return nil, model.Malformed("annotations", "feature %d has negative radius %v", i, *v.R)
		}
		features = append(features, model.Feature{X: *v.X, Y: *v.Y, R: *v.R})
	}
	return features, nil
}

// validatePayload checks payload against the embedded annotation schema.
func validatePayload(payload string) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("failed to compile annotation schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewStringLoader(payload))
	if err != nil {
		return model.Malformed("annotations", "invalid JSON: %v", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return model.Malformed("annotations", "schema violation: %s", strings.Join(msgs, "; "))
}
