package classification

import (
	"io"
	"log/slog"

	"github.com/nao1215/panoskim/internal/model"
)

// Parser turns raw lines into Records, decoding annotations of supported
// workflows with one cached Decoder per spec.
type Parser struct {
	schemas  model.Schemas
	strict   bool
	logger   *slog.Logger
	decoders map[model.WorkflowSpec]*Decoder
}

// Option configures a Parser.
type Option func(*Parser)

// WithSchemas sets the registry of supported workflows.
func WithSchemas(schemas model.Schemas) Option {
	return func(p *Parser) {
		p.schemas = schemas
	}
}

// WithStrictPayloads enables JSON schema validation of annotation payloads.
func WithStrictPayloads(strict bool) Option {
	return func(p *Parser) {
		p.strict = strict
	}
}

// WithLogger sets the logger for per-record debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		p.logger = logger
	}
}

// NewParser creates a Parser. Without WithSchemas it supports the
// built-in schema registry.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		schemas:  model.DefaultSchemas(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		decoders: make(map[model.WorkflowSpec]*Decoder),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Supports reports whether spec has a registered task schema.
func (p *Parser) Supports(spec model.WorkflowSpec) bool {
	_, ok := p.schemas.Lookup(spec)
	return ok
}

// decoder returns the cached decoder for spec, or nil if spec is unsupported.
func (p *Parser) decoder(spec model.WorkflowSpec) *Decoder {
	if d, ok := p.decoders[spec]; ok {
		return d
	}
	schema, ok := p.schemas.Lookup(spec)
	if !ok {
		return nil
	}
	d := NewDecoder(schema, WithStrict(p.strict))
	p.decoders[spec] = d
	return d
}

// ParseLine splits and decodes one raw line.
func (p *Parser) ParseLine(line string) (*Record, error) {
	fields, err := Split(line)
	if err != nil {
		return nil, err
	}
	record, err := NewRecord(fields, p.decoder(fields.WorkflowSpec()))
	if err != nil {
		return nil, err
	}
	p.logger.Debug("new classification", "record", record)
	return record, nil
}

// ParseLine parses one raw line with a Parser built from opts.
func ParseLine(line string, opts ...Option) (*Record, error) {
	return NewParser(opts...).ParseLine(line)
}
