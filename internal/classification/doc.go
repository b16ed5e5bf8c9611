// Package classification parses line-per-classification exports of the
// Panoptes crowd-sourcing platform into typed records.
//
// A raw line carries eight fixed leading fields followed by three quoted
// blobs (metadata, annotations, subject data). The blobs are CSV-quoted JSON
// whose content contains unescaped delimiters, so a line is tokenized in two
// phases:
//
//	line     := prefix metadata "," annotations "," subject
//	prefix   := 8 * (field ",")          ; field contains no ','
//	metadata := blob                     ; blob must end with `}"`
//	annotations := blob                  ; blob must end with `]"`
//	subject  := blob                     ; remaining text, trimmed
//	blob     := '"' { not-quote | '""' } '"'
//
// The annotations blob is decoded by a Decoder built from the task schema of
// the record's workflow. Workflows without a registered schema are never
// decoded; Set loading rejects an unsupported target spec before reading.
package classification
