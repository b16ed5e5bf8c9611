package classification

import "errors"

// Tokenizer details; always reported wrapped in model.ErrMalformedRecord.
var (
	errMissingOpenQuote = errors.New("blob does not start with a quote")
	errUnterminatedBlob = errors.New("blob has no closing quote")
)
