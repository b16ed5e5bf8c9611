// Package skim reduces a raw Panoptes classification export to one
// annotation per (identity, timestamp, subject) and per-subject counts.
//
// The reduction is an explicit fold: an Accumulator receives each
// tokenized row through Add and owns all intermediate state, so single
// rows can be tested without file I/O. Run drives an Accumulator over a
// CSV file and returns the immutable Result.
//
// Output files:
//   - annotations.csv: "<annotation id>,<raw annotation payload>" per kept row,
//     in first-occurrence order
//   - subjects.csv: per-subject totals split by identity class, sorted by id
//
// An annotation id is "<identity>:<unix seconds>-<subject id>", where the
// identity is the user name of a logged-on classifier or the IP hash of an
// anonymous one.
package skim
