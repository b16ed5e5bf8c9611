// Package database provides SQLite-based storage for panoskim.
//
// This package implements the HistoryDB, which stores one row per skim run:
//   - The input export and the workflow version that was kept
//   - Row, kept and filtered counts plus the identity-class totals
//   - The per-subject count table, as JSON
//
// Stored runs can be listed and compared with CompareRuns to see how the
// per-subject counts moved between two exports of the same project.
//
// SQLite is used via modernc.org/sqlite, a CGO-free driver, so the history
// is a single file in the XDG data directory.
package database
