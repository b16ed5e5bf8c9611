package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/panoskim/internal/skim"
)

// FileName is the name of the SQLite file inside the database directory.
const FileName = "panoskim.db"

// timestampLayout is the fixed-width UTC layout runs are stored with, so that
// ordering by the text column is chronological.
const timestampLayout = "2006-01-02 15:04:05.000000"

var (
	// ErrRunNotFound is returned when no run matches an id or id prefix.
	ErrRunNotFound = errors.New("skim run not found")
	// ErrAmbiguousRunID is returned when an id prefix matches several runs.
	ErrAmbiguousRunID = errors.New("run id prefix matches more than one run")
)

// HistoryDB stores the summary of every skim run so that runs over different
// exports can be listed and compared later.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Run is one stored skim run.
type Run struct {
	ID                string              `json:"id"`
	Timestamp         time.Time           `json:"timestamp"`
	InputPath         string              `json:"input_path"`
	WorkflowVersion   string              `json:"workflow_version"`
	Layout            string              `json:"layout"`
	Rows              int                 `json:"rows"`
	Kept              int                 `json:"kept"`
	Filtered          int                 `json:"filtered"`
	UniqueLoggedOn    int                 `json:"unique_logged_on_users"`
	UniqueNonLoggedOn int                 `json:"unique_non_logged_on_users"`
	TotalLoggedOn     int                 `json:"total_logged_on"`
	TotalNonLoggedOn  int                 `json:"total_non_logged_on"`
	Subjects          []skim.SubjectCount `json:"subjects,omitempty"`
}

// NumberOfSubjects returns the number of subjects the run counted.
func (r *Run) NumberOfSubjects() int {
	return len(r.Subjects)
}

// RunFromResult builds a Run from a finished skim result. ID and Timestamp
// are assigned by SaveRun.
func RunFromResult(inputPath string, result *skim.Result) *Run {
	return &Run{
		InputPath:         inputPath,
		WorkflowVersion:   result.WorkflowVersion,
		Layout:            result.Layout,
		Rows:              result.Rows,
		Kept:              len(result.Annotations),
		Filtered:          result.Filtered,
		UniqueLoggedOn:    result.UniqueLoggedOn,
		UniqueNonLoggedOn: result.UniqueNonLoggedOn,
		TotalLoggedOn:     result.TotalLoggedOn,
		TotalNonLoggedOn:  result.TotalNonLoggedOn,
		Subjects:          append([]skim.SubjectCount(nil), result.Subjects...),
	}
}

// Open opens or creates a HistoryDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (h *HistoryDB) createTables() error {
	schema := `
	-- One row per skim run
	CREATE TABLE IF NOT EXISTS skim_runs (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		input_path TEXT NOT NULL,
		workflow_version TEXT NOT NULL,
		layout TEXT NOT NULL,
		rows_read INTEGER NOT NULL,
		kept INTEGER NOT NULL,
		filtered INTEGER NOT NULL,
		unique_logged_on INTEGER NOT NULL,
		unique_non_logged_on INTEGER NOT NULL,
		total_logged_on INTEGER NOT NULL,
		total_non_logged_on INTEGER NOT NULL,
		subjects TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_skim_runs_timestamp ON skim_runs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_skim_runs_version ON skim_runs(workflow_version);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun stores a run. A missing ID is generated and a zero Timestamp is
// set to the current time; both are written back into run.
func (h *HistoryDB) SaveRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now()
	}
	run.Timestamp = run.Timestamp.UTC()

	subjects, err := json.Marshal(run.Subjects)
	if err != nil {
		return fmt.Errorf("failed to marshal subject counts: %w", err)
	}

	query := `
	INSERT INTO skim_runs (
		id, timestamp, input_path, workflow_version, layout,
		rows_read, kept, filtered,
		unique_logged_on, unique_non_logged_on, total_logged_on, total_non_logged_on,
		subjects
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = h.db.ExecContext(ctx, query,
		run.ID, run.Timestamp.Format(timestampLayout), run.InputPath, run.WorkflowVersion, run.Layout,
		run.Rows, run.Kept, run.Filtered,
		run.UniqueLoggedOn, run.UniqueNonLoggedOn, run.TotalLoggedOn, run.TotalNonLoggedOn,
		string(subjects),
	)
	if err != nil {
		return fmt.Errorf("failed to save skim run: %w", err)
	}
	return nil
}

const runColumns = `id, timestamp, input_path, workflow_version, layout,
	rows_read, kept, filtered,
	unique_logged_on, unique_non_logged_on, total_logged_on, total_non_logged_on,
	subjects`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner, withSubjects bool) (*Run, error) {
	var (
		run       Run
		timestamp string
		subjects  string
	)
	err := s.Scan(
		&run.ID, &timestamp, &run.InputPath, &run.WorkflowVersion, &run.Layout,
		&run.Rows, &run.Kept, &run.Filtered,
		&run.UniqueLoggedOn, &run.UniqueNonLoggedOn, &run.TotalLoggedOn, &run.TotalNonLoggedOn,
		&subjects,
	)
	if err != nil {
		return nil, err
	}
	run.Timestamp = parseTimestamp(timestamp)

	if withSubjects {
		if err := json.Unmarshal([]byte(subjects), &run.Subjects); err != nil {
			return nil, fmt.Errorf("failed to unmarshal subject counts of run %s: %w", run.ID, err)
		}
	}
	return &run, nil
}

// GetRun returns the run with the given id, including its subject counts.
// Returns nil, nil when no run has that id.
func (h *HistoryDB) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM skim_runs WHERE id = ?`

	run, err := scanRun(h.db.QueryRowContext(ctx, query, id), true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get skim run: %w", err)
	}
	return run, nil
}

// ListRuns returns stored runs, newest first, without subject counts.
// A limit of 0 or less returns every run.
func (h *HistoryDB) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM skim_runs ORDER BY timestamp DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list skim runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows, false)
		if err != nil {
			return nil, fmt.Errorf("failed to scan skim run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating skim runs: %w", err)
	}
	return runs, nil
}

// ResolveRunID expands an id prefix, as printed by the history listing, to
// the full id of exactly one run.
func (h *HistoryDB) ResolveRunID(ctx context.Context, prefix string) (string, error) {
	if prefix == "" {
		return "", ErrRunNotFound
	}

	rows, err := h.db.QueryContext(ctx,
		`SELECT id FROM skim_runs WHERE substr(id, 1, ?) = ? LIMIT 2`, len(prefix), prefix)
	if err != nil {
		return "", fmt.Errorf("failed to resolve run id: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("failed to scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("error iterating run ids: %w", err)
	}

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, prefix)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguousRunID, prefix)
	}
}

// DeleteRunsBefore removes runs older than cutoff and returns how many were removed.
func (h *HistoryDB) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := h.db.ExecContext(ctx,
		`DELETE FROM skim_runs WHERE timestamp < ?`, cutoff.UTC().Format(timestampLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old skim runs: %w", err)
	}
	return result.RowsAffected()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",  // SQLite default datetime format, fractions accepted
	"2006-01-02T15:04:05Z", // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",  // ISO 8601 without timezone
	time.RFC3339,
	time.RFC3339Nano,
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
