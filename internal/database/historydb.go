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

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/pagemirror/internal/model"
)

// FileName is the database file name inside the database directory.
const FileName = "history.db"

var (
	// ErrAmbiguousRunID is returned when a run ID prefix matches several runs.
	ErrAmbiguousRunID = errors.New("run ID prefix matches more than one run")
	// ErrEmptyRunID is returned when a lookup is given an empty run ID.
	ErrEmptyRunID = errors.New("run ID must not be empty")
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02 15:04:05.000000"

// HistoryDB stores mirror runs in SQLite.
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

	// mode=rw refuses to create a missing file, mode=rwc allows it.
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
func (hdb *HistoryDB) Path() string {
	return hdb.dbPath
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	-- One row per mirror run; run_json keeps the full serialized run
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		output_dir TEXT NOT NULL,
		depth INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		file_count INTEGER DEFAULT 0,
		bytes_written INTEGER DEFAULT 0,
		skipped_count INTEGER DEFAULT 0,
		error TEXT,
		run_json TEXT NOT NULL,
		recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_url ON runs(url);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Files written by a run
	CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		bucket TEXT NOT NULL,
		name TEXT NOT NULL,
		path TEXT NOT NULL,
		size INTEGER NOT NULL,
		hash TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_files_run ON files(run_id);
	CREATE INDEX IF NOT EXISTS idx_files_hash ON files(hash);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// RunRecord is the summary of a stored run, without its files.
type RunRecord struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	OutputDir    string    `json:"output_dir"`
	Depth        int       `json:"depth"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	FileCount    int       `json:"file_count"`
	BytesWritten int64     `json:"bytes_written"`
	SkippedCount int       `json:"skipped_count"`
	Error        string    `json:"error,omitempty"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// Failed reports whether the run ended with an error.
func (r RunRecord) Failed() bool {
	return r.Error != ""
}

// SaveRun inserts or replaces a run together with its written files.
func (hdb *HistoryDB) SaveRun(ctx context.Context, run *model.Run) error {
	runJSON, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to serialize run: %w", err)
	}

	skipped := 0
	if run.Result != nil {
		skipped = len(run.Result.Skipped)
	}

	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
	INSERT INTO runs (id, url, output_dir, depth, started_at, finished_at, file_count, bytes_written, skipped_count, error, run_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		finished_at = excluded.finished_at,
		file_count = excluded.file_count,
		bytes_written = excluded.bytes_written,
		skipped_count = excluded.skipped_count,
		error = excluded.error,
		run_json = excluded.run_json,
		recorded_at = CURRENT_TIMESTAMP
	`

	_, err = tx.ExecContext(ctx, query,
		run.ID,
		run.URL,
		run.OutputDir,
		run.Depth,
		formatTimestamp(run.StartedAt),
		formatTimestamp(run.FinishedAt),
		len(run.Files),
		run.BytesWritten(),
		skipped,
		run.ErrorMessage,
		string(runJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("failed to clear run files: %w", err)
	}

	for _, f := range run.Files {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO files (run_id, bucket, name, path, size, hash) VALUES (?, ?, ?, ?, ?, ?)`,
			run.ID, f.Bucket, f.Name, f.Path, f.Size, f.Hash,
		)
		if err != nil {
			return fmt.Errorf("failed to save file %s: %w", f.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

const runColumns = `id, url, output_dir, depth, started_at, finished_at, file_count, bytes_written, skipped_count, error, recorded_at`

// ListRuns returns the most recent runs first. A limit of zero or less
// returns every run. A non-empty pageURL restricts the list to that page.
func (hdb *HistoryDB) ListRuns(ctx context.Context, pageURL string, limit int) ([]RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	args := make([]any, 0)

	if pageURL != "" {
		query += " AND url = ?"
		args = append(args, pageURL)
	}

	query += " ORDER BY started_at DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []RunRecord
	for rows.Next() {
		rec, err := scanRunRecord(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, rec)
	}

	return results, rows.Err()
}

// FindRun returns the run whose ID equals id or starts with it.
// It returns nil, nil when nothing matches, ErrAmbiguousRunID when the
// prefix is shared by several runs and ErrEmptyRunID for an empty id.
func (hdb *HistoryDB) FindRun(ctx context.Context, id string) (*RunRecord, error) {
	if id == "" {
		return nil, ErrEmptyRunID
	}

	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ? OR id LIKE ? ORDER BY id = ? DESC LIMIT 2`

	rows, err := hdb.db.QueryContext(ctx, query, id, stripLikeWildcards(id)+"%", id)
	if err != nil {
		return nil, fmt.Errorf("failed to find run: %w", err)
	}
	defer rows.Close()

	var matches []RunRecord
	for rows.Next() {
		rec, err := scanRunRecord(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch {
	case len(matches) == 0:
		return nil, nil
	case matches[0].ID == id || len(matches) == 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrAmbiguousRunID, id)
	}
}

// GetRun retrieves the full serialized run by its exact ID.
// Page and asset contents are not stored, so Result only carries names.
func (hdb *HistoryDB) GetRun(ctx context.Context, id string) (*model.Run, error) {
	var runJSON string
	err := hdb.db.QueryRowContext(ctx, `SELECT run_json FROM runs WHERE id = ?`, id).Scan(&runJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var run model.Run
	if err := json.Unmarshal([]byte(runJSON), &run); err != nil {
		return nil, fmt.Errorf("failed to parse run: %w", err)
	}
	return &run, nil
}

// ListFiles returns the files written by a run, ordered by bucket and name.
func (hdb *HistoryDB) ListFiles(ctx context.Context, runID string) ([]model.WrittenFile, error) {
	query := `
	SELECT bucket, name, path, size, hash
	FROM files
	WHERE run_id = ?
	ORDER BY bucket, name
	`

	rows, err := hdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	var files []model.WrittenFile
	for rows.Next() {
		var f model.WrittenFile
		var hash sql.NullString
		if err := rows.Scan(&f.Bucket, &f.Name, &f.Path, &f.Size, &hash); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		f.Hash = hash.String
		files = append(files, f)
	}

	return files, rows.Err()
}

// DeleteRun removes a run and its files. Deleting an unknown run is not an error.
func (hdb *HistoryDB) DeleteRun(ctx context.Context, id string) error {
	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete run files: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return tx.Commit()
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRunRecord(row rowScanner) (RunRecord, error) {
	var rec RunRecord
	var startedAt, recordedAt string
	var finishedAt, errMsg sql.NullString

	err := row.Scan(
		&rec.ID,
		&rec.URL,
		&rec.OutputDir,
		&rec.Depth,
		&startedAt,
		&finishedAt,
		&rec.FileCount,
		&rec.BytesWritten,
		&rec.SkippedCount,
		&errMsg,
		&recordedAt,
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("failed to scan run: %w", err)
	}

	rec.StartedAt = parseTimestamp(startedAt)
	rec.FinishedAt = parseTimestamp(finishedAt.String)
	rec.RecordedAt = parseTimestamp(recordedAt)
	rec.Error = errMsg.String
	return rec, nil
}

// stripLikeWildcards drops % and _ so a prefix matches literally.
// Run IDs are UUIDs and never contain either.
func stripLikeWildcards(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' {
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timeLayout,
	"2006-01-02 15:04:05",  // SQLite default datetime format
	"2006-01-02T15:04:05Z", // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",  // ISO 8601 without timezone
	time.RFC3339,
	time.RFC3339Nano,
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
