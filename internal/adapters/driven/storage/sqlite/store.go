package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/submittal-review/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/submittal-review/internal/core/domain"
	"github.com/custodia-labs/submittal-review/internal/core/ports/driven"
)

// reviewsFile is the review log database name inside the data directory.
const reviewsFile = "reviews.db"

// Ensure Store implements the review log interface.
var _ driven.ReviewLog = (*Store)(nil)

// Store is the SQLite-backed review audit log.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens the review log in dataDir, creating it if needed.
// If dataDir is empty, defaults to ~/.submittal.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".submittal")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, reviewsFile)

	// WAL lets concurrent reviews append while history is read.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_reviews.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback() //nolint:errcheck // already failing
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback() //nolint:errcheck // already failing
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
	}

	return nil
}

// Append records a finished review.
func (s *Store) Append(ctx context.Context, record domain.ReviewRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reviews (id, submittal_type, description, specifications, stage, failed_at,
			verdict, confidence, citations, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, record.ID, record.Request.Type, record.Request.Description, record.Request.Specifications,
		string(record.Stage), nullString(string(record.FailedAt)), nullString(string(record.Verdict)),
		record.Confidence, record.Citations, nullString(record.Error),
		record.StartedAt.UTC(), record.CompletedAt.UTC())
	if err != nil {
		return fmt.Errorf("appending review %s: %w", record.ID, err)
	}
	return nil
}

// List returns the most recent records, newest first.
// A limit of zero or less returns every record.
func (s *Store) List(ctx context.Context, limit int) ([]domain.ReviewRecord, error) {
	query := `
		SELECT id, submittal_type, description, specifications, stage, failed_at,
			verdict, confidence, citations, error, started_at, completed_at
		FROM reviews ORDER BY completed_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing reviews: %w", err)
	}
	defer rows.Close()

	var records []domain.ReviewRecord
	for rows.Next() {
		rec, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing reviews: %w", err)
	}
	return records, nil
}

func scanReview(rows *sql.Rows) (domain.ReviewRecord, error) {
	var rec domain.ReviewRecord
	var stage string
	var failedAt, verdict, errText sql.NullString
	var startedAt, completedAt time.Time

	if err := rows.Scan(&rec.ID, &rec.Request.Type, &rec.Request.Description, &rec.Request.Specifications,
		&stage, &failedAt, &verdict, &rec.Confidence, &rec.Citations, &errText,
		&startedAt, &completedAt); err != nil {
		return rec, fmt.Errorf("scanning review: %w", err)
	}

	rec.Stage = domain.Stage(stage)
	rec.FailedAt = domain.Stage(failedAt.String)
	rec.Verdict = domain.Verdict(verdict.String)
	rec.Error = errText.String
	rec.StartedAt = startedAt
	rec.CompletedAt = completedAt
	return rec, nil
}

// nullString converts an empty string to NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
