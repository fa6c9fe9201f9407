package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/submittal-review/internal/core/domain"
	"github.com/custodia-labs/submittal-review/internal/core/ports/driven"
	"github.com/custodia-labs/submittal-review/internal/logger"
)

// indexFile is the database file inside each fingerprint directory.
const indexFile = "index.db"

// indexSchema creates the tables of a fingerprint database.
// Rows in chunks and vectors share position, which is the insertion order.
const indexSchema = `
CREATE TABLE meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE chunks (
	position    INTEGER PRIMARY KEY,
	id          TEXT NOT NULL,
	document_id TEXT NOT NULL,
	page        INTEGER NOT NULL,
	sequence    INTEGER NOT NULL,
	text        TEXT NOT NULL
);
CREATE TABLE vectors (
	position INTEGER PRIMARY KEY,
	vector   BLOB NOT NULL
);
`

// Meta keys.
const (
	metaFingerprint = "fingerprint"
	metaModel       = "model"
	metaDimension   = "dimension"
	metaDocuments   = "documents"
	metaBuiltAt     = "built_at"
	metaCount       = "count"
)

// Ensure IndexStore implements the interface.
var _ driven.IndexStore = (*IndexStore)(nil)

// IndexStore persists each index in its own SQLite database at
// <dir>/<fingerprint>/index.db. A snapshot is written into a temporary
// directory and renamed into place, so a fingerprint directory only
// ever holds a complete index.
type IndexStore struct {
	dir string
}

// NewIndexStore creates an index store rooted at dir.
func NewIndexStore(dir string) *IndexStore {
	return &IndexStore{dir: dir}
}

// Dir returns the cache root.
func (s *IndexStore) Dir() string {
	return s.dir
}

func (s *IndexStore) path(fingerprint string) string {
	return filepath.Join(s.dir, fingerprint, indexFile)
}

// Exists reports whether a complete index is stored under fingerprint.
func (s *IndexStore) Exists(_ context.Context, fingerprint string) (bool, error) {
	_, err := os.Stat(s.path(fingerprint))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("checking index: %w", err)
}

// Save writes the snapshot under its fingerprint. An existing index
// is kept and nothing is written.
func (s *IndexStore) Save(ctx context.Context, snapshot *domain.IndexSnapshot) error {
	if err := snapshot.Validate(); err != nil {
		return err
	}

	exists, err := s.Exists(ctx, snapshot.Fingerprint)
	if err != nil || exists {
		return err
	}

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	tmp := filepath.Join(s.dir, ".build-"+uuid.NewString())
	if err := os.Mkdir(tmp, 0700); err != nil {
		return fmt.Errorf("creating build directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := writeIndex(ctx, filepath.Join(tmp, indexFile), snapshot); err != nil {
		return err
	}

	target := filepath.Join(s.dir, snapshot.Fingerprint)
	if err := os.Rename(tmp, target); err != nil {
		// Another writer finished the same fingerprint first.
		if exists, _ := s.Exists(ctx, snapshot.Fingerprint); exists {
			logger.Debug("index %s already saved by another build", short(snapshot.Fingerprint))
			return nil
		}
		return fmt.Errorf("moving index into place: %w", err)
	}

	logger.Debug("saved index %s (%d records)", short(snapshot.Fingerprint), len(snapshot.Records))
	return nil
}

// Delete removes the index stored under fingerprint, if any.
func (s *IndexStore) Delete(_ context.Context, fingerprint string) error {
	if fingerprint == "" {
		return nil
	}
	if err := os.RemoveAll(filepath.Join(s.dir, fingerprint)); err != nil {
		return fmt.Errorf("deleting index: %w", err)
	}
	return nil
}

// Load reads the index stored under fingerprint.
func (s *IndexStore) Load(ctx context.Context, fingerprint string) (*domain.IndexSnapshot, error) {
	path := s.path(fingerprint)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("checking index: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=query_only(1)")
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	defer db.Close()

	snap, err := readIndex(ctx, db)
	if err != nil {
		return nil, err
	}
	if snap.Fingerprint != fingerprint {
		return nil, &domain.CorruptIndexError{
			Reason: "fingerprint mismatch",
			Detail: fmt.Sprintf("stored %q under %q", snap.Fingerprint, fingerprint),
		}
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}

func writeIndex(ctx context.Context, path string, snap *domain.IndexSnapshot) (err error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("opening index: %w", err)
	}
	defer func() {
		if cerr := db.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing index: %w", cerr)
		}
	}()

	if _, err := db.ExecContext(ctx, indexSchema); err != nil {
		return fmt.Errorf("creating index schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	meta := map[string]string{
		metaFingerprint: snap.Fingerprint,
		metaModel:       snap.Model,
		metaDimension:   strconv.Itoa(snap.Dimension),
		metaDocuments:   strconv.Itoa(snap.DocumentCount),
		metaBuiltAt:     snap.BuiltAt.UTC().Format(time.RFC3339Nano),
		metaCount:       strconv.Itoa(len(snap.Records)),
	}
	for key, value := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, key, value); err != nil {
			return fmt.Errorf("writing meta %s: %w", key, err)
		}
	}

	chunkStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (position, id, document_id, page, sequence, text) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer chunkStmt.Close()

	vecStmt, err := tx.PrepareContext(ctx, `INSERT INTO vectors (position, vector) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing vector insert: %w", err)
	}
	defer vecStmt.Close()

	for i, rec := range snap.Records {
		c := rec.Chunk
		if _, err := chunkStmt.ExecContext(ctx, i, c.ID, c.DocumentID, c.Page, c.Sequence, c.Text); err != nil {
			return fmt.Errorf("writing chunk %d: %w", i, err)
		}
		if _, err := vecStmt.ExecContext(ctx, i, float32SliceToBytes(rec.Vector)); err != nil {
			return fmt.Errorf("writing vector %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing index: %w", err)
	}
	return nil
}

// readIndex decodes a fingerprint database. Any structural problem is
// reported as corruption.
func readIndex(ctx context.Context, db *sql.DB) (*domain.IndexSnapshot, error) {
	meta := make(map[string]string)
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, corrupt("unreadable meta", err)
	}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			rows.Close()
			return nil, corrupt("unreadable meta", err)
		}
		meta[key] = value
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, corrupt("unreadable meta", err)
	}

	snap := &domain.IndexSnapshot{
		Fingerprint: meta[metaFingerprint],
		Model:       meta[metaModel],
	}
	var count int
	for key, dst := range map[string]*int{
		metaDimension: &snap.Dimension,
		metaDocuments: &snap.DocumentCount,
		metaCount:     &count,
	} {
		n, err := strconv.Atoi(meta[key])
		if err != nil {
			return nil, corrupt("bad meta "+key, err)
		}
		*dst = n
	}
	if builtAt, err := time.Parse(time.RFC3339Nano, meta[metaBuiltAt]); err == nil {
		snap.BuiltAt = builtAt
	}

	rows, err = db.QueryContext(ctx, `
		SELECT c.position, c.id, c.document_id, c.page, c.sequence, c.text, v.vector
		FROM chunks c LEFT JOIN vectors v ON v.position = c.position
		ORDER BY c.position
	`)
	if err != nil {
		return nil, corrupt("unreadable chunks", err)
	}
	defer rows.Close()

	snap.Records = make([]domain.EmbeddingRecord, 0, count)
	for rows.Next() {
		var pos int
		var c domain.Chunk
		var blob []byte
		if err := rows.Scan(&pos, &c.ID, &c.DocumentID, &c.Page, &c.Sequence, &c.Text, &blob); err != nil {
			return nil, corrupt("unreadable chunk", err)
		}
		if pos != len(snap.Records) {
			return nil, &domain.CorruptIndexError{Reason: "gap in records", Detail: fmt.Sprintf("position %d", pos)}
		}
		vec, err := bytesToFloat32Slice(blob)
		if err != nil {
			return nil, corrupt(fmt.Sprintf("record %d", pos), err)
		}
		snap.Records = append(snap.Records, domain.EmbeddingRecord{Chunk: c, Vector: vec})
	}
	if err := rows.Err(); err != nil {
		return nil, corrupt("unreadable chunks", err)
	}

	if len(snap.Records) != count {
		return nil, &domain.CorruptIndexError{
			Reason: "record count mismatch",
			Detail: fmt.Sprintf("meta says %d, found %d", count, len(snap.Records)),
		}
	}
	return snap, nil
}

func corrupt(reason string, err error) error {
	return &domain.CorruptIndexError{Reason: reason, Detail: err.Error()}
}

// float32SliceToBytes packs float32 values little-endian.
func float32SliceToBytes(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func bytesToFloat32Slice(b []byte) ([]float32, error) {
	if b == nil {
		return nil, errors.New("missing vector")
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob has %d bytes", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

func short(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
