package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/submittal-review/internal/core/domain"
)

func testSnapshot(fp string) *domain.IndexSnapshot {
	return &domain.IndexSnapshot{
		Fingerprint:   fp,
		Model:         "nomic-embed-text",
		Dimension:     3,
		DocumentCount: 2,
		BuiltAt:       time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		Records: []domain.EmbeddingRecord{
			{
				Chunk:  domain.Chunk{ID: "c1", DocumentID: "concrete/05.pdf", Page: 1, Sequence: 0, Text: "Grade C40/50 minimum."},
				Vector: []float32{0.1, -0.2, 0.3},
			},
			{
				Chunk:  domain.Chunk{ID: "c2", DocumentID: "concrete/05.pdf", Page: 2, Sequence: 0, Text: "Cover 50 mm."},
				Vector: []float32{1, 0, 0},
			},
			{
				Chunk:  domain.Chunk{ID: "c3", DocumentID: "steel.txt", Page: 1, Sequence: 1, Text: "S355 sections."},
				Vector: []float32{0, 0, 1},
			},
		},
	}
}

func TestIndexStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	store := NewIndexStore(t.TempDir())

	exists, err := store.Exists(ctx, "fp1")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Load(ctx, "fp1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	want := testSnapshot("fp1")
	require.NoError(t, store.Save(ctx, want))

	exists, err = store.Exists(ctx, "fp1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.FileExists(t, filepath.Join(store.Dir(), "fp1", indexFile))

	got, err := store.Load(ctx, "fp1")
	require.NoError(t, err)
	assert.Equal(t, want.Fingerprint, got.Fingerprint)
	assert.Equal(t, want.Model, got.Model)
	assert.Equal(t, want.Dimension, got.Dimension)
	assert.Equal(t, want.DocumentCount, got.DocumentCount)
	assert.True(t, want.BuiltAt.Equal(got.BuiltAt))
	assert.Equal(t, want.Records, got.Records)
}

func TestIndexStore_SaveEmpty(t *testing.T) {
	ctx := context.Background()
	store := NewIndexStore(t.TempDir())

	snap := &domain.IndexSnapshot{Fingerprint: "empty", Model: "m", Dimension: 3}
	require.NoError(t, store.Save(ctx, snap))

	got, err := store.Load(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, got.Records)
}

func TestIndexStore_SaveKeepsExisting(t *testing.T) {
	ctx := context.Background()
	store := NewIndexStore(t.TempDir())

	require.NoError(t, store.Save(ctx, testSnapshot("fp1")))

	other := testSnapshot("fp1")
	other.Model = "other-model"
	require.NoError(t, store.Save(ctx, other))

	got, err := store.Load(ctx, "fp1")
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", got.Model)
}

func TestIndexStore_SaveRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	store := NewIndexStore(t.TempDir())

	bad := testSnapshot("fp1")
	bad.Records[1].Vector = []float32{1, 0}

	err := store.Save(ctx, bad)
	assert.ErrorIs(t, err, domain.ErrIndexCorrupt)

	exists, err := store.Exists(ctx, "fp1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestIndexStore_SaveLeavesNoTempDirs(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewIndexStore(dir)

	require.NoError(t, store.Save(ctx, testSnapshot("fp1")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "fp1", entries[0].Name())
}

func TestIndexStore_SaveCancelled(t *testing.T) {
	dir := t.TempDir()
	store := NewIndexStore(dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Error(t, store.Save(ctx, testSnapshot("fp1")))

	exists, err := store.Exists(context.Background(), "fp1")
	require.NoError(t, err)
	assert.False(t, exists)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestIndexStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewIndexStore(t.TempDir())

	require.NoError(t, store.Save(ctx, testSnapshot("fp1")))
	require.NoError(t, store.Delete(ctx, "fp1"))

	exists, err := store.Exists(ctx, "fp1")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.NoError(t, store.Delete(ctx, "missing"))
	assert.NoError(t, store.Delete(ctx, ""))
}

func TestIndexStore_LoadCorrupt(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *testing.T, db *sql.DB)
	}{
		{
			name: "truncated vector blob",
			mutate: func(t *testing.T, db *sql.DB) {
				_, err := db.Exec(`UPDATE vectors SET vector = x'0000803f' WHERE position = 1`)
				require.NoError(t, err)
			},
		},
		{
			name: "odd blob length",
			mutate: func(t *testing.T, db *sql.DB) {
				_, err := db.Exec(`UPDATE vectors SET vector = x'000080' WHERE position = 0`)
				require.NoError(t, err)
			},
		},
		{
			name: "missing vector row",
			mutate: func(t *testing.T, db *sql.DB) {
				_, err := db.Exec(`DELETE FROM vectors WHERE position = 2`)
				require.NoError(t, err)
			},
		},
		{
			name: "record count mismatch",
			mutate: func(t *testing.T, db *sql.DB) {
				_, err := db.Exec(`DELETE FROM chunks WHERE position = 2`)
				require.NoError(t, err)
			},
		},
		{
			name: "bad dimension meta",
			mutate: func(t *testing.T, db *sql.DB) {
				_, err := db.Exec(`UPDATE meta SET value = 'three' WHERE key = 'dimension'`)
				require.NoError(t, err)
			},
		},
		{
			name: "fingerprint mismatch",
			mutate: func(t *testing.T, db *sql.DB) {
				_, err := db.Exec(`UPDATE meta SET value = 'other' WHERE key = 'fingerprint'`)
				require.NoError(t, err)
			},
		},
		{
			name: "missing table",
			mutate: func(t *testing.T, db *sql.DB) {
				_, err := db.Exec(`DROP TABLE chunks`)
				require.NoError(t, err)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := NewIndexStore(t.TempDir())
			require.NoError(t, store.Save(ctx, testSnapshot("fp1")))

			db, err := sql.Open("sqlite", store.path("fp1"))
			require.NoError(t, err)
			tt.mutate(t, db)
			require.NoError(t, db.Close())

			_, err = store.Load(ctx, "fp1")
			assert.ErrorIs(t, err, domain.ErrIndexCorrupt)
		})
	}
}

func TestIndexStore_LoadGarbageFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewIndexStore(dir)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "fp1"), 0700))
	require.NoError(t, os.WriteFile(store.path("fp1"), []byte("not a database at all, just text padding it out"), 0600))

	_, err := store.Load(ctx, "fp1")
	assert.ErrorIs(t, err, domain.ErrIndexCorrupt)
}

func TestFloat32Blob(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 3.4028235e38}
	out, err := bytesToFloat32Slice(float32SliceToBytes(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	// 1.0 little-endian
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3f}, float32SliceToBytes([]float32{1}))

	_, err = bytesToFloat32Slice(nil)
	assert.Error(t, err)
}
