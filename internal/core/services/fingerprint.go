package services

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sort"
	"strconv"

	"github.com/custodia-labs/submittal-review/internal/core/domain"
)

// fingerprintVersion changes whenever the persisted index layout or the
// fingerprint inputs change, invalidating every cached index.
const fingerprintVersion = "v1"

// Fingerprint summarises the corpus state an index is built from.
//
// It covers each file's relative path, size and modification time together
// with the chunking parameters and the embedding model, so changing any of
// them selects a different cache entry. File content is not hashed: an edit
// that preserves both size and modification time is not detected.
func Fingerprint(files []domain.CorpusFile, chunkerSignature, model string) string {
	sorted := make([]domain.CorpusFile, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	h := sha256.New()
	_, _ = io.WriteString(h, fingerprintVersion+"\n")
	_, _ = io.WriteString(h, chunkerSignature+"\n")
	_, _ = io.WriteString(h, model+"\n")
	for _, f := range sorted {
		_, _ = io.WriteString(h, f.Path)
		_, _ = io.WriteString(h, "\x00"+strconv.FormatInt(f.Size, 10))
		_, _ = io.WriteString(h, "\x00"+strconv.FormatInt(f.ModTime.UnixNano(), 10)+"\n")
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}
