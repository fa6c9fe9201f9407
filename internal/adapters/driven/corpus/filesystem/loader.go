// Package filesystem provides a CorpusLoader over a local standards directory.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/submittal-review/internal/core/domain"
	"github.com/custodia-labs/submittal-review/internal/core/ports/driven"
	"github.com/custodia-labs/submittal-review/internal/logger"
)

// Ensure Loader implements the interface.
var _ driven.CorpusLoader = (*Loader)(nil)

// PageBreak separates pages in plain text documents.
const PageBreak = "\f"

// supportedExts lists the document types the loader reads.
var supportedExts = map[string]bool{
	".pdf":  true,
	".txt":  true,
	".md":   true,
	".html": true,
	".htm":  true,
}

// Loader walks a corpus directory recursively. Document ids are paths
// relative to the root with forward slashes. Hidden files and directories
// are skipped.
type Loader struct {
	root string
}

// New creates a loader rooted at dir.
func New(dir string) *Loader {
	return &Loader{root: dir}
}

// Root returns the corpus directory.
func (l *Loader) Root() string {
	return l.root
}

// Files lists supported corpus files sorted by relative path.
func (l *Loader) Files(ctx context.Context) ([]domain.CorpusFile, error) {
	info, err := os.Stat(l.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist", domain.ErrCorpusNotFound, l.root)
		}
		return nil, fmt.Errorf("stat corpus: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrCorpusNotFound, l.root)
	}

	var files []domain.CorpusFile
	err = filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, relErr := filepath.Rel(l.root, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		if isHidden(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !supportedExts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, domain.CorpusFile{
			Path:    filepath.ToSlash(rel),
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk corpus: %w", err)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no supported documents in %s", domain.ErrCorpusNotFound, l.root)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Load reads every corpus document. Files that cannot be read are logged
// and skipped so one damaged document does not block the knowledge base.
func (l *Loader) Load(ctx context.Context) ([]domain.Document, error) {
	files, err := l.Files(ctx)
	if err != nil {
		return nil, err
	}

	docs := make([]domain.Document, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pages, err := l.readPages(f.Path)
		if err != nil {
			logger.Warn("Skipping %s: %v", f.Path, err)
			continue
		}

		doc := domain.Document{ID: f.Path}
		for i, text := range pages {
			doc.Pages = append(doc.Pages, domain.Page{DocumentID: f.Path, Number: i + 1, Text: text})
		}
		docs = append(docs, doc)
	}

	logger.Debug("Loaded %d of %d documents from %s", len(docs), len(files), l.root)
	return docs, nil
}

// readPages returns the page texts of one corpus file.
func (l *Loader) readPages(rel string) ([]string, error) {
	path := filepath.Join(l.root, filepath.FromSlash(rel))
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".pdf" {
		return readPDF(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pages := strings.Split(string(data), PageBreak)
	switch ext {
	case ".md":
		for i := range pages {
			pages[i] = markdownText(pages[i])
		}
	case ".html", ".htm":
		for i := range pages {
			pages[i] = htmlText(pages[i])
		}
	}
	return pages, nil
}

// readPDF extracts plain text page by page.
func readPDF(path string) (pages []string, err error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	// The pdf package panics on some malformed content streams.
	defer func() {
		if rec := recover(); rec != nil {
			pages, err = nil, fmt.Errorf("extract pdf text: %v", rec)
		}
	}()

	n := r.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// isHidden reports whether any path element starts with a dot.
// The special elements "." and ".." are not hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part != "." && part != ".." && strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
