package services

import (
	"context"
	"errors"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/custodia-labs/submittal-review/internal/core/domain"
	"github.com/custodia-labs/submittal-review/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockLoader implements driven.CorpusLoader over an in-memory corpus.
type mockLoader struct {
	mu    sync.Mutex
	docs  map[string]string // path -> text, pages split on form feed
	mtime time.Time
	err   error
	loads atomic.Int32
}

func newMockLoader(docs map[string]string) *mockLoader {
	return &mockLoader{docs: docs, mtime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (m *mockLoader) Root() string { return "mem://standards" }

func (m *mockLoader) touch(path, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[path] = text
	m.mtime = m.mtime.Add(time.Minute)
}

func (m *mockLoader) Files(_ context.Context) ([]domain.CorpusFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if len(m.docs) == 0 {
		return nil, domain.ErrCorpusNotFound
	}
	files := make([]domain.CorpusFile, 0, len(m.docs))
	for path, text := range m.docs {
		files = append(files, domain.CorpusFile{Path: path, Size: int64(len(text)), ModTime: m.mtime})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func (m *mockLoader) Load(ctx context.Context) ([]domain.Document, error) {
	m.loads.Add(1)
	files, err := m.Files(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := make([]domain.Document, 0, len(files))
	for _, f := range files {
		doc := domain.Document{ID: f.Path}
		for i, text := range strings.Split(m.docs[f.Path], "\f") {
			doc.Pages = append(doc.Pages, domain.Page{DocumentID: f.Path, Number: i + 1, Text: text})
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// mockEmbedder implements driven.EmbeddingService with hashed bag-of-words
// vectors, so texts sharing words are similar.
type mockEmbedder struct {
	dim     int
	model   string
	delay   time.Duration
	failOn  string
	err     error
	calls   atomic.Int64
	batches atomic.Int64
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{dim: 64, model: "mock-embed"}
}

func (m *mockEmbedder) vector(text string) []float32 {
	v := make([]float32, m.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%uint32(m.dim)]++
	}
	return v
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.vector(text), ctx.Err()
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.batches.Add(1)
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if m.err != nil || (m.failOn != "" && strings.Contains(text, m.failOn)) {
			return nil, errors.Join(domain.ErrTransient, errors.New("embedding backend unavailable"))
		}
		out[i] = m.vector(text)
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int              { return m.dim }
func (m *mockEmbedder) ModelName() string            { return m.model }
func (m *mockEmbedder) Ping(_ context.Context) error { return nil }
func (m *mockEmbedder) Close() error                 { return nil }

// llmReply is one scripted LLM response.
type llmReply struct {
	content string
	err     error
}

// mockLLM implements driven.LLMService. Replies come from respond when set,
// otherwise from the analyze/decide scripts, consumed in order per stage.
type mockLLM struct {
	mu         sync.Mutex
	analyze    []llmReply
	decide     []llmReply
	respond    func(messages []driven.ChatMessage, opts driven.ChatOptions) (string, error)
	block      bool
	calls      []driven.ChatOptions
	transcript [][]driven.ChatMessage
}

func (m *mockLLM) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, opts)
	m.transcript = append(m.transcript, append([]driven.ChatMessage(nil), messages...))
	respond := m.respond
	block := m.block
	var reply llmReply
	if respond == nil && !block {
		script := &m.analyze
		if opts.JSON {
			script = &m.decide
		}
		if len(*script) == 0 {
			m.mu.Unlock()
			return "", errors.New("mockLLM: no scripted reply")
		}
		reply = (*script)[0]
		*script = (*script)[1:]
	}
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if respond != nil {
		return respond(messages, opts)
	}
	return reply.content, reply.err
}

func (m *mockLLM) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	return m.Chat(ctx, []driven.ChatMessage{{Role: driven.RoleUser, Content: prompt}},
		driven.ChatOptions{MaxTokens: opts.MaxTokens, Temperature: opts.Temperature, JSON: opts.JSON})
}

func (m *mockLLM) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockLLM) ModelName() string            { return "mock-llm" }
func (m *mockLLM) Ping(_ context.Context) error { return nil }
func (m *mockLLM) Close() error                 { return nil }

// mockRetriever implements Retriever with fixed results.
type mockRetriever struct {
	hits  []domain.ScoredChunk
	err   error
	calls atomic.Int32
}

func (m *mockRetriever) Retrieve(_ context.Context, _ string, k int) ([]domain.ScoredChunk, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	if k < len(m.hits) {
		return m.hits[:k], nil
	}
	return m.hits, nil
}

// failingReviewLog implements driven.ReviewLog and always fails.
type failingReviewLog struct{}

func (failingReviewLog) Append(_ context.Context, _ domain.ReviewRecord) error {
	return errors.New("disk full")
}

func (failingReviewLog) List(_ context.Context, _ int) ([]domain.ReviewRecord, error) {
	return nil, errors.New("disk full")
}

func (failingReviewLog) Close() error { return nil }
