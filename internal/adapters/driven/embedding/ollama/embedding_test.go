package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/submittal-review/internal/core/domain"
)

func TestNewEmbeddingService_Defaults(t *testing.T) {
	svc, err := NewEmbeddingService(Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, svc.ModelName())
	assert.Equal(t, DefaultDimensions, svc.Dimensions())
}

func TestNewEmbeddingService_InvalidURL(t *testing.T) {
	_, err := NewEmbeddingService(Config{BaseURL: "://bad"})
	assert.Error(t, err)
}

func TestEmbedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)

		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)

		out := make([][]float32, len(req.Input))
		for i := range req.Input {
			out[i] = []float32{float32(i), 1}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"model": req.Model, "embeddings": out})
	}))
	defer server.Close()

	svc, err := NewEmbeddingService(Config{BaseURL: server.URL})
	require.NoError(t, err)

	vecs, err := svc.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 1}, {1, 1}, {2, 1}}, vecs)

	vec, err := svc.Embed(context.Background(), "query")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, vec)
}

func TestEmbedBatch_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[1,2]]}`))
	}))
	defer server.Close()

	svc, err := NewEmbeddingService(Config{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = svc.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestEmbedBatch_ServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"server busy"}`))
	}))
	defer server.Close()

	svc, err := NewEmbeddingService(Config{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = svc.EmbedBatch(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransient)
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	svc, err := NewEmbeddingService(Config{BaseURL: server.URL})
	require.NoError(t, err)
	assert.NoError(t, svc.Ping(context.Background()))

	server.Close()
	err = svc.Ping(context.Background())
	assert.ErrorIs(t, err, domain.ErrTransient)
}
