package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/submittal-review/internal/adapters/driving/boundary"
	"github.com/custodia-labs/submittal-review/internal/core/domain"
)

type mockKnowledge struct {
	status domain.KnowledgeStatus
}

func (m *mockKnowledge) GetOrBuild(context.Context) (domain.KnowledgeStatus, error) {
	return m.status, nil
}

func (m *mockKnowledge) Load(context.Context) (domain.KnowledgeStatus, error) {
	return m.status, nil
}

func (m *mockKnowledge) Rebuild(context.Context) (domain.KnowledgeStatus, error) {
	return m.status, nil
}

func (m *mockKnowledge) Refresh(context.Context) (domain.KnowledgeStatus, error) {
	return m.status, nil
}

func (m *mockKnowledge) Retrieve(context.Context, string, int) ([]domain.ScoredChunk, error) {
	return nil, nil
}

func (m *mockKnowledge) Status() domain.KnowledgeStatus { return m.status }

func (m *mockKnowledge) Close() error { return nil }

type mockReview struct {
	got    domain.SubmittalRequest
	calls  int
	result *domain.ReviewResult
	err    error
	panic  bool
}

func (m *mockReview) Review(_ context.Context, req domain.SubmittalRequest) (*domain.ReviewResult, error) {
	m.calls++
	m.got = req
	if m.panic {
		panic("boom")
	}
	if m.err != nil {
		return nil, m.err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return m.result, nil
}

func (m *mockReview) History(context.Context, int) ([]domain.ReviewRecord, error) {
	return nil, nil
}

func newTestServer(t *testing.T, review *mockReview, status domain.KnowledgeStatus) http.Handler {
	t.Helper()
	s, err := NewServer(&mockKnowledge{status: status}, review)
	require.NoError(t, err)
	return s.Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) boundary.Failure {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

const validBody = `{"type":"Concrete","description":"Ready-mix for level 2 slab","specifications":"Grade C40/50"}`

func TestNewServer_RequiresServices(t *testing.T) {
	_, err := NewServer(nil, &mockReview{})
	assert.ErrorIs(t, err, ErrMissingService)

	_, err = NewServer(&mockKnowledge{}, nil)
	assert.ErrorIs(t, err, ErrMissingService)
}

func TestReview_Success(t *testing.T) {
	review := &mockReview{result: &domain.ReviewResult{
		ReviewID: "r-1",
		Decision: domain.Decision{
			Verdict:    domain.VerdictApproved,
			Confidence: 0.9,
			Citations:  []domain.Citation{{Source: "concrete.txt", Text: "Grade C40/50", Page: 1, Relevance: 0.82}},
		},
		Analysis: "Meets strength requirements.",
	}}
	h := newTestServer(t, review, domain.KnowledgeStatus{Ready: true})

	rec := do(t, h, http.MethodPost, "/api/review", validBody)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "Concrete", review.got.Type)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "APPROVED", body["decision"])
	assert.Equal(t, "r-1", body["review_id"])
	assert.Equal(t, "Meets strength requirements.", body["analysis"])
	assert.Len(t, body["citations"], 1)
}

func TestReview_Failures(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
		wantStage  string
		wantCalls  int
	}{
		{
			name:       "malformed JSON",
			body:       `{"type":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   boundary.CodeInvalidInput,
		},
		{
			name:       "empty body",
			body:       "",
			wantStatus: http.StatusBadRequest,
			wantCode:   boundary.CodeInvalidInput,
		},
		{
			name:       "blank description",
			body:       `{"type":"Concrete","description":"  ","specifications":"Grade C40/50"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   boundary.CodeInvalidInput,
			wantCalls:  1,
		},
		{
			name: "knowledge base not ready",
			body: validBody,
			err: &domain.StageError{
				Stage: domain.StageInit, Kind: domain.ErrRetrieval, Err: domain.ErrKnowledgeBaseNotReady,
			},
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   boundary.CodeNotReady,
			wantStage:  "init",
			wantCalls:  1,
		},
		{
			name: "analysis failure",
			body: validBody,
			err: &domain.StageError{
				Stage: domain.StageRetrieved, Kind: domain.ErrAnalysis, Err: domain.ErrTransient,
			},
			wantStatus: http.StatusBadGateway,
			wantCode:   boundary.CodeAnalysis,
			wantStage:  "retrieved",
			wantCalls:  1,
		},
		{
			name:       "unexpected failure",
			body:       validBody,
			err:        errors.New("disk full"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   boundary.CodeInternal,
			wantCalls:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			review := &mockReview{err: tt.err}
			h := newTestServer(t, review, domain.KnowledgeStatus{})

			rec := do(t, h, http.MethodPost, "/api/review", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			f := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, f.Code)
			assert.Equal(t, tt.wantStage, f.Stage)
			assert.NotEmpty(t, f.Message)
			assert.Equal(t, tt.wantCalls, review.calls)
		})
	}
}

func TestReview_BodyTooLarge(t *testing.T) {
	review := &mockReview{}
	h := newTestServer(t, review, domain.KnowledgeStatus{})

	big := `{"type":"Concrete","description":"` + strings.Repeat("x", maxRequestBytes) + `"}`
	rec := do(t, h, http.MethodPost, "/api/review", big)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Message, "exceeds")
	assert.Zero(t, review.calls)
}

func TestReview_MethodNotAllowed(t *testing.T) {
	h := newTestServer(t, &mockReview{}, domain.KnowledgeStatus{})

	rec := do(t, h, http.MethodGet, "/api/review", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMount(t *testing.T) {
	s, err := NewServer(&mockKnowledge{}, &mockReview{})
	require.NoError(t, err)
	s.Mount("/mcp", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := do(t, s.Handler(), http.MethodPost, "/mcp", "{}")
	assert.Equal(t, http.StatusTeapot, rec.Code)

	rec = do(t, s.Handler(), http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReview_RecoversPanic(t *testing.T) {
	h := newTestServer(t, &mockReview{panic: true}, domain.KnowledgeStatus{})

	rec := do(t, h, http.MethodPost, "/api/review", validBody)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		status     domain.KnowledgeStatus
		wantStatus string
	}{
		{
			name:       "ready",
			status:     domain.KnowledgeStatus{Ready: true, ChunkCount: 412, DocumentCount: 3},
			wantStatus: StatusHealthy,
		},
		{
			name:       "not ready",
			status:     domain.KnowledgeStatus{Building: true},
			wantStatus: StatusDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, &mockReview{}, tt.status)

			rec := do(t, h, http.MethodGet, "/api/health", "")
			require.Equal(t, http.StatusOK, rec.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body["status"])
			assert.Equal(t, tt.status.Ready, body["knowledge_base_ready"])
			assert.Equal(t, float64(tt.status.ChunkCount), body["chunks_count"])
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, &mockReview{}, domain.KnowledgeStatus{})

	rec := do(t, h, http.MethodOptions, "/api/review", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	s, err := NewServer(&mockKnowledge{}, &mockReview{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0", 0) }()

	cancel()
	assert.NoError(t, <-done)
}
