package mcp

import (
	"context"

	"github.com/custodia-labs/submittal-review/internal/core/domain"
)

// mockReviewService is a mock implementation of driving.ReviewService.
type mockReviewService struct {
	got     domain.SubmittalRequest
	result  *domain.ReviewResult
	records []domain.ReviewRecord
	limit   int
	err     error
}

func (m *mockReviewService) Review(_ context.Context, req domain.SubmittalRequest) (*domain.ReviewResult, error) {
	m.got = req
	return m.result, m.err
}

func (m *mockReviewService) History(_ context.Context, limit int) ([]domain.ReviewRecord, error) {
	m.limit = limit
	return m.records, m.err
}

// mockKnowledgeService is a mock implementation of driving.KnowledgeService.
type mockKnowledgeService struct {
	status domain.KnowledgeStatus
}

func (m *mockKnowledgeService) GetOrBuild(context.Context) (domain.KnowledgeStatus, error) {
	return m.status, nil
}

func (m *mockKnowledgeService) Load(context.Context) (domain.KnowledgeStatus, error) {
	return m.status, nil
}

func (m *mockKnowledgeService) Rebuild(context.Context) (domain.KnowledgeStatus, error) {
	return m.status, nil
}

func (m *mockKnowledgeService) Refresh(context.Context) (domain.KnowledgeStatus, error) {
	return m.status, nil
}

func (m *mockKnowledgeService) Retrieve(context.Context, string, int) ([]domain.ScoredChunk, error) {
	return nil, nil
}

func (m *mockKnowledgeService) Status() domain.KnowledgeStatus {
	return m.status
}

func (m *mockKnowledgeService) Close() error {
	return nil
}
