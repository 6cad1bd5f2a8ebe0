package memory

import (
	"context"
	"sync"

	"trivia-arena/internal/domain"
)

// ResultSink keeps session results in process memory.
type ResultSink struct {
	mu      sync.Mutex
	results []domain.SessionResult
}

func NewResultSink() *ResultSink {
	return &ResultSink{}
}

func (s *ResultSink) RecordSessionResult(_ context.Context, result domain.SessionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	return nil
}

// Results returns a copy of everything recorded so far.
func (s *ResultSink) Results() []domain.SessionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.SessionResult(nil), s.results...)
}
