package memory

import (
	"context"
	"testing"

	"trivia-arena/internal/domain"
)

func TestResultSinkAppends(t *testing.T) {
	sink := NewResultSink()
	_ = sink.RecordSessionResult(context.Background(), domain.SessionResult{Score: 10, Mode: domain.ModeClassic})
	_ = sink.RecordSessionResult(context.Background(), domain.SessionResult{Score: 3, Mode: domain.ModeSurvival})

	results := sink.Results()
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[1].Mode != domain.ModeSurvival {
		t.Fatalf("expected insertion order, got %+v", results)
	}
}
