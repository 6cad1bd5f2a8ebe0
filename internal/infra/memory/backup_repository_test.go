package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"trivia-arena/internal/domain"
)

func TestBackupRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		BackupLoader: NewStaticBackupLoader(map[string][]domain.Question{
			"space": sampleBatch(),
		}),
	}
	repo := NewBackupRepository(loader, time.Minute)

	if _, err := repo.Batch(context.Background(), "Space"); err != nil {
		t.Fatalf("batch: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := repo.Batch(context.Background(), "space"); err != nil {
		t.Fatalf("batch 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestBackupRepositoryFallsBackToDefaultTopic(t *testing.T) {
	repo := NewBackupRepository(NewStaticBackupLoader(map[string][]domain.Question{
		domain.DefaultTopicKey: sampleBatch(),
	}), time.Minute)

	batch, err := repo.Batch(context.Background(), "Obscure Operas")
	if err != nil {
		t.Fatalf("expected default batch, got %v", err)
	}
	if len(batch) != 1 || batch[0].ID != "b1" {
		t.Fatalf("unexpected batch %+v", batch)
	}
}

func TestBackupRepositoryMissing(t *testing.T) {
	repo := NewBackupRepository(NewStaticBackupLoader(nil), time.Minute)
	if _, err := repo.Batch(context.Background(), "anything"); !errors.Is(err, domain.ErrBackupNotFound) {
		t.Fatalf("expected ErrBackupNotFound, got %v", err)
	}
}

type countingLoader struct {
	BackupLoader
	calls int
}

func (l *countingLoader) LoadBatch(ctx context.Context, topicKey string) ([]domain.Question, error) {
	l.calls++
	return l.BackupLoader.LoadBatch(ctx, topicKey)
}

func sampleBatch() []domain.Question {
	return []domain.Question{
		{
			ID:                 "b1",
			Text:               "Which planet is known as the Red Planet?",
			Options:            []string{"Venus", "Mars", "Jupiter", "Mercury"},
			CorrectOptionIndex: 1,
			Category:           "Science",
			DifficultyTag:      domain.DifficultyRookie,
		},
	}
}
