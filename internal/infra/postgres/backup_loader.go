package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"trivia-arena/internal/domain"
)

// BackupLoader loads backup question batches (JSONB) from Postgres.
type BackupLoader struct {
	pool *pgxpool.Pool
}

func NewBackupLoader(pool *pgxpool.Pool) *BackupLoader {
	return &BackupLoader{pool: pool}
}

func (l *BackupLoader) LoadBatch(ctx context.Context, topicKey string) ([]domain.Question, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT questions FROM backup_batches WHERE topic_key=$1`, topicKey).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrBackupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load backup batch: %w", err)
	}
	var questions []domain.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, fmt.Errorf("unmarshal backup batch: %w", err)
	}
	if len(questions) == 0 {
		return nil, domain.ErrBackupNotFound
	}
	return questions, nil
}

// SaveBatch upserts the backup batch of a topic.
func (l *BackupLoader) SaveBatch(ctx context.Context, topic string, questions []domain.Question) error {
	raw, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("marshal backup batch: %w", err)
	}
	_, err = l.pool.Exec(ctx, `
		INSERT INTO backup_batches (topic_key, questions, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (topic_key) DO UPDATE SET questions=EXCLUDED.questions, updated_at=NOW()`,
		domain.TopicKey(topic), string(raw))
	if err != nil {
		return fmt.Errorf("save backup batch: %w", err)
	}
	return nil
}
