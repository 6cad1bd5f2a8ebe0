package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"trivia-arena/internal/domain"
)

// ResultSink appends finished session results to the session_results table.
type ResultSink struct {
	pool *pgxpool.Pool
}

func NewResultSink(pool *pgxpool.Pool) *ResultSink {
	return &ResultSink{pool: pool}
}

func (s *ResultSink) RecordSessionResult(ctx context.Context, result domain.SessionResult) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO session_results
			(stable_id, score, correct_count, questions_seen, best_answer_ms, topic, mode, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		result.StableID,
		result.Score,
		result.CorrectCount,
		result.QuestionsSeen,
		result.BestAnswerTime.Milliseconds(),
		result.Topic,
		string(result.Mode),
		result.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("record session result: %w", err)
	}
	return nil
}

// RecentResults returns the latest results of a player, newest first.
func (s *ResultSink) RecentResults(ctx context.Context, stableID string, limit int) ([]domain.SessionResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT stable_id, score, correct_count, questions_seen, best_answer_ms, topic, mode, finished_at
		FROM session_results WHERE stable_id=$1 ORDER BY finished_at DESC LIMIT $2`, stableID, limit)
	if err != nil {
		return nil, fmt.Errorf("query session results: %w", err)
	}
	defer rows.Close()

	var out []domain.SessionResult
	for rows.Next() {
		var (
			r        domain.SessionResult
			bestMs   int64
			modeName string
		)
		if err := rows.Scan(&r.StableID, &r.Score, &r.CorrectCount, &r.QuestionsSeen, &bestMs, &r.Topic, &modeName, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan session result: %w", err)
		}
		r.BestAnswerTime = time.Duration(bestMs) * time.Millisecond
		r.Mode = domain.Mode(modeName)
		out = append(out, r)
	}
	return out, rows.Err()
}
