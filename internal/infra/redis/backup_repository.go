package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"trivia-arena/internal/domain"
)

// BackupLoader fetches a topic's backup batch from a backing store (e.g., Postgres).
type BackupLoader interface {
	LoadBatch(ctx context.Context, topicKey string) ([]domain.Question, error)
}

// BackupRepository caches backup batches in Redis and falls back to a loader on cache miss.
// Batches are stored as JSON: SET trivia:backup:{topicKey} [...questions]
type BackupRepository struct {
	client *redis.Client
	loader BackupLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewBackupRepository(client *redis.Client, loader BackupLoader, ttl time.Duration) *BackupRepository {
	return &BackupRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Batch returns the backup batch for a topic, falling back to the catch-all batch.
func (r *BackupRepository) Batch(ctx context.Context, topic string) ([]domain.Question, error) {
	key := domain.TopicKey(topic)
	questions, err := r.get(ctx, key)
	if errors.Is(err, domain.ErrBackupNotFound) && key != domain.DefaultTopicKey {
		return r.get(ctx, domain.DefaultTopicKey)
	}
	return questions, err
}

func (r *BackupRepository) get(ctx context.Context, topicKey string) ([]domain.Question, error) {
	if questions, ok := r.cached(ctx, topicKey); ok {
		return questions, nil
	}

	result, err, _ := r.sf.Do(topicKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if questions, ok := r.cached(ctx, topicKey); ok {
			return questions, nil
		}

		questions, err := r.loader.LoadBatch(ctx, topicKey)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(questions)
		if err != nil {
			return nil, err
		}
		_ = r.client.Set(ctx, r.key(topicKey), raw, r.ttlWithJitter()).Err()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (r *BackupRepository) cached(ctx context.Context, topicKey string) ([]domain.Question, bool) {
	raw, err := r.client.Get(ctx, r.key(topicKey)).Bytes()
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	var questions []domain.Question
	if err := json.Unmarshal(raw, &questions); err != nil || len(questions) == 0 {
		return nil, false
	}
	return questions, true
}

func (r *BackupRepository) key(topicKey string) string {
	return "trivia:backup:" + topicKey
}

func (r *BackupRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
