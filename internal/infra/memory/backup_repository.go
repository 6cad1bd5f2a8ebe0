package memory

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"trivia-arena/internal/domain"
)

// BackupLoader fetches a topic's backup batch from a backing store (e.g., Postgres).
type BackupLoader interface {
	LoadBatch(ctx context.Context, topicKey string) ([]domain.Question, error)
}

// BackupRepository caches backup batches with TTL to avoid repeated DB hits.
type BackupRepository struct {
	loader BackupLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedBatch
}

type cachedBatch struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewBackupRepository(loader BackupLoader, ttl time.Duration) *BackupRepository {
	return &BackupRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedBatch),
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

func (r *BackupRepository) get(ctx context.Context, key string) ([]domain.Question, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[key]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.questions, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[key]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.questions, nil
		}
		r.mu.RUnlock()

		questions, err := r.loader.LoadBatch(ctx, key)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[key] = cachedBatch{
			questions: questions,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (r *BackupRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticBackupLoader serves batches from an in-memory map keyed by topic key.
type StaticBackupLoader struct {
	batches map[string][]domain.Question
}

func NewStaticBackupLoader(batches map[string][]domain.Question) *StaticBackupLoader {
	return &StaticBackupLoader{batches: batches}
}

func (l *StaticBackupLoader) LoadBatch(_ context.Context, topicKey string) ([]domain.Question, error) {
	if batch, ok := l.batches[topicKey]; ok && len(batch) > 0 {
		return batch, nil
	}
	return nil, domain.ErrBackupNotFound
}
