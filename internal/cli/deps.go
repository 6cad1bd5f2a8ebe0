package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"trivia-arena/internal/app"
	"trivia-arena/internal/config"
	"trivia-arena/internal/domain"
	"trivia-arena/internal/engine"
	"trivia-arena/internal/infra/llm"
	"trivia-arena/internal/infra/memory"
	pginfra "trivia-arena/internal/infra/postgres"
	redisinfra "trivia-arena/internal/infra/redis"
)

// backends holds the optional external stores named in the config.
type backends struct {
	cfg    config.Config
	redis  *redis.Client
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func openBackends(ctx context.Context, cfg config.Config, logger *zap.Logger) (*backends, error) {
	b := &backends{cfg: cfg, logger: logger}
	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := b.redis.Ping(ctx).Err(); err != nil {
			b.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
	}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		b.pool = pool
	}
	logger.Info("backends ready", zap.Bool("redis", b.redis != nil), zap.Bool("postgres", b.pool != nil))
	return b, nil
}

func (b *backends) Close() {
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
}

func (b *backends) roomIndex() app.RoomIndex {
	if b.redis != nil {
		return redisinfra.NewRoomIndex(b.redis, config.TTLDuration(b.cfg.Redis.TTL, 2*time.Hour))
	}
	return memory.NewRoomIndex()
}

func (b *backends) backupSource() engine.BackupSource {
	var loader memory.BackupLoader = memory.NewStaticBackupLoader(map[string][]domain.Question{
		domain.DefaultTopicKey: engine.BuiltinBatch(),
	})
	if b.pool != nil {
		loader = pginfra.NewBackupLoader(b.pool)
	}
	ttl := config.TTLDuration(b.cfg.Content.BackupTTL, 10*time.Minute)
	if b.redis != nil {
		return redisinfra.NewBackupRepository(b.redis, loader, ttl)
	}
	return memory.NewBackupRepository(loader, ttl)
}

func (b *backends) resultSink() engine.ResultSink {
	if b.pool != nil {
		return pginfra.NewResultSink(b.pool)
	}
	return memory.NewResultSink()
}

// generator returns nil when no API key is configured; the engine then plays backup batches.
func generator(cfg config.Config) engine.Generator {
	if cfg.Content.APIKey == "" {
		return nil
	}
	return llm.NewGenerator(cfg.Content.APIKey, cfg.Content.APIURL, cfg.Content.Model, config.TTLDuration(cfg.Content.Timeout, 30*time.Second))
}

func timing(cfg config.Config) engine.Timing {
	def := engine.DefaultTiming()
	return engine.Timing{
		QuestionTime:       config.TTLDuration(cfg.Game.QuestionTime, def.QuestionTime),
		TimeAttackDuration: config.TTLDuration(cfg.Game.TimeAttackDuration, def.TimeAttackDuration),
		ClassicReveal:      config.TTLDuration(cfg.Game.ClassicReveal, def.ClassicReveal),
		BriskReveal:        config.TTLDuration(cfg.Game.BriskReveal, def.BriskReveal),
	}
}
