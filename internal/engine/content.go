package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"trivia-arena/internal/domain"
)

const (
	// PrefetchThreshold is how few unplayed questions trigger a fetch in open-ended modes.
	PrefetchThreshold = 3
	// FetchBatchSize is the number of questions requested per open-ended fetch.
	FetchBatchSize = 10
	// RecentQuestionLimit caps the question texts sent to the generator to avoid repeats.
	RecentQuestionLimit = 30
)

var errEmptyBatch = errors.New("empty batch")

// Generator produces new questions. Implementations may be slow; the engine
// calls them off its loop.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) ([]domain.Question, error)
}

// BackupSource serves the questions substituted when generation fails.
type BackupSource interface {
	Batch(ctx context.Context, topic string) ([]domain.Question, error)
}

// PlayerContext lets the generator adapt to how the player is doing.
type PlayerContext struct {
	Score    int     `json:"score"`
	Streak   int     `json:"streak"`
	Accuracy float64 `json:"accuracy"`
}

type GenerateRequest struct {
	Topic               string
	Difficulty          domain.Difficulty
	Count               int
	Mode                domain.Mode
	RecentQuestionTexts []string
	Player              *PlayerContext
}

func (e *Engine) maybePrefetch() {
	if !e.cfg.Game.Mode.OpenEnded() {
		return
	}
	if len(e.questions)-e.index-1 <= PrefetchThreshold {
		e.requestContent(FetchBatchSize, false)
	}
}

// requestContent starts at most one fetch at a time. The result is posted back
// to the loop tagged with its sequence number.
func (e *Engine) requestContent(count int, backupOnly bool) {
	if e.fetching {
		return
	}
	e.fetching = true
	e.fetchSeq++
	seq := e.fetchSeq
	req := e.generateRequest(count)

	gen := e.gen
	if backupOnly {
		gen = nil
	}
	go func() {
		questions, backup := fetchBatch(e.ctx, gen, e.backup, req, seq, e.logger)
		if e.ctx.Err() != nil {
			return
		}
		e.post(contentMsg{seq: seq, questions: questions, backup: backup})
	}()
}

// OpeningBatch produces the questions a host submits when starting a room,
// falling back the same way a running game does.
func OpeningBatch(ctx context.Context, game domain.GameConfig, gen Generator, backup BackupSource, logger *zap.Logger) []domain.Question {
	if logger == nil {
		logger = zap.NewNop()
	}
	game = game.Normalize()
	count := game.Rounds
	if game.Mode.OpenEnded() {
		count = FetchBatchSize
	}
	questions, _ := fetchBatch(ctx, gen, backup, GenerateRequest{
		Topic:      game.Topic,
		Difficulty: game.Difficulty,
		Count:      count,
		Mode:       game.Mode,
	}, 0, logger)
	return questions
}

// fetchBatch asks the generator when there is one and substitutes a backup
// batch on failure. The second result reports whether the batch is a backup.
func fetchBatch(ctx context.Context, gen Generator, backup BackupSource, req GenerateRequest, seq int, logger *zap.Logger) ([]domain.Question, bool) {
	if gen != nil {
		questions, err := generate(ctx, gen, req)
		if err == nil {
			return questions, false
		}
		if ctx.Err() != nil {
			return nil, false
		}
		logger.Warn("content generation failed, using backup batch",
			zap.String("topic", req.Topic),
			zap.Error(err),
		)
	}
	return backupBatch(ctx, backup, req.Topic, seq, logger), true
}

func generate(ctx context.Context, gen Generator, req GenerateRequest) ([]domain.Question, error) {
	questions, err := gen.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrContentGenerationFailed, err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: %v", domain.ErrContentGenerationFailed, errEmptyBatch)
	}
	return questions, nil
}

func backupBatch(ctx context.Context, backup BackupSource, topic string, seq int, logger *zap.Logger) []domain.Question {
	var batch []domain.Question
	if backup != nil {
		b, err := backup.Batch(ctx, topic)
		if err != nil {
			logger.Warn("backup batch unavailable, using built-in questions", zap.String("topic", topic), zap.Error(err))
		} else {
			batch = b
		}
	}
	if len(batch) == 0 {
		batch = BuiltinBatch()
	}
	return prepareBackup(batch, seq)
}

func (e *Engine) generateRequest(count int) GenerateRequest {
	start := len(e.questions) - RecentQuestionLimit
	if start < 0 {
		start = 0
	}
	recent := make([]string, 0, len(e.questions)-start)
	for _, q := range e.questions[start:] {
		recent = append(recent, q.Text)
	}

	local := e.players[e.localIdx]
	player := &PlayerContext{Score: local.Score, Streak: local.Streak}
	if e.stats.seen > 0 {
		player.Accuracy = float64(e.stats.correct) / float64(e.stats.seen)
	}
	return GenerateRequest{
		Topic:               e.cfg.Game.Topic,
		Difficulty:          e.cfg.Game.Difficulty,
		Count:               count,
		Mode:                e.cfg.Game.Mode,
		RecentQuestionTexts: recent,
		Player:              player,
	}
}

func (e *Engine) contentArrived(msg contentMsg) {
	if msg.seq != e.fetchSeq || e.phase == domain.PhaseGameOver {
		return
	}
	e.fetching = false
	added := e.appendQuestions(msg.questions, msg.backup)
	e.logger.Debug("content arrived", zap.Int("added", added), zap.Bool("backup", msg.backup), zap.Int("total", len(e.questions)))

	if added == 0 {
		if !msg.backup {
			e.requestContent(0, true)
			return
		}
		if e.waiting {
			e.logger.Error("no playable content left, ending game")
			e.gameOver()
		}
		return
	}
	if e.waiting {
		e.resume()
		return
	}
	e.publish()
}

// appendQuestions adds playable questions, skipping repeated ids. Generated
// batches also skip repeated texts; backup batches are allowed to repeat.
func (e *Engine) appendQuestions(questions []domain.Question, backup bool) int {
	added := 0
	for _, q := range questions {
		if !q.Valid() {
			continue
		}
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		if _, dup := e.seenIDs[q.ID]; dup {
			continue
		}
		text := strings.ToLower(strings.TrimSpace(q.Text))
		if _, dup := e.seenTexts[text]; dup && !backup {
			continue
		}
		if q.DifficultyTag == "" {
			q.DifficultyTag = e.cfg.Game.Difficulty
		}
		q.Options = append([]string(nil), q.Options...)
		e.seenIDs[q.ID] = struct{}{}
		e.seenTexts[text] = struct{}{}
		e.questions = append(e.questions, q)
		added++
	}
	return added
}
