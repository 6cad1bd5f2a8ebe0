package engine

import (
	"math"
	"time"

	"trivia-arena/internal/domain"
)

const (
	// BasePoints is awarded for every correct answer before bonuses and multipliers.
	BasePoints = 100
	// MaxSpeedBonus is earned by answering instantly.
	MaxSpeedBonus = 50
	// SpeedWindow is the answer time after which no speed bonus is earned.
	SpeedWindow = 10 * time.Second
)

var difficultyMultipliers = map[domain.Difficulty]float64{
	domain.DifficultyRookie:     1.0,
	domain.DifficultyPro:        1.25,
	domain.DifficultyAllStar:    1.5,
	domain.DifficultyHallOfFame: 2.0,
}

// DifficultyMultiplier returns the base multiplier of a difficulty tier.
func DifficultyMultiplier(d domain.Difficulty) float64 {
	if m, ok := difficultyMultipliers[d]; ok {
		return m
	}
	return difficultyMultipliers[domain.DifficultyRookie]
}

// StreakBonus is added to the multiplier: +0.2 past a streak of 2, +0.5 past 5.
func StreakBonus(streak int) float64 {
	switch {
	case streak > 5:
		return 0.5
	case streak > 2:
		return 0.2
	default:
		return 0
	}
}

// Multiplier combines difficulty and streak.
func Multiplier(d domain.Difficulty, streak int) float64 {
	return DifficultyMultiplier(d) + StreakBonus(streak)
}

// SpeedBonus is floor(50 * max(0, 1 - elapsed/10s)).
func SpeedBonus(elapsed time.Duration) int {
	if elapsed < 0 {
		elapsed = 0
	}
	ratio := 1 - elapsed.Seconds()/SpeedWindow.Seconds()
	if ratio <= 0 {
		return 0
	}
	return int(math.Floor(MaxSpeedBonus * ratio))
}

// Points is floor((BasePoints + bonus) * Multiplier(d, streak)).
// streak is the streak held before the answer being scored.
func Points(d domain.Difficulty, streak, bonus int) int {
	return int(math.Floor(float64(BasePoints+bonus) * Multiplier(d, streak)))
}

// ScoreClassic builds the outcome of a Classic or Survival answer.
// chosen is nil for a timeout.
func ScoreClassic(q domain.Question, chosen *int, elapsed time.Duration, d domain.Difficulty, streak int) domain.RoundOutcome {
	out := domain.RoundOutcome{ChosenOptionIndex: chosen, AnswerTime: elapsed}
	if chosen == nil || *chosen != q.CorrectOptionIndex {
		return out
	}
	out.IsCorrect = true
	out.PointsAwarded = Points(d, streak, SpeedBonus(elapsed))
	out.NewStreak = streak + 1
	return out
}

// ScoreTimeAttack builds the outcome of a Time-Attack answer: +1 correct, -1 incorrect,
// never taking score below zero. PointsAwarded is the change actually applied.
func ScoreTimeAttack(q domain.Question, chosen *int, elapsed time.Duration, score, streak int) domain.RoundOutcome {
	out := domain.RoundOutcome{ChosenOptionIndex: chosen, AnswerTime: elapsed}
	if chosen != nil && *chosen == q.CorrectOptionIndex {
		out.IsCorrect = true
		out.PointsAwarded = 1
		out.NewStreak = streak + 1
		return out
	}
	if score > 0 {
		out.PointsAwarded = -1
	}
	return out
}
