package engine

import (
	"math/rand"
	"strings"
	"time"

	"trivia-arena/internal/domain"
)

// SpeedProfile shapes how large a speed bonus a bot draws when it answers correctly.
type SpeedProfile string

const (
	SpeedFast     SpeedProfile = "fast"
	SpeedBalanced SpeedProfile = "balanced"
	SpeedSlow     SpeedProfile = "slow"
)

// Persona is a simulated opponent's accuracy, specialty and speed profile.
type Persona struct {
	ID           string
	Name         string
	Avatar       string
	BaseAccuracy float64
	Specialties  []string
	Speed        SpeedProfile
}

// Personas is the bot catalog, in lineup order.
var Personas = []Persona{
	{ID: "bot-ada", Name: "Ada", Avatar: "robot-teal", BaseAccuracy: 0.72, Specialties: []string{"science", "technology", "math"}, Speed: SpeedFast},
	{ID: "bot-homer", Name: "Homer", Avatar: "owl-amber", BaseAccuracy: 0.66, Specialties: []string{"history", "literature", "mythology"}, Speed: SpeedSlow},
	{ID: "bot-vinyl", Name: "Vinyl", Avatar: "cat-magenta", BaseAccuracy: 0.58, Specialties: []string{"music", "movies", "pop culture"}, Speed: SpeedBalanced},
	{ID: "bot-atlas", Name: "Atlas", Avatar: "fox-green", BaseAccuracy: 0.62, Specialties: []string{"geography", "sports", "nature"}, Speed: SpeedBalanced},
}

const (
	minBotProbability  = 0.05
	maxBotProbability  = 0.98
	specialtyBoost     = 0.25
	rubberBandMargin   = 400
	trailingBoost      = 0.15
	leadingPenalty     = 0.10
	closeGameMargin    = 150
	finalStretchRounds = 3
	maxJitter          = 0.05
	maxClutchSwing     = 0.10
)

// Time-Attack answers move a score by one point, so its margins count answers.
const (
	timeAttackRubberBand = 2
	timeAttackCloseGame  = 1
)

// BotSituation is what a bot "knows" when facing a question.
type BotSituation struct {
	Category           string
	QuestionDifficulty domain.Difficulty
	BotScore           int
	HumanScore         int
	// RoundsLeft counts questions after this one; negative when the game is open-ended.
	RoundsLeft int
	// Mode picks the score scale the rubber band and close-game margins use.
	Mode domain.Mode
}

func scoreMargins(mode domain.Mode) (rubberBand, closeGame int) {
	if mode == domain.ModeTimeAttack {
		return timeAttackRubberBand, timeAttackCloseGame
	}
	return rubberBandMargin, closeGameMargin
}

// Lineup returns the first n personas as roster seats.
func Lineup(n int) []domain.Participant {
	if n < 0 {
		n = 0
	}
	if n > len(Personas) {
		n = len(Personas)
	}
	seats := make([]domain.Participant, 0, n)
	for _, p := range Personas[:n] {
		seats = append(seats, domain.Participant{
			StableID:    p.ID,
			DisplayName: p.Name,
			AvatarRef:   p.Avatar,
			IsBot:       true,
		})
	}
	return seats
}

func personaByID(id string) (Persona, bool) {
	for _, p := range Personas {
		if p.ID == id {
			return p, true
		}
	}
	return Persona{}, false
}

func (p Persona) specializesIn(category string) bool {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return false
	}
	for _, s := range p.Specialties {
		if strings.Contains(category, s) || strings.Contains(s, category) {
			return true
		}
	}
	return false
}

// specialtyPenalty scales from 0.15 (ROOKIE) to 0.25 (HALL_OF_FAME).
func specialtyPenalty(d domain.Difficulty) float64 {
	return 0.15 + 0.10*float64(d.Tier())/float64(len(domain.Difficulties)-1)
}

func clampProbability(p float64) float64 {
	if p < minBotProbability {
		return minBotProbability
	}
	if p > maxBotProbability {
		return maxBotProbability
	}
	return p
}

// successProbability is the deterministic core; jitter and swing are the random draws.
func successProbability(p Persona, s BotSituation, jitter, swing float64) float64 {
	prob := p.BaseAccuracy + jitter
	if p.specializesIn(s.Category) {
		prob += specialtyBoost
	} else {
		prob -= specialtyPenalty(s.QuestionDifficulty)
	}

	rubberBand, closeGame := scoreMargins(s.Mode)
	gap := s.HumanScore - s.BotScore
	switch {
	case gap > rubberBand:
		prob += trailingBoost
	case -gap > rubberBand:
		prob -= leadingPenalty
	}

	if s.RoundsLeft >= 0 && s.RoundsLeft < finalStretchRounds && abs(gap) <= closeGame {
		prob += swing
	}
	return clampProbability(prob)
}

// SuccessProbability samples jitter and the clutch/choke swing and returns the clamped probability.
func SuccessProbability(p Persona, s BotSituation, rng *rand.Rand) float64 {
	jitter := (rng.Float64()*2 - 1) * maxJitter
	swing := (rng.Float64()*2 - 1) * maxClutchSwing
	return successProbability(p, s, jitter, swing)
}

// bonusBand returns the inclusive speed-bonus range a bot draws from.
// A specialty match promotes the bot one band.
func (p Persona) bonusBand(category string) (int, int) {
	speed := p.Speed
	if p.specializesIn(category) {
		switch speed {
		case SpeedSlow:
			speed = SpeedBalanced
		case SpeedBalanced:
			speed = SpeedFast
		}
	}
	switch speed {
	case SpeedFast:
		return 35, 50
	case SpeedSlow:
		return 5, 25
	default:
		return 20, 40
	}
}

// simulateBot resolves one bot's answer to q.
func simulateBot(p Persona, bot domain.Participant, q domain.Question, s BotSituation, cfg domain.GameConfig, rng *rand.Rand) domain.RoundOutcome {
	prob := SuccessProbability(p, s, rng)
	lo, hi := p.bonusBand(q.Category)
	bonus := lo + rng.Intn(hi-lo+1)
	elapsed := time.Duration(float64(SpeedWindow) * (1 - float64(bonus)/MaxSpeedBonus))

	if rng.Float64() >= prob {
		wrong := wrongOption(q, rng)
		if cfg.Mode == domain.ModeTimeAttack {
			return ScoreTimeAttack(q, &wrong, elapsed, bot.Score, bot.Streak)
		}
		return domain.RoundOutcome{ChosenOptionIndex: &wrong, AnswerTime: elapsed}
	}

	correct := q.CorrectOptionIndex
	if cfg.Mode == domain.ModeTimeAttack {
		return ScoreTimeAttack(q, &correct, elapsed, bot.Score, bot.Streak)
	}
	return domain.RoundOutcome{
		ChosenOptionIndex: &correct,
		IsCorrect:         true,
		PointsAwarded:     Points(cfg.Difficulty, bot.Streak, bonus),
		NewStreak:         bot.Streak + 1,
		AnswerTime:        elapsed,
	}
}

func wrongOption(q domain.Question, rng *rand.Rand) int {
	n := len(q.Options)
	if n < 2 {
		return (q.CorrectOptionIndex + 1) % domain.OptionCount
	}
	pick := rng.Intn(n - 1)
	if pick >= q.CorrectOptionIndex {
		pick++
	}
	return pick
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
