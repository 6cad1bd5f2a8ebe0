package domain

import (
	"strings"
	"time"
)

// MaxParticipants caps the roster of a room.
const MaxParticipants = 8

// OptionCount is the number of answer options every question carries.
const OptionCount = 4

// Mode selects the scoring and pacing rules of a game.
type Mode string

const (
	ModeClassic    Mode = "CLASSIC"
	ModeSurvival   Mode = "SURVIVAL"
	ModeTimeAttack Mode = "TIME_ATTACK"
)

// OpenEnded reports whether the mode keeps requesting content instead of stopping at a round count.
func (m Mode) OpenEnded() bool {
	return m == ModeSurvival || m == ModeTimeAttack
}

// ParseMode accepts the wire names case-insensitively ("time-attack" is accepted too).
func ParseMode(raw string) (Mode, bool) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), "-", "_")) {
	case string(ModeClassic):
		return ModeClassic, true
	case string(ModeSurvival):
		return ModeSurvival, true
	case string(ModeTimeAttack):
		return ModeTimeAttack, true
	}
	return "", false
}

// Difficulty is the configured base difficulty tier.
type Difficulty string

const (
	DifficultyRookie     Difficulty = "ROOKIE"
	DifficultyPro        Difficulty = "PRO"
	DifficultyAllStar    Difficulty = "ALL_STAR"
	DifficultyHallOfFame Difficulty = "HALL_OF_FAME"
)

// Difficulties lists the tiers from easiest to hardest.
var Difficulties = []Difficulty{DifficultyRookie, DifficultyPro, DifficultyAllStar, DifficultyHallOfFame}

// Tier returns the 0-based rank of the difficulty; unknown values rank as ROOKIE.
func (d Difficulty) Tier() int {
	for i, candidate := range Difficulties {
		if candidate == d {
			return i
		}
	}
	return 0
}

// ParseDifficulty accepts the wire names case-insensitively.
func ParseDifficulty(raw string) (Difficulty, bool) {
	normalized := Difficulty(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), "-", "_")))
	for _, d := range Difficulties {
		if d == normalized {
			return d, true
		}
	}
	return "", false
}

// Phase is the coarse state of a room or of a client's round engine.
type Phase string

const (
	PhaseLobby       Phase = "LOBBY"
	PhasePlaying     Phase = "PLAYING"
	PhaseRoundResult Phase = "ROUND_RESULT"
	PhaseGameOver    Phase = "GAME_OVER"
)

// GameConfig is the host-controlled configuration of a room.
type GameConfig struct {
	Topic      string     `json:"topic"`
	Difficulty Difficulty `json:"difficulty"`
	Rounds     int        `json:"rounds"`
	Mode       Mode       `json:"mode"`
}

// DefaultGameConfig is used when a client omits configuration fields.
func DefaultGameConfig() GameConfig {
	return GameConfig{
		Topic:      "General Knowledge",
		Difficulty: DifficultyPro,
		Rounds:     10,
		Mode:       ModeClassic,
	}
}

// Normalize fills zero values from the defaults.
func (c GameConfig) Normalize() GameConfig {
	def := DefaultGameConfig()
	if strings.TrimSpace(c.Topic) == "" {
		c.Topic = def.Topic
	}
	if d, ok := ParseDifficulty(string(c.Difficulty)); ok {
		c.Difficulty = d
	} else {
		c.Difficulty = def.Difficulty
	}
	if c.Rounds <= 0 {
		c.Rounds = def.Rounds
	}
	if m, ok := ParseMode(string(c.Mode)); ok {
		c.Mode = m
	} else {
		c.Mode = def.Mode
	}
	return c
}

// Participant is one seat in a room, human or simulated.
// StableID survives reconnects; TransportID is the current connection handle.
type Participant struct {
	StableID            string `json:"id"`
	TransportID         string `json:"socketId,omitempty"`
	DisplayName         string `json:"name"`
	AvatarRef           string `json:"avatar,omitempty"`
	Score               int    `json:"score"`
	Streak              int    `json:"streak"`
	CorrectAnswersCount int    `json:"correctAnswers"`
	// QuestionsAnswered counts the score reports received for this seat; a
	// rejoining client resumes at that question index.
	QuestionsAnswered int  `json:"questionsAnswered"`
	IsBot             bool `json:"isBot,omitempty"`
}

// Question models a multiple-choice question with exactly one correct option.
type Question struct {
	ID                 string     `json:"id"`
	Text               string     `json:"text"`
	Options            []string   `json:"options"`
	CorrectOptionIndex int        `json:"correctOptionIndex"`
	Category           string     `json:"category"`
	Explanation        string     `json:"explanation,omitempty"`
	DifficultyTag      Difficulty `json:"difficulty"`
}

// Valid reports whether the question can be played.
func (q Question) Valid() bool {
	return strings.TrimSpace(q.Text) != "" &&
		len(q.Options) == OptionCount &&
		q.CorrectOptionIndex >= 0 && q.CorrectOptionIndex < len(q.Options)
}

// RoundOutcome is the transient result of one participant on one question.
// ChosenOptionIndex is nil when the participant did not answer in time.
type RoundOutcome struct {
	ChosenOptionIndex *int          `json:"chosenOptionIndex"`
	IsCorrect         bool          `json:"isCorrect"`
	PointsAwarded     int           `json:"pointsAwarded"`
	NewStreak         int           `json:"newStreak"`
	AnswerTime        time.Duration `json:"answerTime,omitempty"`
}

// SessionResult is handed to the statistics sink when a local game ends.
type SessionResult struct {
	StableID       string        `json:"stableId"`
	Score          int           `json:"score"`
	CorrectCount   int           `json:"correctCount"`
	QuestionsSeen  int           `json:"questionsSeen"`
	BestAnswerTime time.Duration `json:"bestAnswerTime"`
	Topic          string        `json:"topic"`
	Mode           Mode          `json:"mode"`
	FinishedAt     time.Time     `json:"finishedAt"`
}

// RoomSnapshot is a read-only copy of a room for inspection.
type RoomSnapshot struct {
	ID              string        `json:"id"`
	HostTransportID string        `json:"hostSocketId"`
	Phase           Phase         `json:"phase"`
	Config          GameConfig    `json:"config"`
	Players         []Participant `json:"players"`
	Questions       []Question    `json:"questions,omitempty"`
}
