package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"trivia-arena/internal/domain"
)

func TestSuccessProbabilityClamped(t *testing.T) {
	categories := []string{"Science", "History", "Cooking", ""}
	scores := []int{0, 100, 400, 401, 1000, 5000}
	for _, p := range Personas {
		for _, cat := range categories {
			for _, d := range domain.Difficulties {
				for _, bot := range scores {
					for _, human := range scores {
						for _, roundsLeft := range []int{-1, 0, 2, 9} {
							for _, jitter := range []float64{-maxJitter, 0, maxJitter} {
								for _, swing := range []float64{-maxClutchSwing, 0, maxClutchSwing} {
									prob := successProbability(p, BotSituation{
										Category:           cat,
										QuestionDifficulty: d,
										BotScore:           bot,
										HumanScore:         human,
										RoundsLeft:         roundsLeft,
									}, jitter, swing)
									require.GreaterOrEqual(t, prob, minBotProbability)
									require.LessOrEqual(t, prob, maxBotProbability)
								}
							}
						}
					}
				}
			}
		}
	}

	extreme := Persona{ID: "x", BaseAccuracy: 5, Specialties: []string{"science"}}
	require.Equal(t, maxBotProbability, successProbability(extreme, BotSituation{Category: "science"}, 0, 0))
	hopeless := Persona{ID: "y", BaseAccuracy: -5}
	require.Equal(t, minBotProbability, successProbability(hopeless, BotSituation{Category: "art"}, 0, 0))
}

func TestSuccessProbabilityTerms(t *testing.T) {
	p := Persona{ID: "p", BaseAccuracy: 0.5, Specialties: []string{"history"}}

	require.InDelta(t, 0.75, successProbability(p, BotSituation{Category: "World History"}, 0, 0), 1e-9)
	require.InDelta(t, 0.35, successProbability(p, BotSituation{Category: "Art", QuestionDifficulty: domain.DifficultyRookie}, 0, 0), 1e-9)
	require.InDelta(t, 0.25, successProbability(p, BotSituation{Category: "Art", QuestionDifficulty: domain.DifficultyHallOfFame}, 0, 0), 1e-9)

	// rubber band
	require.InDelta(t, 0.90, successProbability(p, BotSituation{Category: "history", HumanScore: 500, RoundsLeft: -1}, 0, 0), 1e-9)
	require.InDelta(t, 0.65, successProbability(p, BotSituation{Category: "history", BotScore: 500, RoundsLeft: -1}, 0, 0), 1e-9)

	// clutch swing only in the final stretch of a close game
	require.InDelta(t, 0.85, successProbability(p, BotSituation{Category: "history", RoundsLeft: 1}, 0, 0.10), 1e-9)
	require.InDelta(t, 0.75, successProbability(p, BotSituation{Category: "history", RoundsLeft: 5}, 0, 0.10), 1e-9)
	require.InDelta(t, 0.90, successProbability(p, BotSituation{Category: "history", HumanScore: 401, RoundsLeft: 1}, 0, 0.10), 1e-9)
}

func TestBonusBands(t *testing.T) {
	fast := Persona{Speed: SpeedFast}
	slow := Persona{Speed: SpeedSlow, Specialties: []string{"music"}}
	balanced := Persona{Speed: SpeedBalanced, Specialties: []string{"music"}}

	lo, hi := fast.bonusBand("anything")
	require.Equal(t, []int{35, 50}, []int{lo, hi})
	lo, hi = slow.bonusBand("art")
	require.Equal(t, []int{5, 25}, []int{lo, hi})
	lo, hi = slow.bonusBand("Music")
	require.Equal(t, []int{20, 40}, []int{lo, hi})
	lo, hi = balanced.bonusBand("music")
	require.Equal(t, []int{35, 50}, []int{lo, hi})
}

func TestSimulateBot(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	q := domain.Question{ID: "q", Text: "?", Options: []string{"a", "b", "c", "d"}, CorrectOptionIndex: 2, Category: "science"}
	persona := Personas[0]
	bot := Lineup(1)[0]
	cfg := domain.GameConfig{Difficulty: domain.DifficultyPro, Mode: domain.ModeClassic}

	for i := 0; i < 200; i++ {
		out := simulateBot(persona, bot, q, BotSituation{Category: q.Category, RoundsLeft: -1}, cfg, rng)
		require.NotNil(t, out.ChosenOptionIndex)
		if out.IsCorrect {
			require.Equal(t, q.CorrectOptionIndex, *out.ChosenOptionIndex)
			require.GreaterOrEqual(t, out.PointsAwarded, Points(cfg.Difficulty, 0, 35))
			require.LessOrEqual(t, out.PointsAwarded, Points(cfg.Difficulty, 0, 50))
			require.Equal(t, 1, out.NewStreak)
		} else {
			require.NotEqual(t, q.CorrectOptionIndex, *out.ChosenOptionIndex)
			require.Zero(t, out.PointsAwarded)
		}
	}

	cfg.Mode = domain.ModeTimeAttack
	for i := 0; i < 50; i++ {
		out := simulateBot(persona, bot, q, BotSituation{Category: q.Category, RoundsLeft: -1}, cfg, rng)
		if out.IsCorrect {
			require.Equal(t, 1, out.PointsAwarded)
		} else {
			require.Zero(t, out.PointsAwarded, "bot at zero must not lose points")
		}
	}
}

func TestLineup(t *testing.T) {
	require.Empty(t, Lineup(0))
	seats := Lineup(10)
	require.Len(t, seats, len(Personas))
	for _, s := range seats {
		require.True(t, s.IsBot)
		_, ok := personaByID(s.StableID)
		require.True(t, ok)
	}
}

func TestScoreMarginsFollowMode(t *testing.T) {
	p := Persona{ID: "p", BaseAccuracy: 0.5, Specialties: []string{"history"}}
	ta := BotSituation{Category: "history", Mode: domain.ModeTimeAttack, RoundsLeft: -1}

	// a three answer lead is a runaway on the Time-Attack scale
	trailing := ta
	trailing.HumanScore = 3
	require.InDelta(t, 0.90, successProbability(p, trailing, 0, 0), 1e-9)
	leading := ta
	leading.BotScore = 3
	require.InDelta(t, 0.65, successProbability(p, leading, 0, 0), 1e-9)

	// the same gap is noise in a classic game
	classic := trailing
	classic.Mode = domain.ModeClassic
	require.InDelta(t, 0.75, successProbability(p, classic, 0, 0), 1e-9)

	// the clutch swing needs a gap of at most one answer
	tight := ta
	tight.RoundsLeft, tight.HumanScore = 1, 1
	require.InDelta(t, 0.85, successProbability(p, tight, 0, 0.10), 1e-9)
	tight.HumanScore = 2
	require.InDelta(t, 0.75, successProbability(p, tight, 0, 0.10), 1e-9)
}
