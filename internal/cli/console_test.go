package cli

import (
	"bytes"
	"strings"
	"testing"

	"trivia-arena/internal/domain"
	"trivia-arena/internal/engine"
)

func sampleView(phase domain.Phase) engine.View {
	q := domain.Question{
		ID:                 "q1",
		Text:               "What is the capital of Canada?",
		Options:            []string{"Toronto", "Ottawa", "Vancouver", "Montreal"},
		CorrectOptionIndex: 1,
		Category:           "Geography",
		DifficultyTag:      domain.DifficultyPro,
	}
	return engine.View{
		Phase:    phase,
		Config:   domain.DefaultGameConfig(),
		LocalID:  "h1",
		Question: &q,
		Players: []domain.Participant{
			{StableID: "bot-1", DisplayName: "Quizbot", Score: 300, IsBot: true},
			{StableID: "h1", DisplayName: "alice", Score: 120},
		},
	}
}

func TestConsolePrintsEachPhaseOnce(t *testing.T) {
	var buf bytes.Buffer
	c := newConsole(&buf)

	v := sampleView(domain.PhasePlaying)
	c.render(v)
	c.render(v)
	if n := strings.Count(buf.String(), "What is the capital of Canada?"); n != 1 {
		t.Fatalf("expected question printed once, got %d:\n%s", n, buf.String())
	}
	if !strings.Contains(buf.String(), "2) Ottawa") {
		t.Fatalf("expected numbered options:\n%s", buf.String())
	}

	chosen := 0
	v = sampleView(domain.PhaseRoundResult)
	v.Outcome = &domain.RoundOutcome{ChosenOptionIndex: &chosen}
	c.render(v)
	out := buf.String()
	if !strings.Contains(out, "Wrong. The answer was Ottawa.") {
		t.Fatalf("expected reveal:\n%s", out)
	}
	if strings.Index(out, "Quizbot (bot)") > strings.Index(out, "*2. alice") {
		t.Fatalf("expected standings sorted by score:\n%s", out)
	}
}

func TestConsoleWaitingAndGameOver(t *testing.T) {
	var buf bytes.Buffer
	c := newConsole(&buf)

	v := sampleView(domain.PhaseRoundResult)
	v.Waiting = true
	v.Outcome = &domain.RoundOutcome{IsCorrect: true, PointsAwarded: 150, NewStreak: 1}
	c.render(v)
	c.render(v)
	if n := strings.Count(buf.String(), "Fetching more questions"); n != 1 {
		t.Fatalf("expected one waiting notice, got %d", n)
	}
	if !strings.Contains(buf.String(), "Correct! +150 points") {
		t.Fatalf("expected outcome:\n%s", buf.String())
	}

	v = sampleView(domain.PhaseGameOver)
	v.CorrectCount, v.QuestionsSeen = 3, 5
	c.render(v)
	if !strings.Contains(buf.String(), "You answered 3 of 5 correctly.") {
		t.Fatalf("expected summary:\n%s", buf.String())
	}
}

func TestPlayOptionsGameConfig(t *testing.T) {
	game, err := playOptions{mode: "time-attack", difficulty: "hall-of-fame", rounds: 4}.gameConfig()
	if err != nil {
		t.Fatalf("game config: %v", err)
	}
	if game.Mode != domain.ModeTimeAttack || game.Difficulty != domain.DifficultyHallOfFame || game.Rounds != 4 {
		t.Fatalf("unexpected config %+v", game)
	}
	if game.Topic != domain.DefaultGameConfig().Topic {
		t.Fatalf("expected default topic, got %q", game.Topic)
	}
	if _, err := (playOptions{mode: "blitz"}).gameConfig(); err == nil {
		t.Fatalf("expected unknown mode error")
	}
	if _, err := (playOptions{difficulty: "legendary"}).gameConfig(); err == nil {
		t.Fatalf("expected unknown difficulty error")
	}
}

func TestAnsweredByReadsReplayedSeat(t *testing.T) {
	roster := []domain.Participant{
		{StableID: "p2", DisplayName: "bob", QuestionsAnswered: 3},
		{StableID: "h1", DisplayName: "alice", QuestionsAnswered: 1},
	}
	if got := answeredBy(roster, "h1"); got != 1 {
		t.Fatalf("expected alice to resume at 1, got %d", got)
	}
	if got := answeredBy(roster, "p9"); got != 0 {
		t.Fatalf("expected a fresh seat to start at 0, got %d", got)
	}
}
