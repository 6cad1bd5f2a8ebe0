package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"trivia-arena/internal/domain"
	"trivia-arena/internal/engine"
)

// console prints engine views as plain text, once per phase change.
type console struct {
	out     io.Writer
	shown   string
	waiting bool
}

func newConsole(out io.Writer) *console {
	return &console{out: out}
}

func (c *console) render(v engine.View) {
	if v.Waiting && !c.waiting {
		fmt.Fprintln(c.out, "Fetching more questions...")
	}
	c.waiting = v.Waiting

	key := fmt.Sprintf("%s/%d", v.Phase, v.Index)
	if key == c.shown {
		return
	}
	switch v.Phase {
	case domain.PhasePlaying:
		if v.Question == nil {
			return
		}
		c.question(v)
	case domain.PhaseRoundResult:
		if v.Question == nil || v.Outcome == nil {
			return
		}
		c.result(v)
	case domain.PhaseGameOver:
		c.gameOver(v)
	default:
		return
	}
	c.shown = key
}

func (c *console) question(v engine.View) {
	q := v.Question
	fmt.Fprintf(c.out, "\nQuestion %d", v.Index+1)
	if v.Config.Mode == domain.ModeClassic {
		fmt.Fprintf(c.out, "/%d", v.Config.Rounds)
	}
	fmt.Fprintf(c.out, " [%s, %s]", q.Category, q.DifficultyTag)
	if v.Config.Mode == domain.ModeTimeAttack {
		fmt.Fprintf(c.out, " %s left", v.TimeLeft.Round(time.Second))
	}
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, q.Text)
	for i, opt := range q.Options {
		fmt.Fprintf(c.out, "  %d) %s\n", i+1, opt)
	}
}

func (c *console) result(v engine.View) {
	q, o := v.Question, v.Outcome
	switch {
	case o.IsCorrect:
		fmt.Fprintf(c.out, "Correct! +%d points (streak %d)\n", o.PointsAwarded, o.NewStreak)
	case o.ChosenOptionIndex == nil:
		fmt.Fprintf(c.out, "Time's up. The answer was %s.\n", q.Options[q.CorrectOptionIndex])
	default:
		fmt.Fprintf(c.out, "Wrong. The answer was %s.\n", q.Options[q.CorrectOptionIndex])
	}
	if q.Explanation != "" {
		fmt.Fprintln(c.out, q.Explanation)
	}
	c.standings(v)
}

func (c *console) gameOver(v engine.View) {
	fmt.Fprintln(c.out, "\nGame over!")
	fmt.Fprintf(c.out, "You answered %d of %d correctly.\n", v.CorrectCount, v.QuestionsSeen)
	c.standings(v)
}

func (c *console) standings(v engine.View) {
	players := append([]domain.Participant(nil), v.Players...)
	sort.SliceStable(players, func(i, j int) bool { return players[i].Score > players[j].Score })
	for i, p := range players {
		marker := " "
		if p.StableID == v.LocalID {
			marker = "*"
		}
		name := p.DisplayName
		if p.IsBot {
			name += " (bot)"
		}
		fmt.Fprintf(c.out, "%s%d. %-20s %6d\n", marker, i+1, name, p.Score)
	}
}

func (c *console) roster(players []domain.Participant) {
	names := make([]string, 0, len(players))
	for _, p := range players {
		names = append(names, p.DisplayName)
	}
	fmt.Fprintf(c.out, "Players (%d/%d): %s\n", len(players), domain.MaxParticipants, strings.Join(names, ", "))
}
