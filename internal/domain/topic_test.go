package domain

import "testing"

func TestTopicKey(t *testing.T) {
	cases := map[string]string{
		"World History!":    "world-history",
		"  ":                DefaultTopicKey,
		"General Knowledge": DefaultTopicKey,
	}
	for in, want := range cases {
		if got := TopicKey(in); got != want {
			t.Fatalf("TopicKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGameConfigNormalize(t *testing.T) {
	cfg := GameConfig{Mode: "time-attack", Difficulty: "all_star"}.Normalize()
	if cfg.Mode != ModeTimeAttack {
		t.Fatalf("expected TIME_ATTACK, got %s", cfg.Mode)
	}
	if cfg.Difficulty != DifficultyAllStar {
		t.Fatalf("expected ALL_STAR, got %s", cfg.Difficulty)
	}
	if cfg.Rounds != 10 || cfg.Topic == "" {
		t.Fatalf("expected defaults to fill rounds and topic, got %+v", cfg)
	}
}
