package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: "9090"
redis:
  addr: "localhost:6379"
  ttl: "30m"
game:
  question_time: "20s"
  bots: 2
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TRIVIA_REDIS_ADDR", "redis:6380")
	t.Setenv("TRIVIA_GAME_BOTS", "4")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("expected yaml port, got %q", cfg.Server.Port)
	}
	if cfg.Redis.Addr != "redis:6380" || cfg.Game.Bots != 4 {
		t.Fatalf("expected env overrides, got addr=%q bots=%d", cfg.Redis.Addr, cfg.Game.Bots)
	}
	if got := TTLDuration(cfg.Game.QuestionTime, time.Second); got != 20*time.Second {
		t.Fatalf("expected 20s, got %s", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("TRIVIA_PORT", "7000")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}
	if cfg.Server.Port != "7000" {
		t.Fatalf("expected env port, got %q", cfg.Server.Port)
	}
}

func TestTTLDuration(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %s", got)
	}
	if got := TTLDuration("garbage", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %s", got)
	}
	if got := TTLDuration("90s", time.Minute); got != 90*time.Second {
		t.Fatalf("expected 90s, got %s", got)
	}
}
