package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. TRIVIA_REDIS_ADDR.
const EnvPrefix = "TRIVIA_"

type Config struct {
	Server struct {
		Port string `yaml:"port" env:"PORT"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Format string `yaml:"format" env:"LOG_FORMAT"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"REDIS_DB"`
		TTL      string `yaml:"ttl" env:"REDIS_TTL"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url" env:"POSTGRES_URL"`
	} `yaml:"postgres"`
	Rooms struct {
		CodeLength      int    `yaml:"code_length" env:"ROOMS_CODE_LENGTH"`
		RefreshInterval string `yaml:"refresh_interval" env:"ROOMS_REFRESH_INTERVAL"`
	} `yaml:"rooms"`
	Content struct {
		APIKey    string `yaml:"api_key" env:"CONTENT_API_KEY"`
		APIURL    string `yaml:"api_url" env:"CONTENT_API_URL"`
		Model     string `yaml:"model" env:"CONTENT_MODEL"`
		Timeout   string `yaml:"timeout" env:"CONTENT_TIMEOUT"`
		BackupTTL string `yaml:"backup_ttl" env:"CONTENT_BACKUP_TTL"`
	} `yaml:"content"`
	Game struct {
		QuestionTime       string `yaml:"question_time" env:"GAME_QUESTION_TIME"`
		TimeAttackDuration string `yaml:"time_attack_duration" env:"GAME_TIME_ATTACK_DURATION"`
		ClassicReveal      string `yaml:"classic_reveal" env:"GAME_CLASSIC_REVEAL"`
		BriskReveal        string `yaml:"brisk_reveal" env:"GAME_BRISK_REVEAL"`
		Bots               int    `yaml:"bots" env:"GAME_BOTS"`
	} `yaml:"game"`
}

// Load reads YAML config from path, then applies TRIVIA_* environment overrides.
// A missing file is not an error; every field has a usable zero value.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
