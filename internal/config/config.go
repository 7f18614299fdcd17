// Package config loads runtime settings. Defaults are overlaid by an
// optional YAML file (CHESSCORE_CONFIG) and then by environment variables,
// so the environment always wins.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	EnginePath       string `yaml:"engine_path"`
	EngineThreads    int    `yaml:"engine_threads"`
	EngineHashMB     int    `yaml:"engine_hash_mb"`
	EngineSkillLevel int    `yaml:"engine_skill_level"`
	EngineDepth      int    `yaml:"engine_depth"`
	MoveTimeMillis   int    `yaml:"move_time_millis"`

	// TimeControl is "none" or "minutes+increment", e.g. "5+3".
	TimeControl string `yaml:"time_control"`

	PlayerName string `yaml:"player_name"`
	EngineName string `yaml:"engine_name"`

	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`
}

func defaults() *AppConfig {
	return &AppConfig{
		EngineThreads:    1,
		EngineHashMB:     64,
		EngineSkillLevel: 20,
		MoveTimeMillis:   1000,
		TimeControl:      "none",
		PlayerName:       "player",
		EngineName:       "engine",
	}
}

func Load() (*AppConfig, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("CHESSCORE_CONFIG")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if v := strings.TrimSpace(os.Getenv("ENGINE_PATH")); v != "" {
		cfg.EnginePath = v
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_THREADS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineThreads = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_HASH_MB")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineHashMB = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_SKILL_LEVEL")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 20 {
			cfg.EngineSkillLevel = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_DEPTH")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineDepth = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("MOVE_TIME_MILLIS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MoveTimeMillis = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("TIME_CONTROL")); v != "" {
		cfg.TimeControl = v
	}
	if v := strings.TrimSpace(os.Getenv("PLAYER_NAME")); v != "" {
		cfg.PlayerName = v
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_NAME")); v != "" {
		cfg.EngineName = v
	}
	cfg.RedisURL = getenvDefault("REDIS_URL", cfg.RedisURL)
	cfg.DatabaseURL = getenvDefault("DATABASE_URL", cfg.DatabaseURL)

	if _, _, err := ParseTimeControl(cfg.TimeControl); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseTimeControl parses "minutes+increment" into durations. "none" or an
// empty string disables the clock.
func ParseTimeControl(s string) (initial, increment time.Duration, err error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "none" {
		return 0, 0, nil
	}
	base, inc, _ := strings.Cut(s, "+")
	mins, err := strconv.Atoi(strings.TrimSpace(base))
	if err != nil || mins <= 0 {
		return 0, 0, fmt.Errorf("bad time control %q: want minutes+increment", s)
	}
	incSec := 0
	if strings.TrimSpace(inc) != "" {
		incSec, err = strconv.Atoi(strings.TrimSpace(inc))
		if err != nil || incSec < 0 {
			return 0, 0, fmt.Errorf("bad time control %q: want minutes+increment", s)
		}
	}
	return time.Duration(mins) * time.Minute, time.Duration(incSec) * time.Second, nil
}

func getenvDefault(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}
