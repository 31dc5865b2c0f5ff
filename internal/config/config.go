// Package config loads service configuration from an optional YAML file with
// environment variables taking precedence. Everything has a usable default so
// the service starts with no configuration at all (in-memory store, local
// broker).
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr               string  `yaml:"addr"`
	DatabaseURL        string  `yaml:"databaseUrl"`
	RedisURL           string  `yaml:"redisUrl"`
	AuthToken          string  `yaml:"authToken"`
	SolveBudgetMs      int64   `yaml:"solveBudgetMs"`
	SolveRatePerSec    float64 `yaml:"solveRatePerSec"`
	SolveRateBurst     int     `yaml:"solveRateBurst"`
	WebhookMaxAttempts int     `yaml:"webhookMaxAttempts"`
}

func Default() Config {
	return Config{
		Addr:               ":8080",
		SolveBudgetMs:      1000,
		SolveRatePerSec:    2,
		SolveRateBurst:     4,
		WebhookMaxAttempts: 10,
	}
}

// Load reads the YAML file at path (skipped when path is empty or the file
// does not exist) and then applies environment overrides.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return c, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &c); err != nil {
				return c, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}
	c.applyEnv()
	if c.SolveBudgetMs <= 0 {
		c.SolveBudgetMs = Default().SolveBudgetMs
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Addr = ":" + v
	}
	if v := os.Getenv("ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv("AUTH_TOKEN"); v != "" {
		c.AuthToken = v
	}
	if v := os.Getenv("SOLVE_BUDGET_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.SolveBudgetMs = n
		}
	}
	if v := os.Getenv("SOLVE_RATE_PER_SEC"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.SolveRatePerSec = f
		}
	}
	if v := os.Getenv("SOLVE_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.SolveRateBurst = n
		}
	}
	if v := os.Getenv("WEBHOOK_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.WebhookMaxAttempts = n
		}
	}
}
