package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries the infra wiring read from the environment. Engine tunables
// live in game.Settings; only deployment concerns belong here.
type Config struct {
	PostgresURL    string
	RedisAddr      string
	RedisPassword  string
	JWTKey         string
	AllowedOrigins []string
	GinMode        string
	ListenAddr     string

	// DistributedTimers switches room deadlines from in-process timers to
	// the Redis-backed task queue, for multi-node deployments.
	DistributedTimers bool

	// RoundDuration is the Draw & Guess per-round budget.
	RoundDuration time.Duration
}

// Load reads the environment, honoring a local .env file when present.
func Load() (Config, error) {
	// Missing .env is the normal case in deployed environments.
	_ = godotenv.Load()

	cfg := Config{
		RedisAddr:     getenvDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		GinMode:       os.Getenv("GIN_MODE"),
		ListenAddr:    getenvDefault("LISTEN_ADDR", ":5000"),
		RoundDuration: 90 * time.Second,
	}

	var ok bool
	if cfg.PostgresURL, ok = os.LookupEnv("POSTGRES_URL"); !ok {
		return Config{}, fmt.Errorf("missing POSTGRES_URL")
	}
	if cfg.JWTKey, ok = os.LookupEnv("JWT_KEY"); !ok {
		return Config{}, fmt.Errorf("missing JWT_KEY")
	}

	origins, ok := os.LookupEnv("ALLOWED_ORIGINS")
	if !ok {
		return Config{}, fmt.Errorf("missing ALLOWED_ORIGINS")
	}
	cfg.AllowedOrigins = strings.Split(origins, ",")

	cfg.DistributedTimers = os.Getenv("DISTRIBUTED_TIMERS") == "true"

	if raw, ok := os.LookupEnv("ROUND_DURATION"); ok {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("bad ROUND_DURATION: %w", err)
		}
		cfg.RoundDuration = d
	}

	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
