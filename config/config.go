package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Vendor API. An empty key is NOT an error: the service starts in an
	// explicit "unconfigured" state and every boundary surfaces HTTP 503.
	VendorAPIKey  string
	VendorBaseURL string
	VendorWSURL   string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	HTTPAddr      string
	LogLevel      string

	// Comma-separated watchlist warmed by the scheduler and served by the hub.
	Watchlist string

	// Coaching rule thresholds (YAML file, see internal/coach).
	CoachRulesPath string

	// Streaming client retry budget before dropping to REST polling.
	StreamMaxRetries int
}

// Load reads configuration from a .env file (if present) and the environment.
func Load() *Config {
	// Missing .env is fine; real deployments use environment variables.
	if err := godotenv.Load(); err == nil {
		log.Printf("[config] loaded .env")
	}

	return &Config{
		VendorAPIKey:  os.Getenv("VENDOR_API_KEY"),
		VendorBaseURL: getEnv("VENDOR_BASE_URL", "https://api.polygon.io"),
		VendorWSURL:   getEnv("VENDOR_WS_URL", "wss://socket.polygon.io/stocks"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/decisions.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		Watchlist: getEnv("WATCHLIST", "SPY,QQQ"),

		CoachRulesPath: getEnv("COACH_RULES_PATH", "config/coach.yaml"),

		StreamMaxRetries: getEnvInt("STREAM_MAX_RETRIES", 5),
	}
}

// ParseWatchlist splits the watchlist into uppercase symbols.
func (c *Config) ParseWatchlist() []string {
	parts := strings.Split(c.Watchlist, ",")
	syms := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			syms = append(syms, p)
		}
	}
	return syms
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid int for %s: %q, using %d", key, v, fallback)
		return fallback
	}
	return n
}
