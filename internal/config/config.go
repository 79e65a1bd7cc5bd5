package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config captures all runtime configuration derived from environment variables.
type Config struct {
	Port               string
	LogLevel           string
	DBURL              string
	JWTSecret          string
	JWTTTLMinutes      int
	RedisURL           string
	CacheTTLSecs       int
	ScoreMin           float64
	ScoreMax           float64
	ScoreRateLimit     float64
	ScoreRateBurst     int
	CORSAllowedOrigins []string
	ReadTimeoutSecs    int
	WriteTimeoutSecs   int
	IdleTimeoutSecs    int
	DBMaxConns         int
	DBMinConns         int
	DBMaxIdleSecs      int
	DBMaxLifeSecs      int
	DBConnTimeoutSecs  int
	DBStatementCache   int
}

// Load reads configuration from environment variables, applying defaults and validation.
// A .env file in the working directory is honoured when present; real environment
// variables always win over it.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:               getEnv("PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DBURL:              os.Getenv("DB_URL"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		JWTTTLMinutes:      getEnvInt("JWT_TTL_MINUTES", 60),
		RedisURL:           os.Getenv("REDIS_URL"),
		CacheTTLSecs:       getEnvInt("CACHE_TTL_SECS", 300),
		ScoreMin:           getEnvFloat("SCORE_MIN", 0),
		ScoreMax:           getEnvFloat("SCORE_MAX", 5),
		ScoreRateLimit:     getEnvFloat("SCORE_RATE_LIMIT", 5),
		ScoreRateBurst:     getEnvInt("SCORE_RATE_BURST", 10),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		ReadTimeoutSecs:    getEnvInt("SERVER_READ_TIMEOUT", 15),
		WriteTimeoutSecs:   getEnvInt("SERVER_WRITE_TIMEOUT", 15),
		IdleTimeoutSecs:    getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		DBMaxConns:         getEnvInt("DB_MAX_CONNS", 20),
		DBMinConns:         getEnvInt("DB_MIN_CONNS", 2),
		DBMaxIdleSecs:      getEnvInt("DB_MAX_CONN_IDLE_SECS", 300),
		DBMaxLifeSecs:      getEnvInt("DB_MAX_CONN_LIFETIME_SECS", 3600),
		DBConnTimeoutSecs:  getEnvInt("DB_CONN_TIMEOUT_SECS", 10),
		DBStatementCache:   getEnvInt("DB_STATEMENT_CACHE_CAPACITY", 256),
	}

	if cfg.DBURL == "" {
		return Config{}, fmt.Errorf("DB_URL is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return Config{}, fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if cfg.JWTTTLMinutes <= 0 {
		return Config{}, fmt.Errorf("JWT_TTL_MINUTES must be positive")
	}
	if cfg.CacheTTLSecs <= 0 {
		return Config{}, fmt.Errorf("CACHE_TTL_SECS must be positive")
	}
	if cfg.ScoreMin > cfg.ScoreMax {
		return Config{}, fmt.Errorf("SCORE_MIN cannot exceed SCORE_MAX")
	}
	if cfg.ScoreRateLimit <= 0 || cfg.ScoreRateBurst <= 0 {
		return Config{}, fmt.Errorf("SCORE_RATE_LIMIT and SCORE_RATE_BURST must be positive")
	}
	if cfg.DBMaxConns <= 0 {
		return Config{}, fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if cfg.DBMinConns < 0 {
		return Config{}, fmt.Errorf("DB_MIN_CONNS must be non-negative")
	}
	if cfg.DBMaxConns > 0 && cfg.DBMinConns > cfg.DBMaxConns {
		return Config{}, fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}
	if cfg.DBStatementCache < 0 {
		return Config{}, fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
