package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Database
	DatabaseURL   string
	MigrationsDir string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT
	JWTSecret     string
	JWTExpiration time.Duration

	// CORS
	CORSAllowedOrigins []string

	// Codeforces API
	CodeforcesAPIURL string
	ProblemCacheTTL  time.Duration

	// Judge Service
	JudgeURL     string
	JudgeTimeout time.Duration
}

func Load() (*Config, error) {
	// .env 파일 로드 (있는 경우)
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		Env:              getEnv("ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		MigrationsDir:    getEnv("MIGRATIONS_DIR", "migrations"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          0,
		JWTSecret:        getEnv("JWT_SECRET", "your-secret-key"),
		JWTExpiration:    parseDuration(getEnv("JWT_EXPIRATION", "24h"), 24*time.Hour),
		CodeforcesAPIURL: getEnv("CODEFORCES_API_URL", "https://codeforces.com/api"),
		ProblemCacheTTL:  parseDuration(getEnv("PROBLEM_CACHE_TTL", "10m"), 10*time.Minute),
		JudgeURL:         getEnv("JUDGE_URL", "http://localhost:8081"),
		JudgeTimeout:     parseDuration(getEnv("JUDGE_TIMEOUT", "60s"), 60*time.Second),
		CORSAllowedOrigins: strings.Split(
			getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"), ","),
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
