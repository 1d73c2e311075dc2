package config

import (
	"os"
	"strconv"
	"time"
)

const (
	// ReadTimeout and WriteTimeout bound plain HTTP requests; websocket
	// connections are hijacked before they apply.
	ReadTimeout  = 10 * time.Second
	WriteTimeout = 10 * time.Second

	// TokenTTL is the lifetime of issued access tokens.
	TokenTTL = 72 * time.Hour
)

// Config holds the process configuration, read from the environment.
type Config struct {
	Addr          string
	PostgresDSN   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	JWTSecret     string
	TelegramToken string
}

// Load reads configuration from the environment, falling back to local
// development defaults. TELEGRAM_BOT_TOKEN is optional: without it the external
// alert sink is disabled.
func Load() Config {
	return Config{
		Addr:          getenv("ADDR", ":8080"),
		PostgresDSN:   getenv("POSTGRES_DSN", "host=localhost user=user password=password dbname=pairchat port=5432 sslmode=disable"),
		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getenvInt("REDIS_DB", 0),
		JWTSecret:     getenv("JWT_SECRET", "dev-secret-change-me"),
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
