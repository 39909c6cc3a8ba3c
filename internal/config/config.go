package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, read from the environment once at
// startup. Only AuthToken is mandatory; everything else has a default or
// degrades a capability when absent (see cmd/server).
type Config struct {
	Port      string
	AuthToken string
	OwnerID   string

	DatabaseURL string
	RedisAddr   string

	SMTPHost       string
	SMTPPort       int
	SenderEmail    string
	SenderPassword string
	ResendAPIKey   string

	PriceCheckHours     int
	FreeGamesCheckHours int
	DealsDigestTime     string // "HH:MM" local time
	CountryCode         string
}

// Load reads .env (if present) and builds the Config. It returns an error
// only for unrecoverable problems: missing credentials or unparseable values.
func Load() (*Config, error) {
	// A missing .env file is fine; the process environment still applies.
	_ = godotenv.Load(".env")

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		AuthToken:       os.Getenv("AUTH_TOKEN"),
		OwnerID:         os.Getenv("OWNER_ID"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		SMTPHost:        getEnv("SMTP_HOST", "smtp.gmail.com"),
		SenderEmail:     os.Getenv("SENDER_EMAIL"),
		SenderPassword:  os.Getenv("SENDER_PASSWORD"),
		ResendAPIKey:    os.Getenv("RESEND_API_KEY"),
		DealsDigestTime: getEnv("DEALS_DIGEST_TIME", "22:30"),
		CountryCode:     getEnv("COUNTRY_CODE", "IN"),
	}

	if cfg.AuthToken == "" {
		return nil, fmt.Errorf("AUTH_TOKEN environment variable is not set")
	}

	var err error
	if cfg.SMTPPort, err = getEnvInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	if cfg.PriceCheckHours, err = getEnvInt("PRICE_CHECK_HOURS", 12); err != nil {
		return nil, err
	}
	if cfg.FreeGamesCheckHours, err = getEnvInt("FREE_GAMES_CHECK_HOURS", 6); err != nil {
		return nil, err
	}
	// A non-positive interval would collapse the @every cron spec to
	// one-second polling of the storefront APIs.
	if cfg.PriceCheckHours <= 0 {
		return nil, fmt.Errorf("PRICE_CHECK_HOURS must be positive, got %d", cfg.PriceCheckHours)
	}
	if cfg.FreeGamesCheckHours <= 0 {
		return nil, fmt.Errorf("FREE_GAMES_CHECK_HOURS must be positive, got %d", cfg.FreeGamesCheckHours)
	}

	if _, _, err := ParseClock(cfg.DealsDigestTime); err != nil {
		return nil, fmt.Errorf("invalid DEALS_DIGEST_TIME %q: %w", cfg.DealsDigestTime, err)
	}

	return cfg, nil
}

// ParseClock splits an "HH:MM" string into hour and minute.
func ParseClock(v string) (hour, minute int, err error) {
	if _, err := fmt.Sscanf(v, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, err
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("out of range")
	}
	return hour, minute, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	return n, nil
}
