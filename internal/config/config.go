// Package config reads the process configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	Port      int
	LogLevel  string
	LogFormat string

	// Auth
	TokenSecret          string
	AdminBootstrapSecret string
	BcryptCost           int
	TokenTTL             time.Duration

	// Storage
	DBDriver    string // sqlite | postgres
	DBPath      string
	DatabaseURL string

	// Sessions
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration
	CookieSecure  bool

	// Events
	AMQPURL      string
	AMQPExchange string

	// Catalog
	TwitchClientID       string
	TwitchClientSecret   string
	TwitchAppAccessToken string
	IGDBBaseURL          string
	TwitchTokenURL       string

	// Login / register throttling, per client IP
	AuthRateLimit float64
	AuthRateBurst int
}

// Load reads .env from the working directory when present, then the
// environment. Variables already set in the environment win over .env.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: reading .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the environment alone and fails fast on
// missing or malformed values.
func FromEnv() (*Config, error) {
	cfg := &Config{
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "text"),
		TokenSecret:          firstEnv("TOKEN_SECRET", "SECRET_JWT"),
		AdminBootstrapSecret: firstEnv("ADMIN_BOOTSTRAP_SECRET", "ADMIN"),
		DBDriver:             strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBPath:               getEnv("DB_PATH", "data/reviews.db"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		AMQPURL:              os.Getenv("AMQP_URL"),
		AMQPExchange:         getEnv("AMQP_EXCHANGE", "account.events"),
		TwitchClientID:       os.Getenv("TWITCH_CLIENT_ID"),
		TwitchClientSecret:   os.Getenv("TWITCH_CLIENT_SECRET"),
		TwitchAppAccessToken: os.Getenv("TWITCH_APP_ACCESS_TOKEN"),
		IGDBBaseURL:          os.Getenv("IGDB_BASE_URL"),
		TwitchTokenURL:       os.Getenv("TWITCH_TOKEN_URL"),
	}

	if cfg.TokenSecret == "" {
		return nil, fmt.Errorf("missing required env var: TOKEN_SECRET")
	}

	var err error
	if cfg.Port, err = getInt("PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PORT %d out of range", cfg.Port)
	}

	if cfg.BcryptCost, err = getInt("BCRYPT_COST", 12); err != nil {
		return nil, err
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("BCRYPT_COST %d outside [%d, %d]", cfg.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
	}

	if cfg.TokenTTL, err = getDuration("TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = getDuration("SESSION_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.CookieSecure, err = getBool("COOKIE_SECURE", false); err != nil {
		return nil, err
	}
	if cfg.AuthRateLimit, err = getFloat("AUTH_RATE_LIMIT", 5); err != nil {
		return nil, err
	}
	if cfg.AuthRateBurst, err = getInt("AUTH_RATE_BURST", 10); err != nil {
		return nil, err
	}

	switch cfg.DBDriver {
	case "sqlite":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("missing required env var: DATABASE_URL (DB_DRIVER=postgres)")
		}
	default:
		return nil, fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", cfg.DBDriver)
	}

	return cfg, nil
}

// CatalogEnabled reports whether enough Twitch credentials are set to reach IGDB.
func (c *Config) CatalogEnabled() bool {
	return c.TwitchClientID != "" && (c.TwitchClientSecret != "" || c.TwitchAppAccessToken != "")
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// firstEnv returns the first non-empty variable among keys.
func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %q: %w", key, v, err)
	}
	return n, nil
}

func getFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number for %s: %q: %w", key, v, err)
	}
	return f, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q: %w", key, v, err)
	}
	return d, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid boolean for %s: %q: %w", key, v, err)
	}
	return b, nil
}
