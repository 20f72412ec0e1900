// Package config reads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the server reads at start-up.
type Config struct {
	Addr    string
	DBPath  string
	Env     string
	Version string

	Timezone string
	Location *time.Location

	CSRFKey   string
	JWTSecret string

	AdminEmail    string
	AdminPassword string
	// SalonPIN seeds the PIN of each location on first start.
	SalonPIN string

	ResendKey string
	EmailFrom string
	ReplyTo   string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	RedisAddr     string
	RedisPassword string

	OutboxInterval    time.Duration
	ReminderInterval  time.Duration
	SalonTimeout      time.Duration
	SlowQuery         time.Duration
	SlowRequest       time.Duration
	BookingLockTTL    time.Duration
	BookingLockWait   time.Duration
	PresignExpiry     time.Duration
	LoginRateLimit    int
	UnlockRateLimit   int
	CampaignBatchSize int

	LogLevel  string
	LogFormat string
}

// Errors returned by Validate.
var (
	ErrMissingCSRFKey   = errors.New("CLINIC_CSRF_KEY must be set in production")
	ErrShortCSRFKey     = errors.New("CLINIC_CSRF_KEY must be 32 bytes")
	ErrMissingJWTSecret = errors.New("CLINIC_JWT_SECRET must be set in production")
	ErrAdminPassword    = errors.New("CLINIC_ADMIN_PASSWORD must be set in production")
)

// Load reads an optional .env file and then the environment.
// PRE: none
// POST: Returns a validated Config, or the first problem found
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function, applying defaults.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key, fallback string) string {
		return envOrDefault(getenv, key, fallback)
	}
	var perr error
	dur := func(key string, fallback time.Duration) time.Duration {
		v := getenv(key)
		if v == "" {
			return fallback
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			perr = errors.Join(perr, fmt.Errorf("%s: %w", key, err))
			return fallback
		}
		return d
	}
	millis := func(key string, fallback int) time.Duration {
		return time.Duration(intOr(getenv, key, fallback, &perr)) * time.Millisecond
	}

	cfg := Config{
		Addr:    get("CLINIC_ADDR", ":8080"),
		DBPath:  get("CLINIC_DB_PATH", "clinic.db"),
		Env:     get("CLINIC_ENV", "development"),
		Version: get("CLINIC_VERSION", "dev"),

		Timezone: get("CLINIC_TIMEZONE", "Europe/Berlin"),

		CSRFKey:   getenv("CLINIC_CSRF_KEY"),
		JWTSecret: getenv("CLINIC_JWT_SECRET"),

		AdminEmail:    get("CLINIC_ADMIN_EMAIL", "admin@clinic.local"),
		AdminPassword: getenv("CLINIC_ADMIN_PASSWORD"),
		SalonPIN:      get("CLINIC_SALON_PIN", "1234"),

		ResendKey: getenv("CLINIC_RESEND_KEY"),
		EmailFrom: get("CLINIC_EMAIL_FROM", "Clinic <noreply@clinic.local>"),
		ReplyTo:   get("CLINIC_REPLY_TO", "info@clinic.local"),

		MinioEndpoint:  getenv("CLINIC_MINIO_ENDPOINT"),
		MinioAccessKey: getenv("CLINIC_MINIO_ACCESS_KEY"),
		MinioSecretKey: getenv("CLINIC_MINIO_SECRET_KEY"),
		MinioBucket:    get("CLINIC_MINIO_BUCKET", "patient-files"),
		MinioUseSSL:    boolOr(getenv, "CLINIC_MINIO_SSL", true),

		RedisAddr:     getenv("CLINIC_REDIS_ADDR"),
		RedisPassword: getenv("CLINIC_REDIS_PASSWORD"),

		OutboxInterval:    dur("CLINIC_OUTBOX_INTERVAL", time.Minute),
		ReminderInterval:  dur("CLINIC_REMINDER_INTERVAL", 5*time.Minute),
		SalonTimeout:      dur("CLINIC_SALON_TIMEOUT", 30*time.Minute),
		SlowQuery:         millis("CLINIC_SLOW_QUERY_MS", 50),
		SlowRequest:       millis("CLINIC_SLOW_REQUEST_MS", 500),
		BookingLockTTL:    dur("CLINIC_BOOKING_LOCK_TTL", 10*time.Second),
		BookingLockWait:   dur("CLINIC_BOOKING_LOCK_WAIT", 3*time.Second),
		PresignExpiry:     dur("CLINIC_PRESIGN_EXPIRY", 15*time.Minute),
		LoginRateLimit:    intOr(getenv, "CLINIC_LOGIN_RATE_PER_MIN", 10, &perr),
		UnlockRateLimit:   intOr(getenv, "CLINIC_UNLOCK_RATE_PER_MIN", 5, &perr),
		CampaignBatchSize: intOr(getenv, "CLINIC_CAMPAIGN_BATCH_SIZE", 50, &perr),

		LogLevel:  strings.ToLower(get("CLINIC_LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(get("CLINIC_LOG_FORMAT", "text")),
	}
	if perr != nil {
		return Config{}, perr
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return Config{}, fmt.Errorf("CLINIC_TIMEZONE: %w", err)
	}
	cfg.Location = loc

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsProduction reports whether the server runs with production settings.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate enforces the secrets production cannot run without.
func (c Config) Validate() error {
	if c.CSRFKey != "" && len(c.CSRFKey) != 32 {
		return ErrShortCSRFKey
	}
	if !c.IsProduction() {
		return nil
	}
	if c.CSRFKey == "" {
		return ErrMissingCSRFKey
	}
	if c.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	if c.AdminPassword == "" {
		return ErrAdminPassword
	}
	return nil
}

// SlogLevel maps LogLevel onto slog.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func envOrDefault(getenv func(string) string, key, fallback string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return fallback
}

func intOr(getenv func(string) string, key string, fallback int, perr *error) int {
	v := getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*perr = errors.Join(*perr, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func boolOr(getenv func(string) string, key string, fallback bool) bool {
	v := getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
