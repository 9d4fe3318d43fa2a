package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort           string
	PostgresDSN        string
	MigrateOnStart     bool
	JWTSecret          string
	JWTIssuer          string
	RedisURL           string
	LogLevel           string
	LogFormat          string
	Timezone           string
	OTPTTL             time.Duration
	SMTPHost           string
	SMTPPort           int
	SMTPUsername       string
	SMTPPassword       string
	MailFrom           string
	SignatureDir       string
	DriveCacheSize     int
	DriveCacheTTL      time.Duration
	CORSAllowedOrigins []string
	ApplyRateLimit     int
	OTPRateLimit       int
	ConsentIPRateLimit int
	RateLimitWindow    time.Duration
	DBMaxOpenConns     int
	DBMaxIdleConns     int
	DBConnMaxIdle      time.Duration
	DBConnMaxLife      time.Duration
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
}

// Load reads the environment, after merging an optional .env file that never
// overrides variables already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		PostgresDSN:        getEnv("DATABASE_URL", ""),
		MigrateOnStart:     getBool("MIGRATE_ON_START", true),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		JWTIssuer:          getEnv("JWT_ISSUER", ""),
		RedisURL:           getEnv("REDIS_URL", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		Timezone:           getEnv("TIMEZONE", "Asia/Kolkata"),
		OTPTTL:             getDuration("OTP_TTL", 2*time.Minute),
		SMTPHost:           getEnv("SMTP_HOST", ""),
		SMTPPort:           getInt("SMTP_PORT", 587),
		SMTPUsername:       getEnv("SMTP_USERNAME", ""),
		SMTPPassword:       getEnv("SMTP_PASSWORD", ""),
		MailFrom:           getEnv("MAIL_FROM", "placements@localhost"),
		SignatureDir:       getEnv("SIGNATURE_DIR", "./data/signatures"),
		DriveCacheSize:     getInt("DRIVE_CACHE_SIZE", 512),
		DriveCacheTTL:      getDuration("DRIVE_CACHE_TTL", 30*time.Second),
		CORSAllowedOrigins: getList("CORS_ALLOWED_ORIGINS"),
		ApplyRateLimit:     getInt("APPLY_RATE_LIMIT", 5),
		OTPRateLimit:       getInt("OTP_RATE_LIMIT", 10),
		ConsentIPRateLimit: getInt("CONSENT_IP_RATE_LIMIT", 60),
		RateLimitWindow:    getDuration("RATE_LIMIT_WINDOW", time.Minute),
		DBMaxOpenConns:     getInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:     getInt("DB_MAX_IDLE_CONNS", 10),
		DBConnMaxIdle:      getDuration("DB_CONN_MAX_IDLE", 5*time.Minute),
		DBConnMaxLife:      getDuration("DB_CONN_MAX_LIFE", 30*time.Minute),
		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 10*time.Second),
		ShutdownTimeout:    getDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
	}

	if cfg.PostgresDSN == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if _, err := cfg.Location(); err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}
	return cfg, nil
}

// Location is the campus time zone used for application deadlines.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getList(key string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
