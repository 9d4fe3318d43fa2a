package config

import (
	"testing"
	"time"
)

func TestLoad_RequiresDatabaseAndSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "secret")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/placement")
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/placement")
	t.Setenv("JWT_SECRET", "secret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cfg.HTTPPort != "8080" || cfg.OTPTTL != 2*time.Minute || cfg.SMTPEnabled() {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/placement")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("OTP_TTL", "90s")
	t.Setenv("DRIVE_CACHE_SIZE", "7")
	t.Setenv("MIGRATE_ON_START", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.test, ,https://b.test")
	t.Setenv("SMTP_HOST", "smtp.campus.test")
	t.Setenv("REQUEST_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cfg.OTPTTL != 90*time.Second || cfg.DriveCacheSize != 7 || cfg.MigrateOnStart {
		t.Fatalf("unexpected overrides %+v", cfg)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.test" {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
	if !cfg.SMTPEnabled() || cfg.RequestTimeout != 10*time.Second {
		t.Fatalf("unexpected smtp/timeout %+v", cfg)
	}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "UTC" {
		t.Fatalf("expected UTC location, got %v (%v)", loc, err)
	}
}

func TestLoad_InvalidTimezone(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/placement")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("TIMEZONE", "Mars/Olympus")
	if _, err := Load(); err == nil {
		t.Fatal("expected timezone error")
	}
}
