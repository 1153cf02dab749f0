package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_NAME", "APP_ENV", "PORT", "LOG_LEVEL", "LOG_FORMAT", "DATABASE_URL", "REDIS_URL",
		"JWT_SECRET", "REFRESH_SECRET", "ACCESS_TOKEN_TTL", "REFRESH_TOKEN_TTL",
		shutdownSecondsEnvVar, shutdownDurationEnvVar, idemTTLSecondsEnvVar, idemTTLDurEnvVar,
		"LOCK_TIMEOUT", "MAX_CONFLICT_RETRIES", "LOGIN_ATTEMPTS_PER_MINUTE", "CORS_ORIGINS",
		"AUTO_MIGRATE", configFileEnvVar,
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDevelopmentDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.IsDev() {
		t.Fatalf("expected development environment, got %q", cfg.AppEnv)
	}
	if cfg.Address() != ":5000" {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
	if cfg.LockTimeout != defaultLockTimeout || cfg.MaxConflictRetries != defaultConflictRetries {
		t.Fatalf("unexpected engine settings: %+v", cfg)
	}
	if cfg.JWTSecret == "" || cfg.RefreshSecret != cfg.JWTSecret {
		t.Fatal("expected development secrets to be filled in")
	}
	if !reflect.DeepEqual(cfg.CORSOrigins, []string{"http://localhost:3000"}) {
		t.Fatalf("unexpected CORS origins %v", cfg.CORSOrigins)
	}
}

func TestLoadRequiresBackingServicesOutsideDev(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}

	t.Setenv("DATABASE_URL", "postgres://bank@localhost/bank")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}

	t.Setenv("JWT_SECRET", "s3cret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.IsDev() {
		t.Fatal("production must not be treated as development")
	}
}

func TestLoadDurations(t *testing.T) {
	clearEnv(t)
	t.Setenv(shutdownSecondsEnvVar, "3")
	t.Setenv(shutdownDurationEnvVar, "1m")
	t.Setenv(idemTTLDurEnvVar, "90s")
	t.Setenv("LOCK_TIMEOUT", "750ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ShutdownPeriod != 3*time.Second {
		t.Fatalf("seconds variant should win, got %s", cfg.ShutdownPeriod)
	}
	if cfg.IdempotencyTTL != 90*time.Second {
		t.Fatalf("unexpected idempotency ttl %s", cfg.IdempotencyTTL)
	}
	if cfg.LockTimeout != 750*time.Millisecond {
		t.Fatalf("unexpected lock timeout %s", cfg.LockTimeout)
	}

	t.Setenv("LOCK_TIMEOUT", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected invalid LOCK_TIMEOUT to fail")
	}
}

func TestLoadConfigFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bank.yaml")
	contents := "port: \"9090\"\nmax_conflict_retries: 5\ncors_origins: \"https://a.example, https://b.example\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(configFileEnvVar, path)
	t.Setenv("PORT", "7070")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "7070" {
		t.Fatalf("environment should override the file, got %q", cfg.Port)
	}
	if cfg.MaxConflictRetries != 5 {
		t.Fatalf("expected retries from file, got %d", cfg.MaxConflictRetries)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.CORSOrigins)
	}
}

func TestLoadKeepsZeroConflictRetries(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_CONFLICT_RETRIES", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxConflictRetries != 0 {
		t.Fatalf("expected retries disabled, got %d", cfg.MaxConflictRetries)
	}
}
