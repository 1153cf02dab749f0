package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultAppName         = "PocketBank"
	defaultAppEnv          = "development"
	defaultPort            = "5000"
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultAccessTokenTTL  = time.Hour
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
	defaultLockTimeout     = 3 * time.Second
	defaultConflictRetries = 3
	defaultLoginAttempts   = 5
	defaultCORSOrigins     = "http://localhost:3000"
	devJWTSecret           = "dev-only-jwt-secret"
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
	configFileEnvVar       = "CONFIG_FILE"
)

// Config captures application runtime configuration loaded from the
// environment and, optionally, a config file named by CONFIG_FILE.
type Config struct {
	AppName                string
	AppEnv                 string
	Port                   string
	LogLevel               string
	LogFormat              string
	DatabaseURL            string
	RedisURL               string
	JWTSecret              string
	RefreshSecret          string
	AccessTokenTTL         time.Duration
	RefreshTokenTTL        time.Duration
	ShutdownPeriod         time.Duration
	IdempotencyTTL         time.Duration
	LockTimeout            time.Duration
	MaxConflictRetries     int
	LoginAttemptsPerMinute int
	CORSOrigins            []string
	AutoMigrate            bool
}

// Load reads configuration values and populates a Config instance.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("APP_NAME", defaultAppName)
	v.SetDefault("APP_ENV", defaultAppEnv)
	v.SetDefault("PORT", defaultPort)
	v.SetDefault("LOG_LEVEL", defaultLogLevel)
	v.SetDefault("LOG_FORMAT", defaultLogFormat)
	v.SetDefault("MAX_CONFLICT_RETRIES", defaultConflictRetries)
	v.SetDefault("LOGIN_ATTEMPTS_PER_MINUTE", defaultLoginAttempts)
	v.SetDefault("CORS_ORIGINS", defaultCORSOrigins)
	v.SetDefault("AUTO_MIGRATE", false)

	if path := v.GetString(configFileEnvVar); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := Config{
		AppName:       v.GetString("APP_NAME"),
		AppEnv:        v.GetString("APP_ENV"),
		Port:          v.GetString("PORT"),
		LogLevel:      strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:     strings.ToLower(v.GetString("LOG_FORMAT")),
		DatabaseURL:   v.GetString("DATABASE_URL"),
		RedisURL:      v.GetString("REDIS_URL"),
		JWTSecret:     v.GetString("JWT_SECRET"),
		RefreshSecret: v.GetString("REFRESH_SECRET"),
		AutoMigrate:   v.GetBool("AUTO_MIGRATE"),
		CORSOrigins:   splitList(v.GetString("CORS_ORIGINS")),
	}

	var err error
	if cfg.MaxConflictRetries, err = intValue(v, "MAX_CONFLICT_RETRIES"); err != nil {
		return Config{}, err
	}
	if cfg.LoginAttemptsPerMinute, err = intValue(v, "LOGIN_ATTEMPTS_PER_MINUTE"); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownPeriod, err = durationValue(v, shutdownSecondsEnvVar, shutdownDurationEnvVar, defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationValue(v, idemTTLSecondsEnvVar, idemTTLDurEnvVar, defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.AccessTokenTTL, err = durationValue(v, "", "ACCESS_TOKEN_TTL", defaultAccessTokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTokenTTL, err = durationValue(v, "", "REFRESH_TOKEN_TTL", defaultRefreshTokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.LockTimeout, err = durationValue(v, "", "LOCK_TIMEOUT", defaultLockTimeout); err != nil {
		return Config{}, err
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, errors.New("DATABASE_URL must be set")
		}
		if cfg.RedisURL == "" {
			return Config{}, errors.New("REDIS_URL must be set")
		}
		if cfg.JWTSecret == "" {
			return Config{}, errors.New("JWT_SECRET must be set")
		}
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = devJWTSecret
	}
	if cfg.RefreshSecret == "" {
		cfg.RefreshSecret = cfg.JWTSecret
	}
	if cfg.LockTimeout <= 0 {
		return Config{}, errors.New("LOCK_TIMEOUT must be positive")
	}

	return cfg, nil
}

// IsDev reports whether the service runs in a development environment,
// where missing backing services fall back to in-memory stores.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// durationValue prefers an integer seconds key over a Go duration key.
func durationValue(v *viper.Viper, secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if secondsKey != "" {
		if raw := v.GetString(secondsKey); raw != "" {
			seconds, err := strconv.Atoi(raw)
			if err != nil {
				return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
			}
			return time.Duration(seconds) * time.Second, nil
		}
	}
	if raw := v.GetString(durationKey); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}

func intValue(v *viper.Viper, key string) (int, error) {
	n, err := strconv.Atoi(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
