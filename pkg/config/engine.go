package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// EngineConfig holds runtime configuration for the task engine and its tools.
type EngineConfig struct {
	Environment        string        `toml:"environment"`
	DatabaseURL        string        `toml:"database_url"`
	MigrationsDir      string        `toml:"migrations_dir"`
	JWTSecret          string        `toml:"jwt_secret"`
	LogLevel           string        `toml:"log_level"`
	LogFile            string        `toml:"log_file"`
	InviteTTL          time.Duration `toml:"-"`
	InviteCodeBytes    int           `toml:"invite_code_bytes"`
	InviteAttemptLimit int           `toml:"invite_attempt_limit"`
	InviteAttemptSpan  time.Duration `toml:"-"`
	RateLimitRedisAddr string        `toml:"rate_limit_redis_addr"`
	RateLimitRedisPass string        `toml:"rate_limit_redis_password"`
	RateLimitRedisDB   int           `toml:"rate_limit_redis_db"`
}

// fileConfig mirrors EngineConfig with durations as strings.
type fileConfig struct {
	EngineConfig
	InviteTTL         string `toml:"invite_ttl"`
	InviteAttemptSpan string `toml:"invite_attempt_window"`
}

// LoadEngineConfig reads an optional .env file, then an optional TOML file
// named by TASKFLOW_CONFIG, then the environment. Later sources win.
func LoadEngineConfig() (EngineConfig, error) {
	if err := godotenv.Load(GetString("TASKFLOW_ENV_FILE", ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return EngineConfig{}, fmt.Errorf("load env file: %w", err)
	}
	cfg := defaultEngineConfig()
	if path := GetString("TASKFLOW_CONFIG", ""); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return EngineConfig{}, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func defaultEngineConfig() EngineConfig {
	return EngineConfig{
		Environment:        "development",
		DatabaseURL:        "postgres://taskflow:taskflow@db:5432/taskflow?sslmode=disable",
		MigrationsDir:      "db/migrations",
		JWTSecret:          "supersecuresecret",
		LogLevel:           "info",
		InviteTTL:          72 * time.Hour,
		InviteCodeBytes:    24,
		InviteAttemptLimit: 10,
		InviteAttemptSpan:  time.Minute,
	}
}

func (c *EngineConfig) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	file := fileConfig{EngineConfig: *c}
	if _, err := toml.Decode(string(raw), &file); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	merged := file.EngineConfig
	if file.InviteTTL != "" {
		d, err := time.ParseDuration(file.InviteTTL)
		if err != nil {
			return fmt.Errorf("parse invite_ttl: %w", err)
		}
		merged.InviteTTL = d
	}
	if file.InviteAttemptSpan != "" {
		d, err := time.ParseDuration(file.InviteAttemptSpan)
		if err != nil {
			return fmt.Errorf("parse invite_attempt_window: %w", err)
		}
		merged.InviteAttemptSpan = d
	}
	*c = merged
	return nil
}

func (c *EngineConfig) applyEnv() {
	c.Environment = GetString("APP_ENV", c.Environment)
	c.DatabaseURL = GetString("DATABASE_URL", c.DatabaseURL)
	c.MigrationsDir = GetString("DB_MIGRATIONS_DIR", c.MigrationsDir)
	c.JWTSecret = GetString("JWT_SECRET", c.JWTSecret)
	c.LogLevel = GetString("LOG_LEVEL", c.LogLevel)
	c.LogFile = GetString("LOG_FILE", c.LogFile)
	c.InviteTTL = GetDuration("INVITE_TTL", c.InviteTTL)
	c.InviteCodeBytes = GetInt("INVITE_CODE_BYTES", c.InviteCodeBytes)
	c.InviteAttemptLimit = GetInt("INVITE_ATTEMPT_LIMIT", c.InviteAttemptLimit)
	c.InviteAttemptSpan = GetDuration("INVITE_ATTEMPT_WINDOW", c.InviteAttemptSpan)
	c.RateLimitRedisAddr = GetString("RATE_LIMIT_REDIS_ADDR", c.RateLimitRedisAddr)
	c.RateLimitRedisPass = GetString("RATE_LIMIT_REDIS_PASSWORD", c.RateLimitRedisPass)
	c.RateLimitRedisDB = GetInt("RATE_LIMIT_REDIS_DB", c.RateLimitRedisDB)
}
