package main

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/problem-harvester/pkg/artifact"
	"github.com/Sternrassler/problem-harvester/pkg/harvest"
	"github.com/Sternrassler/problem-harvester/pkg/logging"
	"github.com/Sternrassler/problem-harvester/pkg/source"
	"github.com/joho/godotenv"
)

// Artifact backends.
const (
	backendFile  = "file"
	backendRedis = "redis"
)

// config is the process configuration, read from the environment and
// overridden by flags.
type config struct {
	PageSize       int
	StartCursor    int
	RequestTimeout time.Duration
	MaxAttempts    int

	Endpoint     string
	SessionToken string
	UserAgent    string

	Backend      string
	ArtifactName string
	ArtifactDir  string
	RedisURL     string
	RedisPrefix  string

	LogLevel        string
	LogPretty       bool
	MetricsTextfile string
}

// loadEnvFiles loads ENV_FILE if set, otherwise .env.local then .env.
// Missing files are ignored; variables already set are never overwritten.
func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}

	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

// loadConfig reads the configuration from the environment.
func loadConfig() (config, error) {
	var err error
	cfg := config{
		Endpoint:        getEnv("LEETCODE_ENDPOINT", source.DefaultEndpoint),
		SessionToken:    getEnv("LEETCODE_SESSION", ""),
		UserAgent:       getEnv("USER_AGENT", source.DefaultUserAgent),
		Backend:         strings.ToLower(getEnv("ARTIFACT_BACKEND", backendFile)),
		ArtifactName:    getEnv("ARTIFACT_NAME", harvest.DefaultArtifactName),
		ArtifactDir:     getEnv("ARTIFACT_DIR", "."),
		RedisURL:        getEnv("REDIS_URL", "localhost:6379"),
		RedisPrefix:     getEnv("REDIS_PREFIX", artifact.DefaultRedisPrefix),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		MetricsTextfile: getEnv("METRICS_TEXTFILE", ""),
	}

	if cfg.PageSize, err = getEnvInt("HARVEST_PAGE_SIZE", 50); err != nil {
		return config{}, err
	}
	if cfg.StartCursor, err = getEnvInt("HARVEST_START_CURSOR", 0); err != nil {
		return config{}, err
	}
	if cfg.MaxAttempts, err = getEnvInt("HARVEST_MAX_ATTEMPTS", 1); err != nil {
		return config{}, err
	}
	if cfg.RequestTimeout, err = getEnvDuration("HARVEST_REQUEST_TIMEOUT", 15*time.Second); err != nil {
		return config{}, err
	}
	if cfg.LogPretty, err = getEnvBool("LOG_PRETTY", false); err != nil {
		return config{}, err
	}

	return cfg, nil
}

// validate checks values that flags or the environment may have set wrong.
func (c config) validate() error {
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive (got %d)", c.PageSize)
	}
	if c.StartCursor < 0 {
		return fmt.Errorf("start cursor must be >= 0 (got %d)", c.StartCursor)
	}
	if c.StartCursor > math.MaxInt-c.PageSize {
		return fmt.Errorf("start cursor %d plus page size %d overflows", c.StartCursor, c.PageSize)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be >= 1 (got %d)", c.MaxAttempts)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive (got %s)", c.RequestTimeout)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.Backend {
	case backendFile, backendRedis:
	default:
		return fmt.Errorf("unknown artifact backend %q (want %s or %s)", c.Backend, backendFile, backendRedis)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}
