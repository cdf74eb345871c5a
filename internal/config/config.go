// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultOrgName           = "Тольяттинская федерация фехтования"
	defaultOrgNameAccusative = "Тольяттинскую федерацию фехтования"
)

// Config holds all application configuration.
type Config struct {
	BotToken           string
	ManagerChatID      int64
	Port               string
	DBPath             string
	OrgName            string
	OrgNameAccusative  string
	LogLevel           slog.Level
	SessionTTL         time.Duration
	DropPendingUpdates bool
	CORSOrigins        []string
	Timeout            TimeoutConfig
	Persist            RetryConfig
	Notify             NotifyConfig
	RateLimit          RateLimitConfig
}

// TimeoutConfig bounds calls to external collaborators.
type TimeoutConfig struct {
	Store       time.Duration
	Send        time.Duration
	HealthCheck time.Duration
}

// RetryConfig controls bounded retries with exponential backoff.
type RetryConfig struct {
	Attempts int
	Backoff  time.Duration
}

// NotifyConfig controls operator notification delivery.
type NotifyConfig struct {
	RetryConfig
	QueueSize int
}

// RateLimitConfig controls the per-user flood guard. A non-positive rate
// disables it.
type RateLimitConfig struct {
	PerSecond float64
	Burst     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	managerChatID, err := getEnvInt64("MANAGER_CHAT_ID")
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg := &Config{
		BotToken:           strings.TrimSpace(getEnv("BOT_TOKEN", "")),
		ManagerChatID:      managerChatID,
		Port:               getEnv("PORT", "8080"),
		DBPath:             getEnv("DB_PATH", "./data/fencing_applications.db"),
		OrgName:            getEnv("ORG_NAME", defaultOrgName),
		LogLevel:           getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		SessionTTL:         getEnvDuration("SESSION_TTL", 24*time.Hour),
		DropPendingUpdates: getEnvBool("DROP_PENDING_UPDATES", true),
		CORSOrigins:        getEnvList("CORS_ORIGINS", []string{"*"}),
		Timeout: TimeoutConfig{
			Store:       getEnvDuration("STORE_TIMEOUT", 5*time.Second),
			Send:        getEnvDuration("SEND_TIMEOUT", 10*time.Second),
			HealthCheck: getEnvDuration("HEALTH_CHECK_TIMEOUT", 5*time.Second),
		},
		Persist: RetryConfig{
			Attempts: getEnvInt("PERSIST_ATTEMPTS", 3),
			Backoff:  getEnvDuration("PERSIST_BACKOFF", 200*time.Millisecond),
		},
		Notify: NotifyConfig{
			RetryConfig: RetryConfig{
				Attempts: getEnvInt("NOTIFY_ATTEMPTS", 3),
				Backoff:  getEnvDuration("NOTIFY_BACKOFF", time.Second),
			},
			QueueSize: getEnvInt("NOTIFY_QUEUE_SIZE", 100),
		},
		RateLimit: RateLimitConfig{
			PerSecond: getEnvFloat("RATE_LIMIT_RPS", 2),
			Burst:     getEnvInt("RATE_LIMIT_BURST", 10),
		},
	}

	// The built-in accusative form only fits the built-in name.
	cfg.OrgNameAccusative = getEnv("ORG_NAME_ACCUSATIVE", "")
	if _, custom := os.LookupEnv("ORG_NAME"); !custom && cfg.OrgNameAccusative == "" {
		cfg.OrgNameAccusative = defaultOrgNameAccusative
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN cannot be empty")
	}
	if c.ManagerChatID == 0 {
		return fmt.Errorf("MANAGER_CHAT_ID cannot be empty")
	}
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Timeout.Store <= 0 || c.Timeout.Send <= 0 {
		return fmt.Errorf("STORE_TIMEOUT and SEND_TIMEOUT must be > 0")
	}
	if c.Persist.Attempts <= 0 {
		return fmt.Errorf("PERSIST_ATTEMPTS must be > 0")
	}
	if c.Notify.Attempts <= 0 {
		return fmt.Errorf("NOTIFY_ATTEMPTS must be > 0")
	}
	if c.Notify.QueueSize <= 0 {
		return fmt.Errorf("NOTIFY_QUEUE_SIZE must be > 0")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvInt64 parses a required chat identifier. Unset yields 0, which
// Validate rejects; a malformed value is an error rather than a fallback.
func getEnvInt64(key string) (int64, error) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer chat id: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}

// IsContainer returns true if running inside a Docker container.
func IsContainer() bool {
	if os.Getenv("CONTAINER") == "true" {
		return true
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return false
}
