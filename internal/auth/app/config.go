package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/service"
	"github.com/aussiebroadwan/warden/pkg/cryptox"
)

// Messaging backends.
const (
	MessagingLog = "log"
	MessagingNSQ = "nsq"
)

type Config struct {
	Issuer       string // Issuer claim for tokens (default: warden)
	DatabaseFile string // Path to SQLite database file (default: ./warden.db)
	ClientsFile  string // Path to the YAML client registry (default: ./clients.yaml)
	ServiceToken string // Shared secret for internal endpoints; empty disables them

	RedisAddr     string // default: localhost:6379
	RedisPassword string
	RedisDB       int
	RedisPrefix   string // Key namespace (default: warden:)

	MasterKeyPath     string        // Master key file sealing cached private keys; falls back to AUTH_MASTER_KEY
	KeyRotationPeriod time.Duration // How long one key signs (default: 24h)
	KeyCoolDownPeriod time.Duration // How long a retired key still verifies (default: 1h)
	RSABits           int           // RSA modulus size (default: 2048)
	TokenLeeway       time.Duration // Clock skew allowed when verifying tokens (default: 5s)

	Messaging     string // log or nsq (default: log)
	NSQDAddr      string // default: localhost:4150
	NSQSmsTopic   string // default: messaging.sms
	NSQEmailTopic string // default: messaging.email

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	return Config{
		Issuer:       getEnvOrDefault("AUTH_ISSUER", "warden"),
		DatabaseFile: getEnvOrDefault("AUTH_DATABASE_FILE", "warden.db"),
		ClientsFile:  getEnvOrDefault("AUTH_CLIENTS_FILE", "clients.yaml"),
		ServiceToken: os.Getenv("AUTH_SERVICE_TOKEN"),

		RedisAddr:     getEnvOrDefault("AUTH_REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("AUTH_REDIS_PASSWORD"),
		RedisDB:       getEnvIntOrDefault("AUTH_REDIS_DB", 0),
		RedisPrefix:   getEnvOrDefault("AUTH_REDIS_PREFIX", "warden:"),

		MasterKeyPath:     os.Getenv("AUTH_MASTER_KEY_PATH"),
		KeyRotationPeriod: getEnvDurationOrDefault("AUTH_KEY_ROTATION_PERIOD", service.DefaultKeyRotationPeriod),
		KeyCoolDownPeriod: getEnvDurationOrDefault("AUTH_KEY_COOLDOWN_PERIOD", service.DefaultKeyCoolDownPeriod),
		RSABits:           getEnvIntOrDefault("AUTH_RSA_BITS", 2048),
		TokenLeeway:       getEnvDurationOrDefault("AUTH_TOKEN_LEEWAY", 5*time.Second),

		Messaging:     getEnvOrDefault("AUTH_MESSAGING", MessagingLog),
		NSQDAddr:      getEnvOrDefault("AUTH_NSQD_ADDR", "localhost:4150"),
		NSQSmsTopic:   getEnvOrDefault("AUTH_NSQ_SMS_TOPIC", "messaging.sms"),
		NSQEmailTopic: getEnvOrDefault("AUTH_NSQ_EMAIL_TOPIC", "messaging.email"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

// Validate rejects settings the service can't start with.
func (c Config) Validate() error {
	var errs []error
	if c.KeyRotationPeriod <= 0 {
		errs = append(errs, errors.New("AUTH_KEY_ROTATION_PERIOD must be positive"))
	}
	if c.KeyCoolDownPeriod <= 0 {
		errs = append(errs, errors.New("AUTH_KEY_COOLDOWN_PERIOD must be positive"))
	}
	if c.TokenLeeway < 0 {
		errs = append(errs, errors.New("AUTH_TOKEN_LEEWAY must not be negative"))
	}
	// An ephemeral master key can't unseal what another process cached.
	if c.Env != "dev" && c.MasterKeyPath == "" && !cryptox.MasterKeyFromEnv() {
		errs = append(errs, errors.New("AUTH_MASTER_KEY or AUTH_MASTER_KEY_PATH is required outside dev"))
	}
	if c.RSABits < 2048 {
		errs = append(errs, fmt.Errorf("AUTH_RSA_BITS must be at least 2048, got %d", c.RSABits))
	}
	switch c.Messaging {
	case MessagingLog, MessagingNSQ:
	default:
		errs = append(errs, fmt.Errorf("AUTH_MESSAGING must be %q or %q, got %q", MessagingLog, MessagingNSQ, c.Messaging))
	}
	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
