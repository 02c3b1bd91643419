package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tendant/simple-idm-docstore/pkg/roles"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
)

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr string `validate:"required"`
	ServerPort int    `validate:"min=1,max=65535"`

	// Storage
	StorageBackend string `validate:"oneof=memory postgres sqlite redis"`

	// Database (postgres backend)
	DBHost     string `validate:"required_if=StorageBackend postgres"`
	DBPort     int    `validate:"min=1,max=65535"`
	DBUser     string
	DBPassword string
	DBName     string `validate:"required_if=StorageBackend postgres"`
	DBSSLMode  string `validate:"oneof=disable require verify-ca verify-full"`
	DBTable    string `validate:"required"`

	// SQLite backend
	SQLitePath string `validate:"required_if=StorageBackend sqlite"`

	// Redis backend
	RedisURL       string `validate:"required_if=StorageBackend redis"`
	RedisKeyPrefix string

	// Role registry
	Roles []string `validate:"required,min=1,dive,required"`

	// Admin API authentication
	AdminJWTSecret string `validate:"required,min=32"`
	AdminJWTIssuer string
	AdminRole      string `validate:"required"`

	// Password policy applied by the password endpoint
	PasswordPolicy PasswordPolicyConfig

	// Lockout applied when failed accesses are recorded
	MaxFailedAccessAttempts int           `validate:"min=1"`
	LockoutDuration         time.Duration `validate:"gt=0"`

	// Rate limiting
	RateLimitEnabled           bool
	RateLimitRequestsPerMinute int `validate:"min=1"`

	// Hardening
	SecurityHeadersEnabled bool
	MaxRequestBodySize     int64 `validate:"min=1"`
	ShutdownTimeout        time.Duration

	// Observability
	MetricsEnabled bool
	LogLevel       string `validate:"oneof=debug info warn error"`
}

// PasswordPolicyConfig holds password complexity requirements.
type PasswordPolicyConfig struct {
	MinLength        int `validate:"min=0"`
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
	RequireSpecial   bool
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		// Server defaults
		ServerAddr: getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort: getEnvInt("SERVER_PORT", 8080),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", BackendMemory)),

		// Database defaults (matches podman setup: make postgres-start)
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 25432),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "simple_idm"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		DBTable:    getEnv("DB_TABLE", "accounts"),

		SQLitePath: getEnv("SQLITE_PATH", "idm-docstore.db"),

		RedisURL:       getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisKeyPrefix: getEnv("REDIS_KEY_PREFIX", "idm:"),

		Roles: roles.Parse(getEnv("ROLES", "admin,user")).List(),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
		AdminJWTIssuer: getEnv("ADMIN_JWT_ISSUER", "simple-idm"),
		AdminRole:      getEnv("ADMIN_ROLE", "admin"),

		PasswordPolicy: PasswordPolicyConfig{
			MinLength:        getEnvInt("PASSWORD_MIN_LENGTH", 8),
			RequireUppercase: getEnvBool("PASSWORD_REQUIRE_UPPERCASE", false),
			RequireLowercase: getEnvBool("PASSWORD_REQUIRE_LOWERCASE", false),
			RequireNumber:    getEnvBool("PASSWORD_REQUIRE_NUMBER", false),
			RequireSpecial:   getEnvBool("PASSWORD_REQUIRE_SPECIAL", false),
		},

		MaxFailedAccessAttempts: getEnvInt("MAX_FAILED_ACCESS_ATTEMPTS", 5),
		LockoutDuration:         getEnvDuration("LOCKOUT_DURATION", 15*time.Minute),

		RateLimitEnabled:           getEnvBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequestsPerMinute: getEnvInt("RATE_LIMIT_REQUESTS_PER_MINUTE", 120),

		SecurityHeadersEnabled: getEnvBool("SECURITY_HEADERS_ENABLED", true),
		MaxRequestBodySize:     int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
		ShutdownTimeout:        getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for missing or out of range values.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// Addr returns the host:port the HTTP server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.ServerAddr, c.ServerPort)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
