// Package config loads the opinion manager configuration from environment variables.
// Required variables, defaults and parse errors are handled by small helpers, and every
// problem found is reported together so a misconfigured deployment fails once, with the
// full list, instead of one variable at a time.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/crypto/bcrypt"
)

// Database drivers selected from the DATABASE_URL scheme.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Rate limit counter backends.
const (
	RateLimitStoreMemory   = "memory"
	RateLimitStoreDatabase = "database"
)

const minJWTSecretLength = 16

// DatabaseConfig describes the document store connection.
type DatabaseConfig struct {
	URL            string
	Driver         string // derived from the URL scheme
	Name           string // database name, used by the Mongo backend
	ConnectTimeout time.Duration
	MaxPoolSize    int
}

// AuthConfig holds token and password hashing settings.
type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	Issuer     string
	BcryptCost int
}

type ServerConfig struct {
	Port string
	// TrustProxy makes the client address come from X-Forwarded-For / X-Real-IP.
	// Only enable it when every request arrives through a proxy that overwrites
	// those headers, otherwise clients pick their own rate limit key.
	TrustProxy bool
}

// RateLimitConfig is the fixed window applied per client IP.
type RateLimitConfig struct {
	Max    int
	Window time.Duration
	Store  string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string // "json" or "console"
}

// AppConfig is the top-level configuration structure for the application.
type AppConfig struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Log       LogConfig
}

// getRequiredEnv records an error when the variable is unset or empty.
func getRequiredEnv(key string, errs *error) string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		*errs = multierror.Append(*errs, fmt.Errorf("missing required environment variable: %s", key))
		return ""
	}
	return value
}

func getOptionalEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getOptionalEnvInt(key string, defaultValue int, errs *error) int {
	valueStr, ok := os.LookupEnv(key)
	if !ok || valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		*errs = multierror.Append(*errs, fmt.Errorf("invalid value for %s: expected integer, got '%s': %w", key, valueStr, err))
		return defaultValue
	}
	return value
}

// getOptionalEnvBool accepts anything strconv.ParseBool does ("true", "1", "f").
func getOptionalEnvBool(key string, defaultValue bool, errs *error) bool {
	valueStr, ok := os.LookupEnv(key)
	if !ok || valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		*errs = multierror.Append(*errs, fmt.Errorf("invalid value for %s: expected boolean, got '%s': %w", key, valueStr, err))
		return defaultValue
	}
	return value
}

// getOptionalEnvDuration accepts anything time.ParseDuration does ("15m", "1h30s").
func getOptionalEnvDuration(key string, defaultValue time.Duration, errs *error) time.Duration {
	valueStr, ok := os.LookupEnv(key)
	if !ok || valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		*errs = multierror.Append(*errs, fmt.Errorf("invalid value for %s: expected duration string, got '%s': %w", key, valueStr, err))
		return defaultValue
	}
	if value <= 0 {
		*errs = multierror.Append(*errs, fmt.Errorf("invalid value for %s: duration must be positive, got '%s'", key, valueStr))
		return defaultValue
	}
	return value
}

// clampPoolSize keeps the pool size between 5 and 100.
func clampPoolSize(size int) int {
	if size < 5 {
		return 5
	}
	if size > 100 {
		return 100
	}
	return size
}

// driverFromURL maps a connection string scheme to a store backend.
func driverFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "mongodb", "mongodb+srv":
		return DriverMongo, nil
	case "postgres", "postgresql":
		return DriverPostgres, nil
	case "memory":
		return DriverMemory, nil
	default:
		return "", fmt.Errorf("unsupported DATABASE_URL scheme %q (want mongodb, postgres or memory)", u.Scheme)
	}
}

// LoadConfig reads and validates every setting. The returned error, if any, is a
// *multierror.Error listing all problems.
func LoadConfig() (*AppConfig, error) {
	var errs error

	// Database. URI_MONGO is the variable name older deployments use.
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = os.Getenv("URI_MONGO")
	}
	var driver string
	if dbURL == "" {
		errs = multierror.Append(errs, fmt.Errorf("missing required environment variable: DATABASE_URL"))
	} else {
		d, err := driverFromURL(dbURL)
		if err != nil {
			errs = multierror.Append(errs, err)
		}
		driver = d
	}
	database := DatabaseConfig{
		URL:            dbURL,
		Driver:         driver,
		Name:           getOptionalEnv("DB_NAME", "opinionmanager"),
		ConnectTimeout: getOptionalEnvDuration("DB_CONNECT_TIMEOUT", 10*time.Second, &errs),
		MaxPoolSize:    clampPoolSize(getOptionalEnvInt("DB_MAX_POOL_SIZE", 20, &errs)),
	}

	// Auth
	secret := getRequiredEnv("JWT_SECRET", &errs)
	if secret != "" && len(secret) < minJWTSecretLength {
		errs = multierror.Append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes", minJWTSecretLength))
	}
	cost := getOptionalEnvInt("BCRYPT_COST", bcrypt.DefaultCost, &errs)
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		errs = multierror.Append(errs, fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, cost))
	}
	auth := AuthConfig{
		JWTSecret:  secret,
		TokenTTL:   getOptionalEnvDuration("JWT_EXPIRES_IN", time.Hour, &errs),
		Issuer:     getOptionalEnv("JWT_ISSUER", "opinion-manager"),
		BcryptCost: cost,
	}

	server := ServerConfig{
		Port:       getOptionalEnv("PORT", "3000"),
		TrustProxy: getOptionalEnvBool("TRUST_PROXY", false, &errs),
	}

	// Rate limiting
	rl := RateLimitConfig{
		Max:    getOptionalEnvInt("RATE_LIMIT_MAX", 100, &errs),
		Window: getOptionalEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute, &errs),
		Store:  strings.ToLower(getOptionalEnv("RATE_LIMIT_STORE", RateLimitStoreMemory)),
	}
	if rl.Max <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("RATE_LIMIT_MAX must be positive, got %d", rl.Max))
	}
	switch rl.Store {
	case RateLimitStoreMemory:
	case RateLimitStoreDatabase:
		if driver != "" && driver != DriverMongo {
			errs = multierror.Append(errs, fmt.Errorf("RATE_LIMIT_STORE=database requires a mongodb DATABASE_URL"))
		}
	default:
		errs = multierror.Append(errs, fmt.Errorf("RATE_LIMIT_STORE must be %q or %q, got %q",
			RateLimitStoreMemory, RateLimitStoreDatabase, rl.Store))
	}

	// Logging
	logCfg := LogConfig{
		Level:  strings.ToLower(getOptionalEnv("LOG_LEVEL", "info")),
		Format: strings.ToLower(getOptionalEnv("LOG_FORMAT", "json")),
	}
	if logCfg.Format != "json" && logCfg.Format != "console" {
		errs = multierror.Append(errs, fmt.Errorf("LOG_FORMAT must be json or console, got %q", logCfg.Format))
	}

	if errs != nil {
		return nil, errs
	}

	return &AppConfig{
		Server:    server,
		Database:  database,
		Auth:      auth,
		RateLimit: rl,
		CORS:      CORSConfig{AllowedOrigins: splitList(getOptionalEnv("CORS_ALLOWED_ORIGINS", "*"))},
		Log:       logCfg,
	}, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
