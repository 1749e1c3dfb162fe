// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// MinSecretLength is the minimum byte length of signing secrets.
const MinSecretLength = 32

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv         string `env:"APP_ENV" envDefault:"development"`
	AppPort        int    `env:"APP_PORT" envDefault:"8080"`
	DefaultLanding string `env:"DEFAULT_LANDING" envDefault:"/home"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Sessions (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Tokens
	JWTSecret       string        `env:"JWT_SECRET,required"`
	JWTIssuer       string        `env:"JWT_ISSUER" envDefault:"liiist"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`

	// Session cookie
	SessionSecret       string `env:"SESSION_SECRET,required"`
	SessionCookieName   string `env:"SESSION_COOKIE_NAME" envDefault:"liiist_session"`
	SessionCookieSecure bool   `env:"SESSION_COOKIE_SECURE" envDefault:"true"`

	// Optimizer collaborator. An empty URL disables calculations.
	OptimizerURL         string `env:"OPTIMIZER_URL"`
	OptimizerSecret      string `env:"OPTIMIZER_SECRET"`
	OptimizerMaxAttempts int    `env:"OPTIMIZER_MAX_ATTEMPTS" envDefault:"3"`

	// Sign-in throttling per client IP
	SignInPerMinute int `env:"SIGN_IN_PER_MINUTE" envDefault:"10"`
	SignInBurst     int `env:"SIGN_IN_BURST" envDefault:"5"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Comma-separated origins allowed to call the API with credentials.
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Validate rejects configurations the service must not start with.
func (c *Config) Validate() error {
	var errs []error
	if len(c.JWTSecret) < MinSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes", MinSecretLength))
	}
	if len(c.SessionSecret) < MinSecretLength {
		errs = append(errs, fmt.Errorf("SESSION_SECRET must be at least %d bytes", MinSecretLength))
	}
	if c.JWTSecret != "" && c.JWTSecret == c.SessionSecret {
		errs = append(errs, errors.New("JWT_SECRET and SESSION_SECRET must differ"))
	}
	if c.OptimizerURL != "" && len(c.OptimizerSecret) < MinSecretLength {
		errs = append(errs, fmt.Errorf("OPTIMIZER_SECRET must be at least %d bytes when OPTIMIZER_URL is set", MinSecretLength))
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= c.AccessTokenTTL {
		errs = append(errs, errors.New("REFRESH_TOKEN_TTL must exceed a positive ACCESS_TOKEN_TTL"))
	}
	if !strings.HasPrefix(c.DefaultLanding, "/") || strings.HasPrefix(c.DefaultLanding, "//") {
		errs = append(errs, errors.New("DEFAULT_LANDING must be a local path"))
	}
	if c.IsProduction() && !c.SessionCookieSecure {
		errs = append(errs, errors.New("SESSION_COOKIE_SECURE cannot be disabled in production"))
	}
	return errors.Join(errs...)
}

// Load parses environment variables and returns a validated Config.
// Returns an error if required variables are missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
