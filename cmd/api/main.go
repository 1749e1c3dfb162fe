// Package main is the entrypoint for the liiist API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/liiist/liiist/internal/cache"
	"github.com/liiist/liiist/internal/config"
	"github.com/liiist/liiist/internal/credential"
	"github.com/liiist/liiist/internal/handler"
	"github.com/liiist/liiist/internal/metrics"
	"github.com/liiist/liiist/internal/middleware"
	"github.com/liiist/liiist/internal/migrate"
	"github.com/liiist/liiist/internal/optimizer"
	"github.com/liiist/liiist/internal/repository"
	"github.com/liiist/liiist/internal/server"
	"github.com/liiist/liiist/internal/service"
	"github.com/liiist/liiist/internal/session"
	"github.com/liiist/liiist/internal/sweeper"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	if err := migrate.Up(ctx, cfg.DatabaseURL); err != nil {
		logger.Error(
			"failed to apply migrations",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
		)
		os.Exit(1)
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		repo.Close()
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to Redis")

	if err := run(ctx, cfg, repo, cacheClient, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// run wires the services and serves until shutdown. repo and cacheClient
// are closed on shutdown.
func run(ctx context.Context, cfg *config.Config, repo *repository.Repository, cacheClient *cache.Cache, logger *slog.Logger) error {
	recorder := metrics.NewInMemory()

	creds, err := credential.NewService(repo, repo, credential.Config{
		Secret:     []byte(cfg.JWTSecret),
		Issuer:     cfg.JWTIssuer,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	}, logger)
	if err != nil {
		return err
	}

	sessions, err := session.NewStore(cacheClient, repo, session.Options{
		CookieName: cfg.SessionCookieName,
		Secret:     []byte(cfg.SessionSecret),
		Secure:     cfg.SessionCookieSecure,
		Refresher:  creds,
	}, logger)
	if err != nil {
		return err
	}

	opt, err := optimizer.New(optimizer.Config{
		URL:         cfg.OptimizerURL,
		Secret:      cfg.OptimizerSecret,
		MaxAttempts: cfg.OptimizerMaxAttempts,
	}, logger, recorder)
	if err != nil {
		return err
	}
	if cfg.OptimizerURL == "" {
		logger.Warn("OPTIMIZER_URL not set, list calculation disabled")
	}

	r := handler.NewRouter(handler.RouterConfig{
		Handler:  handler.New(logger, recorder, service.SignInPath),
		Health:   handler.NewHealthHandler(repo, cacheClient, logger),
		Metrics:  handler.NewMetricsHandler(recorder),
		Accounts: service.NewAccountService(creds, cfg.DefaultLanding, logger),
		Lists:    service.NewListService(repo, opt, recorder, logger),
		Sessions: sessions,
		Logger:   logger,
		SignInLimit: middleware.SignInRateLimit(middleware.RateLimitConfig{
			Limiter:   cacheClient,
			Logger:    logger,
			Metrics:   recorder,
			PerMinute: cfg.SignInPerMinute,
			Burst:     cfg.SignInBurst,
		}),
		Security:     middleware.SecurityConfig{HSTS: cfg.IsProduction()},
		CORS:         middleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins},
		MaxBodyBytes: cfg.MaxRequestBodySize,
		Development:  cfg.IsDevelopment(),
	})

	srv := server.New(r, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Registered first, closed last.
	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})

	sweepCtx, stopSweep := context.WithCancel(ctx)
	sweep := sweeper.New(repo, sweeper.DefaultInterval, logger)
	go func() {
		if err := sweep.Run(sweepCtx); err != nil {
			logger.Error("sweeper exited", "error", err)
		}
	}()
	srv.OnShutdown("sweeper", func(ctx context.Context) error {
		stopSweep()
		return sweep.Wait(ctx)
	})

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"optimizer", redactURL(cfg.OptimizerURL),
	)

	return srv.Run(ctx)
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
