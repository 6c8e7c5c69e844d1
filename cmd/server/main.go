package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apihttp "javmeta/resolverservice/internal/api/http"
	"javmeta/resolverservice/internal/app"
	"javmeta/resolverservice/internal/codes"
	"javmeta/resolverservice/internal/domain"
	"javmeta/resolverservice/internal/metrics"
	"javmeta/resolverservice/internal/providers/fanza"
	"javmeta/resolverservice/internal/providers/r18dev"
	"javmeta/resolverservice/internal/resolve"
	"javmeta/resolverservice/internal/telemetry"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "metadata-resolver")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "metadata-resolver"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.Duration("requestTimeout", cfg.RequestTimeout),
		slog.Any("providers", cfg.Providers),
		slog.String("mergeStrategy", cfg.MergeStrategy),
		slog.String("r18devLanguage", cfg.R18DevLanguage),
		slog.Duration("requestDelay", cfg.RequestDelay),
		slog.Bool("hasRedis", strings.TrimSpace(cfg.RedisURL) != ""),
		slog.Duration("cacheTTL", cfg.CacheTTL),
	)

	providers := buildProviders(cfg, logger)

	resolver := resolve.NewService(
		providers,
		codes.NewTranscoder(codes.FanzaRules()),
		resolve.Config{
			Strategy:       domain.NormalizeMergeStrategy(cfg.MergeStrategy),
			FieldPriority:  cfg.FieldPriority,
			SkipGenres:     cfg.SkipGenres,
			RequiredFields: cfg.RequiredFields,
		},
		cfg.RequestTimeout,
		buildServiceOptions(cfg, logger)...,
	)

	handler := apihttp.NewServer(resolver, apihttp.WithLogger(logger)).Handler()
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("metadata resolver service started",
		slog.String("addr", cfg.HTTPAddr),
		slog.Duration("timeout", cfg.RequestTimeout),
	)

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("metadata resolver service stopped")
}

// buildProviders constructs the enabled providers in configured order.
// The order matters: it is the default merge priority.
func buildProviders(cfg app.Config, logger *slog.Logger) []resolve.Provider {
	providers := make([]resolve.Provider, 0, len(cfg.Providers))
	for _, name := range cfg.Providers {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "fanza":
			providers = append(providers, fanza.New(fanza.Config{
				APIURL:       cfg.FanzaAPIURL,
				Client:       newProviderHTTPClient(cfg.RequestTimeout),
				UserAgent:    cfg.UserAgent,
				RequestDelay: cfg.RequestDelay,
			}))
		case "r18dev":
			providers = append(providers, r18dev.New(r18dev.Config{
				BaseURL:      cfg.R18DevBaseURL,
				Language:     cfg.R18DevLanguage,
				Client:       newProviderHTTPClient(cfg.RequestTimeout),
				UserAgent:    cfg.UserAgent,
				RequestDelay: cfg.RequestDelay,
			}))
		default:
			logger.Warn("unknown provider in RESOLVER_PROVIDERS, skipping", slog.String("provider", name))
		}
	}
	return providers
}

func newProviderHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildServiceOptions(cfg app.Config, logger *slog.Logger) []resolve.ServiceOption {
	var opts []resolve.ServiceOption

	if cfg.CacheDisabled {
		opts = append(opts, resolve.WithCacheDisabled(true))
		return opts
	}

	if cfg.CacheTTL > 0 {
		opts = append(opts, resolve.WithCacheTTL(cfg.CacheTTL))
	}

	redisURL := strings.TrimSpace(cfg.RedisURL)
	if redisURL != "" {
		redisOpts, err := redis.ParseURL(redisURL)
		if err != nil {
			logger.Warn("invalid redis url, using in-memory cache only", slog.String("error", err.Error()))
			return opts
		}
		redisClient := redis.NewClient(redisOpts)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis not reachable, using in-memory cache only", slog.String("error", err.Error()))
			return opts
		}
		logger.Info("redis connected", slog.String("addr", redisOpts.Addr))
		opts = append(opts, resolve.WithRedisCache(resolve.NewRedisCacheBackend(redisClient)))
	}

	return opts
}
