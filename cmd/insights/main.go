package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/vnmchuo/insight-gateway/config"
	"github.com/vnmchuo/insight-gateway/internal/insight"
	"github.com/vnmchuo/insight-gateway/internal/provider/claude"
	"github.com/vnmchuo/insight-gateway/internal/provider/gemini"
	"github.com/vnmchuo/insight-gateway/internal/provider/openai"
	"github.com/vnmchuo/insight-gateway/internal/telemetry"
	"github.com/vnmchuo/insight-gateway/internal/usage"
	"github.com/vnmchuo/insight-gateway/pkg/ratelimit"
)

const serviceName = "insight-gateway"

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 2. Init logging and telemetry
	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	shutdownTracer, err := telemetry.InitTracer(serviceName, cfg, logger)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(reg)

	ctx := context.Background()

	// 3. Attempt log (optional)
	var store usage.Store
	if cfg.PostgresDSN != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			logger.Fatal("failed to ping postgres", zap.Error(err))
		}
		pgStore := usage.NewPostgresStore(pool)
		if err := pgStore.Migrate(ctx); err != nil {
			logger.Fatal("failed to migrate attempt log", zap.Error(err))
		}
		store = pgStore
		logger.Info("PostgreSQL connected")
	}

	// 4. Rate limiter (optional)
	var limiter *ratelimit.Limiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to ping redis", zap.Error(err))
		}
		limiter = ratelimit.NewLimiter(rdb, cfg.RateLimitRPM)
		logger.Info("Redis connected", zap.Int64("requests_per_minute", cfg.RateLimitRPM))
	}

	// 5. Providers, in priority order
	registry := insight.NewRegistry(cfg.Providers, map[string]insight.Factory{
		"gemini": gemini.New,
		"openai": openai.New,
		"claude": claude.New,
	}, logger)
	if len(registry.Configured()) == 0 {
		logger.Warn("no provider configured, every insight will be rule-based")
	}

	// 6. Cascade and handler
	cascade := insight.NewCascade(registry,
		insight.WithLogger(logger),
		insight.WithTracer(otel.GetTracerProvider().Tracer(serviceName)),
		insight.WithMetrics(metrics),
		insight.WithPromptBuilder(insight.NewPromptBuilder(cfg.Language, cfg.PromptMaxChars)),
		insight.WithFallback(insight.NewFallback(cfg.Language)),
		insight.WithBreaker(insight.BreakerSettings{
			Failures:    cfg.BreakerFailures,
			OpenTimeout: cfg.BreakerOpenTimeout,
		}),
	)
	handler := insight.NewHandler(cascade, store, limiter, logger)

	// 7. Init Chi router
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"insight-gateway"}`))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Post("/v1/insights", handler.HandleInsights)
	r.Get("/v1/attempts", handler.HandleAttempts)

	// 8. Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("insight gateway starting", zap.String("port", cfg.Port), zap.String("language", cfg.Language.String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
		return
	}
	logger.Info("server stopped")
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
