package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/prepgenie/pyqsearch/internal/cache"
	"github.com/prepgenie/pyqsearch/internal/config"
	"github.com/prepgenie/pyqsearch/internal/db"
	dbRedis "github.com/prepgenie/pyqsearch/internal/db/redis"
	"github.com/prepgenie/pyqsearch/internal/domain"
	logpkg "github.com/prepgenie/pyqsearch/internal/logger"
	"github.com/prepgenie/pyqsearch/internal/metrics"
	"github.com/prepgenie/pyqsearch/internal/repository/embcache"
	indexrepo "github.com/prepgenie/pyqsearch/internal/repository/index"
	"github.com/prepgenie/pyqsearch/internal/transport/httpapi"
	openaiTransport "github.com/prepgenie/pyqsearch/internal/transport/openai"
	"github.com/prepgenie/pyqsearch/internal/usecase/health"
	searchuc "github.com/prepgenie/pyqsearch/internal/usecase/search"
	"github.com/prepgenie/pyqsearch/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting pyqsearch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("index_name", cfg.Search.IndexName),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterSearchMetrics()

	embedder := buildEmbedder(cfg, store, logger)
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	expander := buildExpander(cfg, logger)
	reranker := buildReranker(cfg, logger)

	indexRepo := indexrepo.New(store).WithIndexName(cfg.Search.IndexName)

	resultCache := cache.New(time.Duration(cfg.Search.CacheTTLSec) * time.Second)
	resultCache.StartJanitor(ctx, time.Duration(cfg.Search.SweepPeriodSec)*time.Second)

	searchSvc := searchuc.New(resultCache, expander, embedder, indexRepo, reranker).
		WithDepths(cfg.Search.TopK, cfg.Search.RerankDepth)

	healthSvc := health.New(store, newEmbeddingHealthChecker(embedder))

	server := httpapi.NewServer(searchSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(httpapi.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the embedder chain: OpenAI -> Cached.
func buildEmbedder(cfg config.Config, store db.Store, logger *zap.Logger) domain.Embedder {
	base := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		Provider:   "openai",
		Logger:     logger,
	})

	cacheTTL := time.Duration(cfg.Embedding.CacheTTLHours) * time.Hour
	return embcache.New(base, store, cacheTTL, metrics.EmbeddingCacheTotal, logger)
}

// buildExpander picks the expansion stage: LLM rewriting when enabled,
// otherwise the deterministic context prefix.
func buildExpander(cfg config.Config, logger *zap.Logger) searchuc.Expander {
	if !cfg.Expander.Enabled {
		return searchuc.ContextExpander{}
	}
	return openaiTransport.NewExpander(&openaiTransport.StageConfig{
		APIKey:  cfg.Expander.APIKey,
		BaseURL: cfg.Expander.BaseURL,
		Model:   cfg.Expander.Model,
		Timeout: time.Duration(cfg.Expander.TimeoutSec) * time.Second,
		Logger:  logger,
	})
}

// buildReranker returns nil when the re-ranking stage is disabled.
func buildReranker(cfg config.Config, logger *zap.Logger) searchuc.Reranker {
	if !cfg.Reranker.Enabled {
		return nil
	}
	return openaiTransport.NewReranker(&openaiTransport.StageConfig{
		APIKey:  cfg.Reranker.APIKey,
		BaseURL: cfg.Reranker.BaseURL,
		Model:   cfg.Reranker.Model,
		Timeout: time.Duration(cfg.Reranker.TimeoutSec) * time.Second,
		Logger:  logger,
	})
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
