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

	"github.com/kailas-cloud/hybridex/internal/config"
	"github.com/kailas-cloud/hybridex/internal/db"
	dbRedis "github.com/kailas-cloud/hybridex/internal/db/redis"
	"github.com/kailas-cloud/hybridex/internal/domain"
	logpkg "github.com/kailas-cloud/hybridex/internal/logger"
	"github.com/kailas-cloud/hybridex/internal/metrics"
	"github.com/kailas-cloud/hybridex/internal/repository/embcache"
	shardrepo "github.com/kailas-cloud/hybridex/internal/repository/shard"
	chiTransport "github.com/kailas-cloud/hybridex/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/hybridex/internal/transport/openai"
	healthuc "github.com/kailas-cloud/hybridex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/hybridex/internal/usecase/search"
	"github.com/kailas-cloud/hybridex/internal/version"
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

	logger.Info("Starting hybridex API server",
		zap.String("build", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Int("shards", len(cfg.Shards)),
		zap.String("technique", cfg.Search.Technique),
	)

	// One store per shard; a shard's position in the config is its index.
	ctx := context.Background()
	readiness := time.Duration(cfg.ReadinessTimeout) * time.Second

	stores := make([]*dbRedis.Store, 0, len(cfg.Shards))
	shards := make([]searchuc.Shard, 0, len(cfg.Shards))
	pingers := make([]healthuc.ShardPinger, 0, len(cfg.Shards))
	for i, sc := range cfg.Shards {
		store, err := dbRedis.NewStore(dbRedis.Config{
			Driver:   dbRedis.Driver(sc.Driver),
			Addrs:    sc.Addrs,
			Username: sc.Username,
			Password: sc.Password,
			DB:       sc.DB,
		})
		if err != nil {
			logger.Fatal("Failed to create shard store", zap.Int("shard", i), zap.Error(err))
		}
		defer store.Close()

		if err := store.WaitForReady(ctx, readiness); err != nil {
			logger.Fatal("Shard not ready", zap.Int("shard", i), zap.Strings("addrs", sc.Addrs), zap.Error(err))
		}
		logger.Info("Connected to shard",
			zap.Int("shard", i),
			zap.String("driver", sc.Driver),
			zap.String("index", sc.Index),
		)

		stores = append(stores, store)
		shards = append(shards, shardrepo.New(i, sc.Index, store).WithFields(sc.VectorField, sc.TextField))
		pingers = append(pingers, store)
	}

	// Register metrics explicitly (no init())
	metrics.RegisterHTTPMetrics()
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	// Pass a nil interface (not a typed nil pointer) when no embedder is configured.
	var embedder domain.Embedder
	var embeddingChecker healthuc.EmbeddingChecker
	if cfg.Embedding.Enabled() {
		var cache db.KV
		if cfg.Embedding.Cache.Enabled {
			cache = stores[cfg.Embedding.Cache.Shard]
		}
		e := buildEmbedder(cfg.Embedding, cache, logger)
		embedder = e
		embeddingChecker = e
		logger.Info("Embedder created",
			zap.String("provider", cfg.Embedding.Provider),
			zap.String("model", cfg.Embedding.Model),
			zap.Int("dimensions", cfg.Embedding.Dimensions),
			zap.Bool("cache", cache != nil),
		)
	} else {
		logger.Warn("No embedding model configured; semantic sub-queries must carry vectors")
	}

	searchSvc := searchuc.New(shards, embedder, searchuc.Options{
		AllowPartialResults: cfg.Search.AllowPartialResults,
		ShardTimeout:        time.Duration(cfg.Search.ShardTimeoutSec) * time.Second,
	})
	healthSvc := healthuc.New(pingers, embeddingChecker)

	server := chiTransport.NewServer(searchSvc, healthSvc, logger).
		WithDefaultTechnique(cfg.Search.Technique)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// queryEmbedder is what the coordinator and the health service need from the provider.
type queryEmbedder interface {
	domain.Embedder
	domain.HealthChecker
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instruction
func buildEmbedder(cfg config.EmbeddingConfig, cache db.KV, logger *zap.Logger) queryEmbedder {
	// Base provider (with transport metrics built-in)
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Provider:   cfg.Provider,
		Logger:     logger,
	})

	var embedder queryEmbedder = base
	if cache != nil {
		ttl := time.Duration(cfg.Cache.TTLSec) * time.Second
		embedder = embcache.New(base, cache, cfg.Model, ttl, metrics.EmbeddingCacheTotal, logger)
	}

	// Instruction prefix (outermost, so the cache key includes the instruction)
	if cfg.QueryInstruction != "" {
		return domain.NewInstructionEmbedder(embedder, cfg.QueryInstruction)
	}
	return embedder
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
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.ErrorCodeInternalError,
						Message: "internal error",
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
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
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
