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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/LarryYiGuo/TextNavi-sub000/internal/config"
	"github.com/LarryYiGuo/TextNavi-sub000/internal/db"
	dbMemory "github.com/LarryYiGuo/TextNavi-sub000/internal/db/memory"
	dbRedis "github.com/LarryYiGuo/TextNavi-sub000/internal/db/redis"
	"github.com/LarryYiGuo/TextNavi-sub000/internal/domain"
	logpkg "github.com/LarryYiGuo/TextNavi-sub000/internal/logger"
	"github.com/LarryYiGuo/TextNavi-sub000/internal/metrics"
	"github.com/LarryYiGuo/TextNavi-sub000/internal/repository/embcache"
	scenerepo "github.com/LarryYiGuo/TextNavi-sub000/internal/repository/scene"
	sessionrepo "github.com/LarryYiGuo/TextNavi-sub000/internal/repository/session"
	chiTransport "github.com/LarryYiGuo/TextNavi-sub000/internal/transport/chi"
	openaiEmb "github.com/LarryYiGuo/TextNavi-sub000/internal/transport/openai"
	healthuc "github.com/LarryYiGuo/TextNavi-sub000/internal/usecase/health"
	locateuc "github.com/LarryYiGuo/TextNavi-sub000/internal/usecase/locate"
	"github.com/LarryYiGuo/TextNavi-sub000/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting textnavi API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("scenes_dir", cfg.Scenes.Dir),
	)

	// Create the session/cache store based on driver
	var store db.Store
	switch cfg.Database.Driver {
	case "redis":
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create database store", zap.Error(err))
		}
	case "memory":
		store = dbMemory.NewStore()
	default:
		logger.Fatal("Unknown database driver", zap.String("driver", cfg.Database.Driver))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to session store")

	// Register metrics explicitly (no init())
	metrics.RegisterLocateMetrics()
	metrics.RegisterEmbeddingMetrics()

	// Embedder chain: OpenAI -> Cached -> Instruction. Optional: without it
	// the detail channel runs lexical-only.
	var embedder domain.Embedder
	if cfg.Embedding.APIKey != "" && cfg.Embedding.Model != "" {
		embedder = buildEmbedder(cfg.Embedding, store, logger)
		logger.Info("Embedder created",
			zap.String("provider", cfg.Embedding.Provider),
			zap.String("model", cfg.Embedding.Model),
			zap.Int("dimensions", cfg.Embedding.Dimensions),
		)
	} else {
		logger.Warn("No embedding provider configured, detail channel is lexical-only")
	}

	// Repositories
	sceneStore := scenerepo.NewFileStore(cfg.Scenes.Dir, cfg.Scenes.Strict, logger)
	if embedder != nil {
		sceneStore = sceneStore.WithEmbedder(embedder)
	}
	sessionStore := sessionrepo.New(store, time.Duration(cfg.Database.SessionTTLHours)*time.Hour)

	// Fusion engine
	locateSvc, err := locateuc.New(
		sceneStore, sessionStore, embedder,
		applyFusionOverrides(locateuc.DefaultConfig(), cfg.Fusion),
		logger,
	)
	if err != nil {
		logger.Fatal("Failed to create fusion engine", zap.Error(err))
	}

	// Health service
	healthSvc := healthuc.New(store, embeddingHealthChecker(embedder), sceneStore)

	server := chiTransport.NewServer(locateSvc, sessionStore, sceneStore, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	r.Handle("/metrics", promhttp.Handler())
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

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instruction.
func buildEmbedder(cfg config.EmbeddingConfig, store db.Store, logger *zap.Logger) domain.Embedder {
	provider := cfg.Provider
	if provider == "" {
		provider = "openai"
	}

	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Provider:   provider,
		Logger:     logger,
	})

	var embedder domain.Embedder = embcache.New(base, store, cfg.Model, metrics.EmbeddingCacheTotal, logger)

	// Instruction prefix (outermost so the cache key includes the instruction)
	if cfg.QueryInstruction != "" {
		return domain.NewInstructionEmbedder(embedder, cfg.QueryInstruction)
	}
	return embedder
}

// applyFusionOverrides maps the externally exposed tunables onto the engine
// defaults. Zero values keep the default.
func applyFusionOverrides(base locateuc.Config, over config.FusionConfig) locateuc.Config {
	if over.StructureTemperature > 0 {
		base.StructureTemperature = over.StructureTemperature
	}
	if over.DetailTemperature > 0 {
		base.DetailTemperature = over.DetailTemperature
	}
	if over.SharpenTemperature > 0 {
		base.SharpenTemperature = over.SharpenTemperature
	}
	if over.DefaultStructureWeight > 0 {
		base.DefaultStructureWeight = over.DefaultStructureWeight
	}
	if over.ConflictLogitGap > 0 {
		base.ConflictLogitGap = over.ConflictLogitGap
	}
	if over.MinConfidence > 0 {
		base.MinConfidence = over.MinConfidence
	}
	return base
}

// embeddingHealthChecker adapts a nilable embedder to health.EmbeddingChecker.
func embeddingHealthChecker(embedder domain.Embedder) healthuc.EmbeddingChecker {
	if embedder == nil {
		return nil
	}
	return &healthAdapter{embedder: embedder}
}

type healthAdapter struct {
	embedder domain.Embedder
}

func (h *healthAdapter) HealthCheck(ctx context.Context) error {
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
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
