package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/intersect-search/intersect/internal/config"
	"github.com/intersect-search/intersect/internal/db"
	dbRedis "github.com/intersect-search/intersect/internal/db/redis"
	"github.com/intersect-search/intersect/internal/domain"
	logpkg "github.com/intersect-search/intersect/internal/logger"
	"github.com/intersect-search/intersect/internal/metrics"
	corpusrepo "github.com/intersect-search/intersect/internal/repository/corpus"
	"github.com/intersect-search/intersect/internal/repository/embcache"
	chiTransport "github.com/intersect-search/intersect/internal/transport/chi"
	"github.com/intersect-search/intersect/internal/transport/cohere"
	openaiEmb "github.com/intersect-search/intersect/internal/transport/openai"
	"github.com/intersect-search/intersect/internal/usecase/cluster"
	"github.com/intersect-search/intersect/internal/usecase/lexical"
	"github.com/intersect-search/intersect/internal/usecase/permute"
	"github.com/intersect-search/intersect/internal/usecase/pipeline"
	"github.com/intersect-search/intersect/internal/usecase/rerank"
	"github.com/intersect-search/intersect/internal/usecase/semantic"
	"github.com/intersect-search/intersect/internal/version"
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

	logger.Info("Starting intersect API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("corpus_path", cfg.Corpus.Path),
	)

	// Register provider metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRerankMetrics()

	corpus, err := corpusrepo.NewLoader(logger).Load(cfg.Corpus.Path)
	if err != nil {
		logger.Fatal("Failed to load corpus", zap.Error(err))
	}

	ctx := context.Background()

	// Optional cache store. Without it every embedding hits the provider.
	var store db.Store
	if len(cfg.Cache.Addrs) > 0 {
		redisStore, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer redisStore.Close()

		timeout := time.Duration(cfg.Cache.ReadinessTimeout) * time.Second
		if err := redisStore.WaitForReady(ctx, timeout); err != nil {
			logger.Fatal("Cache store not ready", zap.Error(err))
		}
		store = redisStore
		logger.Info("Connected to cache store", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	embedder := buildEmbedder(cfg, store, logger)

	// Rerank stage is optional: without credentials the pipeline runs
	// lexical and semantic only.
	var rerankSvc *rerank.Service
	if cfg.Rerank.APIKey != "" {
		provider, err := cohere.NewClient(&cohere.Config{
			APIKey:  cfg.Rerank.APIKey,
			BaseURL: cfg.Rerank.BaseURL,
			Model:   cfg.Rerank.Model,
			Logger:  logger,
		})
		if err != nil {
			logger.Fatal("Failed to create rerank client", zap.Error(err))
		}
		rerankSvc = rerank.New(provider, logger)
		logger.Info("Rerank enabled", zap.String("model", cfg.Rerank.Model))
	}

	var permuteSvc *permute.Service
	if cfg.Permute.APIKey != "" {
		clientCfg := goopenai.DefaultConfig(cfg.Permute.APIKey)
		if cfg.Permute.BaseURL != "" {
			clientCfg.BaseURL = cfg.Permute.BaseURL
		}
		permuteSvc = permute.New(goopenai.NewClientWithConfig(clientCfg), cfg.Permute.Model, logger)
		logger.Info("Permute enabled", zap.String("model", cfg.Permute.Model))
	}

	pipelineSvc := pipeline.New(embedder, lexical.New(logger), semantic.New(logger), rerankSvc, logger)

	server := chiTransport.NewServer(chiTransport.ServerConfig{
		Corpus:   corpus,
		Pipeline: pipelineSvc,
		Viz:      cluster.New(logger),
		VizDefaults: cluster.Options{
			Projection:     cluster.Projection(cfg.Viz.Projection),
			Method:         cluster.Method(cfg.Viz.Method),
			Clusters:       cfg.Viz.Clusters,
			MinClusterSize: cfg.Viz.MinClusterSize,
			Seed:           cfg.Viz.Seed,
		},
		Permute:  permuteSvc,
		Embedder: embedder,
		APIKeys:  cfg.Auth.APIKeys,
		Logger:   logger,
	})

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
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

// buildEmbedder assembles the embedder chain: OpenAI -> Cached.
func buildEmbedder(cfg config.Config, store db.Store, logger *zap.Logger) domain.Embedder {
	counter, err := openaiEmb.NewTiktokenCounter(cfg.Embedding.Model)
	if err != nil {
		// Without a tokenizer the length pre-check is skipped and the
		// provider enforces its own limit.
		logger.Warn("Token counter unavailable", zap.Error(err))
	}

	var tc openaiEmb.TokenCounter
	if counter != nil {
		tc = counter
	}

	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Counter:    tc,
		MaxTokens:  cfg.Embedding.MaxTokens,
		Provider:   "openai",
		Logger:     logger,
	})
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("max_tokens", cfg.Embedding.MaxTokens),
	)

	if store == nil {
		return base
	}

	ttl := time.Duration(cfg.Cache.TTLHours) * time.Hour
	return embcache.New(base, store, cfg.Cache.KeyPrefix, ttl, metrics.EmbeddingCacheTotal, logger)
}
