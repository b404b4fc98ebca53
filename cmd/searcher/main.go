// Command searcher starts the search HTTP service.
//
// It serves GET /api/v1/search against the committed index, reopening its
// view when a commit event arrives or the index changes on disk. Results are
// cached in Redis when it is enabled. Health endpoints live under /health.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/store"
	"github.com/Adithya-Monish-Kumar-K/segment-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/segment-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/segment-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/segment-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/segment-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/segment-search/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/segment-search/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "data_dir", cfg.Index.DataDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	dir, err := store.Open(cfg.Index.Directory, cfg.Index.DataDir, false)
	if err != nil {
		slog.Error("failed to open index directory", "error", err)
		os.Exit(1)
	}
	defer dir.Close()

	analyzer, err := analysis.ByName(cfg.Index.Analyzer)
	if err != nil {
		slog.Error("invalid analyzer", "error", err)
		os.Exit(1)
	}
	exec, err := executor.New(dir, analyzer, cfg.Search)
	if err != nil {
		slog.Error("failed to open index", "error", err)
		os.Exit(1)
	}
	defer exec.Close()
	exec.StartReopenLoop(ctx)

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	// Every searcher instance reads all commit events, so each gets its own
	// consumer group.
	host, _ := os.Hostname()
	commitCfg := cfg.Kafka
	commitCfg.ConsumerGroup = fmt.Sprintf("%s-searcher-%s", cfg.Kafka.ConsumerGroup, host)
	commitConsumer := kafka.NewConsumer(commitCfg, cfg.Kafka.Topics.IndexComplete,
		func(ctx context.Context, _ []byte, value []byte) error {
			ev, err := kafka.DecodeJSON[indexer.CommitEvent](value)
			if err != nil {
				slog.Warn("ignoring malformed commit event", "error", err)
				return nil
			}
			reopened, err := exec.Reopen()
			if err != nil {
				return err
			}
			slog.Debug("commit event received", "operation", ev.Operation, "max_doc", ev.MaxDoc, "reopened", reopened)
			return nil
		})
	go func() {
		if err := commitConsumer.Start(ctx); err != nil {
			slog.Error("commit consumer error", "error", err)
		}
	}()

	checker := health.NewChecker()
	checker.Register("index", health.StalenessCheck(exec.OpenedAt, 24*time.Hour))
	if redisClient != nil {
		checker.Register("redis", health.PingCheck(redisClient.Ping))
	}

	h := handler.New(exec, queryCache, m, cfg.Search.DefaultLimit, cfg.Search.MaxResults)
	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, reg)
		defer shutdown(context.Background())
	}

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if cfg.Server.RateLimit > 0 {
		chain = middleware.RateLimit(middleware.NewClientLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst))(chain)
	}
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}
