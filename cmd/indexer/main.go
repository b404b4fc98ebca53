// Command indexer starts the indexing service.
//
// It consumes ingest events from the document-ingest topic, applies them to
// the on-disk index through a single writer, commits on a timer and
// publishes a commit event to the index-complete topic after every commit so
// searchers can reopen. Document outcomes are recorded in PostgreSQL when it
// is enabled.
//
// Usage:
//
//	go run ./cmd/indexer [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/store"
	"github.com/Adithya-Monish-Kumar-K/segment-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/segment-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/segment-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/segment-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/segment-search/pkg/postgres"
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
	slog.Info("starting indexer service",
		"data_dir", cfg.Index.DataDir,
		"directory", cfg.Index.Directory,
		"analyzer", cfg.Index.Analyzer,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, reg)
		defer shutdown(context.Background())
	}

	dir, err := store.Open(cfg.Index.Directory, cfg.Index.DataDir, false)
	if err != nil {
		slog.Error("failed to open index directory", "error", err)
		os.Exit(1)
	}
	defer dir.Close()

	engine, err := indexer.NewEngine(dir, cfg.Index, m)
	if err != nil {
		slog.Error("failed to open index", "error", err)
		os.Exit(1)
	}

	var statuses consumer.StatusStore
	if cfg.Postgres.Enabled {
		pg, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, document status tracking disabled", "error", err)
		} else {
			defer pg.Close()
			statuses = pg
			slog.Info("document status tracking enabled", "database", cfg.Postgres.Database)
		}
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
	defer producer.Close()
	engine.SetCommitHook(func(ctx context.Context, ev indexer.CommitEvent) {
		if err := producer.Publish(ctx, kafka.Event{Key: ev.Operation, Value: ev}); err != nil {
			slog.Error("failed to publish commit event", "operation", ev.Operation, "error", err)
		}
	})

	engine.StartLoops(ctx)

	kafkaConsumer := kafka.NewConsumer(
		cfg.Kafka,
		cfg.Kafka.Topics.DocumentIngest,
		consumer.HandleMessage(engine, statuses),
	)
	slog.Info("indexer service ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.DocumentIngest,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := kafkaConsumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}

	slog.Info("committing index before shutdown")
	if err := engine.Close(); err != nil {
		slog.Error("final commit failed", "error", err)
	}
	slog.Info("indexer service stopped")
}
