// Package publisher puts ingest events on the document-ingest topic. Each
// publish is bounded by a timeout, retried with backoff and guarded by a
// circuit breaker so a broker outage fails requests fast instead of
// stacking them up.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/segment-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/segment-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/segment-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/segment-search/pkg/resilience"
)

// EventPublisher is satisfied by kafka.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// StatusStore is satisfied by postgres.Client.
type StatusStore interface {
	SetStatus(ctx context.Context, docID, status, reason string) error
}

// Config tunes the publish path. Zero values take the resilience defaults.
type Config struct {
	PublishTimeout time.Duration
	Retry          resilience.RetryConfig
	Breaker        resilience.CircuitBreakerConfig
}

// Publisher submits ingest events.
type Publisher struct {
	events   EventPublisher
	statuses StatusStore
	cfg      Config
	breaker  *resilience.CircuitBreaker
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates a Publisher. statuses and m may be nil.
func New(events EventPublisher, statuses StatusStore, cfg Config, m *metrics.Metrics) *Publisher {
	return &Publisher{
		events:   events,
		statuses: statuses,
		cfg:      cfg,
		breaker:  resilience.NewCircuitBreaker("document-ingest", cfg.Breaker),
		metrics:  m,
		logger:   slog.Default().With("component", "publisher"),
	}
}

// Submit records the document as pending and publishes ev keyed by its
// document ID, so every change to one document lands on one partition in
// order. It fails with ErrUnavailable when the status store or the broker
// cannot take the event.
func (p *Publisher) Submit(ctx context.Context, ev indexer.IngestEvent) error {
	if ev.IngestedAt.IsZero() {
		ev.IngestedAt = time.Now().UTC()
	}
	if p.statuses != nil {
		if err := p.statuses.SetStatus(ctx, ev.DocumentID, ingestion.StatusPending, ""); err != nil {
			p.count(ev.Op, "error")
			return fmt.Errorf("%w: recording status for %s: %v", apperrors.ErrUnavailable, ev.DocumentID, err)
		}
	}

	event := kafka.Event{Key: ev.DocumentID, Value: ev}
	err := p.breaker.Execute(func() error {
		return resilience.Retry(ctx, "publish-ingest-event", p.cfg.Retry, func() error {
			return resilience.WithTimeout(ctx, p.cfg.PublishTimeout, "publish", func(ctx context.Context) error {
				return p.events.Publish(ctx, event)
			})
		})
	})
	if err != nil {
		status := "error"
		if errors.Is(err, resilience.ErrCircuitOpen) {
			status = "rejected"
		}
		p.count(ev.Op, status)
		p.logger.Error("failed to publish ingest event",
			"doc_id", ev.DocumentID,
			"operation", ev.Op,
			"breaker_state", p.breaker.GetState().String(),
			"error", err,
		)
		p.markFailed(ev.DocumentID, err)
		return fmt.Errorf("%w: publishing %s event for %s: %v", apperrors.ErrUnavailable, ev.Op, ev.DocumentID, err)
	}
	p.count(ev.Op, "accepted")
	return nil
}

// BreakerState reports the publish circuit's state for health checks.
func (p *Publisher) BreakerState() resilience.State {
	return p.breaker.GetState()
}

// markFailed runs detached from the request so a cancelled caller still
// leaves a terminal status behind.
func (p *Publisher) markFailed(docID string, cause error) {
	if p.statuses == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.statuses.SetStatus(ctx, docID, ingestion.StatusFailed, cause.Error()); err != nil {
		p.logger.Warn("failed to record publish failure", "doc_id", docID, "error", err)
	}
}

func (p *Publisher) count(op, status string) {
	if p.metrics != nil {
		p.metrics.IngestRequestsTotal.WithLabelValues(op, status).Inc()
	}
}
