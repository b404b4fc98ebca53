// Package consumer turns ingest events read from Kafka into index changes.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/indexer"
	apperrors "github.com/Adithya-Monish-Kumar-K/segment-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/segment-search/pkg/kafka"
)

// Document statuses recorded in the status store.
const (
	StatusIndexed = "INDEXED"
	StatusDeleted = "DELETED"
	StatusFailed  = "FAILED"
)

// Index is the part of the indexer engine the consumer drives.
type Index interface {
	IndexDocument(doc *document.Document) error
	Update(ctx context.Context, doc *document.Document) error
	Delete(ctx context.Context, id string) (int, error)
}

// StatusStore records the outcome of each event. postgres.Client satisfies
// it.
type StatusStore interface {
	SetStatus(ctx context.Context, docID, status, reason string) error
}

// HandleMessage returns a handler applying ingest events to idx. statuses may
// be nil. Malformed events are logged and acknowledged so they do not block
// the partition; index failures are returned so the message is retried.
func HandleMessage(idx Index, statuses StatusStore) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[indexer.IngestEvent](value)
		if err != nil {
			logger.Error("failed to decode ingest event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		logger.Debug("processing ingest event",
			"doc_id", event.DocumentID,
			"op", event.Op,
		)

		status, err := apply(ctx, idx, event)
		if errors.Is(err, apperrors.ErrInvalidInput) {
			logger.Warn("rejected ingest event", "doc_id", event.DocumentID, "error", err)
			recordStatus(ctx, statuses, event.DocumentID, StatusFailed, err, logger)
			return nil
		}
		if err != nil {
			recordStatus(ctx, statuses, event.DocumentID, StatusFailed, err, logger)
			return fmt.Errorf("applying %s of document %s: %w", event.Op, event.DocumentID, err)
		}
		recordStatus(ctx, statuses, event.DocumentID, status, nil, logger)
		logger.Info("ingest event applied",
			"doc_id", event.DocumentID,
			"op", event.Op,
		)
		return nil
	}
}

func apply(ctx context.Context, idx Index, event indexer.IngestEvent) (string, error) {
	switch event.Op {
	case indexer.OpIndex, "":
		doc, err := indexer.BuildDocument(event)
		if err != nil {
			return "", err
		}
		return StatusIndexed, idx.IndexDocument(doc)
	case indexer.OpUpdate:
		doc, err := indexer.BuildDocument(event)
		if err != nil {
			return "", err
		}
		return StatusIndexed, idx.Update(ctx, doc)
	case indexer.OpDelete:
		if event.DocumentID == "" {
			return "", fmt.Errorf("%w: document_id is required", apperrors.ErrInvalidInput)
		}
		_, err := idx.Delete(ctx, event.DocumentID)
		return StatusDeleted, err
	default:
		return "", fmt.Errorf("%w: unknown op %q", apperrors.ErrInvalidInput, event.Op)
	}
}

func recordStatus(ctx context.Context, statuses StatusStore, docID, status string, cause error, logger *slog.Logger) {
	if statuses == nil || docID == "" {
		return
	}
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	if err := statuses.SetStatus(ctx, docID, status, reason); err != nil {
		logger.Error("failed to update document status",
			"doc_id", docID,
			"status", status,
			"error", err,
		)
	}
}
