// Package indexer owns the index writer of a service. It batches added
// documents, commits them on a flush interval, applies deletions through a
// short-lived reader and periodically optimizes the index.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/index"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/store"
	"github.com/Adithya-Monish-Kumar-K/segment-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/segment-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/segment-search/pkg/metrics"
)

// CommitHook is called after every commit, outside the engine lock.
type CommitHook func(ctx context.Context, ev CommitEvent)

// Stats describes the committed index.
type Stats struct {
	Segments []SegmentStat `json:"segments"`
	MaxDoc   int           `json:"max_doc"`
	Pending  int           `json:"pending"`
}

type SegmentStat struct {
	Name     string `json:"name"`
	DocCount int    `json:"doc_count"`
}

type Engine struct {
	mu       sync.Mutex
	dir      store.Directory
	analyzer analysis.Analyzer
	wcfg     index.WriterConfig
	cfg      config.IndexConfig
	writer   *index.Writer
	pending  int
	metrics  *metrics.Metrics
	hook     CommitHook
	logger   *slog.Logger
}

// NewEngine opens a writer on dir, creating an empty index when none exists.
// m may be nil.
func NewEngine(dir store.Directory, cfg config.IndexConfig, m *metrics.Metrics) (*Engine, error) {
	a, err := analysis.ByName(cfg.Analyzer)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		dir:      dir,
		analyzer: a,
		wcfg: index.WriterConfig{
			MaxFieldLength: cfg.MaxFieldLength,
			MergeFactor:    cfg.MergeFactor,
			MaxMergeDocs:   cfg.MaxMergeDocs,
		},
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "indexer"),
	}
	if err := e.openWriter(!index.IndexExists(dir)); err != nil {
		return nil, err
	}
	stats, err := e.stats()
	if err != nil {
		e.writer.Close()
		return nil, err
	}
	e.logger.Info("index opened",
		"segments", len(stats.Segments),
		"max_doc", stats.MaxDoc,
	)
	e.observe(stats)
	return e, nil
}

// SetCommitHook installs fn to be told about every commit.
func (e *Engine) SetCommitHook(fn CommitHook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hook = fn
}

// Analyzer returns the analyzer documents are indexed with.
func (e *Engine) Analyzer() analysis.Analyzer { return e.analyzer }

func (e *Engine) openWriter(create bool) error {
	w, err := index.NewWriter(e.dir, e.analyzer, create, e.wcfg)
	if err != nil {
		return fmt.Errorf("opening index writer: %w", err)
	}
	e.writer = w
	return nil
}

// IndexDocument adds doc. It becomes searchable after the next commit.
func (e *Engine) IndexDocument(doc *document.Document) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.writer == nil {
		return fmt.Errorf("%w: engine is closed", apperrors.ErrInvalidInput)
	}
	if err := e.writer.AddDocument(doc); err != nil {
		return fmt.Errorf("adding document: %w", err)
	}
	e.pending++
	if e.metrics != nil {
		e.metrics.DocsIndexedTotal.Inc()
	}
	e.logger.Debug("document added", "id", doc.Get(IDField), "pending", e.pending)
	return nil
}

// Delete removes every document whose id field is id and commits. It
// returns the number of documents deleted.
func (e *Engine) Delete(ctx context.Context, id string) (int, error) {
	e.mu.Lock()
	n, err := e.deleteLocked(id)
	ev, hook := e.commitEvent("delete", err)
	e.mu.Unlock()
	if err != nil {
		return n, err
	}
	if hook != nil {
		hook(ctx, ev)
	}
	return n, nil
}

// Update replaces the documents with doc's id by doc and commits.
func (e *Engine) Update(ctx context.Context, doc *document.Document) error {
	id := doc.Get(IDField)
	if id == "" {
		return fmt.Errorf("%w: document has no %s field", apperrors.ErrInvalidInput, IDField)
	}
	e.mu.Lock()
	_, err := e.deleteLocked(id)
	if err == nil {
		if err = e.writer.AddDocument(doc); err == nil {
			e.pending++
			err = e.commitLocked()
		}
	}
	ev, hook := e.commitEvent("update", err)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	if hook != nil {
		hook(ctx, ev)
	}
	return nil
}

// deleteLocked closes the writer so its documents are committed, deletes
// through a reader, then reopens the writer on the result.
func (e *Engine) deleteLocked(id string) (int, error) {
	if e.writer == nil {
		return 0, fmt.Errorf("%w: engine is closed", apperrors.ErrInvalidInput)
	}
	if err := e.commitLocked(); err != nil {
		return 0, err
	}
	if err := e.writer.Close(); err != nil {
		e.writer = nil
		return 0, fmt.Errorf("closing writer for delete: %w", err)
	}
	e.writer = nil

	n, delErr := e.deleteTerm(index.NewTerm(IDField, id))
	if err := e.openWriter(false); err != nil {
		return n, err
	}
	if delErr != nil {
		return n, delErr
	}
	if e.metrics != nil {
		e.metrics.DocsDeletedTotal.Add(float64(n))
	}
	e.logger.Info("documents deleted", "id", id, "count", n)
	return n, nil
}

func (e *Engine) deleteTerm(t index.Term) (int, error) {
	r, err := index.Open(e.dir)
	if err != nil {
		return 0, fmt.Errorf("opening reader for delete: %w", err)
	}
	n, err := r.DeleteTerm(t)
	if closeErr := r.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, fmt.Errorf("deleting %s: %w", t, err)
	}
	return n, nil
}

// commitLocked makes pending documents visible by closing and reopening the
// writer, which merges its in-memory segments into the directory.
func (e *Engine) commitLocked() error {
	if e.pending == 0 {
		return nil
	}
	if err := e.writer.Close(); err != nil {
		e.writer = nil
		return fmt.Errorf("committing writer: %w", err)
	}
	e.writer = nil
	if err := e.openWriter(false); err != nil {
		return err
	}
	e.logger.Info("pending documents committed", "count", e.pending)
	e.pending = 0
	return nil
}

// Flush commits pending documents. It is a no-op when there are none.
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.Lock()
	if e.pending == 0 || e.writer == nil {
		e.mu.Unlock()
		return nil
	}
	err := e.commitLocked()
	ev, hook := e.commitEvent("flush", err)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	if hook != nil {
		hook(ctx, ev)
	}
	return nil
}

// Optimize commits pending documents and merges the index into one segment.
func (e *Engine) Optimize(ctx context.Context) error {
	start := time.Now()
	e.mu.Lock()
	if e.writer == nil {
		e.mu.Unlock()
		return fmt.Errorf("%w: engine is closed", apperrors.ErrInvalidInput)
	}
	err := e.writer.Optimize()
	if err == nil {
		e.pending = 0
	}
	ev, hook := e.commitEvent("optimize", err)
	e.mu.Unlock()
	if err != nil {
		return fmt.Errorf("optimizing index: %w", err)
	}
	if e.metrics != nil {
		e.metrics.OptimizeDuration.Observe(time.Since(start).Seconds())
	}
	e.logger.Info("index optimized", "max_doc", ev.MaxDoc, "duration", time.Since(start))
	if hook != nil {
		hook(ctx, ev)
	}
	return nil
}

// commitEvent records the outcome of a commit and snapshots what the hook
// should be told. It must be called with the lock held.
func (e *Engine) commitEvent(op string, err error) (CommitEvent, CommitHook) {
	status := "success"
	if err != nil {
		status = "error"
	}
	if e.metrics != nil {
		e.metrics.SegmentFlushesTotal.WithLabelValues(op, status).Inc()
	}
	if err != nil {
		e.logger.Error("commit failed", "operation", op, "error", err)
		return CommitEvent{}, nil
	}
	stats, statErr := e.stats()
	if statErr != nil {
		e.logger.Warn("reading index stats after commit", "error", statErr)
	}
	e.observe(stats)
	return CommitEvent{
		Operation:   op,
		Segments:    len(stats.Segments),
		MaxDoc:      stats.MaxDoc,
		CommittedAt: time.Now().UTC(),
	}, e.hook
}

func (e *Engine) observe(stats Stats) {
	if e.metrics == nil {
		return
	}
	e.metrics.SegmentCount.Set(float64(len(stats.Segments)))
	e.metrics.IndexDocCount.Set(float64(stats.MaxDoc))
}

// Stats reads the committed segment list.
func (e *Engine) Stats() (Stats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats()
}

func (e *Engine) stats() (Stats, error) {
	locker := e.dir.Locker()
	locker.Lock()
	infos, err := index.ReadSegmentInfos(e.dir)
	locker.Unlock()
	if err != nil {
		return Stats{}, fmt.Errorf("reading segment infos: %w", err)
	}
	stats := Stats{Pending: e.pending}
	for _, si := range infos.Segments {
		stats.Segments = append(stats.Segments, SegmentStat{Name: si.Name, DocCount: si.DocCount})
		stats.MaxDoc += si.DocCount
	}
	return stats, nil
}

// StartLoops commits pending documents every FlushInterval and optimizes
// every MergeInterval until ctx is cancelled, then performs a final flush.
// A non-positive interval disables its loop.
func (e *Engine) StartLoops(ctx context.Context) {
	flushC, stopFlush := tick(e.cfg.FlushInterval)
	mergeC, stopMerge := tick(e.cfg.MergeInterval)
	go func() {
		defer stopFlush()
		defer stopMerge()
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("index loops stopping, performing final flush")
				if err := e.Flush(context.Background()); err != nil {
					e.logger.Error("final flush failed", "error", err)
				}
				return
			case <-flushC:
				if err := e.Flush(ctx); err != nil {
					e.logger.Error("periodic flush failed", "error", err)
				}
			case <-mergeC:
				if err := e.Optimize(ctx); err != nil {
					e.logger.Error("periodic optimize failed", "error", err)
				}
			}
		}
	}()
}

func tick(d time.Duration) (<-chan time.Time, func()) {
	if d <= 0 {
		return nil, func() {}
	}
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Close commits pending documents and releases the write lock.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.writer == nil {
		return nil
	}
	err := e.writer.Close()
	e.writer = nil
	e.pending = 0
	if err != nil {
		return fmt.Errorf("closing index writer: %w", err)
	}
	return nil
}
