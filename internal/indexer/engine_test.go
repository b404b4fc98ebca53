package indexer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/index"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/store"
	"github.com/Adithya-Monish-Kumar-K/segment-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/segment-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/segment-search/pkg/metrics"
)

func testConfig() config.IndexConfig {
	return config.IndexConfig{
		Directory:      "ram",
		Analyzer:       "standard",
		MaxFieldLength: 10000,
		MergeFactor:    3,
	}
}

func newTestEngine(t *testing.T, dir store.Directory) (*Engine, *metrics.Metrics) {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	e, err := NewEngine(dir, testConfig(), m)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e, m
}

func addDocs(t *testing.T, e *Engine, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		doc := document.New(
			document.Keyword(IDField, fmt.Sprintf("doc-%d", i)),
			document.Text(ContentsField, fmt.Sprintf("document number %d about search", i)),
		)
		require.NoError(t, e.IndexDocument(doc))
	}
}

func countTerm(t *testing.T, dir store.Directory, field, text string) int {
	t.Helper()
	r, err := index.Open(dir)
	require.NoError(t, err)
	defer r.Close()
	td, err := r.TermDocs(index.NewTerm(field, text))
	require.NoError(t, err)
	defer td.Close()
	n := 0
	for {
		ok, err := td.Next()
		require.NoError(t, err)
		if !ok {
			return n
		}
		n++
	}
}

func TestEngineFlushMakesDocumentsVisible(t *testing.T) {
	dir := store.NewRAMDirectory()
	e, m := newTestEngine(t, dir)

	addDocs(t, e, 7)
	assert.Equal(t, 0, countTerm(t, dir, ContentsField, "search"))

	var events []CommitEvent
	e.SetCommitHook(func(_ context.Context, ev CommitEvent) { events = append(events, ev) })

	require.NoError(t, e.Flush(context.Background()))
	assert.Equal(t, 7, countTerm(t, dir, ContentsField, "search"))
	require.Len(t, events, 1)
	assert.Equal(t, "flush", events[0].Operation)
	assert.Equal(t, 7, events[0].MaxDoc)

	require.NoError(t, e.Flush(context.Background()))
	assert.Len(t, events, 1, "empty flush must not commit")

	assert.Equal(t, 7.0, testutil.ToFloat64(m.DocsIndexedTotal))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.IndexDocCount))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SegmentFlushesTotal.WithLabelValues("flush", "success")))
}

func TestEngineDelete(t *testing.T) {
	dir := store.NewRAMDirectory()
	e, m := newTestEngine(t, dir)
	addDocs(t, e, 5)

	n, err := e.Delete(context.Background(), "doc-2")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = e.Delete(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	r, err := index.Open(dir)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 5, r.MaxDoc())
	assert.Equal(t, 4, r.NumDocs())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocsDeletedTotal))
}

func TestEngineUpdateReplacesDocument(t *testing.T) {
	dir := store.NewRAMDirectory()
	e, _ := newTestEngine(t, dir)
	addDocs(t, e, 3)

	doc := document.New(
		document.Keyword(IDField, "doc-1"),
		document.Text(ContentsField, "zebra stripes"),
	)
	require.NoError(t, e.Update(context.Background(), doc))

	assert.Equal(t, 1, countTerm(t, dir, IDField, "doc-1"))
	assert.Equal(t, 1, countTerm(t, dir, ContentsField, "zebra"))
	assert.Equal(t, 2, countTerm(t, dir, ContentsField, "search"))

	err := e.Update(context.Background(), document.New(document.Text(ContentsField, "no id")))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestEngineOptimize(t *testing.T) {
	dir := store.NewRAMDirectory()
	e, m := newTestEngine(t, dir)
	addDocs(t, e, 20)
	_, err := e.Delete(context.Background(), "doc-0")
	require.NoError(t, err)

	require.NoError(t, e.Optimize(context.Background()))

	stats, err := e.Stats()
	require.NoError(t, err)
	require.Len(t, stats.Segments, 1)
	assert.Equal(t, 19, stats.MaxDoc)
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SegmentCount))
}

func TestEngineReopensExistingIndex(t *testing.T) {
	dir := store.NewRAMDirectory()
	e, err := NewEngine(dir, testConfig(), nil)
	require.NoError(t, err)
	addDocs(t, e, 4)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.ErrorIs(t, e.IndexDocument(document.New()), apperrors.ErrInvalidInput)

	e2, err := NewEngine(dir, testConfig(), nil)
	require.NoError(t, err)
	defer e2.Close()
	stats, err := e2.Stats()
	require.NoError(t, err)
	assert.Equal(t, 4, stats.MaxDoc)
}

func TestEngineSecondWriterIsLockedOut(t *testing.T) {
	dir := store.NewRAMDirectory()
	newTestEngine(t, dir)
	_, err := NewEngine(dir, testConfig(), nil)
	assert.ErrorIs(t, err, apperrors.ErrLockHeld)
}

func TestEngineUnknownAnalyzer(t *testing.T) {
	cfg := testConfig()
	cfg.Analyzer = "klingon"
	_, err := NewEngine(store.NewRAMDirectory(), cfg, nil)
	assert.Error(t, err)
}

func TestEngineLoopsFlushAndStop(t *testing.T) {
	dir := store.NewRAMDirectory()
	cfg := testConfig()
	cfg.FlushInterval = 10 * time.Millisecond
	e, err := NewEngine(dir, cfg, nil)
	require.NoError(t, err)
	defer e.Close()

	var mu sync.Mutex
	flushed := 0
	e.SetCommitHook(func(_ context.Context, ev CommitEvent) {
		mu.Lock()
		flushed = ev.MaxDoc
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.StartLoops(ctx)
	addDocs(t, e, 3)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return flushed == 3
	}, 2*time.Second, 10*time.Millisecond)
}
