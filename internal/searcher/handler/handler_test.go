package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/segment-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/segment-search/pkg/metrics"
)

type fakeExecutor struct {
	last  executor.Request
	calls int
	err   error
}

func (f *fakeExecutor) Execute(_ context.Context, req executor.Request) (*executor.SearchResult, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &executor.SearchResult{
		Query:     req.Query,
		TotalHits: 1,
		Results:   []executor.Hit{{Doc: 0, Score: 1, Fields: map[string]string{"id": "a"}}},
	}, nil
}

func (f *fakeExecutor) Generation() uint64 { return 7 }
func (f *fakeExecutor) Version() string { return "v7" }
func (f *fakeExecutor) OpenedAt() time.Time { return time.Unix(0, 0) }
func (f *fakeExecutor) Reopen() (bool, error) { return true, nil }

type memStore map[string]string

func (s memStore) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := s[key]
	return v, ok, nil
}

func (s memStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	s[key] = string(value.([]byte))
	return nil
}

func (s memStore) FlushByPattern(context.Context, string) (int64, error) {
	n := int64(len(s))
	clear(s)
	return n, nil
}

func serve(h *Handler, method, target string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestSearchParsesParameters(t *testing.T) {
	exec := &fakeExecutor{}
	h := New(exec, nil, nil, 10, 50)

	rec := serve(h, http.MethodGet, "/api/v1/search?q=title:go&field=title&op=AND&limit=500&offset=5&date_field=published&from=2024-01-01T00:00:00Z")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "title:go", exec.last.Query)
	assert.Equal(t, "title", exec.last.Field)
	assert.Equal(t, "AND", exec.last.Operator)
	assert.Equal(t, 50, exec.last.Limit, "limit is capped at max results")
	assert.Equal(t, 5, exec.last.Offset)
	assert.Equal(t, 2024, exec.last.From.Year())
	assert.True(t, exec.last.To.IsZero())

	var res executor.SearchResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, 1, res.TotalHits)
	assert.Equal(t, "a", res.Results[0].Fields["id"])
}

func TestSearchRejectsBadRequests(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	h := New(&fakeExecutor{}, nil, m, 10, 50)
	for _, target := range []string{
		"/api/v1/search",
		"/api/v1/search?q=a&limit=0",
		"/api/v1/search?q=a&offset=-2",
		"/api/v1/search?q=a&from=yesterday",
	} {
		rec := serve(h, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
	assert.Equal(t, 4.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("invalid")))
}

func TestSearchMapsExecutorErrors(t *testing.T) {
	exec := &fakeExecutor{err: errors.New("segment unreadable")}
	h := New(exec, nil, nil, 10, 50)
	rec := serve(h, http.MethodGet, "/api/v1/search?q=a")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "segment unreadable")

	exec.err = apperrors.ErrTooManyClauses
	rec = serve(h, http.MethodGet, "/api/v1/search?q=a")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchUsesCache(t *testing.T) {
	exec := &fakeExecutor{}
	m := metrics.New(prometheus.NewRegistry())
	h := New(exec, cache.New(memStore{}, time.Minute, m), m, 10, 50)

	for i := range 3 {
		rec := serve(h, http.MethodGet, "/api/v1/search?q=go")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, cacheHeaderValue(i > 0), rec.Header().Get(CacheHeader))
	}
	assert.Equal(t, 1, exec.calls)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("hit")))

	rec := serve(h, http.MethodGet, "/api/v1/cache/stats")
	var stats map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, 2.0, stats["hits"])
	assert.Equal(t, "66.7%", stats["hit_rate"])

	rec = serve(h, http.MethodPost, "/api/v1/cache/invalidate")
	assert.Equal(t, http.StatusOK, rec.Code)
	serve(h, http.MethodGet, "/api/v1/search?q=go")
	assert.Equal(t, 2, exec.calls)
}

func TestCacheDisabled(t *testing.T) {
	h := New(&fakeExecutor{}, nil, nil, 10, 50)
	assert.Equal(t, http.StatusServiceUnavailable, serve(h, http.MethodPost, "/api/v1/cache/invalidate").Code)
	assert.JSONEq(t, `{"status":"disabled"}`, serve(h, http.MethodGet, "/api/v1/cache/stats").Body.String())
}

func TestIndexEndpoints(t *testing.T) {
	h := New(&fakeExecutor{}, nil, nil, 10, 50)
	rec := serve(h, http.MethodGet, "/api/v1/index")
	assert.JSONEq(t, `{"version":"v7","generation":"7","opened_at":"1970-01-01T00:00:00Z"}`, rec.Body.String())

	rec = serve(h, http.MethodPost, "/api/v1/index/reopen")
	assert.JSONEq(t, `{"reopened":true}`, rec.Body.String())
}
