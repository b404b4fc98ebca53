package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentile(t *testing.T) {
	sorted := make([]time.Duration, 100)
	for i := range sorted {
		sorted[i] = time.Duration(i+1) * time.Millisecond
	}
	assert.Equal(t, 50*time.Millisecond, percentile(sorted, 50))
	assert.Equal(t, 99*time.Millisecond, percentile(sorted, 99))
	assert.Equal(t, 100*time.Millisecond, percentile(sorted, 100))
	assert.Equal(t, time.Millisecond, percentile(sorted, 0))
	assert.Zero(t, percentile(nil, 50))
}

func TestRunAgainstSearchAPI(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := requests.Add(1)
		if r.URL.Path != "/api/v1/search" || r.URL.Query().Get("q") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if n%2 == 0 {
			w.Header().Set("X-Cache", "HIT")
		}
		fmt.Fprintf(w, `{"total_hits":%d}`, n%3)
	}))
	defer srv.Close()

	cfg := config{baseURL: srv.URL, concurrency: 2, limit: 5, op: "AND", queries: []string{"a b", "c"}}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	s := run(ctx, cfg, srv.Client())

	require.Positive(t, s.total.Load())
	assert.Equal(t, s.total.Load(), s.success.Load())
	assert.Positive(t, s.cacheHits.Load())
	assert.Positive(t, s.zeroResults.Load())

	var out bytes.Buffer
	assert.True(t, report(&out, s, 200*time.Millisecond))
	assert.Contains(t, out.String(), "  200: ")
}

func TestReportWithoutRequests(t *testing.T) {
	var out bytes.Buffer
	assert.False(t, report(&out, newStats(), time.Second))
	assert.Contains(t, out.String(), "No requests completed")
}

func TestReadQueries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.txt")
	require.NoError(t, os.WriteFile(path, []byte("# comment\nfoo bar\n\n  baz  \n"), 0o644))
	qs, err := readQueries(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"foo bar", "baz"}, qs)

	empty := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = readQueries(empty)
	assert.Error(t, err)
}

func TestSearchURL(t *testing.T) {
	cfg := config{baseURL: "http://h", limit: 3, op: "AND"}
	assert.Equal(t, "http://h/api/v1/search?limit=3&op=AND&q=a+b", cfg.searchURL("a b"))
}
