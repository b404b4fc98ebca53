package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/segment-search/pkg/metrics"
)

type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemStore() *memStore { return &memStore{data: make(map[string]string)} }

func (s *memStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = string(value.([]byte))
	return nil
}

func (s *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func TestGetOrCompute(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	c := New(newMemStore(), time.Minute, m)
	ctx := context.Background()
	req := executor.Request{Query: "search  engine", Limit: 10}

	calls := 0
	compute := func() (*executor.SearchResult, error) {
		calls++
		return &executor.SearchResult{Query: req.Query, TotalHits: 3}, nil
	}

	res, cached, err := c.GetOrCompute(ctx, 1, req, compute)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 3, res.TotalHits)

	res, cached, err = c.GetOrCompute(ctx, 1, executor.Request{Query: "search engine", Limit: 10}, compute)
	require.NoError(t, err)
	assert.True(t, cached, "whitespace differences share a key")
	assert.Equal(t, 3, res.TotalHits)
	assert.Equal(t, 1, calls)

	_, cached, err = c.GetOrCompute(ctx, 2, req, compute)
	require.NoError(t, err)
	assert.False(t, cached, "new generation misses")
	assert.Equal(t, 2, calls)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(2), misses)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheMissesTotal))
}

func TestGetOrComputeErrorNotCached(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	ctx := context.Background()
	req := executor.Request{Query: "x"}

	_, _, err := c.GetOrCompute(ctx, 1, req, func() (*executor.SearchResult, error) {
		return nil, errors.New("index unavailable")
	})
	require.Error(t, err)

	_, cached, err := c.GetOrCompute(ctx, 1, req, func() (*executor.SearchResult, error) {
		return &executor.SearchResult{}, nil
	})
	require.NoError(t, err)
	assert.False(t, cached)
}

func TestGetOrComputeCoalesces(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	release := make(chan struct{})
	var calls atomic.Int32
	compute := func() (*executor.SearchResult, error) {
		calls.Add(1)
		<-release
		return &executor.SearchResult{TotalHits: 1}, nil
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			_, _, err := c.GetOrCompute(context.Background(), 1, executor.Request{Query: "q"}, compute)
			assert.NoError(t, err)
		})
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.LessOrEqual(t, calls.Load(), int32(2))
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	c := New(store, time.Minute, nil)
	ctx := context.Background()
	for _, q := range []string{"a", "b"} {
		_, _, err := c.GetOrCompute(ctx, 1, executor.Request{Query: q}, func() (*executor.SearchResult, error) {
			return &executor.SearchResult{}, nil
		})
		require.NoError(t, err)
	}
	store.data["other"] = "kept"

	require.NoError(t, c.Invalidate(ctx))
	assert.Equal(t, map[string]string{"other": "kept"}, store.data)
}

func TestBuildKey(t *testing.T) {
	base := executor.Request{Query: "a b", Limit: 10}
	assert.Equal(t, BuildKey(1, base), BuildKey(1, executor.Request{Query: " a   b ", Limit: 10}))
	assert.NotEqual(t, BuildKey(1, base), BuildKey(2, base))
	assert.NotEqual(t, BuildKey(1, base), BuildKey(1, executor.Request{Query: "A b", Limit: 10}))
	assert.NotEqual(t, BuildKey(1, base), BuildKey(1, executor.Request{Query: "a b", Limit: 10, Offset: 10}))
	assert.True(t, strings.HasPrefix(BuildKey(1, base), keyPrefix))
}
