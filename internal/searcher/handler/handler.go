// Package handler exposes the search executor over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/segment-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/segment-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/segment-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/segment-search/pkg/tracing"
)

type SearchExecutor interface {
	Execute(ctx context.Context, req executor.Request) (*executor.SearchResult, error)
	Generation() uint64
	Version() string
	OpenedAt() time.Time
	Reopen() (bool, error)
}

type Handler struct {
	executor     SearchExecutor
	cache        *cache.QueryCache
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New returns a Handler. queryCache and m may be nil.
func New(exec SearchExecutor, queryCache *cache.QueryCache, m *metrics.Metrics, defaultLimit, maxResults int) *Handler {
	return &Handler{
		executor:     exec,
		cache:        queryCache,
		metrics:      m,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// Register mounts the handler's routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /api/v1/index", h.IndexInfo)
	mux.HandleFunc("POST /api/v1/index/reopen", h.Reopen)
}

func (h *Handler) intParam(r *http.Request, name string, def, lo int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < lo {
		return 0, fmt.Errorf("%w: %s must be an integer >= %d", apperrors.ErrInvalidInput, name, lo)
	}
	return v, nil
}

func timeParam(r *http.Request, name string) (time.Time, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be an RFC 3339 time", apperrors.ErrInvalidInput, name)
	}
	return t, nil
}

func (h *Handler) parseRequest(r *http.Request) (executor.Request, error) {
	q := r.URL.Query()
	req := executor.Request{
		Query:     q.Get("q"),
		Field:     q.Get("field"),
		Operator:  q.Get("op"),
		DateField: q.Get("date_field"),
	}
	if req.Query == "" {
		return req, fmt.Errorf("%w: query parameter 'q' is required", apperrors.ErrInvalidInput)
	}
	var err error
	if req.Limit, err = h.intParam(r, "limit", h.defaultLimit, 1); err != nil {
		return req, err
	}
	req.Limit = min(req.Limit, h.maxResults)
	if req.Offset, err = h.intParam(r, "offset", 0, 0); err != nil {
		return req, err
	}
	if req.From, err = timeParam(r, "from"); err != nil {
		return req, err
	}
	if req.To, err = timeParam(r, "to"); err != nil {
		return req, err
	}
	return req, nil
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	req, err := h.parseRequest(r)
	if err != nil {
		h.countQuery("invalid")
		h.writeError(w, err)
		return
	}

	ctx, span := tracing.StartSpan(ctx, "search", logger.RequestID(ctx))
	defer func() {
		span.End()
		span.Log(ctx, log)
	}()

	var result *executor.SearchResult
	cacheHit := false
	if h.cache != nil {
		cctx, cacheSpan := tracing.StartChildSpan(ctx, "cache")
		result, cacheHit, err = h.cache.GetOrCompute(cctx, h.executor.Generation(), req, func() (*executor.SearchResult, error) {
			return h.executor.Execute(cctx, req)
		})
		cacheSpan.SetAttr("hit", cacheHit)
		cacheSpan.End()
	} else {
		result, err = h.executor.Execute(ctx, req)
	}
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidInput) || errors.Is(err, apperrors.ErrTooManyClauses) {
			h.countQuery("invalid")
		} else {
			h.countQuery("error")
			log.Error("search execution failed", "query", req.Query, "error", err)
		}
		h.writeError(w, err)
		return
	}

	elapsed := time.Since(start)
	if h.metrics != nil {
		status := "miss"
		if cacheHit {
			status = "hit"
		}
		h.metrics.SearchLatency.WithLabelValues(status).Observe(elapsed.Seconds())
		h.metrics.SearchResultsCount.Observe(float64(result.TotalHits))
	}
	span.SetAttr("total_hits", result.TotalHits)
	if result.TotalHits == 0 {
		h.countQuery("zero_result")
	} else {
		h.countQuery("hit")
	}

	log.Info("search completed",
		"query", req.Query,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", elapsed.Milliseconds(),
	)
	if h.cache != nil {
		w.Header().Set(CacheHeader, cacheHeaderValue(cacheHit))
	}
	h.writeJSON(w, http.StatusOK, result)
}

// CacheHeader reports HIT or MISS on search responses when caching is on.
const CacheHeader = "X-Cache"

func cacheHeaderValue(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}

func (h *Handler) countQuery(resultType string) {
	if h.metrics != nil {
		h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	}
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) IndexInfo(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"version":    h.executor.Version(),
		"generation": strconv.FormatUint(h.executor.Generation(), 16),
		"opened_at":  h.executor.OpenedAt().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) Reopen(w http.ResponseWriter, r *http.Request) {
	reopened, err := h.executor.Reopen()
	if err != nil {
		h.logger.Error("reopen failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"reopened": reopened})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError maps err to a status code. Server-side failures are not echoed
// to the client.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		message = http.StatusText(status)
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
