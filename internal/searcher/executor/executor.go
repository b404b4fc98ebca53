// Package executor runs parsed queries against the newest committed view of
// the index, reopening its searcher when the index changes on disk.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/index"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/queryparser"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/search"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/store"
	"github.com/Adithya-Monish-Kumar-K/segment-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/segment-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/segment-search/pkg/tracing"
)

// Request is one search. Field and Operator fall back to the configured
// defaults. DateField with From and/or To restricts hits to documents whose
// date keyword lies in the range.
type Request struct {
	Query     string
	Field     string
	Operator  string
	Offset    int
	Limit     int
	DateField string
	From      time.Time
	To        time.Time
}

// Hit is one ranked document with its stored fields.
type Hit struct {
	Doc    int               `json:"doc"`
	Score  float32           `json:"score"`
	Fields map[string]string `json:"fields"`
}

type SearchResult struct {
	Query     string `json:"query"`
	Parsed    string `json:"parsed"`
	TotalHits int    `json:"total_hits"`
	Offset    int    `json:"offset"`
	Results   []Hit  `json:"results"`
}

type Executor struct {
	dir      store.Directory
	analyzer analysis.Analyzer
	cfg      config.SearchConfig
	logger   *slog.Logger
	mu       sync.RWMutex
	searcher *search.IndexSearcher
	version  string
	openedAt time.Time
	reopenMu sync.Mutex
}

// New opens a searcher on dir. analyzer must match the one used to index.
func New(dir store.Directory, analyzer analysis.Analyzer, cfg config.SearchConfig) (*Executor, error) {
	e := &Executor{
		dir:      dir,
		analyzer: analyzer,
		cfg:      cfg,
		logger:   slog.Default().With("component", "query-executor"),
	}
	if _, err := e.Reopen(); err != nil {
		return nil, err
	}
	return e, nil
}

// Version identifies the index state the current searcher sees. It changes
// whenever a commit or deletion lands.
func (e *Executor) Version() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.version
}

// Generation is a compact hash of Version for use in cache keys.
func (e *Executor) Generation() uint64 {
	return xxhash.Sum64String(e.Version())
}

// OpenedAt returns when the current searcher was opened.
func (e *Executor) OpenedAt() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.openedAt
}

// indexVersion fingerprints the segments file and every deletions file.
func indexVersion(dir store.Directory) (string, error) {
	locker := dir.Locker()
	locker.Lock()
	defer locker.Unlock()
	mod, err := index.LastModified(dir)
	if err != nil {
		return "", fmt.Errorf("reading index version: %w", err)
	}
	names, err := dir.List()
	if err != nil {
		return "", fmt.Errorf("listing index files: %w", err)
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString(strconv.FormatInt(mod.UnixNano(), 36))
	for _, name := range names {
		if !strings.HasSuffix(name, ".del") {
			continue
		}
		t, err := dir.FileModified(name)
		if err != nil {
			continue
		}
		b.WriteString(";" + name + "@" + strconv.FormatInt(t.UnixNano(), 36))
	}
	return b.String(), nil
}

// Reopen swaps in a new searcher when the index changed since the last open
// and reports whether it did.
func (e *Executor) Reopen() (bool, error) {
	e.reopenMu.Lock()
	defer e.reopenMu.Unlock()

	version, err := indexVersion(e.dir)
	if err != nil {
		return false, err
	}
	if version == e.Version() && e.searcher != nil {
		return false, nil
	}
	s, err := search.OpenIndexSearcher(e.dir)
	if err != nil {
		return false, fmt.Errorf("opening searcher: %w", err)
	}

	e.mu.Lock()
	old := e.searcher
	e.searcher = s
	e.version = version
	e.openedAt = time.Now()
	e.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			e.logger.Warn("closing previous searcher", "error", err)
		}
	}
	e.logger.Info("searcher opened", "max_doc", s.MaxDoc(), "version", version)
	return true, nil
}

// StartReopenLoop checks for index changes every ReopenInterval until ctx is
// cancelled.
func (e *Executor) StartReopenLoop(ctx context.Context) {
	if e.cfg.ReopenInterval <= 0 {
		return
	}
	ticker := time.NewTicker(e.cfg.ReopenInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := e.Reopen(); err != nil {
					e.logger.Error("periodic reopen failed", "error", err)
				}
			}
		}
	}()
}

func (e *Executor) parser(req Request) (*queryparser.Parser, error) {
	field := req.Field
	if field == "" {
		field = e.cfg.DefaultField
	}
	p := queryparser.New(field, e.analyzer)
	op := req.Operator
	if op == "" {
		op = e.cfg.DefaultOperator
	}
	switch strings.ToUpper(op) {
	case "AND":
		p.SetDefaultOperator(queryparser.AND)
	case "OR", "":
	default:
		return nil, fmt.Errorf("%w: unknown operator %q", apperrors.ErrInvalidInput, op)
	}
	return p, nil
}

func (e *Executor) filter(req Request) (search.Filter, error) {
	if req.DateField == "" {
		if !req.From.IsZero() || !req.To.IsZero() {
			return nil, fmt.Errorf("%w: date range needs a date field", apperrors.ErrInvalidInput)
		}
		return nil, nil
	}
	switch {
	case !req.From.IsZero() && !req.To.IsZero():
		return search.NewDateFilter(req.DateField, req.From, req.To)
	case !req.From.IsZero():
		return search.DateFilterAfter(req.DateField, req.From)
	case !req.To.IsZero():
		return search.DateFilterBefore(req.DateField, req.To)
	default:
		return nil, nil
	}
}

// Execute parses and runs req, returning the requested page of hits.
func (e *Executor) Execute(ctx context.Context, req Request) (*SearchResult, error) {
	if req.Offset < 0 || req.Limit < 0 {
		return nil, fmt.Errorf("%w: offset and limit must not be negative", apperrors.ErrInvalidInput)
	}
	_, parseSpan := tracing.StartChildSpan(ctx, "parse")
	p, err := e.parser(req)
	if err != nil {
		return nil, err
	}
	q, err := p.Parse(req.Query)
	parseSpan.End()
	if err != nil {
		return nil, err
	}
	filter, err := e.filter(req)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.searcher == nil {
		return nil, fmt.Errorf("%w: executor is closed", apperrors.ErrInvalidInput)
	}

	_, searchSpan := tracing.StartChildSpan(ctx, "search")
	hits, err := search.NewHitsWithCache(e.searcher, q, filter, max(e.cfg.HitsCacheSize, 1))
	searchSpan.End()
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", req.Query, err)
	}
	searchSpan.SetAttr("total_hits", hits.Len())
	result := &SearchResult{
		Query:     req.Query,
		Parsed:    q.String(p.DefaultField()),
		TotalHits: hits.Len(),
		Offset:    req.Offset,
		Results:   []Hit{},
	}
	_, loadSpan := tracing.StartChildSpan(ctx, "load")
	defer loadSpan.End()
	end := min(req.Offset+req.Limit, hits.Len())
	for i := req.Offset; i < end; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hit, err := hitAt(hits, i)
		if err != nil {
			return nil, err
		}
		result.Results = append(result.Results, hit)
	}
	e.logger.Debug("query executed",
		"query", req.Query,
		"parsed", result.Parsed,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
	)
	return result, nil
}

func hitAt(hits *search.Hits, i int) (Hit, error) {
	id, err := hits.ID(i)
	if err != nil {
		return Hit{}, err
	}
	score, err := hits.Score(i)
	if err != nil {
		return Hit{}, err
	}
	doc, err := hits.Doc(i)
	if err != nil {
		return Hit{}, fmt.Errorf("loading document %d: %w", id, err)
	}
	fields := make(map[string]string)
	for _, f := range doc.Fields() {
		if f.IsStored() {
			fields[f.Name()] = f.StringValue()
		}
	}
	return Hit{Doc: id, Score: score, Fields: fields}, nil
}

// Close releases the current searcher.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.searcher == nil {
		return nil
	}
	err := e.searcher.Close()
	e.searcher = nil
	return err
}
