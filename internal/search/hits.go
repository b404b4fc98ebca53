package search

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/document"
	apperrors "github.com/Adithya-Monish-Kumar-K/segment-search/pkg/errors"
)

const (
	// DefaultHitsCacheSize bounds the stored documents a Hits keeps resolved.
	DefaultHitsCacheSize = 200
	initialHits          = 50
)

type hitDoc struct {
	score float32
	id    int
}

// Hits is a ranked, lazily materialized result list. Asking for a hit past
// the ones fetched so far re-runs the query for twice as many.
type Hits struct {
	searcher  Searcher
	query     Query
	filter    Filter
	length    int
	hitDocs   []hitDoc
	scoreNorm float32
	docs      *lru.Cache[int, *document.Document]
}

// NewHits runs q on s and fetches the first page of hits.
func NewHits(s Searcher, q Query, filter Filter) (*Hits, error) {
	return NewHitsWithCache(s, q, filter, DefaultHitsCacheSize)
}

// NewHitsWithCache is NewHits with a custom bound on cached documents.
func NewHitsWithCache(s Searcher, q Query, filter Filter, cacheSize int) (*Hits, error) {
	docs, err := lru.New[int, *document.Document](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating document cache: %w", err)
	}
	h := &Hits{searcher: s, query: q, filter: filter, scoreNorm: 1, docs: docs}
	if err := h.getMoreDocs(initialHits); err != nil {
		return nil, err
	}
	return h, nil
}

// getMoreDocs re-runs the query for twice as many hits as wanted.
func (h *Hits) getMoreDocs(wanted int) error {
	wanted = max(wanted, len(h.hitDocs))
	n := 2 * wanted
	td, err := h.searcher.Search(h.query, h.filter, n)
	if err != nil {
		return err
	}
	h.length = td.TotalHits
	if len(td.ScoreDocs) > 0 && td.ScoreDocs[0].Score > 1 {
		h.scoreNorm = 1 / td.ScoreDocs[0].Score
	}
	end := min(len(td.ScoreDocs), h.length)
	for i := len(h.hitDocs); i < end; i++ {
		sd := td.ScoreDocs[i]
		h.hitDocs = append(h.hitDocs, hitDoc{score: sd.Score, id: sd.Doc})
	}
	return nil
}

// Len is the total number of matching documents.
func (h *Hits) Len() int { return h.length }

func (h *Hits) hitDoc(n int) (hitDoc, error) {
	if n < 0 || n >= h.length {
		return hitDoc{}, fmt.Errorf("%w: hit %d out of range [0, %d)", apperrors.ErrInvalidInput, n, h.length)
	}
	if n >= len(h.hitDocs) {
		if err := h.getMoreDocs(n); err != nil {
			return hitDoc{}, err
		}
	}
	return h.hitDocs[n], nil
}

// Score returns the normalized score of the n-th hit. The best hit scores at
// most 1.
func (h *Hits) Score(n int) (float32, error) {
	hd, err := h.hitDoc(n)
	if err != nil {
		return 0, err
	}
	return hd.score * h.scoreNorm, nil
}

// ID returns the document number of the n-th hit.
func (h *Hits) ID(n int) (int, error) {
	hd, err := h.hitDoc(n)
	if err != nil {
		return 0, err
	}
	return hd.id, nil
}

// Doc returns the stored fields of the n-th hit.
func (h *Hits) Doc(n int) (*document.Document, error) {
	hd, err := h.hitDoc(n)
	if err != nil {
		return nil, err
	}
	if doc, ok := h.docs.Get(n); ok {
		return doc, nil
	}
	doc, err := h.searcher.Doc(hd.id)
	if err != nil {
		return nil, fmt.Errorf("loading hit %d: %w", n, err)
	}
	h.docs.Add(n, doc)
	return doc, nil
}
