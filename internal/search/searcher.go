package search

import (
	"fmt"
	"log/slog"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/index"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/store"
)

// Searcher evaluates queries over a fixed set of documents.
type Searcher interface {
	// Search returns the n best hits for q, restricted to filter when it is
	// not nil.
	Search(q Query, filter Filter, n int) (TopDocs, error)
	// SearchCollect passes every hit for q to c, in no particular order.
	SearchCollect(q Query, filter Filter, c HitCollector) error
	DocFreq(t index.Term) (int, error)
	MaxDoc() int
	Doc(n int) (*document.Document, error)
	Close() error
}

var (
	_ Searcher = (*IndexSearcher)(nil)
	_ Searcher = (*MultiSearcher)(nil)
)

// IndexSearcher searches a single index.Reader.
type IndexSearcher struct {
	reader    index.Reader
	ownReader bool
	logger    *slog.Logger
}

// NewIndexSearcher searches r. Closing the searcher does not close r.
func NewIndexSearcher(r index.Reader) *IndexSearcher {
	return &IndexSearcher{
		reader: r,
		logger: slog.Default().With("component", "index-searcher"),
	}
}

// OpenIndexSearcher opens the index in dir. Closing the searcher closes the
// reader it opened.
func OpenIndexSearcher(dir store.Directory) (*IndexSearcher, error) {
	r, err := index.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	s := NewIndexSearcher(r)
	s.ownReader = true
	return s, nil
}

func (s *IndexSearcher) Reader() index.Reader { return s.reader }

func (s *IndexSearcher) DocFreq(t index.Term) (int, error) {
	return s.reader.DocFreq(t)
}

func (s *IndexSearcher) MaxDoc() int {
	return s.reader.MaxDoc()
}

func (s *IndexSearcher) Doc(n int) (*document.Document, error) {
	return s.reader.Document(n)
}

func (s *IndexSearcher) Close() error {
	if !s.ownReader {
		return nil
	}
	return s.reader.Close()
}

func (s *IndexSearcher) Search(q Query, filter Filter, n int) (TopDocs, error) {
	sc, err := newScorer(q, s, s.reader)
	if err != nil {
		return TopDocs{}, fmt.Errorf("preparing query %s: %w", q.String(""), err)
	}
	if sc == nil {
		return TopDocs{}, nil
	}
	bits, err := filterBits(filter, s.reader)
	if err != nil {
		return TopDocs{}, err
	}

	c := newTopDocsCollector(n)
	var collector HitCollector = c
	if bits != nil {
		collector = filteredCollector(bits, c)
	}
	if err := sc.score(collector, s.reader.MaxDoc()); err != nil {
		return TopDocs{}, fmt.Errorf("scoring query %s: %w", q.String(""), err)
	}
	td := c.topDocs()
	s.logger.Debug("query evaluated",
		"query", q.String(""),
		"total_hits", td.TotalHits,
		"returned", len(td.ScoreDocs),
	)
	return td, nil
}

func (s *IndexSearcher) SearchCollect(q Query, filter Filter, c HitCollector) error {
	sc, err := newScorer(q, s, s.reader)
	if err != nil {
		return fmt.Errorf("preparing query %s: %w", q.String(""), err)
	}
	if sc == nil {
		return nil
	}
	bits, err := filterBits(filter, s.reader)
	if err != nil {
		return err
	}
	if bits != nil {
		c = filteredCollector(bits, c)
	}
	if err := sc.score(c, s.reader.MaxDoc()); err != nil {
		return fmt.Errorf("scoring query %s: %w", q.String(""), err)
	}
	return nil
}

func filterBits(f Filter, r index.Reader) (*roaring.Bitmap, error) {
	if f == nil {
		return nil, nil
	}
	bits, err := f.Bits(r)
	if err != nil {
		return nil, fmt.Errorf("computing filter %s: %w", f, err)
	}
	return bits, nil
}

func filteredCollector(bits *roaring.Bitmap, c HitCollector) HitCollector {
	return HitCollectorFunc(func(doc int, score float32) {
		if bits.Contains(uint32(doc)) {
			c.Collect(doc, score)
		}
	})
}
