package search

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/segment-search/pkg/errors"
)

// MultiSearcher searches several Searchers as one. Document numbers of the
// i-th searcher are offset by the total MaxDoc of the searchers before it.
type MultiSearcher struct {
	searchers []Searcher
	starts    []int
	maxDoc    int
}

func NewMultiSearcher(searchers ...Searcher) *MultiSearcher {
	m := &MultiSearcher{
		searchers: searchers,
		starts:    make([]int, len(searchers)+1),
	}
	for i, s := range searchers {
		m.starts[i] = m.maxDoc
		m.maxDoc += s.MaxDoc()
	}
	m.starts[len(searchers)] = m.maxDoc
	return m
}

func (m *MultiSearcher) MaxDoc() int { return m.maxDoc }

// DocFreq sums the document frequency of t over every searcher.
func (m *MultiSearcher) DocFreq(t index.Term) (int, error) {
	total := 0
	for _, s := range m.searchers {
		df, err := s.DocFreq(t)
		if err != nil {
			return 0, err
		}
		total += df
	}
	return total, nil
}

// searcherIndex returns the searcher holding global document n.
func (m *MultiSearcher) searcherIndex(n int) int {
	return sort.Search(len(m.searchers), func(i int) bool { return m.starts[i+1] > n })
}

func (m *MultiSearcher) Doc(n int) (*document.Document, error) {
	if n < 0 || n >= m.maxDoc {
		return nil, fmt.Errorf("%w: document %d out of range [0, %d)", apperrors.ErrInvalidInput, n, m.maxDoc)
	}
	i := m.searcherIndex(n)
	return m.searchers[i].Doc(n - m.starts[i])
}

func (m *MultiSearcher) Close() error {
	var errs []error
	for _, s := range m.searchers {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Search merges the top n of every searcher. Statistics for weighting come
// from the MultiSearcher, so scores are comparable across searchers.
func (m *MultiSearcher) Search(q Query, filter Filter, n int) (TopDocs, error) {
	queue := newHitQueue(n)
	var minScore float32
	totalHits := 0
	for i, s := range m.searchers {
		td, err := m.searchOne(i, s, q, filter, n)
		if err != nil {
			return TopDocs{}, err
		}
		totalHits += td.TotalHits
		for _, sd := range td.ScoreDocs {
			if sd.Score < minScore {
				break
			}
			sd.Doc += m.starts[i]
			queue.Put(sd)
			if queue.Size() > n {
				queue.Pop()
				top, _ := queue.Top()
				minScore = top.Score
			}
		}
	}
	docs := make([]ScoreDoc, queue.Size())
	for i := len(docs) - 1; i >= 0; i-- {
		docs[i], _ = queue.Pop()
	}
	return TopDocs{TotalHits: totalHits, ScoreDocs: docs}, nil
}

func (m *MultiSearcher) SearchCollect(q Query, filter Filter, c HitCollector) error {
	for i, s := range m.searchers {
		start := m.starts[i]
		shifted := HitCollectorFunc(func(doc int, score float32) {
			c.Collect(doc+start, score)
		})
		if err := m.collectOne(s, q, filter, shifted); err != nil {
			return err
		}
	}
	return nil
}

// searchOne runs q on one sub-searcher, weighting it with global statistics
// when the sub-searcher exposes its reader.
func (m *MultiSearcher) searchOne(i int, s Searcher, q Query, filter Filter, n int) (TopDocs, error) {
	is, ok := s.(*IndexSearcher)
	if !ok {
		return s.Search(q, filter, n)
	}
	c := newTopDocsCollector(n)
	if err := m.scoreReader(is, q, filter, c); err != nil {
		return TopDocs{}, fmt.Errorf("searching sub-searcher %d: %w", i, err)
	}
	return c.topDocs(), nil
}

func (m *MultiSearcher) collectOne(s Searcher, q Query, filter Filter, c HitCollector) error {
	is, ok := s.(*IndexSearcher)
	if !ok {
		return s.SearchCollect(q, filter, c)
	}
	return m.scoreReader(is, q, filter, c)
}

func (m *MultiSearcher) scoreReader(is *IndexSearcher, q Query, filter Filter, c HitCollector) error {
	r := is.Reader()
	sc, err := newScorer(q, m, r)
	if err != nil || sc == nil {
		return err
	}
	bits, err := filterBits(filter, r)
	if err != nil {
		return err
	}
	if bits != nil {
		c = filteredCollector(bits, c)
	}
	return sc.score(c, r.MaxDoc())
}
