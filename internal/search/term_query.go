package search

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/index"
)

// TermQuery matches documents containing a term.
type TermQuery struct {
	boost
	term index.Term
}

func NewTermQuery(t index.Term) *TermQuery {
	return &TermQuery{boost: boost{1}, term: t}
}

func (q *TermQuery) Term() index.Term { return q.term }

func (q *TermQuery) String(field string) string {
	return fieldPrefix(q.term, field) + q.term.Text + formatBoost(q.Boost())
}

func (q *TermQuery) createWeight(s Searcher, _ index.Reader) (weight, error) {
	idf, err := termIdf(q.term, s)
	if err != nil {
		return nil, err
	}
	return &termWeight{query: q, idf: idf}, nil
}

type termWeight struct {
	query  *TermQuery
	idf    float32
	weight float32
}

func (w *termWeight) sumOfSquaredWeights() float32 {
	w.weight = w.idf * w.query.Boost()
	return w.weight * w.weight
}

func (w *termWeight) normalize(norm float32) {
	w.weight *= norm
	w.weight *= w.idf
}

func (w *termWeight) scorer(r index.Reader) (scorer, error) {
	df, err := r.DocFreq(w.query.term)
	if err != nil || df == 0 {
		return nil, err
	}
	docs, err := r.TermDocs(w.query.term)
	if err != nil {
		return nil, err
	}
	norms, err := r.Norms(w.query.term.Field)
	if err != nil {
		docs.Close()
		return nil, err
	}
	return newTermScorer(docs, norms, w.weight), nil
}

const (
	termScorerBuffer = 128
	scoreCacheSize   = 32
)

// termScorer reads postings in blocks and scores them as
// tf(freq) * weight * norm.
type termScorer struct {
	docs   index.TermDocs
	norms  []byte
	weight float32

	doc        int
	docBuf     [termScorerBuffer]int
	freqBuf    [termScorerBuffer]int
	pointer    int
	pointerMax int
	scoreCache [scoreCacheSize]float32
}

func newTermScorer(docs index.TermDocs, norms []byte, weight float32) *termScorer {
	s := &termScorer{docs: docs, norms: norms, weight: weight, doc: -1}
	for i := range s.scoreCache {
		s.scoreCache[i] = Tf(float32(i)) * weight
	}
	return s
}

func (s *termScorer) fill() error {
	n, err := s.docs.Read(s.docBuf[:], s.freqBuf[:])
	if err != nil {
		return err
	}
	s.pointer, s.pointerMax = 0, n
	if n == 0 {
		s.doc = math.MaxInt
		return s.docs.Close()
	}
	s.doc = s.docBuf[0]
	return nil
}

func (s *termScorer) score(c HitCollector, end int) error {
	if s.doc == -1 {
		if err := s.fill(); err != nil {
			return err
		}
	}
	for s.doc < end {
		f := s.freqBuf[s.pointer]
		var score float32
		if f < scoreCacheSize {
			score = s.scoreCache[f]
		} else {
			score = Tf(float32(f)) * s.weight
		}
		score *= index.DecodeNorm(s.norms[s.doc])
		c.Collect(s.doc, score)

		s.pointer++
		if s.pointer == s.pointerMax {
			if err := s.fill(); err != nil {
				return err
			}
			continue
		}
		s.doc = s.docBuf[s.pointer]
	}
	return nil
}
