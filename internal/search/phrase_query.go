package search

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/segment-search/pkg/errors"
)

// PhraseQuery matches documents containing a sequence of terms. With a slop
// of zero the terms must be adjacent and in order; a positive slop allows
// that many position moves between them.
type PhraseQuery struct {
	boost
	field string
	terms []index.Term
	slop  int
}

func NewPhraseQuery() *PhraseQuery {
	return &PhraseQuery{boost: boost{1}}
}

// Add appends a term to the phrase. All terms must share one field.
func (q *PhraseQuery) Add(t index.Term) error {
	if len(q.terms) == 0 {
		q.field = t.Field
	} else if t.Field != q.field {
		return fmt.Errorf("%w: phrase term %s is not in field %q", apperrors.ErrInvalidInput, t, q.field)
	}
	q.terms = append(q.terms, t)
	return nil
}

func (q *PhraseQuery) Terms() []index.Term { return q.terms }
func (q *PhraseQuery) Slop() int { return q.slop }
func (q *PhraseQuery) SetSlop(slop int) { q.slop = slop }

func (q *PhraseQuery) String(field string) string {
	var b strings.Builder
	if q.field != field {
		b.WriteString(q.field + ":")
	}
	b.WriteByte('"')
	for i, t := range q.terms {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(t.Text)
	}
	b.WriteByte('"')
	if q.slop != 0 {
		b.WriteString("~" + strconv.Itoa(q.slop))
	}
	b.WriteString(formatBoost(q.Boost()))
	return b.String()
}

func (q *PhraseQuery) createWeight(s Searcher, _ index.Reader) (weight, error) {
	w := &phraseWeight{query: q}
	for _, t := range q.terms {
		idf, err := termIdf(t, s)
		if err != nil {
			return nil, err
		}
		w.idf += idf
	}
	return w, nil
}

type phraseWeight struct {
	query  *PhraseQuery
	idf    float32
	weight float32
}

func (w *phraseWeight) sumOfSquaredWeights() float32 {
	w.weight = w.idf * w.query.Boost()
	return w.weight * w.weight
}

func (w *phraseWeight) normalize(norm float32) {
	w.weight *= norm
	w.weight *= w.idf
}

func (w *phraseWeight) scorer(r index.Reader) (scorer, error) {
	terms := w.query.terms
	switch len(terms) {
	case 0:
		return nil, nil
	case 1:
		tw := &termWeight{query: NewTermQuery(terms[0]), weight: w.weight}
		return tw.scorer(r)
	}

	positions := make([]index.TermPositions, 0, len(terms))
	closeAll := func() {
		for _, p := range positions {
			p.Close()
		}
	}
	for _, t := range terms {
		df, err := r.DocFreq(t)
		if err != nil || df == 0 {
			closeAll()
			return nil, err
		}
		tp, err := r.TermPositions(t)
		if err != nil {
			closeAll()
			return nil, err
		}
		positions = append(positions, tp)
	}
	norms, err := r.Norms(w.query.field)
	if err != nil {
		closeAll()
		return nil, err
	}

	var freq phraseFreqFunc
	if w.query.slop == 0 {
		freq = exactPhraseFreq
	} else {
		freq = sloppyPhraseFreq(w.query.slop)
	}
	return newPhraseScorer(positions, norms, w.weight, freq)
}
