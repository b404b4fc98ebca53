package search

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/segment-search/pkg/errors"
)

// MaxRequiredClauses bounds the required plus prohibited clauses of one
// BooleanQuery; each needs its own bit in a 32-bit mask.
const MaxRequiredClauses = 32

// BooleanClause is one sub-query of a BooleanQuery. A clause that is neither
// required nor prohibited is optional: it only adds to the score.
type BooleanClause struct {
	Query      Query
	Required   bool
	Prohibited bool
}

// BooleanQuery combines clauses with required (+), prohibited (-) and
// optional semantics.
type BooleanQuery struct {
	boost
	clauses []BooleanClause
}

func NewBooleanQuery() *BooleanQuery {
	return &BooleanQuery{boost: boost{1}}
}

// Add appends a clause. required and prohibited are mutually exclusive.
func (q *BooleanQuery) Add(sub Query, required, prohibited bool) {
	q.clauses = append(q.clauses, BooleanClause{Query: sub, Required: required, Prohibited: prohibited})
}

func (q *BooleanQuery) AddClause(c BooleanClause) {
	q.clauses = append(q.clauses, c)
}

func (q *BooleanQuery) Clauses() []BooleanClause { return q.clauses }

// String renders the clauses separated by spaces. Nested boolean queries and
// a boosted query are wrapped in parentheses.
func (q *BooleanQuery) String(field string) string {
	if b := q.Boost(); b != 1 {
		return "(" + q.clausesString(field) + ")" + formatBoost(b)
	}
	return q.clausesString(field)
}

func (q *BooleanQuery) clausesString(field string) string {
	var b strings.Builder
	for i, c := range q.clauses {
		if i > 0 {
			b.WriteByte(' ')
		}
		switch {
		case c.Prohibited:
			b.WriteByte('-')
		case c.Required:
			b.WriteByte('+')
		}
		if sub, ok := c.Query.(*BooleanQuery); ok && sub.Boost() == 1 {
			b.WriteString("(" + sub.String(field) + ")")
		} else {
			b.WriteString(c.Query.String(field))
		}
	}
	return b.String()
}

func (q *BooleanQuery) createWeight(s Searcher, r index.Reader) (weight, error) {
	w := &booleanWeight{query: q, weights: make([]weight, len(q.clauses))}
	for i, c := range q.clauses {
		sub, err := c.Query.createWeight(s, r)
		if err != nil {
			return nil, err
		}
		w.weights[i] = sub
	}
	return w, nil
}

type booleanWeight struct {
	query   *BooleanQuery
	weights []weight
}

func (w *booleanWeight) sumOfSquaredWeights() float32 {
	var sum float32
	for i, c := range w.query.clauses {
		if !c.Prohibited {
			sum += w.weights[i].sumOfSquaredWeights()
		}
	}
	b := w.query.Boost()
	return sum * b * b
}

func (w *booleanWeight) normalize(norm float32) {
	norm *= w.query.Boost()
	for i, c := range w.query.clauses {
		if !c.Prohibited {
			w.weights[i].normalize(norm)
		}
	}
}

func (w *booleanWeight) scorer(r index.Reader) (scorer, error) {
	clauses := w.query.clauses
	if len(clauses) == 1 && !clauses[0].Prohibited {
		return w.weights[0].scorer(r)
	}

	masked := 0
	for _, c := range clauses {
		if c.Required || c.Prohibited {
			masked++
		}
	}
	if masked > MaxRequiredClauses {
		return nil, fmt.Errorf("%w: %d required or prohibited clauses, limit is %d",
			apperrors.ErrTooManyClauses, masked, MaxRequiredClauses)
	}

	bs := newBooleanScorer()
	for i, c := range clauses {
		sub, err := w.weights[i].scorer(r)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			if c.Required {
				return nil, nil
			}
			continue
		}
		bs.add(sub, c.Required, c.Prohibited)
	}
	return bs, nil
}
