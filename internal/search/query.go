// Package search evaluates queries against an index.Reader. A Query is
// weighted against a Searcher, normalized, and turned into a scorer that
// pushes (doc, score) pairs into a HitCollector.
package search

import (
	"math"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/index"
)

// Query is the closed set of query variants in this package.
type Query interface {
	Boost() float32
	SetBoost(b float32)
	// String renders the query. Terms in field are printed without a field
	// prefix.
	String(field string) string

	createWeight(s Searcher, r index.Reader) (weight, error)
}

// weight is a query bound to one Searcher's statistics.
type weight interface {
	sumOfSquaredWeights() float32
	normalize(norm float32)
	// scorer returns nil when no document can match.
	scorer(r index.Reader) (scorer, error)
}

type scorer interface {
	// score collects every matching document numbered below end.
	score(c HitCollector, end int) error
}

// boost is embedded by every Query implementation. Constructors start it
// at 1.
type boost struct {
	value float32
}

func (b *boost) Boost() float32 { return b.value }

func (b *boost) SetBoost(v float32) { b.value = v }

// newScorer runs the weighting protocol for q and returns its scorer, or nil
// when nothing matches.
func newScorer(q Query, s Searcher, r index.Reader) (scorer, error) {
	w, err := q.createWeight(s, r)
	if err != nil {
		return nil, err
	}
	sum := w.sumOfSquaredWeights()
	norm := float32(1)
	if sum > 0 {
		norm = float32(1 / math.Sqrt(float64(sum)))
	}
	w.normalize(norm)
	return w.scorer(r)
}

func fieldPrefix(t index.Term, field string) string {
	if t.Field == field {
		return ""
	}
	return t.Field + ":"
}

// formatBoost renders a non-default boost as "^2.0".
func formatBoost(b float32) string {
	if b == 1 {
		return ""
	}
	s := strconv.FormatFloat(float64(b), 'f', -1, 32)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return "^" + s
}
