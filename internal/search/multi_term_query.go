package search

import (
	"fmt"
	"strings"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/segment-search/pkg/errors"
)

// termMatcher classifies a dictionary term for a multi-term query. stop ends
// the enumeration: no later term can match.
type termMatcher func(t index.Term) (difference float32, match, stop bool)

type expandedTerm struct {
	term       index.Term
	difference float32
}

// expandTerms walks the dictionary of r from the first term >= from and
// returns the terms match accepts.
func expandTerms(r index.Reader, from index.Term, match termMatcher) ([]expandedTerm, error) {
	enum, err := r.TermsFrom(from)
	if err != nil {
		return nil, err
	}
	defer enum.Close()

	var terms []expandedTerm
	for t := enum.Term(); t != nil; t = enum.Term() {
		diff, ok, stop := match(*t)
		if stop {
			break
		}
		if ok {
			terms = append(terms, expandedTerm{term: *t, difference: diff})
		}
		more, err := enum.Next()
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
	}
	return terms, nil
}

// expansion caches the terms a multi-term query expanded to for the last
// reader it was evaluated against.
type expansion struct {
	mu     sync.Mutex
	reader index.Reader
	terms  []expandedTerm
}

// rewrite returns the optional-clause BooleanQuery equivalent to the
// multi-term query over r. Each clause carries boost scaled by how close its
// term is to the query.
func (e *expansion) rewrite(r index.Reader, boost float32, from index.Term, match termMatcher) (*BooleanQuery, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.reader != r {
		terms, err := expandTerms(r, from, match)
		if err != nil {
			return nil, fmt.Errorf("expanding terms from %s: %w", from, err)
		}
		e.reader, e.terms = r, terms
	}
	bq := NewBooleanQuery()
	for _, et := range e.terms {
		tq := NewTermQuery(et.term)
		tq.SetBoost(boost * et.difference)
		bq.Add(tq, false, false)
	}
	return bq, nil
}

// PrefixQuery matches documents containing a term that starts with a prefix.
type PrefixQuery struct {
	boost
	prefix index.Term
	exp    expansion
}

func NewPrefixQuery(prefix index.Term) *PrefixQuery {
	return &PrefixQuery{boost: boost{1}, prefix: prefix}
}

func (q *PrefixQuery) Prefix() index.Term { return q.prefix }

func (q *PrefixQuery) String(field string) string {
	return fieldPrefix(q.prefix, field) + q.prefix.Text + "*" + formatBoost(q.Boost())
}

// Rewrite expands the query into optional term clauses over r.
func (q *PrefixQuery) Rewrite(r index.Reader) (*BooleanQuery, error) {
	return q.exp.rewrite(r, q.Boost(), q.prefix, func(t index.Term) (float32, bool, bool) {
		if t.Field != q.prefix.Field || !strings.HasPrefix(t.Text, q.prefix.Text) {
			return 0, false, true
		}
		return 1, true, false
	})
}

func (q *PrefixQuery) createWeight(s Searcher, r index.Reader) (weight, error) {
	bq, err := q.Rewrite(r)
	if err != nil {
		return nil, err
	}
	return bq.createWeight(s, r)
}

// RangeQuery matches documents containing a term between two bounds. Either
// bound may be nil for an open range, but not both.
type RangeQuery struct {
	boost
	lower, upper *index.Term
	inclusive    bool
	exp          expansion
}

func NewRangeQuery(lower, upper *index.Term, inclusive bool) (*RangeQuery, error) {
	if lower == nil && upper == nil {
		return nil, fmt.Errorf("%w: range query needs at least one bound", apperrors.ErrInvalidInput)
	}
	if lower != nil && upper != nil && lower.Field != upper.Field {
		return nil, fmt.Errorf("%w: range bounds %s and %s are in different fields",
			apperrors.ErrInvalidInput, lower, upper)
	}
	return &RangeQuery{boost: boost{1}, lower: lower, upper: upper, inclusive: inclusive}, nil
}

func (q *RangeQuery) Field() string {
	if q.lower != nil {
		return q.lower.Field
	}
	return q.upper.Field
}

func (q *RangeQuery) Lower() *index.Term { return q.lower }
func (q *RangeQuery) Upper() *index.Term { return q.upper }
func (q *RangeQuery) Inclusive() bool { return q.inclusive }

func (q *RangeQuery) String(field string) string {
	var b strings.Builder
	if f := q.Field(); f != field {
		b.WriteString(f + ":")
	}
	if q.inclusive {
		b.WriteByte('[')
	} else {
		b.WriteByte('{')
	}
	if q.lower != nil {
		b.WriteString(q.lower.Text)
	}
	b.WriteByte('-')
	if q.upper != nil {
		b.WriteString(q.upper.Text)
	}
	if q.inclusive {
		b.WriteByte(']')
	} else {
		b.WriteByte('}')
	}
	b.WriteString(formatBoost(q.Boost()))
	return b.String()
}

// Rewrite expands the query into optional term clauses over r.
func (q *RangeQuery) Rewrite(r index.Reader) (*BooleanQuery, error) {
	field := q.Field()
	from := index.NewTerm(field, "")
	if q.lower != nil {
		from = *q.lower
	}
	return q.exp.rewrite(r, q.Boost(), from, func(t index.Term) (float32, bool, bool) {
		if t.Field != field {
			return 0, false, true
		}
		if q.lower != nil && !q.inclusive && t.Text <= q.lower.Text {
			return 0, false, false
		}
		if q.upper != nil {
			if t.Text > q.upper.Text || (!q.inclusive && t.Text == q.upper.Text) {
				return 0, false, true
			}
		}
		return 1, true, false
	})
}

func (q *RangeQuery) createWeight(s Searcher, r index.Reader) (weight, error) {
	bq, err := q.Rewrite(r)
	if err != nil {
		return nil, err
	}
	return bq.createWeight(s, r)
}

// FuzzyThreshold is the minimum similarity, 1 - distance/min(len), for a
// term to match a FuzzyQuery.
const FuzzyThreshold = 0.5

// FuzzyQuery matches terms within a Levenshtein edit distance of its term.
// Closer terms score higher.
type FuzzyQuery struct {
	boost
	term index.Term
	exp  expansion
}

func NewFuzzyQuery(t index.Term) *FuzzyQuery {
	return &FuzzyQuery{boost: boost{1}, term: t}
}

func (q *FuzzyQuery) Term() index.Term { return q.term }

func (q *FuzzyQuery) String(field string) string {
	return fieldPrefix(q.term, field) + q.term.Text + "~" + formatBoost(q.Boost())
}

// Rewrite expands the query into optional term clauses over r.
func (q *FuzzyQuery) Rewrite(r index.Reader) (*BooleanQuery, error) {
	text := []rune(q.term.Text)
	return q.exp.rewrite(r, q.Boost(), index.NewTerm(q.term.Field, ""), func(t index.Term) (float32, bool, bool) {
		if t.Field != q.term.Field {
			return 0, false, true
		}
		sim := similarity(text, []rune(t.Text))
		if sim <= FuzzyThreshold {
			return 0, false, false
		}
		return (sim - FuzzyThreshold) / (1 - FuzzyThreshold), true, false
	})
}

func (q *FuzzyQuery) createWeight(s Searcher, r index.Reader) (weight, error) {
	bq, err := q.Rewrite(r)
	if err != nil {
		return nil, err
	}
	return bq.createWeight(s, r)
}

// similarity is 1 - editDistance(a, b)/min(len(a), len(b)).
func similarity(a, b []rune) float32 {
	shorter := min(len(a), len(b))
	if shorter == 0 {
		if len(a) == len(b) {
			return 1
		}
		return 0
	}
	return 1 - float32(editDistance(a, b))/float32(shorter)
}

// editDistance is the Levenshtein distance between a and b.
func editDistance(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// WildcardQuery matches terms against a pattern where '*' stands for any
// run of characters and '?' for exactly one.
type WildcardQuery struct {
	boost
	term index.Term
	exp  expansion
}

func NewWildcardQuery(t index.Term) *WildcardQuery {
	return &WildcardQuery{boost: boost{1}, term: t}
}

func (q *WildcardQuery) Term() index.Term { return q.term }

func (q *WildcardQuery) String(field string) string {
	return fieldPrefix(q.term, field) + q.term.Text + formatBoost(q.Boost())
}

// Rewrite expands the query into optional term clauses over r.
func (q *WildcardQuery) Rewrite(r index.Reader) (*BooleanQuery, error) {
	pattern := q.term.Text
	pre := pattern
	if i := strings.IndexAny(pattern, "*?"); i >= 0 {
		pre = pattern[:i]
	}
	rest := []rune(pattern[len(pre):])
	return q.exp.rewrite(r, q.Boost(), index.NewTerm(q.term.Field, pre), func(t index.Term) (float32, bool, bool) {
		if t.Field != q.term.Field || !strings.HasPrefix(t.Text, pre) {
			return 0, false, true
		}
		return 1, wildcardMatch(rest, []rune(t.Text[len(pre):])), false
	})
}

func (q *WildcardQuery) createWeight(s Searcher, r index.Reader) (weight, error) {
	bq, err := q.Rewrite(r)
	if err != nil {
		return nil, err
	}
	return bq.createWeight(s, r)
}

func wildcardMatch(pattern, s []rune) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			for i := len(s); i >= 0; i-- {
				if wildcardMatch(pattern[1:], s[i:]) {
					return true
				}
			}
			return false
		case '?':
			if len(s) == 0 {
				return false
			}
		default:
			if len(s) == 0 || s[0] != pattern[0] {
				return false
			}
		}
		pattern, s = pattern[1:], s[1:]
	}
	return len(s) == 0
}
