// Package queryparser turns a query string into a search.Query.
//
// Syntax, by example:
//
//	apple banana          either term (or both, when the default operator is AND)
//	+apple -banana        apple required, banana prohibited
//	apple AND banana      AND / OR switch the operator for their group; NOT prohibits the next clause
//	title:apple           term in another field
//	"red apple"~2         phrase with slop
//	app* ap?le aple~      prefix, wildcard and fuzzy terms
//	[a TO c] {a TO *}     inclusive and exclusive ranges; * leaves a side open
//	(a b)^2 apple^0.5     grouping and boosts
package queryparser

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/index"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/search"
	apperrors "github.com/Adithya-Monish-Kumar-K/segment-search/pkg/errors"
)

type Operator int

const (
	OR Operator = iota
	AND
)

// Parser builds queries over a default field, analyzing plain terms and
// phrases with the analyzer used at index time.
type Parser struct {
	field    string
	analyzer analysis.Analyzer
	operator Operator
}

func New(defaultField string, a analysis.Analyzer) *Parser {
	return &Parser{field: defaultField, analyzer: a, operator: OR}
}

// SetDefaultOperator decides whether unmodified clauses are optional (OR) or
// required (AND).
func (p *Parser) SetDefaultOperator(op Operator) { p.operator = op }

func (p *Parser) DefaultField() string { return p.field }

// Parse parses query. A query whose terms are all removed by the analyzer
// yields an empty BooleanQuery, which matches nothing.
func (p *Parser) Parse(query string) (search.Query, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", apperrors.ErrInvalidInput)
	}
	st := &state{Parser: p, input: []rune(query)}
	q, err := st.parseGroup(false)
	if err != nil {
		return nil, err
	}
	if st.pos < len(st.input) {
		return nil, st.errorf("unexpected %q", st.input[st.pos])
	}
	return q, nil
}

type state struct {
	*Parser
	input []rune
	pos   int
}

func (s *state) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: parsing query at offset %d: %s",
		apperrors.ErrInvalidInput, s.pos, fmt.Sprintf(format, args...))
}

func (s *state) peek() (rune, bool) {
	if s.pos >= len(s.input) {
		return 0, false
	}
	return s.input[s.pos], true
}

func (s *state) skipSpace() {
	for s.pos < len(s.input) && unicode.IsSpace(s.input[s.pos]) {
		s.pos++
	}
}

func isTermRune(r rune) bool {
	if unicode.IsSpace(r) {
		return false
	}
	return !strings.ContainsRune(`()"[]{}^~:`, r)
}

func (s *state) readWord() string {
	start := s.pos
	for s.pos < len(s.input) && isTermRune(s.input[s.pos]) {
		s.pos++
	}
	return string(s.input[start:s.pos])
}

// parseGroup parses clauses up to the end of input, or up to the closing
// parenthesis when nested.
func (s *state) parseGroup(nested bool) (search.Query, error) {
	var clauses []search.BooleanClause
	op := s.operator
	prohibitNext := false
	for {
		s.skipSpace()
		r, ok := s.peek()
		if !ok {
			if nested {
				return nil, s.errorf("missing closing parenthesis")
			}
			break
		}
		if r == ')' {
			if !nested {
				return nil, s.errorf("unbalanced closing parenthesis")
			}
			s.pos++
			break
		}

		mark := s.pos
		switch word := s.readWord(); word {
		case "AND":
			op = AND
			continue
		case "OR":
			op = OR
			continue
		case "NOT":
			prohibitNext = true
			continue
		}
		s.pos = mark

		clause, err := s.parseClause()
		if err != nil {
			return nil, err
		}
		if prohibitNext {
			clause.Required, clause.Prohibited = false, true
			prohibitNext = false
		}
		if clause.Query != nil {
			clauses = append(clauses, clause)
		}
	}

	bq := search.NewBooleanQuery()
	for _, c := range clauses {
		if op == AND && !c.Prohibited {
			c.Required = true
		}
		bq.AddClause(c)
	}
	if len(clauses) == 1 && !clauses[0].Prohibited {
		return clauses[0].Query, nil
	}
	return bq, nil
}

func (s *state) parseClause() (search.BooleanClause, error) {
	var c search.BooleanClause
	switch r, _ := s.peek(); r {
	case '+':
		c.Required = true
		s.pos++
	case '-':
		c.Prohibited = true
		s.pos++
	}

	field := s.field
	mark := s.pos
	if word := s.readWord(); word != "" {
		if r, ok := s.peek(); ok && r == ':' {
			field = word
			s.pos++
		} else {
			s.pos = mark
		}
	}

	q, err := s.parseAtom(field)
	if err != nil {
		return c, err
	}
	if q != nil {
		if err := s.parseBoost(q); err != nil {
			return c, err
		}
	}
	c.Query = q
	return c, nil
}

func (s *state) parseAtom(field string) (search.Query, error) {
	r, ok := s.peek()
	if !ok {
		return nil, s.errorf("expected a term")
	}
	switch r {
	case '(':
		s.pos++
		return s.parseGroup(true)
	case '"':
		return s.parsePhrase(field)
	case '[', '{':
		return s.parseRange(field)
	}

	word := s.readWord()
	if word == "" {
		return nil, s.errorf("unexpected %q", r)
	}
	if r, ok := s.peek(); ok && r == '~' {
		s.pos++
		return search.NewFuzzyQuery(index.NewTerm(field, strings.ToLower(word))), nil
	}
	if i := strings.IndexAny(word, "*?"); i >= 0 {
		text := strings.ToLower(word)
		if i == len(word)-1 && word[i] == '*' {
			return search.NewPrefixQuery(index.NewTerm(field, text[:i])), nil
		}
		return search.NewWildcardQuery(index.NewTerm(field, text)), nil
	}
	return s.analyzed(field, word, 0)
}

func (s *state) parsePhrase(field string) (search.Query, error) {
	s.pos++
	start := s.pos
	for s.pos < len(s.input) && s.input[s.pos] != '"' {
		s.pos++
	}
	if s.pos >= len(s.input) {
		return nil, s.errorf("unterminated phrase")
	}
	text := string(s.input[start:s.pos])
	s.pos++

	slop := 0
	if r, ok := s.peek(); ok && r == '~' {
		s.pos++
		n, err := s.readNumber()
		if err != nil {
			return nil, err
		}
		if slop, err = strconv.Atoi(n); err != nil {
			return nil, s.errorf("invalid slop %q", n)
		}
	}
	return s.analyzed(field, text, slop)
}

// analyzed runs text through the analyzer: no tokens drop the clause, one
// token is a term query and several form a phrase.
func (s *state) analyzed(field, text string, slop int) (search.Query, error) {
	terms, err := analysis.Terms(s.analyzer, field, text)
	if err != nil {
		return nil, fmt.Errorf("analyzing %q: %w", text, err)
	}
	switch len(terms) {
	case 0:
		return nil, nil
	case 1:
		return search.NewTermQuery(index.NewTerm(field, terms[0])), nil
	}
	pq := search.NewPhraseQuery()
	for _, t := range terms {
		if err := pq.Add(index.NewTerm(field, t)); err != nil {
			return nil, err
		}
	}
	pq.SetSlop(slop)
	return pq, nil
}

func (s *state) parseRange(field string) (search.Query, error) {
	open := s.input[s.pos]
	inclusive := open == '['
	closing := ']'
	if !inclusive {
		closing = '}'
	}
	s.pos++
	start := s.pos
	for s.pos < len(s.input) && s.input[s.pos] != closing {
		s.pos++
	}
	if s.pos >= len(s.input) {
		return nil, s.errorf("unterminated range")
	}
	parts := strings.Fields(string(s.input[start:s.pos]))
	s.pos++
	if len(parts) != 3 || parts[1] != "TO" {
		return nil, s.errorf("range must be [lower TO upper]")
	}

	bound := func(text string) *index.Term {
		if text == "*" {
			return nil
		}
		t := index.NewTerm(field, strings.ToLower(text))
		return &t
	}
	q, err := search.NewRangeQuery(bound(parts[0]), bound(parts[2]), inclusive)
	if err != nil {
		return nil, fmt.Errorf("parsing range: %w", err)
	}
	return q, nil
}

func (s *state) parseBoost(q search.Query) error {
	if r, ok := s.peek(); !ok || r != '^' {
		return nil
	}
	s.pos++
	n, err := s.readNumber()
	if err != nil {
		return err
	}
	b, err := strconv.ParseFloat(n, 32)
	if err != nil || b <= 0 {
		return s.errorf("invalid boost %q", n)
	}
	q.SetBoost(float32(b))
	return nil
}

func (s *state) readNumber() (string, error) {
	start := s.pos
	for s.pos < len(s.input) && (unicode.IsDigit(s.input[s.pos]) || s.input[s.pos] == '.') {
		s.pos++
	}
	if start == s.pos {
		return "", s.errorf("expected a number")
	}
	return string(s.input[start:s.pos]), nil
}
