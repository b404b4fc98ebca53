package search

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/index"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/segment-search/pkg/errors"
)

var phraseCorpus = []string{
	"a b c d e",
	"a b c d e a b c d e",
	"a c e",
	"e c a",
	"a c e a c e",
}

func buildIndex(t *testing.T, docs ...*document.Document) store.Directory {
	t.Helper()
	dir := store.NewRAMDirectory()
	w, err := index.NewWriter(dir, analysis.SimpleAnalyzer(), true, index.DefaultWriterConfig())
	require.NoError(t, err)
	for _, doc := range docs {
		require.NoError(t, w.AddDocument(doc))
	}
	require.NoError(t, w.Close())
	return dir
}

func textDocs(texts ...string) []*document.Document {
	docs := make([]*document.Document, len(texts))
	for i, text := range texts {
		docs[i] = document.New(
			document.Keyword("id", strconv.Itoa(i)),
			document.Text("contents", text),
		)
	}
	return docs
}

func newSearcher(t *testing.T, texts ...string) *IndexSearcher {
	t.Helper()
	s, err := OpenIndexSearcher(buildIndex(t, textDocs(texts...)...))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func term(text string) index.Term {
	return index.NewTerm("contents", text)
}

func phrase(t *testing.T, slop int, words ...string) *PhraseQuery {
	t.Helper()
	q := NewPhraseQuery()
	for _, w := range words {
		require.NoError(t, q.Add(term(w)))
	}
	q.SetSlop(slop)
	return q
}

// matchingDocs returns the sorted document numbers matching q.
func matchingDocs(t *testing.T, s Searcher, q Query) []int {
	t.Helper()
	td, err := s.Search(q, nil, 1000)
	require.NoError(t, err)
	docs := make([]int, len(td.ScoreDocs))
	for i, sd := range td.ScoreDocs {
		docs[i] = sd.Doc
	}
	sort.Ints(docs)
	assert.Equal(t, td.TotalHits, len(docs))
	return docs
}

func scoresByDoc(t *testing.T, s Searcher, q Query) map[int]float32 {
	t.Helper()
	td, err := s.Search(q, nil, 1000)
	require.NoError(t, err)
	scores := make(map[int]float32, len(td.ScoreDocs))
	for _, sd := range td.ScoreDocs {
		scores[sd.Doc] = sd.Score
	}
	return scores
}

func TestExactPhrase(t *testing.T) {
	s := newSearcher(t, phraseCorpus...)
	assert.Equal(t, []int{2, 4}, matchingDocs(t, s, phrase(t, 0, "a", "c", "e")))
	assert.Equal(t, []int{0, 1}, matchingDocs(t, s, phrase(t, 0, "c", "d", "e")))
	assert.Equal(t, []int{3}, matchingDocs(t, s, phrase(t, 0, "e", "c", "a")))
	assert.Empty(t, matchingDocs(t, s, phrase(t, 0, "a", "missing")))
}

func TestSloppyPhrase(t *testing.T) {
	s := newSearcher(t, phraseCorpus...)

	assert.Equal(t, []int{0, 1, 2, 4}, matchingDocs(t, s, phrase(t, 3, "a", "c", "e")))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, matchingDocs(t, s, phrase(t, 4, "a", "c", "e")))

	// Documents without every phrase term never match, whatever the slop.
	assert.Equal(t, []int{0, 1}, matchingDocs(t, s, phrase(t, 4, "a", "b", "e")))
	assert.Equal(t, []int{0, 1}, matchingDocs(t, s, phrase(t, 100, "e", "b")))
}

func TestSloppyPhraseRanksCloserMatchesHigher(t *testing.T) {
	s := newSearcher(t, "a x b", "a x x x b")
	scores := scoresByDoc(t, s, phrase(t, 10, "a", "b"))
	require.Len(t, scores, 2)
	assert.Greater(t, scores[0], scores[1])
}

func TestSingleTermPhraseIsTermQuery(t *testing.T) {
	s := newSearcher(t, phraseCorpus...)
	assert.Equal(t, []int{0, 1}, matchingDocs(t, s, phrase(t, 0, "b")))
	assert.Empty(t, matchingDocs(t, s, NewPhraseQuery()))
}

func TestPhraseRejectsMixedFields(t *testing.T) {
	q := NewPhraseQuery()
	require.NoError(t, q.Add(index.NewTerm("title", "a")))
	err := q.Add(index.NewTerm("body", "b"))
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestRequiredAndProhibited(t *testing.T) {
	s := newSearcher(t, "a", "a b", "b", "a c", "c")

	bq := NewBooleanQuery()
	bq.Add(NewTermQuery(term("a")), true, false)
	bq.Add(NewTermQuery(term("b")), false, true)
	assert.Equal(t, []int{0, 3}, matchingDocs(t, s, bq))

	// One required clause gives a coord factor of 1, so scores equal the
	// plain term query's.
	boolScores := scoresByDoc(t, s, bq)
	termScores := scoresByDoc(t, s, NewTermQuery(term("a")))
	for doc, score := range boolScores {
		assert.InDelta(t, termScores[doc], score, 1e-6, "doc %d", doc)
	}
}

func TestOptionalClausesRewardOverlap(t *testing.T) {
	s := newSearcher(t, "a", "a b", "b", "a c", "c")

	bq := NewBooleanQuery()
	bq.Add(NewTermQuery(term("a")), false, false)
	bq.Add(NewTermQuery(term("c")), false, false)
	td, err := s.Search(bq, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, 4, td.TotalHits)
	assert.Equal(t, 3, td.ScoreDocs[0].Doc)

	// A required clause with no postings matches nothing.
	bq.Add(NewTermQuery(term("missing")), true, false)
	assert.Empty(t, matchingDocs(t, s, bq))
}

func TestBooleanScorerSpansWindows(t *testing.T) {
	texts := make([]string, 2500)
	for i := range texts {
		switch {
		case i%5 == 0:
			texts[i] = "a b"
		case i%2 == 0:
			texts[i] = "a"
		default:
			texts[i] = "c"
		}
	}
	s := newSearcher(t, texts...)

	bq := NewBooleanQuery()
	bq.Add(NewTermQuery(term("a")), true, false)
	bq.Add(NewTermQuery(term("b")), false, true)
	docs := matchingDocs(t, s, bq)
	for _, d := range docs {
		assert.Equal(t, "a", texts[d])
	}
	assert.Len(t, docs, 1000)
}

func TestTooManyClauses(t *testing.T) {
	s := newSearcher(t, phraseCorpus...)

	bq := NewBooleanQuery()
	for i := 0; i < MaxRequiredClauses; i++ {
		bq.Add(NewTermQuery(term("a")), i%2 == 0, i%2 == 1)
	}
	_, err := s.Search(bq, nil, 10)
	require.NoError(t, err)

	bq.Add(NewTermQuery(term("a")), true, false)
	_, err = s.Search(bq, nil, 10)
	assert.True(t, errors.Is(err, apperrors.ErrTooManyClauses))
}

func TestTermScorerLongPostings(t *testing.T) {
	texts := make([]string, 300)
	for i := range texts {
		texts[i] = "common" + strings.Repeat(" frequent", i%40)
	}
	s := newSearcher(t, texts...)

	count := 0
	err := s.SearchCollect(NewTermQuery(term("common")), nil, HitCollectorFunc(func(int, float32) {
		count++
	}))
	require.NoError(t, err)
	assert.Equal(t, 300, count)

	td, err := s.Search(NewTermQuery(term("frequent")), nil, 5)
	require.NoError(t, err)
	// Every document except the multiples of 40.
	assert.Equal(t, 292, td.TotalHits)
	require.Len(t, td.ScoreDocs, 5)
	for i := 1; i < len(td.ScoreDocs); i++ {
		assert.GreaterOrEqual(t, td.ScoreDocs[i-1].Score, td.ScoreDocs[i].Score)
	}
}

func TestDeletedDocumentsAreNotFound(t *testing.T) {
	dir := buildIndex(t, textDocs("a", "a b", "a c")...)
	r, err := index.Open(dir)
	require.NoError(t, err)
	require.NoError(t, r.Delete(1))
	s := NewIndexSearcher(r)
	defer r.Close()

	assert.Equal(t, []int{0, 2}, matchingDocs(t, s, NewTermQuery(term("a"))))
}

var wordCorpus = []string{"apple", "apply", "ape", "banana", "band", "bandana", "cat"}

func TestMultiTermQueries(t *testing.T) {
	s := newSearcher(t, wordCorpus...)
	bound := func(text string) *index.Term {
		t := term(text)
		return &t
	}
	mustRange := func(lower, upper *index.Term, inclusive bool) Query {
		q, err := NewRangeQuery(lower, upper, inclusive)
		require.NoError(t, err)
		return q
	}

	tests := []struct {
		name  string
		query Query
		want  []int
	}{
		{"prefix", NewPrefixQuery(term("ap")), []int{0, 1, 2}},
		{"prefix whole word", NewPrefixQuery(term("band")), []int{4, 5}},
		{"prefix none", NewPrefixQuery(term("zz")), []int{}},
		{"wildcard one char", NewWildcardQuery(term("ap?l*")), []int{0, 1}},
		{"wildcard suffix", NewWildcardQuery(term("b*a")), []int{3, 5}},
		{"wildcard leading", NewWildcardQuery(term("?at")), []int{6}},
		{"fuzzy", NewFuzzyQuery(term("aple")), []int{0, 2}},
		{"range inclusive", mustRange(bound("apple"), bound("band"), true), []int{0, 1, 3, 4}},
		{"range exclusive", mustRange(bound("apple"), bound("band"), false), []int{1, 3}},
		{"range open below", mustRange(nil, bound("ape"), true), []int{2}},
		{"range open above", mustRange(bound("band"), nil, false), []int{5, 6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := matchingDocs(t, s, tt.query)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrefixQueryScoresMatchTermQueryAcrossSegments(t *testing.T) {
	dir := store.NewRAMDirectory()
	cfg := index.DefaultWriterConfig()
	cfg.MergeFactor = 2
	w, err := index.NewWriter(dir, analysis.SimpleAnalyzer(), true, cfg)
	require.NoError(t, err)
	for _, doc := range textDocs("apple pie", "apple tart", "banana", "cherry", "apple jam") {
		require.NoError(t, w.AddDocument(doc))
	}
	require.NoError(t, w.Close())

	s, err := OpenIndexSearcher(dir)
	require.NoError(t, err)
	defer s.Close()
	require.IsType(t, &index.MultiReader{}, s.Reader())

	prefix := NewPrefixQuery(term("app"))
	bq, err := prefix.Rewrite(s.Reader())
	require.NoError(t, err)
	require.Len(t, bq.Clauses(), 1)
	assert.Equal(t, term("apple"), bq.Clauses()[0].Query.(*TermQuery).Term())

	want := scoresByDoc(t, s, NewTermQuery(term("apple")))
	got := scoresByDoc(t, s, prefix)
	require.Len(t, got, 3)
	for doc, score := range want {
		assert.InDelta(t, score, got[doc], 1e-6, "doc %d", doc)
	}
}

func TestFuzzyPrefersCloserTerms(t *testing.T) {
	s := newSearcher(t, "lucene", "lucent", "lucerne")
	q := NewFuzzyQuery(term("lucene"))
	td, err := s.Search(q, nil, 10)
	require.NoError(t, err)
	require.Equal(t, 3, td.TotalHits)
	assert.Equal(t, 0, td.ScoreDocs[0].Doc)

	bq, err := q.Rewrite(s.Reader())
	require.NoError(t, err)
	boosts := make(map[string]float32)
	for _, c := range bq.Clauses() {
		tq := c.Query.(*TermQuery)
		boosts[tq.Term().Text] = tq.Boost()
	}
	assert.InDelta(t, 1.0, boosts["lucene"], 1e-6)
	assert.Less(t, boosts["lucent"], boosts["lucene"])
}

func TestRangeQueryValidation(t *testing.T) {
	_, err := NewRangeQuery(nil, nil, true)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	lo, hi := index.NewTerm("a", "x"), index.NewTerm("b", "y")
	_, err = NewRangeQuery(&lo, &hi, true)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestEditDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"aple", "apply", 2},
		{"flaw", "lawn", 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, editDistance([]rune(tt.a), []rune(tt.b)), "%s/%s", tt.a, tt.b)
	}
}

func TestWildcardMatch(t *testing.T) {
	tests := []struct {
		pattern, s string
		want       bool
	}{
		{"*", "", true},
		{"?", "", false},
		{"a*c", "abbbc", true},
		{"a*c", "abbbd", false},
		{"a?c", "abc", true},
		{"a?c", "ac", false},
		{"*b*", "abc", true},
		{"a**", "a", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, wildcardMatch([]rune(tt.pattern), []rune(tt.s)), "%s/%s", tt.pattern, tt.s)
	}
}

func TestQueryString(t *testing.T) {
	boosted := NewTermQuery(term("a"))
	boosted.SetBoost(2)

	nested := NewBooleanQuery()
	nested.Add(NewTermQuery(term("x")), false, false)
	nested.Add(NewTermQuery(index.NewTerm("title", "y")), false, false)
	bq := NewBooleanQuery()
	bq.Add(NewTermQuery(term("a")), true, false)
	bq.Add(NewTermQuery(term("b")), false, true)
	bq.Add(nested, false, false)

	pq := NewPhraseQuery()
	require.NoError(t, pq.Add(index.NewTerm("title", "a")))
	require.NoError(t, pq.Add(index.NewTerm("title", "b")))
	pq.SetSlop(2)
	pq.SetBoost(2)

	lo, hi := term("a"), term("c")
	inclusive, err := NewRangeQuery(&lo, &hi, true)
	require.NoError(t, err)
	exclusive, err := NewRangeQuery(&lo, &hi, false)
	require.NoError(t, err)

	half := NewPrefixQuery(term("pre"))
	half.SetBoost(0.5)

	tests := []struct {
		query Query
		want  string
	}{
		{NewTermQuery(term("a")), "a"},
		{NewTermQuery(index.NewTerm("title", "a")), "title:a"},
		{boosted, "a^2.0"},
		{bq, "+a -b (x title:y)"},
		{pq, `title:"a b"~2^2.0`},
		{phrase(t, 0, "a", "b"), `"a b"`},
		{NewPrefixQuery(term("pre")), "pre*"},
		{half, "pre*^0.5"},
		{inclusive, "[a-c]"},
		{exclusive, "{a-c}"},
		{NewFuzzyQuery(term("fuz")), "fuz~"},
		{NewWildcardQuery(term("wi?d")), "wi?d"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.query.String("contents"))
	}
	assert.Equal(t, "contents:a", NewTermQuery(term("a")).String(""))
}

func TestTopDocsOrdering(t *testing.T) {
	c := newTopDocsCollector(3)
	for doc, score := range []float32{0.5, 0, 0.9, 0.5, 0.1, 0.9} {
		c.Collect(doc, score)
	}
	td := c.topDocs()
	assert.Equal(t, 5, td.TotalHits)
	assert.Equal(t, []ScoreDoc{{Doc: 2, Score: 0.9}, {Doc: 5, Score: 0.9}, {Doc: 0, Score: 0.5}}, td.ScoreDocs)
}

func TestHitsPaging(t *testing.T) {
	texts := make([]string, 250)
	for i := range texts {
		texts[i] = "x"
	}
	s := newSearcher(t, texts...)

	hits, err := NewHitsWithCache(s, NewTermQuery(term("x")), nil, 8)
	require.NoError(t, err)
	require.Equal(t, 250, hits.Len())
	assert.Len(t, hits.hitDocs, 100)

	for n := 0; n < hits.Len(); n++ {
		id, err := hits.ID(n)
		require.NoError(t, err)
		assert.Equal(t, n, id)

		score, err := hits.Score(n)
		require.NoError(t, err)
		assert.Greater(t, score, float32(0))
		assert.LessOrEqual(t, score, float32(1))
	}
	assert.Len(t, hits.hitDocs, 250)

	doc, err := hits.Doc(200)
	require.NoError(t, err)
	assert.Equal(t, "200", doc.Get("id"))
	again, err := hits.Doc(200)
	require.NoError(t, err)
	assert.Same(t, doc, again)

	_, err = hits.Doc(250)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	_, err = hits.Score(-1)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestHitsNormalizesScores(t *testing.T) {
	texts := []string{"rare"}
	for i := 0; i < 9; i++ {
		texts = append(texts, "common")
	}
	s := newSearcher(t, texts...)

	td, err := s.Search(NewTermQuery(term("rare")), nil, 1)
	require.NoError(t, err)
	require.Greater(t, td.ScoreDocs[0].Score, float32(1))

	hits, err := NewHits(s, NewTermQuery(term("rare")), nil)
	require.NoError(t, err)
	require.Equal(t, 1, hits.Len())
	top, err := hits.Score(0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, top, 1e-6)
}

func TestMultiSearcherMatchesSingleIndex(t *testing.T) {
	left := newSearcher(t, "a b", "c")
	right := newSearcher(t, "a", "a c")
	combined := newSearcher(t, "a b", "c", "a", "a c")
	multi := NewMultiSearcher(left, right)

	assert.Equal(t, 4, multi.MaxDoc())
	df, err := multi.DocFreq(term("a"))
	require.NoError(t, err)
	assert.Equal(t, 3, df)

	for _, q := range []Query{
		NewTermQuery(term("a")),
		phrase(t, 0, "a", "c"),
	} {
		want := scoresByDoc(t, combined, q)
		got := scoresByDoc(t, multi, q)
		require.Equal(t, len(want), len(got), q.String(""))
		for doc, score := range want {
			assert.InDelta(t, score, got[doc], 1e-6, "%s doc %d", q.String(""), doc)
		}
	}

	doc, err := multi.Doc(2)
	require.NoError(t, err)
	assert.Equal(t, "a", doc.Get("contents"))
	_, err = multi.Doc(4)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	var collected []int
	require.NoError(t, multi.SearchCollect(NewTermQuery(term("c")), nil, HitCollectorFunc(func(doc int, _ float32) {
		collected = append(collected, doc)
	})))
	sort.Ints(collected)
	assert.Equal(t, []int{1, 3}, collected)
}

func TestDateFilter(t *testing.T) {
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	var docs []*document.Document
	for i := 0; i < 5; i++ {
		date, err := document.DateToString(base.AddDate(0, i, 0))
		require.NoError(t, err)
		docs = append(docs, document.New(
			document.Keyword("modified", date),
			document.Text("contents", fmt.Sprintf("report %d", i)),
		))
	}
	s, err := OpenIndexSearcher(buildIndex(t, docs...))
	require.NoError(t, err)
	defer s.Close()

	cutoff := base.AddDate(0, 2, 0)
	after, err := DateFilterAfter("modified", cutoff)
	require.NoError(t, err)
	before, err := DateFilterBefore("modified", cutoff)
	require.NoError(t, err)
	between, err := NewDateFilter("modified", base.AddDate(0, 1, 0), base.AddDate(0, 3, 0))
	require.NoError(t, err)

	q := NewTermQuery(term("report"))
	for _, tt := range []struct {
		filter Filter
		want   []int
	}{
		{after, []int{2, 3, 4}},
		{before, []int{0, 1, 2}},
		{between, []int{1, 2, 3}},
	} {
		td, err := s.Search(q, tt.filter, 10)
		require.NoError(t, err)
		got := make([]int, len(td.ScoreDocs))
		for i, sd := range td.ScoreDocs {
			got[i] = sd.Doc
		}
		sort.Ints(got)
		assert.Equal(t, tt.want, got, tt.filter.String())
		assert.Equal(t, len(tt.want), td.TotalHits)
	}
	assert.True(t, strings.HasPrefix(after.String(), "modified:2020-03-01T00:00:00Z-"))
}

func TestQueryFilter(t *testing.T) {
	s := newSearcher(t, "a", "a b", "b", "a b c")
	f := NewQueryFilter(NewTermQuery(term("b")))
	td, err := s.Search(NewTermQuery(term("a")), f, 10)
	require.NoError(t, err)
	got := make([]int, len(td.ScoreDocs))
	for i, sd := range td.ScoreDocs {
		got[i] = sd.Doc
	}
	sort.Ints(got)
	assert.Equal(t, []int{1, 3}, got)
	assert.Equal(t, "QueryFilter(contents:b)", f.String())
}

func BenchmarkBooleanSearch(b *testing.B) {
	dir := store.NewRAMDirectory()
	w, err := index.NewWriter(dir, analysis.SimpleAnalyzer(), true, index.DefaultWriterConfig())
	require.NoError(b, err)
	words := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	for i := 0; i < 2000; i++ {
		text := words[i%5] + " " + words[(i/5)%5] + " " + words[(i/25)%5]
		require.NoError(b, w.AddDocument(document.New(document.Text("contents", text))))
	}
	require.NoError(b, w.Close())
	s, err := OpenIndexSearcher(dir)
	require.NoError(b, err)
	defer s.Close()

	bq := NewBooleanQuery()
	bq.Add(NewTermQuery(term("alpha")), true, false)
	bq.Add(NewTermQuery(term("beta")), false, false)
	bq.Add(NewTermQuery(term("gamma")), false, true)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Search(bq, nil, 10); err != nil {
			b.Fatal(err)
		}
	}
}
