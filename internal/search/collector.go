package search

import (
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/util"
)

// HitCollector receives every matching document with a non-zero score. Calls
// are not ordered by document number.
type HitCollector interface {
	Collect(doc int, score float32)
}

// HitCollectorFunc adapts a function to HitCollector.
type HitCollectorFunc func(doc int, score float32)

func (f HitCollectorFunc) Collect(doc int, score float32) { f(doc, score) }

// ScoreDoc is one ranked hit.
type ScoreDoc struct {
	Doc   int     `json:"doc"`
	Score float32 `json:"score"`
}

// TopDocs is the result of a top-n search. ScoreDocs is sorted by descending
// score, ties broken by ascending document number.
type TopDocs struct {
	TotalHits int        `json:"total_hits"`
	ScoreDocs []ScoreDoc `json:"score_docs"`
}

// hitLess orders the heap so the worst hit is on top: lower score first, and
// among equal scores the higher document number.
func hitLess(a, b ScoreDoc) bool {
	if a.Score == b.Score {
		return a.Doc > b.Doc
	}
	return a.Score < b.Score
}

func newHitQueue(n int) *util.PriorityQueue[ScoreDoc] {
	return util.NewPriorityQueue(n, hitLess)
}

// topDocsCollector keeps the best n hits seen so far.
type topDocsCollector struct {
	n         int
	queue     *util.PriorityQueue[ScoreDoc]
	totalHits int
	minScore  float32
}

func newTopDocsCollector(n int) *topDocsCollector {
	return &topDocsCollector{n: n, queue: newHitQueue(n)}
}

func (c *topDocsCollector) Collect(doc int, score float32) {
	if score <= 0 {
		return
	}
	c.totalHits++
	if score < c.minScore {
		return
	}
	c.queue.Put(ScoreDoc{Doc: doc, Score: score})
	if c.queue.Size() > c.n {
		c.queue.Pop()
		top, _ := c.queue.Top()
		c.minScore = top.Score
	}
}

func (c *topDocsCollector) topDocs() TopDocs {
	docs := make([]ScoreDoc, c.queue.Size())
	for i := len(docs) - 1; i >= 0; i-- {
		docs[i], _ = c.queue.Pop()
	}
	return TopDocs{TotalHits: c.totalHits, ScoreDocs: docs}
}
