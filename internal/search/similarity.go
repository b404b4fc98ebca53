package search

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/index"
)

// Tf is the score factor for a term or phrase occurring freq times in a
// document.
func Tf(freq float32) float32 {
	return float32(math.Sqrt(float64(freq)))
}

// Idf is the inverse document frequency of a term found in docFreq of
// numDocs documents.
func Idf(docFreq, numDocs int) float32 {
	return float32(math.Log(float64(numDocs)/float64(docFreq+1)) + 1)
}

// Coord is the fraction of a boolean query's clauses that matched.
func Coord(overlap, maxOverlap int) float32 {
	if maxOverlap == 0 {
		return 0
	}
	return float32(overlap) / float32(maxOverlap)
}

func termIdf(t index.Term, s Searcher) (float32, error) {
	df, err := s.DocFreq(t)
	if err != nil {
		return 0, err
	}
	return Idf(df, s.MaxDoc()), nil
}
