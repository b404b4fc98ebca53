package search

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/index"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/util"
)

// phrasePositions is a cursor over one phrase term's postings. position is
// the term's position in the current document minus its offset in the
// phrase, so a phrase match lines every cursor up on the same value.
type phrasePositions struct {
	tp       index.TermPositions
	offset   int
	doc      int
	position int
	count    int
	next     *phrasePositions
}

func newPhrasePositions(tp index.TermPositions, offset int) (*phrasePositions, error) {
	pp := &phrasePositions{tp: tp, offset: offset}
	if err := pp.nextDoc(); err != nil {
		return nil, err
	}
	return pp, nil
}

func (pp *phrasePositions) nextDoc() error {
	ok, err := pp.tp.Next()
	if err != nil {
		return err
	}
	if !ok {
		pp.doc = math.MaxInt
		return pp.tp.Close()
	}
	pp.doc = pp.tp.Doc()
	pp.position = 0
	return nil
}

func (pp *phrasePositions) firstPosition() error {
	pp.count = pp.tp.Freq()
	_, err := pp.nextPosition()
	return err
}

func (pp *phrasePositions) nextPosition() (bool, error) {
	if pp.count <= 0 {
		return false, nil
	}
	pp.count--
	p, err := pp.tp.NextPosition()
	if err != nil {
		return false, err
	}
	pp.position = p - pp.offset
	return true, nil
}

func phrasePositionsLess(a, b *phrasePositions) bool {
	if a.doc == b.doc {
		return a.position < b.position
	}
	return a.doc < b.doc
}

// phraseFreqFunc counts the phrase occurrences in the document all cursors
// are on.
type phraseFreqFunc func(s *phraseScorer) (float32, error)

// phraseScorer keeps its cursors in a list sorted by document, then
// position. first is the least cursor and last the greatest.
type phraseScorer struct {
	first, last *phrasePositions
	pq          *util.PriorityQueue[*phrasePositions]
	norms       []byte
	weight      float32
	phraseFreq  phraseFreqFunc
}

func newPhraseScorer(tps []index.TermPositions, norms []byte, weight float32, freq phraseFreqFunc) (*phraseScorer, error) {
	s := &phraseScorer{
		pq:         util.NewPriorityQueue(len(tps), phrasePositionsLess),
		norms:      norms,
		weight:     weight,
		phraseFreq: freq,
	}
	for i, tp := range tps {
		pp, err := newPhrasePositions(tp, i)
		if err != nil {
			return nil, err
		}
		s.pq.Put(pp)
	}
	s.pqToList()
	return s, nil
}

func (s *phraseScorer) pqToList() {
	s.first, s.last = nil, nil
	for {
		pp, ok := s.pq.Pop()
		if !ok {
			return
		}
		if s.last != nil {
			s.last.next = pp
		} else {
			s.first = pp
		}
		s.last = pp
		pp.next = nil
	}
}

func (s *phraseScorer) firstToLast() {
	s.last.next = s.first
	s.last = s.first
	s.first = s.first.next
	s.last.next = nil
}

func (s *phraseScorer) score(c HitCollector, end int) error {
	for s.last.doc < end {
		for s.first.doc < s.last.doc {
			for {
				if err := s.first.nextDoc(); err != nil {
					return err
				}
				if s.first.doc >= s.last.doc {
					break
				}
			}
			s.firstToLast()
			if s.last.doc >= end {
				return nil
			}
		}

		freq, err := s.phraseFreq(s)
		if err != nil {
			return err
		}
		if freq > 0 {
			score := Tf(freq) * s.weight * index.DecodeNorm(s.norms[s.first.doc])
			c.Collect(s.first.doc, score)
		}
		if err := s.last.nextDoc(); err != nil {
			return err
		}
	}
	return nil
}

// exactPhraseFreq counts the positions where every cursor lines up.
func exactPhraseFreq(s *phraseScorer) (float32, error) {
	for pp := s.first; pp != nil; pp = pp.next {
		if err := pp.firstPosition(); err != nil {
			return 0, err
		}
		s.pq.Put(pp)
	}
	s.pqToList()

	var freq float32
	for {
		for s.first.position < s.last.position {
			for {
				ok, err := s.first.nextPosition()
				if err != nil || !ok {
					return freq, err
				}
				if s.first.position >= s.last.position {
					break
				}
			}
			s.firstToLast()
		}
		freq++
		ok, err := s.last.nextPosition()
		if err != nil {
			return freq, err
		}
		if !ok {
			return freq, nil
		}
	}
}

// sloppyPhraseFreq sums 1/(matchLength+1) over every window in which all
// cursors fall within slop moves of each other.
func sloppyPhraseFreq(slop int) phraseFreqFunc {
	return func(s *phraseScorer) (float32, error) {
		s.pq.Clear()
		end := 0
		for pp := s.first; pp != nil; pp = pp.next {
			if err := pp.firstPosition(); err != nil {
				return 0, err
			}
			if pp.position > end {
				end = pp.position
			}
			s.pq.Put(pp)
		}

		var freq float32
		for done := false; !done; {
			pp, _ := s.pq.Pop()
			start := pp.position
			top, _ := s.pq.Top()
			next := top.position
			for pos := start; pos <= next; pos = pp.position {
				start = pos
				ok, err := pp.nextPosition()
				if err != nil {
					return 0, err
				}
				if !ok {
					done = true
					break
				}
			}

			if matchLength := end - start; matchLength <= slop {
				freq += 1 / float32(matchLength+1)
			}
			if pp.position > end {
				end = pp.position
			}
			s.pq.Put(pp)
		}
		return freq, nil
	}
}
