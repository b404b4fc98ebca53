package search

const (
	bucketTableSize = 1 << 10
	bucketTableMask = bucketTableSize - 1
)

type bucket struct {
	doc   int
	score float32
	bits  uint32
	coord int
	next  *bucket
}

// bucketTable accumulates sub-scorer hits for one window of documents. first
// links the buckets touched in the current window.
type bucketTable struct {
	buckets [bucketTableSize]bucket
	first   *bucket
}

func newBucketTable() *bucketTable {
	t := &bucketTable{}
	for i := range t.buckets {
		t.buckets[i].doc = -1
	}
	return t
}

// bucketCollector routes one sub-scorer's hits into the shared table, tagging
// them with the sub-scorer's mask bit.
type bucketCollector struct {
	table *bucketTable
	mask  uint32
}

func (c *bucketCollector) Collect(doc int, score float32) {
	b := &c.table.buckets[doc&bucketTableMask]
	if b.doc != doc {
		b.doc = doc
		b.score = score
		b.bits = c.mask
		b.coord = 1
		b.next = c.table.first
		c.table.first = b
		return
	}
	b.score += score
	b.bits |= c.mask
	b.coord++
}

type subScorer struct {
	scorer    scorer
	collector *bucketCollector
}

// booleanScorer scores documents in windows of bucketTableSize. Every
// sub-scorer fills the bucket table for the window, then the buckets that
// satisfy the required and prohibited masks are emitted with their coord
// factor applied.
type booleanScorer struct {
	table          *bucketTable
	subs           []subScorer
	nextMask       uint32
	requiredMask   uint32
	prohibitedMask uint32
	maxCoord       int
	coordFactors   []float32
	currentDoc     int
}

func newBooleanScorer() *booleanScorer {
	return &booleanScorer{table: newBucketTable(), nextMask: 1, maxCoord: 1}
}

func (s *booleanScorer) add(sub scorer, required, prohibited bool) {
	var mask uint32
	if required || prohibited {
		mask = s.nextMask
		s.nextMask <<= 1
	}
	if !prohibited {
		s.maxCoord++
	}
	if required {
		s.requiredMask |= mask
	}
	if prohibited {
		s.prohibitedMask |= mask
	}
	s.subs = append(s.subs, subScorer{
		scorer:    sub,
		collector: &bucketCollector{table: s.table, mask: mask},
	})
}

func (s *booleanScorer) computeCoordFactors() {
	s.coordFactors = make([]float32, s.maxCoord)
	for i := range s.coordFactors {
		s.coordFactors[i] = Coord(i, s.maxCoord-1)
	}
}

func (s *booleanScorer) score(c HitCollector, maxDoc int) error {
	if s.coordFactors == nil {
		s.computeCoordFactors()
	}
	for s.currentDoc < maxDoc {
		end := s.currentDoc + bucketTableSize
		if end > maxDoc {
			end = maxDoc
		}
		for _, sub := range s.subs {
			if err := sub.scorer.score(sub.collector, end); err != nil {
				return err
			}
		}
		s.collectHits(c)
		s.currentDoc = end
	}
	return nil
}

func (s *booleanScorer) collectHits(c HitCollector) {
	for b := s.table.first; b != nil; b = b.next {
		if b.bits&s.prohibitedMask == 0 && b.bits&s.requiredMask == s.requiredMask {
			c.Collect(b.doc, b.score*s.coordFactors[b.coord])
		}
	}
	s.table.first = nil
}
