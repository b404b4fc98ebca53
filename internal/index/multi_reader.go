package index

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/util"
	apperrors "github.com/Adithya-Monish-Kumar-K/segment-search/pkg/errors"
)

// MultiReader presents several segments as one index. Segment i's document
// numbers are shifted by starts[i], the number of documents before it.
type MultiReader struct {
	readers []*SegmentReader
	starts  []int
	maxDoc  int

	mu         sync.Mutex
	numDocs    int
	normsCache map[string][]byte
}

// NewMultiReader takes ownership of readers.
func NewMultiReader(readers []*SegmentReader) *MultiReader {
	m := &MultiReader{
		readers:    readers,
		starts:     make([]int, len(readers)+1),
		numDocs:    -1,
		normsCache: make(map[string][]byte),
	}
	for i, r := range readers {
		m.starts[i] = m.maxDoc
		m.maxDoc += r.MaxDoc()
	}
	m.starts[len(readers)] = m.maxDoc
	return m
}

// Segments returns the underlying segment readers.
func (m *MultiReader) Segments() []*SegmentReader {
	return m.readers
}

func (m *MultiReader) NumDocs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.numDocs == -1 {
		n := 0
		for _, r := range m.readers {
			n += r.NumDocs()
		}
		m.numDocs = n
	}
	return m.numDocs
}

func (m *MultiReader) MaxDoc() int {
	return m.maxDoc
}

// readerIndex returns the segment holding document n.
func (m *MultiReader) readerIndex(n int) int {
	lo, hi := 0, len(m.readers)-1
	for hi >= lo {
		mid := (lo + hi) >> 1
		switch v := m.starts[mid]; {
		case n < v:
			hi = mid - 1
		case n > v:
			lo = mid + 1
		default:
			// Skip empty segments sharing this start.
			for mid+1 < len(m.readers) && m.starts[mid+1] == n {
				mid++
			}
			return mid
		}
	}
	return hi
}

func (m *MultiReader) locate(n int) (int, error) {
	if n < 0 || n >= m.maxDoc {
		return 0, fmt.Errorf("%w: document %d out of range", apperrors.ErrInvalidInput, n)
	}
	return m.readerIndex(n), nil
}

func (m *MultiReader) Document(n int) (*document.Document, error) {
	i, err := m.locate(n)
	if err != nil {
		return nil, err
	}
	return m.readers[i].Document(n - m.starts[i])
}

func (m *MultiReader) IsDeleted(n int) bool {
	i, err := m.locate(n)
	if err != nil {
		return false
	}
	return m.readers[i].IsDeleted(n - m.starts[i])
}

func (m *MultiReader) HasDeletions() bool {
	for _, r := range m.readers {
		if r.HasDeletions() {
			return true
		}
	}
	return false
}

func (m *MultiReader) Delete(n int) error {
	i, err := m.locate(n)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.numDocs = -1
	m.mu.Unlock()
	return m.readers[i].Delete(n - m.starts[i])
}

func (m *MultiReader) DeleteTerm(t Term) (int, error) {
	return deleteTerm(m, t)
}

// Norms concatenates the norms of every segment. Segments that do not index
// field contribute zeros.
func (m *MultiReader) Norms(field string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bytes, ok := m.normsCache[field]; ok {
		return bytes, nil
	}
	bytes := make([]byte, m.maxDoc)
	for i, r := range m.readers {
		if err := r.NormsInto(field, bytes, m.starts[i]); err != nil {
			return nil, err
		}
	}
	m.normsCache[field] = bytes
	return bytes, nil
}

func (m *MultiReader) NormsInto(field string, dst []byte, offset int) error {
	for i, r := range m.readers {
		if err := r.NormsInto(field, dst, offset+m.starts[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiReader) Terms() (TermEnum, error) {
	return newMultiTermEnum(m.readers, m.starts, nil)
}

func (m *MultiReader) TermsFrom(t Term) (TermEnum, error) {
	return newMultiTermEnum(m.readers, m.starts, &t)
}

func (m *MultiReader) DocFreq(t Term) (int, error) {
	total := 0
	for _, r := range m.readers {
		n, err := r.DocFreq(t)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func (m *MultiReader) TermDocs(t Term) (TermDocs, error) {
	return &multiTermDocs{readers: m.readers, starts: m.starts, term: t}, nil
}

func (m *MultiReader) TermPositions(t Term) (TermPositions, error) {
	return &multiTermPositions{multiTermDocs{readers: m.readers, starts: m.starts, term: t, positions: true}}, nil
}

func (m *MultiReader) FieldNames() []string {
	seen := make(map[string]struct{})
	for _, r := range m.readers {
		for _, name := range r.FieldNames() {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every segment, writing pending deletions.
func (m *MultiReader) Close() error {
	var errs []error
	for _, r := range m.readers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// multiTermEnum merges the term enumerations of several segments, summing
// the document frequencies of terms present in more than one.
type multiTermEnum struct {
	queue   *util.PriorityQueue[*segmentMergeInfo]
	term    *Term
	docFreq int
}

func newMultiTermEnum(readers []*SegmentReader, starts []int, from *Term) (*multiTermEnum, error) {
	e := &multiTermEnum{queue: newMergeQueue(len(readers))}
	for i, r := range readers {
		var (
			termEnum *SegmentTermEnum
			err      error
		)
		if from != nil {
			termEnum, err = r.tis.TermsFrom(*from)
		} else {
			termEnum, err = r.tis.Terms()
		}
		if err != nil {
			closeQueue(e.queue)
			return nil, err
		}
		smi := &segmentMergeInfo{base: starts[i], ord: i, reader: r, termEnum: termEnum}

		var ok bool
		if from != nil {
			smi.term = termEnum.Term()
			ok = smi.term != nil
		} else if ok, err = smi.next(); err != nil {
			smi.close()
			closeQueue(e.queue)
			return nil, err
		}
		if !ok {
			smi.close()
			continue
		}
		e.queue.Put(smi)
	}

	// Position on the first term at or after from, summing its docFreq
	// across every segment that holds it.
	if from != nil && e.queue.Size() > 0 {
		if _, err := e.Next(); err != nil {
			closeQueue(e.queue)
			return nil, err
		}
	}
	return e, nil
}

func (e *multiTermEnum) Next() (bool, error) {
	top, ok := e.queue.Top()
	if !ok {
		e.term = nil
		return false, nil
	}
	e.term = top.term
	e.docFreq = 0
	for ok && e.term.Compare(*top.term) == 0 {
		e.queue.Pop()
		e.docFreq += top.termEnum.DocFreq()
		more, err := top.next()
		if err != nil {
			top.close()
			return false, err
		}
		if more {
			e.queue.Put(top)
		} else {
			top.close()
		}
		top, ok = e.queue.Top()
	}
	return true, nil
}

func (e *multiTermEnum) Term() *Term {
	return e.term
}

func (e *multiTermEnum) DocFreq() int {
	return e.docFreq
}

func (e *multiTermEnum) Close() error {
	return closeQueue(e.queue)
}

// multiTermDocs chains the postings of each segment in turn.
type multiTermDocs struct {
	readers   []*SegmentReader
	starts    []int
	term      Term
	positions bool

	base    int
	pointer int
	current TermDocs
}

func (d *multiTermDocs) Seek(term Term) error {
	err := d.closeCurrent()
	d.term = term
	d.base = 0
	d.pointer = 0
	return err
}

func (d *multiTermDocs) Doc() int {
	return d.base + d.current.Doc()
}

func (d *multiTermDocs) Freq() int {
	return d.current.Freq()
}

func (d *multiTermDocs) openNext() (bool, error) {
	if err := d.closeCurrent(); err != nil {
		return false, err
	}
	if d.pointer >= len(d.readers) {
		return false, nil
	}
	r := d.readers[d.pointer]
	d.base = d.starts[d.pointer]
	d.pointer++
	var err error
	if d.positions {
		d.current, err = r.TermPositions(d.term)
	} else {
		d.current, err = r.TermDocs(d.term)
	}
	return err == nil, err
}

func (d *multiTermDocs) Next() (bool, error) {
	for {
		if d.current != nil {
			ok, err := d.current.Next()
			if err != nil || ok {
				return ok, err
			}
		}
		more, err := d.openNext()
		if err != nil || !more {
			return false, err
		}
	}
}

func (d *multiTermDocs) Read(docs, freqs []int) (int, error) {
	for {
		if d.current == nil {
			more, err := d.openNext()
			if err != nil || !more {
				return 0, err
			}
		}
		n, err := d.current.Read(docs, freqs)
		if err != nil {
			return 0, err
		}
		if n == 0 {
			if err := d.closeCurrent(); err != nil {
				return 0, err
			}
			continue
		}
		for i := 0; i < n; i++ {
			docs[i] += d.base
		}
		return n, nil
	}
}

func (d *multiTermDocs) SkipTo(target int) (bool, error) {
	for {
		ok, err := d.Next()
		if err != nil || !ok {
			return false, err
		}
		if d.Doc() >= target {
			return true, nil
		}
	}
}

func (d *multiTermDocs) closeCurrent() error {
	if d.current == nil {
		return nil
	}
	err := d.current.Close()
	d.current = nil
	return err
}

func (d *multiTermDocs) Close() error {
	return d.closeCurrent()
}

type multiTermPositions struct {
	multiTermDocs
}

func (p *multiTermPositions) NextPosition() (int, error) {
	return p.current.(TermPositions).NextPosition()
}
