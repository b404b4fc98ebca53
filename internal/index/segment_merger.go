package index

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/store"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/util"
	apperrors "github.com/Adithya-Monish-Kumar-K/segment-search/pkg/errors"
)

// segmentMergeInfo is one segment's term cursor during a merge or a
// multi-segment term enumeration.
type segmentMergeInfo struct {
	base     int
	ord      int
	reader   *SegmentReader
	termEnum *SegmentTermEnum
	term     *Term

	postings *SegmentTermPositions
	// docMap maps old document numbers to new ones around deletions. It is
	// nil when the segment has none.
	docMap []int
}

func (smi *segmentMergeInfo) next() (bool, error) {
	ok, err := smi.termEnum.Next()
	if err != nil {
		return false, err
	}
	smi.term = smi.termEnum.Term()
	return ok, nil
}

func (smi *segmentMergeInfo) close() error {
	if smi.postings != nil {
		return store.CloseAll(smi.termEnum, smi.postings)
	}
	return smi.termEnum.Close()
}

// newMergeQueue orders cursors by term, breaking ties by input order.
func newMergeQueue(size int) *util.PriorityQueue[*segmentMergeInfo] {
	return util.NewPriorityQueue(size, func(a, b *segmentMergeInfo) bool {
		if c := a.term.Compare(*b.term); c != 0 {
			return c < 0
		}
		return a.ord < b.ord
	})
}

func closeQueue(q *util.PriorityQueue[*segmentMergeInfo]) error {
	var errs []error
	for {
		smi, ok := q.Pop()
		if !ok {
			return errors.Join(errs...)
		}
		if err := smi.close(); err != nil {
			errs = append(errs, err)
		}
	}
}

// SegmentMerger combines several segments into one new segment, dropping
// deleted documents and renumbering the rest densely in input order.
type SegmentMerger struct {
	dir        store.Directory
	segment    string
	readers    []*SegmentReader
	fieldInfos *FieldInfos
	logger     *slog.Logger

	freqOutput *store.OutputStream
	proxOutput *store.OutputStream
	tis        *TermInfosWriter
}

// NewSegmentMerger returns a merger writing segment name into dir.
func NewSegmentMerger(dir store.Directory, name string) *SegmentMerger {
	return &SegmentMerger{
		dir:     dir,
		segment: name,
		logger:  slog.Default().With("component", "segment-merger", "segment", name),
	}
}

// Add appends a segment to merge. The merger takes ownership of r and
// closes it when Merge returns.
func (m *SegmentMerger) Add(r *SegmentReader) {
	m.readers = append(m.readers, r)
}

// Merge writes the merged segment and returns its document count.
func (m *SegmentMerger) Merge() (docCount int, err error) {
	start := time.Now()
	defer func() {
		var errs []error
		for _, r := range m.readers {
			if cerr := r.Close(); cerr != nil {
				errs = append(errs, cerr)
			}
		}
		err = errors.Join(err, errors.Join(errs...))
	}()

	if docCount, err = m.mergeFields(); err != nil {
		return 0, fmt.Errorf("merging fields: %w", err)
	}
	if err = m.mergeTerms(); err != nil {
		return 0, fmt.Errorf("merging terms: %w", err)
	}
	if err = m.mergeNorms(); err != nil {
		return 0, fmt.Errorf("merging norms: %w", err)
	}
	m.logger.Debug("segments merged",
		"inputs", len(m.readers),
		"doc_count", docCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return docCount, nil
}

func (m *SegmentMerger) mergeFields() (int, error) {
	m.fieldInfos = NewFieldInfos()
	for _, r := range m.readers {
		if err := m.fieldInfos.AddAll(r.FieldInfos()); err != nil {
			return 0, err
		}
	}
	if err := m.fieldInfos.Write(m.dir, m.segment+".fnm"); err != nil {
		return 0, err
	}

	fields, err := NewFieldsWriter(m.dir, m.segment, m.fieldInfos)
	if err != nil {
		return 0, err
	}
	docCount := 0
	for _, r := range m.readers {
		for j := 0; j < r.MaxDoc(); j++ {
			if r.IsDeleted(j) {
				continue
			}
			doc, err := r.Document(j)
			if err != nil {
				fields.Close()
				return 0, err
			}
			if err := fields.AddDocument(doc); err != nil {
				fields.Close()
				return 0, err
			}
			docCount++
		}
	}
	return docCount, fields.Close()
}

func (m *SegmentMerger) mergeTerms() (err error) {
	if m.freqOutput, err = m.dir.CreateFile(m.segment + ".frq"); err != nil {
		return err
	}
	if m.proxOutput, err = m.dir.CreateFile(m.segment + ".prx"); err != nil {
		m.freqOutput.Close()
		return err
	}
	if m.tis, err = NewTermInfosWriter(m.dir, m.segment, m.fieldInfos); err != nil {
		store.CloseAll(m.freqOutput, m.proxOutput)
		return err
	}
	queue := newMergeQueue(len(m.readers))
	defer func() {
		err = errors.Join(err, store.CloseAll(m.freqOutput, m.proxOutput, m.tis), closeQueue(queue))
	}()
	return m.mergeTermInfos(queue)
}

func (m *SegmentMerger) mergeTermInfos(queue *util.PriorityQueue[*segmentMergeInfo]) error {
	base := 0
	for i, r := range m.readers {
		termEnum, err := r.tis.Terms()
		if err != nil {
			return err
		}
		smi := &segmentMergeInfo{
			base:     base,
			ord:      i,
			reader:   r,
			termEnum: termEnum,
			postings: newSegmentTermPositions(r),
			docMap:   docMap(r),
		}
		base += r.NumDocs()
		ok, err := smi.next()
		if err != nil || !ok {
			smi.close()
			if err != nil {
				return err
			}
			continue
		}
		queue.Put(smi)
	}

	match := make([]*segmentMergeInfo, 0, len(m.readers))
	for queue.Size() > 0 {
		match = match[:0]
		smi, _ := queue.Pop()
		match = append(match, smi)
		term := *smi.term
		for top, ok := queue.Top(); ok && term.Compare(*top.term) == 0; top, ok = queue.Top() {
			queue.Pop()
			match = append(match, top)
		}

		if err := m.mergeTermInfo(term, match); err != nil {
			for _, smi := range match {
				smi.close()
			}
			return err
		}

		for _, smi := range match {
			ok, err := smi.next()
			if err != nil || !ok {
				smi.close()
				if err != nil {
					return err
				}
				continue
			}
			queue.Put(smi)
		}
	}
	return nil
}

func docMap(r *SegmentReader) []int {
	if !r.HasDeletions() {
		return nil
	}
	m := make([]int, r.MaxDoc())
	j := 0
	for i := range m {
		if r.IsDeleted(i) {
			m[i] = -1
			continue
		}
		m[i] = j
		j++
	}
	return m
}

func (m *SegmentMerger) mergeTermInfo(term Term, smis []*segmentMergeInfo) error {
	freqPointer := m.freqOutput.FilePointer()
	proxPointer := m.proxOutput.FilePointer()
	df, err := m.appendPostings(smis)
	if err != nil {
		return err
	}
	if df > 0 {
		return m.tis.Add(term, TermInfo{DocFreq: df, FreqPointer: freqPointer, ProxPointer: proxPointer})
	}
	return nil
}

func (m *SegmentMerger) appendPostings(smis []*segmentMergeInfo) (int, error) {
	lastDoc := -1
	df := 0
	for _, smi := range smis {
		postings := smi.postings
		if err := postings.seekInfo(smi.termEnum.TermInfo(), true); err != nil {
			return df, err
		}
		for {
			ok, err := postings.Next()
			if err != nil {
				return df, err
			}
			if !ok {
				break
			}
			doc := postings.Doc()
			if smi.docMap != nil {
				doc = smi.docMap[doc]
			}
			doc += smi.base
			if doc <= lastDoc {
				return df, fmt.Errorf("%w: %d after %d", apperrors.ErrDocsOutOfOrder, doc, lastDoc)
			}
			delta := doc - max(lastDoc, 0)
			lastDoc = doc

			freq := postings.Freq()
			if freq == 1 {
				m.freqOutput.WriteVInt(delta<<1 | 1)
			} else {
				m.freqOutput.WriteVInt(delta << 1)
				m.freqOutput.WriteVInt(freq)
			}

			lastPosition := 0
			for j := 0; j < freq; j++ {
				position, err := postings.NextPosition()
				if err != nil {
					return df, err
				}
				m.proxOutput.WriteVInt(position - lastPosition)
				lastPosition = position
			}
			df++
		}
	}
	return df, errors.Join(m.freqOutput.Err(), m.proxOutput.Err())
}

func (m *SegmentMerger) mergeNorms() error {
	for i := 0; i < m.fieldInfos.Size(); i++ {
		fi := m.fieldInfos.ByNumber(i)
		if !fi.IsIndexed {
			continue
		}
		out, err := m.dir.CreateFile(normFileName(m.segment, i))
		if err != nil {
			return err
		}
		for _, r := range m.readers {
			if err := copyNorms(out, r, fi.Name); err != nil {
				out.Close()
				return err
			}
		}
		if err := out.Close(); err != nil {
			return err
		}
	}
	return nil
}

func copyNorms(out *store.OutputStream, r *SegmentReader, field string) error {
	in, err := r.normStream(field)
	if err != nil {
		return err
	}
	defer in.Close()
	for k := 0; k < r.MaxDoc(); k++ {
		var b byte
		if in != nil {
			if b, err = in.ReadByte(); err != nil {
				return err
			}
		}
		if !r.IsDeleted(k) {
			out.WriteByte(b)
		}
	}
	return out.Err()
}
