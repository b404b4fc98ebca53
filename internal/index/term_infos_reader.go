package index

import (
	"fmt"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/store"
)

// TermInfosReader answers dictionary lookups for one segment. The whole
// .tii index is held in memory; lookups binary-search it and then scan at
// most IndexInterval entries of the .tis file.
type TermInfosReader struct {
	mu   sync.Mutex
	enum *SegmentTermEnum
	size int

	indexTerms    []Term
	indexInfos    []TermInfo
	indexPointers []int64
}

// NewTermInfosReader opens the dictionary of segment and loads its index.
func NewTermInfosReader(dir store.Directory, segment string, fi *FieldInfos) (*TermInfosReader, error) {
	in, err := dir.OpenFile(segment + ".tis")
	if err != nil {
		return nil, fmt.Errorf("opening term dictionary: %w", err)
	}
	enum, err := newSegmentTermEnum(in, fi, false)
	if err != nil {
		in.Close()
		return nil, err
	}
	r := &TermInfosReader{enum: enum, size: enum.Size()}
	if err := r.readIndex(dir, segment, fi); err != nil {
		enum.Close()
		return nil, err
	}
	return r, nil
}

func (r *TermInfosReader) readIndex(dir store.Directory, segment string, fi *FieldInfos) error {
	in, err := dir.OpenFile(segment + ".tii")
	if err != nil {
		return fmt.Errorf("opening term index: %w", err)
	}
	idx, err := newSegmentTermEnum(in, fi, true)
	if err != nil {
		in.Close()
		return err
	}
	defer idx.Close()

	n := idx.Size()
	r.indexTerms = make([]Term, 0, n)
	r.indexInfos = make([]TermInfo, 0, n)
	r.indexPointers = make([]int64, 0, n)
	for {
		ok, err := idx.Next()
		if err != nil {
			return fmt.Errorf("reading term index: %w", err)
		}
		if !ok {
			return nil
		}
		r.indexTerms = append(r.indexTerms, *idx.Term())
		r.indexInfos = append(r.indexInfos, idx.TermInfo())
		r.indexPointers = append(r.indexPointers, idx.indexPointer)
	}
}

// Size returns the number of terms in the dictionary.
func (r *TermInfosReader) Size() int {
	return r.size
}

// indexOffset returns the offset of the greatest index term <= term.
func (r *TermInfosReader) indexOffset(term Term) int {
	lo, hi := 0, len(r.indexTerms)-1
	for hi >= lo {
		mid := (lo + hi) >> 1
		switch c := term.Compare(r.indexTerms[mid]); {
		case c < 0:
			hi = mid - 1
		case c > 0:
			lo = mid + 1
		default:
			return mid
		}
	}
	return hi
}

func (r *TermInfosReader) seekEnum(offset int) error {
	return r.enum.seek(r.indexPointers[offset], offset*IndexInterval-1,
		r.indexTerms[offset], r.indexInfos[offset])
}

// Get returns the TermInfo for term. ok is false when the term is absent.
func (r *TermInfosReader) Get(term Term) (ti TermInfo, ok bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(term)
}

func (r *TermInfosReader) get(term Term) (TermInfo, bool, error) {
	if r.size == 0 || len(r.indexTerms) == 0 {
		return TermInfo{}, false, nil
	}

	// Sequential access: the cursor is at or before term and term is in
	// the same index block, so scan forward without seeking.
	if cur := r.enum.Term(); cur != nil &&
		((r.enum.prev != nil && term.Compare(*r.enum.prev) > 0) || term.Compare(*cur) >= 0) {
		next := r.enum.Position()/IndexInterval + 1
		if next >= len(r.indexTerms) || term.Less(r.indexTerms[next]) {
			return r.scanEnum(term)
		}
	}

	offset := r.indexOffset(term)
	if offset < 0 {
		offset = 0
	}
	if err := r.seekEnum(offset); err != nil {
		return TermInfo{}, false, err
	}
	return r.scanEnum(term)
}

func (r *TermInfosReader) scanEnum(term Term) (TermInfo, bool, error) {
	if err := r.scanTo(term); err != nil {
		return TermInfo{}, false, err
	}
	if cur := r.enum.Term(); cur != nil && term.Compare(*cur) == 0 {
		return r.enum.TermInfo(), true, nil
	}
	return TermInfo{}, false, nil
}

// scanTo advances the cursor to the first term >= term.
func (r *TermInfosReader) scanTo(term Term) error {
	for cur := r.enum.Term(); cur != nil && term.Compare(*cur) > 0; cur = r.enum.Term() {
		if _, err := r.enum.Next(); err != nil {
			return err
		}
	}
	return nil
}

// TermAt returns the term with ordinal position. ok is false when position
// is out of range.
func (r *TermInfosReader) TermAt(position int) (t Term, ok bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if position < 0 || position >= r.size {
		return Term{}, false, nil
	}
	if cur := r.enum.Term(); cur == nil ||
		position < r.enum.Position() || position >= r.enum.Position()+IndexInterval {
		if err := r.seekEnum(position / IndexInterval); err != nil {
			return Term{}, false, err
		}
	}
	for r.enum.Position() < position {
		more, err := r.enum.Next()
		if err != nil {
			return Term{}, false, err
		}
		if !more {
			return Term{}, false, nil
		}
	}
	return *r.enum.Term(), true, nil
}

// Position returns the ordinal of term, or -1 when it is absent.
func (r *TermInfosReader) Position(term Term) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == 0 || len(r.indexTerms) == 0 {
		return -1, nil
	}
	offset := r.indexOffset(term)
	if offset < 0 {
		offset = 0
	}
	if err := r.seekEnum(offset); err != nil {
		return -1, err
	}
	if err := r.scanTo(term); err != nil {
		return -1, err
	}
	if cur := r.enum.Term(); cur != nil && term.Compare(*cur) == 0 {
		return r.enum.Position(), nil
	}
	return -1, nil
}

// Terms returns an enumerator positioned before the first term. Call Next
// before reading the first term.
func (r *TermInfosReader) Terms() (*SegmentTermEnum, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.enum.Position() != -1 && len(r.indexTerms) > 0 {
		if err := r.seekEnum(0); err != nil {
			return nil, err
		}
	}
	return r.enum.Clone(), nil
}

// TermsFrom returns an enumerator already positioned at the first term >=
// term. Its Term is nil when no such term exists.
func (r *TermInfosReader) TermsFrom(term Term) (*SegmentTermEnum, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == 0 {
		e := r.enum.Clone()
		e.term = nil
		return e, nil
	}
	if _, _, err := r.get(term); err != nil {
		return nil, err
	}
	return r.enum.Clone(), nil
}

func (r *TermInfosReader) Close() error {
	return r.enum.Close()
}
