package index

import (
	"fmt"
	"unicode/utf16"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/store"
)

// SegmentTermEnum walks the entries of a .tis or .tii file in term order.
type SegmentTermEnum struct {
	input      *store.InputStream
	fieldInfos *FieldInfos
	size       int
	position   int
	isIndex    bool

	term         *Term
	prev         *Term
	termInfo     TermInfo
	indexPointer int64
	text         []uint16
}

func newSegmentTermEnum(input *store.InputStream, fi *FieldInfos, isIndex bool) (*SegmentTermEnum, error) {
	size, err := input.ReadInt()
	if err != nil {
		return nil, fmt.Errorf("reading term count: %w", err)
	}
	return &SegmentTermEnum{
		input:      input,
		fieldInfos: fi,
		size:       int(size),
		position:   -1,
		isIndex:    isIndex,
		term:       &Term{},
	}, nil
}

// Next advances to the following term and reports whether there is one.
func (e *SegmentTermEnum) Next() (bool, error) {
	e.position++
	if e.position > e.size-1 {
		e.term = nil
		return false, nil
	}
	e.prev = e.term
	term, err := e.readTerm()
	if err != nil {
		return false, err
	}
	e.term = term

	docFreq, err := e.input.ReadVInt()
	if err != nil {
		return false, err
	}
	freqDelta, err := e.input.ReadVLong()
	if err != nil {
		return false, err
	}
	proxDelta, err := e.input.ReadVLong()
	if err != nil {
		return false, err
	}
	e.termInfo.DocFreq = docFreq
	e.termInfo.FreqPointer += freqDelta
	e.termInfo.ProxPointer += proxDelta

	if e.isIndex {
		delta, err := e.input.ReadVLong()
		if err != nil {
			return false, err
		}
		e.indexPointer += delta
	}
	return true, nil
}

func (e *SegmentTermEnum) readTerm() (*Term, error) {
	start, err := e.input.ReadVInt()
	if err != nil {
		return nil, fmt.Errorf("reading term prefix: %w", err)
	}
	length, err := e.input.ReadVInt()
	if err != nil {
		return nil, fmt.Errorf("reading term suffix length: %w", err)
	}
	total := start + length
	if start > len(e.text) {
		return nil, fmt.Errorf("term prefix %d exceeds previous term length %d", start, len(e.text))
	}
	if cap(e.text) < total {
		grown := make([]uint16, total, 2*total)
		copy(grown, e.text[:start])
		e.text = grown
	}
	e.text = e.text[:total]
	if err := e.input.ReadChars(e.text[start:]); err != nil {
		return nil, fmt.Errorf("reading term text: %w", err)
	}
	num, err := e.input.ReadVInt()
	if err != nil {
		return nil, fmt.Errorf("reading term field: %w", err)
	}
	return &Term{Field: e.fieldInfos.FieldName(num), Text: string(utf16.Decode(e.text))}, nil
}

// seek repositions the enum at a known dictionary entry.
func (e *SegmentTermEnum) seek(pointer int64, position int, t Term, ti TermInfo) error {
	if err := e.input.Seek(pointer); err != nil {
		return err
	}
	e.position = position
	e.term = &t
	e.prev = nil
	e.termInfo = ti
	e.text = encodeText(t.Text)
	return nil
}

// Term returns the current term, or nil once the enum is exhausted.
func (e *SegmentTermEnum) Term() *Term {
	return e.term
}

// DocFreq returns the document frequency of the current term.
func (e *SegmentTermEnum) DocFreq() int {
	return e.termInfo.DocFreq
}

// TermInfo returns the dictionary entry of the current term.
func (e *SegmentTermEnum) TermInfo() TermInfo {
	return e.termInfo
}

// Position returns the ordinal of the current term, -1 before the first.
func (e *SegmentTermEnum) Position() int {
	return e.position
}

// Size returns the number of entries in the file.
func (e *SegmentTermEnum) Size() int {
	return e.size
}

// Clone returns an independent cursor at the same entry.
func (e *SegmentTermEnum) Clone() *SegmentTermEnum {
	c := *e
	c.input = e.input.Clone()
	c.text = append([]uint16(nil), e.text...)
	return &c
}

func (e *SegmentTermEnum) Close() error {
	return e.input.Close()
}
