package search

import (
	"fmt"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/index"
)

// Filter restricts a search to a subset of a reader's documents.
type Filter interface {
	// Bits returns the document numbers of r that may be returned.
	Bits(r index.Reader) (*roaring.Bitmap, error)
	String() string
}

// DateFilter admits documents whose date field, encoded with
// document.DateToString, falls within [start, end].
type DateFilter struct {
	field string
	start string
	end   string
}

// NewDateFilter admits documents dated from through to, inclusive.
func NewDateFilter(field string, from, to time.Time) (*DateFilter, error) {
	start, err := document.DateToString(from)
	if err != nil {
		return nil, err
	}
	end, err := document.DateToString(to)
	if err != nil {
		return nil, err
	}
	return &DateFilter{field: field, start: start, end: end}, nil
}

// DateFilterBefore admits documents dated at or before t.
func DateFilterBefore(field string, t time.Time) (*DateFilter, error) {
	end, err := document.DateToString(t)
	if err != nil {
		return nil, err
	}
	return &DateFilter{field: field, start: document.MinDateString(), end: end}, nil
}

// DateFilterAfter admits documents dated at or after t.
func DateFilterAfter(field string, t time.Time) (*DateFilter, error) {
	start, err := document.DateToString(t)
	if err != nil {
		return nil, err
	}
	return &DateFilter{field: field, start: start, end: document.MaxDateString()}, nil
}

func (f *DateFilter) Bits(r index.Reader) (*roaring.Bitmap, error) {
	bits := roaring.New()
	enum, err := r.TermsFrom(index.NewTerm(f.field, f.start))
	if err != nil {
		return nil, err
	}
	defer enum.Close()

	stop := index.NewTerm(f.field, f.end)
	for t := enum.Term(); t != nil && !stop.Less(*t); t = enum.Term() {
		if err := addTermDocs(bits, r, *t); err != nil {
			return nil, err
		}
		more, err := enum.Next()
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
	}
	return bits, nil
}

func addTermDocs(bits *roaring.Bitmap, r index.Reader, t index.Term) error {
	docs, err := r.TermDocs(t)
	if err != nil {
		return err
	}
	defer docs.Close()
	for {
		ok, err := docs.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		bits.Add(uint32(docs.Doc()))
	}
}

func (f *DateFilter) String() string {
	return fmt.Sprintf("%s:%s-%s", f.field, formatDate(f.start), formatDate(f.end))
}

func formatDate(s string) string {
	t, err := document.StringToDate(s)
	if err != nil {
		return s
	}
	return t.Format(time.RFC3339)
}

// QueryFilter admits the documents matching a query, ignoring scores.
type QueryFilter struct {
	query Query
}

func NewQueryFilter(q Query) *QueryFilter {
	return &QueryFilter{query: q}
}

func (f *QueryFilter) Bits(r index.Reader) (*roaring.Bitmap, error) {
	bits := roaring.New()
	err := NewIndexSearcher(r).SearchCollect(f.query, nil, HitCollectorFunc(func(doc int, _ float32) {
		bits.Add(uint32(doc))
	}))
	if err != nil {
		return nil, err
	}
	return bits, nil
}

func (f *QueryFilter) String() string {
	return "QueryFilter(" + f.query.String("") + ")"
}
