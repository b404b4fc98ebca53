package index

import (
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/store"
)

// WriteLockName is the lock file held by a Writer for its lifetime.
const WriteLockName = "write.lock"

// TermEnum enumerates terms in Term order.
type TermEnum interface {
	// Next advances to the following term and reports whether there is one.
	Next() (bool, error)
	// Term returns the current term, or nil when the enumeration is done.
	Term() *Term
	// DocFreq returns the number of documents containing the current term.
	DocFreq() int
	Close() error
}

// TermDocs enumerates the documents containing a term in increasing
// document order, with the term's frequency in each.
type TermDocs interface {
	Seek(term Term) error
	Doc() int
	Freq() int
	Next() (bool, error)
	// Read fills docs and freqs and returns the number of entries filled.
	// Zero means the enumeration is done.
	Read(docs, freqs []int) (int, error)
	// SkipTo advances to the first document >= target.
	SkipTo(target int) (bool, error)
	Close() error
}

// TermPositions adds the positions of each occurrence to TermDocs.
type TermPositions interface {
	TermDocs
	// NextPosition returns the next position in the current document. It may
	// be called Freq times per document.
	NextPosition() (int, error)
}

// Reader gives access to an index: one segment or many presented as one.
// Document numbers are dense in [0, MaxDoc) and are only stable for the
// lifetime of the reader.
type Reader interface {
	NumDocs() int
	MaxDoc() int
	Document(n int) (*document.Document, error)
	IsDeleted(n int) bool
	HasDeletions() bool
	// Norms returns one norm byte per document for field, or nil when the
	// field is not indexed.
	Norms(field string) ([]byte, error)
	NormsInto(field string, dst []byte, offset int) error
	Terms() (TermEnum, error)
	TermsFrom(t Term) (TermEnum, error)
	DocFreq(t Term) (int, error)
	TermDocs(t Term) (TermDocs, error)
	TermPositions(t Term) (TermPositions, error)
	Delete(n int) error
	DeleteTerm(t Term) (int, error)
	FieldNames() []string
	Close() error
}

var (
	_ Reader = (*SegmentReader)(nil)
	_ Reader = (*MultiReader)(nil)
)

// Open opens the index in dir. A single-segment index is read by a
// SegmentReader, anything else by a MultiReader.
func Open(dir store.Directory) (Reader, error) {
	locker := dir.Locker()
	locker.Lock()
	defer locker.Unlock()

	infos, err := ReadSegmentInfos(dir)
	if err != nil {
		return nil, err
	}
	if len(infos.Segments) == 1 {
		r, err := OpenSegmentReader(infos.Segments[0])
		if err != nil {
			return nil, err
		}
		return r, nil
	}

	readers := make([]*SegmentReader, len(infos.Segments))
	var g errgroup.Group
	for i, si := range infos.Segments {
		g.Go(func() error {
			r, err := OpenSegmentReader(si)
			if err != nil {
				return fmt.Errorf("opening segment %s: %w", si.Name, err)
			}
			readers[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, r := range readers {
			if r != nil {
				r.Close()
			}
		}
		return nil, err
	}
	return NewMultiReader(readers), nil
}

// IndexExists reports whether dir holds an index.
func IndexExists(dir store.Directory) bool {
	return dir.FileExists(segmentsFileName)
}

// LastModified returns the time the index in dir was last committed.
func LastModified(dir store.Directory) (time.Time, error) {
	return dir.FileModified(segmentsFileName)
}

// IsLocked reports whether a writer holds the index in dir.
func IsLocked(dir store.Directory) bool {
	return dir.MakeLock(WriteLockName).IsLocked()
}

// Unlock forcibly releases the write lock of dir. It is only safe when the
// writer that held it has died.
func Unlock(dir store.Directory) error {
	return dir.MakeLock(WriteLockName).Release()
}

func deleteTerm(r Reader, t Term) (int, error) {
	docs, err := r.TermDocs(t)
	if err != nil {
		return 0, err
	}
	defer docs.Close()
	n := 0
	for {
		ok, err := docs.Next()
		if err != nil {
			return n, err
		}
		if !ok {
			return n, nil
		}
		if err := r.Delete(docs.Doc()); err != nil {
			return n, err
		}
		n++
	}
}
