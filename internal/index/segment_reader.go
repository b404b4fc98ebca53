package index

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/store"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/util"
	apperrors "github.com/Adithya-Monish-Kumar-K/segment-search/pkg/errors"
)

type norm struct {
	in    *store.InputStream
	bytes []byte
}

// SegmentReader reads a single segment. Lookups are safe for concurrent
// use; Delete must not race with enumerators created before it.
type SegmentReader struct {
	mu      sync.Mutex
	dir     store.Directory
	segment string
	logger  *slog.Logger

	fieldInfos   *FieldInfos
	fieldsReader *FieldsReader
	tis          *TermInfosReader

	deleted      *util.BitVector
	deletedDirty bool

	freqStream *store.InputStream
	proxStream *store.InputStream
	norms      map[string]*norm
	closed     bool
}

// OpenSegmentReader opens every file of the segment described by info.
func OpenSegmentReader(info SegmentInfo) (r *SegmentReader, err error) {
	r = &SegmentReader{
		dir:     info.Dir,
		segment: info.Name,
		logger:  slog.Default().With("component", "segment-reader", "segment", info.Name),
		norms:   make(map[string]*norm),
	}
	defer func() {
		if err != nil {
			r.closeFiles()
			r = nil
		}
	}()

	if r.fieldInfos, err = ReadFieldInfos(r.dir, r.segment+".fnm"); err != nil {
		return r, err
	}
	if r.fieldsReader, err = NewFieldsReader(r.dir, r.segment, r.fieldInfos); err != nil {
		return r, err
	}
	if r.tis, err = NewTermInfosReader(r.dir, r.segment, r.fieldInfos); err != nil {
		return r, err
	}
	if r.dir.FileExists(r.segment + ".del") {
		if r.deleted, err = util.ReadBitVector(r.dir, r.segment+".del"); err != nil {
			return r, fmt.Errorf("reading deletions: %w", err)
		}
	}
	if r.freqStream, err = r.dir.OpenFile(r.segment + ".frq"); err != nil {
		return r, fmt.Errorf("opening freq file: %w", err)
	}
	if r.proxStream, err = r.dir.OpenFile(r.segment + ".prx"); err != nil {
		return r, fmt.Errorf("opening prox file: %w", err)
	}
	for i := 0; i < r.fieldInfos.Size(); i++ {
		fi := r.fieldInfos.ByNumber(i)
		if !fi.IsIndexed {
			continue
		}
		in, err := r.dir.OpenFile(normFileName(r.segment, i))
		if err != nil {
			return r, fmt.Errorf("opening norms for %q: %w", fi.Name, err)
		}
		r.norms[fi.Name] = &norm{in: in}
	}
	return r, nil
}

// Name returns the segment name.
func (r *SegmentReader) Name() string {
	return r.segment
}

// Directory returns the directory holding the segment.
func (r *SegmentReader) Directory() store.Directory {
	return r.dir
}

// FieldInfos returns the segment's field table.
func (r *SegmentReader) FieldInfos() *FieldInfos {
	return r.fieldInfos
}

// Files lists every file belonging to the segment.
func (r *SegmentReader) Files() []string {
	return segmentFiles(r.dir, r.segment, r.fieldInfos)
}

func segmentFiles(dir store.Directory, segment string, fi *FieldInfos) []string {
	files := make([]string, 0, 8+fi.Size())
	for _, ext := range []string{".fnm", ".fdx", ".fdt", ".tii", ".tis", ".frq", ".prx"} {
		files = append(files, segment+ext)
	}
	if dir.FileExists(segment + ".del") {
		files = append(files, segment+".del")
	}
	for i := 0; i < fi.Size(); i++ {
		if fi.ByNumber(i).IsIndexed {
			files = append(files, normFileName(segment, i))
		}
	}
	return files
}

// MaxDoc returns one greater than the largest document number.
func (r *SegmentReader) MaxDoc() int {
	return r.fieldsReader.Size()
}

// NumDocs returns the number of live documents.
func (r *SegmentReader) NumDocs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.fieldsReader.Size()
	if r.deleted != nil {
		n -= r.deleted.Count()
	}
	return n
}

// Document returns the stored fields of document n.
func (r *SegmentReader) Document(n int) (*document.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n < 0 || n >= r.fieldsReader.Size() {
		return nil, fmt.Errorf("%w: document %d out of range", apperrors.ErrInvalidInput, n)
	}
	if r.deleted != nil && r.deleted.Get(n) {
		return nil, fmt.Errorf("%w: %d", apperrors.ErrDocumentDeleted, n)
	}
	return r.fieldsReader.Doc(n)
}

// IsDeleted reports whether document n has been deleted.
func (r *SegmentReader) IsDeleted(n int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleted != nil && r.deleted.Get(n)
}

// HasDeletions reports whether any document is deleted.
func (r *SegmentReader) HasDeletions() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleted != nil
}

func (r *SegmentReader) deletedDocs() *util.BitVector {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleted
}

// Delete marks document n deleted. The deletion is written when the reader
// is closed.
func (r *SegmentReader) Delete(n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n < 0 || n >= r.fieldsReader.Size() {
		return fmt.Errorf("%w: document %d out of range", apperrors.ErrInvalidInput, n)
	}
	if r.deleted == nil {
		r.deleted = util.NewBitVector(r.fieldsReader.Size())
	}
	r.deleted.Set(n)
	r.deletedDirty = true
	return nil
}

// DeleteTerm deletes every document containing t and returns how many were
// deleted.
func (r *SegmentReader) DeleteTerm(t Term) (int, error) {
	return deleteTerm(r, t)
}

// Norms returns the norm byte of every document for field, or nil when the
// field is not indexed in this segment. The slice is cached and must not be
// modified.
func (r *SegmentReader) Norms(field string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.norms[field]
	if n == nil {
		return nil, nil
	}
	if n.bytes == nil {
		bytes := make([]byte, r.fieldsReader.Size())
		if err := r.readNorms(n, bytes); err != nil {
			return nil, err
		}
		n.bytes = bytes
	}
	return n.bytes, nil
}

// NormsInto copies the norms of field into dst starting at offset. dst is
// left untouched when the field is not indexed in this segment.
func (r *SegmentReader) NormsInto(field string, dst []byte, offset int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.norms[field]
	if n == nil {
		return nil
	}
	maxDoc := r.fieldsReader.Size()
	if n.bytes != nil {
		copy(dst[offset:offset+maxDoc], n.bytes)
		return nil
	}
	return r.readNorms(n, dst[offset:offset+maxDoc])
}

func (r *SegmentReader) readNorms(n *norm, dst []byte) error {
	in := n.in.Clone()
	defer in.Close()
	if err := in.Seek(0); err != nil {
		return err
	}
	if err := in.ReadBytes(dst); err != nil {
		return fmt.Errorf("reading norms: %w", err)
	}
	return nil
}

// normStream returns a private cursor over the norms of field, or nil.
func (r *SegmentReader) normStream(field string) (*store.InputStream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.norms[field]
	if n == nil {
		return nil, nil
	}
	in := n.in.Clone()
	if err := in.Seek(0); err != nil {
		in.Close()
		return nil, err
	}
	return in, nil
}

// Terms returns an enumerator over every term. Call Next before reading the
// first term.
func (r *SegmentReader) Terms() (TermEnum, error) {
	e, err := r.tis.Terms()
	if err != nil {
		return nil, err
	}
	return e, nil
}

// TermsFrom returns an enumerator positioned at the first term >= t.
func (r *SegmentReader) TermsFrom(t Term) (TermEnum, error) {
	e, err := r.tis.TermsFrom(t)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// DocFreq returns the number of documents containing t, deleted or not.
func (r *SegmentReader) DocFreq(t Term) (int, error) {
	ti, ok, err := r.tis.Get(t)
	if err != nil || !ok {
		return 0, err
	}
	return ti.DocFreq, nil
}

// TermDocs returns the live documents containing t.
func (r *SegmentReader) TermDocs(t Term) (TermDocs, error) {
	td := newSegmentTermDocs(r)
	if err := td.Seek(t); err != nil {
		td.Close()
		return nil, err
	}
	return td, nil
}

// TermPositions returns the live documents containing t with the positions
// of every occurrence.
func (r *SegmentReader) TermPositions(t Term) (TermPositions, error) {
	tp := newSegmentTermPositions(r)
	if err := tp.Seek(t); err != nil {
		tp.Close()
		return nil, err
	}
	return tp, nil
}

// FieldNames returns the sorted names of every field in the segment.
func (r *SegmentReader) FieldNames() []string {
	names := make([]string, 0, r.fieldInfos.Size())
	for i := 1; i < r.fieldInfos.Size(); i++ {
		names = append(names, r.fieldInfos.ByNumber(i).Name)
	}
	sort.Strings(names)
	return names
}

// Close writes pending deletions and releases every file.
func (r *SegmentReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var err error
	if r.deletedDirty {
		err = r.commitDeletions()
	}
	return errors.Join(err, r.closeFiles())
}

// commitDeletions writes the deletion bits to a temporary file and renames
// it over the .del file, so a crash leaves either the old or new bits.
func (r *SegmentReader) commitDeletions() error {
	locker := r.dir.Locker()
	locker.Lock()
	defer locker.Unlock()

	tmp := r.segment + ".tmp"
	if r.dir.FileExists(tmp) {
		if err := r.dir.DeleteFile(tmp); err != nil {
			return fmt.Errorf("removing stale deletions: %w", err)
		}
	}
	if err := r.deleted.Write(r.dir, tmp); err != nil {
		return fmt.Errorf("writing deletions: %w", err)
	}
	if err := r.dir.RenameFile(tmp, r.segment+".del"); err != nil {
		return fmt.Errorf("committing deletions: %w", err)
	}
	r.deletedDirty = false
	r.logger.Debug("deletions committed", "deleted", r.deleted.Count(), "max_doc", r.deleted.Size())
	return nil
}

func (r *SegmentReader) closeFiles() error {
	closers := []interface{ Close() error }{r.freqStream, r.proxStream}
	if r.fieldsReader != nil {
		closers = append(closers, r.fieldsReader)
	}
	if r.tis != nil {
		closers = append(closers, r.tis)
	}
	for _, n := range r.norms {
		closers = append(closers, n.in)
	}
	return store.CloseAll(closers...)
}
