package index

import (
	"errors"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/segment-search/pkg/errors"
)

// IndexInterval is the number of .tis entries between consecutive .tii
// entries. Larger values make the in-memory index smaller and random
// lookups slower.
const IndexInterval = 128

// TermInfosWriter writes a segment's term dictionary: the .tis file with
// every term, and the .tii index holding every IndexInterval-th entry.
type TermInfosWriter struct {
	fieldInfos *FieldInfos
	output     *store.OutputStream
	lastTerm   Term
	lastText   []uint16
	lastTi     TermInfo
	size       int

	isIndex          bool
	lastIndexPointer int64
	other            *TermInfosWriter
}

// NewTermInfosWriter creates the dictionary files of segment.
func NewTermInfosWriter(dir store.Directory, segment string, fi *FieldInfos) (*TermInfosWriter, error) {
	w, err := newTermInfosWriter(dir, segment+".tis", fi, false)
	if err != nil {
		return nil, err
	}
	idx, err := newTermInfosWriter(dir, segment+".tii", fi, true)
	if err != nil {
		w.output.Close()
		return nil, err
	}
	w.other = idx
	idx.other = w
	return w, nil
}

func newTermInfosWriter(dir store.Directory, name string, fi *FieldInfos, isIndex bool) (*TermInfosWriter, error) {
	out, err := dir.CreateFile(name)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", name, err)
	}
	// Entry count, rewritten by Close.
	out.WriteInt(0)
	return &TermInfosWriter{fieldInfos: fi, output: out, isIndex: isIndex}, nil
}

// Add appends a dictionary entry. Terms must be added in strictly
// increasing order and pointers must never decrease.
func (w *TermInfosWriter) Add(term Term, ti TermInfo) error {
	if !w.isIndex && term.Compare(w.lastTerm) <= 0 {
		return fmt.Errorf("%w: %s after %s", apperrors.ErrTermOutOfOrder, term, w.lastTerm)
	}
	if ti.FreqPointer < w.lastTi.FreqPointer {
		return fmt.Errorf("%w: freq pointer %d < %d", apperrors.ErrPointerOutOfOrder, ti.FreqPointer, w.lastTi.FreqPointer)
	}
	if ti.ProxPointer < w.lastTi.ProxPointer {
		return fmt.Errorf("%w: prox pointer %d < %d", apperrors.ErrPointerOutOfOrder, ti.ProxPointer, w.lastTi.ProxPointer)
	}
	field := w.fieldInfos.FieldNumber(term.Field)
	if field < 0 {
		return fmt.Errorf("%w: term %s has unknown field", apperrors.ErrInvalidInput, term)
	}

	if !w.isIndex && w.size%IndexInterval == 0 {
		if err := w.other.Add(w.lastTerm, w.lastTi); err != nil {
			return err
		}
	}

	w.writeTerm(term, field)
	w.output.WriteVInt(ti.DocFreq)
	w.output.WriteVLong(ti.FreqPointer - w.lastTi.FreqPointer)
	w.output.WriteVLong(ti.ProxPointer - w.lastTi.ProxPointer)

	if w.isIndex {
		pointer := w.other.output.FilePointer()
		w.output.WriteVLong(pointer - w.lastIndexPointer)
		w.lastIndexPointer = pointer
	}

	w.lastTi = ti
	w.size++
	return w.output.Err()
}

func (w *TermInfosWriter) writeTerm(term Term, field int) {
	text := encodeText(term.Text)
	start := sharedPrefix(w.lastText, text)
	w.output.WriteVInt(start)
	w.output.WriteVInt(len(text) - start)
	w.output.WriteChars(text[start:])
	w.output.WriteVInt(field)
	w.lastTerm = term
	w.lastText = text
}

// Size returns the number of entries added so far.
func (w *TermInfosWriter) Size() int {
	return w.size
}

// Close writes the entry counts and closes both files.
func (w *TermInfosWriter) Close() error {
	w.output.Seek(0)
	w.output.WriteInt(int32(w.size))
	err := w.output.Close()
	if !w.isIndex {
		err = errors.Join(err, w.other.Close())
	}
	return err
}
