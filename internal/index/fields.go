package index

import (
	"errors"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/segment-search/pkg/errors"
)

const fieldIsTokenized = 0x1

// FieldsWriter appends stored field values to a segment's .fdt file and
// records each document's start offset in .fdx.
type FieldsWriter struct {
	fieldInfos *FieldInfos
	fields     *store.OutputStream
	index      *store.OutputStream
}

// NewFieldsWriter creates the .fdt and .fdx files of segment.
func NewFieldsWriter(dir store.Directory, segment string, fi *FieldInfos) (*FieldsWriter, error) {
	fields, err := dir.CreateFile(segment + ".fdt")
	if err != nil {
		return nil, fmt.Errorf("creating stored fields: %w", err)
	}
	index, err := dir.CreateFile(segment + ".fdx")
	if err != nil {
		fields.Close()
		return nil, fmt.Errorf("creating stored field index: %w", err)
	}
	return &FieldsWriter{fieldInfos: fi, fields: fields, index: index}, nil
}

// AddDocument writes the stored fields of doc.
func (w *FieldsWriter) AddDocument(doc *document.Document) error {
	w.index.WriteLong(w.fields.FilePointer())

	stored := 0
	for _, f := range doc.Fields() {
		if f.IsStored() {
			stored++
		}
	}
	w.fields.WriteVInt(stored)
	for _, f := range doc.Fields() {
		if !f.IsStored() {
			continue
		}
		w.fields.WriteVInt(w.fieldInfos.FieldNumber(f.Name()))
		var bits byte
		if f.IsTokenized() {
			bits |= fieldIsTokenized
		}
		w.fields.WriteByte(bits)
		w.fields.WriteString(f.StringValue())
	}
	return errors.Join(w.fields.Err(), w.index.Err())
}

// Close flushes and closes both files.
func (w *FieldsWriter) Close() error {
	return store.CloseAll(w.fields, w.index)
}

// FieldsReader reads stored documents back by document number.
type FieldsReader struct {
	fieldInfos *FieldInfos
	fields     *store.InputStream
	index      *store.InputStream
	size       int
}

// NewFieldsReader opens the stored field files of segment.
func NewFieldsReader(dir store.Directory, segment string, fi *FieldInfos) (*FieldsReader, error) {
	fields, err := dir.OpenFile(segment + ".fdt")
	if err != nil {
		return nil, fmt.Errorf("opening stored fields: %w", err)
	}
	index, err := dir.OpenFile(segment + ".fdx")
	if err != nil {
		fields.Close()
		return nil, fmt.Errorf("opening stored field index: %w", err)
	}
	return &FieldsReader{
		fieldInfos: fi,
		fields:     fields,
		index:      index,
		size:       int(index.Length() / 8),
	}, nil
}

// Size returns the number of documents in the segment, deleted or not.
func (r *FieldsReader) Size() int {
	return r.size
}

// Doc returns the stored fields of document n. It is not safe for
// concurrent use.
func (r *FieldsReader) Doc(n int) (*document.Document, error) {
	if err := r.index.Seek(int64(n) * 8); err != nil {
		return nil, err
	}
	pos, err := r.index.ReadLong()
	if err != nil {
		return nil, fmt.Errorf("reading offset of doc %d: %w", n, err)
	}
	if err := r.fields.Seek(pos); err != nil {
		return nil, err
	}
	count, err := r.fields.ReadVInt()
	if err != nil {
		return nil, fmt.Errorf("reading field count of doc %d: %w", n, err)
	}
	doc := document.New()
	for i := 0; i < count; i++ {
		num, err := r.fields.ReadVInt()
		if err != nil {
			return nil, err
		}
		bits, err := r.fields.ReadByte()
		if err != nil {
			return nil, err
		}
		value, err := r.fields.ReadString()
		if err != nil {
			return nil, err
		}
		fi := r.fieldInfos.ByNumber(num)
		if fi == nil {
			return nil, apperrors.Corruptf("doc %d: unknown field number %d", n, num)
		}
		doc.Add(document.NewField(fi.Name, value, true, fi.IsIndexed, bits&fieldIsTokenized != 0))
	}
	return doc, nil
}

// Close releases both files.
func (r *FieldsReader) Close() error {
	return store.CloseAll(r.fields, r.index)
}
