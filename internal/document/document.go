// Package document defines the unit of indexing and search: a Document is a
// list of named Fields, each optionally stored, indexed and tokenized.
package document

import (
	"fmt"
	"io"
	"strings"
)

// Field is one named value of a Document. A field's value is either a string
// or a reader; reader-valued fields are always tokenized and never stored.
type Field struct {
	name        string
	stringValue string
	readerValue io.Reader
	hasString   bool
	isStored    bool
	isIndexed   bool
	isTokenized bool
}

// NewField returns a string-valued field with explicit flags.
func NewField(name, value string, store, index, tokenize bool) *Field {
	return &Field{
		name:        name,
		stringValue: value,
		hasString:   true,
		isStored:    store,
		isIndexed:   index,
		isTokenized: tokenize,
	}
}

// Keyword is stored and indexed as one term without tokenization. Use it for
// identifiers, dates and URLs.
func Keyword(name, value string) *Field {
	return NewField(name, value, true, true, false)
}

// UnIndexed is stored for retrieval but not searchable.
func UnIndexed(name, value string) *Field {
	return NewField(name, value, true, false, false)
}

// Text is tokenized, indexed and stored.
func Text(name, value string) *Field {
	return NewField(name, value, true, true, true)
}

// UnStored is tokenized and indexed but not stored.
func UnStored(name, value string) *Field {
	return NewField(name, value, false, true, true)
}

// TextReader is tokenized and indexed from r and never stored.
func TextReader(name string, r io.Reader) *Field {
	return &Field{
		name:        name,
		readerValue: r,
		isIndexed:   true,
		isTokenized: true,
	}
}

func (f *Field) Name() string { return f.name }
func (f *Field) StringValue() string { return f.stringValue }
func (f *Field) ReaderValue() io.Reader { return f.readerValue }
func (f *Field) IsStored() bool { return f.isStored }
func (f *Field) IsIndexed() bool { return f.isIndexed }
func (f *Field) IsTokenized() bool { return f.isTokenized }

// HasValue reports whether the field carries a string or a non-nil reader.
func (f *Field) HasValue() bool {
	return f.hasString || f.readerValue != nil
}

func (f *Field) String() string {
	switch {
	case f.isStored && f.isIndexed && !f.isTokenized:
		return fmt.Sprintf("Keyword<%s:%s>", f.name, f.stringValue)
	case f.isStored && !f.isIndexed && !f.isTokenized:
		return fmt.Sprintf("Unindexed<%s:%s>", f.name, f.stringValue)
	case f.isStored && f.isIndexed && f.isTokenized:
		return fmt.Sprintf("Text<%s:%s>", f.name, f.stringValue)
	case f.readerValue != nil:
		return fmt.Sprintf("Text<%s:reader>", f.name)
	default:
		return fmt.Sprintf("UnStored<%s:%s>", f.name, f.stringValue)
	}
}

// Document is an ordered collection of fields.
type Document struct {
	fields []*Field
}

// New returns a document holding fields.
func New(fields ...*Field) *Document {
	return &Document{fields: fields}
}

// Add appends a field.
func (d *Document) Add(f *Field) {
	d.fields = append(d.fields, f)
}

// Fields returns the fields in the order they were added.
func (d *Document) Fields() []*Field {
	return d.fields
}

// GetField returns the most recently added field named name, or nil.
func (d *Document) GetField(name string) *Field {
	for i := len(d.fields) - 1; i >= 0; i-- {
		if d.fields[i].name == name {
			return d.fields[i]
		}
	}
	return nil
}

// Get returns the string value of the most recently added field named name,
// or "" when there is none.
func (d *Document) Get(name string) string {
	if f := d.GetField(name); f != nil {
		return f.stringValue
	}
	return ""
}

// GetValues returns the string values of every field named name, in order.
func (d *Document) GetValues(name string) []string {
	var values []string
	for _, f := range d.fields {
		if f.name == name {
			values = append(values, f.stringValue)
		}
	}
	return values
}

func (d *Document) String() string {
	parts := make([]string, len(d.fields))
	for i, f := range d.fields {
		parts[i] = f.String()
	}
	return "Document<" + strings.Join(parts, " ") + ">"
}
