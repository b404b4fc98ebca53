package index

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/segment-search/pkg/errors"
)

// FieldInfo describes one field of a segment.
type FieldInfo struct {
	Name      string
	Number    int
	IsIndexed bool
}

// FieldInfos numbers the fields of a segment. Field zero is always the
// unindexed empty name so that a zero field number never refers to a real
// field.
type FieldInfos struct {
	byNumber []*FieldInfo
	byName   map[string]*FieldInfo
}

// NewFieldInfos returns a table holding only the reserved empty field.
func NewFieldInfos() *FieldInfos {
	fi := &FieldInfos{byName: make(map[string]*FieldInfo)}
	fi.addInternal("", false)
	return fi
}

// ReadFieldInfos loads a .fnm file.
func ReadFieldInfos(dir store.Directory, name string) (*FieldInfos, error) {
	in, err := dir.OpenFile(name)
	if err != nil {
		return nil, fmt.Errorf("opening field infos: %w", err)
	}
	defer in.Close()

	n, err := in.ReadVInt()
	if err != nil {
		return nil, fmt.Errorf("reading field count: %w", err)
	}
	fi := &FieldInfos{byName: make(map[string]*FieldInfo, n)}
	for i := 0; i < n; i++ {
		fieldName, err := in.ReadString()
		if err != nil {
			return nil, fmt.Errorf("reading field %d name: %w", i, err)
		}
		flags, err := in.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("reading field %d flags: %w", i, err)
		}
		fi.addInternal(fieldName, flags != 0)
	}
	return fi, nil
}

// AddDocument adds every field of doc.
func (fi *FieldInfos) AddDocument(doc *document.Document) error {
	for _, f := range doc.Fields() {
		if err := fi.Add(f.Name(), f.IsIndexed()); err != nil {
			return err
		}
	}
	return nil
}

// AddAll merges the fields of other into fi.
func (fi *FieldInfos) AddAll(other *FieldInfos) error {
	for _, f := range other.byNumber {
		if err := fi.Add(f.Name, f.IsIndexed); err != nil {
			return err
		}
	}
	return nil
}

// Add registers name. Adding a known name with a different indexed flag is
// an error.
func (fi *FieldInfos) Add(name string, isIndexed bool) error {
	f, ok := fi.byName[name]
	if !ok {
		fi.addInternal(name, isIndexed)
		return nil
	}
	if f.IsIndexed != isIndexed {
		return fmt.Errorf("%w: field %q is both indexed and unindexed", apperrors.ErrFieldConflict, name)
	}
	return nil
}

func (fi *FieldInfos) addInternal(name string, isIndexed bool) {
	f := &FieldInfo{Name: name, Number: len(fi.byNumber), IsIndexed: isIndexed}
	fi.byNumber = append(fi.byNumber, f)
	fi.byName[name] = f
}

// FieldNumber returns the number of name, or -1 when the field is unknown.
func (fi *FieldInfos) FieldNumber(name string) int {
	if f, ok := fi.byName[name]; ok {
		return f.Number
	}
	return -1
}

// FieldInfo returns the field named name, or nil.
func (fi *FieldInfos) FieldInfo(name string) *FieldInfo {
	return fi.byName[name]
}

// FieldName returns the name of field number n, or "" when n is out of range.
func (fi *FieldInfos) FieldName(n int) string {
	if n < 0 || n >= len(fi.byNumber) {
		return ""
	}
	return fi.byNumber[n].Name
}

// ByNumber returns field number n, or nil when n is out of range.
func (fi *FieldInfos) ByNumber(n int) *FieldInfo {
	if n < 0 || n >= len(fi.byNumber) {
		return nil
	}
	return fi.byNumber[n]
}

// Size returns the number of fields, including the reserved empty field.
func (fi *FieldInfos) Size() int {
	return len(fi.byNumber)
}

// Write stores the table as a .fnm file.
func (fi *FieldInfos) Write(dir store.Directory, name string) error {
	out, err := dir.CreateFile(name)
	if err != nil {
		return fmt.Errorf("creating field infos: %w", err)
	}
	out.WriteVInt(len(fi.byNumber))
	for _, f := range fi.byNumber {
		out.WriteString(f.Name)
		var flags byte
		if f.IsIndexed {
			flags = 1
		}
		out.WriteByte(flags)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("writing field infos: %w", err)
	}
	return nil
}
