// Package index implements the on-disk segment format: writing single
// document segments, merging segments, and reading terms, postings, stored
// fields, norms and deletions back from one or many segments.
package index

import (
	"strings"
	"unicode/utf16"
)

// Term is the unit of search: a word of text qualified by the field it
// occurred in. Terms order by field, then by text.
type Term struct {
	Field string
	Text  string
}

// NewTerm returns a term for text in field.
func NewTerm(field, text string) Term {
	return Term{Field: field, Text: text}
}

// Compare returns -1, 0 or 1 as t sorts before, equal to or after other.
func (t Term) Compare(other Term) int {
	if c := strings.Compare(t.Field, other.Field); c != 0 {
		return c
	}
	return strings.Compare(t.Text, other.Text)
}

// Less reports whether t sorts before other.
func (t Term) Less(other Term) bool {
	return t.Compare(other) < 0
}

func (t Term) String() string {
	return t.Field + ":" + t.Text
}

// TermInfo locates a term's postings: the number of documents containing it
// and the offsets of its entries in the .frq and .prx files.
type TermInfo struct {
	DocFreq     int
	FreqPointer int64
	ProxPointer int64
}

// sharedPrefix returns the number of leading UTF-16 code units a and b have
// in common.
func sharedPrefix(a, b []uint16) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

func encodeText(s string) []uint16 {
	return utf16.Encode([]rune(s))
}
