package analysis

import (
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// LowerCaseTokenizer emits maximal runs of letters and digits, lowercased,
// after NFKC-folding the input.
type LowerCaseTokenizer struct {
	src  io.Reader
	text string
	pos  int
	read bool
}

func NewLowerCaseTokenizer(r io.Reader) *LowerCaseTokenizer {
	return &LowerCaseTokenizer{src: r}
}

func (t *LowerCaseTokenizer) Next() (Token, error) {
	if !t.read {
		data, err := io.ReadAll(t.src)
		if err != nil {
			return Token{}, fmt.Errorf("reading field text: %w", err)
		}
		t.text = norm.NFKC.String(string(data))
		t.read = true
	}
	for t.pos < len(t.text) {
		r, size := utf8.DecodeRuneInString(t.text[t.pos:])
		if isTokenChar(r) {
			break
		}
		t.pos += size
	}
	if t.pos >= len(t.text) {
		return Token{}, io.EOF
	}
	start := t.pos
	for t.pos < len(t.text) {
		r, size := utf8.DecodeRuneInString(t.text[t.pos:])
		if !isTokenChar(r) {
			break
		}
		t.pos += size
	}
	return Token{
		Text:  strings.ToLower(t.text[start:t.pos]),
		Start: start,
		End:   t.pos,
		Type:  "word",
	}, nil
}

func (t *LowerCaseTokenizer) Close() error {
	if c, ok := t.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func isTokenChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
