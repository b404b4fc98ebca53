// Package analysis turns field text into the stream of terms the index
// writer inverts. A Tokenizer splits text into tokens and TokenFilters
// rewrite or drop them; an Analyzer chains the two for a given field.
package analysis

import (
	"errors"
	"fmt"
	"io"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/segment-search/pkg/errors"
)

// Token is one term occurrence with its byte offsets in the normalized text.
type Token struct {
	Text  string
	Start int
	End   int
	Type  string
}

// TokenStream yields tokens in position order. Next returns io.EOF after the
// last token.
type TokenStream interface {
	Next() (Token, error)
	Close() error
}

// Analyzer builds the token stream for one field value.
type Analyzer interface {
	TokenStream(field string, r io.Reader) TokenStream
}

// AnalyzerFunc adapts a function to the Analyzer interface.
type AnalyzerFunc func(field string, r io.Reader) TokenStream

func (f AnalyzerFunc) TokenStream(field string, r io.Reader) TokenStream {
	return f(field, r)
}

// SimpleAnalyzer lowercases and splits on anything that is not a letter or
// digit.
func SimpleAnalyzer() Analyzer {
	return AnalyzerFunc(func(_ string, r io.Reader) TokenStream {
		return NewLowerCaseTokenizer(r)
	})
}

// StopAnalyzer is SimpleAnalyzer followed by English stop-word removal.
func StopAnalyzer() Analyzer {
	return AnalyzerFunc(func(_ string, r io.Reader) TokenStream {
		return NewStopFilter(NewLowerCaseTokenizer(r), EnglishStopWords)
	})
}

// StandardAnalyzer is StopAnalyzer followed by English stemming.
func StandardAnalyzer() Analyzer {
	return AnalyzerFunc(func(_ string, r io.Reader) TokenStream {
		return NewStemFilter(NewStopFilter(NewLowerCaseTokenizer(r), EnglishStopWords))
	})
}

// ByName returns the analyzer registered under name: "simple", "stop" or
// "standard".
func ByName(name string) (Analyzer, error) {
	switch name {
	case "simple":
		return SimpleAnalyzer(), nil
	case "stop":
		return StopAnalyzer(), nil
	case "standard", "":
		return StandardAnalyzer(), nil
	default:
		return nil, fmt.Errorf("%w: unknown analyzer %q", apperrors.ErrInvalidInput, name)
	}
}

// Terms runs text through a and returns the token texts.
func Terms(a Analyzer, field, text string) ([]string, error) {
	ts := a.TokenStream(field, strings.NewReader(text))
	defer ts.Close()
	var terms []string
	for {
		tok, err := ts.Next()
		if errors.Is(err, io.EOF) {
			return terms, nil
		}
		if err != nil {
			return nil, fmt.Errorf("analyzing field %s: %w", field, err)
		}
		terms = append(terms, tok.Text)
	}
}
