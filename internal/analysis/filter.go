package analysis

import (
	"github.com/kljensen/snowball/english"
)

// EnglishStopWords are dropped by StopAnalyzer and StandardAnalyzer.
var EnglishStopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

// StopFilter drops tokens found in a stop set.
type StopFilter struct {
	input TokenStream
	stop  map[string]struct{}
}

func NewStopFilter(input TokenStream, stop map[string]struct{}) *StopFilter {
	return &StopFilter{input: input, stop: stop}
}

func (f *StopFilter) Next() (Token, error) {
	for {
		tok, err := f.input.Next()
		if err != nil {
			return tok, err
		}
		if _, isStop := f.stop[tok.Text]; !isStop {
			return tok, nil
		}
	}
}

func (f *StopFilter) Close() error {
	return f.input.Close()
}

// StemFilter replaces each token with its English (Porter2) stem.
type StemFilter struct {
	input TokenStream
}

func NewStemFilter(input TokenStream) *StemFilter {
	return &StemFilter{input: input}
}

func (f *StemFilter) Next() (Token, error) {
	tok, err := f.input.Next()
	if err != nil {
		return tok, err
	}
	if stemmed := english.Stem(tok.Text, false); stemmed != "" {
		tok.Text = stemmed
	}
	return tok, nil
}

func (f *StemFilter) Close() error {
	return f.input.Close()
}
