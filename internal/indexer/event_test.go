package indexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/document"
	apperrors "github.com/Adithya-Monish-Kumar-K/segment-search/pkg/errors"
)

func TestBuildDocument(t *testing.T) {
	doc, err := BuildDocument(IngestEvent{
		DocumentID: "doc-1",
		Op:         OpIndex,
		Title:      "Go Search",
		Body:       "an inverted index in go",
		Fields: []FieldSpec{
			{Name: "lang", Value: "en", Kind: "keyword"},
			{Name: "url", Value: "http://x", Kind: "unindexed"},
			{Name: "summary", Value: "short", Kind: "unstored"},
			{Name: "published", Value: "2024-01-01T00:00:00Z", Kind: "date"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "doc-1", doc.Get(IDField))
	assert.Equal(t, "Go Search", doc.Get(TitleField))
	assert.Equal(t, "an inverted index in go", doc.Get(ContentsField))

	id := doc.GetField(IDField)
	assert.True(t, id.IsIndexed())
	assert.False(t, id.IsTokenized())

	assert.False(t, doc.GetField("url").IsIndexed())
	assert.False(t, doc.GetField("summary").IsStored())

	published, err := document.StringToDate(doc.Get("published"))
	require.NoError(t, err)
	assert.Equal(t, 2024, published.Year())
}

func TestBuildDocumentErrors(t *testing.T) {
	tests := []struct {
		name string
		ev   IngestEvent
	}{
		{"missing id", IngestEvent{Body: "x"}},
		{"id override", IngestEvent{DocumentID: "1", Fields: []FieldSpec{{Name: IDField, Value: "2"}}}},
		{"empty name", IngestEvent{DocumentID: "1", Fields: []FieldSpec{{Value: "2"}}}},
		{"bad kind", IngestEvent{DocumentID: "1", Fields: []FieldSpec{{Name: "a", Kind: "blob"}}}},
		{"bad date", IngestEvent{DocumentID: "1", Fields: []FieldSpec{{Name: "a", Value: "yesterday", Kind: "date"}}}},
		{"date before epoch", IngestEvent{DocumentID: "1", Fields: []FieldSpec{{Name: "a", Value: "1960-01-01T00:00:00Z", Kind: "date"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildDocument(tt.ev)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}
}
