package document

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldConstructors(t *testing.T) {
	tests := []struct {
		field                      *Field
		stored, indexed, tokenized bool
		str                        string
	}{
		{Keyword("id", "42"), true, true, false, "Keyword<id:42>"},
		{UnIndexed("path", "/a"), true, false, false, "Unindexed<path:/a>"},
		{Text("title", "hello world"), true, true, true, "Text<title:hello world>"},
		{UnStored("body", "text"), false, true, true, "UnStored<body:text>"},
		{TextReader("body", strings.NewReader("x")), false, true, true, "Text<body:reader>"},
	}
	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			assert.Equal(t, tt.stored, tt.field.IsStored())
			assert.Equal(t, tt.indexed, tt.field.IsIndexed())
			assert.Equal(t, tt.tokenized, tt.field.IsTokenized())
			assert.Equal(t, tt.str, tt.field.String())
		})
	}
}

func TestDocumentLastAddedWins(t *testing.T) {
	doc := New(Text("tag", "first"))
	doc.Add(Keyword("id", "1"))
	doc.Add(Text("tag", "second"))

	assert.Equal(t, "second", doc.Get("tag"))
	assert.Equal(t, []string{"first", "second"}, doc.GetValues("tag"))
	assert.Equal(t, "", doc.Get("missing"))
	assert.Nil(t, doc.GetField("missing"))
	assert.Len(t, doc.Fields(), 3)
	assert.Equal(t, "Document<Text<tag:first> Keyword<id:1> Text<tag:second>>", doc.String())
}

func TestDateFieldOrdering(t *testing.T) {
	early := time.Date(1999, 12, 31, 0, 0, 0, 0, time.UTC)
	late := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a, err := DateToString(early)
	require.NoError(t, err)
	b, err := DateToString(late)
	require.NoError(t, err)

	assert.Len(t, a, dateLen)
	assert.Less(t, a, b)
	assert.Less(t, MinDateString(), a)
	assert.Less(t, b, MaxDateString())

	back, err := StringToDate(b)
	require.NoError(t, err)
	assert.True(t, late.Equal(back))
}

func TestDateFieldRejectsOutOfRange(t *testing.T) {
	_, err := TimeToString(-1)
	assert.Error(t, err)
	_, err = TimeToString(1 << 62)
	assert.Error(t, err)
	_, err = StringToTime("!!")
	assert.Error(t, err)
}

func TestFieldHasValue(t *testing.T) {
	assert.True(t, UnStored("body", "").HasValue())
	assert.True(t, TextReader("body", strings.NewReader("")).HasValue())
	assert.False(t, TextReader("body", nil).HasValue())
}
