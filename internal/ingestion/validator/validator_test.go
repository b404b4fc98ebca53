package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/ingestion"
)

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name      string
		req       ingestion.DocumentRequest
		requireID bool
		badFields []string
	}{
		{
			name: "title and body",
			req:  ingestion.DocumentRequest{Title: "Go", Body: "gophers"},
		},
		{
			name: "fields only",
			req: ingestion.DocumentRequest{Fields: []indexer.FieldSpec{
				{Name: "published", Value: "2024-01-01T00:00:00Z", Kind: "date"},
			}},
		},
		{
			name:      "empty",
			req:       ingestion.DocumentRequest{},
			badFields: []string{"body"},
		},
		{
			name:      "update without id",
			req:       ingestion.DocumentRequest{Body: "x"},
			requireID: true,
			badFields: []string{"id"},
		},
		{
			name:      "padded id",
			req:       ingestion.DocumentRequest{ID: " 7", Body: "x"},
			badFields: []string{"id"},
		},
		{
			name:      "long title",
			req:       ingestion.DocumentRequest{Title: strings.Repeat("t", maxTitleLength+1), Body: "x"},
			badFields: []string{"title"},
		},
		{
			name: "bad fields",
			req: ingestion.DocumentRequest{Body: "x", Fields: []indexer.FieldSpec{
				{Name: "", Value: "a"},
				{Name: "id", Value: "b"},
				{Name: "tag", Value: "c", Kind: "vector"},
			}},
			badFields: []string{"fields[0]", "fields[1]", "fields[2]"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument(&tt.req, tt.requireID)
			if len(tt.badFields) == 0 {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Len(t, verr.Fields, len(tt.badFields))
			for _, f := range tt.badFields {
				assert.Contains(t, verr.Fields, f)
			}
		})
	}
}

func TestValidationErrorIsSorted(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"title": "too long", "id": "missing"}}
	assert.Equal(t, "id: missing; title: too long", err.Error())
}
