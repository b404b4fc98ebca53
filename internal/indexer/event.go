package indexer

import (
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/document"
	apperrors "github.com/Adithya-Monish-Kumar-K/segment-search/pkg/errors"
)

// Field names every ingested document gets.
const (
	IDField       = "id"
	TitleField    = "title"
	ContentsField = "contents"
)

// Ingest operations.
const (
	OpIndex  = "index"
	OpUpdate = "update"
	OpDelete = "delete"
)

// IngestEvent is the Kafka message payload asking the indexer to add, replace
// or remove a document.
type IngestEvent struct {
	DocumentID string      `json:"document_id"`
	Op         string      `json:"op"`
	Title      string      `json:"title,omitempty"`
	Body       string      `json:"body,omitempty"`
	Fields     []FieldSpec `json:"fields,omitempty"`
	IngestedAt time.Time   `json:"ingested_at"`
}

// FieldSpec is an extra field of an ingested document. Kind is one of
// keyword, text, unstored, unindexed or date; date values are RFC 3339 and
// are indexed as sortable keywords.
type FieldSpec struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Kind  string `json:"kind"`
}

// CommitEvent is published after the engine makes changes visible to
// searchers.
type CommitEvent struct {
	Operation   string    `json:"operation"`
	Segments    int       `json:"segments"`
	MaxDoc      int       `json:"max_doc"`
	CommittedAt time.Time `json:"committed_at"`
}

// BuildDocument converts an event into the document to index.
func BuildDocument(ev IngestEvent) (*document.Document, error) {
	if ev.DocumentID == "" {
		return nil, fmt.Errorf("%w: document_id is required", apperrors.ErrInvalidInput)
	}
	doc := document.New(document.Keyword(IDField, ev.DocumentID))
	if ev.Title != "" {
		doc.Add(document.Text(TitleField, ev.Title))
	}
	if ev.Body != "" {
		doc.Add(document.Text(ContentsField, ev.Body))
	}
	for _, f := range ev.Fields {
		field, err := buildField(f)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", ev.DocumentID, err)
		}
		doc.Add(field)
	}
	return doc, nil
}

func buildField(f FieldSpec) (*document.Field, error) {
	if f.Name == "" || f.Name == IDField {
		return nil, fmt.Errorf("%w: invalid field name %q", apperrors.ErrInvalidInput, f.Name)
	}
	switch f.Kind {
	case "keyword":
		return document.Keyword(f.Name, f.Value), nil
	case "text", "":
		return document.Text(f.Name, f.Value), nil
	case "unstored":
		return document.UnStored(f.Name, f.Value), nil
	case "unindexed":
		return document.UnIndexed(f.Name, f.Value), nil
	case "date":
		t, err := time.Parse(time.RFC3339, f.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: field %s: %v", apperrors.ErrInvalidInput, f.Name, err)
		}
		s, err := document.DateToString(t)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		return document.Keyword(f.Name, s), nil
	default:
		return nil, fmt.Errorf("%w: field %s has unknown kind %q", apperrors.ErrInvalidInput, f.Name, f.Kind)
	}
}
