// Package validator checks document intake requests before they are
// published. It reports every problem at once, keyed by field.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/ingestion"
)

const (
	maxIDLength    = 255
	maxTitleLength = 1024
	maxBodyLength  = 1048576
	maxFields      = 64
	maxValueLength = 32768
)

var fieldKinds = map[string]bool{
	"": true, "keyword": true, "text": true, "unstored": true, "unindexed": true, "date": true,
}

var reservedFields = map[string]bool{
	indexer.IDField:       true,
	indexer.TitleField:    true,
	indexer.ContentsField: true,
}

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// ValidateDocument checks req. requireID is set for updates, where the ID
// comes from the URL and must name an existing document.
func ValidateDocument(req *ingestion.DocumentRequest, requireID bool) error {
	errs := make(map[string]string)

	id := strings.TrimSpace(req.ID)
	switch {
	case id == "" && requireID:
		errs["id"] = "id is required"
	case len(id) > maxIDLength:
		errs["id"] = fmt.Sprintf("id must be at most %d characters", maxIDLength)
	case id != req.ID:
		errs["id"] = "id must not have leading or trailing whitespace"
	}
	if len(req.Title) > maxTitleLength {
		errs["title"] = fmt.Sprintf("title must be at most %d characters", maxTitleLength)
	}
	if len(req.Body) > maxBodyLength {
		errs["body"] = fmt.Sprintf("body must be at most %d characters", maxBodyLength)
	}
	if strings.TrimSpace(req.Title) == "" && strings.TrimSpace(req.Body) == "" && len(req.Fields) == 0 {
		errs["body"] = "a document needs a title, a body or at least one field"
	}
	if len(req.Fields) > maxFields {
		errs["fields"] = fmt.Sprintf("at most %d fields are allowed", maxFields)
	}
	for i, f := range req.Fields {
		key := fmt.Sprintf("fields[%d]", i)
		switch {
		case f.Name == "":
			errs[key] = "name is required"
		case reservedFields[f.Name]:
			errs[key] = fmt.Sprintf("%q is reserved", f.Name)
		case !fieldKinds[f.Kind]:
			errs[key] = fmt.Sprintf("unknown kind %q", f.Kind)
		case len(f.Value) > maxValueLength:
			errs[key] = fmt.Sprintf("value must be at most %d characters", maxValueLength)
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
