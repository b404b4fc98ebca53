// Package ingestion defines the request/response types of the document
// intake API. Accepted documents are turned into indexer.IngestEvent
// messages and published to Kafka for the indexer to apply.
package ingestion

import "github.com/Adithya-Monish-Kumar-K/segment-search/internal/indexer"

// Statuses written by the intake path. The indexer later moves a pending
// document to INDEXED, DELETED or FAILED.
const (
	StatusPending = "PENDING"
	StatusFailed  = "FAILED"
)

// DocumentRequest is the JSON body accepted by the create and update
// endpoints. ID is optional on create; one is generated when absent.
type DocumentRequest struct {
	ID     string              `json:"id"`
	Title  string              `json:"title"`
	Body   string              `json:"body"`
	Fields []indexer.FieldSpec `json:"fields"`
}

// AcceptedResponse is returned once the event is on the ingest topic. The
// change becomes searchable after the indexer's next commit.
type AcceptedResponse struct {
	DocumentID string `json:"document_id"`
	Operation  string `json:"operation"`
	Status     string `json:"status"`
}
