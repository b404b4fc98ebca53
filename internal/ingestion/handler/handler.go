// Package handler serves the document intake API: create, replace and
// delete requests are validated and handed to the publisher.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/segment-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/segment-search/pkg/logger"
)

const maxRequestBytes = 2 << 20

// Submitter is satisfied by publisher.Publisher.
type Submitter interface {
	Submit(ctx context.Context, ev indexer.IngestEvent) error
}

type Handler struct {
	submitter Submitter
	logger    *slog.Logger
}

func New(s Submitter) *Handler {
	return &Handler{
		submitter: s,
		logger:    slog.Default().With("component", "ingestion-handler"),
	}
}

// Register mounts the handler's routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/documents", h.Create)
	mux.HandleFunc("PUT /api/v1/documents/{id}", h.Replace)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", h.Delete)
}

// Create accepts a new document. A missing id is generated.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	if !h.validate(w, req, false) {
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	h.submit(w, r, indexer.OpIndex, req)
}

// Replace deletes every document with the path's id and indexes the body in
// its place.
func (h *Handler) Replace(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if req.ID != "" && req.ID != id {
		h.writeError(w, http.StatusBadRequest, "body id does not match path id")
		return
	}
	req.ID = id
	if !h.validate(w, req, true) {
		return
	}
	h.submit(w, r, indexer.OpUpdate, req)
}

// Delete removes every document with the path's id.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	req := &ingestion.DocumentRequest{ID: r.PathValue("id")}
	if req.ID == "" {
		h.writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	h.submit(w, r, indexer.OpDelete, req)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (*ingestion.DocumentRequest, bool) {
	var req ingestion.DocumentRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("body exceeds %d bytes", maxRequestBytes))
			return nil, false
		}
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return nil, false
	}
	return &req, true
}

func (h *Handler) validate(w http.ResponseWriter, req *ingestion.DocumentRequest, requireID bool) bool {
	err := validator.ValidateDocument(req, requireID)
	if err == nil {
		return true
	}
	var validationErr *validator.ValidationError
	if errors.As(err, &validationErr) {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": validationErr.Fields,
		})
		return false
	}
	h.writeError(w, http.StatusBadRequest, err.Error())
	return false
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, op string, req *ingestion.DocumentRequest) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	ev := indexer.IngestEvent{
		DocumentID: req.ID,
		Op:         op,
		Title:      req.Title,
		Body:       req.Body,
		Fields:     req.Fields,
	}
	if err := h.submitter.Submit(ctx, ev); err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("ingestion failed",
			"doc_id", req.ID,
			"operation", op,
			"error", err,
			"status_code", statusCode,
		)
		h.writeError(w, statusCode, "ingestion failed")
		return
	}
	log.Info("document accepted", "doc_id", req.ID, "operation", op)
	h.writeJSON(w, http.StatusAccepted, ingestion.AcceptedResponse{
		DocumentID: req.ID,
		Operation:  op,
		Status:     ingestion.StatusPending,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
