package deadletter

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/middleware"
	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/syncer"
)

// Sink adapts the repository to the scheduler's dead-letter callback.
type Sink struct {
	repo Repository
}

func NewSink(repo Repository) *Sink {
	return &Sink{repo: repo}
}

func (s *Sink) Save(ctx context.Context, documentID, operation, errMsg string, attempts int) error {
	return s.repo.Save(ctx, &Record{
		DocumentID: documentID,
		Operation:  operation,
		Error:      errMsg,
		Attempts:   attempts,
	})
}

type Submitter interface {
	Submit(task *syncer.Task)
}

type Handler struct {
	repo      Repository
	scheduler Submitter
}

func NewHandler(repo Repository, scheduler Submitter) *Handler {
	return &Handler{repo: repo, scheduler: scheduler}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.repo.List(r.Context())
	if err != nil {
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	if records == nil {
		records = []Record{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": records,
		"meta": map[string]int{"count": len(records)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Retry re-submits the failed task with a fresh retry budget and removes the
// record once it is back in the queue.
func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	rec, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(r.Context(), w, "NOT_FOUND", "Dead letter not found", http.StatusNotFound)
			return
		}
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	h.scheduler.Submit(&syncer.Task{
		DocumentID:    rec.DocumentID,
		Operation:     syncer.Operation(rec.Operation),
		CorrelationID: middleware.GetCorrelationID(r.Context()),
	})

	if err := h.repo.Delete(r.Context(), id); err != nil {
		slog.ErrorContext(r.Context(), "failed to delete retried dead letter", "error", err, "id", id)
	}

	slog.InfoContext(r.Context(), "dead letter requeued", "id", id, "document_id", rec.DocumentID)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "requeued"}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.repo.Delete(r.Context(), id); err != nil {
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
