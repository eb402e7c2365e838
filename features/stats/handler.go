package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/middleware"
)

type ChunkStore interface {
	CountDocuments(ctx context.Context) (int, error)
	CountChunks(ctx context.Context) (int, error)
}

type DeadLetters interface {
	Count(ctx context.Context) (int, error)
}

type SparseIndex interface {
	Size() int
}

type Handler struct {
	chunks      ChunkStore
	deadLetters DeadLetters
	sparse      SparseIndex
}

func NewHandler(c ChunkStore, d DeadLetters, s SparseIndex) *Handler {
	return &Handler{chunks: c, deadLetters: d, sparse: s}
}

type StatsResponse struct {
	Documents    int `json:"documents"`
	Chunks       int `json:"chunks"`
	SparseChunks int `json:"sparse_chunks"`
	DeadLetters  int `json:"dead_letters"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	docCount, err := h.chunks.CountDocuments(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count documents", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count documents", http.StatusInternalServerError)
		return
	}

	chunkCount, err := h.chunks.CountChunks(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count chunks", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count chunks", http.StatusInternalServerError)
		return
	}

	dlCount, err := h.deadLetters.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count dead letters", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count dead letters", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{
		Documents:    docCount,
		Chunks:       chunkCount,
		SparseChunks: h.sparse.Size(),
		DeadLetters:  dlCount,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
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
