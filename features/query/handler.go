package query

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/features/settings"
	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/middleware"
	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/retrieval"
	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/rewrite"
)

type Rewriter interface {
	Rewrite(ctx context.Context, query string, history []rewrite.Turn) string
}

type Searcher interface {
	Search(ctx context.Context, query string, opts *retrieval.Options) ([]retrieval.Result, error)
}

type Tuning interface {
	Current() settings.Settings
}

type Handler struct {
	rewriter Rewriter
	searcher Searcher
	tuning   Tuning
}

func NewHandler(rw Rewriter, s Searcher, tuning Tuning) *Handler {
	return &Handler{rewriter: rw, searcher: s, tuning: tuning}
}

type queryRequest struct {
	Query   string         `json:"query"`
	History []rewrite.Turn `json:"history"`
	K       int            `json:"k"`
}

type queryResponse struct {
	Query   string             `json:"query"`
	Results []retrieval.Result `json:"results"`
}

// Search rewrites the query against the supplied history, then runs hybrid
// retrieval with the current fusion settings.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "query is required", http.StatusBadRequest)
		return
	}

	standalone := h.rewriter.Rewrite(r.Context(), req.Query, req.History)

	tuned := h.tuning.Current()
	opts := &retrieval.Options{Alpha: &tuned.SearchAlpha, K: &tuned.SearchTopK}
	if req.K > 0 {
		opts.K = &req.K
	}

	results, err := h.searcher.Search(r.Context(), standalone, opts)
	if err != nil {
		if errors.Is(err, retrieval.ErrAllLegsFailed) {
			h.writeError(r.Context(), w, "RETRIEVAL_UNAVAILABLE", "Retrieval is temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
		slog.ErrorContext(r.Context(), "search failed", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if results == nil {
		results = []retrieval.Result{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": queryResponse{Query: standalone, Results: results},
		"meta": map[string]int{"count": len(results)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
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
