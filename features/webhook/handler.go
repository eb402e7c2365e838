package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/config"
	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/middleware"
	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/syncer"
)

// EventPublisher hands the accepted notification off the request path. The
// webhook must acknowledge before any fetching or embedding happens.
type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Handler struct {
	secret    []byte
	freshness time.Duration
	publisher EventPublisher
	now       func() time.Time
}

func NewHandler(secret string, freshness time.Duration, publisher EventPublisher) *Handler {
	return &Handler{
		secret:    []byte(secret),
		freshness: freshness,
		publisher: publisher,
		now:       time.Now,
	}
}

type notification struct {
	Operation  string `json:"operation"`
	DocumentID string `json:"document_id"`
	Document   struct {
		ID string `json:"id"`
	} `json:"document"`
}

// Receive verifies the notification and enqueues a sync message. The body is
// read raw first because the signature covers the exact bytes on the wire.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		h.writeError(r.Context(), w, "BAD_REQUEST", "Unable to read body", http.StatusBadRequest)
		return
	}

	if !h.verify(r.Header.Get("X-Signature"), r.Header.Get("X-Timestamp"), body) {
		slog.WarnContext(r.Context(), "webhook rejected", "remote", r.RemoteAddr)
		h.writeError(r.Context(), w, "UNAUTHORIZED", "Invalid signature or stale timestamp", http.StatusUnauthorized)
		return
	}

	var n notification
	if err := json.Unmarshal(body, &n); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	documentID := n.DocumentID
	if documentID == "" {
		documentID = n.Document.ID
	}
	if documentID == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "document id is required", http.StatusBadRequest)
		return
	}

	switch syncer.Operation(n.Operation) {
	case syncer.OpCreate, syncer.OpUpdate, syncer.OpDelete:
	default:
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "unknown operation", http.StatusBadRequest)
		return
	}

	msg := syncer.Message{
		Operation:     n.Operation,
		DocumentID:    documentID,
		CorrelationID: middleware.GetCorrelationID(r.Context()),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if err := h.publisher.Publish(config.TopicContentSync, payload); err != nil {
		slog.ErrorContext(r.Context(), "failed to publish sync message", "error", err, "document_id", documentID)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	slog.InfoContext(r.Context(), "sync notification queued", "document_id", documentID, "operation", n.Operation)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "queued"}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// verify checks the HMAC-SHA256 hex signature over the raw body and that the
// declared timestamp is inside the freshness window.
func (h *Handler) verify(signature, timestamp string, body []byte) bool {
	if signature == "" || timestamp == "" {
		return false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	age := h.now().Sub(time.Unix(ts, 0))
	if age > h.freshness || age < -h.freshness {
		return false
	}

	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	want := mac.Sum(nil)

	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(got, want)
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
