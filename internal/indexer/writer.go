// Package indexer owns the chunk lifecycle: it is the only component that
// writes chunks to the dense store, the sparse index, and the authoritative
// chunk table.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/content"
)

// ErrConsistency means the chunker produced different output for the same
// document in back-to-back runs. That would poison replace-atomicity, so it
// is surfaced instead of indexed.
var ErrConsistency = errors.New("chunker output is not deterministic")

type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type DenseStore interface {
	UpsertChunks(ctx context.Context, chunks []content.Chunk, vectors [][]float32) error
	DeleteStale(ctx context.Context, documentID string, keepCount int) error
	DeleteDocument(ctx context.Context, documentID string) error
}

type SparseIndex interface {
	Upsert(documentID string, chunks []content.Chunk)
	Remove(documentID string)
}

type ChunkRepo interface {
	ReplaceDocument(ctx context.Context, documentID string, chunks []content.Chunk) error
	DeleteDocument(ctx context.Context, documentID string) error
}

type Writer struct {
	embedder Embedder
	dense    DenseStore
	sparse   SparseIndex
	repo     ChunkRepo
}

func NewWriter(e Embedder, d DenseStore, s SparseIndex, r ChunkRepo) *Writer {
	return &Writer{embedder: e, dense: d, sparse: s, repo: r}
}

// Write atomically replaces a document's index entries with the given chunk
// set. Writes happen before deletes: new chunks overwrite in place
// (deterministic IDs), then the straggler tail beyond the new count is
// removed. A non-published document is treated as having zero chunks.
//
// On failure partway through, the previous version's entries stay in place
// and the error is surfaced for retry.
func (w *Writer) Write(ctx context.Context, doc *content.Document, chunks []content.Chunk) error {
	// Idempotent re-sync depends on the chunker being deterministic: a
	// second run over the same document must reproduce the chunks we were
	// handed. Verified before touching any index.
	if content.Fingerprint(content.ChunkDocument(*doc)) != content.Fingerprint(chunks) {
		slog.ErrorContext(ctx, "chunker determinism check failed", "document_id", doc.ID)
		return fmt.Errorf("%w: document %s", ErrConsistency, doc.ID)
	}

	if !doc.IsPublished() {
		chunks = nil
	}
	if len(chunks) == 0 {
		return w.Purge(ctx, doc.ID)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := w.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks for %s: %w", doc.ID, err)
	}

	if err := w.dense.UpsertChunks(ctx, chunks, vectors); err != nil {
		return fmt.Errorf("dense upsert for %s: %w", doc.ID, err)
	}
	if err := w.repo.ReplaceDocument(ctx, doc.ID, chunks); err != nil {
		// The dense upsert already landed, so any entries beyond the new
		// count belong to the old version. Trim them now; if every retry of
		// this write fails, the dense store must not keep serving old and
		// new chunks at once.
		if trimErr := w.dense.DeleteStale(ctx, doc.ID, len(chunks)); trimErr != nil {
			slog.ErrorContext(ctx, "stale trim after failed chunk store replace", "error", trimErr, "document_id", doc.ID)
		}
		return fmt.Errorf("chunk store replace for %s: %w", doc.ID, err)
	}
	w.sparse.Upsert(doc.ID, chunks)

	if err := w.dense.DeleteStale(ctx, doc.ID, len(chunks)); err != nil {
		return fmt.Errorf("stale delete for %s: %w", doc.ID, err)
	}

	slog.InfoContext(ctx, "document indexed", "document_id", doc.ID, "chunks", len(chunks))
	return nil
}

// Purge removes every index entry of a document from both indexes and the
// chunk store. Used for deletes, unpublish transitions, and documents that
// chunked to nothing.
func (w *Writer) Purge(ctx context.Context, documentID string) error {
	if err := w.dense.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("dense purge for %s: %w", documentID, err)
	}
	w.sparse.Remove(documentID)
	if err := w.repo.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("chunk store purge for %s: %w", documentID, err)
	}

	slog.InfoContext(ctx, "document purged", "document_id", documentID)
	return nil
}
