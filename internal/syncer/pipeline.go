package syncer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/adapter/payloadcms"
	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/content"
)

type Fetcher interface {
	GetDocument(ctx context.Context, documentID string) (*content.Document, error)
}

type IndexWriter interface {
	Write(ctx context.Context, doc *content.Document, chunks []content.Chunk) error
	Purge(ctx context.Context, documentID string) error
}

// Pipeline executes one sync task: fetch the document's current state from
// the CMS and replace its index entries.
type Pipeline struct {
	fetcher Fetcher
	writer  IndexWriter
}

func NewPipeline(f Fetcher, w IndexWriter) *Pipeline {
	return &Pipeline{fetcher: f, writer: w}
}

func (p *Pipeline) Process(ctx context.Context, task *Task) error {
	if task.Operation == OpDelete {
		task.State = StateWriting
		return p.writer.Purge(ctx, task.DocumentID)
	}

	task.State = StateFetching
	doc, err := p.fetcher.GetDocument(ctx, task.DocumentID)
	if errors.Is(err, payloadcms.ErrNotFound) {
		// Document disappeared between the notification and the fetch.
		// Treat as an implicit delete, not a failure.
		slog.InfoContext(ctx, "document gone at source, purging", "document_id", task.DocumentID)
		task.State = StateWriting
		return p.writer.Purge(ctx, task.DocumentID)
	}
	if err != nil {
		return err
	}

	task.State = StateChunking
	chunks := content.ChunkDocument(*doc)

	task.State = StateWriting
	return p.writer.Write(ctx, doc, chunks)
}
