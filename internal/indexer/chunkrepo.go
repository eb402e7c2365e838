package indexer

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/content"
)

// PostgresChunkRepo is the authoritative chunk store. The sparse index is
// rebuilt from it at startup; every write goes through a transactional
// per-document replace.
type PostgresChunkRepo struct {
	db *sql.DB
}

func NewPostgresChunkRepo(db *sql.DB) *PostgresChunkRepo {
	return &PostgresChunkRepo{db: db}
}

func (r *PostgresChunkRepo) ReplaceDocument(ctx context.Context, documentID string, chunks []content.Chunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}

	insert := `INSERT INTO chunks (id, document_id, chunk_index, doc_title, section, subsection, paragraph, text, status, categories)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	for _, c := range chunks {
		if _, err := tx.ExecContext(ctx, insert,
			c.ID, c.DocumentID, c.Index, c.DocTitle, c.Section, c.Subsection,
			c.Paragraph, c.Text, string(c.Status), pq.Array(c.Categories)); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

func (r *PostgresChunkRepo) DeleteDocument(ctx context.Context, documentID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	return err
}

// ListPublished returns all published chunks, ordered for deterministic
// rebuilds.
func (r *PostgresChunkRepo) ListPublished(ctx context.Context) ([]content.Chunk, error) {
	query := `SELECT id, document_id, chunk_index, doc_title, section, subsection, paragraph, text, status, categories
		FROM chunks WHERE status = 'published' ORDER BY document_id, chunk_index`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []content.Chunk
	for rows.Next() {
		var c content.Chunk
		var status string
		var categories pq.StringArray
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.DocTitle, &c.Section,
			&c.Subsection, &c.Paragraph, &c.Text, &status, &categories); err != nil {
			return nil, err
		}
		c.Status = content.Status(status)
		c.Categories = categories
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (r *PostgresChunkRepo) CountChunks(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

func (r *PostgresChunkRepo) CountDocuments(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT document_id) FROM chunks`).Scan(&count)
	return count, err
}
