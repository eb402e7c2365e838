package indexer

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/content"
)

func TestReplaceDocument(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresChunkRepo(db)

	chunks := []content.Chunk{
		{
			ID: "d1:0", DocumentID: "d1", Index: 0, DocTitle: "Title",
			Paragraph: "one", Text: "Document: Title\n\none",
			Status: content.StatusPublished, Categories: []string{"basics"},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM chunks WHERE document_id = \$1`).
		WithArgs("d1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`INSERT INTO chunks`).
		WithArgs("d1:0", "d1", 0, "Title", "", "", "one", "Document: Title\n\none", "published", pq.Array([]string{"basics"})).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.ReplaceDocument(context.Background(), "d1", chunks))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceDocumentRollsBackOnInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresChunkRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM chunks WHERE document_id = \$1`).
		WithArgs("d1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO chunks`).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err = repo.ReplaceDocument(context.Background(), "d1", []content.Chunk{{ID: "d1:0", DocumentID: "d1"}})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPublished(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresChunkRepo(db)

	rows := sqlmock.NewRows([]string{"id", "document_id", "chunk_index", "doc_title", "section", "subsection", "paragraph", "text", "status", "categories"}).
		AddRow("d1:0", "d1", 0, "Title", "S", "", "one", "text one", "published", "{basics}").
		AddRow("d1:1", "d1", 1, "Title", "S", "Sub", "two", "text two", "published", "{}")

	mock.ExpectQuery(`SELECT .+ FROM chunks WHERE status = 'published'`).WillReturnRows(rows)

	chunks, err := repo.ListPublished(context.Background())
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "d1:0", chunks[0].ID)
	assert.Equal(t, content.StatusPublished, chunks[0].Status)
	assert.Equal(t, []string{"basics"}, chunks[0].Categories)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteDocument(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresChunkRepo(db)

	mock.ExpectExec(`DELETE FROM chunks WHERE document_id = \$1`).
		WithArgs("d1").
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.DeleteDocument(context.Background(), "d1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
