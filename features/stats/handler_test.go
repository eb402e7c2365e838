package stats

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChunkStore struct {
	documents int
	chunks    int
	err       error
}

func (f *fakeChunkStore) CountDocuments(ctx context.Context) (int, error) {
	return f.documents, f.err
}

func (f *fakeChunkStore) CountChunks(ctx context.Context) (int, error) {
	return f.chunks, f.err
}

type fakeDeadLetters struct {
	count int
	err   error
}

func (f *fakeDeadLetters) Count(ctx context.Context) (int, error) { return f.count, f.err }

type fakeSparse struct {
	size int
}

func (f *fakeSparse) Size() int { return f.size }

func TestGetStats(t *testing.T) {
	t.Run("Returns All Counters", func(t *testing.T) {
		h := NewHandler(
			&fakeChunkStore{documents: 4, chunks: 37},
			&fakeDeadLetters{count: 2},
			&fakeSparse{size: 37},
		)

		rec := httptest.NewRecorder()
		h.GetStats(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Data StatsResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 4, resp.Data.Documents)
		assert.Equal(t, 37, resp.Data.Chunks)
		assert.Equal(t, 37, resp.Data.SparseChunks)
		assert.Equal(t, 2, resp.Data.DeadLetters)
	})

	t.Run("Store Failure Is An Internal Error", func(t *testing.T) {
		h := NewHandler(
			&fakeChunkStore{err: errors.New("db down")},
			&fakeDeadLetters{},
			&fakeSparse{},
		)

		rec := httptest.NewRecorder()
		h.GetStats(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
	})
}
