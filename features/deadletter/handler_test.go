package deadletter

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/syncer"
)

type fakeRepo struct {
	records map[string]*Record
	deleted []string
}

func newFakeRepo() *fakeRepo { return &fakeRepo{records: make(map[string]*Record)} }

func (f *fakeRepo) Save(ctx context.Context, rec *Record) error {
	f.records[rec.ID] = rec
	return nil
}

func (f *fakeRepo) List(ctx context.Context) ([]Record, error) {
	var out []Record
	for _, rec := range f.records {
		out = append(out, *rec)
	}
	return out, nil
}

func (f *fakeRepo) Get(ctx context.Context, id string) (*Record, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rec, nil
}

func (f *fakeRepo) Delete(ctx context.Context, id string) error {
	delete(f.records, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeRepo) Count(ctx context.Context) (int, error) { return len(f.records), nil }

type fakeSubmitter struct {
	tasks []*syncer.Task
}

func (f *fakeSubmitter) Submit(task *syncer.Task) { f.tasks = append(f.tasks, task) }

func retryRequest(id string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/dead-letters/"+id+"/retry", nil)
	req.SetPathValue("id", id)
	return req
}

func TestRetry(t *testing.T) {
	t.Run("Requeues And Removes The Record", func(t *testing.T) {
		repo := newFakeRepo()
		repo.records["dl-1"] = &Record{ID: "dl-1", DocumentID: "doc-1", Operation: "update", Attempts: 6}
		sched := &fakeSubmitter{}
		h := NewHandler(repo, sched)

		rec := httptest.NewRecorder()
		h.Retry(rec, retryRequest("dl-1"))

		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, sched.tasks, 1)
		assert.Equal(t, "doc-1", sched.tasks[0].DocumentID)
		assert.Equal(t, syncer.OpUpdate, sched.tasks[0].Operation)
		assert.Equal(t, 0, sched.tasks[0].Attempts, "retry starts with a fresh budget")
		assert.Contains(t, repo.deleted, "dl-1")
	})

	t.Run("Unknown Record Is Not Found", func(t *testing.T) {
		h := NewHandler(newFakeRepo(), &fakeSubmitter{})

		rec := httptest.NewRecorder()
		h.Retry(rec, retryRequest("missing"))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestList(t *testing.T) {
	t.Run("Empty Repository Returns Empty List", func(t *testing.T) {
		h := NewHandler(newFakeRepo(), &fakeSubmitter{})

		rec := httptest.NewRecorder()
		h.List(rec, httptest.NewRequest(http.MethodGet, "/dead-letters", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"data":[]`)
	})
}

func TestSink(t *testing.T) {
	repo := newFakeRepo()
	sink := NewSink(repo)

	require.NoError(t, sink.Save(context.Background(), "doc-1", "update", "cms is down", 6))

	require.Len(t, repo.records, 1)
	for _, rec := range repo.records {
		assert.Equal(t, "doc-1", rec.DocumentID)
		assert.Equal(t, "cms is down", rec.Error)
		assert.Equal(t, 6, rec.Attempts)
	}
}
