package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	values map[string]string
	setErr error
}

func newFakeRepo() *fakeRepo { return &fakeRepo{values: make(map[string]string)} }

func (f *fakeRepo) Get(ctx context.Context, key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", sql.ErrNoRows
	}
	return v, nil
}

func (f *fakeRepo) Set(ctx context.Context, key, value string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.values[key] = value
	return nil
}

func TestServiceLoad(t *testing.T) {
	t.Run("Missing Rows Keep Defaults", func(t *testing.T) {
		svc := NewService(newFakeRepo(), Settings{SearchAlpha: 0.5, SearchTopK: 10})
		require.NoError(t, svc.Load(context.Background()))

		got := svc.Current()
		assert.Equal(t, 0.5, got.SearchAlpha)
		assert.Equal(t, 10, got.SearchTopK)
	})

	t.Run("Persisted Overrides Win", func(t *testing.T) {
		repo := newFakeRepo()
		repo.values["search_alpha"] = "0.7"
		repo.values["search_top_k"] = "25"

		svc := NewService(repo, Settings{SearchAlpha: 0.5, SearchTopK: 10})
		require.NoError(t, svc.Load(context.Background()))

		got := svc.Current()
		assert.Equal(t, 0.7, got.SearchAlpha)
		assert.Equal(t, 25, got.SearchTopK)
	})
}

func TestServiceUpdate(t *testing.T) {
	t.Run("Valid Update Persists And Takes Effect", func(t *testing.T) {
		repo := newFakeRepo()
		svc := NewService(repo, Settings{SearchAlpha: 0.5, SearchTopK: 10})

		require.NoError(t, svc.Update(context.Background(), Settings{SearchAlpha: 0.3, SearchTopK: 5}))

		assert.Equal(t, 0.3, svc.Current().SearchAlpha)
		assert.Equal(t, "0.3", repo.values["search_alpha"])
		assert.Equal(t, "5", repo.values["search_top_k"])
	})

	t.Run("Out Of Range Alpha Is Rejected", func(t *testing.T) {
		svc := NewService(newFakeRepo(), Settings{SearchAlpha: 0.5, SearchTopK: 10})

		err := svc.Update(context.Background(), Settings{SearchAlpha: 1.5, SearchTopK: 10})
		require.ErrorIs(t, err, ErrInvalid)
		assert.Equal(t, 0.5, svc.Current().SearchAlpha, "cached value unchanged")
	})

	t.Run("Zero TopK Is Rejected", func(t *testing.T) {
		svc := NewService(newFakeRepo(), Settings{SearchAlpha: 0.5, SearchTopK: 10})
		require.ErrorIs(t, svc.Update(context.Background(), Settings{SearchAlpha: 0.5}), ErrInvalid)
	})
}

func TestHandler(t *testing.T) {
	t.Run("Get Returns Current Settings", func(t *testing.T) {
		svc := NewService(newFakeRepo(), Settings{SearchAlpha: 0.5, SearchTopK: 10})
		h := NewHandler(svc)

		rec := httptest.NewRecorder()
		h.Get(rec, httptest.NewRequest(http.MethodGet, "/settings", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Data Settings `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 0.5, resp.Data.SearchAlpha)
	})

	t.Run("Update Rejects Invalid Alpha", func(t *testing.T) {
		svc := NewService(newFakeRepo(), Settings{SearchAlpha: 0.5, SearchTopK: 10})
		h := NewHandler(svc)

		body := `{"search_alpha": -0.1, "search_top_k": 10}`
		rec := httptest.NewRecorder()
		h.Update(rec, httptest.NewRequest(http.MethodPut, "/settings", strings.NewReader(body)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Update Applies Valid Settings", func(t *testing.T) {
		svc := NewService(newFakeRepo(), Settings{SearchAlpha: 0.5, SearchTopK: 10})
		h := NewHandler(svc)

		body := `{"search_alpha": 0.8, "search_top_k": 20}`
		rec := httptest.NewRecorder()
		h.Update(rec, httptest.NewRequest(http.MethodPut, "/settings", strings.NewReader(body)))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 0.8, svc.Current().SearchAlpha)
		assert.Equal(t, 20, svc.Current().SearchTopK)
	})
}
