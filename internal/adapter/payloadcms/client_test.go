package payloadcms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/content"
)

func TestGetDocument(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/documents/doc-1", r.URL.Path)
			assert.Equal(t, "users API-Key secret", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"id": "doc-1",
				"title": "What is Litecoin",
				"status": "published",
				"categories": [{"name": "basics"}],
				"body": [
					{"tag": "h1", "text": "Overview"},
					{"tag": "p", "text": "Litecoin is a cryptocurrency."}
				]
			}`))
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "secret")
		doc, err := client.GetDocument(context.Background(), "doc-1")
		require.NoError(t, err)

		assert.Equal(t, "doc-1", doc.ID)
		assert.Equal(t, content.StatusPublished, doc.Status)
		assert.Equal(t, []string{"basics"}, doc.Categories)
		require.Len(t, doc.Body, 2)
		assert.Equal(t, "h1", doc.Body[0].Tag)
	})

	t.Run("Not Found", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "")
		_, err := client.GetDocument(context.Background(), "gone")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Server Error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "")
		_, err := client.GetDocument(context.Background(), "doc-1")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
	})
}
