package sparse

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/content"
)

func chunk(docID string, idx int, text string) content.Chunk {
	return content.Chunk{
		ID:         content.ChunkID(docID, idx),
		DocumentID: docID,
		Index:      idx,
		Text:       text,
		Status:     content.StatusPublished,
	}
}

func TestIndexSearch(t *testing.T) {
	t.Run("Empty Index Returns No Hits", func(t *testing.T) {
		idx := New()
		assert.Empty(t, idx.Search("litecoin", 5))
		assert.Zero(t, idx.Size())
	})

	t.Run("Ranks Matching Chunk First", func(t *testing.T) {
		idx := New()
		idx.Upsert("d1", []content.Chunk{
			chunk("d1", 0, "Litecoin uses the scrypt hashing algorithm for mining."),
			chunk("d1", 1, "The weather today is sunny with some clouds."),
		})
		idx.Upsert("d2", []content.Chunk{
			chunk("d2", 0, "Bitcoin mining uses SHA-256 hashing."),
		})

		hits := idx.Search("scrypt mining", 10)
		require.NotEmpty(t, hits)
		assert.Equal(t, "d1:0", hits[0].Chunk.ID)
		for i := 1; i < len(hits); i++ {
			assert.LessOrEqual(t, hits[i].Score, hits[0].Score)
		}
	})

	t.Run("Top K Limit", func(t *testing.T) {
		idx := New()
		var chunks []content.Chunk
		for i := 0; i < 20; i++ {
			chunks = append(chunks, chunk("d1", i, fmt.Sprintf("litecoin fact number %d", i)))
		}
		idx.Upsert("d1", chunks)

		assert.Len(t, idx.Search("litecoin", 5), 5)
	})

	t.Run("Unknown Terms Yield Nothing", func(t *testing.T) {
		idx := New()
		idx.Upsert("d1", []content.Chunk{chunk("d1", 0, "litecoin basics")})
		assert.Empty(t, idx.Search("zebra", 5))
	})
}

func TestIndexLifecycle(t *testing.T) {
	t.Run("Upsert Replaces Previous Chunk Set", func(t *testing.T) {
		idx := New()
		idx.Upsert("d1", []content.Chunk{
			chunk("d1", 0, "first version alpha"),
			chunk("d1", 1, "first version beta"),
			chunk("d1", 2, "first version gamma"),
		})
		require.Equal(t, 3, idx.Size())

		idx.Upsert("d1", []content.Chunk{
			chunk("d1", 0, "second version alpha"),
			chunk("d1", 1, "second version beta"),
		})
		assert.Equal(t, 2, idx.Size())
		assert.Empty(t, idx.Search("gamma", 5), "stale chunk must be gone")
	})

	t.Run("Remove Leaves Other Documents Untouched", func(t *testing.T) {
		idx := New()
		idx.Upsert("d1", []content.Chunk{chunk("d1", 0, "litecoin halving schedule")})
		idx.Upsert("d2", []content.Chunk{chunk("d2", 0, "litecoin wallet security")})

		idx.Remove("d1")
		assert.Equal(t, 1, idx.Size())

		hits := idx.Search("litecoin", 5)
		require.Len(t, hits, 1)
		assert.Equal(t, "d2:0", hits[0].Chunk.ID)
	})

	t.Run("Upsert With Empty Set Removes Document", func(t *testing.T) {
		idx := New()
		idx.Upsert("d1", []content.Chunk{chunk("d1", 0, "draft content")})
		idx.Upsert("d1", nil)
		assert.Zero(t, idx.Size())
	})

	t.Run("Rebuild Replaces Everything", func(t *testing.T) {
		idx := New()
		idx.Upsert("old", []content.Chunk{chunk("old", 0, "obsolete text")})

		idx.Rebuild(map[string][]content.Chunk{
			"d1": {chunk("d1", 0, "fresh content one")},
			"d2": {chunk("d2", 0, "fresh content two")},
		})

		assert.Equal(t, 2, idx.Size())
		assert.Empty(t, idx.Search("obsolete", 5))
		assert.Len(t, idx.Search("fresh", 5), 2)
	})
}

func TestIndexConcurrentReaders(t *testing.T) {
	idx := New()
	idx.Upsert("d1", []content.Chunk{chunk("d1", 0, "litecoin scrypt mining")})

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				idx.Upsert(fmt.Sprintf("w%d", n), []content.Chunk{
					chunk(fmt.Sprintf("w%d", n), 0, "concurrent litecoin update"),
				})
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				// Readers must always see a complete snapshot.
				for _, hit := range idx.Search("litecoin", 10) {
					assert.NotEmpty(t, hit.Chunk.ID)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, idx.Size())
}
