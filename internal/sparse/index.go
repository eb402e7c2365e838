// Package sparse maintains the in-memory keyword index over the current set
// of published chunks. Writers (rebuild, upsert, remove) are serialized and
// publish an immutable snapshot; readers score against whatever snapshot is
// current, so a query never observes a partially built index.
package sparse

import (
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/content"
)

// BM25 constants, standard values.
const (
	k1 = 1.2
	b  = 0.75
)

type Hit struct {
	Chunk content.Chunk
	Score float64
}

type snapshot struct {
	postings map[string]map[string]int // term -> chunkID -> term frequency
	docLen   map[string]int            // chunkID -> token count
	chunks   map[string]content.Chunk  // chunkID -> chunk
	totalLen int
}

type Index struct {
	mu   sync.Mutex // single writer at a time
	docs map[string][]content.Chunk
	snap atomic.Pointer[snapshot]
}

func New() *Index {
	idx := &Index{docs: make(map[string][]content.Chunk)}
	idx.snap.Store(buildSnapshot(idx.docs))
	return idx
}

// Rebuild replaces the whole index with the given authoritative chunk sets,
// keyed by document ID. Used at startup and on demand.
func (i *Index) Rebuild(docs map[string][]content.Chunk) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.docs = make(map[string][]content.Chunk, len(docs))
	for id, chunks := range docs {
		if len(chunks) > 0 {
			i.docs[id] = chunks
		}
	}
	i.snap.Store(buildSnapshot(i.docs))
}

// Upsert replaces one document's chunk set.
func (i *Index) Upsert(documentID string, chunks []content.Chunk) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if len(chunks) == 0 {
		delete(i.docs, documentID)
	} else {
		i.docs[documentID] = chunks
	}
	i.snap.Store(buildSnapshot(i.docs))
}

// Remove drops all chunks of one document.
func (i *Index) Remove(documentID string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	delete(i.docs, documentID)
	i.snap.Store(buildSnapshot(i.docs))
}

// Size returns the number of indexed chunks.
func (i *Index) Size() int {
	return len(i.snap.Load().chunks)
}

// Search scores all indexed chunks against the query with BM25 and returns
// the top k. An empty index returns no hits, never an error.
func (i *Index) Search(query string, k int) []Hit {
	snap := i.snap.Load()
	if len(snap.chunks) == 0 || k <= 0 {
		return nil
	}

	terms := tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	n := float64(len(snap.chunks))
	avgLen := float64(snap.totalLen) / n

	scores := make(map[string]float64)
	for _, term := range terms {
		posting, ok := snap.postings[term]
		if !ok {
			continue
		}
		df := float64(len(posting))
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		for chunkID, tf := range posting {
			norm := float64(tf) * (k1 + 1) / (float64(tf) + k1*(1-b+b*float64(snap.docLen[chunkID])/avgLen))
			scores[chunkID] += idf * norm
		}
	}

	hits := make([]Hit, 0, len(scores))
	for chunkID, score := range scores {
		hits = append(hits, Hit{Chunk: snap.chunks[chunkID], Score: score})
	}

	sort.Slice(hits, func(a, c int) bool {
		if hits[a].Score != hits[c].Score {
			return hits[a].Score > hits[c].Score
		}
		return hits[a].Chunk.ID < hits[c].Chunk.ID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func buildSnapshot(docs map[string][]content.Chunk) *snapshot {
	snap := &snapshot{
		postings: make(map[string]map[string]int),
		docLen:   make(map[string]int),
		chunks:   make(map[string]content.Chunk),
	}

	for _, chunks := range docs {
		for _, chunk := range chunks {
			tokens := tokenize(chunk.Text)
			snap.chunks[chunk.ID] = chunk
			snap.docLen[chunk.ID] = len(tokens)
			snap.totalLen += len(tokens)
			for _, tok := range tokens {
				posting, ok := snap.postings[tok]
				if !ok {
					posting = make(map[string]int)
					snap.postings[tok] = posting
				}
				posting[chunk.ID]++
			}
		}
	}

	return snap
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
