package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/sparse"
)

// ErrAllLegsFailed is returned only when neither retrieval signal produced a
// result set. A single failing leg degrades to the other one.
var ErrAllLegsFailed = errors.New("retrieval failed: both sparse and dense legs unavailable")

// Result is one fused retrieval hit with enough metadata to cite the source
// document.
type Result struct {
	ChunkID    string         `json:"chunk_id"`
	DocumentID string         `json:"document_id"`
	Text       string         `json:"text"`
	Score      float64        `json:"score"`
	Source     SourceMetadata `json:"source_metadata"`
}

type SourceMetadata struct {
	DocTitle   string   `json:"doc_title"`
	Section    string   `json:"section,omitempty"`
	Subsection string   `json:"subsection,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// DenseHit is one ranked result from the external vector store.
type DenseHit struct {
	ChunkID    string
	DocumentID string
	Text       string
	Score      float64
	DocTitle   string
	Section    string
	Subsection string
	Categories []string
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type DenseStore interface {
	Query(ctx context.Context, vector []float32, k int) ([]DenseHit, error)
}

type SparseSearcher interface {
	Search(query string, k int) []sparse.Hit
}

// Options override the configured fusion defaults per request.
type Options struct {
	Alpha *float64 // dense weight
	K     *int
}

type Service struct {
	embedder   Embedder
	dense      DenseStore
	sparse     SparseSearcher
	alpha      float64
	topK       int
	legTimeout time.Duration
	logger     *QueryLogger
}

func NewService(e Embedder, d DenseStore, s SparseSearcher, alpha float64, topK int, legTimeout time.Duration, l *QueryLogger) *Service {
	return &Service{
		embedder:   e,
		dense:      d,
		sparse:     s,
		alpha:      alpha,
		topK:       topK,
		legTimeout: legTimeout,
		logger:     l,
	}
}

// Search runs the sparse and dense legs concurrently, each under its own
// timeout, and fuses their rankings. A failed or empty leg degrades the
// query to the surviving leg; only both legs failing is an error.
func (s *Service) Search(ctx context.Context, query string, opts *Options) ([]Result, error) {
	start := time.Now()

	alpha := s.alpha
	k := s.topK
	if opts != nil {
		if opts.Alpha != nil {
			alpha = *opts.Alpha
		}
		if opts.K != nil && *opts.K > 0 {
			k = *opts.K
		}
	}

	var sparseHits []sparse.Hit
	var denseHits []DenseHit
	var denseErr error

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		legCtx, cancel := context.WithTimeout(gctx, s.legTimeout)
		defer cancel()

		ch := make(chan []sparse.Hit, 1)
		go func() {
			ch <- s.sparse.Search(query, k)
		}()
		select {
		case hits := <-ch:
			sparseHits = hits
		case <-legCtx.Done():
			slog.WarnContext(ctx, "sparse leg timed out", "query_len", len(query))
		}
		return nil
	})

	g.Go(func() error {
		legCtx, cancel := context.WithTimeout(gctx, s.legTimeout)
		defer cancel()

		vec, err := s.embedder.Embed(legCtx, query)
		if err != nil {
			denseErr = err
			return nil
		}
		hits, err := s.dense.Query(legCtx, vec, k)
		if err != nil {
			denseErr = err
			return nil
		}
		denseHits = hits
		return nil
	})

	// Leg errors are captured, not returned, so both legs always run.
	_ = g.Wait()

	if denseErr != nil {
		slog.WarnContext(ctx, "dense leg failed, degrading to sparse only", "error", denseErr)
	}
	if len(sparseHits) == 0 && denseErr != nil {
		return nil, ErrAllLegsFailed
	}

	results := fuse(sparseHits, denseHits, alpha, k)

	if s.logger != nil {
		s.logger.Log(QueryLogEntry{
			Query:      query,
			NumResults: len(results),
			Duration:   time.Since(start),
		})
	}
	return results, nil
}

type fusedCandidate struct {
	result      Result
	sparseScore float64
	denseScore  float64
	denseRank   int
}

// fuse combines the two ranked lists by weighted sum of their max-normalized
// scores. alpha is the dense weight; ties break on dense rank.
func fuse(sparseHits []sparse.Hit, denseHits []DenseHit, alpha float64, k int) []Result {
	candidates := make(map[string]*fusedCandidate)

	maxSparse := 0.0
	for _, h := range sparseHits {
		if h.Score > maxSparse {
			maxSparse = h.Score
		}
	}
	maxDense := 0.0
	for _, h := range denseHits {
		if h.Score > maxDense {
			maxDense = h.Score
		}
	}

	for _, h := range sparseHits {
		norm := 0.0
		if maxSparse > 0 {
			norm = h.Score / maxSparse
		}
		candidates[h.Chunk.ID] = &fusedCandidate{
			result: Result{
				ChunkID:    h.Chunk.ID,
				DocumentID: h.Chunk.DocumentID,
				Text:       h.Chunk.Text,
				Source: SourceMetadata{
					DocTitle:   h.Chunk.DocTitle,
					Section:    h.Chunk.Section,
					Subsection: h.Chunk.Subsection,
					Categories: h.Chunk.Categories,
				},
			},
			sparseScore: norm,
			denseRank:   len(denseHits) + 1, // worse than any real dense rank
		}
	}

	for rank, h := range denseHits {
		norm := 0.0
		if maxDense > 0 {
			norm = h.Score / maxDense
		}
		c, ok := candidates[h.ChunkID]
		if !ok {
			c = &fusedCandidate{
				result: Result{
					ChunkID:    h.ChunkID,
					DocumentID: h.DocumentID,
					Text:       h.Text,
					Source: SourceMetadata{
						DocTitle:   h.DocTitle,
						Section:    h.Section,
						Subsection: h.Subsection,
						Categories: h.Categories,
					},
				},
			}
			candidates[h.ChunkID] = c
		}
		c.denseScore = norm
		c.denseRank = rank
	}

	fused := make([]*fusedCandidate, 0, len(candidates))
	for _, c := range candidates {
		c.result.Score = (1-alpha)*c.sparseScore + alpha*c.denseScore
		fused = append(fused, c)
	}

	sort.Slice(fused, func(a, b int) bool {
		if fused[a].result.Score != fused[b].result.Score {
			return fused[a].result.Score > fused[b].result.Score
		}
		if fused[a].denseRank != fused[b].denseRank {
			return fused[a].denseRank < fused[b].denseRank
		}
		return fused[a].result.ChunkID < fused[b].result.ChunkID
	})

	if len(fused) > k {
		fused = fused[:k]
	}

	results := make([]Result, len(fused))
	for i, c := range fused {
		results[i] = c.result
	}
	return results
}
