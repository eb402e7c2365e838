package weaviate

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/content"
	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/retrieval"
	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/vector"
)

type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

// objectID derives the Weaviate object UUID from the deterministic chunk ID,
// so re-upserting the same chunk replaces the stored object in place.
func objectID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("knowledge-chunk:"+chunkID)).String()
}

// UpsertChunks writes all chunks of one document in a single batch. Existing
// objects with the same derived UUID are overwritten.
func (s *Store) UpsertChunks(ctx context.Context, chunks []content.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	objects := make([]*models.Object, len(chunks))
	for i, chunk := range chunks {
		objects[i] = &models.Object{
			ID:    strfmt.UUID(objectID(chunk.ID)),
			Class: vector.ClassName,
			Properties: map[string]interface{}{
				"content":    chunk.Text,
				"chunkId":    chunk.ID,
				"documentId": chunk.DocumentID,
				"chunkIndex": chunk.Index,
				"docTitle":   chunk.DocTitle,
				"section":    chunk.Section,
				"subsection": chunk.Subsection,
				"categories": chunk.Categories,
			},
			Vector: vectors[i],
		}
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("batch upsert: %w", err)
	}
	for _, obj := range resp {
		if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch upsert: %s", obj.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

// DeleteStale removes a document's chunks at or beyond keepCount, i.e. the
// straggler tail left behind when a document shrank.
func (s *Store) DeleteStale(ctx context.Context, documentID string, keepCount int) error {
	where := filters.Where().
		WithOperator(filters.And).
		WithOperands([]*filters.WhereBuilder{
			filters.Where().
				WithPath([]string{"documentId"}).
				WithOperator(filters.Equal).
				WithValueString(documentID),
			filters.Where().
				WithPath([]string{"chunkIndex"}).
				WithOperator(filters.GreaterThanEqual).
				WithValueInt(int64(keepCount)),
		})

	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(vector.ClassName).
		WithOutput("minimal").
		WithWhere(where).
		Do(ctx)
	return err
}

// DeleteDocument removes every chunk of a document.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(vector.ClassName).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"documentId"}).
			WithOperator(filters.Equal).
			WithValueString(documentID)).
		Do(ctx)
	return err
}

// Query runs a nearVector search and returns the top k chunks with their
// certainty as score (already in [0,1]).
func (s *Store) Query(ctx context.Context, queryVector []float32, k int) ([]retrieval.DenseHit, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(queryVector)

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "chunkId"},
		{Name: "documentId"},
		{Name: "docTitle"},
		{Name: "section"},
		{Name: "subsection"},
		{Name: "categories"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithNearVector(nearVector).
		WithLimit(k).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	var hits []retrieval.DenseHit
	data, ok := res.Data["Get"].(map[string]interface{})
	if !ok {
		return hits, nil
	}
	rawChunks, ok := data[vector.ClassName].([]interface{})
	if !ok {
		return hits, nil
	}

	for _, c := range rawChunks {
		props, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		hit := retrieval.DenseHit{}
		if v, ok := props["content"].(string); ok {
			hit.Text = v
		}
		if v, ok := props["chunkId"].(string); ok {
			hit.ChunkID = v
		}
		if v, ok := props["documentId"].(string); ok {
			hit.DocumentID = v
		}
		if v, ok := props["docTitle"].(string); ok {
			hit.DocTitle = v
		}
		if v, ok := props["section"].(string); ok {
			hit.Section = v
		}
		if v, ok := props["subsection"].(string); ok {
			hit.Subsection = v
		}
		if cats, ok := props["categories"].([]interface{}); ok {
			for _, cat := range cats {
				if sv, ok := cat.(string); ok {
					hit.Categories = append(hit.Categories, sv)
				}
			}
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			switch v := additional["certainty"].(type) {
			case float64:
				hit.Score = v
			case string:
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					hit.Score = f
				}
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// CountChunks returns the number of stored chunk objects.
func (s *Store) CountChunks(ctx context.Context) (int, error) {
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(vector.ClassName).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors)
	}

	if agg, ok := res.Data["Aggregate"].(map[string]interface{}); ok {
		if classes, ok := agg[vector.ClassName].([]interface{}); ok && len(classes) > 0 {
			if entry, ok := classes[0].(map[string]interface{}); ok {
				if meta, ok := entry["meta"].(map[string]interface{}); ok {
					if count, ok := meta["count"].(float64); ok {
						return int(count), nil
					}
				}
			}
		}
	}
	return 0, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	return vector.EnsureSchema(ctx, vector.NewWeaviateClientAdapter(s.client))
}
