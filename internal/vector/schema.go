package vector

import (
	"context"

	"github.com/weaviate/weaviate/entities/models"
)

const ClassName = "KnowledgeChunk"

// SchemaClient defines the interface for Weaviate schema operations
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
}

// EnsureSchema checks if the KnowledgeChunk class exists and creates it if
// not. Vectors come from the embedder, so the class uses no vectorizer.
func EnsureSchema(ctx context.Context, client SchemaClient) error {
	exists, err := client.ClassExists(ctx, ClassName)
	if err != nil {
		return err
	}

	properties := []*models.Property{
		{
			Name:     "content",
			DataType: []string{"text"},
		},
		{
			Name:     "chunkId",
			DataType: []string{"string"}, // deterministic id (exact match)
		},
		{
			Name:     "documentId",
			DataType: []string{"string"},
		},
		{
			Name:     "chunkIndex",
			DataType: []string{"int"},
		},
		{
			Name:     "docTitle",
			DataType: []string{"text"},
		},
		{
			Name:     "section",
			DataType: []string{"text"},
		},
		{
			Name:     "subsection",
			DataType: []string{"text"},
		},
		{
			Name:     "categories",
			DataType: []string{"string[]"},
		},
	}

	if !exists {
		class := &models.Class{
			Class:       ClassName,
			Description: "A context-prefixed paragraph chunk of a knowledge base document",
			Vectorizer:  "none",
			Properties:  properties,
		}
		return client.CreateClass(ctx, class)
	}

	// Class exists, check for missing properties
	class, err := client.GetClass(ctx, ClassName)
	if err != nil {
		return err
	}

	existingProps := make(map[string]bool)
	for _, p := range class.Properties {
		existingProps[p.Name] = true
	}

	for _, p := range properties {
		if !existingProps[p.Name] {
			if err := client.AddProperty(ctx, ClassName, p); err != nil {
				return err
			}
		}
	}

	return nil
}
