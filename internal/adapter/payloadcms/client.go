package payloadcms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/content"
)

// ErrNotFound signals the document no longer exists at the source. Callers
// treat this as an implicit delete, not a failure.
var ErrNotFound = errors.New("document not found")

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// documentDTO mirrors the CMS read API response.
type documentDTO struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	Categories []struct {
		Name string `json:"name"`
	} `json:"categories"`
	UpdatedAt time.Time `json:"updatedAt"`
	Body      []struct {
		Tag  string `json:"tag"`
		Text string `json:"text"`
	} `json:"body"`
}

// GetDocument fetches the full current state of a document from the CMS.
func (c *Client) GetDocument(ctx context.Context, documentID string) (*content.Document, error) {
	url := fmt.Sprintf("%s/api/documents/%s", c.baseURL, documentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "users API-Key "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cms fetch: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("cms fetch: unexpected status %d", resp.StatusCode)
	}

	var dto documentDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return nil, fmt.Errorf("cms fetch: decode: %w", err)
	}

	doc := &content.Document{
		ID:        dto.ID,
		Title:     dto.Title,
		Status:    content.Status(dto.Status),
		UpdatedAt: dto.UpdatedAt,
	}
	for _, cat := range dto.Categories {
		doc.Categories = append(doc.Categories, cat.Name)
	}
	for _, b := range dto.Body {
		doc.Body = append(doc.Body, content.Block{Tag: b.Tag, Text: b.Text})
	}

	slog.DebugContext(ctx, "fetched document", "document_id", doc.ID, "status", doc.Status, "blocks", len(doc.Body))
	return doc, nil
}
