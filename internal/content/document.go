package content

import "time"

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// Block is one node of a document's heading-tagged body: a heading
// (tags "h1".."h6") or a paragraph (tag "p").
type Block struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
}

// Document is the authoritative content unit owned by the CMS. The engine
// only observes it; mutations always come in through change notifications.
type Document struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Status     Status    `json:"status"`
	Categories []string  `json:"categories"`
	UpdatedAt  time.Time `json:"updatedAt"`
	Body       []Block   `json:"body"`
}

func (d Document) IsPublished() bool {
	return d.Status == StatusPublished
}

// Chunk is a single retrieval unit derived from one paragraph of a Document.
// Text carries the synthetic context header so both indexes see the same
// contextualized content.
type Chunk struct {
	ID         string   `json:"chunk_id"`
	DocumentID string   `json:"document_id"`
	Index      int      `json:"index"`
	DocTitle   string   `json:"doc_title"`
	Section    string   `json:"section,omitempty"`
	Subsection string   `json:"subsection,omitempty"`
	Paragraph  string   `json:"paragraph"`
	Text       string   `json:"text"`
	Status     Status   `json:"status"`
	Categories []string `json:"categories"`
}
