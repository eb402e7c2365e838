package content

import (
	"fmt"
	"strings"
)

// ChunkDocument walks a document's heading-tagged body and emits one Chunk
// per paragraph. H1/H2 headings set the current section, H3 the current
// subsection; deeper headings don't change the context. Each chunk's text is
// prefixed with a synthetic header so a paragraph stays retrievable on its
// own even when the surrounding structure carried most of the meaning.
//
// Output is fully determined by the input: re-running on an unchanged
// document yields byte-identical text and the same chunk ID sequence.
func ChunkDocument(doc Document) []Chunk {
	var chunks []Chunk
	section := ""
	subsection := ""

	for _, block := range doc.Body {
		text := strings.TrimSpace(block.Text)

		switch block.Tag {
		case "h1", "h2":
			section = text
			subsection = ""
		case "h3":
			subsection = text
		case "h4", "h5", "h6":
			// Too deep to track as context, and not a paragraph either.
		default:
			if text == "" {
				continue
			}
			idx := len(chunks)
			chunks = append(chunks, Chunk{
				ID:         ChunkID(doc.ID, idx),
				DocumentID: doc.ID,
				Index:      idx,
				DocTitle:   doc.Title,
				Section:    section,
				Subsection: subsection,
				Paragraph:  text,
				Text:       contextHeader(doc.Title, section, subsection) + text,
				Status:     doc.Status,
				Categories: doc.Categories,
			})
		}
	}

	return chunks
}

// ChunkID builds the deterministic chunk identifier for a document paragraph.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s:%d", documentID, index)
}

func contextHeader(docTitle, section, subsection string) string {
	var b strings.Builder
	if docTitle != "" {
		b.WriteString("Document: ")
		b.WriteString(docTitle)
		b.WriteString("\n")
	}
	if section != "" {
		b.WriteString("Section: ")
		b.WriteString(section)
		b.WriteString("\n")
	}
	if subsection != "" {
		b.WriteString("Subsection: ")
		b.WriteString(subsection)
		b.WriteString("\n")
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	return b.String()
}

// Fingerprint returns a stable string over the chunk sequence, used by the
// index writer to verify the chunker produced the same output twice.
func Fingerprint(chunks []Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.ID)
		b.WriteString("\x00")
		b.WriteString(c.Text)
		b.WriteString("\x00")
	}
	return b.String()
}
