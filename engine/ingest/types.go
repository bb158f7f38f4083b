package ingest

import (
	"strconv"

	"github.com/AskCampusAI/askcampus-mvp/engine/domain"
)

// UploadEvent is the message published when a campus document has been
// uploaded and its text extracted. It is the pipeline's input.
type UploadEvent struct {
	Document domain.Document `json:"document"`
	// Text is the extracted running text of the document.
	Text string `json:"text"`
	// Visuals are extracted tables, forms, and diagrams, one per element.
	Visuals []VisualElement `json:"visuals,omitempty"`
}

// VisualElement is a non-prose element extracted from a document page.
type VisualElement struct {
	Page    int    `json:"page"`
	Content string `json:"content"`
}

// ChunkedDoc is a document split into embeddable chunks.
type ChunkedDoc struct {
	Document domain.Document
	Chunks   []domain.Chunk
}

// chunksFromEvent turns an upload event into text and visual chunks.
// Visual elements are never split; one element is one chunk.
func chunksFromEvent(ev UploadEvent) []domain.Chunk {
	chunks := chunkSentences(ev.Document.ID, splitSentences(ev.Text), DefaultChunkSize, DefaultOverlap)
	if len(chunks) == 0 && ev.Text != "" {
		chunks = []domain.Chunk{{
			ID:         ev.Document.ID + "-0",
			DocumentID: ev.Document.ID,
			Index:      0,
			Type:       domain.ChunkTypeText,
			Content:    ev.Text,
		}}
	}

	for _, v := range ev.Visuals {
		chunks = append(chunks, domain.Chunk{
			ID:         ev.Document.ID + "-" + strconv.Itoa(len(chunks)),
			DocumentID: ev.Document.ID,
			Index:      len(chunks),
			Type:       domain.ChunkTypeVisual,
			Content:    v.Content,
			Metadata:   map[string]string{"pageNumber": strconv.Itoa(v.Page)},
		})
	}
	return chunks
}
