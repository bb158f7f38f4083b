package answer

import (
	"math"

	"github.com/AskCampusAI/askcampus-mvp/engine/domain"
	"github.com/AskCampusAI/askcampus-mvp/engine/rank"
	"github.com/AskCampusAI/askcampus-mvp/pkg/fn"
)

// excerptLen is the number of characters of chunk content quoted per source.
const excerptLen = 150

// Source is a citation for an answer: one per unique document among the
// chunks considered, in ranking order.
type Source struct {
	DocumentID   string           `json:"document_id"`
	ChunkIndex   int              `json:"chunk_index"`
	Similarity   int              `json:"similarity"`
	Excerpt      string           `json:"excerpt"`
	DocumentName string           `json:"document_name"`
	FileURL      string           `json:"file_url,omitempty"`
	Type         domain.ChunkType `json:"type"`
	PageNumber   string           `json:"page_number,omitempty"`
}

// ExtractSources deduplicates chunks by owning document, first occurrence
// wins, preserving ranking order. The dedup key is strictly the document
// ID; identical content under different documents yields separate sources.
func ExtractSources(chunks []rank.RankedChunk) []Source {
	unique := fn.UniqueBy(chunks, func(c rank.RankedChunk) string { return c.DocumentID })
	return fn.Map(unique, func(c rank.RankedChunk) Source {
		name := c.DocumentName
		if name == "" {
			name = domain.UnknownDocumentName
		}
		return Source{
			DocumentID:   c.DocumentID,
			ChunkIndex:   c.Index,
			Similarity:   int(math.Round(c.Score * 100)),
			Excerpt:      excerpt(c.Content),
			DocumentName: name,
			FileURL:      c.FileURL,
			Type:         c.Type,
			PageNumber:   c.Metadata["pageNumber"],
		}
	})
}

func excerpt(content string) string {
	r := []rune(content)
	if len(r) > excerptLen {
		r = r[:excerptLen]
	}
	return string(r) + "..."
}
