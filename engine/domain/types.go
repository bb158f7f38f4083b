// Package domain defines core domain types, constants, and validation for the
// AskCampus engine pipeline. It acts as the validation gate at pipeline entry points.
package domain

import "time"

// ChunkType distinguishes parsed-text chunks from vision-derived ones.
type ChunkType string

const (
	ChunkTypeText   ChunkType = "text"
	ChunkTypeVisual ChunkType = "visual"
)

// ValidChunkTypes is the set of recognised chunk types.
var ValidChunkTypes = map[ChunkType]bool{
	ChunkTypeText:   true,
	ChunkTypeVisual: true,
}

// NormalizeChunkType maps free-form type strings to the closed enum.
// Unknown or empty values fall back to text, matching how untyped chunks
// were treated before visual ingestion existed.
func NormalizeChunkType(s string) ChunkType {
	if ValidChunkTypes[ChunkType(s)] {
		return ChunkType(s)
	}
	return ChunkTypeText
}

// Chunk is a retrievable unit of document content with a precomputed embedding.
// A chunk without an embedding is not an error; ranking skips it until the
// backfill job fills the embedding in.
type Chunk struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	Index      int               `json:"index"`
	Type       ChunkType         `json:"type"`
	Content    string            `json:"content"`
	Embedding  []float32         `json:"embedding,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// IsVisual reports whether the chunk came from vision analysis of a page.
func (c Chunk) IsVisual() bool { return c.Type == ChunkTypeVisual }

// DocumentStatus tracks a document through the ingestion lifecycle.
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusProcessed  DocumentStatus = "processed"
	StatusFailed     DocumentStatus = "failed"
)

// Document holds the display metadata attached to ranked chunks. The
// retrieval core only ever reads these fields.
type Document struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Department string         `json:"department"`
	FileURL    string         `json:"file_url,omitempty"`
	UploadedAt time.Time      `json:"uploaded_at,omitzero"`
	Status     DocumentStatus `json:"status"`
}

// Placeholder values used when a chunk's owning document is missing from
// the catalog. Filled once at the data-access boundary, not sprinkled
// through consumers.
const (
	UnknownDocumentName = "Unknown Document"
	UnknownDepartment   = "Unknown Department"
)

// Intent is a coarse question category used to select retrieval depth and
// to partition the question cache.
type Intent string

const (
	IntentDefinition  Intent = "definition"
	IntentProcedure   Intent = "procedure"
	IntentRequirement Intent = "requirement"
	IntentDeadline    Intent = "deadline"
	IntentGeneral     Intent = "general"
)

// ValidIntents is the set of recognised intents.
var ValidIntents = map[Intent]bool{
	IntentDefinition: true, IntentProcedure: true, IntentRequirement: true,
	IntentDeadline: true, IntentGeneral: true,
}

// CachedQuestion is a previously answered question kept for near-duplicate
// reuse. Count and LastAskedAt are updated by the store on every cache hit.
type CachedQuestion struct {
	ID          string    `json:"id"`
	Question    string    `json:"question"`
	Embedding   []float32 `json:"embedding,omitempty"`
	Answer      string    `json:"answer"`
	Intent      Intent    `json:"intent"`
	Count       int64     `json:"count"`
	CreatedAt   time.Time `json:"created_at"`
	LastAskedAt time.Time `json:"last_asked_at"`
}

// Question represents an incoming user question before classification.
type Question struct {
	Text   string `json:"text"`
	UserID string `json:"user_id,omitempty"`
}
