// Package rank implements the semantic retrieval core: cosine scoring of
// document chunks against a query embedding, optional content-type boosting,
// and stable top-k selection with document metadata enrichment. It performs
// no I/O; candidate pools are snapshotted by the caller and passed in.
package rank

import (
	"math"
	"sort"
	"time"

	"github.com/AskCampusAI/askcampus-mvp/engine/domain"
)

// DocumentLookup resolves a chunk's owning document for display metadata.
// Implementations are read-only; a missing document is not an error.
type DocumentLookup interface {
	Document(id string) (domain.Document, bool)
}

// DocMap is a map-backed DocumentLookup for pre-fetched catalogs.
type DocMap map[string]domain.Document

func (m DocMap) Document(id string) (domain.Document, bool) {
	d, ok := m[id]
	return d, ok
}

// RankedChunk is a chunk enriched with its similarity score and document
// metadata. It exists only for the duration of one retrieval call.
type RankedChunk struct {
	domain.Chunk
	Score           float64   `json:"score"`
	OriginalScore   float64   `json:"original_score"`
	DocumentName    string    `json:"document_name"`
	Department      string    `json:"department"`
	FileURL         string    `json:"file_url,omitempty"`
	UploadedAt      time.Time `json:"uploaded_at,omitzero"`
	IsVisualContent bool      `json:"is_visual_content"`
}

// DefaultVisualMultiplier is the ranking boost applied to vision-derived
// chunks when the query asks for visual content. Tunable, not calibrated.
const DefaultVisualMultiplier = 1.3

// BoostPolicy multiplies the raw similarity of matching chunks. The boosted
// value is used for ordering and returned as Score; the raw value is kept
// as OriginalScore for diagnostics.
type BoostPolicy struct {
	Match      func(domain.Chunk) bool
	Multiplier float64
}

// VisualBoost returns a policy boosting visual chunks by the given
// multiplier (DefaultVisualMultiplier if <= 0).
func VisualBoost(multiplier float64) *BoostPolicy {
	if multiplier <= 0 {
		multiplier = DefaultVisualMultiplier
	}
	return &BoostPolicy{
		Match:      domain.Chunk.IsVisual,
		Multiplier: multiplier,
	}
}

// Options configures a single Rank call.
type Options struct {
	// Boost, when non-nil, is applied to chunks matching its predicate.
	Boost *BoostPolicy
}

// Cosine computes cosine similarity dot(a,b)/(|a|*|b|) with float64
// accumulation. Zero-magnitude vectors (and mismatched lengths, which only
// arise from a misconfigured embedding model) score 0 rather than NaN.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		magA += x * x
		magB += y * y
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// Rank scores candidates against the query embedding and returns the top k,
// sorted by descending (possibly boosted) score. Candidates without an
// embedding are skipped; equal scores keep their input order. Document
// metadata is attached from docs, with placeholders for unknown documents.
// A nil docs lookup is treated as empty.
//
// Rank is pure: identical inputs always produce identical output.
func Rank(query []float32, candidates []domain.Chunk, k int, docs DocumentLookup, opts Options) ([]RankedChunk, error) {
	if len(query) == 0 {
		return nil, domain.NewValidationError("query_embedding", "", domain.ErrEmptyEmbedding)
	}
	if k < 0 {
		return nil, domain.NewValidationError("k", "", domain.ErrNegativeK)
	}

	scored := make([]RankedChunk, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Embedding) == 0 {
			continue // not yet indexed
		}
		raw := Cosine(query, c.Embedding)
		score := raw
		if opts.Boost != nil && opts.Boost.Match != nil && opts.Boost.Match(c) {
			score = raw * opts.Boost.Multiplier
		}
		scored = append(scored, enrich(c, score, raw, docs))
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k < len(scored) {
		scored = scored[:k]
	}
	return scored, nil
}

// enrich attaches document display metadata, defaulting missing documents
// in one place.
func enrich(c domain.Chunk, score, raw float64, docs DocumentLookup) RankedChunk {
	rc := RankedChunk{
		Chunk:           c,
		Score:           score,
		OriginalScore:   raw,
		DocumentName:    domain.UnknownDocumentName,
		Department:      domain.UnknownDepartment,
		IsVisualContent: c.IsVisual(),
	}
	if docs == nil {
		return rc
	}
	if d, ok := docs.Document(c.DocumentID); ok {
		rc.DocumentName = d.Name
		rc.Department = d.Department
		rc.FileURL = d.FileURL
		rc.UploadedAt = d.UploadedAt
		if rc.DocumentName == "" {
			rc.DocumentName = domain.UnknownDocumentName
		}
		if rc.Department == "" {
			rc.Department = domain.UnknownDepartment
		}
	}
	return rc
}
