// Package qcache implements near-duplicate matching over previously
// answered questions. The read path is side-effect free; hit bookkeeping
// (count, lastAskedAt) is the calling store's write.
package qcache

import (
	"github.com/AskCampusAI/askcampus-mvp/engine/domain"
	"github.com/AskCampusAI/askcampus-mvp/engine/rank"
)

// DefaultThreshold is the minimum cosine similarity for a cache hit.
// Production tuning of this value is expected; it is a default, not a law.
const DefaultThreshold = 0.90

// Matcher finds cached questions similar enough to short-circuit generation.
type Matcher struct {
	// Threshold is strict: a candidate at exactly this similarity is a miss.
	Threshold float64
}

// New returns a Matcher with the given threshold, or DefaultThreshold if
// threshold <= 0.
func New(threshold float64) Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return Matcher{Threshold: threshold}
}

// Match is the result of a successful cache probe.
type Match struct {
	Question   domain.CachedQuestion
	Similarity float64
}

// FindSimilar returns the most similar cached question of the same intent
// whose similarity strictly exceeds the threshold, or nil on a miss. A miss
// is the expected steady state, not an error. Candidates of other intents
// and candidates without an embedding are ignored; among equal maxima the
// first encountered wins.
func (m Matcher) FindSimilar(query []float32, intent domain.Intent, candidates []domain.CachedQuestion) *Match {
	if len(query) == 0 {
		return nil
	}

	best := m.Threshold
	var found *Match
	for _, c := range candidates {
		if c.Intent != intent || len(c.Embedding) == 0 {
			continue
		}
		sim := rank.Cosine(query, c.Embedding)
		if sim > best {
			best = sim
			found = &Match{Question: c, Similarity: sim}
		}
	}
	return found
}
