// Package intent classifies questions into coarse categories using keyword
// and prefix heuristics. These are deliberately low-rigor policy objects,
// meant to be swapped for a real classifier without touching the ranking
// math that consumes their output.
package intent

import (
	"regexp"
	"strings"

	"github.com/AskCampusAI/askcampus-mvp/engine/domain"
)

var (
	procedureRe   = regexp.MustCompile(`^(how do i|how to|procedure|steps)`)
	definitionRe  = regexp.MustCompile(`^(what is|define|what does)`)
	requirementRe = regexp.MustCompile(`requirement|criteria|eligibility`)
	deadlineRe    = regexp.MustCompile(`deadline|when is|last date|by when|due date`)
)

// Detect classifies a question. Order matters: prefix patterns first, then
// anywhere-in-text patterns, falling back to general.
func Detect(question string) domain.Intent {
	q := strings.ToLower(strings.TrimSpace(question))

	switch {
	case procedureRe.MatchString(q):
		return domain.IntentProcedure
	case definitionRe.MatchString(q):
		return domain.IntentDefinition
	case requirementRe.MatchString(q):
		return domain.IntentRequirement
	case deadlineRe.MatchString(q):
		return domain.IntentDeadline
	default:
		return domain.IntentGeneral
	}
}

// retrievalDepth maps intent to the number of chunks fetched for it.
// Definitions and deadlines want precision, procedures want coverage.
var retrievalDepth = map[domain.Intent]int{
	domain.IntentDefinition:  3,
	domain.IntentDeadline:    3,
	domain.IntentRequirement: 4,
	domain.IntentProcedure:   5,
	domain.IntentGeneral:     5,
}

// DepthFor returns the retrieval depth k for an intent.
func DepthFor(i domain.Intent) int {
	if k, ok := retrievalDepth[i]; ok {
		return k
	}
	return 5
}

// VisualPolicy decides whether a question is asking for visual content
// (forms, maps, diagrams, tables) via case-insensitive substring matching.
type VisualPolicy struct {
	Keywords []string
}

// DefaultVisualKeywords is the stock keyword set. Pure membership test, no
// scoring; tune the list rather than the mechanism.
var DefaultVisualKeywords = []string{
	"show me", "what does", "form", "application", "map", "chart",
	"diagram", "table", "image", "picture", "visual", "looks like",
	"layout", "floor plan", "campus map", "parking", "location", "building",
}

// DefaultVisualPolicy uses DefaultVisualKeywords.
var DefaultVisualPolicy = VisualPolicy{Keywords: DefaultVisualKeywords}

// Detect reports whether the question appears to request visual content.
func (p VisualPolicy) Detect(question string) bool {
	q := strings.ToLower(question)
	for _, kw := range p.Keywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}
