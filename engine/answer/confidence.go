// Package answer turns ranked chunks into a generated answer with
// confidence classification, deduplicated source citations, and deadline
// extraction. Scoring and extraction are pure; only generation calls out.
package answer

import (
	"fmt"
	"math"

	"github.com/AskCampusAI/askcampus-mvp/engine/rank"
)

// Level is the confidence tier of an answer.
type Level string

const (
	LevelHigh   Level = "High"
	LevelMedium Level = "Medium"
	LevelLow    Level = "Low"
)

// Confidence classifies how well the retrieved evidence supports an answer.
// Score is always derived from the single best match ("how good is my best
// evidence"); Level reflects the aggregate.
type Confidence struct {
	Level     Level  `json:"level"`
	Score     int    `json:"score"`
	Reasoning string `json:"reasoning"`
}

// Thresholds are the tier boundaries. Defaults mirror long-standing tuning;
// they are configurable because they were never calibrated on labeled data.
type Thresholds struct {
	HighTop        float64 // top score floor for High
	HighAvg        float64 // mean score floor for High
	HighQuality    float64 // per-chunk floor to count as high quality
	HighQualityMin int     // high-quality chunks needed for High
	MediumTop      float64
	MediumAvg      float64
}

// DefaultThresholds are the stock tier boundaries.
var DefaultThresholds = Thresholds{
	HighTop:        0.9,
	HighAvg:        0.8,
	HighQuality:    0.75,
	HighQualityMin: 2,
	MediumTop:      0.8,
	MediumAvg:      0.7,
}

// ScoreConfidence classifies with DefaultThresholds.
func ScoreConfidence(chunks []rank.RankedChunk) Confidence {
	return DefaultThresholds.Score(chunks)
}

// Score classifies the evidence in chunks. Total and deterministic: every
// input produces a result, an empty input produces the fixed no-evidence
// terminal state.
func (t Thresholds) Score(chunks []rank.RankedChunk) Confidence {
	if len(chunks) == 0 {
		return Confidence{Level: LevelLow, Score: 0, Reasoning: "No relevant sources found"}
	}

	top := chunks[0].Score
	var sum float64
	highQuality := 0
	for _, c := range chunks {
		sum += c.Score
		if c.Score > t.HighQuality {
			highQuality++
		}
	}
	avg := sum / float64(len(chunks))
	pct := int(math.Round(top * 100))

	switch {
	case top > t.HighTop && avg > t.HighAvg && highQuality >= t.HighQualityMin:
		return Confidence{
			Level:     LevelHigh,
			Score:     pct,
			Reasoning: fmt.Sprintf("Strong match found across %d high-quality sources", highQuality),
		}
	case top > t.MediumTop && avg > t.MediumAvg:
		return Confidence{
			Level:     LevelMedium,
			Score:     pct,
			Reasoning: "Good match found, but sources show some variation",
		}
	default:
		return Confidence{
			Level:     LevelLow,
			Score:     pct,
			Reasoning: "Limited or inconsistent source information",
		}
	}
}
