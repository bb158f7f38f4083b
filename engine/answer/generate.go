package answer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AskCampusAI/askcampus-mvp/engine/domain"
	"github.com/AskCampusAI/askcampus-mvp/engine/rank"
)

// TextGenerator abstracts the generative model call.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, temperature float32) (string, error)
	// GenerateStream invokes onToken for each text fragment as it arrives
	// and returns the full concatenated text.
	GenerateStream(ctx context.Context, prompt string, temperature float32, onToken func(string) error) (string, error)
}

// Result is a generated answer with its derived evidence summary.
type Result struct {
	Answer           string      `json:"answer"`
	Confidence       Confidence  `json:"confidence"`
	Sources          []Source    `json:"sources"`
	Deadline         *Deadline   `json:"deadline,omitempty"`
	HasVisualContent bool        `json:"has_visual_content"`
}

// Service composes prompt building, generation, and the pure scoring and
// extraction steps.
type Service struct {
	gen        TextGenerator
	thresholds Thresholds
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates an answer Service.
func NewService(gen TextGenerator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		gen:        gen,
		thresholds: DefaultThresholds,
		logger:     logger,
		now:        time.Now,
	}
}

// NoEvidenceAnswer is returned without a generation call when retrieval
// found nothing usable.
const NoEvidenceAnswer = "I couldn't find any relevant information in the campus documents to answer your question."

// Generate produces an answer for the question over the ranked chunks.
// With no evidence it short-circuits to the fixed fallback rather than
// calling the model.
func (s *Service) Generate(ctx context.Context, question string, i domain.Intent, chunks []rank.RankedChunk) (Result, error) {
	return s.generate(ctx, question, i, chunks, nil)
}

// GenerateStream is Generate with token-by-token delivery via onToken.
func (s *Service) GenerateStream(ctx context.Context, question string, i domain.Intent, chunks []rank.RankedChunk, onToken func(string) error) (Result, error) {
	return s.generate(ctx, question, i, chunks, onToken)
}

func (s *Service) generate(ctx context.Context, question string, i domain.Intent, chunks []rank.RankedChunk, onToken func(string) error) (Result, error) {
	confidence := s.thresholds.Score(chunks)
	sources := ExtractSources(chunks)

	if len(chunks) == 0 {
		s.logger.Info("answer: no evidence, skipping generation", "intent", i)
		res := Result{Answer: NoEvidenceAnswer, Confidence: confidence, Sources: sources}
		if onToken != nil {
			if err := onToken(res.Answer); err != nil {
				return Result{}, err
			}
		}
		return res, nil
	}

	prompt := BuildPrompt(question, i, chunks)
	temp := TemperatureFor(i)

	var text string
	var err error
	if onToken != nil {
		text, err = s.gen.GenerateStream(ctx, prompt, temp, onToken)
	} else {
		text, err = s.gen.Generate(ctx, prompt, temp)
	}
	if err != nil {
		return Result{}, fmt.Errorf("answer: generate: %w", err)
	}

	res := Result{
		Answer:     text,
		Confidence: confidence,
		Sources:    sources,
		Deadline:   ExtractDeadline(text, i, s.now()),
	}
	for _, c := range chunks {
		if c.IsVisualContent {
			res.HasVisualContent = true
			break
		}
	}
	if res.Deadline != nil && len(sources) > 0 {
		res.Deadline.SourceDocument = sources[0].DocumentName
	}

	s.logger.Info("answer generated",
		"intent", i,
		"confidence", res.Confidence.Level,
		"sources", len(sources),
		"deadline", res.Deadline != nil,
	)
	return res, nil
}
