// Package rag orchestrates the question answering pipeline. It accepts a
// user question, detects its intent, embeds it, probes the question cache,
// ranks the chunk pool, and generates an answer with citations. Answered
// questions are written back to the cache.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/AskCampusAI/askcampus-mvp/engine/answer"
	"github.com/AskCampusAI/askcampus-mvp/engine/domain"
	"github.com/AskCampusAI/askcampus-mvp/engine/intent"
	"github.com/AskCampusAI/askcampus-mvp/engine/qcache"
	"github.com/AskCampusAI/askcampus-mvp/engine/rank"
)

// Embedder turns question text into an embedding.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ChunkSource snapshots the chunk candidate pool.
type ChunkSource interface {
	All(ctx context.Context) ([]domain.Chunk, error)
}

// DocumentSource snapshots document metadata for ranking enrichment.
type DocumentSource interface {
	LookupMap(ctx context.Context) (rank.DocMap, error)
}

// QuestionCache stores answered questions and serves similarity lookups.
type QuestionCache interface {
	ByIntent(ctx context.Context, intent domain.Intent) ([]domain.CachedQuestion, error)
	Save(ctx context.Context, q domain.CachedQuestion) error
	IncrementCount(ctx context.Context, questionID string) error
}

// Options configures the pipeline behaviour.
type Options struct {
	// TopK overrides the per-intent retrieval depth when > 0.
	TopK int
	// CacheThreshold is the minimum similarity for serving a cached
	// answer. Zero means qcache's default.
	CacheThreshold float64
	// VisualMultiplier is the ranking boost for visual chunks when the
	// question asks for visual content. Zero means rank's default.
	VisualMultiplier float64
	// DisableCache turns off both cache probes and write-backs.
	DisableCache bool
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{}
}

// Service is the question answering orchestrator.
type Service struct {
	embed   Embedder
	chunks  ChunkSource
	docs    DocumentSource
	cache   QuestionCache
	answers *answer.Service
	matcher qcache.Matcher
	visual  intent.VisualPolicy
	opts    Options
	logger  *slog.Logger
	metrics *Metrics
	newID   func() string
}

// New creates a Service. docs and cache may be nil; ranking then runs
// without document metadata and caching is skipped.
func New(embed Embedder, chunks ChunkSource, docs DocumentSource, cache QuestionCache, answers *answer.Service, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		embed:   embed,
		chunks:  chunks,
		docs:    docs,
		cache:   cache,
		answers: answers,
		matcher: qcache.New(opts.CacheThreshold),
		visual:  intent.DefaultVisualPolicy,
		opts:    opts,
		logger:  logger,
		metrics: NopMetrics(),
		newID:   uuid.NewString,
	}
}

// WithMetrics attaches pipeline counters.
func (s *Service) WithMetrics(m *Metrics) *Service {
	if m != nil {
		s.metrics = m
	}
	return s
}

// Response is the full pipeline output for one question.
type Response struct {
	Answer           string            `json:"answer"`
	Intent           domain.Intent     `json:"intent"`
	Confidence       answer.Confidence `json:"confidence"`
	Sources          []answer.Source   `json:"sources"`
	Deadline         *answer.Deadline  `json:"deadline,omitempty"`
	HasVisualContent bool              `json:"has_visual_content"`
	Cached           bool              `json:"cached"`
	CacheSimilarity  float64           `json:"cache_similarity,omitempty"`
	Duration         time.Duration     `json:"-"`
}

// Ask runs the pipeline for one question.
func (s *Service) Ask(ctx context.Context, q domain.Question) (*Response, error) {
	return s.ask(ctx, q, nil)
}

// AskStream is Ask with token-by-token delivery via onToken. Cached
// answers are delivered as a single token.
func (s *Service) AskStream(ctx context.Context, q domain.Question, onToken func(string) error) (*Response, error) {
	return s.ask(ctx, q, onToken)
}

func (s *Service) ask(ctx context.Context, q domain.Question, onToken func(string) error) (*Response, error) {
	start := time.Now()

	if err := domain.ValidateQuestion(q); err != nil {
		return nil, fmt.Errorf("rag: %w", err)
	}

	it := intent.Detect(q.Text)
	s.metrics.Questions.Inc()

	embedding, err := s.embed.EmbedQuery(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("rag: embed question: %w", err)
	}

	if resp := s.probeCache(ctx, embedding, it, onToken); resp != nil {
		resp.Duration = time.Since(start)
		return resp, nil
	}

	ranked, err := s.retrieve(ctx, q.Text, embedding, it)
	if err != nil {
		return nil, err
	}

	var result answer.Result
	if onToken != nil {
		result, err = s.answers.GenerateStream(ctx, q.Text, it, ranked, onToken)
	} else {
		result, err = s.answers.Generate(ctx, q.Text, it, ranked)
	}
	if err != nil {
		return nil, fmt.Errorf("rag: %w", err)
	}

	if len(ranked) > 0 {
		s.storeInCache(ctx, q.Text, embedding, result.Answer, it)
	}

	s.metrics.Answered.Inc()
	return &Response{
		Answer:           result.Answer,
		Intent:           it,
		Confidence:       result.Confidence,
		Sources:          result.Sources,
		Deadline:         result.Deadline,
		HasVisualContent: result.HasVisualContent,
		Duration:         time.Since(start),
	}, nil
}

// probeCache serves a previously answered question when one is similar
// enough. Cache failures degrade to a full pipeline run.
func (s *Service) probeCache(ctx context.Context, embedding []float32, it domain.Intent, onToken func(string) error) *Response {
	if s.cache == nil || s.opts.DisableCache {
		return nil
	}

	candidates, err := s.cache.ByIntent(ctx, it)
	if err != nil {
		s.logger.Warn("rag: cache lookup failed, continuing without", "err", err)
		return nil
	}

	match := s.matcher.FindSimilar(embedding, it, candidates)
	if match == nil {
		s.metrics.CacheMisses.Inc()
		return nil
	}
	s.metrics.CacheHits.Inc()

	if err := s.cache.IncrementCount(ctx, match.Question.ID); err != nil {
		s.logger.Warn("rag: cache count update failed", "question_id", match.Question.ID, "err", err)
	}

	if onToken != nil {
		if err := onToken(match.Question.Answer); err != nil {
			s.logger.Warn("rag: stream of cached answer aborted", "err", err)
		}
	}

	s.logger.Info("rag: served from cache",
		"question_id", match.Question.ID,
		"similarity", match.Similarity,
		"intent", it,
	)
	return &Response{
		Answer: match.Question.Answer,
		Intent: it,
		Confidence: answer.Confidence{
			Level:     answer.LevelHigh,
			Score:     int(math.Round(match.Similarity * 100)),
			Reasoning: "Matched a previously answered question",
		},
		Cached:          true,
		CacheSimilarity: match.Similarity,
	}
}

func (s *Service) retrieve(ctx context.Context, question string, embedding []float32, it domain.Intent) ([]rank.RankedChunk, error) {
	pool, err := s.chunks.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("rag: load chunk pool: %w", err)
	}

	var docs rank.DocumentLookup = rank.DocMap(nil)
	if s.docs != nil {
		m, err := s.docs.LookupMap(ctx)
		if err != nil {
			s.logger.Warn("rag: document catalog unavailable, ranking without metadata", "err", err)
		} else {
			docs = m
		}
	}

	k := intent.DepthFor(it)
	if s.opts.TopK > 0 {
		k = s.opts.TopK
	}

	var rankOpts rank.Options
	if s.visual.Detect(question) {
		rankOpts.Boost = rank.VisualBoost(s.opts.VisualMultiplier)
	}

	ranked, err := rank.Rank(embedding, pool, k, docs, rankOpts)
	if err != nil {
		return nil, fmt.Errorf("rag: rank: %w", err)
	}
	s.logger.Info("rag: retrieval done",
		"intent", it,
		"pool", len(pool),
		"selected", len(ranked),
		"visual_boost", rankOpts.Boost != nil,
	)
	return ranked, nil
}

// storeInCache writes an answered question back. Failures are logged,
// never surfaced; the user already has their answer.
func (s *Service) storeInCache(ctx context.Context, question string, embedding []float32, answerText string, it domain.Intent) {
	if s.cache == nil || s.opts.DisableCache {
		return
	}

	cached := domain.CachedQuestion{
		ID:        s.newID(),
		Question:  question,
		Embedding: embedding,
		Answer:    answerText,
		Intent:    it,
	}
	if err := s.cache.Save(ctx, cached); err != nil {
		s.logger.Warn("rag: cache write failed", "question_id", cached.ID, "err", err)
	}
}
