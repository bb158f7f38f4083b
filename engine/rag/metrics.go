package rag

import "github.com/AskCampusAI/askcampus-mvp/pkg/metrics"

// Metrics are the pipeline counters exposed on /metrics.
type Metrics struct {
	Questions   *metrics.Counter
	Answered    *metrics.Counter
	CacheHits   *metrics.Counter
	CacheMisses *metrics.Counter
}

// NewMetrics registers the pipeline counters on a registry.
func NewMetrics(r *metrics.Registry) *Metrics {
	return &Metrics{
		Questions:   r.Counter("rag_questions_total", "Questions accepted by the pipeline"),
		Answered:    r.Counter("rag_answers_generated_total", "Answers produced by generation"),
		CacheHits:   r.Counter("rag_cache_hits_total", "Questions served from the question cache"),
		CacheMisses: r.Counter("rag_cache_misses_total", "Cache probes that fell through to retrieval"),
	}
}

// NopMetrics returns counters not attached to any registry.
func NopMetrics() *Metrics {
	return NewMetrics(metrics.New())
}
