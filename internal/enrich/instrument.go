package enrich

import (
	"context"
	"time"

	"github.com/Ajamillion/receptive/internal/metrics"
)

// InstrumentedSummarizer records request counts, failures, and latency for
// every model call
type InstrumentedSummarizer struct {
	inner   Summarizer
	metrics *metrics.Metrics
}

// Instrument wraps a summarizer with metrics collection
func Instrument(inner Summarizer, m *metrics.Metrics) *InstrumentedSummarizer {
	return &InstrumentedSummarizer{
		inner:   inner,
		metrics: m,
	}
}

// Summarize delegates to the wrapped summarizer and records the outcome
func (s *InstrumentedSummarizer) Summarize(ctx context.Context, transcript string) (Card, error) {
	start := time.Now()
	card, err := s.inner.Summarize(ctx, transcript)
	s.metrics.RecordEnrichment(err != nil, time.Since(start).Seconds())
	return card, err
}
