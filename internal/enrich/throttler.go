package enrich

import (
	"context"
	"log/slog"
	"time"
)

// Throttler rate-limits summary generation for one call. A refresh happens
// only when the transcript is non-empty, has changed since the last refresh,
// and the minimum interval has elapsed. Summarization failures degrade to
// DefaultCard rather than surfacing an error to the audio path.
type Throttler struct {
	summarizer  Summarizer
	minInterval time.Duration
	timeout     time.Duration
	logger      *slog.Logger

	// now is replaceable for tests
	now func() time.Time

	lastText  string
	lastAt    time.Time
	refreshed bool
}

// NewThrottler creates a throttler for a single call
func NewThrottler(summarizer Summarizer, minInterval, timeout time.Duration, logger *slog.Logger) *Throttler {
	return &Throttler{
		summarizer:  summarizer,
		minInterval: minInterval,
		timeout:     timeout,
		logger:      logger,
		now:         time.Now,
	}
}

// Refresh produces a new card when the transcript warrants one. The second
// return value reports whether a refresh happened; when false the caller
// keeps whatever card it last published.
func (t *Throttler) Refresh(ctx context.Context, transcript string) (Card, bool) {
	if !t.shouldRefresh(transcript, true) {
		return Card{}, false
	}
	return t.generate(ctx, transcript), true
}

// Final produces one last card at call completion. The interval gate does
// not apply: the closing transcript deserves an up-to-date summary even if
// the previous refresh was moments ago. The changed-text gate still holds.
func (t *Throttler) Final(ctx context.Context, transcript string) (Card, bool) {
	if !t.shouldRefresh(transcript, false) {
		return Card{}, false
	}
	return t.generate(ctx, transcript), true
}

func (t *Throttler) shouldRefresh(transcript string, enforceInterval bool) bool {
	if transcript == "" {
		return false
	}
	if transcript == t.lastText {
		return false
	}
	if enforceInterval && t.refreshed && t.now().Sub(t.lastAt) < t.minInterval {
		return false
	}
	return true
}

// generate runs the summarizer with a bounded deadline. The throttle state
// advances even on failure so a broken model cannot be hammered every frame.
func (t *Throttler) generate(ctx context.Context, transcript string) Card {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	card, err := t.summarizer.Summarize(callCtx, transcript)
	if err != nil {
		t.logger.Warn("Summary generation failed, using fallback card",
			slog.String("error", err.Error()))
		card = DefaultCard()
	}

	t.lastText = transcript
	t.lastAt = t.now()
	t.refreshed = true
	return card
}
