package asr

import (
	"fmt"
	"strings"

	"github.com/Ajamillion/receptive/internal/audio"
)

// FrameResult is the outcome of feeding one frame to the recognizer
type FrameResult struct {
	// Partial is the engine's current in-flight hypothesis (may be empty)
	Partial string

	// Final is the finalized utterance text, set only when IsEndpoint is true
	Final string

	// IsEndpoint reports that the engine judged a natural utterance boundary
	IsEndpoint bool
}

// Adapter wraps an Engine with the byte-frame interface the session pipeline
// uses: it converts PCM bytes to samples, and on an endpoint it flushes the
// engine and combines the residual with the incremental text into a single
// finalized string.
type Adapter struct {
	engine      Engine
	frameLength int
}

// NewAdapter wraps an acquired engine
func NewAdapter(engine Engine) *Adapter {
	return &Adapter{
		engine:      engine,
		frameLength: engine.FrameLength(),
	}
}

// FrameSizeBytes returns the byte size of one frame (16-bit samples)
func (a *Adapter) FrameSizeBytes() int {
	return a.frameLength * 2
}

// ProcessFrame feeds exactly one frame of PCM bytes to the engine. When the
// engine signals an endpoint, the engine is flushed and the residual is
// joined onto the incremental text to form the finalized utterance.
func (a *Adapter) ProcessFrame(frame []byte) (FrameResult, error) {
	if len(frame) != a.FrameSizeBytes() {
		return FrameResult{}, fmt.Errorf("frame must be %d bytes, got %d", a.FrameSizeBytes(), len(frame))
	}

	samples, err := audio.BytesToSamples(frame)
	if err != nil {
		return FrameResult{}, err
	}

	text, isEndpoint, err := a.engine.Process(samples)
	if err != nil {
		return FrameResult{}, fmt.Errorf("engine process failed: %w", err)
	}
	text = strings.TrimSpace(text)

	if !isEndpoint {
		return FrameResult{Partial: text}, nil
	}

	flushed, err := a.engine.Flush()
	if err != nil {
		return FrameResult{}, fmt.Errorf("engine flush failed: %w", err)
	}

	return FrameResult{
		Final:      joinNonEmpty(text, strings.TrimSpace(flushed)),
		IsEndpoint: true,
	}, nil
}

// Flush recovers any text trapped in the engine buffer that never reached a
// natural endpoint. Used once at session end.
func (a *Adapter) Flush() (string, error) {
	text, err := a.engine.Flush()
	if err != nil {
		return "", fmt.Errorf("engine flush failed: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Release tears down the underlying engine. Safe to call more than once.
func (a *Adapter) Release() error {
	return a.engine.Release()
}

// joinNonEmpty joins the non-empty parts with a single space
func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
