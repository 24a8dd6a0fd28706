package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Ajamillion/receptive/internal/asr"
	"github.com/Ajamillion/receptive/internal/audio"
	"github.com/Ajamillion/receptive/internal/enrich"
	"github.com/Ajamillion/receptive/internal/statesink"
	"github.com/Ajamillion/receptive/internal/transcript"
)

// ErrSessionClosed is returned for events arriving after the session has
// reached a terminal state
var ErrSessionClosed = errors.New("session is closed")

// ErrGuardPaused is returned when the duration guard stops a call. The
// connection handler should close the socket once it sees this.
var ErrGuardPaused = errors.New("session paused by duration guard")

// ErrRecognition is returned when the speech engine fails mid-call. The
// engine is torn down and the session terminated; the connection handler
// should close the socket once it sees this.
var ErrRecognition = errors.New("speech recognition failed")

// State tracks where a session is in its lifecycle
type State int

const (
	// StateConnected means the start event arrived and resources are held
	StateConnected State = iota
	// StateListening means at least one media event has been processed
	StateListening
	// StatePaused means the duration guard terminated the call
	StatePaused
	// StateCompleted means the call ended normally
	StateCompleted
)

// String returns a human-readable state name
func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateListening:
		return "listening"
	case StatePaused:
		return "paused"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Recognizer is the frame-oriented speech recognition surface the pipeline
// drives. Implemented by asr.Adapter.
type Recognizer interface {
	FrameSizeBytes() int
	ProcessFrame(frame []byte) (asr.FrameResult, error)
	Flush() (string, error)
	Release() error
}

// Enricher produces throttled summary cards. Implemented by enrich.Throttler.
type Enricher interface {
	Refresh(ctx context.Context, transcript string) (enrich.Card, bool)
	Final(ctx context.Context, transcript string) (enrich.Card, bool)
}

// Sink mirrors call state to the outside world. Implemented by
// statesink.Recorder.
type Sink interface {
	CallStarted(ctx context.Context, callID, streamID string, startedAt time.Time)
	Transcript(ctx context.Context, callID, final, partial string)
	Card(ctx context.Context, callID string, card enrich.Card)
	CallEnded(ctx context.Context, callID, status, transcript string, duration time.Duration)
	Activity(ctx context.Context, callID, kind, message string)
}

// Session is one live call: the audio pipeline, transcript state, and
// enrichment throttle for a single websocket connection. Events for a
// session arrive sequentially from one connection; mu serializes the
// pipeline, while the snapshot read by the HTTP API sits behind its own
// lock so slow enrichment calls cannot stall monitoring.
type Session struct {
	CallID    string
	StreamID  string
	StartedAt time.Time

	state      State
	normalizer *audio.Normalizer
	frames     *audio.FrameBuffer
	recognizer Recognizer
	transcript *transcript.State
	enricher   Enricher

	// last published transcript pair, to suppress redundant sink writes
	lastFinal     string
	lastPartial   string
	cardPublished bool

	manager *Manager
	mu      sync.Mutex

	snapMu sync.Mutex
	snap   Info
}

// HandleMedia runs one media event through the pipeline: guard check,
// decode and resample, frame extraction, recognition, transcript update,
// state publication, and a possible summary refresh. A recognition failure
// is fatal: the session is terminated and ErrRecognition returned.
func (s *Session) HandleMedia(ctx context.Context, mulawData []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateCompleted || s.state == StatePaused {
		return ErrSessionClosed
	}

	// The guard decision comes before the chunk is decoded: audio past the
	// limit is never processed.
	if s.manager.guardExpired(s.StartedAt) {
		s.finishLocked(ctx, StatePaused, true)
		return ErrGuardPaused
	}

	s.state = StateListening
	s.updateSnapshot()
	s.manager.metrics.RecordMediaEvent()

	s.frames.Append(s.normalizer.Normalize(mulawData))

	for _, frame := range s.frames.DrainFrames() {
		if err := s.processFrame(ctx, frame); err != nil {
			s.manager.metrics.RecordRecognitionError()
			s.manager.logger.Error("Recognition failed, terminating session",
				slog.String("call_id", s.CallID),
				slog.String("error", err.Error()))
			// the engine is broken, so skip the flush on the way out
			s.finishLocked(ctx, StateCompleted, false)
			return fmt.Errorf("%w: %v", ErrRecognition, err)
		}
	}

	return nil
}

// processFrame feeds one frame to the recognizer and reflects the result
// in the transcript, the state sink, and the enrichment throttle
func (s *Session) processFrame(ctx context.Context, frame []byte) error {
	result, err := s.recognizer.ProcessFrame(frame)
	if err != nil {
		return err
	}
	s.manager.metrics.RecordFrameProcessed(result.IsEndpoint)

	if result.IsEndpoint {
		s.transcript.ApplyFinal(result.Final)
	} else {
		s.transcript.ApplyPartial(result.Partial)
	}
	s.updateSnapshot()

	s.publishTranscript(ctx)
	s.maybeEnrich(ctx)
	return nil
}

// publishTranscript mirrors the visible transcript when it changed
func (s *Session) publishTranscript(ctx context.Context) {
	final, partial := s.transcript.Final(), s.transcript.Partial()
	if final == s.lastFinal && partial == s.lastPartial {
		return
	}
	s.lastFinal, s.lastPartial = final, partial
	s.manager.sink.Transcript(ctx, s.CallID, final, partial)
}

// maybeEnrich asks the throttler for a fresh card and publishes it. The
// first card of a call also lands in the activity feed.
func (s *Session) maybeEnrich(ctx context.Context) {
	card, ok := s.enricher.Refresh(ctx, s.transcript.Combined())
	if !ok {
		return
	}

	s.manager.sink.Card(ctx, s.CallID, card)
	if !s.cardPublished {
		s.cardPublished = true
		s.manager.sink.Activity(ctx, s.CallID, statesink.ActivityAISummary, card.Summary)
	}
}

// Stop ends the session normally: the stop event arrived or the socket
// closed. Idempotent.
func (s *Session) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateCompleted || s.state == StatePaused {
		return
	}
	s.finishLocked(ctx, StateCompleted, true)
}

// finishLocked runs the teardown shared by every termination path:
// finalize trapped text, run one last enrichment, publish terminal state,
// and release the engine. flushEngine is false when the engine already
// failed and cannot be trusted to drain. Callers hold s.mu.
func (s *Session) finishLocked(ctx context.Context, terminal State, flushEngine bool) {
	// Close the last utterance: the current hypothesis is promoted, and
	// whatever the flush recovers lands after it.
	var flushed string
	if flushEngine {
		text, err := s.recognizer.Flush()
		if err != nil {
			s.manager.logger.Warn("Engine flush failed at session end",
				slog.String("call_id", s.CallID),
				slog.String("error", err.Error()))
		} else {
			flushed = text
		}
	}
	s.transcript.ApplyFinal(flushed)

	if err := s.recognizer.Release(); err != nil {
		s.manager.logger.Warn("Engine release failed",
			slog.String("call_id", s.CallID),
			slog.String("error", err.Error()))
	}

	s.state = terminal
	duration := s.manager.now().Sub(s.StartedAt)
	combined := s.transcript.Combined()
	s.updateSnapshot()

	s.publishTranscript(ctx)

	if card, ok := s.enricher.Final(ctx, combined); ok {
		s.manager.sink.Card(ctx, s.CallID, card)
		if !s.cardPublished {
			s.cardPublished = true
			s.manager.sink.Activity(ctx, s.CallID, statesink.ActivityAISummary, card.Summary)
		}
	}

	status := statesink.StatusCompleted
	activityKind := statesink.ActivityCallCompleted
	message := "Call completed after " + duration.Round(time.Second).String()
	if terminal == StatePaused {
		status = statesink.StatusPaused
		activityKind = statesink.ActivityGuardPaused
		message = "Call paused after reaching the duration limit"
	}

	s.manager.sink.CallEnded(ctx, s.CallID, status, combined, duration)
	s.manager.sink.Activity(ctx, s.CallID, activityKind, message)

	s.manager.remove(s, status, duration)

	s.manager.logger.Info("Session finished",
		slog.String("call_id", s.CallID),
		slog.String("status", status),
		slog.Duration("duration", duration),
		slog.Int("transcript_chars", len(combined)))
}

// updateSnapshot refreshes the monitoring view. Callers hold s.mu.
func (s *Session) updateSnapshot() {
	info := Info{
		CallID:     s.CallID,
		StreamID:   s.StreamID,
		State:      s.state.String(),
		StartedAt:  s.StartedAt,
		Transcript: s.transcript.Combined(),
	}

	s.snapMu.Lock()
	s.snap = info
	s.snapMu.Unlock()
}

// Snapshot returns the session's current public view. It never waits on the
// pipeline, so a slow enrichment call cannot stall the monitoring API.
func (s *Session) Snapshot() Info {
	s.snapMu.Lock()
	info := s.snap
	s.snapMu.Unlock()

	info.Duration = s.manager.now().Sub(info.StartedAt)
	return info
}

// Info is the externally visible summary of one session
type Info struct {
	CallID     string        `json:"call_id"`
	StreamID   string        `json:"stream_id"`
	State      string        `json:"state"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Transcript string        `json:"transcript"`
}
