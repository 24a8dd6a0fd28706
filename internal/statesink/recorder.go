package statesink

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Ajamillion/receptive/internal/enrich"
)

// Activity feed entry kinds
const (
	ActivityCallStarted    = "call_started"
	ActivityAISummary      = "ai_summary"
	ActivityCallCompleted  = "call_completed"
	ActivityGuardPaused    = "guard_paused"
	ActivityBookingCreated = "booking_created"
	ActivityBookingFailed  = "booking_failed"
)

// Call document status values
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusPaused     = "paused"
)

// Recorder mirrors call state into the document store. Every write is best
// effort: a failed write is logged and dropped, never surfaced to the audio
// path. The store is a dashboard, not a system of record.
type Recorder struct {
	client *Client
	logger *slog.Logger
}

// NewRecorder wraps a document store client
func NewRecorder(client *Client, logger *slog.Logger) *Recorder {
	return &Recorder{
		client: client,
		logger: logger,
	}
}

// CallStarted creates the call document and logs the opening activity entry
func (r *Recorder) CallStarted(ctx context.Context, callID, streamID string, startedAt time.Time) {
	r.patch(ctx, callPath(callID), map[string]any{
		"callSid":    callID,
		"streamSid":  streamID,
		"status":     StatusInProgress,
		"startedAt":  startedAt.UTC().Format(time.RFC3339),
		"transcript": transcriptDoc("", ""),
	})
	r.Activity(ctx, callID, ActivityCallStarted, "Call connected")
}

// Transcript publishes the current visible transcript. Finalized text and
// the live hypothesis are kept separate so the dashboard can render the
// hypothesis differently.
func (r *Recorder) Transcript(ctx context.Context, callID, final, partial string) {
	r.patch(ctx, callPath(callID), map[string]any{
		"transcript": transcriptDoc(final, partial),
	})
}

// Card publishes a fresh AI summary card
func (r *Recorder) Card(ctx context.Context, callID string, card enrich.Card) {
	r.patch(ctx, callPath(callID), map[string]any{
		"ai": card,
	})
}

// CallEnded marks the call finished with the given status and final state
func (r *Recorder) CallEnded(ctx context.Context, callID, status, transcript string, duration time.Duration) {
	r.patch(ctx, callPath(callID), map[string]any{
		"status":          status,
		"transcript":      transcriptDoc(transcript, ""),
		"endedAt":         time.Now().UTC().Format(time.RFC3339),
		"durationSeconds": int(duration.Seconds()),
	})
}

// BookingRecord is the booking summary attached to a call document
type BookingRecord struct {
	BookingID string    `json:"bookingId"`
	EventID   string    `json:"eventId"`
	Link      string    `json:"link,omitempty"`
	Service   string    `json:"service"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

// Booking attaches a confirmed booking to the call document
func (r *Recorder) Booking(ctx context.Context, callID string, record BookingRecord) {
	r.patch(ctx, callPath(callID), map[string]any{
		"booking": record,
	})
}

// Activity appends an entry to the call's activity feed
func (r *Recorder) Activity(ctx context.Context, callID, kind, message string) {
	entry := map[string]any{
		"kind":    kind,
		"message": message,
		"at":      time.Now().UTC().Format(time.RFC3339),
	}
	if _, err := r.client.Push(ctx, callPath(callID)+"/activity", entry); err != nil {
		r.logger.Warn("Failed to record activity entry",
			slog.String("call_id", callID),
			slog.String("kind", kind),
			slog.String("error", err.Error()))
	}
}

func (r *Recorder) patch(ctx context.Context, path string, data map[string]any) {
	if err := r.client.Patch(ctx, path, data); err != nil {
		r.logger.Warn("Failed to update call document",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}

func callPath(callID string) string {
	return fmt.Sprintf("calls/%s", callID)
}

func transcriptDoc(final, partial string) map[string]any {
	return map[string]any{
		"final":     final,
		"partial":   partial,
		"updatedAt": time.Now().UTC().Format(time.RFC3339),
	}
}
