package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Ajamillion/receptive/internal/metrics"
	"github.com/Ajamillion/receptive/internal/statesink"
)

// ErrInvalid marks request validation failures so the HTTP layer can map
// them to a client error instead of a backend failure
var ErrInvalid = errors.New("invalid booking request")

// CallLog receives booking outcomes for the originating call's document.
// Implemented by statesink.Recorder.
type CallLog interface {
	Activity(ctx context.Context, callID, kind, message string)
	Booking(ctx context.Context, callID string, record statesink.BookingRecord)
}

// Service validates booking requests, schedules them, and mirrors the
// outcome to the originating call's document
type Service struct {
	scheduler Scheduler
	calls     CallLog
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewService wires a scheduler to the call document store
func NewService(scheduler Scheduler, calls CallLog, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		scheduler: scheduler,
		calls:     calls,
		metrics:   m,
		logger:    logger,
	}
}

// Create books the appointment. Validation errors are returned as-is so the
// HTTP layer can distinguish them from backend failures.
func (s *Service) Create(ctx context.Context, req *Request) (*Booking, error) {
	start, err := req.Validate()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	booked, err := s.scheduler.Book(ctx, req, start)
	if err != nil {
		s.metrics.RecordBooking(false)
		s.recordActivity(ctx, req.CallID, statesink.ActivityBookingFailed,
			fmt.Sprintf("Booking failed for %s", req.Service))
		s.logger.Error("Booking failed",
			slog.String("service", req.Service),
			slog.String("error", err.Error()))
		return nil, err
	}

	s.metrics.RecordBooking(true)
	if req.CallID != "" {
		s.calls.Booking(ctx, req.CallID, statesink.BookingRecord{
			BookingID: booked.ID,
			EventID:   booked.EventID,
			Link:      booked.Link,
			Service:   req.Service,
			Start:     booked.Start,
			End:       booked.End,
		})
	}
	s.recordActivity(ctx, req.CallID, statesink.ActivityBookingCreated,
		fmt.Sprintf("Booked %s for %s", req.Service, booked.Start.Format("Mon Jan 2 15:04")))

	s.logger.Info("Booking created",
		slog.String("booking_id", booked.ID),
		slog.String("event_id", booked.EventID),
		slog.String("service", req.Service))

	return booked, nil
}

// recordActivity logs the outcome on the call's feed when the booking came
// out of a call
func (s *Service) recordActivity(ctx context.Context, callID, kind, message string) {
	if callID == "" {
		return
	}
	s.calls.Activity(ctx, callID, kind, message)
}
