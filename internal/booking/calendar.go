package booking

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Config contains calendar backend configuration
type Config struct {
	CalendarID      string
	CredentialsJSON string // inline service account JSON, or base64 of it
	CredentialsFile string
	TimeZone        string
}

// Scheduler places an appointment on a calendar
type Scheduler interface {
	Book(ctx context.Context, req *Request, start time.Time) (*Booking, error)
}

// CalendarScheduler books appointments on a Google Calendar
type CalendarScheduler struct {
	service    *calendar.Service
	calendarID string
	timeZone   string
}

// NewCalendarScheduler authenticates against the calendar API with a
// service account
func NewCalendarScheduler(ctx context.Context, config Config) (*CalendarScheduler, error) {
	if config.CalendarID == "" {
		return nil, fmt.Errorf("calendar_id cannot be empty")
	}

	opts, err := credentialOptions(config)
	if err != nil {
		return nil, err
	}

	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return &CalendarScheduler{
		service:    service,
		calendarID: config.CalendarID,
		timeZone:   config.TimeZone,
	}, nil
}

// credentialOptions resolves service account credentials from inline JSON,
// base64-encoded JSON, or a key file, in that order
func credentialOptions(config Config) ([]option.ClientOption, error) {
	if config.CredentialsJSON != "" {
		raw := []byte(config.CredentialsJSON)
		if !strings.HasPrefix(strings.TrimSpace(config.CredentialsJSON), "{") {
			decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(config.CredentialsJSON))
			if err != nil {
				return nil, fmt.Errorf("credentials_json is neither JSON nor base64: %w", err)
			}
			raw = decoded
		}
		return []option.ClientOption{
			option.WithCredentialsJSON(raw),
			option.WithScopes(calendar.CalendarScope),
		}, nil
	}

	if config.CredentialsFile != "" {
		return []option.ClientOption{
			option.WithCredentialsFile(config.CredentialsFile),
			option.WithScopes(calendar.CalendarScope),
		}, nil
	}

	return nil, fmt.Errorf("no calendar credentials configured")
}

// Book inserts the appointment as a calendar event
func (s *CalendarScheduler) Book(ctx context.Context, req *Request, start time.Time) (*Booking, error) {
	end := start.Add(req.Duration())

	event := &calendar.Event{
		Summary:     buildSummary(req),
		Description: buildDescription(req),
		Start: &calendar.EventDateTime{
			DateTime: start.Format(time.RFC3339),
			TimeZone: s.timeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: end.Format(time.RFC3339),
			TimeZone: s.timeZone,
		},
	}

	created, err := s.service.Events.Insert(s.calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to insert calendar event: %w", err)
	}

	return &Booking{
		ID:      uuid.NewString(),
		EventID: created.Id,
		Link:    created.HtmlLink,
		Start:   start,
		End:     end,
	}, nil
}

func buildSummary(req *Request) string {
	return fmt.Sprintf("%s - %s", clip(strings.TrimSpace(req.Service), 80), clip(strings.TrimSpace(req.Name), 40))
}

func buildDescription(req *Request) string {
	var lines []string
	if req.Phone != "" {
		lines = append(lines, "Phone: "+clip(req.Phone, 40))
	}
	if req.CallID != "" {
		lines = append(lines, "Call: "+req.CallID)
	}
	if req.Notes != "" {
		lines = append(lines, clip(req.Notes, 1000))
	}
	return strings.Join(lines, "\n")
}
