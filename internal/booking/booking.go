package booking

import (
	"fmt"
	"strings"
	"time"
)

// Request is an appointment booking submitted through the HTTP API
type Request struct {
	CallID          string `json:"call_id,omitempty"`
	Name            string `json:"name"`
	Phone           string `json:"phone,omitempty"`
	Service         string `json:"service"`
	StartTime       string `json:"start_time"` // RFC 3339
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// Validate checks the request and returns the parsed start time
func (r *Request) Validate() (time.Time, error) {
	if strings.TrimSpace(r.Name) == "" {
		return time.Time{}, fmt.Errorf("name cannot be empty")
	}

	if strings.TrimSpace(r.Service) == "" {
		return time.Time{}, fmt.Errorf("service cannot be empty")
	}

	if r.StartTime == "" {
		return time.Time{}, fmt.Errorf("start_time cannot be empty")
	}

	start, err := time.Parse(time.RFC3339, r.StartTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("start_time must be RFC 3339: %w", err)
	}

	if r.DurationMinutes < 0 {
		return time.Time{}, fmt.Errorf("duration_minutes cannot be negative, got %d", r.DurationMinutes)
	}

	return start, nil
}

// Duration returns the appointment length, defaulting to one hour
func (r *Request) Duration() time.Duration {
	if r.DurationMinutes == 0 {
		return time.Hour
	}
	return time.Duration(r.DurationMinutes) * time.Minute
}

// Booking is a confirmed appointment
type Booking struct {
	ID      string    `json:"id"`
	EventID string    `json:"event_id"`
	Link    string    `json:"link,omitempty"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

// clip truncates s to at most n runes for calendar field limits
func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
