package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Event discriminants carried in the "event" field of every inbound message
const (
	EventStart = "start"
	EventMedia = "media"
	EventStop  = "stop"
)

// Envelope is the raw inbound message shape. Exactly one of Start or Media is
// populated depending on the discriminant; stop events carry no payload.
type Envelope struct {
	Event string        `json:"event"`
	Start *StartPayload `json:"start,omitempty"`
	Media *MediaPayload `json:"media,omitempty"`
}

// StartPayload identifies the call behind a new media stream
type StartPayload struct {
	CallSID   string `json:"callSid"`
	StreamSID string `json:"streamSid"`
}

// MediaPayload carries one base64-encoded chunk of companded audio
type MediaPayload struct {
	Payload string `json:"payload"`
}

// ParsedEvent is a validated inbound protocol event
type ParsedEvent struct {
	Kind  string
	Start *StartPayload
	Media *MediaPayload
}

// ErrUnknownEvent marks messages whose discriminant is not part of the
// protocol. Callers ignore these rather than failing the session.
type ErrUnknownEvent struct {
	Event string
}

func (e *ErrUnknownEvent) Error() string {
	return fmt.Sprintf("unknown event type: %q", e.Event)
}

// Parse decodes and validates one inbound protocol message
func Parse(data []byte) (*ParsedEvent, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse event JSON: %w", err)
	}

	switch env.Event {
	case EventStart:
		if env.Start == nil {
			return nil, fmt.Errorf("start event missing start payload")
		}
		return &ParsedEvent{Kind: EventStart, Start: env.Start}, nil

	case EventMedia:
		if env.Media == nil || env.Media.Payload == "" {
			return nil, fmt.Errorf("media event missing payload")
		}
		return &ParsedEvent{Kind: EventMedia, Media: env.Media}, nil

	case EventStop:
		return &ParsedEvent{Kind: EventStop}, nil

	default:
		return nil, &ErrUnknownEvent{Event: env.Event}
	}
}

// CallID returns the call identifier, falling back to the stream identifier
// when the transport did not supply one
func (s *StartPayload) CallID() string {
	if s.CallSID != "" {
		return s.CallSID
	}
	if s.StreamSID != "" {
		return s.StreamSID
	}
	return "stream"
}

// StreamID returns the stream identifier with a stable fallback
func (s *StartPayload) StreamID() string {
	if s.StreamSID != "" {
		return s.StreamSID
	}
	return "stream"
}

// DecodeAudio decodes the base64 audio payload of a media event
func (m *MediaPayload) DecodeAudio() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(m.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio payload: %w", err)
	}
	return data, nil
}

// String returns a human-readable representation of the event
func (e *ParsedEvent) String() string {
	switch e.Kind {
	case EventStart:
		return fmt.Sprintf("Event{Kind:start, CallSID:%q, StreamSID:%q}", e.Start.CallSID, e.Start.StreamSID)
	case EventMedia:
		return fmt.Sprintf("Event{Kind:media, PayloadLen:%d}", len(e.Media.Payload))
	default:
		return fmt.Sprintf("Event{Kind:%s}", e.Kind)
	}
}
