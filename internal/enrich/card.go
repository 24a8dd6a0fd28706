package enrich

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnparsable indicates the model produced output that could not be
// interpreted as a summary card. Callers fall back to DefaultCard.
var ErrUnparsable = errors.New("summary response is not a valid card")

// Sentiment classifies the caller's tone
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Urgency classifies how quickly the caller needs help
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Card is the structured AI summary of a call in progress
type Card struct {
	Summary     string    `json:"summary"`
	Sentiment   Sentiment `json:"sentiment"`
	Urgency     Urgency   `json:"urgency"`
	ActionItems []string  `json:"action_items"`
}

// DefaultCard is shown whenever summarization fails. Dashboards always have
// something well-formed to render.
func DefaultCard() Card {
	return Card{
		Summary:     "AI summary temporarily unavailable.",
		Sentiment:   SentimentNeutral,
		Urgency:     UrgencyMedium,
		ActionItems: []string{},
	}
}

// ParseCard interprets raw model output as a card. Code fences around the
// JSON body are tolerated; out-of-range enum values are coerced to the
// neutral defaults rather than rejected.
func ParseCard(raw string) (Card, error) {
	cleaned := stripCodeFence(raw)
	if cleaned == "" {
		return Card{}, fmt.Errorf("%w: empty response", ErrUnparsable)
	}

	var card Card
	if err := json.Unmarshal([]byte(cleaned), &card); err != nil {
		return Card{}, fmt.Errorf("%w: %v", ErrUnparsable, err)
	}

	card.normalize()
	return card, nil
}

// normalize coerces missing or unknown fields to safe values
func (c *Card) normalize() {
	c.Summary = strings.TrimSpace(c.Summary)
	if c.Summary == "" {
		c.Summary = DefaultCard().Summary
	}

	switch c.Sentiment {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
	default:
		c.Sentiment = SentimentNeutral
	}

	switch c.Urgency {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
	default:
		c.Urgency = UrgencyMedium
	}

	if c.ActionItems == nil {
		c.ActionItems = []string{}
	}
}

// stripCodeFence removes a surrounding markdown code fence, with or without
// a language tag, from model output
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 && !strings.HasPrefix(s, "{") {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
