package enrich

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const cardPrompt = `You are an assistant summarizing a live phone call to a home services business.
Given the transcript so far, respond with ONLY a JSON object with these keys:
  "summary": one or two sentences describing what the caller wants,
  "sentiment": one of "positive", "neutral", "negative",
  "urgency": one of "low", "medium", "high",
  "action_items": a list of short strings, each a concrete follow-up task.

Transcript so far:
%s`

// Summarizer produces a summary card for a transcript snapshot
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (Card, error)
}

// GeminiSummarizer generates summary cards with the Gemini API
type GeminiSummarizer struct {
	client *genai.Client
	model  string
}

// NewGeminiSummarizer creates a summarizer backed by the Gemini API
func NewGeminiSummarizer(ctx context.Context, apiKey, model string) (*GeminiSummarizer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiSummarizer{
		client: client,
		model:  model,
	}, nil
}

// Summarize asks the model for a card describing the transcript so far
func (g *GeminiSummarizer) Summarize(ctx context.Context, transcript string) (Card, error) {
	prompt := fmt.Sprintf(cardPrompt, transcript)

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return Card{}, fmt.Errorf("summary generation failed: %w", err)
	}

	return ParseCard(resp.Text())
}
