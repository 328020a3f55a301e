// Package llm contains language-model client implementations. The research
// agents (planner, reflector, finalizer) and the grounded search provider
// all talk to the model through the Provider interface.
package llm

import (
	"context"
)

// Message represents a chat message
type Message struct {
	Role    string `json:"role"`    // "user", "assistant", "system"
	Content string `json:"content"` // Text content
}

// ChatRequest represents a request to the language model
type ChatRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	System      string    `json:"system,omitempty"`
	// Grounding enables the model's own web-search grounding facility.
	// Responses then carry GroundingSources alongside the text.
	Grounding bool `json:"grounding,omitempty"`
}

// GroundingSource is a web source surfaced by the model's grounding facility.
type GroundingSource struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// ChatResponse represents a response from the language model
type ChatResponse struct {
	Content          string            `json:"content"`
	Model            string            `json:"model"`
	StopReason       string            `json:"stop_reason,omitempty"`
	InputTokens      int               `json:"input_tokens,omitempty"`
	OutputTokens     int               `json:"output_tokens,omitempty"`
	GroundingSources []GroundingSource `json:"grounding_sources,omitempty"`
}

// Provider defines the interface for language-model backends
type Provider interface {
	// Chat sends a chat request and returns the response
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// SupportsGrounding reports whether the backend can serve grounded requests
	SupportsGrounding() bool

	// Name returns the provider name
	Name() string
}
