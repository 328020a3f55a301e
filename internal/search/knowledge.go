package search

import (
	"context"
	"time"

	"github.com/probelab/deepscout/internal/llm"
)

// KnowledgeProvider is the last-resort fallback: no network search at all.
// It asks the model to answer from its own knowledge and returns at most one
// synthetic reference hit so a session never collapses to zero sources.
type KnowledgeProvider struct {
	lm      llm.Provider
	model   string
	timeout time.Duration
}

// NewKnowledgeProvider creates the knowledge fallback provider.
func NewKnowledgeProvider(lm llm.Provider, model string, timeout time.Duration) *KnowledgeProvider {
	return &KnowledgeProvider{
		lm:      lm,
		model:   model,
		timeout: timeout,
	}
}

func (p *KnowledgeProvider) Name() string { return "knowledge_fallback" }

func (p *KnowledgeProvider) IsConfigured() bool { return p.lm != nil }

// Search returns a single synthetic hit carrying the model's own summary.
// The placeholder URL keys the hit into the session like any other source.
func (p *KnowledgeProvider) Search(ctx context.Context, query string, limit int) ([]Hit, Status) {
	if !p.IsConfigured() {
		return nil, StatusAuthMissing
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.lm.Chat(ctx, llm.ChatRequest{
		Model: p.model,
		Messages: []llm.Message{
			{Role: "user", Content: "Briefly summarize what is known about: " + query},
		},
		MaxTokens:   512,
		Temperature: 0,
	})
	if err != nil {
		return nil, statusFromLMErr(ctx, err)
	}
	if resp.Content == "" {
		return nil, StatusEmpty
	}

	return []Hit{{
		Title:    "Model knowledge: " + query,
		URL:      "https://knowledge.internal/" + slugify(query),
		Snippet:  resp.Content,
		Provider: p.Name(),
	}}, StatusOK
}

// slugify keeps the synthetic URL stable and parseable for a given query.
func slugify(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case r == ' ' || r == '-' || r == '_':
			out = append(out, '-')
		}
	}
	if len(out) > 64 {
		out = out[:64]
	}
	return string(out)
}

var _ Provider = (*KnowledgeProvider)(nil)
