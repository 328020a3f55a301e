package search

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	apierrors "github.com/probelab/deepscout/internal/errors"
	"github.com/probelab/deepscout/internal/llm"
	"github.com/rs/zerolog/log"
)

// GroundedProvider runs a query through the language model's own
// search-grounding facility. Hits carry a model-furnished snippet and a URL
// that may need canonicalization downstream (grounding URIs are often
// redirector links).
type GroundedProvider struct {
	lm      llm.Provider
	model   string
	timeout time.Duration
}

// NewGroundedProvider creates a provider backed by the language model.
func NewGroundedProvider(lm llm.Provider, model string, timeout time.Duration) *GroundedProvider {
	return &GroundedProvider{
		lm:      lm,
		model:   model,
		timeout: timeout,
	}
}

func (p *GroundedProvider) Name() string { return "lm_grounded" }

func (p *GroundedProvider) IsConfigured() bool {
	return p.lm != nil && p.lm.SupportsGrounding()
}

// Search asks the model to answer the query with grounding enabled and
// converts the cited grounding chunks into hits.
func (p *GroundedProvider) Search(ctx context.Context, query string, limit int) ([]Hit, Status) {
	if !p.IsConfigured() {
		return nil, StatusAuthMissing
	}
	limit = clampLimit(limit)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.lm.Chat(ctx, llm.ChatRequest{
		Model: p.model,
		Messages: []llm.Message{
			{Role: "user", Content: query},
		},
		Grounding:   true,
		MaxTokens:   1024,
		Temperature: 0,
	})
	if err != nil {
		log.Debug().Err(err).Str("provider", p.Name()).Msg("Grounded search failed")
		return nil, statusFromLMErr(ctx, err)
	}

	if len(resp.GroundingSources) == 0 {
		return nil, StatusEmpty
	}

	// The model's answer stands in for per-source snippets when the
	// grounding chunk carries none of its own.
	snippet := truncateSnippet(resp.Content, 400)

	hits := make([]Hit, 0, len(resp.GroundingSources))
	for _, gs := range resp.GroundingSources {
		if gs.URL == "" {
			continue
		}
		s := gs.Snippet
		if s == "" {
			s = snippet
		}
		hits = append(hits, Hit{
			Title:    gs.Title,
			URL:      gs.URL,
			Snippet:  s,
			Provider: p.Name(),
		})
		if len(hits) >= limit {
			break
		}
	}

	if len(hits) == 0 {
		return nil, StatusEmpty
	}
	return hits, StatusOK
}

// statusFromLMErr maps a language-model failure onto a provider status.
func statusFromLMErr(ctx context.Context, err error) Status {
	switch {
	case ctx.Err() != nil:
		return StatusTimeout
	case apierrors.IsAuthError(err):
		return StatusAuthMissing
	case errors.Is(err, apierrors.ErrRateLimited):
		return StatusRateLimited
	}
	return StatusUpstream5xx
}

// truncateSnippet cuts s to at most n bytes on a rune boundary.
func truncateSnippet(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

var _ Provider = (*GroundedProvider)(nil)
