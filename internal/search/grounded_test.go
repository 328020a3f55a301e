package search

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	apierrors "github.com/probelab/deepscout/internal/errors"
	"github.com/probelab/deepscout/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLM is a scripted language model for provider tests.
type fakeLM struct {
	grounding bool
	resp      llm.ChatResponse
	err       error
	lastReq   llm.ChatRequest
}

func (f *fakeLM) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	resp := f.resp
	return &resp, nil
}

func (f *fakeLM) SupportsGrounding() bool { return f.grounding }
func (f *fakeLM) Name() string            { return "fake" }

func TestGroundedProviderSearch(t *testing.T) {
	lm := &fakeLM{
		grounding: true,
		resp: llm.ChatResponse{
			Content: "Spain won Euro 2024.",
			GroundingSources: []llm.GroundingSource{
				{Title: "UEFA", URL: "https://uefa.com/euro2024", Snippet: "Final report"},
				{Title: "BBC", URL: "https://bbc.com/sport"},
				{Title: "no url"},
			},
		},
	}

	p := NewGroundedProvider(lm, "gemini-2.0-flash", time.Second)
	require.True(t, p.IsConfigured())

	hits, status := p.Search(context.Background(), "who won euro 2024", 10)
	assert.Equal(t, StatusOK, status)
	assert.True(t, lm.lastReq.Grounding)
	require.Len(t, hits, 2)
	assert.Equal(t, "Final report", hits[0].Snippet)
	assert.Equal(t, "Spain won Euro 2024.", hits[1].Snippet, "model answer backs an empty chunk snippet")
	assert.Equal(t, "lm_grounded", hits[0].Provider)
}

func TestGroundedProviderNoGroundingSupport(t *testing.T) {
	p := NewGroundedProvider(&fakeLM{grounding: false}, "gpt-4o", time.Second)
	assert.False(t, p.IsConfigured())
	_, status := p.Search(context.Background(), "q", 5)
	assert.Equal(t, StatusAuthMissing, status)
}

func TestGroundedProviderModelFailure(t *testing.T) {
	p := NewGroundedProvider(&fakeLM{grounding: true, err: errors.New("boom")}, "m", time.Second)
	_, status := p.Search(context.Background(), "q", 5)
	assert.Equal(t, StatusUpstream5xx, status)
}

func TestGroundedProviderAuthAndRateStatuses(t *testing.T) {
	auth := apierrors.WrapProviderError("chat", "gemini", errors.New("denied"), 401)
	p := NewGroundedProvider(&fakeLM{grounding: true, err: auth}, "m", time.Second)
	_, status := p.Search(context.Background(), "q", 5)
	assert.Equal(t, StatusAuthMissing, status)

	rate := apierrors.WrapProviderError("chat", "gemini", errors.New("slow down"), 429)
	p = NewGroundedProvider(&fakeLM{grounding: true, err: rate}, "m", time.Second)
	_, status = p.Search(context.Background(), "q", 5)
	assert.Equal(t, StatusRateLimited, status)
}

func TestGroundedProviderSnippetCutOnRuneBoundary(t *testing.T) {
	// 200 three-byte runes: the 400-byte cut falls inside a rune and must
	// back up to the previous boundary.
	lm := &fakeLM{
		grounding: true,
		resp: llm.ChatResponse{
			Content:          strings.Repeat("€", 200),
			GroundingSources: []llm.GroundingSource{{Title: "T", URL: "https://a.com"}},
		},
	}

	p := NewGroundedProvider(lm, "m", time.Second)
	hits, status := p.Search(context.Background(), "q", 5)

	require.Equal(t, StatusOK, status)
	require.Len(t, hits, 1)
	assert.Equal(t, 399, len(hits[0].Snippet))
	assert.True(t, utf8.ValidString(hits[0].Snippet))
}

func TestTruncateSnippet(t *testing.T) {
	assert.Equal(t, "abc", truncateSnippet("abc", 400))
	assert.Equal(t, "ab", truncateSnippet("abcd", 2))
	assert.Equal(t, "a", truncateSnippet("aé", 2), "never splits a multi-byte rune")
}

func TestGroundedProviderNoChunks(t *testing.T) {
	lm := &fakeLM{grounding: true, resp: llm.ChatResponse{Content: "an ungrounded answer"}}
	p := NewGroundedProvider(lm, "m", time.Second)
	_, status := p.Search(context.Background(), "q", 5)
	assert.Equal(t, StatusEmpty, status)
}

func TestKnowledgeProviderSearch(t *testing.T) {
	lm := &fakeLM{resp: llm.ChatResponse{Content: "Everything known about the topic."}}
	p := NewKnowledgeProvider(lm, "m", time.Second)
	require.True(t, p.IsConfigured())

	hits, status := p.Search(context.Background(), "Rust Memory Safety", 10)
	assert.Equal(t, StatusOK, status)
	require.Len(t, hits, 1, "knowledge fallback yields exactly one synthetic hit")
	assert.Equal(t, "https://knowledge.internal/rust-memory-safety", hits[0].URL)
	assert.Equal(t, "knowledge_fallback", hits[0].Provider)
	assert.True(t, strings.Contains(lm.lastReq.Messages[0].Content, "Rust Memory Safety"))
	assert.False(t, lm.lastReq.Grounding)
}

func TestKnowledgeProviderEmptyAnswer(t *testing.T) {
	p := NewKnowledgeProvider(&fakeLM{}, "m", time.Second)
	_, status := p.Search(context.Background(), "q", 5)
	assert.Equal(t, StatusEmpty, status)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "who-won-euro-2024", slugify("Who won Euro 2024?"))
	assert.Equal(t, strings.Repeat("a", 64), slugify(strings.Repeat("a", 100)))
}
