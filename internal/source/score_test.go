package source

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scoreNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func newTestSource(tier CredibilityTier, domainType DomainType, title, snippet string) *Source {
	return &Source{
		URL:        "https://example.com/a",
		Title:      title,
		Snippet:    snippet,
		DomainType: domainType,
		Tier:       tier,
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	src := newTestSource(TierHigh, DomainAcademic, "Quantum computing advances", "A detailed study of quantum computing advances in error correction, covering surface codes and logical qubits across recent hardware generations.")
	question := "what are the latest advances in quantum computing"

	first := Score(src, question, scoreNow)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Score(src, question, scoreNow))
	}
}

func TestScoreOverallMatchesWeights(t *testing.T) {
	published := scoreNow.Add(-10 * 24 * time.Hour)
	src := newTestSource(TierMedium, DomainNews, "Euro 2024 final report", strings.Repeat("Spain won the Euro 2024 final against England. ", 10))
	src.PublishedAt = &published

	q := Score(src, "who won euro 2024", scoreNow)

	expected := DefaultWeights.Credibility*q.Credibility +
		DefaultWeights.Relevance*q.Relevance +
		DefaultWeights.Completeness*q.Completeness +
		DefaultWeights.Recency*q.Recency +
		DefaultWeights.Authority*q.Authority
	assert.InDelta(t, expected, q.Overall, 1e-9)
	assert.GreaterOrEqual(t, q.Overall, 0.0)
	assert.LessOrEqual(t, q.Overall, 1.0)
}

func TestCredibilityTierMapping(t *testing.T) {
	assert.Equal(t, 1.0, Score(newTestSource(TierHigh, DomainNews, "t", ""), "q w", scoreNow).Credibility)
	assert.Equal(t, 0.7, Score(newTestSource(TierMedium, DomainNews, "t", ""), "q w", scoreNow).Credibility)
	assert.Equal(t, 0.4, Score(newTestSource(TierLow, DomainNews, "t", ""), "q w", scoreNow).Credibility)
}

func TestAuthorityBonus(t *testing.T) {
	academic := Score(newTestSource(TierMedium, DomainAcademic, "t", ""), "q w", scoreNow)
	assert.InDelta(t, 0.8, academic.Authority, 1e-9)

	official := Score(newTestSource(TierHigh, DomainOfficial, "t", ""), "q w", scoreNow)
	assert.Equal(t, 1.0, official.Authority, "bonus must clip at 1")

	commercial := Score(newTestSource(TierMedium, DomainCommercial, "t", ""), "q w", scoreNow)
	assert.InDelta(t, 0.7, commercial.Authority, 1e-9)
}

func TestCompletenessBySnippetLength(t *testing.T) {
	tests := []struct {
		length int
		want   float64
	}{
		{0, 0},
		{39, 0},
		{40, 0},
		{220, 0.5},
		{400, 1.0},
		{1000, 1.0},
	}
	for _, tt := range tests {
		snippet := strings.Repeat("x", tt.length)
		q := Score(newTestSource(TierLow, DomainOther, "t", snippet), "q w", scoreNow)
		assert.InDelta(t, tt.want, q.Completeness, 1e-9, "length %d", tt.length)
	}
}

func TestRecencyBuckets(t *testing.T) {
	tests := []struct {
		age  time.Duration
		want float64
	}{
		{10 * 24 * time.Hour, 1.0},
		{60 * 24 * time.Hour, 0.9},
		{200 * 24 * time.Hour, 0.75},
		{2 * 365 * 24 * time.Hour, 0.5},
		{5 * 365 * 24 * time.Hour, 0.25},
	}
	for _, tt := range tests {
		published := scoreNow.Add(-tt.age)
		src := newTestSource(TierLow, DomainOther, "t", "")
		src.PublishedAt = &published
		q := Score(src, "q w", scoreNow)
		assert.Equal(t, tt.want, q.Recency, "age %s", tt.age)
	}
}

func TestRecencyUnknown(t *testing.T) {
	q := Score(newTestSource(TierLow, DomainOther, "t", ""), "q w", scoreNow)
	assert.Equal(t, 0.5, q.Recency)
}

func TestRelevanceTokenOverlap(t *testing.T) {
	// All question tokens present
	full := Score(newTestSource(TierLow, DomainOther, "Rust memory safety explained", "rust memory safety"), "rust memory safety", scoreNow)
	assert.Equal(t, 1.0, full.Relevance)

	// No overlap at all
	none := Score(newTestSource(TierLow, DomainOther, "gardening tips", "soil and compost"), "rust memory safety", scoreNow)
	assert.Equal(t, 0.0, none.Relevance)

	// Stop words in the question do not count
	partial := Score(newTestSource(TierLow, DomainOther, "the rust language", ""), "what is the rust language", scoreNow)
	require.Equal(t, 1.0, partial.Relevance, "stop words removed before normalizing")
}
