package source

import (
	"strings"
	"time"
	"unicode"
)

// Weights applied to the five sub-scores. Exported as a single named
// constant set so tests can recompute the exact expected overall.
type ScoreWeights struct {
	Credibility  float64
	Relevance    float64
	Completeness float64
	Recency      float64
	Authority    float64
}

// DefaultWeights is the fixed weighting of the overall score.
var DefaultWeights = ScoreWeights{
	Credibility:  0.30,
	Relevance:    0.30,
	Completeness: 0.15,
	Recency:      0.15,
	Authority:    0.10,
}

// Snippet length bounds for the completeness sub-score.
const (
	completenessMinChars = 40
	completenessMaxChars = 400
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "has": {}, "have": {}, "how": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {}, "or": {},
	"that": {}, "the": {}, "to": {}, "was": {}, "were": {}, "what": {},
	"when": {}, "where": {}, "which": {}, "who": {}, "why": {}, "will": {},
	"with": {},
}

// Score computes the five sub-scores and the weighted overall for a source
// against the session question. It is a pure function of its inputs; the
// caller stores the result on the source.
func Score(src *Source, question string, now time.Time) Quality {
	q := Quality{
		Credibility:  tierScore(src.Tier),
		Relevance:    relevance(src.Title+" "+src.Snippet, question),
		Completeness: completeness(src.Snippet),
		Recency:      recency(src.PublishedAt, now),
	}
	q.Authority = authority(q.Credibility, src.DomainType)
	q.Overall = clamp01(DefaultWeights.Credibility*q.Credibility +
		DefaultWeights.Relevance*q.Relevance +
		DefaultWeights.Completeness*q.Completeness +
		DefaultWeights.Recency*q.Recency +
		DefaultWeights.Authority*q.Authority)
	return q
}

func tierScore(tier CredibilityTier) float64 {
	switch tier {
	case TierHigh:
		return 1.0
	case TierMedium:
		return 0.7
	default:
		return 0.4
	}
}

// relevance is token overlap between text and question, normalized by the
// question's token count.
func relevance(text, question string) float64 {
	questionTokens := tokenize(question)
	if len(questionTokens) == 0 {
		return 0
	}

	textSet := make(map[string]struct{})
	for _, tok := range tokenize(text) {
		textSet[tok] = struct{}{}
	}

	matched := 0
	for _, tok := range questionTokens {
		if _, ok := textSet[tok]; ok {
			matched++
		}
	}
	return clamp01(float64(matched) / float64(len(questionTokens)))
}

// completeness rises linearly with snippet length between the min and max
// bounds.
func completeness(snippet string) float64 {
	n := len(strings.TrimSpace(snippet))
	switch {
	case n < completenessMinChars:
		return 0
	case n >= completenessMaxChars:
		return 1.0
	default:
		return float64(n-completenessMinChars) / float64(completenessMaxChars-completenessMinChars)
	}
}

func recency(publishedAt *time.Time, now time.Time) float64 {
	if publishedAt == nil || publishedAt.IsZero() {
		return 0.5
	}
	age := now.Sub(*publishedAt)
	switch {
	case age <= 30*24*time.Hour:
		return 1.0
	case age <= 90*24*time.Hour:
		return 0.9
	case age <= 365*24*time.Hour:
		return 0.75
	case age <= 3*365*24*time.Hour:
		return 0.5
	default:
		return 0.25
	}
}

// authority is credibility with a bonus for academic and official domains.
func authority(credibility float64, domainType DomainType) float64 {
	if domainType == DomainAcademic || domainType == DomainOfficial {
		return clamp01(credibility + 0.1)
	}
	return credibility
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if _, stop := stopWords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
