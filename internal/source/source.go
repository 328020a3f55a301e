// Package source implements the quality pipeline that gates what reaches
// synthesis: URL canonicalization, domain classification, multi-factor
// scoring, and retention filtering. Everything here is pure and CPU-bound.
package source

import (
	"time"
)

// DomainType categorizes a source by the kind of site hosting it.
type DomainType string

const (
	DomainAcademic   DomainType = "academic"
	DomainNews       DomainType = "news"
	DomainOfficial   DomainType = "official"
	DomainCommercial DomainType = "commercial"
	DomainReference  DomainType = "reference"
	DomainOther      DomainType = "other"
)

// CredibilityTier is the coarse trust level assigned by classification.
type CredibilityTier string

const (
	TierHigh   CredibilityTier = "high"
	TierMedium CredibilityTier = "medium"
	TierLow    CredibilityTier = "low"
)

// Rank orders tiers so filters can compare them. Higher is more credible.
func (t CredibilityTier) Rank() int {
	switch t {
	case TierHigh:
		return 3
	case TierMedium:
		return 2
	case TierLow:
		return 1
	default:
		return 0
	}
}

// ParseTier maps a wire filter value to a minimum tier. "any" and unknown
// values impose no tier floor.
func ParseTier(s string) CredibilityTier {
	switch s {
	case "high":
		return TierHigh
	case "medium":
		return TierMedium
	default:
		return TierLow
	}
}

// Quality holds the five sub-scores plus the weighted overall, all in [0,1].
type Quality struct {
	Credibility  float64 `json:"credibility"`
	Relevance    float64 `json:"relevance"`
	Completeness float64 `json:"completeness"`
	Recency      float64 `json:"recency"`
	Authority    float64 `json:"authority"`
	Overall      float64 `json:"overall"`
}

// Source is a deduplicated, classified, and scored hit merged into a session.
type Source struct {
	URL         string          `json:"url"` // canonical form
	Title       string          `json:"title"`
	Snippet     string          `json:"snippet"`
	Provider    string          `json:"provider"` // first provider that supplied it
	DomainType  DomainType      `json:"domain_type"`
	Tier        CredibilityTier `json:"credibility_tier"`
	Quality     Quality         `json:"quality"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
	Label       int             `json:"label,omitempty"` // citation marker, assigned at finalization
}
