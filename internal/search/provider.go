// Package search implements the web-search providers and the dispatcher
// that drives them as a prioritized fallback chain.
package search

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// MaxLimit bounds how many hits a single provider call may request.
const MaxLimit = 20

// Status is the outcome of one provider call. Providers never return
// errors; every failure mode is a status so the dispatcher can fall over
// without inspecting exceptions.
type Status string

const (
	StatusOK          Status = "ok"
	StatusEmpty       Status = "empty"
	StatusAuthMissing Status = "auth_missing"
	StatusRateLimited Status = "rate_limited"
	StatusUpstream5xx Status = "upstream_5xx"
	StatusTimeout     Status = "timeout"
	StatusMalformed   Status = "malformed"
)

// Hit is one candidate result from a single provider call, before
// deduplication and scoring.
type Hit struct {
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Snippet     string     `json:"snippet"`
	Provider    string     `json:"provider"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// Provider executes one query against one backend and returns normalized
// hits.
type Provider interface {
	// Search returns at most limit hits in backend rank order plus a status.
	// It must honor ctx cancellation and never panic on malformed payloads.
	Search(ctx context.Context, query string, limit int) ([]Hit, Status)

	// IsConfigured reports whether required credentials are present.
	// Unconfigured providers are excluded at dispatcher-init time.
	IsConfigured() bool

	// Name returns the provider name.
	Name() string
}

// statusFromHTTP maps an upstream HTTP status code to a provider status.
func statusFromHTTP(code int) Status {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return StatusAuthMissing
	case code == http.StatusTooManyRequests:
		return StatusRateLimited
	case code >= 500:
		return StatusUpstream5xx
	default:
		return StatusUpstream5xx
	}
}

// statusFromErr maps a transport error to a provider status.
func statusFromErr(err error) Status {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return StatusTimeout
	}
	return StatusUpstream5xx
}

func clampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
