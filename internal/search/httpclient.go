package search

import (
	"net/http"
	"time"
)

// NewHTTPClient builds the shared search HTTP client: keep-alive connection
// reuse with a hard max-connections setting, per-call timeout applied by
// the caller's context.
func NewHTTPClient(timeout time.Duration, maxConns int) *http.Client {
	if maxConns < 1 {
		maxConns = 64
	}
	transport := &http.Transport{
		MaxIdleConns:        maxConns,
		MaxConnsPerHost:     maxConns,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
