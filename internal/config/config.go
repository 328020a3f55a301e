// Package config holds the process-wide configuration surface. It is loaded
// once at startup and treated as immutable afterwards; per-request overrides
// are snapshotted into the session, never written back.
package config

import (
	"fmt"
	"runtime"
	"time"
)

// Defaults for the research control plane.
const (
	DefaultSessionDeadline     = 120 * time.Second
	DefaultPerProviderTimeout  = 10 * time.Second
	DefaultPerProviderRetries  = 2
	DefaultProviderConcurrency = 4
	DefaultInitialQueryCount   = 3
	DefaultFollowupQueryCount  = 2
	DefaultMaxLoops            = 2
	DefaultMaxSourcesTotal     = 50
	DefaultQualityThreshold    = 0.6
	DefaultHTTPMaxConnections  = 64
	DefaultListenAddr          = ":7655"
	maxParallelSearches        = 16
	minParallelSearches        = 4
)

// Settings is the full configuration surface.
type Settings struct {
	// Language model
	LMAPIKey       string `yaml:"lm_api_key"`
	LMDefaultModel string `yaml:"lm_default_model"`
	LMBaseURL      string `yaml:"lm_base_url"`

	// Search provider credentials; absence removes the provider from the chain
	GoogleCSEID  string `yaml:"google_cse_id"`
	GoogleAPIKey string `yaml:"google_api_key"`
	SearchAPIKey string `yaml:"searchapi_key"`

	// Budgets and limits
	SessionDeadline     time.Duration `yaml:"session_deadline"`
	PerProviderTimeout  time.Duration `yaml:"per_provider_timeout"`
	PerProviderRetries  int           `yaml:"per_provider_retries"`
	ProviderConcurrency int           `yaml:"provider_concurrency"`
	ParallelSearches    int           `yaml:"parallel_searches"`
	PerQueryLimit       int           `yaml:"per_query_limit"`

	InitialQueryCountDefault int `yaml:"initial_query_count_default"`
	FollowupQueryCount       int `yaml:"followup_query_count"`
	MaxLoopsDefault          int `yaml:"max_loops_default"`
	MaxSourcesTotal          int `yaml:"max_sources_total"`

	QualityThresholdDefault float64 `yaml:"quality_threshold_default"`

	HTTPMaxConnections int `yaml:"http_max_connections"`

	// Server
	ListenAddr string `yaml:"listen_addr"`
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"`
}

// DefaultSettings returns a Settings populated with defaults.
func DefaultSettings() *Settings {
	return &Settings{
		LMDefaultModel:           "gemini-2.0-flash",
		SessionDeadline:          DefaultSessionDeadline,
		PerProviderTimeout:       DefaultPerProviderTimeout,
		PerProviderRetries:       DefaultPerProviderRetries,
		ProviderConcurrency:      DefaultProviderConcurrency,
		ParallelSearches:         autoParallelSearches(),
		PerQueryLimit:            10,
		InitialQueryCountDefault: DefaultInitialQueryCount,
		FollowupQueryCount:       DefaultFollowupQueryCount,
		MaxLoopsDefault:          DefaultMaxLoops,
		MaxSourcesTotal:          DefaultMaxSourcesTotal,
		QualityThresholdDefault:  DefaultQualityThreshold,
		HTTPMaxConnections:       DefaultHTTPMaxConnections,
		ListenAddr:               DefaultListenAddr,
		LogLevel:                 "info",
		LogFormat:                "auto",
	}
}

// autoParallelSearches computes the default search fan-out bound:
// max(4, 2*CPU), capped at 16.
func autoParallelSearches() int {
	n := 2 * runtime.NumCPU()
	if n < minParallelSearches {
		n = minParallelSearches
	}
	if n > maxParallelSearches {
		n = maxParallelSearches
	}
	return n
}

// Validate checks the configuration for out-of-range values.
func (s *Settings) Validate() error {
	if s.SessionDeadline <= 0 {
		return fmt.Errorf("session_deadline must be positive, got %s", s.SessionDeadline)
	}
	if s.PerProviderTimeout <= 0 {
		return fmt.Errorf("per_provider_timeout must be positive, got %s", s.PerProviderTimeout)
	}
	if s.PerProviderRetries < 0 {
		return fmt.Errorf("per_provider_retries must be >= 0, got %d", s.PerProviderRetries)
	}
	if s.ProviderConcurrency < 1 {
		return fmt.Errorf("provider_concurrency must be >= 1, got %d", s.ProviderConcurrency)
	}
	if s.ParallelSearches < 1 || s.ParallelSearches > maxParallelSearches {
		return fmt.Errorf("parallel_searches must be in 1..%d, got %d", maxParallelSearches, s.ParallelSearches)
	}
	if s.PerQueryLimit < 1 || s.PerQueryLimit > 20 {
		return fmt.Errorf("per_query_limit must be in 1..20, got %d", s.PerQueryLimit)
	}
	if s.InitialQueryCountDefault < 1 || s.InitialQueryCountDefault > 10 {
		return fmt.Errorf("initial_query_count_default must be in 1..10, got %d", s.InitialQueryCountDefault)
	}
	if s.FollowupQueryCount < 0 || s.FollowupQueryCount > 10 {
		return fmt.Errorf("followup_query_count must be in 0..10, got %d", s.FollowupQueryCount)
	}
	if s.MaxLoopsDefault < 1 || s.MaxLoopsDefault > 10 {
		return fmt.Errorf("max_loops_default must be in 1..10, got %d", s.MaxLoopsDefault)
	}
	if s.MaxSourcesTotal < 1 {
		return fmt.Errorf("max_sources_total must be >= 1, got %d", s.MaxSourcesTotal)
	}
	if s.QualityThresholdDefault < 0 || s.QualityThresholdDefault > 1 {
		return fmt.Errorf("quality_threshold_default must be in [0,1], got %f", s.QualityThresholdDefault)
	}
	if s.HTTPMaxConnections < 1 {
		return fmt.Errorf("http_max_connections must be >= 1, got %d", s.HTTPMaxConnections)
	}
	return nil
}

// HasLM reports whether a language model is configured. Without one the
// orchestrator is not ready and the API answers 503.
func (s *Settings) HasLM() bool {
	return s.LMAPIKey != ""
}
