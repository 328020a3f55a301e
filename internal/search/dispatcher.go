package search

import (
	"context"
	"time"

	"github.com/probelab/deepscout/internal/metrics"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// DispatchStatus is the outcome of one dispatched query across the whole
// fallback chain.
type DispatchStatus string

const (
	DispatchOK           DispatchStatus = "ok"
	DispatchAllExhausted DispatchStatus = "all_exhausted"
)

// Failure records one provider failure for the session diagnostics trail.
type Failure struct {
	Provider string    `json:"provider"`
	Query    string    `json:"query"`
	Status   Status    `json:"status"`
	At       time.Time `json:"at"`
}

// Result is what one dispatched query produces.
type Result struct {
	Hits     []Hit
	Status   DispatchStatus
	Provider string // provider that served the hits, empty when exhausted
	Failures []Failure
}

// DispatcherConfig bounds dispatcher behavior.
type DispatcherConfig struct {
	PerQueryLimit       int
	ProviderConcurrency int
	PerProviderTimeout  time.Duration
}

// Dispatcher drives a prioritized provider fallback chain. The chain is
// fixed at construction, filtered to configured providers. The dispatcher
// itself never retries; it falls over to the next provider.
type Dispatcher struct {
	chain []Provider
	sems  map[string]*semaphore.Weighted
	cfg   DispatcherConfig
}

// NewDispatcher builds a dispatcher over the configured subset of the given
// chain, preserving priority order.
func NewDispatcher(chain []Provider, cfg DispatcherConfig) *Dispatcher {
	if cfg.PerQueryLimit < 1 {
		cfg.PerQueryLimit = 10
	}
	if cfg.ProviderConcurrency < 1 {
		cfg.ProviderConcurrency = 4
	}
	if cfg.PerProviderTimeout <= 0 {
		cfg.PerProviderTimeout = 10 * time.Second
	}

	configured := make([]Provider, 0, len(chain))
	sems := make(map[string]*semaphore.Weighted, len(chain))
	for _, p := range chain {
		if !p.IsConfigured() {
			log.Info().Str("provider", p.Name()).Msg("Search provider not configured, excluded from chain")
			continue
		}
		configured = append(configured, p)
		sems[p.Name()] = semaphore.NewWeighted(int64(cfg.ProviderConcurrency))
	}

	return &Dispatcher{
		chain: configured,
		sems:  sems,
		cfg:   cfg,
	}
}

// Providers returns the names of the active chain in priority order.
func (d *Dispatcher) Providers() []string {
	names := make([]string, len(d.chain))
	for i, p := range d.chain {
		names[i] = p.Name()
	}
	return names
}

// Dispatch runs one query down the chain and returns the first non-empty
// result. Every provider failure is recorded, never raised; an exhausted
// chain is a normal outcome the caller may reflect on and retry with
// different queries.
func (d *Dispatcher) Dispatch(ctx context.Context, query string) Result {
	var failures []Failure

	for _, p := range d.chain {
		hits, status := d.callProvider(ctx, p, query)
		metrics.ProviderCalls.WithLabelValues(p.Name(), string(status)).Inc()
		if status == StatusOK && len(hits) > 0 {
			return Result{
				Hits:     hits,
				Status:   DispatchOK,
				Provider: p.Name(),
				Failures: failures,
			}
		}

		failures = append(failures, Failure{
			Provider: p.Name(),
			Query:    query,
			Status:   status,
			At:       time.Now(),
		})
		log.Debug().
			Str("provider", p.Name()).
			Str("status", string(status)).
			Str("query", query).
			Msg("Provider yielded no hits, falling over")

		if ctx.Err() != nil {
			break
		}
	}

	metrics.DispatchExhausted.Inc()
	return Result{
		Status:   DispatchAllExhausted,
		Failures: failures,
	}
}

// callProvider acquires the provider's in-flight slot, bounded by the
// per-provider timeout, then runs the search. A wait that exceeds the
// timeout is treated as a provider timeout for this call.
func (d *Dispatcher) callProvider(ctx context.Context, p Provider, query string) ([]Hit, Status) {
	sem := d.sems[p.Name()]

	waitCtx, cancel := context.WithTimeout(ctx, d.cfg.PerProviderTimeout)
	defer cancel()

	if err := sem.Acquire(waitCtx, 1); err != nil {
		return nil, StatusTimeout
	}
	defer sem.Release(1)

	return p.Search(ctx, query, d.cfg.PerQueryLimit)
}
