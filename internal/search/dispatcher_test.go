package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider is a scripted provider for dispatcher tests.
type fakeProvider struct {
	name       string
	configured bool
	hits       []Hit
	status     Status
	calls      int
}

func (f *fakeProvider) Search(ctx context.Context, query string, limit int) ([]Hit, Status) {
	f.calls++
	return f.hits, f.status
}

func (f *fakeProvider) IsConfigured() bool { return f.configured }
func (f *fakeProvider) Name() string       { return f.name }

func fakeHits(urls ...string) []Hit {
	hits := make([]Hit, len(urls))
	for i, u := range urls {
		hits[i] = Hit{Title: "t", URL: u, Snippet: "s"}
	}
	return hits
}

func TestDispatchFirstProviderWins(t *testing.T) {
	first := &fakeProvider{name: "first", configured: true, hits: fakeHits("https://a.com"), status: StatusOK}
	second := &fakeProvider{name: "second", configured: true, hits: fakeHits("https://b.com"), status: StatusOK}

	d := NewDispatcher([]Provider{first, second}, DispatcherConfig{})
	res := d.Dispatch(context.Background(), "q")

	assert.Equal(t, DispatchOK, res.Status)
	assert.Equal(t, "first", res.Provider)
	assert.Len(t, res.Hits, 1)
	assert.Empty(t, res.Failures)
	assert.Equal(t, 0, second.calls, "chain stops at the first non-empty result")
}

func TestDispatchFallsOverOnFailure(t *testing.T) {
	// First provider 500s, second is unconfigured (excluded at init),
	// third answers. The dispatcher must not retry the failing provider.
	failing := &fakeProvider{name: "failing", configured: true, status: StatusUpstream5xx}
	missing := &fakeProvider{name: "missing", configured: false}
	working := &fakeProvider{name: "working", configured: true, hits: fakeHits("https://a.com", "https://b.com", "https://c.com"), status: StatusOK}

	d := NewDispatcher([]Provider{failing, missing, working}, DispatcherConfig{})
	assert.Equal(t, []string{"failing", "working"}, d.Providers())

	res := d.Dispatch(context.Background(), "q")

	assert.Equal(t, DispatchOK, res.Status)
	assert.Equal(t, "working", res.Provider)
	assert.Len(t, res.Hits, 3)
	assert.Equal(t, 1, failing.calls, "dispatcher never retries a provider")
	assert.Equal(t, 0, missing.calls)

	require.Len(t, res.Failures, 1)
	assert.Equal(t, "failing", res.Failures[0].Provider)
	assert.Equal(t, StatusUpstream5xx, res.Failures[0].Status)
	assert.Equal(t, "q", res.Failures[0].Query)
}

func TestDispatchEmptyIsAFailure(t *testing.T) {
	empty := &fakeProvider{name: "empty", configured: true, status: StatusEmpty}
	working := &fakeProvider{name: "working", configured: true, hits: fakeHits("https://a.com"), status: StatusOK}

	d := NewDispatcher([]Provider{empty, working}, DispatcherConfig{})
	res := d.Dispatch(context.Background(), "q")

	assert.Equal(t, DispatchOK, res.Status)
	assert.Equal(t, "working", res.Provider)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, StatusEmpty, res.Failures[0].Status)
}

func TestDispatchAllExhausted(t *testing.T) {
	a := &fakeProvider{name: "a", configured: true, status: StatusRateLimited}
	b := &fakeProvider{name: "b", configured: true, status: StatusTimeout}
	c := &fakeProvider{name: "c", configured: true, status: StatusEmpty}

	d := NewDispatcher([]Provider{a, b, c}, DispatcherConfig{})
	res := d.Dispatch(context.Background(), "q")

	assert.Equal(t, DispatchAllExhausted, res.Status)
	assert.Empty(t, res.Hits)
	assert.Empty(t, res.Provider)
	require.Len(t, res.Failures, 3)
	assert.Equal(t, StatusRateLimited, res.Failures[0].Status)
	assert.Equal(t, StatusTimeout, res.Failures[1].Status)
	assert.Equal(t, StatusEmpty, res.Failures[2].Status)
}

func TestDispatchStopsOnCancelledContext(t *testing.T) {
	a := &fakeProvider{name: "a", configured: true, status: StatusUpstream5xx}
	b := &fakeProvider{name: "b", configured: true, hits: fakeHits("https://a.com"), status: StatusOK}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDispatcher([]Provider{a, b}, DispatcherConfig{})
	res := d.Dispatch(ctx, "q")

	assert.Equal(t, DispatchAllExhausted, res.Status)
	assert.Equal(t, 0, b.calls, "a dead session must not keep walking the chain")
}

func TestDispatchOKWithZeroHitsFallsOver(t *testing.T) {
	// A provider that claims OK but returns nothing is treated as empty.
	hollow := &fakeProvider{name: "hollow", configured: true, status: StatusOK}
	working := &fakeProvider{name: "working", configured: true, hits: fakeHits("https://a.com"), status: StatusOK}

	d := NewDispatcher([]Provider{hollow, working}, DispatcherConfig{})
	res := d.Dispatch(context.Background(), "q")

	assert.Equal(t, "working", res.Provider)
	require.Len(t, res.Failures, 1)
}

// blockingProvider holds its in-flight slot until released.
type blockingProvider struct {
	name    string
	entered chan struct{}
	release chan struct{}
}

func (b *blockingProvider) Search(ctx context.Context, query string, limit int) ([]Hit, Status) {
	b.entered <- struct{}{}
	<-b.release
	return nil, StatusEmpty
}

func (b *blockingProvider) IsConfigured() bool { return true }
func (b *blockingProvider) Name() string       { return b.name }

func TestDispatchSemaphoreWaitCappedByTimeout(t *testing.T) {
	// With a single in-flight slot held by a stuck call, a queued call must
	// stop waiting at the per-provider timeout and fall over down the chain.
	slow := &blockingProvider{name: "slow", entered: make(chan struct{}, 1), release: make(chan struct{})}
	working := &fakeProvider{name: "working", configured: true, hits: fakeHits("https://a.com"), status: StatusOK}

	d := NewDispatcher([]Provider{slow, working}, DispatcherConfig{
		ProviderConcurrency: 1,
		PerProviderTimeout:  50 * time.Millisecond,
	})

	go d.Dispatch(context.Background(), "occupier")
	<-slow.entered // the slot is now held

	res := d.Dispatch(context.Background(), "queued")
	close(slow.release)

	assert.Equal(t, DispatchOK, res.Status)
	assert.Equal(t, "working", res.Provider)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "slow", res.Failures[0].Provider)
	assert.Equal(t, StatusTimeout, res.Failures[0].Status, "a capped semaphore wait counts as a provider timeout")
}

func TestNewDispatcherDefaults(t *testing.T) {
	d := NewDispatcher(nil, DispatcherConfig{})
	assert.Equal(t, 10, d.cfg.PerQueryLimit)
	assert.Equal(t, 4, d.cfg.ProviderConcurrency)
	assert.Equal(t, 10*time.Second, d.cfg.PerProviderTimeout)
	assert.Empty(t, d.Providers())

	res := d.Dispatch(context.Background(), "q")
	assert.Equal(t, DispatchAllExhausted, res.Status)
}
