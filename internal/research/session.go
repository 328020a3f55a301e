// Package research implements the session orchestrator: the state machine
// driving plan, search, reflect loops, parallel search fan-out, budget
// enforcement, source aggregation, and finalization.
package research

import (
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/probelab/deepscout/internal/agent"
	"github.com/probelab/deepscout/internal/search"
	"github.com/probelab/deepscout/internal/source"
)

// Phase is the session state machine position.
type Phase string

const (
	PhasePlanning   Phase = "planning"
	PhaseSearching  Phase = "searching"
	PhaseReflecting Phase = "reflecting"
	PhaseFinalizing Phase = "finalizing"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// QueryOrigin records how a query was produced.
type QueryOrigin string

const (
	OriginInitial  QueryOrigin = "initial"
	OriginFollowUp QueryOrigin = "follow_up"
)

// Query is an immutable executed-query record.
type Query struct {
	Text      string      `json:"text"`
	Origin    QueryOrigin `json:"origin"`
	LoopIndex int         `json:"loop_index"`
}

// Session holds all state for one research request. It is owned by the
// orchestrator goroutine: workers return values and the orchestrator merges
// them serially, so no locking is needed.
type Session struct {
	ID       string
	Question string
	Config   Request // effective per-request configuration snapshot

	LoopIndex int
	Phase     Phase
	Deadline  time.Time

	// queries executed, ordered; normalized forms keyed for dedup
	Queries    []Query
	queryIndex map[string]struct{}

	// sources in insertion order, keyed by canonical URL
	sources     []*source.Source
	sourceIndex map[string]int

	Failures []search.Failure
	Events   []Event
}

// NewSession creates a session with a fresh ULID and an absolute deadline.
func NewSession(question string, cfg Request, deadline time.Time) *Session {
	return &Session{
		ID:          ulid.MustNew(ulid.Timestamp(time.Now()), ulid.DefaultEntropy()).String(),
		Question:    question,
		Config:      cfg,
		Phase:       PhasePlanning,
		Deadline:    deadline,
		queryIndex:  make(map[string]struct{}),
		sourceIndex: make(map[string]int),
	}
}

// AddQuery records an executed query. It returns false when an equal query
// (under normalization) was already executed in any loop.
func (s *Session) AddQuery(text string, origin QueryOrigin) bool {
	norm := agent.Normalize(text)
	if norm == "" {
		return false
	}
	if _, dup := s.queryIndex[norm]; dup {
		return false
	}
	s.queryIndex[norm] = struct{}{}
	s.Queries = append(s.Queries, Query{
		Text:      text,
		Origin:    origin,
		LoopIndex: s.LoopIndex,
	})
	return true
}

// MergeHit canonicalizes, classifies, and scores one hit, then merges it
// keyed on canonical URL. On collision the existing source wins and the
// first-supplier provider is preserved. Returns the merged source and
// whether it was newly inserted; unparseable URLs are dropped with (nil,
// false).
func (s *Session) MergeHit(hit search.Hit, now time.Time) (*source.Source, bool) {
	canonical, err := source.Canonicalize(hit.URL)
	if err != nil {
		return nil, false
	}

	if idx, ok := s.sourceIndex[canonical]; ok {
		return s.sources[idx], false
	}

	domainType, tier := source.Classify(canonical)
	src := &source.Source{
		URL:         canonical,
		Title:       hit.Title,
		Snippet:     hit.Snippet,
		Provider:    hit.Provider,
		DomainType:  domainType,
		Tier:        tier,
		PublishedAt: hit.PublishedAt,
	}
	src.Quality = source.Score(src, s.Question, now)

	s.sourceIndex[canonical] = len(s.sources)
	s.sources = append(s.sources, src)
	return src, true
}

// Sources returns the merged sources in insertion order.
func (s *Session) Sources() []*source.Source {
	return s.sources
}

// TrimSources enforces the total-source budget by dropping the
// lowest-overall sources first, preserving insertion order of the rest.
func (s *Session) TrimSources(max int) int {
	if max < 1 || len(s.sources) <= max {
		return 0
	}

	excess := len(s.sources) - max

	// Find the cutoff by overall score
	byScore := make([]*source.Source, len(s.sources))
	copy(byScore, s.sources)
	sort.SliceStable(byScore, func(i, j int) bool {
		return byScore[i].Quality.Overall < byScore[j].Quality.Overall
	})
	drop := make(map[string]struct{}, excess)
	for _, src := range byScore[:excess] {
		drop[src.URL] = struct{}{}
	}

	kept := s.sources[:0]
	s.sourceIndex = make(map[string]int, max)
	for _, src := range s.sources {
		if _, gone := drop[src.URL]; gone {
			continue
		}
		s.sourceIndex[src.URL] = len(kept)
		kept = append(kept, src)
	}
	s.sources = kept
	return excess
}

// DeadlineExpired reports whether the session budget is spent.
func (s *Session) DeadlineExpired(now time.Time) bool {
	return !now.Before(s.Deadline)
}
