package research

import (
	"context"
	"time"

	"github.com/probelab/deepscout/internal/agent"
	"github.com/probelab/deepscout/internal/config"
	apierrors "github.com/probelab/deepscout/internal/errors"
	"github.com/probelab/deepscout/internal/metrics"
	"github.com/probelab/deepscout/internal/search"
	"github.com/probelab/deepscout/internal/source"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// finalizeGrace is the extra window granted to finalization once the
// session deadline has expired, so a session never returns empty-handed.
const finalizeGrace = 4 * time.Second

// Request is the effective per-session configuration snapshot.
type Request struct {
	Question          string
	InitialQueryCount int
	MaxLoops          int
	Model             string
	MinTier           source.CredibilityTier
	QualityThreshold  float64
	EnhancedFiltering bool
}

// Result is the complete outcome of one research session.
type Result struct {
	SessionID    string
	Answer       string
	Cited        []*source.Source // cited sources in citation-label order
	Retained     []*source.Source // passed the quality filter (superset of Cited)
	Filtered     []*source.Source // rejected by the quality filter
	TotalSources int
	Confidence   float64
	Synthesized  bool
	Loops        int
	TotalQueries int
	Phase        Phase
	Failures     []search.Failure
	Events       []Event
	Duration     time.Duration
}

// Orchestrator runs research sessions. It is safe for concurrent use;
// each Run constructs its own session and owns it for the duration.
type Orchestrator struct {
	cfg        *config.Settings
	dispatcher *search.Dispatcher
	planner    *agent.Planner
	reflector  *agent.Reflector
	finalizer  *agent.Finalizer
	sink       ProgressSink
}

// NewOrchestrator wires the research control plane together.
func NewOrchestrator(cfg *config.Settings, dispatcher *search.Dispatcher, planner *agent.Planner, reflector *agent.Reflector, finalizer *agent.Finalizer, sink ProgressSink) *Orchestrator {
	if sink == nil {
		sink = NopSink{}
	}
	return &Orchestrator{
		cfg:        cfg,
		dispatcher: dispatcher,
		planner:    planner,
		reflector:  reflector,
		finalizer:  finalizer,
		sink:       sink,
	}
}

// Run executes one research session to completion. All provider and LM
// failures are absorbed into fallbacks; the returned result is always
// well-formed.
func (o *Orchestrator) Run(ctx context.Context, req Request) *Result {
	start := time.Now()
	req = o.applyDefaults(req)

	s := NewSession(req.Question, req, start.Add(o.cfg.SessionDeadline))

	sessionCtx, cancel := context.WithDeadline(ctx, s.Deadline)
	defer cancel()

	log.Info().
		Str("session_id", s.ID).
		Str("question", req.Question).
		Int("max_loops", req.MaxLoops).
		Msg("Research session started")

	filter := source.Filter{Threshold: req.QualityThreshold, MinTier: req.MinTier}
	var planCtx *agent.PlanContext
	loopsRun := 0

	for {
		// Planning
		s.Phase = PhasePlanning
		o.emit(s, EventPhase, 0)

		queries := o.planQueries(sessionCtx, s, planCtx)
		if len(queries) == 0 {
			if planCtx == nil {
				// Initial planning cannot come back empty; force the
				// question itself.
				if s.AddQuery(s.Question, OriginInitial) {
					queries = []string{s.Question}
				}
			}
			if len(queries) == 0 {
				// No new angles; the loop ends even if the reflector
				// asked to continue.
				break
			}
		}
		o.emit(s, EventQueriesGenerated, len(queries))

		// Searching
		s.Phase = PhaseSearching
		o.emit(s, EventPhase, 0)
		merged := o.runSearches(sessionCtx, s, queries)
		loopsRun++
		if dropped := s.TrimSources(o.cfg.MaxSourcesTotal); dropped > 0 {
			log.Debug().Str("session_id", s.ID).Int("dropped", dropped).Msg("Source budget exceeded, dropped lowest-scored sources")
		}
		o.emit(s, EventSourcesMerged, merged)

		if s.DeadlineExpired(time.Now()) || sessionCtx.Err() != nil {
			log.Warn().Err(apierrors.ErrDeadlineExceeded).Str("session_id", s.ID).Msg("Session deadline reached, finalizing early")
			break
		}

		// The reflector only runs while another loop is still possible;
		// at the loop cap its verdict could not change anything.
		if s.LoopIndex+1 >= req.MaxLoops {
			o.emit(s, EventLoopComplete, s.LoopIndex+1)
			break
		}

		// Reflecting
		s.Phase = PhaseReflecting
		o.emit(s, EventPhase, 0)
		retained, _ := filter.Partition(s.Sources())
		reflection := o.reflector.Reflect(sessionCtx, s.Question, retained)
		o.emit(s, EventLoopComplete, s.LoopIndex+1)

		if reflection.IsComplete {
			break
		}

		tried := make([]string, len(s.Queries))
		for i, q := range s.Queries {
			tried[i] = q.Text
		}
		planCtx = &agent.PlanContext{
			MissingAspects: reflection.MissingAspects,
			AlreadyTried:   tried,
		}
		s.LoopIndex++
	}

	// Finalizing
	s.Phase = PhaseFinalizing
	o.emit(s, EventFinalizing, 0)

	retained, filtered := filter.Partition(s.Sources())

	finalCtx, finalCancel := o.finalizeContext(ctx, s)
	defer finalCancel()

	fa := o.finalizer.Finalize(finalCtx, s.Question, retained)
	s.Phase = PhaseDone

	loops := loopsRun
	if loops < 1 {
		loops = 1
	}
	result := &Result{
		SessionID:    s.ID,
		Answer:       fa.Answer,
		Cited:        fa.Cited,
		Retained:     retained,
		Filtered:     filtered,
		TotalSources: len(s.Sources()),
		Confidence:   fa.Confidence,
		Synthesized:  fa.Synthesized,
		Loops:        loops,
		TotalQueries: len(s.Queries),
		Phase:        s.Phase,
		Failures:     s.Failures,
		Events:       s.Events,
		Duration:     time.Since(start),
	}

	metrics.SessionsTotal.WithLabelValues(string(s.Phase)).Inc()
	metrics.SessionDuration.Observe(result.Duration.Seconds())
	metrics.ResearchLoops.Observe(float64(loops))
	metrics.SourcesRetained.Observe(float64(len(retained)))
	metrics.SourcesFiltered.Observe(float64(len(filtered)))

	log.Info().
		Str("session_id", s.ID).
		Int("loops", loops).
		Int("queries", result.TotalQueries).
		Int("sources", result.TotalSources).
		Int("retained", len(result.Retained)).
		Float64("confidence", result.Confidence).
		Dur("duration", result.Duration).
		Msg("Research session finished")

	return result
}

// planQueries asks the planner for queries and records the accepted ones on
// the session, deduplicating across loops.
func (o *Orchestrator) planQueries(ctx context.Context, s *Session, planCtx *agent.PlanContext) []string {
	maxQueries := s.Config.InitialQueryCount
	origin := OriginInitial
	if planCtx != nil {
		maxQueries = o.cfg.FollowupQueryCount
		origin = OriginFollowUp
	}

	proposed := o.planner.Plan(ctx, s.Question, planCtx, maxQueries)

	accepted := make([]string, 0, len(proposed))
	for _, q := range proposed {
		if s.AddQuery(q, origin) {
			accepted = append(accepted, q)
		}
	}
	return accepted
}

// runSearches fans the queries out through the dispatcher, bounded by the
// parallel-search limit. Workers return values; merging happens serially
// here on the owner goroutine.
func (o *Orchestrator) runSearches(ctx context.Context, s *Session, queries []string) int {
	results := make(chan search.Result, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.ParallelSearches)
	for _, q := range queries {
		q := q
		g.Go(func() error {
			results <- o.dispatcher.Dispatch(gctx, q)
			return nil
		})
	}
	go func() {
		g.Wait()
		close(results)
	}()

	merged := 0
	now := time.Now()
	for res := range results {
		s.Failures = append(s.Failures, res.Failures...)
		for _, hit := range res.Hits {
			if _, inserted := s.MergeHit(hit, now); inserted {
				merged++
			}
		}
	}
	return merged
}

// finalizeContext grants finalization the remaining session budget, or a
// short grace window when the deadline has already passed.
func (o *Orchestrator) finalizeContext(ctx context.Context, s *Session) (context.Context, context.CancelFunc) {
	remaining := time.Until(s.Deadline)
	if remaining < finalizeGrace {
		remaining = finalizeGrace
	}
	return context.WithTimeout(ctx, remaining)
}

func (o *Orchestrator) applyDefaults(req Request) Request {
	if req.InitialQueryCount < 1 {
		req.InitialQueryCount = o.cfg.InitialQueryCountDefault
	}
	if req.InitialQueryCount > 10 {
		req.InitialQueryCount = 10
	}
	if req.MaxLoops < 1 {
		req.MaxLoops = o.cfg.MaxLoopsDefault
	}
	if req.MaxLoops > 10 {
		req.MaxLoops = 10
	}
	if req.Model == "" {
		req.Model = o.cfg.LMDefaultModel
	}
	if req.MinTier == "" {
		req.MinTier = source.TierLow
	}
	return req
}
