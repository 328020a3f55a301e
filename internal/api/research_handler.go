package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	apierrors "github.com/probelab/deepscout/internal/errors"
	"github.com/probelab/deepscout/internal/research"
	"github.com/probelab/deepscout/internal/search"
	"github.com/probelab/deepscout/internal/source"
)

const maxQuestionBytes = 4096

// ResearchRequest is the wire request for POST /api/research.
type ResearchRequest struct {
	Question                string   `json:"question"`
	InitialSearchQueryCount *int     `json:"initial_search_query_count,omitempty"`
	MaxResearchLoops        *int     `json:"max_research_loops,omitempty"`
	ReasoningModel          string   `json:"reasoning_model,omitempty"`
	SourceQualityFilter     string   `json:"source_quality_filter,omitempty"`
	EnhancedFiltering       bool     `json:"enhanced_filtering,omitempty"`
	QualityThreshold        *float64 `json:"quality_threshold,omitempty"`
}

// WireSource is a source as exposed on the wire.
type WireSource struct {
	Title            string          `json:"title"`
	URL              string          `json:"url"`
	Label            int             `json:"label,omitempty"`
	DomainType       string          `json:"domain_type"`
	CredibilityTier  string          `json:"credibility_tier"`
	QualityScore     float64         `json:"quality_score"`
	QualityBreakdown *source.Quality `json:"quality_breakdown,omitempty"`
}

// QualitySummary reports the filtering outcome.
type QualitySummary struct {
	Total          int     `json:"total"`
	Included       int     `json:"included"`
	Filtered       int     `json:"filtered"`
	AverageOverall float64 `json:"average_overall"`
	Threshold      float64 `json:"threshold"`
}

// ResearchResponse is the wire response for POST /api/research.
type ResearchResponse struct {
	FinalAnswer           string           `json:"final_answer"`
	Sources               []WireSource     `json:"sources"`
	FilteredSources       []WireSource     `json:"filtered_sources,omitempty"`
	QualitySummary        *QualitySummary  `json:"quality_summary,omitempty"`
	FilteringApplied      bool             `json:"filtering_applied"`
	ResearchLoopsExecuted int              `json:"research_loops_executed"`
	TotalQueries          int              `json:"total_queries"`
	Confidence            float64          `json:"confidence"`
	SessionID             string           `json:"session_id"`
	Diagnostics           []search.Failure `json:"diagnostics,omitempty"`
}

func (r *Router) handleResearch(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if r.orchestrator == nil {
		writeError(w, http.StatusServiceUnavailable, "no language model configured")
		return
	}

	var wireReq ResearchRequest
	if err := json.NewDecoder(req.Body).Decode(&wireReq); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	researchReq, err := r.validate(wireReq)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := r.orchestrator.Run(req.Context(), researchReq)
	writeJSON(w, http.StatusOK, buildResponse(wireReq, researchReq, result))
}

// validate maps the wire request onto an orchestrator request, surfacing
// constraint violations as 400s.
func (r *Router) validate(wireReq ResearchRequest) (research.Request, error) {
	var zero research.Request

	question := strings.TrimSpace(wireReq.Question)
	if question == "" {
		return zero, fmt.Errorf("%w: question is required", apierrors.ErrRequestInvalid)
	}
	if len(question) > maxQuestionBytes {
		return zero, fmt.Errorf("%w: question exceeds %d bytes", apierrors.ErrRequestInvalid, maxQuestionBytes)
	}

	out := research.Request{
		Question:          question,
		Model:             wireReq.ReasoningModel,
		EnhancedFiltering: wireReq.EnhancedFiltering,
		MinTier:           source.TierLow,
	}

	if wireReq.InitialSearchQueryCount != nil {
		n := *wireReq.InitialSearchQueryCount
		if n < 1 || n > 10 {
			return zero, fmt.Errorf("%w: initial_search_query_count must be in 1..10", apierrors.ErrRequestInvalid)
		}
		out.InitialQueryCount = n
	}
	if wireReq.MaxResearchLoops != nil {
		n := *wireReq.MaxResearchLoops
		if n < 1 || n > 10 {
			return zero, fmt.Errorf("%w: max_research_loops must be in 1..10", apierrors.ErrRequestInvalid)
		}
		out.MaxLoops = n
	}

	switch wireReq.SourceQualityFilter {
	case "", "any":
		out.MinTier = source.TierLow
	case "medium":
		out.MinTier = source.TierMedium
	case "high":
		out.MinTier = source.TierHigh
	default:
		return zero, fmt.Errorf("%w: source_quality_filter must be one of any, medium, high", apierrors.ErrRequestInvalid)
	}

	// The numeric threshold gates retention only under enhanced filtering
	if wireReq.EnhancedFiltering {
		threshold := r.cfg.QualityThresholdDefault
		if wireReq.QualityThreshold != nil {
			threshold = *wireReq.QualityThreshold
			if threshold < 0 || threshold > 1 {
				return zero, fmt.Errorf("%w: quality_threshold must be in [0,1]", apierrors.ErrRequestInvalid)
			}
		}
		out.QualityThreshold = threshold
	}

	return out, nil
}

func buildResponse(wireReq ResearchRequest, req research.Request, result *research.Result) ResearchResponse {
	resp := ResearchResponse{
		FinalAnswer:           result.Answer,
		Sources:               toWireSources(result.Cited, wireReq.EnhancedFiltering),
		FilteringApplied:      req.MinTier != source.TierLow || wireReq.EnhancedFiltering,
		ResearchLoopsExecuted: result.Loops,
		TotalQueries:          result.TotalQueries,
		Confidence:            result.Confidence,
		SessionID:             result.SessionID,
	}
	if resp.Sources == nil {
		resp.Sources = []WireSource{}
	}

	if wireReq.EnhancedFiltering {
		resp.FilteredSources = toWireSources(result.Filtered, true)
		resp.QualitySummary = &QualitySummary{
			Total:          result.TotalSources,
			Included:       len(result.Retained),
			Filtered:       len(result.Filtered),
			AverageOverall: averageOverall(result.Retained),
			Threshold:      req.QualityThreshold,
		}
		resp.Diagnostics = result.Failures
	}

	return resp
}

func toWireSources(sources []*source.Source, breakdown bool) []WireSource {
	out := make([]WireSource, 0, len(sources))
	for _, src := range sources {
		ws := WireSource{
			Title:           src.Title,
			URL:             src.URL,
			Label:           src.Label,
			DomainType:      string(src.DomainType),
			CredibilityTier: string(src.Tier),
			QualityScore:    src.Quality.Overall,
		}
		if breakdown {
			q := src.Quality
			ws.QualityBreakdown = &q
		}
		out = append(out, ws)
	}
	return out
}

func averageOverall(sources []*source.Source) float64 {
	if len(sources) == 0 {
		return 0
	}
	var sum float64
	for _, src := range sources {
		sum += src.Quality.Overall
	}
	return sum / float64(len(sources))
}
