package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/probelab/deepscout/internal/agent"
	"github.com/probelab/deepscout/internal/config"
	apierrors "github.com/probelab/deepscout/internal/errors"
	"github.com/probelab/deepscout/internal/llm"
	"github.com/probelab/deepscout/internal/research"
	"github.com/probelab/deepscout/internal/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubLM routes chat calls to canned responses by agent role.
type stubLM struct {
	plannerOut   string
	reflectorOut string
	finalizerOut string
}

func (s *stubLM) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	switch {
	case strings.Contains(req.System, "search queries"):
		return &llm.ChatResponse{Content: s.plannerOut}, nil
	case strings.Contains(req.System, "judge whether"):
		return &llm.ChatResponse{Content: s.reflectorOut}, nil
	default:
		return &llm.ChatResponse{Content: s.finalizerOut}, nil
	}
}

func (s *stubLM) SupportsGrounding() bool { return false }
func (s *stubLM) Name() string            { return "stub" }

// stubSearch serves the same mixed-quality hits for every query.
type stubSearch struct {
	hits []search.Hit
}

func (s *stubSearch) Search(ctx context.Context, query string, limit int) ([]search.Hit, search.Status) {
	if len(s.hits) == 0 {
		return nil, search.StatusEmpty
	}
	return s.hits, search.StatusOK
}

func (s *stubSearch) IsConfigured() bool { return true }
func (s *stubSearch) Name() string       { return "stub" }

func testRouter(t *testing.T, hits []search.Hit) *Router {
	t.Helper()

	cfg := config.DefaultSettings()
	cfg.SessionDeadline = 10 * time.Second
	cfg.ParallelSearches = 4

	lm := &stubLM{
		plannerOut:   `["test query one", "test query two"]`,
		reflectorOut: `{"is_complete": true, "completeness_score": 0.9}`,
		finalizerOut: "The answer [1], with detail [2].",
	}
	d := search.NewDispatcher([]search.Provider{&stubSearch{hits: hits}}, search.DispatcherConfig{})
	orchestrator := research.NewOrchestrator(cfg, d,
		agent.NewPlanner(lm, "m"),
		agent.NewReflector(lm, "m"),
		agent.NewFinalizer(lm, "m"),
		nil,
	)
	return NewRouter(cfg, orchestrator, nil, "test")
}

func postResearch(t *testing.T, r *Router, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/research", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func defaultHits() []search.Hit {
	long := strings.Repeat("A detailed account of the topic under study. ", 10)
	return []search.Hit{
		{Title: "Reuters report", URL: "https://www.reuters.com/article/1", Snippet: long, Provider: "stub"},
		{Title: "Wikipedia entry", URL: "https://en.wikipedia.org/wiki/Topic", Snippet: long, Provider: "stub"},
		{Title: "Random blog", URL: "https://someblog.example.net/post", Snippet: "thin", Provider: "stub"},
	}
}

func TestResearchMethodNotAllowed(t *testing.T) {
	r := testRouter(t, defaultHits())
	req := httptest.NewRequest(http.MethodGet, "/api/research", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestResearchUnavailableWithoutModel(t *testing.T) {
	r := NewRouter(config.DefaultSettings(), nil, nil, "test")
	rec := postResearch(t, r, `{"question": "anything"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "no language model configured")
}

func TestResearchValidation(t *testing.T) {
	r := testRouter(t, defaultHits())

	tests := []struct {
		name string
		body string
		want string
	}{
		{"invalid json", `{"question": `, "invalid JSON"},
		{"missing question", `{}`, "question is required"},
		{"blank question", `{"question": "   "}`, "question is required"},
		{"oversized question", `{"question": "` + strings.Repeat("x", maxQuestionBytes+1) + `"}`, "exceeds"},
		{"query count too low", `{"question": "q", "initial_search_query_count": 0}`, "initial_search_query_count"},
		{"query count too high", `{"question": "q", "initial_search_query_count": 11}`, "initial_search_query_count"},
		{"loops too high", `{"question": "q", "max_research_loops": 11}`, "max_research_loops"},
		{"bad tier", `{"question": "q", "source_quality_filter": "premium"}`, "source_quality_filter"},
		{"threshold out of range", `{"question": "q", "enhanced_filtering": true, "quality_threshold": 1.5}`, "quality_threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postResearch(t, r, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestValidateErrorsCarryRequestSentinel(t *testing.T) {
	r := testRouter(t, defaultHits())

	_, err := r.validate(ResearchRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierrors.ErrRequestInvalid))

	bad := 99
	_, err = r.validate(ResearchRequest{Question: "q", MaxResearchLoops: &bad})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierrors.ErrRequestInvalid))
}

func TestResearchThresholdIgnoredWithoutEnhancedFiltering(t *testing.T) {
	// An out-of-range threshold is not an error when enhanced filtering is
	// off; the field is simply not consulted.
	r := testRouter(t, defaultHits())
	rec := postResearch(t, r, `{"question": "what happened", "quality_threshold": 9.9}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestResearchHappyPath(t *testing.T) {
	r := testRouter(t, defaultHits())
	rec := postResearch(t, r, `{"question": "what happened", "max_research_loops": 1}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ResearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "The answer [1], with detail [2].", resp.FinalAnswer)
	require.Len(t, resp.Sources, 2, "only cited sources appear")
	assert.Equal(t, 1, resp.Sources[0].Label)
	assert.Equal(t, 2, resp.Sources[1].Label)
	assert.Nil(t, resp.Sources[0].QualityBreakdown, "no breakdown without enhanced filtering")
	assert.False(t, resp.FilteringApplied)
	assert.Equal(t, 1, resp.ResearchLoopsExecuted)
	assert.Equal(t, 2, resp.TotalQueries)
	assert.NotEmpty(t, resp.SessionID)
	assert.Greater(t, resp.Confidence, 0.0)
	assert.Empty(t, resp.FilteredSources)
	assert.Nil(t, resp.QualitySummary)
}

func TestResearchEnhancedFiltering(t *testing.T) {
	r := testRouter(t, defaultHits())
	rec := postResearch(t, r, `{
		"question": "what happened",
		"max_research_loops": 1,
		"source_quality_filter": "medium",
		"enhanced_filtering": true,
		"quality_threshold": 0.5
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ResearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.True(t, resp.FilteringApplied)
	require.NotNil(t, resp.QualitySummary)
	assert.Equal(t, 0.5, resp.QualitySummary.Threshold)
	assert.Equal(t, 3, resp.QualitySummary.Total)
	assert.Equal(t, resp.QualitySummary.Total, resp.QualitySummary.Included+resp.QualitySummary.Filtered)

	// The low-tier blog cannot pass a medium tier floor
	require.NotEmpty(t, resp.FilteredSources)
	for _, ws := range resp.FilteredSources {
		assert.NotEqual(t, "high", ws.CredibilityTier)
	}
	for _, ws := range resp.Sources {
		require.NotNil(t, ws.QualityBreakdown)
	}
}

func TestResearchTierFilterAloneMarksFilteringApplied(t *testing.T) {
	r := testRouter(t, defaultHits())
	rec := postResearch(t, r, `{"question": "what happened", "max_research_loops": 1, "source_quality_filter": "high"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ResearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.FilteringApplied)
	assert.Empty(t, resp.FilteredSources, "filtered list is an enhanced-only field")
}

func TestResearchSourcesNeverNull(t *testing.T) {
	// No hits at all: the answer is the zero-source fallback and sources must
	// encode as [] rather than null.
	r := testRouter(t, nil)
	rec := postResearch(t, r, `{"question": "unanswerable", "max_research_loops": 1}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Equal(t, "[]", string(raw["sources"]))
}

func TestHealthz(t *testing.T) {
	r := testRouter(t, defaultHits())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["ready"])

	unready := NewRouter(config.DefaultSettings(), nil, nil, "test")
	rec = httptest.NewRecorder()
	unready.ServeHTTP(rec, req)
	var unreadyBody map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &unreadyBody))
	assert.Equal(t, false, unreadyBody["ready"])
}

func TestVersionEndpoint(t *testing.T) {
	r := testRouter(t, defaultHits())
	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":"test"`)
}
