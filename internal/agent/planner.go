package agent

import (
	"context"
	"fmt"
	"strings"

	apierrors "github.com/probelab/deepscout/internal/errors"
	"github.com/probelab/deepscout/internal/llm"
	"github.com/rs/zerolog/log"
)

// PlanContext carries the follow-up planning inputs. A nil context means
// initial planning.
type PlanContext struct {
	MissingAspects []string
	AlreadyTried   []string
}

// Planner generates search queries for a research question.
type Planner struct {
	lm    llm.Provider
	model string
}

// NewPlanner creates a planner backed by the given model.
func NewPlanner(lm llm.Provider, model string) *Planner {
	return &Planner{lm: lm, model: model}
}

const plannerSystemPrompt = `You generate web search queries for a research question.
Return ONLY a JSON array of query strings, most important first.
Queries must be short, specific, and non-overlapping.`

// Plan returns between 1 and maxQueries queries for the initial call
// (planCtx == nil), and between 0 and maxQueries for follow-up calls. On LM
// failure during initial planning it falls back to the question itself; a
// failed follow-up plan returns no queries and lets the loop end.
func (p *Planner) Plan(ctx context.Context, question string, planCtx *PlanContext, maxQueries int) []string {
	if maxQueries < 1 {
		maxQueries = 1
	}

	prompt := p.buildPrompt(question, planCtx, maxQueries)

	resp, err := p.lm.Chat(ctx, llm.ChatRequest{
		Model:       p.model,
		System:      plannerSystemPrompt,
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		MaxTokens:   1024,
		Temperature: 0.7,
	})
	if err != nil {
		log.Warn().Err(apierrors.WrapLMError("plan", err)).Msg("Planner LM call failed, using fallback query")
		return p.fallback(question, planCtx)
	}

	var raw []string
	if err := llm.ExtractJSON(resp.Content, &raw); err != nil {
		log.Warn().Err(err).Msg("Planner returned malformed output, using fallback query")
		return p.fallback(question, planCtx)
	}

	queries := validateQueries(raw, planCtx, maxQueries)
	if len(queries) == 0 && planCtx == nil {
		// Initial planning must yield at least one query
		return []string{strings.TrimSpace(question)}
	}
	return queries
}

func (p *Planner) buildPrompt(question string, planCtx *PlanContext, maxQueries int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Research question: %s\n\n", question)
	if planCtx == nil {
		fmt.Fprintf(&sb, "Generate up to %d initial search queries.", maxQueries)
		return sb.String()
	}

	if len(planCtx.MissingAspects) > 0 {
		sb.WriteString("The evidence gathered so far is missing these aspects:\n")
		for _, a := range planCtx.MissingAspects {
			fmt.Fprintf(&sb, "- %s\n", a)
		}
		sb.WriteString("\n")
	}
	if len(planCtx.AlreadyTried) > 0 {
		sb.WriteString("Queries already tried (do not repeat):\n")
		for _, q := range planCtx.AlreadyTried {
			fmt.Fprintf(&sb, "- %s\n", q)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "Generate up to %d new queries targeting the missing aspects. Return an empty array if there are no new angles.", maxQueries)
	return sb.String()
}

// fallback emits the question itself as the single query. On follow-up
// calls it still passes dedup validation, so a question already executed
// yields no queries and the loop terminates.
func (p *Planner) fallback(question string, planCtx *PlanContext) []string {
	queries := validateQueries([]string{question}, planCtx, 1)
	if len(queries) == 0 && planCtx == nil {
		return []string{strings.TrimSpace(question)}
	}
	return queries
}

// validateQueries trims, drops short and duplicate queries (under
// normalization, including against already-tried ones), and truncates to
// maxQueries.
func validateQueries(raw []string, planCtx *PlanContext, maxQueries int) []string {
	seen := make(map[string]struct{})
	if planCtx != nil {
		for _, q := range planCtx.AlreadyTried {
			seen[Normalize(q)] = struct{}{}
		}
	}

	out := make([]string, 0, len(raw))
	for _, q := range raw {
		q = strings.TrimSpace(q)
		norm := Normalize(q)
		if TokenCount(norm) < 2 {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, q)
		if len(out) >= maxQueries {
			break
		}
	}
	return out
}
