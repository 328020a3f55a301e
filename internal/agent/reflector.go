package agent

import (
	"context"
	"fmt"
	"strings"

	apierrors "github.com/probelab/deepscout/internal/errors"
	"github.com/probelab/deepscout/internal/llm"
	"github.com/probelab/deepscout/internal/source"
	"github.com/rs/zerolog/log"
)

// Reflection is the reflector's verdict on the current evidence.
type Reflection struct {
	IsComplete        bool     `json:"is_complete"`
	MissingAspects    []string `json:"missing_aspects"`
	CompletenessScore float64  `json:"completeness_score"`
}

// Reflector decides whether the retained evidence answers the question.
type Reflector struct {
	lm    llm.Provider
	model string
}

// NewReflector creates a reflector backed by the given model.
func NewReflector(lm llm.Provider, model string) *Reflector {
	return &Reflector{lm: lm, model: model}
}

const reflectorSystemPrompt = `You judge whether gathered web sources answer a research question.
Return ONLY a JSON object: {"is_complete": bool, "missing_aspects": [string], "completeness_score": number in [0,1]}.`

// Reflect evaluates the retained sources against the question. On any LM
// failure it declares the research complete with a zero score, so the loop
// ends safely and finalization proceeds with what is in hand.
func (r *Reflector) Reflect(ctx context.Context, question string, retained []*source.Source) Reflection {
	resp, err := r.lm.Chat(ctx, llm.ChatRequest{
		Model:       r.model,
		System:      reflectorSystemPrompt,
		Messages:    []llm.Message{{Role: "user", Content: r.buildPrompt(question, retained)}},
		MaxTokens:   1024,
		Temperature: 0,
	})
	if err != nil {
		log.Warn().Err(apierrors.WrapLMError("reflect", err)).Msg("Reflector LM call failed, ending loop")
		return Reflection{IsComplete: true}
	}

	var reflection Reflection
	if err := llm.ExtractJSON(resp.Content, &reflection); err != nil {
		log.Warn().Err(err).Msg("Reflector returned malformed output, ending loop")
		return Reflection{IsComplete: true}
	}

	if reflection.CompletenessScore < 0 {
		reflection.CompletenessScore = 0
	}
	if reflection.CompletenessScore > 1 {
		reflection.CompletenessScore = 1
	}
	return reflection
}

func (r *Reflector) buildPrompt(question string, retained []*source.Source) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Research question: %s\n\n", question)
	if len(retained) == 0 {
		sb.WriteString("No sources have been retained yet.\n")
		return sb.String()
	}
	sb.WriteString("Retained sources:\n")
	for i, src := range retained {
		fmt.Fprintf(&sb, "%d. %s (%s)\n   %s\n", i+1, src.Title, src.URL, truncate(src.Snippet, 300))
	}
	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
