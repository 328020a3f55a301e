package agent

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	apierrors "github.com/probelab/deepscout/internal/errors"
	"github.com/probelab/deepscout/internal/llm"
	"github.com/probelab/deepscout/internal/source"
	"github.com/rs/zerolog/log"
)

// FinalAnswer is the synthesized response. Cited holds the sources that
// actually appear in the answer, relabeled 1..n in first-citation order;
// every [k] marker in Answer resolves to Cited[k-1].
type FinalAnswer struct {
	Answer     string
	Cited      []*source.Source
	Confidence float64
	// Synthesized is false when the LM failed and the deterministic
	// template answer was emitted instead.
	Synthesized bool
}

// Finalizer synthesizes the final cited answer from the retained sources.
type Finalizer struct {
	lm    llm.Provider
	model string
}

// NewFinalizer creates a finalizer backed by the given model.
func NewFinalizer(lm llm.Provider, model string) *Finalizer {
	return &Finalizer{lm: lm, model: model}
}

const finalizerSystemPrompt = `You write a final research answer from numbered web sources.
Cite sources inline with bracketed numbers like [1] or [2] that refer to the numbered source list.
Only cite sources from the list. Be concise and factual.`

var citationMarker = regexp.MustCompile(`\[(\d+)\]`)

// Finalize produces the answer. With zero retained sources it emits a
// low-confidence uncited answer; on LM failure it falls back to a
// deterministic template listing the top sources by overall score.
func (f *Finalizer) Finalize(ctx context.Context, question string, retained []*source.Source) FinalAnswer {
	if len(retained) == 0 {
		return FinalAnswer{
			Answer: "No sources passed the quality filters for this question, so a cited answer could not be produced. " +
				"Consider relaxing the source quality filter or rephrasing the question.",
			Confidence:  0,
			Synthesized: false,
		}
	}

	resp, err := f.lm.Chat(ctx, llm.ChatRequest{
		Model:       f.model,
		System:      finalizerSystemPrompt,
		Messages:    []llm.Message{{Role: "user", Content: f.buildPrompt(question, retained)}},
		MaxTokens:   4096,
		Temperature: 0.3,
	})
	if err != nil || strings.TrimSpace(resp.Content) == "" {
		if err != nil {
			err = apierrors.WrapLMError("finalize", err)
		}
		log.Warn().Err(err).Msg("Finalizer LM call failed, emitting template answer")
		return f.templateAnswer(retained)
	}

	answer, cited := postProcess(resp.Content, retained)
	if len(cited) == 0 {
		// The model cited nothing usable; the template at least carries
		// resolvable citations.
		return f.templateAnswer(retained)
	}

	return FinalAnswer{
		Answer:      answer,
		Cited:       cited,
		Confidence:  meanOverall(cited),
		Synthesized: true,
	}
}

func (f *Finalizer) buildPrompt(question string, retained []*source.Source) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n\nSources:\n", question)
	for i, src := range retained {
		fmt.Fprintf(&sb, "[%d] %s (%s)\n%s\n\n", i+1, src.Title, src.URL, truncate(src.Snippet, 400))
	}
	sb.WriteString("Write the answer with inline [k] citations.")
	return sb.String()
}

// postProcess enforces the citation round-trip: markers referencing unknown
// sources are stripped, sources the answer never cites carry no label, and
// surviving markers are renumbered 1..n in first-citation order.
func postProcess(answer string, retained []*source.Source) (string, []*source.Source) {
	relabel := make(map[int]int) // provisional label -> final label
	var cited []*source.Source

	out := citationMarker.ReplaceAllStringFunc(answer, func(marker string) string {
		k, err := strconv.Atoi(citationMarker.FindStringSubmatch(marker)[1])
		if err != nil || k < 1 || k > len(retained) {
			return "" // unknown marker, strip it
		}
		final, ok := relabel[k]
		if !ok {
			final = len(cited) + 1
			relabel[k] = final
			src := retained[k-1]
			src.Label = final
			cited = append(cited, src)
		}
		return "[" + strconv.Itoa(final) + "]"
	})

	return strings.TrimSpace(out), cited
}

// templateAnswer is the deterministic fallback: the top retained sources by
// overall score (at most 5), each cited once.
func (f *Finalizer) templateAnswer(retained []*source.Source) FinalAnswer {
	top := make([]*source.Source, len(retained))
	copy(top, retained)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Quality.Overall > top[j].Quality.Overall
	})
	if len(top) > 5 {
		top = top[:5]
	}

	var sb strings.Builder
	sb.WriteString("Answer synthesis failed; the most relevant sources found are listed below.\n\n")
	for i, src := range top {
		src.Label = i + 1
		fmt.Fprintf(&sb, "[%d] %s - %s\n", i+1, src.Title, src.URL)
	}

	return FinalAnswer{
		Answer:      strings.TrimSpace(sb.String()),
		Cited:       top,
		Confidence:  meanOverall(top),
		Synthesized: false,
	}
}

func meanOverall(sources []*source.Source) float64 {
	if len(sources) == 0 {
		return 0
	}
	var sum float64
	for _, src := range sources {
		sum += src.Quality.Overall
	}
	return sum / float64(len(sources))
}
