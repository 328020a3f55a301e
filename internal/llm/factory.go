package llm

import (
	"fmt"
	"strings"
	"time"

	apierrors "github.com/probelab/deepscout/internal/errors"
)

// NewProvider creates a Provider from a model token. The token may carry a
// backend prefix ("gemini:...", "openai:..."); a bare model name defaults
// to Gemini, which also serves grounded search requests.
func NewProvider(apiKey, model, baseURL string, timeout time.Duration) (Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("lm api key is required: %w", apierrors.ErrNotConfigured)
	}

	backend := "gemini"
	if idx := strings.Index(model, ":"); idx > 0 {
		backend = model[:idx]
	}

	switch backend {
	case "gemini":
		return NewGeminiClient(apiKey, model, baseURL, timeout), nil
	case "openai", "gpt":
		return NewOpenAIClient(apiKey, strings.TrimPrefix(model, backend+":"), baseURL, timeout), nil
	default:
		return nil, fmt.Errorf("unknown llm backend %q", backend)
	}
}
