package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	apierrors "github.com/probelab/deepscout/internal/errors"
)

// ExtractJSON pulls the first JSON object or array out of model output and
// unmarshals it into dst. Models frequently wrap JSON in markdown fences or
// prose; this strips both before parsing.
func ExtractJSON(text string, dst any) error {
	cleaned := strings.TrimSpace(text)

	// Strip markdown code fences
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
			cleaned = cleaned[:idx]
		}
		cleaned = strings.TrimSpace(cleaned)
	}

	// Fast path: the whole payload is JSON
	if err := json.Unmarshal([]byte(cleaned), dst); err == nil {
		return nil
	}

	// Slow path: find the first balanced object or array
	start := strings.IndexAny(cleaned, "{[")
	if start < 0 {
		return fmt.Errorf("%w: no JSON found in model output", apierrors.ErrMalformed)
	}

	open := cleaned[start]
	var close byte = '}'
	if open == '[' {
		close = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(cleaned); i++ {
		ch := cleaned[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == open:
			depth++
		case ch == close:
			depth--
			if depth == 0 {
				return json.Unmarshal([]byte(cleaned[start:i+1]), dst)
			}
		}
	}

	return fmt.Errorf("%w: unbalanced JSON in model output", apierrors.ErrMalformed)
}
