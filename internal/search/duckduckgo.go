package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const duckduckgoAPIURL = "https://api.duckduckgo.com/"

// DuckDuckGoProvider queries the DuckDuckGo Instant Answer API. It needs no
// credentials, so it is always configured and sits near the bottom of the
// fallback chain.
type DuckDuckGoProvider struct {
	baseURL string
	client  *http.Client
	retry   RetryConfig
	timeout time.Duration
}

// NewDuckDuckGoProvider creates a DuckDuckGo provider.
func NewDuckDuckGoProvider(baseURL string, client *http.Client, timeout time.Duration, retry RetryConfig) *DuckDuckGoProvider {
	if baseURL == "" {
		baseURL = duckduckgoAPIURL
	}
	return &DuckDuckGoProvider{
		baseURL: baseURL,
		client:  client,
		retry:   retry,
		timeout: timeout,
	}
}

func (p *DuckDuckGoProvider) Name() string { return "duckduckgo" }

func (p *DuckDuckGoProvider) IsConfigured() bool { return true }

type ddgTopic struct {
	FirstURL string     `json:"FirstURL"`
	Text     string     `json:"Text"`
	Topics   []ddgTopic `json:"Topics"`
}

type ddgResponse struct {
	AbstractText  string     `json:"AbstractText"`
	AbstractURL   string     `json:"AbstractURL"`
	Heading       string     `json:"Heading"`
	RelatedTopics []ddgTopic `json:"RelatedTopics"`
}

// Search executes one query against the Instant Answer API.
func (p *DuckDuckGoProvider) Search(ctx context.Context, query string, limit int) ([]Hit, Status) {
	limit = clampLimit(limit)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("no_redirect", "1")

	req, err := http.NewRequestWithContext(ctx, "GET", p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, StatusMalformed
	}

	resp, err := doWithRetry(ctx, p.client, req, p.retry)
	if err != nil {
		log.Debug().Err(err).Str("provider", p.Name()).Msg("Search request failed")
		return nil, statusFromErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, statusFromHTTP(resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, statusFromErr(err)
	}

	var parsed ddgResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		log.Debug().Err(err).Str("provider", p.Name()).Msg("Malformed search response")
		return nil, StatusMalformed
	}

	hits := make([]Hit, 0, limit)

	if parsed.AbstractURL != "" {
		hits = append(hits, Hit{
			Title:    parsed.Heading,
			URL:      parsed.AbstractURL,
			Snippet:  parsed.AbstractText,
			Provider: p.Name(),
		})
	}

	for _, topic := range flattenTopics(parsed.RelatedTopics) {
		if len(hits) >= limit {
			break
		}
		if topic.FirstURL == "" {
			continue
		}
		hits = append(hits, Hit{
			Title:    topicTitle(topic.Text),
			URL:      topic.FirstURL,
			Snippet:  topic.Text,
			Provider: p.Name(),
		})
	}

	if len(hits) == 0 {
		return nil, StatusEmpty
	}
	return hits, StatusOK
}

// flattenTopics unwraps DuckDuckGo's nested category groupings into a flat
// topic list.
func flattenTopics(topics []ddgTopic) []ddgTopic {
	var flat []ddgTopic
	for _, t := range topics {
		if len(t.Topics) > 0 {
			flat = append(flat, flattenTopics(t.Topics)...)
			continue
		}
		flat = append(flat, t)
	}
	return flat
}

// topicTitle uses the leading clause of the topic text as a title.
func topicTitle(text string) string {
	if idx := strings.Index(text, " - "); idx > 0 {
		return text[:idx]
	}
	if len(text) > 80 {
		return text[:80]
	}
	return text
}

var _ Provider = (*DuckDuckGoProvider)(nil)
