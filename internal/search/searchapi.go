package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

const searchAPIURL = "https://www.searchapi.io/api/v1/search"

// SearchAPIProvider queries the SearchAPI.io Google engine.
type SearchAPIProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
	retry   RetryConfig
	timeout time.Duration
}

// NewSearchAPIProvider creates a SearchAPI.io provider.
func NewSearchAPIProvider(apiKey, baseURL string, client *http.Client, timeout time.Duration, retry RetryConfig) *SearchAPIProvider {
	if baseURL == "" {
		baseURL = searchAPIURL
	}
	return &SearchAPIProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  client,
		retry:   retry,
		timeout: timeout,
	}
}

func (p *SearchAPIProvider) Name() string { return "searchapi" }

func (p *SearchAPIProvider) IsConfigured() bool { return p.apiKey != "" }

type searchAPIResponse struct {
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
		Date    string `json:"date"`
	} `json:"organic_results"`
}

// Search executes one query against SearchAPI.io.
func (p *SearchAPIProvider) Search(ctx context.Context, query string, limit int) ([]Hit, Status) {
	if !p.IsConfigured() {
		return nil, StatusAuthMissing
	}
	limit = clampLimit(limit)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("num", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, "GET", p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, StatusMalformed
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

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

	var parsed searchAPIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		log.Debug().Err(err).Str("provider", p.Name()).Msg("Malformed search response")
		return nil, StatusMalformed
	}

	hits := make([]Hit, 0, len(parsed.OrganicResults))
	for _, item := range parsed.OrganicResults {
		if item.Link == "" {
			continue
		}
		hit := Hit{
			Title:    item.Title,
			URL:      item.Link,
			Snippet:  item.Snippet,
			Provider: p.Name(),
		}
		if item.Date != "" {
			for _, layout := range []string{"Jan 2, 2006", "2006-01-02", time.RFC3339} {
				if ts, err := time.Parse(layout, item.Date); err == nil {
					hit.PublishedAt = &ts
					break
				}
			}
		}
		hits = append(hits, hit)
		if len(hits) >= limit {
			break
		}
	}

	if len(hits) == 0 {
		return nil, StatusEmpty
	}
	return hits, StatusOK
}

var _ Provider = (*SearchAPIProvider)(nil)
