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

const googleCSEURL = "https://www.googleapis.com/customsearch/v1"

// GoogleProvider queries the Google Custom Search JSON API.
type GoogleProvider struct {
	apiKey  string
	cseID   string
	baseURL string
	client  *http.Client
	retry   RetryConfig
	timeout time.Duration
}

// NewGoogleProvider creates a Google Custom Search provider.
func NewGoogleProvider(apiKey, cseID, baseURL string, client *http.Client, timeout time.Duration, retry RetryConfig) *GoogleProvider {
	if baseURL == "" {
		baseURL = googleCSEURL
	}
	return &GoogleProvider{
		apiKey:  apiKey,
		cseID:   cseID,
		baseURL: baseURL,
		client:  client,
		retry:   retry,
		timeout: timeout,
	}
}

func (p *GoogleProvider) Name() string { return "google_cse" }

func (p *GoogleProvider) IsConfigured() bool {
	return p.apiKey != "" && p.cseID != ""
}

type googleResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
		Pagemap struct {
			Metatags []map[string]string `json:"metatags"`
		} `json:"pagemap"`
	} `json:"items"`
}

// Search executes one query against the Custom Search API.
func (p *GoogleProvider) Search(ctx context.Context, query string, limit int) ([]Hit, Status) {
	if !p.IsConfigured() {
		return nil, StatusAuthMissing
	}
	limit = clampLimit(limit)
	// The CSE API caps num at 10
	num := limit
	if num > 10 {
		num = 10
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := url.Values{}
	params.Set("key", p.apiKey)
	params.Set("cx", p.cseID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(num))

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

	var parsed googleResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		log.Debug().Err(err).Str("provider", p.Name()).Msg("Malformed search response")
		return nil, StatusMalformed
	}

	hits := make([]Hit, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item.Link == "" {
			continue
		}
		hit := Hit{
			Title:    item.Title,
			URL:      item.Link,
			Snippet:  item.Snippet,
			Provider: p.Name(),
		}
		if ts := googlePublishedAt(item.Pagemap.Metatags); ts != nil {
			hit.PublishedAt = ts
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

// googlePublishedAt digs a publication date out of page metatags when one
// is present.
func googlePublishedAt(metatags []map[string]string) *time.Time {
	for _, tags := range metatags {
		for _, key := range []string{"article:published_time", "og:published_time", "date"} {
			if v, ok := tags[key]; ok && v != "" {
				for _, layout := range []string{time.RFC3339, "2006-01-02"} {
					if ts, err := time.Parse(layout, v); err == nil {
						return &ts
					}
				}
			}
		}
	}
	return nil
}

var _ Provider = (*GoogleProvider)(nil)
