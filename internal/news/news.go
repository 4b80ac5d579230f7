// Package news wraps the SerpAPI Google News engine behind a typed search
// client with coarse time buckets and classified errors.
package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"aifeed/internal/core"
	"aifeed/internal/logger"
	"aifeed/internal/provider"
)

const providerName = "serpapi"

// TimePeriod is a coarse recency bucket supported by the provider.
type TimePeriod string

const (
	PeriodHour TimePeriod = "hour"
	PeriodDay  TimePeriod = "day"
	PeriodWeek TimePeriod = "week"
)

// QuantizeSince maps a lookback duration to the smallest bucket that covers
// it. Anything beyond a week still uses the week bucket.
func QuantizeSince(since time.Duration) TimePeriod {
	switch {
	case since <= time.Hour:
		return PeriodHour
	case since <= 24*time.Hour:
		return PeriodDay
	default:
		return PeriodWeek
	}
}

// Query describes one news search.
type Query struct {
	Text       string
	Language   string
	Country    string
	Max        int
	TimePeriod TimePeriod // empty means no recency filter
	TopicToken string     // provider category token, optional
}

// SearchResult is the normalized response of one search.
type SearchResult struct {
	Articles     []core.Article
	Total        int
	UsedFallback bool
}

// Client is a SerpAPI Google News client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a news search client. timeout bounds each call.
func NewClient(apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    "https://serpapi.com/search",
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewClientWithBaseURL creates a client pointed at a custom endpoint. Used
// by tests.
func NewClientWithBaseURL(apiKey, baseURL string, timeout time.Duration) *Client {
	c := NewClient(apiKey, timeout)
	c.baseURL = baseURL
	return c
}

// Search runs one search. When a time-bucketed search yields zero results it
// retries once without the bucket and marks the result as a fallback.
func (c *Client) Search(ctx context.Context, q Query) (*SearchResult, error) {
	result, err := c.searchOnce(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(result.Articles) == 0 && q.TimePeriod != "" {
		unbounded := q
		unbounded.TimePeriod = ""
		retried, err := c.searchOnce(ctx, unbounded)
		if err != nil {
			return nil, err
		}
		retried.UsedFallback = true
		logger.Debug("News search fell back to unbounded window", "query", q.Text)
		return retried, nil
	}
	return result, nil
}

func (c *Client) searchOnce(ctx context.Context, q Query) (*SearchResult, error) {
	params := url.Values{}
	params.Set("engine", "google_news")
	params.Set("api_key", c.apiKey)
	if q.TopicToken != "" {
		params.Set("topic_token", q.TopicToken)
	} else {
		params.Set("q", q.Text)
	}
	if q.Language != "" {
		params.Set("hl", q.Language)
	}
	if q.Country != "" {
		params.Set("gl", q.Country)
	}
	switch q.TimePeriod {
	case PeriodHour:
		params.Set("tbs", "qdr:h")
	case PeriodDay:
		params.Set("tbs", "qdr:d")
	case PeriodWeek:
		params.Set("tbs", "qdr:w")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create news request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, provider.New(providerName, provider.KindTransient, 0, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, provider.New(providerName, provider.KindTransient, resp.StatusCode, err.Error())
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyHTTP(resp.StatusCode, string(body))
	}

	var apiResponse struct {
		NewsResults []struct {
			Title  string `json:"title"`
			Link   string `json:"link"`
			Source struct {
				Name string `json:"name"`
			} `json:"source"`
			Date      string `json:"date"`
			Snippet   string `json:"snippet"`
			Thumbnail string `json:"thumbnail"`
		} `json:"news_results"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return nil, provider.New(providerName, provider.KindPermanent, resp.StatusCode,
			fmt.Sprintf("failed to parse response: %v", err))
	}
	if apiResponse.Error != "" {
		return nil, classifyBody(resp.StatusCode, apiResponse.Error)
	}

	articles := make([]core.Article, 0, len(apiResponse.NewsResults))
	for _, item := range apiResponse.NewsResults {
		if q.Max > 0 && len(articles) >= q.Max {
			break
		}
		articles = append(articles, core.Article{
			Title:       item.Title,
			URL:         item.Link,
			SourceName:  item.Source.Name,
			PublishedAt: parseNewsDate(item.Date),
			Snippet:     item.Snippet,
			ImageURL:    item.Thumbnail,
		})
	}

	logger.Debug("News search completed", "query", q.Text, "results", len(articles))

	return &SearchResult{Articles: articles, Total: len(apiResponse.NewsResults)}, nil
}

// classifyHTTP maps a non-200 status to the shared error taxonomy.
func classifyHTTP(status int, body string) error {
	lower := strings.ToLower(body)
	switch {
	case status == http.StatusTooManyRequests && strings.Contains(lower, "run out of searches"):
		return provider.New(providerName, provider.KindQuota, status, "daily search quota exhausted")
	case status == http.StatusTooManyRequests:
		return provider.New(providerName, provider.KindRateLimit, status, "rate limited")
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return provider.New(providerName, provider.KindAuth, status, "invalid API key")
	case status >= 500:
		return provider.New(providerName, provider.KindTransient, status, "provider unavailable")
	default:
		return provider.New(providerName, provider.KindPermanent, status, truncateBody(body))
	}
}

// classifyBody handles 200 responses whose JSON payload carries an error
// message, which is how the provider reports exhausted plans.
func classifyBody(status int, message string) error {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "run out of searches"):
		return provider.New(providerName, provider.KindQuota, status, message)
	case strings.Contains(lower, "rate limit"):
		return provider.New(providerName, provider.KindRateLimit, status, message)
	case strings.Contains(lower, "invalid api key"):
		return provider.New(providerName, provider.KindAuth, status, message)
	default:
		return provider.New(providerName, provider.KindPermanent, status, message)
	}
}

func truncateBody(body string) string {
	if len(body) > 200 {
		return body[:200]
	}
	return body
}

// parseNewsDate parses the provider's article timestamp. The provider emits
// "01/02/2006, 03:04 PM, -0700 UTC" for news results; RFC3339 shows up in
// some fixtures. Unknown formats yield a zero time.
func parseNewsDate(value string) time.Time {
	for _, layout := range []string{
		"01/02/2006, 03:04 PM, -0700 MST",
		time.RFC3339,
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// TopicTokens maps canonical topic slugs to the provider's category tokens.
// Tokens come from the Google News topic taxonomy.
var TopicTokens = map[string]string{
	"world":         "CAAqJggKIiBDQkFTRWdvSUwyMHZNRGx1YlY4U0FtVnVHZ0pWVXlnQVAB",
	"business":      "CAAqJggKIiBDQkFTRWdvSUwyMHZNRGx6TVdZU0FtVnVHZ0pWVXlnQVAB",
	"technology":    "CAAqJggKIiBDQkFTRWdvSUwyMHZNRGRqTVhZU0FtVnVHZ0pWVXlnQVAB",
	"entertainment": "CAAqJggKIiBDQkFTRWdvSUwyMHZNREpxYW5RU0FtVnVHZ0pWVXlnQVAB",
	"sports":        "CAAqJggKIiBDQkFTRWdvSUwyMHZNRFp1ZEdvU0FtVnVHZ0pWVXlnQVAB",
	"science":       "CAAqJggKIiBDQkFTRWdvSUwyMHZNRFp0Y1RjU0FtVnVHZ0pWVXlnQVAB",
	"health":        "CAAqIQgKIhtDQkFTRGdvSUwyMHZNR3QwTlRFU0FtVnVLQUFQAQ",
}
