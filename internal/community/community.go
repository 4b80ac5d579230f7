// Package community reads hot posts and top comments from Reddit's public
// JSON listings.
package community

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"aifeed/internal/core"
	"aifeed/internal/logger"
	"aifeed/internal/provider"
)

const (
	providerName = "reddit"
	userAgent    = "aifeed/1.0 (news briefing bot)"

	// maxPostAge is the retention window for community posts.
	maxPostAge = 24 * time.Hour
)

// deletedBodies are sentinel values Reddit substitutes for removed content.
var deletedBodies = map[string]bool{
	"[deleted]":              true,
	"[removed]":              true,
	"[deleted by user]":      true,
	"[removed by reddit]":    true,
	"[unavailable]":          true,
	"[removed by moderator]": true,
}

// Client reads public Reddit listings.
type Client struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a community client. timeout bounds each call.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    "https://www.reddit.com",
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

// NewClientWithBaseURL creates a client pointed at a custom endpoint. Used
// by tests.
func NewClientWithBaseURL(baseURL string, timeout time.Duration) *Client {
	c := NewClient(timeout)
	c.baseURL = baseURL
	return c
}

// SetClock overrides the clock used for the 24h post filter. Used by tests.
func (c *Client) SetClock(now func() time.Time) {
	c.now = now
}

type listing struct {
	Data struct {
		Children []struct {
			Data json.RawMessage `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type postData struct {
	Title       string  `json:"title"`
	Score       int     `json:"score"`
	Permalink   string  `json:"permalink"`
	Subreddit   string  `json:"subreddit"`
	CreatedUTC  float64 `json:"created_utc"`
	NumComments int     `json:"num_comments"`
	Author      string  `json:"author"`
	Selftext    string  `json:"selftext"`
}

type commentData struct {
	Body          string          `json:"body"`
	Author        string          `json:"author"`
	Score         int             `json:"score"`
	CreatedUTC    float64         `json:"created_utc"`
	IsSubmitter   bool            `json:"is_submitter"`
	Distinguished string          `json:"distinguished"`
	Stickied      bool            `json:"stickied"`
	Replies       json.RawMessage `json:"replies"`
}

// Hot returns up to limit hot posts from the community, keeping only posts
// created within the last 24 hours.
func (c *Client) Hot(ctx context.Context, community string, limit int) ([]core.CommunityPost, error) {
	endpoint := fmt.Sprintf("%s/r/%s/top.json?t=day&limit=%d", c.baseURL, community, limit)
	var list listing
	if err := c.getJSON(ctx, endpoint, &list); err != nil {
		return nil, err
	}

	cutoff := c.now().Add(-maxPostAge)
	posts := make([]core.CommunityPost, 0, limit)
	for _, child := range list.Data.Children {
		var p postData
		if err := json.Unmarshal(child.Data, &p); err != nil {
			continue
		}
		created := time.Unix(int64(p.CreatedUTC), 0).UTC()
		if created.Before(cutoff) {
			continue
		}
		posts = append(posts, core.CommunityPost{
			Title:       p.Title,
			Score:       p.Score,
			Permalink:   p.Permalink,
			Community:   p.Subreddit,
			CreatedAt:   created,
			NumComments: p.NumComments,
			Author:      p.Author,
			Selftext:    p.Selftext,
		})
		if len(posts) >= limit {
			break
		}
	}

	logger.Debug("Community fetch completed", "community", community, "kept", len(posts))
	return posts, nil
}

// TopComments returns up to limit top-level comments for the post at
// permalink, dropping deleted and removed bodies.
func (c *Client) TopComments(ctx context.Context, permalink string, limit int) ([]core.CommunityComment, error) {
	endpoint := fmt.Sprintf("%s%s.json?sort=top&limit=%d", c.baseURL, strings.TrimSuffix(permalink, "/"), limit)

	// A comments request returns a two-element array: the post listing and
	// the comment listing.
	var pages []listing
	if err := c.getJSON(ctx, endpoint, &pages); err != nil {
		return nil, err
	}
	if len(pages) < 2 {
		return nil, nil
	}

	comments := make([]core.CommunityComment, 0, limit)
	for _, child := range pages[1].Data.Children {
		var cd commentData
		if err := json.Unmarshal(child.Data, &cd); err != nil {
			continue
		}
		if cd.Body == "" || deletedBodies[strings.ToLower(cd.Body)] {
			continue
		}
		comments = append(comments, core.CommunityComment{
			Body:          cd.Body,
			Author:        cd.Author,
			Score:         cd.Score,
			CreatedAt:     time.Unix(int64(cd.CreatedUTC), 0).UTC(),
			RepliesCount:  countReplies(cd.Replies),
			IsSubmitter:   cd.IsSubmitter,
			Distinguished: cd.Distinguished,
			Stickied:      cd.Stickied,
		})
		if len(comments) >= limit {
			break
		}
	}
	return comments, nil
}

// countReplies counts direct children of a comment's reply listing. Replies
// arrive either as a nested listing or as "" when absent.
func countReplies(raw json.RawMessage) int {
	if len(raw) == 0 || string(raw) == `""` {
		return 0
	}
	var nested listing
	if err := json.Unmarshal(raw, &nested); err != nil {
		return 0
	}
	return len(nested.Data.Children)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create community request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return provider.New(providerName, provider.KindTransient, 0, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return classify(resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return provider.New(providerName, provider.KindPermanent, resp.StatusCode,
			fmt.Sprintf("failed to parse listing: %v", err))
	}
	return nil
}

func classify(status int, body string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return provider.New(providerName, provider.KindRateLimit, status, "rate limited")
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return provider.New(providerName, provider.KindAuth, status, "access denied")
	case status >= 500:
		return provider.New(providerName, provider.KindTransient, status, "provider unavailable")
	default:
		return provider.New(providerName, provider.KindPermanent, status, body)
	}
}
