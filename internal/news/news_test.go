package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"aifeed/internal/provider"
)

func TestQuantizeSince(t *testing.T) {
	tests := []struct {
		since    time.Duration
		expected TimePeriod
	}{
		{30 * time.Minute, PeriodHour},
		{time.Hour, PeriodHour},
		{2 * time.Hour, PeriodDay},
		{24 * time.Hour, PeriodDay},
		{48 * time.Hour, PeriodWeek},
		{30 * 24 * time.Hour, PeriodWeek},
	}
	for _, tt := range tests {
		if got := QuantizeSince(tt.since); got != tt.expected {
			t.Errorf("QuantizeSince(%v) = %s, want %s", tt.since, got, tt.expected)
		}
	}
}

func TestSearchNormalizesArticles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("engine"); got != "google_news" {
			t.Errorf("Expected engine=google_news, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"news_results": [
			{"title": "Chip fab opens", "link": "https://example.com/a", "source": {"name": "Example Wire"}, "date": "01/15/2026, 08:30 AM, +0000 UTC", "snippet": "A new fab."},
			{"title": "Second story", "link": "https://example.com/b", "source": {"name": "Example Wire"}, "date": "01/15/2026, 07:00 AM, +0000 UTC"},
			{"title": "Third story", "link": "https://example.com/c", "source": {"name": "Example Wire"}, "date": "01/15/2026, 06:00 AM, +0000 UTC"}
		]}`))
	}))
	defer server.Close()

	client := NewClientWithBaseURL("key", server.URL, 5*time.Second)
	result, err := client.Search(context.Background(), Query{Text: "chips", Max: 2, TimePeriod: PeriodDay})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(result.Articles) != 2 {
		t.Fatalf("Expected Max to cap articles at 2, got %d", len(result.Articles))
	}
	if result.Total != 3 {
		t.Errorf("Expected total 3, got %d", result.Total)
	}
	if result.UsedFallback {
		t.Error("Expected no fallback for a non-empty bucketed search")
	}
	first := result.Articles[0]
	if first.Title != "Chip fab opens" || first.SourceName != "Example Wire" {
		t.Errorf("Unexpected normalization: %+v", first)
	}
	if first.PublishedAt.IsZero() {
		t.Error("Expected published_at to be parsed")
	}
}

func TestSearchFallsBackWhenBucketEmpty(t *testing.T) {
	var calls []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tbs := r.URL.Query().Get("tbs")
		calls = append(calls, tbs)
		w.Header().Set("Content-Type", "application/json")
		if tbs != "" {
			_, _ = w.Write([]byte(`{"news_results": []}`))
			return
		}
		_, _ = w.Write([]byte(`{"news_results": [{"title": "Old story", "link": "https://example.com/x", "source": {"name": "Wire"}}]}`))
	}))
	defer server.Close()

	client := NewClientWithBaseURL("key", server.URL, 5*time.Second)
	result, err := client.Search(context.Background(), Query{Text: "rare topic", Max: 2, TimePeriod: PeriodDay})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(calls) != 2 || calls[0] != "qdr:d" || calls[1] != "" {
		t.Errorf("Expected bucketed call then unbounded retry, got %v", calls)
	}
	if !result.UsedFallback {
		t.Error("Expected UsedFallback=true after bucket retry")
	}
	if len(result.Articles) != 1 {
		t.Errorf("Expected 1 article from fallback, got %d", len(result.Articles))
	}
}

func TestSearchClassifiesErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected provider.Kind
	}{
		{"quota", 429, `{"error": "Your account has run out of searches."}`, provider.KindQuota},
		{"rate limit", 429, `{"error": "too many requests"}`, provider.KindRateLimit},
		{"auth", 401, `{"error": "Invalid API key"}`, provider.KindAuth},
		{"server", 503, "upstream down", provider.KindTransient},
		{"bad request", 400, `{"error": "Missing query"}`, provider.KindPermanent},
		{"quota in 200 body", 200, `{"error": "Your account has run out of searches."}`, provider.KindQuota},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClientWithBaseURL("key", server.URL, 5*time.Second)
			_, err := client.Search(context.Background(), Query{Text: "q", Max: 2})
			if err == nil {
				t.Fatal("Expected an error")
			}
			if got := provider.KindOf(err); got != tt.expected {
				t.Errorf("Expected kind %s, got %s (%v)", tt.expected, got, err)
			}
		})
	}
}

func TestTopicTokensCoverCanonicalTopics(t *testing.T) {
	for _, topic := range []string{"world", "business", "technology", "sports", "science", "health", "entertainment"} {
		if TopicTokens[topic] == "" {
			t.Errorf("Expected a topic token for %q", topic)
		}
	}
}
