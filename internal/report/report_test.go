package report

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"aifeed/internal/core"
	"aifeed/internal/docstore"
	"aifeed/internal/llm"
)

func sampleTopic() *core.TopicArtifact {
	return &core.TopicArtifact{
		TopicName: "business",
		TopicHeadlines: []core.Article{
			{Title: "Markets climb on rate cut hopes", SourceName: "Reuters"},
			{Title: "Chipmaker posts record quarter", SourceName: "Bloomberg"},
		},
		Subtopics: map[string]core.SubtopicArtifact{
			"finance": {
				SubtopicName: "finance",
				ArticlesForSubtopicName: []core.Article{
					{Title: "Banks raise deposit rates", SourceName: "FT"},
				},
				Queries: map[string][]core.Article{
					"stock market": {
						{Title: "Stock market rally extends gains", SourceName: "CNBC"},
						{Title: "Stock market volatility drops", SourceName: "WSJ"},
					},
				},
				Communities: map[string][]core.CommunityPost{
					"worldnews": {
						{
							Title:     "Central bank signals rate path",
							Score:     540,
							Community: "worldnews",
							Comments: []core.CommunityComment{
								{Body: "This changes the inflation outlook", Score: 90},
							},
						},
					},
				},
			},
		},
	}
}

func TestBuildTopicReport(t *testing.T) {
	mock := &llm.MockChat{Responses: []string{
		"Rate Cut Hopes Lift Markets",
		"**Business Summary**\n**Rates**\n• Banks moved first",
		"**Finance Summary**\n• Deposit rates up",
		"**Key Developments:**\n• Rate path debated",
	}}
	b := NewBuilder(mock, docstore.NewMemoryStore())

	rep := b.BuildTopicReport(context.Background(), sampleTopic(), "en")

	if rep.PickupLine != "Rate Cut Hopes Lift Markets" {
		t.Errorf("pickup line = %q", rep.PickupLine)
	}
	if !strings.HasPrefix(rep.TopicSummary, "**Business Summary**") {
		t.Errorf("topic summary = %q", rep.TopicSummary)
	}
	sub, ok := rep.Subtopics["finance"]
	if !ok {
		t.Fatalf("missing finance subtopic report, got keys %v", rep.Subtopics)
	}
	if !strings.HasPrefix(sub.SubtopicSummary, "**Finance Summary**") {
		t.Errorf("subtopic summary = %q", sub.SubtopicSummary)
	}
	if !strings.HasPrefix(sub.CommunitySummary, "**Key Developments:**") {
		t.Errorf("community summary = %q", sub.CommunitySummary)
	}
	if rep.GenerationStats.Calls != 4 {
		t.Errorf("calls = %d, want 4", rep.GenerationStats.Calls)
	}
	if rep.GenerationStats.Failures != 0 {
		t.Errorf("failures = %d, want 0", rep.GenerationStats.Failures)
	}
	if rep.GenerationStats.InputTokens != 400 || rep.GenerationStats.OutputTokens != 200 {
		t.Errorf("token counts = %d/%d", rep.GenerationStats.InputTokens, rep.GenerationStats.OutputTokens)
	}
}

func TestBuildTopicReportFallbacks(t *testing.T) {
	mock := &llm.MockChat{Err: errors.New("model unavailable")}
	b := NewBuilder(mock, docstore.NewMemoryStore())

	rep := b.BuildTopicReport(context.Background(), sampleTopic(), "en")

	if rep.PickupLine != "Latest business updates" {
		t.Errorf("pickup fallback = %q", rep.PickupLine)
	}
	if rep.TopicSummary != "No summary could be generated for business right now." {
		t.Errorf("topic summary fallback = %q", rep.TopicSummary)
	}
	sub := rep.Subtopics["finance"]
	if sub.SubtopicSummary != "No summary could be generated for finance right now." {
		t.Errorf("subtopic fallback = %q", sub.SubtopicSummary)
	}
	if sub.CommunitySummary != "Community discussions are unavailable right now." {
		t.Errorf("community fallback = %q", sub.CommunitySummary)
	}
	if rep.GenerationStats.Failures != rep.GenerationStats.Calls {
		t.Errorf("failures = %d with %d calls", rep.GenerationStats.Failures, rep.GenerationStats.Calls)
	}
}

func TestPickupLineStripsQuotes(t *testing.T) {
	mock := &llm.MockChat{Responses: []string{`  "Chipmakers Post Record Quarter"  `}}
	b := NewBuilder(mock, docstore.NewMemoryStore())

	got := b.PickupLine(context.Background(), sampleTopic(), "en", &core.GenerationStats{})
	if got != "Chipmakers Post Record Quarter" {
		t.Errorf("pickup line = %q", got)
	}
}

func TestCommunitySummarySkipsWhenNothingSurvivesFilter(t *testing.T) {
	mock := &llm.MockChat{Responses: []string{"should never be used"}}
	b := NewBuilder(mock, docstore.NewMemoryStore())

	posts := []core.CommunityPost{
		{Title: "My boss is driving me crazy, advice?", Community: "jobs", Score: 900},
		{Title: "Random meme", Community: "funny", Score: 12},
	}
	pulse, err := b.CommunitySummary(context.Background(), posts, "en", &core.GenerationStats{})
	if err != nil {
		t.Fatalf("CommunitySummary: %v", err)
	}
	if pulse.Summary != "" {
		t.Errorf("summary = %q, want empty", pulse.Summary)
	}
	if len(pulse.KeyTopics) != 0 {
		t.Errorf("key topics = %v, want none", pulse.KeyTopics)
	}
	if mock.Calls() != 0 {
		t.Errorf("LLM called %d times for empty corpus", mock.Calls())
	}
}

func TestFilterCommunityPosts(t *testing.T) {
	posts := []core.CommunityPost{
		{Title: "Should I quit my job over this?", Community: "careerguidance", Score: 2000},
		{Title: "Random meme thread", Community: "funny", Score: 50},
		{Title: "Parliament passes new sanction package", Community: "smallsub", Score: 30},
		{Title: "Daily discussion", Community: "worldnews", Score: 10,
			Comments: []core.CommunityComment{
				{Body: "My therapist says I worry too much", Score: 400},
				{Body: "The ceasefire talks resumed today", Score: 250},
			}},
		{Title: "Popular but off topic", Community: "pics", Score: 5000},
	}

	kept := filterCommunityPosts(posts)
	if len(kept) != 3 {
		t.Fatalf("kept %d posts, want 3: %+v", len(kept), kept)
	}
	if kept[0].Title != "Parliament passes new sanction package" {
		t.Errorf("kept[0] = %q", kept[0].Title)
	}
	if kept[1].Community != "worldnews" {
		t.Errorf("kept[1] community = %q", kept[1].Community)
	}
	if len(kept[1].Comments) != 1 || !strings.Contains(kept[1].Comments[0].Body, "ceasefire") {
		t.Errorf("personal comment not stripped: %+v", kept[1].Comments)
	}
	if kept[2].Score != 5000 {
		t.Errorf("high-score post dropped: %+v", kept[2])
	}
}

func TestExtractKeyTopics(t *testing.T) {
	corpus := "Bitcoin rallies as election results land. Inflation cools while the central bank holds."
	got := extractKeyTopics(corpus)
	want := []string{"elections", "interest rates", "inflation", "crypto"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("key topics = %v, want %v", got, want)
	}
}

func TestTrendingKeywords(t *testing.T) {
	topic := &core.TopicArtifact{
		TopicName: "technology",
		Subtopics: map[string]core.SubtopicArtifact{
			"semiconductors": {
				Queries: map[string][]core.Article{
					"chips": {
						{Title: "Nvidia unveils next chip generation"},
						{Title: "Nvidia supply tightens as chip demand surges"},
						{Title: "The chip shortage eases"},
					},
				},
			},
		},
	}

	got := trendingKeywords(topic, 2)
	if len(got) != 2 {
		t.Fatalf("got %v", got)
	}
	if got[0] != "chip" && got[0] != "nvidia" {
		t.Errorf("top keyword = %q", got[0])
	}
	for _, word := range got {
		if stopwords[word] {
			t.Errorf("stopword %q surfaced", word)
		}
	}
}

func TestBuildUserReport(t *testing.T) {
	docs := docstore.NewMemoryStore()
	refreshedAt := time.Date(2026, 3, 9, 7, 30, 0, 0, time.UTC)
	bundle := &core.UserArticlesBundle{
		UserID:           "user-9",
		RefreshTimestamp: refreshedAt,
		TopicsData: map[string]core.TopicArtifact{
			"business":   *sampleTopic(),
			"technology": {TopicName: "technology", Subtopics: map[string]core.SubtopicArtifact{}},
		},
		Summary: core.BundleSummary{Language: "de"},
	}
	if err := docs.Set(context.Background(), docstore.ColArticles, "user-9", bundle); err != nil {
		t.Fatalf("seed articles: %v", err)
	}

	mock := &llm.MockChat{Responses: []string{"Titel"}}
	b := NewBuilder(mock, docs)

	got, err := b.BuildUserReport(context.Background(), "user-9")
	if err != nil {
		t.Fatalf("BuildUserReport: %v", err)
	}

	if len(got.Reports) != len(bundle.TopicsData) {
		t.Fatalf("reports = %d, want %d", len(got.Reports), len(bundle.TopicsData))
	}
	for topic := range bundle.TopicsData {
		if _, ok := got.Reports[topic]; !ok {
			t.Errorf("missing report for topic %q", topic)
		}
	}
	if got.Language != "de" {
		t.Errorf("language = %q, want de", got.Language)
	}
	if !got.RefreshTimestamp.Equal(refreshedAt) {
		t.Errorf("refresh timestamp = %v", got.RefreshTimestamp)
	}
	if got.GenerationStats.Calls == 0 {
		t.Error("aggregated stats empty")
	}

	var persisted core.UserReportBundle
	if err := docs.Get(context.Background(), docstore.ColAIFeed, "user-9", &persisted); err != nil {
		t.Fatalf("persisted bundle missing: %v", err)
	}
	if len(persisted.Reports) != len(got.Reports) {
		t.Errorf("persisted %d reports, want %d", len(persisted.Reports), len(got.Reports))
	}
}

func TestBuildUserReportMissingArticles(t *testing.T) {
	b := NewBuilder(&llm.MockChat{Responses: []string{"x"}}, docstore.NewMemoryStore())
	if _, err := b.BuildUserReport(context.Background(), "ghost"); err == nil {
		t.Fatal("expected error for missing articles bundle")
	}
}
