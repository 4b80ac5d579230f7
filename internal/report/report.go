// Package report reduces fetched content into layered LLM-generated
// summaries: a pickup line and topic summary per topic, plus per-subtopic
// article and community summaries.
package report

import (
	"context"
	"fmt"
	"strings"

	"aifeed/internal/core"
	"aifeed/internal/docstore"
	"aifeed/internal/llm"
	"aifeed/internal/logger"
	"aifeed/internal/prompts"
)

// Builder generates report bundles from persisted article bundles.
type Builder struct {
	chat llm.Chat
	docs docstore.Store
}

// NewBuilder creates a report builder.
func NewBuilder(chat llm.Chat, docs docstore.Store) *Builder {
	return &Builder{chat: chat, docs: docs}
}

// CommunityPulse is the generated community brief plus its surfaced topics.
type CommunityPulse struct {
	Summary   string   `json:"summary"`
	KeyTopics []string `json:"key_topics"`
}

// PickupLine asks for a 3-5 word factual title for the topic. On LLM
// failure it falls back to a static title.
func (b *Builder) PickupLine(ctx context.Context, topic *core.TopicArtifact, language string, stats *core.GenerationStats) string {
	set := prompts.ForLanguage(language)

	headlines := topHeadlines(topic, maxPickupHeadlines)
	keywords := trendingKeywords(topic, maxPickupKeywords)
	var corpus strings.Builder
	corpus.WriteString("Headlines:\n")
	for _, h := range headlines {
		corpus.WriteString("- " + h + "\n")
	}
	if len(keywords) > 0 {
		corpus.WriteString("Trending keywords: " + strings.Join(keywords, ", ") + "\n")
	}

	completion, err := b.chat.Complete(ctx, llm.CompletionRequest{
		System:      fmt.Sprintf(set.PickupSystem, topic.TopicName),
		Messages:    []llm.Message{{Role: "user", Content: corpus.String()}},
		MaxTokens:   50,
		Temperature: 0.3,
	})
	record(stats, completion, err)
	if err != nil {
		logger.Warn("Pickup line generation failed, using fallback", "topic", topic.TopicName)
		return fmt.Sprintf(set.PickupFallback, topic.TopicName)
	}
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(completion.Text), `"`))
}

// TopicSummary asks for a <=100-word Markdown summary with dynamically named
// sections covering the whole topic corpus.
func (b *Builder) TopicSummary(ctx context.Context, topic *core.TopicArtifact, language string, stats *core.GenerationStats) (string, error) {
	set := prompts.ForLanguage(language)
	completion, err := b.chat.Complete(ctx, llm.CompletionRequest{
		System:      fmt.Sprintf(set.TopicSummarySystem, topic.TopicName, titleCase(topic.TopicName)),
		Messages:    []llm.Message{{Role: "user", Content: flattenTopic(topic)}},
		MaxTokens:   150,
		Temperature: 0.4,
	})
	record(stats, completion, err)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(completion.Text), nil
}

// SubtopicSummary is the topic-summary algorithm applied to one subtopic's
// articles (subtopic-name articles plus all query articles).
func (b *Builder) SubtopicSummary(ctx context.Context, sub *core.SubtopicArtifact, language string, stats *core.GenerationStats) (string, error) {
	set := prompts.ForLanguage(language)
	corpus := flattenSubtopic(sub)
	if corpus == "" {
		return "", fmt.Errorf("no articles for subtopic %s", sub.SubtopicName)
	}
	completion, err := b.chat.Complete(ctx, llm.CompletionRequest{
		System:      fmt.Sprintf(set.SubtopicSystem, sub.SubtopicName, titleCase(sub.SubtopicName)),
		Messages:    []llm.Message{{Role: "user", Content: corpus}},
		MaxTokens:   150,
		Temperature: 0.4,
	})
	record(stats, completion, err)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(completion.Text), nil
}

// CommunitySummary filters posts down to world-relevant discussion and asks
// for a <=150-word brief. Key topics are extracted from the retained corpus
// by substring match.
func (b *Builder) CommunitySummary(ctx context.Context, posts []core.CommunityPost, language string, stats *core.GenerationStats) (*CommunityPulse, error) {
	kept := filterCommunityPosts(posts)
	if len(kept) == 0 {
		return &CommunityPulse{Summary: "", KeyTopics: []string{}}, nil
	}

	var corpus strings.Builder
	for _, post := range kept {
		writePost(&corpus, post)
	}

	set := prompts.ForLanguage(language)
	completion, err := b.chat.Complete(ctx, llm.CompletionRequest{
		System:      set.CommunitySystem,
		Messages:    []llm.Message{{Role: "user", Content: corpus.String()}},
		MaxTokens:   200,
		Temperature: 0.4,
	})
	record(stats, completion, err)
	if err != nil {
		return nil, err
	}
	return &CommunityPulse{
		Summary:   strings.TrimSpace(completion.Text),
		KeyTopics: extractKeyTopics(corpus.String()),
	}, nil
}

// BuildTopicReport composes the full report for one topic. Sub-calls are
// independent: a failed slot gets a readable fallback string and the report
// still completes.
func (b *Builder) BuildTopicReport(ctx context.Context, topic *core.TopicArtifact, language string) *core.TopicReport {
	set := prompts.ForLanguage(language)
	stats := &core.GenerationStats{}

	rep := &core.TopicReport{
		Subtopics: make(map[string]core.SubtopicReport, len(topic.Subtopics)),
	}

	rep.PickupLine = b.PickupLine(ctx, topic, language, stats)

	summary, err := b.TopicSummary(ctx, topic, language, stats)
	if err != nil {
		logger.Warn("Topic summary failed, using fallback", "topic", topic.TopicName)
		summary = fmt.Sprintf(set.SummaryFallback, topic.TopicName)
	}
	rep.TopicSummary = summary

	for _, name := range sortedKeys(topic.Subtopics) {
		sub := topic.Subtopics[name]
		subReport := core.SubtopicReport{}

		text, err := b.SubtopicSummary(ctx, &sub, language, stats)
		if err != nil {
			text = fmt.Sprintf(set.SummaryFallback, name)
		}
		subReport.SubtopicSummary = text

		var posts []core.CommunityPost
		for _, community := range sortedKeys(sub.Communities) {
			posts = append(posts, sub.Communities[community]...)
		}
		pulse, err := b.CommunitySummary(ctx, posts, language, stats)
		if err != nil {
			subReport.CommunitySummary = set.CommunityFallback
		} else {
			subReport.CommunitySummary = pulse.Summary
		}

		rep.Subtopics[name] = subReport
	}

	rep.GenerationStats = *stats
	return rep
}

// BuildUserReport reads the user's persisted article bundle, builds a report
// per topic, and persists the aggregated bundle keyed by user (overwriting).
func (b *Builder) BuildUserReport(ctx context.Context, userID string) (*core.UserReportBundle, error) {
	var articles core.UserArticlesBundle
	if err := b.docs.Get(ctx, docstore.ColArticles, userID, &articles); err != nil {
		return nil, fmt.Errorf("failed to load articles bundle for %s: %w", userID, err)
	}

	language := articles.Summary.Language
	if language == "" {
		language = "en"
	}

	bundle := &core.UserReportBundle{
		UserID:           userID,
		Reports:          make(map[string]core.TopicReport, len(articles.TopicsData)),
		RefreshTimestamp: articles.RefreshTimestamp,
		Language:         language,
	}

	for _, topicName := range sortedKeys(articles.TopicsData) {
		topic := articles.TopicsData[topicName]
		rep := b.BuildTopicReport(ctx, &topic, language)
		bundle.Reports[topicName] = *rep

		bundle.GenerationStats.Calls += rep.GenerationStats.Calls
		bundle.GenerationStats.InputTokens += rep.GenerationStats.InputTokens
		bundle.GenerationStats.OutputTokens += rep.GenerationStats.OutputTokens
		bundle.GenerationStats.Failures += rep.GenerationStats.Failures
	}

	if err := b.docs.Set(ctx, docstore.ColAIFeed, userID, bundle); err != nil {
		return nil, fmt.Errorf("failed to persist report bundle for %s: %w", userID, err)
	}

	logger.Info("Report bundle persisted", "user_id", userID,
		"topics", len(bundle.Reports), "llm_calls", bundle.GenerationStats.Calls)
	return bundle, nil
}

func record(stats *core.GenerationStats, completion *llm.Completion, err error) {
	if stats == nil {
		return
	}
	stats.Calls++
	if err != nil {
		stats.Failures++
		return
	}
	stats.InputTokens += completion.Usage.InputTokens
	stats.OutputTokens += completion.Usage.OutputTokens
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
