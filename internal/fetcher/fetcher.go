// Package fetcher pulls news articles and community posts for a user's
// nested preferences. Execution is strictly sequential and paced by token
// buckets: the news provider has a small daily quota and a sensitive rate
// limiter, and parallel fetches exhaust it mid-refresh.
package fetcher

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"aifeed/internal/core"
	"aifeed/internal/docstore"
	"aifeed/internal/logger"
	"aifeed/internal/news"
	"aifeed/internal/provider"
)

// NewsSearcher is the news search surface the fetcher consumes.
type NewsSearcher interface {
	Search(ctx context.Context, q news.Query) (*news.SearchResult, error)
}

// CommunityReader is the community forum surface the fetcher consumes.
type CommunityReader interface {
	Hot(ctx context.Context, community string, limit int) ([]core.CommunityPost, error)
	TopComments(ctx context.Context, permalink string, limit int) ([]core.CommunityComment, error)
}

// PreferenceReader loads the user's migrated v3.0 preferences.
type PreferenceReader interface {
	Get(ctx context.Context, userID string) (*core.UserPreferences, error)
}

const (
	articlesPerSearch = 2
	postsPerCommunity = 2
	headlinesPerTopic = 5
)

// Config tunes the fetcher's pacing and comment expansion.
type Config struct {
	// QueryInterval spaces consecutive query searches (default 1s).
	QueryInterval time.Duration
	// StepInterval spaces subtopic and topic advancement (default 2s).
	StepInterval time.Duration
	// CommentsPerPost expands community posts with top comments when > 0.
	CommentsPerPost int
	// Country is forwarded to every news search.
	Country string
}

// Fetcher composes news and community calls under quota discipline.
type Fetcher struct {
	news      NewsSearcher
	community CommunityReader
	prefs     PreferenceReader
	docs      docstore.Store
	cfg       Config

	queryLimiter *rate.Limiter
	stepLimiter  *rate.Limiter
	now          func() time.Time
}

// New creates a fetcher.
func New(newsClient NewsSearcher, communityClient CommunityReader, preferences PreferenceReader, docs docstore.Store, cfg Config) *Fetcher {
	if cfg.QueryInterval <= 0 {
		cfg.QueryInterval = time.Second
	}
	if cfg.StepInterval <= 0 {
		cfg.StepInterval = 2 * time.Second
	}
	return &Fetcher{
		news:         newsClient,
		community:    communityClient,
		prefs:        preferences,
		docs:         docs,
		cfg:          cfg,
		queryLimiter: rate.NewLimiter(rate.Every(cfg.QueryInterval), 1),
		stepLimiter:  rate.NewLimiter(rate.Every(cfg.StepInterval), 1),
		now:          time.Now,
	}
}

// SetClock overrides the clock used for refresh timestamps. Used by tests.
func (f *Fetcher) SetClock(now func() time.Time) {
	f.now = now
}

// FetchSubtopic fetches the article/query/community triple for one subtopic.
// The returned flag reports quota exhaustion during the news calls; the
// community fetch still runs when news quota is gone.
func (f *Fetcher) FetchSubtopic(ctx context.Context, language, subtopicName string, sources core.SubtopicSources) (*core.SubtopicArtifact, bool, error) {
	artifact := &core.SubtopicArtifact{
		SubtopicName:            subtopicName,
		ArticlesForSubtopicName: []core.Article{},
		Queries:                 make(map[string][]core.Article, len(sources.Queries)),
		Communities:             make(map[string][]core.CommunityPost, len(sources.Subreddits)),
	}
	for _, q := range sources.Queries {
		artifact.Queries[q] = []core.Article{}
	}

	quotaExceeded := false

	result, err := f.news.Search(ctx, news.Query{
		Text:       subtopicName,
		Language:   language,
		Country:    f.cfg.Country,
		Max:        articlesPerSearch,
		TimePeriod: news.PeriodDay,
	})
	switch {
	case err == nil:
		artifact.ArticlesForSubtopicName = result.Articles
	case provider.IsQuota(err):
		// Daily quota is gone; every further news call would burn a
		// failed request, so the per-query searches are skipped.
		quotaExceeded = true
		logger.Warn("News quota exhausted, skipping query searches", "subtopic", subtopicName)
	case ctx.Err() != nil:
		return nil, false, ctx.Err()
	default:
		logger.Error("Subtopic search failed", err, "subtopic", subtopicName)
	}

	if !quotaExceeded {
		for _, query := range sources.Queries {
			if err := f.queryLimiter.Wait(ctx); err != nil {
				return nil, false, err
			}
			result, err := f.news.Search(ctx, news.Query{
				Text:       query,
				Language:   language,
				Country:    f.cfg.Country,
				Max:        articlesPerSearch,
				TimePeriod: news.PeriodDay,
			})
			if err != nil {
				if provider.IsQuota(err) || provider.IsRateLimit(err) {
					quotaExceeded = true
					logger.Warn("News provider throttled, abandoning remaining queries",
						"subtopic", subtopicName, "query", query)
					break
				}
				if ctx.Err() != nil {
					return nil, false, ctx.Err()
				}
				logger.Error("Query search failed", err, "query", query)
				continue
			}
			artifact.Queries[query] = result.Articles
		}
	}

	for _, community := range sources.Subreddits {
		posts, err := f.community.Hot(ctx, community, postsPerCommunity)
		if err != nil {
			if ctx.Err() != nil {
				return nil, false, ctx.Err()
			}
			logger.Error("Community fetch failed", err, "community", community)
			artifact.Communities[community] = []core.CommunityPost{}
			continue
		}
		if f.cfg.CommentsPerPost > 0 {
			for i := range posts {
				comments, err := f.community.TopComments(ctx, posts[i].Permalink, f.cfg.CommentsPerPost)
				if err != nil {
					logger.Error("Comment fetch failed", err, "permalink", posts[i].Permalink)
					continue
				}
				posts[i].Comments = comments
			}
		}
		artifact.Communities[community] = posts
	}

	return artifact, quotaExceeded, nil
}

// FetchTopic fetches headlines plus every subtopic for one topic. Subtopic
// quota exhaustion degrades the artifact but never aborts the topic.
func (f *Fetcher) FetchTopic(ctx context.Context, language, topicName string, subtopics map[string]core.SubtopicSources) (*core.TopicArtifact, error) {
	artifact := &core.TopicArtifact{
		TopicName:      topicName,
		TopicHeadlines: []core.Article{},
		Subtopics:      make(map[string]core.SubtopicArtifact, len(subtopics)),
	}

	result, err := f.news.Search(ctx, news.Query{
		Text:       topicName,
		Language:   language,
		Country:    f.cfg.Country,
		Max:        headlinesPerTopic,
		TimePeriod: news.PeriodDay,
		TopicToken: news.TopicTokens[topicName],
	})
	switch {
	case err == nil:
		artifact.TopicHeadlines = result.Articles
	case provider.IsQuota(err):
		artifact.Warnings.QuotaExceeded = true
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		logger.Error("Topic headline search failed", err, "topic", topicName)
	}

	for _, subtopicName := range sortedKeys(subtopics) {
		if err := f.stepLimiter.Wait(ctx); err != nil {
			return nil, err
		}
		sub, quotaExceeded, err := f.FetchSubtopic(ctx, language, subtopicName, subtopics[subtopicName])
		if err != nil {
			return nil, err
		}
		if quotaExceeded {
			artifact.Warnings.QuotaExceeded = true
		}
		artifact.Subtopics[subtopicName] = *sub
	}

	artifact.Summary = countTopic(artifact)
	return artifact, nil
}

// Refresh fetches all topics for a user and persists the bundle, overwriting
// any prior refresh.
func (f *Fetcher) Refresh(ctx context.Context, userID string) (*core.UserArticlesBundle, error) {
	preferences, err := f.prefs.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences for %s: %w", userID, err)
	}

	bundle := &core.UserArticlesBundle{
		UserID:           userID,
		RefreshTimestamp: f.now().UTC(),
		TopicsData:       make(map[string]core.TopicArtifact, len(preferences.Preferences)),
	}

	for _, topicName := range sortedKeys(preferences.Preferences) {
		if err := f.stepLimiter.Wait(ctx); err != nil {
			return nil, err
		}
		topic, err := f.FetchTopic(ctx, preferences.Language, topicName, preferences.Preferences[topicName])
		if err != nil {
			return nil, fmt.Errorf("failed to fetch topic %s: %w", topicName, err)
		}
		bundle.TopicsData[topicName] = *topic
	}

	bundle.Summary = countBundle(bundle, preferences.Language, f.cfg.Country)

	if err := f.docs.Set(ctx, docstore.ColArticles, userID, bundle); err != nil {
		return nil, fmt.Errorf("failed to persist articles bundle for %s: %w", userID, err)
	}

	logger.Info("Refresh persisted", "user_id", userID,
		"topics", bundle.Summary.TopicCount,
		"articles", bundle.Summary.TotalArticles,
		"posts", bundle.Summary.TotalPosts)
	return bundle, nil
}

func countTopic(topic *core.TopicArtifact) core.TopicSummaryCounts {
	counts := core.TopicSummaryCounts{
		TotalArticles: len(topic.TopicHeadlines),
		Subtopics:     len(topic.Subtopics),
	}
	for _, sub := range topic.Subtopics {
		counts.TotalArticles += len(sub.ArticlesForSubtopicName)
		for _, articles := range sub.Queries {
			counts.TotalArticles += len(articles)
		}
		for _, posts := range sub.Communities {
			counts.TotalPosts += len(posts)
		}
	}
	return counts
}

func countBundle(bundle *core.UserArticlesBundle, language, country string) core.BundleSummary {
	summary := core.BundleSummary{
		TopicCount: len(bundle.TopicsData),
		Language:   language,
		Country:    country,
	}
	for _, topic := range bundle.TopicsData {
		summary.TotalArticles += topic.Summary.TotalArticles
		summary.TotalPosts += topic.Summary.TotalPosts
	}
	return summary
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
