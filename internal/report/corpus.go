package report

import (
	"fmt"
	"sort"
	"strings"

	"aifeed/internal/core"
)

const (
	maxPickupHeadlines = 6
	maxPickupKeywords  = 5
	maxSelftextChars   = 300
)

// stopwords are excluded from trending-keyword extraction.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "of": true,
	"to": true, "in": true, "on": true, "for": true, "with": true, "at": true,
	"by": true, "from": true, "as": true, "is": true, "are": true, "was": true,
	"be": true, "has": true, "have": true, "its": true, "it": true, "this": true,
	"that": true, "new": true, "after": true, "over": true, "amid": true,
	"into": true, "about": true, "will": true, "says": true, "say": true,
	"could": true, "more": true, "how": true, "what": true, "why": true,
	"up": true, "out": true, "not": true, "but": true,
}

// topHeadlines returns up to max headline titles across the topic artifact,
// topic headlines first.
func topHeadlines(topic *core.TopicArtifact, max int) []string {
	titles := make([]string, 0, max)
	for _, a := range topic.TopicHeadlines {
		if len(titles) >= max {
			return titles
		}
		titles = append(titles, a.Title)
	}
	for _, name := range sortedKeys(topic.Subtopics) {
		for _, a := range topic.Subtopics[name].ArticlesForSubtopicName {
			if len(titles) >= max {
				return titles
			}
			titles = append(titles, a.Title)
		}
	}
	return titles
}

// trendingKeywords extracts up to max recurring words from the titles of
// per-query articles, most frequent first.
func trendingKeywords(topic *core.TopicArtifact, max int) []string {
	freq := make(map[string]int)
	for _, sub := range topic.Subtopics {
		for _, articles := range sub.Queries {
			for _, a := range articles {
				for _, word := range strings.Fields(strings.ToLower(a.Title)) {
					word = strings.Trim(word, ".,:;!?'\"()[]")
					if len(word) < 3 || stopwords[word] {
						continue
					}
					freq[word]++
				}
			}
		}
	}

	words := make([]string, 0, len(freq))
	for word := range freq {
		words = append(words, word)
	}
	sort.Slice(words, func(i, j int) bool {
		if freq[words[i]] != freq[words[j]] {
			return freq[words[i]] > freq[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > max {
		words = words[:max]
	}
	return words
}

// flattenTopic renders the whole topic artifact as a labeled textual corpus:
// topic headlines, then per-subtopic articles, per-query articles, and
// community posts with scores and truncated selftext.
func flattenTopic(topic *core.TopicArtifact) string {
	var b strings.Builder

	if len(topic.TopicHeadlines) > 0 {
		fmt.Fprintf(&b, "TOP HEADLINES FOR %s:\n", strings.ToUpper(topic.TopicName))
		for _, a := range topic.TopicHeadlines {
			writeArticle(&b, a)
		}
		b.WriteString("\n")
	}

	for _, name := range sortedKeys(topic.Subtopics) {
		sub := topic.Subtopics[name]
		fmt.Fprintf(&b, "SUBTOPIC: %s\n", name)
		for _, a := range sub.ArticlesForSubtopicName {
			writeArticle(&b, a)
		}
		for _, query := range sortedKeys(sub.Queries) {
			if len(sub.Queries[query]) == 0 {
				continue
			}
			fmt.Fprintf(&b, "SEARCH %q:\n", query)
			for _, a := range sub.Queries[query] {
				writeArticle(&b, a)
			}
		}
		for _, community := range sortedKeys(sub.Communities) {
			for _, post := range sub.Communities[community] {
				writePost(&b, post)
			}
		}
		b.WriteString("\n")
	}

	return strings.TrimSpace(b.String())
}

// flattenSubtopic renders a single subtopic's article corpus: the
// subtopic-name articles plus every query's articles.
func flattenSubtopic(sub *core.SubtopicArtifact) string {
	var b strings.Builder
	for _, a := range sub.ArticlesForSubtopicName {
		writeArticle(&b, a)
	}
	for _, query := range sortedKeys(sub.Queries) {
		for _, a := range sub.Queries[query] {
			writeArticle(&b, a)
		}
	}
	return strings.TrimSpace(b.String())
}

func writeArticle(b *strings.Builder, a core.Article) {
	fmt.Fprintf(b, "- %s (%s)", a.Title, a.SourceName)
	if a.Snippet != "" {
		fmt.Fprintf(b, ": %s", a.Snippet)
	}
	b.WriteString("\n")
}

func writePost(b *strings.Builder, post core.CommunityPost) {
	fmt.Fprintf(b, "- [r/%s, %d points] %s", post.Community, post.Score, post.Title)
	if post.Selftext != "" {
		fmt.Fprintf(b, ": %s", truncate(post.Selftext, maxSelftextChars))
	}
	b.WriteString("\n")
	for _, comment := range post.Comments {
		fmt.Fprintf(b, "  comment (%d points): %s\n", comment.Score, truncate(comment.Body, maxSelftextChars))
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
