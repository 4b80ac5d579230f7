package report

import (
	"strings"

	"aifeed/internal/core"
)

// personalKeywords mark content that is about the poster's own life rather
// than the news. Posts and comments dominated by these are dropped from the
// community pulse.
var personalKeywords = []string{
	"my wife", "my husband", "my girlfriend", "my boyfriend", "my mom",
	"my dad", "my family", "my job", "my boss", "my landlord", "my salary",
	"my therapist", "my doctor", "am i the only one", "aita", "advice",
	"should i", "i feel", "i'm feeling", "vent", "rant", "personal",
	"my first", "help me", "diagnosed",
}

// worldKeywords mark discussion of world events worth keeping even from
// small communities.
var worldKeywords = []string{
	"election", "government", "president", "parliament", "sanction",
	"economy", "inflation", "interest rate", "market", "war", "ceasefire",
	"treaty", "tariff", "ai ", "artificial intelligence", "layoff",
	"acquisition", "ipo", "regulation", "supreme court", "climate",
	"summit", "minister", "central bank",
}

// newsCommunities are communities whose posts are kept regardless of
// keywords, matched as substrings of the community name.
var newsCommunities = []string{
	"world", "news", "politics", "economics", "economy", "technology",
	"tech", "business", "finance", "geopolitics",
}

// hotTopicNames is the fixed set of key-topic labels surfaced by substring
// match over the retained corpus.
var hotTopicNames = []string{
	"AI", "elections", "interest rates", "inflation", "energy",
	"crypto", "climate", "layoffs", "markets", "conflict",
}

// hotTopicMatchers maps each label to the substrings that trigger it.
var hotTopicMatchers = map[string][]string{
	"AI":             {"ai ", " ai", "artificial intelligence", "llm", "chatbot"},
	"elections":      {"election", "ballot", "vote"},
	"interest rates": {"interest rate", "central bank", "fed "},
	"inflation":      {"inflation", "cpi", "price increase"},
	"energy":         {"oil", "gas price", "energy", "opec"},
	"crypto":         {"bitcoin", "crypto", "ethereum"},
	"climate":        {"climate", "emissions", "wildfire", "flood"},
	"layoffs":        {"layoff", "job cuts", "restructuring"},
	"markets":        {"stock", "market", "s&p", "nasdaq"},
	"conflict":       {"war", "strike", "missile", "ceasefire", "troops"},
}

// isPersonal reports whether text is predominantly about the author's
// personal life.
func isPersonal(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range personalKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func mentionsWorldEvent(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range worldKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func isNewsCommunity(community string) bool {
	lower := strings.ToLower(community)
	for _, name := range newsCommunities {
		if strings.Contains(lower, name) {
			return true
		}
	}
	return false
}

// filterCommunityPosts keeps posts relevant to world events: not personal,
// and either from a news community, mentioning a world-event keyword, or
// highly upvoted. Personal comments are dropped from kept posts.
func filterCommunityPosts(posts []core.CommunityPost) []core.CommunityPost {
	kept := make([]core.CommunityPost, 0, len(posts))
	for _, post := range posts {
		text := post.Title + " " + post.Selftext
		if isPersonal(text) {
			continue
		}
		if !isNewsCommunity(post.Community) && !mentionsWorldEvent(text) && post.Score <= 100 {
			continue
		}
		if len(post.Comments) > 0 {
			comments := make([]core.CommunityComment, 0, len(post.Comments))
			for _, c := range post.Comments {
				if isPersonal(c.Body) {
					continue
				}
				comments = append(comments, c)
			}
			post.Comments = comments
		}
		kept = append(kept, post)
	}
	return kept
}

// extractKeyTopics returns the hot-topic labels whose trigger substrings
// appear in the corpus, in the fixed label order.
func extractKeyTopics(corpus string) []string {
	lower := strings.ToLower(corpus)
	out := []string{}
	for _, label := range hotTopicNames {
		for _, trigger := range hotTopicMatchers[label] {
			if strings.Contains(lower, trigger) {
				out = append(out, label)
				break
			}
		}
	}
	return out
}
