package prefs

import (
	"strings"

	"aifeed/internal/core"
)

// CanonicalTopics are the topic slugs the system understands. They map 1:1
// to the news provider's category tokens, plus the "general" catch-all.
var CanonicalTopics = []string{
	"technology", "business", "sports", "science",
	"health", "entertainment", "world", "general",
}

// localeTopicLabels maps locale-specific topic labels from legacy documents
// to canonical slugs. Lookup is case-insensitive.
var localeTopicLabels = map[string]string{
	// English
	"technology":    "technology",
	"tech":          "technology",
	"business":      "business",
	"sports":        "sports",
	"sport":         "sports",
	"science":       "science",
	"health":        "health",
	"entertainment": "entertainment",
	"world":         "world",
	"general":       "general",
	// German
	"technologie":   "technology",
	"wirtschaft":    "business",
	"wissenschaft":  "science",
	"gesundheit":    "health",
	"unterhaltung":  "entertainment",
	"welt":          "world",
	"allgemein":     "general",
	// French
	"technologies":   "technology",
	"économie":       "business",
	"affaires":       "business",
	"sciences":       "science",
	"santé":          "health",
	"divertissement": "entertainment",
	"monde":          "world",
	// Spanish
	"tecnología":       "technology",
	"negocios":         "business",
	"deportes":         "sports",
	"ciencia":          "science",
	"salud":            "health",
	"entretenimiento":  "entertainment",
	"mundo":            "world",
	// Japanese
	"テクノロジー": "technology",
	"ビジネス":   "business",
	"スポーツ":   "sports",
	"科学":     "science",
	"健康":     "health",
	"エンタメ":   "entertainment",
	"世界":     "world",
}

// subtopicParents maps well-known subtopic names to their parent topic.
// Subtopics not listed here land under "general" during migration.
var subtopicParents = map[string]string{
	"ai":                      "technology",
	"artificial intelligence": "technology",
	"machine learning":        "technology",
	"semiconductors":          "technology",
	"cybersecurity":           "technology",
	"startups":                "technology",
	"gadgets":                 "technology",
	"software":                "technology",
	"finance":                 "business",
	"markets":                 "business",
	"crypto":                  "business",
	"cryptocurrency":          "business",
	"economy":                 "business",
	"real estate":             "business",
	"football":                "sports",
	"soccer":                  "sports",
	"basketball":              "sports",
	"tennis":                  "sports",
	"formula 1":               "sports",
	"space":                   "science",
	"physics":                 "science",
	"climate":                 "science",
	"biology":                 "science",
	"medicine":                "health",
	"fitness":                 "health",
	"nutrition":               "health",
	"mental health":           "health",
	"movies":                  "entertainment",
	"music":                   "entertainment",
	"gaming":                  "entertainment",
	"television":              "entertainment",
	"geopolitics":             "world",
	"elections":               "world",
	"europe":                  "world",
	"asia":                    "world",
}

// subtopicCatalog provides default sources for well-known subtopics when a
// legacy document carries none.
var subtopicCatalog = map[string]core.SubtopicSources{
	"ai": {
		Subreddits: []string{"artificial", "MachineLearning"},
		Queries:    []string{"artificial intelligence", "large language models"},
	},
	"semiconductors": {
		Subreddits: []string{"hardware"},
		Queries:    []string{"semiconductor industry", "chip manufacturing"},
	},
	"cybersecurity": {
		Subreddits: []string{"cybersecurity", "netsec"},
		Queries:    []string{"cybersecurity breach", "ransomware"},
	},
	"finance": {
		Subreddits: []string{"finance", "investing"},
		Queries:    []string{"stock market", "interest rates"},
	},
	"crypto": {
		Subreddits: []string{"CryptoCurrency"},
		Queries:    []string{"bitcoin", "cryptocurrency regulation"},
	},
	"space": {
		Subreddits: []string{"space"},
		Queries:    []string{"space exploration", "rocket launch"},
	},
	"climate": {
		Subreddits: []string{"climate"},
		Queries:    []string{"climate change", "renewable energy"},
	},
	"gaming": {
		Subreddits: []string{"games"},
		Queries:    []string{"video game industry"},
	},
	"geopolitics": {
		Subreddits: []string{"geopolitics", "worldnews"},
		Queries:    []string{"international relations"},
	},
}

// CanonicalTopic resolves a legacy topic label to its canonical slug. The
// second return is false when the label is unknown.
func CanonicalTopic(label string) (string, bool) {
	slug, ok := localeTopicLabels[strings.ToLower(strings.TrimSpace(label))]
	return slug, ok
}

// ParentTopic resolves a subtopic name to its parent topic, defaulting to
// "general".
func ParentTopic(subtopic string) string {
	if parent, ok := subtopicParents[strings.ToLower(strings.TrimSpace(subtopic))]; ok {
		return parent
	}
	return "general"
}

// CatalogSources returns the built-in sources for a subtopic, or the
// universal default {no subreddits, query = subtopic name}.
func CatalogSources(subtopic string) core.SubtopicSources {
	if sources, ok := subtopicCatalog[strings.ToLower(strings.TrimSpace(subtopic))]; ok {
		return core.SubtopicSources{
			Subreddits: append([]string(nil), sources.Subreddits...),
			Queries:    append([]string(nil), sources.Queries...),
		}
	}
	return core.SubtopicSources{Subreddits: []string{}, Queries: []string{subtopic}}
}
