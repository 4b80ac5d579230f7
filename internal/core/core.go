package core

import "time"

// DetailLevel controls how much content a user wants per briefing.
type DetailLevel string

const (
	DetailLight    DetailLevel = "Light"
	DetailMedium   DetailLevel = "Medium"
	DetailDetailed DetailLevel = "Detailed"
)

// PreferencesFormatVersion is the only format version written by the store.
// Older versions (1.x/2.x flat shapes) are migrated on read.
const PreferencesFormatVersion = "3.0"

// SubtopicSources holds the per-subtopic content sources a user configured.
// Both slices are always non-nil in a valid v3.0 document.
type SubtopicSources struct {
	Subreddits []string `json:"subreddits"`
	Queries    []string `json:"queries"`
}

// UserPreferences is the v3.0 preference document: a three-level nested
// structure topic -> subtopic -> sources.
type UserPreferences struct {
	UserID           string                                `json:"user_id"`
	Preferences      map[string]map[string]SubtopicSources `json:"preferences"`
	DetailLevel      DetailLevel                           `json:"detail_level"`
	Language         string                                `json:"language"`
	FormatVersion    string                                `json:"format_version"`
	UpdatedAt        time.Time                             `json:"updated_at"`
	SpecificSubjects []string                              `json:"specific_subjects,omitempty"`
}

// ScheduleType selects the cadence of a user's briefing.
type ScheduleType string

const (
	ScheduleDaily  ScheduleType = "daily"
	ScheduleWeekly ScheduleType = "weekly"
)

// SchedulingPreferences says when a user's update pipeline should run.
// Day is only meaningful for weekly schedules (lowercase English weekday).
type SchedulingPreferences struct {
	UserID string       `json:"user_id"`
	Type   ScheduleType `json:"type"`
	Hour   int          `json:"hour"`
	Minute int          `json:"minute"`
	Day    string       `json:"day,omitempty"`
}

// Article is a news item as normalized from the search provider.
type Article struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	SourceName  string    `json:"source_name"`
	PublishedAt time.Time `json:"published_at"`
	Snippet     string    `json:"snippet,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	Content     string    `json:"content,omitempty"`
}

// CommunityComment is one comment on a community post.
type CommunityComment struct {
	Body          string    `json:"body"`
	Author        string    `json:"author"`
	Score         int       `json:"score"`
	CreatedAt     time.Time `json:"created_at"`
	RepliesCount  int       `json:"replies_count"`
	IsSubmitter   bool      `json:"is_submitter"`
	Distinguished string    `json:"distinguished,omitempty"`
	Stickied      bool      `json:"stickied"`
}

// CommunityPost is a forum post kept only when it is less than 24h old.
type CommunityPost struct {
	Title       string             `json:"title"`
	Score       int                `json:"score"`
	Permalink   string             `json:"permalink"`
	Community   string             `json:"community"`
	CreatedAt   time.Time          `json:"created_at"`
	NumComments int                `json:"num_comments"`
	Author      string             `json:"author"`
	Selftext    string             `json:"selftext,omitempty"`
	Comments    []CommunityComment `json:"comments,omitempty"`
}

// SubtopicArtifact is everything fetched for one (topic, subtopic) pair.
type SubtopicArtifact struct {
	SubtopicName            string                     `json:"subtopic_name"`
	ArticlesForSubtopicName []Article                  `json:"articles_for_subtopic_name"`
	Queries                 map[string][]Article       `json:"queries"`
	Communities             map[string][]CommunityPost `json:"communities"`
}

// TopicSummaryCounts aggregates what was fetched for one topic.
type TopicSummaryCounts struct {
	TotalArticles int `json:"total_articles"`
	TotalPosts    int `json:"total_posts"`
	Subtopics     int `json:"subtopics"`
}

// FetchWarnings carries non-fatal degradation flags from a fetch.
type FetchWarnings struct {
	QuotaExceeded bool `json:"quota_exceeded"`
}

// TopicArtifact is everything fetched for one topic.
type TopicArtifact struct {
	TopicName      string                      `json:"topic_name"`
	TopicHeadlines []Article                   `json:"topic_headlines"`
	Subtopics      map[string]SubtopicArtifact `json:"subtopics"`
	Summary        TopicSummaryCounts          `json:"summary"`
	Warnings       FetchWarnings               `json:"warnings"`
}

// BundleSummary aggregates a whole refresh.
type BundleSummary struct {
	TotalArticles int    `json:"total_articles"`
	TotalPosts    int    `json:"total_posts"`
	TopicCount    int    `json:"topic_count"`
	Language      string `json:"language"`
	Country       string `json:"country"`
}

// UserArticlesBundle is the persisted result of one refresh, keyed by user
// and overwritten on every run.
type UserArticlesBundle struct {
	UserID           string                   `json:"user_id"`
	RefreshTimestamp time.Time                `json:"refresh_timestamp"`
	TopicsData       map[string]TopicArtifact `json:"topics_data"`
	Summary          BundleSummary            `json:"summary"`
}

// GenerationStats records LLM usage for a generated report.
type GenerationStats struct {
	Calls        int    `json:"calls"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	ModelUsed    string `json:"model_used,omitempty"`
	Failures     int    `json:"failures,omitempty"`
}

// SubtopicReport is the generated material for one subtopic.
type SubtopicReport struct {
	SubtopicSummary  string `json:"subtopic_summary"`
	CommunitySummary string `json:"community_summary"`
}

// TopicReport is the layered generated report for one topic.
type TopicReport struct {
	PickupLine      string                    `json:"pickup_line"`
	TopicSummary    string                    `json:"topic_summary"`
	Subtopics       map[string]SubtopicReport `json:"subtopics"`
	GenerationStats GenerationStats           `json:"generation_stats"`
}

// UserReportBundle is the persisted set of topic reports for one user,
// keyed by user and overwritten on every run.
type UserReportBundle struct {
	UserID           string                 `json:"user_id"`
	Reports          map[string]TopicReport `json:"reports"`
	GenerationStats  GenerationStats        `json:"generation_stats"`
	RefreshTimestamp time.Time              `json:"refresh_timestamp"`
	Language         string                 `json:"language"`
}

// PodcastStatus tracks how far a podcast run got.
type PodcastStatus string

const (
	StatusScriptGenerated PodcastStatus = "script_generated"
	StatusCompletePodcast PodcastStatus = "complete_podcast_generated"
)

// PodcastArtifact records one podcast generation run. A new document is
// appended per run; a per-user pointer document tracks the latest one.
type PodcastArtifact struct {
	UserID            string        `json:"user_id"`
	ScriptText        string        `json:"script_text"`
	ScriptURL         string        `json:"script_url"`
	AudioURL          string        `json:"audio_url,omitempty"`
	AudioFilename     string        `json:"audio_filename,omitempty"`
	VoiceID           string        `json:"voice_id"`
	PresenterName     string        `json:"presenter_name"`
	Language          string        `json:"language"`
	WordCount         int           `json:"word_count"`
	EstimatedDuration string        `json:"estimated_duration"`
	Status            PodcastStatus `json:"status"`
	CreatedAt         time.Time     `json:"created_at"`
	AudioGeneratedAt  time.Time     `json:"audio_generated_at,omitempty"`
}

// DeviceBinding maps a user to their current push token. Latest write wins.
type DeviceBinding struct {
	UserID   string `json:"user_id"`
	FCMToken string `json:"fcmToken"`
}
