// Package podcast turns a user's fetched articles into a spoken briefing:
// script composition via the LLM, cleanup to pure spoken text, and audio
// synthesis persisted to blob storage.
package podcast

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"aifeed/internal/blobstore"
	"aifeed/internal/core"
	"aifeed/internal/docstore"
	"aifeed/internal/llm"
	"aifeed/internal/logger"
	"aifeed/internal/prompts"
	"aifeed/internal/tts"
)

const (
	scriptMaxTokens = 2000
	scriptTemp      = 0.7

	// spokenWordsPerMinute calibrates the duration estimate to a
	// conversational reading pace.
	spokenWordsPerMinute = 155

	audioFormat      = "mp3_44100_128"
	scriptTimeLayout = "20060102_150405"
)

// Synthesizer is the audio surface the service consumes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID, modelID, format string) ([]byte, error)
}

// Config carries the synthesis defaults applied when a run does not name a
// voice or model.
type Config struct {
	DefaultVoice string
	ModelID      string
}

// Service composes and voices podcast episodes.
type Service struct {
	chat  llm.Chat
	tts   Synthesizer
	docs  docstore.Store
	blobs blobstore.Store
	cfg   Config
	now   func() time.Time
}

// NewService creates a podcast service.
func NewService(chat llm.Chat, synth Synthesizer, docs docstore.Store, blobs blobstore.Store, cfg Config) *Service {
	if cfg.DefaultVoice == "" {
		cfg.DefaultVoice = tts.DefaultVoiceID
	}
	if cfg.ModelID == "" {
		cfg.ModelID = tts.DefaultModelID
	}
	return &Service{chat: chat, tts: synth, docs: docs, blobs: blobs, cfg: cfg, now: time.Now}
}

// SetClock overrides the clock used for artifact timestamps. Used by tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// ComposeScript generates and persists a cleaned podcast script from the
// user's latest articles bundle. The whole topics_data corpus goes into the
// prompt so every fetched article can make it into the episode. It returns
// the artifact and the id of the run document it appended.
func (s *Service) ComposeScript(ctx context.Context, userID, presenter, language string) (*core.PodcastArtifact, string, error) {
	var articles core.UserArticlesBundle
	if err := s.docs.Get(ctx, docstore.ColArticles, userID, &articles); err != nil {
		return nil, "", fmt.Errorf("failed to load articles bundle for %s: %w", userID, err)
	}
	if len(articles.TopicsData) == 0 {
		return nil, "", fmt.Errorf("articles bundle for %s has no topics", userID)
	}

	if language == "" {
		language = articles.Summary.Language
	}
	if language == "" {
		language = "en"
	}
	set := prompts.ForLanguage(language)

	completion, err := s.chat.Complete(ctx, llm.CompletionRequest{
		System:      fmt.Sprintf(set.PodcastSystem, presenter),
		Messages:    []llm.Message{{Role: "user", Content: flattenArticles(&articles)}},
		MaxTokens:   scriptMaxTokens,
		Temperature: scriptTemp,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate podcast script: %w", err)
	}

	script := CleanScript(completion.Text)
	if script == "" {
		return nil, "", fmt.Errorf("podcast script for %s is empty after cleanup", userID)
	}

	createdAt := s.now().UTC()
	stamp := createdAt.Format(scriptTimeLayout)
	scriptKey := fmt.Sprintf("podcast_scripts/%s/script_%s.txt", userID, stamp)
	scriptURL, err := s.blobs.Put(ctx, scriptKey, "text/plain; charset=utf-8", []byte(script))
	if err != nil {
		return nil, "", fmt.Errorf("failed to store podcast script: %w", err)
	}

	words := len(strings.Fields(script))
	artifact := &core.PodcastArtifact{
		UserID:            userID,
		ScriptText:        script,
		ScriptURL:         scriptURL,
		PresenterName:     presenter,
		Language:          language,
		WordCount:         words,
		EstimatedDuration: estimateDuration(words),
		Status:            core.StatusScriptGenerated,
		CreatedAt:         createdAt,
	}

	docID, err := s.docs.Add(ctx, docstore.ColAudioConnections, artifact)
	if err != nil {
		return nil, "", fmt.Errorf("failed to record podcast run: %w", err)
	}

	logger.Info("Podcast script generated", "user_id", userID,
		"words", words, "duration", artifact.EstimatedDuration)
	return artifact, docID, nil
}

// SynthesizeAudio voices a composed script, stores the audio, and promotes
// the run document to complete. The per-user pointer documents are updated
// so clients can find the latest episode.
func (s *Service) SynthesizeAudio(ctx context.Context, docID string, artifact *core.PodcastArtifact, voiceID string) (*core.PodcastArtifact, error) {
	if voiceID == "" {
		voiceID = artifact.VoiceID
	}
	// Resolve before persisting so voice_id records the voice actually used.
	if voiceID == "" {
		voiceID = s.cfg.DefaultVoice
	}

	audio, err := s.tts.Synthesize(ctx, artifact.ScriptText, voiceID, s.cfg.ModelID, audioFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize podcast audio: %w", err)
	}

	generatedAt := s.now().UTC()
	filename := fmt.Sprintf("podcast_%s.mp3", generatedAt.Format(scriptTimeLayout))
	audioKey := fmt.Sprintf("podcast_audio/%s/%s", artifact.UserID, filename)
	audioURL, err := s.blobs.Put(ctx, audioKey, "audio/mpeg", audio)
	if err != nil {
		return nil, fmt.Errorf("failed to store podcast audio: %w", err)
	}

	updated := *artifact
	updated.AudioURL = audioURL
	updated.AudioFilename = filename
	updated.VoiceID = voiceID
	updated.Status = core.StatusCompletePodcast
	updated.AudioGeneratedAt = generatedAt

	if err := s.docs.Merge(ctx, docstore.ColAudioConnections, docID, map[string]any{
		"audio_url":          audioURL,
		"audio_filename":     filename,
		"voice_id":           voiceID,
		"status":             core.StatusCompletePodcast,
		"audio_generated_at": generatedAt,
	}); err != nil {
		return nil, fmt.Errorf("failed to update podcast run: %w", err)
	}

	if err := s.docs.Set(ctx, docstore.ColUserAudioConnections, artifact.UserID, &updated); err != nil {
		return nil, fmt.Errorf("failed to update latest episode pointer: %w", err)
	}
	if err := s.docs.Merge(ctx, docstore.ColAudio, artifact.UserID, map[string]any{
		"user_id":            artifact.UserID,
		"latest_podcast_url": audioURL,
		"updated_at":         generatedAt,
	}); err != nil {
		return nil, fmt.Errorf("failed to update latest audio pointer: %w", err)
	}

	logger.Info("Podcast audio generated", "user_id", artifact.UserID,
		"bytes", len(audio), "filename", filename)
	return &updated, nil
}

// Generate runs compose then synthesize as one operation.
func (s *Service) Generate(ctx context.Context, userID, presenter, language, voiceID string) (*core.PodcastArtifact, error) {
	artifact, docID, err := s.ComposeScript(ctx, userID, presenter, language)
	if err != nil {
		return nil, err
	}
	return s.SynthesizeAudio(ctx, docID, artifact, voiceID)
}

// flattenArticles renders the articles bundle as the script prompt corpus:
// per topic the headlines, then every subtopic's articles, query results,
// and community posts.
func flattenArticles(bundle *core.UserArticlesBundle) string {
	var b strings.Builder
	for _, topicName := range sortedKeys(bundle.TopicsData) {
		topic := bundle.TopicsData[topicName]
		fmt.Fprintf(&b, "TOPIC: %s\n", topicName)
		for _, art := range topic.TopicHeadlines {
			writeArticle(&b, art)
		}
		for _, subName := range sortedKeys(topic.Subtopics) {
			sub := topic.Subtopics[subName]
			fmt.Fprintf(&b, "SUBTOPIC %s:\n", subName)
			for _, art := range sub.ArticlesForSubtopicName {
				writeArticle(&b, art)
			}
			for _, query := range sortedKeys(sub.Queries) {
				for _, art := range sub.Queries[query] {
					writeArticle(&b, art)
				}
			}
			for _, community := range sortedKeys(sub.Communities) {
				for _, post := range sub.Communities[community] {
					fmt.Fprintf(&b, "- Discussion in %s: %s (%d comments)\n",
						community, post.Title, post.NumComments)
				}
			}
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func writeArticle(b *strings.Builder, art core.Article) {
	fmt.Fprintf(b, "- %s (%s)", art.Title, art.SourceName)
	if art.Snippet != "" {
		fmt.Fprintf(b, ": %s", art.Snippet)
	}
	b.WriteByte('\n')
}

func estimateDuration(words int) string {
	seconds := words * 60 / spokenWordsPerMinute
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
