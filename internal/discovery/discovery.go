// Package discovery runs the conversational onboarding that draws out a
// user's concrete interests and folds them into their preferences.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"aifeed/internal/llm"
	"aifeed/internal/logger"
	"aifeed/internal/prompts"
)

const (
	answerMaxTokens = 150
	answerTemp      = 0.6
	entityMaxTokens = 300
)

// SubjectStore merges newly discovered entities into a user's preferences.
type SubjectStore interface {
	UpdateSpecificSubjects(ctx context.Context, userID string, newEntities []string) ([]string, error)
}

// Reply is one assistant turn plus the conversation-state flags clients use
// to drive the onboarding UI.
type Reply struct {
	Text               string    `json:"response"`
	ConversationEnding bool      `json:"conversation_ending"`
	ReadyForNews       bool      `json:"ready_for_news"`
	Usage              llm.Usage `json:"usage"`
}

// Service answers onboarding turns and extracts entities from them.
type Service struct {
	chat     llm.Chat
	subjects SubjectStore
}

// NewService creates a discovery service.
func NewService(chat llm.Chat, subjects SubjectStore) *Service {
	return &Service{chat: chat, subjects: subjects}
}

// Answer produces the next assistant turn for the conversation so far.
// userPreferences, when present, is the user's current preference document
// as raw JSON; it goes into the system prompt so the assistant does not ask
// about topics already configured. The state flags are derived from the
// reply text by phrase matching.
func (s *Service) Answer(ctx context.Context, language, userPreferences string, history []llm.Message) (*Reply, error) {
	if len(history) == 0 {
		return nil, fmt.Errorf("conversation history is empty")
	}
	set := prompts.ForLanguage(language)

	system := set.DiscoverySystem
	if prefs := strings.TrimSpace(userPreferences); prefs != "" && prefs != "null" {
		system += "\n\nThe user's current preferences:\n" + prefs
	}

	completion, err := s.chat.Complete(ctx, llm.CompletionRequest{
		System:      system,
		Messages:    history,
		MaxTokens:   answerMaxTokens,
		Temperature: answerTemp,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate discovery reply: %w", err)
	}

	text := strings.TrimSpace(completion.Text)
	lower := strings.ToLower(text)
	return &Reply{
		Text:               text,
		ConversationEnding: containsAny(lower, set.EndingPhrases),
		ReadyForNews:       containsAny(lower, set.ReadyPhrases),
		Usage:              completion.Usage,
	}, nil
}

// ExtractEntities pulls the named entities the user mentioned in their
// latest message and merges them into the stored specific subjects. The
// full merged list is returned.
func (s *Service) ExtractEntities(ctx context.Context, userID, language string, history []llm.Message) ([]string, error) {
	if len(history) == 0 {
		return nil, fmt.Errorf("conversation history is empty")
	}
	set := prompts.ForLanguage(language)

	completion, err := s.chat.Complete(ctx, llm.CompletionRequest{
		System:      set.EntitySystem,
		Messages:    history,
		MaxTokens:   entityMaxTokens,
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to extract entities: %w", err)
	}

	entities, err := parseEntityArray(completion.Text)
	if err != nil {
		logger.Warn("Entity extraction returned unparseable output", "user_id", userID)
		entities = nil
	}

	merged, err := s.subjects.UpdateSpecificSubjects(ctx, userID, entities)
	if err != nil {
		return nil, fmt.Errorf("failed to merge extracted entities: %w", err)
	}
	return merged, nil
}

// parseEntityArray reads a JSON string array out of LLM output, tolerating
// surrounding prose and markdown code fences.
func parseEntityArray(raw string) ([]string, error) {
	text := strings.TrimSpace(raw)
	if start := strings.Index(text, "["); start >= 0 {
		if end := strings.LastIndex(text, "]"); end > start {
			text = text[start : end+1]
		}
	}

	var entities []string
	if err := json.Unmarshal([]byte(text), &entities); err != nil {
		return nil, fmt.Errorf("entity output is not a JSON string array: %w", err)
	}

	out := entities[:0]
	for _, e := range entities {
		e = strings.TrimSpace(e)
		if e != "" {
			out = append(out, e)
		}
	}
	return out, nil
}

func containsAny(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}
