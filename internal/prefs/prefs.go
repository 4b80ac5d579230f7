// Package prefs reads and writes user preference documents. It owns the
// versioned schema: only this package understands legacy flat documents,
// which it migrates to the nested v3.0 shape on read.
package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"aifeed/internal/core"
	"aifeed/internal/docstore"
	"aifeed/internal/logger"
)

// ErrInvalidSchema is returned when a preference payload violates the v3.0
// shape.
var ErrInvalidSchema = errors.New("invalid preferences schema")

// ErrNotFound is returned when a user has no stored document.
var ErrNotFound = docstore.ErrNotFound

// maxSpecificSubjects caps the specific-subjects set; the oldest entries are
// evicted first.
const maxSpecificSubjects = 200

// Store reads and writes preference, scheduling, and device documents.
type Store struct {
	docs docstore.Store
	now  func() time.Time
}

// NewStore creates a preference store on the given document store.
func NewStore(docs docstore.Store) *Store {
	return &Store{docs: docs, now: time.Now}
}

// SetClock overrides the clock used for updated_at stamps. Used by tests.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Save validates and writes a v3.0 preference document for the user.
func (s *Store) Save(ctx context.Context, userID string, preferences map[string]map[string]core.SubtopicSources, detail core.DetailLevel, language string) (*core.UserPreferences, error) {
	if err := Validate(preferences); err != nil {
		return nil, err
	}
	if language == "" {
		language = "en"
	}
	if detail == "" {
		detail = core.DetailMedium
	}

	// Preserve specific subjects across saves.
	var existing core.UserPreferences
	var subjects []string
	if err := s.docs.Get(ctx, docstore.ColPreferences, userID, &existing); err == nil {
		subjects = existing.SpecificSubjects
	}

	doc := &core.UserPreferences{
		UserID:           userID,
		Preferences:      preferences,
		DetailLevel:      detail,
		Language:         language,
		FormatVersion:    core.PreferencesFormatVersion,
		UpdatedAt:        s.now().UTC(),
		SpecificSubjects: subjects,
	}
	if err := s.docs.Set(ctx, docstore.ColPreferences, userID, doc); err != nil {
		return nil, fmt.Errorf("failed to save preferences for %s: %w", userID, err)
	}
	return doc, nil
}

// Get returns the user's v3.0 preference document, migrating any stored
// legacy document in place first. Returns ErrNotFound when the user has no
// document.
func (s *Store) Get(ctx context.Context, userID string) (*core.UserPreferences, error) {
	var raw map[string]json.RawMessage
	if err := s.docs.Get(ctx, docstore.ColPreferences, userID, &raw); err != nil {
		return nil, err
	}

	if isCurrentVersion(raw) {
		var doc core.UserPreferences
		if err := s.docs.Get(ctx, docstore.ColPreferences, userID, &doc); err != nil {
			return nil, err
		}
		normalize(&doc)
		return &doc, nil
	}

	doc, err := migrateLegacy(userID, raw, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.docs.Set(ctx, docstore.ColPreferences, userID, doc); err != nil {
		return nil, fmt.Errorf("failed to persist migrated preferences for %s: %w", userID, err)
	}
	logger.Info("Migrated legacy preferences", "user_id", userID,
		"topics", len(doc.Preferences))
	return doc, nil
}

// UpdateSpecificSubjects unions newEntities into the user's specific
// subjects and merge-writes the document. Returns the resulting set.
func (s *Store) UpdateSpecificSubjects(ctx context.Context, userID string, newEntities []string) ([]string, error) {
	var current core.UserPreferences
	err := s.docs.Get(ctx, docstore.ColPreferences, userID, &current)
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return nil, fmt.Errorf("failed to read preferences for %s: %w", userID, err)
	}

	merged := unionSubjects(current.SpecificSubjects, newEntities)
	if err := s.docs.Merge(ctx, docstore.ColPreferences, userID, map[string]any{
		"user_id":           userID,
		"specific_subjects": merged,
		"updated_at":        s.now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("failed to merge specific subjects for %s: %w", userID, err)
	}
	return merged, nil
}

// unionSubjects appends unseen entities in order and evicts the oldest
// entries past the cap.
func unionSubjects(current, incoming []string) []string {
	seen := make(map[string]bool, len(current))
	merged := make([]string, 0, len(current)+len(incoming))
	for _, s := range current {
		if s != "" && !seen[s] {
			seen[s] = true
			merged = append(merged, s)
		}
	}
	for _, s := range incoming {
		if s != "" && !seen[s] {
			seen[s] = true
			merged = append(merged, s)
		}
	}
	if len(merged) > maxSpecificSubjects {
		merged = merged[len(merged)-maxSpecificSubjects:]
	}
	return merged
}

// Validate checks the nested v3.0 shape: every topic maps subtopics to a
// leaf carrying both source arrays.
func Validate(preferences map[string]map[string]core.SubtopicSources) error {
	if preferences == nil {
		return fmt.Errorf("%w: preferences must be an object", ErrInvalidSchema)
	}
	for topic, subtopics := range preferences {
		if topic == "" {
			return fmt.Errorf("%w: empty topic name", ErrInvalidSchema)
		}
		if subtopics == nil {
			return fmt.Errorf("%w: topic %q must map to an object", ErrInvalidSchema, topic)
		}
		for subtopic, sources := range subtopics {
			if subtopic == "" {
				return fmt.Errorf("%w: empty subtopic name under %q", ErrInvalidSchema, topic)
			}
			if sources.Subreddits == nil || sources.Queries == nil {
				return fmt.Errorf("%w: subtopic %q under %q must carry both subreddits and queries arrays",
					ErrInvalidSchema, subtopic, topic)
			}
		}
	}
	return nil
}

// ValidateRaw validates an incoming JSON payload against the v3.0 shape,
// distinguishing missing arrays from empty ones.
func ValidateRaw(raw json.RawMessage) (map[string]map[string]core.SubtopicSources, error) {
	var shape map[string]map[string]map[string]json.RawMessage
	if err := json.Unmarshal(raw, &shape); err != nil {
		return nil, fmt.Errorf("%w: preferences must be a nested object", ErrInvalidSchema)
	}
	out := make(map[string]map[string]core.SubtopicSources, len(shape))
	for topic, subtopics := range shape {
		out[topic] = make(map[string]core.SubtopicSources, len(subtopics))
		for subtopic, leaf := range subtopics {
			if _, ok := leaf["subreddits"]; !ok {
				return nil, fmt.Errorf("%w: subtopic %q under %q is missing subreddits", ErrInvalidSchema, subtopic, topic)
			}
			if _, ok := leaf["queries"]; !ok {
				return nil, fmt.Errorf("%w: subtopic %q under %q is missing queries", ErrInvalidSchema, subtopic, topic)
			}
			var sources core.SubtopicSources
			leafRaw, _ := json.Marshal(leaf)
			if err := json.Unmarshal(leafRaw, &sources); err != nil {
				return nil, fmt.Errorf("%w: subtopic %q under %q has malformed sources", ErrInvalidSchema, subtopic, topic)
			}
			if sources.Subreddits == nil {
				sources.Subreddits = []string{}
			}
			if sources.Queries == nil {
				sources.Queries = []string{}
			}
			out[topic][subtopic] = sources
		}
	}
	if err := Validate(out); err != nil {
		return nil, err
	}
	return out, nil
}

func isCurrentVersion(raw map[string]json.RawMessage) bool {
	versionRaw, ok := raw["format_version"]
	if !ok {
		return false
	}
	var version string
	if err := json.Unmarshal(versionRaw, &version); err != nil {
		return false
	}
	return version == core.PreferencesFormatVersion
}

// normalize guarantees non-nil arrays on every leaf of a stored v3 doc.
func normalize(doc *core.UserPreferences) {
	if doc.Preferences == nil {
		doc.Preferences = map[string]map[string]core.SubtopicSources{}
	}
	for topic, subtopics := range doc.Preferences {
		for subtopic, sources := range subtopics {
			if sources.Subreddits == nil {
				sources.Subreddits = []string{}
			}
			if sources.Queries == nil {
				sources.Queries = []string{}
			}
			doc.Preferences[topic][subtopic] = sources
		}
	}
}

// legacyDocument is the flat v1/v2 shape: a topic label list plus a flat
// subtopic map.
type legacyDocument struct {
	Topics           []string                   `json:"topics"`
	Subtopics        map[string]json.RawMessage `json:"subtopics"`
	DetailLevel      core.DetailLevel           `json:"detail_level"`
	Language         string                     `json:"language"`
	SpecificSubjects []string                   `json:"specific_subjects"`
}

// migrateLegacy converts a flat v1/v2 document into the nested v3.0 shape.
func migrateLegacy(userID string, raw map[string]json.RawMessage, now time.Time) (*core.UserPreferences, error) {
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to re-marshal legacy document: %w", err)
	}
	var legacy legacyDocument
	if err := json.Unmarshal(buf, &legacy); err != nil {
		return nil, fmt.Errorf("failed to parse legacy document for %s: %w", userID, err)
	}

	preferences := make(map[string]map[string]core.SubtopicSources)

	// Topic labels first so user-chosen topics survive even with no
	// subtopics under them.
	for _, label := range legacy.Topics {
		slug, ok := CanonicalTopic(label)
		if !ok {
			slug = "general"
		}
		if preferences[slug] == nil {
			preferences[slug] = make(map[string]core.SubtopicSources)
		}
	}

	for subtopic, dataRaw := range legacy.Subtopics {
		parent := ParentTopic(subtopic)
		if preferences[parent] == nil {
			preferences[parent] = make(map[string]core.SubtopicSources)
		}

		var sources core.SubtopicSources
		hasSources := false
		if len(dataRaw) > 0 {
			var leaf struct {
				Subreddits []string `json:"subreddits"`
				Queries    []string `json:"queries"`
			}
			if err := json.Unmarshal(dataRaw, &leaf); err == nil &&
				(leaf.Subreddits != nil || leaf.Queries != nil) {
				sources = core.SubtopicSources{Subreddits: leaf.Subreddits, Queries: leaf.Queries}
				hasSources = true
			}
		}
		if !hasSources {
			sources = CatalogSources(subtopic)
		}
		if sources.Subreddits == nil {
			sources.Subreddits = []string{}
		}
		if sources.Queries == nil {
			sources.Queries = []string{}
		}
		preferences[parent][subtopic] = sources
	}

	detail := legacy.DetailLevel
	if detail == "" {
		detail = core.DetailMedium
	}
	language := legacy.Language
	if language == "" {
		language = "en"
	}

	return &core.UserPreferences{
		UserID:           userID,
		Preferences:      preferences,
		DetailLevel:      detail,
		Language:         language,
		FormatVersion:    core.PreferencesFormatVersion,
		UpdatedAt:        now,
		SpecificSubjects: legacy.SpecificSubjects,
	}, nil
}
