// Package docstore provides a typed document store over logical collections.
// Documents are schemaless JSON keyed by (collection, id); the production
// implementation persists them as Postgres JSONB rows.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// Store is the document store consumed by every stateful component.
type Store interface {
	// Get unmarshals the document at collection/id into dest.
	Get(ctx context.Context, collection, id string, dest any) error
	// Set writes the full document at collection/id, overwriting any
	// previous version.
	Set(ctx context.Context, collection, id string, doc any) error
	// Merge overlays the given top-level fields onto the stored document,
	// creating it when absent. The merge is atomic.
	Merge(ctx context.Context, collection, id string, fields map[string]any) error
	// Add writes doc under a fresh auto-generated id and returns the id.
	Add(ctx context.Context, collection string, doc any) (string, error)
	// Scan invokes fn for every document in the collection.
	Scan(ctx context.Context, collection string, fn func(id string, raw json.RawMessage) error) error
}

// Collection names used across the system.
const (
	ColPreferences          = "preferences"
	ColScheduling           = "scheduling_preferences"
	ColArticles             = "articles"
	ColAIFeed               = "aifeed"
	ColAudioConnections     = "audio_connections"
	ColUserAudioConnections = "user_audio_connections"
	ColAudio                = "audio"
	ColUsers                = "users"
)
