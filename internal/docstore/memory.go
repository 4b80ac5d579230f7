package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used by tests and local development.
// Merge semantics mirror the Postgres JSONB || operator: top-level fields
// overlay the stored document.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]json.RawMessage // collection -> id -> doc
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]map[string]json.RawMessage)}
}

// Get unmarshals the document at collection/id into dest.
func (s *MemoryStore) Get(ctx context.Context, collection, id string, dest any) error {
	s.mu.RLock()
	raw, ok := s.docs[collection][id]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("failed to unmarshal %s/%s: %w", collection, id, err)
	}
	return nil
}

// Set writes the full document at collection/id.
func (s *MemoryStore) Set(ctx context.Context, collection, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal %s/%s: %w", collection, id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string]json.RawMessage)
	}
	s.docs[collection][id] = raw
	return nil
}

// Merge overlays fields onto the stored document, creating it when absent.
func (s *MemoryStore) Merge(ctx context.Context, collection, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make(map[string]any)
	if raw, ok := s.docs[collection][id]; ok {
		if err := json.Unmarshal(raw, &merged); err != nil {
			return fmt.Errorf("failed to unmarshal %s/%s for merge: %w", collection, id, err)
		}
	}
	for k, v := range fields {
		merged[k] = v
	}

	raw, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to marshal merged %s/%s: %w", collection, id, err)
	}
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string]json.RawMessage)
	}
	s.docs[collection][id] = raw
	return nil
}

// Add writes doc under a fresh UUID and returns the id.
func (s *MemoryStore) Add(ctx context.Context, collection string, doc any) (string, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, collection, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

// Scan invokes fn for every document in the collection, ordered by id.
func (s *MemoryStore) Scan(ctx context.Context, collection string, fn func(id string, raw json.RawMessage) error) error {
	s.mu.RLock()
	ids := make([]string, 0, len(s.docs[collection]))
	for id := range s.docs[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	snapshot := make(map[string]json.RawMessage, len(ids))
	for _, id := range ids {
		snapshot[id] = s.docs[collection][id]
	}
	s.mu.RUnlock()

	for _, id := range ids {
		if err := fn(id, snapshot[id]); err != nil {
			return err
		}
	}
	return nil
}
