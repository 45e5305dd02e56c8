package chats

import (
	"context"
	"sort"
	"sync"

	"github.com/finsight-ai/finsight/pkg/models"
)

// MemoryStore is an in-memory MetadataStore. It backs tests and lets the
// gateway run without a graph database.
type MemoryStore struct {
	mu    sync.RWMutex
	chats map[string]models.ChatMetadata
}

// NewMemoryStore creates an empty in-memory metadata store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chats: make(map[string]models.ChatMetadata)}
}

// Insert adds a new record.
func (m *MemoryStore) Insert(_ context.Context, meta *models.ChatMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats[meta.ChatID] = *meta
	return nil
}

// Get returns a copy of the record, or ErrNotFound.
func (m *MemoryStore) Get(_ context.Context, chatID string) (*models.ChatMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	meta, ok := m.chats[chatID]
	if !ok {
		return nil, ErrNotFound
	}
	return &meta, nil
}

// Put replaces the record for meta.ChatID.
func (m *MemoryStore) Put(_ context.Context, meta *models.ChatMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chats[meta.ChatID]; !ok {
		return ErrNotFound
	}
	m.chats[meta.ChatID] = *meta
	return nil
}

// Remove deletes the record.
func (m *MemoryStore) Remove(_ context.Context, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chats[chatID]; !ok {
		return ErrNotFound
	}
	delete(m.chats, chatID)
	return nil
}

// List returns records ordered by updated_at descending.
func (m *MemoryStore) List(_ context.Context, skip, limit int) ([]models.ChatMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]models.ChatMetadata, 0, len(m.chats))
	for _, meta := range m.chats {
		all = append(all, meta)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].UpdatedAt.After(all[j].UpdatedAt)
	})

	if skip >= len(all) {
		return []models.ChatMetadata{}, nil
	}
	all = all[skip:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// Count returns the number of records.
func (m *MemoryStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chats), nil
}
