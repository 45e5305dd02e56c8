// Package chats stores conversations in two halves: a metadata record in
// the graph database (keyed lookup, ordered listing) and the transcript
// itself as a JSON file on local disk. The transcript file is always
// written before the metadata record, so a metadata read may lag the
// on-disk message count but never lead it.
package chats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finsight-ai/finsight/pkg/models"
)

// ErrNotFound is returned when a chat record or its transcript is missing.
var ErrNotFound = errors.New("chat not found")

// MetadataStore is the keyed record store for chat metadata. The graph
// database implements it in production; an in-memory implementation backs
// tests and storage-less development.
type MetadataStore interface {
	Insert(ctx context.Context, meta *models.ChatMetadata) error
	Get(ctx context.Context, chatID string) (*models.ChatMetadata, error)
	// Put replaces the record for meta.ChatID.
	Put(ctx context.Context, meta *models.ChatMetadata) error
	Remove(ctx context.Context, chatID string) error
	// List returns records ordered by updated_at descending.
	List(ctx context.Context, skip, limit int) ([]models.ChatMetadata, error)
	Count(ctx context.Context) (int, error)
}

// Store combines the metadata record store with transcript files under dir.
type Store struct {
	meta MetadataStore
	dir  string

	// Per-chat locks serialize transcript mutation. The map only grows;
	// chats are few and small relative to their transcripts.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a chat store writing transcripts under dir.
func NewStore(meta MetadataStore, dir string) *Store {
	return &Store{
		meta:  meta,
		dir:   dir,
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *Store) chatLock(chatID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[chatID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[chatID] = l
	}
	return l
}

func (s *Store) transcriptPath(chatID string) string {
	return filepath.Join(s.dir, chatID+".json")
}

// Create starts a new chat, optionally seeded with an initial user message.
// The transcript file is written first; if the metadata insert fails the
// file is removed again (compensating delete).
func (s *Store) Create(ctx context.Context, title, initialMessage string) (*models.ChatMetadata, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating chats directory: %w", err)
	}

	chatID := uuid.New().String()
	now := time.Now().UTC()
	title = deriveTitle(title, initialMessage, chatID)

	content := models.ChatContent{
		ChatID:    chatID,
		Title:     title,
		CreatedAt: now,
		Messages:  []models.ChatMessage{},
		Settings:  map[string]any{},
	}
	if initialMessage != "" {
		content.Messages = append(content.Messages, models.ChatMessage{
			ID:        uuid.New().String(),
			Role:      models.RoleUser,
			Content:   initialMessage,
			Timestamp: now,
		})
	}

	path := s.transcriptPath(chatID)
	if err := writeTranscript(path, &content); err != nil {
		return nil, err
	}

	meta := &models.ChatMetadata{
		ChatID:             chatID,
		Title:              title,
		CreatedAt:          now,
		UpdatedAt:          now,
		MessageCount:       len(content.Messages),
		LastMessagePreview: truncate(initialMessage, 100),
		AgentsUsed:         []string{},
		JSONPath:           path,
	}
	if err := s.meta.Insert(ctx, meta); err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			slog.Warn("Failed to remove orphaned transcript", "chat_id", chatID, "error", rmErr)
		}
		return nil, fmt.Errorf("inserting chat metadata: %w", err)
	}
	return meta, nil
}

// GetMetadata loads the chat metadata record.
func (s *Store) GetMetadata(ctx context.Context, chatID string) (*models.ChatMetadata, error) {
	return s.meta.Get(ctx, chatID)
}

// GetContent loads the full transcript. Missing record OR missing file
// both surface as ErrNotFound.
func (s *Store) GetContent(ctx context.Context, chatID string) (*models.ChatContent, error) {
	meta, err := s.meta.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return readTranscript(s.pathFor(meta))
}

// AppendMessage appends a message to the transcript, stamping its ID and
// timestamp if absent, then recomputes the derived metadata fields.
func (s *Store) AppendMessage(ctx context.Context, chatID string, msg models.ChatMessage) (*models.ChatMessage, error) {
	lock := s.chatLock(chatID)
	lock.Lock()
	defer lock.Unlock()

	meta, err := s.meta.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	content, err := readTranscript(s.pathFor(meta))
	if err != nil {
		return nil, err
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	content.Messages = append(content.Messages, msg)

	if err := s.saveContent(ctx, meta, content); err != nil {
		return nil, err
	}
	return &msg, nil
}

// List returns chat metadata ordered by updated_at descending.
func (s *Store) List(ctx context.Context, skip, limit int) ([]models.ChatMetadata, error) {
	return s.meta.List(ctx, skip, limit)
}

// Count returns the total number of chats.
func (s *Store) Count(ctx context.Context) (int, error) {
	return s.meta.Count(ctx)
}

// UpdateTitle renames a chat, in both the metadata record and the
// transcript file.
func (s *Store) UpdateTitle(ctx context.Context, chatID, title string) (*models.ChatMetadata, error) {
	lock := s.chatLock(chatID)
	lock.Lock()
	defer lock.Unlock()

	meta, err := s.meta.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	content, err := readTranscript(s.pathFor(meta))
	if err != nil {
		return nil, err
	}

	content.Title = title
	meta.Title = title
	if err := s.saveContent(ctx, meta, content); err != nil {
		return nil, err
	}
	return meta, nil
}

// Delete removes both the transcript file and the metadata record.
func (s *Store) Delete(ctx context.Context, chatID string) error {
	lock := s.chatLock(chatID)
	lock.Lock()
	defer lock.Unlock()

	meta, err := s.meta.Get(ctx, chatID)
	if err != nil {
		return err
	}
	if err := os.Remove(s.pathFor(meta)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing transcript: %w", err)
	}
	return s.meta.Remove(ctx, chatID)
}

// saveContent writes the transcript file, then updates the metadata record
// with the recomputed message count, preview, and agents-used union.
func (s *Store) saveContent(ctx context.Context, meta *models.ChatMetadata, content *models.ChatContent) error {
	path := s.pathFor(meta)
	if err := writeTranscript(path, content); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	meta.MessageCount = len(content.Messages)
	meta.LastMessagePreview = ""
	if n := len(content.Messages); n > 0 {
		meta.LastMessagePreview = truncate(content.Messages[n-1].Content, 100)
	}
	meta.AgentsUsed = agentsUnion(content.Messages)
	meta.JSONPath = path

	if err := s.meta.Put(ctx, meta); err != nil {
		return fmt.Errorf("updating chat metadata: %w", err)
	}
	return nil
}

func (s *Store) pathFor(meta *models.ChatMetadata) string {
	if meta.JSONPath != "" {
		return meta.JSONPath
	}
	return s.transcriptPath(meta.ChatID)
}

// agentsUnion collects the sorted union of agents_used over all messages.
func agentsUnion(messages []models.ChatMessage) []string {
	set := make(map[string]struct{})
	for _, msg := range messages {
		if msg.Metadata == nil {
			continue
		}
		for _, agent := range msg.Metadata.AgentsUsed {
			set[agent] = struct{}{}
		}
	}
	agents := make([]string, 0, len(set))
	for agent := range set {
		agents = append(agents, agent)
	}
	sort.Strings(agents)
	return agents
}

// deriveTitle picks the chat title: explicit title, the initial message
// clipped to 50 chars, or "Chat <id prefix>".
func deriveTitle(title, initialMessage, chatID string) string {
	if title != "" {
		return title
	}
	if initialMessage != "" {
		if len([]rune(initialMessage)) > 50 {
			return string([]rune(initialMessage)[:50]) + "..."
		}
		return initialMessage
	}
	return "Chat " + chatID[:8]
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func readTranscript(path string) (*models.ChatContent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading transcript: %w", err)
	}
	var content models.ChatContent
	if err := json.Unmarshal(data, &content); err != nil {
		return nil, fmt.Errorf("decoding transcript: %w", err)
	}
	if content.Settings == nil {
		content.Settings = map[string]any{}
	}
	return &content, nil
}

func writeTranscript(path string, content *models.ChatContent) error {
	data, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding transcript: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing transcript: %w", err)
	}
	return nil
}
