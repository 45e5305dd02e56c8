package graph

import (
	"context"
	"fmt"
	"time"

	driver "github.com/arangodb/go-driver"

	"github.com/finsight-ai/finsight/pkg/chats"
	"github.com/finsight-ai/finsight/pkg/models"
)

const chatsCollection = "chats"

// chatDoc is the ArangoDB representation of chat metadata. Timestamps are
// RFC 3339 strings via encoding/json, so AQL string sorts on updated_at
// order chronologically.
type chatDoc struct {
	Key                string    `json:"_key"`
	Title              string    `json:"title"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	MessageCount       int       `json:"message_count"`
	LastMessagePreview string    `json:"last_message_preview"`
	AgentsUsed         []string  `json:"agents_used"`
	JSONPath           string    `json:"json_path"`
}

func toDoc(meta *models.ChatMetadata) chatDoc {
	return chatDoc{
		Key:                meta.ChatID,
		Title:              meta.Title,
		CreatedAt:          meta.CreatedAt,
		UpdatedAt:          meta.UpdatedAt,
		MessageCount:       meta.MessageCount,
		LastMessagePreview: meta.LastMessagePreview,
		AgentsUsed:         meta.AgentsUsed,
		JSONPath:           meta.JSONPath,
	}
}

func (d chatDoc) toMetadata() models.ChatMetadata {
	agents := d.AgentsUsed
	if agents == nil {
		agents = []string{}
	}
	return models.ChatMetadata{
		ChatID:             d.Key,
		Title:              d.Title,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
		MessageCount:       d.MessageCount,
		LastMessagePreview: d.LastMessagePreview,
		AgentsUsed:         agents,
		JSONPath:           d.JSONPath,
	}
}

// ChatStore is the graph-backed chats.MetadataStore.
type ChatStore struct {
	client *Client
}

// ChatStore returns the chat metadata store backed by this database.
func (c *Client) ChatStore() *ChatStore {
	return &ChatStore{client: c}
}

func (s *ChatStore) collection(ctx context.Context) (driver.Collection, error) {
	return s.client.db.Collection(ctx, chatsCollection)
}

// Insert adds a new chat metadata record.
func (s *ChatStore) Insert(ctx context.Context, meta *models.ChatMetadata) error {
	col, err := s.collection(ctx)
	if err != nil {
		return fmt.Errorf("opening chats collection: %w", err)
	}
	if _, err := col.CreateDocument(ctx, toDoc(meta)); err != nil {
		return fmt.Errorf("inserting chat %s: %w", meta.ChatID, err)
	}
	return nil
}

// Get loads a chat metadata record, mapping missing documents to
// chats.ErrNotFound.
func (s *ChatStore) Get(ctx context.Context, chatID string) (*models.ChatMetadata, error) {
	col, err := s.collection(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening chats collection: %w", err)
	}
	var doc chatDoc
	if _, err := col.ReadDocument(ctx, chatID, &doc); err != nil {
		if driver.IsNotFound(err) {
			return nil, chats.ErrNotFound
		}
		return nil, fmt.Errorf("reading chat %s: %w", chatID, err)
	}
	meta := doc.toMetadata()
	return &meta, nil
}

// Put replaces the record for meta.ChatID.
func (s *ChatStore) Put(ctx context.Context, meta *models.ChatMetadata) error {
	col, err := s.collection(ctx)
	if err != nil {
		return fmt.Errorf("opening chats collection: %w", err)
	}
	if _, err := col.ReplaceDocument(ctx, meta.ChatID, toDoc(meta)); err != nil {
		if driver.IsNotFound(err) {
			return chats.ErrNotFound
		}
		return fmt.Errorf("replacing chat %s: %w", meta.ChatID, err)
	}
	return nil
}

// Remove deletes a chat metadata record.
func (s *ChatStore) Remove(ctx context.Context, chatID string) error {
	col, err := s.collection(ctx)
	if err != nil {
		return fmt.Errorf("opening chats collection: %w", err)
	}
	if _, err := col.RemoveDocument(ctx, chatID); err != nil {
		if driver.IsNotFound(err) {
			return chats.ErrNotFound
		}
		return fmt.Errorf("removing chat %s: %w", chatID, err)
	}
	return nil
}

// List returns chats ordered by updated_at descending.
func (s *ChatStore) List(ctx context.Context, skip, limit int) ([]models.ChatMetadata, error) {
	query := `
	FOR chat IN chats
	  SORT chat.updated_at DESC
	  LIMIT @skip, @limit
	  RETURN chat
	`
	cursor, err := s.client.db.Query(ctx, query, map[string]any{"skip": skip, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("listing chats: %w", err)
	}
	defer cursor.Close()

	result := []models.ChatMetadata{}
	for cursor.HasMore() {
		var doc chatDoc
		if _, err := cursor.ReadDocument(ctx, &doc); err != nil {
			return nil, fmt.Errorf("reading chat list: %w", err)
		}
		result = append(result, doc.toMetadata())
	}
	return result, nil
}

// Count returns the total number of chats.
func (s *ChatStore) Count(ctx context.Context) (int, error) {
	return queryOne[int](ctx, s.client.db, "RETURN LENGTH(chats)", nil)
}
