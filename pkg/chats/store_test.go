package chats

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight-ai/finsight/pkg/models"
)

func newTestChatStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(NewMemoryStore(), t.TempDir())
}

func TestCreateWithInitialMessage(t *testing.T) {
	store := newTestChatStore(t)
	ctx := context.Background()

	meta, err := store.Create(ctx, "", "What was Reliance's revenue in FY24?")
	require.NoError(t, err)

	assert.Equal(t, "What was Reliance's revenue in FY24?", meta.Title)
	assert.Equal(t, 1, meta.MessageCount)
	assert.Equal(t, "What was Reliance's revenue in FY24?", meta.LastMessagePreview)
	assert.Empty(t, meta.AgentsUsed)

	content, err := store.GetContent(ctx, meta.ChatID)
	require.NoError(t, err)
	require.Len(t, content.Messages, 1)
	assert.Equal(t, models.RoleUser, content.Messages[0].Role)
	assert.NotEmpty(t, content.Messages[0].ID)
	assert.NotNil(t, content.Settings)

	// Transcript is on disk at the recorded path.
	_, err = os.Stat(meta.JSONPath)
	assert.NoError(t, err)
}

func TestCreateTitleDerivation(t *testing.T) {
	store := newTestChatStore(t)
	ctx := context.Background()

	t.Run("explicit title wins", func(t *testing.T) {
		meta, err := store.Create(ctx, "My Analysis", "some message")
		require.NoError(t, err)
		assert.Equal(t, "My Analysis", meta.Title)
	})

	t.Run("long initial message is clipped", func(t *testing.T) {
		long := strings.Repeat("x", 80)
		meta, err := store.Create(ctx, "", long)
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat("x", 50)+"...", meta.Title)
	})

	t.Run("empty chat falls back to id prefix", func(t *testing.T) {
		meta, err := store.Create(ctx, "", "")
		require.NoError(t, err)
		assert.Equal(t, "Chat "+meta.ChatID[:8], meta.Title)
		assert.Zero(t, meta.MessageCount)
	})
}

func TestCreateCompensatesOnMetadataFailure(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(failingMetaStore{}, dir)

	_, err := store.Create(context.Background(), "t", "hello")
	require.Error(t, err)

	// The transcript written before the failed insert must be gone.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAppendMessageRecomputesMetadata(t *testing.T) {
	store := newTestChatStore(t)
	ctx := context.Background()

	meta, err := store.Create(ctx, "", "first question")
	require.NoError(t, err)

	long := strings.Repeat("r", 150)
	msg, err := store.AppendMessage(ctx, meta.ChatID, models.ChatMessage{
		Role:    models.RoleSystem,
		Content: long,
		Metadata: &models.MessageMetadata{
			AgentsUsed: []string{"metrics-agent", "router"},
			JobID:      "job-1",
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.Timestamp.IsZero())

	updated, err := store.GetMetadata(ctx, meta.ChatID)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.MessageCount)
	assert.Equal(t, strings.Repeat("r", 100), updated.LastMessagePreview)
	assert.Equal(t, []string{"metrics-agent", "router"}, updated.AgentsUsed)
	assert.True(t, updated.UpdatedAt.After(meta.UpdatedAt) || updated.UpdatedAt.Equal(meta.UpdatedAt))
}

func TestAppendMessageAgentsUnionSortedDeduped(t *testing.T) {
	store := newTestChatStore(t)
	ctx := context.Background()

	meta, err := store.Create(ctx, "", "")
	require.NoError(t, err)

	_, err = store.AppendMessage(ctx, meta.ChatID, models.ChatMessage{
		Role: models.RoleSystem, Content: "a",
		Metadata: &models.MessageMetadata{AgentsUsed: []string{"zeta", "alpha"}},
	})
	require.NoError(t, err)
	_, err = store.AppendMessage(ctx, meta.ChatID, models.ChatMessage{
		Role: models.RoleSystem, Content: "b",
		Metadata: &models.MessageMetadata{AgentsUsed: []string{"alpha", "mid"}},
	})
	require.NoError(t, err)

	updated, err := store.GetMetadata(ctx, meta.ChatID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, updated.AgentsUsed)
}

func TestAppendMessageKeepsProvidedID(t *testing.T) {
	store := newTestChatStore(t)
	ctx := context.Background()

	meta, err := store.Create(ctx, "", "")
	require.NoError(t, err)

	msg, err := store.AppendMessage(ctx, meta.ChatID, models.ChatMessage{
		ID: "msg_job-9", Role: models.RoleSystem, Content: "answer",
	})
	require.NoError(t, err)
	assert.Equal(t, "msg_job-9", msg.ID)
}

func TestAppendMessageMissingChat(t *testing.T) {
	store := newTestChatStore(t)

	_, err := store.AppendMessage(context.Background(), "nope", models.ChatMessage{
		Role: models.RoleUser, Content: "hi",
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetContentMissingTranscriptFile(t *testing.T) {
	store := newTestChatStore(t)
	ctx := context.Background()

	meta, err := store.Create(ctx, "", "hello")
	require.NoError(t, err)
	require.NoError(t, os.Remove(meta.JSONPath))

	_, err = store.GetContent(ctx, meta.ChatID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateTitleRewritesTranscript(t *testing.T) {
	store := newTestChatStore(t)
	ctx := context.Background()

	meta, err := store.Create(ctx, "old", "hello")
	require.NoError(t, err)

	updated, err := store.UpdateTitle(ctx, meta.ChatID, "new title")
	require.NoError(t, err)
	assert.Equal(t, "new title", updated.Title)

	content, err := store.GetContent(ctx, meta.ChatID)
	require.NoError(t, err)
	assert.Equal(t, "new title", content.Title)
}

func TestDeleteRemovesFileAndRecord(t *testing.T) {
	store := newTestChatStore(t)
	ctx := context.Background()

	meta, err := store.Create(ctx, "", "hello")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, meta.ChatID))

	_, err = os.Stat(meta.JSONPath)
	assert.True(t, os.IsNotExist(err))
	_, err = store.GetMetadata(ctx, meta.ChatID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.Delete(ctx, meta.ChatID), ErrNotFound)
}

func TestListOrdersByUpdatedAtDescending(t *testing.T) {
	store := newTestChatStore(t)
	ctx := context.Background()

	first, err := store.Create(ctx, "first", "")
	require.NoError(t, err)
	second, err := store.Create(ctx, "second", "")
	require.NoError(t, err)

	// Touch the first chat so it becomes the most recent.
	_, err = store.AppendMessage(ctx, first.ChatID, models.ChatMessage{
		Role: models.RoleUser, Content: "bump",
	})
	require.NoError(t, err)

	list, err := store.List(ctx, 0, 20)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ChatID, list[0].ChatID)
	assert.Equal(t, second.ChatID, list[1].ChatID)

	total, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestListPagination(t *testing.T) {
	store := newTestChatStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.Create(ctx, "", "")
		require.NoError(t, err)
	}

	page, err := store.List(ctx, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	tail, err := store.List(ctx, 4, 10)
	require.NoError(t, err)
	assert.Len(t, tail, 1)

	beyond, err := store.List(ctx, 10, 10)
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

// failingMetaStore rejects every write.
type failingMetaStore struct{}

func (failingMetaStore) Insert(context.Context, *models.ChatMetadata) error { return errTestDown }
func (failingMetaStore) Get(context.Context, string) (*models.ChatMetadata, error) {
	return nil, ErrNotFound
}
func (failingMetaStore) Put(context.Context, *models.ChatMetadata) error { return errTestDown }
func (failingMetaStore) Remove(context.Context, string) error            { return errTestDown }
func (failingMetaStore) List(context.Context, int, int) ([]models.ChatMetadata, error) {
	return nil, errTestDown
}
func (failingMetaStore) Count(context.Context) (int, error) { return 0, errTestDown }

var errTestDown = errors.New("metadata store unavailable")

var _ MetadataStore = failingMetaStore{}
