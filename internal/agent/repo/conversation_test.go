package repo

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentdesk/server/internal/agent/model"
)

func newTestRepo(t *testing.T, ttl time.Duration) (*RedisConversationRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	r := NewRedisConversationRepository(rdb, ttl)
	clock := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	r.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return r, mr
}

func TestAddTurnAndLoadHistoryPreservesOrder(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRepo(t, time.Hour)

	require.NoError(t, r.AddTurn(ctx, "s1", model.Turn{Role: schema.User, Text: "hi"}))
	require.NoError(t, r.AddTurn(ctx, "s1", model.Turn{Role: schema.Assistant, Text: "hello"}))
	require.NoError(t, r.AddTurn(ctx, "s1", model.Turn{Role: schema.User, Text: "again"}))

	h, err := r.LoadHistory(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, h.Turns, 3)
	assert.Equal(t, "hi", h.Turns[0].Text)
	assert.Equal(t, schema.Assistant, h.Turns[1].Role)
	assert.Equal(t, "again", h.Turns[2].Text)
	assert.True(t, h.Turns[0].Timestamp.Before(h.Turns[1].Timestamp))

	n, err := r.GetTurnCount(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, time.Hour, mr.TTL("session:s1:turns"))
}

func TestLoadHistoryUnknownSessionIsEmpty(t *testing.T) {
	r, _ := newTestRepo(t, 0)

	h, err := r.LoadHistory(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, h.Turns)
	assert.Equal(t, "missing", h.SessionID)
}

func TestClearHistoryRemovesTurnsAndDocuments(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRepo(t, 0)

	require.NoError(t, r.AddTurn(ctx, "s1", model.NewUserTurn("hi", time.Now())))
	require.NoError(t, r.AddDocument(ctx, "s1", "/tmp/a.txt"))
	require.NoError(t, r.ClearHistory(ctx, "s1"))

	assert.False(t, mr.Exists("session:s1:turns"))
	assert.False(t, mr.Exists("session:s1:documents"))
}

func TestRenameSessionMovesEverything(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t, time.Hour)

	texts := []string{"q1", "a1", "q2", "a2"}
	for i, text := range texts {
		role := schema.User
		if i%2 == 1 {
			role = schema.Assistant
		}
		require.NoError(t, r.AddTurn(ctx, "old", model.Turn{Role: role, Text: text}))
	}
	require.NoError(t, r.AddDocument(ctx, "old", "/tmp/first.md"))
	require.NoError(t, r.AddDocument(ctx, "old", "/tmp/second.md"))
	require.NoError(t, r.AddTurn(ctx, "new", model.Turn{Role: schema.User, Text: "stale"}))

	require.NoError(t, r.RenameSession(ctx, "old", "new"))

	moved, err := r.LoadHistory(ctx, "new")
	require.NoError(t, err)
	got := make([]string, 0, len(moved.Turns))
	for _, turn := range moved.Turns {
		got = append(got, turn.Text)
	}
	assert.Equal(t, texts, got)

	docs, err := r.ListDocuments(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, []string{"/tmp/first.md", "/tmp/second.md"}, docs)

	old, err := r.LoadHistory(ctx, "old")
	require.NoError(t, err)
	assert.Empty(t, old.Turns)
	oldDocs, err := r.ListDocuments(ctx, "old")
	require.NoError(t, err)
	assert.Empty(t, oldDocs)
}

func TestRenameSessionSameIDIsNoop(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t, 0)

	require.NoError(t, r.AddTurn(ctx, "s", model.NewUserTurn("keep", time.Now())))
	require.NoError(t, r.RenameSession(ctx, "s", "s"))

	n, err := r.GetTurnCount(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDocumentsOrderedByLatestUpload(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t, 0)

	require.NoError(t, r.AddDocument(ctx, "s", "/a.txt"))
	require.NoError(t, r.AddDocument(ctx, "s", "/b.txt"))
	require.NoError(t, r.AddDocument(ctx, "s", "/a.txt"))

	docs, err := r.ListDocuments(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []string{"/b.txt", "/a.txt"}, docs)
}
