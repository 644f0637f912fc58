package session

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contractx "github.com/MazarSayed/stock-platform/agent/contract"
)

var memDBCounter atomic.Int64

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := fmt.Sprintf("file:sessiontest%d?mode=memory&cache=shared", memDBCounter.Add(1))
	s, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestCreateSessionAndThreadID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	threadID := uuid.NewString()

	created, err := s.CreateSession(ctx, "sess-1", threadID)
	require.NoError(t, err)
	assert.True(t, created)

	got, err := s.GetThreadID(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, threadID, got)

	created, err = s.CreateSession(ctx, "sess-1", uuid.NewString())
	require.NoError(t, err)
	assert.False(t, created)

	got, err = s.GetThreadID(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, threadID, got, "thread id must not change for an existing session")
}

func TestGetThreadIDUnknown(t *testing.T) {
	t.Parallel()

	_, err := newTestStore(t).GetThreadID(context.Background(), "nope")
	assert.ErrorIs(t, err, contractx.ErrSessionNotFound)
}

func TestExistsAndTouch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	ok, err := s.Exists(ctx, "sess-1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.CreateSession(ctx, "sess-1", uuid.NewString())
	require.NoError(t, err)
	require.NoError(t, s.Touch(ctx, "sess-1"))

	ok, err = s.Exists(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAppendAndListMessages(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	_, err := s.CreateSession(ctx, "sess-1", uuid.NewString())
	require.NoError(t, err)

	require.NoError(t, s.AppendMessage(ctx, "sess-1", Message{Role: "user", Content: "hi"}))
	require.NoError(t, s.AppendTurn(ctx, "sess-1",
		Message{Role: "user", Content: "buy 10 AAPL"},
		Message{Role: "assistant", Content: "Order placed", Agent: "task_agent"},
	))
	require.NoError(t, s.AppendMessage(ctx, "other", Message{Role: "user", Content: "elsewhere"}))

	msgs, err := s.ListMessages(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.Equal(t, "", msgs[0].Agent)
	assert.Equal(t, "buy 10 AAPL", msgs[1].Content)
	assert.Equal(t, "task_agent", msgs[2].Agent)
	assert.Equal(t, "assistant", msgs[2].Role)
}

func TestListMessagesEmpty(t *testing.T) {
	t.Parallel()

	msgs, err := newTestStore(t).ListMessages(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestOpenFileCreatesDir(t *testing.T) {
	t.Parallel()

	dsn := "file:" + filepath.Join(t.TempDir(), "nested", "state.db") + "?_pragma=busy_timeout(5000)"
	s, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Migrate(context.Background()), "migrate is idempotent")
}

func TestOpenRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := Open(" ")
	assert.ErrorIs(t, err, contractx.ErrValidation)
}
