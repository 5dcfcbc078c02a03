package conversation

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreAppendAndRecall(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.AppendTurn(ctx, "s1", RoleUser, "first question"))
	require.NoError(t, s.AppendTurn(ctx, "s1", RoleAssistant, "first answer"))
	require.NoError(t, s.AppendTurn(ctx, "s1", RoleUser, "second question"))

	turns, err := s.GetRecent(ctx, "s1", 2)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "first answer", turns[0].Text)
	assert.Equal(t, "second question", turns[1].Text)
	assert.Equal(t, RoleUser, turns[1].Role)
}

func TestMemoryStoreSessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.AppendTurn(ctx, "a", RoleUser, "hello from a"))

	turns, err := s.GetRecent(ctx, "b", 10)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestMemoryStoreStartNewSessionLeavesOldIntact(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.AppendTurn(ctx, "old", RoleUser, "kept"))

	id, err := s.StartNewSession(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NotEqual(t, "old", id)

	turns, err := s.GetRecent(ctx, "old", 10)
	require.NoError(t, err)
	assert.Len(t, turns, 1, "starting a new session must not touch existing ones")
}

func TestMemoryStoreDeleteSession(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.AppendTurn(ctx, "s1", RoleUser, "x"))
	require.NoError(t, s.DeleteSession(ctx, "s1"))

	turns, err := s.GetRecent(ctx, "s1", 10)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestMemoryStoreConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.AppendTurn(ctx, "shared", RoleUser, fmt.Sprintf("turn %d", i))
		}(i)
	}
	wg.Wait()

	turns, err := s.GetRecent(ctx, "shared", 0)
	require.NoError(t, err)
	assert.Len(t, turns, 50)
}
