package room

import (
	"fmt"
	"sync"
	"testing"

	"github.com/roomplay/tictactoe-room-backend/internal/tictactoe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_GetOrCreate(t *testing.T) {
	t.Run("Returns the same session for the same id", func(t *testing.T) {
		registry := NewRegistry()

		first := registry.GetOrCreate("r1")
		second := registry.GetOrCreate("r1")

		assert.Same(t, first, second)
		assert.Equal(t, 1, registry.Len())
	})

	t.Run("Concurrent calls for an unseen id create exactly one session", func(t *testing.T) {
		registry := NewRegistry()

		const workers = 32
		sessions := make([]*Session, workers)

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				sessions[i] = registry.GetOrCreate("r1")
			}(i)
		}
		wg.Wait()

		for i := 1; i < workers; i++ {
			assert.Same(t, sessions[0], sessions[i])
		}
		assert.Equal(t, 1, registry.Len())
	})
}

func TestRegistry_Get(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Get("missing")
	require.Error(t, err)

	created := registry.GetOrCreate("r1")
	found, err := registry.Get("r1")
	require.NoError(t, err)
	assert.Same(t, created, found)
}

func TestRegistry_Release(t *testing.T) {
	t.Run("Empty room is dropped", func(t *testing.T) {
		registry := NewRegistry()
		registry.GetOrCreate("r1")

		assert.True(t, registry.Release("r1"))
		assert.Zero(t, registry.Len())
	})

	t.Run("Occupied room is kept", func(t *testing.T) {
		registry := NewRegistry()
		session := registry.GetOrCreate("r1")
		_, _, err := session.Join("conn-a", "")
		require.NoError(t, err)

		assert.False(t, registry.Release("r1"))
		assert.Equal(t, 1, registry.Len())
	})

	t.Run("Released session cannot be joined and a fresh one takes its place", func(t *testing.T) {
		registry := NewRegistry()
		stale := registry.GetOrCreate("r1")
		require.True(t, registry.Release("r1"))

		// Then: a join racing the release observes the closed session
		_, _, err := stale.Join("conn-a", "")
		assert.ErrorIs(t, err, ErrSessionClosed)

		fresh := registry.GetOrCreate("r1")
		assert.NotSame(t, stale, fresh)
	})
}

// Two connections race to join an unseen room: exactly one session exists
// afterwards, holding one X and one O.
func TestRegistry_ConcurrentJoins(t *testing.T) {
	registry := NewRegistry()

	var wg sync.WaitGroup
	marks := make([]string, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			session := registry.GetOrCreate("r1")
			occupant, _, err := session.Join(fmt.Sprintf("conn-%d", i), tictactoe.PlayerX)
			assert.NoError(t, err)
			marks[i] = occupant.Mark
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, registry.Len())
	assert.ElementsMatch(t, []string{tictactoe.PlayerX, tictactoe.PlayerO}, marks)
}
