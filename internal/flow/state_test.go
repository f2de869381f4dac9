package flow_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kopp/oauth2-api-experiment/internal/flow"
)

func TestStateStore_ConsumeSucceedsExactlyOnce(t *testing.T) {
	store := flow.NewStateStore(time.Minute)
	defer store.Close()

	state, err := store.Issue()
	require.NoError(t, err)

	assert.True(t, store.Consume(state))
	assert.False(t, store.Consume(state), "a state token must never be accepted twice")
}

func TestStateStore_ConsumeUnknownState(t *testing.T) {
	store := flow.NewStateStore(time.Minute)
	defer store.Close()

	assert.False(t, store.Consume("never-issued"))
}

func TestStateStore_TokenFormat(t *testing.T) {
	store := flow.NewStateStore(time.Minute)
	defer store.Close()

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		state, err := store.Issue()
		require.NoError(t, err)
		require.Len(t, state, 20)
		for _, r := range state {
			lower := r >= 'a' && r <= 'z'
			digit := r >= '0' && r <= '9'
			require.True(t, lower || digit, "unexpected character %q in state token", r)
		}
		require.False(t, seen[state], "duplicate state token issued")
		seen[state] = true
	}

	assert.Equal(t, 100, store.Outstanding())
}

func TestStateStore_ConcurrentConsumeSingleWinner(t *testing.T) {
	store := flow.NewStateStore(time.Minute)
	defer store.Close()

	state, err := store.Issue()
	require.NoError(t, err)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if store.Consume(state) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load(), "exactly one concurrent consume may win")
}

func TestStateStore_TokensExpire(t *testing.T) {
	store := flow.NewStateStore(20 * time.Millisecond)
	defer store.Close()

	state, err := store.Issue()
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	assert.False(t, store.Consume(state), "an expired state token must not be accepted")
}
