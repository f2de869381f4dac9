package flow_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kopp/oauth2-api-experiment/internal/flow"
)

func TestMintClientID(t *testing.T) {
	first := flow.MintClientID()
	second := flow.MintClientID()

	assert.True(t, strings.HasPrefix(first, "urn:uuid:"))
	assert.NotEqual(t, first, second)
}

func TestRedirectStore_RecordIsIdempotentForSameTarget(t *testing.T) {
	store := flow.NewRedirectStore(time.Minute)
	defer store.Close()

	clientID := flow.MintClientID()

	require.NoError(t, store.Record(clientID, "https://relying/action"))
	require.NoError(t, store.Record(clientID, "https://relying/action"))

	target, ok := store.Resolve(clientID)
	require.True(t, ok)
	assert.Equal(t, "https://relying/action", target)
}

func TestRedirectStore_ConflictingTargetIsRejected(t *testing.T) {
	store := flow.NewRedirectStore(time.Minute)
	defer store.Close()

	clientID := flow.MintClientID()

	require.NoError(t, store.Record(clientID, "https://relying/action"))

	err := store.Record(clientID, "https://evil/elsewhere")
	require.ErrorIs(t, err, flow.ErrRedirectConflict)

	target, ok := store.Resolve(clientID)
	require.True(t, ok)
	assert.Equal(t, "https://relying/action", target, "the original target must be preserved")
}

func TestRedirectStore_ResolveUnknownClient(t *testing.T) {
	store := flow.NewRedirectStore(time.Minute)
	defer store.Close()

	_, ok := store.Resolve("urn:uuid:00000000-0000-0000-0000-000000000000")
	assert.False(t, ok)
}

func TestRedirectStore_ResolveIsNotSingleUse(t *testing.T) {
	store := flow.NewRedirectStore(time.Minute)
	defer store.Close()

	clientID := flow.MintClientID()
	require.NoError(t, store.Record(clientID, "https://relying/action"))

	for i := 0; i < 3; i++ {
		target, ok := store.Resolve(clientID)
		require.True(t, ok)
		assert.Equal(t, "https://relying/action", target)
	}
}

func TestRedirectStore_EntriesExpire(t *testing.T) {
	store := flow.NewRedirectStore(20 * time.Millisecond)
	defer store.Close()

	clientID := flow.MintClientID()
	require.NoError(t, store.Record(clientID, "https://relying/action"))

	time.Sleep(60 * time.Millisecond)

	_, ok := store.Resolve(clientID)
	assert.False(t, ok)
}
