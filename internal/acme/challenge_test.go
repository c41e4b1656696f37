package acme

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestChallengeStorePutGetRemove(t *testing.T) {
	store := NewChallengeStore()

	_, ok := store.Get("missing")
	require.False(t, ok)

	store.Put("token-1", "key-auth-1")
	val, ok := store.Get("token-1")
	require.True(t, ok)
	require.Equal(t, "key-auth-1", val)

	store.Remove("token-1")
	_, ok = store.Get("token-1")
	require.False(t, ok)
}

func TestChallengeStoreExpires(t *testing.T) {
	store := NewChallengeStore()
	store.entries["token-1"] = challengeEntry{
		keyAuthorization: "stale",
		expiresAt:        time.Now().Add(-time.Second),
	}

	_, ok := store.Get("token-1")
	require.False(t, ok)
}
