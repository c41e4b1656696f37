package certstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Save("example", []byte("cert-bytes"), []byte("key-bytes")))

	certPEM, keyPEM, ok, err := store.Load("example")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("cert-bytes"), certPEM)
	require.Equal(t, []byte("key-bytes"), keyPEM)
}

func TestLoadMissingReturnsNotOK(t *testing.T) {
	store := NewStore(t.TempDir())
	_, _, ok, err := store.Load("absent")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSaveWritesKeyWithRestrictedMode(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	require.NoError(t, store.Save("example", []byte("cert"), []byte("key")))

	info, err := os.Stat(filepath.Join(dir, "example", "key.pem"))
	require.NoError(t, err)
	require.Equal(t, "-rw-------", info.Mode().String())
}

func TestSlotSwap(t *testing.T) {
	var slot Slot
	require.Nil(t, slot.Get())

	entry := &CertEntry{}
	slot.Swap(entry)
	require.Same(t, entry, slot.Get())
}
