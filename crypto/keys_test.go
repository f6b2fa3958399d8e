package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyPairRoundTrip(t *testing.T) {
	key, err := GenerateKeyPair()
	require.NoError(t, err)

	loaded, err := LoadKeyPair(key.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, key.Address(), loaded.Address())

	_, err = LoadKeyPair([]byte("short"))
	assert.Error(t, err)
}

func TestKeyManagerCreateAndReload(t *testing.T) {
	dir := t.TempDir()

	km, err := NewKeyManager(dir)
	require.NoError(t, err)
	_, ok := km.StakerKey()
	assert.False(t, ok)

	created, err := km.CreateStakerKey()
	require.NoError(t, err)

	// Creating twice is refused.
	_, err = km.CreateStakerKey()
	assert.Error(t, err)

	// A fresh manager finds the persisted key.
	km2, err := NewKeyManager(dir)
	require.NoError(t, err)
	loaded, ok := km2.StakerKey()
	require.True(t, ok)
	assert.Equal(t, created.Address(), loaded.Address())
}
