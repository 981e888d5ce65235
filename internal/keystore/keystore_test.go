package keystore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateGeneratesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".auth_key")

	key, created, err := GetOrCreate(path)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, key, 64)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, created, err := GetOrCreate(path)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, key, again)
}

func TestGetOrCreateTrimsExistingKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".auth_key")
	require.NoError(t, os.WriteFile(path, []byte("  abc123\n"), 0o600))

	key, created, err := GetOrCreate(path)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "abc123", key)
}

func TestGetOrCreateReplacesBlankFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".auth_key")
	require.NoError(t, os.WriteFile(path, []byte("\n"), 0o600))

	_, err := Read(path)
	assert.ErrorIs(t, err, ErrEmptyKey)

	key, created, err := GetOrCreate(path)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, key, 64)

	stored, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, key, stored)
}

func TestGetOrCreateNestedPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets", "key")

	_, created, err := GetOrCreate(path)
	require.NoError(t, err)
	assert.True(t, created)
	assert.FileExists(t, path)
}
