package credentials

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore(t *testing.T) {
	t.Run("creates directory with correct permissions", func(t *testing.T) {
		credDir := filepath.Join(t.TempDir(), "creds")

		store, err := NewStore(credDir)
		require.NoError(t, err)
		assert.NotNil(t, store)

		info, err := os.Stat(credDir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
	})

	t.Run("creates config.json on initialization", func(t *testing.T) {
		tmpDir := t.TempDir()
		store, err := NewStore(tmpDir)
		require.NoError(t, err)

		cfg, err := store.loadConfig()
		require.NoError(t, err)
		assert.Equal(t, 1, cfg.Version)
		assert.Empty(t, cfg.DefaultCredential)
		assert.Empty(t, cfg.Credentials)
	})
}

func TestStore_Save(t *testing.T) {
	t.Run("first credential becomes default", func(t *testing.T) {
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)

		cred, err := store.Save("prod", "https://hr.example.com", "token-1")
		require.NoError(t, err)
		assert.Equal(t, "prod", cred.Name)
		assert.Equal(t, Fingerprint("token-1"), cred.Fingerprint)

		_, err = store.Save("staging", "https://hr-staging.example.com", "token-2")
		require.NoError(t, err)

		def, err := store.GetDefault()
		require.NoError(t, err)
		assert.Equal(t, "prod", def.Name)
	})

	t.Run("token file is private", func(t *testing.T) {
		tmpDir := t.TempDir()
		store, err := NewStore(tmpDir)
		require.NoError(t, err)

		_, err = store.Save("prod", "https://hr.example.com", "token-1\n")
		require.NoError(t, err)

		info, err := os.Stat(filepath.Join(tmpDir, "prod.token"))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

		token, err := store.LoadToken("prod")
		require.NoError(t, err)
		assert.Equal(t, "token-1", token)
	})

	t.Run("replacing keeps created time", func(t *testing.T) {
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)

		first, err := store.Save("prod", "https://hr.example.com", "token-1")
		require.NoError(t, err)
		second, err := store.Save("prod", "https://hr.example.com", "token-2")
		require.NoError(t, err)

		assert.Equal(t, first.CreatedAt, second.CreatedAt)
		assert.NotEqual(t, first.Fingerprint, second.Fingerprint)

		token, err := store.LoadToken("prod")
		require.NoError(t, err)
		assert.Equal(t, "token-2", token)
	})

	t.Run("rejects unsafe names and empty tokens", func(t *testing.T) {
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)

		_, err = store.Save("../etc", "https://hr.example.com", "token")
		require.ErrorIs(t, err, ErrInvalidName)

		_, err = store.Save("prod", "https://hr.example.com", "  ")
		require.Error(t, err)
	})
}

func TestStore_Delete(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewStore(tmpDir)
	require.NoError(t, err)

	_, err = store.Save("prod", "https://hr.example.com", "token-1")
	require.NoError(t, err)

	require.NoError(t, store.Delete("prod"))

	_, err = store.Get("prod")
	require.ErrorIs(t, err, ErrCredentialNotFound)

	_, err = store.GetDefault()
	require.ErrorIs(t, err, ErrNoDefaultCredential)

	_, err = os.Stat(filepath.Join(tmpDir, "prod.token"))
	assert.True(t, os.IsNotExist(err))

	require.ErrorIs(t, store.Delete("prod"), ErrCredentialNotFound)
}

func TestStore_SetDefault(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("prod", "https://hr.example.com", "token-1")
	require.NoError(t, err)
	_, err = store.Save("staging", "https://hr-staging.example.com", "token-2")
	require.NoError(t, err)

	require.NoError(t, store.SetDefault("staging"))
	def, err := store.GetDefault()
	require.NoError(t, err)
	assert.Equal(t, "https://hr-staging.example.com", def.ServerURL)

	require.ErrorIs(t, store.SetDefault("missing"), ErrCredentialNotFound)

	list, err := store.List()
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
