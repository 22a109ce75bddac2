package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSecret(t *testing.T) {
	dir := t.TempDir()

	t.Run("file wins over env", func(t *testing.T) {
		path := filepath.Join(dir, "secret")
		require.NoError(t, os.WriteFile(path, []byte("from-file\n"), 0o600))
		secret, err := loadSecret(path, "from-env")
		require.NoError(t, err)
		assert.Equal(t, "from-file", string(secret))
	})

	t.Run("env fallback", func(t *testing.T) {
		secret, err := loadSecret("", "from-env")
		require.NoError(t, err)
		assert.Equal(t, "from-env", string(secret))
	})

	t.Run("nothing configured", func(t *testing.T) {
		_, err := loadSecret("", "")
		require.Error(t, err)
	})

	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(dir, "empty")
		require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))
		_, err := loadSecret(path, "")
		require.Error(t, err)
	})
}
