// Package local_test tests the local state directory.
package local_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/studysync/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		dir, err := local.New(local.Config{BaseDir: t.TempDir()})
		require.NoError(t, err)
		assert.NotNil(t, dir)
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})

	t.Run("CreatesMissingDir", func(t *testing.T) {
		target := filepath.Join(t.TempDir(), "nested", "state")
		dir, err := local.New(local.Config{BaseDir: target})
		require.NoError(t, err)
		info, err := os.Stat(dir.Dir())
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("BaseDirIsNotADirectory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := local.New(local.Config{BaseDir: file})
		assert.Error(t, err)
	})
}

func TestClearLegacy(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(base, "progress_data"), []byte(`{"a":1}`), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(base, "studyProgress"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(base, "keep.json"), []byte(`{}`), 0o600))

	dir, err := local.New(local.Config{BaseDir: base})
	require.NoError(t, err)

	removed, err := dir.ClearLegacy(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"progress_data", "studyProgress"}, removed)

	_, err = os.Stat(filepath.Join(base, "progress_data"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(base, "keep.json"))
	assert.NoError(t, err)

	removed, err = dir.ClearLegacy(context.Background())
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestRemove(t *testing.T) {
	dir, err := local.New(local.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	t.Run("PathTraversal", func(t *testing.T) {
		_, err := dir.Remove(context.Background(), "../outside")
		assert.ErrorIs(t, err, local.ErrPathTraversal)
	})

	t.Run("EmptyKey", func(t *testing.T) {
		_, err := dir.Remove(context.Background(), " ")
		assert.Error(t, err)
	})

	t.Run("Missing", func(t *testing.T) {
		ok, err := dir.Remove(context.Background(), "lastMilestone")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := dir.Remove(ctx, "lastMilestone")
		assert.ErrorIs(t, err, context.Canceled)
	})
}
