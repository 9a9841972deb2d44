package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/studysync/internal/store"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	reloaded := make(chan *Catalog, 16)
	w := NewWatcher(path, func(c *Catalog) { reloaded <- c }, zap.NewNop())
	w.settle = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	updated := []byte("items:\n  - identifier: variables\n    levels:\n      beginner: 7\n")
	var got *Catalog
	require.Eventually(t, func() bool {
		if err := os.WriteFile(path, updated, 0o600); err != nil {
			return false
		}
		select {
		case got = <-reloaded:
			return true
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, 7, got.GoalCount("variables", store.LevelBeginner))

	cancel()
	require.NoError(t, <-done)
}

func TestWatcherKeepsPreviousOnBrokenEdit(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("items: [unclosed"), 0o600))

	called := false
	w := NewWatcher(path, func(*Catalog) { called = true }, nil)
	w.reload()
	require.False(t, called)
}
