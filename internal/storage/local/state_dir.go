// Package local manages the on-device state directory of the sync agent.
// Progress is not persisted locally; the directory is only inspected so that
// state left behind by earlier clients can be removed on startup.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LegacyKeys are the on-device progress keys written by earlier clients.
// They are removed on startup and never read.
var LegacyKeys = []string{"progress_data", "lastMilestone", "studyProgress"}

// ErrPathTraversal is returned for keys that resolve outside the state dir.
var ErrPathTraversal = errors.New("path traversal detected")

// Config captures the parameters for the local state directory.
type Config struct {
	// BaseDir is the root directory holding on-device state.
	BaseDir string `mapstructure:"dir" yaml:"dir"`
}

// StateDir is a validated, writable state directory.
type StateDir struct {
	baseDir string
}

// New validates cfg, creating the directory when it does not exist.
func New(cfg Config) (*StateDir, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("state directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to stat state directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("state directory path is not a directory")
	}

	// Check for write permissions.
	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("state directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &StateDir{baseDir: cfg.BaseDir}, nil
}

// Dir returns the directory root.
func (s *StateDir) Dir() string {
	return s.baseDir
}

func (s *StateDir) resolve(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("key is required")
	}
	cleanBaseDir := filepath.Clean(s.baseDir)
	cleanFullPath := filepath.Clean(filepath.Join(s.baseDir, key))
	if !strings.HasPrefix(cleanFullPath, cleanBaseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, key)
	}
	return cleanFullPath, nil
}

// Remove deletes the entry stored under key. It reports whether something
// was removed; a missing entry is not an error.
func (s *StateDir) Remove(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("remove %q: %w", key, err)
	}
	fullPath, err := s.resolve(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Lstat(fullPath); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err := os.RemoveAll(fullPath); err != nil {
		return false, fmt.Errorf("remove %q: %w", key, err)
	}
	return true, nil
}

// ClearLegacy removes every legacy key present and returns the ones found.
func (s *StateDir) ClearLegacy(ctx context.Context) ([]string, error) {
	var removed []string
	for _, key := range LegacyKeys {
		ok, err := s.Remove(ctx, key)
		if err != nil {
			return removed, err
		}
		if ok {
			removed = append(removed, key)
		}
	}
	return removed, nil
}
