package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

const filePerms = 0o600

// Files is a Backend keeping one JSON file per collection under a
// directory. Key "lifectx/tasks" lives at <dir>/lifectx/tasks.json.
// Every save replaces the file atomically, so a crash leaves either the
// old or the new document.
type Files struct {
	dir string
}

// NewFiles creates a file backend rooted at dir, creating it if needed
func NewFiles(dir string) (*Files, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create collections dir: %w", err)
	}
	return &Files{dir: dir}, nil
}

func (f *Files) path(key string) (string, error) {
	if key == "" {
		return "", errors.New("empty collection key")
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return "", fmt.Errorf("invalid collection key %q", key)
		}
	}
	return filepath.Join(f.dir, filepath.FromSlash(key)+".json"), nil
}

// LoadCollection implements Backend
func (f *Files) LoadCollection(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := f.path(key)
	if err != nil {
		return nil, err
	}

	doc, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load collection %s: %w", key, err)
	}
	return doc, nil
}

// SaveCollection implements Backend
func (f *Files) SaveCollection(ctx context.Context, key string, doc []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := f.path(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("save collection %s: %w", key, err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(doc)); err != nil {
		return fmt.Errorf("save collection %s: %w", key, err)
	}
	// atomic.WriteFile does not set permissions on new files
	if err := os.Chmod(path, filePerms); err != nil {
		return fmt.Errorf("save collection %s: %w", key, err)
	}
	return nil
}
