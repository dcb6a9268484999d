package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Local keeps files in a directory on the local filesystem.
type Local struct {
	root string
}

// NewLocal creates a local store rooted at root.
func NewLocal(root string) *Local {
	if root == "" {
		root = "uploads"
	}
	return &Local{root: filepath.Clean(root)}
}

// Store writes data to <root>/<key> and returns that path.
func (l *Local) Store(ctx context.Context, key string, data []byte) (string, error) {
	path, err := l.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("storage/local: mkdir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("storage/local: write %s: %w", key, err)
	}
	return filepath.ToSlash(path), nil
}

// Fetch reads a path previously returned by Store.
func (l *Local) Fetch(ctx context.Context, path string) ([]byte, error) {
	full := filepath.Clean(filepath.FromSlash(path))
	if !l.contains(full) {
		return nil, fmt.Errorf("storage/local: %s is outside %s", path, l.root)
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage/local: read %s: %w", path, err)
	}
	return data, nil
}

func (l *Local) resolve(key string) (string, error) {
	key = strings.TrimLeft(filepath.ToSlash(key), "/")
	if key == "" {
		return "", errors.New("storage/local: empty key")
	}
	full := filepath.Join(l.root, filepath.FromSlash(key))
	if !l.contains(full) {
		return "", fmt.Errorf("storage/local: key %q escapes root", key)
	}
	return full, nil
}

func (l *Local) contains(path string) bool {
	rel, err := filepath.Rel(l.root, path)
	return err == nil && rel != "." && !strings.HasPrefix(rel, "..")
}
