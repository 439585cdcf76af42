package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalBackend writes objects below a directory that the HTTP server exposes
// as static files.
type LocalBackend struct {
	root string
}

func NewLocalBackend(root string) (*LocalBackend, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", root, err)
	}
	return &LocalBackend{root: filepath.Clean(root)}, nil
}

func (b *LocalBackend) Name() string { return "local" }

func (b *LocalBackend) Root() string { return b.root }

func (b *LocalBackend) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	target, err := b.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, body); err != nil {
		out.Close()
		os.Remove(target)
		return err
	}
	return out.Close()
}

// Delete is idempotent: a missing file is not an error.
func (b *LocalBackend) Delete(_ context.Context, key string) error {
	target, err := b.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// resolve maps key to a path inside root and refuses anything that escapes it.
func (b *LocalBackend) resolve(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", fmt.Errorf("empty object key")
	}
	cleanRel := strings.TrimPrefix(path.Clean("/"+strings.TrimPrefix(trimmed, "/")), "/")

	target := filepath.Clean(filepath.Join(b.root, filepath.FromSlash(cleanRel)))
	if target == b.root || !strings.HasPrefix(target, b.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("refusing path outside upload root: %s", key)
	}
	return target, nil
}
