package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var (
	// ErrNotFound is returned by Open for a key that was never stored.
	ErrNotFound = errors.New("artifact not found")
	// ErrInvalidKey rejects absolute keys and keys escaping the store root.
	ErrInvalidKey = errors.New("invalid artifact key")
)

// Store persists pipeline outputs (segment tables, QA pairs, dataset
// splits) under slash-separated keys such as "<job>/train.jsonl".
type Store interface {
	// Put stores body under key and returns where it landed.
	Put(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Config selects and configures a Store. A bucket selects S3; otherwise
// artifacts go to Dir.
type Config struct {
	Dir string

	Bucket         string
	Region         string
	Endpoint       string
	KeyPrefix      string
	ForcePathStyle bool
}

// New builds the store described by cfg.
func New(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Bucket != "" {
		return NewS3Store(ctx, cfg)
	}
	return NewLocalStore(cfg.Dir)
}

func cleanKey(key string) (string, error) {
	k := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	k = strings.TrimPrefix(k, "/")
	if k == "" || k == "." || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return k, nil
}

// LocalStore keeps artifacts in a directory tree.
type LocalStore struct {
	Dir string
}

// NewLocalStore creates dir if needed. An empty dir uses a
// "synthtune-artifacts" directory under os.TempDir().
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "synthtune-artifacts")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &LocalStore{Dir: dir}, nil
}

func (l *LocalStore) Put(_ context.Context, key, _ string, body io.Reader) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(l.Dir, filepath.FromSlash(k))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".synthtune-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return dst, nil
}

func (l *LocalStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	k, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(l.Dir, filepath.FromSlash(k)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, k)
	}
	return f, err
}
