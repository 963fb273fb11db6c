package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Store persists generated documents and hands back a retrievable URL.
// Persistence is best-effort for the jobs that use it: a failed Put degrades
// to attaching the document from memory.
type Store interface {
	Put(ctx context.Context, name string, r io.Reader) (url string, err error)
	Get(ctx context.Context, name string) ([]byte, error)
}

// LocalStore writes documents under a directory on the service host.
type LocalStore struct {
	dir     string
	baseURL string
}

func NewLocal(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create dir: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStore) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	name = filepath.Base(name)
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	if s.baseURL == "" {
		return path, nil
	}
	return s.baseURL + "/" + name, nil
}

func (s *LocalStore) Get(ctx context.Context, name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.dir, filepath.Base(name)))
}

// NoOpStore rejects every operation. Used when no storage directory is
// configured.
type NoOpStore struct{}

func (s *NoOpStore) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	return "", fmt.Errorf("storage: not configured")
}

func (s *NoOpStore) Get(ctx context.Context, name string) ([]byte, error) {
	return nil, fmt.Errorf("storage: not configured")
}
