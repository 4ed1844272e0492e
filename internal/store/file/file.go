package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"supermart/internal/store"
)

// Store writes each collection to <dir>/<name>.json.
type Store struct {
	mu  sync.Mutex
	dir string
}

func New(dir string) (*Store, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("data directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Load(_ context.Context, name string, dest any) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return store.ErrNotFound
		}
		return err
	}
	return json.Unmarshal(payload, dest)
}

// SaveAll stages every document as a temp file and renames them only after
// all of them were written, keeping the window for a torn write small.
func (s *Store) SaveAll(ctx context.Context, docs ...store.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	type staged struct {
		tmp    string
		target string
	}
	pending := make([]staged, 0, len(docs))
	cleanup := func() {
		for _, p := range pending {
			_ = os.Remove(p.tmp)
		}
	}

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			cleanup()
			return err
		}
		target, err := s.path(doc.Name)
		if err != nil {
			cleanup()
			return err
		}
		payload, err := json.MarshalIndent(doc.Value, "", "  ")
		if err != nil {
			cleanup()
			return fmt.Errorf("encode %s: %w", doc.Name, err)
		}
		tmp, err := os.CreateTemp(s.dir, doc.Name+".*.tmp")
		if err != nil {
			cleanup()
			return err
		}
		pending = append(pending, staged{tmp: tmp.Name(), target: target})
		if _, err := tmp.Write(payload); err != nil {
			_ = tmp.Close()
			cleanup()
			return err
		}
		if err := tmp.Sync(); err != nil {
			_ = tmp.Close()
			cleanup()
			return err
		}
		if err := tmp.Close(); err != nil {
			cleanup()
			return err
		}
	}

	for i, p := range pending {
		if err := os.Rename(p.tmp, p.target); err != nil {
			for _, rest := range pending[i:] {
				_ = os.Remove(rest.tmp)
			}
			log.Printf("[file-store] WARN: rename %s failed after %d of %d collections: %v", p.target, i, len(pending), err)
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", fmt.Errorf("%w: invalid collection name %q", store.ErrInvalidTransaction, name)
	}
	return filepath.Join(s.dir, name+".json"), nil
}
