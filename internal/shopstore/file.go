package shopstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/signshop/internal/shop"
)

// fileVersion is the document version written by [FileStore].
const fileVersion = 1

// Compile-time interface check.
var _ Store = (*FileStore)(nil)

// fileDocument is the on-disk layout of a [FileStore].
type fileDocument struct {
	Version int           `yaml:"version"`
	Shops   []shop.Record `yaml:"shops"`
}

// FileStore persists the registry as a single YAML document. Save writes a
// temporary file next to the target and renames it into place, so readers
// always see either the old or the new registry.
type FileStore struct {
	mu     sync.Mutex
	path   string
	closed bool
}

// NewFileStore returns a [FileStore] writing to path. The file and its
// directory are created on the first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the file the store writes to.
func (s *FileStore) Path() string { return s.path }

// Load implements [Store.Load]. A missing file is an empty registry.
func (s *FileStore) Load(_ context.Context) ([]shop.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []shop.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("shopstore: read %q: %w", s.path, err)
	}

	var doc fileDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if len(bytes.TrimSpace(data)) == 0 {
			return []shop.Record{}, nil
		}
		return nil, fmt.Errorf("shopstore: decode %q: %w", s.path, err)
	}
	if doc.Version > fileVersion {
		return nil, fmt.Errorf("shopstore: %q has version %d, newest supported is %d", s.path, doc.Version, fileVersion)
	}
	if doc.Shops == nil {
		doc.Shops = []shop.Record{}
	}
	return doc.Shops, nil
}

// Save implements [Store.Save].
func (s *FileStore) Save(_ context.Context, records []shop.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	data, err := yaml.Marshal(fileDocument{Version: fileVersion, Shops: records})
	if err != nil {
		return fmt.Errorf("shopstore: marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("shopstore: create dir %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("shopstore: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("shopstore: write %q: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("shopstore: sync %q: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("shopstore: close %q: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("shopstore: replace %q: %w", s.path, err)
	}
	return nil
}

// Close implements [Store.Close].
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
