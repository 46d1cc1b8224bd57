package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/pebble"
)

// ErrNotFound is returned by a Backend that holds no document yet.
var ErrNotFound = errors.New("store: document not found")

// Backend holds one serialized document.
type Backend interface {
	// Load returns the stored bytes, or ErrNotFound.
	Load() ([]byte, error)
	// Save replaces the stored bytes in one operation.
	Save(data []byte) error
}

// FileBackend stores the document in a single file.
type FileBackend struct {
	Path string
}

// NewFileBackend creates a file backend for path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{Path: strings.TrimSpace(path)}
}

func (b *FileBackend) Load() ([]byte, error) {
	data, err := os.ReadFile(b.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", b.Path, err)
	}
	return data, nil
}

// Save writes to a temp file next to the target and renames it over the target,
// so a failed write leaves the previous document in place.
func (b *FileBackend) Save(data []byte) error {
	dir := filepath.Dir(b.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(b.Path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp: %w", err)
	}
	if err := os.Rename(tmpName, b.Path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// PebbleBackend stores the document under one key of a Pebble database.
// Several backends may share one database under different keys.
type PebbleBackend struct {
	db  *pebble.DB
	key []byte
}

// OpenPebble opens (or creates) a Pebble database in dir.
func OpenPebble(dir string) (*pebble.DB, error) {
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return db, nil
}

// NewPebbleBackend creates a backend storing its document under key.
func NewPebbleBackend(db *pebble.DB, key string) *PebbleBackend {
	return &PebbleBackend{db: db, key: []byte(key)}
}

func (b *PebbleBackend) Load() ([]byte, error) {
	v, closer, err := b.db.Get(b.key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("pebble get %s: %w", b.key, err)
	}
	defer closer.Close()
	return append([]byte(nil), v...), nil
}

func (b *PebbleBackend) Save(data []byte) error {
	if err := b.db.Set(b.key, data, pebble.Sync); err != nil {
		return fmt.Errorf("pebble set %s: %w", b.key, err)
	}
	return nil
}
