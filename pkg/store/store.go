// Package store provides read-modify-write access to a persisted dataset.
//
// A dataset is an ordered collection serialized as one human-readable document and
// fully rewritten on every write. Reads never fail on missing or corrupt state: a
// missing document reads as an empty dataset, a corrupt one is logged and also reads
// as empty. Writes through one Store are serialized; Update holds the lock across
// read-modify-write. ReadVersioned and WriteIfVersion add an optimistic check
// for writers that do not share a Store.
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Sternrassler/marketplace-sync/pkg/logging"
	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
)

var (
	// ErrVersionConflict is returned by WriteIfVersion when the stored document
	// changed since it was read.
	ErrVersionConflict = errors.New("store: version conflict")

	// ErrSkipWrite may be returned by an Update function to leave the document as is.
	ErrSkipWrite = errors.New("store: skip write")
)

// Version identifies the stored bytes of a document. Zero means no document.
type Version uint64

// Gateway is the persistence contract of one dataset.
type Gateway[T any] interface {
	Read(ctx context.Context) ([]T, error)
	Write(ctx context.Context, items []T) error
	Update(ctx context.Context, fn func([]T) ([]T, error)) error
}

// Store is a Gateway over a Backend and a Codec.
type Store[T any] struct {
	name    string
	backend Backend
	codec   Codec
	mu      sync.Mutex
	logger  zerolog.Logger
}

var _ Gateway[struct{}] = (*Store[struct{}])(nil)

// New creates a store for the dataset called name.
func New[T any](name string, backend Backend, codec Codec) *Store[T] {
	if codec == nil {
		codec = JSONCodec{}
	}
	return &Store[T]{
		name:    name,
		backend: backend,
		codec:   codec,
		logger: logging.NewLogger(logging.ComponentStore).With().
			Str("dataset", name).
			Str("format", codec.Name()).
			Logger(),
	}
}

// Read returns the dataset; never nil.
func (s *Store[T]) Read(ctx context.Context) ([]T, error) {
	items, _, err := s.ReadVersioned(ctx)
	return items, err
}

// ReadVersioned returns the dataset and the version of the bytes it was read from.
func (s *Store[T]) ReadVersioned(ctx context.Context) ([]T, Version, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Write replaces the whole document. Concurrent writers from other processes are
// not detected; the last write wins.
func (s *Store[T]) Write(ctx context.Context, items []T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(items)
}

// WriteIfVersion replaces the document only if it still has version expected.
func (s *Store[T]) WriteIfVersion(ctx context.Context, items []T, expected Version) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.currentVersion()
	if err != nil {
		return err
	}
	if current != expected {
		storeConflictsTotal.WithLabelValues(s.name).Inc()
		s.logger.Warn().
			Uint64("expected", uint64(expected)).
			Uint64("current", uint64(current)).
			Msg("Dataset changed since read - write rejected")
		return fmt.Errorf("%w: %s", ErrVersionConflict, s.name)
	}
	return s.save(items)
}

// Update runs fn on the current dataset and writes its result, holding the store
// lock throughout. fn may return ErrSkipWrite to leave the document untouched.
func (s *Store[T]) Update(ctx context.Context, fn func([]T) ([]T, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	items, _, err := s.load()
	if err != nil {
		return err
	}

	out, err := fn(items)
	if errors.Is(err, ErrSkipWrite) {
		storeOpsTotal.WithLabelValues(s.name, "update", "skipped").Inc()
		return nil
	}
	if err != nil {
		storeOpsTotal.WithLabelValues(s.name, "update", "error").Inc()
		return err
	}
	return s.save(out)
}

// load must be called with mu held.
func (s *Store[T]) load() ([]T, Version, error) {
	data, err := s.backend.Load()
	if errors.Is(err, ErrNotFound) {
		storeOpsTotal.WithLabelValues(s.name, "read", "missing").Inc()
		s.logger.Debug().Msg("No stored dataset - starting empty")
		return []T{}, 0, nil
	}
	if err != nil {
		storeOpsTotal.WithLabelValues(s.name, "read", "error").Inc()
		return nil, 0, fmt.Errorf("load %s: %w", s.name, err)
	}

	version := versionOf(data)
	if len(bytes.TrimSpace(data)) == 0 {
		storeOpsTotal.WithLabelValues(s.name, "read", "ok").Inc()
		return []T{}, version, nil
	}

	var items []T
	if err := s.codec.Unmarshal(data, &items); err != nil {
		storeOpsTotal.WithLabelValues(s.name, "read", "corrupt").Inc()
		storeCorruptTotal.WithLabelValues(s.name).Inc()
		s.logger.Warn().
			Err(err).
			Int("bytes", len(data)).
			Msg("Stored dataset is corrupt - reading as empty")
		return []T{}, version, nil
	}
	if items == nil {
		items = []T{}
	}

	storeOpsTotal.WithLabelValues(s.name, "read", "ok").Inc()
	return items, version, nil
}

// save must be called with mu held.
func (s *Store[T]) save(items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := s.codec.Marshal(items)
	if err != nil {
		storeOpsTotal.WithLabelValues(s.name, "write", "error").Inc()
		return fmt.Errorf("encode %s: %w", s.name, err)
	}
	if err := s.backend.Save(data); err != nil {
		storeOpsTotal.WithLabelValues(s.name, "write", "error").Inc()
		return fmt.Errorf("save %s: %w", s.name, err)
	}

	storeOpsTotal.WithLabelValues(s.name, "write", "ok").Inc()
	storeDocumentBytes.WithLabelValues(s.name).Set(float64(len(data)))
	s.logger.Debug().Int("items", len(items)).Int("bytes", len(data)).Msg("Dataset written")
	return nil
}

func (s *Store[T]) currentVersion() (Version, error) {
	data, err := s.backend.Load()
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", s.name, err)
	}
	return versionOf(data), nil
}

func versionOf(data []byte) Version {
	v := Version(xxhash.Sum64(data))
	if v == 0 {
		// reserve zero for "no document"
		v = 1
	}
	return v
}
