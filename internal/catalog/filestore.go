package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/talesofaneria/storefront/internal/domain"
)

// FileStore keeps one JSON document per source in a directory, named
// "<source>-cache.json". A document holds a single key at a time, so caching
// a second shop replaces the first and looking up the first becomes a miss.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore returns a FileStore rooted at dir. The directory is created
// on first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path returns the document path for source.
func (s *FileStore) Path(source string) string {
	return filepath.Join(s.dir, source+"-cache.json")
}

// Load implements Store.
func (s *FileStore) Load(_ context.Context, source, key string) (domain.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(source, key)
}

func (s *FileStore) loadLocked(source, key string) (domain.CacheEntry, error) {
	doc, err := os.ReadFile(s.Path(source))
	if errors.Is(err, fs.ErrNotExist) {
		return domain.CacheEntry{}, ErrCacheMiss
	}
	if err != nil {
		return domain.CacheEntry{}, fmt.Errorf("read %s cache: %w", source, err)
	}
	entry, err := decodeDocument(source, doc)
	if err != nil {
		return domain.CacheEntry{}, err
	}
	if entry.Key != key {
		return domain.CacheEntry{}, ErrCacheMiss
	}
	return entry, nil
}

// Save implements Store. The document is written to a temp file and renamed
// into place.
func (s *FileStore) Save(_ context.Context, source string, entry domain.CacheEntry) error {
	doc, err := encodeDocument(source, entry)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, source+"-cache-*.tmp")
	if err != nil {
		return fmt.Errorf("write %s cache: %w", source, err)
	}
	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s cache: %w", source, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s cache: %w", source, err)
	}
	if err := os.Rename(tmp.Name(), s.Path(source)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s cache: %w", source, err)
	}
	return nil
}

// Delete implements Store. It removes the document only if it holds key.
func (s *FileStore) Delete(_ context.Context, source, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.loadLocked(source, key); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil
		}
		return err
	}
	return s.removeLocked(source)
}

// Clear implements Store.
func (s *FileStore) Clear(_ context.Context, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(source)
}

func (s *FileStore) removeLocked(source string) error {
	if err := os.Remove(s.Path(source)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s cache: %w", source, err)
	}
	return nil
}
