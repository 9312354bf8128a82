// Package localstore is the local fallback backend: a directory of JSON documents,
// one per key, each holding the list of rows of an entity.
package localstore

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/trezcool/fieldpro/core"
)

const (
	ext            = ".json"
	tempFilePrefix = ".fieldpro-tmp-"
)

// Store is safe for concurrent use. Reads are served from an in-process cache that a
// file watcher invalidates whenever a document changes on disk.
type Store struct {
	dir    string
	logger core.Logger

	mu    sync.RWMutex
	cache map[string][]byte
	// gens is bumped on every write or invalidation of a key, epoch on invalidateAll.
	// A read only fills the cache when neither moved while the file was being read.
	gens  map[string]uint64
	epoch uint64

	// wmu serialises read-modify-write cycles
	wmu sync.Mutex

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// Open opens the store in dir, creating the directory if needed.
// The store must be closed to stop its watcher.
func Open(dir string, logger core.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating store dir")
	}
	s := &Store{
		dir:    dir,
		logger: logger,
		cache:  make(map[string][]byte),
		gens:   make(map[string]uint64),
		done:   make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating watcher")
	}
	if err = watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, errors.Wrapf(err, "watching %s", dir)
	}
	s.watcher = watcher

	s.wg.Add(1)
	go s.watch()
	return s, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) Close() error {
	select {
	case <-s.done:
		return nil
	default:
	}
	close(s.done)
	err := s.watcher.Close()
	s.wg.Wait()
	return err
}

func (s *Store) watch() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			key, ok := keyOf(event.Name)
			if !ok {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				s.invalidate(key)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			if s.logger != nil {
				s.logger.Warn("localstore watcher error", err)
			}
			// events may have been dropped
			s.invalidateAll()
		}
	}
}

// keyOf maps a document path to its key, ignoring temp and foreign files.
func keyOf(path string) (string, bool) {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ext) {
		return "", false
	}
	return strings.TrimSuffix(name, ext), true
}

func (s *Store) invalidate(key string) {
	s.mu.Lock()
	delete(s.cache, key)
	s.gens[key]++
	s.mu.Unlock()
}

func (s *Store) invalidateAll() {
	s.mu.Lock()
	s.cache = make(map[string][]byte)
	s.epoch++
	s.mu.Unlock()
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+ext)
}

// raw returns the document of key, nil if it does not exist.
func (s *Store) raw(key string) ([]byte, error) {
	s.mu.RLock()
	b, ok := s.cache[key]
	gen, epoch := s.gens[key], s.epoch
	s.mu.RUnlock()
	if ok {
		return b, nil
	}

	b, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "reading %s", key)
	}
	s.mu.Lock()
	if cached, ok := s.cache[key]; ok {
		b = cached // written while we were reading
	} else if s.gens[key] == gen && s.epoch == epoch {
		s.cache[key] = b
	}
	s.mu.Unlock()
	return b, nil
}

// Exists reports whether a document is stored under key.
func (s *Store) Exists(key string) (bool, error) {
	b, err := s.raw(key)
	return b != nil, err
}

// Get decodes the document of key into v. It reports false when there is none.
func (s *Store) Get(key string, v interface{}) (bool, error) {
	b, err := s.raw(key)
	if err != nil || b == nil {
		return false, err
	}
	if err = json.Unmarshal(b, v); err != nil {
		return false, errors.Wrapf(err, "decoding %s", key)
	}
	return true, nil
}

// Put replaces the document of key with v.
func (s *Store) Put(key string, v interface{}) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrapf(err, "encoding %s", key)
	}
	b := buf.Bytes()
	if err := writeFileAtomic(s.path(key), b, 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", key)
	}
	s.mu.Lock()
	s.cache[key] = b
	s.gens[key]++
	s.mu.Unlock()
	return nil
}

func (s *Store) Delete(key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "deleting %s", key)
	}
	s.invalidate(key)
	return nil
}

// Keys lists the stored keys matching a glob pattern, e.g. "working_hours_*".
func (s *Store) Keys(pattern string) ([]string, error) {
	names, err := doublestar.Glob(os.DirFS(s.dir), pattern+ext)
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", pattern)
	}
	keys := make([]string, 0, len(names))
	for _, name := range names {
		if key, ok := keyOf(name); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// writeFileAtomic writes to a temp file of the same directory then renames it over filename.
func writeFileAtomic(filename string, data []byte, perm os.FileMode) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(filename), tempFilePrefix+"*")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	defer os.Remove(tmpFile.Name()) // no-op once renamed

	if _, err = tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return errors.Wrap(err, "writing temp file")
	}
	if err = tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return errors.Wrap(err, "syncing temp file")
	}
	if err = tmpFile.Close(); err != nil {
		return errors.Wrap(err, "closing temp file")
	}
	if err = os.Chmod(tmpFile.Name(), perm); err != nil {
		return errors.Wrap(err, "chmod temp file")
	}
	return errors.Wrap(os.Rename(tmpFile.Name(), filename), "renaming temp file")
}
