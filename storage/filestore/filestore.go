// Package filestore persists key/value pairs in a single JSON file.
package filestore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/storage"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
)

// FileName is the name of the JSON document inside the store directory.
const FileName = "session.json"

var _ storage.Store = (*Store)(nil)

// Store keeps all values in memory and rewrites the whole file on every
// change. Writes go through a temp file and rename so a crash never leaves a
// half-written document behind.
type Store struct {
	path   string
	values map[string]string
	loaded bool
	mu     sync.Mutex
}

// New creates a store rooted at dir. A leading ~ is expanded to the user's
// home directory. The directory is created with 0700 permissions.
func New(dir string) (*Store, error) {
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "[filestore.New] expanding %q", dir)
	}
	if err := os.MkdirAll(expanded, 0o700); err != nil {
		return nil, errors.Wrapf(err, "[filestore.New] creating %q", expanded)
	}
	return &Store{path: filepath.Join(expanded, FileName)}, nil
}

// Path is the location of the backing file.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return "", false, err
	}
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *Store) Set(_ context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil && !errors.Is(err, autherrors.ErrCorruptSession) {
		return err
	}
	next := make(map[string]string, len(s.values)+len(values))
	for k, v := range s.values {
		next[k] = v
	}
	for k, v := range values {
		next[k] = v
	}
	if err := s.write(next); err != nil {
		return err
	}
	s.values = next
	return nil
}

func (s *Store) Remove(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil && !errors.Is(err, autherrors.ErrCorruptSession) {
		return err
	}
	next := make(map[string]string, len(s.values))
	for k, v := range s.values {
		next[k] = v
	}
	for _, k := range keys {
		delete(next, k)
	}
	if err := s.write(next); err != nil {
		return err
	}
	s.values = next
	return nil
}

// load reads the file once. A document that does not parse leaves the store
// empty and reports ErrCorruptSession; the next write replaces it.
func (s *Store) load() error {
	if s.loaded {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.values = map[string]string{}
		s.loaded = true
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "[filestore.load] reading %q", s.path)
	}

	values := map[string]string{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &values); err != nil {
			s.values = map[string]string{}
			s.loaded = true
			return errors.Wrapf(autherrors.ErrCorruptSession, "[filestore.load] %q: %v", s.path, err)
		}
	}
	s.values = values
	s.loaded = true
	return nil
}

func (s *Store) write(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return errors.Wrap(err, "[filestore.write] marshal")
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), FileName+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "[filestore.write] CreateTemp")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.Wrap(err, "[filestore.write] Chmod")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "[filestore.write] Write")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "[filestore.write] Sync")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "[filestore.write] Close")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return errors.Wrap(err, "[filestore.write] Rename")
	}
	return nil
}
