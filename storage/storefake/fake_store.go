package storefake

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/jrsteele09/go-auth-session/storage"
)

var _ storage.Store = (*FakeStore)(nil)

// FakeStore is an in-memory storage.Store that records every write and can
// be told to fail.
type FakeStore struct {
	values    map[string]string
	ops       []string
	getErr    error
	setErr    error
	removeErr error
	lock      sync.RWMutex
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		values: make(map[string]string),
	}
}

func (s *FakeStore) Get(_ context.Context, key string) (string, bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.getErr != nil {
		return "", false, s.getErr
	}
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *FakeStore) Set(_ context.Context, values map[string]string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s.ops = append(s.ops, "set "+strings.Join(keys, ","))
	if s.setErr != nil {
		return s.setErr
	}
	for k, v := range values {
		s.values[k] = v
	}
	return nil
}

func (s *FakeStore) Remove(_ context.Context, keys ...string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	s.ops = append(s.ops, "remove "+strings.Join(sorted, ","))
	if s.removeErr != nil {
		return s.removeErr
	}
	for _, k := range keys {
		delete(s.values, k)
	}
	return nil
}

// Put writes a raw value without recording an operation. Tests use it to
// seed persisted state, including corrupt values.
func (s *FakeStore) Put(key, value string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.values[key] = value
}

// Value returns the stored value for key.
func (s *FakeStore) Value(key string) (string, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Len is the number of stored keys.
func (s *FakeStore) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.values)
}

// Ops returns the recorded operations in order, e.g. "set a,b" or "remove a".
func (s *FakeStore) Ops() []string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return append([]string(nil), s.ops...)
}

// FailGet makes subsequent Get calls return err. A nil err clears it.
func (s *FakeStore) FailGet(err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.getErr = err
}

// FailSet makes subsequent Set calls return err. A nil err clears it.
func (s *FakeStore) FailSet(err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.setErr = err
}

// FailRemove makes subsequent Remove calls return err. A nil err clears it.
func (s *FakeStore) FailRemove(err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.removeErr = err
}
