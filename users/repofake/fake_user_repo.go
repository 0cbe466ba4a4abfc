package fakeuserrepo

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/jrsteele09/go-auth-session/users"
)

var _ users.Repo = (*FakeUserRepo)(nil)

var ErrNotFound = errors.New("not found")

type FakeUserRepo struct {
	users    map[string]*users.Profile
	emailIds map[string]string // email to uid
	lock     sync.RWMutex
}

func NewFakeUserRepo() users.Repo {
	return &FakeUserRepo{
		users:    make(map[string]*users.Profile),
		emailIds: make(map[string]string),
	}
}

func (ur *FakeUserRepo) Upsert(profile *users.Profile) error {
	if profile == nil || profile.UID == "" {
		return errors.New("profile uid is required")
	}
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if existing, ok := ur.users[profile.UID]; ok && existing.Email != profile.Email {
		delete(ur.emailIds, normalise(existing.Email))
	}
	ur.users[profile.UID] = profile.Clone()
	ur.emailIds[normalise(profile.Email)] = profile.UID
	return nil
}

func (ur *FakeUserRepo) Delete(uid string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	profile, ok := ur.users[uid]
	if !ok {
		return ErrNotFound
	}
	delete(ur.emailIds, normalise(profile.Email))
	delete(ur.users, uid)
	return nil
}

func (ur *FakeUserRepo) GetByEmail(email string) (*users.Profile, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	uid, ok := ur.emailIds[normalise(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return ur.users[uid].Clone(), nil
}

func (ur *FakeUserRepo) GetByUID(uid string) (*users.Profile, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	profile, ok := ur.users[uid]
	if !ok {
		return nil, ErrNotFound
	}
	return profile.Clone(), nil
}

func (ur *FakeUserRepo) List(offset, limit int) ([]*users.Profile, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	profiles := make([]*users.Profile, 0, len(ur.users))
	for _, v := range ur.users {
		profiles = append(profiles, v.Clone())
	}

	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].UID < profiles[j].UID
	})

	if offset < 0 || offset >= len(profiles) {
		return nil, nil
	}
	end := len(profiles)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return profiles[offset:end], nil
}

func normalise(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
