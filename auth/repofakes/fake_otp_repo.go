package fakeotprepo

import (
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-session/auth"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/pkg/errors"
)

var _ auth.OTPRepo = (*FakeOTPRepo)(nil)

type FakeOTPRepo struct {
	pending map[string]auth.PendingOTP
	lock    sync.RWMutex
}

func NewFakeOTPRepo() *FakeOTPRepo {
	return &FakeOTPRepo{
		pending: make(map[string]auth.PendingOTP),
	}
}

func (r *FakeOTPRepo) Upsert(pending *auth.PendingOTP) error {
	if pending == nil || pending.Email == "" {
		return errors.New("[FakeOTPRepo.Upsert] email is required")
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	r.pending[pending.Email] = *pending
	return nil
}

func (r *FakeOTPRepo) Get(email string) (*auth.PendingOTP, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	p, ok := r.pending[email]
	if !ok {
		return nil, autherrors.ErrNotFound
	}
	return &p, nil
}

func (r *FakeOTPRepo) Delete(email string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.pending, email)
	return nil
}

func (r *FakeOTPRepo) DeleteExpired(now time.Time) int {
	r.lock.Lock()
	defer r.lock.Unlock()

	removed := 0
	for email, p := range r.pending {
		if now.After(p.ExpiresAt) {
			delete(r.pending, email)
			removed++
		}
	}
	return removed
}

func (r *FakeOTPRepo) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.pending)
}
