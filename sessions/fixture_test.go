package sessions_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-session/authapi"
	"github.com/jrsteele09/go-auth-session/authapi/authapifake"
	"github.com/jrsteele09/go-auth-session/authmodel"
	"github.com/jrsteele09/go-auth-session/events"
	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/jrsteele09/go-auth-session/storage/storefake"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

var errUnauthorized = &authapi.StatusError{StatusCode: 401, Detail: "Invalid refresh token"}

type fakeTimer struct {
	delay   time.Duration
	fire    func()
	stopped atomic.Bool
}

func (t *fakeTimer) Stop() bool {
	return !t.stopped.Swap(true)
}

// fakeScheduler records timers instead of running them.
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) sessions.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{delay: d, fire: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) all() []*fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*fakeTimer(nil), s.timers...)
}

func (s *fakeScheduler) last() *fakeTimer {
	all := s.all()
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

type testFixture struct {
	api     *authapifake.FakeClient
	persist *storefake.FakeStore
	sched   *fakeScheduler
	bus     *events.InMemoryBus
	now     time.Time
	store   *sessions.Store
}

func setupTestFixture(t *testing.T, options ...sessions.Option) *testFixture {
	t.Helper()
	f := &testFixture{
		api:     &authapifake.FakeClient{},
		persist: storefake.NewFakeStore(),
		sched:   &fakeScheduler{},
		bus:     events.NewBus(),
		now:     testNow,
	}
	f.store = f.newStore(t, options...)
	return f
}

// newStore builds another store over the same fakes, as a restarted process
// would see them.
func (f *testFixture) newStore(t *testing.T, options ...sessions.Option) *sessions.Store {
	t.Helper()
	opts := append([]sessions.Option{
		sessions.WithLogger(zerolog.New(zerolog.NewTestWriter(t))),
		sessions.WithNowTime(func() time.Time { return f.now }),
		sessions.WithAfterFunc(f.sched.AfterFunc),
		sessions.WithBus(f.bus),
	}, options...)
	store, err := sessions.New(f.api, f.persist, opts...)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

func authData(access, refresh, uid string) *authmodel.AuthResponse {
	return &authmodel.AuthResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         &users.Profile{UID: uid, Email: uid + "@example.com"},
	}
}

func jwtExpiringAt(t *testing.T, exp time.Time) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "dj_1", "exp": exp.Unix()}).SignedString([]byte("k"))
	require.NoError(t, err)
	return raw
}

func drain(ch <-chan events.Event) []events.Type {
	var types []events.Type
	for {
		select {
		case e := <-ch:
			types = append(types, e.Type)
		default:
			return types
		}
	}
}
