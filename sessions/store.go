// Package sessions owns the client-side authentication session: the token
// pair, the cached user profile and when the tokens were last issued. State
// lives in memory and is mirrored to a storage.Store so it survives restarts.
package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-session/authapi"
	"github.com/jrsteele09/go-auth-session/events"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/storage"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Persistence keys.
const (
	KeyAccessToken      = "access_token"
	KeyRefreshToken     = "refresh_token"
	KeyUser             = "user"
	KeyLastTokenRefresh = "last_token_refresh"
	KeyDeviceID         = "device_id"
)

var sessionKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUser, KeyLastTokenRefresh}

const (
	defaultStalenessThreshold = 50 * time.Minute
	defaultRefreshInterval    = 45 * time.Minute
	defaultRefreshMargin      = time.Minute
	defaultRefreshTimeout     = 30 * time.Second
	defaultRefreshRetryDelay  = time.Minute
)

// PostAuthHook runs after a successful login or registration. Errors are
// logged and never fail the authentication.
type PostAuthHook func(ctx context.Context, user *users.Profile) error

// Timer is the handle returned by an AfterFunc.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run after d. time.AfterFunc is the default.
type AfterFunc func(d time.Duration, f func()) Timer

// Snapshot is a consistent copy of the session at one instant.
type Snapshot struct {
	AccessToken   string
	RefreshToken  string
	User          *users.Profile
	LastRefreshAt time.Time
}

// IsAuthenticated reports whether the snapshot holds both an access token
// and a user.
func (s Snapshot) IsAuthenticated() bool {
	return s.AccessToken != "" && s.User != nil
}

type state struct {
	accessToken   string
	refreshToken  string
	user          *users.Profile
	lastRefreshAt time.Time
}

// Store is the session store. All methods are safe for concurrent use.
type Store struct {
	api       authapi.Client
	persist   storage.Store
	logger    zerolog.Logger
	bus       events.Bus
	hooks     []PostAuthHook
	nowTime   func() time.Time
	afterFunc AfterFunc

	stalenessThreshold time.Duration
	refreshInterval    time.Duration
	refreshMargin      time.Duration
	refreshTimeout     time.Duration
	refreshRetryDelay  time.Duration

	// writeMu serializes every change to the session so the persisted copy
	// converges to the last in-memory state. It is taken before mu.
	writeMu sync.Mutex

	mu         sync.RWMutex
	state      state
	generation uint64
	timer      Timer
	closed     bool

	refreshGroup singleflight.Group
	deviceMu     sync.Mutex
	background   sync.WaitGroup
}

var _ oauth2.TokenSource = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Store) {
		s.nowTime = nowFunc
	}
}

// WithAfterFunc replaces the scheduler used for proactive refresh.
func WithAfterFunc(afterFunc AfterFunc) Option {
	return func(s *Store) {
		s.afterFunc = afterFunc
	}
}

// WithBus publishes session events on bus.
func WithBus(bus events.Bus) Option {
	return func(s *Store) {
		s.bus = bus
	}
}

// WithPostAuthHooks adds hooks run after every login and registration.
func WithPostAuthHooks(hooks ...PostAuthHook) Option {
	return func(s *Store) {
		s.hooks = append(s.hooks, hooks...)
	}
}

// WithStalenessThreshold sets the age after which a persisted session is
// refreshed before its cached profile is trusted.
func WithStalenessThreshold(d time.Duration) Option {
	return func(s *Store) {
		s.stalenessThreshold = d
	}
}

// WithRefreshInterval sets the proactive refresh period.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Store) {
		s.refreshInterval = d
	}
}

// WithRefreshMargin sets how long before access token expiry a proactive
// refresh fires when the token expires before the interval elapses.
func WithRefreshMargin(d time.Duration) Option {
	return func(s *Store) {
		s.refreshMargin = d
	}
}

// WithRefreshTimeout bounds the refresh network call.
func WithRefreshTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.refreshTimeout = d
	}
}

// WithRefreshRetryDelay sets how long to wait before trying again when the
// server answers a refresh with an error other than 401.
func WithRefreshRetryDelay(d time.Duration) Option {
	return func(s *Store) {
		s.refreshRetryDelay = d
	}
}

// New creates an empty, unauthenticated store. Call LoadFromPersistence to
// restore a previous session.
func New(api authapi.Client, persist storage.Store, options ...Option) (*Store, error) {
	if api == nil {
		return nil, errors.New("[sessions.New] auth api client is required")
	}
	if persist == nil {
		return nil, errors.New("[sessions.New] storage is required")
	}

	s := &Store{
		api:                api,
		persist:            persist,
		logger:             zerolog.Nop(),
		nowTime:            time.Now,
		afterFunc:          func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) },
		stalenessThreshold: defaultStalenessThreshold,
		refreshInterval:    defaultRefreshInterval,
		refreshMargin:      defaultRefreshMargin,
		refreshTimeout:     defaultRefreshTimeout,
		refreshRetryDelay:  defaultRefreshRetryDelay,
	}

	for _, opt := range options {
		opt(s)
	}

	return s, nil
}

// IsAuthenticated reports whether there is both an access token and a user.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.accessToken != "" && s.state.user != nil
}

func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.accessToken
}

func (s *Store) HasRefreshToken() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.refreshToken != ""
}

// User returns a copy of the cached profile, or nil.
func (s *Store) User() *users.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.user.Clone()
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		AccessToken:   s.state.accessToken,
		RefreshToken:  s.state.refreshToken,
		User:          s.state.user.Clone(),
		LastRefreshAt: s.state.lastRefreshAt,
	}
}

// Token implements oauth2.TokenSource. It never refreshes; the request
// client and the refresh timer do that.
func (s *Store) Token() (*oauth2.Token, error) {
	snap := s.Snapshot()
	if !snap.IsAuthenticated() {
		return nil, autherrors.ErrNotAuthenticated
	}
	t := &oauth2.Token{
		AccessToken:  snap.AccessToken,
		RefreshToken: snap.RefreshToken,
		TokenType:    "Bearer",
	}
	if exp, ok := token.Expiry(snap.AccessToken); ok {
		t.Expiry = exp
	}
	return t, nil
}

// Close stops the refresh timer and waits for background work started by
// LoadFromPersistence. The store stays usable but no longer schedules
// proactive refreshes.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.stopTimerLocked()
	s.mu.Unlock()
	s.background.Wait()
}

func (s *Store) publish(t events.Type, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.New(t, payload))
}
