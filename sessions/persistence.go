package sessions

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/pkg/errors"
)

type persisted struct {
	accessToken   string
	refreshToken  string
	user          *users.Profile
	lastRefreshAt time.Time
}

// LoadFromPersistence restores the session saved by a previous process and
// reports whether the store is authenticated afterwards.
//
// A session older than the staleness threshold is refreshed before its
// cached profile is exposed. A fresher one is adopted as is and its profile
// is re-fetched in the background. Persisted data that cannot be read clears
// the session.
func (s *Store) LoadFromPersistence(ctx context.Context) bool {
	p, found, err := s.readPersisted(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load persisted session, clearing")
		_ = s.ClearSession(ctx)
		return false
	}
	if !found {
		return false
	}

	now := s.nowTime()
	age := now.Sub(p.lastRefreshAt)
	if p.lastRefreshAt.IsZero() || age > s.stalenessThreshold {
		return s.loadStale(ctx, p, age)
	}

	s.writeMu.Lock()
	s.mu.Lock()
	s.generation++
	s.state = state{
		accessToken:   p.accessToken,
		refreshToken:  p.refreshToken,
		user:          p.user,
		lastRefreshAt: p.lastRefreshAt,
	}
	s.armTimerLocked(token.NextRefresh(now, p.accessToken, s.refreshInterval-age, s.refreshMargin))
	s.mu.Unlock()
	s.writeMu.Unlock()

	s.logger.Debug().Dur("age", age).Msg("restored persisted session")

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		if _, err := s.FetchCurrentUser(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn().Err(err).Msg("background profile refresh failed")
		}
	}()
	return true
}

// loadStale keeps only the refresh token in memory so nothing sees the old
// profile, then refreshes.
func (s *Store) loadStale(ctx context.Context, p *persisted, age time.Duration) bool {
	if p.refreshToken == "" {
		s.logger.Info().Dur("age", age).Msg("persisted session is stale and has no refresh token, clearing")
		_ = s.ClearSession(ctx)
		return false
	}

	s.writeMu.Lock()
	s.mu.Lock()
	s.generation++
	s.state = state{refreshToken: p.refreshToken}
	s.stopTimerLocked()
	s.mu.Unlock()
	s.writeMu.Unlock()

	s.logger.Debug().Dur("age", age).Msg("persisted session is stale, refreshing")
	return s.RefreshAccessToken(ctx)
}

// readPersisted returns found=false when there is no usable session, that is
// no access token or no user, and removes whatever part of one was left.
// Unparseable values and a user without a uid are reported as
// ErrCorruptSession.
func (s *Store) readPersisted(ctx context.Context) (*persisted, bool, error) {
	get := func(key string) (string, error) {
		v, _, err := s.persist.Get(ctx, key)
		return v, err
	}

	accessToken, err := get(KeyAccessToken)
	if err != nil {
		return nil, false, errors.Wrap(err, "[Store.LoadFromPersistence] access token")
	}
	userRaw, err := get(KeyUser)
	if err != nil {
		return nil, false, errors.Wrap(err, "[Store.LoadFromPersistence] user")
	}
	refreshToken, err := get(KeyRefreshToken)
	if err != nil {
		return nil, false, errors.Wrap(err, "[Store.LoadFromPersistence] refresh token")
	}
	lastRaw, err := get(KeyLastTokenRefresh)
	if err != nil {
		return nil, false, errors.Wrap(err, "[Store.LoadFromPersistence] last refresh")
	}
	if accessToken == "" || userRaw == "" {
		if accessToken+userRaw+refreshToken+lastRaw != "" {
			if err := s.persist.Remove(ctx, sessionKeys...); err != nil {
				s.logger.Warn().Err(err).Msg("failed to remove partial persisted session")
			}
		}
		return nil, false, nil
	}

	p := &persisted{
		accessToken:  accessToken,
		refreshToken: refreshToken,
		user:         &users.Profile{},
	}
	if err := json.Unmarshal([]byte(userRaw), p.user); err != nil {
		return nil, false, errors.Wrapf(autherrors.ErrCorruptSession, "[Store.LoadFromPersistence] user: %v", err)
	}
	if p.user.UID == "" {
		return nil, false, errors.Wrap(autherrors.ErrCorruptSession, "[Store.LoadFromPersistence] user has no uid")
	}
	if lastRaw != "" {
		ms, err := strconv.ParseInt(lastRaw, 10, 64)
		if err != nil {
			return nil, false, errors.Wrapf(autherrors.ErrCorruptSession, "[Store.LoadFromPersistence] last refresh %q", lastRaw)
		}
		p.lastRefreshAt = time.UnixMilli(ms)
	}
	return p, true, nil
}

// DeviceID returns a random identifier for this installation, creating and
// persisting it on first use. ClearSession does not remove it.
func (s *Store) DeviceID(ctx context.Context) (string, error) {
	s.deviceMu.Lock()
	defer s.deviceMu.Unlock()

	id, ok, err := s.persist.Get(ctx, KeyDeviceID)
	if err != nil {
		return "", errors.Wrap(err, "[Store.DeviceID] Get")
	}
	if ok && id != "" {
		return id, nil
	}

	id = uuid.NewString()
	if err := s.persist.Set(ctx, map[string]string{KeyDeviceID: id}); err != nil {
		return "", errors.Wrap(err, "[Store.DeviceID] Set")
	}
	return id, nil
}
