package sessions

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/jrsteele09/go-auth-session/authmodel"
	"github.com/jrsteele09/go-auth-session/events"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/pkg/errors"
)

// SetSession replaces the whole session with auth, stamps it as issued now
// and re-arms the proactive refresh timer. Memory is updated before the
// persisted copy. A persistence error is returned but the in-memory session
// stays in place.
func (s *Store) SetSession(ctx context.Context, auth *authmodel.AuthResponse) error {
	_, err := s.replace(ctx, auth, nil)
	if err != nil {
		return err
	}
	s.publish(events.TypeSessionStarted, auth.User.UID)
	return nil
}

// replace installs auth as the session. When expected is set the session is
// only replaced if its generation still matches; applied reports whether the
// replacement happened.
func (s *Store) replace(ctx context.Context, auth *authmodel.AuthResponse, expected *uint64) (applied bool, err error) {
	if !auth.Valid() {
		return false, errors.Wrap(autherrors.ErrInvalidRequest, "[Store.SetSession] incomplete auth data")
	}
	userJSON, err := json.Marshal(auth.User)
	if err != nil {
		return false, errors.Wrap(err, "[Store.SetSession] marshal user")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now := s.nowTime()
	s.mu.Lock()
	if expected != nil && *expected != s.generation {
		s.mu.Unlock()
		return false, nil
	}
	s.generation++
	s.state = state{
		accessToken:   auth.AccessToken,
		refreshToken:  auth.RefreshToken,
		user:          auth.User.Clone(),
		lastRefreshAt: now,
	}
	s.armTimerLocked(token.NextRefresh(now, auth.AccessToken, s.refreshInterval, s.refreshMargin))
	s.mu.Unlock()

	if err := s.persist.Set(ctx, map[string]string{
		KeyAccessToken:      auth.AccessToken,
		KeyRefreshToken:     auth.RefreshToken,
		KeyUser:             string(userJSON),
		KeyLastTokenRefresh: strconv.FormatInt(now.UnixMilli(), 10),
	}); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist session")
		return true, errors.Wrap(err, "[Store.SetSession] persist")
	}
	return true, nil
}

// ClearSession drops all four session fields from memory and persistence and
// cancels the refresh timer. It is idempotent. The device id is kept.
func (s *Store) ClearSession(ctx context.Context) error {
	_, err := s.clear(ctx, nil, "cleared")
	return err
}

func (s *Store) clear(ctx context.Context, expected *uint64, reason string) (applied bool, err error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if expected != nil && *expected != s.generation {
		s.mu.Unlock()
		return false, nil
	}
	hadSession := s.state.accessToken != "" || s.state.refreshToken != "" || s.state.user != nil
	s.generation++
	s.state = state{}
	s.stopTimerLocked()
	s.mu.Unlock()

	if err = s.persist.Remove(ctx, sessionKeys...); err != nil {
		s.logger.Error().Err(err).Msg("failed to remove persisted session")
		err = errors.Wrap(err, "[Store.ClearSession] persist")
	}
	if hadSession {
		s.logger.Debug().Str("reason", reason).Msg("session cleared")
		s.publish(events.TypeSessionCleared, reason)
	}
	return true, err
}

// armTimerLocked replaces the refresh timer. The callback only refreshes if
// the session it was armed for is still current. Callers hold mu.
func (s *Store) armTimerLocked(delay time.Duration) {
	s.stopTimerLocked()
	if s.closed {
		return
	}
	gen := s.generation
	s.timer = s.afterFunc(delay, func() {
		s.mu.RLock()
		current := gen == s.generation && !s.closed
		s.mu.RUnlock()
		if !current {
			return
		}
		s.logger.Debug().Msg("proactive token refresh")
		s.RefreshAccessToken(context.Background())
	})
}

func (s *Store) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
