package sessions

import (
	"context"

	"github.com/jrsteele09/go-auth-session/authapi"
	"github.com/jrsteele09/go-auth-session/events"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/pkg/errors"
)

const refreshKey = "refresh"

// RefreshAccessToken exchanges the refresh token for a new session. Callers
// that arrive while a refresh is in flight share its outcome instead of
// starting another one.
//
// A rejected refresh token or a transport error clears the session,
// publishes auth.required and returns false. Any other error status from the
// server leaves the session in place and retries after the refresh retry
// delay.
//
// A result is only applied if the session has not been replaced or cleared
// since the refresh started. Otherwise it is discarded and the return value
// reflects whatever session is current.
//
// ctx only bounds how long this caller waits. The network call itself runs
// to completion for the other waiters, bounded by the refresh timeout.
func (s *Store) RefreshAccessToken(ctx context.Context) bool {
	ch := s.refreshGroup.DoChan(refreshKey, func() (any, error) {
		return s.refresh(), nil
	})
	select {
	case res := <-ch:
		ok, _ := res.Val.(bool)
		return ok
	case <-ctx.Done():
		return false
	}
}

func (s *Store) refresh() bool {
	s.mu.RLock()
	refreshToken := s.state.refreshToken
	hadSession := s.state.accessToken != ""
	gen := s.generation
	s.mu.RUnlock()

	if refreshToken == "" {
		s.logger.Debug().Msg("refresh skipped: no refresh token")
		return s.fail(gen, "no refresh token", hadSession)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.refreshTimeout)
	defer cancel()

	resp, err := s.api.Refresh(ctx, refreshToken)
	if err != nil {
		var statusErr *authapi.StatusError
		switch {
		case errors.Is(err, autherrors.ErrUnauthorized):
			s.logger.Info().Err(err).Msg("refresh token rejected")
			return s.fail(gen, "refresh token rejected", true)
		case errors.As(err, &statusErr):
			s.logger.Warn().Err(err).Dur("retry_in", s.refreshRetryDelay).Msg("refresh unavailable, keeping session")
			s.mu.Lock()
			if gen == s.generation {
				s.armTimerLocked(s.refreshRetryDelay)
			}
			s.mu.Unlock()
			return false
		default:
			s.logger.Info().Err(err).Msg("refresh failed")
			return s.fail(gen, "refresh failed", true)
		}
	}

	applied, err := s.replace(context.Background(), resp, &gen)
	if !applied {
		if err != nil {
			s.logger.Warn().Err(err).Msg("refresh returned unusable session")
			return s.fail(gen, "refresh failed", true)
		}
		s.logger.Debug().Msg("session changed during refresh, result discarded")
		return s.IsAuthenticated()
	}

	s.logger.Debug().Msg("access token refreshed")
	s.publish(events.TypeSessionRefreshed, resp.User.UID)
	return true
}

// fail clears the session a refresh was started for and, when there was one,
// publishes auth.required. If the session changed in the meantime nothing is
// cleared and the result reflects the current session.
func (s *Store) fail(gen uint64, reason string, signal bool) bool {
	applied, _ := s.clear(context.Background(), &gen, reason)
	if !applied {
		s.logger.Debug().Msg("session changed during refresh, failure discarded")
		return s.IsAuthenticated()
	}
	if signal {
		s.publish(events.TypeAuthRequired, reason)
	}
	return false
}
