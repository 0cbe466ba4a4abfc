package sessions

import (
	"context"
	"encoding/json"

	"github.com/jrsteele09/go-auth-session/authmodel"
	"github.com/jrsteele09/go-auth-session/events"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/pkg/errors"
)

// FetchCurrentUser loads the profile of the current user and caches it. On a
// 401 it refreshes once and, if that succeeds, retries exactly once. Other
// failures leave the cached profile untouched.
func (s *Store) FetchCurrentUser(ctx context.Context) (*users.Profile, error) {
	accessToken := s.AccessToken()
	if accessToken == "" {
		return nil, autherrors.ErrNotAuthenticated
	}

	profile, err := s.fetchProfile(ctx, accessToken)
	if err == nil || !errors.Is(err, autherrors.ErrUnauthorized) {
		return profile, err
	}

	s.logger.Debug().Msg("profile fetch unauthorized, refreshing")
	if !s.RefreshAccessToken(ctx) {
		return nil, errors.Wrap(autherrors.ErrNotAuthenticated, "[Store.FetchCurrentUser] refresh failed")
	}
	return s.fetchProfile(ctx, s.AccessToken())
}

func (s *Store) fetchProfile(ctx context.Context, accessToken string) (*users.Profile, error) {
	profile, err := s.api.Me(ctx, accessToken)
	if err != nil {
		return nil, errors.Wrap(err, "[Store.FetchCurrentUser]")
	}
	// Only cache the profile if accessToken still identifies the session.
	if err := s.updateUser(ctx, func(*users.Profile) (*users.Profile, bool) {
		return profile.Clone(), true
	}, accessToken); err != nil {
		return nil, err
	}
	return profile, nil
}

// UpdateProfile applies mutate to the cached profile and persists the
// result. It fails with ErrNotAuthenticated when there is no user.
func (s *Store) UpdateProfile(ctx context.Context, mutate func(p *users.Profile)) error {
	return s.updateUser(ctx, func(current *users.Profile) (*users.Profile, bool) {
		if current == nil {
			return nil, false
		}
		next := current.Clone()
		mutate(next)
		return next, true
	}, "")
}

// updateUser swaps the cached profile under the write lock. When
// accessToken is set the swap only happens while that token is current.
func (s *Store) updateUser(ctx context.Context, next func(current *users.Profile) (*users.Profile, bool), accessToken string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if accessToken != "" && s.state.accessToken != accessToken {
		s.mu.Unlock()
		return errors.Wrap(autherrors.ErrSessionSuperseded, "[Store.updateUser]")
	}
	user, ok := next(s.state.user)
	if !ok {
		s.mu.Unlock()
		return errors.Wrap(autherrors.ErrNotAuthenticated, "[Store.updateUser]")
	}
	s.state.user = user
	s.mu.Unlock()

	userJSON, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "[Store.updateUser] marshal user")
	}
	if err := s.persist.Set(ctx, map[string]string{KeyUser: string(userJSON)}); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist user profile")
		return errors.Wrap(err, "[Store.updateUser] persist")
	}
	s.publish(events.TypeProfileUpdated, user.UID)
	return nil
}

// Login installs the session returned by a successful login. A returning
// user's is_new_user flag is cleared. Post-auth hooks run afterwards and
// their failures are only logged.
func (s *Store) Login(ctx context.Context, auth *authmodel.AuthResponse) error {
	if err := s.SetSession(ctx, auth); err != nil {
		return errors.Wrap(err, "[Store.Login]")
	}
	if auth.User.IsNewUser {
		err := s.updateUser(ctx, func(current *users.Profile) (*users.Profile, bool) {
			if current == nil {
				return nil, false
			}
			next := current.Clone()
			next.IsNewUser = false
			return next, true
		}, auth.AccessToken)
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to clear new user flag")
		}
	}
	s.runPostAuthHooks(ctx)
	return nil
}

// Register installs the session returned by a successful registration and
// runs the post-auth hooks.
func (s *Store) Register(ctx context.Context, auth *authmodel.AuthResponse) error {
	if err := s.SetSession(ctx, auth); err != nil {
		return errors.Wrap(err, "[Store.Register]")
	}
	s.runPostAuthHooks(ctx)
	return nil
}

func (s *Store) runPostAuthHooks(ctx context.Context) {
	user := s.User()
	if user == nil {
		return
	}
	for i, hook := range s.hooks {
		if err := hook(ctx, user.Clone()); err != nil {
			s.logger.Warn().Err(err).Int("hook", i).Str("uid", user.UID).Msg("post-auth hook failed")
		}
	}
}

// Logout tells the server the access token is no longer wanted, ignoring any
// failure, and then clears the session unconditionally.
func (s *Store) Logout(ctx context.Context) error {
	if accessToken := s.AccessToken(); accessToken != "" {
		if err := s.api.Logout(ctx, accessToken); err != nil {
			s.logger.Warn().Err(err).Msg("server logout failed")
		}
	}
	return s.ClearSession(ctx)
}
