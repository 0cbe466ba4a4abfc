package refresh

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/pkg/errors"
)

const defaultTokenLength = 32

// Manager handles refresh token creation, validation, and rotation
type Manager struct {
	repo        Repo
	expiry      time.Duration
	tokenLength int
	nowFunc     func() time.Time
}

type Option func(*Manager)

// WithNowFunc overrides the clock used for issue times and expiry checks.
func WithNowFunc(now func() time.Time) Option {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// WithTokenLength sets the number of random bytes in a token.
func WithTokenLength(n int) Option {
	return func(m *Manager) {
		m.tokenLength = n
	}
}

// NewManager creates a new refresh token manager
func NewManager(repo Repo, expiry time.Duration, options ...Option) *Manager {
	m := &Manager{
		repo:        repo,
		expiry:      expiry,
		tokenLength: defaultTokenLength,
		nowFunc:     time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Create generates a new refresh token for userID, replacing any token the
// user already holds.
func (m *Manager) Create(userID string) (string, error) {
	if err := m.DeleteForUser(userID); err != nil {
		return "", errors.Wrap(err, "[Manager.Create]")
	}

	tokenBytes := make([]byte, m.tokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", errors.Wrap(err, "[Manager.Create] rand.Read")
	}

	tokenStr := hex.EncodeToString(tokenBytes)
	if err := m.repo.Upsert(&StoredRefreshToken{
		Token:  tokenStr,
		UserID: userID,
		Iat:    m.nowFunc(),
	}); err != nil {
		return "", errors.Wrap(err, "[Manager.Create] Upsert")
	}

	return tokenStr, nil
}

// Validate returns the stored token if it exists and has not expired.
// Expired tokens are deleted.
func (m *Manager) Validate(token string) (*StoredRefreshToken, error) {
	if token == "" {
		return nil, autherrors.ErrInvalidRefreshToken
	}
	rt, err := m.repo.Get(token)
	if err != nil {
		return nil, errors.Wrapf(autherrors.ErrInvalidRefreshToken, "[Manager.Validate] %v", err)
	}
	if m.IsExpired(rt) {
		_ = m.repo.Delete(token)
		return nil, errors.Wrap(autherrors.ErrRefreshTokenExpired, "[Manager.Validate]")
	}
	return rt, nil
}

// Rotate exchanges a valid token for a new one. The old token stops working.
func (m *Manager) Rotate(token string) (*StoredRefreshToken, string, error) {
	rt, err := m.Validate(token)
	if err != nil {
		return nil, "", err
	}
	newToken, err := m.Create(rt.UserID)
	if err != nil {
		return nil, "", errors.Wrap(err, "[Manager.Rotate]")
	}
	return rt, newToken, nil
}

// Get retrieves a refresh token from storage
func (m *Manager) Get(token string) (*StoredRefreshToken, error) {
	return m.repo.Get(token)
}

// Delete removes a refresh token from storage
func (m *Manager) Delete(token string) error {
	return m.repo.Delete(token)
}

// DeleteForUser removes the user's refresh token if there is one.
func (m *Manager) DeleteForUser(userID string) error {
	existing, err := m.repo.GetByUserID(userID)
	if err != nil || existing == nil {
		return nil
	}
	if err := m.repo.Delete(existing.Token); err != nil {
		return errors.Wrap(err, "[Manager.DeleteForUser] Delete")
	}
	return nil
}

// IsExpired checks if a refresh token has outlived the configured expiry
func (m *Manager) IsExpired(rt *StoredRefreshToken) bool {
	return m.nowFunc().Sub(rt.Iat) > m.expiry
}
