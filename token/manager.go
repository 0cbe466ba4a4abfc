package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/pkg/errors"
)

// AccessClaims is the verified content of an access token.
type AccessClaims struct {
	Subject   string
	Email     string
	ID        string // jti, used for revocation
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Manager issues and validates the HMAC signed access tokens handed out by
// the reference auth API.
type Manager struct {
	signer            Signer
	issuer            string
	revokedCache      RevokedTokenCache
	accessTokenExpiry time.Duration
	nowFunc           func() time.Time
}

type ManagerOption func(*Manager)

// WithAccessTokenExpiry sets the lifetime of issued access tokens.
func WithAccessTokenExpiry(expiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTokenExpiry = expiry
	}
}

// WithNowFunc sets the clock used for iat, exp and validation.
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// WithIssuer sets the iss claim of issued tokens.
func WithIssuer(issuer string) ManagerOption {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

// WithRevokedTokenCache replaces the in-memory revocation cache.
func WithRevokedTokenCache(cache RevokedTokenCache) ManagerOption {
	return func(m *Manager) {
		m.revokedCache = cache
	}
}

func NewManager(signer Signer, options ...ManagerOption) *Manager {
	m := &Manager{
		signer: signer,
	}

	for _, opt := range options {
		opt(m)
	}

	if m.accessTokenExpiry == 0 {
		m.accessTokenExpiry = time.Hour
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	if m.revokedCache == nil {
		m.revokedCache = NewInMemoryRevokedTokenCache(m.nowFunc)
	}
	return m
}

// AccessTokenExpiry is the lifetime of tokens created by CreateAccessToken.
func (m *Manager) AccessTokenExpiry() time.Duration {
	return m.accessTokenExpiry
}

func (m *Manager) CreateAccessToken(profile *users.Profile) (string, error) {
	if profile == nil || profile.UID == "" {
		return "", errors.Wrap(autherrors.ErrInvalidRequest, "[Manager.CreateAccessToken] profile has no uid")
	}
	now := m.nowFunc()
	claims := jwt.MapClaims{
		"sub":   profile.UID,
		"email": profile.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(m.accessTokenExpiry).Unix(),
		"jti":   uuid.New().String(),
	}
	if m.issuer != "" {
		claims["iss"] = m.issuer
	}

	signed, err := m.signer.Sign(claims)
	if err != nil {
		return "", errors.Wrap(err, "[Manager.CreateAccessToken] Sign")
	}
	return signed, nil
}

// Validate verifies signature and expiry and rejects revoked tokens.
func (m *Manager) Validate(rawToken string) (*AccessClaims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, autherrors.ErrInvalidToken
	}

	token, err := jwt.Parse(rawToken, m.signer.GetVerificationKey,
		jwt.WithValidMethods([]string{m.signer.GetSigningMethod().Alg()}),
		jwt.WithTimeFunc(m.nowFunc),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.Wrap(autherrors.ErrTokenExpired, "[Manager.Validate]")
		}
		return nil, errors.Wrapf(autherrors.ErrInvalidToken, "[Manager.Validate] %v", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.Wrap(autherrors.ErrInvalidToken, "[Manager.Validate] error extracting claims")
	}

	ac := &AccessClaims{}
	ac.Subject, _ = claims.GetSubject()
	ac.Email, _ = claims["email"].(string)
	ac.ID, _ = claims["jti"].(string)
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		ac.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		ac.ExpiresAt = exp.Time
	}

	if ac.Subject == "" {
		return nil, errors.Wrap(autherrors.ErrInvalidToken, "[Manager.Validate] token missing sub claim")
	}
	if ac.ID != "" && m.revokedCache.IsRevoked(ac.ID) {
		return nil, errors.Wrap(autherrors.ErrTokenRevoked, "[Manager.Validate]")
	}
	return ac, nil
}

// RevokeAccessToken revokes a valid access token by its jti until it would
// have expired anyway.
func (m *Manager) RevokeAccessToken(rawToken string) error {
	claims, err := m.Validate(rawToken)
	if err != nil {
		return errors.Wrap(err, "[Manager.RevokeAccessToken]")
	}
	if claims.ID == "" {
		return errors.Wrap(autherrors.ErrInvalidToken, "[Manager.RevokeAccessToken] token missing jti claim")
	}
	return m.revokedCache.Add(claims.ID, claims.ExpiresAt)
}

// CleanupRevokedTokens forgets revocations for tokens that have expired and
// returns how many were dropped.
func (m *Manager) CleanupRevokedTokens() int {
	return m.revokedCache.Cleanup()
}
