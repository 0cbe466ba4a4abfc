package token_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func signedWithExpiry(t *testing.T, exp time.Time) string {
	t.Helper()
	raw, err := token.NewHMACSigner("other-secret").Sign(jwt.MapClaims{"sub": "dj_1", "exp": exp.Unix()})
	require.NoError(t, err)
	return raw
}

func TestExpiry(t *testing.T) {
	exp := fixedNow.Add(30 * time.Minute)
	got, ok := token.Expiry(signedWithExpiry(t, exp))
	require.True(t, ok)
	require.True(t, got.Equal(exp))

	_, ok = token.Expiry("")
	require.False(t, ok)
	_, ok = token.Expiry("opaque-token")
	require.False(t, ok)

	noExp, err := token.NewHMACSigner("s").Sign(jwt.MapClaims{"sub": "dj_1"})
	require.NoError(t, err)
	_, ok = token.Expiry(noExp)
	require.False(t, ok)
}

func TestNextRefresh(t *testing.T) {
	interval := 45 * time.Minute
	margin := time.Minute

	require.Equal(t, interval, token.NextRefresh(fixedNow, "opaque", interval, margin))
	require.Equal(t, interval, token.NextRefresh(fixedNow, signedWithExpiry(t, fixedNow.Add(2*time.Hour)), interval, margin))
	require.Equal(t, 9*time.Minute, token.NextRefresh(fixedNow, signedWithExpiry(t, fixedNow.Add(10*time.Minute)), interval, margin))
	require.Equal(t, token.MinRefreshDelay, token.NextRefresh(fixedNow, signedWithExpiry(t, fixedNow.Add(-time.Hour)), interval, margin))
}

func newManager(now *time.Time) *token.Manager {
	return token.NewManager(token.NewHMACSigner("test-secret"),
		token.WithAccessTokenExpiry(time.Hour),
		token.WithIssuer("test"),
		token.WithNowFunc(func() time.Time { return *now }),
	)
}

func TestManagerCreateAndValidate(t *testing.T) {
	now := fixedNow
	m := newManager(&now)

	raw, err := m.CreateAccessToken(&users.Profile{UID: "dj_1", Email: "a@b.c"})
	require.NoError(t, err)

	claims, err := m.Validate(raw)
	require.NoError(t, err)
	require.Equal(t, "dj_1", claims.Subject)
	require.Equal(t, "a@b.c", claims.Email)
	require.NotEmpty(t, claims.ID)
	require.True(t, claims.ExpiresAt.Equal(fixedNow.Add(time.Hour)))

	exp, ok := token.Expiry(raw)
	require.True(t, ok)
	require.True(t, exp.Equal(claims.ExpiresAt))
}

func TestManagerRejectsBadTokens(t *testing.T) {
	now := fixedNow
	m := newManager(&now)

	_, err := m.CreateAccessToken(nil)
	require.ErrorIs(t, err, autherrors.ErrInvalidRequest)

	_, err = m.Validate("")
	require.ErrorIs(t, err, autherrors.ErrInvalidToken)

	_, err = m.Validate(signedWithExpiry(t, fixedNow.Add(time.Hour)))
	require.ErrorIs(t, err, autherrors.ErrInvalidToken)

	raw, err := m.CreateAccessToken(&users.Profile{UID: "dj_1"})
	require.NoError(t, err)
	now = fixedNow.Add(2 * time.Hour)
	_, err = m.Validate(raw)
	require.ErrorIs(t, err, autherrors.ErrTokenExpired)
}

func TestManagerRevoke(t *testing.T) {
	now := fixedNow
	cache := token.NewInMemoryRevokedTokenCache(func() time.Time { return now })
	m := token.NewManager(token.NewHMACSigner("test-secret"),
		token.WithRevokedTokenCache(cache),
		token.WithNowFunc(func() time.Time { return now }),
	)

	raw, err := m.CreateAccessToken(&users.Profile{UID: "dj_1"})
	require.NoError(t, err)
	require.NoError(t, m.RevokeAccessToken(raw))

	_, err = m.Validate(raw)
	require.ErrorIs(t, err, autherrors.ErrTokenRevoked)
	require.Equal(t, 1, cache.Len())

	require.Equal(t, 0, m.CleanupRevokedTokens())
	require.Equal(t, 1, cache.Len())

	now = fixedNow.Add(2 * time.Hour)
	require.Equal(t, 1, m.CleanupRevokedTokens())
	require.Equal(t, 0, cache.Len())
}

func TestRevokedTokenCacheRejectsEmptyJTI(t *testing.T) {
	cache := token.NewInMemoryRevokedTokenCache(nil)
	require.ErrorIs(t, cache.Add("", fixedNow), autherrors.ErrInvalidToken)
	require.Equal(t, 0, cache.Len())
}
