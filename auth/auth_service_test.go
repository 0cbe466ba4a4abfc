package auth_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-session/auth"
	fakeotprepo "github.com/jrsteele09/go-auth-session/auth/repofakes"
	"github.com/jrsteele09/go-auth-session/authmodel"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/jrsteele09/go-auth-session/token/refresh"
	refreshrepofake "github.com/jrsteele09/go-auth-session/token/refresh/repofake"
	"github.com/jrsteele09/go-auth-session/users"
	fakeuserrepo "github.com/jrsteele09/go-auth-session/users/repofake"
	"github.com/stretchr/testify/require"
)

const testEmail = "john.doe@example.com"

// codeRecorder captures issued codes in place of mail delivery.
type codeRecorder struct {
	mu    sync.Mutex
	codes map[string]string
}

func (r *codeRecorder) SendOTP(_ context.Context, email, _, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[email] = code
	return nil
}

func (r *codeRecorder) code(email string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.codes[email]
}

type testFixture struct {
	userRepo users.Repo
	otpRepo  *fakeotprepo.FakeOTPRepo
	tokens   *token.Manager
	codes    *codeRecorder
	now      time.Time
	service  *auth.AuthService
}

func setupTestFixture(t *testing.T, opts ...auth.AuthServiceOption) *testFixture {
	t.Helper()

	f := &testFixture{
		userRepo: fakeuserrepo.NewFakeUserRepo(),
		otpRepo:  fakeotprepo.NewFakeOTPRepo(),
		codes:    &codeRecorder{codes: map[string]string{}},
		now:      time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC),
	}
	nowFunc := func() time.Time { return f.now }
	f.tokens = token.NewManager(token.NewHMACSigner("1234"),
		token.WithIssuer("com.testissuer"),
		token.WithNowFunc(nowFunc),
	)
	refreshTokens := refresh.NewManager(refreshrepofake.NewFakeRefreshTokenRepo(), 7*24*time.Hour, refresh.WithNowFunc(nowFunc))

	options := append([]auth.AuthServiceOption{
		auth.WithNowTime(nowFunc),
		auth.WithNotifier(f.codes),
	}, opts...)
	service, err := auth.NewAuthService(auth.Repos{Users: f.userRepo, OTPs: f.otpRepo}, f.tokens, refreshTokens, options...)
	require.NoError(t, err)
	f.service = service
	return f
}

func (f *testFixture) register(t *testing.T, email string) *authmodel.AuthResponse {
	t.Helper()
	_, err := f.service.RequestOTP(context.Background(), authmodel.ActionRegister, email)
	require.NoError(t, err)
	resp, err := f.service.VerifyOTP(context.Background(), email, f.codes.code(strings.ToLower(email)))
	require.NoError(t, err)
	return resp
}

func wrongCode(code string) string {
	if code == "000000" {
		return "000001"
	}
	return "000000"
}

func TestNewAuthServiceRequiresDependencies(t *testing.T) {
	_, err := auth.NewAuthService(auth.Repos{}, nil, nil)
	require.Error(t, err)
}

func TestRegisterFlow(t *testing.T) {
	f := setupTestFixture(t)

	msg, err := f.service.RequestOTP(context.Background(), authmodel.ActionRegister, "  John.Doe@Example.com ")
	require.NoError(t, err)
	require.Equal(t, testEmail, msg.Email)
	require.Equal(t, authmodel.ActionRegister, msg.Action)
	require.Len(t, f.codes.code(testEmail), 6)

	resp, err := f.service.VerifyOTP(context.Background(), testEmail, f.codes.code(testEmail))
	require.NoError(t, err)
	require.True(t, resp.Valid())
	require.True(t, resp.User.IsNewUser)
	require.True(t, strings.HasPrefix(resp.User.UID, "dj_20250314_"))
	require.Equal(t, 3600, resp.ExpiresIn)
	require.Equal(t, 0, f.otpRepo.Len())

	stored, err := f.userRepo.GetByEmail(testEmail)
	require.NoError(t, err)
	require.False(t, stored.IsNewUser)

	claims, err := f.tokens.Validate(resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, resp.User.UID, claims.Subject)
}

func TestRegisterExistingEmailConflicts(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t, testEmail)

	_, err := f.service.RequestOTP(context.Background(), authmodel.ActionRegister, testEmail)
	require.ErrorIs(t, err, autherrors.ErrUserExists)
}

func TestLoginFlow(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.RequestOTP(context.Background(), authmodel.ActionLogin, testEmail)
	require.ErrorIs(t, err, autherrors.ErrUserNotFound)

	registered := f.register(t, testEmail)

	msg, err := f.service.RequestOTP(context.Background(), authmodel.ActionLogin, testEmail)
	require.NoError(t, err)
	require.Equal(t, "Login OTP sent successfully", msg.Message)

	resp, err := f.service.VerifyOTP(context.Background(), testEmail, f.codes.code(testEmail))
	require.NoError(t, err)
	require.False(t, resp.User.IsNewUser)
	require.Equal(t, registered.User.UID, resp.User.UID)
	require.NotEqual(t, registered.RefreshToken, resp.RefreshToken)
}

func TestInvalidInput(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.RequestOTP(context.Background(), "signup", testEmail)
	require.ErrorIs(t, err, autherrors.ErrInvalidRequest)
	_, err = f.service.RequestOTP(context.Background(), authmodel.ActionLogin, "not-an-email")
	require.ErrorIs(t, err, autherrors.ErrInvalidRequest)
	_, err = f.service.VerifyOTP(context.Background(), testEmail, "12ab56")
	require.ErrorIs(t, err, autherrors.ErrInvalidOTP)
	_, err = f.service.VerifyOTP(context.Background(), testEmail, "123456")
	require.ErrorIs(t, err, autherrors.ErrInvalidOTP)
}

func TestWrongCodeAttemptsAreLimited(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.service.RequestOTP(context.Background(), authmodel.ActionRegister, testEmail)
	require.NoError(t, err)
	bad := wrongCode(f.codes.code(testEmail))

	for i := 0; i < 5; i++ {
		_, err = f.service.VerifyOTP(context.Background(), testEmail, bad)
		require.ErrorIs(t, err, autherrors.ErrInvalidOTP)
	}
	require.Equal(t, 0, f.otpRepo.Len())

	_, err = f.service.VerifyOTP(context.Background(), testEmail, f.codes.code(testEmail))
	require.ErrorIs(t, err, autherrors.ErrInvalidOTP)
}

func TestExpiredCode(t *testing.T) {
	f := setupTestFixture(t, auth.WithOTPExpiry(time.Minute))
	_, err := f.service.RequestOTP(context.Background(), authmodel.ActionRegister, testEmail)
	require.NoError(t, err)

	f.now = f.now.Add(2 * time.Minute)
	_, err = f.service.VerifyOTP(context.Background(), testEmail, f.codes.code(testEmail))
	require.ErrorIs(t, err, autherrors.ErrOTPExpired)
}

func TestResendKeepsPendingAction(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.service.RequestOTP(context.Background(), authmodel.ActionRegister, testEmail)
	require.NoError(t, err)
	first := f.codes.code(testEmail)

	msg, err := f.service.ResendOTP(context.Background(), testEmail)
	require.NoError(t, err)
	require.Equal(t, authmodel.ActionRegister, msg.Action)

	second := f.codes.code(testEmail)
	if first != second {
		_, err = f.service.VerifyOTP(context.Background(), testEmail, first)
		require.ErrorIs(t, err, autherrors.ErrInvalidOTP)
	}
	resp, err := f.service.VerifyOTP(context.Background(), testEmail, second)
	require.NoError(t, err)
	require.True(t, resp.User.IsNewUser)

	msg, err = f.service.ResendOTP(context.Background(), testEmail)
	require.NoError(t, err)
	require.Equal(t, authmodel.ActionLogin, msg.Action)
}

func TestOTPRateLimit(t *testing.T) {
	f := setupTestFixture(t, auth.WithOTPRatePerMinute(2))

	for i := 0; i < 2; i++ {
		_, err := f.service.ResendOTP(context.Background(), testEmail)
		require.NoError(t, err)
	}
	_, err := f.service.ResendOTP(context.Background(), testEmail)
	require.ErrorIs(t, err, autherrors.ErrRateLimited)

	_, err = f.service.ResendOTP(context.Background(), "other@example.com")
	require.NoError(t, err)

	f.now = f.now.Add(time.Minute)
	_, err = f.service.ResendOTP(context.Background(), testEmail)
	require.NoError(t, err)
}

func TestRefreshRotates(t *testing.T) {
	f := setupTestFixture(t)
	session := f.register(t, testEmail)

	f.now = f.now.Add(time.Minute)
	refreshed, err := f.service.Refresh(context.Background(), session.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, session.RefreshToken, refreshed.RefreshToken)
	require.NotEqual(t, session.AccessToken, refreshed.AccessToken)
	require.Equal(t, session.User.UID, refreshed.User.UID)

	_, err = f.service.Refresh(context.Background(), session.RefreshToken)
	require.ErrorIs(t, err, autherrors.ErrInvalidRefreshToken)

	f.now = f.now.Add(8 * 24 * time.Hour)
	_, err = f.service.Refresh(context.Background(), refreshed.RefreshToken)
	require.ErrorIs(t, err, autherrors.ErrRefreshTokenExpired)
}

func TestMeAndLogout(t *testing.T) {
	f := setupTestFixture(t)
	session := f.register(t, testEmail)

	profile, err := f.service.Me(context.Background(), session.AccessToken)
	require.NoError(t, err)
	require.Equal(t, testEmail, profile.Email)

	_, err = f.service.Me(context.Background(), "garbage")
	require.ErrorIs(t, err, autherrors.ErrInvalidToken)

	require.NoError(t, f.service.Logout(context.Background(), session.AccessToken))

	_, err = f.service.Me(context.Background(), session.AccessToken)
	require.ErrorIs(t, err, autherrors.ErrTokenRevoked)
	_, err = f.service.Refresh(context.Background(), session.RefreshToken)
	require.ErrorIs(t, err, autherrors.ErrInvalidRefreshToken)
}

func TestMeExpiredToken(t *testing.T) {
	f := setupTestFixture(t)
	session := f.register(t, testEmail)

	f.now = f.now.Add(2 * time.Hour)
	_, err := f.service.Me(context.Background(), session.AccessToken)
	require.ErrorIs(t, err, autherrors.ErrTokenExpired)
}

func TestCleanupRemovesExpiredCodes(t *testing.T) {
	f := setupTestFixture(t, auth.WithOTPExpiry(time.Minute))
	_, err := f.service.RequestOTP(context.Background(), authmodel.ActionRegister, testEmail)
	require.NoError(t, err)

	f.service.Cleanup()
	require.Equal(t, 1, f.otpRepo.Len())

	f.now = f.now.Add(2 * time.Minute)
	f.service.Cleanup()
	require.Equal(t, 0, f.otpRepo.Len())
}

func TestNotifierFunc(t *testing.T) {
	var got string
	n := auth.NotifierFunc(func(_ context.Context, email, action, code string) error {
		got = email + "/" + action + "/" + code
		return nil
	})
	require.NoError(t, n.SendOTP(context.Background(), "a@b.c", authmodel.ActionLogin, "123456"))
	require.Equal(t, "a@b.c/login/123456", got)
}
