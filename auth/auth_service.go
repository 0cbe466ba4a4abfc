// Package auth implements the passwordless email flow behind the
// /user/auth endpoints: one-time codes for register and login, access and
// refresh token issue, rotation and revocation.
package auth

import (
	"context"
	"time"

	"github.com/jrsteele09/go-auth-session/authmodel"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/jrsteele09/go-auth-session/token/refresh"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	defaultOTPExpiry        = 10 * time.Minute
	defaultOTPRatePerMinute = 5
)

// Repos holds all repository dependencies for the AuthService
type Repos struct {
	Users users.Repo // Profiles, unique by email
	OTPs  OTPRepo    // Codes awaiting verification
}

// AuthService provides the register, login, refresh, me and logout operations.
type AuthService struct {
	repos         Repos
	tokens        *token.Manager   // Access token issue and validation
	refreshTokens *refresh.Manager // Opaque refresh tokens, rotated on use
	notifier      Notifier
	validator     *Validator
	limiter       *otpRateLimiter
	otpExpiry     time.Duration
	ratePerMinute int
	logger        zerolog.Logger
	nowTime       func() time.Time // nowTime function (injectable for testing)
}

// AuthServiceOption defines a function type to modify the AuthService instance.
type AuthServiceOption func(*AuthService)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) AuthServiceOption {
	return func(as *AuthService) {
		as.nowTime = nowFunc
	}
}

// WithNotifier sets how codes are delivered. The default logs them.
func WithNotifier(n Notifier) AuthServiceOption {
	return func(as *AuthService) {
		as.notifier = n
	}
}

// WithOTPExpiry sets how long an issued code stays valid.
func WithOTPExpiry(d time.Duration) AuthServiceOption {
	return func(as *AuthService) {
		as.otpExpiry = d
	}
}

// WithOTPRatePerMinute limits how many codes one email can request per minute.
func WithOTPRatePerMinute(n int) AuthServiceOption {
	return func(as *AuthService) {
		as.ratePerMinute = n
	}
}

// WithLogger sets the logger used for OTP and token activity.
func WithLogger(logger zerolog.Logger) AuthServiceOption {
	return func(as *AuthService) {
		as.logger = logger
	}
}

// NewAuthService initializes a new AuthService with required dependencies.
func NewAuthService(
	repos Repos,
	tokens *token.Manager,
	refreshTokens *refresh.Manager,
	options ...AuthServiceOption,
) (*AuthService, error) {
	if repos.Users == nil {
		return nil, errors.New("[NewAuthService] Users repo is required")
	}
	if repos.OTPs == nil {
		return nil, errors.New("[NewAuthService] OTPs repo is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewAuthService] token manager is required")
	}
	if refreshTokens == nil {
		return nil, errors.New("[NewAuthService] refresh token manager is required")
	}

	as := &AuthService{
		repos:         repos,
		tokens:        tokens,
		refreshTokens: refreshTokens,
		validator:     NewValidator(),
		otpExpiry:     defaultOTPExpiry,
		ratePerMinute: defaultOTPRatePerMinute,
		logger:        zerolog.Nop(),
		nowTime:       time.Now,
	}
	for _, opt := range options {
		opt(as)
	}
	if as.notifier == nil {
		as.notifier = NewLogNotifier(as.logger)
	}
	as.limiter = newOTPRateLimiter(as.ratePerMinute, as.nowTime)
	return as, nil
}

// RequestOTP starts a register or login flow. Registering an existing email
// fails with ErrUserExists and logging in with an unknown one with
// ErrUserNotFound.
func (as *AuthService) RequestOTP(ctx context.Context, action, email string) (*authmodel.MessageResponse, error) {
	if err := as.validator.ValidateAction(action); err != nil {
		return nil, errors.Wrap(err, "[AuthService.RequestOTP]")
	}
	email, err := as.validator.NormaliseEmail(email)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthService.RequestOTP]")
	}

	exists := as.userExists(email)
	switch {
	case action == authmodel.ActionRegister && exists:
		return nil, errors.Wrap(autherrors.ErrUserExists, "[AuthService.RequestOTP] please use login instead")
	case action == authmodel.ActionLogin && !exists:
		return nil, errors.Wrap(autherrors.ErrUserNotFound, "[AuthService.RequestOTP] please register first")
	}
	return as.issueOTP(ctx, action, email)
}

// ResendOTP issues a fresh code for the pending flow. Without a pending flow
// the action is inferred from whether the account exists.
func (as *AuthService) ResendOTP(ctx context.Context, email string) (*authmodel.MessageResponse, error) {
	email, err := as.validator.NormaliseEmail(email)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthService.ResendOTP]")
	}

	action := authmodel.ActionRegister
	if pending, err := as.repos.OTPs.Get(email); err == nil {
		action = pending.Action
	} else if as.userExists(email) {
		action = authmodel.ActionLogin
	}
	return as.issueOTP(ctx, action, email)
}

func (as *AuthService) issueOTP(ctx context.Context, action, email string) (*authmodel.MessageResponse, error) {
	if !as.limiter.Allow(email) {
		return nil, errors.Wrapf(autherrors.ErrRateLimited, "[AuthService.issueOTP] too many codes requested for %s", email)
	}

	code, err := generateOTP()
	if err != nil {
		return nil, errors.Wrap(err, "[AuthService.issueOTP]")
	}
	hash, err := hashOTP(code)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthService.issueOTP]")
	}
	if err := as.repos.OTPs.Upsert(&PendingOTP{
		Email:     email,
		Action:    action,
		CodeHash:  hash,
		ExpiresAt: as.nowTime().Add(as.otpExpiry),
	}); err != nil {
		return nil, errors.Wrap(err, "[AuthService.issueOTP] OTPs.Upsert")
	}
	if err := as.notifier.SendOTP(ctx, email, action, code); err != nil {
		return nil, errors.Wrap(err, "[AuthService.issueOTP] SendOTP")
	}

	message := "Login OTP sent successfully"
	if action == authmodel.ActionRegister {
		message = "Registration OTP sent successfully"
	}
	return &authmodel.MessageResponse{Message: message, Email: email, Action: action}, nil
}

// VerifyOTP completes the pending flow for email. A register flow creates
// the profile and marks it as new.
func (as *AuthService) VerifyOTP(ctx context.Context, email, code string) (*authmodel.AuthResponse, error) {
	email, err := as.validator.NormaliseEmail(email)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthService.VerifyOTP]")
	}
	if err := as.validator.ValidateOTP(code); err != nil {
		return nil, errors.Wrap(err, "[AuthService.VerifyOTP]")
	}

	pending, err := as.repos.OTPs.Get(email)
	if err != nil {
		return nil, errors.Wrap(autherrors.ErrInvalidOTP, "[AuthService.VerifyOTP] no code pending")
	}
	if as.nowTime().After(pending.ExpiresAt) {
		_ = as.repos.OTPs.Delete(email)
		return nil, errors.Wrap(autherrors.ErrOTPExpired, "[AuthService.VerifyOTP]")
	}
	if !checkOTP(code, pending.CodeHash) {
		pending.Attempts++
		if pending.Attempts >= maxOTPAttempts {
			_ = as.repos.OTPs.Delete(email)
		} else {
			_ = as.repos.OTPs.Upsert(pending)
		}
		return nil, errors.Wrap(autherrors.ErrInvalidOTP, "[AuthService.VerifyOTP]")
	}
	if err := as.repos.OTPs.Delete(email); err != nil {
		return nil, errors.Wrap(err, "[AuthService.VerifyOTP] OTPs.Delete")
	}

	var profile *users.Profile
	if pending.Action == authmodel.ActionRegister {
		profile, err = as.createUser(email)
	} else {
		profile, err = as.repos.Users.GetByEmail(email)
		if err != nil {
			err = errors.Wrapf(autherrors.ErrUserNotFound, "[AuthService.VerifyOTP] %v", err)
		}
	}
	if err != nil {
		return nil, err
	}

	as.logger.Info().Str("uid", profile.UID).Str("action", pending.Action).Msg("user authenticated")
	return as.issueSession(profile)
}

func (as *AuthService) createUser(email string) (*users.Profile, error) {
	if existing, err := as.repos.Users.GetByEmail(email); err == nil {
		// Registered by a concurrent flow; treat as login.
		return existing, nil
	}
	now := as.nowTime().UTC()
	profile := &users.Profile{
		UID:       users.NewUID(now),
		Email:     email,
		Provider:  users.ProviderEmail,
		CreatedAt: now.Format(time.RFC3339),
	}
	if err := as.repos.Users.Upsert(profile); err != nil {
		return nil, errors.Wrap(err, "[AuthService.createUser] Users.Upsert")
	}
	// Only the registration response is flagged as new.
	profile.IsNewUser = true
	return profile, nil
}

// Refresh rotates refreshToken and issues a new access token. Unknown or
// expired refresh tokens fail with ErrInvalidRefreshToken or
// ErrRefreshTokenExpired.
func (as *AuthService) Refresh(_ context.Context, refreshToken string) (*authmodel.AuthResponse, error) {
	stored, newRefresh, err := as.refreshTokens.Rotate(refreshToken)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthService.Refresh]")
	}
	profile, err := as.repos.Users.GetByUID(stored.UserID)
	if err != nil {
		_ = as.refreshTokens.Delete(newRefresh)
		return nil, errors.Wrapf(autherrors.ErrInvalidRefreshToken, "[AuthService.Refresh] owner gone: %v", err)
	}
	accessToken, err := as.tokens.CreateAccessToken(profile)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthService.Refresh]")
	}
	return &authmodel.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		User:         profile,
		ExpiresIn:    int(as.tokens.AccessTokenExpiry().Seconds()),
	}, nil
}

// Me returns the profile behind a valid, unrevoked access token.
func (as *AuthService) Me(_ context.Context, accessToken string) (*users.Profile, error) {
	claims, err := as.tokens.Validate(accessToken)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthService.Me]")
	}
	profile, err := as.repos.Users.GetByUID(claims.Subject)
	if err != nil {
		return nil, errors.Wrapf(autherrors.ErrInvalidToken, "[AuthService.Me] unknown subject: %v", err)
	}
	return profile, nil
}

// Logout revokes the access token and the owner's refresh token.
func (as *AuthService) Logout(_ context.Context, accessToken string) error {
	claims, err := as.tokens.Validate(accessToken)
	if err != nil {
		return errors.Wrap(err, "[AuthService.Logout]")
	}
	if err := as.tokens.RevokeAccessToken(accessToken); err != nil {
		return errors.Wrap(err, "[AuthService.Logout]")
	}
	if err := as.refreshTokens.DeleteForUser(claims.Subject); err != nil {
		return errors.Wrap(err, "[AuthService.Logout]")
	}
	as.logger.Info().Str("uid", claims.Subject).Msg("user logged out")
	return nil
}

// Cleanup drops expired codes and revocations. The server calls it
// periodically.
func (as *AuthService) Cleanup() {
	otps := as.repos.OTPs.DeleteExpired(as.nowTime())
	revoked := as.tokens.CleanupRevokedTokens()
	if otps > 0 || revoked > 0 {
		as.logger.Debug().Int("otps", otps).Int("revoked", revoked).Msg("expired entries removed")
	}
}

func (as *AuthService) issueSession(profile *users.Profile) (*authmodel.AuthResponse, error) {
	accessToken, err := as.tokens.CreateAccessToken(profile)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthService.issueSession]")
	}
	refreshToken, err := as.refreshTokens.Create(profile.UID)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthService.issueSession]")
	}
	return &authmodel.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         profile,
		ExpiresIn:    int(as.tokens.AccessTokenExpiry().Seconds()),
	}, nil
}

func (as *AuthService) userExists(email string) bool {
	_, err := as.repos.Users.GetByEmail(email)
	return err == nil
}
