package authapifake

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jrsteele09/go-auth-session/authapi"
	"github.com/jrsteele09/go-auth-session/authmodel"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/users"
)

var _ authapi.Client = (*FakeClient)(nil)

// FakeClient is an authapi.Client whose behavior is set per endpoint. An
// unset endpoint fails with ErrUnexpectedStatus. Every call is counted.
type FakeClient struct {
	RefreshFunc    func(ctx context.Context, refreshToken string) (*authmodel.AuthResponse, error)
	MeFunc         func(ctx context.Context, accessToken string) (*users.Profile, error)
	LogoutFunc     func(ctx context.Context, accessToken string) error
	RequestOTPFunc func(ctx context.Context, action, email string) (*authmodel.MessageResponse, error)
	VerifyOTPFunc  func(ctx context.Context, email, otp string) (*authmodel.AuthResponse, error)

	refreshCalls atomic.Int32
	meCalls      atomic.Int32
	logoutCalls  atomic.Int32

	mu            sync.Mutex
	refreshTokens []string
	meTokens      []string
}

func (f *FakeClient) Refresh(ctx context.Context, refreshToken string) (*authmodel.AuthResponse, error) {
	f.refreshCalls.Add(1)
	f.mu.Lock()
	f.refreshTokens = append(f.refreshTokens, refreshToken)
	f.mu.Unlock()
	if f.RefreshFunc == nil {
		return nil, autherrors.ErrUnexpectedStatus
	}
	return f.RefreshFunc(ctx, refreshToken)
}

func (f *FakeClient) Me(ctx context.Context, accessToken string) (*users.Profile, error) {
	f.meCalls.Add(1)
	f.mu.Lock()
	f.meTokens = append(f.meTokens, accessToken)
	f.mu.Unlock()
	if f.MeFunc == nil {
		return nil, autherrors.ErrUnexpectedStatus
	}
	return f.MeFunc(ctx, accessToken)
}

func (f *FakeClient) Logout(ctx context.Context, accessToken string) error {
	f.logoutCalls.Add(1)
	if f.LogoutFunc == nil {
		return nil
	}
	return f.LogoutFunc(ctx, accessToken)
}

func (f *FakeClient) Register(ctx context.Context, email string) (*authmodel.MessageResponse, error) {
	return f.requestOTP(ctx, authmodel.ActionRegister, email)
}

func (f *FakeClient) Login(ctx context.Context, email string) (*authmodel.MessageResponse, error) {
	return f.requestOTP(ctx, authmodel.ActionLogin, email)
}

func (f *FakeClient) ResendOTP(ctx context.Context, email string) (*authmodel.MessageResponse, error) {
	return f.requestOTP(ctx, "", email)
}

func (f *FakeClient) requestOTP(ctx context.Context, action, email string) (*authmodel.MessageResponse, error) {
	if f.RequestOTPFunc == nil {
		return &authmodel.MessageResponse{Message: "OTP sent", Email: email, Action: action}, nil
	}
	return f.RequestOTPFunc(ctx, action, email)
}

func (f *FakeClient) VerifyOTP(ctx context.Context, email, otp string) (*authmodel.AuthResponse, error) {
	if f.VerifyOTPFunc == nil {
		return nil, autherrors.ErrUnexpectedStatus
	}
	return f.VerifyOTPFunc(ctx, email, otp)
}

func (f *FakeClient) RefreshCalls() int { return int(f.refreshCalls.Load()) }
func (f *FakeClient) MeCalls() int      { return int(f.meCalls.Load()) }
func (f *FakeClient) LogoutCalls() int  { return int(f.logoutCalls.Load()) }

// RefreshTokens returns the refresh tokens sent, in call order.
func (f *FakeClient) RefreshTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.refreshTokens...)
}

// MeTokens returns the access tokens sent to Me, in call order.
func (f *FakeClient) MeTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.meTokens...)
}
