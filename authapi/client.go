// Package authapi is a typed client for the /user/auth endpoints of the API.
package authapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-session/authmodel"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// Client talks to the auth endpoints. It holds no session state; callers pass
// the tokens they want to use.
type Client interface {
	// Refresh exchanges a refresh token for a new token pair and profile.
	Refresh(ctx context.Context, refreshToken string) (*authmodel.AuthResponse, error)
	// Me returns the profile of the access token's owner.
	Me(ctx context.Context, accessToken string) (*users.Profile, error)
	// Logout invalidates the access token server side.
	Logout(ctx context.Context, accessToken string) error
	// Register mails a one-time code to a new email address.
	Register(ctx context.Context, email string) (*authmodel.MessageResponse, error)
	// Login mails a one-time code to an existing user.
	Login(ctx context.Context, email string) (*authmodel.MessageResponse, error)
	// ResendOTP mails a fresh code for whichever flow is pending.
	ResendOTP(ctx context.Context, email string) (*authmodel.MessageResponse, error)
	// VerifyOTP completes register or login and returns the new session.
	VerifyOTP(ctx context.Context, email, otp string) (*authmodel.AuthResponse, error)
}

// StatusError is returned for any non-2xx response. It unwraps to the
// sentinel matching the status code so callers can use errors.Is.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("status %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("status %d", e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return autherrors.ErrUnauthorized
	case http.StatusNotFound:
		return autherrors.ErrNotFound
	case http.StatusConflict:
		return autherrors.ErrUserExists
	case http.StatusTooManyRequests:
		return autherrors.ErrRateLimited
	case http.StatusBadRequest:
		return autherrors.ErrInvalidRequest
	default:
		return autherrors.ErrUnexpectedStatus
	}
}

type client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

type Option func(*client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithTimeout bounds every request. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *client) {
		c.timeout = d
	}
}

// NewClient returns a Client for the API rooted at baseURL, for example
// "https://api.example.com/api".
func NewClient(baseURL string, allowInsecure bool, opts ...Option) Client {
	c := &client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: allowInsecure,
				},
			},
		},
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *client) Refresh(ctx context.Context, refreshToken string) (*authmodel.AuthResponse, error) {
	resp := &authmodel.AuthResponse{}
	err := c.execute(ctx, outboundRequest{
		method:  http.MethodPost,
		path:    authmodel.RouteRefresh,
		reqBody: authmodel.RefreshRequest{RefreshToken: refreshToken},
		respObj: resp,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[authapi.Refresh]")
	}
	if !resp.Valid() {
		return nil, errors.Wrap(autherrors.ErrMalformedResponse, "[authapi.Refresh] incomplete auth response")
	}
	return resp, nil
}

func (c *client) Me(ctx context.Context, accessToken string) (*users.Profile, error) {
	profile := &users.Profile{}
	err := c.execute(ctx, outboundRequest{
		method:      http.MethodGet,
		path:        authmodel.RouteMe,
		accessToken: accessToken,
		respObj:     profile,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[authapi.Me]")
	}
	return profile, nil
}

func (c *client) Logout(ctx context.Context, accessToken string) error {
	err := c.execute(ctx, outboundRequest{
		method:      http.MethodPost,
		path:        authmodel.RouteLogout,
		accessToken: accessToken,
	})
	return errors.Wrap(err, "[authapi.Logout]")
}

func (c *client) Register(ctx context.Context, email string) (*authmodel.MessageResponse, error) {
	return c.requestOTP(ctx, authmodel.RouteRegister, email)
}

func (c *client) Login(ctx context.Context, email string) (*authmodel.MessageResponse, error) {
	return c.requestOTP(ctx, authmodel.RouteLogin, email)
}

func (c *client) ResendOTP(ctx context.Context, email string) (*authmodel.MessageResponse, error) {
	return c.requestOTP(ctx, authmodel.RouteResendOTP, email)
}

func (c *client) requestOTP(ctx context.Context, path, email string) (*authmodel.MessageResponse, error) {
	resp := &authmodel.MessageResponse{}
	err := c.execute(ctx, outboundRequest{
		method:  http.MethodPost,
		path:    path,
		reqBody: authmodel.OTPRequest{Email: email},
		respObj: resp,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "[authapi] POST %s", path)
	}
	return resp, nil
}

func (c *client) VerifyOTP(ctx context.Context, email, otp string) (*authmodel.AuthResponse, error) {
	resp := &authmodel.AuthResponse{}
	err := c.execute(ctx, outboundRequest{
		method:  http.MethodPost,
		path:    authmodel.RouteVerifyOTP,
		reqBody: authmodel.VerifyOTPRequest{Email: email, OTP: otp},
		respObj: resp,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[authapi.VerifyOTP]")
	}
	if !resp.Valid() {
		return nil, errors.Wrap(autherrors.ErrMalformedResponse, "[authapi.VerifyOTP] incomplete auth response")
	}
	return resp, nil
}

type outboundRequest struct {
	method      string
	path        string
	accessToken string
	reqBody     any
	respObj     any
}

func (c *client) execute(ctx context.Context, r outboundRequest) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var body io.Reader
	if r.reqBody != nil {
		data, err := json.Marshal(r.reqBody)
		if err != nil {
			return errors.Wrap(err, "error marshaling request body")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return errors.Wrapf(err, "error creating request %s %s", r.method, r.path)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.accessToken != "" {
		(&oauth2.Token{AccessToken: r.accessToken, TokenType: "Bearer"}).SetAuthHeader(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "error invoking %s %s", r.method, r.path)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "error reading response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Detail: detail(respBody)}
	}

	if r.respObj == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, r.respObj); err != nil {
		return errors.Wrapf(autherrors.ErrMalformedResponse, "error unmarshaling response body: %v", err)
	}
	return nil
}

// detail extracts the API's {"detail": "..."} message, falling back to the
// raw body.
func detail(body []byte) string {
	er := authmodel.ErrorResponse{}
	if err := json.Unmarshal(body, &er); err == nil && er.Detail != "" {
		return er.Detail
	}
	return strings.TrimSpace(string(body))
}
