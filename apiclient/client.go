// Package apiclient sends authenticated requests to the API. On a 401 it
// refreshes the session once, shared by every request that failed at the same
// time, and retries each of them once.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/jrsteele09/go-auth-session/authapi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// SessionProvider is the part of the session store the client needs.
// *sessions.Store satisfies it.
type SessionProvider interface {
	AccessToken() string
	HasRefreshToken() bool
	RefreshAccessToken(ctx context.Context) bool
}

type Client struct {
	baseURL    string
	session    SessionProvider
	httpClient *http.Client
	headers    http.Header
	logger     zerolog.Logger

	mu         sync.Mutex
	refreshing bool
	waiters    []chan bool
}

type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Add(key, value)
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client. Relative URLs passed to Request are resolved
// against baseURL.
func New(baseURL string, session SessionProvider, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		session:    session,
		httpClient: http.DefaultClient,
		headers:    http.Header{},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestOption adjusts a single outgoing request.
type RequestOption func(r *http.Request)

// WithRequestHeader sets a header on one request.
func WithRequestHeader(key, value string) RequestOption {
	return func(r *http.Request) {
		r.Header.Set(key, value)
	}
}

// Request sends the request with the current access token. If the response
// is 401 and the session can be refreshed, the refresh is performed (or
// awaited, if another request already started one) and the request is sent
// once more with the new token. The retried response is returned as is, even
// if it is another 401. When the refresh fails the original 401
// response is returned; the session store decides whether the session ends
// and signals auth.required if it does.
func (c *Client) Request(ctx context.Context, method, url string, body []byte, opts ...RequestOption) (*http.Response, error) {
	target := c.resolve(url)

	resp, sentToken, err := c.send(ctx, method, target, body, opts)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	if !c.awaitRefresh(ctx, sentToken) {
		return resp, nil
	}

	discard(resp)
	resp, _, err = c.send(ctx, method, target, body, opts)
	return resp, err
}

func (c *Client) Get(ctx context.Context, url string, opts ...RequestOption) (*http.Response, error) {
	return c.Request(ctx, http.MethodGet, url, nil, opts...)
}

// Post sends body encoded as JSON.
func (c *Client) Post(ctx context.Context, url string, body any, opts ...RequestOption) (*http.Response, error) {
	return c.requestJSON(ctx, http.MethodPost, url, body, opts)
}

// Put sends body encoded as JSON.
func (c *Client) Put(ctx context.Context, url string, body any, opts ...RequestOption) (*http.Response, error) {
	return c.requestJSON(ctx, http.MethodPut, url, body, opts)
}

func (c *Client) Delete(ctx context.Context, url string, opts ...RequestOption) (*http.Response, error) {
	return c.Request(ctx, http.MethodDelete, url, nil, opts...)
}

func (c *Client) requestJSON(ctx context.Context, method, url string, body any, opts []RequestOption) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrapf(err, "[apiclient] %s %s marshal body", method, url)
	}
	opts = append([]RequestOption{WithRequestHeader("Content-Type", "application/json")}, opts...)
	return c.Request(ctx, method, url, data, opts...)
}

func (c *Client) resolve(url string) string {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return url
	}
	return c.baseURL + "/" + strings.TrimPrefix(url, "/")
}

// send builds a fresh request so the body can be replayed on retry. It
// returns the access token that was attached.
func (c *Client) send(ctx context.Context, method, url string, body []byte, opts []RequestOption) (*http.Response, string, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, "", errors.Wrapf(err, "[apiclient] creating request %s %s", method, url)
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for _, opt := range opts {
		opt(req)
	}

	accessToken := c.session.AccessToken()
	if accessToken != "" {
		(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}).SetAuthHeader(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, accessToken, errors.Wrapf(err, "[apiclient] %s %s", method, url)
	}
	return resp, accessToken, nil
}

// awaitRefresh reports whether the request that was sent with sentToken
// should be retried. The first caller performs the refresh; callers arriving
// while it runs wait for its outcome.
func (c *Client) awaitRefresh(ctx context.Context, sentToken string) bool {
	c.mu.Lock()
	if c.refreshing {
		ch := make(chan bool, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()
		select {
		case ok := <-ch:
			return ok
		case <-ctx.Done():
			return false
		}
	}
	if !c.session.HasRefreshToken() {
		c.mu.Unlock()
		return false
	}
	// Another request already refreshed after this one was sent.
	if current := c.session.AccessToken(); current != "" && current != sentToken {
		c.mu.Unlock()
		return true
	}
	c.refreshing = true
	c.mu.Unlock()

	c.logger.Debug().Msg("request unauthorized, refreshing session")
	ok := c.session.RefreshAccessToken(context.WithoutCancel(ctx))
	if !ok {
		c.logger.Info().Msg("session could not be refreshed")
	}

	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.refreshing = false
	c.mu.Unlock()

	for _, ch := range waiters {
		ch <- ok
	}
	return ok
}

// DecodeJSON reads a JSON response into v and closes the body. Non-2xx
// responses return an *authapi.StatusError.
func DecodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &authapi.StatusError{StatusCode: resp.StatusCode, Detail: strings.TrimSpace(string(data))}
	}
	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return errors.Wrap(err, "[apiclient.DecodeJSON]")
	}
	return nil
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
