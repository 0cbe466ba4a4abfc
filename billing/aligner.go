// Package billing keeps the billing provider's customer identity in step with
// the authenticated user, so purchases made on any device attach to the same
// account.
package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-session/authapi"
	"github.com/jrsteele09/go-auth-session/internal/utils"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// PremiumEntitlement is the entitlement that marks a premium subscriber.
const PremiumEntitlement = "premium"

type Entitlement struct {
	ProductIdentifier string  `json:"product_identifier"`
	PurchaseDate      string  `json:"purchase_date,omitempty"`
	ExpiresDate       *string `json:"expires_date"` // nil for lifetime purchases
}

// ActiveAt reports whether the entitlement has not expired at now. An
// unparseable expiry is treated as expired.
func (e Entitlement) ActiveAt(now time.Time) bool {
	expires := utils.Value(e.ExpiresDate)
	if expires == "" {
		return true
	}
	exp, ok := users.ParseDate(expires)
	return ok && exp.After(now)
}

type Subscriber struct {
	OriginalAppUserID string                 `json:"original_app_user_id"`
	FirstSeen         string                 `json:"first_seen,omitempty"`
	Entitlements      map[string]Entitlement `json:"entitlements"`
}

// PremiumActive reports whether the premium entitlement is active at now.
func (s *Subscriber) PremiumActive(now time.Time) bool {
	if s == nil {
		return false
	}
	e, ok := s.Entitlements[PremiumEntitlement]
	return ok && e.ActiveAt(now)
}

type subscriberResponse struct {
	Subscriber Subscriber `json:"subscriber"`
}

// Aligner fetches, and thereby creates, the billing customer for a user id.
type Aligner struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     zerolog.Logger
	nowTime    func() time.Time
}

type Option func(*Aligner)

// WithHTTPClient replaces the default client used for billing calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(a *Aligner) {
		a.httpClient = hc
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Aligner) {
		a.logger = logger
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(a *Aligner) {
		a.nowTime = nowFunc
	}
}

// NewAligner returns an Aligner for the provider at baseURL. An empty apiKey
// disables alignment.
func NewAligner(baseURL, apiKey string, opts ...Option) *Aligner {
	a := &Aligner{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     zerolog.Nop(),
		nowTime:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Aligner) Enabled() bool {
	return a.apiKey != ""
}

// Align looks up the subscriber for appUserID. The provider creates the
// subscriber on first lookup.
func (a *Aligner) Align(ctx context.Context, appUserID string) (*Subscriber, error) {
	if appUserID == "" {
		return nil, errors.New("[Aligner.Align] app user id is required")
	}
	endpoint := a.baseURL + "/v1/subscribers/" + url.PathEscape(appUserID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[Aligner.Align] NewRequest")
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "[Aligner.Align] GET %s", endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, errors.Wrap(&authapi.StatusError{StatusCode: resp.StatusCode}, "[Aligner.Align]")
	}

	body := subscriberResponse{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, "[Aligner.Align] decode")
	}
	return &body.Subscriber, nil
}

// AfterAuth is a post-auth hook. It aligns the billing identity with the
// user's uid and logs when the provider's premium state disagrees with the
// profile.
func (a *Aligner) AfterAuth(ctx context.Context, user *users.Profile) error {
	if !a.Enabled() || user == nil || user.UID == "" {
		return nil
	}
	sub, err := a.Align(ctx, user.UID)
	if err != nil {
		return err
	}
	premium := sub.PremiumActive(a.nowTime())
	event := a.logger.Debug()
	if premium != user.Premium {
		event = a.logger.Info()
	}
	event.Str("uid", user.UID).Bool("billing_premium", premium).Bool("profile_premium", user.Premium).Msg("billing identity aligned")
	return nil
}
