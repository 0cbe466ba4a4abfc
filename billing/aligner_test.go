package billing_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-session/billing"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

const subscriberJSON = `{
  "request_date": "2025-05-01T00:00:00Z",
  "subscriber": {
    "original_app_user_id": "dj_20250101_abcd1234",
    "first_seen": "2025-01-01T00:00:00Z",
    "entitlements": {
      "premium": {"product_identifier": "premium_monthly", "purchase_date": "2025-04-15T00:00:00Z", "expires_date": "2025-05-15T00:00:00Z"},
      "legacy": {"product_identifier": "old", "expires_date": "2024-01-01T00:00:00Z"}
    }
  }
}`

func TestAlign(t *testing.T) {
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(subscriberJSON))
	}))
	defer server.Close()

	a := billing.NewAligner(server.URL+"/", "sk_test", billing.WithNowTime(func() time.Time { return now }))
	sub, err := a.Align(context.Background(), "dj_20250101_abcd1234")
	require.NoError(t, err)
	require.Equal(t, "/v1/subscribers/dj_20250101_abcd1234", gotPath)
	require.Equal(t, "Bearer sk_test", gotAuth)
	require.Equal(t, "dj_20250101_abcd1234", sub.OriginalAppUserID)
	require.True(t, sub.PremiumActive(now))
	require.False(t, sub.PremiumActive(now.AddDate(0, 1, 0)))
	require.False(t, sub.Entitlements["legacy"].ActiveAt(now))
}

func TestEntitlementWithoutExpiryIsActive(t *testing.T) {
	require.True(t, billing.Entitlement{ProductIdentifier: "lifetime"}.ActiveAt(now))
	var nilSub *billing.Subscriber
	require.False(t, nilSub.PremiumActive(now))
}

func TestAlignErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	a := billing.NewAligner(server.URL, "sk_test")
	_, err := a.Align(context.Background(), "dj_1")
	require.ErrorIs(t, err, autherrors.ErrNotFound)

	_, err = a.Align(context.Background(), "")
	require.Error(t, err)
}

func TestAfterAuth(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(subscriberJSON))
	}))
	defer server.Close()

	disabled := billing.NewAligner(server.URL, "")
	require.NoError(t, disabled.AfterAuth(context.Background(), &users.Profile{UID: "dj_1"}))
	require.Equal(t, 0, calls)

	var hook sessions.PostAuthHook = billing.NewAligner(server.URL, "sk_test").AfterAuth
	require.NoError(t, hook(context.Background(), &users.Profile{UID: "dj_1"}))
	require.NoError(t, hook(context.Background(), nil))
	require.Equal(t, 1, calls)
}
