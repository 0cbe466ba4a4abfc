package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinRefreshDelay is the shortest delay NextRefresh will return.
const MinRefreshDelay = 5 * time.Second

// Expiry reads the exp claim of a JWT without verifying its signature.
// The client never holds the signing key, so the claim is only used as a
// scheduling hint. ok is false for opaque or malformed tokens.
func Expiry(raw string) (exp time.Time, ok bool) {
	if raw == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	expiry, err := claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return time.Time{}, false
	}
	return expiry.Time, true
}

// NextRefresh returns how long to wait before refreshing proactively.
// It is the configured interval, shortened to the token's expiry minus
// margin when the token expires sooner. The result never drops below
// MinRefreshDelay.
func NextRefresh(now time.Time, raw string, interval, margin time.Duration) time.Duration {
	delay := interval
	if exp, ok := Expiry(raw); ok {
		if untilExpiry := exp.Sub(now) - margin; untilExpiry < delay {
			delay = untilExpiry
		}
	}
	if delay < MinRefreshDelay {
		delay = MinRefreshDelay
	}
	return delay
}
