package config

import "time"

type SessionConfig interface {
	GetStalenessThreshold() time.Duration
	GetRefreshInterval() time.Duration
	GetRefreshMargin() time.Duration
	GetRefreshRetryDelay() time.Duration
}

type Session struct{}

var _ SessionConfig = Session{}

// GetStalenessThreshold is the maximum age of a persisted token before it is
// refreshed instead of trusted on load.
func (Session) GetStalenessThreshold() time.Duration {
	return GetDuration("SESSION_STALENESS_THRESHOLD", 50*time.Minute)
}

// GetRefreshInterval must stay below the access token lifetime issued by the API.
func (Session) GetRefreshInterval() time.Duration {
	return GetDuration("SESSION_REFRESH_INTERVAL", 45*time.Minute)
}

func (Session) GetRefreshMargin() time.Duration {
	return GetDuration("SESSION_REFRESH_MARGIN", time.Minute)
}

// GetRefreshRetryDelay is the wait before retrying a refresh the server
// failed with something other than 401.
func (Session) GetRefreshRetryDelay() time.Duration {
	return GetDuration("SESSION_REFRESH_RETRY_DELAY", time.Minute)
}
