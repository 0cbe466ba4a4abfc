package authmodel

import "github.com/jrsteele09/go-auth-session/users"

// AuthResponse is returned by verify-otp and refresh.
type AuthResponse struct {
	// AccessToken is the short-lived bearer credential.
	// Usage: Authorization: Bearer <access_token>
	AccessToken string `json:"access_token"`

	// RefreshToken is exchanged at the refresh endpoint for a new pair.
	// The server rotates it on every use.
	RefreshToken string `json:"refresh_token"`

	// User is the profile of the authenticated user.
	User *users.Profile `json:"user"`

	// ExpiresIn is the access token lifetime in seconds. It is a hint; the
	// token's own exp claim wins when present.
	ExpiresIn int `json:"expires_in,omitempty"`
}

// Valid reports whether the response carries everything a session needs.
func (a *AuthResponse) Valid() bool {
	return a != nil && a.AccessToken != "" && a.RefreshToken != "" && a.User != nil
}
