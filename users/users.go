package users

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Provider string

const (
	ProviderEmail     Provider = "email"
	ProviderX         Provider = "x"
	ProviderInstagram Provider = "instagram"
)

// UserState is the coarse state the UI renders avatars and badges from.
type UserState string

const (
	StateDefault UserState = "default"
	StateActive  UserState = "active"
	StatePremium UserState = "premium"
)

// Profile is the user record returned by the auth API and mirrored into
// session persistence. Date fields are kept as the API sends them and are
// only parsed for display.
type Profile struct {
	UID                   string   `json:"uid,omitempty"`                     // Public user identifier, also the billing app user id
	Email                 string   `json:"email,omitempty"`                   // Login email
	DisplayName           string   `json:"display_name,omitempty"`            // Optional display name
	AvatarURL             string   `json:"avatar_url,omitempty"`              // Optional avatar image
	Provider              Provider `json:"provider,omitempty"`                // How the account authenticates
	IsNewUser             bool     `json:"is_new_user,omitempty"`             // Set until the first login after registration
	Premium               bool     `json:"premium,omitempty"`                 // Premium entitlement active
	XAccount              string   `json:"x-account,omitempty"`               // Linked X handle
	InstagramAccount      string   `json:"ig-account,omitempty"`              // Linked Instagram handle
	XConnected            string   `json:"x-connected,omitempty"`             // When X was linked
	InstagramConnected    string   `json:"ig-connected,omitempty"`            // When Instagram was linked
	CreatedAt             string   `json:"created_at,omitempty"`              // Registration timestamp
	SubscriptionStatus    string   `json:"subscription_status,omitempty"`     // active, cancelled, expired
	SubscriptionPlan      string   `json:"subscription_plan,omitempty"`       // Billing product identifier
	SubscriptionExpiresAt string   `json:"subscription_expires_at,omitempty"` // Set once a subscription lapses
}

// Clone returns a copy that can be handed out without exposing the caller to
// later mutations.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// Name returns the display name, falling back to the email local part and
// then to "User".
func (p *Profile) Name() string {
	if p == nil {
		return "User"
	}
	if p.DisplayName != "" {
		return p.DisplayName
	}
	if local, _, _ := strings.Cut(p.Email, "@"); local != "" {
		return local
	}
	return "User"
}

func (p *Profile) State() UserState {
	switch {
	case p == nil:
		return StateDefault
	case p.Premium:
		return StatePremium
	default:
		return StateActive
	}
}

// XConnectedOn formats the X link date, or returns "" when absent or unparseable.
func (p *Profile) XConnectedOn() string {
	if p == nil {
		return ""
	}
	return ConnectedOn(p.XConnected)
}

func (p *Profile) InstagramConnectedOn() string {
	if p == nil {
		return ""
	}
	return ConnectedOn(p.InstagramConnected)
}

func (p *Profile) JoinedOn() string {
	if p == nil {
		return ""
	}
	return JoinedOn(p.CreatedAt)
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07:00",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// ParseDate accepts the timestamp shapes the API has been seen to emit.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ConnectedOn renders "Connected on YYYY.MM.DD".
func ConnectedOn(value string) string {
	t, ok := ParseDate(value)
	if !ok {
		return ""
	}
	return fmt.Sprintf("Connected on %04d.%02d.%02d", t.Year(), int(t.Month()), t.Day())
}

// JoinedOn renders "Joined Mon. D, YYYY".
func JoinedOn(value string) string {
	t, ok := ParseDate(value)
	if !ok {
		return ""
	}
	return fmt.Sprintf("Joined %s. %d, %d", t.Format("Jan"), t.Day(), t.Year())
}

// NewUID generates a public user id of the form dj_<yyyymmdd>_<8 hex>.
func NewUID(now time.Time) string {
	return fmt.Sprintf("dj_%s_%s", now.UTC().Format("20060102"), uuid.NewString()[:8])
}
