package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gosuri/uitable"
	"github.com/jrsteele09/go-auth-session/internal/utils"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func logout(c *cli.Context) error {
	// Args
	if c.Args().Len() != 0 {
		return errors.New("logout requires no arguments")
	}

	a, err := newApplication(c)
	if err != nil {
		return err
	}
	defer a.Close()

	// A stale or unreachable session is still forgotten locally.
	a.store.LoadFromPersistence(c.Context)
	if err := a.store.Logout(c.Context); err != nil {
		return errors.Wrap(err, "error removing stored session")
	}

	fmt.Println("Logout was successful.")
	return nil
}

func refreshSession(c *cli.Context) error {
	// Args
	if c.Args().Len() != 0 {
		return errors.New("refresh requires no arguments")
	}

	a, err := newApplication(c)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.restore(c.Context); err != nil {
		return err
	}
	if !a.store.RefreshAccessToken(c.Context) {
		if a.store.HasRefreshToken() {
			return errors.New("the server could not refresh the session right now; try again later")
		}
		return errors.New("session could not be refreshed; run 'sessionctl login EMAIL' to sign in again")
	}

	fmt.Println("Session refreshed.")
	return nil
}

type sessionStatus struct {
	SignedIn        bool       `json:"signed_in"`
	Email           string     `json:"email,omitempty"`
	HasRefreshToken bool       `json:"has_refresh_token"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	LastRefreshAt   *time.Time `json:"last_refresh_at,omitempty"`
	DeviceID        string     `json:"device_id,omitempty"`
}

func status(c *cli.Context) error {
	// Command-specific flags
	output := c.String(flagOutput)

	if err := validateOutputFormat(output); err != nil {
		return err
	}

	a, err := newApplication(c)
	if err != nil {
		return err
	}
	defer a.Close()

	a.store.LoadFromPersistence(c.Context)
	snap := a.store.Snapshot()
	st := sessionStatus{
		SignedIn:        snap.IsAuthenticated(),
		HasRefreshToken: a.store.HasRefreshToken(),
		DeviceID:        a.deviceID(c.Context),
	}
	if snap.User != nil {
		st.Email = snap.User.Email
	}
	if !snap.LastRefreshAt.IsZero() {
		st.LastRefreshAt = utils.Ptr(snap.LastRefreshAt)
	}
	if tok, err := a.store.Token(); err == nil && !tok.Expiry.IsZero() {
		st.ExpiresAt = utils.Ptr(tok.Expiry)
	}

	switch strings.ToLower(output) {
	case "table":
		table := uitable.New()
		table.AddRow("SIGNED IN?", "EMAIL", "REFRESH TOKEN?", "EXPIRES", "DEVICE")
		table.AddRow(st.SignedIn, st.Email, st.HasRefreshToken, expiresIn(st.ExpiresAt, time.Now()), st.DeviceID)
		fmt.Println(table)

	case "json":
		prettyJSON, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return errors.Wrap(err, "error formatting output from status operation")
		}
		fmt.Println(string(prettyJSON))
	}
	return nil
}

// expiresIn renders the time left on an access token.
func expiresIn(exp *time.Time, now time.Time) string {
	if exp == nil {
		return ""
	}
	left := exp.Sub(now)
	if left <= 0 {
		return "expired"
	}
	return "in " + left.Round(time.Second).String()
}
