package users_test

import (
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-session/users"
	fakeuserrepo "github.com/jrsteele09/go-auth-session/users/repofake"
	"github.com/stretchr/testify/require"
)

func TestProfileJSONFieldNames(t *testing.T) {
	raw := `{"uid":"dj_1","email":"a@b.c","x-account":"@ax","ig-account":"ig_a",` +
		`"x-connected":"2024-03-05T10:00:00Z","is_new_user":true,"premium":true}`
	p := &users.Profile{}
	require.NoError(t, json.Unmarshal([]byte(raw), p))
	require.Equal(t, "@ax", p.XAccount)
	require.Equal(t, "ig_a", p.InstagramAccount)
	require.True(t, p.IsNewUser)
	require.True(t, p.Premium)
}

func TestName(t *testing.T) {
	var nilProfile *users.Profile
	require.Equal(t, "User", nilProfile.Name())
	require.Equal(t, "User", (&users.Profile{}).Name())
	require.Equal(t, "jane", (&users.Profile{Email: "jane@example.com"}).Name())
	require.Equal(t, "Jane D", (&users.Profile{Email: "jane@example.com", DisplayName: "Jane D"}).Name())
}

func TestState(t *testing.T) {
	var nilProfile *users.Profile
	require.Equal(t, users.StateDefault, nilProfile.State())
	require.Equal(t, users.StateActive, (&users.Profile{}).State())
	require.Equal(t, users.StatePremium, (&users.Profile{Premium: true}).State())
}

func TestDateFormatting(t *testing.T) {
	p := &users.Profile{
		XConnected:         "2024-03-05T10:00:00Z",
		InstagramConnected: "2023-12-25T08:30:00.123456",
		CreatedAt:          "2022-07-09",
	}
	require.Equal(t, "Connected on 2024.03.05", p.XConnectedOn())
	require.Equal(t, "Connected on 2023.12.25", p.InstagramConnectedOn())
	require.Equal(t, "Joined Jul. 9, 2022", p.JoinedOn())

	require.Empty(t, users.ConnectedOn(""))
	require.Empty(t, users.JoinedOn("not a date"))
}

func TestCloneIsIndependent(t *testing.T) {
	p := &users.Profile{UID: "dj_1", Email: "a@b.c"}
	c := p.Clone()
	c.Email = "x@y.z"
	require.Equal(t, "a@b.c", p.Email)
}

func TestNewUID(t *testing.T) {
	uid := users.NewUID(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))
	require.Regexp(t, regexp.MustCompile(`^dj_20250102_[0-9a-f]{8}$`), uid)
}

func TestFakeRepo(t *testing.T) {
	repo := fakeuserrepo.NewFakeUserRepo()
	require.Error(t, repo.Upsert(&users.Profile{Email: "no-uid@example.com"}))

	require.NoError(t, repo.Upsert(&users.Profile{UID: "b", Email: "B@Example.com"}))
	require.NoError(t, repo.Upsert(&users.Profile{UID: "a", Email: "a@example.com"}))

	got, err := repo.GetByEmail("b@example.com")
	require.NoError(t, err)
	require.Equal(t, "b", got.UID)

	got.DisplayName = "mutated"
	stored, err := repo.GetByUID("b")
	require.NoError(t, err)
	require.Empty(t, stored.DisplayName)

	list, err := repo.List(0, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "a", list[0].UID)

	list, err = repo.List(1, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, repo.Upsert(&users.Profile{UID: "b", Email: "new@example.com"}))
	_, err = repo.GetByEmail("b@example.com")
	require.ErrorIs(t, err, fakeuserrepo.ErrNotFound)

	require.NoError(t, repo.Delete("b"))
	_, err = repo.GetByUID("b")
	require.ErrorIs(t, err, fakeuserrepo.ErrNotFound)
	require.ErrorIs(t, repo.Delete("b"), fakeuserrepo.ErrNotFound)
}
