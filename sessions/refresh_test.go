package sessions_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-session/authapi"
	"github.com/jrsteele09/go-auth-session/authmodel"
	"github.com/jrsteele09/go-auth-session/events"
	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/stretchr/testify/require"
)

func TestRefresh_Success(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SetSession(ctx, authData("a1", "r1", "dj_1")))

	f.api.RefreshFunc = func(_ context.Context, refreshToken string) (*authmodel.AuthResponse, error) {
		return authData("a2", "r2", "dj_1"), nil
	}
	f.now = testNow.Add(10 * time.Minute)

	require.True(t, f.store.RefreshAccessToken(ctx))
	require.Equal(t, []string{"r1"}, f.api.RefreshTokens())

	snap := f.store.Snapshot()
	require.Equal(t, "a2", snap.AccessToken)
	require.Equal(t, "r2", snap.RefreshToken)
	require.True(t, snap.LastRefreshAt.Equal(f.now))
	v, _ := f.persist.Value(sessions.KeyRefreshToken)
	require.Equal(t, "r2", v)
}

func TestRefresh_SingleFlight(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SetSession(ctx, authData("a1", "r1", "dj_1")))

	release := make(chan struct{})
	f.api.RefreshFunc = func(_ context.Context, _ string) (*authmodel.AuthResponse, error) {
		<-release
		return authData("a2", "r2", "dj_1"), nil
	}

	const callers = 10
	results := make(chan bool, callers)
	var started sync.WaitGroup
	started.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			started.Done()
			results <- f.store.RefreshAccessToken(ctx)
		}()
	}
	started.Wait()
	time.Sleep(50 * time.Millisecond)
	close(release)

	for i := 0; i < callers; i++ {
		require.True(t, <-results)
	}
	require.Equal(t, 1, f.api.RefreshCalls())
	require.Equal(t, "a2", f.store.AccessToken())

	// The pending refresh is forgotten once it completes.
	require.True(t, f.store.RefreshAccessToken(ctx))
	require.Equal(t, 2, f.api.RefreshCalls())
	require.Equal(t, []string{"r1", "r2"}, f.api.RefreshTokens())
}

func TestRefresh_UnauthorizedClearsSession(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SetSession(ctx, authData("a1", "r1", "dj_1")))
	ch, unsub := f.bus.Subscribe()
	defer unsub()

	f.api.RefreshFunc = func(_ context.Context, _ string) (*authmodel.AuthResponse, error) {
		return nil, errUnauthorized
	}

	require.False(t, f.store.RefreshAccessToken(ctx))
	require.False(t, f.store.IsAuthenticated())
	require.False(t, f.store.HasRefreshToken())
	require.Equal(t, 0, f.persist.Len())
	require.Equal(t, []events.Type{events.TypeSessionCleared, events.TypeAuthRequired}, drain(ch))
	require.True(t, f.sched.last().stopped.Load())
}

func TestRefresh_TransportErrorClearsSession(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SetSession(ctx, authData("a1", "r1", "dj_1")))

	f.api.RefreshFunc = func(_ context.Context, _ string) (*authmodel.AuthResponse, error) {
		return nil, errors.New("connection refused")
	}
	ch, unsub := f.bus.Subscribe()
	defer unsub()

	require.False(t, f.store.RefreshAccessToken(ctx))
	require.False(t, f.store.IsAuthenticated())
	require.Equal(t, 1, f.api.RefreshCalls())
	require.Equal(t, []events.Type{events.TypeSessionCleared, events.TypeAuthRequired}, drain(ch))
}

func TestRefresh_ServerErrorKeepsSessionAndRetries(t *testing.T) {
	f := setupTestFixture(t, sessions.WithRefreshRetryDelay(30*time.Second))
	ctx := context.Background()
	require.NoError(t, f.store.SetSession(ctx, authData("a1", "r1", "dj_1")))
	ch, unsub := f.bus.Subscribe()
	defer unsub()

	f.api.RefreshFunc = func(_ context.Context, _ string) (*authmodel.AuthResponse, error) {
		return nil, &authapi.StatusError{StatusCode: http.StatusServiceUnavailable}
	}
	f.sched.last().fire()

	require.True(t, f.store.IsAuthenticated())
	require.True(t, f.store.HasRefreshToken())
	require.Equal(t, 4, f.persist.Len())
	require.Empty(t, drain(ch))

	retry := f.sched.last()
	require.Len(t, f.sched.all(), 2)
	require.Equal(t, 30*time.Second, retry.delay)

	f.api.RefreshFunc = func(_ context.Context, _ string) (*authmodel.AuthResponse, error) {
		return authData("a2", "r2", "dj_1"), nil
	}
	retry.fire()
	require.Equal(t, "a2", f.store.AccessToken())
	require.Equal(t, []string{"r1", "r1"}, f.api.RefreshTokens())
}

func TestRefresh_EmptyStoreSignalsNothing(t *testing.T) {
	f := setupTestFixture(t)
	ch, unsub := f.bus.Subscribe()
	defer unsub()

	require.False(t, f.store.RefreshAccessToken(context.Background()))
	require.Empty(t, drain(ch))
}

func TestRefresh_NoRefreshToken(t *testing.T) {
	f := setupTestFixture(t)
	require.False(t, f.store.RefreshAccessToken(context.Background()))
	require.Equal(t, 0, f.api.RefreshCalls())
}

func TestRefresh_CallerContextOnlyBoundsWaiting(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.store.SetSession(context.Background(), authData("a1", "r1", "dj_1")))

	release := make(chan struct{})
	done := make(chan struct{})
	var callErr error
	f.api.RefreshFunc = func(ctx context.Context, _ string) (*authmodel.AuthResponse, error) {
		defer close(done)
		<-release
		callErr = ctx.Err()
		return authData("a2", "r2", "dj_1"), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.False(t, f.store.RefreshAccessToken(ctx))

	close(release)
	<-done
	require.NoError(t, callErr)
	require.Eventually(t, func() bool { return f.store.AccessToken() == "a2" }, time.Second, 5*time.Millisecond)
}

func TestRefresh_ClearDuringFlightIsNotUndone(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SetSession(ctx, authData("a1", "r1", "dj_1")))

	started := make(chan struct{})
	release := make(chan struct{})
	f.api.RefreshFunc = func(_ context.Context, _ string) (*authmodel.AuthResponse, error) {
		close(started)
		<-release
		return authData("a2", "r2", "dj_1"), nil
	}

	result := make(chan bool)
	go func() { result <- f.store.RefreshAccessToken(ctx) }()
	<-started
	require.NoError(t, f.store.ClearSession(ctx))
	close(release)

	require.False(t, <-result)
	require.False(t, f.store.IsAuthenticated())
	require.Equal(t, 0, f.persist.Len())
}

func TestRefresh_FailureDuringNewLoginIsDiscarded(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SetSession(ctx, authData("a1", "r1", "dj_1")))

	started := make(chan struct{})
	release := make(chan struct{})
	f.api.RefreshFunc = func(_ context.Context, _ string) (*authmodel.AuthResponse, error) {
		close(started)
		<-release
		return nil, errUnauthorized
	}

	result := make(chan bool)
	go func() { result <- f.store.RefreshAccessToken(ctx) }()
	<-started
	require.NoError(t, f.store.SetSession(ctx, authData("b1", "rb1", "dj_2")))
	close(release)

	require.True(t, <-result)
	require.Equal(t, "b1", f.store.AccessToken())
	v, _ := f.persist.Value(sessions.KeyAccessToken)
	require.Equal(t, "b1", v)
}

func TestTimer_ArmedOnEverySetSession(t *testing.T) {
	f := setupTestFixture(t, sessions.WithRefreshInterval(45*time.Minute), sessions.WithRefreshMargin(time.Minute))
	ctx := context.Background()

	require.NoError(t, f.store.SetSession(ctx, authData("a1", "r1", "dj_1")))
	first := f.sched.last()
	require.Equal(t, 45*time.Minute, first.delay)

	require.NoError(t, f.store.SetSession(ctx, authData(jwtExpiringAt(t, testNow.Add(10*time.Minute)), "r2", "dj_1")))
	second := f.sched.last()
	require.True(t, first.stopped.Load())
	require.False(t, second.stopped.Load())
	require.Equal(t, 9*time.Minute, second.delay)

	require.NoError(t, f.store.ClearSession(ctx))
	require.True(t, second.stopped.Load())
	require.Len(t, f.sched.all(), 2)
}

func TestTimer_FiresRefreshOnlyForCurrentSession(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.api.RefreshFunc = func(_ context.Context, _ string) (*authmodel.AuthResponse, error) {
		return authData("a3", "r3", "dj_1"), nil
	}

	require.NoError(t, f.store.SetSession(ctx, authData("a1", "r1", "dj_1")))
	stale := f.sched.last()
	require.NoError(t, f.store.SetSession(ctx, authData("a2", "r2", "dj_1")))
	current := f.sched.last()

	stale.fire()
	require.Equal(t, 0, f.api.RefreshCalls())

	current.fire()
	require.Equal(t, 1, f.api.RefreshCalls())
	require.Equal(t, []string{"r2"}, f.api.RefreshTokens())
	require.Equal(t, "a3", f.store.AccessToken())
	require.Len(t, f.sched.all(), 3, "a successful refresh re-arms the timer")
}

func TestClose_StopsScheduling(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SetSession(ctx, authData("a1", "r1", "dj_1")))
	timer := f.sched.last()

	f.store.Close()
	require.True(t, timer.stopped.Load())

	timer.fire()
	require.Equal(t, 0, f.api.RefreshCalls())

	require.NoError(t, f.store.SetSession(ctx, authData("a2", "r2", "dj_1")))
	require.Len(t, f.sched.all(), 1)
}
