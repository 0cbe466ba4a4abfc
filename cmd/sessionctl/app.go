package main

import (
	"context"
	"io"
	"os"

	"github.com/jrsteele09/go-auth-session/apiclient"
	"github.com/jrsteele09/go-auth-session/authapi"
	"github.com/jrsteele09/go-auth-session/billing"
	"github.com/jrsteele09/go-auth-session/events"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/internal/logging"
	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/jrsteele09/go-auth-session/storage"
	"github.com/jrsteele09/go-auth-session/storage/filestore"
	"github.com/jrsteele09/go-auth-session/storage/redisstore"
	"github.com/jrsteele09/go-auth-session/storage/storefake"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

// application owns every long-lived component of one CLI invocation.
type application struct {
	config  config.Config
	logger  zerolog.Logger
	bus     *events.InMemoryBus
	api     authapi.Client
	store   *sessions.Store
	client  *apiclient.Client
	closers []func()
}

func newApplication(c *cli.Context) (*application, error) {
	cfg := config.New()

	logOut := io.Discard
	if c.Bool(flagVerbose) {
		logOut = os.Stderr
	}
	a := &application{
		config: cfg,
		logger: logging.NewWithWriter(cfg, logOut),
		bus:    events.NewBus(),
	}

	baseURL := cfg.GetAPIBaseURL()
	if v := c.String(flagAPI); v != "" {
		baseURL = v
	}
	a.api = authapi.NewClient(baseURL, c.Bool(flagInsecure) || cfg.GetAllowInsecure(), authapi.WithTimeout(cfg.GetRequestTimeout()))

	backend := cfg.GetStorageBackend()
	if v := c.String(flagStorage); v != "" {
		backend = v
	}
	persist, closeStorage, err := openStorage(c.Context, backend, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeStorage)

	aligner := billing.NewAligner(cfg.GetBillingBaseURL(), cfg.GetBillingAPIKey(), billing.WithLogger(a.logger))
	a.store, err = sessions.New(a.api, persist,
		sessions.WithLogger(a.logger),
		sessions.WithBus(a.bus),
		sessions.WithStalenessThreshold(cfg.GetStalenessThreshold()),
		sessions.WithRefreshInterval(cfg.GetRefreshInterval()),
		sessions.WithRefreshMargin(cfg.GetRefreshMargin()),
		sessions.WithRefreshTimeout(cfg.GetRequestTimeout()),
		sessions.WithRefreshRetryDelay(cfg.GetRefreshRetryDelay()),
		sessions.WithPostAuthHooks(aligner.AfterAuth),
	)
	if err != nil {
		a.Close()
		return nil, errors.Wrap(err, "error creating session store")
	}
	a.closers = append([]func(){a.store.Close}, a.closers...)

	clientOpts := []apiclient.Option{apiclient.WithLogger(a.logger)}
	if id := a.deviceID(c.Context); id != "" {
		clientOpts = append(clientOpts, apiclient.WithHeader("X-Device-Id", id))
	}
	a.client = apiclient.New(baseURL, a.store, clientOpts...)
	return a, nil
}

// openStorage returns the persistence backend and a function releasing it.
func openStorage(ctx context.Context, backend string, cfg config.StorageConfig) (storage.Store, func(), error) {
	switch backend {
	case config.StorageBackendMemory:
		return storefake.NewFakeStore(), func() {}, nil
	case config.StorageBackendRedis:
		store, client, err := redisstore.Connect(ctx, cfg)
		if err != nil {
			return nil, nil, errors.Wrap(err, "error connecting to redis")
		}
		return store, func() { _ = client.Close() }, nil
	case config.StorageBackendFile, "":
		store, err := filestore.New(cfg.GetStorageDir())
		if err != nil {
			return nil, nil, errors.Wrap(err, "error opening session directory")
		}
		return store, func() {}, nil
	default:
		return nil, nil, errors.Errorf("unknown storage backend %q", backend)
	}
}

func (a *application) deviceID(ctx context.Context) string {
	id, err := a.store.DeviceID(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("no device id")
		return ""
	}
	return id
}

// restore loads the stored session. Commands that need a user call it first.
func (a *application) restore(ctx context.Context) error {
	if !a.store.LoadFromPersistence(ctx) {
		return errors.New("not signed in; run 'sessionctl login EMAIL' first")
	}
	return nil
}

// watchAuthRequired prints a sign-in prompt when the session cannot be
// renewed. The returned function stops watching.
func (a *application) watchAuthRequired(w io.Writer) func() {
	ch, unsubscribe := a.bus.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range ch {
			if e.Type == events.TypeAuthRequired {
				_, _ = io.WriteString(w, "Your session has expired. Run 'sessionctl login EMAIL' to sign in again.\n")
			}
		}
	}()
	return func() {
		unsubscribe()
		<-done
	}
}

func (a *application) Close() {
	for _, closer := range a.closers {
		closer()
	}
}
