package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-auth-session/auth"
	fakeotprepo "github.com/jrsteele09/go-auth-session/auth/repofakes"
	"github.com/jrsteele09/go-auth-session/devserver"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/internal/logging"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/jrsteele09/go-auth-session/token/refresh"
	refreshrepofake "github.com/jrsteele09/go-auth-session/token/refresh/repofake"
	fakeuserrepo "github.com/jrsteele09/go-auth-session/users/repofake"
	"github.com/rs/zerolog/log"
)

const cleanupInterval = time.Minute

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("error running server")
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	log.Logger = logging.New(c)
	displayAppname(c.GetAppName())

	authService, err := newAuthService(c)
	if err != nil {
		return err
	}
	handler, err := devserver.New(c, authService)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runCleanup(ctx, authService)

	server := &http.Server{Addr: c.GetPort(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listenAndServe(server)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(server)
}

// newAuthService wires the in-memory repositories. Everything is lost on
// restart, which is what a development server wants.
func newAuthService(c config.Config) (*auth.AuthService, error) {
	if c.GetEnv() != "DEV" && c.GetJWTSecret() == "dev-secret-change-me" {
		log.Warn().Msg("JWT_SECRET is not set, using the development secret")
	}
	tokens := token.NewManager(token.NewHMACSigner(c.GetJWTSecret()),
		token.WithIssuer(c.GetIssuer()),
		token.WithAccessTokenExpiry(c.GetAccessTokenExpiry()),
	)
	refreshTokens := refresh.NewManager(refreshrepofake.NewFakeRefreshTokenRepo(), c.GetRefreshTokenExpiry())

	return auth.NewAuthService(
		auth.Repos{
			Users: fakeuserrepo.NewFakeUserRepo(),
			OTPs:  fakeotprepo.NewFakeOTPRepo(),
		},
		tokens,
		refreshTokens,
		auth.WithOTPExpiry(c.GetOTPExpiry()),
		auth.WithOTPRatePerMinute(c.GetOTPRatePerMinute()),
		auth.WithLogger(log.Logger),
	)
}

func runCleanup(ctx context.Context, authService *auth.AuthService) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			authService.Cleanup()
		}
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
