// Package devserver serves the reference /user/auth API used for local
// development and end-to-end tests of the session client.
package devserver

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-auth-session/auth"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Config is the part of the application configuration the server reads.
type Config interface {
	config.EnvConfig
	config.ServerConfig
}

type Server struct {
	env    string // Environment (e.g., "DEV", "PROD")
	prefix string // Route prefix, e.g. "/api"
	mux    *http.ServeMux
	routes []string
	config Config
	auth   *auth.AuthService
}

func New(cfg Config, authService *auth.AuthService) (*Server, error) {
	if authService == nil {
		return nil, errors.New("[devserver.New] auth service is required")
	}
	s := &Server{
		env:    cfg.GetEnv(),
		prefix: strings.TrimSuffix(cfg.GetRoutePrefix(), "/"),
		mux:    http.NewServeMux(),
		config: cfg,
		auth:   authService,
	}

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		method, path, found := strings.Cut(route, " ")
		if !found {
			method, path = "", route
		}
		log.Info().Msg(routeLine(method, path))
	}
}

func routeLine(method, path string) string {
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	return fmt.Sprintf("[%s %-7s%s] %s", color, method, ResetColor, path)
}
