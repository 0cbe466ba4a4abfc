package devserver

import (
	"net/http"

	"github.com/jrsteele09/go-auth-session/authmodel"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("POST "+s.prefix+authmodel.RouteRegister, ChainMiddleware(s.RequestOTPHandler(authmodel.ActionRegister), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+s.prefix+authmodel.RouteLogin, ChainMiddleware(s.RequestOTPHandler(authmodel.ActionLogin), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+s.prefix+authmodel.RouteResendOTP, ChainMiddleware(s.ResendOTPHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+s.prefix+authmodel.RouteVerifyOTP, ChainMiddleware(s.VerifyOTPHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+s.prefix+authmodel.RouteRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware()...))

	// Protected routes (require a bearer access token)
	s.RegisterRouteHandler("GET "+s.prefix+authmodel.RouteMe, ChainMiddleware(s.MeHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("POST "+s.prefix+authmodel.RouteLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware(s.RequireAuth())...))

	// CORS preflight for every auth route
	s.RegisterRouteHandler("OPTIONS "+s.prefix+"/user/auth/{action}", ChainMiddleware(preflightHandler, s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+s.prefix+"/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// Preflights carrying an Origin are answered by CorsMiddleware.
func preflightHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
