package devserver

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-auth-session/authmodel"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeJSON = "application/json"
	maxBodyBytes    = 1 << 16
)

// RequestOTPHandler handles register and login, which differ only in action.
func (s *Server) RequestOTPHandler(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := authmodel.OTPRequest{}
		if !decodeBody(w, r, &req) {
			return
		}
		resp, err := s.auth.RequestOTP(r.Context(), action, req.Email)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) ResendOTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := authmodel.OTPRequest{}
		if !decodeBody(w, r, &req) {
			return
		}
		resp, err := s.auth.ResendOTP(r.Context(), req.Email)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) VerifyOTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := authmodel.VerifyOTPRequest{}
		if !decodeBody(w, r, &req) {
			return
		}
		resp, err := s.auth.VerifyOTP(r.Context(), req.Email, req.OTP)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := authmodel.RefreshRequest{}
		if !decodeBody(w, r, &req) {
			return
		}
		resp, err := s.auth.Refresh(r.Context(), req.RefreshToken)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, err := s.auth.Me(r.Context(), accessTokenFromContext(r.Context()))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.auth.Logout(r.Context(), accessTokenFromContext(r.Context())); err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, authmodel.MessageResponse{Message: "Logged out successfully"})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// statusFor maps service errors onto the API's status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, autherrors.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, autherrors.ErrUserNotFound), errors.Is(err, autherrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, autherrors.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, autherrors.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, autherrors.ErrInvalidOTP),
		errors.Is(err, autherrors.ErrOTPExpired),
		errors.Is(err, autherrors.ErrInvalidToken),
		errors.Is(err, autherrors.ErrTokenExpired),
		errors.Is(err, autherrors.ErrTokenRevoked),
		errors.Is(err, autherrors.ErrInvalidRefreshToken),
		errors.Is(err, autherrors.ErrRefreshTokenExpired):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, status, "An error occurred")
		return
	}
	log.Debug().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request rejected")
	writeError(w, status, errors.Cause(err).Error())
}

// writeError writes the API's {"detail": "..."} error body.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, authmodel.ErrorResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
