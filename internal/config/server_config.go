package config

import (
	"fmt"
	"strings"
	"time"
)

type ServerConfig interface {
	CorsConfig
	GetPort() string
	GetRoutePrefix() string
	GetJWTSecret() string
	GetIssuer() string
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetOTPExpiry() time.Duration
	GetOTPRatePerMinute() int
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type AllowedOrigins map[string]struct{}
type nullValue = struct{}

func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	_, ok := a[origin]
	return ok
}

func (a AllowedOrigins) String() string {
	var origins []string
	for k := range a {
		origins = append(origins, k)
	}
	return strings.Join(origins, ", ")
}

type Server struct{}

var _ ServerConfig = Server{}

func (Server) GetPort() string {
	port := GetEnv("PORT", "8080")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (Server) GetRoutePrefix() string {
	return "/" + strings.Trim(GetEnv("ROUTE_PREFIX", "/api"), "/")
}

// GetJWTSecret falls back to a development secret; never rely on it outside DEV.
func (Server) GetJWTSecret() string {
	return GetEnv("JWT_SECRET", "dev-secret-change-me")
}

func (Server) GetIssuer() string {
	return GetEnv("JWT_ISSUER", "go-auth-session")
}

func (Server) GetAccessTokenExpiry() time.Duration {
	return GetDuration("ACCESS_TOKEN_EXPIRY", time.Hour)
}

func (Server) GetRefreshTokenExpiry() time.Duration {
	return GetDuration("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour)
}

func (Server) GetOTPExpiry() time.Duration {
	return GetDuration("OTP_EXPIRY", 10*time.Minute)
}

func (Server) GetOTPRatePerMinute() int {
	return GetInt("OTP_RATE_PER_MINUTE", 5)
}

func (Server) GetAllowedOrigins() AllowedOrigins {
	origins := AllowedOrigins{}
	for _, origin := range strings.Split(GetEnv("CORS_ORIGINS", "*"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins[origin] = nullValue{}
		}
	}
	return origins
}

func (Server) GetAllowedMethods() string {
	return "GET, POST, PUT, PATCH, DELETE"
}

func (Server) GetAllowedHeaders() string {
	return "Content-Type, Authorization"
}
