package authmodel

// Routes relative to the API base URL.
const (
	RouteRegister  = "/user/auth/register"
	RouteLogin     = "/user/auth/login"
	RouteResendOTP = "/user/auth/resend-otp"
	RouteVerifyOTP = "/user/auth/verify-otp"
	RouteRefresh   = "/user/auth/refresh"
	RouteMe        = "/user/auth/me"
	RouteLogout    = "/user/auth/logout"
)

const (
	ActionRegister = "register"
	ActionLogin    = "login"
)
