package authmodel

// RefreshRequest is the body of POST /user/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// OTPRequest starts a register or login flow by mailing a one-time code.
type OTPRequest struct {
	Email string `json:"email"`
}

// VerifyOTPRequest completes a register or login flow.
type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type MessageResponse struct {
	Message string `json:"message"`
	Email   string `json:"email,omitempty"`
	Action  string `json:"action,omitempty"`
}

// ErrorResponse mirrors the {"detail": "..."} error body of the API.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
