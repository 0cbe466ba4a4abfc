package auth

import (
	"net/mail"
	"strings"

	"github.com/jrsteele09/go-auth-session/authmodel"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/pkg/errors"
)

// Validator holds the input rules for the OTP endpoints.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// NormaliseEmail validates email and returns it lower-cased and trimmed,
// which is the form used as a repository key.
func (v *Validator) NormaliseEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", errors.Wrap(autherrors.ErrInvalidRequest, "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", errors.Wrapf(autherrors.ErrInvalidRequest, "invalid email %q", email)
	}
	return email, nil
}

// ValidateOTP checks the shape of a submitted code.
func (v *Validator) ValidateOTP(code string) error {
	if len(code) != otpDigits {
		return errors.Wrapf(autherrors.ErrInvalidOTP, "code must be %d digits", otpDigits)
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return errors.Wrapf(autherrors.ErrInvalidOTP, "code must be %d digits", otpDigits)
		}
	}
	return nil
}

func (v *Validator) ValidateAction(action string) error {
	switch action {
	case authmodel.ActionRegister, authmodel.ActionLogin:
		return nil
	default:
		return errors.Wrapf(autherrors.ErrInvalidRequest, "unknown action %q", action)
	}
}
