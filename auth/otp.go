package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const (
	otpDigits      = 6
	maxOTPAttempts = 5
)

var otpSpace = big.NewInt(1_000_000)

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpace)
	if err != nil {
		return "", errors.Wrap(err, "[generateOTP] rand.Int")
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

func hashOTP(code string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "[hashOTP] bcrypt")
	}
	return string(bytes), nil
}

func checkOTP(code, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}

// Notifier delivers one-time codes to their owner.
type Notifier interface {
	SendOTP(ctx context.Context, email, action, code string) error
}

// NotifierFunc adapts a function to a Notifier.
type NotifierFunc func(ctx context.Context, email, action, code string) error

func (f NotifierFunc) SendOTP(ctx context.Context, email, action, code string) error {
	return f(ctx, email, action, code)
}

// LogNotifier writes codes to the log instead of mailing them. It is only
// suitable for local development.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendOTP(_ context.Context, email, action, code string) error {
	n.logger.Info().Str("email", email).Str("action", action).Str("otp", code).Msg("one-time code issued")
	return nil
}
