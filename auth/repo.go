package auth

import "time"

// PendingOTP is an issued one-time code that has not been verified yet. At
// most one is pending per email; issuing a new code replaces it.
type PendingOTP struct {
	Email     string
	Action    string // authmodel.ActionRegister or authmodel.ActionLogin
	CodeHash  string // bcrypt hash of the code
	ExpiresAt time.Time
	Attempts  int // failed verifications so far
}

type OTPRepo interface {
	Upsert(pending *PendingOTP) error
	Get(email string) (*PendingOTP, error)
	Delete(email string) error
	DeleteExpired(now time.Time) int
}
