package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type emailLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// otpRateLimiter bounds how often codes are mailed to one address.
type otpRateLimiter struct {
	perMinute int
	nowTime   func() time.Time
	mu        sync.Mutex
	emails    map[string]*emailLimiter
}

func newOTPRateLimiter(perMinute int, nowTime func() time.Time) *otpRateLimiter {
	if perMinute <= 0 {
		perMinute = 5
	}
	return &otpRateLimiter{
		perMinute: perMinute,
		nowTime:   nowTime,
		emails:    map[string]*emailLimiter{},
	}
}

func (l *otpRateLimiter) Allow(email string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowTime()
	entry, exists := l.emails[email]
	if !exists {
		entry = &emailLimiter{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.perMinute),
		}
		l.emails[email] = entry
	}
	entry.lastSeen = now
	l.gcLocked(now)
	return entry.limiter.AllowN(now, 1)
}

func (l *otpRateLimiter) gcLocked(now time.Time) {
	if len(l.emails) < 1000 {
		return
	}
	cutoff := now.Add(-10 * time.Minute)
	for email, entry := range l.emails {
		if entry.lastSeen.Before(cutoff) {
			delete(l.emails, email)
		}
	}
}
