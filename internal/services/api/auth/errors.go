package auth

import (
	"errors"
	"fmt"
	"math"
	"time"

	coreauth "github.com/NordCoder/Stocker/internal/auth"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountLocked      = errors.New("account temporarily locked")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenRevoked       = errors.New("token revoked, sign in again")
	ErrForbidden          = errors.New("user not found or inactive")
	ErrForbiddenRole      = errors.New("insufficient permissions")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrConflict           = errors.New("already exists")
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrWeakPassword       = coreauth.ErrWeakPassword
)

// LockedError is returned while a login identifier is throttled. It matches
// ErrAccountLocked with errors.Is.
type LockedError struct {
	Until time.Time
	Now   time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("%s, try again in %d minute(s)", ErrAccountLocked.Error(), e.RemainingMinutes())
}

func (e *LockedError) Is(target error) bool { return target == ErrAccountLocked }

// RemainingMinutes rounds up, so any positive remainder reads as at least one.
func (e *LockedError) RemainingMinutes() int {
	return remainingMinutes(e.Until, e.Now)
}

func (e *LockedError) RetryAfter() time.Duration {
	if d := e.Until.Sub(e.Now); d > 0 {
		return d
	}
	return 0
}

func remainingMinutes(until, now time.Time) int {
	d := until.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Minutes()))
}
