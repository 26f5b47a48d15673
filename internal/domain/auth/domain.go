package auth

import (
	"time"
)

type RefreshToken struct {
	ID         int64
	UserID     int64
	TokenHash  string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Revoked    bool
	RevokedAt  *time.Time
	ReplacedBy *string // hash of the token that superseded this one
}

func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

type IdentifierKind string

const (
	IdentifierUsername IdentifierKind = "username"
	IdentifierIP       IdentifierKind = "ip"
)

type LoginAttempt struct {
	Identifier   string
	Kind         IdentifierKind
	Attempts     int
	LastAttempt  time.Time
	BlockedUntil *time.Time
}

// BlockedAt reports whether the block is still in force at now. A block is
// lifted only once now is strictly after BlockedUntil.
func (a *LoginAttempt) BlockedAt(now time.Time) bool {
	return a.BlockedUntil != nil && !now.After(*a.BlockedUntil)
}

type EventType string

const (
	EventLoginSucceeded  EventType = "login_succeeded"
	EventLoginFailed     EventType = "login_failed"
	EventAccountLocked   EventType = "account_locked"
	EventLoginBlocked    EventType = "login_blocked"
	EventLoginInactive   EventType = "login_inactive"
	EventTokenRefreshed  EventType = "token_refreshed"
	EventTokenReuse      EventType = "token_reuse_detected"
	EventLogout          EventType = "logout"
	EventUserRegistered  EventType = "user_registered"
	EventPasswordChanged EventType = "password_changed"
	EventAdminBootstrap  EventType = "admin_bootstrapped"
)

type SecurityEvent struct {
	ID       string            `json:"id"`
	Type     EventType         `json:"type"`
	UserID   int64             `json:"user_id,omitempty"`
	Username string            `json:"username,omitempty"`
	IP       string            `json:"ip,omitempty"`
	At       time.Time         `json:"at"`
	Detail   map[string]string `json:"detail,omitempty"`
}
