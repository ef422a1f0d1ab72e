// Package auth provides identity types, opaque bearer tokens, and the
// session lifecycle: login, token validation, logout, and expiry
// sweeping.
package auth

import "time"

// User represents an account. Each user carries exactly one role;
// the effective permission set is derived from it at query time.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	RoleID    int64     `json:"role_id"`
	RoleName  string    `json:"role_name,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Never exposed over the wire
	PasswordHash string `json:"-"`
}

// Session represents an active bearer credential. Only the SHA-256
// hash of the token is stored.
type Session struct {
	ID        int64      `json:"id"`
	TokenHash string     `json:"-"`
	UserID    int64      `json:"user_id"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// Valid reports whether the session is usable at the given instant
func (s *Session) Valid(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// AuthContext carries the resolved identity for one request
type AuthContext struct {
	User    *User    `json:"user"`
	Session *Session `json:"session"`
}
