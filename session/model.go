// Package session stores rotating, device-bound refresh sessions in Redis.
//
// Each session is addressed by an opaque bearer token and indexed per user,
// so revocation can target one device or the whole account. A device may
// hold at most one live session per user; creating a new one replaces it.
package session

import "time"

// Session is the server-side refresh state for one device.
type Session struct {
	UserID     int64
	PublicID   string
	DeviceHash [32]byte
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the session is past its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
