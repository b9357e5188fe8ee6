package models

import "time"

// QRToken is a single-use, time-limited credential bound to one booking.
type QRToken struct {
	ID        int64      `json:"id"`
	BookingID int64      `json:"booking_id"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// IsValid reports whether the token is unused and not yet expired.
// Once UsedAt is set the token stays invalid forever.
func (t *QRToken) IsValid(now time.Time) bool {
	if t.UsedAt != nil {
		return false
	}
	return t.ExpiresAt.After(now)
}
