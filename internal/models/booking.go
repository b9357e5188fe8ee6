package models

import "time"

type Booking struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	LabID       int64      `json:"lab_id"`
	EquipmentID *int64     `json:"equipment_id,omitempty"`
	Title       string     `json:"title"`
	StartsAt    time.Time  `json:"starts_at"`
	EndsAt      time.Time  `json:"ends_at"`
	Status      string     `json:"status"` // pending, confirmed, checked_out, returned, cancelled
	Notes       string     `json:"notes,omitempty"`
	ConfirmedBy *int64     `json:"confirmed_by,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Version     int64      `json:"version"`
}

// WindowValid reports whether the half-open window [StartsAt, EndsAt) is non-degenerate.
func (b *Booking) WindowValid() bool {
	return b.EndsAt.After(b.StartsAt)
}

// Overlaps reports whether the booking window intersects [start, end)
// using strict half-open interval overlap.
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.StartsAt.Before(end) && b.EndsAt.After(start)
}
