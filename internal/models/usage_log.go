package models

import "time"

// UsageLog records one physical possession window of equipment under a booking.
// Rows are appended by the kiosk scan flow and closed in place, never deleted.
type UsageLog struct {
	ID           int64             `json:"id"`
	BookingID    int64             `json:"booking_id"`
	UserID       int64             `json:"user_id"`
	LabID        int64             `json:"lab_id"`
	EquipmentID  *int64            `json:"equipment_id,omitempty"`
	CheckedInAt  time.Time         `json:"checked_in_at"`
	CheckedOutAt *time.Time        `json:"checked_out_at,omitempty"`
	KioskLabel   string            `json:"kiosk_label"`
	Meta         map[string]string `json:"meta,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// IsOpen reports whether the possession window has started and not yet ended.
func (l *UsageLog) IsOpen() bool {
	return !l.CheckedInAt.IsZero() && l.CheckedOutAt == nil
}
