package models

import "time"

type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"` // Admin, LabStaff, Student
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// KioskState keeps per-kiosk transient state: the last scan echo shown on the
// tablet and rate-limit counters. Booking and token state never lives here.
type KioskState struct {
	KioskLabel  string    `json:"kiosk_label"`
	LastAction  string    `json:"last_action,omitempty"`
	LastMessage string    `json:"last_message,omitempty"`
	LastScanAt  time.Time `json:"last_scan_at"`
}
