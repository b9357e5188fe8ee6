package domain

import (
	"context"
	"time"

	"labkiosk/internal/database"
	"labkiosk/internal/models"
)

type Repository interface {
	// Bookings
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	CreateBookingWithGuard(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatus(ctx context.Context, id int64, status string) error
	UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) error
	ApproveBooking(ctx context.Context, id, approverID int64) error
	DeleteBooking(ctx context.Context, id int64) error
	GetPendingBookings(ctx context.Context) ([]*models.Booking, error)
	GetUserBookings(ctx context.Context, userID int64) ([]*models.Booking, error)
	GetBookingsByRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error)

	// Availability
	UnavailableEquipment(ctx context.Context, labID int64, startsAt, endsAt time.Time) ([]int64, error)
	HasOverlap(ctx context.Context, equipmentID int64, startsAt, endsAt time.Time) (bool, error)

	// QR tokens
	CreateQRToken(ctx context.Context, token *models.QRToken) error
	GetTokenByValue(ctx context.Context, value string) (*models.QRToken, error)
	GetLatestValidToken(ctx context.Context, bookingID int64) (*models.QRToken, error)

	// Usage logs
	GetOpenUsageLog(ctx context.Context, bookingID int64) (*models.UsageLog, error)
	GetBookingUsageLogs(ctx context.Context, bookingID int64) ([]*models.UsageLog, error)

	// Kiosk scan (single transaction)
	ScanWithToken(ctx context.Context, tokenValue, kioskLabel string) (*database.ScanOutcome, error)

	// Catalog
	GetLab(ctx context.Context, id int64) (*models.Lab, error)
	GetActiveLabs(ctx context.Context) ([]*models.Lab, error)
	GetEquipment(ctx context.Context, id int64) (*models.Equipment, error)
	GetActiveEquipmentByLab(ctx context.Context, labID int64) ([]*models.Equipment, error)

	// Users
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserRoles(ctx context.Context, userID int64) ([]string, error)
}

// StateRepository keeps per-kiosk transient state (rate limits, last scan
// echo). Booking and token state must never be stored here.
type StateRepository interface {
	GetState(ctx context.Context, kioskLabel string) (*models.KioskState, error)
	SetState(ctx context.Context, state *models.KioskState) error
	ClearState(ctx context.Context, kioskLabel string) error
	CheckRateLimit(ctx context.Context, kioskLabel string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Authorizer answers role questions for an actor. Implementations must treat
// lookup failure as "no roles" instead of propagating the error.
type Authorizer interface {
	HasAnyRole(ctx context.Context, actorID int64, roles ...string) bool
}

// Notifier delivers a staff-facing message (Telegram in production).
type Notifier interface {
	NotifyStaff(text string) error
}

// NotifyWorker enqueues durable staff notifications.
type NotifyWorker interface {
	EnqueueBookingEvent(ctx context.Context, taskType string, booking *models.Booking) error
}
