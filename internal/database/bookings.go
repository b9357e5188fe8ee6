package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"labkiosk/internal/models"
)

const bookingColumns = `id, user_id, lab_id, equipment_id, title, starts_at, ends_at,
	                 status, notes, confirmed_by, confirmed_at, created_at, updated_at, version`

func scanBooking(row interface{ Scan(...any) error }) (*models.Booking, error) {
	b := &models.Booking{}
	err := row.Scan(
		&b.ID, &b.UserID, &b.LabID, &b.EquipmentID, &b.Title, &b.StartsAt, &b.EndsAt,
		&b.Status, &b.Notes, &b.ConfirmedBy, &b.ConfirmedAt, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// UnavailableEquipment возвращает id оборудования лаборатории, занятого
// подтверждёнными или выданными бронями, пересекающими окно [startsAt, endsAt).
func (db *DB) UnavailableEquipment(ctx context.Context, labID int64, startsAt, endsAt time.Time) ([]int64, error) {
	if !endsAt.After(startsAt) {
		return nil, ErrInvalidWindow
	}

	query := `SELECT DISTINCT b.equipment_id
              FROM bookings b
              JOIN equipment e ON e.id = b.equipment_id
              WHERE e.lab_id = ?
                AND b.equipment_id IS NOT NULL
                AND b.status IN (?, ?)
                AND b.starts_at < ? AND b.ends_at > ?
              ORDER BY b.equipment_id`
	rows, err := db.QueryContext(ctx, query, labID,
		models.StatusConfirmed, models.StatusCheckedOut, endsAt.UTC(), startsAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to get unavailable equipment: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan equipment id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (db *DB) countOverlapping(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, equipmentID int64, startsAt, endsAt time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM bookings
              WHERE equipment_id = ? AND status IN (?, ?)
                AND starts_at < ? AND ends_at > ?`
	var count int
	err := q.QueryRowContext(ctx, query, equipmentID,
		models.StatusConfirmed, models.StatusCheckedOut, endsAt.UTC(), startsAt.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count overlapping bookings: %w", err)
	}
	return count, nil
}

// HasOverlap проверяет пересечение окна с активными бронями конкретного оборудования.
func (db *DB) HasOverlap(ctx context.Context, equipmentID int64, startsAt, endsAt time.Time) (bool, error) {
	count, err := db.countOverlapping(ctx, db.DB, equipmentID, startsAt, endsAt)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateBookingWithGuard создает бронь, повторяя проверку пересечения внутри
// транзакции, чтобы две конкурентные заявки на одно оборудование не прошли обе.
// Брони без конкретного оборудования проверку пересечения не проходят вовсе.
func (db *DB) CreateBookingWithGuard(ctx context.Context, booking *models.Booking) error {
	if !booking.WindowValid() {
		return ErrInvalidWindow
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if booking.EquipmentID != nil {
		count, err := db.countOverlapping(ctx, tx, *booking.EquipmentID, booking.StartsAt, booking.EndsAt)
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrNotAvailable
		}
	}

	query := `INSERT INTO bookings (
				user_id, lab_id, equipment_id, title, starts_at, ends_at,
				status, notes, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := tx.ExecContext(ctx, query,
		booking.UserID,
		booking.LabID,
		booking.EquipmentID,
		booking.Title,
		booking.StartsAt.UTC(),
		booking.EndsAt.UTC(),
		booking.Status,
		booking.Notes,
		now,
		now,
		1,
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking in tx: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id in tx: %w", err)
	}
	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1

	return tx.Commit()
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

func (db *DB) UpdateBookingStatus(ctx context.Context, id int64, status string) error {
	if !models.ValidStatus(status) {
		return ErrUnknownStatus
	}
	query := `UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) error {
	if !models.ValidStatus(status) {
		return ErrUnknownStatus
	}
	query := `UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// ApproveBooking переводит pending-бронь в confirmed и проставляет, кто и когда
// подтвердил. Для брони в любом другом статусе ничего не меняет.
func (db *DB) ApproveBooking(ctx context.Context, id, approverID int64) error {
	now := time.Now()
	query := `UPDATE bookings
              SET status = ?, confirmed_by = ?, confirmed_at = ?, version = version + 1, updated_at = ?
              WHERE id = ? AND status = ?`
	result, err := db.ExecContext(ctx, query,
		models.StatusConfirmed, approverID, now, now, id, models.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to approve booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		if _, err := db.GetBooking(ctx, id); err != nil {
			return err
		}
		return ErrNotPending
	}
	return nil
}

func (db *DB) GetPendingBookings(ctx context.Context) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE status = ? ORDER BY starts_at ASC`
	return db.queryBookings(ctx, query, models.StatusPending)
}

func (db *DB) GetUserBookings(ctx context.Context, userID int64) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = ? ORDER BY starts_at DESC`
	return db.queryBookings(ctx, query, userID)
}

func (db *DB) GetBookingsByRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE starts_at < ? AND ends_at > ? ORDER BY starts_at ASC`
	return db.queryBookings(ctx, query, end.UTC(), start.UTC())
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...any) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// DeleteBooking удаляет бронь вместе с её токенами и журналами (каскад).
func (db *DB) DeleteBooking(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrBookingNotFound
	}
	return nil
}
