package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"labkiosk/internal/models"
)

// ScanOutcome is the committed result of one kiosk scan.
type ScanOutcome struct {
	Action  string
	Booking *models.Booking
	Token   *models.QRToken
	Log     *models.UsageLog
}

// ScanWithToken выполняет все шаги сканирования одной транзакцией: проверка
// токена, загрузка брони, создание или закрытие журнала, смена статуса и
// погашение токена фиксируются вместе или не фиксируются вовсе. Из двух
// конкурентных сканирований одного токена выигрывает ровно одно: проигравшее
// видит used_at внутри транзакции и получает ErrTokenInvalid.
func (db *DB) ScanWithToken(ctx context.Context, tokenValue, kioskLabel string) (*ScanOutcome, error) {
	if kioskLabel == "" {
		kioskLabel = models.DefaultKioskLabel
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()

	token, err := scanToken(tx.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM qr_tokens WHERE LOWER(token) = LOWER(?)`, tokenValue))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token in tx: %w", err)
	}
	if !token.IsValid(now) {
		return nil, ErrTokenInvalid
	}

	booking, err := scanBooking(tx.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, token.BookingID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking in tx: %w", err)
	}
	if !models.QREligibleStatus(booking.Status) {
		return nil, ErrNotEligible
	}

	openLog, err := scanUsageLog(tx.QueryRowContext(ctx,
		`SELECT `+usageLogColumns+` FROM usage_logs
         WHERE booking_id = ? AND checked_out_at IS NULL
         ORDER BY id DESC LIMIT 1`, booking.ID))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get open usage log in tx: %w", err)
	}

	outcome := &ScanOutcome{Booking: booking, Token: token}
	if errors.Is(err, sql.ErrNoRows) {
		// Первое сканирование: оборудование уходит на руки.
		outcome.Action = models.ActionCheckIn
		outcome.Log, err = insertUsageLog(ctx, tx, booking, kioskLabel, now)
		if err != nil {
			return nil, err
		}
		if err := setBookingStatus(ctx, tx, booking, models.StatusCheckedOut, now); err != nil {
			return nil, err
		}
	} else {
		// Повторное сканирование: оборудование возвращается.
		outcome.Action = models.ActionCheckOut
		if _, err := tx.ExecContext(ctx,
			`UPDATE usage_logs SET checked_out_at = ? WHERE id = ?`, now, openLog.ID); err != nil {
			return nil, fmt.Errorf("failed to close usage log in tx: %w", err)
		}
		openLog.CheckedOutAt = &now
		outcome.Log = openLog
		if err := setBookingStatus(ctx, tx, booking, models.StatusReturned, now); err != nil {
			return nil, err
		}
	}

	// Повторная проверка used_at на пути записи: проигравший параллельный скан
	// не затронет ни одной строки и откатится.
	result, err := tx.ExecContext(ctx,
		`UPDATE qr_tokens SET used_at = ? WHERE id = ? AND used_at IS NULL`, now, token.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to consume token in tx: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, ErrTokenInvalid
	}
	token.UsedAt = &now

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit scan: %w", err)
	}
	return outcome, nil
}

func insertUsageLog(ctx context.Context, tx *sql.Tx, booking *models.Booking, kioskLabel string, now time.Time) (*models.UsageLog, error) {
	meta := map[string]string{"source": models.ScanSource}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode usage log meta: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO usage_logs (booking_id, user_id, lab_id, equipment_id, checked_in_at, kiosk_label, meta, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		booking.ID, booking.UserID, booking.LabID, booking.EquipmentID, now, kioskLabel, string(metaJSON), now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert usage log in tx: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get usage log id in tx: %w", err)
	}

	return &models.UsageLog{
		ID:          id,
		BookingID:   booking.ID,
		UserID:      booking.UserID,
		LabID:       booking.LabID,
		EquipmentID: booking.EquipmentID,
		CheckedInAt: now,
		KioskLabel:  kioskLabel,
		Meta:        meta,
		CreatedAt:   now,
	}, nil
}

func setBookingStatus(ctx context.Context, tx *sql.Tx, booking *models.Booking, status string, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ?`,
		status, now, booking.ID)
	if err != nil {
		return fmt.Errorf("failed to update booking status in tx: %w", err)
	}
	booking.Status = status
	booking.Version++
	booking.UpdatedAt = now
	return nil
}
