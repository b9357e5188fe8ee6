package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"labkiosk/internal/models"
)

const usageLogColumns = `id, booking_id, user_id, lab_id, equipment_id,
	          checked_in_at, checked_out_at, kiosk_label, meta, created_at`

func scanUsageLog(row interface{ Scan(...any) error }) (*models.UsageLog, error) {
	l := &models.UsageLog{}
	var meta sql.NullString
	err := row.Scan(&l.ID, &l.BookingID, &l.UserID, &l.LabID, &l.EquipmentID,
		&l.CheckedInAt, &l.CheckedOutAt, &l.KioskLabel, &meta, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &l.Meta); err != nil {
			return nil, fmt.Errorf("failed to decode usage log meta: %w", err)
		}
	}
	return l, nil
}

// GetOpenUsageLog возвращает последний незакрытый журнал брони, nil если его нет.
func (db *DB) GetOpenUsageLog(ctx context.Context, bookingID int64) (*models.UsageLog, error) {
	query := `SELECT ` + usageLogColumns + ` FROM usage_logs
              WHERE booking_id = ? AND checked_out_at IS NULL
              ORDER BY id DESC LIMIT 1`
	log, err := scanUsageLog(db.QueryRowContext(ctx, query, bookingID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get open usage log: %w", err)
	}
	return log, nil
}

func (db *DB) GetBookingUsageLogs(ctx context.Context, bookingID int64) ([]*models.UsageLog, error) {
	query := `SELECT ` + usageLogColumns + ` FROM usage_logs WHERE booking_id = ? ORDER BY id ASC`
	rows, err := db.QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get usage logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.UsageLog
	for rows.Next() {
		l, err := scanUsageLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
