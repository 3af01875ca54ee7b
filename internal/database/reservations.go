package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tablebook/internal/models"
)

const reservationColumns = `id, confirmation_code, user_id, user_role, guests, reservation_time,
                 table_number, status, is_active, checkin_time, checkout_time,
                 reminder_at, reminder_sent, created_at, updated_at`

func scanReservation(row interface{ Scan(...interface{}) error }) (*models.Reservation, error) {
	var r models.Reservation
	var checkin, checkout, reminderAt sql.NullTime
	err := row.Scan(
		&r.ID, &r.ConfirmationCode, &r.UserID, &r.UserRole, &r.Guests, &r.ReservationTime,
		&r.TableNumber, &r.Status, &r.IsActive, &checkin, &checkout,
		&reminderAt, &r.ReminderSent, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if checkin.Valid {
		r.CheckinTime = &checkin.Time
	}
	if checkout.Valid {
		r.CheckoutTime = &checkout.Time
	}
	if reminderAt.Valid {
		r.ReminderAt = &reminderAt.Time
	}
	return &r, nil
}

func (db *DB) CreateReservation(ctx context.Context, r *models.Reservation) error {
	query := `INSERT INTO reservations (
                confirmation_code, user_id, user_role, guests, reservation_time,
                table_number, status, is_active, reminder_at, reminder_sent,
                created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		r.ConfirmationCode,
		r.UserID,
		r.UserRole,
		r.Guests,
		r.ReservationTime,
		r.TableNumber,
		r.Status,
		r.IsActive,
		r.ReminderAt,
		r.ReminderSent,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	r.ID = id
	r.CreatedAt = now
	r.UpdatedAt = now
	return nil
}

func (db *DB) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	r, err := scanReservation(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return r, nil
}

func (db *DB) GetReservationByCode(ctx context.Context, code string) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE confirmation_code = ?`
	r, err := scanReservation(db.QueryRowContext(ctx, query, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation by code: %w", err)
	}
	return r, nil
}

// TerminateReservation moves an Active reservation to a terminal status.
// The WHERE clause doubles as the idempotency guard: a reservation that
// already left Active yields ErrAlreadyTerminal and no write.
func (db *DB) TerminateReservation(ctx context.Context, id int64, status string, checkout *time.Time) error {
	query := `UPDATE reservations SET status = ?, is_active = 0, checkout_time = ?, updated_at = ?
              WHERE id = ? AND status = ?`
	result, err := db.ExecContext(ctx, query, status, checkout, time.Now(), id, models.StatusActive)
	if err != nil {
		return fmt.Errorf("failed to terminate reservation: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrAlreadyTerminal
	}
	return nil
}

// SetCheckinTime stamps the arrival exactly once; a second attempt finds
// checkin_time already set and reports ErrAlreadyTerminal.
func (db *DB) SetCheckinTime(ctx context.Context, id int64, checkin time.Time) error {
	query := `UPDATE reservations SET checkin_time = ?, updated_at = ?
              WHERE id = ? AND status = ? AND checkin_time IS NULL`
	result, err := db.ExecContext(ctx, query, checkin, time.Now(), id, models.StatusActive)
	if err != nil {
		return fmt.Errorf("failed to set checkin time: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrAlreadyTerminal
	}
	return nil
}

// UpdateReservationTable moves an Active reservation to another table.
func (db *DB) UpdateReservationTable(ctx context.Context, id, tableNumber int64) error {
	query := `UPDATE reservations SET table_number = ?, updated_at = ?
              WHERE id = ? AND status = ?`
	result, err := db.ExecContext(ctx, query, tableNumber, time.Now(), id, models.StatusActive)
	if err != nil {
		return fmt.Errorf("failed to update reservation table: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrAlreadyTerminal
	}
	return nil
}

func (db *DB) MarkReminderScheduled(ctx context.Context, id int64, reminderAt time.Time) error {
	query := `UPDATE reservations SET reminder_at = ?, reminder_sent = 1, updated_at = ? WHERE id = ?`
	if _, err := db.ExecContext(ctx, query, reminderAt, time.Now(), id); err != nil {
		return fmt.Errorf("failed to mark reminder: %w", err)
	}
	return nil
}

func (db *DB) listReservations(ctx context.Context, query string, args ...interface{}) ([]*models.Reservation, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	defer rows.Close()

	var reservations []*models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

// ListActiveForTableFrom returns future Active reservations on one table,
// used when a table is deleted and its bookings must move or die.
func (db *DB) ListActiveForTableFrom(ctx context.Context, tableNumber int64, from time.Time) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
              WHERE table_number = ? AND status = ? AND reservation_time >= ?
              ORDER BY reservation_time ASC`
	return db.listReservations(ctx, query, tableNumber, models.StatusActive, from)
}

// ListNoShows returns Active reservations whose check-in window lapsed
// with no arrival.
func (db *DB) ListNoShows(ctx context.Context, cutoff time.Time) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
              WHERE status = ? AND checkin_time IS NULL AND reservation_time <= ?
              ORDER BY reservation_time ASC`
	return db.listReservations(ctx, query, models.StatusActive, cutoff)
}

// TableOccupied reports whether a different active party is currently
// seated at the table (checked in, not yet checked out).
func (db *DB) TableOccupied(ctx context.Context, tableNumber int64, excludeReservationID int64) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM reservations
              WHERE table_number = ? AND status = ? AND id != ?
              AND checkin_time IS NOT NULL AND checkout_time IS NULL`
	err := db.QueryRowContext(ctx, query, tableNumber, models.StatusActive, excludeReservationID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check table occupancy: %w", err)
	}
	return count > 0, nil
}

// ListActiveOutsideHours returns Active reservations on date whose window
// no longer fits between open and close, after an opening-hours change.
func (db *DB) ListActiveOutsideHours(ctx context.Context, dayStart, open, close time.Time) ([]*models.Reservation, error) {
	dayEnd := dayStart.AddDate(0, 0, 1)
	windowLen := time.Duration(models.ReservationSlots) * models.SlotDuration
	query := `SELECT ` + reservationColumns + ` FROM reservations
              WHERE status = ? AND reservation_time >= ? AND reservation_time < ?
              AND (reservation_time < ? OR reservation_time > ?)
              ORDER BY reservation_time ASC`
	return db.listReservations(ctx, query, models.StatusActive, dayStart, dayEnd, open, close.Add(-windowLen))
}
