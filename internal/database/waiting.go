package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tablebook/internal/models"
)

const waitingColumns = `id, confirmation_code, user_id, guests, status,
                 table_freed_time, table_number, created_at, updated_at`

func scanWaiting(row interface{ Scan(...interface{}) error }) (*models.WaitingEntry, error) {
	var e models.WaitingEntry
	var freed sql.NullTime
	var table sql.NullInt64
	err := row.Scan(
		&e.ID, &e.ConfirmationCode, &e.UserID, &e.Guests, &e.Status,
		&freed, &table, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if freed.Valid {
		e.TableFreedTime = &freed.Time
	}
	if table.Valid {
		e.TableNumber = &table.Int64
	}
	return &e, nil
}

func (db *DB) CreateWaitingEntry(ctx context.Context, e *models.WaitingEntry) error {
	query := `INSERT INTO waiting_list (confirmation_code, user_id, guests, status, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query, e.ConfirmationCode, e.UserID, e.Guests, e.Status, now, now)
	if err != nil {
		return fmt.Errorf("failed to create waiting entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	e.ID = id
	e.CreatedAt = now
	e.UpdatedAt = now
	return nil
}

func (db *DB) GetWaitingByCode(ctx context.Context, code string) (*models.WaitingEntry, error) {
	query := `SELECT ` + waitingColumns + ` FROM waiting_list WHERE confirmation_code = ?`
	e, err := scanWaiting(db.QueryRowContext(ctx, query, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get waiting entry by code: %w", err)
	}
	return e, nil
}

// OldestWaitingForCapacity implements the FIFO-with-capacity selection:
// the earliest-created Waiting entry that fits the table and has no
// outstanding offer. Returns ErrNotFound when the list is empty.
func (db *DB) OldestWaitingForCapacity(ctx context.Context, seats int) (*models.WaitingEntry, error) {
	query := `SELECT ` + waitingColumns + ` FROM waiting_list
              WHERE status = ? AND guests <= ? AND table_freed_time IS NULL
              ORDER BY id ASC LIMIT 1`
	e, err := scanWaiting(db.QueryRowContext(ctx, query, models.WaitingStatusWaiting, seats))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select waiting entry: %w", err)
	}
	return e, nil
}

// SetWaitingOffer records the freed table on a still-Waiting entry.
func (db *DB) SetWaitingOffer(ctx context.Context, id, tableNumber int64, freedAt time.Time) error {
	query := `UPDATE waiting_list SET table_freed_time = ?, table_number = ?, updated_at = ?
              WHERE id = ? AND status = ?`
	result, err := db.ExecContext(ctx, query, freedAt, tableNumber, time.Now(), id, models.WaitingStatusWaiting)
	if err != nil {
		return fmt.Errorf("failed to set waiting offer: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrAlreadyTerminal
	}
	return nil
}

// SetWaitingStatus moves a Waiting entry to seated or cancelled. The
// status guard makes duplicate transitions report ErrAlreadyTerminal.
func (db *DB) SetWaitingStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE waiting_list SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now(), id, models.WaitingStatusWaiting)
	if err != nil {
		return fmt.Errorf("failed to update waiting status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrAlreadyTerminal
	}
	return nil
}

// ListExpiredOffers returns Waiting entries whose confirmation window
// lapsed before cutoff.
func (db *DB) ListExpiredOffers(ctx context.Context, cutoff time.Time) ([]*models.WaitingEntry, error) {
	query := `SELECT ` + waitingColumns + ` FROM waiting_list
              WHERE status = ? AND table_freed_time IS NOT NULL AND table_freed_time <= ?
              ORDER BY table_freed_time ASC`
	rows, err := db.QueryContext(ctx, query, models.WaitingStatusWaiting, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired offers: %w", err)
	}
	defer rows.Close()

	var entries []*models.WaitingEntry
	for rows.Next() {
		e, err := scanWaiting(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan waiting entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
