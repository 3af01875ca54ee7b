package database

import (
	"context"
	"fmt"
	"time"

	"tablebook/internal/models"
)

func slotKey(t time.Time) string {
	return models.AlignToSlot(t).Format(models.SlotTimeFormat)
}

// SeedSlots inserts free cells for every (table, slot) pair that does not
// exist yet. Existing cells keep their occupancy, so re-seeding a day is
// safe while reservations are live.
func (db *DB) SeedSlots(ctx context.Context, tables []models.Table, slots []time.Time) error {
	if len(tables) == 0 || len(slots) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO table_slots (table_number, slot_time, free) VALUES (?, ?, 1)`)
	if err != nil {
		return fmt.Errorf("failed to prepare seed statement: %w", err)
	}
	defer stmt.Close()

	for _, table := range tables {
		if !table.IsActive {
			continue
		}
		for _, slot := range slots {
			if _, err := stmt.ExecContext(ctx, table.Number, slotKey(slot)); err != nil {
				return fmt.Errorf("failed to seed slot (%d, %s): %w", table.Number, slotKey(slot), err)
			}
		}
	}

	return tx.Commit()
}

// TryAcquireSlot atomically claims one grid cell. The predicate and the
// write are a single conditional UPDATE, so exactly one of any number of
// concurrent callers observes success. Returns ErrSlotTaken when the cell
// is occupied and ErrNotFound when it was never seeded.
func (db *DB) TryAcquireSlot(ctx context.Context, tableNumber int64, slot time.Time) error {
	query := `UPDATE table_slots SET free = 0 WHERE table_number = ? AND slot_time = ? AND free = 1`
	result, err := db.ExecContext(ctx, query, tableNumber, slotKey(slot))
	if err != nil {
		return fmt.Errorf("failed to acquire slot (%d, %s): %w", tableNumber, slotKey(slot), err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read acquire result: %w", err)
	}
	if rows == 1 {
		return nil
	}

	exists, err := db.slotExists(ctx, tableNumber, slot)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrSlotTaken
}

// ReleaseSlot unconditionally marks the cell free. Used for normal
// release and for compensating rollback alike.
func (db *DB) ReleaseSlot(ctx context.Context, tableNumber int64, slot time.Time) error {
	query := `UPDATE table_slots SET free = 1 WHERE table_number = ? AND slot_time = ?`
	if _, err := db.ExecContext(ctx, query, tableNumber, slotKey(slot)); err != nil {
		return fmt.Errorf("failed to release slot (%d, %s): %w", tableNumber, slotKey(slot), err)
	}
	return nil
}

// SlotFree reports the current state of one cell.
func (db *DB) SlotFree(ctx context.Context, tableNumber int64, slot time.Time) (bool, error) {
	var free bool
	query := `SELECT free FROM table_slots WHERE table_number = ? AND slot_time = ?`
	err := db.QueryRowContext(ctx, query, tableNumber, slotKey(slot)).Scan(&free)
	if err != nil {
		return false, fmt.Errorf("failed to read slot (%d, %s): %w", tableNumber, slotKey(slot), err)
	}
	return free, nil
}

func (db *DB) slotExists(ctx context.Context, tableNumber int64, slot time.Time) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM table_slots WHERE table_number = ? AND slot_time = ?`
	err := db.QueryRowContext(ctx, query, tableNumber, slotKey(slot)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check slot existence: %w", err)
	}
	return count > 0, nil
}

// IsFreeForWindow is a read-only pre-filter over slotCount consecutive
// cells. State can change between this check and the acquire sequence;
// the acquire sequence stays authoritative.
func (db *DB) IsFreeForWindow(ctx context.Context, tableNumber int64, start time.Time, slotCount int) (bool, error) {
	keys := make([]interface{}, 0, slotCount+1)
	keys = append(keys, tableNumber)
	placeholders := ""
	for i, slot := range models.WindowSlots(start, slotCount) {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		keys = append(keys, slotKey(slot))
	}

	query := fmt.Sprintf(`SELECT COUNT(*) FROM table_slots
              WHERE table_number = ? AND slot_time IN (%s) AND free = 1`, placeholders)

	var freeCount int
	if err := db.QueryRowContext(ctx, query, keys...).Scan(&freeCount); err != nil {
		return false, fmt.Errorf("failed to check window: %w", err)
	}
	return freeCount == slotCount, nil
}

// FreeTablesForWindow returns the numbers of tables whose slotCount cells
// starting at start are all free, ascending by table number.
func (db *DB) FreeTablesForWindow(ctx context.Context, start time.Time, slotCount int) ([]int64, error) {
	args := make([]interface{}, 0, slotCount+1)
	placeholders := ""
	for i, slot := range models.WindowSlots(start, slotCount) {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args = append(args, slotKey(slot))
	}
	args = append(args, slotCount)

	query := fmt.Sprintf(`SELECT table_number FROM table_slots
              WHERE slot_time IN (%s) AND free = 1
              GROUP BY table_number
              HAVING COUNT(*) = ?
              ORDER BY table_number ASC`, placeholders)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find free tables: %w", err)
	}
	defer rows.Close()

	var numbers []int64
	for rows.Next() {
		var n int64
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan table number: %w", err)
		}
		numbers = append(numbers, n)
	}
	return numbers, rows.Err()
}

// PurgeSlotsBefore drops grid cells older than cutoff (horizon rollover).
func (db *DB) PurgeSlotsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM table_slots WHERE slot_time < ?`, slotKey(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to purge slots: %w", err)
	}
	purged, _ := result.RowsAffected()
	return purged, nil
}

// DeleteSlotsForTable removes all cells of one table, used when a table
// is taken out of service after its reservations were relocated.
func (db *DB) DeleteSlotsForTable(ctx context.Context, tableNumber int64) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM table_slots WHERE table_number = ?`, tableNumber); err != nil {
		return fmt.Errorf("failed to delete slots for table %d: %w", tableNumber, err)
	}
	return nil
}
