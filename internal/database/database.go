package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"tablebook/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

type DB struct {
	*sql.DB
	mu     sync.RWMutex
	tables map[int64]models.Table
	log    zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(sqlDB); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "database").Logger()
	}
	log.Info().Str("path", path).Msg("database initialized")

	return &DB{DB: sqlDB, tables: make(map[int64]models.Table), log: log}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS restaurant_tables (
            number INTEGER PRIMARY KEY,
            seats INTEGER NOT NULL,
            is_active BOOLEAN NOT NULL DEFAULT 1,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		// Одна ячейка сетки на (стол, получасовой слот)
		`CREATE TABLE IF NOT EXISTS table_slots (
            table_number INTEGER NOT NULL,
            slot_time TEXT NOT NULL,
            free BOOLEAN NOT NULL DEFAULT 1,
            PRIMARY KEY (table_number, slot_time)
        )`,

		`CREATE TABLE IF NOT EXISTS reservations (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            confirmation_code TEXT UNIQUE NOT NULL,
            user_id INTEGER NOT NULL,
            user_role TEXT NOT NULL DEFAULT 'guest',
            guests INTEGER NOT NULL,
            reservation_time DATETIME NOT NULL,
            table_number INTEGER NOT NULL,
            status TEXT NOT NULL DEFAULT 'active',
            is_active BOOLEAN NOT NULL DEFAULT 1,
            checkin_time DATETIME,
            checkout_time DATETIME,
            reminder_at DATETIME,
            reminder_sent BOOLEAN NOT NULL DEFAULT 0,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE TABLE IF NOT EXISTS waiting_list (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            confirmation_code TEXT UNIQUE NOT NULL,
            user_id INTEGER NOT NULL,
            guests INTEGER NOT NULL,
            status TEXT NOT NULL DEFAULT 'waiting',
            table_freed_time DATETIME,
            table_number INTEGER,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE TABLE IF NOT EXISTS scheduled_notifications (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            user_id INTEGER NOT NULL,
            channel TEXT NOT NULL,
            kind TEXT NOT NULL,
            body TEXT NOT NULL,
            deliver_at DATETIME NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		`CREATE INDEX IF NOT EXISTS idx_slots_time ON table_slots(slot_time)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_code ON reservations(confirmation_code)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_status ON reservations(status)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_table ON reservations(table_number)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_time ON reservations(reservation_time)`,
		`CREATE INDEX IF NOT EXISTS idx_waiting_status ON waiting_list(status)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_status ON scheduled_notifications(status)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_deliver_at ON scheduled_notifications(deliver_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// SyncTables upserts the configured tables and refreshes the in-memory
// cache. Tables present in the database but absent from the new list are
// deactivated, not deleted, so existing reservations stay resolvable.
func (db *DB) SyncTables(ctx context.Context, tables []models.Table) error {
	now := time.Now()
	seen := make(map[int64]bool, len(tables))

	for i := range tables {
		t := &tables[i]
		seen[t.Number] = true
		query := `INSERT INTO restaurant_tables (number, seats, is_active, created_at, updated_at)
                  VALUES (?, ?, ?, ?, ?)
                  ON CONFLICT(number) DO UPDATE SET
                      seats = excluded.seats,
                      is_active = excluded.is_active,
                      updated_at = excluded.updated_at`
		if _, err := db.ExecContext(ctx, query, t.Number, t.Seats, t.IsActive, now, now); err != nil {
			return fmt.Errorf("failed to sync table %d: %w", t.Number, err)
		}
	}

	rows, err := db.QueryContext(ctx, `SELECT number FROM restaurant_tables WHERE is_active = 1`)
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var stale []int64
	for rows.Next() {
		var number int64
		if err := rows.Scan(&number); err != nil {
			return fmt.Errorf("failed to scan table number: %w", err)
		}
		if !seen[number] {
			stale = append(stale, number)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, number := range stale {
		if err := db.DeactivateTable(ctx, number); err != nil {
			return err
		}
	}

	db.SetTables(tables)
	return nil
}

// SetTables replaces the in-memory table cache.
func (db *DB) SetTables(tables []models.Table) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.tables = make(map[int64]models.Table, len(tables))
	for _, t := range tables {
		db.tables[t.Number] = t
	}
}

// GetTables returns the cached active tables sorted by number.
func (db *DB) GetTables() []models.Table {
	db.mu.RLock()
	defer db.mu.RUnlock()

	tables := make([]models.Table, 0, len(db.tables))
	for _, t := range db.tables {
		if t.IsActive {
			tables = append(tables, t)
		}
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Number < tables[j].Number })
	return tables
}

// TableByNumber looks up a cached table.
func (db *DB) TableByNumber(number int64) (models.Table, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	t, ok := db.tables[number]
	return t, ok
}

// DeactivateTable marks a table inactive in both store and cache.
func (db *DB) DeactivateTable(ctx context.Context, number int64) error {
	query := `UPDATE restaurant_tables SET is_active = 0, updated_at = ? WHERE number = ?`
	if _, err := db.ExecContext(ctx, query, time.Now(), number); err != nil {
		return fmt.Errorf("failed to deactivate table %d: %w", number, err)
	}

	db.mu.Lock()
	if t, ok := db.tables[number]; ok {
		t.IsActive = false
		db.tables[number] = t
	}
	db.mu.Unlock()
	return nil
}
