package database

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tablebook/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerformBackup(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "source.db")
	logger := zerolog.Nop()
	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.SyncTables(context.Background(), testTables()))

	backupDir := t.TempDir()
	svc := NewBackupService(dbPath, config.BackupConfig{
		Enabled:     true,
		StoragePath: backupDir,
	}, &logger)

	require.NoError(t, svc.PerformBackup())

	entries, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	// Снимок — полноценная база со всеми строками
	snapshot, err := sql.Open("sqlite3", filepath.Join(backupDir, entries[0].Name()))
	require.NoError(t, err)
	defer snapshot.Close()

	var count int
	require.NoError(t, snapshot.QueryRow(`SELECT COUNT(*) FROM restaurant_tables`).Scan(&count))
	assert.Equal(t, 3, count)
}

func TestCleanupOldBackups(t *testing.T) {
	backupDir := t.TempDir()

	old := filepath.Join(backupDir, "backup_20200101_000000.db")
	require.NoError(t, os.WriteFile(old, []byte("stale"), 0o644))
	oldTime := time.Now().AddDate(0, 0, -10)
	require.NoError(t, os.Chtimes(old, oldTime, oldTime))

	fresh := filepath.Join(backupDir, "backup_recent.db")
	require.NoError(t, os.WriteFile(fresh, []byte("fresh"), 0o644))

	logger := zerolog.Nop()
	svc := NewBackupService("", config.BackupConfig{
		Enabled:       true,
		StoragePath:   backupDir,
		RetentionDays: 7,
	}, &logger)

	svc.CleanupOldBackups()

	entries, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "backup_recent.db", entries[0].Name())
}
