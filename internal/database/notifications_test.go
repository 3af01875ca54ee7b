package database

import (
	"context"
	"testing"
	"time"

	"tablebook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNotification(kind string, deliverAt time.Time) *models.ScheduledNotification {
	return &models.ScheduledNotification{
		UserID:    300,
		Channel:   "log",
		Kind:      kind,
		Body:      "test body",
		DeliverAt: deliverAt,
		Status:    "pending",
	}
}

func TestCreateNotification(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	n := newNotification(models.NotifyKindReminder, time.Now())
	require.NoError(t, db.CreateNotification(ctx, n))
	assert.NotZero(t, n.ID)
	assert.False(t, n.CreatedAt.IsZero())
}

func TestGetDueNotifications(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	due := newNotification(models.NotifyKindReminder, time.Now().Add(-time.Minute))
	require.NoError(t, db.CreateNotification(ctx, due))

	future := newNotification(models.NotifyKindReminder, time.Now().Add(time.Hour))
	require.NoError(t, db.CreateNotification(ctx, future))

	got, err := db.GetDueNotifications(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, due.ID, got[0].ID)
}

func TestGetDueNotifications_HonorsNextRetryAt(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	n := newNotification(models.NotifyKindReminder, time.Now().Add(-time.Minute))
	require.NoError(t, db.CreateNotification(ctx, n))

	// Ретрай назначен на будущее — строка не выбирается
	retryAt := time.Now().Add(10 * time.Minute)
	require.NoError(t, db.UpdateNotificationStatus(ctx, n.ID, "retry", "send failed", &retryAt))

	got, err := db.GetDueNotifications(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	past := time.Now().Add(-time.Second)
	require.NoError(t, db.UpdateNotificationStatus(ctx, n.ID, "retry", "send failed", &past))

	got, err = db.GetDueNotifications(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].RetryCount)
	assert.Equal(t, "send failed", got[0].LastError)
}

func TestUpdateNotificationStatus_Terminal(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	n := newNotification(models.NotifyKindTableAvailable, time.Now().Add(-time.Minute))
	require.NoError(t, db.CreateNotification(ctx, n))

	require.NoError(t, db.UpdateNotificationStatus(ctx, n.ID, "delivered", "", nil))

	got, err := db.GetDueNotifications(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}
