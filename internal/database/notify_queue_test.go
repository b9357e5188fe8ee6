package database

import (
	"context"
	"testing"
	"time"

	"labkiosk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyQueue(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.NotifyTask{
		TaskType:  "booking_created",
		BookingID: 1,
		Payload:   `{"booking_id":1}`,
		Status:    "pending",
	}
	require.NoError(t, db.CreateNotifyTask(ctx, task))
	assert.NotZero(t, task.ID)

	pending, err := db.GetPendingNotifyTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "booking_created", pending[0].TaskType)

	// Отложенная до будущего retry-задача не выбирается.
	future := time.Now().Add(time.Hour)
	require.NoError(t, db.UpdateNotifyTaskStatus(ctx, task.ID, "retry", "send failed", &future))

	pending, err = db.GetPendingNotifyTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Просроченный next_retry_at возвращает задачу в выборку.
	past := time.Now().Add(-time.Minute)
	require.NoError(t, db.UpdateNotifyTaskStatus(ctx, task.ID, "retry", "send failed", &past))

	pending, err = db.GetPendingNotifyTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].RetryCount)

	require.NoError(t, db.UpdateNotifyTaskStatus(ctx, task.ID, "completed", "", nil))
	pending, err = db.GetPendingNotifyTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	failed := &models.NotifyTask{TaskType: "booking_cancelled", BookingID: 2, Payload: "{}", Status: "pending"}
	require.NoError(t, db.CreateNotifyTask(ctx, failed))
	require.NoError(t, db.UpdateNotifyTaskStatus(ctx, failed.ID, "failed", "gave up", nil))

	failures, err := db.GetFailedNotifyTasks(ctx)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	require.NotNil(t, failures[0].LastError)
	assert.Equal(t, "gave up", *failures[0].LastError)
}
