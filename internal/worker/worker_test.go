package worker

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"labkiosk/internal/database"
	"labkiosk/internal/models"

	"github.com/rs/zerolog"
)

type fakeNotifier struct {
	mu       sync.Mutex
	err      error
	messages []string
}

func (f *fakeNotifier) NotifyStaff(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, text)
	return nil
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testBooking(id int64) *models.Booking {
	now := time.Now()
	return &models.Booking{
		ID:       id,
		UserID:   1,
		LabID:    1,
		Title:    "Booking",
		Status:   models.StatusPending,
		StartsAt: now.Add(time.Hour),
		EndsAt:   now.Add(2 * time.Hour),
	}
}

func loadTaskStatus(t *testing.T, db *database.DB, id int64) (string, int, sql.NullTime) {
	t.Helper()
	var status string
	var retryCount int
	var nextRetry sql.NullTime
	err := db.QueryRow(`SELECT status, retry_count, next_retry_at FROM notify_queue WHERE id = ?`, id).
		Scan(&status, &retryCount, &nextRetry)
	if err != nil {
		t.Fatalf("load task: %v", err)
	}
	return status, retryCount, nextRetry
}

func TestProcessTaskSuccess(t *testing.T) {
	db := newTestDB(t)
	notifier := &fakeNotifier{}
	worker := NewNotifyWorker(db, notifier, nil, RetryPolicy{}, nil)

	ctx := context.Background()
	if err := worker.EnqueueBookingEvent(ctx, "booking_created", testBooking(1)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != "completed" {
		t.Fatalf("expected status=completed, got %s", status)
	}
	if retryCount != 0 {
		t.Fatalf("expected retry_count=0, got %d", retryCount)
	}
	if nextRetry.Valid {
		t.Fatalf("expected next_retry_at NULL on success")
	}
	if len(notifier.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(notifier.messages))
	}
	if !strings.Contains(notifier.messages[0], "New booking request") {
		t.Fatalf("unexpected message: %s", notifier.messages[0])
	}
	if !strings.Contains(notifier.messages[0], "Booking #1") {
		t.Fatalf("message missing booking id: %s", notifier.messages[0])
	}
}

func TestProcessTaskRetry(t *testing.T) {
	db := newTestDB(t)
	notifier := &fakeNotifier{err: errors.New("boom")}
	worker := NewNotifyWorker(db, notifier, nil, RetryPolicy{MaxRetries: 3, InitialDelay: time.Second}, nil)

	ctx := context.Background()
	if err := worker.EnqueueBookingEvent(ctx, "booking_created", testBooking(2)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != "retry" {
		t.Fatalf("expected status=retry, got %s", status)
	}
	if retryCount != 1 {
		t.Fatalf("expected retry_count=1, got %d", retryCount)
	}
	if !nextRetry.Valid || nextRetry.Time.Before(time.Now()) {
		t.Fatalf("expected next_retry_at in future, got %v", nextRetry)
	}
}

func TestProcessTaskFail(t *testing.T) {
	db := newTestDB(t)
	notifier := &fakeNotifier{err: errors.New("fatal")}
	worker := NewNotifyWorker(db, notifier, nil, RetryPolicy{MaxRetries: 1}, nil)

	ctx := context.Background()
	worker.EnqueueBookingEvent(ctx, "booking_created", testBooking(3))
	task, _ := worker.tryLocalQueue()
	worker.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != "failed" {
		t.Fatalf("expected status=failed, got %s", status)
	}
}

func TestEnqueueValidation(t *testing.T) {
	db := newTestDB(t)
	worker := NewNotifyWorker(db, &fakeNotifier{}, nil, RetryPolicy{}, nil)
	ctx := context.Background()

	if err := worker.EnqueueBookingEvent(ctx, "", testBooking(1)); err == nil {
		t.Fatalf("expected error for empty task type")
	}
	if err := worker.EnqueueBookingEvent(ctx, "booking_created", nil); err == nil {
		t.Fatalf("expected error for nil booking")
	}
	if err := worker.EnqueueBookingEvent(ctx, "booking_created", &models.Booking{}); err == nil {
		t.Fatalf("expected error for booking without id")
	}
}

func TestFormatMessage(t *testing.T) {
	p := notifyPayload{
		BookingID: 7,
		UserID:    3,
		LabID:     2,
		Title:     "Laser alignment",
		Status:    models.StatusConfirmed,
		StartsAt:  time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC),
		EndsAt:    time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC),
	}

	msg := formatMessage("booking_confirmed", p)
	for _, want := range []string{"Booking confirmed", "Booking #7", "Laser alignment", "Mar 05 10:00"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q: %s", want, msg)
		}
	}

	// Заголовок по умолчанию не дублируется в тексте.
	p.Title = "Booking"
	msg = formatMessage("equipment_returned", p)
	if strings.Contains(msg, "Title:") {
		t.Fatalf("default title should be omitted: %s", msg)
	}
	if !strings.Contains(msg, "Equipment returned") {
		t.Fatalf("unexpected head: %s", msg)
	}
}

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Second}

	if got := policy.NextDelay(1); got != time.Second {
		t.Fatalf("attempt 1: expected 1s, got %v", got)
	}
	if got := policy.NextDelay(2); got != 2*time.Second {
		t.Fatalf("attempt 2: expected 2s, got %v", got)
	}
	if got := policy.NextDelay(10); got != 5*time.Second {
		t.Fatalf("attempt 10: expected clamp to 5s, got %v", got)
	}
	if got := policy.NextDelay(0); got != time.Second {
		t.Fatalf("attempt 0: expected 1s, got %v", got)
	}
}
