package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"labkiosk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStateRepository(t *testing.T) {
	repo := NewMemoryStateRepository(time.Hour)
	ctx := context.Background()

	t.Run("SetAndGetState", func(t *testing.T) {
		state := &models.KioskState{KioskLabel: "Front Desk", LastMessage: "test"}
		err := repo.SetState(ctx, state)
		require.NoError(t, err)

		got, err := repo.GetState(ctx, "Front Desk")
		require.NoError(t, err)
		assert.Equal(t, state, got)
	})

	t.Run("ClearState", func(t *testing.T) {
		err := repo.ClearState(ctx, "Front Desk")
		require.NoError(t, err)
		got, _ := repo.GetState(ctx, "Front Desk")
		assert.Nil(t, got)
	})

	t.Run("RateLimit", func(t *testing.T) {
		kiosk := "Gate A"
		allowed, _ := repo.CheckRateLimit(ctx, kiosk, 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, kiosk, 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, kiosk, 2, time.Second)
		assert.False(t, allowed)

		// Wait for expiry
		time.Sleep(time.Second + 10*time.Millisecond)
		allowed, _ = repo.CheckRateLimit(ctx, kiosk, 2, time.Second)
		assert.True(t, allowed)
	})

	t.Run("RateLimitConcurrent", func(t *testing.T) {
		kiosk := "Gate B"
		const total = 50
		limit := 10

		var wg sync.WaitGroup
		var mu sync.Mutex
		allowedCount := 0

		for i := 0; i < total; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := repo.CheckRateLimit(ctx, kiosk, limit, time.Minute)
				require.NoError(t, err)
				if ok {
					mu.Lock()
					allowedCount++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, limit, allowedCount)
	})
}
