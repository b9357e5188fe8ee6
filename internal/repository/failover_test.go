package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"labkiosk/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockStateRepo struct {
	mock.Mock
}

func (m *mockStateRepo) GetState(ctx context.Context, kioskLabel string) (*models.KioskState, error) {
	args := m.Called(ctx, kioskLabel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.KioskState), args.Error(1)
}

func (m *mockStateRepo) SetState(ctx context.Context, state *models.KioskState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *mockStateRepo) ClearState(ctx context.Context, kioskLabel string) error {
	args := m.Called(ctx, kioskLabel)
	return args.Error(0)
}

func (m *mockStateRepo) CheckRateLimit(ctx context.Context, kioskLabel string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, kioskLabel, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestFailoverStateRepository(t *testing.T) {
	primary := new(mockStateRepo)
	fallback := new(mockStateRepo)
	logger := zerolog.New(io.Discard)
	repo := NewFailoverStateRepository(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		state := &models.KioskState{KioskLabel: "A"}
		primary.On("GetState", ctx, "A").Return(state, nil).Once()

		got, err := repo.GetState(ctx, "A")
		assert.NoError(t, err)
		assert.Equal(t, state, got)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		state := &models.KioskState{KioskLabel: "B"}
		primary.On("GetState", ctx, "B").Return(nil, errors.New("fail")).Once()
		fallback.On("GetState", ctx, "B").Return(state, nil).Once()

		got, err := repo.GetState(ctx, "B")
		assert.NoError(t, err)
		assert.Equal(t, state, got)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		repo.isDown.Store(true)
		repo.lastCheck = time.Now().Add(-2 * time.Minute)

		state := &models.KioskState{KioskLabel: "C"}
		primary.On("GetState", ctx, "C").Return(state, nil).Once()

		got, err := repo.GetState(ctx, "C")
		assert.NoError(t, err)
		assert.Equal(t, state, got)
		assert.False(t, repo.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("RecoveryAttemptFail", func(t *testing.T) {
		repo.isDown.Store(true)
		repo.lastCheck = time.Now().Add(-2 * time.Minute)

		primary.On("GetState", ctx, "D").Return(nil, errors.New("still fail")).Once()
		fallback.On("GetState", ctx, "D").Return(nil, nil).Once()

		_, err := repo.GetState(ctx, "D")
		assert.NoError(t, err)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("SetStateFailover", func(t *testing.T) {
		repo.isDown.Store(false)
		state := &models.KioskState{KioskLabel: "E"}
		primary.On("SetState", ctx, state).Return(errors.New("fail")).Once()
		fallback.On("SetState", ctx, state).Return(nil).Once()

		err := repo.SetState(ctx, state)
		assert.NoError(t, err)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("ClearStateFailover", func(t *testing.T) {
		repo.isDown.Store(false)
		primary.On("ClearState", ctx, "F").Return(errors.New("fail")).Once()
		fallback.On("ClearState", ctx, "F").Return(nil).Once()

		err := repo.ClearState(ctx, "F")
		assert.NoError(t, err)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("CheckRateLimitFailover", func(t *testing.T) {
		repo.isDown.Store(false)
		primary.On("CheckRateLimit", ctx, "G", 10, time.Minute).Return(false, errors.New("fail")).Once()
		fallback.On("CheckRateLimit", ctx, "G", 10, time.Minute).Return(true, nil).Once()

		allowed, err := repo.CheckRateLimit(ctx, "G", 10, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("AlreadyDownUsesFallback", func(t *testing.T) {
		repo.isDown.Store(true)
		repo.lastCheck = time.Now()
		state := &models.KioskState{KioskLabel: "H"}
		fallback.On("SetState", ctx, state).Return(nil).Once()
		fallback.On("CheckRateLimit", ctx, "H", 10, time.Minute).Return(true, nil).Once()

		assert.NoError(t, repo.SetState(ctx, state))
		allowed, err := repo.CheckRateLimit(ctx, "H", 10, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		fallback.AssertExpectations(t)
	})
}
