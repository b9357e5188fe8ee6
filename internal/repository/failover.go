package repository

import (
	"context"
	"sync/atomic"
	"time"

	"labkiosk/internal/domain"
	"labkiosk/internal/models"

	"github.com/rs/zerolog"
)

// FailoverStateRepository пишет в primary (Redis), при его отказе
// переключается на fallback и раз в минуту пробует вернуться обратно.
type FailoverStateRepository struct {
	primary   domain.StateRepository
	fallback  domain.StateRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck time.Time
}

func NewFailoverStateRepository(primary, fallback domain.StateRepository, logger *zerolog.Logger) *FailoverStateRepository {
	return &FailoverStateRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverStateRepository) markDown(err error) {
	r.logger.Error().Err(err).Msg("primary state repository failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck = time.Now()
}

func (r *FailoverStateRepository) GetState(ctx context.Context, kioskLabel string) (*models.KioskState, error) {
	if !r.isDown.Load() {
		state, err := r.primary.GetState(ctx, kioskLabel)
		if err == nil {
			return state, nil
		}
		r.markDown(err)
	}

	// Через минуту после отказа пробуем primary еще раз.
	if r.isDown.Load() && time.Since(r.lastCheck) > time.Minute {
		state, err := r.primary.GetState(ctx, kioskLabel)
		if err == nil {
			r.isDown.Store(false)
			return state, nil
		}
		r.lastCheck = time.Now()
	}

	return r.fallback.GetState(ctx, kioskLabel)
}

func (r *FailoverStateRepository) SetState(ctx context.Context, state *models.KioskState) error {
	if !r.isDown.Load() {
		err := r.primary.SetState(ctx, state)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.SetState(ctx, state)
}

func (r *FailoverStateRepository) ClearState(ctx context.Context, kioskLabel string) error {
	if !r.isDown.Load() {
		err := r.primary.ClearState(ctx, kioskLabel)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.ClearState(ctx, kioskLabel)
}

func (r *FailoverStateRepository) CheckRateLimit(ctx context.Context, kioskLabel string, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() {
		allowed, err := r.primary.CheckRateLimit(ctx, kioskLabel, limit, window)
		if err == nil {
			return allowed, nil
		}
		r.markDown(err)
	}

	return r.fallback.CheckRateLimit(ctx, kioskLabel, limit, window)
}
