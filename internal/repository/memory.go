package repository

import (
	"context"
	"sync"
	"time"

	"labkiosk/internal/models"
)

// MemoryStateRepository держит состояние киосков в памяти процесса.
// Используется как запасной вариант, когда Redis недоступен.
type MemoryStateRepository struct {
	states     sync.Map
	rateLimits sync.Map
	mu         sync.Mutex
	ttl        time.Duration
}

func NewMemoryStateRepository(ttl time.Duration) *MemoryStateRepository {
	return &MemoryStateRepository{
		ttl: ttl,
	}
}

func (r *MemoryStateRepository) GetState(ctx context.Context, kioskLabel string) (*models.KioskState, error) {
	val, ok := r.states.Load(kioskLabel)
	if !ok {
		return nil, nil
	}
	state := val.(*models.KioskState)
	if r.ttl > 0 && time.Since(state.LastScanAt) > r.ttl {
		r.states.Delete(kioskLabel)
		return nil, nil
	}
	return state, nil
}

func (r *MemoryStateRepository) SetState(ctx context.Context, state *models.KioskState) error {
	r.states.Store(state.KioskLabel, state)
	return nil
}

func (r *MemoryStateRepository) ClearState(ctx context.Context, kioskLabel string) error {
	r.states.Delete(kioskLabel)
	return nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemoryStateRepository) CheckRateLimit(ctx context.Context, kioskLabel string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	val, ok := r.rateLimits.Load(kioskLabel)

	var entry *rateLimitEntry
	if !ok {
		entry = &rateLimitEntry{
			count:     1,
			expiresAt: now.Add(window),
		}
	} else {
		entry = val.(*rateLimitEntry)
		if now.After(entry.expiresAt) {
			entry.count = 1
			entry.expiresAt = now.Add(window)
		} else {
			entry.count++
		}
	}

	r.rateLimits.Store(kioskLabel, entry)
	return entry.count <= limit, nil
}
