package service

import (
	"context"
	"errors"
	"time"

	"labkiosk/internal/config"
	"labkiosk/internal/database"
	"labkiosk/internal/domain"
	"labkiosk/internal/events"
	"labkiosk/internal/metrics"
	"labkiosk/internal/models"

	"github.com/rs/zerolog"
)

// Виды отказов сканирования, уходящие киоску в поле error_kind.
const (
	KindInvalidToken  = "invalid_token"
	KindExpiredOrUsed = "expired_or_used"
	KindNotEligible   = "not_eligible"
	KindRateLimited   = "rate_limited"
)

// ErrRateLimited возвращается, когда киоск превысил лимит сканирований.
var ErrRateLimited = errors.New("too many scans from this kiosk")

// ScanSummary показывается на экране киоска после удачного сканирования.
type ScanSummary struct {
	Student   string `json:"student"`
	Equipment string `json:"equipment"`
	Lab       string `json:"lab"`
	Window    string `json:"window"`
}

// ScanResult описывает исход обработки сканирования. Для отказа OK == false
// и заполнен Kind, для успеха заполнены Action и Summary.
type ScanResult struct {
	OK      bool         `json:"ok"`
	Action  string       `json:"action,omitempty"`
	Kind    string       `json:"error_kind,omitempty"`
	Message string       `json:"message"`
	Summary *ScanSummary `json:"summary,omitempty"`
}

type KioskService struct {
	repo     domain.Repository
	state    domain.StateRepository
	eventBus domain.EventPublisher
	cfg      config.KioskConfig
	logger   *zerolog.Logger
}

func NewKioskService(repo domain.Repository, state domain.StateRepository, eventBus domain.EventPublisher, cfg config.KioskConfig, logger *zerolog.Logger) *KioskService {
	if cfg.DefaultLabel == "" {
		cfg.DefaultLabel = models.DefaultKioskLabel
	}
	if cfg.RateLimitScans == 0 {
		cfg.RateLimitScans = models.RateLimitScans
	}
	if cfg.RateLimitWindow == 0 {
		cfg.RateLimitWindow = models.RateLimitWindow
	}
	return &KioskService{
		repo:     repo,
		state:    state,
		eventBus: eventBus,
		cfg:      cfg,
		logger:   logger,
	}
}

// Scan обрабатывает сырую строку со сканера киоска. Смена статуса брони,
// журнал использования и гашение токена происходят в одной транзакции;
// здесь остаются лимит частоты, человекочитаемый ответ и события.
func (s *KioskService) Scan(ctx context.Context, raw, kioskLabel string) (*ScanResult, error) {
	if kioskLabel == "" {
		kioskLabel = s.cfg.DefaultLabel
	}

	if s.state != nil {
		allowed, err := s.state.CheckRateLimit(ctx, kioskLabel, s.cfg.RateLimitScans, time.Duration(s.cfg.RateLimitWindow)*time.Second)
		if err != nil {
			s.logger.Warn().Err(err).Str("kiosk", kioskLabel).Msg("rate limit check failed, allowing scan")
		} else if !allowed {
			metrics.IncScan(KindRateLimited)
			return &ScanResult{
				OK:      false,
				Kind:    KindRateLimited,
				Message: "Too many scans, slow down.",
			}, ErrRateLimited
		}
	}

	tokenValue := ResolveToken(raw)
	outcome, err := s.repo.ScanWithToken(ctx, tokenValue, kioskLabel)
	if err != nil {
		result := rejectResult(err)
		if result == nil {
			s.logger.Error().Err(err).Str("kiosk", kioskLabel).Msg("scan failed")
			return nil, err
		}
		metrics.IncScan(result.Kind)
		s.rememberScan(ctx, kioskLabel, "", result.Message)
		return result, nil
	}

	result := &ScanResult{
		OK:      true,
		Action:  outcome.Action,
		Message: actionMessage(outcome.Action),
		Summary: s.buildSummary(ctx, outcome.Booking),
	}

	metrics.IncScan(outcome.Action)
	metrics.IncTransition(outcome.Booking.Status)
	s.rememberScan(ctx, kioskLabel, outcome.Action, result.Message)
	s.publishScanEvent(outcome, kioskLabel)

	s.logger.Info().
		Str("kiosk", kioskLabel).
		Str("action", outcome.Action).
		Int64("booking_id", outcome.Booking.ID).
		Msg("scan accepted")
	return result, nil
}

// rejectResult переводит ошибку хранилища в ответ киоску; nil для
// инфраструктурных ошибок, которые должны стать HTTP 500.
func rejectResult(err error) *ScanResult {
	switch {
	case errors.Is(err, database.ErrTokenNotFound):
		return &ScanResult{OK: false, Kind: KindInvalidToken, Message: "Invalid token."}
	case errors.Is(err, database.ErrTokenInvalid):
		return &ScanResult{OK: false, Kind: KindExpiredOrUsed, Message: "Token expired or already used."}
	case errors.Is(err, database.ErrNotEligible), errors.Is(err, database.ErrBookingNotFound):
		return &ScanResult{OK: false, Kind: KindNotEligible, Message: "Booking not eligible for check-in/out."}
	}
	return nil
}

func actionMessage(action string) string {
	if action == models.ActionCheckIn {
		return "Checked out successfully."
	}
	return "Returned successfully."
}

// buildSummary собирает карточку брони после коммита; отсутствующие
// оборудование и лаборатория отображаются прочерком.
func (s *KioskService) buildSummary(ctx context.Context, booking *models.Booking) *ScanSummary {
	summary := &ScanSummary{
		Student:   "—",
		Equipment: "—",
		Lab:       "—",
		Window: booking.StartsAt.Format(models.SummaryTimeFormat) +
			" → " + booking.EndsAt.Format(models.SummaryTimeFormat),
	}

	if user, err := s.repo.GetUser(ctx, booking.UserID); err == nil {
		summary.Student = user.Name
	}
	if booking.EquipmentID != nil {
		if eq, err := s.repo.GetEquipment(ctx, *booking.EquipmentID); err == nil {
			summary.Equipment = eq.Name
		}
	}
	if lab, err := s.repo.GetLab(ctx, booking.LabID); err == nil {
		summary.Lab = lab.Name
	}
	return summary
}

func (s *KioskService) rememberScan(ctx context.Context, kioskLabel, action, message string) {
	if s.state == nil {
		return
	}
	err := s.state.SetState(ctx, &models.KioskState{
		KioskLabel:  kioskLabel,
		LastAction:  action,
		LastMessage: message,
		LastScanAt:  time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("kiosk", kioskLabel).Msg("save kiosk state failed")
	}
}

func (s *KioskService) publishScanEvent(outcome *database.ScanOutcome, kioskLabel string) {
	if s.eventBus == nil {
		return
	}

	eventType := events.EventEquipmentCheckedIn
	if outcome.Action == models.ActionCheckOut {
		eventType = events.EventEquipmentReturned
	}

	booking := outcome.Booking
	payload := events.BookingEventPayload{
		BookingID:   booking.ID,
		UserID:      booking.UserID,
		LabID:       booking.LabID,
		EquipmentID: booking.EquipmentID,
		Status:      booking.Status,
		StartsAt:    booking.StartsAt,
		EndsAt:      booking.EndsAt,
		KioskLabel:  kioskLabel,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}
