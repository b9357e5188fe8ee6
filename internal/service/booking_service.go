package service

import (
	"context"
	"time"

	"labkiosk/internal/database"
	"labkiosk/internal/domain"
	"labkiosk/internal/events"
	"labkiosk/internal/models"

	"github.com/rs/zerolog"
)

// CreateBookingInput carries the caller-supplied booking fields.
type CreateBookingInput struct {
	LabID       int64
	EquipmentID *int64
	Title       string
	StartsAt    time.Time
	EndsAt      time.Time
	Notes       string
}

type BookingService struct {
	repo         domain.Repository
	authz        domain.Authorizer
	eventBus     domain.EventPublisher
	notifyWorker domain.NotifyWorker
	logger       *zerolog.Logger
}

func NewBookingService(repo domain.Repository, authz domain.Authorizer, eventBus domain.EventPublisher, notifyWorker domain.NotifyWorker, logger *zerolog.Logger) *BookingService {
	return &BookingService{
		repo:         repo,
		authz:        authz,
		eventBus:     eventBus,
		notifyWorker: notifyWorker,
		logger:       logger,
	}
}

// CreateBooking валидирует заявку и создает pending-бронь. Для конкретного
// оборудования пересечение с активными бронями проверяется повторно внутри
// транзакции вставки. Брони «любое оборудование лаборатории» (EquipmentID ==
// nil) проверку пересечения не проходят: конфликтовать может только единица
// оборудования.
func (s *BookingService) CreateBooking(ctx context.Context, actorID int64, input CreateBookingInput) (*models.Booking, error) {
	booking := &models.Booking{
		UserID:      actorID,
		LabID:       input.LabID,
		EquipmentID: input.EquipmentID,
		Title:       input.Title,
		StartsAt:    input.StartsAt,
		EndsAt:      input.EndsAt,
		Status:      models.StatusPending,
		Notes:       input.Notes,
	}
	if booking.Title == "" {
		booking.Title = "Booking"
	}
	if !booking.WindowValid() {
		return nil, database.ErrInvalidWindow
	}

	if _, err := s.repo.GetLab(ctx, input.LabID); err != nil {
		return nil, err
	}

	if input.EquipmentID != nil {
		eq, err := s.repo.GetEquipment(ctx, *input.EquipmentID)
		if err != nil {
			return nil, err
		}
		if eq.LabID != input.LabID {
			return nil, database.ErrEquipmentLabMismatch
		}
		// Быстрый отказ без транзакции записи; решающая проверка
		// повторяется внутри транзакции вставки.
		busy, err := s.repo.HasOverlap(ctx, *input.EquipmentID, booking.StartsAt, booking.EndsAt)
		if err != nil {
			return nil, err
		}
		if busy {
			return nil, database.ErrNotAvailable
		}
	}

	if err := s.repo.CreateBookingWithGuard(ctx, booking); err != nil {
		s.logger.Error().Err(err).Int64("user_id", actorID).Int64("lab_id", input.LabID).Msg("create booking failed")
		return nil, err
	}

	s.publishEvent(events.EventBookingCreated, booking, actorID)
	s.enqueueNotify(ctx, events.EventBookingCreated, booking)
	return booking, nil
}

// ApproveBooking подтверждает pending-бронь. Для брони в любом другом статусе
// возвращает ошибку и ничего не меняет.
func (s *BookingService) ApproveBooking(ctx context.Context, actorID, bookingID int64) error {
	if !s.authz.HasAnyRole(ctx, actorID, models.RoleAdmin, models.RoleLabStaff) {
		return ErrForbidden
	}

	if err := s.repo.ApproveBooking(ctx, bookingID, actorID); err != nil {
		return err
	}

	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err == nil {
		s.publishEvent(events.EventBookingConfirmed, booking, actorID)
		s.enqueueNotify(ctx, events.EventBookingConfirmed, booking)
	}
	return nil
}

func (s *BookingService) CancelBooking(ctx context.Context, actorID, bookingID int64) error {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if err := s.requireOwnerOrStaff(ctx, actorID, booking); err != nil {
		return err
	}
	if booking.Status != models.StatusPending && booking.Status != models.StatusConfirmed {
		return ErrNotCancellable
	}

	if err := s.repo.UpdateBookingStatusWithVersion(ctx, bookingID, booking.Version, models.StatusCancelled); err != nil {
		return err
	}

	booking.Status = models.StatusCancelled
	s.publishEvent(events.EventBookingCancelled, booking, actorID)
	s.enqueueNotify(ctx, events.EventBookingCancelled, booking)
	return nil
}

// UpdateBookingStatus прямое редактирование статуса подтверждающей ролью.
// Значения вне закрытого перечня отклоняются до записи.
func (s *BookingService) UpdateBookingStatus(ctx context.Context, actorID, bookingID int64, status string) error {
	if !models.ValidStatus(status) {
		return database.ErrUnknownStatus
	}
	if !s.authz.HasAnyRole(ctx, actorID, models.RoleAdmin, models.RoleLabStaff) {
		return ErrForbidden
	}
	return s.repo.UpdateBookingStatus(ctx, bookingID, status)
}

// DeleteBooking удаляет бронь вместе с токенами и журналами. Ошибка удаления
// логируется с контекстом и возвращается вызывающему, не роняя его.
func (s *BookingService) DeleteBooking(ctx context.Context, actorID, bookingID int64) error {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if err := s.requireOwnerOrStaff(ctx, actorID, booking); err != nil {
		return err
	}

	if err := s.repo.DeleteBooking(ctx, bookingID); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", bookingID).Int64("actor_id", actorID).Msg("delete booking failed")
		return err
	}

	s.publishEvent(events.EventBookingDeleted, booking, actorID)
	return nil
}

func (s *BookingService) GetBooking(ctx context.Context, actorID, bookingID int64) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwnerOrStaff(ctx, actorID, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

// UnavailableEquipment возвращает занятое оборудование лаборатории в окне.
func (s *BookingService) UnavailableEquipment(ctx context.Context, labID int64, startsAt, endsAt time.Time) ([]int64, error) {
	if _, err := s.repo.GetLab(ctx, labID); err != nil {
		return nil, err
	}
	return s.repo.UnavailableEquipment(ctx, labID, startsAt, endsAt)
}

func (s *BookingService) GetPendingBookings(ctx context.Context, actorID int64) ([]*models.Booking, error) {
	if !s.authz.HasAnyRole(ctx, actorID, models.RoleAdmin, models.RoleLabStaff) {
		return nil, ErrForbidden
	}
	return s.repo.GetPendingBookings(ctx)
}

// ListBookings: персонал видит все брони периода, остальные только свои.
func (s *BookingService) ListBookings(ctx context.Context, actorID int64, start, end time.Time) ([]*models.Booking, error) {
	if s.authz.HasAnyRole(ctx, actorID, models.RoleAdmin, models.RoleLabStaff) {
		return s.repo.GetBookingsByRange(ctx, start, end)
	}
	return s.repo.GetUserBookings(ctx, actorID)
}

func (s *BookingService) requireOwnerOrStaff(ctx context.Context, actorID int64, booking *models.Booking) error {
	if booking.UserID == actorID {
		return nil
	}
	if s.authz.HasAnyRole(ctx, actorID, models.RoleAdmin, models.RoleLabStaff) {
		return nil
	}
	return ErrForbidden
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, actorID int64) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:   booking.ID,
		UserID:      booking.UserID,
		LabID:       booking.LabID,
		EquipmentID: booking.EquipmentID,
		Status:      booking.Status,
		StartsAt:    booking.StartsAt,
		EndsAt:      booking.EndsAt,
		ActorID:     actorID,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

func (s *BookingService) enqueueNotify(ctx context.Context, taskType string, booking *models.Booking) {
	if s.notifyWorker == nil {
		return
	}
	if err := s.notifyWorker.EnqueueBookingEvent(ctx, taskType, booking); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Str("task", taskType).Msg("notify enqueue error")
	}
}
