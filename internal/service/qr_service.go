package service

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"
	"time"

	"labkiosk/internal/database"
	"labkiosk/internal/domain"
	"labkiosk/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// uuidRe принимает UUID версий 1-5 в любом регистре.
var uuidRe = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[1-5][0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}`)

type QRService struct {
	repo       domain.Repository
	authz      domain.Authorizer
	baseURL    string
	defaultTTL int // минуты
	logger     *zerolog.Logger
}

func NewQRService(repo domain.Repository, authz domain.Authorizer, baseURL string, defaultTTLMinutes int, logger *zerolog.Logger) *QRService {
	if defaultTTLMinutes <= 0 {
		defaultTTLMinutes = models.DefaultTokenTTLMinutes
	}
	return &QRService{
		repo:       repo,
		authz:      authz,
		baseURL:    strings.TrimRight(baseURL, "/"),
		defaultTTL: defaultTTLMinutes,
		logger:     logger,
	}
}

// Issue выпускает одноразовый токен для подтвержденной или выданной брони.
// ttlMinutes <= 0 означает срок по умолчанию.
func (s *QRService) Issue(ctx context.Context, actorID, bookingID int64, ttlMinutes int) (*models.QRToken, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != actorID && !s.authz.HasAnyRole(ctx, actorID, models.RoleAdmin, models.RoleLabStaff) {
		return nil, ErrForbidden
	}
	if !models.QREligibleStatus(booking.Status) {
		return nil, database.ErrNotEligible
	}

	if ttlMinutes <= 0 {
		ttlMinutes = s.defaultTTL
	}

	token := &models.QRToken{
		BookingID: bookingID,
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().UTC().Add(time.Duration(ttlMinutes) * time.Minute),
	}
	if err := s.repo.CreateQRToken(ctx, token); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", bookingID).Msg("create qr token failed")
		return nil, err
	}
	return token, nil
}

// ScanURL строит ссылку, которую кодирует QR-картинка.
func (s *QRService) ScanURL(token string) string {
	return s.baseURL + "/api/v1/kiosk/scan?token=" + url.QueryEscape(token)
}

// LatestValid возвращает последний живой токен брони, nil если такого нет.
func (s *QRService) LatestValid(ctx context.Context, actorID, bookingID int64) (*models.QRToken, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != actorID && !s.authz.HasAnyRole(ctx, actorID, models.RoleAdmin, models.RoleLabStaff) {
		return nil, ErrForbidden
	}

	token, err := s.repo.GetLatestValidToken(ctx, bookingID)
	if err != nil {
		if errors.Is(err, database.ErrTokenNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return token, nil
}

// ResolveToken вытаскивает значение токена из сырой строки сканера: сначала
// параметр token из URL, затем первый UUID в тексте, иначе строка как есть.
func ResolveToken(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if u, err := url.Parse(raw); err == nil {
		if v := u.Query().Get("token"); v != "" {
			return v
		}
	}
	if m := uuidRe.FindString(raw); m != "" {
		return m
	}
	return raw
}
