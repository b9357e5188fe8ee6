package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"labkiosk/internal/config"
	"labkiosk/internal/database"
	"labkiosk/internal/domain"
	"labkiosk/internal/metrics"
	"labkiosk/internal/service"

	"github.com/rs/zerolog"
)

// HTTPServer обслуживает киоски и сервисных клиентов поверх net/http.
type HTTPServer struct {
	cfg      config.APIConfig
	repo     domain.Repository
	bookings *service.BookingService
	qr       *service.QRService
	kiosk    *service.KioskService
	server   *http.Server
	auth     *HTTPAuth
	logger   *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, repo domain.Repository, bookings *service.BookingService, qr *service.QRService, kiosk *service.KioskService, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:      cfg,
		repo:     repo,
		bookings: bookings,
		qr:       qr,
		kiosk:    kiosk,
		logger:   logger,
	}
	srv.auth = NewHTTPAuth(cfg)

	mux := http.NewServeMux()

	// Киоски не аутентифицируются; частоту сдерживает state repository.
	mux.HandleFunc("POST /api/v1/kiosk/scan", srv.handleKioskScan)
	mux.HandleFunc("GET /kiosk/scan-url", srv.handleScanURL)

	mux.HandleFunc("GET /api/v1/availability", srv.handleAvailability)

	mux.HandleFunc("POST /api/v1/bookings", srv.handleCreateBooking)
	mux.HandleFunc("GET /api/v1/bookings", srv.handleListBookings)
	mux.HandleFunc("GET /api/v1/bookings/{id}", srv.handleGetBooking)
	mux.HandleFunc("PATCH /api/v1/bookings/{id}", srv.handleUpdateStatus)
	mux.HandleFunc("DELETE /api/v1/bookings/{id}", srv.handleDeleteBooking)
	mux.HandleFunc("POST /api/v1/bookings/{id}/approve", srv.handleApprove)
	mux.HandleFunc("POST /api/v1/bookings/{id}/cancel", srv.handleCancel)
	mux.HandleFunc("POST /api/v1/bookings/{id}/qr", srv.handleIssueQR)
	mux.HandleFunc("GET /api/v1/bookings/{id}/qr", srv.handleLatestQR)

	mux.HandleFunc("GET /api/v1/labs", srv.handleLabs)
	mux.HandleFunc("GET /api/v1/labs/{id}/equipment", srv.handleLabEquipment)

	mux.HandleFunc("GET /healthz", srv.handleHealthz)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("http api listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		metrics.IncHTTP(r.URL.Path)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("dur", time.Since(start)).
			Msg("http request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// statusFromError переводит ошибку сервисного слоя в HTTP-статус:
// валидация 400, конфликт 422, не найдено 404, запрещено 403, остальное 500.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, database.ErrInvalidWindow),
		errors.Is(err, database.ErrUnknownStatus),
		errors.Is(err, database.ErrEquipmentLabMismatch):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrNotAvailable),
		errors.Is(err, database.ErrNotPending),
		errors.Is(err, database.ErrNotEligible),
		errors.Is(err, database.ErrConcurrentModification),
		errors.Is(err, service.ErrNotCancellable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, database.ErrBookingNotFound),
		errors.Is(err, database.ErrLabNotFound),
		errors.Is(err, database.ErrEquipmentNotFound),
		errors.Is(err, database.ErrUserNotFound),
		errors.Is(err, database.ErrTokenNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	status := statusFromError(err)
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("internal error")
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}
