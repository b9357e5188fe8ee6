package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"labkiosk/internal/models"
	"labkiosk/internal/service"
)

// actorID достает идентификатор пользователя из доверенного заголовка,
// который проставляет внешний identity-провайдер.
func actorID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if raw == "" {
		return 0, errors.New("x-user-id header is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("x-user-id header is invalid")
	}
	return id, nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id in path")
	}
	return id, nil
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q; expected RFC3339", raw)
	}
	return t.UTC(), nil
}

func (s *HTTPServer) handleKioskScan(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TokenOrURL string `json:"token_or_url"`
		KioskLabel string `json:"kiosk_label"`
	}
	if r.Body != nil {
		// Пустое тело допустимо: токен может прийти в query.
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	if body.TokenOrURL == "" {
		body.TokenOrURL = r.URL.Query().Get("token")
	}
	if body.TokenOrURL == "" {
		writeError(w, http.StatusBadRequest, "token_or_url is required")
		return
	}

	result, err := s.kiosk.Scan(r.Context(), body.TokenOrURL, body.KioskLabel)
	if err != nil {
		if errors.Is(err, service.ErrRateLimited) {
			writeJSON(w, http.StatusTooManyRequests, result)
			return
		}
		s.writeServiceError(w, err)
		return
	}

	if !result.OK {
		writeJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleScanURL запасной текстовый ответ для QR-ссылок, открытых не киоском.
func (s *HTTPServer) handleScanURL(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("token")
	if raw == "" {
		http.Error(w, "token is required", http.StatusBadRequest)
		return
	}
	token := service.ResolveToken(raw)
	if token == "" {
		http.Error(w, "token is required", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "OK: token=%s\n", token)
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	labID, err := strconv.ParseInt(q.Get("lab_id"), 10, 64)
	if err != nil || labID <= 0 {
		writeError(w, http.StatusBadRequest, "lab_id is required")
		return
	}
	startsAt, err := parseTime(q.Get("starts_at"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	endsAt, err := parseTime(q.Get("ends_at"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !startsAt.Before(endsAt) {
		writeError(w, http.StatusBadRequest, "starts_at must be before ends_at")
		return
	}

	ids, err := s.bookings.UnavailableEquipment(r.Context(), labID, startsAt, endsAt)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"unavailable": ids})
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var body struct {
		LabID       int64  `json:"lab_id"`
		EquipmentID *int64 `json:"equipment_id"`
		Title       string `json:"title"`
		StartsAt    string `json:"starts_at"`
		EndsAt      string `json:"ends_at"`
		Notes       string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	startsAt, err := parseTime(body.StartsAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	endsAt, err := parseTime(body.EndsAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	booking, err := s.bookings.CreateBooking(r.Context(), actor, service.CreateBookingInput{
		LabID:       body.LabID,
		EquipmentID: body.EquipmentID,
		Title:       body.Title,
		StartsAt:    startsAt,
		EndsAt:      endsAt,
		Notes:       body.Notes,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "booking_id": booking.ID})
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	q := r.URL.Query()
	start := time.Now().UTC()
	end := start.AddDate(0, 1, 0)
	if raw := q.Get("from"); raw != "" {
		if start, err = parseTime(raw); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if raw := q.Get("to"); raw != "" {
		if end, err = parseTime(raw); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	var bookings []*models.Booking
	if q.Get("pending") == "1" {
		bookings, err = s.bookings.GetPendingBookings(r.Context(), actor)
	} else {
		bookings, err = s.bookings.ListBookings(r.Context(), actor, start, end)
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if bookings == nil {
		bookings = []*models.Booking{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	booking, err := s.bookings.GetBooking(r.Context(), actor, id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"booking": booking})
}

func (s *HTTPServer) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	if err := s.bookings.UpdateBookingStatus(r.Context(), actor, id, body.Status); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleDeleteBooking(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.bookings.DeleteBooking(r.Context(), actor, id); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleApprove(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.bookings.ApproveBooking(r.Context(), actor, id); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.bookings.CancelBooking(r.Context(), actor, id); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleIssueQR(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var body struct {
		TTLMinutes int `json:"ttl_minutes"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	token, err := s.qr.Issue(r.Context(), actor, id, body.TTLMinutes)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"ok":         true,
		"token":      token.Token,
		"url":        s.qr.ScanURL(token.Token),
		"expires_at": token.ExpiresAt.Format(time.RFC3339),
	})
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *HTTPServer) handleLatestQR(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, err := s.qr.LatestValid(r.Context(), actor, id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if token == nil {
		writeError(w, http.StatusNotFound, "no valid token for this booking")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"token":      token.Token,
		"url":        s.qr.ScanURL(token.Token),
		"expires_at": token.ExpiresAt.Format(time.RFC3339),
	})
}

func (s *HTTPServer) handleLabs(w http.ResponseWriter, r *http.Request) {
	labs, err := s.repo.GetActiveLabs(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if labs == nil {
		labs = []*models.Lab{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"labs": labs})
}

func (s *HTTPServer) handleLabEquipment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := s.repo.GetLab(r.Context(), id); err != nil {
		s.writeServiceError(w, err)
		return
	}

	equipment, err := s.repo.GetActiveEquipmentByLab(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if equipment == nil {
		equipment = []*models.Equipment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"equipment": equipment})
}
