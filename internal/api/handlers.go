package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tablebook/internal/database"
	"tablebook/internal/models"
	"tablebook/internal/service"
)

type createReservationRequest struct {
	UserID   int64  `json:"user_id"`
	UserRole string `json:"user_role"`
	Guests   int    `json:"guests"`
	Time     string `json:"time"` // RFC3339
}

type joinWaitlistRequest struct {
	UserID int64 `json:"user_id"`
	Guests int   `json:"guests"`
}

func (s *HTTPServer) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	var body createReservationRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	start, err := time.Parse(time.RFC3339, strings.TrimSpace(body.Time))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid time format; expected RFC3339")
		return
	}
	if body.UserRole == "" {
		body.UserRole = "guest"
	}

	reservation, alternatives, err := s.scheduler.Create(r.Context(), body.UserID, body.UserRole, body.Guests, start)
	if err != nil {
		if errors.Is(err, database.ErrNoTable) || errors.Is(err, database.ErrSlotTaken) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":        err.Error(),
				"alternatives": formatTimes(alternatives),
			})
			return
		}
		writeBusinessError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, reservation)
}

func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.Cancel(r.Context(), r.PathValue("code")); err != nil {
		writeBusinessError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": models.StatusCancelled})
}

func (s *HTTPServer) handleFinish(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.Finish(r.Context(), r.PathValue("code")); err != nil {
		writeBusinessError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": models.StatusFinished})
}

func (s *HTTPServer) handleCheckin(w http.ResponseWriter, r *http.Request) {
	result, err := s.checkin.Checkin(r.Context(), r.PathValue("code"))
	if err != nil {
		writeBusinessError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleGetReservation(w http.ResponseWriter, r *http.Request) {
	reservation, err := s.store.GetReservationByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		writeBusinessError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reservation)
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if dateStr == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	day, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	guests, err := strconv.Atoi(r.URL.Query().Get("guests"))
	if err != nil || guests <= 0 {
		writeError(w, http.StatusBadRequest, "guests must be a positive integer")
		return
	}

	times, err := s.finder.AvailableStartTimes(r.Context(), guests, day)
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"date":  dateStr,
		"times": formatTimes(times),
	})
}

func (s *HTTPServer) handleJoinWaitlist(w http.ResponseWriter, r *http.Request) {
	var body joinWaitlistRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	entry, reservation, err := s.waitlist.JoinNow(r.Context(), body.UserID, body.Guests)
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	resp := map[string]any{"entry": entry}
	if reservation != nil {
		resp["reservation"] = reservation
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *HTTPServer) handleConfirmArrival(w http.ResponseWriter, r *http.Request) {
	reservation, err := s.waitlist.ConfirmArrival(r.Context(), r.PathValue("code"))
	if err != nil {
		writeBusinessError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reservation)
}

func (s *HTTPServer) handleLeaveWaitlist(w http.ResponseWriter, r *http.Request) {
	if err := s.waitlist.Leave(r.Context(), r.PathValue("code")); err != nil {
		writeBusinessError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": models.WaitingStatusCancelled})
}

func (s *HTTPServer) handleTables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tables": s.store.GetTables()})
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeBusinessError maps the engine's sentinel errors onto HTTP codes.
func writeBusinessError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrAlreadyTerminal),
		errors.Is(err, database.ErrSlotTaken),
		errors.Is(err, database.ErrNoTable),
		errors.Is(err, service.ErrCheckinTooEarly),
		errors.Is(err, service.ErrCheckinExpired),
		errors.Is(err, service.ErrNoOffer),
		errors.Is(err, service.ErrOfferExpired):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, database.ErrPastDate),
		errors.Is(err, database.ErrDateTooFar),
		errors.Is(err, service.ErrInvalidGuests):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func formatTimes(times []time.Time) []string {
	out := make([]string, 0, len(times))
	for _, t := range times {
		out = append(out, t.UTC().Format(time.RFC3339))
	}
	return out
}
