// Package api exposes the HTTP surface: availability queries, conflict
// checks, ad-hoc bookings and XLSX report downloads.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"bandroom/internal/conflict"
	"bandroom/internal/interval"
	"bandroom/internal/model"
	"bandroom/internal/report"
	"bandroom/internal/reservation"
)

const (
	// MaxAvailabilityDaysRange is the maximum number of days allowed
	// in an availability request.
	MaxAvailabilityDaysRange = 90

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Store is the read surface the API serves from.
type Store interface {
	GetRoom(ctx context.Context, id int64) (*model.Room, error)
	ListActiveRooms(ctx context.Context) ([]model.Room, error)
}

// HTTPServer serves the scheduler's HTTP endpoints.
type HTTPServer struct {
	store        Store
	checker      *conflict.Checker
	reservations *reservation.Service
	exporter     *report.Exporter
	logger       *zerolog.Logger
}

// NewHTTPServer creates the server.
func NewHTTPServer(store Store, checker *conflict.Checker, reservations *reservation.Service, exporter *report.Exporter, logger *zerolog.Logger) *HTTPServer {
	return &HTTPServer{
		store:        store,
		checker:      checker,
		reservations: reservations,
		exporter:     exporter,
		logger:       logger,
	}
}

// Routes registers handlers on mux.
func (s *HTTPServer) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/rooms/availability", s.handleRoomsAvailability)
	mux.HandleFunc("/api/conflicts/check", s.handleConflictCheck)
	mux.HandleFunc("/api/reservations", s.handleCreateReservation)
	mux.HandleFunc("/api/reservations/cancel", s.handleCancelReservation)
	mux.HandleFunc("/api/reports/occupancy", s.handleOccupancyReport)
	mux.HandleFunc("/api/reports/series", s.handleSeriesReport)
}

// ConflictCheckRequest is the request body for POST /api/conflicts/check.
type ConflictCheckRequest struct {
	RoomID               int64     `json:"room_id"`
	Start                time.Time `json:"start"`
	End                  time.Time `json:"end"`
	ExcludeReservationID int64     `json:"exclude_reservation_id,omitempty"`
}

// ConflictCheckResponse reports the conflicts for a candidate window.
type ConflictCheckResponse struct {
	Free      bool             `json:"free"`
	Conflicts *conflict.Result `json:"conflicts"`
}

// handleConflictCheck reports the conflicts for a candidate window.
// POST /api/conflicts/check
func (s *HTTPServer) handleConflictCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req ConflictCheckRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rng, err := interval.New(req.Start, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := s.store.GetRoom(r.Context(), req.RoomID); err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown room %d", req.RoomID))
		return
	}

	result, err := s.checker.Check(r.Context(), req.RoomID, rng, req.ExcludeReservationID)
	if err != nil {
		s.logger.Error().Err(err).Msg("conflict check failed")
		writeError(w, http.StatusInternalServerError, "conflict check failed")
		return
	}

	writeJSON(w, http.StatusOK, ConflictCheckResponse{
		Free:      result.Empty(),
		Conflicts: result,
	})
}

// AvailabilityRequest is the request body for POST /api/rooms/availability.
type AvailabilityRequest struct {
	StartDate  string  `json:"start_date"` // Format: YYYY-MM-DD
	EndDate    string  `json:"end_date"`   // Format: YYYY-MM-DD
	StartClock string  `json:"start_clock"`
	EndClock   string  `json:"end_clock"`
	RoomIDs    []int64 `json:"room_ids,omitempty"` // Optional: filter by room IDs
}

// DateAvailability represents availability for a single date.
type DateAvailability struct {
	Date      string `json:"date"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"` // "reservation", "production", "closure"
}

// RoomAvailability represents a room with its availability per date.
type RoomAvailability struct {
	ID           int64              `json:"id"`
	Name         string             `json:"name"`
	Availability []DateAvailability `json:"availability"`
}

// AvailabilityResponse is the response for POST /api/rooms/availability.
type AvailabilityResponse struct {
	Rooms  []RoomAvailability `json:"rooms"`
	Period struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"period"`
}

// handleRoomsAvailability returns per-date availability of a daily time
// window for each room. POST /api/rooms/availability
func (s *HTTPServer) handleRoomsAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req AvailabilityRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	startDate, endDate, err := validateAvailabilityRequest(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rooms, err := s.store.ListActiveRooms(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("list rooms failed")
		writeError(w, http.StatusInternalServerError, "list rooms failed")
		return
	}

	out := make([]RoomAvailability, 0)
	for _, room := range rooms {
		if !includeRoom(room.ID, req.RoomIDs) {
			continue
		}
		availability, err := s.roomAvailabilityDates(r.Context(), room.ID, startDate, endDate, req.StartClock, req.EndClock)
		if err != nil {
			s.logger.Error().Err(err).Int64("room_id", room.ID).Msg("availability query failed")
			writeError(w, http.StatusInternalServerError, "availability query failed")
			return
		}
		out = append(out, RoomAvailability{ID: room.ID, Name: room.Name, Availability: availability})
	}

	response := AvailabilityResponse{Rooms: out}
	response.Period.Start = req.StartDate
	response.Period.End = req.EndDate
	writeJSON(w, http.StatusOK, response)
}

func (s *HTTPServer) roomAvailabilityDates(ctx context.Context, roomID int64, start, end time.Time, startClock, endClock string) ([]DateAvailability, error) {
	availability := make([]DateAvailability, 0)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		winStart, err := clockOnDate(d, startClock)
		if err != nil {
			return nil, err
		}
		winEnd, err := clockOnDate(d, endClock)
		if err != nil {
			return nil, err
		}
		rng, err := interval.New(winStart, winEnd)
		if err != nil {
			return nil, err
		}

		result, err := s.checker.Check(ctx, roomID, rng, 0)
		if err != nil {
			return nil, err
		}

		entry := DateAvailability{Date: d.Format("2006-01-02"), Available: result.Empty()}
		if !result.Empty() {
			entry.Reason = result.All()[0].Kind
		}
		availability = append(availability, entry)
	}
	return availability, nil
}

func validateAvailabilityRequest(req *AvailabilityRequest) (start, end time.Time, err error) {
	if req.StartDate == "" || req.EndDate == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date and end_date are required")
	}

	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date format; expected YYYY-MM-DD")
	}
	endDate, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date format; expected YYYY-MM-DD")
	}
	if startDate.After(endDate) {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date must be before or equal to end_date")
	}

	days := int(endDate.Sub(startDate).Hours() / 24)
	if days > MaxAvailabilityDaysRange {
		return time.Time{}, time.Time{}, fmt.Errorf("date range exceeds maximum of %d days", MaxAvailabilityDaysRange)
	}

	if req.StartClock == "" {
		req.StartClock = "00:00"
	}
	if req.EndClock == "" {
		req.EndClock = "23:59"
	}
	return startDate, endDate, nil
}

func includeRoom(id int64, filter []int64) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if f == id {
			return true
		}
	}
	return false
}

func clockOnDate(date time.Time, clock string) (time.Time, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid clock %q; expected HH:MM", clock)
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, date.Location()), nil
}

// CreateReservationRequest is the request body for POST /api/reservations.
type CreateReservationRequest struct {
	RoomID  int64     `json:"room_id"`
	BandID  int64     `json:"band_id"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Comment string    `json:"comment,omitempty"`
}

// handleCreateReservation books a single ad-hoc rehearsal.
// POST /api/reservations
func (s *HTTPServer) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req CreateReservationRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if _, err := s.store.GetRoom(r.Context(), req.RoomID); err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown room %d", req.RoomID))
		return
	}

	res := &model.Reservation{
		RoomID:    req.RoomID,
		BandID:    req.BandID,
		StartTime: req.Start,
		EndTime:   req.End,
		Comment:   req.Comment,
	}
	if err := s.reservations.Create(r.Context(), res); err != nil {
		var conflictErr *conflict.Error
		if errors.As(err, &conflictErr) {
			writeJSON(w, http.StatusConflict, map[string]interface{}{
				"error":     "time range conflicts with existing booking",
				"conflicts": conflictErr.Result,
			})
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

// CancelReservationRequest is the request body for POST /api/reservations/cancel.
type CancelReservationRequest struct {
	ReservationID int64 `json:"reservation_id"`
}

// handleCancelReservation frees a booked slot.
// POST /api/reservations/cancel
func (s *HTTPServer) handleCancelReservation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req CancelReservationRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.reservations.Cancel(r.Context(), req.ReservationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleOccupancyReport streams an XLSX occupancy report, one sheet per
// room. GET /api/reports/occupancy?from=YYYY-MM-DD&to=YYYY-MM-DD
func (s *HTTPServer) handleOccupancyReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use GET")
		return
	}

	from, err := time.Parse("2006-01-02", r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid or missing from; expected YYYY-MM-DD")
		return
	}
	to, err := time.Parse("2006-01-02", r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid or missing to; expected YYYY-MM-DD")
		return
	}
	if from.After(to) {
		writeError(w, http.StatusBadRequest, "from must be before or equal to to")
		return
	}

	// The workbook is built in memory so an export failure can still
	// produce an error status.
	var buf bytes.Buffer
	if err := s.exporter.ExportOccupancy(r.Context(), from, to.AddDate(0, 0, 1), &buf); err != nil {
		s.logger.Error().Err(err).Msg("occupancy export failed")
		writeError(w, http.StatusInternalServerError, "occupancy export failed")
		return
	}
	sendXLSX(w, "occupancy.xlsx", &buf)
}

// handleSeriesReport streams the full instance history of one series as
// XLSX. GET /api/reports/series?id=N
func (s *HTTPServer) handleSeriesReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use GET")
		return
	}

	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid or missing id")
		return
	}

	var buf bytes.Buffer
	if err := s.exporter.ExportSeriesHistory(r.Context(), id, &buf); err != nil {
		s.logger.Error().Err(err).Int64("series_id", id).Msg("series export failed")
		writeError(w, http.StatusNotFound, fmt.Sprintf("series %d not found", id))
		return
	}
	sendXLSX(w, fmt.Sprintf("series-%d.xlsx", id), &buf)
}

func sendXLSX(w http.ResponseWriter, filename string, buf *bytes.Buffer) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
