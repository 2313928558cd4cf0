package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/flightdesk/reservation/internal/auth"
	"github.com/flightdesk/reservation/internal/database"
	"github.com/flightdesk/reservation/internal/service"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// SeatFeed streams seat changes of one flight over an upgraded connection.
type SeatFeed interface {
	ServeFlight(w http.ResponseWriter, r *http.Request, flightID uuid.UUID)
}

// Handler contains HTTP handlers for the API
type Handler struct {
	bookingService service.BookingService
	feed           SeatFeed
	logger         *zap.Logger
}

// NewHandler creates a new Handler instance. feed may be nil.
func NewHandler(bookingService service.BookingService, feed SeatFeed, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		bookingService: bookingService,
		feed:           feed,
		logger:         logger,
	}
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// respondServiceError maps the service error taxonomy onto status codes.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid input", Fields: verr.Fields})
	case errors.Is(err, service.ErrNotFound):
		respondError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, service.ErrSeatUnavailable):
		respondError(w, http.StatusConflict, "Seat is no longer available")
	case errors.Is(err, service.ErrConflict):
		respondError(w, http.StatusConflict, "Already exists")
	default:
		h.logger.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid "+what+" ID")
		return uuid.Nil, false
	}
	return id, true
}

func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return "", false
	}
	return id.UserID, true
}

// SearchFlights handles GET /api/flights/search
func (h *Handler) SearchFlights(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fields := map[string]string{}

	origin := q.Get("origin")
	if origin == "" {
		fields["origin"] = "is required"
	}
	destination := q.Get("destination")
	if destination == "" {
		fields["destination"] = "is required"
	}
	date, err := time.Parse(database.DateLayout, q.Get("date"))
	if err != nil {
		fields["date"] = "must be a date in YYYY-MM-DD format"
	}
	passengers := 1
	if raw := q.Get("passengers"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			fields["passengers"] = "must be a positive integer"
		}
		passengers = n
	}
	if len(fields) > 0 {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid input", Fields: fields})
		return
	}

	flights, err := h.bookingService.FindFlights(r.Context(), service.SearchQuery{
		Origin:      origin,
		Destination: destination,
		Date:        date,
		MinSeats:    passengers,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, flights)
}

// GetFlight handles GET /api/flights/{id}
func (h *Handler) GetFlight(w http.ResponseWriter, r *http.Request) {
	flightID, ok := pathID(w, r, "flight")
	if !ok {
		return
	}
	flight, err := h.bookingService.GetFlight(r.Context(), flightID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, flight)
}

// GetFlightSeats handles GET /api/flights/{id}/seats
func (h *Handler) GetFlightSeats(w http.ResponseWriter, r *http.Request) {
	flightID, ok := pathID(w, r, "flight")
	if !ok {
		return
	}
	seats, err := h.bookingService.ListFlightSeats(r.Context(), flightID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, seats)
}

// FlightSeatFeed handles GET /api/flights/{id}/ws
func (h *Handler) FlightSeatFeed(w http.ResponseWriter, r *http.Request) {
	if h.feed == nil {
		respondError(w, http.StatusServiceUnavailable, "Seat feed disabled")
		return
	}
	flightID, ok := pathID(w, r, "flight")
	if !ok {
		return
	}
	if _, err := h.bookingService.GetFlight(r.Context(), flightID); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.feed.ServeFlight(w, r, flightID)
}

type createBookingRequest struct {
	SeatNumber string            `json:"seatNumber"`
	Passenger  service.Passenger `json:"passenger"`
}

// CreateBooking handles POST /api/flights/{id}/bookings
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}
	flightID, ok := pathID(w, r, "flight")
	if !ok {
		return
	}
	var req createBookingRequest
	if !decodeBody(w, r, &req) {
		return
	}

	booking, err := h.bookingService.Reserve(r.Context(), service.ReserveRequest{
		UserID:     user,
		FlightID:   flightID,
		SeatNumber: req.SeatNumber,
		Passenger:  req.Passenger,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, booking)
}

// CancelBooking handles POST /api/bookings/{id}/cancel
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}
	bookingID, ok := pathID(w, r, "booking")
	if !ok {
		return
	}
	if err := h.bookingService.Cancel(r.Context(), user, bookingID); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Booking cancelled"})
}

// ListBookings handles GET /api/bookings?filter=
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}
	scope, err := service.ParseBookingScope(r.URL.Query().Get("filter"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	bookings, err := h.bookingService.ListBookings(r.Context(), user, scope)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, bookings)
}

// GetBooking handles GET /api/bookings/{id}
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}
	bookingID, ok := pathID(w, r, "booking")
	if !ok {
		return
	}
	booking, err := h.bookingService.GetBooking(r.Context(), user, bookingID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, booking)
}

// CreateAirline handles POST /api/admin/airlines
func (h *Handler) CreateAirline(w http.ResponseWriter, r *http.Request) {
	var req service.CreateAirlineRequest
	if !decodeBody(w, r, &req) {
		return
	}
	airline, err := h.bookingService.CreateAirline(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, airline)
}

// CreateAirport handles POST /api/admin/airports
func (h *Handler) CreateAirport(w http.ResponseWriter, r *http.Request) {
	var req service.CreateAirportRequest
	if !decodeBody(w, r, &req) {
		return
	}
	airport, err := h.bookingService.CreateAirport(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, airport)
}

// ProvisionFlight handles POST /api/admin/flights
func (h *Handler) ProvisionFlight(w http.ResponseWriter, r *http.Request) {
	var req service.ProvisionFlightRequest
	if !decodeBody(w, r, &req) {
		return
	}
	flight, err := h.bookingService.ProvisionFlight(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, flight)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
