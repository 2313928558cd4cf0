package router

import (
	"net/http"
	"time"

	"github.com/flightdesk/reservation/internal/auth"
	"github.com/flightdesk/reservation/internal/handlers"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const RequestTimeout = 15 * time.Second

// SetupRouter creates and configures the HTTP router
func SetupRouter(h *handlers.Handler, verifier *auth.Verifier, logger *zap.Logger) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(logger), middleware.Recoverer, corsMiddleware)

	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	// The seat feed outlives any request timeout, so it sits outside /api.
	r.HandleFunc("/api/flights/{id}/ws", h.FlightSeatFeed).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.Timeout(RequestTimeout))

	// Flights
	api.HandleFunc("/flights/search", h.SearchFlights).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/flights/{id}", h.GetFlight).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/flights/{id}/seats", h.GetFlightSeats).Methods(http.MethodGet, http.MethodOptions)

	// Bookings
	bookings := api.NewRoute().Subrouter()
	bookings.Use(verifier.Middleware)
	bookings.HandleFunc("/flights/{id}/bookings", h.CreateBooking).Methods(http.MethodPost, http.MethodOptions)
	bookings.HandleFunc("/bookings", h.ListBookings).Methods(http.MethodGet, http.MethodOptions)
	bookings.HandleFunc("/bookings/{id}", h.GetBooking).Methods(http.MethodGet, http.MethodOptions)
	bookings.HandleFunc("/bookings/{id}/cancel", h.CancelBooking).Methods(http.MethodPost, http.MethodOptions)

	// Inventory admin
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(verifier.Middleware, auth.RequireRole(auth.RoleStaff))
	admin.HandleFunc("/airlines", h.CreateAirline).Methods(http.MethodPost, http.MethodOptions)
	admin.HandleFunc("/airports", h.CreateAirport).Methods(http.MethodPost, http.MethodOptions)
	admin.HandleFunc("/flights", h.ProvisionFlight).Methods(http.MethodPost, http.MethodOptions)

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func requestLogger(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)))
		})
	}
}
