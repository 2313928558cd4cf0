package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/flightdesk/reservation/internal/auth"
	"github.com/flightdesk/reservation/internal/database"
	"github.com/flightdesk/reservation/internal/handlers"
	"github.com/flightdesk/reservation/internal/service"
	"github.com/flightdesk/reservation/internal/service/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) (*mocks.MockBookingService, *auth.Verifier, http.Handler) {
	t.Helper()
	svc := new(mocks.MockBookingService)
	verifier := auth.NewVerifier("router-secret")
	h := handlers.NewHandler(svc, nil, zap.NewNop())
	return svc, verifier, SetupRouter(h, verifier, zap.NewNop())
}

func token(t *testing.T, v *auth.Verifier, id auth.Identity) string {
	t.Helper()
	tok, err := v.Issue(id, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestRouter_PublicRoutes(t *testing.T) {
	svc, _, r := newTestRouter(t)
	flightID := uuid.New()
	svc.On("GetFlight", mock.Anything, flightID).Return(&database.Flight{ID: flightID}, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/flights/"+flightID.String(), nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_BookingsRequireToken(t *testing.T) {
	svc, verifier, r := newTestRouter(t)
	svc.On("ListBookings", mock.Anything, "user-9", database.BookingScopeAll).Return([]database.BookingDetails{}, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/bookings", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/bookings", nil)
	req.Header.Set("Authorization", token(t, verifier, auth.Identity{UserID: "user-9"}))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	svc.AssertExpectations(t)
}

func TestRouter_AdminRequiresStaff(t *testing.T) {
	svc, verifier, r := newTestRouter(t)
	svc.On("CreateAirline", mock.Anything, service.CreateAirlineRequest{Name: "Sky Air", Code: "SK"}).
		Return(&database.Airline{Code: "SK"}, nil).Once()

	tests := []struct {
		name   string
		auth   string
		status int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"customer", token(t, verifier, auth.Identity{UserID: "user-1"}), http.StatusForbidden},
		{"staff", token(t, verifier, auth.Identity{UserID: "ops-1", Role: auth.RoleStaff}), http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/admin/airlines", jsonReader(`{"name":"Sky Air","code":"SK"}`))
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
	svc.AssertExpectations(t)
}

func TestRouter_Preflight(t *testing.T) {
	_, _, r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/bookings", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestRouter_SeatFeedDisabled(t *testing.T) {
	_, _, r := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/flights/"+uuid.NewString()+"/ws", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func jsonReader(s string) *strings.Reader {
	return strings.NewReader(s)
}
