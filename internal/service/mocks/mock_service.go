package mocks

import (
	"context"

	"github.com/flightdesk/reservation/internal/database"
	"github.com/flightdesk/reservation/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockBookingService is a mock implementation of BookingService
type MockBookingService struct {
	mock.Mock
}

var _ service.BookingService = (*MockBookingService)(nil)

func (m *MockBookingService) FindFlights(ctx context.Context, q service.SearchQuery) ([]database.Flight, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]database.Flight), args.Error(1)
}

func (m *MockBookingService) GetFlight(ctx context.Context, flightID uuid.UUID) (*database.Flight, error) {
	args := m.Called(ctx, flightID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*database.Flight), args.Error(1)
}

func (m *MockBookingService) ListFlightSeats(ctx context.Context, flightID uuid.UUID) ([]database.Seat, error) {
	args := m.Called(ctx, flightID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]database.Seat), args.Error(1)
}

func (m *MockBookingService) Reserve(ctx context.Context, req service.ReserveRequest) (*database.Booking, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*database.Booking), args.Error(1)
}

func (m *MockBookingService) Cancel(ctx context.Context, userID string, bookingID uuid.UUID) error {
	args := m.Called(ctx, userID, bookingID)
	return args.Error(0)
}

func (m *MockBookingService) ListBookings(ctx context.Context, userID string, scope database.BookingScope) ([]database.BookingDetails, error) {
	args := m.Called(ctx, userID, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]database.BookingDetails), args.Error(1)
}

func (m *MockBookingService) GetBooking(ctx context.Context, userID string, bookingID uuid.UUID) (*database.BookingDetails, error) {
	args := m.Called(ctx, userID, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*database.BookingDetails), args.Error(1)
}

func (m *MockBookingService) CreateAirline(ctx context.Context, req service.CreateAirlineRequest) (*database.Airline, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*database.Airline), args.Error(1)
}

func (m *MockBookingService) CreateAirport(ctx context.Context, req service.CreateAirportRequest) (*database.Airport, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*database.Airport), args.Error(1)
}

func (m *MockBookingService) ProvisionFlight(ctx context.Context, req service.ProvisionFlightRequest) (*service.ProvisionedFlight, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ProvisionedFlight), args.Error(1)
}
