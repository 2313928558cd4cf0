package service

import (
	"context"
	"fmt"

	"github.com/flightdesk/reservation/internal/database"
	"github.com/google/uuid"
)

// ParseBookingScope maps a listing filter to a scope; empty means all.
func ParseBookingScope(filter string) (database.BookingScope, error) {
	switch scope := database.BookingScope(filter); scope {
	case "":
		return database.BookingScopeAll, nil
	case database.BookingScopeAll, database.BookingScopeUpcoming, database.BookingScopePast:
		return scope, nil
	}
	return "", invalid("filter", "must be one of all, upcoming, past")
}

// ListBookings returns the user's bookings in scope, newest booking first.
func (s *bookingServiceImpl) ListBookings(ctx context.Context, userID string, scope database.BookingScope) ([]database.BookingDetails, error) {
	if userID == "" {
		return nil, invalid("userId", "is required")
	}
	scope, err := ParseBookingScope(string(scope))
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "BookingService.ListBookings")
	defer span.End()

	bookings, err := s.store.ListUserBookings(ctx, userID, scope, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	if bookings == nil {
		bookings = []database.BookingDetails{}
	}
	return bookings, nil
}

// GetBooking returns one of the user's bookings. Bookings of other users are
// reported as not found.
func (s *bookingServiceImpl) GetBooking(ctx context.Context, userID string, bookingID uuid.UUID) (*database.BookingDetails, error) {
	bookings, err := s.ListBookings(ctx, userID, database.BookingScopeAll)
	if err != nil {
		return nil, err
	}
	for i := range bookings {
		if bookings[i].Booking.ID == bookingID {
			return &bookings[i], nil
		}
	}
	return nil, fmt.Errorf("booking %s: %w", bookingID, ErrNotFound)
}
