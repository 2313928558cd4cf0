package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("unique constraint violated")
	ErrSeatUnavailable = errors.New("seat not available")
	ErrCapacity        = errors.New("seat counter out of bounds")
	// ErrTxConflict marks a transaction the database aborted because of a
	// concurrent writer; the whole unit of work may be retried.
	ErrTxConflict = errors.New("transaction conflict")
)

// Reader holds the lookups and filters shared by the store and its transactions.
type Reader interface {
	GetAirlineByCode(ctx context.Context, code string) (*Airline, error)
	GetAirportByCode(ctx context.Context, code string) (*Airport, error)
	FindAirports(ctx context.Context, query string) ([]Airport, error)

	GetFlightByID(ctx context.Context, id uuid.UUID) (*Flight, error)
	GetFlightByNumber(ctx context.Context, flightNumber string) (*Flight, error)
	FindFlights(ctx context.Context, filter FlightFilter) ([]Flight, error)

	GetFlightSeats(ctx context.Context, flightID uuid.UUID) ([]Seat, error)
	GetSeat(ctx context.Context, flightID uuid.UUID, seatNumber string) (*Seat, error)

	GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	ListUserBookings(ctx context.Context, userID string, scope BookingScope, now time.Time) ([]BookingDetails, error)
}

// Tx is a unit of work. The ForUpdate reads lock the returned row until the
// transaction ends.
type Tx interface {
	GetFlightForUpdate(ctx context.Context, id uuid.UUID) (*Flight, error)
	GetSeatForUpdate(ctx context.Context, flightID uuid.UUID, seatNumber string) (*Seat, error)
	GetSeatByIDForUpdate(ctx context.Context, id uuid.UUID) (*Seat, error)
	GetBookingForUpdate(ctx context.Context, id uuid.UUID) (*Booking, error)

	CreateBooking(ctx context.Context, b *Booking) error
	// UpdateBookingStatus fails with ErrTxConflict if the booking is no longer in status from.
	UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to BookingStatus) error
	// MarkSeat fails with ErrSeatUnavailable if the seat is no longer in status from.
	MarkSeat(ctx context.Context, seatID uuid.UUID, from, to SeatStatus) error
	// AdjustAvailableSeats fails with ErrCapacity if the result leaves [0, total_seats].
	AdjustAvailableSeats(ctx context.Context, flightID uuid.UUID, delta int) error

	CreateFlight(ctx context.Context, f *Flight) error
	CreateSeats(ctx context.Context, flightID uuid.UUID, seatNumbers []string) ([]Seat, error)
}

// Store is the inventory store and booking ledger.
type Store interface {
	Reader

	CreateAirline(ctx context.Context, a *Airline) error
	CreateAirport(ctx context.Context, a *Airport) error

	// WithTx runs fn in a single transaction, committing only if fn returns nil.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}
