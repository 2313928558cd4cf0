package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/flightdesk/reservation/internal/database"
	"github.com/flightdesk/reservation/internal/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type seatChange struct {
	FlightID   uuid.UUID
	SeatNumber string
	Status     database.SeatStatus
}

type seatRecorder struct {
	mu      sync.Mutex
	changes []seatChange
}

func (r *seatRecorder) NotifySeatChanged(flightID uuid.UUID, seatNumber string, status database.SeatStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, seatChange{flightID, seatNumber, status})
}

func (r *seatRecorder) all() []seatChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]seatChange(nil), r.changes...)
}

type fixture struct {
	svc    BookingService
	store  *database.MemoryStore
	events *events.Recorder
	seats  *seatRecorder
	now    time.Time
	flight database.Flight
}

var testNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

var testPassenger = Passenger{
	FirstName: "Ada",
	LastName:  "Lovelace",
	Email:     "ada@example.com",
	Phone:     "+1 212 555 0100",
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:  database.NewMemoryStore(),
		events: &events.Recorder{},
		seats:  &seatRecorder{},
		now:    testNow,
	}
	base := []Option{
		WithPublisher(f.events),
		WithSeatNotifier(f.seats),
		WithClock(func() time.Time { return f.now }),
	}
	f.svc = NewBookingService(f.store, Config{ServiceFeeCents: 4550}, append(base, opts...)...)

	ctx := context.Background()
	_, err := f.svc.CreateAirline(ctx, CreateAirlineRequest{Name: "Sky Air", Code: "sk"})
	require.NoError(t, err)
	for _, a := range []CreateAirportRequest{
		{Name: "John F. Kennedy International", City: "New York", Country: "USA", Code: "JFK"},
		{Name: "LaGuardia", City: "New York", Country: "USA", Code: "LGA"},
		{Name: "Los Angeles International", City: "Los Angeles", Country: "USA", Code: "LAX"},
	} {
		_, err := f.svc.CreateAirport(ctx, a)
		require.NoError(t, err)
	}

	out, err := f.svc.ProvisionFlight(ctx, ProvisionFlightRequest{
		AirlineCode:     "SK",
		FlightNumber:    "SK100",
		OriginCode:      "JFK",
		DestinationCode: "LAX",
		DepartureTime:   time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC),
		ArrivalTime:     time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC),
		TimeZone:        "America/New_York",
		BasePriceCents:  20000,
		Seats:           SeatLayout{SeatNumbers: []string{"1A", "1B", "2A"}},
	})
	require.NoError(t, err)
	f.flight = out.Flight
	return f
}

func (f *fixture) reserve(t *testing.T, userID, seat string) *database.Booking {
	t.Helper()
	b, err := f.svc.Reserve(context.Background(), ReserveRequest{
		UserID:     userID,
		FlightID:   f.flight.ID,
		SeatNumber: seat,
		Passenger:  testPassenger,
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) seat(t *testing.T, number string) *database.Seat {
	t.Helper()
	s, err := f.store.GetSeat(context.Background(), f.flight.ID, number)
	require.NoError(t, err)
	return s
}

func (f *fixture) available(t *testing.T) int {
	t.Helper()
	fl, err := f.store.GetFlightByID(context.Background(), f.flight.ID)
	require.NoError(t, err)
	return fl.AvailableSeats
}

// requireCounterMatchesSeats checks that the flight counter equals the number
// of seats in status available.
func (f *fixture) requireCounterMatchesSeats(t *testing.T) {
	t.Helper()
	seats, err := f.store.GetFlightSeats(context.Background(), f.flight.ID)
	require.NoError(t, err)
	free := 0
	for _, s := range seats {
		if s.Status == database.SeatStatusAvailable {
			free++
		}
	}
	require.Equal(t, free, f.available(t))
}
