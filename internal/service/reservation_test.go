package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/flightdesk/reservation/internal/database"
	"github.com/flightdesk/reservation/internal/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserve_ConfirmsAndPricesBooking(t *testing.T) {
	f := newFixture(t)

	b := f.reserve(t, "user-1", "1a")

	assert.Equal(t, database.BookingStatusConfirmed, b.Status)
	assert.Equal(t, int64(24550), b.TotalPriceCents)
	assert.Equal(t, "user-1", b.UserID)
	assert.Equal(t, testNow, b.BookingDate)
	assert.Equal(t, database.SeatStatusOccupied, f.seat(t, "1A").Status)
	assert.Equal(t, 2, f.available(t))

	confirmed := f.events.Topic(events.TopicBookingConfirmed)
	require.Len(t, confirmed, 1)
	assert.Equal(t, f.flight.ID.String(), confirmed[0].Key)
	assert.Equal(t, events.EventBookingConfirmed, confirmed[0].Envelope.EventType)

	assert.Equal(t, []seatChange{{f.flight.ID, "1A", database.SeatStatusOccupied}}, f.seats.all())
}

func TestReserve_SeatAlreadyTaken(t *testing.T) {
	f := newFixture(t)
	f.reserve(t, "user-1", "1A")

	_, err := f.svc.Reserve(context.Background(), ReserveRequest{
		UserID: "user-2", FlightID: f.flight.ID, SeatNumber: "1A", Passenger: testPassenger,
	})

	assert.ErrorIs(t, err, ErrSeatUnavailable)
	assert.Equal(t, 2, f.available(t))
	assert.Len(t, f.events.Topic(events.TopicBookingConfirmed), 1)
}

func TestReserve_SelectedSeatIsUnavailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seat := f.seat(t, "2A")
	require.NoError(t, f.store.WithTx(ctx, func(tx database.Tx) error {
		return tx.MarkSeat(ctx, seat.ID, database.SeatStatusAvailable, database.SeatStatusSelected)
	}))

	_, err := f.svc.Reserve(ctx, ReserveRequest{
		UserID: "user-1", FlightID: f.flight.ID, SeatNumber: "2A", Passenger: testPassenger,
	})
	assert.ErrorIs(t, err, ErrSeatUnavailable)
}

func TestReserve_NotFound(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name     string
		flightID uuid.UUID
		seat     string
	}{
		{"unknown flight", uuid.New(), "1A"},
		{"unknown seat", f.flight.ID, "99Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Reserve(context.Background(), ReserveRequest{
				UserID: "user-1", FlightID: tt.flightID, SeatNumber: tt.seat, Passenger: testPassenger,
			})
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
	assert.Equal(t, 3, f.available(t))
}

func TestReserve_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name      string
		mutate    func(*ReserveRequest)
		wantField string
	}{
		{"empty first name", func(r *ReserveRequest) { r.Passenger.FirstName = "  " }, "passenger.firstName"},
		{"long last name", func(r *ReserveRequest) { r.Passenger.LastName = strings.Repeat("x", 101) }, "passenger.lastName"},
		{"bad email", func(r *ReserveRequest) { r.Passenger.Email = "not-an-email" }, "passenger.email"},
		{"bad phone", func(r *ReserveRequest) { r.Passenger.Phone = "call me" }, "passenger.phone"},
		{"short phone", func(r *ReserveRequest) { r.Passenger.Phone = "12345" }, "passenger.phone"},
		{"no seat", func(r *ReserveRequest) { r.SeatNumber = "" }, "seatNumber"},
		{"no user", func(r *ReserveRequest) { r.UserID = "" }, "userId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := ReserveRequest{UserID: "user-1", FlightID: f.flight.ID, SeatNumber: "1A", Passenger: testPassenger}
			tt.mutate(&req)

			_, err := f.svc.Reserve(context.Background(), req)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.wantField)
		})
	}
	assert.Equal(t, 3, f.available(t))
	assert.Empty(t, f.events.Topic(events.TopicBookingConfirmed))
}

func TestReserve_ConcurrentRequestsForOneSeat(t *testing.T) {
	f := newFixture(t)

	const workers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		failures  []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Reserve(context.Background(), ReserveRequest{
				UserID: uuid.NewString(), FlightID: f.flight.ID, SeatNumber: "1B", Passenger: testPassenger,
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else {
				failures = append(failures, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	for _, err := range failures {
		assert.ErrorIs(t, err, ErrSeatUnavailable)
	}
	assert.Equal(t, 2, f.available(t))
	f.requireCounterMatchesSeats(t)
}

// conflictStore fails the first n transactions as if the database aborted them.
type conflictStore struct {
	database.Store
	mu        sync.Mutex
	remaining int
	calls     int
}

func (s *conflictStore) WithTx(ctx context.Context, fn func(tx database.Tx) error) error {
	s.mu.Lock()
	s.calls++
	fail := s.remaining > 0
	if fail {
		s.remaining--
	}
	s.mu.Unlock()
	if fail {
		return database.ErrTxConflict
	}
	return s.Store.WithTx(ctx, fn)
}

func TestReserve_RetriesTransactionConflicts(t *testing.T) {
	tests := []struct {
		name      string
		conflicts int
		wantErr   error
		wantCalls int
	}{
		{"succeeds on last attempt", 2, nil, 3},
		{"gives up after max attempts", 3, ErrSeatUnavailable, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			cs := &conflictStore{Store: f.store, remaining: tt.conflicts}
			svc := NewBookingService(cs, Config{ServiceFeeCents: 4550, MaxAttempts: 3})

			_, err := svc.Reserve(context.Background(), ReserveRequest{
				UserID: "user-1", FlightID: f.flight.ID, SeatNumber: "1A", Passenger: testPassenger,
			})

			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, tt.wantCalls, cs.calls)
			f.requireCounterMatchesSeats(t)
		})
	}
}

func TestCancel_ReleasesSeat(t *testing.T) {
	f := newFixture(t)
	b := f.reserve(t, "user-1", "1A")

	require.NoError(t, f.svc.Cancel(context.Background(), "user-1", b.ID))

	stored, err := f.store.GetBookingByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, database.BookingStatusCancelled, stored.Status)
	assert.Equal(t, database.SeatStatusAvailable, f.seat(t, "1A").Status)
	assert.Equal(t, 3, f.available(t))

	cancelled := f.events.Topic(events.TopicBookingCancelled)
	require.Len(t, cancelled, 1)
	assert.Equal(t, f.flight.ID.String(), cancelled[0].Key)

	changes := f.seats.all()
	require.Len(t, changes, 2)
	assert.Equal(t, database.SeatStatusAvailable, changes[1].Status)

	// The released seat can be booked again.
	f.reserve(t, "user-2", "1A")
	f.requireCounterMatchesSeats(t)
}

func TestCancel_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	b := f.reserve(t, "user-1", "2A")

	require.NoError(t, f.svc.Cancel(context.Background(), "user-1", b.ID))
	require.NoError(t, f.svc.Cancel(context.Background(), "user-1", b.ID))

	assert.Equal(t, 3, f.available(t))
	assert.Len(t, f.events.Topic(events.TopicBookingCancelled), 1)
	assert.Len(t, f.seats.all(), 2)
}

func TestCancel_PendingBookingIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seat := f.seat(t, "1B")
	pending := &database.Booking{
		ID: uuid.New(), UserID: "user-1", FlightID: f.flight.ID, SeatID: seat.ID,
		BookingDate: testNow, Status: database.BookingStatusPending, TotalPriceCents: 24550,
	}
	require.NoError(t, f.store.WithTx(ctx, func(tx database.Tx) error {
		return tx.CreateBooking(ctx, pending)
	}))

	require.NoError(t, f.svc.Cancel(ctx, "user-1", pending.ID))

	stored, err := f.store.GetBookingByID(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, database.BookingStatusPending, stored.Status)
	assert.Equal(t, 3, f.available(t))
}

func TestCancel_NotFound(t *testing.T) {
	f := newFixture(t)
	b := f.reserve(t, "user-1", "1A")

	tests := []struct {
		name      string
		userID    string
		bookingID uuid.UUID
	}{
		{"unknown booking", "user-1", uuid.New()},
		{"someone else's booking", "user-2", b.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.Cancel(context.Background(), tt.userID, tt.bookingID)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
	assert.Equal(t, database.SeatStatusOccupied, f.seat(t, "1A").Status)
	assert.Equal(t, 2, f.available(t))
}

func TestReserveCancel_CounterStaysConsistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var bookings []*database.Booking
	for _, seat := range []string{"1A", "1B", "2A"} {
		bookings = append(bookings, f.reserve(t, "user-1", seat))
		f.requireCounterMatchesSeats(t)
	}
	assert.Equal(t, 0, f.available(t))

	_, err := f.svc.Reserve(ctx, ReserveRequest{UserID: "user-2", FlightID: f.flight.ID, SeatNumber: "1A", Passenger: testPassenger})
	assert.True(t, errors.Is(err, ErrSeatUnavailable))

	for _, b := range bookings[:2] {
		require.NoError(t, f.svc.Cancel(ctx, "user-1", b.ID))
		f.requireCounterMatchesSeats(t)
	}
	assert.Equal(t, 2, f.available(t))
}
