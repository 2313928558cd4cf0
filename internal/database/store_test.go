package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeFixture struct {
	airline Airline
	jfk     Airport
	lax     Airport
	flight  Flight
	seats   []Seat
}

// seedStore loads one flight with three seats. Codes carry a random suffix so
// the same database can be reused between runs.
func seedStore(t *testing.T, s Store) storeFixture {
	t.Helper()
	ctx := context.Background()
	sfx := uuid.NewString()[:4]

	fx := storeFixture{
		airline: Airline{Name: "Sky Air", Code: "S" + sfx},
		jfk:     Airport{Name: "John F. Kennedy", City: "New York " + sfx, Country: "USA", Code: "J" + sfx},
		lax:     Airport{Name: "Los Angeles Intl", City: "Los Angeles " + sfx, Country: "USA", Code: "L" + sfx},
	}
	require.NoError(t, s.CreateAirline(ctx, &fx.airline))
	require.NoError(t, s.CreateAirport(ctx, &fx.jfk))
	require.NoError(t, s.CreateAirport(ctx, &fx.lax))

	fx.flight = Flight{
		AirlineID:      fx.airline.ID,
		FlightNumber:   "F" + sfx,
		OriginID:       fx.jfk.ID,
		DestinationID:  fx.lax.ID,
		DepartureTime:  time.Date(2025, 3, 11, 3, 30, 0, 0, time.UTC),
		ArrivalTime:    time.Date(2025, 3, 11, 9, 30, 0, 0, time.UTC),
		TimeZone:       "America/New_York",
		BasePriceCents: 20000,
		AvailableSeats: 3,
		TotalSeats:     3,
	}
	require.NoError(t, s.WithTx(ctx, func(tx Tx) error {
		if err := tx.CreateFlight(ctx, &fx.flight); err != nil {
			return err
		}
		var err error
		fx.seats, err = tx.CreateSeats(ctx, fx.flight.ID, []string{"1A", "1B", "2A"})
		return err
	}))
	return fx
}

func book(t *testing.T, s Store, fx storeFixture, seat Seat, userID string) Booking {
	t.Helper()
	ctx := context.Background()
	b := Booking{
		UserID:             userID,
		FlightID:           fx.flight.ID,
		SeatID:             seat.ID,
		BookingDate:        time.Now().UTC(),
		PassengerFirstName: "Ada",
		PassengerLastName:  "Lovelace",
		PassengerEmail:     "ada@example.com",
		PassengerPhone:     "+15550100",
		Status:             BookingStatusConfirmed,
		TotalPriceCents:    24550,
	}
	require.NoError(t, s.WithTx(ctx, func(tx Tx) error {
		if err := tx.MarkSeat(ctx, seat.ID, SeatStatusAvailable, SeatStatusOccupied); err != nil {
			return err
		}
		if err := tx.AdjustAvailableSeats(ctx, fx.flight.ID, -1); err != nil {
			return err
		}
		return tx.CreateBooking(ctx, &b)
	}))
	return b
}

// testStoreContract runs the behaviour every Store must share.
func testStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("reference data codes are unique", func(t *testing.T) {
		s := newStore(t)
		fx := seedStore(t, s)

		err := s.CreateAirline(ctx, &Airline{Name: "Other", Code: fx.airline.Code})
		assert.ErrorIs(t, err, ErrConflict)
		err = s.CreateAirport(ctx, &Airport{Name: "Other", City: "X", Country: "Y", Code: fx.jfk.Code})
		assert.ErrorIs(t, err, ErrConflict)

		got, err := s.GetAirlineByCode(ctx, fx.airline.Code)
		require.NoError(t, err)
		assert.Equal(t, fx.airline.ID, got.ID)

		_, err = s.GetAirportByCode(ctx, "NOPE")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("airports match on city or code ignoring case", func(t *testing.T) {
		s := newStore(t)
		fx := seedStore(t, s)

		byCity, err := s.FindAirports(ctx, fx.jfk.City[:5])
		require.NoError(t, err)
		assert.NotEmpty(t, byCity)

		byCode, err := s.FindAirports(ctx, fx.lax.Code)
		require.NoError(t, err)
		require.Len(t, byCode, 1)
		assert.Equal(t, fx.lax.ID, byCode[0].ID)
	})

	t.Run("flights filter on the local departure day", func(t *testing.T) {
		s := newStore(t)
		fx := seedStore(t, s)

		filter := FlightFilter{
			OriginIDs:      []uuid.UUID{fx.jfk.ID},
			DestinationIDs: []uuid.UUID{fx.lax.ID},
			Date:           "2025-03-10",
			MinSeats:       1,
		}
		flights, err := s.FindFlights(ctx, filter)
		require.NoError(t, err)
		require.Len(t, flights, 1)
		assert.Equal(t, fx.flight.ID, flights[0].ID)

		filter.Date = "2025-03-11"
		flights, err = s.FindFlights(ctx, filter)
		require.NoError(t, err)
		assert.Empty(t, flights)

		filter.Date = "2025-03-10"
		filter.MinSeats = 4
		flights, err = s.FindFlights(ctx, filter)
		require.NoError(t, err)
		assert.Empty(t, flights)
	})

	t.Run("duplicate flight number rolls back the transaction", func(t *testing.T) {
		s := newStore(t)
		fx := seedStore(t, s)

		dup := fx.flight
		dup.ID = uuid.Nil
		err := s.WithTx(ctx, func(tx Tx) error { return tx.CreateFlight(ctx, &dup) })
		assert.ErrorIs(t, err, ErrConflict)

		got, err := s.GetFlightByNumber(ctx, fx.flight.FlightNumber)
		require.NoError(t, err)
		assert.Equal(t, fx.flight.ID, got.ID)
	})

	t.Run("failed transaction leaves no trace", func(t *testing.T) {
		s := newStore(t)
		fx := seedStore(t, s)
		boom := errors.New("boom")

		err := s.WithTx(ctx, func(tx Tx) error {
			if err := tx.MarkSeat(ctx, fx.seats[0].ID, SeatStatusAvailable, SeatStatusOccupied); err != nil {
				return err
			}
			if err := tx.AdjustAvailableSeats(ctx, fx.flight.ID, -1); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		seat, err := s.GetSeat(ctx, fx.flight.ID, "1A")
		require.NoError(t, err)
		assert.Equal(t, SeatStatusAvailable, seat.Status)
		f, err := s.GetFlightByID(ctx, fx.flight.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, f.AvailableSeats)
	})

	t.Run("seat transitions are conditional", func(t *testing.T) {
		s := newStore(t)
		fx := seedStore(t, s)
		book(t, s, fx, fx.seats[0], "user-1")

		err := s.WithTx(ctx, func(tx Tx) error {
			return tx.MarkSeat(ctx, fx.seats[0].ID, SeatStatusAvailable, SeatStatusOccupied)
		})
		assert.ErrorIs(t, err, ErrSeatUnavailable)
	})

	t.Run("seat counter stays within bounds", func(t *testing.T) {
		s := newStore(t)
		fx := seedStore(t, s)

		err := s.WithTx(ctx, func(tx Tx) error { return tx.AdjustAvailableSeats(ctx, fx.flight.ID, 1) })
		assert.ErrorIs(t, err, ErrCapacity)
		err = s.WithTx(ctx, func(tx Tx) error { return tx.AdjustAvailableSeats(ctx, fx.flight.ID, -4) })
		assert.ErrorIs(t, err, ErrCapacity)
	})

	t.Run("one confirmed booking per seat", func(t *testing.T) {
		s := newStore(t)
		fx := seedStore(t, s)
		book(t, s, fx, fx.seats[0], "user-1")

		err := s.WithTx(ctx, func(tx Tx) error {
			return tx.CreateBooking(ctx, &Booking{
				UserID: "user-2", FlightID: fx.flight.ID, SeatID: fx.seats[0].ID,
				BookingDate: time.Now().UTC(), PassengerFirstName: "A", PassengerLastName: "B",
				PassengerEmail: "a@b.co", PassengerPhone: "+15550100",
				Status: BookingStatusConfirmed, TotalPriceCents: 1,
			})
		})
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("booking status update checks the current status", func(t *testing.T) {
		s := newStore(t)
		fx := seedStore(t, s)
		b := book(t, s, fx, fx.seats[1], "user-1")

		require.NoError(t, s.WithTx(ctx, func(tx Tx) error {
			return tx.UpdateBookingStatus(ctx, b.ID, BookingStatusConfirmed, BookingStatusCancelled)
		}))
		err := s.WithTx(ctx, func(tx Tx) error {
			return tx.UpdateBookingStatus(ctx, b.ID, BookingStatusConfirmed, BookingStatusCancelled)
		})
		assert.ErrorIs(t, err, ErrTxConflict)

		got, err := s.GetBookingByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, BookingStatusCancelled, got.Status)
	})

	t.Run("user bookings by scope", func(t *testing.T) {
		s := newStore(t)
		fx := seedStore(t, s)
		first := book(t, s, fx, fx.seats[0], "user-1")
		book(t, s, fx, fx.seats[1], "user-2")

		before := fx.flight.DepartureTime.Add(-time.Hour)
		after := fx.flight.DepartureTime.Add(time.Hour)

		all, err := s.ListUserBookings(ctx, "user-1", BookingScopeAll, before)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, first.ID, all[0].Booking.ID)
		assert.Equal(t, "1A", all[0].SeatNumber)
		assert.Equal(t, fx.flight.FlightNumber, all[0].Flight.FlightNumber)

		upcoming, err := s.ListUserBookings(ctx, "user-1", BookingScopeUpcoming, before)
		require.NoError(t, err)
		assert.Len(t, upcoming, 1)

		past, err := s.ListUserBookings(ctx, "user-1", BookingScopePast, before)
		require.NoError(t, err)
		assert.Empty(t, past)

		past, err = s.ListUserBookings(ctx, "user-1", BookingScopePast, after)
		require.NoError(t, err)
		assert.Len(t, past, 1)

		none, err := s.ListUserBookings(ctx, "nobody", BookingScopeAll, before)
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}
