package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps the inventory and ledger in process. Transactions are
// serialized by a single lock and staged on a copy of the state, so a failed
// transaction leaves nothing behind.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
}

type memState struct {
	airlines map[uuid.UUID]Airline
	airports map[uuid.UUID]Airport
	flights  map[uuid.UUID]Flight
	seats    map[uuid.UUID]Seat
	bookings map[uuid.UUID]Booking
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*Repository)(nil)
	_ Tx    = (*memState)(nil)
	_ Tx    = (*pgTx)(nil)
)

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memState{
			airlines: make(map[uuid.UUID]Airline),
			airports: make(map[uuid.UUID]Airport),
			flights:  make(map[uuid.UUID]Flight),
			seats:    make(map[uuid.UUID]Seat),
			bookings: make(map[uuid.UUID]Booking),
		},
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		airlines: make(map[uuid.UUID]Airline, len(s.airlines)),
		airports: make(map[uuid.UUID]Airport, len(s.airports)),
		flights:  make(map[uuid.UUID]Flight, len(s.flights)),
		seats:    make(map[uuid.UUID]Seat, len(s.seats)),
		bookings: make(map[uuid.UUID]Booking, len(s.bookings)),
	}
	for k, v := range s.airlines {
		c.airlines[k] = v
	}
	for k, v := range s.airports {
		c.airports[k] = v
	}
	for k, v := range s.flights {
		c.flights[k] = v
	}
	for k, v := range s.seats {
		c.seats[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	return c
}

// WithTx runs fn against a private copy and publishes it only on success.
func (m *MemoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	staged := m.state.clone()
	if err := fn(staged); err != nil {
		return err
	}
	m.state = staged
	return nil
}

// snapshot returns the committed state. Committed states are never mutated,
// so readers may use it without holding the lock.
func (m *MemoryStore) snapshot() *memState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *MemoryStore) CreateAirline(ctx context.Context, a *Airline) error {
	return m.WithTx(ctx, func(tx Tx) error {
		s := tx.(*memState)
		for _, existing := range s.airlines {
			if existing.Code == a.Code {
				return fmt.Errorf("%w: airlines_code_key", ErrConflict)
			}
		}
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		a.CreatedAt = time.Now().UTC()
		s.airlines[a.ID] = *a
		return nil
	})
}

func (m *MemoryStore) CreateAirport(ctx context.Context, a *Airport) error {
	return m.WithTx(ctx, func(tx Tx) error {
		s := tx.(*memState)
		for _, existing := range s.airports {
			if existing.Code == a.Code {
				return fmt.Errorf("%w: airports_code_key", ErrConflict)
			}
		}
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		a.CreatedAt = time.Now().UTC()
		s.airports[a.ID] = *a
		return nil
	})
}

func (m *MemoryStore) GetAirlineByCode(ctx context.Context, code string) (*Airline, error) {
	return m.snapshot().GetAirlineByCode(ctx, code)
}

func (m *MemoryStore) GetAirportByCode(ctx context.Context, code string) (*Airport, error) {
	return m.snapshot().GetAirportByCode(ctx, code)
}

func (m *MemoryStore) FindAirports(ctx context.Context, query string) ([]Airport, error) {
	return m.snapshot().FindAirports(ctx, query)
}

func (m *MemoryStore) GetFlightByID(ctx context.Context, id uuid.UUID) (*Flight, error) {
	return m.snapshot().GetFlightByID(ctx, id)
}

func (m *MemoryStore) GetFlightByNumber(ctx context.Context, flightNumber string) (*Flight, error) {
	return m.snapshot().GetFlightByNumber(ctx, flightNumber)
}

func (m *MemoryStore) FindFlights(ctx context.Context, filter FlightFilter) ([]Flight, error) {
	return m.snapshot().FindFlights(ctx, filter)
}

func (m *MemoryStore) GetFlightSeats(ctx context.Context, flightID uuid.UUID) ([]Seat, error) {
	return m.snapshot().GetFlightSeats(ctx, flightID)
}

func (m *MemoryStore) GetSeat(ctx context.Context, flightID uuid.UUID, seatNumber string) (*Seat, error) {
	return m.snapshot().GetSeat(ctx, flightID, seatNumber)
}

func (m *MemoryStore) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return m.snapshot().GetBookingByID(ctx, id)
}

func (m *MemoryStore) ListUserBookings(ctx context.Context, userID string, scope BookingScope, now time.Time) ([]BookingDetails, error) {
	return m.snapshot().ListUserBookings(ctx, userID, scope, now)
}

// --- memState: Reader ---

func (s *memState) GetAirlineByCode(_ context.Context, code string) (*Airline, error) {
	for _, a := range s.airlines {
		if a.Code == code {
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memState) GetAirportByCode(_ context.Context, code string) (*Airport, error) {
	for _, a := range s.airports {
		if a.Code == code {
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memState) FindAirports(_ context.Context, query string) ([]Airport, error) {
	q := strings.ToLower(query)
	var out []Airport
	for _, a := range s.airports {
		if strings.Contains(strings.ToLower(a.City), q) || strings.Contains(strings.ToLower(a.Code), q) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *memState) GetFlightByID(_ context.Context, id uuid.UUID) (*Flight, error) {
	f, ok := s.flights[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &f, nil
}

func (s *memState) GetFlightByNumber(_ context.Context, flightNumber string) (*Flight, error) {
	for _, f := range s.flights {
		if f.FlightNumber == flightNumber {
			return &f, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memState) FindFlights(_ context.Context, filter FlightFilter) ([]Flight, error) {
	origins := idSet(filter.OriginIDs)
	destinations := idSet(filter.DestinationIDs)

	var out []Flight
	for _, f := range s.flights {
		if !origins[f.OriginID] || !destinations[f.DestinationID] {
			continue
		}
		if f.DepartureDate() != filter.Date || f.AvailableSeats < filter.MinSeats {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DepartureTime.Before(out[j].DepartureTime) })
	return out, nil
}

func (s *memState) GetFlightSeats(_ context.Context, flightID uuid.UUID) ([]Seat, error) {
	var out []Seat
	for _, st := range s.seats {
		if st.FlightID == flightID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeatNumber < out[j].SeatNumber })
	return out, nil
}

func (s *memState) GetSeat(_ context.Context, flightID uuid.UUID, seatNumber string) (*Seat, error) {
	for _, st := range s.seats {
		if st.FlightID == flightID && st.SeatNumber == seatNumber {
			return &st, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memState) GetBookingByID(_ context.Context, id uuid.UUID) (*Booking, error) {
	b, ok := s.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (s *memState) ListUserBookings(_ context.Context, userID string, scope BookingScope, now time.Time) ([]BookingDetails, error) {
	var out []BookingDetails
	for _, b := range s.bookings {
		if b.UserID != userID {
			continue
		}
		f := s.flights[b.FlightID]
		switch scope {
		case BookingScopeUpcoming:
			if b.Status != BookingStatusConfirmed || f.DepartureTime.Before(now) {
				continue
			}
		case BookingScopePast:
			if !f.DepartureTime.Before(now) {
				continue
			}
		}
		out = append(out, BookingDetails{Booking: b, Flight: f, SeatNumber: s.seats[b.SeatID].SeatNumber})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Booking.BookingDate.After(out[j].Booking.BookingDate)
	})
	return out, nil
}

// --- memState: Tx ---

// The store lock already serializes transactions, so the ForUpdate reads are plain reads.

func (s *memState) GetFlightForUpdate(ctx context.Context, id uuid.UUID) (*Flight, error) {
	return s.GetFlightByID(ctx, id)
}

func (s *memState) GetSeatForUpdate(ctx context.Context, flightID uuid.UUID, seatNumber string) (*Seat, error) {
	return s.GetSeat(ctx, flightID, seatNumber)
}

func (s *memState) GetSeatByIDForUpdate(_ context.Context, id uuid.UUID) (*Seat, error) {
	st, ok := s.seats[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &st, nil
}

func (s *memState) GetBookingForUpdate(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.GetBookingByID(ctx, id)
}

func (s *memState) CreateBooking(_ context.Context, b *Booking) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if _, ok := s.flights[b.FlightID]; !ok {
		return fmt.Errorf("failed to create booking: flight %s: %w", b.FlightID, ErrNotFound)
	}
	if _, ok := s.seats[b.SeatID]; !ok {
		return fmt.Errorf("failed to create booking: seat %s: %w", b.SeatID, ErrNotFound)
	}
	if b.Status == BookingStatusConfirmed {
		for _, other := range s.bookings {
			if other.SeatID == b.SeatID && other.Status == BookingStatusConfirmed {
				return fmt.Errorf("%w: bookings_seat_confirmed_idx", ErrConflict)
			}
		}
	}
	b.UpdatedAt = time.Now().UTC()
	s.bookings[b.ID] = *b
	return nil
}

func (s *memState) UpdateBookingStatus(_ context.Context, id uuid.UUID, from, to BookingStatus) error {
	b, ok := s.bookings[id]
	if !ok || b.Status != from {
		return fmt.Errorf("booking %s left status %s: %w", id, from, ErrTxConflict)
	}
	b.Status = to
	b.UpdatedAt = time.Now().UTC()
	s.bookings[id] = b
	return nil
}

func (s *memState) MarkSeat(_ context.Context, seatID uuid.UUID, from, to SeatStatus) error {
	st, ok := s.seats[seatID]
	if !ok || st.Status != from {
		return ErrSeatUnavailable
	}
	st.Status = to
	st.UpdatedAt = time.Now().UTC()
	s.seats[seatID] = st
	return nil
}

func (s *memState) AdjustAvailableSeats(_ context.Context, flightID uuid.UUID, delta int) error {
	f, ok := s.flights[flightID]
	if !ok {
		return ErrCapacity
	}
	next := f.AvailableSeats + delta
	if next < 0 || next > f.TotalSeats {
		return ErrCapacity
	}
	f.AvailableSeats = next
	f.UpdatedAt = time.Now().UTC()
	s.flights[flightID] = f
	return nil
}

func (s *memState) CreateFlight(_ context.Context, f *Flight) error {
	for _, existing := range s.flights {
		if existing.FlightNumber == f.FlightNumber {
			return fmt.Errorf("%w: flights_flight_number_key", ErrConflict)
		}
	}
	if _, ok := s.airlines[f.AirlineID]; !ok {
		return fmt.Errorf("failed to create flight: airline %s: %w", f.AirlineID, ErrNotFound)
	}
	if _, ok := s.airports[f.OriginID]; !ok {
		return fmt.Errorf("failed to create flight: origin %s: %w", f.OriginID, ErrNotFound)
	}
	if _, ok := s.airports[f.DestinationID]; !ok {
		return fmt.Errorf("failed to create flight: destination %s: %w", f.DestinationID, ErrNotFound)
	}
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.TimeZone == "" {
		f.TimeZone = "UTC"
	}
	now := time.Now().UTC()
	f.CreatedAt, f.UpdatedAt = now, now
	s.flights[f.ID] = *f
	return nil
}

func (s *memState) CreateSeats(_ context.Context, flightID uuid.UUID, seatNumbers []string) ([]Seat, error) {
	if _, ok := s.flights[flightID]; !ok {
		return nil, fmt.Errorf("failed to create seats: flight %s: %w", flightID, ErrNotFound)
	}
	taken := make(map[string]bool)
	for _, st := range s.seats {
		if st.FlightID == flightID {
			taken[st.SeatNumber] = true
		}
	}

	now := time.Now().UTC()
	seats := make([]Seat, 0, len(seatNumbers))
	for _, n := range seatNumbers {
		if taken[n] {
			return nil, fmt.Errorf("%w: seats_flight_id_seat_number_key", ErrConflict)
		}
		taken[n] = true
		st := Seat{
			ID:         uuid.New(),
			FlightID:   flightID,
			SeatNumber: n,
			Status:     SeatStatusAvailable,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		s.seats[st.ID] = st
		seats = append(seats, st)
	}
	return seats, nil
}

func idSet(ids []uuid.UUID) map[uuid.UUID]bool {
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
