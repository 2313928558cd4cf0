package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres SQLSTATE codes the repository reacts to.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// Repository handles all database operations
type Repository struct {
	pool *pgxpool.Pool
	queries
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, queries: queries{q: pool}}
}

// WithTx runs fn inside a READ COMMITTED transaction. Row locks taken by the
// ForUpdate reads serialize writers touching the same flight, seat or booking.
func (r *Repository) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{queries: queries{q: tx}, tx: tx}); err != nil {
		return classify(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// classify maps driver errors onto the package sentinels.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected:
		return fmt.Errorf("%w: %v", ErrTxConflict, err)
	case codeUniqueViolation:
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	}
	return err
}

// --- Reference data ---

func (r *Repository) CreateAirline(ctx context.Context, a *Airline) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO airlines (id, name, code)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, a.ID, a.Name, a.Code).Scan(&a.CreatedAt)
	if err != nil {
		return classify(fmt.Errorf("failed to create airline: %w", err))
	}
	return nil
}

func (r *Repository) CreateAirport(ctx context.Context, a *Airport) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO airports (id, name, city, country, code)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, a.ID, a.Name, a.City, a.Country, a.Code).Scan(&a.CreatedAt)
	if err != nil {
		return classify(fmt.Errorf("failed to create airport: %w", err))
	}
	return nil
}

// queries implements Reader over any querier.
type queries struct {
	q querier
}

func (s queries) GetAirlineByCode(ctx context.Context, code string) (*Airline, error) {
	var a Airline
	err := s.q.QueryRow(ctx, `
		SELECT id, name, code, created_at FROM airlines WHERE code = $1
	`, code).Scan(&a.ID, &a.Name, &a.Code, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get airline: %w", err)
	}
	return &a, nil
}

const airportColumns = `id, name, city, country, code, created_at`

func scanAirport(row scanner) (*Airport, error) {
	var a Airport
	if err := row.Scan(&a.ID, &a.Name, &a.City, &a.Country, &a.Code, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s queries) GetAirportByCode(ctx context.Context, code string) (*Airport, error) {
	a, err := scanAirport(s.q.QueryRow(ctx, `SELECT `+airportColumns+` FROM airports WHERE code = $1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get airport: %w", err)
	}
	return a, nil
}

// FindAirports matches query as a case-insensitive substring of city or code.
func (s queries) FindAirports(ctx context.Context, query string) ([]Airport, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+airportColumns+`
		FROM airports
		WHERE city ILIKE $1 OR code ILIKE $1
		ORDER BY code
	`, "%"+escapeLike(query)+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to query airports: %w", err)
	}
	defer rows.Close()

	var airports []Airport
	for rows.Next() {
		a, err := scanAirport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan airport: %w", err)
		}
		airports = append(airports, *a)
	}
	return airports, rows.Err()
}

// --- Flights ---

const flightColumns = `
	f.id, f.airline_id, f.flight_number, f.origin_id, f.destination_id,
	f.departure_time, f.arrival_time, f.time_zone, f.base_price_cents,
	f.available_seats, f.total_seats, f.created_at, f.updated_at`

func flightDest(f *Flight) []any {
	return []any{
		&f.ID, &f.AirlineID, &f.FlightNumber, &f.OriginID, &f.DestinationID,
		&f.DepartureTime, &f.ArrivalTime, &f.TimeZone, &f.BasePriceCents,
		&f.AvailableSeats, &f.TotalSeats, &f.CreatedAt, &f.UpdatedAt,
	}
}

func (s queries) getFlight(ctx context.Context, where string, arg any) (*Flight, error) {
	var f Flight
	err := s.q.QueryRow(ctx, `SELECT `+flightColumns+` FROM flights f WHERE `+where, arg).Scan(flightDest(&f)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get flight: %w", err)
	}
	return &f, nil
}

// GetFlightByID returns a flight by ID
func (s queries) GetFlightByID(ctx context.Context, id uuid.UUID) (*Flight, error) {
	return s.getFlight(ctx, `f.id = $1`, id)
}

func (s queries) GetFlightByNumber(ctx context.Context, flightNumber string) (*Flight, error) {
	return s.getFlight(ctx, `f.flight_number = $1`, flightNumber)
}

// FindFlights returns flights on the route and day with enough seats, earliest first.
func (s queries) FindFlights(ctx context.Context, filter FlightFilter) ([]Flight, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+flightColumns+`
		FROM flights f
		WHERE f.origin_id = ANY($1::uuid[])
		  AND f.destination_id = ANY($2::uuid[])
		  AND (f.departure_time AT TIME ZONE f.time_zone)::date = $3::date
		  AND f.available_seats >= $4
		ORDER BY f.departure_time ASC
	`, uuidStrings(filter.OriginIDs), uuidStrings(filter.DestinationIDs), filter.Date, filter.MinSeats)
	if err != nil {
		return nil, fmt.Errorf("failed to query flights: %w", err)
	}
	defer rows.Close()

	var flights []Flight
	for rows.Next() {
		var f Flight
		if err := rows.Scan(flightDest(&f)...); err != nil {
			return nil, fmt.Errorf("failed to scan flight: %w", err)
		}
		flights = append(flights, f)
	}
	return flights, rows.Err()
}

// --- Seats ---

const seatColumns = `s.id, s.flight_id, s.seat_number, s.status, s.created_at, s.updated_at`

func scanSeat(row scanner) (*Seat, error) {
	var st Seat
	if err := row.Scan(&st.ID, &st.FlightID, &st.SeatNumber, &st.Status, &st.CreatedAt, &st.UpdatedAt); err != nil {
		return nil, err
	}
	return &st, nil
}

// GetFlightSeats returns all seats for a flight
func (s queries) GetFlightSeats(ctx context.Context, flightID uuid.UUID) ([]Seat, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+seatColumns+`
		FROM seats s
		WHERE s.flight_id = $1
		ORDER BY s.seat_number
	`, flightID)
	if err != nil {
		return nil, fmt.Errorf("failed to query seats: %w", err)
	}
	defer rows.Close()

	var seats []Seat
	for rows.Next() {
		st, err := scanSeat(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan seat: %w", err)
		}
		seats = append(seats, *st)
	}
	return seats, rows.Err()
}

func (s queries) GetSeat(ctx context.Context, flightID uuid.UUID, seatNumber string) (*Seat, error) {
	st, err := scanSeat(s.q.QueryRow(ctx, `
		SELECT `+seatColumns+` FROM seats s WHERE s.flight_id = $1 AND s.seat_number = $2
	`, flightID, seatNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get seat: %w", err)
	}
	return st, nil
}

// --- Bookings ---

const bookingColumns = `
	b.id, b.user_id, b.flight_id, b.seat_id, b.booking_date,
	b.passenger_first_name, b.passenger_last_name, b.passenger_email, b.passenger_phone,
	b.status, b.total_price_cents, b.updated_at`

func bookingDest(b *Booking) []any {
	return []any{
		&b.ID, &b.UserID, &b.FlightID, &b.SeatID, &b.BookingDate,
		&b.PassengerFirstName, &b.PassengerLastName, &b.PassengerEmail, &b.PassengerPhone,
		&b.Status, &b.TotalPriceCents, &b.UpdatedAt,
	}
}

// GetBookingByID returns a booking by ID
func (s queries) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	var b Booking
	err := s.q.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = $1`, id).Scan(bookingDest(&b)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &b, nil
}

// ListUserBookings returns a user's bookings joined with flight and seat, newest first.
func (s queries) ListUserBookings(ctx context.Context, userID string, scope BookingScope, now time.Time) ([]BookingDetails, error) {
	where := `b.user_id = $1`
	args := []any{userID}
	switch scope {
	case BookingScopeUpcoming:
		where += ` AND b.status = 'confirmed' AND f.departure_time >= $2`
		args = append(args, now)
	case BookingScopePast:
		where += ` AND f.departure_time < $2`
		args = append(args, now)
	}

	rows, err := s.q.Query(ctx, `
		SELECT `+bookingColumns+`, `+flightColumns+`, s.seat_number
		FROM bookings b
		JOIN flights f ON f.id = b.flight_id
		JOIN seats s ON s.id = b.seat_id
		WHERE `+where+`
		ORDER BY b.booking_date DESC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var out []BookingDetails
	for rows.Next() {
		var d BookingDetails
		dest := append(bookingDest(&d.Booking), flightDest(&d.Flight)...)
		dest = append(dest, &d.SeatNumber)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// --- Transactional writes ---

type pgTx struct {
	queries
	tx pgx.Tx
}

func (t *pgTx) GetFlightForUpdate(ctx context.Context, id uuid.UUID) (*Flight, error) {
	return t.getFlight(ctx, `f.id = $1 FOR UPDATE`, id)
}

func (t *pgTx) GetSeatForUpdate(ctx context.Context, flightID uuid.UUID, seatNumber string) (*Seat, error) {
	st, err := scanSeat(t.tx.QueryRow(ctx, `
		SELECT `+seatColumns+` FROM seats s
		WHERE s.flight_id = $1 AND s.seat_number = $2
		FOR UPDATE
	`, flightID, seatNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock seat: %w", err)
	}
	return st, nil
}

func (t *pgTx) GetSeatByIDForUpdate(ctx context.Context, id uuid.UUID) (*Seat, error) {
	st, err := scanSeat(t.tx.QueryRow(ctx, `SELECT `+seatColumns+` FROM seats s WHERE s.id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock seat: %w", err)
	}
	return st, nil
}

func (t *pgTx) GetBookingForUpdate(ctx context.Context, id uuid.UUID) (*Booking, error) {
	var b Booking
	err := t.tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = $1 FOR UPDATE`, id).Scan(bookingDest(&b)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock booking: %w", err)
	}
	return &b, nil
}

func (t *pgTx) CreateBooking(ctx context.Context, b *Booking) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO bookings (
			id, user_id, flight_id, seat_id, booking_date,
			passenger_first_name, passenger_last_name, passenger_email, passenger_phone,
			status, total_price_cents
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING updated_at
	`, b.ID, b.UserID, b.FlightID, b.SeatID, b.BookingDate,
		b.PassengerFirstName, b.PassengerLastName, b.PassengerEmail, b.PassengerPhone,
		b.Status, b.TotalPriceCents,
	).Scan(&b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to BookingStatus) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE bookings SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("booking %s left status %s: %w", id, from, ErrTxConflict)
	}
	return nil
}

func (t *pgTx) MarkSeat(ctx context.Context, seatID uuid.UUID, from, to SeatStatus) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE seats SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, seatID, from, to)
	if err != nil {
		return fmt.Errorf("failed to update seat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSeatUnavailable
	}
	return nil
}

func (t *pgTx) AdjustAvailableSeats(ctx context.Context, flightID uuid.UUID, delta int) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE flights SET available_seats = available_seats + $2, updated_at = NOW()
		WHERE id = $1 AND available_seats + $2 BETWEEN 0 AND total_seats
	`, flightID, delta)
	if err != nil {
		return fmt.Errorf("failed to update available seats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCapacity
	}
	return nil
}

func (t *pgTx) CreateFlight(ctx context.Context, f *Flight) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO flights (
			id, airline_id, flight_number, origin_id, destination_id,
			departure_time, arrival_time, time_zone, base_price_cents,
			available_seats, total_seats
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`, f.ID, f.AirlineID, f.FlightNumber, f.OriginID, f.DestinationID,
		f.DepartureTime, f.ArrivalTime, f.TimeZone, f.BasePriceCents,
		f.AvailableSeats, f.TotalSeats,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create flight: %w", err)
	}
	return nil
}

// CreateSeats bulk-loads a flight's seat inventory with COPY.
func (t *pgTx) CreateSeats(ctx context.Context, flightID uuid.UUID, seatNumbers []string) ([]Seat, error) {
	now := time.Now().UTC()
	seats := make([]Seat, len(seatNumbers))
	rows := make([][]any, len(seatNumbers))
	for i, n := range seatNumbers {
		seats[i] = Seat{
			ID:         uuid.New(),
			FlightID:   flightID,
			SeatNumber: n,
			Status:     SeatStatusAvailable,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		rows[i] = []any{seats[i].ID, flightID, n, string(SeatStatusAvailable), now, now}
	}

	_, err := t.tx.CopyFrom(ctx,
		pgx.Identifier{"seats"},
		[]string{"id", "flight_id", "seat_number", "status", "created_at", "updated_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create seats: %w", err)
	}
	return seats, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
