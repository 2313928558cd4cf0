package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/flightdesk/reservation/internal/database"
	"github.com/flightdesk/reservation/internal/events"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CreateAirlineRequest struct {
	Name string `json:"name" validate:"required,max=100"`
	Code string `json:"code" validate:"required,alphanum,max=10"`
}

type CreateAirportRequest struct {
	Name    string `json:"name" validate:"required,max=100"`
	City    string `json:"city" validate:"required,max=100"`
	Country string `json:"country" validate:"required,max=100"`
	Code    string `json:"code" validate:"required,alphanum,max=10"`
}

// SeatLayout describes a flight's seats either as explicit numbers or as
// rows times column letters ("12", "ABCDEF" gives 1A..12F).
type SeatLayout struct {
	SeatNumbers []string `json:"seatNumbers,omitempty" validate:"omitempty,max=1000,dive,required,alphanum,max=5"`
	Rows        int      `json:"rows,omitempty" validate:"gte=0,max=100"`
	Columns     string   `json:"columns,omitempty" validate:"omitempty,alpha,max=10"`
}

// Numbers expands the layout into seat numbers in cabin order.
func (l SeatLayout) Numbers() []string {
	if len(l.SeatNumbers) > 0 {
		out := make([]string, len(l.SeatNumbers))
		for i, n := range l.SeatNumbers {
			out[i] = strings.ToUpper(strings.TrimSpace(n))
		}
		return out
	}
	cols := strings.ToUpper(l.Columns)
	out := make([]string, 0, l.Rows*len(cols))
	for row := 1; row <= l.Rows; row++ {
		for _, col := range cols {
			out = append(out, fmt.Sprintf("%d%c", row, col))
		}
	}
	return out
}

// ProvisionFlightRequest schedules a flight with its fixed seat inventory.
type ProvisionFlightRequest struct {
	AirlineCode     string     `json:"airlineCode" validate:"required,alphanum,max=10"`
	FlightNumber    string     `json:"flightNumber" validate:"required,alphanum,max=10"`
	OriginCode      string     `json:"originCode" validate:"required,alphanum,max=10"`
	DestinationCode string     `json:"destinationCode" validate:"required,alphanum,max=10"`
	DepartureTime   time.Time  `json:"departureTime"`
	ArrivalTime     time.Time  `json:"arrivalTime"`
	TimeZone        string     `json:"timeZone" validate:"max=64"`
	BasePriceCents  int64      `json:"basePriceCents" validate:"gt=0"`
	Seats           SeatLayout `json:"seats"`
}

func (r ProvisionFlightRequest) normalize() ProvisionFlightRequest {
	r.AirlineCode = strings.ToUpper(strings.TrimSpace(r.AirlineCode))
	r.FlightNumber = strings.ToUpper(strings.TrimSpace(r.FlightNumber))
	r.OriginCode = strings.ToUpper(strings.TrimSpace(r.OriginCode))
	r.DestinationCode = strings.ToUpper(strings.TrimSpace(r.DestinationCode))
	r.TimeZone = strings.TrimSpace(r.TimeZone)
	if r.TimeZone == "" {
		r.TimeZone = "UTC"
	}
	return r
}

// Validate checks the request after normalization.
func (r ProvisionFlightRequest) Validate() error {
	r = r.normalize()
	verr := checkStruct("", r)

	switch {
	case r.DepartureTime.IsZero():
		verr = verr.merge(invalid("departureTime", "is required"))
	case r.ArrivalTime.IsZero():
		verr = verr.merge(invalid("arrivalTime", "is required"))
	case !r.ArrivalTime.After(r.DepartureTime):
		verr = verr.merge(invalid("arrivalTime", "must be after departure"))
	}
	if r.OriginCode != "" && r.OriginCode == r.DestinationCode {
		verr = verr.merge(invalid("destinationCode", "must differ from origin"))
	}
	if _, err := time.LoadLocation(r.TimeZone); err != nil {
		verr = verr.merge(invalid("timeZone", "is not a known time zone"))
	}

	if len(r.Seats.SeatNumbers) > 0 && (r.Seats.Rows > 0 || r.Seats.Columns != "") {
		verr = verr.merge(invalid("seats", "use either seatNumbers or rows and columns"))
	}
	numbers := r.Seats.Numbers()
	if len(numbers) == 0 {
		verr = verr.merge(invalid("seats", "at least one seat is required"))
	}
	seen := make(map[string]struct{}, len(numbers))
	for _, n := range numbers {
		if _, dup := seen[n]; dup {
			verr = verr.merge(invalid("seats.seatNumbers", "must be unique"))
			break
		}
		seen[n] = struct{}{}
	}

	if verr != nil {
		return verr
	}
	return nil
}

// ProvisionedFlight is the flight created by provisioning and its seat numbers.
type ProvisionedFlight struct {
	Flight      database.Flight `json:"flight"`
	SeatNumbers []string        `json:"seatNumbers"`
}

// FlightScheduledEvent builds the flight.scheduled payload.
func FlightScheduledEvent(p *ProvisionedFlight) events.FlightScheduled {
	return events.FlightScheduled{
		FlightID:      p.Flight.ID.String(),
		FlightNumber:  p.Flight.FlightNumber,
		DepartureTime: p.Flight.DepartureTime,
		ArrivalTime:   p.Flight.ArrivalTime,
		TotalSeats:    p.Flight.TotalSeats,
	}
}

// Inventory writes flights and their seats to the store. It backs both the
// direct provisioning path and the workflow activity.
type Inventory struct {
	store  database.Store
	logger *zap.Logger
}

func NewInventory(store database.Store, logger *zap.Logger) *Inventory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inventory{store: store, logger: logger}
}

// CreateFlightInventory creates the flight and all of its seats in one
// transaction. Every seat starts available.
func (i *Inventory) CreateFlightInventory(ctx context.Context, req ProvisionFlightRequest) (*ProvisionedFlight, error) {
	req = req.normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	airline, err := i.store.GetAirlineByCode(ctx, req.AirlineCode)
	if err != nil {
		return nil, referenceError("airlineCode", "airline", err)
	}
	origin, err := i.store.GetAirportByCode(ctx, req.OriginCode)
	if err != nil {
		return nil, referenceError("originCode", "airport", err)
	}
	destination, err := i.store.GetAirportByCode(ctx, req.DestinationCode)
	if err != nil {
		return nil, referenceError("destinationCode", "airport", err)
	}

	numbers := req.Seats.Numbers()
	flight := &database.Flight{
		ID:             uuid.New(),
		AirlineID:      airline.ID,
		FlightNumber:   req.FlightNumber,
		OriginID:       origin.ID,
		DestinationID:  destination.ID,
		DepartureTime:  req.DepartureTime.UTC(),
		ArrivalTime:    req.ArrivalTime.UTC(),
		TimeZone:       req.TimeZone,
		BasePriceCents: req.BasePriceCents,
		AvailableSeats: len(numbers),
		TotalSeats:     len(numbers),
	}

	var seats []database.Seat
	err = i.store.WithTx(ctx, func(tx database.Tx) error {
		if err := tx.CreateFlight(ctx, flight); err != nil {
			return err
		}
		created, err := tx.CreateSeats(ctx, flight.ID, numbers)
		seats = created
		return err
	})
	if errors.Is(err, database.ErrConflict) {
		return nil, fmt.Errorf("flight %s: %w", req.FlightNumber, ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create flight inventory: %w", err)
	}

	out := &ProvisionedFlight{Flight: *flight, SeatNumbers: make([]string, len(seats))}
	for j, seat := range seats {
		out.SeatNumbers[j] = seat.SeatNumber
	}

	i.logger.Info("flight provisioned",
		zap.String("flight_id", flight.ID.String()),
		zap.String("flight_number", flight.FlightNumber),
		zap.Int("seats", len(seats)))
	return out, nil
}

func referenceError(field, kind string, err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return invalid(field, "unknown "+kind)
	}
	return fmt.Errorf("failed to resolve %s: %w", kind, err)
}

func (s *bookingServiceImpl) CreateAirline(ctx context.Context, req CreateAirlineRequest) (*database.Airline, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	if verr := checkStruct("", req); verr != nil {
		return nil, verr
	}

	airline := &database.Airline{ID: uuid.New(), Name: req.Name, Code: req.Code}
	if err := s.store.CreateAirline(ctx, airline); err != nil {
		if errors.Is(err, database.ErrConflict) {
			return nil, fmt.Errorf("airline %s: %w", req.Code, ErrConflict)
		}
		return nil, fmt.Errorf("failed to create airline: %w", err)
	}
	return airline, nil
}

func (s *bookingServiceImpl) CreateAirport(ctx context.Context, req CreateAirportRequest) (*database.Airport, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.City = strings.TrimSpace(req.City)
	req.Country = strings.TrimSpace(req.Country)
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	if verr := checkStruct("", req); verr != nil {
		return nil, verr
	}

	airport := &database.Airport{
		ID:      uuid.New(),
		Name:    req.Name,
		City:    req.City,
		Country: req.Country,
		Code:    req.Code,
	}
	if err := s.store.CreateAirport(ctx, airport); err != nil {
		if errors.Is(err, database.ErrConflict) {
			return nil, fmt.Errorf("airport %s: %w", req.Code, ErrConflict)
		}
		return nil, fmt.Errorf("failed to create airport: %w", err)
	}
	return airport, nil
}

// ProvisionFlight validates the request and hands it to the configured
// provisioner, or writes it directly when none is set.
func (s *bookingServiceImpl) ProvisionFlight(ctx context.Context, req ProvisionFlightRequest) (*ProvisionedFlight, error) {
	req = req.normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "BookingService.ProvisionFlight")
	defer span.End()

	if s.provisioner != nil {
		return s.provisioner.ProvisionFlight(ctx, req)
	}

	out, err := s.inventory.CreateFlightInventory(ctx, req)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.TopicFlightScheduled, events.EventFlightScheduled, out.Flight.ID, FlightScheduledEvent(out))
	return out, nil
}
