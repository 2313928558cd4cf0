package database

import (
	"time"

	"github.com/google/uuid"
)

// Airline is reference data, immutable once created
type Airline struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"createdAt"`
}

// Airport is reference data, immutable once created
type Airport struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	City      string    `json:"city"`
	Country   string    `json:"country"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"createdAt"`
}

// Flight represents a scheduled flight and its seat counter
type Flight struct {
	ID             uuid.UUID `json:"id"`
	AirlineID      uuid.UUID `json:"airlineId"`
	FlightNumber   string    `json:"flightNumber"`
	OriginID       uuid.UUID `json:"originId"`
	DestinationID  uuid.UUID `json:"destinationId"`
	DepartureTime  time.Time `json:"departureTime"`
	ArrivalTime    time.Time `json:"arrivalTime"`
	TimeZone       string    `json:"timeZone"`
	BasePriceCents int64     `json:"basePriceCents"`
	AvailableSeats int       `json:"availableSeats"`
	TotalSeats     int       `json:"totalSeats"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Duration is the scheduled block time of the flight.
func (f *Flight) Duration() time.Duration {
	return f.ArrivalTime.Sub(f.DepartureTime)
}

// IsAvailable reports whether at least one seat is left.
func (f *Flight) IsAvailable() bool {
	return f.AvailableSeats > 0
}

// Location resolves the flight's recorded time zone, falling back to UTC.
func (f *Flight) Location() *time.Location {
	if f.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(f.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DepartureDate is the calendar day of departure in the flight's time zone.
func (f *Flight) DepartureDate() string {
	return f.DepartureTime.In(f.Location()).Format(DateLayout)
}

// DateLayout is the calendar-day format used by search and the schema.
const DateLayout = "2006-01-02"

// SeatStatus represents the status of a seat
type SeatStatus string

const (
	SeatStatusAvailable SeatStatus = "available"
	SeatStatusOccupied  SeatStatus = "occupied"
	// SeatStatusSelected is accepted by the schema but never assigned.
	SeatStatusSelected SeatStatus = "selected"
)

// Seat is one entry of a flight's fixed seat inventory
type Seat struct {
	ID         uuid.UUID  `json:"id"`
	FlightID   uuid.UUID  `json:"flightId"`
	SeatNumber string     `json:"seatNumber"`
	Status     SeatStatus `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// BookingStatus represents the status of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

var validNext = map[BookingStatus]map[BookingStatus]bool{
	BookingStatusPending:   {},
	BookingStatusConfirmed: {BookingStatusCancelled: true},
	BookingStatusCancelled: {},
}

// CanTransition reports whether a booking may move from one status to another.
func CanTransition(from, to BookingStatus) bool {
	return validNext[from][to]
}

// Booking is a ledger entry tying a user and a passenger to one seat
type Booking struct {
	ID                 uuid.UUID     `json:"id"`
	UserID             string        `json:"userId"`
	FlightID           uuid.UUID     `json:"flightId"`
	SeatID             uuid.UUID     `json:"seatId"`
	BookingDate        time.Time     `json:"bookingDate"`
	PassengerFirstName string        `json:"passengerFirstName"`
	PassengerLastName  string        `json:"passengerLastName"`
	PassengerEmail     string        `json:"passengerEmail"`
	PassengerPhone     string        `json:"passengerPhone"`
	Status             BookingStatus `json:"status"`
	TotalPriceCents    int64         `json:"totalPriceCents"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

// PassengerFullName joins first and last name.
func (b *Booking) PassengerFullName() string {
	return b.PassengerFirstName + " " + b.PassengerLastName
}

// BookingDetails is a booking joined with its flight and seat
type BookingDetails struct {
	Booking    Booking `json:"booking"`
	Flight     Flight  `json:"flight"`
	SeatNumber string  `json:"seatNumber"`
}

// BookingScope selects which of a user's bookings are listed
type BookingScope string

const (
	BookingScopeAll      BookingScope = "all"
	BookingScopeUpcoming BookingScope = "upcoming"
	BookingScopePast     BookingScope = "past"
)

// FlightFilter holds the search predicates over flights
type FlightFilter struct {
	OriginIDs      []uuid.UUID
	DestinationIDs []uuid.UUID
	// Date is a calendar day in DateLayout, matched in each flight's time zone.
	Date     string
	MinSeats int
}
