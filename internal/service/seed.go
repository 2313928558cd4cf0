package service

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// SeedDemoInventory loads a few airlines, airports and flights so a fresh
// in-memory store has something to search. Existing entries are skipped.
func SeedDemoInventory(ctx context.Context, svc BookingService, now time.Time) error {
	airlines := []CreateAirlineRequest{
		{Name: "American Airlines", Code: "AA"},
		{Name: "United Airlines", Code: "UA"},
		{Name: "Delta Air Lines", Code: "DL"},
	}
	for _, a := range airlines {
		if _, err := svc.CreateAirline(ctx, a); err != nil && !errors.Is(err, ErrConflict) {
			return fmt.Errorf("seed airline %s: %w", a.Code, err)
		}
	}

	airports := []CreateAirportRequest{
		{Name: "John F. Kennedy International", City: "New York", Country: "USA", Code: "JFK"},
		{Name: "Los Angeles International", City: "Los Angeles", Country: "USA", Code: "LAX"},
		{Name: "O'Hare International", City: "Chicago", Country: "USA", Code: "ORD"},
		{Name: "Miami International", City: "Miami", Country: "USA", Code: "MIA"},
		{Name: "San Francisco International", City: "San Francisco", Country: "USA", Code: "SFO"},
		{Name: "Seattle-Tacoma International", City: "Seattle", Country: "USA", Code: "SEA"},
	}
	for _, a := range airports {
		if _, err := svc.CreateAirport(ctx, a); err != nil && !errors.Is(err, ErrConflict) {
			return fmt.Errorf("seed airport %s: %w", a.Code, err)
		}
	}

	cabin := SeatLayout{Rows: 30, Columns: "ABCDEF"}
	day := now.Truncate(time.Hour)
	flights := []ProvisionFlightRequest{
		{
			AirlineCode: "AA", FlightNumber: "AA123", OriginCode: "JFK", DestinationCode: "LAX",
			DepartureTime: day.Add(24 * time.Hour), ArrivalTime: day.Add(30 * time.Hour),
			TimeZone: "America/New_York", BasePriceCents: 15000, Seats: cabin,
		},
		{
			AirlineCode: "UA", FlightNumber: "UA456", OriginCode: "ORD", DestinationCode: "MIA",
			DepartureTime: day.Add(48 * time.Hour), ArrivalTime: day.Add(52 * time.Hour),
			TimeZone: "America/Chicago", BasePriceCents: 20000, Seats: cabin,
		},
		{
			AirlineCode: "DL", FlightNumber: "DL789", OriginCode: "SFO", DestinationCode: "SEA",
			DepartureTime: day.Add(12 * time.Hour), ArrivalTime: day.Add(14 * time.Hour),
			TimeZone: "America/Los_Angeles", BasePriceCents: 12000, Seats: cabin,
		},
	}
	for _, f := range flights {
		if _, err := svc.ProvisionFlight(ctx, f); err != nil && !errors.Is(err, ErrConflict) {
			return fmt.Errorf("seed flight %s: %w", f.FlightNumber, err)
		}
	}
	return nil
}
