package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flightdesk/reservation/internal/database"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// SearchQuery filters flights by route, calendar day and free seats.
type SearchQuery struct {
	Origin      string
	Destination string
	// Date is the calendar day of departure; only its year, month and day count.
	Date     time.Time
	MinSeats int
}

func (q SearchQuery) normalize() SearchQuery {
	q.Origin = strings.TrimSpace(q.Origin)
	q.Destination = strings.TrimSpace(q.Destination)
	return q
}

func (q SearchQuery) validate() error {
	var verr *ValidationError
	if q.Origin == "" {
		verr = verr.merge(invalid("origin", "is required"))
	}
	if q.Destination == "" {
		verr = verr.merge(invalid("destination", "is required"))
	}
	if q.Date.IsZero() {
		verr = verr.merge(invalid("date", "is required"))
	}
	if q.MinSeats < 0 {
		verr = verr.merge(invalid("passengers", "must not be negative"))
	}
	if verr != nil {
		return verr
	}
	return nil
}

func (q SearchQuery) day() string {
	return q.Date.Format(database.DateLayout)
}

func (q SearchQuery) cacheKey() string {
	return fmt.Sprintf("search:flights:%s:%s:%s:%d",
		strings.ToLower(q.Origin), strings.ToLower(q.Destination), q.day(), q.MinSeats)
}

// FindFlights lists flights between the matched airports departing on the
// requested local day with at least MinSeats free, earliest first.
func (s *bookingServiceImpl) FindFlights(ctx context.Context, q SearchQuery) ([]database.Flight, error) {
	q = q.normalize()
	if err := q.validate(); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "BookingService.FindFlights", trace.WithAttributes(
		attribute.String("search.origin", q.Origin),
		attribute.String("search.destination", q.Destination),
		attribute.String("search.date", q.day()),
	))
	defer span.End()

	key := q.cacheKey()
	if flights, ok := s.cachedFlights(ctx, key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return flights, nil
	}

	flights, err := s.searchStore(ctx, q)
	if err != nil {
		return nil, err
	}
	s.cacheFlights(ctx, key, flights)
	return flights, nil
}

func (s *bookingServiceImpl) searchStore(ctx context.Context, q SearchQuery) ([]database.Flight, error) {
	origins, err := s.store.FindAirports(ctx, q.Origin)
	if err != nil {
		return nil, fmt.Errorf("failed to match origin: %w", err)
	}
	destinations, err := s.store.FindAirports(ctx, q.Destination)
	if err != nil {
		return nil, fmt.Errorf("failed to match destination: %w", err)
	}
	if len(origins) == 0 || len(destinations) == 0 {
		return []database.Flight{}, nil
	}

	flights, err := s.store.FindFlights(ctx, database.FlightFilter{
		OriginIDs:      airportIDs(origins),
		DestinationIDs: airportIDs(destinations),
		Date:           q.day(),
		MinSeats:       q.MinSeats,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search flights: %w", err)
	}
	if flights == nil {
		flights = []database.Flight{}
	}
	return flights, nil
}

func (s *bookingServiceImpl) cachedFlights(ctx context.Context, key string) ([]database.Flight, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("search cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var flights []database.Flight
	if err := json.Unmarshal(raw, &flights); err != nil {
		s.logger.Warn("search cache entry unreadable", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return flights, true
}

func (s *bookingServiceImpl) cacheFlights(ctx context.Context, key string, flights []database.Flight) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(flights)
	if err == nil {
		err = s.cache.Set(ctx, key, raw, s.cfg.SearchCacheTTL)
	}
	if err != nil {
		s.logger.Warn("search cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *bookingServiceImpl) GetFlight(ctx context.Context, flightID uuid.UUID) (*database.Flight, error) {
	flight, err := s.store.GetFlightByID(ctx, flightID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("flight %s: %w", flightID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flight: %w", err)
	}
	return flight, nil
}

// ListFlightSeats returns the seat map of a flight ordered by seat number.
func (s *bookingServiceImpl) ListFlightSeats(ctx context.Context, flightID uuid.UUID) ([]database.Seat, error) {
	if _, err := s.GetFlight(ctx, flightID); err != nil {
		return nil, err
	}
	seats, err := s.store.GetFlightSeats(ctx, flightID)
	if err != nil {
		return nil, fmt.Errorf("failed to list seats: %w", err)
	}
	return seats, nil
}

func airportIDs(airports []database.Airport) []uuid.UUID {
	ids := make([]uuid.UUID, len(airports))
	for i, a := range airports {
		ids[i] = a.ID
	}
	return ids
}
