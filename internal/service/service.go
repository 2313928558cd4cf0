package service

import (
	"context"
	"time"

	"github.com/flightdesk/reservation/internal/database"
	"github.com/flightdesk/reservation/internal/events"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	DefaultServiceFeeCents = 4550
	DefaultMaxAttempts     = 3
	DefaultSearchCacheTTL  = 30 * time.Second

	producerName = "reservation-api"
)

// BookingService defines the reservation, search, listing and admin operations
type BookingService interface {
	FindFlights(ctx context.Context, q SearchQuery) ([]database.Flight, error)
	GetFlight(ctx context.Context, flightID uuid.UUID) (*database.Flight, error)
	ListFlightSeats(ctx context.Context, flightID uuid.UUID) ([]database.Seat, error)

	Reserve(ctx context.Context, req ReserveRequest) (*database.Booking, error)
	Cancel(ctx context.Context, userID string, bookingID uuid.UUID) error

	ListBookings(ctx context.Context, userID string, scope database.BookingScope) ([]database.BookingDetails, error)
	GetBooking(ctx context.Context, userID string, bookingID uuid.UUID) (*database.BookingDetails, error)

	CreateAirline(ctx context.Context, req CreateAirlineRequest) (*database.Airline, error)
	CreateAirport(ctx context.Context, req CreateAirportRequest) (*database.Airport, error)
	ProvisionFlight(ctx context.Context, req ProvisionFlightRequest) (*ProvisionedFlight, error)
}

// SeatNotifier is told about seat status changes after they commit.
type SeatNotifier interface {
	NotifySeatChanged(flightID uuid.UUID, seatNumber string, status database.SeatStatus)
}

// SearchCache stores encoded search results for a short time.
type SearchCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// FlightProvisioner creates a flight with its seat inventory.
type FlightProvisioner interface {
	ProvisionFlight(ctx context.Context, req ProvisionFlightRequest) (*ProvisionedFlight, error)
}

// Config holds the tunables of the booking service.
type Config struct {
	ServiceFeeCents int64
	MaxAttempts     int
	SearchCacheTTL  time.Duration
}

type Option func(*bookingServiceImpl)

func WithLogger(l *zap.Logger) Option {
	return func(s *bookingServiceImpl) { s.logger = l }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *bookingServiceImpl) { s.publisher = p }
}

func WithSeatNotifier(n SeatNotifier) Option {
	return func(s *bookingServiceImpl) { s.notifier = n }
}

func WithSearchCache(c SearchCache) Option {
	return func(s *bookingServiceImpl) { s.cache = c }
}

// WithProvisioner routes ProvisionFlight through p instead of the store.
func WithProvisioner(p FlightProvisioner) Option {
	return func(s *bookingServiceImpl) { s.provisioner = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *bookingServiceImpl) { s.now = now }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *bookingServiceImpl) { s.tracer = t }
}

// bookingServiceImpl implements BookingService
type bookingServiceImpl struct {
	store       database.Store
	inventory   *Inventory
	publisher   events.Publisher
	notifier    SeatNotifier
	cache       SearchCache
	provisioner FlightProvisioner

	cfg    Config
	now    func() time.Time
	logger *zap.Logger
	tracer trace.Tracer
}

// NewBookingService creates a new BookingService
func NewBookingService(store database.Store, cfg Config, opts ...Option) BookingService {
	if cfg.ServiceFeeCents < 0 {
		cfg.ServiceFeeCents = DefaultServiceFeeCents
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.SearchCacheTTL <= 0 {
		cfg.SearchCacheTTL = DefaultSearchCacheTTL
	}
	s := &bookingServiceImpl{
		store:     store,
		publisher: events.Discard{},
		cfg:       cfg,
		now:       time.Now,
		logger:    zap.NewNop(),
		tracer:    otel.Tracer("github.com/flightdesk/reservation/internal/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.inventory = NewInventory(store, s.logger)
	return s
}

// publish sends an event after commit. Failures are logged only.
func (s *bookingServiceImpl) publish(ctx context.Context, topic, eventType string, key uuid.UUID, payload any) {
	env, err := events.NewEnvelope(eventType, producerName, middleware.GetReqID(ctx), payload)
	if err == nil {
		err = s.publisher.Publish(ctx, topic, []byte(key.String()), env)
	}
	if err != nil {
		s.logger.Warn("event publish failed",
			zap.String("topic", topic),
			zap.String("key", key.String()),
			zap.Error(err))
	}
}

func (s *bookingServiceImpl) notifySeat(flightID uuid.UUID, seatNumber string, status database.SeatStatus) {
	if s.notifier != nil {
		s.notifier.NotifySeatChanged(flightID, seatNumber, status)
	}
}
