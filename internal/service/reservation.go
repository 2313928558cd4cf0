package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/flightdesk/reservation/internal/database"
	"github.com/flightdesk/reservation/internal/events"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ReserveRequest asks for one seat on one flight for one passenger.
type ReserveRequest struct {
	UserID     string
	FlightID   uuid.UUID
	SeatNumber string
	Passenger  Passenger
}

func (r ReserveRequest) validate() (ReserveRequest, error) {
	r.Passenger = r.Passenger.normalize()
	r.SeatNumber = strings.ToUpper(strings.TrimSpace(r.SeatNumber))

	var verr *ValidationError
	if r.UserID == "" {
		verr = verr.merge(invalid("userId", "is required"))
	}
	if r.SeatNumber == "" {
		verr = verr.merge(invalid("seatNumber", "is required"))
	}
	verr = verr.merge(checkStruct("passenger.", r.Passenger))
	if verr != nil {
		return r, verr
	}
	return r, nil
}

// Reserve books the seat, prices it and decrements the flight's counter in
// one transaction. Transaction conflicts are retried up to the configured
// attempts and then reported as ErrSeatUnavailable.
func (s *bookingServiceImpl) Reserve(ctx context.Context, req ReserveRequest) (*database.Booking, error) {
	ctx, span := s.tracer.Start(ctx, "BookingService.Reserve", trace.WithAttributes(
		attribute.String("flight.id", req.FlightID.String()),
		attribute.String("seat.number", req.SeatNumber),
	))
	defer span.End()

	req, err := req.validate()
	if err != nil {
		return nil, err
	}

	var booking *database.Booking
	err = s.retry(ctx, "reserve", func() error {
		b, err := s.reserveOnce(ctx, req)
		booking = b
		return err
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, translateReserveError(req, err)
	}

	s.logger.Info("booking confirmed",
		zap.String("booking_id", booking.ID.String()),
		zap.String("flight_id", booking.FlightID.String()),
		zap.String("seat", req.SeatNumber),
		zap.Int64("total_price_cents", booking.TotalPriceCents))

	s.publish(ctx, events.TopicBookingConfirmed, events.EventBookingConfirmed, booking.FlightID, bookingPayload(booking, req.SeatNumber))
	s.notifySeat(booking.FlightID, req.SeatNumber, database.SeatStatusOccupied)
	return booking, nil
}

func (s *bookingServiceImpl) reserveOnce(ctx context.Context, req ReserveRequest) (*database.Booking, error) {
	var booking *database.Booking
	err := s.store.WithTx(ctx, func(tx database.Tx) error {
		flight, err := tx.GetFlightForUpdate(ctx, req.FlightID)
		if err != nil {
			return fmt.Errorf("flight %s: %w", req.FlightID, err)
		}
		seat, err := tx.GetSeatForUpdate(ctx, flight.ID, req.SeatNumber)
		if err != nil {
			return fmt.Errorf("seat %s: %w", req.SeatNumber, err)
		}
		if seat.Status != database.SeatStatusAvailable || !flight.IsAvailable() {
			return database.ErrSeatUnavailable
		}

		now := s.now().UTC()
		booking = &database.Booking{
			ID:                 uuid.New(),
			UserID:             req.UserID,
			FlightID:           flight.ID,
			SeatID:             seat.ID,
			BookingDate:        now,
			PassengerFirstName: req.Passenger.FirstName,
			PassengerLastName:  req.Passenger.LastName,
			PassengerEmail:     req.Passenger.Email,
			PassengerPhone:     req.Passenger.Phone,
			Status:             database.BookingStatusConfirmed,
			TotalPriceCents:    flight.BasePriceCents + s.cfg.ServiceFeeCents,
			UpdatedAt:          now,
		}
		if err := tx.CreateBooking(ctx, booking); err != nil {
			return err
		}
		if err := tx.MarkSeat(ctx, seat.ID, database.SeatStatusAvailable, database.SeatStatusOccupied); err != nil {
			return err
		}
		return tx.AdjustAvailableSeats(ctx, flight.ID, -1)
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

func translateReserveError(req ReserveRequest, err error) error {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return fmt.Errorf("flight %s seat %s: %w", req.FlightID, req.SeatNumber, ErrNotFound)
	case errors.Is(err, database.ErrSeatUnavailable),
		errors.Is(err, database.ErrCapacity),
		errors.Is(err, database.ErrConflict),
		errors.Is(err, database.ErrTxConflict):
		return fmt.Errorf("seat %s: %w", req.SeatNumber, ErrSeatUnavailable)
	}
	return fmt.Errorf("failed to reserve seat: %w", err)
}

// Cancel releases the seat of a confirmed booking. Cancelling a booking that
// is not confirmed changes nothing and succeeds.
func (s *bookingServiceImpl) Cancel(ctx context.Context, userID string, bookingID uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "BookingService.Cancel", trace.WithAttributes(
		attribute.String("booking.id", bookingID.String()),
	))
	defer span.End()

	var (
		cancelled  *database.Booking
		seatNumber string
	)
	err := s.retry(ctx, "cancel", func() error {
		cancelled, seatNumber = nil, ""
		return s.store.WithTx(ctx, func(tx database.Tx) error {
			b, err := tx.GetBookingForUpdate(ctx, bookingID)
			if err != nil {
				return err
			}
			if b.UserID != userID {
				return database.ErrNotFound
			}
			if !database.CanTransition(b.Status, database.BookingStatusCancelled) {
				return nil
			}

			if _, err := tx.GetFlightForUpdate(ctx, b.FlightID); err != nil {
				return fmt.Errorf("flight %s: %w", b.FlightID, err)
			}
			seat, err := tx.GetSeatByIDForUpdate(ctx, b.SeatID)
			if err != nil {
				return fmt.Errorf("seat %s: %w", b.SeatID, err)
			}

			if err := tx.UpdateBookingStatus(ctx, b.ID, b.Status, database.BookingStatusCancelled); err != nil {
				return err
			}
			if err := tx.MarkSeat(ctx, seat.ID, database.SeatStatusOccupied, database.SeatStatusAvailable); err != nil {
				return fmt.Errorf("release seat %s: seat is not occupied", seat.SeatNumber)
			}
			if err := tx.AdjustAvailableSeats(ctx, b.FlightID, 1); err != nil {
				return fmt.Errorf("release seat %s: %v", seat.SeatNumber, err)
			}

			b.Status = database.BookingStatusCancelled
			cancelled, seatNumber = b, seat.SeatNumber
			return nil
		})
	})
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("booking %s: %w", bookingID, ErrNotFound)
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	if cancelled == nil {
		s.logger.Debug("cancel skipped, booking not confirmed", zap.String("booking_id", bookingID.String()))
		return nil
	}

	s.logger.Info("booking cancelled",
		zap.String("booking_id", bookingID.String()),
		zap.String("flight_id", cancelled.FlightID.String()),
		zap.String("seat", seatNumber))

	s.publish(ctx, events.TopicBookingCancelled, events.EventBookingCancelled, cancelled.FlightID, bookingPayload(cancelled, seatNumber))
	s.notifySeat(cancelled.FlightID, seatNumber, database.SeatStatusAvailable)
	return nil
}

// retry reruns fn while the store reports a transaction conflict.
func (s *bookingServiceImpl) retry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		err = fn()
		if !errors.Is(err, database.ErrTxConflict) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Debug("transaction conflict, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt))
	}
	return err
}

func bookingPayload(b *database.Booking, seatNumber string) events.BookingChanged {
	return events.BookingChanged{
		BookingID:       b.ID.String(),
		UserID:          b.UserID,
		FlightID:        b.FlightID.String(),
		SeatNumber:      seatNumber,
		Status:          string(b.Status),
		TotalPriceCents: b.TotalPriceCents,
	}
}
