package activities

import (
	"context"
	"fmt"

	"github.com/flightdesk/reservation/internal/events"
	"github.com/flightdesk/reservation/internal/service"
	"go.temporal.io/sdk/activity"
)

const (
	CreateFlightInventoryName  = "CreateFlightInventory"
	PublishFlightScheduledName = "PublishFlightScheduled"

	producerName = "reservation-worker"
)

// Activities holds the dependencies of the provisioning activities.
type Activities struct {
	Inventory *service.Inventory
	Publisher events.Publisher
}

// CreateFlightInventory activity - writes the flight and its seats in one transaction.
// Validation and uniqueness failures are not retried.
func (a *Activities) CreateFlightInventory(ctx context.Context, req service.ProvisionFlightRequest) (*service.ProvisionedFlight, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Creating flight inventory", "flightNumber", req.FlightNumber, "attempt", activity.GetInfo(ctx).Attempt)

	out, err := a.Inventory.CreateFlightInventory(ctx, req)
	if err != nil {
		logger.Warn("Flight inventory not created", "flightNumber", req.FlightNumber, "error", err)
		return nil, service.ToApplicationError(err)
	}

	logger.Info("Flight inventory created", "flightId", out.Flight.ID.String(), "seats", len(out.SeatNumbers))
	return out, nil
}

// PublishFlightScheduled activity - announces a provisioned flight on the event bus.
func (a *Activities) PublishFlightScheduled(ctx context.Context, flight service.ProvisionedFlight) error {
	logger := activity.GetLogger(ctx)
	info := activity.GetInfo(ctx)

	env, err := events.NewEnvelope(events.EventFlightScheduled, producerName, info.WorkflowExecution.ID, service.FlightScheduledEvent(&flight))
	if err != nil {
		return fmt.Errorf("failed to build event: %w", err)
	}
	if err := a.Publisher.Publish(ctx, events.TopicFlightScheduled, []byte(flight.Flight.ID.String()), env); err != nil {
		return fmt.Errorf("failed to publish %s: %w", events.TopicFlightScheduled, err)
	}

	logger.Info("Flight scheduled event published", "flightId", flight.Flight.ID.String(), "eventId", env.EventID)
	return nil
}
