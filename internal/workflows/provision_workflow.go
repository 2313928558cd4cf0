package workflows

import (
	"time"

	"github.com/flightdesk/reservation/internal/activities"
	"github.com/flightdesk/reservation/internal/service"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// ProvisionFlightWorkflow creates a flight with its seat map and then
// announces it. Inventory failures that cannot succeed on retry end the
// workflow before anything is published.
func ProvisionFlightWorkflow(ctx workflow.Context, input service.ProvisionFlightRequest) (*service.ProvisionedFlight, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Provision flight workflow started", "flightNumber", input.FlightNumber)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	})

	var out service.ProvisionedFlight
	if err := workflow.ExecuteActivity(ctx, activities.CreateFlightInventoryName, input).Get(ctx, &out); err != nil {
		logger.Error("Flight inventory failed", "flightNumber", input.FlightNumber, "error", err)
		return nil, err
	}

	// The flight is committed at this point; a lost announcement is not worth failing it.
	if err := workflow.ExecuteActivity(ctx, activities.PublishFlightScheduledName, out).Get(ctx, nil); err != nil {
		logger.Warn("Failed to publish flight scheduled event", "flightId", out.Flight.ID.String(), "error", err)
	}

	logger.Info("Provision flight workflow completed", "flightId", out.Flight.ID.String(), "seats", len(out.SeatNumbers))
	return &out, nil
}
