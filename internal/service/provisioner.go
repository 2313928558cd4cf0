package service

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"
)

const (
	TaskQueue                   = "flight-reservation-queue"
	ProvisionFlightWorkflowName = "ProvisionFlightWorkflow"
	provisionWorkflowIDPrefix   = "provision-flight-"
)

// TemporalProvisioner runs provisioning as a workflow and waits for its result.
type TemporalProvisioner struct {
	client    client.Client
	taskQueue string
}

func NewTemporalProvisioner(c client.Client, taskQueue string) *TemporalProvisioner {
	if taskQueue == "" {
		taskQueue = TaskQueue
	}
	return &TemporalProvisioner{client: c, taskQueue: taskQueue}
}

func (p *TemporalProvisioner) ProvisionFlight(ctx context.Context, req ProvisionFlightRequest) (*ProvisionedFlight, error) {
	workflowOptions := client.StartWorkflowOptions{
		ID:        provisionWorkflowIDPrefix + req.FlightNumber,
		TaskQueue: p.taskQueue,
	}

	run, err := p.client.ExecuteWorkflow(ctx, workflowOptions, ProvisionFlightWorkflowName, req)
	if err != nil {
		return nil, fmt.Errorf("failed to start workflow: %w", err)
	}

	var out ProvisionedFlight
	if err := run.Get(ctx, &out); err != nil {
		return nil, FromApplicationError(err)
	}
	return &out, nil
}
