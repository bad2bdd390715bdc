package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"cloud.google.com/go/workflows/executions/apiv1/executionspb"
	"github.com/google/uuid"
	"github.com/googleapis/gax-go/v2"
)

// ExecutionCreator is the subset of the Workflows Executions client used here.
type ExecutionCreator interface {
	CreateExecution(ctx context.Context, req *executionspb.CreateExecutionRequest, opts ...gax.CallOption) (*executionspb.Execution, error)
}

// CallbackArgument is the execution argument read by the callback workflow
// (deploy/callback-workflow.yaml), which POSTs Body to URL with an OIDC
// token for Audience.
type CallbackArgument struct {
	URL        string          `json:"url"`
	Audience   string          `json:"audience"`
	DispatchID string          `json:"dispatchId"`
	Body       json.RawMessage `json:"body"`
}

// Workflows starts one execution of the callback workflow per dispatch.
type Workflows struct {
	client       ExecutionCreator
	workflowPath string
	target       CallbackTarget
}

func NewWorkflows(client ExecutionCreator, projectID, location, workflowID string, target CallbackTarget) *Workflows {
	return &Workflows{
		client:       client,
		workflowPath: fmt.Sprintf("projects/%s/locations/%s/workflows/%s", projectID, location, workflowID),
		target:       target,
	}
}

func (d *Workflows) Dispatch(ctx context.Context, endpoint Endpoint, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: encode payload: %v", ErrDispatchFailed, err)
	}
	arg := CallbackArgument{
		URL:        d.target.url(endpoint),
		Audience:   d.target.audience(),
		DispatchID: uuid.NewString(),
		Body:       body,
	}
	argBytes, err := json.Marshal(arg)
	if err != nil {
		return fmt.Errorf("%w: encode workflow argument: %v", ErrDispatchFailed, err)
	}
	logCtx := slog.With("endpoint", string(endpoint), "dispatchId", arg.DispatchID, "workflow", d.workflowPath)

	exec, err := d.client.CreateExecution(ctx, &executionspb.CreateExecutionRequest{
		Parent: d.workflowPath,
		Execution: &executionspb.Execution{
			Argument: string(argBytes),
		},
	})
	if err != nil {
		logCtx.Error("Failed to trigger workflow execution", "error", err)
		return fmt.Errorf("%w: create execution: %v", ErrDispatchFailed, err)
	}
	logCtx.Info("Workflow execution started.", "executionName", exec.GetName())
	return nil
}
