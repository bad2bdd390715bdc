package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/cloudtasks/apiv2/cloudtaskspb"
	"github.com/google/uuid"
	"github.com/googleapis/gax-go/v2"
)

// HeaderDispatchID carries a per-dispatch ID for log correlation.
const HeaderDispatchID = "X-Dispatch-Id"

// TaskCreator is the subset of the Cloud Tasks client used here.
type TaskCreator interface {
	CreateTask(ctx context.Context, req *cloudtaskspb.CreateTaskRequest, opts ...gax.CallOption) (*cloudtaskspb.Task, error)
}

// CallbackTarget describes where and as whom queued work calls back.
type CallbackTarget struct {
	// ServiceURL is the service's base URL without a path. It is both the
	// callback host and the OIDC audience.
	ServiceURL string
	// ServiceAccount is the identity the OIDC token is minted for.
	ServiceAccount string
}

func (t CallbackTarget) url(endpoint Endpoint) string {
	return strings.TrimSuffix(t.ServiceURL, "/") + string(endpoint)
}

func (t CallbackTarget) audience() string {
	return strings.TrimSuffix(t.ServiceURL, "/")
}

// CloudTasks enqueues an HTTP task that POSTs the payload back to the
// service with an OIDC token.
type CloudTasks struct {
	client    TaskCreator
	queuePath string
	target    CallbackTarget
}

func NewCloudTasks(client TaskCreator, projectID, location, queue string, target CallbackTarget) *CloudTasks {
	return &CloudTasks{
		client:    client,
		queuePath: fmt.Sprintf("projects/%s/locations/%s/queues/%s", projectID, location, queue),
		target:    target,
	}
}

func (d *CloudTasks) Dispatch(ctx context.Context, endpoint Endpoint, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: encode payload: %v", ErrDispatchFailed, err)
	}
	dispatchID := uuid.NewString()
	logCtx := slog.With("endpoint", string(endpoint), "dispatchId", dispatchID, "queue", d.queuePath)

	req := &cloudtaskspb.CreateTaskRequest{
		Parent: d.queuePath,
		Task: &cloudtaskspb.Task{
			MessageType: &cloudtaskspb.Task_HttpRequest{
				HttpRequest: &cloudtaskspb.HttpRequest{
					HttpMethod: cloudtaskspb.HttpMethod_POST,
					Url:        d.target.url(endpoint),
					Headers: map[string]string{
						"Content-Type":   "application/json",
						HeaderDispatchID: dispatchID,
					},
					Body: body,
					AuthorizationHeader: &cloudtaskspb.HttpRequest_OidcToken{
						OidcToken: &cloudtaskspb.OidcToken{
							ServiceAccountEmail: d.target.ServiceAccount,
							Audience:            d.target.audience(),
						},
					},
				},
			},
		},
	}

	task, err := d.client.CreateTask(ctx, req)
	if err != nil {
		logCtx.Error("Failed to enqueue task", "error", err)
		return fmt.Errorf("%w: create task: %v", ErrDispatchFailed, err)
	}
	logCtx.Info("Task enqueued.", "taskName", task.GetName())
	return nil
}
