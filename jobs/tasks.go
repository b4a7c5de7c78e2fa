package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/gatehouse-io/gatehouse/internal/webhooks"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskWebhookDeliver is the task type for delivering a webhook event to
	// one endpoint.
	TaskWebhookDeliver = "webhook:deliver"
)

// NewWebhookDeliveryTask constructs an Asynq task for a single delivery.
func NewWebhookDeliveryTask(d webhooks.Delivery) (*asynq.Task, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWebhookDeliver, data, asynq.MaxRetry(8)), nil
}
