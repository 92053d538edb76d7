package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Queue enqueues background work. It is the services' Mailer and ImageQueue.
type Queue struct {
	client *asynq.Client
}

func NewQueue(client *asynq.Client) *Queue {
	return &Queue{client: client}
}

func (q *Queue) enqueue(ctx context.Context, taskType string, payload interface{}, opts ...asynq.Option) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s task: %w", taskType, err)
	}
	if _, err := q.client.EnqueueContext(ctx, asynq.NewTask(taskType, body), opts...); err != nil {
		return fmt.Errorf("enqueue %s task: %w", taskType, err)
	}
	return nil
}

// SendTemplate queues a templated email; delivery is retried up to five times.
func (q *Queue) SendTemplate(ctx context.Context, to, templateID string, data map[string]interface{}) error {
	return q.enqueue(ctx, TypeEmailDelivery,
		EmailTaskPayload{To: to, TemplateID: templateID, Data: data},
		asynq.Queue(queueCritical), asynq.MaxRetry(5))
}

// EnqueueImage queues normalisation of an uploaded product image.
func (q *Queue) EnqueueImage(ctx context.Context, productID primitive.ObjectID, key string) error {
	return q.enqueue(ctx, TypeImageProcess,
		ImageTaskPayload{S3Key: key, ProductID: productID.Hex()},
		asynq.Queue(queueImages))
}
