package worker

import (
	"context"
	"errors"
	"time"

	"marketplace-core/internal/worker/tasks"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Client 封装 Asynq Client
type Client struct {
	client    *asynq.Client
	maxRetry  int
	uniqueFor time.Duration
}

// NewClient 初始化 Client
func NewClient(opt asynq.RedisConnOpt, maxRetry int, uniqueFor time.Duration) *Client {
	return &Client{client: asynq.NewClient(opt), maxRetry: maxRetry, uniqueFor: uniqueFor}
}

// EnqueueReconcile queues one reconcile pass. A pass already queued for the scope counts as success.
func (c *Client) EnqueueReconcile(ctx context.Context, scopeID uuid.UUID) error {
	task, err := tasks.NewReconcileTask(scopeID, c.maxRetry, c.uniqueFor)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

// Close 关闭客户端连接
func (c *Client) Close() error {
	return c.client.Close()
}
