package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

var enqueued = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "task_enqueue_total",
	Help: "Enqueue attempts by task type and result.",
}, []string{"type", "result"})

type Enqueuer interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(client *asynq.Client) Enqueuer {
	return &enqueuer{client: client}
}

// Enqueue wraps asynq errors with %w so callers can still match asynq.ErrTaskIDConflict.
func (e *enqueuer) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	info, err := e.client.EnqueueContext(ctx, task, opts...)
	switch {
	case errors.Is(err, asynq.ErrTaskIDConflict):
		enqueued.WithLabelValues(task.Type(), "duplicate").Inc()
		return nil, fmt.Errorf("enqueue %s: %w", task.Type(), err)
	case err != nil:
		enqueued.WithLabelValues(task.Type(), "error").Inc()
		zap.L().Error("failed to enqueue task", zap.String("task_type", task.Type()), zap.Error(err))
		return nil, fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}

	enqueued.WithLabelValues(task.Type(), "ok").Inc()
	zap.L().Debug("task enqueued",
		zap.String("task_type", task.Type()),
		zap.String("task_id", info.ID),
		zap.String("queue", info.Queue),
	)
	return info, nil
}
