package notify

import (
	"context"
	"log/slog"

	"tripdesk/internal/app/fanout"
	"tripdesk/internal/domain/shared/fault"
)

var ErrQueueFull = fault.New(fault.DependencyFailure, "notification queue is full")

// Queue is the in-process task queue used when no broker is configured.
type Queue struct {
	tasks  chan fanout.NotificationTask
	logger *slog.Logger
}

func NewQueue(size int, logger *slog.Logger) *Queue {
	if size <= 0 {
		size = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{tasks: make(chan fanout.NotificationTask, size), logger: logger}
}

// Enqueue never blocks. A full queue is reported so the outbox retries later.
func (q *Queue) Enqueue(ctx context.Context, task fanout.NotificationTask) error {
	select {
	case q.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (q *Queue) Len() int { return len(q.tasks) }

// Run drains the queue into d until ctx is done. Delivery errors are logged
// by the deliverer and do not stop the loop.
func (q *Queue) Run(ctx context.Context, d *Deliverer) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case task := <-q.tasks:
			if err := d.Deliver(ctx, task); err != nil && ctx.Err() == nil {
				q.logger.Debug("notification task dropped", "reference", task.Reference, "err", err)
			}
		}
	}
}

var _ fanout.TaskQueue = (*Queue)(nil)
