package kafka

import (
	"context"
	"encoding/json"
	"time"

	"tripdesk/internal/app/fanout"
)

const (
	TasksTopic = "notifications.tasks.v1"
	taskType   = "notification.task.v1"
)

// TaskQueue publishes notification tasks for the notifier consumer group.
// Tasks are keyed by reference so one booking's tasks stay ordered.
type TaskQueue struct {
	Producer    Publisher
	TopicPrefix string
	Source      string
}

func (q *TaskQueue) Topic() string {
	return q.TopicPrefix + TasksTopic
}

func (q *TaskQueue) Enqueue(ctx context.Context, task fanout.NotificationTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	at := task.OccurredAt
	if at.IsZero() {
		at = time.Now()
	}
	payload, headers, err := encodeEnvelope(taskType, source(q.Source), task.Reference, at, data, map[string]string{"dedup-key": task.DedupKey})
	if err != nil {
		return err
	}
	return q.Producer.Publish(ctx, q.Topic(), task.Reference, payload, headers)
}

var _ fanout.TaskQueue = (*TaskQueue)(nil)
