package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"tripdesk/internal/app/fanout"
	"tripdesk/internal/app/policies"
	"tripdesk/internal/domain/shared/fault"
)

// Inbox remembers which dedup keys were already handled.
type Inbox interface {
	Seen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

var DefaultBackoff = []time.Duration{200 * time.Millisecond, time.Second, 5 * time.Second}

var ErrNotifierMissing = errors.New("notify: deliverer missing notifier")

// Deliverer hands tasks to the notification sink at most once per dedup key,
// retrying a failed send along Backoff.
type Deliverer struct {
	Inbox    Inbox
	Notifier policies.Notifier
	Backoff  []time.Duration
	Logger   *slog.Logger
}

func (d *Deliverer) Deliver(ctx context.Context, task fanout.NotificationTask) error {
	if d.Notifier == nil {
		return ErrNotifierMissing
	}
	key := task.DedupKey
	if key == "" {
		key = fanout.DedupKey(task.Reference, task.Template)
	}
	if d.Inbox != nil {
		seen, err := d.Inbox.Seen(ctx, key)
		if err != nil {
			return fault.Wrap(fault.DependencyFailure, "notification inbox unavailable", err)
		}
		if seen {
			d.log().Debug("duplicate notification dropped", "dedup_key", key)
			return nil
		}
	}

	msg := policies.Message{Reference: task.Reference, Recipient: task.Recipient, Template: task.Template, DedupKey: key}
	err := d.send(ctx, msg)
	if err == nil {
		return nil
	}
	if d.Inbox != nil {
		if ferr := d.Inbox.Forget(context.WithoutCancel(ctx), key); ferr != nil {
			err = errors.Join(err, ferr)
		}
	}
	d.log().Error("notification delivery failed", "reference", task.Reference, "template", task.Template, "err", err)
	return fault.Wrap(fault.DependencyFailure, "notification delivery failed", err)
}

func (d *Deliverer) send(ctx context.Context, msg policies.Message) error {
	backoff := d.Backoff
	if backoff == nil {
		backoff = DefaultBackoff
	}
	var err error
	for attempt := 0; ; attempt++ {
		if err = d.Notifier.Send(ctx, msg); err == nil {
			return nil
		}
		if attempt >= len(backoff) {
			return err
		}
		d.log().Warn("notification send failed, retrying", "reference", msg.Reference, "attempt", attempt+1, "err", err)
		timer := time.NewTimer(backoff[attempt])
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
}

func (d *Deliverer) log() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// LogNotifier is the default sink: it only records what would be sent.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Send(ctx context.Context, msg policies.Message) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification dispatched", "reference", msg.Reference, "recipient", msg.Recipient, "template", msg.Template)
	return nil
}

var _ policies.Notifier = LogNotifier{}
