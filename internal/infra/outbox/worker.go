package outbox

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	appoutbox "tripdesk/internal/app/outbox"
)

// Worker relays committed outbox records to a publisher. A failed publish is
// rescheduled along Backoff, so delivery is at least once.
type Worker struct {
	Queue     appoutbox.Queue
	Publisher appoutbox.Publisher
	Interval  time.Duration
	ID        string
	Backoff   []time.Duration
	Logger    *slog.Logger

	wake chan struct{}
	now  func() time.Time
}

var DefaultBackoff = []time.Duration{time.Second, 5 * time.Second, 30 * time.Second, 2 * time.Minute}

var ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")

func NewWorker(queue appoutbox.Queue, publisher appoutbox.Publisher, interval time.Duration, logger *slog.Logger) *Worker {
	return &Worker{
		Queue:     queue,
		Publisher: publisher,
		Interval:  interval,
		ID:        uuid.NewString(),
		Backoff:   DefaultBackoff,
		Logger:    logger,
		wake:      make(chan struct{}, 1),
	}
}

// Flush asks the loop to drain now instead of waiting for the next tick.
func (w *Worker) Flush(context.Context) error {
	if w.wake == nil {
		return nil
	}
	select {
	case w.wake <- struct{}{}:
	default:
	}
	return nil
}

func (w *Worker) Run(ctx context.Context) error {
	if w.Queue == nil || w.Publisher == nil {
		return ErrWorkerNotConfigured
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-w.wake:
		}
		if err := w.Drain(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log().Error("outbox drain failed", "err", err)
		}
	}
}

// Drain relays every due record and returns once nothing is left to claim.
func (w *Worker) Drain(ctx context.Context) error {
	for {
		processed, err := w.processOnce(ctx)
		if err != nil || !processed {
			return err
		}
	}
}

func (w *Worker) processOnce(ctx context.Context) (bool, error) {
	claimed, err := w.Queue.Claim(ctx, w.workerID())
	if err != nil || claimed == nil {
		return false, err
	}
	if err := w.Publisher.Publish(ctx, claimed.EventRecord); err != nil {
		next := w.nextRetry(claimed.Attempts)
		w.log().Warn("outbox publish failed", "event_id", claimed.ID, "event", claimed.Name, "attempts", claimed.Attempts+1, "retry_at", next, "err", err)
		return true, w.Queue.MarkFailed(ctx, claimed.ID, next, err.Error())
	}
	return true, w.Queue.MarkSent(ctx, claimed.ID)
}

func (w *Worker) workerID() string {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	return w.ID
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return w.Interval
}

func (w *Worker) nextRetry(attempts int) time.Time {
	now := time.Now()
	if w.now != nil {
		now = w.now()
	}
	if attempts < len(w.Backoff) {
		return now.Add(w.Backoff[attempts])
	}
	if len(w.Backoff) > 0 {
		return now.Add(w.Backoff[len(w.Backoff)-1])
	}
	return now.Add(5 * time.Second)
}

func (w *Worker) log() *slog.Logger {
	if w.Logger == nil {
		return slog.Default()
	}
	return w.Logger
}

var _ appoutbox.Flusher = (*Worker)(nil)
