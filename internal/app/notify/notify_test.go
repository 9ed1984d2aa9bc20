package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/require"

	"tripdesk/internal/app/fanout"
	"tripdesk/internal/app/policies"
	"tripdesk/internal/domain/shared/fault"
	"tripdesk/internal/infra/storage/memory"
)

type flakyNotifier struct {
	mu       sync.Mutex
	failures int
	sent     []policies.Message
	calls    int
}

func (n *flakyNotifier) Send(ctx context.Context, msg policies.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	if n.failures > 0 {
		n.failures--
		return errors.New("smtp timeout")
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *flakyNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func task(ref string) fanout.NotificationTask {
	return fanout.NotificationTask{
		Reference: ref,
		Recipient: "ben@example.com",
		Template:  fanout.TemplateReceived,
		DedupKey:  fanout.DedupKey(ref, fanout.TemplateReceived),
	}
}

func TestDeliverDropsDuplicates(t *testing.T) {
	notifier := &flakyNotifier{}
	d := &Deliverer{Inbox: memory.NewInbox(), Notifier: notifier, Backoff: []time.Duration{}}

	require.NoError(t, d.Deliver(context.Background(), task("TUR-1")))
	require.NoError(t, d.Deliver(context.Background(), task("TUR-1")))
	require.NoError(t, d.Deliver(context.Background(), task("TUR-2")))

	require.Equal(t, 2, notifier.count())
	require.Equal(t, "TUR-1:booking_received", notifier.sent[0].DedupKey)
}

func TestDeliverRetriesWithinBudget(t *testing.T) {
	notifier := &flakyNotifier{failures: 2}
	d := &Deliverer{Inbox: memory.NewInbox(), Notifier: notifier, Backoff: []time.Duration{time.Millisecond, time.Millisecond}}

	require.NoError(t, d.Deliver(context.Background(), task("TUR-1")))
	require.Equal(t, 3, notifier.calls)
	require.Equal(t, 1, notifier.count())
}

func TestDeliverGivesUpAndAllowsRedelivery(t *testing.T) {
	notifier := &flakyNotifier{failures: 2}
	inbox := memory.NewInbox()
	d := &Deliverer{Inbox: inbox, Notifier: notifier, Backoff: []time.Duration{time.Millisecond}}

	err := d.Deliver(context.Background(), task("TUR-1"))
	require.ErrorIs(t, err, fault.DependencyFailure)
	require.Equal(t, 2, notifier.calls)

	require.NoError(t, d.Deliver(context.Background(), task("TUR-1")), "failed key was forgotten")
	require.Equal(t, 1, notifier.count())
}

func TestDeliverStopsWaitingWhenCancelled(t *testing.T) {
	notifier := &flakyNotifier{failures: 5}
	d := &Deliverer{Notifier: notifier, Backoff: []time.Duration{time.Hour}}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := d.Deliver(ctx, task("TUR-1"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 1, notifier.calls)
}

func TestQueueRejectsWhenFull(t *testing.T) {
	q := NewQueue(1, nil)
	require.NoError(t, q.Enqueue(context.Background(), task("TUR-1")))
	err := q.Enqueue(context.Background(), task("TUR-2"))
	require.ErrorIs(t, err, ErrQueueFull)
	require.ErrorIs(t, err, fault.DependencyFailure)
	require.Equal(t, 1, q.Len())
}

func TestQueueWorkerDrains(t *testing.T) {
	notifier := &flakyNotifier{}
	q := NewQueue(8, nil)
	d := &Deliverer{Inbox: memory.NewInbox(), Notifier: notifier}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- q.Run(ctx, d) }()

	for _, ref := range []string{"TUR-1", "TUR-2", "TUR-1"} {
		require.NoError(t, q.Enqueue(ctx, task(ref)))
	}
	require.Eventually(t, func() bool { return notifier.count() == 2 && q.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestKafkaHandlerDecodesCloudEvent(t *testing.T) {
	notifier := &flakyNotifier{}
	h := KafkaHandler{Deliverer: &Deliverer{Inbox: memory.NewInbox(), Notifier: notifier}}
	body, err := json.Marshal(map[string]any{
		"specversion": "1.0",
		"id":          "e-1",
		"type":        "notification.task.v1",
		"data":        task("VEH-9"),
	})
	require.NoError(t, err)

	require.NoError(t, h.Handle(context.Background(), &sarama.ConsumerMessage{Topic: "notifications.tasks.v1", Value: body}))
	require.NoError(t, h.Handle(context.Background(), &sarama.ConsumerMessage{Topic: "notifications.tasks.v1", Value: []byte("nope")}))
	require.Equal(t, 1, notifier.count())
	require.Equal(t, "VEH-9", notifier.sent[0].Reference)
}
