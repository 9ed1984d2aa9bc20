package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tripdesk/internal/app/fanout"
	appoutbox "tripdesk/internal/app/outbox"
)

type sent struct {
	topic   string
	key     string
	payload []byte
	headers map[string]string
}

type fakeProducer struct {
	messages []sent
}

func (p *fakeProducer) Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	p.messages = append(p.messages, sent{topic: topic, key: key, payload: payload, headers: headers})
	return nil
}

func TestEventPublisherWrapsCloudEvent(t *testing.T) {
	producer := &fakeProducer{}
	pub := &EventPublisher{Producer: producer, TopicPrefix: "dev."}
	at := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

	err := pub.Publish(context.Background(), appoutbox.EventRecord{
		ID:         "evt-1",
		Name:       "booking.status_changed",
		Payload:    []byte(`{"reference":"VEH-250101-ABCDEFGHJK"}`),
		OccurredAt: at,
		Aggregate:  "b-1",
		Headers:    map[string]string{"traceparent": "00-abc-def-01"},
	})
	require.NoError(t, err)
	require.Len(t, producer.messages, 1)
	msg := producer.messages[0]
	require.Equal(t, "dev.booking.events.v1", msg.topic)
	require.Equal(t, "b-1", msg.key)
	require.Equal(t, "application/cloudevents+json", msg.headers["content-type"])
	require.Equal(t, "evt-1", msg.headers["event-id"])

	var env Envelope
	require.NoError(t, json.Unmarshal(msg.payload, &env))
	require.Equal(t, "1.0", env.SpecVersion)
	require.Equal(t, "booking.status_changed.v1", env.Type)
	require.Equal(t, "app://tripdesk", env.Source)
	require.Equal(t, "00-abc-def-01", env.TraceParent)
	require.True(t, at.Equal(env.Time))
	require.JSONEq(t, `{"reference":"VEH-250101-ABCDEFGHJK"}`, string(env.Data))
}

func TestEventPublisherRejectsBrokenPayload(t *testing.T) {
	pub := &EventPublisher{Producer: &fakeProducer{}}
	err := pub.Publish(context.Background(), appoutbox.EventRecord{Name: "booking.created", Payload: []byte("{")})
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestTaskQueueKeysByReference(t *testing.T) {
	producer := &fakeProducer{}
	q := &TaskQueue{Producer: producer}
	task := fanout.NotificationTask{
		Reference:  "TUR-250101-ABCDEFGHJK",
		Recipient:  "ben@example.com",
		Template:   fanout.TemplateReceived,
		DedupKey:   fanout.DedupKey("TUR-250101-ABCDEFGHJK", fanout.TemplateReceived),
		OccurredAt: time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC),
	}
	require.NoError(t, q.Enqueue(context.Background(), task))

	msg := producer.messages[0]
	require.Equal(t, TasksTopic, msg.topic)
	require.Equal(t, task.Reference, msg.key)
	require.Equal(t, task.DedupKey, msg.headers["dedup-key"])

	var env struct {
		Type string                  `json:"type"`
		Data fanout.NotificationTask `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg.payload, &env))
	require.Equal(t, "notification.task.v1", env.Type)
	require.Equal(t, task, env.Data)
}
