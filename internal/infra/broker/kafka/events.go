package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	appoutbox "tripdesk/internal/app/outbox"
)

const defaultSource = "app://tripdesk"

// EventPublisher forwards committed domain events to `<aggregate>.events.v1`
// topics for downstream consumers.
type EventPublisher struct {
	Producer    Publisher
	TopicPrefix string
	Source      string
}

var ErrInvalidPayload = errors.New("kafka: outbox payload is not json")

func (p *EventPublisher) Publish(ctx context.Context, record appoutbox.EventRecord) error {
	if !json.Valid(record.Payload) {
		return ErrInvalidPayload
	}
	payload, headers, err := encodeEnvelope(record.Name+".v1", source(p.Source), record.Aggregate, record.OccurredAt, record.Payload, record.Headers)
	if err != nil {
		return err
	}
	headers["event-id"] = record.ID
	return p.Producer.Publish(ctx, p.topicFor(record.Name), record.Aggregate, payload, headers)
}

func (p *EventPublisher) topicFor(name string) string {
	base := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		base = name[:idx]
	}
	return p.TopicPrefix + base + ".events.v1"
}

func source(s string) string {
	if s != "" {
		return s
	}
	return defaultSource
}

var _ appoutbox.Publisher = (*EventPublisher)(nil)
