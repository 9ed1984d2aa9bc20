package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"tripdesk/internal/domain/shared/events"
)

// EventRecord is a domain event serialised for the transactional outbox.
type EventRecord struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Payload    []byte            `json:"payload"`
	OccurredAt time.Time         `json:"occurred_at"`
	Aggregate  string            `json:"aggregate"`
	Headers    map[string]string `json:"headers,omitempty"`
}

// Outbox accepts records inside a unit of work. Records become visible to the
// relay only once the unit commits.
type Outbox interface {
	Add(ctx context.Context, record EventRecord) error
}

// Flusher wakes the relay after a commit so delivery does not wait for the
// next poll.
type Flusher interface {
	Flush(ctx context.Context) error
}

type EventEncoder interface {
	Encode(ev events.DomainEvent) (EventRecord, error)
}

type JSONEventEncoder struct {
	IDGenerator func() string
}

func (e JSONEventEncoder) Encode(ev events.DomainEvent) (EventRecord, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return EventRecord{}, err
	}
	idGen := e.IDGenerator
	if idGen == nil {
		idGen = uuid.NewString
	}
	return EventRecord{
		ID:         idGen(),
		Name:       ev.EventName(),
		Payload:    payload,
		OccurredAt: ev.OccurredAt().UTC(),
		Aggregate:  ev.AggregateID(),
		Headers:    map[string]string{},
	}, nil
}

// RecordDomainEvents encodes evs and adds them to box in order.
func RecordDomainEvents(ctx context.Context, box Outbox, encoder EventEncoder, evs []events.DomainEvent) error {
	if box == nil || len(evs) == 0 {
		return nil
	}
	if encoder == nil {
		encoder = JSONEventEncoder{}
	}
	for _, ev := range evs {
		rec, err := encoder.Encode(ev)
		if err != nil {
			return err
		}
		if err := box.Add(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Claimed is a record handed to one relay worker.
type Claimed struct {
	EventRecord
	Attempts int
}

// Queue is the relay side of the outbox. Claim returns nil when nothing is
// due.
type Queue interface {
	Claim(ctx context.Context, workerID string) (*Claimed, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
}

// Publisher delivers one committed record downstream.
type Publisher interface {
	Publish(ctx context.Context, record EventRecord) error
}

// Publishers publishes each record to every publisher in order and stops at
// the first failure, leaving the record for redelivery.
type Publishers []Publisher

func (ps Publishers) Publish(ctx context.Context, record EventRecord) error {
	for _, p := range ps {
		if err := p.Publish(ctx, record); err != nil {
			return err
		}
	}
	return nil
}
