package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	appoutbox "tripdesk/internal/app/outbox"
	domainbooking "tripdesk/internal/domain/booking"
	"tripdesk/internal/domain/shared/fault"
)

const (
	TemplateReceived = "booking_received"
	templatePrefix   = "booking_"
)

// NotificationTask asks the notification collaborator to tell the guest
// about a booking. DedupKey is stable across redeliveries of one event.
type NotificationTask struct {
	Reference  string    `json:"reference"`
	Recipient  string    `json:"recipient"`
	Template   string    `json:"template"`
	DedupKey   string    `json:"dedup_key"`
	BookingID  string    `json:"booking_id"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

type TaskQueue interface {
	Enqueue(ctx context.Context, task NotificationTask) error
}

func DedupKey(reference, template string) string {
	return reference + ":" + template
}

// Relay turns committed booking events into dashboard events and
// notification tasks. It is the outbox worker's publisher.
type Relay struct {
	Hub    *Hub
	Tasks  TaskQueue
	Logger *slog.Logger
}

type bookingPayload struct {
	domainbooking.Summary
	At time.Time `json:"at"`
}

func (r *Relay) Publish(ctx context.Context, record appoutbox.EventRecord) error {
	switch record.Name {
	case domainbooking.EventCreated, domainbooking.EventStatusChanged, domainbooking.EventArchived:
	default:
		return nil
	}
	var payload bookingPayload
	if err := json.Unmarshal(record.Payload, &payload); err != nil {
		return fmt.Errorf("fanout: decode %s: %w", record.Name, err)
	}
	occurred := payload.At
	if occurred.IsZero() {
		occurred = record.OccurredAt
	}
	ev := Event{
		EventID:    record.ID,
		Name:       record.Name,
		Reference:  payload.Reference,
		BookingID:  payload.BookingID,
		ItemKind:   payload.ItemKind,
		ItemID:     payload.ItemID,
		Status:     payload.Status,
		GuestName:  payload.GuestName,
		Start:      payload.Start,
		End:        payload.End,
		Total:      payload.Total,
		OccurredAt: occurred,
	}

	template, notify := templateFor(record.Name, payload.Status)
	if notify && r.Tasks != nil {
		if err := r.enqueue(ctx, NotificationTask{
			Reference:  payload.Reference,
			Recipient:  payload.GuestEmail,
			Template:   template,
			DedupKey:   DedupKey(payload.Reference, template),
			BookingID:  payload.BookingID,
			Status:     payload.Status,
			OccurredAt: occurred,
		}); err != nil {
			return err
		}
	}

	// Observers hear about a record once, after the only step that can send
	// it back to the outbox for another attempt.
	if r.Hub != nil {
		delivered := r.Hub.Publish(ev)
		r.log().Debug("booking event fanned out", "event", record.Name, "reference", ev.Reference, "subscribers", delivered)
	}
	return nil
}

func (r *Relay) enqueue(ctx context.Context, task NotificationTask) error {
	if err := r.Tasks.Enqueue(ctx, task); err != nil {
		err = fault.Wrap(fault.DependencyFailure, "notification task could not be enqueued", err)
		r.log().Warn("notification enqueue failed", "reference", task.Reference, "template", task.Template, "err", err)
		return err
	}
	return nil
}

// templateFor names the guest notification for an event. Archival is a staff
// housekeeping action and is not announced.
func templateFor(name, status string) (string, bool) {
	switch name {
	case domainbooking.EventCreated:
		return TemplateReceived, true
	case domainbooking.EventStatusChanged:
		return templatePrefix + status, true
	}
	return "", false
}

func (r *Relay) log() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

var _ appoutbox.Publisher = (*Relay)(nil)
