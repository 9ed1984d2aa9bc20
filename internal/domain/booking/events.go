package booking

import (
	"time"

	"tripdesk/internal/domain/shared/money"
)

const (
	EventCreated       = "booking.created"
	EventStatusChanged = "booking.status_changed"
	EventArchived      = "booking.archived"
)

// Summary is the guest-facing view every booking event carries.
type Summary struct {
	BookingID  string      `json:"booking_id"`
	Reference  string      `json:"reference"`
	ItemKind   string      `json:"item_kind"`
	ItemID     string      `json:"item_id"`
	Status     string      `json:"status"`
	GuestName  string      `json:"guest_name"`
	GuestEmail string      `json:"guest_email"`
	Start      time.Time   `json:"start"`
	End        time.Time   `json:"end,omitempty"`
	Total      money.Money `json:"total"`
}

type BookingCreated struct {
	Summary
	Actor Actor     `json:"actor"`
	At    time.Time `json:"at"`
}

func (e BookingCreated) EventName() string     { return EventCreated }
func (e BookingCreated) AggregateID() string   { return e.BookingID }
func (e BookingCreated) OccurredAt() time.Time { return e.At }

type BookingStatusChanged struct {
	Summary
	From   string    `json:"from"`
	Action string    `json:"action"`
	Actor  Actor     `json:"actor"`
	Note   string    `json:"note,omitempty"`
	At     time.Time `json:"at"`
}

func (e BookingStatusChanged) EventName() string     { return EventStatusChanged }
func (e BookingStatusChanged) AggregateID() string   { return e.BookingID }
func (e BookingStatusChanged) OccurredAt() time.Time { return e.At }

type BookingArchived struct {
	Summary
	At time.Time `json:"at"`
}

func (e BookingArchived) EventName() string     { return EventArchived }
func (e BookingArchived) AggregateID() string   { return e.BookingID }
func (e BookingArchived) OccurredAt() time.Time { return e.At }
