package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tripdesk/internal/domain/inventory"
	"tripdesk/internal/domain/shared/daterange"
	"tripdesk/internal/domain/shared/fault"
)

type DenialReason string

const (
	ReasonNotFound     DenialReason = "not_found"
	ReasonUnavailable  DenialReason = "unavailable"
	ReasonInvalidRange DenialReason = "invalid_range"
)

// Denial is returned by Gate.Reserve when inventory may not be committed.
type Denial struct {
	Reason DenialReason
	Detail string
}

func (d *Denial) Error() string {
	return d.Detail
}

func (d *Denial) Unwrap() error {
	switch d.Reason {
	case ReasonNotFound:
		return fault.NotFound
	case ReasonInvalidRange:
		return fault.InvalidRequest
	default:
		return fault.Unavailable
	}
}

func deny(reason DenialReason, format string, args ...any) *Denial {
	return &Denial{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// SlotKey addresses the slot counter of one tour departure date.
type SlotKey struct {
	Item   inventory.ItemID
	Window string
}

func (k SlotKey) String() string {
	return string(k.Item) + "@" + k.Window
}

// SlotLedger holds per-window slot counters. Take must read, decide and
// decrement as one indivisible step: it reports false once remaining reaches
// zero and initialises an unseen window with capacity.
type SlotLedger interface {
	Take(ctx context.Context, key SlotKey, capacity int) (bool, error)
	Give(ctx context.Context, key SlotKey) error
}

type ReserveRequest struct {
	Item      inventory.ItemRef
	Range     daterange.DateRange
	Reference string
	Now       time.Time
}

// Grant means the caller may create the booking. Item is the snapshot the
// decision was taken on.
type Grant struct {
	Item inventory.Snapshot
	Slot *SlotKey
	Hold bool
}

// Gate is the only place that commits inventory to a new booking. Its
// dependencies must be bound to the caller's unit of work so a failed
// creation gives everything back.
type Gate struct {
	Inventory inventory.Reader
	Slots     SlotLedger
	Calendars CalendarRepository
}

var ErrGateMisconfigured = errors.New("availability: gate dependencies missing")

func (g Gate) Reserve(ctx context.Context, req ReserveRequest) (Grant, error) {
	if g.Inventory == nil || g.Slots == nil || g.Calendars == nil {
		return Grant{}, ErrGateMisconfigured
	}
	item, err := g.Inventory.Snapshot(ctx, req.Item)
	if err != nil {
		if errors.Is(err, inventory.ErrItemNotFound) {
			return Grant{}, deny(ReasonNotFound, "%s: %s", inventory.ErrItemNotFound.Reason, req.Item)
		}
		return Grant{}, err
	}
	if !item.Available() {
		return Grant{}, deny(ReasonUnavailable, "%s: %s", inventory.ErrItemUnavailable.Reason, req.Item)
	}
	switch p := item.Pricing.(type) {
	case inventory.VehiclePricing:
		if req.Range.Start.IsZero() || req.Range.Open() || !req.Range.End.After(req.Range.Start) {
			return Grant{}, deny(ReasonInvalidRange, "vehicle bookings need an end date after the start date")
		}
		if err := g.holdVehicle(ctx, item.Ref.ID, req); err != nil {
			return Grant{}, err
		}
		return Grant{Item: item, Hold: true}, nil
	case inventory.TourPricing:
		if req.Range.Start.IsZero() || !req.Range.Open() {
			return Grant{}, deny(ReasonInvalidRange, "tour bookings take a single start date")
		}
		if !p.SlotLimited() {
			return Grant{Item: item}, nil
		}
		key := SlotKey{Item: item.Ref.ID, Window: req.Range.Window()}
		ok, err := g.Slots.Take(ctx, key, p.SlotsPerWindow)
		if err != nil {
			return Grant{}, err
		}
		if !ok {
			return Grant{}, deny(ReasonUnavailable, "no slots left for %s on %s", item.Ref.ID, key.Window)
		}
		return Grant{Item: item, Slot: &key}, nil
	}
	return Grant{}, deny(ReasonUnavailable, "%s: %s", inventory.ErrItemUnavailable.Reason, req.Item)
}

func (g Gate) holdVehicle(ctx context.Context, id inventory.ItemID, req ReserveRequest) error {
	cal, err := g.Calendars.Calendar(ctx, id)
	if err != nil {
		return err
	}
	if err := cal.Place(req.Range, req.Reference, req.Now); err != nil {
		if errors.Is(err, ErrOverlappingRange) {
			return deny(ReasonUnavailable, "%s is already booked for part of that period", id)
		}
		return err
	}
	return g.Calendars.Save(ctx, cal)
}

// Release gives back what Reserve committed for a booking that was rejected
// or cancelled. Missing items or holds are not errors.
func (g Gate) Release(ctx context.Context, ref inventory.ItemRef, dr daterange.DateRange, reference string) error {
	if g.Inventory == nil || g.Slots == nil || g.Calendars == nil {
		return ErrGateMisconfigured
	}
	switch ref.Kind {
	case inventory.KindVehicle:
		cal, err := g.Calendars.Calendar(ctx, ref.ID)
		if err != nil {
			return err
		}
		if err := cal.Release(reference); err != nil {
			if errors.Is(err, ErrHoldNotFound) {
				return nil
			}
			return err
		}
		return g.Calendars.Save(ctx, cal)
	case inventory.KindTourPackage:
		item, err := g.Inventory.Snapshot(ctx, ref)
		if err != nil {
			if errors.Is(err, inventory.ErrItemNotFound) {
				return nil
			}
			return err
		}
		if p, ok := item.Pricing.(inventory.TourPricing); ok && p.SlotLimited() {
			return g.Slots.Give(ctx, SlotKey{Item: ref.ID, Window: dr.Window()})
		}
	}
	return nil
}
