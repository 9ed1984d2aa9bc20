package inventory

import (
	"context"
	"errors"
	"strings"

	"tripdesk/internal/domain/shared/fault"
	"tripdesk/internal/domain/shared/money"
)

var (
	ErrItemNotFound    = fault.New(fault.NotFound, "item not found")
	ErrItemUnavailable = fault.New(fault.Unavailable, "item not currently available")
	ErrUnknownKind     = fault.New(fault.InvalidRequest, "unknown item kind")
	ErrIDRequired      = errors.New("inventory: item id is required")
	ErrPricingMissing  = errors.New("inventory: pricing does not match item kind")
	ErrNegativeRate    = errors.New("inventory: rate must be non-negative")
	ErrNegativeSlots   = errors.New("inventory: slots per window must be non-negative")
)

type Kind string

const (
	KindVehicle     Kind = "vehicle"
	KindTourPackage Kind = "tour_package"
)

func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindVehicle:
		return KindVehicle, nil
	case KindTourPackage:
		return KindTourPackage, nil
	}
	return "", ErrUnknownKind
}

type ItemID string

// ItemRef is the tagged reference a booking keeps instead of the item's shape.
type ItemRef struct {
	Kind Kind
	ID   ItemID
}

func (r ItemRef) String() string {
	return string(r.Kind) + "/" + string(r.ID)
}

// Pricing is implemented by VehiclePricing and TourPricing only.
type Pricing interface {
	kind() Kind
}

type VehiclePricing struct {
	PerDay money.Money
}

func (VehiclePricing) kind() Kind { return KindVehicle }

// TourPricing charges per guest. A positive SlotsPerWindow opts the tour into
// a finite number of bookings per departure date.
type TourPricing struct {
	PerGuest       money.Money
	SlotsPerWindow int
}

func (TourPricing) kind() Kind { return KindTourPackage }

func (p TourPricing) SlotLimited() bool {
	return p.SlotsPerWindow > 0
}

// Snapshot is the read-only view of a bookable item.
type Snapshot struct {
	Ref      ItemRef
	Name     string
	Bookable bool
	Archived bool
	Pricing  Pricing
}

// Available reports whether the item may be booked. Archived items are never
// available regardless of the bookable flag.
func (s Snapshot) Available() bool {
	return s.Bookable && !s.Archived
}

func (s Snapshot) Validate() error {
	if strings.TrimSpace(string(s.Ref.ID)) == "" {
		return ErrIDRequired
	}
	if s.Pricing == nil || s.Pricing.kind() != s.Ref.Kind {
		return ErrPricingMissing
	}
	switch p := s.Pricing.(type) {
	case VehiclePricing:
		if p.PerDay.IsNegative() {
			return ErrNegativeRate
		}
	case TourPricing:
		if p.PerGuest.IsNegative() {
			return ErrNegativeRate
		}
		if p.SlotsPerWindow < 0 {
			return ErrNegativeSlots
		}
	}
	return nil
}

// Reader looks items up by tagged reference. It returns ErrItemNotFound when
// nothing matches and never mutates inventory.
type Reader interface {
	Snapshot(ctx context.Context, ref ItemRef) (Snapshot, error)
}
