package pricing

import (
	"tripdesk/internal/domain/inventory"
	"tripdesk/internal/domain/shared/daterange"
	"tripdesk/internal/domain/shared/fault"
	"tripdesk/internal/domain/shared/money"
)

var (
	ErrNonPositiveDays = fault.New(fault.InvalidRequest, "rental must last at least one day")
	ErrInvalidGuests   = fault.New(fault.InvalidRequest, "guest count must be at least 1")
	ErrTourHasEnd      = fault.New(fault.InvalidRequest, "tour bookings take a single start date")
	ErrUnsupported     = fault.New(fault.InvalidRequest, "item has no pricing for its kind")
	ErrNegativeTotal   = fault.New(fault.InvalidRequest, "price must be non-negative")
)

// Quote is the breakdown behind a booking total: Units of UnitPrice each
// (days for a vehicle, guests for a tour).
type Quote struct {
	Units     int
	UnitPrice money.Money
	Total     money.Money
}

// Calculate prices a request against an item snapshot. It is a pure function
// of its inputs.
func Calculate(item inventory.Snapshot, dr daterange.DateRange, guests int) (Quote, error) {
	switch p := item.Pricing.(type) {
	case inventory.VehiclePricing:
		if item.Ref.Kind != inventory.KindVehicle {
			return Quote{}, ErrUnsupported
		}
		return vehicleQuote(p, dr)
	case inventory.TourPricing:
		if item.Ref.Kind != inventory.KindTourPackage {
			return Quote{}, ErrUnsupported
		}
		return tourQuote(p, dr, guests)
	}
	return Quote{}, ErrUnsupported
}

func vehicleQuote(p inventory.VehiclePricing, dr daterange.DateRange) (Quote, error) {
	days := dr.Days()
	if days <= 0 {
		return Quote{}, ErrNonPositiveDays
	}
	return finish(Quote{Units: days, UnitPrice: p.PerDay})
}

func tourQuote(p inventory.TourPricing, dr daterange.DateRange, guests int) (Quote, error) {
	if !dr.Open() {
		return Quote{}, ErrTourHasEnd
	}
	if guests < 1 {
		return Quote{}, ErrInvalidGuests
	}
	return finish(Quote{Units: guests, UnitPrice: p.PerGuest})
}

func finish(q Quote) (Quote, error) {
	if q.UnitPrice.IsNegative() {
		return Quote{}, ErrNegativeTotal
	}
	q.Total = q.UnitPrice.Multiply(int64(q.Units))
	return q, nil
}
