package availability

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tripdesk/internal/domain/inventory"
	"tripdesk/internal/domain/shared/daterange"
	"tripdesk/internal/domain/shared/fault"
	"tripdesk/internal/domain/shared/money"
)

type catalog map[inventory.ItemRef]inventory.Snapshot

func (c catalog) Snapshot(_ context.Context, ref inventory.ItemRef) (inventory.Snapshot, error) {
	s, ok := c[ref]
	if !ok {
		return inventory.Snapshot{}, inventory.ErrItemNotFound
	}
	return s, nil
}

type ledger struct {
	mu        sync.Mutex
	remaining map[SlotKey]int
	capacity  map[SlotKey]int
}

func newLedger() *ledger {
	return &ledger{remaining: map[SlotKey]int{}, capacity: map[SlotKey]int{}}
}

func (l *ledger) Take(_ context.Context, key SlotKey, capacity int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.remaining[key]; !ok {
		l.remaining[key], l.capacity[key] = capacity, capacity
	}
	if l.remaining[key] <= 0 {
		return false, nil
	}
	l.remaining[key]--
	return true, nil
}

func (l *ledger) Give(_ context.Context, key SlotKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.remaining[key] < l.capacity[key] {
		l.remaining[key]++
	}
	return nil
}

type calendars struct {
	mu   sync.Mutex
	cals map[inventory.ItemID]*Calendar
}

func (c *calendars) Calendar(_ context.Context, id inventory.ItemID) (*Calendar, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cal, ok := c.cals[id]; ok {
		return cal.Clone(), nil
	}
	return NewCalendar(id), nil
}

func (c *calendars) Save(_ context.Context, cal *Calendar) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	current, ok := c.cals[cal.Item]
	if ok && current.Version != cal.Version || !ok && cal.Version != 0 {
		return ErrStaleCalendar
	}
	next := cal.Clone()
	next.Version++
	c.cals[cal.Item] = next
	cal.Version = next.Version
	return nil
}

var (
	van   = inventory.ItemRef{Kind: inventory.KindVehicle, ID: "van-1"}
	hop   = inventory.ItemRef{Kind: inventory.KindTourPackage, ID: "island-hop"}
	walk  = inventory.ItemRef{Kind: inventory.KindTourPackage, ID: "city-walk"}
	day1  = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	items = catalog{
		van:  {Ref: van, Bookable: true, Pricing: inventory.VehiclePricing{PerDay: money.Must(1500, "PHP")}},
		hop:  {Ref: hop, Bookable: true, Pricing: inventory.TourPricing{PerGuest: money.Must(2500, "PHP"), SlotsPerWindow: 1}},
		walk: {Ref: walk, Bookable: true, Pricing: inventory.TourPricing{PerGuest: money.Must(900, "PHP")}},
		{Kind: inventory.KindVehicle, ID: "old-jeep"}: {
			Ref: inventory.ItemRef{Kind: inventory.KindVehicle, ID: "old-jeep"}, Bookable: true, Archived: true,
			Pricing: inventory.VehiclePricing{PerDay: money.Must(800, "PHP")},
		},
	}
)

func newGate() Gate {
	return Gate{Inventory: items, Slots: newLedger(), Calendars: &calendars{cals: map[inventory.ItemID]*Calendar{}}}
}

func closed(t *testing.T, from, days int) daterange.DateRange {
	t.Helper()
	dr, err := daterange.New(day1.AddDate(0, 0, from), day1.AddDate(0, 0, from+days))
	require.NoError(t, err)
	return dr
}

func single(t *testing.T, offset int) daterange.DateRange {
	t.Helper()
	dr, err := daterange.Single(day1.AddDate(0, 0, offset))
	require.NoError(t, err)
	return dr
}

func requireDenied(t *testing.T, err error, reason DenialReason) {
	t.Helper()
	var denial *Denial
	require.ErrorAs(t, err, &denial)
	require.Equal(t, reason, denial.Reason)
}

func TestReserveDenialReasons(t *testing.T) {
	g := newGate()
	ctx := context.Background()

	_, err := g.Reserve(ctx, ReserveRequest{Item: inventory.ItemRef{Kind: inventory.KindVehicle, ID: "nope"}, Range: closed(t, 0, 2)})
	requireDenied(t, err, ReasonNotFound)
	require.ErrorIs(t, err, fault.NotFound)
	require.Contains(t, err.Error(), "item not found")

	_, err = g.Reserve(ctx, ReserveRequest{Item: inventory.ItemRef{Kind: inventory.KindVehicle, ID: "old-jeep"}, Range: closed(t, 0, 2)})
	requireDenied(t, err, ReasonUnavailable)
	require.ErrorIs(t, err, fault.Unavailable)
	require.Contains(t, err.Error(), "item not currently available")

	_, err = g.Reserve(ctx, ReserveRequest{Item: van, Range: single(t, 0)})
	requireDenied(t, err, ReasonInvalidRange)
	require.ErrorIs(t, err, fault.InvalidRequest)

	_, err = g.Reserve(ctx, ReserveRequest{Item: hop, Range: closed(t, 0, 1)})
	requireDenied(t, err, ReasonInvalidRange)
}

func TestVehicleHoldsPreventOverlap(t *testing.T) {
	g := newGate()
	ctx := context.Background()

	grant, err := g.Reserve(ctx, ReserveRequest{Item: van, Range: closed(t, 0, 3), Reference: "VEH-1", Now: day1})
	require.NoError(t, err)
	require.True(t, grant.Hold)

	_, err = g.Reserve(ctx, ReserveRequest{Item: van, Range: closed(t, 2, 2), Reference: "VEH-2", Now: day1})
	requireDenied(t, err, ReasonUnavailable)

	_, err = g.Reserve(ctx, ReserveRequest{Item: van, Range: closed(t, 3, 2), Reference: "VEH-3", Now: day1})
	require.NoError(t, err)

	require.NoError(t, g.Release(ctx, van, closed(t, 0, 3), "VEH-1"))
	_, err = g.Reserve(ctx, ReserveRequest{Item: van, Range: closed(t, 2, 1), Reference: "VEH-4", Now: day1})
	require.NoError(t, err)
}

func TestTourSlotsPerWindow(t *testing.T) {
	g := newGate()
	ctx := context.Background()

	grant, err := g.Reserve(ctx, ReserveRequest{Item: hop, Range: single(t, 0)})
	require.NoError(t, err)
	require.NotNil(t, grant.Slot)
	require.Equal(t, "2025-01-01", grant.Slot.Window)

	_, err = g.Reserve(ctx, ReserveRequest{Item: hop, Range: single(t, 0)})
	requireDenied(t, err, ReasonUnavailable)

	_, err = g.Reserve(ctx, ReserveRequest{Item: hop, Range: single(t, 1)})
	require.NoError(t, err, "other departure dates keep their own counter")

	require.NoError(t, g.Release(ctx, hop, single(t, 0), "TUR-1"))
	_, err = g.Reserve(ctx, ReserveRequest{Item: hop, Range: single(t, 0)})
	require.NoError(t, err)
}

func TestUnlimitedTourNeverRunsOut(t *testing.T) {
	g := newGate()
	for i := 0; i < 20; i++ {
		grant, err := g.Reserve(context.Background(), ReserveRequest{Item: walk, Range: single(t, 0)})
		require.NoError(t, err)
		require.Nil(t, grant.Slot)
	}
}

func TestLastSlotGrantedExactlyOnce(t *testing.T) {
	g := newGate()
	const attempts = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
		denied  int
	)
	dr := single(t, 5)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Reserve(context.Background(), ReserveRequest{Item: hop, Range: dr})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				granted++
			} else if _, ok := err.(*Denial); ok {
				denied++
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, granted)
	require.Equal(t, attempts-1, denied)
}
