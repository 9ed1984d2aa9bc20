package memory

import (
	"context"
	"errors"
	"sync"

	appoutbox "tripdesk/internal/app/outbox"
	"tripdesk/internal/app/uow"
	"tripdesk/internal/domain/availability"
	domainbooking "tripdesk/internal/domain/booking"
	"tripdesk/internal/domain/inventory"
)

var (
	ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")
	ErrUnitClosed           = errors.New("memory: unit of work already finished")
)

// Factory hands out units over shared in-memory stores.
type Factory struct {
	Catalog   inventory.Reader
	Bookings  *BookingStore
	Slots     *SlotLedger
	Calendars *CalendarStore
	Outbox    *OutboxQueue

	// writer admits one writing unit at a time. Nil disables the gate.
	writer chan struct{}
}

// Begin starts a unit. Writes are applied to the shared stores immediately
// and journaled; Rollback replays the journal backwards. Outbox records are
// published to the queue only on Commit.
//
// Writing units run one at a time, so no writer acts on another writer's
// uncommitted changes. Begin blocks until the previous writer finishes or
// ctx is done. Read-only units are not gated and may observe writes that
// are later rolled back.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Catalog == nil || f.Bookings == nil || f.Slots == nil || f.Calendars == nil || f.Outbox == nil {
		return nil, ErrFactoryMisconfigured
	}
	u := &Unit{factory: f, readOnly: opts.ReadOnly}
	if !opts.ReadOnly && f.writer != nil {
		select {
		case f.writer <- struct{}{}:
			u.held = true
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return u, nil
}

type Unit struct {
	factory  Factory
	readOnly bool
	held     bool

	mu      sync.Mutex
	undo    []func()
	pending []appoutbox.EventRecord
	done    bool
}

// release hands the writer gate to the next unit. Callers must have just
// moved done from false to true.
func (u *Unit) release() {
	if u.held {
		u.held = false
		<-u.factory.writer
	}
}

var ErrReadOnlyUnit = errors.New("memory: write in read-only unit of work")

func (u *Unit) Inventory() inventory.Reader { return u.factory.Catalog }

func (u *Unit) Bookings() domainbooking.Repository {
	return unitBookings{BookingStore: u.factory.Bookings, unit: u}
}

func (u *Unit) Slots() availability.SlotLedger {
	return unitSlots{ledger: u.factory.Slots, unit: u}
}

func (u *Unit) Calendars() availability.CalendarRepository {
	return unitCalendars{CalendarStore: u.factory.Calendars, unit: u}
}

func (u *Unit) Outbox() appoutbox.Outbox { return unitOutbox{unit: u} }

// journal registers an undo step for a write that has already been applied.
// A write on a finished or read-only unit is undone on the spot.
func (u *Unit) journal(undo func()) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done || u.readOnly {
		undo()
		if u.readOnly {
			return ErrReadOnlyUnit
		}
		return ErrUnitClosed
	}
	u.undo = append(u.undo, undo)
	return nil
}

func (u *Unit) Commit(ctx context.Context) error {
	u.mu.Lock()
	if u.done {
		u.mu.Unlock()
		return ErrUnitClosed
	}
	u.done = true
	pending := u.pending
	u.undo, u.pending = nil, nil
	u.mu.Unlock()
	u.factory.Outbox.append(pending)
	u.release()
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return nil
	}
	u.done = true
	for i := len(u.undo) - 1; i >= 0; i-- {
		u.undo[i]()
	}
	u.undo, u.pending = nil, nil
	u.release()
	return nil
}

// NewFactory wires fresh stores around catalog.
func NewFactory(catalog inventory.Reader) Factory {
	return Factory{
		Catalog:   catalog,
		Bookings:  NewBookingStore(),
		Slots:     NewSlotLedger(),
		Calendars: NewCalendarStore(),
		Outbox:    NewOutboxQueue(),
		writer:    make(chan struct{}, 1),
	}
}
