package memory

import (
	"context"
	"sync"

	"tripdesk/internal/domain/availability"
	"tripdesk/internal/domain/inventory"
)

type slotCounter struct {
	remaining int
	capacity  int
}

// SlotLedger counts remaining tour slots per departure window. Every take is
// a single critical section, so concurrent units never oversell a window.
type SlotLedger struct {
	mu       sync.Mutex
	counters map[availability.SlotKey]*slotCounter
}

func NewSlotLedger() *SlotLedger {
	return &SlotLedger{counters: make(map[availability.SlotKey]*slotCounter)}
}

// Remaining reports the free slots of key and whether the window was touched.
func (l *SlotLedger) Remaining(key availability.SlotKey) (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.counters[key]
	if !ok {
		return 0, false
	}
	return c.remaining, true
}

func (l *SlotLedger) take(key availability.SlotKey, capacity int) (bool, func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.counters[key]
	if !ok {
		c = &slotCounter{remaining: capacity, capacity: capacity}
		l.counters[key] = c
	}
	if c.remaining <= 0 {
		return false, nil
	}
	c.remaining--
	return true, func() { l.give(key) }
}

func (l *SlotLedger) give(key availability.SlotKey) (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.counters[key]
	if !ok || c.remaining >= c.capacity {
		return nil, false
	}
	c.remaining++
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if c.remaining > 0 {
			c.remaining--
		}
	}, true
}

type unitSlots struct {
	ledger *SlotLedger
	unit   *Unit
}

func (s unitSlots) Take(ctx context.Context, key availability.SlotKey, capacity int) (bool, error) {
	ok, undo := s.ledger.take(key, capacity)
	if !ok {
		return false, nil
	}
	return true, s.unit.journal(undo)
}

func (s unitSlots) Give(ctx context.Context, key availability.SlotKey) error {
	undo, ok := s.ledger.give(key)
	if !ok {
		return nil
	}
	return s.unit.journal(undo)
}

// CalendarStore keeps vehicle calendars with an optimistic version.
type CalendarStore struct {
	mu   sync.RWMutex
	cals map[inventory.ItemID]*availability.Calendar
}

func NewCalendarStore() *CalendarStore {
	return &CalendarStore{cals: make(map[inventory.ItemID]*availability.Calendar)}
}

func (s *CalendarStore) Calendar(ctx context.Context, item inventory.ItemID) (*availability.Calendar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cal, ok := s.cals[item]; ok {
		return cal.Clone(), nil
	}
	return availability.NewCalendar(item), nil
}

func (s *CalendarStore) save(cal *availability.Calendar) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.cals[cal.Item]
	var version int64
	if ok {
		version = current.Version
	}
	if cal.Version != version {
		return nil, availability.ErrStaleCalendar
	}
	next := cal.Clone()
	next.Version++
	s.cals[cal.Item] = next
	cal.Version = next.Version
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.cals[next.Item] != next {
			return
		}
		if ok {
			s.cals[next.Item] = current
		} else {
			delete(s.cals, next.Item)
		}
	}, nil
}

type unitCalendars struct {
	*CalendarStore
	unit *Unit
}

func (c unitCalendars) Save(ctx context.Context, cal *availability.Calendar) error {
	undo, err := c.save(cal)
	if err != nil {
		return err
	}
	return c.unit.journal(undo)
}

var (
	_ availability.SlotLedger         = unitSlots{}
	_ availability.CalendarRepository = unitCalendars{}
)
