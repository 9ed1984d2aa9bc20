package memory

import (
	"context"
	"sort"
	"sync"

	domainbooking "tripdesk/internal/domain/booking"
)

// BookingStore keeps committed bookings. Writes return an undo step so a unit
// of work can roll them back.
type BookingStore struct {
	mu    sync.RWMutex
	items map[domainbooking.ID]*domainbooking.Booking
	refs  map[domainbooking.Reference]domainbooking.ID
}

func NewBookingStore() *BookingStore {
	return &BookingStore{
		items: make(map[domainbooking.ID]*domainbooking.Booking),
		refs:  make(map[domainbooking.Reference]domainbooking.ID),
	}
}

func (s *BookingStore) ByID(ctx context.Context, id domainbooking.ID) (*domainbooking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.items[id]
	if !ok {
		return nil, domainbooking.ErrBookingNotFound
	}
	return b.Clone(), nil
}

func (s *BookingStore) ByReference(ctx context.Context, ref domainbooking.Reference) (*domainbooking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.refs[ref]
	if !ok {
		return nil, domainbooking.ErrBookingNotFound
	}
	return s.items[id].Clone(), nil
}

func (s *BookingStore) List(ctx context.Context, filter domainbooking.Filter) ([]*domainbooking.Booking, error) {
	s.mu.RLock()
	out := make([]*domainbooking.Booking, 0, len(s.items))
	for _, b := range s.items {
		if b.Archived && !filter.IncludeArchived {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		if filter.Kind != "" && b.Item.Kind != filter.Kind {
			continue
		}
		if filter.LinkedAccount != "" && b.LinkedAccount != filter.LinkedAccount {
			continue
		}
		out = append(out, b.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *BookingStore) insert(b *domainbooking.Booking) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.refs[b.Reference]; taken {
		return nil, domainbooking.ErrDuplicateReference
	}
	if _, exists := s.items[b.ID]; exists {
		return nil, domainbooking.ErrConcurrentUpdate
	}
	b.Version = 1
	s.items[b.ID] = b.Clone()
	s.refs[b.Reference] = b.ID
	id, ref := b.ID, b.Reference
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.items, id)
		delete(s.refs, ref)
	}, nil
}

func (s *BookingStore) update(b *domainbooking.Booking) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.items[b.ID]
	if !ok {
		return nil, domainbooking.ErrBookingNotFound
	}
	if current.Version != b.Version {
		return nil, domainbooking.ErrConcurrentUpdate
	}
	b.Version++
	next := b.Clone()
	s.items[b.ID] = next
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		// A later writer already replaced our version; leave theirs alone.
		if s.items[next.ID] == next {
			s.items[next.ID] = current
		}
	}, nil
}

// unitBookings routes writes through the unit's undo journal.
type unitBookings struct {
	*BookingStore
	unit *Unit
}

func (r unitBookings) Insert(ctx context.Context, b *domainbooking.Booking) error {
	undo, err := r.insert(b)
	if err != nil {
		return err
	}
	return r.unit.journal(undo)
}

func (r unitBookings) Update(ctx context.Context, b *domainbooking.Booking) error {
	undo, err := r.update(b)
	if err != nil {
		return err
	}
	return r.unit.journal(undo)
}

var _ domainbooking.Repository = unitBookings{}
