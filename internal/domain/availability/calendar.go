package availability

import (
	"context"
	"errors"
	"time"

	"tripdesk/internal/domain/inventory"
	"tripdesk/internal/domain/shared/daterange"
	"tripdesk/internal/domain/shared/fault"
)

var (
	ErrOverlappingRange = errors.New("availability: range overlaps with an existing hold")
	ErrHoldNotFound     = errors.New("availability: hold not found")
	ErrStaleCalendar    = fault.New(fault.Conflict, "availability changed concurrently, retry")
)

// Hold blocks a vehicle for the range of one booking.
type Hold struct {
	Range     daterange.DateRange
	Reference string
	CreatedAt time.Time
}

// Calendar tracks the holds of a single-unit item. Version is the optimistic
// concurrency token checked on save.
type Calendar struct {
	Item    inventory.ItemID
	Holds   []Hold
	Version int64
}

// CalendarRepository must reject a Save whose Version is stale with
// ErrStaleCalendar.
type CalendarRepository interface {
	Calendar(ctx context.Context, item inventory.ItemID) (*Calendar, error)
	Save(ctx context.Context, calendar *Calendar) error
}

func NewCalendar(item inventory.ItemID) *Calendar {
	return &Calendar{Item: item}
}

func (c *Calendar) CanHold(r daterange.DateRange) bool {
	for _, hold := range c.Holds {
		if hold.Range.Overlaps(r) {
			return false
		}
	}
	return true
}

func (c *Calendar) Place(r daterange.DateRange, reference string, now time.Time) error {
	if !c.CanHold(r) {
		return ErrOverlappingRange
	}
	c.Holds = append(c.Holds, Hold{Range: r, Reference: reference, CreatedAt: now.UTC()})
	return nil
}

func (c *Calendar) Release(reference string) error {
	for i, hold := range c.Holds {
		if hold.Reference == reference {
			c.Holds = append(c.Holds[:i], c.Holds[i+1:]...)
			return nil
		}
	}
	return ErrHoldNotFound
}

// Clone returns a copy that can be mutated without touching the receiver.
func (c *Calendar) Clone() *Calendar {
	if c == nil {
		return nil
	}
	return &Calendar{Item: c.Item, Holds: append([]Hold(nil), c.Holds...), Version: c.Version}
}
