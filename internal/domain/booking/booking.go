package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"tripdesk/internal/domain/inventory"
	"tripdesk/internal/domain/shared/daterange"
	"tripdesk/internal/domain/shared/events"
	"tripdesk/internal/domain/shared/fault"
	"tripdesk/internal/domain/shared/money"
)

var (
	ErrBookingNotFound    = fault.New(fault.NotFound, "booking not found")
	ErrTermsNotAgreed     = fault.New(fault.InvalidRequest, "terms and conditions must be agreed")
	ErrInvalidGuests      = fault.New(fault.InvalidRequest, "guest count must be at least 1")
	ErrVehicleRange       = fault.New(fault.InvalidRequest, "vehicle bookings need an end date after the start date")
	ErrTourRange          = fault.New(fault.InvalidRequest, "tour bookings take a single start date")
	ErrNegativeTotal      = fault.New(fault.InvalidRequest, "total price must be non-negative")
	ErrContactRequired    = fault.New(fault.InvalidRequest, "guest name and email are required")
	ErrDuplicateReference = fault.New(fault.Conflict, "booking reference already taken")
	ErrConcurrentUpdate   = fault.New(fault.Conflict, "booking was modified concurrently, reload and retry")
	ErrIllegalTransition  = errors.New("booking: illegal status transition")
	ErrReferenceRequired  = errors.New("booking: reference is required")
	ErrIDRequired         = errors.New("booking: id is required")
)

type ID string

type Reference string

// Actor names whoever performed a lifecycle action: a staff user id, a guest
// account, or SystemActor.
type Actor string

const SystemActor Actor = "system"

type Contact struct {
	Name  string
	Email string
	Phone string
}

// AuditEntry records one lifecycle action. Entries are never edited.
type AuditEntry struct {
	Actor  Actor
	Action string
	Note   string
	At     time.Time
}

type Booking struct {
	ID            ID
	Reference     Reference
	Item          inventory.ItemRef
	Guest         Contact
	LinkedAccount string
	Range         daterange.DateRange
	Guests        int
	Total         money.Money
	PaymentMethod string
	Status        Status
	AdminNotes    string
	ProcessedBy   Actor
	ProcessedAt   time.Time
	TermsAgreed   bool
	Archived      bool
	ArchivedAt    time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Version       int64
	audit         []AuditEntry
	events.EventRecorder
}

type Filter struct {
	Status          Status
	Kind            inventory.Kind
	LinkedAccount   string
	IncludeArchived bool
	Limit           int
}

// Repository persists bookings. Insert must enforce reference uniqueness at the
// storage level; Update must reject stale versions with ErrConcurrentUpdate.
type Repository interface {
	ByID(ctx context.Context, id ID) (*Booking, error)
	ByReference(ctx context.Context, ref Reference) (*Booking, error)
	Insert(ctx context.Context, b *Booking) error
	Update(ctx context.Context, b *Booking) error
	List(ctx context.Context, filter Filter) ([]*Booking, error)
}

type CreateParams struct {
	ID            ID
	Reference     Reference
	Item          inventory.ItemRef
	Guest         Contact
	LinkedAccount string
	Range         daterange.DateRange
	Guests        int
	Total         money.Money
	PaymentMethod string
	TermsAgreed   bool
	Actor         Actor
	Now           time.Time
}

// New creates a pending booking with its first audit entry.
func New(params CreateParams) (*Booking, error) {
	if !params.TermsAgreed {
		return nil, ErrTermsNotAgreed
	}
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrIDRequired
	}
	if strings.TrimSpace(string(params.Reference)) == "" {
		return nil, ErrReferenceRequired
	}
	if strings.TrimSpace(params.Guest.Name) == "" || strings.TrimSpace(params.Guest.Email) == "" {
		return nil, ErrContactRequired
	}
	if params.Guests < 1 {
		return nil, ErrInvalidGuests
	}
	if err := validateRange(params.Item.Kind, params.Range); err != nil {
		return nil, err
	}
	if params.Total.IsNegative() {
		return nil, ErrNegativeTotal
	}
	now := params.Now.UTC()
	actor := params.Actor
	if actor == "" {
		actor = Actor("guest:" + strings.ToLower(strings.TrimSpace(params.Guest.Email)))
	}
	b := &Booking{
		ID:            params.ID,
		Reference:     params.Reference,
		Item:          params.Item,
		Guest:         params.Guest,
		LinkedAccount: params.LinkedAccount,
		Range:         params.Range,
		Guests:        params.Guests,
		Total:         params.Total,
		PaymentMethod: params.PaymentMethod,
		Status:        StatusPending,
		TermsAgreed:   true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	b.audit = append(b.audit, AuditEntry{Actor: actor, Action: ActionCreated, At: now})
	b.Record(BookingCreated{Summary: b.summary(), Actor: actor, At: now})
	return b, nil
}

func validateRange(kind inventory.Kind, dr daterange.DateRange) error {
	switch kind {
	case inventory.KindVehicle:
		if dr.Open() || !dr.End.After(dr.Start) {
			return ErrVehicleRange
		}
	case inventory.KindTourPackage:
		if dr.Start.IsZero() || !dr.Open() {
			return ErrTourRange
		}
	default:
		return inventory.ErrUnknownKind
	}
	return nil
}

// Audit returns a copy of the audit trail in insertion order.
func (b *Booking) Audit() []AuditEntry {
	out := make([]AuditEntry, len(b.audit))
	copy(out, b.audit)
	return out
}

// Archive soft-deletes the booking from staff views. Archiving twice is a no-op.
func (b *Booking) Archive(now time.Time) bool {
	if b.Archived {
		return false
	}
	now = now.UTC()
	b.Archived = true
	b.ArchivedAt = now
	b.UpdatedAt = now
	b.Record(BookingArchived{Summary: b.summary(), At: now})
	return true
}

// Clone returns a deep copy without pending events.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	c := *b
	c.audit = b.Audit()
	c.EventRecorder = events.EventRecorder{}
	return &c
}

// Restore rebuilds a booking from persisted state, audit trail included.
func Restore(b Booking, audit []AuditEntry) *Booking {
	b.audit = append([]AuditEntry(nil), audit...)
	b.EventRecorder = events.EventRecorder{}
	return &b
}

func (b *Booking) summary() Summary {
	return Summary{
		BookingID:  string(b.ID),
		Reference:  string(b.Reference),
		ItemKind:   string(b.Item.Kind),
		ItemID:     string(b.Item.ID),
		Status:     string(b.Status),
		GuestName:  b.Guest.Name,
		GuestEmail: b.Guest.Email,
		Start:      b.Range.Start,
		End:        b.Range.End,
		Total:      b.Total,
	}
}
