package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"tripdesk/internal/app/commands"
	"tripdesk/internal/app/dto"
	handlersupport "tripdesk/internal/app/handlers/support"
	"tripdesk/internal/app/middleware"
	"tripdesk/internal/app/outbox"
	"tripdesk/internal/app/policies"
	"tripdesk/internal/app/uow"
	"tripdesk/internal/domain/account"
	"tripdesk/internal/domain/availability"
	domainbooking "tripdesk/internal/domain/booking"
	"tripdesk/internal/domain/inventory"
	"tripdesk/internal/domain/pricing"
	"tripdesk/internal/domain/shared/daterange"
	"tripdesk/internal/domain/shared/fault"
)

const proposeBookingKey = "booking.propose"

// ProposeBookingCommand asks for a new pending booking. End stays zero for
// tour packages.
type ProposeBookingCommand struct {
	ItemKind        string `validate:"required"`
	ItemID          string `validate:"required"`
	GuestName       string `validate:"required"`
	GuestEmail      string `validate:"required,email"`
	GuestPhone      string
	Start           time.Time
	End             time.Time
	Guests          int
	PaymentMethod   string
	TermsAgreed     bool
	Actor           string
	IdempotencyKeyV string
}

func (c ProposeBookingCommand) Key() string { return proposeBookingKey }

func (c ProposeBookingCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c ProposeBookingCommand) ResultPrototype() any { return &dto.BookingReceipt{} }

// Retryable lets Retry run a proposal again after a reference collision or
// a lost calendar race. Each attempt starts from an empty unit.
func (c ProposeBookingCommand) Retryable() bool { return true }

type ProposeBookingHandler struct {
	Clock      policies.Clock
	References domainbooking.ReferenceGenerator
	Accounts   account.Directory
	Encoder    outbox.EventEncoder
	NewID      func() string
	Logger     *slog.Logger
}

var ErrReferenceUnavailable = errors.New("booking: could not generate a reference")

func (h *ProposeBookingHandler) Handle(ctx context.Context, cmd ProposeBookingCommand) (*dto.BookingReceipt, error) {
	if !cmd.TermsAgreed {
		return nil, domainbooking.ErrTermsNotAgreed
	}
	if cmd.Guests < 1 {
		return nil, domainbooking.ErrInvalidGuests
	}
	unit, err := handlersupport.UnitFrom(ctx)
	if err != nil {
		return nil, err
	}
	kind, err := inventory.ParseKind(cmd.ItemKind)
	if err != nil {
		return nil, err
	}
	now := h.now()
	item := inventory.ItemRef{Kind: kind, ID: inventory.ItemID(strings.TrimSpace(cmd.ItemID))}
	dr := daterange.DateRange{Start: cmd.Start.UTC(), End: cmd.End.UTC()}

	reference, err := h.References.Generate(kind, now)
	if err != nil {
		return nil, fault.Wrap(fault.DependencyFailure, ErrReferenceUnavailable.Error(), errors.Join(ErrReferenceUnavailable, err))
	}

	grant, err := uow.Gate(unit).Reserve(ctx, availability.ReserveRequest{
		Item:      item,
		Range:     dr,
		Reference: string(reference),
		Now:       now,
	})
	if err != nil {
		return nil, err
	}
	quote, err := pricing.Calculate(grant.Item, dr, cmd.Guests)
	if err != nil {
		return nil, err
	}

	b, err := domainbooking.New(domainbooking.CreateParams{
		ID:        domainbooking.ID(h.newID()),
		Reference: reference,
		Item:      grant.Item.Ref,
		Guest: domainbooking.Contact{
			Name:  strings.TrimSpace(cmd.GuestName),
			Email: account.NormalizeEmail(cmd.GuestEmail),
			Phone: strings.TrimSpace(cmd.GuestPhone),
		},
		LinkedAccount: h.linkedAccount(ctx, cmd.GuestEmail),
		Range:         dr,
		Guests:        cmd.Guests,
		Total:         quote.Total,
		PaymentMethod: strings.TrimSpace(cmd.PaymentMethod),
		TermsAgreed:   true,
		Actor:         domainbooking.Actor(cmd.Actor),
		Now:           now,
	})
	if err != nil {
		return nil, err
	}
	if err := unit.Bookings().Insert(ctx, b); err != nil {
		return nil, err
	}
	evs := b.PendingEvents()
	b.ClearEvents()
	if err := outbox.RecordDomainEvents(ctx, unit.Outbox(), h.Encoder, evs); err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("booking proposed", "booking_id", b.ID, "reference", b.Reference, "item", item.String(), "total", b.Total.Amount)
	}
	return dto.MapReceipt(b), nil
}

// linkedAccount prefers the authenticated caller and falls back to an email
// match. Lookup failures never block the proposal.
func (h *ProposeBookingHandler) linkedAccount(ctx context.Context, email string) string {
	if p := policies.PrincipalFrom(ctx); p.Authenticated() {
		return string(p.AccountID)
	}
	if h.Accounts == nil {
		return ""
	}
	acc, err := h.Accounts.ByEmail(ctx, account.NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, account.ErrNotFound) && h.Logger != nil {
			h.Logger.Warn("account lookup failed", "err", err)
		}
		return ""
	}
	return string(acc.ID)
}

func (h *ProposeBookingHandler) now() time.Time {
	if h.Clock == nil {
		return policies.SystemClock{}.Now()
	}
	return h.Clock.Now()
}

func (h *ProposeBookingHandler) newID() string {
	if h.NewID != nil {
		return h.NewID()
	}
	return uuid.NewString()
}

var _ commands.Handler[ProposeBookingCommand, *dto.BookingReceipt] = (*ProposeBookingHandler)(nil)
var _ middleware.IdempotentCommand = ProposeBookingCommand{}
var _ middleware.RetryableCommand = ProposeBookingCommand{}
