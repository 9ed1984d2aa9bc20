package dto

import (
	"time"

	domainbooking "tripdesk/internal/domain/booking"
	"tripdesk/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func MapMoney(value money.Money) MoneyDTO {
	return MoneyDTO{Amount: value.Amount, Currency: value.Currency}
}

type ItemDTO struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

type ContactDTO struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type AuditEntryDTO struct {
	Actor  string    `json:"actor"`
	Action string    `json:"action"`
	Note   string    `json:"note,omitempty"`
	At     time.Time `json:"at"`
}

// BookingReceipt is what a guest receives after a successful proposal.
type BookingReceipt struct {
	BookingID string   `json:"booking_id"`
	Reference string   `json:"reference"`
	Status    string   `json:"status"`
	Total     MoneyDTO `json:"total"`
}

// BookingView is the staff dashboard projection of a booking.
type BookingView struct {
	ID            string          `json:"id"`
	Reference     string          `json:"reference"`
	Item          ItemDTO         `json:"item"`
	Guest         ContactDTO      `json:"guest"`
	LinkedAccount string          `json:"linked_account,omitempty"`
	Start         time.Time       `json:"start"`
	End           *time.Time      `json:"end,omitempty"`
	Guests        int             `json:"guests"`
	Total         MoneyDTO        `json:"total"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Status        string          `json:"status"`
	AdminNotes    string          `json:"admin_notes,omitempty"`
	ProcessedBy   string          `json:"processed_by,omitempty"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
	Archived      bool            `json:"archived"`
	ArchivedAt    *time.Time      `json:"archived_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Version       int64           `json:"version"`
	Audit         []AuditEntryDTO `json:"audit"`
}

type BookingCollection struct {
	Items []BookingView `json:"items"`
}

// GuestBookingView hides staff-only fields from self-service lookups.
type GuestBookingView struct {
	Reference string     `json:"reference"`
	Item      ItemDTO    `json:"item"`
	GuestName string     `json:"guest_name"`
	Start     time.Time  `json:"start"`
	End       *time.Time `json:"end,omitempty"`
	Guests    int        `json:"guests"`
	Total     MoneyDTO   `json:"total"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

type GuestBookingCollection struct {
	Items []GuestBookingView `json:"items"`
}

type ArchiveAck struct {
	BookingID  string    `json:"booking_id"`
	Archived   bool      `json:"archived"`
	ArchivedAt time.Time `json:"archived_at"`
}

func MapReceipt(b *domainbooking.Booking) *BookingReceipt {
	return &BookingReceipt{
		BookingID: string(b.ID),
		Reference: string(b.Reference),
		Status:    string(b.Status),
		Total:     MapMoney(b.Total),
	}
}

func MapBooking(b *domainbooking.Booking) BookingView {
	audit := b.Audit()
	entries := make([]AuditEntryDTO, 0, len(audit))
	for _, e := range audit {
		entries = append(entries, AuditEntryDTO{Actor: string(e.Actor), Action: e.Action, Note: e.Note, At: e.At})
	}
	return BookingView{
		ID:            string(b.ID),
		Reference:     string(b.Reference),
		Item:          ItemDTO{Kind: string(b.Item.Kind), ID: string(b.Item.ID)},
		Guest:         ContactDTO{Name: b.Guest.Name, Email: b.Guest.Email, Phone: b.Guest.Phone},
		LinkedAccount: b.LinkedAccount,
		Start:         b.Range.Start,
		End:           optionalTime(b.Range.End),
		Guests:        b.Guests,
		Total:         MapMoney(b.Total),
		PaymentMethod: b.PaymentMethod,
		Status:        string(b.Status),
		AdminNotes:    b.AdminNotes,
		ProcessedBy:   string(b.ProcessedBy),
		ProcessedAt:   optionalTime(b.ProcessedAt),
		Archived:      b.Archived,
		ArchivedAt:    optionalTime(b.ArchivedAt),
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
		Version:       b.Version,
		Audit:         entries,
	}
}

func MapGuestBooking(b *domainbooking.Booking) GuestBookingView {
	return GuestBookingView{
		Reference: string(b.Reference),
		Item:      ItemDTO{Kind: string(b.Item.Kind), ID: string(b.Item.ID)},
		GuestName: b.Guest.Name,
		Start:     b.Range.Start,
		End:       optionalTime(b.Range.End),
		Guests:    b.Guests,
		Total:     MapMoney(b.Total),
		Status:    string(b.Status),
		CreatedAt: b.CreatedAt,
	}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
