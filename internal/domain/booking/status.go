package booking

import (
	"fmt"
	"strings"
	"time"

	"tripdesk/internal/domain/shared/fault"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

const (
	ActionCreated   = "created"
	ActionApproved  = "approved"
	ActionRejected  = "rejected"
	ActionCompleted = "completed"
	ActionCancelled = "cancelled"
)

var transitions = map[Status]map[Status]string{
	StatusPending: {
		StatusConfirmed: ActionApproved,
		StatusRejected:  ActionRejected,
		StatusCancelled: ActionCancelled,
	},
	StatusConfirmed: {
		StatusCompleted: ActionCompleted,
		StatusCancelled: ActionCancelled,
	},
	StatusRejected:  {},
	StatusCompleted: {},
	StatusCancelled: {},
}

var ErrUnknownStatus = fault.New(fault.InvalidRequest, "unknown booking status")

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := transitions[s]; !ok {
		return "", ErrUnknownStatus
	}
	return s, nil
}

func (s Status) CanTransitionTo(target Status) bool {
	_, ok := transitions[s][target]
	return ok
}

// Releases reports whether entering s gives the reserved inventory back.
func (s Status) Releases() bool {
	return s == StatusRejected || s == StatusCancelled
}

func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Transition moves the booking to target. Illegal moves leave the booking
// untouched. A non-empty note replaces the administrative notes.
func (b *Booking) Transition(target Status, actor Actor, note string, now time.Time) error {
	action, ok := transitions[b.Status][target]
	if !ok {
		return fault.Wrap(fault.IllegalTransition,
			fmt.Sprintf("cannot move booking %s from %s to %s", b.Reference, b.Status, target),
			ErrIllegalTransition)
	}
	if actor == "" {
		actor = SystemActor
	}
	now = now.UTC()
	from := b.Status
	note = strings.TrimSpace(note)

	b.Status = target
	if note != "" {
		b.AdminNotes = note
	}
	b.ProcessedBy = actor
	b.ProcessedAt = now
	b.UpdatedAt = now
	b.audit = append(b.audit, AuditEntry{Actor: actor, Action: action, Note: note, At: now})
	b.Record(BookingStatusChanged{Summary: b.summary(), From: string(from), Action: action, Actor: actor, Note: note, At: now})
	return nil
}
