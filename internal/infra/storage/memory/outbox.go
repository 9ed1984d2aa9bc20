package memory

import (
	"context"
	"sync"
	"time"

	appoutbox "tripdesk/internal/app/outbox"
)

type outboxState int

const (
	outboxNew outboxState = iota
	outboxClaimed
	outboxSent
	outboxFailed
)

type outboxEntry struct {
	record    appoutbox.EventRecord
	state     outboxState
	attempts  int
	nextAt    time.Time
	lastError string
}

// OutboxQueue holds committed outbox records for the relay worker.
type OutboxQueue struct {
	mu      sync.Mutex
	entries []*outboxEntry
	byID    map[string]*outboxEntry
	now     func() time.Time
}

func NewOutboxQueue() *OutboxQueue {
	return &OutboxQueue{byID: make(map[string]*outboxEntry), now: time.Now}
}

func (q *OutboxQueue) append(records []appoutbox.EventRecord) {
	if len(records) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, rec := range records {
		e := &outboxEntry{record: rec, nextAt: q.now()}
		q.entries = append(q.entries, e)
		q.byID[rec.ID] = e
	}
}

func (q *OutboxQueue) Claim(ctx context.Context, workerID string) (*appoutbox.Claimed, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	for _, e := range q.entries {
		if (e.state == outboxNew || e.state == outboxFailed) && !e.nextAt.After(now) {
			e.state = outboxClaimed
			return &appoutbox.Claimed{EventRecord: e.record, Attempts: e.attempts}, nil
		}
	}
	return nil, nil
}

func (q *OutboxQueue) MarkSent(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e, ok := q.byID[id]; ok {
		e.state = outboxSent
		q.compact()
	}
	return nil
}

func (q *OutboxQueue) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e, ok := q.byID[id]; ok {
		e.state = outboxFailed
		e.attempts++
		e.nextAt = next
		e.lastError = errMsg
	}
	return nil
}

// Pending returns records not yet sent, oldest first.
func (q *OutboxQueue) Pending() []appoutbox.EventRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]appoutbox.EventRecord, 0, len(q.entries))
	for _, e := range q.entries {
		if e.state != outboxSent {
			out = append(out, e.record)
		}
	}
	return out
}

// compact drops the sent prefix so the queue does not grow without bound.
func (q *OutboxQueue) compact() {
	i := 0
	for i < len(q.entries) && q.entries[i].state == outboxSent {
		delete(q.byID, q.entries[i].record.ID)
		i++
	}
	q.entries = q.entries[i:]
}

// unitOutbox buffers records until the unit commits.
type unitOutbox struct {
	unit *Unit
}

func (o unitOutbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.unit.mu.Lock()
	defer o.unit.mu.Unlock()
	if o.unit.done {
		return ErrUnitClosed
	}
	o.unit.pending = append(o.unit.pending, record)
	return nil
}

var (
	_ appoutbox.Queue  = (*OutboxQueue)(nil)
	_ appoutbox.Outbox = unitOutbox{}
)
