package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"tripdesk/internal/app/commands"
	"tripdesk/internal/app/outbox"
	"tripdesk/internal/app/uow"
	"tripdesk/internal/domain/availability"
	"tripdesk/internal/domain/booking"
	"tripdesk/internal/domain/inventory"
	"tripdesk/internal/domain/shared/fault"
)

type sample struct {
	Name  string `validate:"required"`
	Email string `validate:"required,email"`
	key   string
}

func (sample) Key() string { return "test.sample" }
func (p sample) IdempotencyKey() string { return p.key }
func (sample) ResultPrototype() any { return &sampleResult{} }
func (sample) Retryable() bool { return true }

type oneShot struct{ sample }

func (oneShot) Retryable() bool { return false }

type sampleResult struct {
	Value string `json:"value"`
}

type scripted struct {
	mu    sync.Mutex
	calls int
	errs  []error
}

func (s *scripted) Dispatch(ctx context.Context, cmd commands.Command) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &sampleResult{Value: "ok"}, nil
}

func TestRetryRetriesListedErrors(t *testing.T) {
	base := &scripted{errs: []error{booking.ErrDuplicateReference, booking.ErrDuplicateReference, nil}}
	bus := ChainCommands(base, Retry(5, 0, booking.ErrDuplicateReference))

	res, err := bus.Dispatch(context.Background(), sample{})
	require.NoError(t, err)
	require.Equal(t, "ok", res.(*sampleResult).Value)
	require.Equal(t, 3, base.calls)
}

func TestRetryGivesUpAfterAttempts(t *testing.T) {
	base := &scripted{errs: []error{
		availability.ErrStaleCalendar, availability.ErrStaleCalendar, availability.ErrStaleCalendar,
	}}
	bus := ChainCommands(base, Retry(2, 0, availability.ErrStaleCalendar))

	_, err := bus.Dispatch(context.Background(), sample{})
	require.ErrorIs(t, err, availability.ErrStaleCalendar)
	require.Equal(t, 2, base.calls)
}

func TestRetryStopsOnOtherErrors(t *testing.T) {
	base := &scripted{errs: []error{booking.ErrConcurrentUpdate}}
	bus := ChainCommands(base, Retry(5, 0, booking.ErrDuplicateReference))

	_, err := bus.Dispatch(context.Background(), sample{})
	require.ErrorIs(t, err, booking.ErrConcurrentUpdate)
	require.Equal(t, 1, base.calls)
}

func TestRetryDispatchesNonRetryableCommandOnce(t *testing.T) {
	conflict := fault.New(fault.Conflict, "write conflict")
	base := &scripted{errs: []error{conflict, nil}}
	bus := ChainCommands(base, Retry(5, 0, conflict))

	_, err := bus.Dispatch(context.Background(), oneShot{})
	require.ErrorIs(t, err, conflict)
	require.Equal(t, fault.Conflict, fault.KindOf(err))
	require.Equal(t, 1, base.calls)
}

type fakeUnit struct {
	committed, rolledBack bool
}

func (u *fakeUnit) Inventory() inventory.Reader { return nil }
func (u *fakeUnit) Bookings() booking.Repository { return nil }
func (u *fakeUnit) Slots() availability.SlotLedger { return nil }
func (u *fakeUnit) Calendars() availability.CalendarRepository { return nil }
func (u *fakeUnit) Outbox() outbox.Outbox { return nil }
func (u *fakeUnit) Commit(context.Context) error {
	u.committed = true
	return nil
}

func (u *fakeUnit) Rollback(context.Context) error {
	u.rolledBack = true
	return nil
}

type fakeFactory struct{ units []*fakeUnit }

func (f *fakeFactory) Begin(context.Context, uow.TxOptions) (uow.UnitOfWork, error) {
	u := &fakeUnit{}
	f.units = append(f.units, u)
	return u, nil
}

func TestTransactionCommitsOnSuccess(t *testing.T) {
	factory := &fakeFactory{}
	var seen uow.UnitOfWork
	base := commandFunc(func(ctx context.Context, _ commands.Command) (any, error) {
		seen, _ = uow.FromContext(ctx)
		return "done", nil
	})
	_, err := ChainCommands(base, Transaction(factory, nil)).Dispatch(context.Background(), sample{})
	require.NoError(t, err)
	require.Len(t, factory.units, 1)
	require.Same(t, factory.units[0], seen)
	require.True(t, factory.units[0].committed)
	require.False(t, factory.units[0].rolledBack)
}

func TestTransactionRollsBackOnError(t *testing.T) {
	factory := &fakeFactory{}
	base := &scripted{errs: []error{booking.ErrTermsNotAgreed}}
	_, err := ChainCommands(base, Transaction(factory, nil)).Dispatch(context.Background(), sample{})
	require.ErrorIs(t, err, booking.ErrTermsNotAgreed)
	require.False(t, factory.units[0].committed)
	require.True(t, factory.units[0].rolledBack)
}

func TestTransactionRollsBackWhenContextEnds(t *testing.T) {
	factory := &fakeFactory{}
	ctx, cancel := context.WithCancel(context.Background())
	base := commandFunc(func(context.Context, commands.Command) (any, error) {
		cancel()
		return "done", nil
	})
	_, err := ChainCommands(base, Transaction(factory, nil)).Dispatch(ctx, sample{})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, factory.units[0].committed)
	require.True(t, factory.units[0].rolledBack)
}

type mapStore struct {
	mu   sync.Mutex
	recs map[string]IdempotencyRecord
}

func (s *mapStore) Get(_ context.Context, key string) (IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[key]
	return rec, ok, nil
}

func (s *mapStore) Save(_ context.Context, rec IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[rec.Key] = rec
	return nil
}

func TestIdempotencyReplaysSuccess(t *testing.T) {
	base := &scripted{}
	bus := ChainCommands(base, Idempotency(&mapStore{recs: map[string]IdempotencyRecord{}}, nil))

	for i := 0; i < 3; i++ {
		res, err := bus.Dispatch(context.Background(), sample{key: "k1"})
		require.NoError(t, err)
		require.Equal(t, "ok", res.(*sampleResult).Value)
	}
	require.Equal(t, 1, base.calls)
}

func TestIdempotencyReplaysFinalRejection(t *testing.T) {
	base := &scripted{errs: []error{booking.ErrTermsNotAgreed}}
	bus := ChainCommands(base, Idempotency(&mapStore{recs: map[string]IdempotencyRecord{}}, nil))

	_, first := bus.Dispatch(context.Background(), sample{key: "k2"})
	_, second := bus.Dispatch(context.Background(), sample{key: "k2"})
	require.ErrorIs(t, first, fault.InvalidRequest)
	require.ErrorIs(t, second, fault.InvalidRequest)
	require.Equal(t, first.Error(), second.Error())
	require.Equal(t, 1, base.calls)
}

func TestIdempotencyDoesNotStoreConflicts(t *testing.T) {
	base := &scripted{errs: []error{booking.ErrConcurrentUpdate}}
	bus := ChainCommands(base, Idempotency(&mapStore{recs: map[string]IdempotencyRecord{}}, nil))

	_, err := bus.Dispatch(context.Background(), sample{key: "k3"})
	require.ErrorIs(t, err, fault.Conflict)
	_, err = bus.Dispatch(context.Background(), sample{key: "k3"})
	require.NoError(t, err)
	require.Equal(t, 2, base.calls)
}

func TestIdempotencyWithoutKeyPassesThrough(t *testing.T) {
	base := &scripted{}
	bus := ChainCommands(base, Idempotency(&mapStore{recs: map[string]IdempotencyRecord{}}, nil))
	for i := 0; i < 2; i++ {
		_, err := bus.Dispatch(context.Background(), sample{})
		require.NoError(t, err)
	}
	require.Equal(t, 2, base.calls)
}

func TestStructValidator(t *testing.T) {
	v := NewStructValidator()
	require.NoError(t, v.Validate(context.Background(), sample{Name: "Ana", Email: "ana@example.com"}))

	err := v.Validate(context.Background(), sample{Email: "nope"})
	require.ErrorIs(t, err, fault.InvalidRequest)
	require.Contains(t, err.Error(), "name is required")
	require.Contains(t, err.Error(), "email must be a valid email")
}

type denyAll struct{}

func (denyAll) Authorize(context.Context, any) error {
	return fault.New(fault.Forbidden, "no")
}

func TestAuthorizationBlocks(t *testing.T) {
	base := &scripted{}
	_, err := ChainCommands(base, Authorization(denyAll{})).Dispatch(context.Background(), sample{})
	require.ErrorIs(t, err, fault.Forbidden)
	require.Zero(t, base.calls)
}

type countingFlusher struct{ n int }

func (f *countingFlusher) Flush(context.Context) error {
	f.n++
	return errors.New("relay asleep")
}

func TestOutboxFlushIgnoresFlushErrors(t *testing.T) {
	f := &countingFlusher{}
	_, err := ChainCommands(&scripted{}, OutboxFlush(f, nil)).Dispatch(context.Background(), sample{})
	require.NoError(t, err)
	require.Equal(t, 1, f.n)

	_, err = ChainCommands(&scripted{errs: []error{booking.ErrTermsNotAgreed}}, OutboxFlush(f, nil)).Dispatch(context.Background(), sample{})
	require.Error(t, err)
	require.Equal(t, 1, f.n)
}
