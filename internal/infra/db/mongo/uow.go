package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	appoutbox "tripdesk/internal/app/outbox"
	"tripdesk/internal/app/uow"
	"tripdesk/internal/domain/availability"
	domainbooking "tripdesk/internal/domain/booking"
	"tripdesk/internal/domain/inventory"
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
// Repositories join the transaction through the session on the context.
type Factory struct {
	DB *mongo.Database

	InventoryRepo inventory.Reader
	BookingRepo   domainbooking.Repository
	SlotRepo      availability.SlotLedger
	CalendarRepo  availability.CalendarRepository
	OutboxRepo    appoutbox.Outbox
}

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// NewFactory builds every repository over db.
func NewFactory(db *mongo.Database, outbox appoutbox.Outbox) Factory {
	return Factory{
		DB:            db,
		InventoryRepo: NewInventoryReader(db),
		BookingRepo:   NewBookingRepository(db),
		SlotRepo:      NewSlotLedger(db),
		CalendarRepo:  NewCalendarRepository(db),
		OutboxRepo:    outbox,
	}
}

// Begin starts a MongoDB session/transaction with snapshot reads and
// majority writes.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil || f.OutboxRepo == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	if opts.ReadOnly {
		txnOpts = options.Transaction().SetReadConcern(readconcern.Majority())
	}
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{factory: f, session: session}, nil
}

type Unit struct {
	factory Factory
	session mongo.Session
}

func (u *Unit) Inventory() inventory.Reader { return u.factory.InventoryRepo }

func (u *Unit) Bookings() domainbooking.Repository { return u.factory.BookingRepo }

func (u *Unit) Slots() availability.SlotLedger { return u.factory.SlotRepo }

func (u *Unit) Calendars() availability.CalendarRepository { return u.factory.CalendarRepo }

func (u *Unit) Outbox() appoutbox.Outbox { return u.factory.OutboxRepo }

func (u *Unit) Commit(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return translate(u.session.CommitTransaction(ctx))
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

var _ uow.UoWFactory = Factory{}
