package main

import (
	"context"
	"log/slog"
	"time"

	"tripdesk/internal/app/middleware"
	"tripdesk/internal/app/notify"
	appoutbox "tripdesk/internal/app/outbox"
	"tripdesk/internal/app/uow"
	"tripdesk/internal/domain/account"
	domainauth "tripdesk/internal/domain/auth"
	"tripdesk/internal/domain/inventory"
	"tripdesk/internal/infra/config"
	mongostore "tripdesk/internal/infra/db/mongo"
	"tripdesk/internal/infra/fixtures"
	inboxstore "tripdesk/internal/infra/inbox"
	outboxrelay "tripdesk/internal/infra/outbox"
	"tripdesk/internal/infra/storage/memory"
)

const inboxConsumer = "booking-notifier"

// storage is the set of stores one process runs against.
type storage struct {
	factory     uow.UoWFactory
	queue       appoutbox.Queue
	accounts    account.Directory
	sessions    domainauth.SessionStore
	idempotency middleware.IdempotencyStore
	inbox       notify.Inbox
	ready       func(ctx context.Context) error
	close       func()
}

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (*storage, error) {
	items, err := loadInventory(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Storage == config.StorageMongo {
		return openMongo(ctx, cfg, items, logger)
	}

	catalog, err := memory.NewCatalog(items...)
	if err != nil {
		return nil, err
	}
	factory := memory.NewFactory(catalog)
	logger.Info("in-memory storage ready", "items", len(items))
	return &storage{
		factory:     factory,
		queue:       factory.Outbox,
		accounts:    memory.NewAccountDirectory(),
		sessions:    memory.NewSessionStore(),
		idempotency: memory.NewIdempotencyStore(cfg.IdempotencyTTL),
		inbox:       memory.NewInbox(),
		ready:       func(context.Context) error { return nil },
		close:       func() {},
	}, nil
}

func openMongo(ctx context.Context, cfg config.Config, items []inventory.Snapshot, logger *slog.Logger) (*storage, error) {
	client, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return nil, err
	}
	closeClient := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Close(shutdownCtx); err != nil {
			logger.Warn("mongo disconnect failed", "error", err)
		}
	}
	fail := func(err error) (*storage, error) {
		closeClient()
		return nil, err
	}

	outboxStore, err := outboxrelay.NewStore(ctx, client.DB)
	if err != nil {
		return fail(err)
	}
	inbox, err := inboxstore.NewStore(ctx, client.DB, inboxConsumer)
	if err != nil {
		return fail(err)
	}
	factory := mongostore.NewFactory(client.DB, outboxStore)
	bookings := mongostore.NewBookingRepository(client.DB)
	inventoryItems := mongostore.NewInventoryReader(client.DB)
	factory.BookingRepo, factory.InventoryRepo = bookings, inventoryItems
	accounts := mongostore.NewAccountDirectory(client.DB)
	sessions := mongostore.NewSessionStore(client.DB)
	idempotency := mongostore.NewIdempotencyStore(client.DB, cfg.IdempotencyTTL)
	for _, ensure := range []func(context.Context) error{
		bookings.EnsureIndexes,
		accounts.EnsureIndexes,
		sessions.EnsureIndexes,
		idempotency.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			return fail(err)
		}
	}
	for _, item := range items {
		if err := inventoryItems.Put(ctx, item); err != nil {
			return fail(err)
		}
	}
	logger.Info("mongo storage ready", "database", cfg.MongoDB, "items", len(items))

	return &storage{
		factory:     factory,
		queue:       outboxStore,
		accounts:    accounts,
		sessions:    sessions,
		idempotency: idempotency,
		inbox:       inbox,
		ready:       client.Ping,
		close:       closeClient,
	}, nil
}

func loadInventory(cfg config.Config) ([]inventory.Snapshot, error) {
	if cfg.InventoryFixtures != "" {
		return fixtures.LoadFile(cfg.InventoryFixtures)
	}
	return fixtures.Default()
}
