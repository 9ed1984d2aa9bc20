package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"tripdesk/internal/app/commands"
	"tripdesk/internal/app/fanout"
	bookingapp "tripdesk/internal/app/handlers/booking"
	"tripdesk/internal/app/handlers/me"
	"tripdesk/internal/app/middleware"
	appoutbox "tripdesk/internal/app/outbox"
	"tripdesk/internal/app/notify"
	"tripdesk/internal/app/policies"
	"tripdesk/internal/app/queries"
	"tripdesk/internal/domain/account"
	domainauth "tripdesk/internal/domain/auth"
	"tripdesk/internal/domain/availability"
	domainbooking "tripdesk/internal/domain/booking"
	"tripdesk/internal/infra/broker/kafka"
	"tripdesk/internal/infra/config"
	mongostore "tripdesk/internal/infra/db/mongo"
	ginserver "tripdesk/internal/infra/http/gin"
	"tripdesk/internal/infra/obs"
	outboxrelay "tripdesk/internal/infra/outbox"
)

const notificationQueueSize = 256

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger("prod").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("tripdesk stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("tripdesk stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.close()

	if err := seedStaffSessions(ctx, store.sessions, cfg); err != nil {
		return err
	}

	hub := fanout.NewHub()
	relay := &fanout.Relay{Hub: hub, Logger: logger}
	var publishers appoutbox.Publishers
	deliverer := &notify.Deliverer{
		Inbox:    store.inbox,
		Notifier: notify.LogNotifier{Logger: logger},
		Backoff:  cfg.RetryBackoff,
		Logger:   logger,
	}

	g, gctx := errgroup.WithContext(ctx)

	if len(cfg.KafkaBrokers) == 0 {
		queue := notify.NewQueue(notificationQueueSize, logger)
		relay.Tasks = queue
		g.Go(func() error { return quiet(queue.Run(gctx, deliverer)) })
	} else {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			return err
		}
		defer producer.Close()
		tasks := &kafka.TaskQueue{Producer: producer, TopicPrefix: cfg.KafkaTopicPrefix}
		relay.Tasks = tasks
		publishers = append(publishers, &kafka.EventPublisher{Producer: producer, TopicPrefix: cfg.KafkaTopicPrefix})

		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, nil, notify.KafkaHandler{Deliverer: deliverer}, logger)
		if err != nil {
			return err
		}
		defer consumer.Close()
		g.Go(func() error { return quiet(consumer.Run(gctx, []string{tasks.Topic()})) })
		logger.Info("kafka notification pipeline enabled", "brokers", cfg.KafkaBrokers, "topic", tasks.Topic())
	}

	// The relay goes last so the dashboard hub only sees records every other
	// publisher accepted.
	publishers = append(publishers, relay)
	worker := outboxrelay.NewWorker(store.queue, publishers, cfg.OutboxPollInterval, logger)
	if len(cfg.RetryBackoff) > 0 {
		worker.Backoff = cfg.RetryBackoff
	}
	g.Go(func() error { return quiet(worker.Run(gctx)) })

	cmds, qs := buildBuses(cfg, store, worker, logger)
	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{Ready: store.ready}, ginserver.Handlers{
		Booking:        ginserver.BookingHandler{Commands: cmds, Queries: qs, Logger: logger},
		Staff:          ginserver.StaffHandler{Commands: cmds, Queries: qs, Logger: logger},
		Me:             ginserver.MeHandler{Queries: qs, Logger: logger},
		Events:         ginserver.EventsHandler{Hub: hub, Logger: logger},
		AuthMiddleware: ginserver.AuthMiddleware{Sessions: store.sessions, Logger: logger}.Handle,
	})

	g.Go(func() error {
		logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.Storage)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
		return nil
	})
	return g.Wait()
}

func buildBuses(cfg config.Config, store *storage, flusher appoutbox.Flusher, logger *slog.Logger) (commands.Bus, queries.Bus) {
	cmdBus, queryBus := commands.NewInMemoryBus(), queries.NewInMemoryBus()
	bookingapp.Module{
		UoWFactory: store.factory,
		Clock:      policies.SystemClock{},
		Accounts:   store.accounts,
		Encoder:    appoutbox.JSONEventEncoder{},
		Logger:     logger,
	}.Register(cmdBus, queryBus)
	me.Register(queryBus, store.factory, logger)

	// Only commands that opt in through middleware.RetryableCommand are
	// retried; transitions and archives surface their conflicts.
	retryable := []error{domainbooking.ErrDuplicateReference, availability.ErrStaleCalendar, mongostore.ErrWriteConflict}
	validator := middleware.NewStructValidator()
	cmds := middleware.ChainCommands(cmdBus,
		middleware.Logging(logger),
		middleware.Idempotency(store.idempotency, nil),
		middleware.OutboxFlush(flusher, logger),
		middleware.Validation(validator),
		middleware.Authorization(policies.RoleAuthorizer{}),
		middleware.Retry(cfg.ReferenceAttempts, 0, retryable...),
		middleware.Transaction(store.factory, nil),
	)
	qs := middleware.ChainQueries(queryBus,
		middleware.QueryValidation(validator),
		middleware.QueryAuthorization(policies.RoleAuthorizer{}),
	)
	return cmds, qs
}

func seedStaffSessions(ctx context.Context, sessions domainauth.SessionStore, cfg config.Config) error {
	now := time.Now()
	for _, st := range cfg.StaffTokens {
		s, err := domainauth.NewSession(domainauth.CreateSessionParams{
			Token:     domainauth.Token(st.Token),
			AccountID: account.ID(st.AccountID),
			Roles:     []account.Role{st.Role},
			TTL:       cfg.SessionTTL,
			Now:       now,
		})
		if err != nil {
			return err
		}
		if err := sessions.Save(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// quiet treats cancellation as a clean stop.
func quiet(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
