package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"rentacar/internal/app/commands"
	"rentacar/internal/app/dto"
	availabilityapp "rentacar/internal/app/handlers/availability"
	bookingapp "rentacar/internal/app/handlers/booking"
	checkoutapp "rentacar/internal/app/handlers/checkout"
	notificationsapp "rentacar/internal/app/handlers/notifications"
	paymentsapp "rentacar/internal/app/handlers/payments"
	sweepsapp "rentacar/internal/app/handlers/sweeps"
	"rentacar/internal/app/middleware"
	appoutbox "rentacar/internal/app/outbox"
	"rentacar/internal/app/policies"
	"rentacar/internal/app/queries"
	"rentacar/internal/app/schedule"
	"rentacar/internal/app/uow"
	domainbooking "rentacar/internal/domain/booking"
	domaincars "rentacar/internal/domain/cars"
	"rentacar/internal/infra/broker/kafka"
	"rentacar/internal/infra/config"
	mongodb "rentacar/internal/infra/db/mongo"
	ginserver "rentacar/internal/infra/http/gin"
	"rentacar/internal/infra/inbox"
	redislock "rentacar/internal/infra/lock/redis"
	"rentacar/internal/infra/notify"
	"rentacar/internal/infra/obs"
	infraoutbox "rentacar/internal/infra/outbox"
	stripeadapter "rentacar/internal/infra/payments/stripe"
	"rentacar/internal/infra/security"
	"rentacar/internal/infra/storage/memory"
	s3storage "rentacar/internal/infra/storage/s3"
)

type application struct {
	handlers   ginserver.Handlers
	health     obs.HealthHandlers
	background map[string]func(context.Context) error
	closers    []func(context.Context) error
}

func (a *application) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i](ctx)
	}
}

// relayOutbox is both sides of an outbox: handlers add, the relay claims.
type relayOutbox interface {
	appoutbox.Outbox
	infraoutbox.Store
	Wake() <-chan struct{}
}

type storage struct {
	factory     uow.UoWFactory
	cars        domaincars.Repository
	outbox      relayOutbox
	idempotency middleware.IdempotencyStore
	inbox       kafka.Inbox
	ready       func(context.Context) error
	close       func(context.Context) error
}

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage, error) {
	if cfg.MemoryStorage() {
		logger.Warn("MONGO_URI not set, using in-memory storage")
		bookings := memory.NewBookingRepository()
		cars := memory.NewCarRepository()
		return storage{
			factory:     memory.Factory{BookingRepo: bookings, CarRepo: cars},
			cars:        cars,
			outbox:      memory.NewOutbox(),
			idempotency: memory.NewIdempotencyStore(cfg.IdempotencyTTL),
			inbox:       memory.NewInbox(),
		}, nil
	}

	client, err := mongodb.New(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return storage{}, fmt.Errorf("connect mongo: %w", err)
	}
	bookings := mongodb.NewBookingRepository(client.DB)
	if err := bookings.EnsureIndexes(ctx); err != nil {
		return storage{}, fmt.Errorf("booking indexes: %w", err)
	}
	cars := mongodb.NewCarRepository(client.DB)
	if err := cars.EnsureIndexes(ctx); err != nil {
		return storage{}, fmt.Errorf("car indexes: %w", err)
	}
	box, err := infraoutbox.NewMongoStore(ctx, client.DB)
	if err != nil {
		return storage{}, fmt.Errorf("outbox store: %w", err)
	}
	idem, err := mongodb.NewIdempotencyStore(ctx, client.DB, cfg.IdempotencyTTL)
	if err != nil {
		return storage{}, fmt.Errorf("idempotency store: %w", err)
	}
	in, err := inbox.NewStore(ctx, client.DB, "rentacar-local-notifier")
	if err != nil {
		return storage{}, fmt.Errorf("inbox store: %w", err)
	}
	logger.Info("mongo storage ready", "db", cfg.MongoDB)
	return storage{
		factory:     mongodb.Factory{DB: client.DB, BookingRepo: bookings, CarRepo: cars},
		cars:        cars,
		outbox:      box,
		idempotency: idem,
		inbox:       in,
		ready:       client.Ping,
		close:       client.Close,
	}, nil
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{background: make(map[string]func(context.Context) error)}

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if store.close != nil {
		app.closers = append(app.closers, store.close)
	}
	app.health = obs.HealthHandlers{Ready: store.ready}

	if err := loadCarFixtures(ctx, store.cars, cfg.CarFixtures, cfg.Stripe.Currency, logger); err != nil {
		logger.Warn("car fixtures load failed", "error", err, "path", cfg.CarFixtures)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	rules := domainbooking.Rules{Horizon: cfg.Booking.Horizon, MinDuration: cfg.Booking.MinDuration, Location: loc}

	var payments policies.PaymentsPort
	adapter, err := stripeadapter.New(stripeadapter.Config{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		Timeout:       cfg.Stripe.Timeout,
	})
	switch {
	case err == nil:
		payments = adapter
	case errors.Is(err, policies.ErrPaymentsDisabled):
		logger.Warn("STRIPE_SECRET_KEY not set, checkout and refunds disabled")
	default:
		return nil, err
	}

	encoder := appoutbox.JSONEventEncoder{}
	checker := availabilityapp.Checker{}
	validator := bookingapp.Validator{UoWFactory: store.factory, Rules: rules, Checker: checker}

	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler[bookingapp.CreateBookingCommand, *dto.BookingCreated](commandBus, bookingapp.CreateBookingCommand{}.Key(), &bookingapp.CreateBookingHandler{
		UoWFactory:  store.factory,
		Validator:   validator,
		Outbox:      store.outbox,
		Encoder:     encoder,
		IDGenerator: uuid.NewString,
	})
	commands.RegisterHandler[bookingapp.CancelBookingCommand, *dto.CancelResult](commandBus, bookingapp.CancelBookingCommand{}.Key(), &bookingapp.CancelBookingHandler{
		UoWFactory: store.factory,
		Payments:   payments,
		Policy:     domainbooking.CancellationPolicy{PenaltyPercent: cfg.Booking.CancellationPenaltyPc},
		Outbox:     store.outbox,
		Encoder:    encoder,
		Logger:     logger,
	})
	commands.RegisterHandler[bookingapp.CompleteBookingCommand, *bookingapp.CompleteBookingResult](commandBus, bookingapp.CompleteBookingCommand{}.Key(), &bookingapp.CompleteBookingHandler{
		UoWFactory: store.factory,
		Late:       domainbooking.LatePolicy{RatePerHour: cfg.Booking.LatePenaltyPerHour, Grace: cfg.Booking.LateGrace},
		Outbox:     store.outbox,
		Encoder:    encoder,
	})
	commands.RegisterHandler[bookingapp.DeleteBookingCommand, *bookingapp.DeleteBookingResult](commandBus, bookingapp.DeleteBookingCommand{}.Key(), &bookingapp.DeleteBookingHandler{
		UoWFactory: store.factory,
		Outbox:     store.outbox,
		Encoder:    encoder,
	})
	commands.RegisterHandler[checkoutapp.StartCheckoutCommand, *dto.CheckoutSession](commandBus, checkoutapp.StartCheckoutCommand{}.Key(), &checkoutapp.StartCheckoutHandler{
		Validator:     validator,
		Payments:      payments,
		PublicBaseURL: cfg.Stripe.PublicBaseURL,
	})
	commands.RegisterHandler[paymentsapp.ScheduleFromPaymentCommand, *paymentsapp.ScheduleFromPaymentResult](commandBus, paymentsapp.ScheduleFromPaymentCommand{}.Key(), &paymentsapp.ScheduleFromPaymentHandler{
		UoWFactory:  store.factory,
		Checker:     checker,
		Outbox:      store.outbox,
		Encoder:     encoder,
		IDGenerator: uuid.NewString,
	})
	commands.RegisterHandler[sweepsapp.PurgeInactiveCarsCommand, *sweepsapp.PurgeInactiveCarsResult](commandBus, sweepsapp.PurgeInactiveCarsCommand{}.Key(), &sweepsapp.PurgeInactiveCarsHandler{
		UoWFactory: store.factory,
	})

	commandBusWithMiddleware := middleware.ChainCommands(
		commandBus,
		middleware.Validation(middleware.StructuralValidator{}),
		middleware.Authorization(middleware.RoleAuthorizer{}),
		middleware.Idempotency(store.idempotency, nil),
		middleware.OutboxFlush(store.outbox, logger),
		middleware.Transaction(store.factory, nil),
	)

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler[availabilityapp.CheckAvailabilityQuery, dto.Availability](queryBus, availabilityapp.CheckAvailabilityQuery{}.Key(), &availabilityapp.CheckAvailabilityHandler{
		UoWFactory: store.factory,
		Checker:    checker,
	})
	queries.RegisterHandler[availabilityapp.AvailableCarsQuery, dto.AvailableCars](queryBus, availabilityapp.AvailableCarsQuery{}.Key(), &availabilityapp.AvailableCarsHandler{
		UoWFactory: store.factory,
		Checker:    checker,
	})
	queries.RegisterHandler[bookingapp.ListMyBookingsQuery, dto.BookingCollection](queryBus, bookingapp.ListMyBookingsQuery{}.Key(), &bookingapp.ListMyBookingsHandler{
		UoWFactory: store.factory,
		Logger:     logger,
	})
	queries.RegisterHandler[bookingapp.GetBookingQuery, dto.Booking](queryBus, bookingapp.GetBookingQuery{}.Key(), &bookingapp.GetBookingHandler{
		UoWFactory: store.factory,
	})
	queryBusWithMiddleware := middleware.ChainQueries(
		queryBus,
		middleware.QueryValidation(middleware.StructuralValidator{}),
		middleware.QueryAuthorization(middleware.RoleAuthorizer{}),
	)

	reconciler := &paymentsapp.Reconciler{
		Bus:        commandBusWithMiddleware,
		UoWFactory: store.factory,
		Payments:   payments,
		Currency:   cfg.Stripe.Currency,
		Logger:     logger,
	}

	producer, err := buildProducer(cfg, store.inbox, logger)
	if err != nil {
		return nil, err
	}
	if closer, ok := producer.(interface{ Close() error }); ok {
		app.closers = append(app.closers, func(context.Context) error { return closer.Close() })
	}
	relay := &infraoutbox.Worker{
		Store:       store.outbox,
		Producer:    producer,
		Interval:    cfg.OutboxPollInterval,
		Wake:        store.outbox.Wake(),
		TopicPrefix: cfg.KafkaTopicPrefix,
		ID:          workerID("relay"),
		Backoff:     cfg.RetryBackoff,
		Logger:      logger,
	}
	app.background["outbox-relay"] = relay.Run

	lease, leaseClose, err := buildLease(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if leaseClose != nil {
		app.closers = append(app.closers, leaseClose)
	}
	completion := &schedule.Periodic{
		Job:      &sweepsapp.CompletionSweep{Bus: commandBusWithMiddleware, UoWFactory: store.factory, Logger: logger},
		Interval: cfg.Sweeps.CompletionInterval,
		Lease:    lease,
		LeaseTTL: cfg.Sweeps.LeaseTTL,
		Logger:   logger,
	}
	cleanup := &schedule.Periodic{
		Job:      &sweepsapp.CarCleanup{Bus: commandBusWithMiddleware, RetentionMonths: cfg.Sweeps.CarRetentionMonths, Logger: logger},
		Interval: cfg.Sweeps.CleanupInterval,
		Lease:    lease,
		LeaseTTL: cfg.Sweeps.LeaseTTL,
		Logger:   logger,
	}
	app.background["completion-sweep"] = completion.Run
	app.background["cleanup-sweep"] = cleanup.Run

	var verifier ginserver.TokenVerifier
	if cfg.JWTSecret != "" {
		verifier = security.JWTVerifier{Secret: []byte(cfg.JWTSecret), Leeway: 30 * time.Second}
	} else {
		logger.Warn("JWT_SECRET not set, authenticated routes will answer 401")
	}

	app.handlers = ginserver.Handlers{
		Availability:   ginserver.AvailabilityHandler{Queries: queryBusWithMiddleware},
		Booking:        ginserver.BookingHandler{Commands: commandBusWithMiddleware, Queries: queryBusWithMiddleware},
		Checkout:       ginserver.CheckoutHandler{Commands: commandBusWithMiddleware},
		Payments:       ginserver.PaymentsHandler{Reconciler: reconciler},
		Me:             ginserver.MeHandler{Queries: queryBusWithMiddleware},
		Admin:          ginserver.AdminHandler{Commands: commandBusWithMiddleware},
		AuthMiddleware: ginserver.AuthMiddleware{Verifier: verifier, Logger: logger}.Handle,
		RateLimiter:    ginserver.NewRateLimiter(cfg.RateLimitPerMinute, logger).Handle,
	}
	return app, nil
}

// buildProducer publishes to Kafka when brokers are configured and delivers
// notifications in-process otherwise.
func buildProducer(cfg config.Config, in kafka.Inbox, logger *slog.Logger) (infraoutbox.Producer, error) {
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, kafka.NewConfig("rentacar-api"))
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		logger.Info("outbox relay publishing to kafka", "brokers", cfg.KafkaBrokers)
		return producer, nil
	}
	notifications, err := buildNotifications(cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("KAFKA_BROKERS not set, delivering notifications in-process")
	return notify.LocalProducer{Events: &kafka.EventHandler{
		Inbox:  in,
		Handle: notifications.Handle,
		Logger: logger,
	}}, nil
}

func buildNotifications(cfg config.Config, logger *slog.Logger) (*notificationsapp.Handler, error) {
	mailer, err := notify.NewMailer(notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		FromName: cfg.SMTP.FromName,
	}, logger)
	if err != nil {
		return nil, err
	}
	handler := &notificationsapp.Handler{Mailer: mailer, Logger: logger}
	if cfg.S3.Endpoint != "" {
		receipts, err := s3storage.NewReceiptStore(s3storage.Config{
			Endpoint:  cfg.S3.Endpoint,
			UseSSL:    cfg.S3.UseSSL,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			LinkTTL:   cfg.S3.LinkTTL,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("receipt store: %w", err)
		}
		handler.Receipts = receipts
	}
	return handler, nil
}

func buildLease(ctx context.Context, cfg config.Config, logger *slog.Logger) (policies.Lease, func(context.Context) error, error) {
	if cfg.Sweeps.RedisURL == "" {
		return nil, nil, nil
	}
	client, err := redislock.Connect(ctx, cfg.Sweeps.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("sweep lease backed by redis")
	return redislock.NewLease(client, workerID("sweeps")), func(context.Context) error { return client.Close() }, nil
}

func workerID(role string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "rentacar"
	}
	return fmt.Sprintf("%s-%s-%d", host, role, os.Getpid())
}
