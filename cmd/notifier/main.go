package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	notificationsapp "rentacar/internal/app/handlers/notifications"
	domainbooking "rentacar/internal/domain/booking"
	"rentacar/internal/infra/broker/kafka"
	"rentacar/internal/infra/config"
	mongodb "rentacar/internal/infra/db/mongo"
	"rentacar/internal/infra/inbox"
	"rentacar/internal/infra/notify"
	"rentacar/internal/infra/obs"
	infraoutbox "rentacar/internal/infra/outbox"
	s3storage "rentacar/internal/infra/storage/s3"
)

// notifier consumes booking events from Kafka and sends renter emails with
// receipt links. Deliveries are de-duplicated through the Mongo inbox.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger("prod").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env).With("service", "notifier")
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("notifier stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("notifier stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if len(cfg.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	if cfg.MongoURI == "" {
		return errors.New("MONGO_URI is required")
	}
	client, err := mongodb.New(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return err
	}
	defer client.Close(context.Background())

	in, err := inbox.NewStore(ctx, client.DB, cfg.KafkaGroupID)
	if err != nil {
		return err
	}
	mailer, err := notify.NewMailer(notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		FromName: cfg.SMTP.FromName,
	}, logger)
	if err != nil {
		return err
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
			return err
		}
		handler.Receipts = receipts
	}

	events := &kafka.EventHandler{Inbox: in, Handle: handler.Handle, Logger: logger}
	consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, kafka.NewConfig("rentacar-notifier"), kafka.MessageAdapter{Events: events})
	if err != nil {
		return err
	}
	defer consumer.Close()

	topic := infraoutbox.TopicFor(cfg.KafkaTopicPrefix, domainbooking.EventScheduled)
	logger.Info("consuming booking events", "topic", topic, "group", cfg.KafkaGroupID)
	return consumer.Run(ctx, []string{topic})
}
