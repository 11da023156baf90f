package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urugendo/bustickets/config"
	"github.com/urugendo/bustickets/internal/cache"
	"github.com/urugendo/bustickets/internal/kafka"
	"github.com/urugendo/bustickets/internal/logger"
	"github.com/urugendo/bustickets/internal/notify"
	"github.com/urugendo/bustickets/internal/payment"
	"github.com/urugendo/bustickets/internal/repository"
	"github.com/urugendo/bustickets/internal/service/booking"
	"go.uber.org/zap"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zl, err := logger.New("bustickets-worker")
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		zl.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()
	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Booking.TripsCacheTTLSeconds)*time.Second)

	tripRepo := repository.NewTripRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	bookingService := booking.NewBookingService(
		bookingRepo,
		tripRepo,
		payment.NewFromConfig(cfg.Payments, zl),
		redisCache,
		producer,
		cfg.Kafka.BookingTopic,
		time.Duration(cfg.Booking.SeatHoldTTLMinutes)*time.Minute,
		time.Duration(cfg.Booking.PaymentTTLMinutes)*time.Minute,
		zl,
		booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
	)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic, zl)
	defer consumer.Close()

	smsSender := notify.NewSMSSender(cfg.Notify)
	emailSender := notify.NewEmailSender(cfg.Notify.EmailFrom, zl)

	go func() {
		err := consumer.Consume(ctx, func(ctx context.Context, event kafka.TicketEvent) error {
			deliver(ctx, zl, event, smsSender, emailSender)
			return nil
		})
		if err != nil {
			zl.Warn("consumer stopped", zap.Error(err))
		}
	}()

	expireTicker := time.NewTicker(time.Duration(cfg.Worker.ExpirationSweepMinutes) * time.Minute)
	defer expireTicker.Stop()

	for {
		select {
		case <-expireTicker.C:
			expired, err := bookingService.ExpirePendingBookings(ctx)
			if err != nil {
				zl.Error("expire bookings", zap.Error(err))
				continue
			}
			if len(expired) > 0 {
				zl.Info("expired stale bookings", zap.Int("count", len(expired)))
			}
		case <-ctx.Done():
			zl.Info("shutting down")
			return
		}
	}
}

// deliver fans a ticket event out to the sinks. Sink failures are logged and
// dropped; notification delivery is best-effort and never retried here.
func deliver(ctx context.Context, zl *zap.Logger, event kafka.TicketEvent, sms, email notify.Sink) {
	message := notify.Compose(event)
	if err := sms.Send(ctx, event.PhoneNumber, message); err != nil {
		zl.Warn("sms delivery failed",
			zap.String("reference", event.Reference), zap.Error(err))
	}
	if event.Email != "" {
		if err := email.Send(ctx, event.Email, message); err != nil {
			zl.Warn("email delivery failed",
				zap.String("reference", event.Reference), zap.Error(err))
		}
	}
}
