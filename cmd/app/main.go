package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urugendo/bustickets/api"
	"github.com/urugendo/bustickets/config"
	"github.com/urugendo/bustickets/internal/bootstrap"
	"github.com/urugendo/bustickets/internal/cache"
	"github.com/urugendo/bustickets/internal/kafka"
	"github.com/urugendo/bustickets/internal/logger"
	"github.com/urugendo/bustickets/internal/payment"
	"github.com/urugendo/bustickets/internal/repository"
	"github.com/urugendo/bustickets/internal/service/booking"
	"github.com/urugendo/bustickets/internal/service/payments"
	"github.com/urugendo/bustickets/internal/service/trips"
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

	zl, err := logger.New("bustickets-api")
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

	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Booking.TripsCacheTTLSeconds)*time.Second)
	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	gateway := payment.NewFromConfig(cfg.Payments, zl)

	tripRepo := repository.NewTripRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)

	tripService := trips.NewTripService(tripRepo, redisCache)
	bookingService := booking.NewBookingService(
		bookingRepo,
		tripRepo,
		gateway,
		redisCache,
		producer,
		cfg.Kafka.BookingTopic,
		time.Duration(cfg.Booking.SeatHoldTTLMinutes)*time.Minute,
		time.Duration(cfg.Booking.PaymentTTLMinutes)*time.Minute,
		zl,
		booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
	)
	reconciler := payments.NewReconciler(
		bookingRepo,
		tripRepo,
		gateway,
		redisCache,
		producer,
		cfg.Kafka.NotificationsTopic,
		zl,
	)

	handlers := bootstrap.Handlers{
		Trips:    api.NewTripHandler(tripService),
		Bookings: api.NewBookingHandler(bookingService),
		Payments: api.NewPaymentHandler(reconciler, zl),
	}

	if err := bootstrap.Run(ctx, cfg, zl, handlers); err != nil {
		zl.Fatal("server error", zap.Error(err))
	}
}
