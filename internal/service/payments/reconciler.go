package payments

import (
	"context"
	"errors"
	"time"

	"github.com/urugendo/bustickets/internal/domain"
	"github.com/urugendo/bustickets/internal/kafka"
	"github.com/urugendo/bustickets/internal/payment"
	"github.com/urugendo/bustickets/internal/repository"
	"go.uber.org/zap"
)

// ErrUnknownBooking marks a webhook whose external id matches no booking.
// The webhook handler acknowledges it anyway; it exists for logging and
// tests, never for the provider.
var ErrUnknownBooking = errors.New("no booking for external id")

type ReconcileUseCase interface {
	Poll(ctx context.Context, reference string) (*domain.Booking, string, error)
	HandleWebhook(ctx context.Context, externalID string, status payment.Status) error
}

type Cache interface {
	ReleaseSeatHold(ctx context.Context, tripID int64, seatNumber int) error
}

type Producer interface {
	PublishWithRetry(ctx context.Context, topic, key string, value interface{}, maxRetries int) error
}

// notifyMaxRetries bounds the publish attempts for a confirmation event; the
// payment stands whether or not the event ever makes it out.
const notifyMaxRetries = 3

// Reconciler is the single transition function both confirmation channels
// funnel into. The poll path and the webhook path may race on the same
// PENDING booking, possibly from different processes; the store's conditional
// status update decides the winner, and only the winner fires side effects.
type Reconciler struct {
	bookings           repository.BookingRepository
	trips              repository.TripRepository
	gateway            payment.Gateway
	cache              Cache
	producer           Producer
	notificationsTopic string
	logger             *zap.Logger
}

func NewReconciler(
	bookings repository.BookingRepository,
	trips repository.TripRepository,
	gateway payment.Gateway,
	cache Cache,
	producer Producer,
	notificationsTopic string,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		bookings:           bookings,
		trips:              trips,
		gateway:            gateway,
		cache:              cache,
		producer:           producer,
		notificationsTopic: notificationsTopic,
		logger:             logger,
	}
}

// Poll resolves the current status for a booking reference. Terminal bookings
// are returned unchanged without touching the gateway. Gateway
// unreachability degrades to a still-pending answer so the client's polling
// loop keeps waiting instead of erroring; the expiration sweep bounds how
// long that can go on.
func (r *Reconciler) Poll(ctx context.Context, reference string) (*domain.Booking, string, error) {
	booking, err := r.bookings.GetByReference(ctx, reference)
	if err != nil {
		return nil, "", err
	}
	if booking.Status.Terminal() {
		return booking, "", nil
	}
	if booking.PaymentID == nil {
		return booking, "payment not initiated", nil
	}

	status, err := r.gateway.CheckStatus(ctx, *booking.PaymentID)
	if err != nil {
		r.logger.Warn("gateway status check failed, reporting still pending",
			zap.String("reference", reference), zap.Error(err))
		return booking, "", nil
	}

	updated, err := r.apply(ctx, booking, status)
	if err != nil {
		return nil, "", err
	}
	return updated, status.Reason, nil
}

// HandleWebhook correlates a provider callback by external id. A miss is not
// an error towards the provider: the id may belong to a stale or foreign
// notification, and a non-2xx answer would only provoke a redelivery storm.
func (r *Reconciler) HandleWebhook(ctx context.Context, externalID string, status payment.Status) error {
	booking, err := r.bookings.GetByPaymentID(ctx, externalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.logger.Warn("webhook for unknown external id", zap.String("external_id", externalID))
			return ErrUnknownBooking
		}
		return err
	}

	_, err = r.apply(ctx, booking, status)
	return err
}

// apply is the idempotent transition function. The status read and the
// conditional write are not atomic together, but the write re-checks the
// expected status in the store, so a stale read only means losing the race,
// never a double transition.
func (r *Reconciler) apply(ctx context.Context, booking *domain.Booking, status payment.Status) (*domain.Booking, error) {
	if booking.Status.Terminal() {
		return booking, nil
	}

	switch status.State {
	case payment.StateSuccess:
		won, err := r.bookings.ConditionalUpdateStatus(ctx, booking.ID, domain.BookingStatusPending, domain.BookingStatusPaid)
		if err != nil {
			return nil, err
		}
		if !won {
			return r.bookings.GetByReference(ctx, booking.Reference)
		}
		booking.Status = domain.BookingStatusPaid
		r.releaseHolds(ctx, booking)
		r.notifyConfirmed(ctx, booking)
		return booking, nil

	case payment.StateFailure:
		won, err := r.bookings.ConditionalUpdateStatus(ctx, booking.ID, domain.BookingStatusPending, domain.BookingStatusFailed)
		if err != nil {
			return nil, err
		}
		if !won {
			return r.bookings.GetByReference(ctx, booking.Reference)
		}
		booking.Status = domain.BookingStatusFailed
		if err := r.bookings.ReleaseSeatClaims(ctx, booking.ID); err != nil {
			r.logger.Warn("failed to release seat claims",
				zap.String("reference", booking.Reference), zap.Error(err))
		}
		if len(booking.Passengers) > 0 {
			if err := r.trips.ReleaseSeats(ctx, booking.TripID, len(booking.Passengers)); err != nil {
				r.logger.Warn("failed to release seats after payment failure",
					zap.String("reference", booking.Reference), zap.Error(err))
			}
		}
		r.releaseHolds(ctx, booking)
		return booking, nil

	default:
		return booking, nil
	}
}

// notifyConfirmed runs only on the won PENDING to PAID transition, which
// makes the confirmation notification exactly-once per booking. A publish
// failure is logged and swallowed: the payment stands regardless.
func (r *Reconciler) notifyConfirmed(ctx context.Context, booking *domain.Booking) {
	if r.producer == nil || r.notificationsTopic == "" {
		return
	}
	event := kafka.TicketEvent{
		Type:            kafka.EventPaymentConfirmed,
		Reference:       booking.Reference,
		TripID:          booking.TripID,
		Seats:           booking.SeatNumbers(),
		PhoneNumber:     booking.PhoneNumber,
		Email:           booking.Email,
		Status:          string(booking.Status),
		TotalPriceCents: booking.TotalPriceCents,
		OccurredAt:      time.Now(),
	}
	if err := r.producer.PublishWithRetry(ctx, r.notificationsTopic, booking.Reference, event, notifyMaxRetries); err != nil {
		r.logger.Error("failed to queue payment confirmation",
			zap.String("reference", booking.Reference), zap.Error(err))
	}
}

func (r *Reconciler) releaseHolds(ctx context.Context, booking *domain.Booking) {
	if r.cache == nil {
		return
	}
	for _, seat := range booking.SeatNumbers() {
		_ = r.cache.ReleaseSeatHold(ctx, booking.TripID, seat)
	}
}

var _ ReconcileUseCase = (*Reconciler)(nil)
