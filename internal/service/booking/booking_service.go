package booking

import (
	"context"
	"encoding/base32"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/urugendo/bustickets/internal/domain"
	"github.com/urugendo/bustickets/internal/kafka"
	"github.com/urugendo/bustickets/internal/payment"
	"github.com/urugendo/bustickets/internal/repository"
	"go.uber.org/zap"
)

type BookingUseCase interface {
	CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error)
	InitiatePayment(ctx context.Context, reference string) (*domain.Booking, error)
	CancelBooking(ctx context.Context, reference string) (*domain.Booking, error)
	RedeemTicket(ctx context.Context, reference string) (*domain.Booking, error)
	ExpirePendingBookings(ctx context.Context) ([]domain.Booking, error)
}

type Cache interface {
	AcquireSeatHold(ctx context.Context, tripID int64, seatNumber int, ttl time.Duration) (bool, error)
	ReleaseSeatHold(ctx context.Context, tripID int64, seatNumber int) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

var (
	ErrSeatHeld   = errors.New("seat is currently held by another booking")
	ErrNotPending = errors.New("booking is not pending")
)

type BookingService struct {
	bookings           repository.BookingRepository
	trips              repository.TripRepository
	gateway            payment.Gateway
	cache              Cache
	producer           Producer
	bookingTopic       string
	notificationsTopic string
	holdTTL            time.Duration
	paymentTTL         time.Duration
	logger             *zap.Logger
}

type PassengerInput struct {
	FullName   string `json:"full_name"`
	SeatNumber int    `json:"seat_number"`
}

type CreateBookingInput struct {
	TripID      int64            `json:"trip_id"`
	Passengers  []PassengerInput `json:"passengers"`
	PhoneNumber string           `json:"phone_number"`
	Email       string           `json:"email,omitempty"`
	Provider    string           `json:"provider"`
	UserID      *int64           `json:"user_id,omitempty"`
}

type BookingServiceOption func(*BookingService)

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.notificationsTopic = topic
	}
}

func NewBookingService(
	bookings repository.BookingRepository,
	trips repository.TripRepository,
	gateway payment.Gateway,
	cache Cache,
	producer Producer,
	bookingTopic string,
	holdTTL, paymentTTL time.Duration,
	logger *zap.Logger,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		bookings:     bookings,
		trips:        trips,
		gateway:      gateway,
		cache:        cache,
		producer:     producer,
		bookingTopic: bookingTopic,
		holdTTL:      holdTTL,
		paymentTTL:   paymentTTL,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// CreateBooking reserves the seats and issues the mobile-money push. A failed
// initiation does not fail the booking: the record stays PENDING without an
// external id and the payer retries through InitiatePayment.
func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	trip, err := s.trips.GetByID(ctx, input.TripID)
	if err != nil {
		return nil, err
	}
	if !trip.DepartureTime.After(time.Now()) {
		return nil, errors.New("trip has already departed")
	}
	for _, p := range input.Passengers {
		if p.SeatNumber > trip.TotalSeats {
			return nil, errors.New("seat number exceeds bus capacity")
		}
	}

	held, err := s.holdSeats(ctx, input.TripID, input.Passengers)
	if err != nil {
		return nil, err
	}

	passengers := make([]domain.Passenger, 0, len(input.Passengers))
	for _, p := range input.Passengers {
		passengers = append(passengers, domain.Passenger{FullName: p.FullName, SeatNumber: p.SeatNumber})
	}

	booking := &domain.Booking{
		Reference:       newReference(),
		Provider:        input.Provider,
		TripID:          input.TripID,
		UserID:          input.UserID,
		PhoneNumber:     input.PhoneNumber,
		Email:           input.Email,
		TotalPriceCents: trip.PriceCents * int64(len(passengers)),
		Passengers:      passengers,
		ExpiresAt:       time.Now().Add(s.paymentTTL),
	}

	if err := s.bookings.CreatePending(ctx, booking); err != nil {
		s.releaseHolds(ctx, input.TripID, held)
		return nil, err
	}

	s.publish(ctx, kafka.EventBookingCreated, booking)

	if _, err := s.initiate(ctx, booking); err != nil {
		s.logger.Warn("payment initiation failed, booking left pending",
			zap.String("reference", booking.Reference), zap.Error(err))
	}
	return booking, nil
}

// InitiatePayment issues (or re-issues) the collection push for a PENDING
// booking. The external id is attached before the provider call and detached
// again if the provider rejects it, so a webhook can never arrive for an id
// the store does not know.
func (s *BookingService) InitiatePayment(ctx context.Context, reference string) (*domain.Booking, error) {
	booking, err := s.bookings.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if booking.Status != domain.BookingStatusPending {
		return nil, ErrNotPending
	}
	if booking.PaymentID != nil {
		return booking, nil
	}
	return s.initiate(ctx, booking)
}

func (s *BookingService) initiate(ctx context.Context, booking *domain.Booking) (*domain.Booking, error) {
	externalID := uuid.NewString()
	attached, err := s.bookings.AttachPaymentID(ctx, booking.ID, externalID)
	if err != nil {
		return nil, err
	}
	if !attached {
		// another initiation won; report its state
		return s.bookings.GetByReference(ctx, booking.Reference)
	}

	req := payment.Request{
		ExternalID:  externalID,
		AmountCents: booking.TotalPriceCents,
		PhoneNumber: booking.PhoneNumber,
		Reference:   booking.Reference,
	}
	if err := s.gateway.Initiate(ctx, req); err != nil {
		if detachErr := s.bookings.DetachPaymentID(ctx, booking.ID); detachErr != nil {
			s.logger.Error("failed to detach payment id after rejected initiation",
				zap.String("reference", booking.Reference), zap.Error(detachErr))
		}
		return nil, err
	}

	booking.PaymentID = &externalID
	return booking, nil
}

func (s *BookingService) CancelBooking(ctx context.Context, reference string) (*domain.Booking, error) {
	booking, err := s.bookings.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	switch booking.Status {
	case domain.BookingStatusFailed, domain.BookingStatusExpired:
		return booking, nil
	case domain.BookingStatusPending:
	default:
		return nil, errors.New("paid bookings cannot be cancelled")
	}

	won, err := s.bookings.ConditionalUpdateStatus(ctx, booking.ID, domain.BookingStatusPending, domain.BookingStatusFailed)
	if err != nil {
		return nil, err
	}
	if !won {
		return s.bookings.GetByReference(ctx, reference)
	}

	booking.Status = domain.BookingStatusFailed
	s.releaseBooking(ctx, booking)
	s.publish(ctx, kafka.EventBookingFailed, booking)
	return booking, nil
}

// RedeemTicket marks a PAID ticket as USED at boarding time.
func (s *BookingService) RedeemTicket(ctx context.Context, reference string) (*domain.Booking, error) {
	booking, err := s.bookings.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if booking.Status == domain.BookingStatusUsed {
		return nil, errors.New("ticket already redeemed")
	}
	if booking.Status != domain.BookingStatusPaid {
		return nil, errors.New("ticket is not paid")
	}

	won, err := s.bookings.ConditionalUpdateStatus(ctx, booking.ID, domain.BookingStatusPaid, domain.BookingStatusUsed)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, errors.New("ticket already redeemed")
	}
	booking.Status = domain.BookingStatusUsed
	return booking, nil
}

// ExpirePendingBookings sweeps stale PENDING bookings to EXPIRED and returns
// their seats. This is the expiration policy the reconciliation engine
// relies on to bound endless client polling.
func (s *BookingService) ExpirePendingBookings(ctx context.Context) ([]domain.Booking, error) {
	expired, err := s.bookings.ExpirePendingBefore(ctx, time.Now())
	if err != nil {
		return nil, err
	}
	for i := range expired {
		b := &expired[i]
		if full, err := s.bookings.GetByReference(ctx, b.Reference); err == nil {
			b.Passengers = full.Passengers
		}
		s.releaseBooking(ctx, b)
		s.publish(ctx, kafka.EventBookingExpired, b)
	}
	return expired, nil
}

func (s *BookingService) holdSeats(ctx context.Context, tripID int64, passengers []PassengerInput) ([]int, error) {
	if s.cache == nil {
		return nil, nil
	}
	held := make([]int, 0, len(passengers))
	for _, p := range passengers {
		ok, err := s.cache.AcquireSeatHold(ctx, tripID, p.SeatNumber, s.holdTTL)
		if err != nil {
			s.releaseHolds(ctx, tripID, held)
			return nil, err
		}
		if !ok {
			s.releaseHolds(ctx, tripID, held)
			return nil, ErrSeatHeld
		}
		held = append(held, p.SeatNumber)
	}
	return held, nil
}

func (s *BookingService) releaseHolds(ctx context.Context, tripID int64, seats []int) {
	if s.cache == nil {
		return
	}
	for _, seat := range seats {
		_ = s.cache.ReleaseSeatHold(ctx, tripID, seat)
	}
}

func (s *BookingService) releaseBooking(ctx context.Context, booking *domain.Booking) {
	if err := s.bookings.ReleaseSeatClaims(ctx, booking.ID); err != nil {
		s.logger.Warn("failed to release seat claims", zap.String("reference", booking.Reference), zap.Error(err))
	}
	if len(booking.Passengers) > 0 {
		if err := s.trips.ReleaseSeats(ctx, booking.TripID, len(booking.Passengers)); err != nil {
			s.logger.Warn("failed to release seats", zap.String("reference", booking.Reference), zap.Error(err))
		}
	}
	s.releaseHolds(ctx, booking.TripID, booking.SeatNumbers())
}

func (s *BookingService) publish(ctx context.Context, eventType string, booking *domain.Booking) {
	if s.producer == nil || s.bookingTopic == "" {
		return
	}
	event := kafka.TicketEvent{
		Type:            eventType,
		Reference:       booking.Reference,
		TripID:          booking.TripID,
		Seats:           booking.SeatNumbers(),
		PhoneNumber:     booking.PhoneNumber,
		Email:           booking.Email,
		Status:          string(booking.Status),
		TotalPriceCents: booking.TotalPriceCents,
		OccurredAt:      time.Now(),
	}
	if err := s.producer.Publish(ctx, s.bookingTopic, booking.Reference, event); err != nil {
		s.logger.Warn("failed to publish booking event",
			zap.String("type", eventType), zap.String("reference", booking.Reference), zap.Error(err))
		return
	}
	if s.notificationsTopic != "" && eventType != kafka.EventBookingCreated {
		if err := s.producer.Publish(ctx, s.notificationsTopic, booking.Reference, event); err != nil {
			s.logger.Warn("failed to publish notification event",
				zap.String("type", eventType), zap.String("reference", booking.Reference), zap.Error(err))
		}
	}
}

func validateInput(input CreateBookingInput) error {
	if input.TripID <= 0 {
		return errors.New("trip id is required")
	}
	if len(input.Passengers) == 0 {
		return errors.New("at least one passenger is required")
	}
	if input.PhoneNumber == "" {
		return errors.New("phone number is required")
	}
	seen := make(map[int]bool, len(input.Passengers))
	for _, p := range input.Passengers {
		if p.SeatNumber <= 0 {
			return errors.New("seat number must be positive")
		}
		if seen[p.SeatNumber] {
			return errors.New("duplicate seat number in request")
		}
		seen[p.SeatNumber] = true
		if p.FullName == "" {
			return errors.New("passenger name is required")
		}
	}
	return nil
}

// newReference derives the human-readable booking code from a fresh UUID:
// "TKT-" plus 14 uppercase base32 characters.
func newReference() string {
	id := uuid.New()
	return "TKT-" + base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(id[:])[:14]
}

var _ BookingUseCase = (*BookingService)(nil)
