package kafka

import "time"

// TicketEvent is the payload published on booking lifecycle transitions and
// consumed by the notification worker.
type TicketEvent struct {
	Type            string    `json:"type"`
	Reference       string    `json:"reference"`
	TripID          int64     `json:"trip_id"`
	Seats           []int     `json:"seats"`
	PhoneNumber     string    `json:"phone_number"`
	Email           string    `json:"email,omitempty"`
	Status          string    `json:"status"`
	TotalPriceCents int64     `json:"total_price_cents"`
	OccurredAt      time.Time `json:"occurred_at"`
}

const (
	EventBookingCreated   = "booking_created"
	EventPaymentConfirmed = "payment_confirmed"
	EventBookingFailed    = "booking_failed"
	EventBookingExpired   = "booking_expired"
)
