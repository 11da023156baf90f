package domain

import "time"

type BookingStatus string

const (
	BookingStatusPending BookingStatus = "PENDING"
	BookingStatusPaid    BookingStatus = "PAID"
	BookingStatusFailed  BookingStatus = "FAILED"
	BookingStatusExpired BookingStatus = "EXPIRED"
	BookingStatusUsed    BookingStatus = "USED"
)

// Terminal reports whether no further payment reconciliation applies.
// USED is reachable only from PAID via ticket scanning.
func (s BookingStatus) Terminal() bool {
	return s != BookingStatusPending
}

type Booking struct {
	ID              int64
	Reference       string
	PaymentID       *string
	Provider        string
	Status          BookingStatus
	TripID          int64
	UserID          *int64
	PhoneNumber     string
	Email           string
	TotalPriceCents int64
	Passengers      []Passenger
	ExpiresAt       time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SeatNumbers returns the booked seats in passenger order.
func (b *Booking) SeatNumbers() []int {
	seats := make([]int, 0, len(b.Passengers))
	for _, p := range b.Passengers {
		seats = append(seats, p.SeatNumber)
	}
	return seats
}

type Passenger struct {
	ID         int64
	BookingID  int64
	FullName   string
	SeatNumber int
}
