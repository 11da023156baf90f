package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/urugendo/bustickets/internal/kafka"
)

// Sink delivers a rendered message. Implementations are best-effort: a
// failure is reported to the caller for logging but must never reach the
// booking flow.
type Sink interface {
	Send(ctx context.Context, destination, message string) error
}

// Compose renders the passenger-facing message for a ticket event.
func Compose(event kafka.TicketEvent) string {
	seats := make([]string, 0, len(event.Seats))
	for _, s := range event.Seats {
		seats = append(seats, fmt.Sprintf("%d", s))
	}

	switch event.Type {
	case kafka.EventPaymentConfirmed:
		return fmt.Sprintf("Payment received. Ticket %s confirmed for trip %d, seat(s) %s. Show this reference when boarding.",
			event.Reference, event.TripID, strings.Join(seats, ", "))
	case kafka.EventBookingExpired:
		return fmt.Sprintf("Booking %s expired before payment was completed. The seats have been released.", event.Reference)
	case kafka.EventBookingFailed:
		return fmt.Sprintf("Payment for booking %s did not complete. The seats have been released.", event.Reference)
	default:
		return fmt.Sprintf("Booking %s is %s.", event.Reference, event.Status)
	}
}
