package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urugendo/bustickets/internal/domain"
)

type BookingRepository interface {
	CreatePending(ctx context.Context, booking *domain.Booking) error
	GetByReference(ctx context.Context, reference string) (*domain.Booking, error)
	GetByPaymentID(ctx context.Context, externalID string) (*domain.Booking, error)
	AttachPaymentID(ctx context.Context, id int64, externalID string) (bool, error)
	DetachPaymentID(ctx context.Context, id int64) error
	ReleaseSeatClaims(ctx context.Context, bookingID int64) error
	ConditionalUpdateStatus(ctx context.Context, id int64, expected, next domain.BookingStatus) (bool, error)
	ExpirePendingBefore(ctx context.Context, deadline time.Time) ([]domain.Booking, error)
}

type PGBookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) BookingRepository {
	return &PGBookingRepository{db: db}
}

// CreatePending inserts the booking and its passengers in one transaction,
// decrementing the trip's seat counter. A unique partial index on
// (trip_id, seat_number) over non-failed bookings rejects seat collisions,
// surfaced as ErrSeatTaken.
func (r *PGBookingRepository) CreatePending(ctx context.Context, booking *domain.Booking) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	seats := len(booking.Passengers)
	cmd, err := tx.Exec(ctx, `UPDATE trips SET available_seats = available_seats - $1, updated_at = now() WHERE id=$2 AND available_seats >= $1`, seats, booking.TripID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNoSeats
	}

	booking.Status = domain.BookingStatusPending
	if err := tx.QueryRow(ctx, `INSERT INTO bookings (reference, provider, status, trip_id, user_id, phone_number, email, total_price_cents, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`, booking.Reference, booking.Provider, booking.Status, booking.TripID, booking.UserID, booking.PhoneNumber, booking.Email, booking.TotalPriceCents, booking.ExpiresAt).
		Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt); err != nil {
		return err
	}

	for i := range booking.Passengers {
		p := &booking.Passengers[i]
		p.BookingID = booking.ID
		if err := tx.QueryRow(ctx, `INSERT INTO passengers (booking_id, trip_id, full_name, seat_number) VALUES ($1, $2, $3, $4) RETURNING id`,
			booking.ID, booking.TripID, p.FullName, p.SeatNumber).Scan(&p.ID); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrSeatTaken
			}
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *PGBookingRepository) GetByReference(ctx context.Context, reference string) (*domain.Booking, error) {
	return r.getBy(ctx, `WHERE reference=$1`, reference)
}

func (r *PGBookingRepository) GetByPaymentID(ctx context.Context, externalID string) (*domain.Booking, error) {
	return r.getBy(ctx, `WHERE payment_id=$1`, externalID)
}

func (r *PGBookingRepository) getBy(ctx context.Context, where string, arg any) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT id, reference, payment_id, provider, status, trip_id, user_id, phone_number, email, total_price_cents, expires_at, created_at, updated_at FROM bookings `+where, arg)
	var b domain.Booking
	if err := row.Scan(&b.ID, &b.Reference, &b.PaymentID, &b.Provider, &b.Status, &b.TripID, &b.UserID, &b.PhoneNumber, &b.Email, &b.TotalPriceCents, &b.ExpiresAt, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := r.db.Query(ctx, `SELECT id, booking_id, full_name, seat_number FROM passengers WHERE booking_id=$1 ORDER BY id`, b.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Passenger
		if err := rows.Scan(&p.ID, &p.BookingID, &p.FullName, &p.SeatNumber); err != nil {
			return nil, err
		}
		b.Passengers = append(b.Passengers, p)
	}
	return &b, rows.Err()
}

// AttachPaymentID stores the gateway external id, but only while none is
// attached yet, so the correlation key is in place before any webhook can
// reference it and a concurrent re-initiation cannot overwrite it.
func (r *PGBookingRepository) AttachPaymentID(ctx context.Context, id int64, externalID string) (bool, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE bookings SET payment_id=$1, updated_at=now() WHERE id=$2 AND payment_id IS NULL`, externalID, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

// DetachPaymentID clears the external id after a failed initiation, putting
// the booking back into the retry window. Only PENDING rows are touched.
func (r *PGBookingRepository) DetachPaymentID(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `UPDATE bookings SET payment_id=NULL, updated_at=now() WHERE id=$1 AND status=$2`, id, domain.BookingStatusPending)
	return err
}

// ReleaseSeatClaims deactivates the booking's seat claims so the unique
// active-seat index stops counting them. Runs on FAILED and EXPIRED
// transitions.
func (r *PGBookingRepository) ReleaseSeatClaims(ctx context.Context, bookingID int64) error {
	_, err := r.db.Exec(ctx, `UPDATE passengers SET active=false WHERE booking_id=$1`, bookingID)
	return err
}

// ConditionalUpdateStatus is the compare-and-swap the reconciliation engine
// relies on. The affected-row count tells the caller whether it won the
// transition; concurrent invocations from the poll and webhook paths may run
// in different processes, so the guard lives in the store, not in memory.
func (r *PGBookingRepository) ConditionalUpdateStatus(ctx context.Context, id int64, expected, next domain.BookingStatus) (bool, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE bookings SET status=$1, updated_at=now() WHERE id=$2 AND status=$3`, next, id, expected)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *PGBookingRepository) ExpirePendingBefore(ctx context.Context, deadline time.Time) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, `UPDATE bookings SET status=$1, updated_at=now() WHERE status=$2 AND expires_at <= $3 RETURNING id, reference, payment_id, provider, status, trip_id, user_id, phone_number, email, total_price_cents, expires_at, created_at, updated_at`,
		domain.BookingStatusExpired, domain.BookingStatusPending, deadline)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []domain.Booking
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(&b.ID, &b.Reference, &b.PaymentID, &b.Provider, &b.Status, &b.TripID, &b.UserID, &b.PhoneNumber, &b.Email, &b.TotalPriceCents, &b.ExpiresAt, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		expired = append(expired, b)
	}
	return expired, rows.Err()
}

var _ BookingRepository = (*PGBookingRepository)(nil)
