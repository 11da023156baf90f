package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urugendo/bustickets/internal/domain"
)

type TripRepository interface {
	List(ctx context.Context) ([]domain.Trip, error)
	Search(ctx context.Context, origin, destination string, day time.Time) ([]domain.Trip, error)
	GetByID(ctx context.Context, id int64) (*domain.Trip, error)
	ReleaseSeats(ctx context.Context, tripID int64, count int) error
}

type PGTripRepository struct {
	db *pgxpool.Pool
}

func NewTripRepository(db *pgxpool.Pool) TripRepository {
	return &PGTripRepository{db: db}
}

const tripColumns = `t.id, t.route_id, t.bus_id, r.origin, r.destination, b.plate_number, t.departure_time, b.seat_count, t.available_seats, t.price_cents, t.created_at, t.updated_at`

const tripJoins = `FROM trips t JOIN routes r ON r.id = t.route_id JOIN buses b ON b.id = t.bus_id`

func (r *PGTripRepository) List(ctx context.Context) ([]domain.Trip, error) {
	rows, err := r.db.Query(ctx, `SELECT `+tripColumns+` `+tripJoins+` WHERE t.departure_time > now() ORDER BY t.departure_time`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrips(rows)
}

func (r *PGTripRepository) Search(ctx context.Context, origin, destination string, day time.Time) ([]domain.Trip, error) {
	rows, err := r.db.Query(ctx, `SELECT `+tripColumns+` `+tripJoins+`
		WHERE lower(r.origin) = lower($1) AND lower(r.destination) = lower($2)
		AND t.departure_time >= $3 AND t.departure_time < $3 + interval '1 day'
		ORDER BY t.departure_time`, origin, destination, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrips(rows)
}

func (r *PGTripRepository) GetByID(ctx context.Context, id int64) (*domain.Trip, error) {
	row := r.db.QueryRow(ctx, `SELECT `+tripColumns+` `+tripJoins+` WHERE t.id=$1`, id)
	var t domain.Trip
	if err := scanTrip(row, &t); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// ReleaseSeats returns seats to the pool after a failed or expired booking.
// Seat reservation itself happens inside the booking creation transaction.
func (r *PGTripRepository) ReleaseSeats(ctx context.Context, tripID int64, count int) error {
	cmd, err := r.db.Exec(ctx, `UPDATE trips SET available_seats = available_seats + $1, updated_at = now() WHERE id=$2`, count, tripID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTrips(rows pgx.Rows) ([]domain.Trip, error) {
	trips := make([]domain.Trip, 0)
	for rows.Next() {
		var t domain.Trip
		if err := scanTrip(rows, &t); err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

func scanTrip(row pgx.Row, t *domain.Trip) error {
	return row.Scan(&t.ID, &t.RouteID, &t.BusID, &t.Origin, &t.Destination, &t.PlateNumber, &t.DepartureTime, &t.TotalSeats, &t.AvailableSeats, &t.PriceCents, &t.CreatedAt, &t.UpdatedAt)
}

var _ TripRepository = (*PGTripRepository)(nil)
