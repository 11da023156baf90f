package trips

import (
	"context"
	"time"

	"github.com/urugendo/bustickets/internal/domain"
	"github.com/urugendo/bustickets/internal/repository"
)

type TripUseCase interface {
	List(ctx context.Context) ([]domain.Trip, error)
	Search(ctx context.Context, origin, destination string, day time.Time) ([]domain.Trip, error)
	GetByID(ctx context.Context, id int64) (*domain.Trip, error)
}

// TripCache is the read-side cache contract; searches and lookups always hit
// the store, only the full upcoming-trips listing is cached.
type TripCache interface {
	GetTrips(ctx context.Context) ([]domain.Trip, error)
	SetTrips(ctx context.Context, trips []domain.Trip) error
}

type TripService struct {
	repo  repository.TripRepository
	cache TripCache
}

func NewTripService(repo repository.TripRepository, cache TripCache) *TripService {
	return &TripService{repo: repo, cache: cache}
}

func (s *TripService) List(ctx context.Context) ([]domain.Trip, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetTrips(ctx); err == nil && cached != nil {
			return cached, nil
		}
	}

	trips, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.SetTrips(ctx, trips)
	}
	return trips, nil
}

func (s *TripService) Search(ctx context.Context, origin, destination string, day time.Time) ([]domain.Trip, error) {
	return s.repo.Search(ctx, origin, destination, day)
}

func (s *TripService) GetByID(ctx context.Context, id int64) (*domain.Trip, error) {
	return s.repo.GetByID(ctx, id)
}

var _ TripUseCase = (*TripService)(nil)
