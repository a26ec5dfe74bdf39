package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tripdesk/apiserver/internal/cache"
	"github.com/tripdesk/apiserver/internal/policy"
	"github.com/tripdesk/apiserver/internal/store"
	"github.com/tripdesk/apiserver/types"
)

// DestinationRepository defines persistence operations for destinations.
type DestinationRepository interface {
	Get(ctx context.Context, id int) (types.Destination, error)
	List(ctx context.Context, filter types.DestinationFilter) ([]types.Destination, int, error)
	Create(ctx context.Context, d types.Destination) (types.Destination, error)
	Update(ctx context.Context, d types.Destination) (types.Destination, error)
	Delete(ctx context.Context, id int) error
	Countries(ctx context.Context) ([]string, error)
	States(ctx context.Context, country string) ([]string, error)
}

// DependentCounter counts the trip requests referencing a destination.
type DependentCounter interface {
	CountByDestination(ctx context.Context, destinationID int) (int, error)
}

// DestinationService manages the destination catalog.
type DestinationService struct {
	destinations DestinationRepository
	trips        DependentCounter
	logger       *slog.Logger
	opts         options
}

func NewDestinationService(destinations DestinationRepository, trips DependentCounter, logger *slog.Logger, opts ...Option) *DestinationService {
	return &DestinationService{
		destinations: destinations,
		trips:        trips,
		logger:       logger,
		opts:         buildOptions(opts),
	}
}

func (s *DestinationService) List(ctx context.Context, filter types.DestinationFilter) ([]types.Destination, int, error) {
	return s.destinations.List(ctx, filter)
}

// Get returns a destination with its trip request count.
func (s *DestinationService) Get(ctx context.Context, id int) (types.Destination, error) {
	d, err := s.destinations.Get(ctx, id)
	if err != nil {
		return types.Destination{}, err
	}
	count, err := s.trips.CountByDestination(ctx, id)
	if err != nil {
		return types.Destination{}, err
	}
	d.TripRequestsCount = &count
	return d, nil
}

func (s *DestinationService) Create(ctx context.Context, actor types.Actor, p types.DestinationPatch) (types.Destination, error) {
	if !policy.CanManageDestination(actor) {
		return types.Destination{}, types.ErrUnauthorized
	}
	d, err := types.NewDestination(p)
	if err != nil {
		return types.Destination{}, err
	}
	created, err := s.destinations.Create(ctx, d)
	if err != nil {
		return types.Destination{}, err
	}
	s.invalidate(ctx)
	s.logger.InfoContext(ctx, "destination created", "destination_id", created.ID, "actor_id", actor.ID)
	return created, nil
}

func (s *DestinationService) Update(ctx context.Context, actor types.Actor, id int, p types.DestinationPatch) (types.Destination, error) {
	if !policy.CanManageDestination(actor) {
		return types.Destination{}, types.ErrUnauthorized
	}
	d, err := s.destinations.Get(ctx, id)
	if err != nil {
		return types.Destination{}, err
	}
	if err := d.Apply(p); err != nil {
		return types.Destination{}, err
	}
	updated, err := s.destinations.Update(ctx, d)
	if err != nil {
		return types.Destination{}, err
	}
	s.invalidate(ctx)
	return updated, nil
}

// Delete hard-deletes a destination no trip request references.
func (s *DestinationService) Delete(ctx context.Context, actor types.Actor, id int) error {
	if !policy.CanManageDestination(actor) {
		return types.ErrUnauthorized
	}

	err := s.destinations.Delete(ctx, id)
	if errors.Is(err, store.ErrReferenced) {
		count, ok := store.BlockingCount(err)
		if !ok {
			var countErr error
			if count, countErr = s.trips.CountByDestination(ctx, id); countErr != nil {
				return countErr
			}
		}
		s.opts.metrics.IncrementGuardRejection("destination")
		return &types.HasDependentsError{Entity: "destination", Count: count}
	}
	if err != nil {
		return err
	}

	s.invalidate(ctx)
	s.logger.InfoContext(ctx, "destination deleted", "destination_id", id, "actor_id", actor.ID)
	return nil
}

// Countries returns the distinct countries of the catalog.
func (s *DestinationService) Countries(ctx context.Context) ([]string, error) {
	return s.lookup(ctx, cache.CountriesField(), func() ([]string, error) {
		return s.destinations.Countries(ctx)
	})
}

// States returns the distinct states, within country when it is set.
func (s *DestinationService) States(ctx context.Context, country string) ([]string, error) {
	return s.lookup(ctx, cache.StatesField(country), func() ([]string, error) {
		return s.destinations.States(ctx, country)
	})
}

// lookup serves field from the cache when one is configured. Cache failures
// fall through to the store.
func (s *DestinationService) lookup(ctx context.Context, field string, load func() ([]string, error)) ([]string, error) {
	if s.opts.cache != nil {
		values, ok, err := s.opts.cache.Get(ctx, field)
		if err != nil {
			s.logger.WarnContext(ctx, "lookup cache read failed", "field", field, "error", err)
		} else if ok {
			return values, nil
		}
	}

	values, err := load()
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = []string{}
	}
	if s.opts.cache != nil {
		if err := s.opts.cache.Set(ctx, field, values); err != nil {
			s.logger.WarnContext(ctx, "lookup cache write failed", "field", field, "error", err)
		}
	}
	return values, nil
}

func (s *DestinationService) invalidate(ctx context.Context) {
	if s.opts.cache == nil {
		return
	}
	if err := s.opts.cache.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "lookup cache invalidation failed", "error", err)
	}
}
