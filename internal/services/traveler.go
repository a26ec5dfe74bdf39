package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/tripdesk/apiserver/internal/policy"
	"github.com/tripdesk/apiserver/internal/store"
	"github.com/tripdesk/apiserver/types"
)

// TravelerRepository defines persistence operations for travelers.
type TravelerRepository interface {
	Get(ctx context.Context, id int) (types.Traveler, error)
	FindActiveByUser(ctx context.Context, userID int) (types.Traveler, error)
	List(ctx context.Context, actor types.Actor, filter types.TravelerFilter) ([]types.Traveler, int, error)
	Create(ctx context.Context, t types.Traveler) (types.Traveler, error)
	Update(ctx context.Context, t types.Traveler) (types.Traveler, error)
	Deactivate(ctx context.Context, id int) (types.Traveler, error)
	Restore(ctx context.Context, id int) (types.Traveler, error)
}

// PendingCounter counts a traveler's trip requests in a given status.
type PendingCounter interface {
	CountByTraveler(ctx context.Context, travelerID int, status types.TripStatus) (int, error)
}

// TravelerInput is an admin create or update. Nil fields are not supplied.
type TravelerInput struct {
	Name                 *string
	Email                *string
	Password             *string
	PasswordConfirmation *string
	IsAdmin              *bool
	IsActive             *bool
}

// TravelerService manages traveler profiles and their owning users.
type TravelerService struct {
	travelers TravelerRepository
	users     UserRepository
	trips     PendingCounter
	tx        TxRunner
	logger    *slog.Logger
	opts      options
}

func NewTravelerService(
	travelers TravelerRepository,
	users UserRepository,
	trips PendingCounter,
	tx TxRunner,
	logger *slog.Logger,
	opts ...Option,
) *TravelerService {
	return &TravelerService{
		travelers: travelers,
		users:     users,
		trips:     trips,
		tx:        tx,
		logger:    logger,
		opts:      buildOptions(opts),
	}
}

// List returns the travelers visible to actor. Non-admins only see their own.
func (s *TravelerService) List(ctx context.Context, actor types.Actor, filter types.TravelerFilter) ([]types.Traveler, int, error) {
	return s.travelers.List(ctx, actor, filter)
}

func (s *TravelerService) Get(ctx context.Context, actor types.Actor, id int) (types.Traveler, error) {
	t, err := s.travelers.Get(ctx, id)
	if err != nil {
		return types.Traveler{}, err
	}
	if !policy.CanViewTraveler(actor, t) {
		return types.Traveler{}, types.ErrUnauthorized
	}
	return t, nil
}

// Create registers a new user together with its traveler profile.
func (s *TravelerService) Create(ctx context.Context, actor types.Actor, in TravelerInput) (types.Traveler, error) {
	if !policy.CanManageTraveler(actor) {
		return types.Traveler{}, types.ErrUnauthorized
	}

	v := &types.ValidationError{}
	types.ValidateName(v, "name", deref(in.Name), true)
	types.ValidateEmail(v, deref(in.Email), true)
	types.ValidatePassword(v, deref(in.Password), deref(in.PasswordConfirmation), true, true)
	if err := v.OrNil(); err != nil {
		return types.Traveler{}, err
	}

	hash, err := hashPassword(*in.Password, s.opts.hashCost)
	if err != nil {
		return types.Traveler{}, err
	}

	var created types.Traveler
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		user, err := s.users.Create(ctx, types.User{
			Name:         strings.TrimSpace(*in.Name),
			Email:        types.NormalizeEmail(*in.Email),
			IsAdmin:      in.IsAdmin != nil && *in.IsAdmin,
			PasswordHash: hash,
		})
		if err != nil {
			return emailTaken(err)
		}
		created, err = s.travelers.Create(ctx, types.Traveler{
			UserID:   user.ID,
			Name:     user.Name,
			IsActive: in.IsActive == nil || *in.IsActive,
		})
		return err
	})
	if err != nil {
		return types.Traveler{}, err
	}

	s.logger.InfoContext(ctx, "traveler created", "traveler_id", created.ID, "user_id", created.UserID, "actor_id", actor.ID)
	return created, nil
}

// Update applies traveler and owning-user changes as one unit. Clearing
// is_active is subject to the same guard as Deactivate.
func (s *TravelerService) Update(ctx context.Context, actor types.Actor, id int, in TravelerInput) (types.Traveler, error) {
	if !policy.CanManageTraveler(actor) {
		return types.Traveler{}, types.ErrUnauthorized
	}

	v := &types.ValidationError{}
	if in.Name != nil {
		types.ValidateName(v, "name", *in.Name, true)
	}
	if in.Email != nil {
		types.ValidateEmail(v, *in.Email, true)
	}
	if in.Password != nil {
		types.ValidatePassword(v, *in.Password, deref(in.PasswordConfirmation), true, true)
	}
	if err := v.OrNil(); err != nil {
		return types.Traveler{}, err
	}

	var hash string
	if in.Password != nil {
		h, err := hashPassword(*in.Password, s.opts.hashCost)
		if err != nil {
			return types.Traveler{}, err
		}
		hash = h
	}

	var updated types.Traveler
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.travelers.Get(ctx, id)
		if err != nil {
			return err
		}

		if in.Name != nil || in.Email != nil || in.IsAdmin != nil || hash != "" {
			user, err := s.users.GetByID(ctx, current.UserID)
			if err != nil {
				return err
			}
			if in.Name != nil {
				user.Name = strings.TrimSpace(*in.Name)
			}
			if in.Email != nil {
				user.Email = types.NormalizeEmail(*in.Email)
			}
			if in.IsAdmin != nil {
				user.IsAdmin = *in.IsAdmin
			}
			if hash != "" {
				user.PasswordHash = hash
			}
			if _, err := s.users.Update(ctx, user); err != nil {
				return emailTaken(err)
			}
		}

		patch := types.TravelerPatch{Name: in.Name}
		deactivate := in.IsActive != nil && !*in.IsActive && current.IsActive
		if in.IsActive != nil && !deactivate {
			patch.IsActive = in.IsActive
		}
		if err := current.Apply(patch); err != nil {
			return err
		}
		if updated, err = s.travelers.Update(ctx, current); err != nil {
			return err
		}
		if deactivate {
			updated, err = s.deactivate(ctx, id)
		}
		return err
	})
	if err != nil {
		return types.Traveler{}, err
	}

	s.logger.InfoContext(ctx, "traveler updated", "traveler_id", id, "actor_id", actor.ID)
	return updated, nil
}

// Deactivate soft-deletes a traveler. It is refused while the traveler has
// requested trips; approved and cancelled trips do not block it.
func (s *TravelerService) Deactivate(ctx context.Context, actor types.Actor, id int) (types.Traveler, error) {
	if !policy.CanManageTraveler(actor) {
		return types.Traveler{}, types.ErrUnauthorized
	}
	t, err := s.deactivate(ctx, id)
	if err != nil {
		return types.Traveler{}, err
	}
	s.logger.InfoContext(ctx, "traveler deactivated", "traveler_id", id, "actor_id", actor.ID)
	return t, nil
}

func (s *TravelerService) deactivate(ctx context.Context, id int) (types.Traveler, error) {
	t, err := s.travelers.Deactivate(ctx, id)
	if !errors.Is(err, store.ErrReferenced) {
		return t, err
	}

	count, ok := store.BlockingCount(err)
	if !ok {
		if count, err = s.trips.CountByTraveler(ctx, id, types.TripStatusRequested); err != nil {
			return types.Traveler{}, err
		}
	}
	s.opts.metrics.IncrementGuardRejection("traveler")
	return types.Traveler{}, &types.HasPendingDependentsError{Entity: "traveler", Count: count}
}

// Restore reactivates a traveler unconditionally.
func (s *TravelerService) Restore(ctx context.Context, actor types.Actor, id int) (types.Traveler, error) {
	if !policy.CanManageTraveler(actor) {
		return types.Traveler{}, types.ErrUnauthorized
	}
	t, err := s.travelers.Restore(ctx, id)
	if err != nil {
		return types.Traveler{}, err
	}
	s.logger.InfoContext(ctx, "traveler restored", "traveler_id", id, "actor_id", actor.ID)
	return t, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
