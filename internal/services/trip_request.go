package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tripdesk/apiserver/internal/policy"
	"github.com/tripdesk/apiserver/internal/store"
	"github.com/tripdesk/apiserver/types"
)

// maxStatusAttempts bounds the re-read loop of a contended status change.
const maxStatusAttempts = 3

// TripRequestRepository defines persistence operations for trip requests.
// Writes that depend on the current status are conditional on it.
type TripRequestRepository interface {
	Get(ctx context.Context, id int) (types.TripRequest, error)
	List(ctx context.Context, actor types.Actor, filter types.TripRequestFilter) ([]types.TripRequest, int, error)
	Create(ctx context.Context, tr types.TripRequest) (types.TripRequest, error)
	Update(ctx context.Context, tr types.TripRequest, expected types.TripStatus) (types.TripRequest, error)
	UpdateStatus(ctx context.Context, id int, from, to types.TripStatus) (types.TripRequest, error)
	Delete(ctx context.Context, id int, expected types.TripStatus) error
	CountByDestination(ctx context.Context, destinationID int) (int, error)
	CountByTraveler(ctx context.Context, travelerID int, status types.TripStatus) (int, error)
}

// TravelerLookup resolves travelers for trip request creation.
type TravelerLookup interface {
	Get(ctx context.Context, id int) (types.Traveler, error)
	FindActiveByUser(ctx context.Context, userID int) (types.Traveler, error)
}

// DestinationLookup resolves destinations by id.
type DestinationLookup interface {
	Get(ctx context.Context, id int) (types.Destination, error)
}

// CreateTripRequestInput is a trip request creation. TravelerID is honoured
// for admins only.
type CreateTripRequestInput struct {
	TravelerID    *int
	DestinationID int
	Description   string
	DepartureAt   time.Time
	ReturnAt      time.Time
}

// TripRequestService is the trip request lifecycle engine.
type TripRequestService struct {
	trips        TripRequestRepository
	travelers    TravelerLookup
	destinations DestinationLookup
	emitter      Emitter
	logger       *slog.Logger
	opts         options
}

func NewTripRequestService(
	trips TripRequestRepository,
	travelers TravelerLookup,
	destinations DestinationLookup,
	emitter Emitter,
	logger *slog.Logger,
	opts ...Option,
) *TripRequestService {
	return &TripRequestService{
		trips:        trips,
		travelers:    travelers,
		destinations: destinations,
		emitter:      emitter,
		logger:       logger,
		opts:         buildOptions(opts),
	}
}

func (s *TripRequestService) startSpan(ctx context.Context, op string, actor types.Actor, attrs ...attribute.KeyValue) (context.Context, trace.Span, func()) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "TripRequestService."+op, trace.WithAttributes(
		append(attrs, attribute.Int("actor.id", actor.ID), attribute.Bool("actor.is_admin", actor.IsAdmin))...,
	))
	return ctx, span, func() {
		s.opts.metrics.ObserveLifecycleOp(op, start)
		span.End()
	}
}

func recordErr(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// List returns the trip requests visible to actor.
func (s *TripRequestService) List(ctx context.Context, actor types.Actor, filter types.TripRequestFilter) ([]types.TripRequest, int, error) {
	return s.trips.List(ctx, actor, filter)
}

func (s *TripRequestService) Get(ctx context.Context, actor types.Actor, id int) (types.TripRequest, error) {
	tr, err := s.trips.Get(ctx, id)
	if err != nil {
		return types.TripRequest{}, err
	}
	if !policy.CanViewTripRequest(actor, tr) {
		return types.TripRequest{}, types.ErrUnauthorized
	}
	return tr, nil
}

// Create files a new requested trip. Admins may name any traveler; everyone
// else files under their own active traveler.
func (s *TripRequestService) Create(ctx context.Context, actor types.Actor, in CreateTripRequestInput) (tr types.TripRequest, err error) {
	ctx, span, end := s.startSpan(ctx, "Create", actor)
	defer end()
	defer func() { _ = recordErr(span, err) }()

	traveler, err := s.resolveTraveler(ctx, actor, in.TravelerID)
	if err != nil {
		return types.TripRequest{}, err
	}

	v := &types.ValidationError{}
	draft, err := types.NewTripRequest(traveler.ID, types.TripRequestDraft{
		DestinationID: in.DestinationID,
		Description:   in.Description,
		DepartureAt:   in.DepartureAt,
		ReturnAt:      in.ReturnAt,
	}, s.opts.now())
	if err := merge(v, err); err != nil {
		return types.TripRequest{}, err
	}
	if err := s.checkDestination(ctx, v, in.DestinationID); err != nil {
		return types.TripRequest{}, err
	}
	if err := v.OrNil(); err != nil {
		return types.TripRequest{}, err
	}

	created, err := s.trips.Create(ctx, draft)
	if err != nil {
		if errors.Is(err, store.ErrInvalidReference) {
			return types.TripRequest{}, types.NewFieldError("destination_id", "exists", "the selected destination does not exist")
		}
		return types.TripRequest{}, err
	}

	s.opts.metrics.IncrementTripRequestsCreated()
	s.logger.InfoContext(ctx, "trip request created",
		"trip_request_id", created.ID,
		"traveler_id", created.TravelerID,
		"actor_id", actor.ID,
	)
	return created, nil
}

func (s *TripRequestService) resolveTraveler(ctx context.Context, actor types.Actor, travelerID *int) (types.Traveler, error) {
	if travelerID != nil && policy.CanFileOnBehalf(actor) {
		t, err := s.travelers.Get(ctx, *travelerID)
		if errors.Is(err, types.ErrNotFound) {
			return types.Traveler{}, types.NewFieldError("traveler_id", "exists", "the selected traveler does not exist")
		}
		return t, err
	}

	t, err := s.travelers.FindActiveByUser(ctx, actor.ID)
	if errors.Is(err, types.ErrNotFound) {
		return types.Traveler{}, types.ErrNoActiveTravelerProfile
	}
	return t, err
}

// checkDestination records a field error when a positive id does not resolve.
func (s *TripRequestService) checkDestination(ctx context.Context, v *types.ValidationError, id int) error {
	if id < 1 || v.Has("destination_id") {
		return nil
	}
	_, err := s.destinations.Get(ctx, id)
	if errors.Is(err, types.ErrNotFound) {
		v.Add("destination_id", "exists", "the selected destination does not exist")
		return nil
	}
	return err
}

// Update applies an owner edit. Only the owner may edit, and only while the
// trip is requested; date invariants are checked on the merged result.
func (s *TripRequestService) Update(ctx context.Context, actor types.Actor, id int, patch types.TripRequestPatch) (tr types.TripRequest, err error) {
	ctx, span, end := s.startSpan(ctx, "Update", actor, attribute.Int("trip_request.id", id))
	defer end()
	defer func() { _ = recordErr(span, err) }()

	current, err := s.ownerTarget(ctx, actor, id, "update")
	if err != nil {
		return types.TripRequest{}, err
	}

	v := &types.ValidationError{}
	merged, err := current.Apply(patch, s.opts.now())
	if err := merge(v, err); err != nil {
		return types.TripRequest{}, err
	}
	if patch.DestinationID != nil {
		if err := s.checkDestination(ctx, v, *patch.DestinationID); err != nil {
			return types.TripRequest{}, err
		}
	}
	if err := v.OrNil(); err != nil {
		return types.TripRequest{}, err
	}

	updated, err := s.trips.Update(ctx, merged, types.TripStatusRequested)
	if err != nil {
		return types.TripRequest{}, s.lostRace(ctx, id, "update", err)
	}
	return updated, nil
}

// Cancel deletes a requested trip on behalf of its owner.
func (s *TripRequestService) Cancel(ctx context.Context, actor types.Actor, id int) (err error) {
	ctx, span, end := s.startSpan(ctx, "Cancel", actor, attribute.Int("trip_request.id", id))
	defer end()
	defer func() { _ = recordErr(span, err) }()

	if _, err := s.ownerTarget(ctx, actor, id, "cancel"); err != nil {
		return err
	}
	if err := s.trips.Delete(ctx, id, types.TripStatusRequested); err != nil {
		return s.lostRace(ctx, id, "cancel", err)
	}
	s.logger.InfoContext(ctx, "trip request cancelled by owner", "trip_request_id", id, "actor_id", actor.ID)
	return nil
}

// ownerTarget loads a trip for an owner action, failing with ErrUnauthorized
// for non-owners and InvalidStateTransition for non-requested trips.
func (s *TripRequestService) ownerTarget(ctx context.Context, actor types.Actor, id int, action string) (types.TripRequest, error) {
	tr, err := s.trips.Get(ctx, id)
	if err != nil {
		return types.TripRequest{}, err
	}
	if tr.OwnerID != actor.ID {
		return types.TripRequest{}, types.ErrUnauthorized
	}
	allowed := policy.CanEditTripRequest(actor, tr)
	if action == "cancel" {
		allowed = policy.CanCancelTripRequest(actor, tr)
	}
	if !allowed {
		return types.TripRequest{}, &types.InvalidStateTransitionError{Action: action, From: tr.Status}
	}
	return tr, nil
}

// lostRace reports a conditional write that found the trip in another status.
func (s *TripRequestService) lostRace(ctx context.Context, id int, action string, err error) error {
	if errors.Is(err, store.ErrInvalidReference) {
		return types.NewFieldError("destination_id", "exists", "the selected destination does not exist")
	}
	if !errors.Is(err, store.ErrStatusMismatch) {
		return err
	}
	s.opts.metrics.IncrementTransitionConflict()
	current, getErr := s.trips.Get(ctx, id)
	if getErr != nil {
		return getErr
	}
	return &types.InvalidStateTransitionError{Action: action, From: current.Status}
}

// ChangeStatus applies an admin status change. Setting the current status is
// a no-op; other changes must be in the transition allow-list. The owner is
// notified after the new status is stored.
func (s *TripRequestService) ChangeStatus(ctx context.Context, actor types.Actor, id int, rawStatus string) (tr types.TripRequest, err error) {
	ctx, span, end := s.startSpan(ctx, "ChangeStatus", actor, attribute.Int("trip_request.id", id))
	defer end()
	defer func() { _ = recordErr(span, err) }()

	if !policy.CanChangeStatus(actor) {
		return types.TripRequest{}, types.ErrUnauthorized
	}
	if rawStatus == "" {
		return types.TripRequest{}, types.NewFieldError("status", "required", "status is required")
	}
	to, ok := types.ParseTripStatus(rawStatus)
	if !ok {
		return types.TripRequest{}, types.NewFieldError("status", "in", "status must be one of: requested, approved, cancelled")
	}
	span.SetAttributes(attribute.String("trip_request.status.to", string(to)))

	for attempt := 0; attempt < maxStatusAttempts; attempt++ {
		current, err := s.trips.Get(ctx, id)
		if err != nil {
			return types.TripRequest{}, err
		}
		if current.Status == to {
			return current, nil
		}
		if !types.CanTransition(current.Status, to) {
			return types.TripRequest{}, &types.InvalidStateTransitionError{Action: "change status", From: current.Status, To: to}
		}

		updated, err := s.trips.UpdateStatus(ctx, id, current.Status, to)
		if errors.Is(err, store.ErrStatusMismatch) {
			s.opts.metrics.IncrementTransitionConflict()
			continue
		}
		if err != nil {
			return types.TripRequest{}, err
		}

		s.opts.metrics.IncrementStatusTransition(current.Status, to)
		s.logger.InfoContext(ctx, "trip request status changed",
			"trip_request_id", id,
			"old_status", current.Status,
			"new_status", to,
			"actor_id", actor.ID,
		)
		s.emit(ctx, current.Status, updated)
		return updated, nil
	}
	return types.TripRequest{}, types.ErrConflict
}

func (s *TripRequestService) emit(ctx context.Context, from types.TripStatus, tr types.TripRequest) {
	if s.emitter == nil {
		return
	}
	destination := ""
	if tr.Destination != nil {
		destination = tr.Destination.FullLocation()
	}
	s.emitter.Emit(ctx, types.TripRequestStatusChanged{
		TripRequestID: tr.ID,
		OwnerID:       tr.OwnerID,
		Destination:   destination,
		OldStatus:     from,
		NewStatus:     tr.Status,
		OccurredAt:    s.opts.now(),
	})
}
