package types

import (
	"strings"
	"time"
)

// TripStatus is the lifecycle status of a trip request.
type TripStatus string

// Supported trip request statuses.
const (
	// TripStatusRequested is the initial status. Only requested trips can be
	// edited or cancelled by their owner.
	TripStatusRequested TripStatus = "requested"

	// TripStatusApproved is set by an administrator.
	TripStatusApproved TripStatus = "approved"

	// TripStatusCancelled is set by an administrator.
	TripStatusCancelled TripStatus = "cancelled"
)

// ParseTripStatus validates a wire status value.
func ParseTripStatus(raw string) (TripStatus, bool) {
	switch s := TripStatus(strings.ToLower(strings.TrimSpace(raw))); s {
	case TripStatusRequested, TripStatusApproved, TripStatusCancelled:
		return s, true
	default:
		return "", false
	}
}

// IsTerminal reports whether no owner action is permitted in status s.
func (s TripStatus) IsTerminal() bool {
	return s == TripStatusApproved || s == TripStatusCancelled
}

// adminTransitions is the allow-list of status changes an administrator may apply.
var adminTransitions = map[TripStatus][]TripStatus{
	TripStatusRequested: {TripStatusApproved, TripStatusCancelled},
	TripStatusApproved:  {TripStatusCancelled},
}

// CanTransition reports whether an administrator may move a trip request from
// one status to another. Setting the current status again is not a transition.
func CanTransition(from, to TripStatus) bool {
	for _, allowed := range adminTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TripRequest is a request for approval to travel, tied to one traveler and
// one destination.
type TripRequest struct {
	// ID is the unique identifier of the trip request.
	ID int `json:"id" db:"id"`

	// TravelerID identifies the traveler taking the trip.
	TravelerID int `json:"traveler_id" db:"traveler_id"`

	// DestinationID identifies the destination of the trip.
	DestinationID int `json:"destination_id" db:"destination_id"`

	// Description is optional free text.
	Description string `json:"description" db:"description"`

	// DepartureAt is when the trip starts. It is in the future at creation.
	DepartureAt time.Time `json:"departure_datetime" db:"departure_datetime"`

	// ReturnAt is when the trip ends. It is always after DepartureAt.
	ReturnAt time.Time `json:"return_datetime" db:"return_datetime"`

	// Status is the lifecycle status.
	Status TripStatus `json:"status" db:"status"`

	// CreatedAt is the timestamp at which the trip request was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the trip request.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// OwnerID is the user owning the traveler. It is resolved through the
	// traveler and never accepted from clients.
	OwnerID int `json:"-" db:"owner_id"`

	// Traveler is the traveler summary, when loaded.
	Traveler *TravelerSummary `json:"traveler,omitempty" db:"-"`

	// Destination is the destination, when loaded.
	Destination *Destination `json:"destination,omitempty" db:"-"`
}

// TripRequestDraft is the validated input of a trip request creation.
type TripRequestDraft struct {
	DestinationID int
	Description   string
	DepartureAt   time.Time
	ReturnAt      time.Time
}

// NewTripRequest validates d and returns a requested trip for travelerID.
func NewTripRequest(travelerID int, d TripRequestDraft, now time.Time) (TripRequest, error) {
	v := &ValidationError{}
	if d.DestinationID < 1 {
		v.Add("destination_id", "required", "destination is required")
	}
	if d.DepartureAt.IsZero() {
		v.Add("departure_datetime", "required", "departure date is required")
	} else if !d.DepartureAt.After(now) {
		v.Add("departure_datetime", "after", "departure date must be in the future")
	}
	if d.ReturnAt.IsZero() {
		v.Add("return_datetime", "required", "return date is required")
	} else if !d.DepartureAt.IsZero() && !d.ReturnAt.After(d.DepartureAt) {
		v.Add("return_datetime", "after", "return date must be after departure date")
	}
	if err := v.OrNil(); err != nil {
		return TripRequest{}, err
	}

	return TripRequest{
		TravelerID:    travelerID,
		DestinationID: d.DestinationID,
		Description:   strings.TrimSpace(d.Description),
		DepartureAt:   d.DepartureAt,
		ReturnAt:      d.ReturnAt,
		Status:        TripStatusRequested,
	}, nil
}

// TripRequestPatch carries the owner-editable fields. Nil fields are not supplied.
type TripRequestPatch struct {
	DestinationID *int
	Description   *string
	DepartureAt   *time.Time
	ReturnAt      *time.Time
}

// Empty reports whether p supplies no field.
func (p TripRequestPatch) Empty() bool {
	return p.DestinationID == nil && p.Description == nil && p.DepartureAt == nil && p.ReturnAt == nil
}

// Apply returns t merged with p. A supplied departure must be in the future;
// the return date is checked against the effective departure even when only
// one of the two is supplied.
func (t TripRequest) Apply(p TripRequestPatch, now time.Time) (TripRequest, error) {
	v := &ValidationError{}
	merged := t

	if p.DestinationID != nil {
		if *p.DestinationID < 1 {
			v.Add("destination_id", "required", "destination is required")
		}
		merged.DestinationID = *p.DestinationID
	}
	if p.Description != nil {
		merged.Description = strings.TrimSpace(*p.Description)
	}
	if p.DepartureAt != nil {
		if !p.DepartureAt.After(now) {
			v.Add("departure_datetime", "after", "departure date must be in the future")
		}
		merged.DepartureAt = *p.DepartureAt
	}
	if p.ReturnAt != nil {
		merged.ReturnAt = *p.ReturnAt
	}
	if !merged.ReturnAt.After(merged.DepartureAt) {
		v.Add("return_datetime", "after", "return date must be after departure date")
	}

	if err := v.OrNil(); err != nil {
		return t, err
	}
	return merged, nil
}
