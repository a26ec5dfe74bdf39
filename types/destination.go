package types

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"
)

// Destination is a location that trip requests point at.
type Destination struct {
	// ID is the unique identifier of the destination.
	ID int `json:"id" db:"id"`

	// City is the required city name.
	City string `json:"city" db:"city"`

	// State is the optional state or province. Empty means none.
	State string `json:"state" db:"state"`

	// Country is the required country name.
	Country string `json:"country" db:"country"`

	// CreatedAt is the timestamp at which the destination was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the destination.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// TripRequestsCount is filled on detail reads only.
	TripRequestsCount *int `json:"trip_requests_count,omitempty" db:"-"`
}

// FullLocation renders "city[, state], country". It is always derived.
func (d Destination) FullLocation() string {
	parts := []string{d.City}
	if d.State != "" {
		parts = append(parts, d.State)
	}
	parts = append(parts, d.Country)
	return strings.Join(parts, ", ")
}

// MarshalJSON adds the derived full_location and renders an empty state as null.
func (d Destination) MarshalJSON() ([]byte, error) {
	type alias Destination
	var state *string
	if d.State != "" {
		state = &d.State
	}
	return json.Marshal(struct {
		alias
		State        *string `json:"state"`
		FullLocation string  `json:"full_location"`
	}{
		alias:        alias(d),
		State:        state,
		FullLocation: d.FullLocation(),
	})
}

// DestinationPatch carries the fields of a create or partial update. Nil
// fields are not supplied.
type DestinationPatch struct {
	City    *string `json:"city"`
	State   *string `json:"state"`
	Country *string `json:"country"`
}

// NewDestination validates p as a create payload.
func NewDestination(p DestinationPatch) (Destination, error) {
	v := &ValidationError{}
	if p.City == nil || strings.TrimSpace(*p.City) == "" {
		v.Add("city", "required", "city is required")
	}
	if p.Country == nil || strings.TrimSpace(*p.Country) == "" {
		v.Add("country", "required", "country is required")
	}
	var d Destination
	if err := d.apply(p, v); err != nil {
		return Destination{}, err
	}
	return d, nil
}

// Apply merges p into d. Invariants are checked on the merged values and d is
// left unchanged on failure.
func (d *Destination) Apply(p DestinationPatch) error {
	v := &ValidationError{}
	if p.City != nil && strings.TrimSpace(*p.City) == "" {
		v.Add("city", "required", "city may not be empty")
	}
	if p.Country != nil && strings.TrimSpace(*p.Country) == "" {
		v.Add("country", "required", "country may not be empty")
	}
	return d.apply(p, v)
}

func (d *Destination) apply(p DestinationPatch, v *ValidationError) error {
	merged := *d
	if p.City != nil {
		merged.City = strings.TrimSpace(*p.City)
	}
	if p.State != nil {
		merged.State = strings.TrimSpace(*p.State)
	}
	if p.Country != nil {
		merged.Country = strings.TrimSpace(*p.Country)
	}

	checkLength(v, "city", merged.City)
	checkLength(v, "state", merged.State)
	checkLength(v, "country", merged.Country)

	if err := v.OrNil(); err != nil {
		return err
	}
	*d = merged
	return nil
}

func checkLength(v *ValidationError, field, value string) {
	if v.Has(field) {
		return
	}
	if utf8.RuneCountInString(value) > MaxNameLength {
		v.Add(field, "max", field+" may not be greater than 255 characters")
	}
}
