package types

import (
	"strings"
	"time"
)

// Traveler is a named travel profile owned by exactly one user. Travelers are
// never hard-deleted; they move between the active and inactive states.
type Traveler struct {
	// ID is the unique identifier of the traveler.
	ID int `json:"id" db:"id"`

	// UserID is the owning user. It is fixed for the traveler's lifetime.
	UserID int `json:"user_id" db:"user_id"`

	// Name is the traveler's display name.
	Name string `json:"name" db:"name"`

	// IsActive is false once the traveler has been deactivated.
	IsActive bool `json:"is_active" db:"is_active"`

	// CreatedAt is the timestamp at which the traveler was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the traveler.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// User is the owning user's summary, when loaded.
	User *UserSummary `json:"user,omitempty" db:"-"`
}

// TravelerState is the lifecycle state of a traveler profile.
type TravelerState string

const (
	TravelerActive   TravelerState = "active"
	TravelerInactive TravelerState = "inactive"
)

// State reports the lifecycle state derived from IsActive.
func (t Traveler) State() TravelerState {
	if t.IsActive {
		return TravelerActive
	}
	return TravelerInactive
}

// Summary returns the embedded representation used inside trip requests.
func (t Traveler) Summary() *TravelerSummary {
	return &TravelerSummary{ID: t.ID, Name: t.Name, IsActive: t.IsActive, User: t.User}
}

// TravelerSummary is the reduced traveler shape embedded in trip requests.
type TravelerSummary struct {
	ID       int          `json:"id"`
	Name     string       `json:"name"`
	IsActive bool         `json:"is_active"`
	User     *UserSummary `json:"user,omitempty"`
}

// TravelerPatch carries the traveler-side fields of a create or update.
type TravelerPatch struct {
	Name     *string
	IsActive *bool
}

// Apply merges p into t. The owner is never touched.
func (t *Traveler) Apply(p TravelerPatch) error {
	v := &ValidationError{}
	if p.Name != nil {
		ValidateName(v, "name", *p.Name, true)
	}
	if err := v.OrNil(); err != nil {
		return err
	}
	if p.Name != nil {
		t.Name = strings.TrimSpace(*p.Name)
	}
	if p.IsActive != nil {
		t.IsActive = *p.IsActive
	}
	return nil
}
