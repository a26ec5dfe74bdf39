package types

import "time"

// UserNotification is a message addressed to one user. It is only ever
// created as a side effect of a trip request status change.
type UserNotification struct {
	// ID is the unique identifier of the notification.
	ID int `json:"id" db:"id"`

	// UserID is the addressee.
	UserID int `json:"user_id" db:"user_id"`

	// Message is the rendered notification text.
	Message string `json:"message" db:"message"`

	// IsChecked is set once the addressee has read the notification.
	IsChecked bool `json:"is_checked" db:"is_checked"`

	// CreatedAt is the timestamp at which the notification was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the notification.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TripRequestStatusChanged is emitted after a status change has been persisted.
type TripRequestStatusChanged struct {
	TripRequestID int        `json:"trip_request_id"`
	OwnerID       int        `json:"owner_id"`
	Destination   string     `json:"destination"`
	OldStatus     TripStatus `json:"old_status"`
	NewStatus     TripStatus `json:"new_status"`
	OccurredAt    time.Time  `json:"occurred_at"`
}
