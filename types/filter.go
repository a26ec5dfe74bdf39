package types

import "time"

// Page selects a slice of a list result. All bypasses paging.
type Page struct {
	Number int
	Size   int
	All    bool
}

// Offset returns the row offset of the page.
func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// PageInfo describes the page that was returned.
type PageInfo struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Total   int `json:"total"`
}

// DestinationFilter shapes destination listings. Search matches city, state
// or country, case-insensitively.
type DestinationFilter struct {
	Search  string
	Country string
	State   string
	Page    Page
}

// TravelerFilter shapes traveler listings. Search matches the traveler name
// or the owner email.
type TravelerFilter struct {
	Search   string
	IsActive *bool
	Page     Page
}

// TripRequestFilter shapes trip request listings. Zero values are not applied.
type TripRequestFilter struct {
	Search        string
	Status        TripStatus
	DestinationID int
	// Destination matches the destination's city, state or country.
	Destination string
	TravelerID  int
	// StartDate and EndDate bound the departure time, both inclusive.
	StartDate *time.Time
	EndDate   *time.Time
	Page      Page
}

// NotificationFilter shapes a user's notification listing.
type NotificationFilter struct {
	UncheckedOnly bool
	Page          Page
}
