package store

import (
	"strings"

	"github.com/tripdesk/apiserver/types"
)

// destinationPredicates filters destinations. Destinations are not scoped by
// actor.
func destinationPredicates(f types.DestinationFilter) *predicates {
	p := &predicates{}
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := contains(s)
		p.add("(d.city ILIKE ? OR d.state ILIKE ? OR d.country ILIKE ?)", pattern, pattern, pattern)
	}
	if f.Country != "" {
		p.add("d.country = ?", f.Country)
	}
	if f.State != "" {
		p.add("d.state = ?", f.State)
	}
	return p
}

// travelerPredicates filters travelers. A non-admin actor is restricted to
// their own travelers before any other filter applies.
func travelerPredicates(actor types.Actor, f types.TravelerFilter) *predicates {
	p := &predicates{}
	if !actor.IsAdmin {
		p.add("t.user_id = ?", actor.ID)
	}
	if f.IsActive != nil {
		p.add("t.is_active = ?", *f.IsActive)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := contains(s)
		p.add("(t.name ILIKE ? OR u.email ILIKE ?)", pattern, pattern)
	}
	return p
}

// tripRequestPredicates filters trip requests. A non-admin actor is
// restricted to trips of their own travelers before any other filter applies.
func tripRequestPredicates(actor types.Actor, f types.TripRequestFilter) *predicates {
	p := &predicates{}
	if !actor.IsAdmin {
		p.add("t.user_id = ?", actor.ID)
	}
	if f.Status != "" {
		p.add("tr.status = ?", string(f.Status))
	}
	if f.DestinationID > 0 {
		p.add("tr.destination_id = ?", f.DestinationID)
	}
	if s := strings.TrimSpace(f.Destination); s != "" {
		pattern := contains(s)
		p.add("(d.city ILIKE ? OR d.state ILIKE ? OR d.country ILIKE ?)", pattern, pattern, pattern)
	}
	if f.TravelerID > 0 {
		p.add("tr.traveler_id = ?", f.TravelerID)
	}
	if f.StartDate != nil {
		p.add("tr.departure_datetime >= ?", *f.StartDate)
	}
	if f.EndDate != nil {
		p.add("tr.departure_datetime <= ?", *f.EndDate)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := contains(s)
		p.add("(tr.description ILIKE ? OR t.name ILIKE ? OR d.city ILIKE ? OR d.country ILIKE ?)",
			pattern, pattern, pattern, pattern)
	}
	return p
}

func notificationPredicates(userID int, f types.NotificationFilter) *predicates {
	p := &predicates{}
	p.add("n.user_id = ?", userID)
	if f.UncheckedOnly {
		p.add("n.is_checked = FALSE")
	}
	return p
}
