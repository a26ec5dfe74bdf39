// Package policy holds the authorization decisions for every resource. All
// functions are pure: they take the actor explicitly and never read ambient
// request state.
package policy

import "github.com/tripdesk/apiserver/types"

// CanViewTripRequest allows admins and the user owning the trip's traveler.
func CanViewTripRequest(actor types.Actor, tr types.TripRequest) bool {
	return actor.IsAdmin || tr.OwnerID == actor.ID
}

// CanEditTripRequest allows only the owner, and only while the trip is requested.
func CanEditTripRequest(actor types.Actor, tr types.TripRequest) bool {
	return tr.OwnerID == actor.ID && tr.Status == types.TripStatusRequested
}

// CanCancelTripRequest follows the edit rule.
func CanCancelTripRequest(actor types.Actor, tr types.TripRequest) bool {
	return CanEditTripRequest(actor, tr)
}

func CanChangeStatus(actor types.Actor) bool {
	return actor.IsAdmin
}

func CanViewTraveler(actor types.Actor, t types.Traveler) bool {
	return actor.IsAdmin || t.UserID == actor.ID
}

// CanManageTraveler covers create, update, deactivate and restore.
func CanManageTraveler(actor types.Actor) bool {
	return actor.IsAdmin
}

// CanManageDestination covers create, update and delete. Reads are open to
// every authenticated actor.
func CanManageDestination(actor types.Actor) bool {
	return actor.IsAdmin
}

// CanCheckNotification allows only the addressee, admins included.
func CanCheckNotification(actor types.Actor, n types.UserNotification) bool {
	return n.UserID == actor.ID
}

// CanFileOnBehalf reports whether the actor may name an arbitrary traveler
// when creating a trip request.
func CanFileOnBehalf(actor types.Actor) bool {
	return actor.IsAdmin
}
