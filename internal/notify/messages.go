package notify

import (
	"fmt"

	"github.com/tripdesk/apiserver/types"
)

var statusTemplates = map[types.TripStatus]string{
	types.TripStatusApproved:  "Your trip request to %s has been approved.",
	types.TripStatusCancelled: "Your trip request to %s has been cancelled.",
}

// Message renders the notification text for a status change. Statuses with
// no template produce no notification.
func Message(status types.TripStatus, destination string) (string, bool) {
	tmpl, ok := statusTemplates[status]
	if !ok {
		return "", false
	}
	return fmt.Sprintf(tmpl, destination), true
}
