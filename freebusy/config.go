package freebusy

import "github.com/chronos-cal/chronos/calendar"

// Config exposes the externally computed permission and preference facts the
// evaluation consumes. All checks are opaque to this core; implementations
// decide how the facts are derived.
type Config interface {
	// FreeBusyVisibility returns the configured disclosure preference of an
	// internal user of the given tenant.
	FreeBusyVisibility(tenantID, userID int) (Visibility, error)
	// CrossTenantFreeBusy reports whether the tenant participates in
	// cross-tenant free/busy lookups.
	CrossTenantFreeBusy(tenantID int) bool
	// ChooseFolder resolves the folder representing the viewer's access to
	// the event, or "" if the viewer has none.
	ChooseFolder(event *calendar.Event) (string, error)
	// IsFolderVisible reports whether the viewer may see the given folder.
	IsFolderVisible(folderID string) (bool, error)
	// CanDelegateBooking reports whether the viewer holds booking-delegate
	// authority for the given resource or room attendee.
	CanDelegateBooking(viewerID int, resource calendar.Attendee) (bool, error)
}
