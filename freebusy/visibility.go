package freebusy

import (
	"fmt"
	"time"

	"github.com/samber/mo"

	"github.com/chronos-cal/chronos/calendar"
)

// IsVisibleToViewer decides whether an event counts toward the viewer's own
// free/busy outline. PUBLIC and CONFIDENTIAL events are always visible in
// outline; PRIVATE events only to their calendar user, organizer or
// attendees. A matching mask UID always hides the event.
func IsVisibleToViewer(event *calendar.Event, viewerID int, maskUID mo.Option[string]) bool {
	if uid, ok := maskUID.Get(); ok && uid != "" && uid == event.UID {
		return false
	}
	switch event.Classification {
	case "", calendar.ClassPublic, calendar.ClassConfidential:
		return true
	}
	if calendar.Matches(event.CalendarUser, viewerID) || calendar.Matches(event.Organizer, viewerID) {
		return true
	}
	return calendar.FindAttendee(event.Attendees, viewerID) != nil
}

// Evaluator decides whether events count toward an attendee's free/busy
// exposure in the view of a session user. It is stateless beyond its
// collaborators and safe for concurrent use.
type Evaluator struct {
	config  Config
	session *Session
}

// NewEvaluator creates an Evaluator bound to the given facts and session.
func NewEvaluator(config Config, session *Session) *Evaluator {
	return &Evaluator{config: config, session: session}
}

// IsVisibleForAttendee decides whether the event counts toward the given
// attendee's free/busy exposure. Errors during the concealment checks are
// downgraded to warnings on the session diagnostics and treated as not
// visible.
func (ev *Evaluator) IsVisibleForAttendee(event *calendar.Event, attendee calendar.Attendee) bool {
	if uid, ok := ev.session.maskUID().Get(); ok && uid != "" && uid == event.UID {
		return false
	}
	if !calendar.IncludeForFreeBusy(event, attendee) {
		return false
	}
	if calendar.IsInternal(attendee) && attendee.Entity == ev.session.UserID {
		// Viewers always see their own commitments.
		return true
	}
	if calendar.FindAttendee(event.Attendees, ev.session.UserID) != nil {
		// The viewer attends; own commitments stay visible regardless of
		// classification or concealment preferences.
		return true
	}
	if event.Classification == calendar.ClassPrivate {
		return false
	}
	if !calendar.IsInternal(attendee) {
		return true
	}
	switch attendee.CUType {
	case calendar.UserIndividual, calendar.UserResource, calendar.UserGroup:
		return ev.passesConcealment(event, attendee)
	case calendar.UserRoom, calendar.UserExternal:
		return true
	}
	return true
}

// passesConcealment enforces the attendee's free/busy disclosure preference:
// a concealed user's events stay visible only through a folder the viewer
// can see.
func (ev *Evaluator) passesConcealment(event *calendar.Event, attendee calendar.Attendee) bool {
	visibility, err := ev.config.FreeBusyVisibility(ev.session.TenantID, attendee.Entity)
	if err != nil {
		ev.session.warn(fmt.Errorf("free/busy visibility lookup for entity %d: %w", attendee.Entity, err))
		return false
	}
	if visibility != VisibilityNone {
		return true
	}
	folderID, err := ev.config.ChooseFolder(event)
	if err != nil {
		ev.session.warn(fmt.Errorf("choose folder for event %s: %w", event.ID, err))
		return false
	}
	if folderID == "" {
		return false
	}
	visible, err := ev.config.IsFolderVisible(folderID)
	if err != nil {
		ev.session.warn(fmt.Errorf("folder visibility check for %s: %w", folderID, err))
		return false
	}
	return visible
}

// FindDelegatableResource returns the first resource or room attendee of the
// event for which the session user holds booking-delegate authority.
// Authority-check failures are recorded as warnings and the scan continues.
func (ev *Evaluator) FindDelegatableResource(event *calendar.Event) mo.Option[calendar.Attendee] {
	for _, a := range event.Attendees {
		if a.CUType != calendar.UserResource && a.CUType != calendar.UserRoom {
			continue
		}
		ok, err := ev.config.CanDelegateBooking(ev.session.UserID, a)
		if err != nil {
			ev.session.warn(fmt.Errorf("booking delegate check for resource %d: %w", a.Entity, err))
			continue
		}
		if ok {
			return mo.Some(a)
		}
	}
	return mo.None[calendar.Attendee]()
}

// TimezoneFor selects the timezone used to anchor an attendee's floating
// events: internal individuals use their configured zone, everybody else
// falls back to the session's zone.
func TimezoneFor(attendee calendar.Attendee, session *Session) *time.Location {
	if calendar.IsInternal(attendee) && attendee.CUType == calendar.UserIndividual && attendee.Timezone != "" {
		if loc, err := time.LoadLocation(attendee.Timezone); err == nil {
			return loc
		}
	}
	return session.location()
}
