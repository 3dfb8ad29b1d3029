// Package calendar defines the domain model shared by the free/busy and
// recurrence components: events, attendees, classification enums and the
// recurrence identifiers addressing single instances of a series.
//
// All identifiers (event ids, entity ids) are only meaningful within one
// tenant; cross-tenant results carry an explicit tenant key alongside them.
package calendar

import "time"

// CalendarUserType is the closed set of attendee kinds. Attendees that could
// not be bound to a tenant entity carry UserExternal.
type CalendarUserType int

const (
	UserIndividual CalendarUserType = iota
	UserGroup
	UserResource
	UserRoom
	UserExternal
)

// String provides a human-readable representation of the user type.
func (t CalendarUserType) String() string {
	switch t {
	case UserIndividual:
		return "INDIVIDUAL"
	case UserGroup:
		return "GROUP"
	case UserResource:
		return "RESOURCE"
	case UserRoom:
		return "ROOM"
	default:
		return "EXTERNAL"
	}
}

// ParticipationStatus is an attendee's reply state.
type ParticipationStatus string

const (
	PartStatNeedsAction ParticipationStatus = "NEEDS-ACTION"
	PartStatAccepted    ParticipationStatus = "ACCEPTED"
	PartStatDeclined    ParticipationStatus = "DECLINED"
	PartStatTentative   ParticipationStatus = "TENTATIVE"
)

// Classification controls how much of an event non-participants may see.
type Classification string

const (
	ClassPublic       Classification = "PUBLIC"
	ClassPrivate      Classification = "PRIVATE"
	ClassConfidential Classification = "CONFIDENTIAL"
)

// Transp marks whether an event occupies free/busy time.
type Transp string

const (
	TranspOpaque      Transp = "OPAQUE"
	TranspTransparent Transp = "TRANSPARENT"
)

// EventStatus is the overall confirmation state of an event.
type EventStatus string

const (
	StatusConfirmed EventStatus = "CONFIRMED"
	StatusTentative EventStatus = "TENTATIVE"
	StatusCancelled EventStatus = "CANCELLED"
)

// CalendarUser identifies the organizer or owner of an event.
type CalendarUser struct {
	Entity int
	URI    string
	CN     string
}

// Attendee is one participant of an event. Attendees are value-like; the
// struct stays comparable so it can key result maps.
type Attendee struct {
	// Entity is the tenant-local user/group/resource id. Zero for external
	// attendees.
	Entity int
	// URI is the calendar user address, e.g. "mailto:carol@example.org".
	URI string
	// CN is the display name.
	CN string
	// CUType tells individuals, groups, resources, rooms and externals apart.
	CUType CalendarUserType
	// PartStat is the attendee's reply state.
	PartStat ParticipationStatus
	// Hidden marks attendees removed from their own view of the event.
	Hidden bool
	// Internal is set when the attendee is bound to a tenant entity rather
	// than an external contact address.
	Internal bool
	// Timezone is the attendee's configured IANA timezone, if known.
	Timezone string
}

// RecurrenceID addresses one instance of a recurring series. It is derived
// from the instance's original start timestamp; Matches tolerates
// representation differences such as zone or sub-second precision.
type RecurrenceID struct {
	Time time.Time
}

// NewRecurrenceID normalizes t into a recurrence identifier.
func NewRecurrenceID(t time.Time) RecurrenceID {
	return RecurrenceID{Time: t.UTC().Truncate(time.Second)}
}

// Matches reports whether both identifiers denote the same instant.
func (r RecurrenceID) Matches(other RecurrenceID) bool {
	return r.Time.Unix() == other.Time.Unix()
}

func (r RecurrenceID) String() string {
	return r.Time.UTC().Format("20060102T150405Z")
}

// EventField names one loadable event property. Storage backends use field
// lists to restrict what a query populates.
type EventField string

const (
	FieldID                   EventField = "id"
	FieldSeriesID             EventField = "seriesId"
	FieldUID                  EventField = "uid"
	FieldFolderID             EventField = "folderId"
	FieldSummary              EventField = "summary"
	FieldLocation             EventField = "location"
	FieldCalendarUser         EventField = "calendarUser"
	FieldOrganizer            EventField = "organizer"
	FieldClassification       EventField = "classification"
	FieldStatus               EventField = "status"
	FieldTransp               EventField = "transp"
	FieldStart                EventField = "startDate"
	FieldEnd                  EventField = "endDate"
	FieldRecurrenceRule       EventField = "recurrenceRule"
	FieldRecurrenceID         EventField = "recurrenceId"
	FieldChangeExceptionDates EventField = "changeExceptionDates"
	FieldDeleteExceptionDates EventField = "deleteExceptionDates"
	FieldAttendees            EventField = "attendees"
)

// Event is a read-only projection of a stored event. An event is exactly one
// of: singular (no series id), series master (id == series id, no recurrence
// id) or series occurrence (series id and recurrence id set).
type Event struct {
	ID       string
	SeriesID string
	UID      string
	FolderID string

	Summary  string
	Location string

	CalendarUser *CalendarUser
	Organizer    *CalendarUser

	Classification Classification
	Status         EventStatus
	Transp         Transp

	Start time.Time
	End   time.Time
	// Floating marks events whose start/end are wall-clock times to be
	// interpreted in the viewer's timezone.
	Floating bool

	// RecurrenceRule is the RRULE string without the "RRULE:" prefix; empty
	// for non-recurring events.
	RecurrenceRule string
	RecurrenceID   *RecurrenceID
	// ChangeExceptionDates lists instances overridden by stored exceptions.
	ChangeExceptionDates []RecurrenceID
	// DeleteExceptionDates lists instances removed from the series.
	DeleteExceptionDates []RecurrenceID

	Attendees []Attendee
}
