package calendar

import (
	"strings"
	"time"
)

// IsSeriesMaster reports whether the event is the template of a recurring
// series.
func IsSeriesMaster(e *Event) bool {
	return e != nil && e.SeriesID != "" && e.ID == e.SeriesID && e.RecurrenceID == nil
}

// IsSeriesException reports whether the event is a stored, individually
// modified occurrence of a series.
func IsSeriesException(e *Event) bool {
	return e != nil && e.SeriesID != "" && e.RecurrenceID != nil && e.ID != e.SeriesID
}

// IsGroupScheduled reports whether the event is scheduled between an
// organizer and attendees, as opposed to a plain entry in a single calendar.
func IsGroupScheduled(e *Event) bool {
	return e != nil && e.Organizer != nil && len(e.Attendees) > 0
}

// IsInternal reports whether the attendee is bound to a tenant entity.
func IsInternal(a Attendee) bool {
	return a.Internal && a.Entity > 0 && a.CUType != UserExternal
}

// Matches reports whether the calendar user refers to the given entity.
func Matches(cu *CalendarUser, entity int) bool {
	return cu != nil && entity > 0 && cu.Entity == entity
}

// FindAttendee returns the event attendee with the given entity id, or nil.
func FindAttendee(attendees []Attendee, entity int) *Attendee {
	if entity <= 0 {
		return nil
	}
	for i := range attendees {
		if attendees[i].Entity == entity {
			return &attendees[i]
		}
	}
	return nil
}

// FindAttendeeMatching locates the event attendee corresponding to the given
// one, by entity for internal attendees and by URI otherwise.
func FindAttendeeMatching(attendees []Attendee, attendee Attendee) *Attendee {
	if IsInternal(attendee) {
		return FindAttendee(attendees, attendee.Entity)
	}
	for i := range attendees {
		if attendees[i].URI != "" && strings.EqualFold(attendees[i].URI, attendee.URI) {
			return &attendees[i]
		}
	}
	return nil
}

// IncludeForFreeBusy reports whether the event occupies the attendee's time:
// for group-scheduled events the attendee must actually attend and not have
// declined; otherwise the attendee must be the event's calendar user.
func IncludeForFreeBusy(e *Event, attendee Attendee) bool {
	if IsGroupScheduled(e) {
		found := FindAttendeeMatching(e.Attendees, attendee)
		if found == nil || found.Hidden || found.PartStat == PartStatDeclined {
			return false
		}
		return true
	}
	return Matches(e.CalendarUser, attendee.Entity)
}

// ContainsRecurrenceID reports whether the set holds an id matching rid.
func ContainsRecurrenceID(set []RecurrenceID, rid RecurrenceID) bool {
	for _, id := range set {
		if id.Matches(rid) {
			return true
		}
	}
	return false
}

// EventIDs collects the identifiers of the given events, in order.
func EventIDs(events []Event) []string {
	ids := make([]string, len(events))
	for i := range events {
		ids[i] = events[i].ID
	}
	return ids
}

// MailAddress extracts the mail address from a calendar user URI, or returns
// "" if the URI carries none.
func MailAddress(uri string) string {
	if uri == "" {
		return ""
	}
	lower := strings.ToLower(uri)
	if strings.HasPrefix(lower, "mailto:") {
		uri = uri[len("mailto:"):]
	} else if strings.Contains(uri, ":") {
		return ""
	}
	if !strings.Contains(uri, "@") {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(uri))
}

// TimesIn returns the event's start and end. Floating events are rebased
// into loc so their wall-clock times stay fixed for the viewer.
func TimesIn(e *Event, loc *time.Location) (time.Time, time.Time) {
	if !e.Floating || loc == nil {
		return e.Start, e.End
	}
	return rebase(e.Start, loc), rebase(e.End, loc)
}

func rebase(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

// CopyEvent copies the named fields of e into a fresh event. A nil or empty
// field list copies everything.
func CopyEvent(e *Event, fields []EventField) *Event {
	if e == nil {
		return nil
	}
	if len(fields) == 0 {
		clone := *e
		return &clone
	}
	out := &Event{}
	for _, field := range fields {
		switch field {
		case FieldID:
			out.ID = e.ID
		case FieldSeriesID:
			out.SeriesID = e.SeriesID
		case FieldUID:
			out.UID = e.UID
		case FieldFolderID:
			out.FolderID = e.FolderID
		case FieldSummary:
			out.Summary = e.Summary
		case FieldLocation:
			out.Location = e.Location
		case FieldCalendarUser:
			out.CalendarUser = e.CalendarUser
		case FieldOrganizer:
			out.Organizer = e.Organizer
		case FieldClassification:
			out.Classification = e.Classification
		case FieldStatus:
			out.Status = e.Status
		case FieldTransp:
			out.Transp = e.Transp
		case FieldStart:
			out.Start = e.Start
			out.Floating = e.Floating
		case FieldEnd:
			out.End = e.End
			out.Floating = e.Floating
		case FieldRecurrenceRule:
			out.RecurrenceRule = e.RecurrenceRule
		case FieldRecurrenceID:
			out.RecurrenceID = e.RecurrenceID
		case FieldChangeExceptionDates:
			out.ChangeExceptionDates = e.ChangeExceptionDates
		case FieldDeleteExceptionDates:
			out.DeleteExceptionDates = e.DeleteExceptionDates
		case FieldAttendees:
			out.Attendees = e.Attendees
		}
	}
	return out
}
