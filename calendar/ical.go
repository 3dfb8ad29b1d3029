package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"
)

// Property and parameter names not covered by go-ical's constants.
const (
	propClass        = "CLASS"
	propTransp       = "TRANSP"
	propStatus       = "STATUS"
	propRRule        = "RRULE"
	propRecurrenceID = "RECURRENCE-ID"
	propExDate       = "EXDATE"
	propOrganizer    = "ORGANIZER"
	propAttendee     = "ATTENDEE"

	paramCN       = "CN"
	paramPartStat = "PARTSTAT"
	paramCUType   = "CUTYPE"
)

// EventFromComponent converts a VEVENT component into a domain event.
// Properties this core does not model are dropped.
func EventFromComponent(comp *ical.Component) (*Event, error) {
	if comp == nil || comp.Name != ical.CompEvent {
		return nil, fmt.Errorf("not a VEVENT component")
	}
	e := &Event{}
	if p := comp.Props.Get(ical.PropUID); p != nil {
		e.UID = p.Value
	}
	if p := comp.Props.Get(ical.PropSummary); p != nil {
		e.Summary = p.Value
	}
	if p := comp.Props.Get(ical.PropLocation); p != nil {
		e.Location = p.Value
	}
	if p := comp.Props.Get(propClass); p != nil {
		e.Classification = Classification(strings.ToUpper(p.Value))
	}
	if p := comp.Props.Get(propTransp); p != nil {
		e.Transp = Transp(strings.ToUpper(p.Value))
	}
	if p := comp.Props.Get(propStatus); p != nil {
		e.Status = EventStatus(strings.ToUpper(p.Value))
	}
	if p := comp.Props.Get(propRRule); p != nil {
		e.RecurrenceRule = p.Value
	}
	start, err := comp.Props.DateTime(ical.PropDateTimeStart, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parse DTSTART: %w", err)
	}
	e.Start = start
	end, err := comp.Props.DateTime(ical.PropDateTimeEnd, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parse DTEND: %w", err)
	}
	e.End = end
	if p := comp.Props.Get(propRecurrenceID); p != nil {
		t, err := p.DateTime(time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse RECURRENCE-ID: %w", err)
		}
		rid := NewRecurrenceID(t)
		e.RecurrenceID = &rid
	}
	for _, p := range comp.Props.Values(propExDate) {
		t, err := p.DateTime(time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse EXDATE: %w", err)
		}
		e.DeleteExceptionDates = append(e.DeleteExceptionDates, NewRecurrenceID(t))
	}
	if p := comp.Props.Get(propOrganizer); p != nil {
		e.Organizer = &CalendarUser{URI: p.Value, CN: p.Params.Get(paramCN)}
	}
	for _, p := range comp.Props.Values(propAttendee) {
		e.Attendees = append(e.Attendees, Attendee{
			URI:      p.Value,
			CN:       p.Params.Get(paramCN),
			CUType:   parseCUType(p.Params.Get(paramCUType)),
			PartStat: ParticipationStatus(strings.ToUpper(p.Params.Get(paramPartStat))),
		})
	}
	return e, nil
}

// ComponentFromEvent renders the domain event as a VEVENT component.
func ComponentFromEvent(e *Event) *ical.Component {
	comp := ical.NewComponent(ical.CompEvent)
	comp.Props.SetText(ical.PropUID, e.UID)
	if e.Summary != "" {
		comp.Props.SetText(ical.PropSummary, e.Summary)
	}
	if e.Location != "" {
		comp.Props.SetText(ical.PropLocation, e.Location)
	}
	comp.Props.SetDateTime(ical.PropDateTimeStart, e.Start)
	comp.Props.SetDateTime(ical.PropDateTimeEnd, e.End)
	if e.Classification != "" {
		comp.Props.SetText(propClass, string(e.Classification))
	}
	if e.Transp != "" {
		comp.Props.SetText(propTransp, string(e.Transp))
	}
	if e.Status != "" {
		comp.Props.SetText(propStatus, string(e.Status))
	}
	if e.RecurrenceRule != "" {
		comp.Props.SetText(propRRule, e.RecurrenceRule)
	}
	if e.RecurrenceID != nil {
		comp.Props.SetDateTime(propRecurrenceID, e.RecurrenceID.Time)
	}
	for _, rid := range e.DeleteExceptionDates {
		prop := ical.NewProp(propExDate)
		prop.SetDateTime(rid.Time)
		comp.Props.Add(prop)
	}
	if e.Organizer != nil {
		prop := ical.NewProp(propOrganizer)
		prop.Value = e.Organizer.URI
		if e.Organizer.CN != "" {
			prop.Params.Set(paramCN, e.Organizer.CN)
		}
		comp.Props.Add(prop)
	}
	for _, a := range e.Attendees {
		prop := ical.NewProp(propAttendee)
		prop.Value = a.URI
		if a.CN != "" {
			prop.Params.Set(paramCN, a.CN)
		}
		if a.PartStat != "" {
			prop.Params.Set(paramPartStat, string(a.PartStat))
		}
		prop.Params.Set(paramCUType, a.CUType.String())
		comp.Props.Add(prop)
	}
	return comp
}

func parseCUType(value string) CalendarUserType {
	switch strings.ToUpper(value) {
	case "", "INDIVIDUAL":
		return UserIndividual
	case "GROUP":
		return UserGroup
	case "RESOURCE":
		return UserResource
	case "ROOM":
		return UserRoom
	default:
		return UserExternal
	}
}
