// Package scheduleresponse renders free/busy query results as a CalDAV
// scheduling response document (RFC 6638 schedule-response) with embedded
// iCalendar VFREEBUSY data per recipient.
package scheduleresponse

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/emersion/go-ical"
	"github.com/google/uuid"

	"github.com/chronos-cal/chronos/calendar"
	"github.com/chronos-cal/chronos/freebusy"
)

const (
	davNS    = "DAV:"
	caldavNS = "urn:ietf:params:xml:ns:caldav"

	statusSuccess      = "2.0;Success"
	statusInvalidUser  = "3.7;Invalid calendar user"
	statusAccessDenied = "3.8;No authority"
)

const utcFormat = "20060102T150405Z"

// Query describes the request the results answer.
type Query struct {
	// Organizer is the calendar address of the querying user.
	Organizer string
	From      time.Time
	Until     time.Time
}

// Write renders the per-attendee results as a schedule-response XML document.
// Recipients are emitted in calendar-address order for stable output.
func Write(query Query, results map[calendar.Attendee]freebusy.Result) (string, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("C:schedule-response")
	root.CreateAttr("xmlns:D", davNS)
	root.CreateAttr("xmlns:C", caldavNS)

	attendees := make([]calendar.Attendee, 0, len(results))
	for a := range results {
		attendees = append(attendees, a)
	}
	sort.Slice(attendees, func(i, j int) bool { return attendees[i].URI < attendees[j].URI })

	for _, attendee := range attendees {
		result := results[attendee]
		response := root.CreateElement("C:response")
		recipient := response.CreateElement("C:recipient")
		recipient.CreateElement("D:href").SetText(attendee.URI)
		response.CreateElement("C:request-status").SetText(statusOf(result))
		if data, ok := calendarData(query, attendee, result); ok {
			response.CreateElement("C:calendar-data").SetText(data)
		}
	}

	doc.Indent(2)
	return doc.WriteToString()
}

// statusOf maps the outcome for one recipient onto an RFC 6638 status code.
func statusOf(result freebusy.Result) string {
	for _, warning := range result.Warnings {
		if errors.Is(warning, freebusy.ErrFreeBusyUnavailable) {
			return statusInvalidUser
		}
		if errors.Is(warning, freebusy.ErrVisibilityRestricted) {
			return statusAccessDenied
		}
	}
	return statusSuccess
}

func calendarData(query Query, attendee calendar.Attendee, result freebusy.Result) (string, bool) {
	if statusOf(result) != statusSuccess {
		return "", false
	}
	cal, err := VFreeBusy(query, attendee, result.Times)
	if err != nil {
		return "", false
	}
	var buf strings.Builder
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return "", false
	}
	return buf.String(), true
}

// VFreeBusy builds an iCalendar REPLY carrying one VFREEBUSY component with
// the attendee's intervals.
func VFreeBusy(query Query, attendee calendar.Attendee, times []freebusy.FreeBusyTime) (*ical.Calendar, error) {
	if query.Until.Before(query.From) {
		return nil, fmt.Errorf("window end %s before start %s", query.Until, query.From)
	}
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, "-//chronos//free-busy//EN")
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText("METHOD", "REPLY")

	vfb := ical.NewComponent("VFREEBUSY")
	vfb.Props.SetText(ical.PropUID, uuid.NewString())
	vfb.Props.SetDateTime("DTSTAMP", time.Now().UTC())
	vfb.Props.SetText("DTSTART", query.From.UTC().Format(utcFormat))
	vfb.Props.SetText("DTEND", query.Until.UTC().Format(utcFormat))
	if query.Organizer != "" {
		vfb.Props.SetText("ORGANIZER", query.Organizer)
	}
	if attendee.URI != "" {
		prop := ical.NewProp("ATTENDEE")
		if attendee.CN != "" {
			prop.Params.Set("CN", attendee.CN)
		}
		prop.Value = attendee.URI
		vfb.Props.Add(prop)
	}
	for _, t := range times {
		prop := ical.NewProp("FREEBUSY")
		prop.Params.Set("FBTYPE", t.Type.String())
		prop.Value = t.Start.UTC().Format(utcFormat) + "/" + t.End.UTC().Format(utcFormat)
		vfb.Props.Add(prop)
	}
	cal.Children = append(cal.Children, vfb)
	return cal, nil
}
