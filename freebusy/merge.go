package freebusy

import (
	"sort"
	"time"

	"github.com/chronos-cal/chronos/calendar"
)

// FbType classifies a free/busy interval. Higher values are more
// conflicting; merging overlapping intervals keeps the highest.
type FbType int

const (
	FbFree FbType = iota
	FbBusyTentative
	FbBusy
	FbBusyUnavailable
)

// String provides the iCalendar FBTYPE value of the classification.
func (t FbType) String() string {
	switch t {
	case FbFree:
		return "FREE"
	case FbBusyTentative:
		return "BUSY-TENTATIVE"
	case FbBusyUnavailable:
		return "BUSY-UNAVAILABLE"
	default:
		return "BUSY"
	}
}

// FreeBusyTime is one interval of an attendee's availability.
type FreeBusyTime struct {
	Type  FbType
	Start time.Time
	End   time.Time
	// Event is the event this interval was derived from; may be a stripped
	// copy when the data originates from a foreign tenant.
	Event *calendar.Event
}

// TypeOf derives the free/busy classification of an event from its
// transparency and status.
func TypeOf(event *calendar.Event) FbType {
	if event.Transp == calendar.TranspTransparent {
		return FbFree
	}
	switch event.Status {
	case calendar.StatusTentative:
		return FbBusyTentative
	case calendar.StatusCancelled:
		return FbFree
	default:
		return FbBusy
	}
}

// IntervalFor derives the free/busy interval of an event for an attendee,
// projecting floating times into the attendee's timezone.
func IntervalFor(event *calendar.Event, attendee calendar.Attendee, session *Session) FreeBusyTime {
	start, end := calendar.TimesIn(event, TimezoneFor(attendee, session))
	return FreeBusyTime{Type: TypeOf(event), Start: start, End: end, Event: event}
}

// ClampToWindow trims the interval to [from, until). It reports false when
// the interval lies entirely outside the window.
func (t *FreeBusyTime) ClampToWindow(from, until time.Time) bool {
	if !t.End.After(from) || !t.Start.Before(until) {
		return false
	}
	if t.Start.Before(from) {
		t.Start = from
	}
	if t.End.After(until) {
		t.End = until
	}
	return true
}

// Merge normalizes intervals chronologically and collapses overlaps so that
// each point in time carries the most conflicting classification covering
// it. Adjacent segments of equal classification are coalesced; each merged
// segment keeps the event reference of its dominating interval.
func Merge(times []FreeBusyTime) []FreeBusyTime {
	if len(times) < 2 {
		return times
	}
	boundaries := make([]time.Time, 0, 2*len(times))
	for _, t := range times {
		boundaries = append(boundaries, t.Start, t.End)
	}
	sort.Slice(boundaries, func(i, j int) bool { return boundaries[i].Before(boundaries[j]) })
	merged := make([]FreeBusyTime, 0, len(times))
	for i := 0; i+1 < len(boundaries); i++ {
		segStart, segEnd := boundaries[i], boundaries[i+1]
		if !segEnd.After(segStart) {
			continue
		}
		var dominant *FreeBusyTime
		for j := range times {
			t := &times[j]
			if t.Start.Before(segEnd) && t.End.After(segStart) {
				if dominant == nil || t.Type > dominant.Type {
					dominant = t
				}
			}
		}
		if dominant == nil {
			continue
		}
		if n := len(merged); n > 0 && merged[n-1].Type == dominant.Type && merged[n-1].End.Equal(segStart) {
			merged[n-1].End = segEnd
			continue
		}
		merged = append(merged, FreeBusyTime{Type: dominant.Type, Start: segStart, End: segEnd, Event: dominant.Event})
	}
	return merged
}
