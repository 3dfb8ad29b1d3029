package freebusy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/chronos-cal/chronos/calendar"
	"github.com/chronos-cal/chronos/storage"
)

// FreeBusyFields is the skeleton field set fetched by overlap searches: the
// participant-independent free/busy data plus everything needed to classify
// recurrence instances.
var FreeBusyFields = []calendar.EventField{
	calendar.FieldID, calendar.FieldSeriesID, calendar.FieldUID, calendar.FieldFolderID,
	calendar.FieldSummary, calendar.FieldLocation, calendar.FieldCalendarUser, calendar.FieldOrganizer,
	calendar.FieldClassification, calendar.FieldStatus, calendar.FieldTransp,
	calendar.FieldStart, calendar.FieldEnd, calendar.FieldRecurrenceRule, calendar.FieldRecurrenceID,
	calendar.FieldChangeExceptionDates, calendar.FieldDeleteExceptionDates,
}

// RestrictedFreeBusyFields is the reduced field set used when the viewer has
// no access to the event's details.
var RestrictedFreeBusyFields = []calendar.EventField{
	calendar.FieldID, calendar.FieldSeriesID, calendar.FieldUID,
	calendar.FieldClassification, calendar.FieldStatus, calendar.FieldTransp,
	calendar.FieldStart, calendar.FieldEnd, calendar.FieldRecurrenceRule, calendar.FieldRecurrenceID,
}

// IncludeFunc decides whether a loaded event counts for an attendee.
type IncludeFunc func(event *calendar.Event, attendee calendar.Attendee) bool

// OverlapLoader retrieves events overlapping a window for a set of attendees
// using at most two storage round trips: one skeleton search, one bulk
// attendee hydration.
type OverlapLoader struct {
	storage storage.CalendarStorage
	logger  *slog.Logger
}

// NewOverlapLoader creates an OverlapLoader over the given tenant storage.
// A nil logger discards log output.
func NewOverlapLoader(st storage.CalendarStorage, logger *slog.Logger) *OverlapLoader {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &OverlapLoader{storage: st, logger: logger}
}

// LoadPerAttendee loads the events overlapping [from, until) and partitions
// them per requested attendee. Every requested attendee receives an entry,
// defaulting to an empty sequence; only internal individuals, resources and
// groups can contribute events. A nil include predicate includes every
// loaded event. extraEntities are added to the hydration key set, e.g. to
// force-include the viewer's attendee rows.
func (l *OverlapLoader) LoadPerAttendee(ctx context.Context, attendees []calendar.Attendee, from, until time.Time, include IncludeFunc, extraEntities ...int) (map[calendar.Attendee][]calendar.Event, error) {
	perAttendee := make(map[calendar.Attendee][]calendar.Event, len(attendees))
	for _, a := range attendees {
		perAttendee[a] = []calendar.Event{}
	}
	internal := filterInternal(attendees)
	if len(internal) == 0 {
		return perAttendee, nil
	}
	events, err := l.load(ctx, internal, from, until, false, extraEntities)
	if err != nil {
		return nil, err
	}
	for i := range events {
		event := &events[i]
		for _, a := range internal {
			if include == nil || include(event, a) {
				perAttendee[a] = append(perAttendee[a], *event)
			}
		}
	}
	return perAttendee, nil
}

// LoadFlat loads the events overlapping [from, until) for the internal
// attendees as a single sequence, in storage order.
func (l *OverlapLoader) LoadFlat(ctx context.Context, attendees []calendar.Attendee, from, until time.Time, includeTransparent bool) ([]calendar.Event, error) {
	internal := filterInternal(attendees)
	if len(internal) == 0 {
		return nil, nil
	}
	return l.load(ctx, internal, from, until, includeTransparent, nil)
}

func (l *OverlapLoader) load(ctx context.Context, internal []calendar.Attendee, from, until time.Time, includeTransparent bool, extraEntities []int) ([]calendar.Event, error) {
	entities := make([]int, 0, len(internal))
	for _, a := range internal {
		entities = append(entities, a.Entity)
	}
	events, err := l.storage.SearchOverlappingEvents(ctx, entities, storage.SearchOptions{
		From:               from,
		Until:              until,
		IncludeTransparent: includeTransparent,
		Fields:             FreeBusyFields,
	})
	if err != nil {
		return nil, fmt.Errorf("search overlapping events: %w", err)
	}
	if len(events) == 0 {
		return nil, nil
	}
	l.logger.Debug("hydrating overlap search result", "events", len(events), "entities", len(entities))
	attendeesByID, err := l.storage.LoadAttendees(ctx, calendar.EventIDs(events), dedupe(append(entities, extraEntities...)))
	if err != nil {
		return nil, fmt.Errorf("load attendees: %w", err)
	}
	for i := range events {
		events[i].Attendees = attendeesByID[events[i].ID]
	}
	return events, nil
}

// filterInternal keeps the attendee types that can hold events in tenant
// storage. External and room attendees never reach the search.
func filterInternal(attendees []calendar.Attendee) []calendar.Attendee {
	var internal []calendar.Attendee
	for _, a := range attendees {
		switch a.CUType {
		case calendar.UserIndividual, calendar.UserResource, calendar.UserGroup:
			if calendar.IsInternal(a) {
				internal = append(internal, a)
			}
		case calendar.UserRoom, calendar.UserExternal:
			// rooms are booked through their managing resource; externals
			// are resolved to foreign tenants elsewhere
		}
	}
	return internal
}

func dedupe(entities []int) []int {
	seen := make(map[int]struct{}, len(entities))
	out := entities[:0]
	for _, entity := range entities {
		if _, ok := seen[entity]; ok || entity <= 0 {
			continue
		}
		seen[entity] = struct{}{}
		out = append(out, entity)
	}
	return out
}
