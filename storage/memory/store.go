// Package memory provides a map-backed CalendarStorage, mainly for tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/chronos-cal/chronos/calendar"
	"github.com/chronos-cal/chronos/storage"
)

// Store implements storage.CalendarStorage using in-memory maps
type Store struct {
	mu     sync.RWMutex
	events map[string]*calendar.Event // key: event id
	order  []string                   // insertion order for stable results
}

// New creates a new in-memory storage
func New() *Store {
	return &Store{events: make(map[string]*calendar.Event)}
}

// AddEvent stores an event. A missing id is generated; series masters get
// their id as series id when none is set.
func (s *Store) AddEvent(event calendar.Event) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.RecurrenceRule != "" && event.SeriesID == "" {
		event.SeriesID = event.ID
	}
	s.events[event.ID] = &event
	s.order = append(s.order, event.ID)
	return event.ID
}

// SearchOverlappingEvents implements storage.CalendarStorage. Series masters
// are matched on their rule-covered span (master start up to the window end)
// since individual instances are expanded by the caller.
func (s *Store) SearchOverlappingEvents(_ context.Context, entities []int, opts storage.SearchOptions) ([]calendar.Event, error) {
	if len(entities) == 0 {
		return nil, fmt.Errorf("%w: no entities", storage.ErrInvalidInput)
	}
	wanted := toSet(entities)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found []calendar.Event
	for _, id := range s.order {
		event := s.events[id]
		if !opts.IncludeTransparent && event.Transp == calendar.TranspTransparent {
			continue
		}
		if !s.participates(event, wanted) {
			continue
		}
		overlaps := event.Start.Before(opts.Until) && event.End.After(opts.From)
		if calendar.IsSeriesMaster(event) {
			overlaps = event.Start.Before(opts.Until)
		}
		if !overlaps {
			continue
		}
		found = append(found, *calendar.CopyEvent(event, opts.Fields))
	}
	return found, nil
}

// LoadAttendees implements storage.CalendarStorage.
func (s *Store) LoadAttendees(_ context.Context, eventIDs []string, entities []int) (map[string][]calendar.Attendee, error) {
	wanted := toSet(entities)
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string][]calendar.Attendee, len(eventIDs))
	for _, id := range eventIDs {
		event, ok := s.events[id]
		if !ok {
			continue
		}
		var attendees []calendar.Attendee
		for _, a := range event.Attendees {
			if _, ok := wanted[a.Entity]; ok {
				attendees = append(attendees, a)
			}
		}
		result[id] = attendees
	}
	return result, nil
}

// LoadEvent implements storage.CalendarStorage.
func (s *Store) LoadEvent(_ context.Context, eventID string, fields []calendar.EventField) (*calendar.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	event, ok := s.events[eventID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, eventID)
	}
	return calendar.CopyEvent(event, fields), nil
}

// LoadException implements storage.CalendarStorage.
func (s *Store) LoadException(_ context.Context, seriesID string, rid calendar.RecurrenceID, fields []calendar.EventField) (*calendar.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		event := s.events[id]
		if calendar.IsSeriesException(event) && event.SeriesID == seriesID && event.RecurrenceID.Matches(rid) {
			return calendar.CopyEvent(event, fields), nil
		}
	}
	return nil, fmt.Errorf("%w: exception of %s at %s", storage.ErrNotFound, seriesID, rid)
}

func (s *Store) participates(event *calendar.Event, wanted map[int]struct{}) bool {
	if event.CalendarUser != nil {
		if _, ok := wanted[event.CalendarUser.Entity]; ok {
			return true
		}
	}
	for _, a := range event.Attendees {
		if _, ok := wanted[a.Entity]; ok {
			return true
		}
	}
	return false
}

func toSet(entities []int) map[int]struct{} {
	set := make(map[int]struct{}, len(entities))
	for _, entity := range entities {
		set[entity] = struct{}{}
	}
	return set
}
