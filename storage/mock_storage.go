package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/chronos-cal/chronos/calendar"
)

// MockStorage implements the CalendarStorage interface for testing
type MockStorage struct {
	mock.Mock
}

// SearchOverlappingEvents implements the CalendarStorage interface
func (m *MockStorage) SearchOverlappingEvents(ctx context.Context, entities []int, opts SearchOptions) ([]calendar.Event, error) {
	args := m.Called(ctx, entities, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]calendar.Event), args.Error(1)
}

// LoadAttendees implements the CalendarStorage interface
func (m *MockStorage) LoadAttendees(ctx context.Context, eventIDs []string, entities []int) (map[string][]calendar.Attendee, error) {
	args := m.Called(ctx, eventIDs, entities)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string][]calendar.Attendee), args.Error(1)
}

// LoadEvent implements the CalendarStorage interface
func (m *MockStorage) LoadEvent(ctx context.Context, eventID string, fields []calendar.EventField) (*calendar.Event, error) {
	args := m.Called(ctx, eventID, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*calendar.Event), args.Error(1)
}

// LoadException implements the CalendarStorage interface
func (m *MockStorage) LoadException(ctx context.Context, seriesID string, rid calendar.RecurrenceID, fields []calendar.EventField) (*calendar.Event, error) {
	args := m.Called(ctx, seriesID, rid, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*calendar.Event), args.Error(1)
}

// --- Helper methods for creating test data ---

// NewMockEvent creates a test event owned by the given calendar user.
func NewMockEvent(summary string, owner int, start, end time.Time) calendar.Event {
	id := uuid.NewString()
	return calendar.Event{
		ID:           id,
		UID:          id,
		FolderID:     "cal-" + id[:8],
		Summary:      summary,
		CalendarUser: &calendar.CalendarUser{Entity: owner},
		Transp:       calendar.TranspOpaque,
		Start:        start,
		End:          end,
	}
}

// NewMockSeries creates a test series master with the given RRULE.
func NewMockSeries(summary string, owner int, start, end time.Time, rrule string) calendar.Event {
	event := NewMockEvent(summary, owner, start, end)
	event.SeriesID = event.ID
	event.RecurrenceRule = rrule
	return event
}

// NewMockAttendee creates an internal individual attendee.
func NewMockAttendee(entity int, uri string) calendar.Attendee {
	return calendar.Attendee{
		Entity:   entity,
		URI:      uri,
		CUType:   calendar.UserIndividual,
		PartStat: calendar.PartStatAccepted,
		Internal: true,
	}
}
