package recurrence

import (
	"context"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/chronos-cal/chronos/calendar"
	"github.com/chronos-cal/chronos/storage"
)

func resolverMaster() *calendar.Event {
	return &calendar.Event{
		ID:             "series",
		SeriesID:       "series",
		UID:            "series-uid",
		FolderID:       "cal-1",
		Summary:        "standup",
		Transp:         calendar.TranspOpaque,
		Start:          time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		End:            time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC),
		RecurrenceRule: "FREQ=DAILY",
	}
}

func ridAt(day int) calendar.RecurrenceID {
	return calendar.NewRecurrenceID(time.Date(2026, 3, day, 9, 0, 0, 0, time.UTC))
}

func exceptionAt(day int, start, end time.Time) *calendar.Event {
	rid := ridAt(day)
	return &calendar.Event{
		ID:           "series-ex",
		SeriesID:     "series",
		UID:          "series-uid",
		FolderID:     "cal-1",
		Summary:      "standup (moved)",
		Transp:       calendar.TranspOpaque,
		Start:        start,
		End:          end,
		RecurrenceID: &rid,
	}
}

func TestResolveVirtualInstance(t *testing.T) {
	st := new(storage.MockStorage)
	st.On("LoadEvent", mock.Anything, "series", mock.Anything).Return(resolverMaster(), nil)
	resolver := NewInfoResolver(st, nil, nil)

	info, err := resolver.Resolve(context.Background(), "cal-1", "series", mo.Some(ridAt(5)))
	require.NoError(t, err)
	assert.False(t, info.Overridden)
	assert.False(t, info.Rescheduled)
	require.NotNil(t, info.Master)
	require.NotNil(t, info.Occurrence)
	assert.Equal(t, "series", info.Occurrence.ID)
	assert.True(t, info.Occurrence.Start.Equal(ridAt(5).Time))
}

func TestResolveMasterRequiresRecurrenceID(t *testing.T) {
	st := new(storage.MockStorage)
	st.On("LoadEvent", mock.Anything, "series", mock.Anything).Return(resolverMaster(), nil)
	resolver := NewInfoResolver(st, nil, nil)

	_, err := resolver.Resolve(context.Background(), "", "series", mo.None[calendar.RecurrenceID]())
	assert.ErrorIs(t, err, ErrInvalidRecurrenceID)
}

func TestResolveRescheduledException(t *testing.T) {
	master := resolverMaster()
	master.ChangeExceptionDates = []calendar.RecurrenceID{ridAt(5)}
	shifted := exceptionAt(5,
		time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 5, 14, 30, 0, 0, time.UTC))

	t.Run("addressed via master", func(t *testing.T) {
		st := new(storage.MockStorage)
		st.On("LoadEvent", mock.Anything, "series", mock.Anything).Return(master, nil)
		st.On("LoadException", mock.Anything, "series", mock.Anything, mock.Anything).Return(shifted, nil)
		resolver := NewInfoResolver(st, nil, nil)

		info, err := resolver.Resolve(context.Background(), "cal-1", "series", mo.Some(ridAt(5)))
		require.NoError(t, err)
		assert.True(t, info.Overridden)
		assert.True(t, info.Rescheduled)
		assert.Equal(t, "series-ex", info.Occurrence.ID)
	})

	t.Run("addressed via exception", func(t *testing.T) {
		st := new(storage.MockStorage)
		st.On("LoadEvent", mock.Anything, "series-ex", mock.Anything).Return(shifted, nil)
		st.On("LoadEvent", mock.Anything, "series", mock.Anything).Return(master, nil)
		resolver := NewInfoResolver(st, nil, nil)

		// Identical verdict no matter which id addresses the instance.
		info, err := resolver.Resolve(context.Background(), "cal-1", "series-ex", mo.None[calendar.RecurrenceID]())
		require.NoError(t, err)
		assert.True(t, info.Overridden)
		assert.True(t, info.Rescheduled)
		require.NotNil(t, info.Master)
		assert.Equal(t, "series", info.Master.ID)
	})
}

func TestResolveOverriddenButNotRescheduled(t *testing.T) {
	master := resolverMaster()
	master.ChangeExceptionDates = []calendar.RecurrenceID{ridAt(5)}
	// Only the summary changed; the schedule still follows the rule.
	sameTime := exceptionAt(5,
		time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC))

	st := new(storage.MockStorage)
	st.On("LoadEvent", mock.Anything, "series-ex", mock.Anything).Return(sameTime, nil)
	st.On("LoadEvent", mock.Anything, "series", mock.Anything).Return(master, nil)
	resolver := NewInfoResolver(st, nil, nil)

	info, err := resolver.Resolve(context.Background(), "", "series-ex", mo.None[calendar.RecurrenceID]())
	require.NoError(t, err)
	assert.True(t, info.Overridden)
	assert.False(t, info.Rescheduled)
}

func TestResolveTranspChangeCountsAsReschedule(t *testing.T) {
	master := resolverMaster()
	master.ChangeExceptionDates = []calendar.RecurrenceID{ridAt(5)}
	freed := exceptionAt(5,
		time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC))
	freed.Transp = calendar.TranspTransparent

	st := new(storage.MockStorage)
	st.On("LoadEvent", mock.Anything, "series-ex", mock.Anything).Return(freed, nil)
	st.On("LoadEvent", mock.Anything, "series", mock.Anything).Return(master, nil)
	resolver := NewInfoResolver(st, nil, nil)

	info, err := resolver.Resolve(context.Background(), "", "series-ex", mo.None[calendar.RecurrenceID]())
	require.NoError(t, err)
	assert.True(t, info.Overridden)
	assert.True(t, info.Rescheduled)
}

func TestResolveOrphanedException(t *testing.T) {
	orphan := exceptionAt(5,
		time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC))

	st := new(storage.MockStorage)
	st.On("LoadEvent", mock.Anything, "series-ex", mock.Anything).Return(orphan, nil)
	st.On("LoadEvent", mock.Anything, "series", mock.Anything).Return(nil, storage.ErrNotFound)
	resolver := NewInfoResolver(st, nil, nil)

	// Without the master the original timing cannot be verified; the
	// conservative verdict is overridden and rescheduled.
	info, err := resolver.Resolve(context.Background(), "", "series-ex", mo.None[calendar.RecurrenceID]())
	require.NoError(t, err)
	assert.True(t, info.Overridden)
	assert.True(t, info.Rescheduled)
	assert.Nil(t, info.Master)
	require.NotNil(t, info.Occurrence)
}

func TestResolveSingularEvent(t *testing.T) {
	st := new(storage.MockStorage)
	st.On("LoadEvent", mock.Anything, "single", mock.Anything).Return(&calendar.Event{
		ID: "single", FolderID: "cal-1",
		Start: time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC),
	}, nil)
	resolver := NewInfoResolver(st, nil, nil)

	_, err := resolver.Resolve(context.Background(), "", "single", mo.None[calendar.RecurrenceID]())
	assert.ErrorIs(t, err, ErrEventRecurrenceNotFound)
}

func TestResolveUnknownEvent(t *testing.T) {
	st := new(storage.MockStorage)
	st.On("LoadEvent", mock.Anything, "missing", mock.Anything).Return(nil, storage.ErrNotFound)
	resolver := NewInfoResolver(st, nil, nil)

	_, err := resolver.Resolve(context.Background(), "", "missing", mo.None[calendar.RecurrenceID]())
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestResolveFolderMismatch(t *testing.T) {
	st := new(storage.MockStorage)
	st.On("LoadEvent", mock.Anything, "series", mock.Anything).Return(resolverMaster(), nil)
	resolver := NewInfoResolver(st, nil, nil)

	_, err := resolver.Resolve(context.Background(), "someone-elses-folder", "series", mo.Some(ridAt(5)))
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestResolveNonexistentOccurrence(t *testing.T) {
	st := new(storage.MockStorage)
	st.On("LoadEvent", mock.Anything, "series", mock.Anything).Return(resolverMaster(), nil)
	resolver := NewInfoResolver(st, nil, nil)

	offSlot := calendar.NewRecurrenceID(time.Date(2026, 3, 5, 11, 0, 0, 0, time.UTC))
	_, err := resolver.Resolve(context.Background(), "", "series", mo.Some(offSlot))
	assert.ErrorIs(t, err, ErrEventRecurrenceNotFound)
}

func TestResolveExceptionRecurrenceIDMismatch(t *testing.T) {
	shifted := exceptionAt(5,
		time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 5, 14, 30, 0, 0, time.UTC))
	st := new(storage.MockStorage)
	st.On("LoadEvent", mock.Anything, "series-ex", mock.Anything).Return(shifted, nil)
	resolver := NewInfoResolver(st, nil, nil)

	_, err := resolver.Resolve(context.Background(), "", "series-ex", mo.Some(ridAt(6)))
	assert.ErrorIs(t, err, ErrEventRecurrenceNotFound)
}

func TestResolveDeletedOccurrence(t *testing.T) {
	master := resolverMaster()
	master.DeleteExceptionDates = []calendar.RecurrenceID{ridAt(5)}
	st := new(storage.MockStorage)
	st.On("LoadEvent", mock.Anything, "series", mock.Anything).Return(master, nil)
	resolver := NewInfoResolver(st, nil, nil)

	_, err := resolver.Resolve(context.Background(), "", "series", mo.Some(ridAt(5)))
	assert.ErrorIs(t, err, ErrEventRecurrenceNotFound)
}
