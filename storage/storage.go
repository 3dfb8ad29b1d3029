// Package storage declares the calendar storage collaborator consumed by the
// free/busy and recurrence components, together with the tenant-scoped
// acquisition primitive. Backends (SQLite, in-memory) live in subpackages.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/chronos-cal/chronos/calendar"
)

var (
	// ErrNotFound is returned when a requested event doesn't exist.
	ErrNotFound = errors.New("event not found")
	// ErrInvalidInput is returned when the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input parameters")
	// ErrStorageUnavailable is returned when the storage backend is unavailable.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// SearchOptions bounds a SearchOverlappingEvents call.
type SearchOptions struct {
	// From and Until delimit the half-open window [From, Until).
	From  time.Time
	Until time.Time
	// IncludeTransparent keeps TRANSPARENT events in the result. The filter
	// is applied by the search itself so excluded events never occupy
	// hydration bandwidth.
	IncludeTransparent bool
	// Fields restricts which event properties the returned skeletons carry.
	// Nil loads everything.
	Fields []calendar.EventField
}

// CalendarStorage is a tenant-scoped storage handle. Implementations must
// use the error values provided by this package.
type CalendarStorage interface {
	// SearchOverlappingEvents returns skeletons of events overlapping the
	// window in which any of the given entities participates. Series
	// masters whose rule may generate instances in the window are included.
	SearchOverlappingEvents(ctx context.Context, entities []int, opts SearchOptions) ([]calendar.Event, error)
	// LoadAttendees bulk-hydrates attendee rows for the given events,
	// restricted to the given entities. The result maps event id to the
	// attendee list in storage order.
	LoadAttendees(ctx context.Context, eventIDs []string, entities []int) (map[string][]calendar.Attendee, error)
	// LoadEvent loads a single event, restricted to fields (nil for all).
	LoadEvent(ctx context.Context, eventID string, fields []calendar.EventField) (*calendar.Event, error)
	// LoadException loads the stored change exception of a series at the
	// given recurrence id.
	LoadException(ctx context.Context, seriesID string, rid calendar.RecurrenceID, fields []calendar.EventField) (*calendar.Event, error)
}

// ReleaseFunc returns a tenant storage handle to its provider.
type ReleaseFunc func() error

// TenantStorageProvider hands out tenant-scoped storage handles.
type TenantStorageProvider interface {
	// AcquireStorage opens a storage handle scoped to the given tenant.
	// The returned release function must be called exactly once.
	AcquireStorage(ctx context.Context, tenantID int) (CalendarStorage, ReleaseFunc, error)
}

// WithTenantStorage runs fn against a storage handle scoped to tenantID and
// releases the handle regardless of outcome. A release failure surfaces only
// when fn itself succeeded.
func WithTenantStorage(ctx context.Context, provider TenantStorageProvider, tenantID int, fn func(CalendarStorage) error) (err error) {
	st, release, err := provider.AcquireStorage(ctx, tenantID)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := release(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(st)
}
