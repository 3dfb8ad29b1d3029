package recurrence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/samber/mo"

	"github.com/chronos-cal/chronos/calendar"
	"github.com/chronos-cal/chronos/storage"
)

var (
	// ErrEventNotFound is returned when the named event is absent or not
	// visible in the requested folder.
	ErrEventNotFound = errors.New("event not found")
	// ErrInvalidRecurrenceID is returned when a series master is addressed
	// without a recurrence id.
	ErrInvalidRecurrenceID = errors.New("invalid recurrence id")
	// ErrEventRecurrenceNotFound is returned when the addressed occurrence
	// does not exist or the event is not part of a recurring series.
	ErrEventRecurrenceNotFound = errors.New("event recurrence not found")
)

// Info describes how an event/recurrence-id pair relates to its series.
type Info struct {
	// Overridden is set when the occurrence is a stored exception rather
	// than a rule-generated instance.
	Overridden bool
	// Rescheduled is set when the override changed the occurrence's
	// effective schedule relative to its rule-generated timing.
	Rescheduled bool
	// Master is the series master, or nil if it is absent or inaccessible.
	Master *calendar.Event
	// Occurrence is the resolved occurrence, always present.
	Occurrence *calendar.Event
}

// InfoResolver classifies recurrence instances via storage lookups and rule
// re-expansion. It is stateless and safe for concurrent use.
type InfoResolver struct {
	storage storage.CalendarStorage
	engine  *Engine
	logger  *slog.Logger
}

// NewInfoResolver creates an InfoResolver over the given tenant storage.
// A nil logger discards log output.
func NewInfoResolver(st storage.CalendarStorage, engine *Engine, logger *slog.Logger) *InfoResolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if engine == nil {
		engine = NewEngine()
	}
	return &InfoResolver{storage: st, engine: engine, logger: logger}
}

// Resolve determines the master/occurrence relationship for the named event.
// folderID, when non-empty, restricts the lookup to events residing in that
// folder. rid addresses a specific instance; it is required when eventID
// names a series master and must match the event's own recurrence id when it
// names a stored exception.
func (r *InfoResolver) Resolve(ctx context.Context, folderID, eventID string, rid mo.Option[calendar.RecurrenceID]) (*Info, error) {
	event, err := r.storage.LoadEvent(ctx, eventID, nil)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
		}
		return nil, err
	}
	if folderID != "" && event.FolderID != folderID {
		return nil, fmt.Errorf("%w: %s in folder %s", ErrEventNotFound, eventID, folderID)
	}
	switch {
	case calendar.IsSeriesMaster(event):
		return r.resolveFromMaster(ctx, event, rid)
	case calendar.IsSeriesException(event):
		return r.resolveFromException(ctx, event, rid)
	default:
		return nil, fmt.Errorf("%w: event %s is not recurring", ErrEventRecurrenceNotFound, eventID)
	}
}

func (r *InfoResolver) resolveFromMaster(ctx context.Context, master *calendar.Event, rid mo.Option[calendar.RecurrenceID]) (*Info, error) {
	id, ok := rid.Get()
	if !ok {
		return nil, fmt.Errorf("%w: series master %s requires a recurrence id", ErrInvalidRecurrenceID, master.ID)
	}
	var occurrence *calendar.Event
	if calendar.ContainsRecurrenceID(master.ChangeExceptionDates, id) {
		stored, err := r.storage.LoadException(ctx, master.SeriesID, id, nil)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		occurrence = stored
	} else {
		generated, err := r.engine.OccurrenceAt(master, id)
		if err != nil {
			return nil, err
		}
		occurrence = generated
	}
	if occurrence == nil || occurrence.RecurrenceID == nil || !occurrence.RecurrenceID.Matches(id) {
		return nil, fmt.Errorf("%w: %s at %s", ErrEventRecurrenceNotFound, master.ID, id)
	}
	return r.classify(master, occurrence)
}

func (r *InfoResolver) resolveFromException(ctx context.Context, exception *calendar.Event, rid mo.Option[calendar.RecurrenceID]) (*Info, error) {
	if id, ok := rid.Get(); ok && !exception.RecurrenceID.Matches(id) {
		return nil, fmt.Errorf("%w: %s at %s", ErrEventRecurrenceNotFound, exception.ID, id)
	}
	master, err := r.storage.LoadEvent(ctx, exception.SeriesID, nil)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		r.logger.Debug("series master not reachable, treating exception as orphaned",
			"event", exception.ID, "series", exception.SeriesID)
		master = nil
	}
	return r.classify(master, exception)
}

// classify derives the override/reschedule verdict for a (master, occurrence)
// pair.
func (r *InfoResolver) classify(master, occurrence *calendar.Event) (*Info, error) {
	if master == nil {
		// Without the master's rule the original timing cannot be verified;
		// report the orphaned exception as rescheduled.
		return &Info{Overridden: true, Rescheduled: true, Occurrence: occurrence}, nil
	}
	if occurrence.ID == master.SeriesID {
		// Purely virtual instance, schedule follows the rule by construction.
		return &Info{Master: master, Occurrence: occurrence}, nil
	}
	idealized, err := r.engine.OccurrenceAt(master, *occurrence.RecurrenceID)
	if err != nil {
		return nil, err
	}
	rescheduled := idealized == nil || isRescheduled(idealized, occurrence)
	return &Info{Overridden: true, Rescheduled: rescheduled, Master: master, Occurrence: occurrence}, nil
}

// isRescheduled compares the scheduling-relevant fields of the idealized
// rule-generated occurrence against the stored exception.
func isRescheduled(idealized, actual *calendar.Event) bool {
	if !idealized.Start.Equal(actual.Start) || !idealized.End.Equal(actual.End) {
		return true
	}
	return idealized.Transp != actual.Transp
}
