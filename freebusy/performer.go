package freebusy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/samber/mo"

	"github.com/chronos-cal/chronos/calendar"
	"github.com/chronos-cal/chronos/recurrence"
	"github.com/chronos-cal/chronos/storage"
)

// Result carries the free/busy intervals determined for one requested
// attendee, plus any non-fatal warnings specific to that attendee.
type Result struct {
	Times    []FreeBusyTime
	Warnings []error
}

// Performer answers free/busy queries for a set of requested attendees. It
// queries the session tenant directly and, when configured, resolves
// external user attendees to foreign tenants and queries those too. Each
// call is tenant-scoped and independent; the performer holds no mutable
// state across invocations.
type Performer struct {
	storage  storage.CalendarStorage
	provider storage.TenantStorageProvider
	resolver *IdentityResolver
	engine   *recurrence.Engine
	config   Config
	logger   *slog.Logger
}

// NewPerformer creates a Performer. provider may be nil, which disables
// cross-tenant lookups; a nil logger discards log output.
func NewPerformer(st storage.CalendarStorage, provider storage.TenantStorageProvider, resolver *IdentityResolver, engine *recurrence.Engine, config Config, logger *slog.Logger) *Performer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if engine == nil {
		engine = recurrence.NewEngine()
	}
	if resolver == nil {
		resolver = NewIdentityResolver(mo.None[IdentityResolutionService]())
	}
	return &Performer{storage: st, provider: provider, resolver: resolver, engine: engine, config: config, logger: logger}
}

// Perform determines the free/busy times of every requested attendee within
// [from, until). With merge set, overlapping intervals are collapsed to the
// most conflicting classification. The result holds one entry per requested
// attendee; attendees without determinable data carry a warning instead.
func (p *Performer) Perform(ctx context.Context, session *Session, attendees []calendar.Attendee, from, until time.Time, merge bool) (map[calendar.Attendee]Result, error) {
	results := make(map[calendar.Attendee]Result, len(attendees))
	if len(attendees) == 0 {
		return results, nil
	}
	var internal []calendar.Attendee
	externalByAddress := make(map[string]calendar.Attendee)
	for _, a := range attendees {
		results[a] = Result{}
		if calendar.IsInternal(a) {
			internal = append(internal, a)
		} else if address := calendar.MailAddress(a.URI); address != "" {
			externalByAddress[address] = a
		}
	}

	evaluator := NewEvaluator(p.config, session)
	include := func(event *calendar.Event, attendee calendar.Attendee) bool {
		return evaluator.IsVisibleForAttendee(event, attendee)
	}
	loader := NewOverlapLoader(p.storage, p.logger)
	perAttendee, err := loader.LoadPerAttendee(ctx, internal, from, until, include, session.UserID)
	if err != nil {
		return nil, err
	}
	for attendee, events := range perAttendee {
		result := p.deriveTimes(session, attendee, events, from, until, merge)
		if p.concealedFromViewer(session, attendee) {
			result.Times = nil
			result.Warnings = append(result.Warnings, fmt.Errorf("%w: %s", ErrVisibilityRestricted, attendee.URI))
		}
		results[attendee] = result
	}

	if len(externalByAddress) > 0 && p.provider != nil && p.config.CrossTenantFreeBusy(session.TenantID) {
		p.lookupCrossTenant(ctx, session, externalByAddress, from, until, merge, results)
	}

	// Attendees that neither tenant-local nor cross-tenant lookup served.
	for _, a := range attendees {
		if result := results[a]; result.Times == nil && len(result.Warnings) == 0 && !calendar.IsInternal(a) {
			result.Warnings = append(result.Warnings, fmt.Errorf("%w: %s", ErrFreeBusyUnavailable, a.URI))
			results[a] = result
		}
	}
	return results, nil
}

// concealedFromViewer reports whether the attendee's configured preference
// hides their free/busy data from this viewer. Users always see themselves.
func (p *Performer) concealedFromViewer(session *Session, attendee calendar.Attendee) bool {
	if attendee.Entity == session.UserID {
		return false
	}
	visibility, err := p.config.FreeBusyVisibility(session.TenantID, attendee.Entity)
	if err != nil {
		session.warn(fmt.Errorf("free/busy visibility lookup for entity %d: %w", attendee.Entity, err))
		return false
	}
	return visibility == VisibilityNone
}

// deriveTimes turns the attendee's overlapping events into clamped free/busy
// intervals, expanding series masters into their in-window instances.
func (p *Performer) deriveTimes(session *Session, attendee calendar.Attendee, events []calendar.Event, from, until time.Time, merge bool) Result {
	var result Result
	appendInterval := func(event *calendar.Event) {
		interval := IntervalFor(event, attendee, session)
		if interval.ClampToWindow(from, until) {
			result.Times = append(result.Times, interval)
		}
	}
	for i := range events {
		event := &events[i]
		if calendar.IsSeriesMaster(event) {
			// Pull the expansion window back by one event duration so
			// instances straddling the window start are kept.
			duration := event.End.Sub(event.Start)
			occurrences, err := p.engine.Occurrences(event, from.Add(-duration), until)
			if err != nil {
				session.warn(fmt.Errorf("expand series %s: %w", event.SeriesID, err))
				continue
			}
			for j := range occurrences {
				appendInterval(&occurrences[j])
			}
			continue
		}
		appendInterval(event)
	}
	if result.Times == nil {
		result.Times = []FreeBusyTime{}
	}
	if merge && len(result.Times) > 1 {
		result.Times = Merge(result.Times)
	}
	return result
}

// lookupCrossTenant resolves external user attendees to foreign tenants and
// collects their free/busy data tenant by tenant. Failures never abort the
// overall operation; they degrade to warnings.
func (p *Performer) lookupCrossTenant(ctx context.Context, session *Session, byAddress map[string]calendar.Attendee, from, until time.Time, merge bool, results map[calendar.Attendee]Result) {
	grouped, err := p.resolver.Resolve(ctx, byAddress)
	if err != nil {
		session.warn(fmt.Errorf("cross-tenant identity resolution: %w", err))
		return
	}
	for tenantID, resolved := range grouped {
		if !p.config.CrossTenantFreeBusy(tenantID) {
			continue
		}
		// Only users disclosing their free/busy data beyond their own
		// tenant are queried; the rest get a restricted-visibility warning.
		var considered []calendar.Attendee
		for res := range resolved {
			visibility, err := p.config.FreeBusyVisibility(tenantID, res.Entity)
			if err != nil {
				session.warn(fmt.Errorf("free/busy visibility lookup in tenant %d: %w", tenantID, err))
				continue
			}
			if visibility != VisibilityAll {
				original := resolved[res]
				result := results[original]
				result.Warnings = append(result.Warnings, fmt.Errorf("%w: %s", ErrVisibilityRestricted, original.URI))
				results[original] = result
				continue
			}
			considered = append(considered, res)
		}
		if len(considered) == 0 {
			continue
		}
		err := storage.WithTenantStorage(ctx, p.provider, tenantID, func(st storage.CalendarStorage) error {
			loader := NewOverlapLoader(st, p.logger)
			include := func(event *calendar.Event, attendee calendar.Attendee) bool {
				// No viewer identity exists in the foreign tenant; only the
				// outline-visible classifications count.
				return IsVisibleToViewer(event, 0, session.maskUID()) && calendar.IncludeForFreeBusy(event, attendee)
			}
			perResolved, err := loader.LoadPerAttendee(ctx, considered, from, until, include)
			if err != nil {
				return err
			}
			for res, events := range perResolved {
				original := resolved[res]
				result := p.deriveTimes(session, res, events, from, until, merge)
				for i := range result.Times {
					result.Times[i].Event = asExternalEvent(result.Times[i].Event)
				}
				results[original] = result
			}
			return nil
		})
		if err != nil {
			session.warn(fmt.Errorf("free/busy lookup in tenant %d: %w", tenantID, err))
		}
	}
}

// asExternalEvent strips tenant-local identifiers from an event loaded in a
// foreign tenant; they are meaningless outside that tenant.
func asExternalEvent(event *calendar.Event) *calendar.Event {
	if event == nil {
		return nil
	}
	external := *event
	external.ID = ""
	external.SeriesID = ""
	external.FolderID = ""
	external.Attendees = nil
	return &external
}
