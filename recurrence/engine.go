// Package recurrence expands recurrence rules of series masters into
// concrete occurrences and resolves the identity of event/recurrence-id
// pairs (master, generated occurrence, overridden or rescheduled exception).
package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/chronos-cal/chronos/calendar"
)

// Engine materializes virtual occurrences of series master events.
type Engine struct{}

// NewEngine creates a new recurrence engine instance
func NewEngine() *Engine {
	return &Engine{}
}

// OccurrenceAt materializes the virtual occurrence of master at rid. It
// returns nil if the rule generates no instance at that position or the
// instance is removed by a delete exception. Change exceptions are ignored
// on purpose: callers use this to recompute the idealized, rule-generated
// timing of an overridden instance.
func (e *Engine) OccurrenceAt(master *calendar.Event, rid calendar.RecurrenceID) (*calendar.Event, error) {
	if master.RecurrenceRule == "" {
		return nil, nil
	}
	if calendar.ContainsRecurrenceID(master.DeleteExceptionDates, rid) {
		return nil, nil
	}
	times, err := e.expand(master, rid.Time.Add(-time.Second), rid.Time.Add(2*time.Second))
	if err != nil {
		return nil, err
	}
	for _, t := range times {
		if calendar.NewRecurrenceID(t).Matches(rid) {
			return e.materialize(master, t), nil
		}
	}
	return nil, nil
}

// Occurrences materializes all non-overridden instances of master within
// [from, until). Instances removed by delete exceptions or replaced by
// stored change exceptions are skipped.
func (e *Engine) Occurrences(master *calendar.Event, from, until time.Time) ([]calendar.Event, error) {
	ids, err := e.IterateIDs(master, from, until)
	if err != nil {
		return nil, err
	}
	occurrences := make([]calendar.Event, 0, len(ids))
	for _, rid := range ids {
		if calendar.ContainsRecurrenceID(master.ChangeExceptionDates, rid) {
			continue
		}
		occurrences = append(occurrences, *e.materialize(master, rid.Time))
	}
	return occurrences, nil
}

// IterateIDs returns the recurrence ids of rule-generated instances within
// [from, until), excluding delete exceptions.
func (e *Engine) IterateIDs(master *calendar.Event, from, until time.Time) ([]calendar.RecurrenceID, error) {
	if master.RecurrenceRule == "" {
		return nil, nil
	}
	times, err := e.expand(master, from, until)
	if err != nil {
		return nil, err
	}
	ids := make([]calendar.RecurrenceID, 0, len(times))
	for _, t := range times {
		rid := calendar.NewRecurrenceID(t)
		if calendar.ContainsRecurrenceID(master.DeleteExceptionDates, rid) {
			continue
		}
		ids = append(ids, rid)
	}
	return ids, nil
}

// expand evaluates the master's RRULE within [from, until).
func (e *Engine) expand(master *calendar.Event, from, until time.Time) ([]time.Time, error) {
	dtstart := master.Start.UTC().Format("20060102T150405Z")
	ruleSet, err := rrule.StrToRRuleSet(fmt.Sprintf("DTSTART:%s\nRRULE:%s", dtstart, master.RecurrenceRule))
	if err != nil {
		return nil, fmt.Errorf("failed to parse RRULE %q: %w", master.RecurrenceRule, err)
	}
	// Between is inclusive on both ends; drop instances at the window end to
	// keep [from, until) semantics.
	var times []time.Time
	for _, t := range ruleSet.Between(from, until, true) {
		if t.Before(until) {
			times = append(times, t)
		}
	}
	return times, nil
}

// materialize builds the occurrence event at start time t from the master's
// data. The occurrence keeps the master's identifier so that purely virtual
// instances are recognizable by id == series id.
func (e *Engine) materialize(master *calendar.Event, t time.Time) *calendar.Event {
	occurrence := *master
	rid := calendar.NewRecurrenceID(t)
	occurrence.RecurrenceID = &rid
	occurrence.Start = t
	occurrence.End = t.Add(master.End.Sub(master.Start))
	occurrence.RecurrenceRule = ""
	occurrence.ChangeExceptionDates = nil
	occurrence.DeleteExceptionDates = nil
	return &occurrence
}
