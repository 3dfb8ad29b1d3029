// Package freebusy resolves which events count toward which attendees'
// free/busy exposure within a time window, including cross-tenant lookups
// for external attendees that resolve to users of other tenants.
package freebusy

import (
	"errors"
	"log/slog"
	"time"

	"github.com/samber/mo"
)

var (
	// ErrProtocolMismatch is returned when the identity-resolution service
	// violates its contract by answering with an unexpected result count.
	ErrProtocolMismatch = errors.New("identity resolution returned unexpected result count")
	// ErrVisibilityRestricted marks attendees whose configured free/busy
	// visibility conceals their data from the viewer.
	ErrVisibilityRestricted = errors.New("free/busy visibility restricted")
	// ErrFreeBusyUnavailable marks attendees for whom no free/busy data
	// could be determined.
	ErrFreeBusyUnavailable = errors.New("free/busy data not available")
)

// Visibility is a user's configured free/busy disclosure preference.
type Visibility string

const (
	// VisibilityAll discloses free/busy data to everybody, including
	// viewers from foreign tenants.
	VisibilityAll Visibility = "all"
	// VisibilityInternal discloses free/busy data within the own tenant only.
	VisibilityInternal Visibility = "internal"
	// VisibilityNone conceals free/busy data; only folder access grants a
	// view on individual events.
	VisibilityNone Visibility = "none"
)

// Diagnostics collects non-fatal warnings raised while evaluating free/busy
// data. Per-item evaluation failures are recorded here and the overall
// operation continues.
type Diagnostics struct {
	warnings []error
}

// Warn records a non-fatal warning. Safe on a nil receiver.
func (d *Diagnostics) Warn(err error) {
	if d == nil || err == nil {
		return
	}
	d.warnings = append(d.warnings, err)
}

// Warnings returns the recorded warnings in order.
func (d *Diagnostics) Warnings() []error {
	if d == nil {
		return nil
	}
	return d.warnings
}

// Session is the viewer context of a free/busy evaluation.
type Session struct {
	// UserID is the acting user's entity id in TenantID.
	UserID int
	// TenantID is the tenant the session operates in.
	TenantID int
	// Timezone is the session's display timezone; nil falls back to UTC.
	Timezone *time.Location
	// MaskUID names an event UID to provisionally hide from results, e.g.
	// one currently being edited.
	MaskUID mo.Option[string]
	// Diagnostics receives non-fatal warnings; nil discards them.
	Diagnostics *Diagnostics
	// Logger receives debug output; nil discards it.
	Logger *slog.Logger
}

func (s *Session) location() *time.Location {
	if s != nil && s.Timezone != nil {
		return s.Timezone
	}
	return time.UTC
}

func (s *Session) warn(err error) {
	if s != nil {
		s.Diagnostics.Warn(err)
	}
}

func (s *Session) maskUID() mo.Option[string] {
	if s == nil {
		return mo.None[string]()
	}
	return s.MaskUID
}
