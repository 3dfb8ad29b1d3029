// Package sqlite provides a SQLite-backed CalendarStorage. One database
// holds any number of tenants; handles acquired through the provider are
// scoped to a single tenant, so identifiers never leak across partitions.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/chronos-cal/chronos/calendar"
	"github.com/chronos-cal/chronos/storage"

	_ "modernc.org/sqlite"
)

// Provider opens tenant-scoped storage handles over a shared database.
type Provider struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database and initializes the schema.
func Open(path string) (*Provider, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	p := &Provider{db: db}
	if err := p.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return p, nil
}

// Close closes the database connection.
func (p *Provider) Close() error { return p.db.Close() }

// AcquireStorage implements storage.TenantStorageProvider.
func (p *Provider) AcquireStorage(_ context.Context, tenantID int) (storage.CalendarStorage, storage.ReleaseFunc, error) {
	if tenantID <= 0 {
		return nil, nil, fmt.Errorf("%w: tenant id %d", storage.ErrInvalidInput, tenantID)
	}
	return &Store{db: p.db, tenant: tenantID}, func() error { return nil }, nil
}

// Tenant returns a storage handle scoped to the given tenant.
func (p *Provider) Tenant(tenantID int) *Store {
	return &Store{db: p.db, tenant: tenantID}
}

func (p *Provider) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		tenant_id      INTEGER NOT NULL,
		id             TEXT NOT NULL,
		series_id      TEXT NOT NULL DEFAULT '',
		uid            TEXT NOT NULL DEFAULT '',
		folder_id      TEXT NOT NULL DEFAULT '',
		summary        TEXT NOT NULL DEFAULT '',
		location       TEXT NOT NULL DEFAULT '',
		owner_entity   INTEGER NOT NULL DEFAULT 0,
		organizer_uri  TEXT NOT NULL DEFAULT '',
		organizer_id   INTEGER NOT NULL DEFAULT 0,
		classification TEXT NOT NULL DEFAULT '',
		status         TEXT NOT NULL DEFAULT '',
		transp         TEXT NOT NULL DEFAULT '',
		start_ts       INTEGER NOT NULL,
		end_ts         INTEGER NOT NULL,
		floating       INTEGER NOT NULL DEFAULT 0,
		rrule          TEXT NOT NULL DEFAULT '',
		recurrence_ts  INTEGER,
		change_exdates TEXT NOT NULL DEFAULT '',
		delete_exdates TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (tenant_id, id)
	);
	CREATE INDEX IF NOT EXISTS idx_events_window ON events(tenant_id, start_ts, end_ts);
	CREATE INDEX IF NOT EXISTS idx_events_series ON events(tenant_id, series_id);

	CREATE TABLE IF NOT EXISTS attendees (
		tenant_id INTEGER NOT NULL,
		event_id  TEXT NOT NULL,
		pos       INTEGER NOT NULL,
		entity    INTEGER NOT NULL DEFAULT 0,
		uri       TEXT NOT NULL DEFAULT '',
		cn        TEXT NOT NULL DEFAULT '',
		cutype    INTEGER NOT NULL DEFAULT 0,
		partstat  TEXT NOT NULL DEFAULT '',
		hidden    INTEGER NOT NULL DEFAULT 0,
		internal  INTEGER NOT NULL DEFAULT 0,
		timezone  TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (tenant_id, event_id, pos)
	);
	CREATE INDEX IF NOT EXISTS idx_attendees_entity ON attendees(tenant_id, entity);
	`
	_, err := p.db.Exec(schema)
	return err
}

// Store is a tenant-scoped handle implementing storage.CalendarStorage.
type Store struct {
	db     *sql.DB
	tenant int
}

const eventColumns = `id, series_id, uid, folder_id, summary, location, owner_entity,
	organizer_uri, organizer_id, classification, status, transp,
	start_ts, end_ts, floating, rrule, recurrence_ts, change_exdates, delete_exdates`

// InsertEvent stores an event together with its attendee rows.
func (s *Store) InsertEvent(ctx context.Context, event *calendar.Event) error {
	if event.ID == "" {
		return fmt.Errorf("%w: event without id", storage.ErrInvalidInput)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var recurrenceTS interface{}
	if event.RecurrenceID != nil {
		recurrenceTS = event.RecurrenceID.Time.Unix()
	}
	var ownerEntity int
	if event.CalendarUser != nil {
		ownerEntity = event.CalendarUser.Entity
	}
	var organizerURI string
	var organizerID int
	if event.Organizer != nil {
		organizerURI = event.Organizer.URI
		organizerID = event.Organizer.Entity
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (tenant_id, `+eventColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.tenant, event.ID, event.SeriesID, event.UID, event.FolderID, event.Summary, event.Location,
		ownerEntity, organizerURI, organizerID, string(event.Classification), string(event.Status),
		string(event.Transp), event.Start.Unix(), event.End.Unix(), boolToInt(event.Floating),
		event.RecurrenceRule, recurrenceTS,
		encodeExdates(event.ChangeExceptionDates), encodeExdates(event.DeleteExceptionDates))
	if err != nil {
		return fmt.Errorf("insert event %s: %w", event.ID, err)
	}
	for pos, a := range event.Attendees {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO attendees (tenant_id, event_id, pos, entity, uri, cn, cutype, partstat, hidden, internal, timezone)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.tenant, event.ID, pos, a.Entity, a.URI, a.CN, int(a.CUType), string(a.PartStat),
			boolToInt(a.Hidden), boolToInt(a.Internal), a.Timezone)
		if err != nil {
			return fmt.Errorf("insert attendee of %s: %w", event.ID, err)
		}
	}
	return tx.Commit()
}

// SearchOverlappingEvents implements storage.CalendarStorage. The window and
// transparency filters run in the query; series masters with a rule are
// matched on the rule-covered span.
func (s *Store) SearchOverlappingEvents(ctx context.Context, entities []int, opts storage.SearchOptions) ([]calendar.Event, error) {
	if len(entities) == 0 {
		return nil, fmt.Errorf("%w: no entities", storage.ErrInvalidInput)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(entities)), ",")
	query := `SELECT DISTINCT e.` + strings.ReplaceAll(eventColumns, ", ", ", e.") + `
		FROM events e
		LEFT JOIN attendees a ON a.tenant_id = e.tenant_id AND a.event_id = e.id
		WHERE e.tenant_id = ?
		  AND (a.entity IN (` + placeholders + `) OR e.owner_entity IN (` + placeholders + `))
		  AND e.start_ts < ?
		  AND (e.end_ts > ? OR (e.rrule != '' AND e.series_id = e.id))`
	args := make([]interface{}, 0, 2*len(entities)+4)
	args = append(args, s.tenant)
	for _, entity := range entities {
		args = append(args, entity)
	}
	for _, entity := range entities {
		args = append(args, entity)
	}
	args = append(args, opts.Until.Unix(), opts.From.Unix())
	if !opts.IncludeTransparent {
		query += ` AND e.transp != ?`
		args = append(args, string(calendar.TranspTransparent))
	}
	query += ` ORDER BY e.start_ts, e.id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search events: %w", err)
	}
	defer rows.Close()
	var events []calendar.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *calendar.CopyEvent(event, opts.Fields))
	}
	return events, rows.Err()
}

// LoadAttendees implements storage.CalendarStorage.
func (s *Store) LoadAttendees(ctx context.Context, eventIDs []string, entities []int) (map[string][]calendar.Attendee, error) {
	result := make(map[string][]calendar.Attendee, len(eventIDs))
	if len(eventIDs) == 0 || len(entities) == 0 {
		return result, nil
	}
	eventPlaceholders := strings.TrimSuffix(strings.Repeat("?,", len(eventIDs)), ",")
	entityPlaceholders := strings.TrimSuffix(strings.Repeat("?,", len(entities)), ",")
	args := make([]interface{}, 0, len(eventIDs)+len(entities)+1)
	args = append(args, s.tenant)
	for _, id := range eventIDs {
		args = append(args, id)
	}
	for _, entity := range entities {
		args = append(args, entity)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, entity, uri, cn, cutype, partstat, hidden, internal, timezone
		 FROM attendees
		 WHERE tenant_id = ? AND event_id IN (`+eventPlaceholders+`) AND entity IN (`+entityPlaceholders+`)
		 ORDER BY event_id, pos`, args...)
	if err != nil {
		return nil, fmt.Errorf("load attendees: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var eventID string
		var a calendar.Attendee
		var cutype, hidden, internal int
		var partstat string
		if err := rows.Scan(&eventID, &a.Entity, &a.URI, &a.CN, &cutype, &partstat, &hidden, &internal, &a.Timezone); err != nil {
			return nil, fmt.Errorf("scan attendee: %w", err)
		}
		a.CUType = calendar.CalendarUserType(cutype)
		a.PartStat = calendar.ParticipationStatus(partstat)
		a.Hidden = hidden != 0
		a.Internal = internal != 0
		result[eventID] = append(result[eventID], a)
	}
	return result, rows.Err()
}

// LoadEvent implements storage.CalendarStorage. The full attendee list is
// part of a single event load.
func (s *Store) LoadEvent(ctx context.Context, eventID string, fields []calendar.EventField) (*calendar.Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE tenant_id = ? AND id = ?`, s.tenant, eventID)
	event, err := scanEvent(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, eventID)
		}
		return nil, err
	}
	if err := s.attachAttendees(ctx, event); err != nil {
		return nil, err
	}
	return calendar.CopyEvent(event, fields), nil
}

// LoadException implements storage.CalendarStorage.
func (s *Store) LoadException(ctx context.Context, seriesID string, rid calendar.RecurrenceID, fields []calendar.EventField) (*calendar.Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events
		 WHERE tenant_id = ? AND series_id = ? AND id != series_id AND recurrence_ts = ?`,
		s.tenant, seriesID, rid.Time.Unix())
	event, err := scanEvent(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: exception of %s at %s", storage.ErrNotFound, seriesID, rid)
		}
		return nil, err
	}
	if err := s.attachAttendees(ctx, event); err != nil {
		return nil, err
	}
	return calendar.CopyEvent(event, fields), nil
}

func (s *Store) attachAttendees(ctx context.Context, event *calendar.Event) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity, uri, cn, cutype, partstat, hidden, internal, timezone
		 FROM attendees WHERE tenant_id = ? AND event_id = ? ORDER BY pos`, s.tenant, event.ID)
	if err != nil {
		return fmt.Errorf("load attendees of %s: %w", event.ID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var a calendar.Attendee
		var cutype, hidden, internal int
		var partstat string
		if err := rows.Scan(&a.Entity, &a.URI, &a.CN, &cutype, &partstat, &hidden, &internal, &a.Timezone); err != nil {
			return fmt.Errorf("scan attendee: %w", err)
		}
		a.CUType = calendar.CalendarUserType(cutype)
		a.PartStat = calendar.ParticipationStatus(partstat)
		a.Hidden = hidden != 0
		a.Internal = internal != 0
		event.Attendees = append(event.Attendees, a)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*calendar.Event, error) {
	var event calendar.Event
	var ownerEntity, organizerID, floating int
	var organizerURI, classification, status, transp, changeExdates, deleteExdates string
	var startTS, endTS int64
	var recurrenceTS sql.NullInt64
	err := row.Scan(&event.ID, &event.SeriesID, &event.UID, &event.FolderID, &event.Summary, &event.Location,
		&ownerEntity, &organizerURI, &organizerID, &classification, &status, &transp,
		&startTS, &endTS, &floating, &event.RecurrenceRule, &recurrenceTS, &changeExdates, &deleteExdates)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}
	if ownerEntity != 0 {
		event.CalendarUser = &calendar.CalendarUser{Entity: ownerEntity}
	}
	if organizerURI != "" || organizerID != 0 {
		event.Organizer = &calendar.CalendarUser{Entity: organizerID, URI: organizerURI}
	}
	event.Classification = calendar.Classification(classification)
	event.Status = calendar.EventStatus(status)
	event.Transp = calendar.Transp(transp)
	event.Start = time.Unix(startTS, 0).UTC()
	event.End = time.Unix(endTS, 0).UTC()
	event.Floating = floating != 0
	if recurrenceTS.Valid {
		rid := calendar.NewRecurrenceID(time.Unix(recurrenceTS.Int64, 0))
		event.RecurrenceID = &rid
	}
	event.ChangeExceptionDates = decodeExdates(changeExdates)
	event.DeleteExceptionDates = decodeExdates(deleteExdates)
	return &event, nil
}

func encodeExdates(ids []calendar.RecurrenceID) string {
	if len(ids) == 0 {
		return ""
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id.Time.Unix())
	}
	return strings.Join(parts, ",")
}

func decodeExdates(encoded string) []calendar.RecurrenceID {
	if encoded == "" {
		return nil
	}
	var ids []calendar.RecurrenceID
	for _, part := range strings.Split(encoded, ",") {
		var ts int64
		if _, err := fmt.Sscanf(part, "%d", &ts); err != nil {
			continue
		}
		ids = append(ids, calendar.NewRecurrenceID(time.Unix(ts, 0)))
	}
	return ids
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
