package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"kalender/internal/agenda"
	"kalender/internal/model"
	"kalender/internal/recurrence"
)

const eventColumns = `e.id, e.title, e.description, e.location, e.start_at, e.end_at, e.all_day,
	e.recurrence_type, e.recurrence_rule, e.recurrence_until, e.source_uid`

// eventArgs flattens ev into the insert/update column order.
func eventArgs(ev *model.Event) ([]any, error) {
	recType, recRule, err := recurrence.Encode(ev.Recurrence)
	if err != nil {
		return nil, fmt.Errorf("encode recurrence: %w", err)
	}

	var typ, rule, until, uid sql.NullString
	if recType != "" {
		typ = sql.NullString{String: recType, Valid: true}
		rule = sql.NullString{String: string(recRule), Valid: true}
		if ev.Recurrence.Until != nil {
			until = sql.NullString{String: ev.Recurrence.Until.Format(dateLayout), Valid: true}
		}
	}
	if ev.SourceUID != "" {
		uid = sql.NullString{String: ev.SourceUID, Valid: true}
	}

	return []any{
		ev.Title, ev.Description, ev.Location,
		formatTime(ev.Start), formatTime(ev.End), ev.Start.Unix(), ev.End.Unix(),
		ev.AllDay, typ, rule, until, uid,
	}, nil
}

// CreateEvent stores ev together with its division and participant links.
// Only the IDs of ev.Divisions and ev.Participants are used.
func (s *Storage) CreateEvent(ctx context.Context, ev *model.Event) error {
	args, err := eventArgs(ev)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO events (title, description, location, start_at, end_at, start_unix, end_unix,
				all_day, recurrence_type, recurrence_rule, recurrence_until, source_uid)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			args...,
		)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		id, _ := res.LastInsertId()
		ev.ID = id
		return linkEvent(ctx, tx, ev)
	})
}

func linkEvent(ctx context.Context, tx *sql.Tx, ev *model.Event) error {
	for _, d := range ev.Divisions {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO event_divisions (event_id, division_id) VALUES (?, ?)`, ev.ID, d.ID,
		); err != nil {
			return fmt.Errorf("link division %d: %w", d.ID, err)
		}
	}
	for _, p := range ev.Participants {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO event_participants (event_id, user_id) VALUES (?, ?)`, ev.ID, p.ID,
		); err != nil {
			return fmt.Errorf("link participant %d: %w", p.ID, err)
		}
	}
	return nil
}

// UpsertEventBySourceUID inserts or refreshes an imported event keyed by
// ev.SourceUID and stamps it with syncedAt. Division links are replaced.
func (s *Storage) UpsertEventBySourceUID(ctx context.Context, ev *model.Event, syncedAt time.Time) error {
	if ev.SourceUID == "" {
		return errors.New("upsert event: empty source uid")
	}
	args, err := eventArgs(ev)
	if err != nil {
		return err
	}
	args = append(args, syncedAt.Unix())

	return s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO events (title, description, location, start_at, end_at, start_unix, end_unix,
				all_day, recurrence_type, recurrence_rule, recurrence_until, source_uid, synced_unix)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(source_uid) DO UPDATE SET
				title = excluded.title,
				description = excluded.description,
				location = excluded.location,
				start_at = excluded.start_at,
				end_at = excluded.end_at,
				start_unix = excluded.start_unix,
				end_unix = excluded.end_unix,
				all_day = excluded.all_day,
				recurrence_type = excluded.recurrence_type,
				recurrence_rule = excluded.recurrence_rule,
				recurrence_until = excluded.recurrence_until,
				synced_unix = excluded.synced_unix,
				updated_at = CURRENT_TIMESTAMP
			 RETURNING id`,
			args...,
		).Scan(&ev.ID)
		if err != nil {
			return fmt.Errorf("upsert event %s: %w", ev.SourceUID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM event_divisions WHERE event_id = ?`, ev.ID); err != nil {
			return fmt.Errorf("clear divisions: %w", err)
		}
		return linkEvent(ctx, tx, ev)
	})
}

// DeleteStaleSourceEvents removes imported events whose UID starts with prefix
// and that were not refreshed since syncedAt.
func (s *Storage) DeleteStaleSourceEvents(ctx context.Context, prefix string, syncedAt time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM events WHERE source_uid LIKE ? ESCAPE '\' AND (synced_unix IS NULL OR synced_unix < ?)`,
		escapeLike(prefix)+"%", syncedAt.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete stale events: %w", err)
	}
	return res.RowsAffected()
}

func (s *Storage) DeleteEvent(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Storage) GetEvent(ctx context.Context, id int64) (*model.Event, error) {
	events, err := s.queryEvents(ctx, `SELECT `+eventColumns+` FROM events e WHERE e.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNotFound
	}
	return &events[0], nil
}

// SingleEvents implements agenda.Source. With a window it returns the
// non-recurring events overlapping it; without one it returns every event.
func (s *Storage) SingleEvents(ctx context.Context, f agenda.Filter) ([]model.Event, error) {
	var where []string
	var args []any

	if f.Window != nil {
		from, to := f.Window.Start.Unix(), f.Window.End.Unix()
		where = append(where,
			`e.recurrence_type IS NULL`,
			`((e.start_unix BETWEEN ? AND ?) OR (e.end_unix BETWEEN ? AND ?) OR (e.start_unix <= ? AND e.end_unix >= ?))`,
		)
		args = append(args, from, to, from, to, from, to)
	}
	where, args = appendFilter(where, args, f)

	return s.queryEvents(ctx, buildEventQuery(where), args...)
}

// RecurringEvents implements agenda.Source: every recurring definition
// matching the text and division filters, regardless of the window.
func (s *Storage) RecurringEvents(ctx context.Context, f agenda.Filter) ([]model.Event, error) {
	where := []string{`e.recurrence_type IS NOT NULL`}
	where, args := appendFilter(where, nil, f)
	return s.queryEvents(ctx, buildEventQuery(where), args...)
}

func appendFilter(where []string, args []any, f agenda.Filter) ([]string, []any) {
	if q := strings.TrimSpace(f.Text); q != "" {
		like := "%" + escapeLike(q) + "%"
		where = append(where,
			`(e.title LIKE ? ESCAPE '\' OR e.description LIKE ? ESCAPE '\' OR e.location LIKE ? ESCAPE '\')`)
		args = append(args, like, like, like)
	}
	if n := len(f.DivisionIDs); n > 0 {
		in := placeholders(n)
		where = append(where, `(EXISTS (SELECT 1 FROM event_participants ep JOIN users u ON u.id = ep.user_id
				WHERE ep.event_id = e.id AND u.division_id IN (`+in+`))
			OR EXISTS (SELECT 1 FROM event_divisions ed
				WHERE ed.event_id = e.id AND ed.division_id IN (`+in+`)))`)
		ids := int64Args(f.DivisionIDs)
		args = append(args, ids...)
		args = append(args, ids...)
	}
	return where, args
}

func buildEventQuery(where []string) string {
	q := `SELECT ` + eventColumns + ` FROM events e`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, ` AND `)
	}
	return q + ` ORDER BY e.start_unix, e.id`
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (s *Storage) queryEvents(ctx context.Context, query string, args ...any) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := make([]model.Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.loadRelations(ctx, events); err != nil {
		return nil, err
	}
	return events, nil
}

func scanEvent(rows *sql.Rows) (model.Event, error) {
	var (
		ev                  model.Event
		startAt, endAt      string
		recType, recRule    sql.NullString
		recUntil, sourceUID sql.NullString
	)
	if err := rows.Scan(&ev.ID, &ev.Title, &ev.Description, &ev.Location, &startAt, &endAt, &ev.AllDay,
		&recType, &recRule, &recUntil, &sourceUID); err != nil {
		return ev, fmt.Errorf("scan event: %w", err)
	}

	var err error
	if ev.Start, err = parseTime(startAt); err != nil {
		return ev, fmt.Errorf("event %d start_at: %w", ev.ID, err)
	}
	if ev.End, err = parseTime(endAt); err != nil {
		return ev, fmt.Errorf("event %d end_at: %w", ev.ID, err)
	}
	ev.SourceUID = sourceUID.String

	var until *time.Time
	if recUntil.Valid && recUntil.String != "" {
		u, err := time.ParseInLocation(dateLayout, recUntil.String, ev.Start.Location())
		if err != nil {
			return ev, fmt.Errorf("event %d recurrence_until: %w", ev.ID, err)
		}
		until = &u
	}
	ev.Recurrence, err = recurrence.Decode(recType.String, []byte(recRule.String), until)
	if err != nil {
		return ev, fmt.Errorf("event %d: %w", ev.ID, err)
	}

	ev.Divisions = []model.Division{}
	ev.Participants = []model.Participant{}
	return ev, nil
}

// loadRelations fills divisions and participants for events in two queries.
func (s *Storage) loadRelations(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	index := make(map[int64]int, len(events))
	ids := make([]int64, len(events))
	for i, ev := range events {
		index[ev.ID] = i
		ids[i] = ev.ID
	}
	in := placeholders(len(ids))

	rows, err := s.db.QueryContext(ctx,
		`SELECT ed.event_id, d.id, d.name FROM event_divisions ed
		 JOIN divisions d ON d.id = ed.division_id
		 WHERE ed.event_id IN (`+in+`) ORDER BY d.name, d.id`,
		int64Args(ids)...,
	)
	if err != nil {
		return fmt.Errorf("load divisions: %w", err)
	}
	for rows.Next() {
		var eventID int64
		var d model.Division
		if err := rows.Scan(&eventID, &d.ID, &d.Name); err != nil {
			rows.Close()
			return err
		}
		i := index[eventID]
		events[i].Divisions = append(events[i].Divisions, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT ep.event_id, u.id, u.name, d.id, d.name FROM event_participants ep
		 JOIN users u ON u.id = ep.user_id
		 LEFT JOIN divisions d ON d.id = u.division_id
		 WHERE ep.event_id IN (`+in+`) ORDER BY u.name, u.id`,
		int64Args(ids)...,
	)
	if err != nil {
		return fmt.Errorf("load participants: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var eventID int64
		var p model.Participant
		var divID sql.NullInt64
		var divName sql.NullString
		if err := rows.Scan(&eventID, &p.ID, &p.Name, &divID, &divName); err != nil {
			return err
		}
		if divID.Valid {
			p.Division = &model.Division{ID: divID.Int64, Name: divName.String}
		}
		i := index[eventID]
		events[i].Participants = append(events[i].Participants, p)
	}
	return rows.Err()
}
