// Package store persists the engine's state: calendar versions, SLA
// timers with their chain definitions, and the fired-level ledger that
// backs the at-most-once guarantee.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mark3748/sla-engine-go/internal/calendar"
	"github.com/mark3748/sla-engine-go/internal/engine"
	"github.com/mark3748/sla-engine-go/internal/sla"
)

// DB is a minimal interface to allow mocking in tests.
type DB interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// Postgres implements engine.Store on a pgx connection pool.
type Postgres struct {
	DB DB
}

// NewPostgres wraps db.
func NewPostgres(db DB) *Postgres { return &Postgres{DB: db} }

// PutCalendar stores a calendar snapshot and returns the assigned
// version and effective-from instant. Calendars are append-only;
// previously computed due timestamps stay explainable against their
// recorded version.
func (s *Postgres) PutCalendar(ctx context.Context, cal *calendar.Calendar) (int64, time.Time, error) {
	b, err := json.Marshal(cal)
	if err != nil {
		return 0, time.Time{}, err
	}
	var version int64
	var effective time.Time
	err = s.DB.QueryRow(ctx,
		`insert into calendars (config, effective_from) values ($1, now()) returning version, effective_from`,
		b).Scan(&version, &effective)
	if err != nil {
		return 0, time.Time{}, err
	}
	return version, effective, nil
}

// CurrentCalendar loads the highest calendar version, nil when none
// has been published yet.
func (s *Postgres) CurrentCalendar(ctx context.Context) (*calendar.Calendar, error) {
	var b []byte
	var version int64
	var effective time.Time
	err := s.DB.QueryRow(ctx,
		`select version, config, effective_from from calendars order by version desc limit 1`).
		Scan(&version, &b, &effective)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cal calendar.Calendar
	if err := json.Unmarshal(b, &cal); err != nil {
		return nil, err
	}
	cal.Version = version
	cal.EffectiveFrom = effective
	return &cal, nil
}

// CreateTimer inserts a timer row plus one row per chain level.
func (s *Postgres) CreateTimer(ctx context.Context, t *sla.Timer, levels []sla.Level) error {
	if _, err := s.DB.Exec(ctx, `insert into sla_timers
               (id, ticket_id, metric, target_days, target_hours, target_mins,
                applies_calendar, started_at, last_started_at, calendar_version,
                consumed_ms, state, due_at)
        values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		t.ID, t.TicketID, string(t.Target.Metric),
		t.Target.Duration.Days, t.Target.Duration.Hours, t.Target.Duration.Minutes,
		t.Target.AppliesCalendar, t.StartedAt, t.LastStartedAt, t.CalendarVersion,
		t.Consumed.Milliseconds(), string(t.State), nullTime(t.Due)); err != nil {
		return err
	}
	for _, l := range levels {
		if _, err := s.DB.Exec(ctx, `insert into sla_timer_levels
                       (id, timer_id, level_order, enabled, offset_days, offset_hours,
                        offset_mins, offset_type, target)
                values ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			l.ID, t.ID, l.Order, l.Enabled,
			l.Offset.Days, l.Offset.Hours, l.Offset.Minutes, string(l.OffsetType), l.Target); err != nil {
			return err
		}
	}
	return nil
}

// UpdateTimer writes the mutable timer fields.
func (s *Postgres) UpdateTimer(ctx context.Context, t *sla.Timer) error {
	_, err := s.DB.Exec(ctx, `update sla_timers
        set last_started_at=$2, calendar_version=$3, consumed_ms=$4,
            state=$5, due_at=$6, paused_at=$7
        where id=$1`,
		t.ID, t.LastStartedAt, t.CalendarVersion, t.Consumed.Milliseconds(),
		string(t.State), nullTime(t.Due), nullTime(t.PausedAt))
	return err
}

// OpenTimers loads every running or paused timer with its chain and
// fired-level IDs.
func (s *Postgres) OpenTimers(ctx context.Context) ([]engine.TimerRecord, error) {
	rows, err := s.DB.Query(ctx, `select id::text, ticket_id, metric,
               target_days, target_hours, target_mins, applies_calendar,
               started_at, last_started_at, calendar_version, consumed_ms,
               state, due_at, paused_at
        from sla_timers where state in ('running','paused','breached')`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []engine.TimerRecord
	for rows.Next() {
		t := &sla.Timer{}
		var metric, state string
		var consumedMS int64
		var due, paused *time.Time
		if err := rows.Scan(&t.ID, &t.TicketID, &metric,
			&t.Target.Duration.Days, &t.Target.Duration.Hours, &t.Target.Duration.Minutes,
			&t.Target.AppliesCalendar, &t.StartedAt, &t.LastStartedAt,
			&t.CalendarVersion, &consumedMS, &state, &due, &paused); err != nil {
			return nil, err
		}
		t.Target.Metric = sla.Metric(metric)
		t.State = sla.State(state)
		t.Consumed = time.Duration(consumedMS) * time.Millisecond
		if due != nil {
			t.Due = *due
		}
		if paused != nil {
			t.PausedAt = *paused
		}
		out = append(out, engine.TimerRecord{Timer: t})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := s.loadChain(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Postgres) loadChain(ctx context.Context, rec *engine.TimerRecord) error {
	rows, err := s.DB.Query(ctx, `select id::text, level_order, enabled,
               offset_days, offset_hours, offset_mins, offset_type, target
        from sla_timer_levels where timer_id=$1 order by level_order`, rec.Timer.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var l sla.Level
		var ot string
		if err := rows.Scan(&l.ID, &l.Order, &l.Enabled,
			&l.Offset.Days, &l.Offset.Hours, &l.Offset.Minutes, &ot, &l.Target); err != nil {
			return err
		}
		l.OffsetType = sla.OffsetType(ot)
		rec.Levels = append(rec.Levels, l)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	frows, err := s.DB.Query(ctx,
		`select level_id::text from sla_fired_levels where timer_id=$1`, rec.Timer.ID)
	if err != nil {
		return err
	}
	defer frows.Close()
	for frows.Next() {
		var id string
		if err := frows.Scan(&id); err != nil {
			return err
		}
		rec.Fired = append(rec.Fired, id)
	}
	return frows.Err()
}

// MarkFired records a firing. The primary key on (timer_id, level_id)
// makes re-delivery a no-op; the bool reports whether this call was
// the first.
func (s *Postgres) MarkFired(ctx context.Context, timerID, levelID string, firedAt time.Time) (bool, error) {
	tag, err := s.DB.Exec(ctx, `insert into sla_fired_levels (timer_id, level_id, fired_at)
        values ($1,$2,$3) on conflict (timer_id, level_id) do nothing`,
		timerID, levelID, firedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
