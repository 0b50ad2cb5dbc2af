// Package sla holds the per-ticket SLA timers and their escalation
// chains. Timers account elapsed business time through the
// businesstime calculator; the engine package drives their lifecycle.
package sla

import (
	"time"

	"github.com/google/uuid"

	"github.com/mark3748/sla-engine-go/internal/businesstime"
	"github.com/mark3748/sla-engine-go/internal/calendar"
)

// Metric names the SLA clock a timer tracks.
type Metric string

const (
	MetricResponse   Metric = "response"
	MetricResolution Metric = "resolution"
)

// State is the timer lifecycle state.
type State string

// Running, Paused and Breached are open states the scheduler keeps
// evaluating; Met, Missed and Canceled are terminal. Breached means the
// due timestamp passed while the ticket is still open, so escalations
// continue until a lifecycle event closes the timer.
const (
	StateRunning  State = "running"
	StatePaused   State = "paused"
	StateMet      State = "met"
	StateMissed   State = "missed"
	StateBreached State = "breached"
	StateCanceled State = "canceled"
)

// Span is a duration broken down the way SLA policies are entered:
// days, hours and minutes. For calendar-based targets a day converts
// through the calendar's standard working interval; for wall-clock
// targets it is 24 hours.
type Span struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

// Valid reports whether all components are non-negative and at least
// one is positive.
func (s Span) Valid() bool {
	if s.Days < 0 || s.Hours < 0 || s.Minutes < 0 {
		return false
	}
	return s.Days > 0 || s.Hours > 0 || s.Minutes > 0
}

// IsZero reports whether the span is empty.
func (s Span) IsZero() bool { return s.Days == 0 && s.Hours == 0 && s.Minutes == 0 }

// Wall converts the span to wall-clock time.
func (s Span) Wall() time.Duration {
	return time.Duration(s.Days)*24*time.Hour +
		time.Duration(s.Hours)*time.Hour +
		time.Duration(s.Minutes)*time.Minute
}

// Business converts the span to business time under cal. Days scale by
// the standard working interval's span, so one day against 08:00-18:00
// standard hours is ten business hours.
func (s Span) Business(cal *calendar.Calendar) time.Duration {
	return time.Duration(s.Days)*cal.StandardDaySpan() +
		time.Duration(s.Hours)*time.Hour +
		time.Duration(s.Minutes)*time.Minute
}

// Target is the configured goal for one metric.
type Target struct {
	Metric          Metric `json:"metric" binding:"required,oneof=response resolution"`
	Duration        Span   `json:"duration"`
	AppliesCalendar bool   `json:"applies_calendar"`
}

// Timer tracks one metric for one ticket. LastStartedAt is the basis
// of the current running period; Consumed accumulates business time
// across pauses so due timestamps stay reproducible after a restart.
type Timer struct {
	ID              string
	TicketID        string
	Target          Target
	StartedAt       time.Time
	LastStartedAt   time.Time
	CalendarVersion int64
	Consumed        time.Duration
	State           State
	Due             time.Time
	PausedAt        time.Time
}

// total is the full target duration under cal.
func (t *Timer) total(cal *calendar.Calendar) time.Duration {
	if !t.Target.AppliesCalendar {
		return t.Target.Duration.Wall()
	}
	return t.Target.Duration.Business(cal)
}

// Start creates a Running timer and computes its due timestamp.
func Start(ticketID string, target Target, startedAt time.Time, cal *calendar.Calendar) (*Timer, error) {
	if !target.Duration.Valid() {
		return nil, &ValidationError{Msg: "target duration must have at least one positive component"}
	}
	t := &Timer{
		ID:              uuid.NewString(),
		TicketID:        ticketID,
		Target:          target,
		StartedAt:       startedAt,
		LastStartedAt:   startedAt,
		CalendarVersion: cal.Version,
		State:           StateRunning,
	}
	if !target.AppliesCalendar {
		t.Due = startedAt.Add(target.Duration.Wall())
		return t, nil
	}
	due, err := businesstime.Advance(cal, startedAt, target.Duration.Business(cal), businesstime.Forward)
	if err != nil {
		return nil, err
	}
	t.Due = due
	return t, nil
}

// Pause freezes the timer: elapsed business time since the last start
// is banked into Consumed and the due timestamp becomes undefined
// until Resume.
func (t *Timer) Pause(now time.Time, cal *calendar.Calendar) error {
	if t.State != StateRunning {
		return &StateError{Op: "pause", Attempted: StatePaused, Actual: t.State}
	}
	var elapsed time.Duration
	if t.Target.AppliesCalendar {
		d, err := businesstime.Between(cal, t.LastStartedAt, now)
		if err != nil {
			return err
		}
		elapsed = d
	} else {
		elapsed = now.Sub(t.LastStartedAt)
	}
	t.Consumed += elapsed
	t.PausedAt = now
	t.Due = time.Time{}
	t.State = StatePaused
	return nil
}

// Resume re-bases the timer at now against its remaining duration.
// The current calendar is used even when it differs from the version
// the timer started under; calendar edits apply to future elapsed
// time only, never retroactively.
func (t *Timer) Resume(now time.Time, cal *calendar.Calendar) error {
	if t.State != StatePaused {
		return &StateError{Op: "resume", Attempted: StateRunning, Actual: t.State}
	}
	remaining := t.total(cal) - t.Consumed
	if remaining < 0 {
		remaining = 0
	}
	if !t.Target.AppliesCalendar {
		t.Due = now.Add(remaining)
	} else {
		due, err := businesstime.Advance(cal, now, remaining, businesstime.Forward)
		if err != nil {
			return err
		}
		t.Due = due
	}
	t.CalendarVersion = cal.Version
	t.LastStartedAt = now
	t.PausedAt = time.Time{}
	t.State = StateRunning
	return nil
}

// Complete records the qualifying action. A paused timer always
// completes as Met; pausing suspends breach risk. Completing after the
// due timestamp, or after the scheduler already marked the breach,
// closes the timer as Missed so no further escalations fire.
func (t *Timer) Complete(now time.Time) error {
	switch t.State {
	case StatePaused:
		t.State = StateMet
	case StateRunning:
		if now.After(t.Due) {
			t.State = StateMissed
		} else {
			t.State = StateMet
		}
	case StateBreached:
		t.State = StateMissed
	default:
		return &StateError{Op: "complete", Attempted: StateMet, Actual: t.State}
	}
	return nil
}

// Cancel stops the timer without recording an outcome; used when the
// parent ticket is closed or withdrawn. A breached timer can still be
// canceled; unfired escalation levels are dropped with it.
func (t *Timer) Cancel() error {
	switch t.State {
	case StateRunning, StatePaused, StateBreached:
		t.State = StateCanceled
		t.Due = time.Time{}
		return nil
	default:
		return &StateError{Op: "cancel", Attempted: StateCanceled, Actual: t.State}
	}
}

// CheckBreach transitions a Running timer past its due timestamp to
// Breached. This is the only transition not caused by a ticket
// lifecycle event; the scheduler polls it.
func (t *Timer) CheckBreach(now time.Time) bool {
	if t.State == StateRunning && now.After(t.Due) {
		t.State = StateBreached
		return true
	}
	return false
}
