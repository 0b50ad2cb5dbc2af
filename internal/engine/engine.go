// Package engine is the runtime driver for SLA timers and escalation
// chains. It owns the current calendar version, serializes lifecycle
// events against the periodic tick per ticket, and guarantees
// at-most-once escalation firing by recording a firing durably before
// invoking the event sink.
package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mark3748/sla-engine-go/internal/calendar"
	"github.com/mark3748/sla-engine-go/internal/sla"
)

var (
	ErrTimerNotFound = errors.New("timer not found")
	ErrNoCalendar    = errors.New("no calendar configured")
)

// Store is the engine's durability boundary. Implementations must keep
// calendar_version and consumed duration per timer so due timestamps
// are reproducible after a restart, and MarkFired must be idempotent
// per (timerID, levelID).
type Store interface {
	PutCalendar(ctx context.Context, cal *calendar.Calendar) (int64, time.Time, error)
	CurrentCalendar(ctx context.Context) (*calendar.Calendar, error)
	CreateTimer(ctx context.Context, t *sla.Timer, levels []sla.Level) error
	UpdateTimer(ctx context.Context, t *sla.Timer) error
	OpenTimers(ctx context.Context) ([]TimerRecord, error)
	MarkFired(ctx context.Context, timerID, levelID string, firedAt time.Time) (bool, error)
}

// TimerRecord is a persisted timer with its chain definition and the
// IDs of levels that already fired.
type TimerRecord struct {
	Timer  *sla.Timer
	Levels []sla.Level
	Fired  []string
}

// Event is one escalation firing handed to the sink.
type Event struct {
	TimerID  string     `json:"timer_id"`
	TicketID string     `json:"ticket_id"`
	Metric   sla.Metric `json:"metric"`
	LevelID  string     `json:"level_id"`
	Order    int        `json:"order"`
	Target   string     `json:"target"`
	FiredAt  time.Time  `json:"fired_at"`
}

// EventSink receives escalation events. The engine records the firing
// before calling Fire; delivery failures are the sink's concern and
// are never retried here.
type EventSink interface {
	Fire(ctx context.Context, ev Event) error
}

// Engine drives all open timers. One instance per process.
type Engine struct {
	store Store
	sink  EventSink
	now   func() time.Time

	cal atomic.Pointer[calendar.Calendar]

	mu      sync.RWMutex
	timers  map[string]*sla.Timer
	chains  map[string]*sla.Chain
	tickets map[string]*sync.Mutex
}

// New constructs an Engine. now may be nil for time.Now; tests inject
// their own clock.
func New(store Store, sink EventSink, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{
		store:   store,
		sink:    sink,
		now:     now,
		timers:  make(map[string]*sla.Timer),
		chains:  make(map[string]*sla.Chain),
		tickets: make(map[string]*sync.Mutex),
	}
}

// Load restores the current calendar and all open timers from the
// store. The API calls it once on startup; the worker calls it before
// every tick so timers created by other processes are picked up.
func (e *Engine) Load(ctx context.Context) error {
	cal, err := e.store.CurrentCalendar(ctx)
	if err != nil {
		return err
	}
	if cal != nil {
		e.cal.Store(cal)
	}
	recs, err := e.store.OpenTimers(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timers = make(map[string]*sla.Timer, len(recs))
	e.chains = make(map[string]*sla.Chain, len(recs))
	for _, r := range recs {
		ch := sla.NewChain(r.Timer.ID, r.Levels)
		for _, id := range r.Fired {
			ch.MarkFired(id)
		}
		e.timers[r.Timer.ID] = r.Timer
		e.chains[r.Timer.ID] = ch
	}
	activeTimers.Set(float64(len(e.timers)))
	return nil
}

// Calendar returns the current calendar snapshot, nil when none has
// been published. Callers hold the returned value for the duration of
// one computation; it is never mutated.
func (e *Engine) Calendar() *calendar.Calendar { return e.cal.Load() }

// PutCalendar validates and publishes a new calendar version, then
// re-bases every running timer so the new hours govern future elapsed
// time only. Consumed business time is settled under the old version
// first, exactly as a pause/resume pair would.
func (e *Engine) PutCalendar(ctx context.Context, cfg calendar.Config) (*calendar.Calendar, error) {
	cal, err := calendar.New(cfg)
	if err != nil {
		return nil, err
	}
	version, effective, err := e.store.PutCalendar(ctx, cal)
	if err != nil {
		return nil, err
	}
	cal.Version = version
	cal.EffectiveFrom = effective
	for _, w := range cal.Warnings {
		log.Warn().Int64("calendar_version", version).Msg(w)
	}
	old := e.cal.Swap(cal)
	if old != nil {
		e.rebaseRunning(ctx, old, cal)
	}
	return cal, nil
}

// rebaseRunning settles elapsed time under the old calendar and
// recomputes due timestamps under the new one for all running timers.
func (e *Engine) rebaseRunning(ctx context.Context, old, cur *calendar.Calendar) {
	now := e.now()
	for _, id := range e.timerIDs() {
		e.withTimer(id, func(t *sla.Timer, _ *sla.Chain) error {
			if t.State != sla.StateRunning {
				return nil
			}
			if err := t.Pause(now, old); err != nil {
				return err
			}
			if err := t.Resume(now, cur); err != nil {
				return err
			}
			return e.store.UpdateTimer(ctx, t)
		})
	}
}

// StartSLA creates a timer and its escalation chain for a ticket.
func (e *Engine) StartSLA(ctx context.Context, ticketID string, target sla.Target, levels []sla.Level, startedAt time.Time) (string, error) {
	cal := e.cal.Load()
	if cal == nil {
		return "", ErrNoCalendar
	}
	if err := sla.ValidateLevels(levels); err != nil {
		return "", err
	}
	mu := e.ticketLock(ticketID)
	mu.Lock()
	defer mu.Unlock()
	t, err := sla.Start(ticketID, target, startedAt, cal)
	if err != nil {
		return "", err
	}
	if err := e.store.CreateTimer(ctx, t, levels); err != nil {
		return "", err
	}
	e.mu.Lock()
	e.timers[t.ID] = t
	e.chains[t.ID] = sla.NewChain(t.ID, levels)
	activeTimers.Set(float64(len(e.timers)))
	e.mu.Unlock()
	return t.ID, nil
}

// PauseSLA freezes a timer while its ticket is on hold.
func (e *Engine) PauseSLA(ctx context.Context, timerID string, now time.Time) error {
	cal := e.cal.Load()
	return e.withTimer(timerID, func(t *sla.Timer, _ *sla.Chain) error {
		if err := t.Pause(now, cal); err != nil {
			return err
		}
		return e.store.UpdateTimer(ctx, t)
	})
}

// ResumeSLA re-bases a paused timer against its remaining duration
// under the current calendar.
func (e *Engine) ResumeSLA(ctx context.Context, timerID string, now time.Time) error {
	cal := e.cal.Load()
	return e.withTimer(timerID, func(t *sla.Timer, _ *sla.Chain) error {
		if err := t.Resume(now, cal); err != nil {
			return err
		}
		return e.store.UpdateTimer(ctx, t)
	})
}

// CompleteSLA records the qualifying action for a timer's metric.
// Levels that have not fired by then never fire.
func (e *Engine) CompleteSLA(ctx context.Context, timerID string, now time.Time) error {
	return e.withTimer(timerID, func(t *sla.Timer, _ *sla.Chain) error {
		if err := t.Complete(now); err != nil {
			return err
		}
		return e.store.UpdateTimer(ctx, t)
	})
}

// CancelSLA stops a timer and cancels all unfired levels in the same
// critical section the tick uses, so a racing tick never fires a
// stale escalation.
func (e *Engine) CancelSLA(ctx context.Context, timerID string, now time.Time) error {
	_ = now
	return e.withTimer(timerID, func(t *sla.Timer, _ *sla.Chain) error {
		if err := t.Cancel(); err != nil {
			return err
		}
		return e.store.UpdateTimer(ctx, t)
	})
}

// DueTimestamp returns a timer's state and due timestamp. The due
// timestamp is undefined while paused; callers must not schedule
// escalations against it.
func (e *Engine) DueTimestamp(timerID string) (sla.State, time.Time, error) {
	e.mu.RLock()
	t, ok := e.timers[timerID]
	e.mu.RUnlock()
	if !ok {
		return "", time.Time{}, ErrTimerNotFound
	}
	mu := e.ticketLock(t.TicketID)
	mu.Lock()
	defer mu.Unlock()
	return t.State, t.Due, nil
}

// withTimer runs fn with the timer's ticket lock held.
func (e *Engine) withTimer(timerID string, fn func(*sla.Timer, *sla.Chain) error) error {
	e.mu.RLock()
	t, ok := e.timers[timerID]
	ch := e.chains[timerID]
	e.mu.RUnlock()
	if !ok {
		return ErrTimerNotFound
	}
	mu := e.ticketLock(t.TicketID)
	mu.Lock()
	defer mu.Unlock()
	return fn(t, ch)
}

func (e *Engine) ticketLock(ticketID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	mu, ok := e.tickets[ticketID]
	if !ok {
		mu = &sync.Mutex{}
		e.tickets[ticketID] = mu
	}
	return mu
}

func (e *Engine) timerIDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.timers))
	for id := range e.timers {
		ids = append(ids, id)
	}
	return ids
}
