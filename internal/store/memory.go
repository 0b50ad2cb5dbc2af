package store

import (
	"context"
	"sync"
	"time"

	"github.com/mark3748/sla-engine-go/internal/calendar"
	"github.com/mark3748/sla-engine-go/internal/engine"
	"github.com/mark3748/sla-engine-go/internal/sla"
)

// Memory implements engine.Store in process memory. Used by tests and
// for local development without Postgres.
type Memory struct {
	mu        sync.Mutex
	version   int64
	calendars map[int64]*calendar.Calendar
	timers    map[string]sla.Timer
	levels    map[string][]sla.Level
	fired     map[string]map[string]time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		calendars: make(map[int64]*calendar.Calendar),
		timers:    make(map[string]sla.Timer),
		levels:    make(map[string][]sla.Level),
		fired:     make(map[string]map[string]time.Time),
	}
}

func (s *Memory) PutCalendar(_ context.Context, cal *calendar.Calendar) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++
	effective := time.Now()
	cp := *cal
	cp.Version = s.version
	cp.EffectiveFrom = effective
	s.calendars[s.version] = &cp
	return s.version, effective, nil
}

func (s *Memory) CurrentCalendar(context.Context) (*calendar.Calendar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version == 0 {
		return nil, nil
	}
	cp := *s.calendars[s.version]
	return &cp, nil
}

func (s *Memory) CreateTimer(_ context.Context, t *sla.Timer, levels []sla.Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers[t.ID] = *t
	s.levels[t.ID] = append([]sla.Level(nil), levels...)
	return nil
}

func (s *Memory) UpdateTimer(_ context.Context, t *sla.Timer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers[t.ID] = *t
	return nil
}

func (s *Memory) OpenTimers(context.Context) ([]engine.TimerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []engine.TimerRecord
	for id, t := range s.timers {
		switch t.State {
		case sla.StateRunning, sla.StatePaused, sla.StateBreached:
		default:
			continue
		}
		cp := t
		rec := engine.TimerRecord{Timer: &cp, Levels: append([]sla.Level(nil), s.levels[id]...)}
		for lid := range s.fired[id] {
			rec.Fired = append(rec.Fired, lid)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Memory) MarkFired(_ context.Context, timerID, levelID string, firedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.fired[timerID]
	if !ok {
		m = make(map[string]time.Time)
		s.fired[timerID] = m
	}
	if _, dup := m[levelID]; dup {
		return false, nil
	}
	m[levelID] = firedAt
	return true, nil
}
