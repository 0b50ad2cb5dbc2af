package sla

import (
	"sort"
	"time"

	"github.com/mark3748/sla-engine-go/internal/businesstime"
	"github.com/mark3748/sla-engine-go/internal/calendar"
)

// OffsetType places a level's trigger relative to the due timestamp.
type OffsetType string

const (
	OffsetBefore OffsetType = "before"
	OffsetAfter  OffsetType = "after"
)

// Level is one step in an escalation chain. Order values are 1-based
// and never renumbered once referenced by history; a disabled level is
// skipped entirely without reserving a slot.
type Level struct {
	ID         string     `json:"id"`
	Order      int        `json:"order"`
	Enabled    bool       `json:"enabled"`
	Offset     Span       `json:"offset"`
	OffsetType OffsetType `json:"offset_type"`
	Target     string     `json:"target"`
}

// TriggerAt computes the level's trigger instant from the parent
// timer's due timestamp. Calendar-based metrics offset through
// business time; wall-clock metrics use plain arithmetic.
func (l Level) TriggerAt(cal *calendar.Calendar, due time.Time, appliesCalendar bool) (time.Time, error) {
	if !appliesCalendar {
		if l.OffsetType == OffsetBefore {
			return due.Add(-l.Offset.Wall()), nil
		}
		return due.Add(l.Offset.Wall()), nil
	}
	dir := businesstime.Forward
	if l.OffsetType == OffsetBefore {
		dir = businesstime.Backward
	}
	return businesstime.Advance(cal, due, l.Offset.Business(cal), dir)
}

// Chain tracks which levels have fired for one timer. Trigger instants
// are always recomputed from the current due timestamp, so a
// pause/resume cycle moves every unfired trigger while fired levels
// stay fired.
type Chain struct {
	TimerID string
	Levels  []Level
	Fired   map[string]bool
}

// NewChain builds a chain for a timer. Levels keep their declared
// order; ValidateLevels has already run at the configuration boundary.
func NewChain(timerID string, levels []Level) *Chain {
	return &Chain{TimerID: timerID, Levels: levels, Fired: make(map[string]bool)}
}

// Firing is one level due to fire, with its computed trigger instant.
type Firing struct {
	Level     Level
	TriggerAt time.Time
}

// Due returns the enabled, unfired levels whose trigger instant has
// arrived by now, ordered by (trigger instant, order). The ordering is
// the chain's only guarantee beyond at-most-once firing: ties between
// identical trigger instants break by ascending order.
func (c *Chain) Due(cal *calendar.Calendar, due time.Time, appliesCalendar bool, now time.Time) ([]Firing, error) {
	var out []Firing
	for _, l := range c.Levels {
		if !l.Enabled || c.Fired[l.ID] {
			continue
		}
		at, err := l.TriggerAt(cal, due, appliesCalendar)
		if err != nil {
			return nil, err
		}
		if now.Before(at) {
			continue
		}
		out = append(out, Firing{Level: l, TriggerAt: at})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].TriggerAt.Equal(out[j].TriggerAt) {
			return out[i].TriggerAt.Before(out[j].TriggerAt)
		}
		return out[i].Level.Order < out[j].Level.Order
	})
	return out, nil
}

// MarkFired records that a level fired. Each level fires at most once
// per timer.
func (c *Chain) MarkFired(levelID string) { c.Fired[levelID] = true }

// ValidateLevels checks a chain definition: orders must be 1-based,
// strictly increasing and gap-free, and every offset well formed.
func ValidateLevels(levels []Level) error {
	for i, l := range levels {
		if l.Order != i+1 {
			return &ValidationError{Field: "levels", Msg: "orders must be 1-based, strictly increasing and gap-free"}
		}
		if !l.Offset.Valid() && !l.Offset.IsZero() {
			return &ValidationError{Field: "levels", Msg: "offset components must be non-negative"}
		}
		switch l.OffsetType {
		case OffsetBefore, OffsetAfter:
		default:
			return &ValidationError{Field: "levels", Msg: "offset_type must be before or after"}
		}
	}
	return nil
}
