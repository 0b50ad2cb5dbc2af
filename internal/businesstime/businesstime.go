// Package businesstime implements calendar arithmetic over an
// immutable calendar snapshot: membership tests, advancing an instant
// by a business duration, and measuring business time between two
// instants. All functions are pure; results depend only on their
// arguments.
package businesstime

import (
	"errors"
	"time"

	"github.com/mark3748/sla-engine-go/internal/calendar"
)

// Direction selects which way Advance walks.
type Direction int

const (
	Forward Direction = iota
	Backward
)

var (
	// ErrNoBusinessTime is returned when a calendar yields no working
	// time within the iteration cap. Without the cap a calendar with
	// every day disabled would walk forever.
	ErrNoBusinessTime = errors.New("no business time available")
	// ErrInvertedRange is returned by Between when end precedes start.
	ErrInvertedRange = errors.New("range end precedes start")
	// ErrNegativeDuration is returned by Advance for durations below zero.
	ErrNegativeDuration = errors.New("negative duration")
)

// maxDays caps the day walk at roughly five years of calendar days.
const maxDays = 366 * 5

// IsBusinessInstant reports whether t falls inside business time: a
// business day, within the working interval, and not inside a break.
func IsBusinessInstant(cal *calendar.Calendar, t time.Time) bool {
	day := dayStart(t)
	for _, seg := range cal.Segments(day) {
		s, e := absSeg(day, seg)
		if !t.Before(s) && t.Before(e) {
			return true
		}
	}
	return false
}

// Advance walks from `from` consuming d of business time one day
// segment at a time. A zero duration returns from unchanged even when
// from is outside business time. A result landing exactly on a
// segment boundary rolls to the next segment start (forward) or the
// previous segment end (backward), so due timestamps never fall inside
// a break or at a dead end of day.
func Advance(cal *calendar.Calendar, from time.Time, d time.Duration, dir Direction) (time.Time, error) {
	if d < 0 {
		return time.Time{}, ErrNegativeDuration
	}
	if d == 0 {
		return from, nil
	}
	if cal.Mode == calendar.ModeRoundTheClock {
		if dir == Backward {
			return from.Add(-d), nil
		}
		return from.Add(d), nil
	}

	remaining := d
	day := dayStart(from)
	cursor := from
	for i := 0; i < maxDays; i++ {
		segs := cal.Segments(day)
		if dir == Forward {
			for _, seg := range segs {
				s, e := absSeg(day, seg)
				if !e.After(cursor) {
					continue
				}
				start := cursor
				if start.Before(s) {
					start = s
				}
				if remaining == 0 {
					return start, nil
				}
				avail := e.Sub(start)
				if remaining < avail {
					return start.Add(remaining), nil
				}
				remaining -= avail
				cursor = e
			}
			day = day.AddDate(0, 0, 1)
		} else {
			for j := len(segs) - 1; j >= 0; j-- {
				s, e := absSeg(day, segs[j])
				if !s.Before(cursor) {
					continue
				}
				end := cursor
				if end.After(e) {
					end = e
				}
				if remaining == 0 {
					return end, nil
				}
				avail := end.Sub(s)
				if remaining < avail {
					return end.Add(-remaining), nil
				}
				remaining -= avail
				cursor = s
			}
			day = day.AddDate(0, 0, -1)
		}
	}
	return time.Time{}, ErrNoBusinessTime
}

// Between sums the business time in [t1, t2), clipping the first and
// last day's segments. Callers wanting a signed result negate it
// themselves.
func Between(cal *calendar.Calendar, t1, t2 time.Time) (time.Duration, error) {
	if t2.Before(t1) {
		return 0, ErrInvertedRange
	}
	if cal.Mode == calendar.ModeRoundTheClock {
		return t2.Sub(t1), nil
	}
	var total time.Duration
	last := dayStart(t2)
	for day := dayStart(t1); !day.After(last); day = day.AddDate(0, 0, 1) {
		for _, seg := range cal.Segments(day) {
			s, e := absSeg(day, seg)
			if s.Before(t1) {
				s = t1
			}
			if e.After(t2) {
				e = t2
			}
			if e.After(s) {
				total += e.Sub(s)
			}
		}
	}
	return total, nil
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func absSeg(day time.Time, iv calendar.Interval) (time.Time, time.Time) {
	return day.Add(time.Duration(iv.Start) * time.Minute), day.Add(time.Duration(iv.End) * time.Minute)
}
