package calendar

import (
	"fmt"
	"time"
)

// Mode selects how the organization counts working time.
type Mode string

const (
	ModeStandard      Mode = "standard"
	ModeRoundTheClock Mode = "round-clock"
)

// DayType describes where a weekday takes its hours from.
type DayType string

const (
	TypeStandard DayType = "standard"
	TypeCustom   DayType = "custom"
	TypeNotSet   DayType = "not-set"
)

// TimeOfDay is a minute-resolution time within a day, counted from midnight.
// DayEnd (24:00) is only valid as an interval end.
type TimeOfDay int

// DayEnd marks the exclusive upper bound of a day.
const DayEnd TimeOfDay = 24 * 60

// ParseTimeOfDay parses an "HH:MM" string as used by the admin UI.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("parse time %q: %w", s, err)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("parse time %q: out of range", s)
	}
	return TimeOfDay(h*60 + m), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Interval is a half-open [Start, End) range within one day.
type Interval struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

func (iv Interval) valid() bool {
	return iv.Start >= 0 && iv.End <= DayEnd && iv.Start < iv.End
}

// Contains reports whether t falls inside the interval.
func (iv Interval) Contains(t TimeOfDay) bool { return t >= iv.Start && t < iv.End }

// Duration returns the interval's length.
func (iv Interval) Duration() time.Duration {
	return time.Duration(iv.End-iv.Start) * time.Minute
}

// DaySchedule holds the resolved working hours for one weekday.
type DaySchedule struct {
	Enabled bool       `json:"enabled"`
	Type    DayType    `json:"type"`
	Hours   Interval   `json:"hours"`
	Breaks  []Interval `json:"breaks,omitempty"`
}

// Working reports whether the day contributes any business time.
func (d DaySchedule) Working() bool { return d.Enabled && d.Type != TypeNotSet }

// Calendar is an immutable snapshot of the organization's operational
// hours. Edits never mutate a published Calendar; they produce a new one
// with a higher Version.
type Calendar struct {
	Mode          Mode            `json:"mode"`
	StandardHours Interval        `json:"standard_hours"`
	StandardBreak *Interval       `json:"standard_break,omitempty"`
	Days          [7]DaySchedule  `json:"days"`
	Exclusions    []ExclusionRule `json:"exclusions,omitempty"`
	Version       int64           `json:"version"`
	EffectiveFrom time.Time       `json:"effective_from"`
	// Warnings collects non-fatal findings from validation, such as an
	// exclusion rule that can never match a real date.
	Warnings []string `json:"warnings,omitempty"`
}

// New validates cfg and builds a Calendar. The returned value has no
// Version yet; the engine assigns one when the calendar is published.
func New(cfg Config) (*Calendar, error) {
	cal := &Calendar{Mode: Mode(cfg.WorkingTimeType)}
	switch cal.Mode {
	case ModeStandard, ModeRoundTheClock:
	default:
		return nil, &ValidationError{Field: "workingTimeType", Msg: fmt.Sprintf("unknown mode %q", cfg.WorkingTimeType)}
	}

	if cal.Mode == ModeStandard {
		hours, err := parseInterval(cfg.StandardStartTime, cfg.StandardEndTime)
		if err != nil {
			return nil, &ValidationError{Field: "standardHours", Msg: err.Error(), Err: ErrInvalidInterval}
		}
		cal.StandardHours = hours
		if cfg.StandardBreakStart != "" || cfg.StandardBreakEnd != "" {
			br, err := parseInterval(cfg.StandardBreakStart, cfg.StandardBreakEnd)
			if err != nil {
				return nil, &ValidationError{Field: "standardBreak", Msg: err.Error(), Err: ErrInvalidInterval}
			}
			if br.Start < hours.Start || br.End > hours.End {
				return nil, &ValidationError{Field: "standardBreak", Msg: "break outside working hours", Err: ErrBreakOutsideWorkingHours}
			}
			cal.StandardBreak = &br
		}
	} else {
		cal.StandardHours = Interval{Start: 0, End: DayEnd}
	}

	for i := range cal.Days {
		cal.Days[i] = DaySchedule{Type: TypeNotSet}
	}
	for _, dc := range cfg.WorkingDays {
		if dc.DayOfWeek < 0 || dc.DayOfWeek > 6 {
			return nil, &ValidationError{Field: "workingDays", Msg: fmt.Sprintf("day_of_week %d out of range", dc.DayOfWeek)}
		}
		ds, err := cal.resolveDay(dc)
		if err != nil {
			return nil, err
		}
		cal.Days[dc.DayOfWeek] = ds
	}

	for i, rc := range cfg.ExclusionRules {
		rule, err := parseRule(rc)
		if err != nil {
			return nil, &ValidationError{Field: fmt.Sprintf("exclusionRules[%d]", i), Msg: err.Error()}
		}
		if cal.Mode == ModeRoundTheClock {
			cal.Warnings = append(cal.Warnings, fmt.Sprintf("exclusion rule %d has no effect in round-the-clock mode", i))
		} else if neverMatches(rule) {
			cal.Warnings = append(cal.Warnings, fmt.Sprintf("exclusion rule %d can never match a date", i))
		}
		cal.Exclusions = append(cal.Exclusions, rule)
	}
	return cal, nil
}

// resolveDay maps one day's configuration onto a concrete schedule.
// Standard days copy the global standard hours and break; their own
// hour fields are ignored, matching the admin UI which greys them out.
func (c *Calendar) resolveDay(dc DayConfig) (DaySchedule, error) {
	ds := DaySchedule{Enabled: dc.IsEnabled, Type: DayType(dc.ScheduleType)}
	switch ds.Type {
	case TypeNotSet:
		return ds, nil
	case TypeStandard:
		ds.Hours = c.StandardHours
		if c.StandardBreak != nil {
			ds.Breaks = []Interval{*c.StandardBreak}
		}
		return ds, nil
	case TypeCustom:
		if c.Mode == ModeRoundTheClock {
			ds.Hours = Interval{Start: 0, End: DayEnd}
			return ds, nil
		}
		hours, err := parseInterval(dc.CustomStartTime, dc.CustomEndTime)
		if err != nil {
			return ds, &ValidationError{Field: fmt.Sprintf("workingDays[%d]", dc.DayOfWeek), Msg: err.Error(), Err: ErrInvalidInterval}
		}
		ds.Hours = hours
		var prev Interval
		for j, bc := range dc.BreakHours {
			br, err := parseInterval(bc.StartTime, bc.EndTime)
			if err != nil {
				return ds, &ValidationError{Field: fmt.Sprintf("workingDays[%d].breakHours[%d]", dc.DayOfWeek, j), Msg: err.Error(), Err: ErrInvalidInterval}
			}
			if br.Start < hours.Start || br.End > hours.End {
				return ds, &ValidationError{Field: fmt.Sprintf("workingDays[%d].breakHours[%d]", dc.DayOfWeek, j), Msg: "break outside working hours", Err: ErrBreakOutsideWorkingHours}
			}
			if j > 0 && br.Start < prev.End {
				return ds, &ValidationError{Field: fmt.Sprintf("workingDays[%d].breakHours[%d]", dc.DayOfWeek, j), Msg: "breaks overlap or are out of order"}
			}
			ds.Breaks = append(ds.Breaks, br)
			prev = br
		}
		return ds, nil
	default:
		return ds, &ValidationError{Field: fmt.Sprintf("workingDays[%d]", dc.DayOfWeek), Msg: fmt.Sprintf("unknown schedule type %q", dc.ScheduleType)}
	}
}

func parseInterval(start, end string) (Interval, error) {
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return Interval{}, err
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return Interval{}, err
	}
	iv := Interval{Start: s, End: e}
	if !iv.valid() {
		return Interval{}, fmt.Errorf("interval %s-%s: start must precede end", start, end)
	}
	return iv, nil
}

// Excluded reports whether date matches any exclusion rule. Matched
// dates contribute zero business time for the whole day.
func (c *Calendar) Excluded(date time.Time) bool {
	for _, r := range c.Exclusions {
		if r.Matches(date) {
			return true
		}
	}
	return false
}

// IsBusinessDay reports whether date contributes any business time.
// Round-the-clock calendars count every day, mirroring the source
// system where round-the-clock short-circuits all calendar checks.
func (c *Calendar) IsBusinessDay(date time.Time) bool {
	if c.Mode == ModeRoundTheClock {
		return true
	}
	if c.Excluded(date) {
		return false
	}
	return c.Days[int(date.Weekday())].Working()
}

// ScheduleFor resolves the effective schedule for a date. Excluded
// dates resolve to a synthetic all-day not-set schedule.
func (c *Calendar) ScheduleFor(date time.Time) DaySchedule {
	if c.Mode == ModeRoundTheClock {
		return DaySchedule{Enabled: true, Type: TypeCustom, Hours: Interval{Start: 0, End: DayEnd}}
	}
	if c.Excluded(date) {
		return DaySchedule{Type: TypeNotSet}
	}
	return c.Days[int(date.Weekday())]
}

// BreaksOn returns the break intervals in effect on date.
func (c *Calendar) BreaksOn(date time.Time) []Interval {
	ds := c.ScheduleFor(date)
	if !ds.Working() {
		return nil
	}
	return ds.Breaks
}

// Segments returns the usable working sub-intervals of date: the
// working interval minus its breaks, in ascending order.
func (c *Calendar) Segments(date time.Time) []Interval {
	ds := c.ScheduleFor(date)
	if !ds.Working() {
		return nil
	}
	segs := []Interval{ds.Hours}
	for _, br := range ds.Breaks {
		last := segs[len(segs)-1]
		segs = segs[:len(segs)-1]
		if br.Start > last.Start {
			segs = append(segs, Interval{Start: last.Start, End: br.Start})
		}
		if br.End < last.End {
			segs = append(segs, Interval{Start: br.End, End: last.End})
		}
	}
	return segs
}

// StandardDaySpan is the wall span of the standard working interval.
// SLA targets expressed in days convert through it, so "1 day" against
// 08:00-18:00 standard hours means ten business hours.
func (c *Calendar) StandardDaySpan() time.Duration {
	return c.StandardHours.Duration()
}
