package calendar

import (
	"fmt"
	"strings"
	"time"
)

// RuleKind discriminates the two exclusion rule shapes.
type RuleKind string

const (
	RuleSpecificDate RuleKind = "date"
	RuleNthWeekday   RuleKind = "nth-weekday"
)

// OrdinalLast selects the final occurrence of a weekday in a month.
const OrdinalLast = -1

// ExclusionRule identifies dates that contribute zero business time.
// Either a specific date, or the Nth (or last) given weekday of either
// every month or a selected set of months.
type ExclusionRule struct {
	Kind    RuleKind     `json:"kind"`
	Date    time.Time    `json:"date,omitempty"`
	Weekday time.Weekday `json:"weekday,omitempty"`
	Ordinal int          `json:"ordinal,omitempty"`
	Months  []time.Month `json:"months,omitempty"`
}

var weekOrdinals = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5, "last": OrdinalLast,
}

func parseRule(rc RuleConfig) (ExclusionRule, error) {
	if rc.Date != "" {
		d, err := time.Parse("2006-01-02", rc.Date)
		if err != nil {
			return ExclusionRule{}, fmt.Errorf("parse date %q: %w", rc.Date, err)
		}
		return ExclusionRule{Kind: RuleSpecificDate, Date: d}, nil
	}
	if rc.Weekday == "" || rc.Week == "" {
		return ExclusionRule{}, fmt.Errorf("rule needs either a date or a weekday and week")
	}
	wd, err := parseWeekday(rc.Weekday)
	if err != nil {
		return ExclusionRule{}, err
	}
	ord, ok := weekOrdinals[strings.ToLower(rc.Week)]
	if !ok {
		return ExclusionRule{}, fmt.Errorf("unknown week selection %q", rc.Week)
	}
	rule := ExclusionRule{Kind: RuleNthWeekday, Weekday: wd, Ordinal: ord}
	for _, m := range rc.Months {
		mon, err := parseMonth(m)
		if err != nil {
			return ExclusionRule{}, err
		}
		rule.Months = append(rule.Months, mon)
	}
	return rule, nil
}

func parseWeekday(s string) (time.Weekday, error) {
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if strings.EqualFold(s, wd.String()) {
			return wd, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

func parseMonth(s string) (time.Month, error) {
	for m := time.January; m <= time.December; m++ {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown month %q", s)
}

// Matches reports whether date (its date component only) is excluded
// by this rule.
func (r ExclusionRule) Matches(date time.Time) bool {
	switch r.Kind {
	case RuleSpecificDate:
		y1, m1, d1 := r.Date.Date()
		y2, m2, d2 := date.Date()
		return y1 == y2 && m1 == m2 && d1 == d2
	case RuleNthWeekday:
		if date.Weekday() != r.Weekday {
			return false
		}
		if len(r.Months) > 0 {
			found := false
			for _, m := range r.Months {
				if date.Month() == m {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		nth := (date.Day()-1)/7 + 1
		if r.Ordinal == OrdinalLast {
			return date.AddDate(0, 0, 7).Month() != date.Month()
		}
		return nth == r.Ordinal
	default:
		return false
	}
}

// neverMatches probes a rule against a 28-year window. Rules that
// never fire (for example a fifth-Tuesday rule scoped to a month that
// never has five Tuesdays in the window) are legal input but worth a
// warning to the administrator.
func neverMatches(r ExclusionRule) bool {
	if r.Kind == RuleSpecificDate {
		return r.Date.IsZero()
	}
	start := time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	for d := start; d.Year() < 2028; d = d.AddDate(0, 0, 1) {
		if r.Matches(d) {
			return false
		}
	}
	return true
}
