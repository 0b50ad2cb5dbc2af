package calendar

import (
	"testing"
	"time"
)

func TestSpecificDateRule(t *testing.T) {
	rule, err := parseRule(RuleConfig{Date: "2024-12-25"})
	if err != nil {
		t.Fatalf("parseRule: %v", err)
	}
	if !rule.Matches(time.Date(2024, 12, 25, 15, 30, 0, 0, time.UTC)) {
		t.Fatal("expected Christmas to match regardless of clock time")
	}
	if rule.Matches(time.Date(2024, 12, 26, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("expected the 26th not to match")
	}
}

func TestNthWeekdayRule(t *testing.T) {
	tests := []struct {
		name string
		cfg  RuleConfig
		hit  time.Time
		miss time.Time
	}{
		{
			"first monday",
			RuleConfig{Weekday: "Monday", Week: "First"},
			time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC),
		},
		{
			"last friday",
			RuleConfig{Weekday: "Friday", Week: "Last"},
			time.Date(2024, 3, 29, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 3, 22, 0, 0, 0, 0, time.UTC),
		},
		{
			"third wednesday of june",
			RuleConfig{Weekday: "Wednesday", Week: "Third", Months: []string{"June"}},
			time.Date(2024, 6, 19, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := parseRule(tt.cfg)
			if err != nil {
				t.Fatalf("parseRule: %v", err)
			}
			if !rule.Matches(tt.hit) {
				t.Errorf("expected %v to match", tt.hit)
			}
			if rule.Matches(tt.miss) {
				t.Errorf("expected %v not to match", tt.miss)
			}
		})
	}
}

func TestRuleParseErrors(t *testing.T) {
	tests := []RuleConfig{
		{},
		{Weekday: "Monday"},
		{Weekday: "Moonday", Week: "First"},
		{Weekday: "Monday", Week: "Sixth"},
		{Weekday: "Monday", Week: "First", Months: []string{"Juneuary"}},
		{Date: "not-a-date"},
	}
	for _, rc := range tests {
		if _, err := parseRule(rc); err == nil {
			t.Errorf("expected error for %+v", rc)
		}
	}
}

func TestLastWeekdayDetection(t *testing.T) {
	rule := ExclusionRule{Kind: RuleNthWeekday, Weekday: time.Friday, Ordinal: OrdinalLast}
	// March 2024 has five Fridays: 1, 8, 15, 22 and 29.
	if rule.Matches(time.Date(2024, 3, 22, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("2024-03-22 is not the last Friday of March")
	}
	if !rule.Matches(time.Date(2024, 3, 29, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("expected last Friday of March 2024 to match")
	}
}
