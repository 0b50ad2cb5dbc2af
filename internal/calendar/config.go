package calendar

// Config mirrors the operational-hours payload produced by the admin
// UI. Times are "HH:MM" strings; day types are "standard", "custom" or
// "not-set".
type Config struct {
	WorkingTimeType    string       `json:"workingTimeType" binding:"required"`
	StandardStartTime  string       `json:"standardStartTime,omitempty"`
	StandardEndTime    string       `json:"standardEndTime,omitempty"`
	StandardBreakStart string       `json:"standardBreakStart,omitempty"`
	StandardBreakEnd   string       `json:"standardBreakEnd,omitempty"`
	WorkingDays        []DayConfig  `json:"workingDays"`
	ExclusionRules     []RuleConfig `json:"exclusionRules,omitempty"`
}

// DayConfig is one weekday's row in the operational-hours screen.
type DayConfig struct {
	DayOfWeek       int           `json:"dayOfWeek" binding:"min=0,max=6"`
	IsEnabled       bool          `json:"isEnabled"`
	ScheduleType    string        `json:"scheduleType"`
	CustomStartTime string        `json:"customStartTime,omitempty"`
	CustomEndTime   string        `json:"customEndTime,omitempty"`
	BreakHours      []BreakConfig `json:"breakHours,omitempty"`
}

// BreakConfig is one break row under a working day.
type BreakConfig struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// RuleConfig is one exclusion rule row. Either Date is set (a specific
// holiday) or Weekday+Week describe a recurring pattern such as the
// last Friday of selected months. An empty Months list means every
// month.
type RuleConfig struct {
	Date    string   `json:"date,omitempty"`
	Weekday string   `json:"weekday,omitempty"`
	Week    string   `json:"week,omitempty"`
	Months  []string `json:"months,omitempty"`
}
