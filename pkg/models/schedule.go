package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type DayOfWeek string

const (
	Monday    DayOfWeek = "Monday"
	Tuesday   DayOfWeek = "Tuesday"
	Wednesday DayOfWeek = "Wednesday"
	Thursday  DayOfWeek = "Thursday"
	Friday    DayOfWeek = "Friday"
	Saturday  DayOfWeek = "Saturday"
	Sunday    DayOfWeek = "Sunday"
)

func AllDaysOfWeek() []DayOfWeek {
	return []DayOfWeek{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}
}

func (d DayOfWeek) Valid() bool {
	switch d {
	case Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday:
		return true
	}
	return false
}

// DayOfWeekFromTime maps a time.Weekday onto the manifest representation.
func DayOfWeekFromTime(w time.Weekday) DayOfWeek {
	switch w {
	case time.Monday:
		return Monday
	case time.Tuesday:
		return Tuesday
	case time.Wednesday:
		return Wednesday
	case time.Thursday:
		return Thursday
	case time.Friday:
		return Friday
	case time.Saturday:
		return Saturday
	default:
		return Sunday
	}
}

// TimeOfDay is a local wall-clock time with minute granularity,
// serialized as "HH:MM" in rule manifests.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parsed, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	return TimeOfDay{Hour: parsed.Hour(), Minute: parsed.Minute()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes returns the offset from midnight, used for range comparisons.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) Before(other TimeOfDay) bool {
	return t.Minutes() < other.Minutes()
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Date is a calendar date, serialized as "YYYY-MM-DD" in rule manifests.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func ParseDate(s string) (Date, error) {
	parsed, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date{Year: parsed.Year(), Month: parsed.Month(), Day: parsed.Day()}, nil
}

// DateOf extracts the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ScheduleRule is one named time window with a target replica count.
// Unset Days/Dates/TimeStart/TimeEnd widen the window; a rule with none
// of them set applies at every instant.
type ScheduleRule struct {
	Name      string      `json:"name"`
	Days      []DayOfWeek `json:"days,omitempty"`
	Dates     []Date      `json:"dates,omitempty"`
	TimeStart *TimeOfDay  `json:"timeStart,omitempty"`
	TimeEnd   *TimeOfDay  `json:"timeEnd,omitempty"`
	Replicas  int32       `json:"replicas"`
	Priority  int         `json:"priority,omitempty"`
	Timezone  string      `json:"timezone,omitempty"`
}

// ScalingLimits bounds every replica count the evaluator can emit.
type ScalingLimits struct {
	MinReplicas int32 `json:"minReplicas"`
	MaxReplicas int32 `json:"maxReplicas"`
}

type DefaultSpec struct {
	Replicas int32 `json:"replicas"`
}

// WorkloadSchedule is the full scaling configuration for one target
// workload. It is immutable once loaded; reloads replace it wholesale.
type WorkloadSchedule struct {
	Target  TargetRef      `json:"target"`
	Rules   []ScheduleRule `json:"schedule"`
	Default DefaultSpec    `json:"default"`
	Limits  *ScalingLimits `json:"limits,omitempty"`
}

type Metadata struct {
	Name      string            `json:"name"`
	Namespace string            `json:"namespace,omitempty"`
	Labels    map[string]string `json:"labels,omitempty"`
}

const (
	APIVersion   = "easyscale.io/v1"
	KindSchedule = "ScalingSchedule"
)

// ScalingSchedule is the manifest document the rule loader consumes.
type ScalingSchedule struct {
	APIVersion string           `json:"apiVersion"`
	Kind       string           `json:"kind"`
	Metadata   Metadata         `json:"metadata"`
	Spec       WorkloadSchedule `json:"spec"`
}
