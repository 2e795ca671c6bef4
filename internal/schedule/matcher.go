package schedule

import (
	"time"

	"github.com/easyscale/easyscale/internal/logger"
	"github.com/easyscale/easyscale/pkg/models"
)

// Matches reports whether a rule applies at the given instant. The
// instant is converted into the rule's timezone before any comparison.
// A rule with an unresolvable timezone, or a window where timeEnd is
// not after timeStart, never matches; the validator flags both at load
// time, but evaluation must stay total either way.
func Matches(rule *models.ScheduleRule, instant time.Time) bool {
	zone := rule.Timezone
	if zone == "" {
		zone = "UTC"
	}

	loc, err := time.LoadLocation(zone)
	if err != nil {
		logger.WithRule(rule.Name).Debugf("Invalid timezone %q, rule cannot match", zone)
		return false
	}
	local := instant.In(loc)

	if rule.TimeStart != nil && rule.TimeEnd != nil && !rule.TimeStart.Before(*rule.TimeEnd) {
		logger.WithRule(rule.Name).Debugf(
			"Window %s-%s crosses midnight, rule cannot match", rule.TimeStart, rule.TimeEnd,
		)
		return false
	}

	if len(rule.Days) > 0 && !dayMatches(local, rule.Days) {
		return false
	}

	if len(rule.Dates) > 0 && !dateMatches(local, rule.Dates) {
		return false
	}

	return timeInRange(local, rule.TimeStart, rule.TimeEnd)
}

func dayMatches(local time.Time, days []models.DayOfWeek) bool {
	current := models.DayOfWeekFromTime(local.Weekday())
	for _, day := range days {
		if day == current {
			return true
		}
	}
	return false
}

func dateMatches(local time.Time, dates []models.Date) bool {
	current := models.DateOf(local)
	for _, date := range dates {
		if date == current {
			return true
		}
	}
	return false
}

// timeInRange checks the local wall clock against an optional window.
// timeStart is inclusive, timeEnd exclusive; an absent bound is open.
func timeInRange(local time.Time, start, end *models.TimeOfDay) bool {
	if start == nil && end == nil {
		return true
	}

	minutes := local.Hour()*60 + local.Minute()
	if start != nil && minutes < start.Minutes() {
		return false
	}
	if end != nil && minutes >= end.Minutes() {
		return false
	}
	return true
}
