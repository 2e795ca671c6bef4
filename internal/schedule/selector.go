package schedule

import (
	"time"

	"github.com/easyscale/easyscale/internal/logger"
	"github.com/easyscale/easyscale/pkg/models"
)

// SelectRule returns the matching rule with the highest priority, or
// nil when no rule matches. Ties are broken by position: the earliest
// rule in the input sequence wins, so selection is deterministic for a
// fixed schedule and instant.
func SelectRule(rules []models.ScheduleRule, instant time.Time) *models.ScheduleRule {
	var best *models.ScheduleRule
	for i := range rules {
		rule := &rules[i]
		if !Matches(rule, instant) {
			continue
		}
		logger.WithRule(rule.Name).Debugf("Rule matches (priority: %d)", rule.Priority)
		if best == nil || rule.Priority > best.Priority {
			best = rule
		}
	}
	return best
}
