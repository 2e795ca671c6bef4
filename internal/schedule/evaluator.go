package schedule

import (
	"fmt"
	"time"

	"github.com/easyscale/easyscale/internal/logger"
	"github.com/easyscale/easyscale/pkg/models"
)

// Clamp forces value into the closed range the limits describe. Nil
// limits leave the value untouched. Out-of-bounds rule or default
// values are overridden silently; warning about them is the rule
// validator's job at load time.
func Clamp(value int32, limits *models.ScalingLimits) int32 {
	if limits == nil {
		return value
	}
	if value < limits.MinReplicas {
		return limits.MinReplicas
	}
	if value > limits.MaxReplicas {
		return limits.MaxReplicas
	}
	return value
}

// Evaluate computes the desired replica count for a workload schedule
// at one instant. It is pure: identical inputs always produce the same
// result, and no state is read or written.
func Evaluate(ws *models.WorkloadSchedule, instant time.Time) *models.ScheduleResult {
	matched := SelectRule(ws.Rules, instant)

	if matched == nil {
		return &models.ScheduleResult{
			DesiredReplicas: Clamp(ws.Default.Replicas, ws.Limits),
			Reason:          "no rule matched; using default",
			EvaluatedAt:     instant,
		}
	}

	logger.WithRule(matched.Name).Debugf(
		"Rule selected (priority: %d, replicas: %d)", matched.Priority, matched.Replicas,
	)

	return &models.ScheduleResult{
		DesiredReplicas: Clamp(matched.Replicas, ws.Limits),
		MatchedRule:     matched,
		Reason:          fmt.Sprintf("matched rule: %s", matched.Name),
		EvaluatedAt:     instant,
	}
}
