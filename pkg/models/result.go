package models

import "time"

// ScheduleResult is the outcome of evaluating a workload schedule at
// one instant. DesiredReplicas is already clamped.
type ScheduleResult struct {
	DesiredReplicas int32         `json:"desired_replicas"`
	MatchedRule     *ScheduleRule `json:"matched_rule,omitempty"`
	Reason          string        `json:"reason"`
	EvaluatedAt     time.Time     `json:"evaluated_at"`
}

// IsDefault reports whether no rule matched and the schedule default applied.
func (r *ScheduleResult) IsDefault() bool {
	return r.MatchedRule == nil
}

func (r *ScheduleResult) MatchedRuleName() string {
	if r.MatchedRule == nil {
		return ""
	}
	return r.MatchedRule.Name
}
