package models

// ScalingDecision is the decision engine's verdict for one workload at
// one tick. It carries no side effects; recording happens only after
// the driver has acted on it.
type ScalingDecision struct {
	Key             ResourceKey `json:"key"`
	ShouldScale     bool        `json:"should_scale"`
	CurrentReplicas int32       `json:"current_replicas"`
	DesiredReplicas int32       `json:"desired_replicas"`
	RuleName        string      `json:"rule_name,omitempty"`
	InCooldown      bool        `json:"in_cooldown"`
	Reason          string      `json:"reason"`
}

func (d *ScalingDecision) ReplicaDelta() int32 {
	return d.DesiredReplicas - d.CurrentReplicas
}
