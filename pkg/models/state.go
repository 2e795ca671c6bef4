package models

import (
	"fmt"
	"time"
)

type TargetKind string

const (
	KindDeployment  TargetKind = "Deployment"
	KindStatefulSet TargetKind = "StatefulSet"
)

func (k TargetKind) Valid() bool {
	return k == KindDeployment || k == KindStatefulSet
}

// TargetRef names the workload a schedule manages.
type TargetRef struct {
	Kind      TargetKind `json:"kind"`
	Name      string     `json:"name"`
	Namespace string     `json:"namespace,omitempty"`
}

func (t TargetRef) Key() ResourceKey {
	ns := t.Namespace
	if ns == "" {
		ns = "default"
	}
	return ResourceKey{Namespace: ns, Name: t.Name, Kind: t.Kind}
}

// ResourceKey identifies one managed workload. It is the key for all
// cooldown state and history.
type ResourceKey struct {
	Namespace string     `json:"namespace"`
	Name      string     `json:"name"`
	Kind      TargetKind `json:"kind"`
}

func (k ResourceKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Kind, k.Namespace, k.Name)
}

// ResourceState is the mutable per-workload record owned by the state
// store. Last* fields reflect the most recent successful scaling only.
type ResourceState struct {
	Key                 ResourceKey `json:"key"`
	LastScaledAt        *time.Time  `json:"last_scaled_at,omitempty"`
	LastAppliedReplicas *int32      `json:"last_applied_replicas,omitempty"`
	LastRuleName        string      `json:"last_rule_name,omitempty"`
	ScalingCount        int64       `json:"scaling_count"`
}

// ScalingOperation is one audit record. Failed attempts are recorded
// too; they carry Success=false and the backend error string.
type ScalingOperation struct {
	Timestamp        time.Time   `json:"timestamp"`
	Key              ResourceKey `json:"key"`
	RuleName         string      `json:"rule_name,omitempty"`
	PreviousReplicas int32       `json:"previous_replicas"`
	DesiredReplicas  int32       `json:"desired_replicas"`
	Reason           string      `json:"reason"`
	Success          bool        `json:"success"`
	Error            string      `json:"error,omitempty"`
	DryRun           bool        `json:"dry_run,omitempty"`
}
