package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/easyscale/easyscale/pkg/models"
)

// ValidationResult collects everything wrong or suspicious about one
// schedule. Errors make the schedule unusable; warnings are operator
// hints only.
type ValidationResult struct {
	Errors   []string
	Warnings []string
}

func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

func (r *ValidationResult) errorf(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) warnf(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) String() string {
	var b strings.Builder
	if r.Valid() {
		b.WriteString("schedule is valid")
	} else {
		b.WriteString("schedule is invalid")
	}
	for _, e := range r.Errors {
		b.WriteString("\n  error: " + e)
	}
	for _, w := range r.Warnings {
		b.WriteString("\n  warning: " + w)
	}
	return b.String()
}

// Validate performs the semantic checks the evaluator relies on having
// been done upstream. The evaluator itself stays total for anything
// that slips through (it treats broken rules as never matching), so
// everything here is either a hard config error or an operator hint.
func Validate(schedule *models.ScalingSchedule) *ValidationResult {
	result := &ValidationResult{}

	if schedule.Metadata.Name == "" {
		result.errorf("metadata.name is required")
	}

	target := schedule.Spec.Target
	if target.Name == "" {
		result.errorf("spec.target.name is required")
	}
	if !target.Kind.Valid() {
		result.errorf("spec.target.kind must be Deployment or StatefulSet, got %q", target.Kind)
	}

	if len(schedule.Spec.Rules) == 0 {
		result.errorf("spec.schedule must contain at least one rule")
	}

	if schedule.Spec.Default.Replicas < 0 {
		result.errorf("spec.default.replicas must be non-negative")
	}

	limits := schedule.Spec.Limits
	if limits != nil {
		if limits.MinReplicas < 0 {
			result.errorf("spec.limits.minReplicas must be non-negative")
		}
		if limits.MinReplicas > limits.MaxReplicas {
			result.errorf("spec.limits.minReplicas (%d) cannot exceed maxReplicas (%d)",
				limits.MinReplicas, limits.MaxReplicas)
		}
		if schedule.Spec.Default.Replicas < limits.MinReplicas ||
			schedule.Spec.Default.Replicas > limits.MaxReplicas {
			result.warnf("default replicas (%d) is outside limits [%d, %d] and will be clamped",
				schedule.Spec.Default.Replicas, limits.MinReplicas, limits.MaxReplicas)
		}
	}

	seenNames := make(map[string]bool)
	priorities := make(map[int][]string)
	for i := range schedule.Spec.Rules {
		rule := &schedule.Spec.Rules[i]
		validateRule(rule, limits, result)

		if rule.Name != "" {
			if seenNames[rule.Name] {
				result.errorf("rule name %q is used more than once", rule.Name)
			}
			seenNames[rule.Name] = true
		}
		priorities[rule.Priority] = append(priorities[rule.Priority], rule.Name)
	}

	for priority, names := range priorities {
		if len(names) > 1 {
			result.warnf("rules %s share priority %d; ties resolve by manifest order",
				strings.Join(names, ", "), priority)
		}
	}

	return result
}

func validateRule(rule *models.ScheduleRule, limits *models.ScalingLimits, result *ValidationResult) {
	if rule.Name == "" {
		result.errorf("every schedule rule needs a name")
	}

	if rule.Replicas < 0 {
		result.errorf("rule %q: replicas must be non-negative", rule.Name)
	}

	for _, day := range rule.Days {
		if !day.Valid() {
			result.errorf("rule %q: unknown day %q", rule.Name, day)
		}
	}

	if rule.Timezone != "" {
		if _, err := time.LoadLocation(rule.Timezone); err != nil {
			result.errorf("rule %q: invalid timezone %q (use IANA names like UTC or America/New_York)",
				rule.Name, rule.Timezone)
		}
	}

	if rule.TimeStart != nil && rule.TimeEnd != nil && !rule.TimeStart.Before(*rule.TimeEnd) {
		result.errorf("rule %q: timeStart (%s) must be before timeEnd (%s); windows cannot span midnight, split the rule in two",
			rule.Name, rule.TimeStart, rule.TimeEnd)
	}

	hasTime := rule.TimeStart != nil || rule.TimeEnd != nil
	if hasTime && len(rule.Days) == 0 && len(rule.Dates) == 0 {
		result.warnf("rule %q: time range without days or dates applies every day", rule.Name)
	}

	if len(rule.Dates) > 0 && len(rule.Days) == 0 {
		result.warnf("rule %q: only specific dates are set; the rule never recurs", rule.Name)
	}

	if limits != nil && (rule.Replicas < limits.MinReplicas || rule.Replicas > limits.MaxReplicas) {
		result.warnf("rule %q: replicas (%d) is outside limits [%d, %d] and will be clamped",
			rule.Name, rule.Replicas, limits.MinReplicas, limits.MaxReplicas)
	}
}
