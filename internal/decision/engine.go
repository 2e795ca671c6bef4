package decision

import (
	"time"

	"github.com/easyscale/easyscale/internal/logger"
	"github.com/easyscale/easyscale/internal/state"
	"github.com/easyscale/easyscale/pkg/models"
)

type Config struct {
	CooldownPeriod time.Duration
}

// Engine turns a schedule result plus the observed replica count into
// a go/no-go scaling decision. It reads the state store for the
// cooldown check but never writes it; the driver records outcomes
// after acting.
type Engine struct {
	config Config
	store  *state.Store
}

func NewEngine(store *state.Store, cfg Config) *Engine {
	if cfg.CooldownPeriod == 0 {
		cfg.CooldownPeriod = time.Minute
	}
	return &Engine{config: cfg, store: store}
}

// Decide applies the spec ordering: a workload already at its desired
// count is a no-op regardless of cooldown; otherwise an active cooldown
// blocks; otherwise scale with the evaluator's reason.
func (e *Engine) Decide(
	key models.ResourceKey,
	result *models.ScheduleResult,
	currentReplicas int32,
	now time.Time,
) *models.ScalingDecision {
	decision := &models.ScalingDecision{
		Key:             key,
		CurrentReplicas: currentReplicas,
		DesiredReplicas: result.DesiredReplicas,
		RuleName:        result.MatchedRuleName(),
	}

	if currentReplicas == result.DesiredReplicas {
		decision.Reason = "already at desired replica count"
		logger.WithResource(key.String()).Debugf(
			"Decision: no-op (already at %d replicas)", currentReplicas,
		)
		return decision
	}

	if e.store.IsInCooldown(key, now, e.config.CooldownPeriod) {
		decision.InCooldown = true
		decision.Reason = "cooldown active"
		logger.WithResource(key.String()).Debugf(
			"Decision: no-op (cooldown active, %s remaining)",
			e.store.CooldownRemaining(key, now, e.config.CooldownPeriod),
		)
		return decision
	}

	decision.ShouldScale = true
	decision.Reason = result.Reason
	logger.WithResource(key.String()).Infof(
		"Decision: scale %d -> %d replicas (%s)",
		currentReplicas, result.DesiredReplicas, result.Reason,
	)
	return decision
}

func (e *Engine) CooldownPeriod() time.Duration {
	return e.config.CooldownPeriod
}

func (e *Engine) CooldownRemaining(key models.ResourceKey, now time.Time) time.Duration {
	return e.store.CooldownRemaining(key, now, e.config.CooldownPeriod)
}
