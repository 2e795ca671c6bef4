package events

import (
	"github.com/easyscale/easyscale/pkg/models"
)

// Publisher is a typed front for the bus; one method per event the
// controller emits.
type Publisher struct {
	bus *EventBus
}

func NewPublisher(bus *EventBus) *Publisher {
	return &Publisher{bus: bus}
}

func (p *Publisher) RulesLoaded(count int) {
	event := models.NewEvent(models.EventTypeRulesLoaded, "", "Schedules loaded").
		WithData(map[string]interface{}{"count": count})
	p.bus.Publish(event)
}

func (p *Publisher) DecisionMade(key models.ResourceKey, decision *models.ScalingDecision) {
	msg := "Scaling decision: " + decision.Reason
	event := models.NewEvent(models.EventTypeDecisionMade, key.String(), msg).
		WithData(decision)
	p.bus.Publish(event)
}

func (p *Publisher) ScalingStarted(key models.ResourceKey, decision *models.ScalingDecision) {
	event := models.NewEvent(models.EventTypeScalingStarted, key.String(), "Scaling started").
		WithData(decision)
	p.bus.Publish(event)
}

func (p *Publisher) ScalingComplete(key models.ResourceKey, op *models.ScalingOperation) {
	event := models.NewEvent(models.EventTypeScalingComplete, key.String(), "Scaling complete").
		WithData(op)
	p.bus.Publish(event)
}

func (p *Publisher) ScalingFailed(key models.ResourceKey, op *models.ScalingOperation) {
	event := models.NewEvent(models.EventTypeScalingFailed, key.String(), "Scaling failed: "+op.Error).
		WithSeverity(models.SeverityCritical).
		WithData(op)
	p.bus.Publish(event)
}

func (p *Publisher) Error(resource, message string, err error) {
	event := models.NewEvent(models.EventTypeError, resource, message).
		WithSeverity(models.SeverityCritical).
		WithData(map[string]interface{}{"error": err.Error()})
	p.bus.Publish(event)
}
