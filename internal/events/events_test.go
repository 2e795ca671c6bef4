package events_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyscale/easyscale/internal/events"
	"github.com/easyscale/easyscale/pkg/models"
)

func receive(t *testing.T, ch <-chan *models.Event) *models.Event {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestEventBus_Subscribe(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(models.EventTypeDecisionMade)
	bus.Publish(models.NewEvent(models.EventTypeDecisionMade, "Deployment/default/web", "decision"))
	bus.Publish(models.NewEvent(models.EventTypeError, "Deployment/default/web", "ignored"))

	event := receive(t, ch)
	assert.Equal(t, models.EventTypeDecisionMade, event.Type)
	assert.Equal(t, "Deployment/default/web", event.Resource)

	select {
	case unexpected := <-ch:
		t.Fatalf("received event of wrong type: %s", unexpected.Type)
	default:
	}
}

func TestEventBus_SubscribeAll(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()

	ch := bus.SubscribeAll()
	bus.Publish(models.NewEvent(models.EventTypeRulesLoaded, "", "loaded"))
	bus.Publish(models.NewEvent(models.EventTypeScalingComplete, "Deployment/default/web", "done"))

	assert.Equal(t, models.EventTypeRulesLoaded, receive(t, ch).Type)
	assert.Equal(t, models.EventTypeScalingComplete, receive(t, ch).Type)
}

func TestEventBus_DropsWhenFull(t *testing.T) {
	bus := events.NewEventBus(1)
	defer bus.Close()

	ch := bus.Subscribe(models.EventTypeError)
	bus.Publish(models.NewEvent(models.EventTypeError, "a", "first"))
	bus.Publish(models.NewEvent(models.EventTypeError, "b", "dropped"))

	assert.Equal(t, "a", receive(t, ch).Resource)
	select {
	case event := <-ch:
		t.Fatalf("expected second event to be dropped, got %s", event.Resource)
	default:
	}
}

func TestEventBus_Close(t *testing.T) {
	bus := events.NewEventBus(10)
	ch := bus.SubscribeAll()

	bus.Close()
	bus.Close() // idempotent

	_, open := <-ch
	assert.False(t, open)

	// Publishing after close is a no-op, not a panic.
	bus.Publish(models.NewEvent(models.EventTypeError, "a", "late"))
}

func TestPublisher_ScalingFailedSeverity(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(models.EventTypeScalingFailed)
	publisher := events.NewPublisher(bus)

	key := models.ResourceKey{Namespace: "default", Name: "web", Kind: models.KindDeployment}
	publisher.ScalingFailed(key, &models.ScalingOperation{Key: key, Error: "forbidden"})

	event := receive(t, ch)
	require.NotNil(t, event)
	assert.Equal(t, models.SeverityCritical, event.Severity)
	assert.Contains(t, event.Message, "forbidden")
}
