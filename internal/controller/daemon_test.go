package controller_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	dynamicfake "k8s.io/client-go/dynamic/fake"

	"github.com/easyscale/easyscale/internal/controller"
	"github.com/easyscale/easyscale/internal/decision"
	"github.com/easyscale/easyscale/internal/events"
	"github.com/easyscale/easyscale/internal/rules"
	"github.com/easyscale/easyscale/internal/state"
	"github.com/easyscale/easyscale/pkg/config"
	"github.com/easyscale/easyscale/pkg/models"
)

// fakeBackend is an in-memory cluster: a replica count per known
// workload, plus an optional injected error for scale calls. Setting
// the getEntered/getGate pair turns every replica read into a
// rendezvous point, which lets a test hold one cycle mid-flight.
type fakeBackend struct {
	mu       sync.Mutex
	replicas map[models.ResourceKey]int32
	setErr   error
	setCalls int

	getEntered chan struct{}
	getGate    chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{replicas: make(map[models.ResourceKey]int32)}
}

func (f *fakeBackend) GetCurrentReplicas(_ context.Context, key models.ResourceKey) (int32, error) {
	if f.getEntered != nil {
		f.getEntered <- struct{}{}
		<-f.getGate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.replicas[key]
	if !ok {
		return 0, errors.New("not found")
	}
	return n, nil
}

func (f *fakeBackend) SetReplicas(_ context.Context, key models.ResourceKey, replicas int32, dryRun bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls++
	if f.setErr != nil {
		return f.setErr
	}
	if !dryRun {
		f.replicas[key] = replicas
	}
	return nil
}

func (f *fakeBackend) Exists(_ context.Context, key models.ResourceKey) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.replicas[key]
	return ok, nil
}

func (f *fakeBackend) current(key models.ResourceKey) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.replicas[key]
}

const daemonManifest = `
apiVersion: easyscale.io/v1
kind: ScalingSchedule
metadata:
  name: web-schedule
spec:
  target:
    kind: Deployment
    name: web
  schedule:
    - name: always
      replicas: 2
  default:
    replicas: 5
`

var daemonKey = models.ResourceKey{Namespace: "default", Name: "web", Kind: models.KindDeployment}

type daemonFixture struct {
	daemon  *controller.Daemon
	backend *fakeBackend
	store   *state.Store
}

func newDaemonFixture(t *testing.T, cfg config.ControllerConfig) *daemonFixture {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "web.yaml"), []byte(daemonManifest), 0o644))

	backend := newFakeBackend()
	store := state.NewStore(cfg.HistoryLimit)
	engine := decision.NewEngine(store, decision.Config{CooldownPeriod: cfg.Cooldown})
	bus := events.NewEventBus(10)
	t.Cleanup(bus.Close)

	daemon := controller.New(cfg, dir, backend, store, engine, events.NewPublisher(bus), time.Second)
	return &daemonFixture{daemon: daemon, backend: backend, store: store}
}

func defaultControllerConfig() config.ControllerConfig {
	return config.ControllerConfig{
		CheckInterval: time.Minute,
		Cooldown:      time.Minute,
		HistoryLimit:  10,
	}
}

func TestDaemon_LoadRules(t *testing.T) {
	f := newDaemonFixture(t, defaultControllerConfig())

	count, err := f.daemon.LoadRules()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, f.daemon.ScheduleCount())

	s, ok := f.daemon.Schedule("web-schedule")
	require.True(t, ok)
	assert.Equal(t, "web", s.Spec.Target.Name)

	_, ok = f.daemon.Schedule("missing")
	assert.False(t, ok)
}

func TestDaemon_AddSchedule_RejectsInvalid(t *testing.T) {
	f := newDaemonFixture(t, defaultControllerConfig())

	err := f.daemon.AddSchedule(&models.ScalingSchedule{
		APIVersion: models.APIVersion,
		Kind:       models.KindSchedule,
		Metadata:   models.Metadata{Name: "broken"},
	})
	assert.Error(t, err)
	assert.Zero(t, f.daemon.ScheduleCount())
}

func TestDaemon_RunCycle_AppliesScale(t *testing.T) {
	f := newDaemonFixture(t, defaultControllerConfig())
	f.backend.replicas[daemonKey] = 5

	_, err := f.daemon.LoadRules()
	require.NoError(t, err)

	f.daemon.RunCycle(context.Background())

	assert.Equal(t, int32(2), f.backend.current(daemonKey))

	history := f.store.GetHistory(daemonKey, 0)
	require.Len(t, history, 1)
	assert.True(t, history[0].Success)
	assert.Equal(t, "always", history[0].RuleName)
	assert.Equal(t, int32(5), history[0].PreviousReplicas)
	assert.Equal(t, int32(2), history[0].DesiredReplicas)

	st := f.store.GetState(daemonKey)
	assert.Equal(t, int64(1), st.ScalingCount)
	assert.Equal(t, "always", st.LastRuleName)
}

func TestDaemon_RunCycle_NoOpAtDesiredCount(t *testing.T) {
	f := newDaemonFixture(t, defaultControllerConfig())
	f.backend.replicas[daemonKey] = 2

	_, err := f.daemon.LoadRules()
	require.NoError(t, err)

	f.daemon.RunCycle(context.Background())

	assert.Zero(t, f.backend.setCalls)
	assert.Empty(t, f.store.GetHistory(daemonKey, 0))
}

func TestDaemon_RunCycle_CooldownBlocksSecondScale(t *testing.T) {
	f := newDaemonFixture(t, defaultControllerConfig())
	f.backend.replicas[daemonKey] = 5

	_, err := f.daemon.LoadRules()
	require.NoError(t, err)

	f.daemon.RunCycle(context.Background())
	require.Equal(t, int32(2), f.backend.current(daemonKey))

	// Something scales the workload back up behind our back; the
	// cooldown keeps the next cycle from correcting it immediately.
	f.backend.mu.Lock()
	f.backend.replicas[daemonKey] = 5
	f.backend.mu.Unlock()

	f.daemon.RunCycle(context.Background())

	assert.Equal(t, int32(5), f.backend.current(daemonKey))
	assert.Len(t, f.store.GetHistory(daemonKey, 0), 1)
}

func TestDaemon_RunCycle_FailedScaleRecordedWithoutCooldown(t *testing.T) {
	f := newDaemonFixture(t, defaultControllerConfig())
	f.backend.replicas[daemonKey] = 5
	f.backend.setErr = errors.New("forbidden")

	_, err := f.daemon.LoadRules()
	require.NoError(t, err)

	f.daemon.RunCycle(context.Background())

	history := f.store.GetHistory(daemonKey, 0)
	require.Len(t, history, 1)
	assert.False(t, history[0].Success)
	assert.Contains(t, history[0].Error, "forbidden")
	assert.Zero(t, f.store.GetState(daemonKey).ScalingCount)

	// Failure never starts a cooldown, so the next cycle retries.
	f.daemon.RunCycle(context.Background())
	assert.Len(t, f.store.GetHistory(daemonKey, 0), 2)
}

func TestDaemon_RunCycle_DryRun(t *testing.T) {
	cfg := defaultControllerConfig()
	cfg.DryRun = true

	f := newDaemonFixture(t, cfg)
	f.backend.replicas[daemonKey] = 5

	_, err := f.daemon.LoadRules()
	require.NoError(t, err)

	f.daemon.RunCycle(context.Background())

	// The workload is untouched but the operation is on record.
	assert.Equal(t, int32(5), f.backend.current(daemonKey))
	assert.Zero(t, f.backend.setCalls)

	history := f.store.GetHistory(daemonKey, 0)
	require.Len(t, history, 1)
	assert.True(t, history[0].Success)
	assert.True(t, history[0].DryRun)
}

func TestDaemon_RunCycle_SkipsMissingWorkload(t *testing.T) {
	f := newDaemonFixture(t, defaultControllerConfig())

	_, err := f.daemon.LoadRules()
	require.NoError(t, err)

	f.daemon.RunCycle(context.Background())

	assert.Zero(t, f.backend.setCalls)
	assert.Empty(t, f.store.GetHistory(daemonKey, 0))
}

func TestDaemon_RunCycle_SingleFlight(t *testing.T) {
	f := newDaemonFixture(t, defaultControllerConfig())
	f.backend.replicas[daemonKey] = 5
	f.backend.getEntered = make(chan struct{}, 1)
	f.backend.getGate = make(chan struct{})

	_, err := f.daemon.LoadRules()
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		f.daemon.RunCycle(context.Background())
		close(done)
	}()

	// Hold the first cycle inside the replica read, then fire a second
	// cycle. It must return without evaluating anything; if both
	// proceeded, both would observe "not in cooldown" and scale.
	<-f.backend.getEntered
	f.daemon.RunCycle(context.Background())

	close(f.backend.getGate)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("first cycle did not finish")
	}

	assert.Equal(t, 1, f.backend.setCalls)
	assert.Len(t, f.store.GetHistory(daemonKey, 0), 1)
	assert.Equal(t, int64(1), f.store.GetState(daemonKey).ScalingCount)
}

func TestDaemon_RunCycle_RefreshesClusterSchedules(t *testing.T) {
	apiKey := models.ResourceKey{Namespace: "default", Name: "api", Kind: models.KindDeployment}

	f := newDaemonFixture(t, defaultControllerConfig())
	f.backend.replicas[daemonKey] = 2
	f.backend.replicas[apiKey] = 5

	dyn := dynamicfake.NewSimpleDynamicClientWithCustomListKinds(
		runtime.NewScheme(),
		map[schema.GroupVersionResource]string{rules.ScheduleGVR: "ScalingScheduleList"},
		&unstructured.Unstructured{Object: map[string]interface{}{
			"apiVersion": "easyscale.io/v1",
			"kind":       "ScalingSchedule",
			"metadata":   map[string]interface{}{"name": "api-schedule", "namespace": "default"},
			"spec": map[string]interface{}{
				"target": map[string]interface{}{"kind": "Deployment", "name": "api"},
				"schedule": []interface{}{
					map[string]interface{}{"name": "always", "replicas": int64(2)},
				},
				"default": map[string]interface{}{"replicas": int64(5)},
			},
		}},
	)
	f.daemon.UseCRDSource(rules.NewCRDSource(dyn))

	_, err := f.daemon.LoadRules()
	require.NoError(t, err)
	assert.Equal(t, 1, f.daemon.ScheduleCount())

	// The cycle picks up the cluster resource and acts on it.
	f.daemon.RunCycle(context.Background())

	assert.Equal(t, 2, f.daemon.ScheduleCount())
	_, ok := f.daemon.Schedule("api-schedule")
	assert.True(t, ok)
	assert.Equal(t, int32(2), f.backend.current(apiKey))

	// Deleting the resource removes it on the next refresh.
	require.NoError(t, dyn.Resource(rules.ScheduleGVR).Namespace("default").
		Delete(context.Background(), "api-schedule", metav1.DeleteOptions{}))

	f.daemon.RunCycle(context.Background())

	assert.Equal(t, 1, f.daemon.ScheduleCount())
	_, ok = f.daemon.Schedule("api-schedule")
	assert.False(t, ok)
}

func TestDaemon_StartStop(t *testing.T) {
	f := newDaemonFixture(t, defaultControllerConfig())
	f.backend.replicas[daemonKey] = 5

	_, err := f.daemon.LoadRules()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, f.daemon.Start(ctx))
	assert.Error(t, f.daemon.Start(ctx))

	// The immediate first cycle should land shortly.
	assert.Eventually(t, func() bool {
		return f.backend.current(daemonKey) == 2
	}, 2*time.Second, 10*time.Millisecond)

	f.daemon.Stop()
}
