package controller

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/easyscale/easyscale/internal/decision"
	"github.com/easyscale/easyscale/internal/events"
	"github.com/easyscale/easyscale/internal/k8s"
	"github.com/easyscale/easyscale/internal/logger"
	"github.com/easyscale/easyscale/internal/rules"
	"github.com/easyscale/easyscale/internal/schedule"
	"github.com/easyscale/easyscale/internal/state"
	"github.com/easyscale/easyscale/pkg/config"
	"github.com/easyscale/easyscale/pkg/models"
)

// Daemon drives the engine: it owns the loaded schedules and, on every
// cron fire, runs one tick per managed workload. Everything stateful
// lives in the store; a tick abandoned before RecordScaling leaves no
// trace. Cycles are single-flight: a fire that arrives while the
// previous cycle is still running is skipped, so no two ticks ever
// race the cooldown check-then-record sequence for the same key.
type Daemon struct {
	cfg       config.ControllerConfig
	rulesDir  string
	backend   k8s.ClientInterface
	crdSource *rules.CRDSource
	store     *state.Store
	engine    *decision.Engine
	publisher *events.Publisher

	mu           sync.RWMutex
	schedules    map[string]*models.ScalingSchedule
	crdSchedules map[string]*models.ScalingSchedule

	runMu   sync.Mutex
	wg      sync.WaitGroup
	cron    *cron.Cron
	timeout time.Duration
}

func New(
	cfg config.ControllerConfig,
	rulesDir string,
	backend k8s.ClientInterface,
	store *state.Store,
	engine *decision.Engine,
	publisher *events.Publisher,
	requestTimeout time.Duration,
) *Daemon {
	if requestTimeout <= 0 {
		requestTimeout = 10 * time.Second
	}
	return &Daemon{
		cfg:       cfg,
		rulesDir:  rulesDir,
		backend:   backend,
		store:     store,
		engine:    engine,
		publisher: publisher,
		schedules: make(map[string]*models.ScalingSchedule),
		timeout:   requestTimeout,
	}
}

// UseCRDSource adds the cluster as a second schedule source. Custom
// resources are re-listed at the start of every cycle, so new and
// edited schedules take effect without a restart; on a key collision a
// custom resource shadows the file-loaded schedule.
func (d *Daemon) UseCRDSource(src *rules.CRDSource) {
	d.crdSource = src
}

// LoadRules reads every manifest in the rules directory, replacing the
// currently held set wholesale.
func (d *Daemon) LoadRules() (int, error) {
	loaded, err := rules.LoadFromDirectory(d.rulesDir)
	if err != nil {
		return 0, err
	}

	next := make(map[string]*models.ScalingSchedule, len(loaded))
	for _, s := range loaded {
		next[scheduleKey(s)] = s
	}

	d.mu.Lock()
	d.schedules = next
	d.mu.Unlock()

	d.publisher.RulesLoaded(len(next))
	logger.Infof("Loaded %d schedules from %s", len(next), d.rulesDir)
	return len(next), nil
}

// AddSchedule inserts or replaces one schedule after validating it.
func (d *Daemon) AddSchedule(s *models.ScalingSchedule) error {
	result := rules.Validate(s)
	for _, warning := range result.Warnings {
		logger.WithField("schedule", s.Metadata.Name).Warn(warning)
	}
	if !result.Valid() {
		return fmt.Errorf("invalid schedule %q: %s", s.Metadata.Name, result.Errors[0])
	}

	d.mu.Lock()
	d.schedules[scheduleKey(s)] = s
	d.mu.Unlock()
	return nil
}

// mergedLocked overlays cluster-sourced schedules on the file set.
// Callers hold d.mu.
func (d *Daemon) mergedLocked() map[string]*models.ScalingSchedule {
	merged := make(map[string]*models.ScalingSchedule, len(d.schedules)+len(d.crdSchedules))
	for key, s := range d.schedules {
		merged[key] = s
	}
	for key, s := range d.crdSchedules {
		merged[key] = s
	}
	return merged
}

// Schedules returns the held schedules in a stable order.
func (d *Daemon) Schedules() []*models.ScalingSchedule {
	d.mu.RLock()
	merged := d.mergedLocked()
	d.mu.RUnlock()

	out := make([]*models.ScalingSchedule, 0, len(merged))
	for _, s := range merged {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return scheduleKey(out[i]) < scheduleKey(out[j])
	})
	return out
}

func (d *Daemon) ScheduleCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.mergedLocked())
}

// Schedule looks up one schedule by its metadata name.
func (d *Daemon) Schedule(name string) (*models.ScalingSchedule, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, s := range d.mergedLocked() {
		if s.Metadata.Name == name {
			return s, true
		}
	}
	return nil, false
}

// Start schedules RunCycle on the configured interval. The first cycle
// runs immediately rather than waiting one full interval.
func (d *Daemon) Start(ctx context.Context) error {
	if d.cron != nil {
		return fmt.Errorf("daemon already started")
	}

	d.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))
	spec := fmt.Sprintf("@every %s", d.cfg.CheckInterval)
	if _, err := d.cron.AddFunc(spec, func() { d.RunCycle(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule evaluation cycle: %w", err)
	}

	logger.Infof("Controller starting (interval: %s, cooldown: %s, dry_run: %v)",
		d.cfg.CheckInterval, d.cfg.Cooldown, d.cfg.DryRun)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.RunCycle(ctx)
	}()
	d.cron.Start()
	return nil
}

// Stop halts the tick schedule and waits for any running cycle,
// including the immediate one launched by Start, to finish.
func (d *Daemon) Stop() {
	if d.cron == nil {
		return
	}
	stopCtx := d.cron.Stop()
	<-stopCtx.Done()
	d.wg.Wait()
	logger.Info("Controller stopped")
}

// RunCycle refreshes cluster-sourced schedules and evaluates every
// held schedule once. At most one cycle runs at a time; a call that
// finds another cycle in flight returns immediately, which keeps the
// per-key cooldown check and the following record from ever racing.
func (d *Daemon) RunCycle(ctx context.Context) {
	if !d.runMu.TryLock() {
		logger.Debug("Evaluation cycle already running, skipping this tick")
		return
	}
	defer d.runMu.Unlock()

	d.refreshCRDSchedules(ctx)

	schedules := d.Schedules()
	if len(schedules) == 0 {
		logger.Debug("No schedules to evaluate")
		return
	}

	start := time.Now()
	for _, s := range schedules {
		if ctx.Err() != nil {
			return
		}
		d.processSchedule(ctx, s)
	}
	logger.Debugf("Evaluation cycle completed in %s (%d schedules)",
		time.Since(start).Round(time.Millisecond), len(schedules))
}

// refreshCRDSchedules re-lists ScalingSchedule custom resources and
// replaces the cluster-sourced set wholesale, so deleted resources stop
// being evaluated. A failed list keeps the previous set.
func (d *Daemon) refreshCRDSchedules(ctx context.Context) {
	if d.crdSource == nil {
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	loaded, err := d.crdSource.List(reqCtx, "")
	if err != nil {
		logger.Errorf("Failed to refresh schedule resources, keeping previous set: %v", err)
		return
	}

	next := make(map[string]*models.ScalingSchedule, len(loaded))
	for _, s := range loaded {
		next[scheduleKey(s)] = s
	}

	d.mu.Lock()
	d.crdSchedules = next
	d.mu.Unlock()
}

func (d *Daemon) processSchedule(ctx context.Context, s *models.ScalingSchedule) {
	key := s.Spec.Target.Key()
	now := time.Now().UTC()

	result := schedule.Evaluate(&s.Spec, now)

	reqCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	exists, err := d.backend.Exists(reqCtx, key)
	if err != nil {
		logger.WithResource(key.String()).Errorf("Failed to check workload: %v", err)
		d.publisher.Error(key.String(), "workload lookup failed", err)
		return
	}
	if !exists {
		logger.WithResource(key.String()).Warnf(
			"Workload does not exist, skipping (schedule: %s)", s.Metadata.Name,
		)
		return
	}

	current, err := d.backend.GetCurrentReplicas(reqCtx, key)
	if err != nil {
		logger.WithResource(key.String()).Errorf("Failed to read replicas: %v", err)
		d.publisher.Error(key.String(), "replica read failed", err)
		return
	}

	dec := d.engine.Decide(key, result, current, now)
	d.publisher.DecisionMade(key, dec)

	if !dec.ShouldScale {
		logger.WithResource(key.String()).Debugf("Skipping scaling: %s", dec.Reason)
		return
	}

	d.applyDecision(reqCtx, key, dec, now)
}

// applyDecision performs the scale (or pretends to, in dry-run) and
// records the outcome. A failed apply is recorded with success=false
// so it never advances the cooldown clock.
func (d *Daemon) applyDecision(ctx context.Context, key models.ResourceKey, dec *models.ScalingDecision, now time.Time) {
	d.publisher.ScalingStarted(key, dec)

	op := models.ScalingOperation{
		Timestamp:        now,
		Key:              key,
		RuleName:         dec.RuleName,
		PreviousReplicas: dec.CurrentReplicas,
		DesiredReplicas:  dec.DesiredReplicas,
		Reason:           dec.Reason,
		Success:          true,
		DryRun:           d.cfg.DryRun,
	}

	if d.cfg.DryRun {
		logger.WithResource(key.String()).Infof(
			"[DRY-RUN] Would scale %d -> %d replicas (%s)",
			dec.CurrentReplicas, dec.DesiredReplicas, dec.Reason,
		)
	} else if err := d.backend.SetReplicas(ctx, key, dec.DesiredReplicas, false); err != nil {
		op.Success = false
		op.Error = err.Error()
		logger.WithResource(key.String()).Errorf("Scaling failed: %v", err)
	}

	d.store.RecordScaling(op)

	if op.Success {
		if !op.DryRun {
			logger.WithResource(key.String()).Infof(
				"Scaled %d -> %d replicas (%s)",
				dec.CurrentReplicas, dec.DesiredReplicas, dec.Reason,
			)
		}
		d.publisher.ScalingComplete(key, &op)
	} else {
		d.publisher.ScalingFailed(key, &op)
	}
}

func scheduleKey(s *models.ScalingSchedule) string {
	ns := s.Metadata.Namespace
	if ns == "" {
		ns = "default"
	}
	return ns + "/" + s.Metadata.Name
}
