package state

import (
	"sync"
	"time"

	"github.com/easyscale/easyscale/internal/logger"
	"github.com/easyscale/easyscale/pkg/models"
)

const DefaultHistoryLimit = 100

// Store holds the mutable per-workload scaling state: the cooldown
// clock, the last applied replica count and a bounded operation
// history. It is the only shared mutable resource in the engine; all
// access goes through one RWMutex so a cooldown check followed by a
// record is never interleaved with another writer for the same key.
type Store struct {
	mu         sync.RWMutex
	states     map[models.ResourceKey]*models.ResourceState
	history    map[models.ResourceKey]*historyRing
	historyCap int
}

func NewStore(historyCap int) *Store {
	if historyCap <= 0 {
		historyCap = DefaultHistoryLimit
	}
	return &Store{
		states:     make(map[models.ResourceKey]*models.ResourceState),
		history:    make(map[models.ResourceKey]*historyRing),
		historyCap: historyCap,
	}
}

// IsInCooldown reports whether the last successful scaling of key is
// more recent than now-cooldown. A workload that has never been scaled
// is never in cooldown.
func (s *Store) IsInCooldown(key models.ResourceKey, now time.Time, cooldown time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, exists := s.states[key]
	if !exists || st.LastScaledAt == nil {
		return false
	}
	return now.Sub(*st.LastScaledAt) < cooldown
}

// CooldownRemaining returns how long key stays gated, zero when it is
// free to scale.
func (s *Store) CooldownRemaining(key models.ResourceKey, now time.Time, cooldown time.Duration) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, exists := s.states[key]
	if !exists || st.LastScaledAt == nil {
		return 0
	}
	elapsed := now.Sub(*st.LastScaledAt)
	if elapsed >= cooldown {
		return 0
	}
	return cooldown - elapsed
}

// RecordScaling appends an operation to the bounded history. Only a
// successful operation advances the cooldown clock, the last-applied
// fields and the counter; failed attempts are kept for audit without
// blocking a later correction.
func (s *Store) RecordScaling(op models.ScalingOperation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ring, exists := s.history[op.Key]
	if !exists {
		ring = newHistoryRing(s.historyCap)
		s.history[op.Key] = ring
	}
	ring.append(op)

	st := s.stateLocked(op.Key)
	if !op.Success {
		logger.WithResource(op.Key.String()).Debugf(
			"Recorded failed scaling attempt (%d -> %d): %s",
			op.PreviousReplicas, op.DesiredReplicas, op.Error,
		)
		return
	}

	ts := op.Timestamp
	replicas := op.DesiredReplicas
	st.LastScaledAt = &ts
	st.LastAppliedReplicas = &replicas
	st.LastRuleName = op.RuleName
	st.ScalingCount++
}

// GetState returns a copy of the workload's state, or a zero-value
// state when it has never been seen.
func (s *Store) GetState(key models.ResourceKey) models.ResourceState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, exists := s.states[key]
	if !exists {
		return models.ResourceState{Key: key}
	}

	out := *st
	if st.LastScaledAt != nil {
		ts := *st.LastScaledAt
		out.LastScaledAt = &ts
	}
	if st.LastAppliedReplicas != nil {
		replicas := *st.LastAppliedReplicas
		out.LastAppliedReplicas = &replicas
	}
	return out
}

// GetHistory returns up to limit past operations for key, most recent
// first. A non-positive limit returns everything retained.
func (s *Store) GetHistory(key models.ResourceKey, limit int) []models.ScalingOperation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ring, exists := s.history[key]
	if !exists {
		return nil
	}
	return ring.newestFirst(limit)
}

func (s *Store) stateLocked(key models.ResourceKey) *models.ResourceState {
	st, exists := s.states[key]
	if !exists {
		st = &models.ResourceState{Key: key}
		s.states[key] = st
	}
	return st
}

// historyRing is a fixed-capacity ring buffer; once full, each append
// evicts the oldest entry.
type historyRing struct {
	ops   []models.ScalingOperation
	next  int
	count int
}

func newHistoryRing(capacity int) *historyRing {
	return &historyRing{ops: make([]models.ScalingOperation, capacity)}
}

func (r *historyRing) append(op models.ScalingOperation) {
	r.ops[r.next] = op
	r.next = (r.next + 1) % len(r.ops)
	if r.count < len(r.ops) {
		r.count++
	}
}

func (r *historyRing) newestFirst(limit int) []models.ScalingOperation {
	n := r.count
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.ScalingOperation, 0, n)
	for i := 1; i <= n; i++ {
		idx := (r.next - i + len(r.ops)) % len(r.ops)
		out = append(out, r.ops[idx])
	}
	return out
}
