package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/easyscale/easyscale/internal/decision"
	"github.com/easyscale/easyscale/internal/schedule"
	"github.com/easyscale/easyscale/internal/state"
	"github.com/easyscale/easyscale/pkg/config"
	"github.com/easyscale/easyscale/pkg/models"
)

// ScheduleStore is what the schedule handlers need from the
// controller: the loaded schedule set, nothing more.
type ScheduleStore interface {
	Schedules() []*models.ScalingSchedule
	Schedule(name string) (*models.ScalingSchedule, bool)
}

type ScheduleHandler struct {
	cfg       config.APIConfig
	schedules ScheduleStore
	store     *state.Store
	engine    *decision.Engine
}

func NewScheduleHandler(cfg config.APIConfig, schedules ScheduleStore, store *state.Store, engine *decision.Engine) *ScheduleHandler {
	return &ScheduleHandler{cfg: cfg, schedules: schedules, store: store, engine: engine}
}

func (h *ScheduleHandler) List(c *gin.Context) {
	schedules := h.schedules.Schedules()
	c.JSON(http.StatusOK, gin.H{
		"count":     len(schedules),
		"schedules": schedules,
	})
}

// Preview evaluates one schedule at an arbitrary instant without
// touching the cluster or any state. `at` is RFC3339, default now.
func (h *ScheduleHandler) Preview(c *gin.Context) {
	s, ok := h.schedules.Schedule(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "schedule not found"})
		return
	}

	at := time.Now().UTC()
	if raw := c.Query("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'at' timestamp, expected RFC3339"})
			return
		}
		at = parsed
	}

	result := schedule.Evaluate(&s.Spec, at)
	c.JSON(http.StatusOK, gin.H{
		"target": s.Spec.Target.Key(),
		"result": result,
	})
}

func (h *ScheduleHandler) WorkloadState(c *gin.Context) {
	key, ok := workloadKey(c)
	if !ok {
		return
	}

	st := h.store.GetState(key)
	now := time.Now().UTC()
	c.JSON(http.StatusOK, gin.H{
		"state":              st,
		"in_cooldown":        h.engine.CooldownRemaining(key, now) > 0,
		"cooldown_remaining": h.engine.CooldownRemaining(key, now).String(),
	})
}

func (h *ScheduleHandler) WorkloadHistory(c *gin.Context) {
	key, ok := workloadKey(c)
	if !ok {
		return
	}

	limit := h.cfg.DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}
	if h.cfg.MaxLimit > 0 && limit > h.cfg.MaxLimit {
		limit = h.cfg.MaxLimit
	}

	history := h.store.GetHistory(key, limit)
	c.JSON(http.StatusOK, gin.H{
		"count":   len(history),
		"history": history,
	})
}

func workloadKey(c *gin.Context) (models.ResourceKey, bool) {
	kind := models.TargetKind(c.Param("kind"))
	if !kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be Deployment or StatefulSet"})
		return models.ResourceKey{}, false
	}
	return models.ResourceKey{
		Namespace: c.Param("namespace"),
		Name:      c.Param("name"),
		Kind:      kind,
	}, true
}
