package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ScheduleSource is the slice of the controller the health and
// schedule handlers read from.
type ScheduleSource interface {
	ScheduleCount() int
}

type HealthHandler struct {
	source    ScheduleSource
	startedAt time.Time
}

func NewHealthHandler(source ScheduleSource) *HealthHandler {
	return &HealthHandler{source: source, startedAt: time.Now()}
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Schedules int    `json:"schedules,omitempty"`
	UptimeSec int64  `json:"uptime_seconds,omitempty"`
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Schedules: h.source.ScheduleCount(),
		UptimeSec: int64(time.Since(h.startedAt).Seconds()),
	})
}

func (h *HealthHandler) Ready(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ready",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Schedules: h.source.ScheduleCount(),
	})
}

func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
