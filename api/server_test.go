package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyscale/easyscale/api"
	"github.com/easyscale/easyscale/internal/decision"
	"github.com/easyscale/easyscale/internal/state"
	"github.com/easyscale/easyscale/pkg/config"
	"github.com/easyscale/easyscale/pkg/models"
)

type stubController struct {
	schedules []*models.ScalingSchedule
}

func (s *stubController) Schedules() []*models.ScalingSchedule { return s.schedules }

func (s *stubController) Schedule(name string) (*models.ScalingSchedule, bool) {
	for _, schedule := range s.schedules {
		if schedule.Metadata.Name == name {
			return schedule, true
		}
	}
	return nil, false
}

func (s *stubController) ScheduleCount() int { return len(s.schedules) }

func testSchedule() *models.ScalingSchedule {
	return &models.ScalingSchedule{
		APIVersion: models.APIVersion,
		Kind:       models.KindSchedule,
		Metadata:   models.Metadata{Name: "web-schedule"},
		Spec: models.WorkloadSchedule{
			Target: models.TargetRef{Kind: models.KindDeployment, Name: "web", Namespace: "default"},
			Rules: []models.ScheduleRule{
				{Name: "weekend", Days: []models.DayOfWeek{models.Saturday, models.Sunday}, Replicas: 2, Timezone: "UTC"},
			},
			Default: models.DefaultSpec{Replicas: 5},
		},
	}
}

type serverFixture struct {
	handler http.Handler
	store   *state.Store
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.APIConfig{
		Enabled:      true,
		Port:         0,
		DefaultLimit: 20,
		MaxLimit:     100,
	}
	store := state.NewStore(10)
	engine := decision.NewEngine(store, decision.Config{CooldownPeriod: time.Minute})
	controller := &stubController{schedules: []*models.ScalingSchedule{testSchedule()}}

	server := api.NewServer(cfg, controller, store, engine, "test")
	return &serverFixture{handler: server.Router(), store: store}
}

func (f *serverFixture) get(t *testing.T, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var body map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestServer_Health(t *testing.T) {
	f := newServerFixture(t)

	rec, body := f.get(t, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(1), body["schedules"])
	assert.NotEmpty(t, rec.Header().Get("X-Trace-ID"))

	rec, body = f.get(t, "/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", body["status"])

	rec, body = f.get(t, "/health/live")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alive", body["status"])
}

func TestServer_ListSchedules(t *testing.T) {
	f := newServerFixture(t)

	rec, body := f.get(t, "/api/v1/schedules")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])
}

func TestServer_Preview(t *testing.T) {
	f := newServerFixture(t)

	t.Run("at a saturday instant", func(t *testing.T) {
		rec, body := f.get(t, "/api/v1/schedules/web-schedule/preview?at=2024-01-06T10:00:00Z")
		require.Equal(t, http.StatusOK, rec.Code)

		result, ok := body["result"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, float64(2), result["desired_replicas"])
	})

	t.Run("at a weekday instant", func(t *testing.T) {
		rec, body := f.get(t, "/api/v1/schedules/web-schedule/preview?at=2024-01-09T10:00:00Z")
		require.Equal(t, http.StatusOK, rec.Code)

		result, ok := body["result"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, float64(5), result["desired_replicas"])
	})

	t.Run("unknown schedule", func(t *testing.T) {
		rec, _ := f.get(t, "/api/v1/schedules/missing/preview")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad timestamp", func(t *testing.T) {
		rec, _ := f.get(t, "/api/v1/schedules/web-schedule/preview?at=yesterday")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestServer_WorkloadState(t *testing.T) {
	f := newServerFixture(t)
	key := models.ResourceKey{Namespace: "default", Name: "web", Kind: models.KindDeployment}
	f.store.RecordScaling(models.ScalingOperation{
		Timestamp:       time.Now().UTC(),
		Key:             key,
		RuleName:        "weekend",
		DesiredReplicas: 2,
		Success:         true,
	})

	rec, body := f.get(t, "/api/v1/workloads/Deployment/default/web/state")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["in_cooldown"])

	st, ok := body["state"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "weekend", st["last_rule_name"])
}

func TestServer_WorkloadHistory(t *testing.T) {
	f := newServerFixture(t)
	key := models.ResourceKey{Namespace: "default", Name: "web", Kind: models.KindDeployment}
	base := time.Date(2024, time.January, 9, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		f.store.RecordScaling(models.ScalingOperation{
			Timestamp:       base.Add(time.Duration(i) * time.Minute),
			Key:             key,
			DesiredReplicas: int32(i),
			Success:         true,
		})
	}

	rec, body := f.get(t, "/api/v1/workloads/Deployment/default/web/history?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["count"])

	t.Run("bad limit", func(t *testing.T) {
		rec, _ := f.get(t, "/api/v1/workloads/Deployment/default/web/history?limit=-1")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad kind", func(t *testing.T) {
		rec, _ := f.get(t, "/api/v1/workloads/CronJob/default/web/history")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
