package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/easyscale/easyscale/api/handlers"
	"github.com/easyscale/easyscale/api/middleware"
	"github.com/easyscale/easyscale/internal/decision"
	"github.com/easyscale/easyscale/internal/state"
	"github.com/easyscale/easyscale/pkg/config"
)

// Controller is the daemon surface the API reads. The API never
// mutates the controller; it is a read-only operational window.
type Controller interface {
	handlers.ScheduleStore
	ScheduleCount() int
}

type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     config.APIConfig
}

func NewServer(cfg config.APIConfig, controller Controller, store *state.Store, engine *decision.Engine, mode string) *Server {
	if mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	s := &Server{
		router: router,
		config: cfg,
	}

	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.TraceID())

	healthHandler := handlers.NewHealthHandler(controller)
	scheduleHandler := handlers.NewScheduleHandler(cfg, controller, store, engine)

	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/health/live", healthHandler.Live)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/schedules", scheduleHandler.List)
		v1.GET("/schedules/:name/preview", scheduleHandler.Preview)
		v1.GET("/workloads/:kind/:namespace/:name/state", scheduleHandler.WorkloadState)
		v1.GET("/workloads/:kind/:namespace/:name/history", scheduleHandler.WorkloadHistory)
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the gin engine for handler tests.
func (s *Server) Router() http.Handler {
	return s.router
}
