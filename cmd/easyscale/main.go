package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/easyscale/easyscale/api"
	"github.com/easyscale/easyscale/internal/controller"
	"github.com/easyscale/easyscale/internal/decision"
	"github.com/easyscale/easyscale/internal/events"
	"github.com/easyscale/easyscale/internal/k8s"
	"github.com/easyscale/easyscale/internal/logger"
	"github.com/easyscale/easyscale/internal/rules"
	"github.com/easyscale/easyscale/internal/state"
	"github.com/easyscale/easyscale/pkg/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	rulesDir := flag.String("rules-dir", "", "override the schedule manifest directory")
	dryRun := flag.Bool("dry-run", false, "evaluate schedules without scaling anything")
	validate := flag.Bool("validate", false, "validate the rule files and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *rulesDir != "" {
		cfg.Rules.Directory = *rulesDir
	}
	if *dryRun {
		cfg.Controller.DryRun = true
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger.Setup(cfg.App.LogLevel, cfg.App.Mode)

	if *validate {
		return validateRules(cfg.Rules.Directory)
	}

	logger.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Mode)
	if cfg.Controller.DryRun {
		logger.Warn("Dry-run mode enabled, no workloads will be scaled")
	}

	backend, err := k8s.NewClient(cfg.Kubernetes.Kubeconfig)
	if err != nil {
		return fmt.Errorf("failed to create kubernetes client: %w", err)
	}

	bus := events.NewEventBus(cfg.Events.BufferSize)
	defer bus.Close()

	eventLogger := events.NewEventLogger(bus.SubscribeAll())
	eventLogger.Start()
	defer eventLogger.Stop()

	store := state.NewStore(cfg.Controller.HistoryLimit)
	engine := decision.NewEngine(store, decision.Config{CooldownPeriod: cfg.Controller.Cooldown})
	publisher := events.NewPublisher(bus)

	daemon := controller.New(
		cfg.Controller,
		cfg.Rules.Directory,
		backend,
		store,
		engine,
		publisher,
		cfg.Kubernetes.RequestTimeout,
	)

	if cfg.Rules.CRDEnabled {
		dynamicClient, err := k8s.NewDynamicClient(cfg.Kubernetes.Kubeconfig)
		if err != nil {
			return fmt.Errorf("failed to create dynamic client: %w", err)
		}
		daemon.UseCRDSource(rules.NewCRDSource(dynamicClient))
	}

	if _, err := daemon.LoadRules(); err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := daemon.Start(ctx); err != nil {
		return fmt.Errorf("failed to start controller: %w", err)
	}

	var server *api.Server
	errChan := make(chan error, 1)
	if cfg.API.Enabled {
		server = api.NewServer(cfg.API, daemon, store, engine, cfg.App.Mode)
		go func() {
			logger.Infof("API server listening on port %d", cfg.API.Port)
			if err := server.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdownChan:
		logger.Infof("Received signal %v, shutting down", sig)
	}

	cancel()
	daemon.Stop()

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("Stopped gracefully")
	return nil
}

func validateRules(dir string) error {
	schedules, err := rules.LoadFromDirectory(dir)
	if err != nil {
		return err
	}

	for _, s := range schedules {
		result := rules.Validate(s)
		fmt.Printf("%s: %s\n", s.Metadata.Name, result)
	}
	fmt.Printf("%d valid schedule(s) in %s\n", len(schedules), dir)
	return nil
}
