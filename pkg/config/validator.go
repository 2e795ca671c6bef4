package config

import (
	"errors"
	"fmt"
)

func (c *Config) Validate() error {
	var errs []error

	if c.App.Name == "" {
		errs = append(errs, errors.New("app.name is required"))
	}

	validModes := map[string]bool{"development": true, "production": true, "test": true}
	if !validModes[c.App.Mode] {
		errs = append(errs, errors.New("app.mode must be one of: development, production, test"))
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.App.LogLevel] {
		errs = append(errs, errors.New("app.log_level must be one of: debug, info, warn, error"))
	}

	if c.Controller.CheckInterval <= 0 {
		errs = append(errs, errors.New("controller.check_interval must be positive"))
	}
	if c.Controller.Cooldown < 0 {
		errs = append(errs, errors.New("controller.cooldown must be non-negative"))
	}
	if c.Controller.HistoryLimit <= 0 {
		errs = append(errs, errors.New("controller.history_limit must be positive"))
	}

	if c.Kubernetes.RequestTimeout <= 0 {
		errs = append(errs, errors.New("kubernetes.request_timeout must be positive"))
	}

	if c.API.Enabled {
		if c.API.Port <= 0 || c.API.Port > 65535 {
			errs = append(errs, errors.New("api.port must be between 1 and 65535"))
		}
		if c.API.DefaultLimit <= 0 || c.API.DefaultLimit > c.API.MaxLimit {
			errs = append(errs, errors.New("api.default_limit must be positive and not exceed api.max_limit"))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %v", errs)
	}

	return nil
}
