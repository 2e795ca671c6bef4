package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/easyscale")
	}

	v.SetEnvPrefix("EASYSCALE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "easyscale")
	v.SetDefault("app.mode", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.shutdown_timeout", "30s")

	// Rules defaults
	v.SetDefault("rules.directory", "/etc/easyscale/rules")
	v.SetDefault("rules.crd_enabled", true)

	// Controller defaults
	v.SetDefault("controller.check_interval", "60s")
	v.SetDefault("controller.cooldown", "60s")
	v.SetDefault("controller.dry_run", false)
	v.SetDefault("controller.history_limit", 100)

	// Kubernetes defaults
	v.SetDefault("kubernetes.kubeconfig", "")
	v.SetDefault("kubernetes.request_timeout", "10s")

	// API defaults
	v.SetDefault("api.enabled", true)
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.read_timeout", "15s")
	v.SetDefault("api.write_timeout", "15s")
	v.SetDefault("api.idle_timeout", "60s")
	v.SetDefault("api.default_limit", 20)
	v.SetDefault("api.max_limit", 100)

	// Events defaults
	v.SetDefault("events.buffer_size", 100)
}
