package config

import "time"

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Rules      RulesConfig      `mapstructure:"rules"`
	Controller ControllerConfig `mapstructure:"controller"`
	Kubernetes KubernetesConfig `mapstructure:"kubernetes"`
	API        APIConfig        `mapstructure:"api"`
	Events     EventsConfig     `mapstructure:"events"`
}

type AppConfig struct {
	Name            string        `mapstructure:"name"`
	Mode            string        `mapstructure:"mode"`
	LogLevel        string        `mapstructure:"log_level"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type RulesConfig struct {
	Directory  string `mapstructure:"directory"`
	CRDEnabled bool   `mapstructure:"crd_enabled"`
}

type ControllerConfig struct {
	CheckInterval time.Duration `mapstructure:"check_interval"`
	Cooldown      time.Duration `mapstructure:"cooldown"`
	DryRun        bool          `mapstructure:"dry_run"`
	HistoryLimit  int           `mapstructure:"history_limit"`
}

type KubernetesConfig struct {
	Kubeconfig     string        `mapstructure:"kubeconfig"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type APIConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	DefaultLimit int           `mapstructure:"default_limit"`
	MaxLimit     int           `mapstructure:"max_limit"`
}

type EventsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}
