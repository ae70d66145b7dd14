// Package config handles engine configuration loading using viper.
package config

import "firestige.xyz/schc/internal/log"

// Config is the top-level configuration of the schc tool.
type Config struct {
	Rules        string        `mapstructure:"rules"`         // rule set document path
	FieldContext string        `mapstructure:"field_context"` // optional field context path
	Stack        []string      `mapstructure:"stack"`         // declared header stack, outermost first
	Metrics      MetricsConfig `mapstructure:"metrics"`
	Log          log.Config    `mapstructure:"log"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}
