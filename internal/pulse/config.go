// Package pulse implements the heartbeat agent that keeps the local
// machine's directory record current.
package pulse

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration accepts human readable YAML values like "30s" or "5m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config holds the agent configuration.
type Config struct {
	Servers  []string `yaml:"servers"`
	Identity string   `yaml:"identity"`
	Interval Duration `yaml:"interval"`
	KeyPath  string   `yaml:"key_path"`

	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

// MetricsConfig configures the Prometheus endpoint. An empty addr
// leaves the endpoint off.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Type  string `yaml:"type"`
}

func (c *Config) SetDefaults() {
	if len(c.Servers) == 0 {
		c.Servers = []string{"127.0.0.1:1050"}
	}
	if c.Identity == "" {
		c.Identity = "pharos-pulse/1.0"
	}
	if c.Interval <= 0 {
		c.Interval = Duration(10 * time.Second)
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Log.Type != "json" && c.Log.Type != "text" {
		c.Log.Type = "text"
	}
}
