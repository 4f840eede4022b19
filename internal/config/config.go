package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the service configuration, read from config.yaml.
type Config struct {
	Version int `yaml:"version"`
	Service struct {
		Name      string `yaml:"name"`
		LogLevel  string `yaml:"log_level"`
		LogFormat string `yaml:"log_format"`
	} `yaml:"service"`
	HTTP struct {
		Port    int    `yaml:"port"`
		TLSCert string `yaml:"tls_cert"`
		TLSKey  string `yaml:"tls_key"`
	} `yaml:"http"`
	MQTT struct {
		Enabled     bool   `yaml:"enabled"`
		URL         string `yaml:"url"`
		ClientID    string `yaml:"client_id"`
		TopicPrefix string `yaml:"topic_prefix"`
	} `yaml:"mqtt"`
	Postgres struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Database string `yaml:"database"`
		SSLMode  string `yaml:"sslmode"`
	} `yaml:"postgres"`
	Engine struct {
		TickInterval    time.Duration `yaml:"tick_interval"`
		MaxStepsPerTick int           `yaml:"max_steps_per_tick"`
		GraphsDir       string        `yaml:"graphs_dir"`
	} `yaml:"engine"`
	Alerts struct {
		WebhookURL     string        `yaml:"webhook_url"`
		MQTTAlertDelay time.Duration `yaml:"mqtt_alert_delay"`
	} `yaml:"alerts"`
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse decodes a config document. Unknown keys are rejected.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported config.yaml version: %d", cfg.Version)
	}
	return &cfg, nil
}

// ServiceName returns the configured service name, defaulting to "storyengine".
func (c *Config) ServiceName() string {
	if c.Service.Name == "" {
		return "storyengine"
	}
	return c.Service.Name
}

// HTTPPort returns the configured API port, defaulting to 8080 if not set.
func (c *Config) HTTPPort() int {
	if c.HTTP.Port == 0 {
		return 8080
	}
	return c.HTTP.Port
}

// MQTTURL returns the broker URL, defaulting to a local broker.
func (c *Config) MQTTURL() string {
	if c.MQTT.URL == "" {
		return "tcp://localhost:1883"
	}
	return c.MQTT.URL
}

// MQTTClientID returns the client ID, defaulting to the service name.
func (c *Config) MQTTClientID() string {
	if c.MQTT.ClientID == "" {
		return c.ServiceName()
	}
	return c.MQTT.ClientID
}

// TopicPrefix returns the MQTT topic root, defaulting to "story".
func (c *Config) TopicPrefix() string {
	if c.MQTT.TopicPrefix == "" {
		return "story"
	}
	return c.MQTT.TopicPrefix
}

// PostgresPort returns the database port, defaulting to 5432.
func (c *Config) PostgresPort() int {
	if c.Postgres.Port == 0 {
		return 5432
	}
	return c.Postgres.Port
}

// TickInterval returns the engine tick period, defaulting to 20ms.
func (c *Config) TickInterval() time.Duration {
	if c.Engine.TickInterval <= 0 {
		return 20 * time.Millisecond
	}
	return c.Engine.TickInterval
}

// MaxStepsPerTick returns the per-tick node step limit, defaulting to 1000.
func (c *Config) MaxStepsPerTick() int {
	if c.Engine.MaxStepsPerTick <= 0 {
		return 1000
	}
	return c.Engine.MaxStepsPerTick
}

// MQTTAlertDelay returns how long the broker may be gone before alerting.
func (c *Config) MQTTAlertDelay() time.Duration {
	if c.Alerts.MQTTAlertDelay <= 0 {
		return 30 * time.Second
	}
	return c.Alerts.MQTTAlertDelay
}
