// Package config provides YAML configuration parsing for serra.
//
// It lets the serra binary run from a configuration file as an alternative
// to wiring a poller in Go.
//
// Example configuration:
//
//	title: Serra Nord
//
//	source:
//	  base_url: ${SERRA_URL:-http://localhost:5000}
//	  interval: 1s
//	  timeout: 800ms
//
//	render:
//	  mode: presence
//
//	server:
//	  port: 8080
//
//	mqtt:
//	  broker: ${MQTT_BROKER:-}
//	  topic_prefix: greenhouse/north
package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// minInterval keeps a mistyped interval from hammering the controller.
	minInterval = 100 * time.Millisecond
	maxInterval = time.Hour

	defaultBaseURL     = "http://localhost:5000"
	defaultPath        = "/get_data"
	defaultInterval    = time.Second
	defaultPort        = 8080
	defaultTopicPrefix = "serra/display"
	defaultClientID    = "serra"
)

// Config is the root configuration structure for serra.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML, or [Default] when no
// file is given.
type Config struct {
	// Title is the dashboard and terminal title. Defaults to "Serra".
	Title string `yaml:"title"`

	// Source describes where snapshots are fetched from.
	Source SourceConfig `yaml:"source"`

	// Render selects how missing values are detected.
	Render RenderConfig `yaml:"render"`

	// Targets lists the display target IDs. Empty means all seven
	// greenhouse targets.
	Targets []string `yaml:"targets"`

	// Server configures the web dashboard.
	Server ServerConfig `yaml:"server"`

	// MQTT configures the optional MQTT display. Disabled when Broker is
	// empty.
	MQTT MQTTConfig `yaml:"mqtt"`
}

// SourceConfig describes the snapshot endpoint and schedule.
type SourceConfig struct {
	// BaseURL is the greenhouse server address.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	BaseURL string `yaml:"base_url"`

	// Path is the snapshot path. Defaults to /get_data.
	Path string `yaml:"path"`

	// Interval is the time between poll cycles. Defaults to 1s.
	// Must be between 100ms and 1h.
	Interval Duration `yaml:"interval"`

	// Timeout bounds each request. Zero means no timeout.
	Timeout Duration `yaml:"timeout"`

	// Overlap lets a new cycle start while the previous one is in flight.
	Overlap bool `yaml:"overlap"`
}

// RenderConfig holds rendering settings.
type RenderConfig struct {
	// Mode is "truthy" (default) or "presence".
	Mode string `yaml:"mode"`
}

// ServerConfig holds web dashboard settings.
type ServerConfig struct {
	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`
}

// MQTTConfig holds MQTT display settings.
type MQTTConfig struct {
	// Broker is the broker URL (tcp://, ssl://, ws:// or wss://).
	// Supports environment variable substitution.
	Broker string `yaml:"broker"`

	// TopicPrefix is prepended to each target ID. Defaults to serra/display.
	TopicPrefix string `yaml:"topic_prefix"`

	// ClientID identifies the connection. Defaults to serra.
	ClientID string `yaml:"client_id"`
}

// Enabled reports whether an MQTT broker is configured.
func (m MQTTConfig) Enabled() bool {
	return m.Broker != ""
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Default returns the configuration used when no file is given: poll the
// local development server every second and serve the dashboard on 8080.
func Default() *Config {
	cfg := &Config{
		Source: SourceConfig{BaseURL: defaultBaseURL},
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses a YAML configuration file.
//
// Returns an error if the file cannot be read, parsed or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in source.base_url and mqtt.broker.
// Defaults are applied before validation.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Source.Path == "" {
		c.Source.Path = defaultPath
	}
	if c.Source.Interval == 0 {
		c.Source.Interval = Duration(defaultInterval)
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = defaultTopicPrefix
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = defaultClientID
	}
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Source.BaseURL == "" {
		return fmt.Errorf("source.base_url is required")
	}
	expanded, err := expandEnvVars(c.Source.BaseURL)
	if err != nil {
		return fmt.Errorf("source.base_url: %w", err)
	}
	c.Source.BaseURL = strings.TrimSuffix(expanded, "/")

	parsedURL, err := url.Parse(c.Source.BaseURL)
	if err != nil {
		return fmt.Errorf("source.base_url: invalid url: %w", err)
	}
	if parsedURL.Scheme == "" {
		return fmt.Errorf("source.base_url: url must have a scheme (http:// or https://)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("source.base_url: url scheme must be http or https, got %q", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("source.base_url: url must have a host")
	}

	if !strings.HasPrefix(c.Source.Path, "/") {
		return fmt.Errorf("source.path must start with '/', got %q", c.Source.Path)
	}

	if c.Source.Interval.Duration() < minInterval {
		return fmt.Errorf("source.interval must be at least %s, got %s", minInterval, c.Source.Interval.Duration())
	}
	if c.Source.Interval.Duration() > maxInterval {
		return fmt.Errorf("source.interval must not exceed %s, got %s", maxInterval, c.Source.Interval.Duration())
	}
	if c.Source.Timeout.Duration() < 0 {
		return fmt.Errorf("source.timeout cannot be negative, got %s", c.Source.Timeout.Duration())
	}

	switch c.Render.Mode {
	case "", "truthy", "presence":
	default:
		return fmt.Errorf("render.mode must be 'truthy' or 'presence', got %q", c.Render.Mode)
	}

	seen := make(map[string]struct{}, len(c.Targets))
	for i, id := range c.Targets {
		if id == "" {
			return fmt.Errorf("targets[%d]: id cannot be empty", i)
		}
		if _, exists := seen[id]; exists {
			return fmt.Errorf("targets[%d]: duplicate id %q", i, id)
		}
		seen[id] = struct{}{}
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	broker, err := expandEnvVars(c.MQTT.Broker)
	if err != nil {
		return fmt.Errorf("mqtt.broker: %w", err)
	}
	c.MQTT.Broker = broker
	if broker != "" {
		u, err := url.Parse(broker)
		if err != nil {
			return fmt.Errorf("mqtt.broker: invalid url: %w", err)
		}
		switch u.Scheme {
		case "tcp", "ssl", "ws", "wss":
		default:
			return fmt.Errorf("mqtt.broker: scheme must be tcp, ssl, ws or wss, got %q", u.Scheme)
		}
		if u.Host == "" {
			return fmt.Errorf("mqtt.broker: url must have a host")
		}
	}

	return nil
}
