package config

import (
	"github.com/jpalmerr/serra"
	"github.com/jpalmerr/serra/internal/mqttsink"
)

// BuildPollerOptions converts parsed configuration into poller options.
//
// The surface, logger and callbacks are left to the caller. Option values
// are validated again when passed to [serra.New].
func BuildPollerOptions(cfg *Config) ([]serra.Option, error) {
	mode, err := serra.ParseRenderMode(cfg.Render.Mode)
	if err != nil {
		return nil, err
	}

	opts := []serra.Option{
		serra.WithBaseURL(cfg.Source.BaseURL),
		serra.WithPath(cfg.Source.Path),
		serra.WithInterval(cfg.Source.Interval.Duration()),
		serra.WithRenderMode(mode),
		serra.WithOverlap(cfg.Source.Overlap),
	}
	if cfg.Source.Timeout != 0 {
		opts = append(opts, serra.WithTimeout(cfg.Source.Timeout.Duration()))
	}

	return opts, nil
}

// BuildDashboardOptions converts parsed configuration into dashboard
// options.
func BuildDashboardOptions(cfg *Config) []serra.DashboardOption {
	return []serra.DashboardOption{
		serra.WithPort(cfg.Server.Port),
		serra.WithTitle(cfg.Title),
		serra.WithTargets(Targets(cfg)...),
	}
}

// BuildMQTTConfig returns the MQTT sink settings and whether MQTT is
// enabled.
func BuildMQTTConfig(cfg *Config) (mqttsink.Config, bool) {
	if !cfg.MQTT.Enabled() {
		return mqttsink.Config{}, false
	}
	return mqttsink.Config{
		Broker:      cfg.MQTT.Broker,
		TopicPrefix: cfg.MQTT.TopicPrefix,
		ClientID:    cfg.MQTT.ClientID,
	}, true
}

// Targets returns the configured target IDs, or all greenhouse targets when
// none are listed.
func Targets(cfg *Config) []string {
	if len(cfg.Targets) == 0 {
		return serra.DefaultTargets()
	}
	return append([]string(nil), cfg.Targets...)
}
